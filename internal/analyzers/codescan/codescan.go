// Package codescan analyzes application source code changes. It detects API
// handlers and database call sites with tree-sitter, links the two through a
// shallow call graph, and reports modified handlers as API drift.
package codescan

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/driftgate/driftgate/internal/analyzers"
	"github.com/driftgate/driftgate/internal/artifact"
	"github.com/driftgate/driftgate/internal/models"
	"github.com/driftgate/driftgate/internal/risk"
)

// Analyzer scans changed source files. The extracted Analysis is kept so the
// correlation pass can link handlers to the tables they touch.
type Analyzer struct {
	mu       sync.Mutex
	cache    *analysisCache
	analysis *Analysis
}

// New creates a code analyzer
func New() *Analyzer {
	return &Analyzer{cache: newAnalysisCache(), analysis: NewAnalysis()}
}

// Name implements analyzers.Analyzer
func (a *Analyzer) Name() string { return "code" }

// CanHandle matches any source file with a supported language
func (a *Analyzer) CanHandle(file models.ChangedFile) bool {
	return DetectLanguage(file.Path) != ""
}

// Analysis returns the result of the last Analyze call
func (a *Analyzer) Analysis() *Analysis {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.analysis
}

// Analyze implements analyzers.Analyzer. A file that fails to fetch or parse
// is skipped with a warning; the remaining files still produce findings.
func (a *Analyzer) Analyze(ctx context.Context, ac *analyzers.Context) ([]models.DriftFinding, error) {
	analysis := NewAnalysis()

	for _, file := range ac.ChangeSet.Files {
		if file.Status == models.StatusRemoved || !a.CanHandle(file) {
			continue
		}
		lang := DetectLanguage(file.Path)

		head, err := ac.FetchHead(ctx, file.Path)
		if err != nil {
			ac.Logger.Warn("failed to fetch source file, skipping", "file", file.Path, "error", err)
			continue
		}
		if head == nil {
			continue
		}

		path := artifact.NormalizePath(file.Path)
		fa, ok := a.cache.get(lang, head)
		if ok {
			if fa.File != path {
				fa = fa.rebound(path)
			}
		} else {
			fa, err = extractFile(path, lang, head)
			if err != nil {
				ac.Logger.Warn("failed to parse source file, skipping", "file", file.Path, "language", lang, "error", err)
				continue
			}
			a.cache.put(lang, head, fa)
		}
		analysis.Files[path] = fa
	}

	a.mu.Lock()
	a.analysis = analysis
	a.mu.Unlock()

	return a.findings(analysis), nil
}

// findings turns detected handlers into API drift findings, one per file
func (a *Analyzer) findings(analysis *Analysis) []models.DriftFinding {
	var out []models.DriftFinding

	files := make([]string, 0, len(analysis.Files))
	for f := range analysis.Files {
		files = append(files, f)
	}
	sort.Strings(files)

	for _, f := range files {
		fa := analysis.Files[f]
		if len(fa.Handlers) == 0 {
			continue
		}

		var changes, endpoints, entities []string
		seenSymbol := map[string]bool{}
		for _, h := range fa.Handlers {
			changes = append(changes, fmt.Sprintf("API_HANDLER_MODIFIED: %s %s", h.Method, h.Path))
			endpoints = append(endpoints, h.Method+":"+h.Path)
			if h.Symbol != "" && !seenSymbol[h.Symbol] {
				seenSymbol[h.Symbol] = true
				entities = append(entities, h.Symbol)
			}
		}

		result := risk.Score(changes, "API handler")
		out = append(out, models.DriftFinding{
			Type:      models.FindingTypeAPI,
			File:      f,
			Severity:  result.Severity,
			Changes:   changes,
			Reasoning: result.Reasoning,
			Entities:  entities,
			Endpoints: endpoints,
		})
	}
	return out
}
