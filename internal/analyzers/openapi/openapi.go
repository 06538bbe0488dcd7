// Package openapi analyzes OpenAPI specification changes between two
// revisions. Specs are parsed and validated with kin-openapi; a revision
// that fails to parse or validate is treated as "not present".
package openapi

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/driftgate/driftgate/internal/analyzers"
	"github.com/driftgate/driftgate/internal/artifact"
	"github.com/driftgate/driftgate/internal/models"
	"github.com/driftgate/driftgate/internal/risk"
)

var specExtensions = map[string]bool{".yaml": true, ".yml": true, ".json": true}

// Analyzer tracks the configured OpenAPI spec path across revisions
type Analyzer struct{}

// New creates an OpenAPI analyzer
func New() *Analyzer {
	return &Analyzer{}
}

// Name implements analyzers.Analyzer
func (a *Analyzer) Name() string { return "openapi" }

// CanHandle matches the configured spec path or files that look like an
// OpenAPI spec by name
func (a *Analyzer) CanHandle(file models.ChangedFile) bool {
	return looksLikeSpec(file.Path)
}

func looksLikeSpec(p string) bool {
	if !specExtensions[path.Ext(p)] {
		return false
	}
	base := strings.ToLower(path.Base(p))
	return strings.Contains(base, "openapi") || strings.Contains(base, "swagger")
}

// Analyze implements analyzers.Analyzer
func (a *Analyzer) Analyze(ctx context.Context, ac *analyzers.Context) ([]models.DriftFinding, error) {
	basePath, headPath, tracked := a.resolvePaths(ac)
	if !tracked {
		return nil, nil
	}

	baseRaw, err := ac.FetchBase(ctx, basePath)
	if err != nil {
		return nil, fmt.Errorf("fetch base spec %s: %w", basePath, err)
	}
	headRaw, err := ac.FetchHead(ctx, headPath)
	if err != nil {
		return nil, fmt.Errorf("fetch head spec %s: %w", headPath, err)
	}
	if baseRaw == nil && headRaw == nil {
		return nil, nil
	}

	baseSpec := loadSpec(ctx, ac, basePath, baseRaw)
	headSpec := loadSpec(ctx, ac, headPath, headRaw)

	finding := a.classify(ac, headPath, baseRaw, headRaw, baseSpec, headSpec)
	if finding == nil {
		return nil, nil
	}
	if basePath != headPath {
		if finding.Metadata == nil {
			finding.Metadata = &models.Metadata{}
		}
		finding.Metadata.Renamed = &models.RenameInfo{From: artifact.NormalizePath(basePath), To: artifact.NormalizePath(headPath)}
	}
	return []models.DriftFinding{*finding}, nil
}

// resolvePaths determines which spec paths to read at base and head,
// applying rename detection: when the configured path is not in the change
// set but a spec-shaped file was removed and another added, the pair is
// treated as a rename.
func (a *Analyzer) resolvePaths(ac *analyzers.Context) (basePath, headPath string, tracked bool) {
	configured := ac.Config.OpenAPIPath
	cs := ac.ChangeSet

	if configured != "" {
		if _, ok := cs.Find(configured); ok {
			return configured, configured, true
		}
		// Configured path untouched; a rename needs both a removed spec and
		// an added counterpart.
		removed := firstSpecFile(cs.ByStatus(models.StatusRemoved))
		added := firstSpecFile(cs.ByStatus(models.StatusAdded))
		if removed == "" || added == "" {
			return "", "", false
		}
		ac.Logger.Info("treating spec change as rename", "from", removed, "to", added)
		return removed, added, true
	}

	// No configured path: track the first changed file that looks like a spec.
	for _, f := range cs.Files {
		if looksLikeSpec(f.Path) {
			return f.Path, f.Path, true
		}
	}
	return "", "", false
}

func firstSpecFile(files []models.ChangedFile) string {
	for _, f := range files {
		if specExtensions[path.Ext(f.Path)] {
			return f.Path
		}
	}
	return ""
}

// loadSpec parses and validates spec content; any failure yields a nil spec
// (treated as not present) after a warning
func loadSpec(ctx context.Context, ac *analyzers.Context, file string, raw []byte) *openapi3.T {
	if len(raw) == 0 {
		return nil
	}
	loader := openapi3.NewLoader()
	loader.IsExternalRefsAllowed = false

	doc, err := loader.LoadFromData(raw)
	if err != nil {
		ac.Logger.Warn("failed to parse OpenAPI spec", "file", file, "error", err)
		return nil
	}
	if err := doc.Validate(ctx); err != nil {
		ac.Logger.Warn("OpenAPI spec failed validation", "file", file, "error", err)
		return nil
	}
	return doc
}

// classify turns the base/head spec pair into a drift finding
func (a *Analyzer) classify(ac *analyzers.Context, file string, baseRaw, headRaw []byte, baseSpec, headSpec *openapi3.T) *models.DriftFinding {
	switch {
	case baseSpec != nil && headSpec == nil:
		changes := []string{"API_DELETION: OpenAPI specification was deleted"}
		result := risk.Score(changes, "api")
		return &models.DriftFinding{
			Type:      models.FindingTypeAPI,
			File:      artifact.NormalizePath(file),
			Severity:  result.Severity,
			Changes:   changes,
			Reasoning: result.Reasoning,
			Endpoints: endpointsOf(baseSpec),
		}

	case baseSpec == nil && headSpec != nil:
		changes := []string{"New OpenAPI specification added"}
		result := risk.Score(changes, "api")
		return &models.DriftFinding{
			Type:      models.FindingTypeAPI,
			File:      artifact.NormalizePath(file),
			Severity:  result.Severity,
			Changes:   changes,
			Reasoning: result.Reasoning,
			Endpoints: endpointsOf(headSpec),
		}

	case baseSpec != nil && headSpec != nil:
		diff := Diff(baseSpec, headSpec)
		changes, endpoints := ClassifyChanges(diff)
		if len(changes) == 0 {
			if string(baseRaw) != string(headRaw) {
				changes = []string{"OpenAPI specification changes detected (detailed analysis failed)"}
			} else {
				return nil
			}
		}
		result := risk.Score(changes, "api")
		return &models.DriftFinding{
			Type:      models.FindingTypeAPI,
			File:      artifact.NormalizePath(file),
			Severity:  result.Severity,
			Changes:   changes,
			Reasoning: result.Reasoning,
			Endpoints: endpoints,
		}

	default:
		// Neither revision parsed; raw content may still differ.
		if baseRaw != nil && headRaw != nil && string(baseRaw) != string(headRaw) {
			changes := []string{"OpenAPI specification changes detected (fallback detection)"}
			result := risk.Score(changes, "api")
			return &models.DriftFinding{
				Type:      models.FindingTypeAPI,
				File:      artifact.NormalizePath(file),
				Severity:  result.Severity,
				Changes:   changes,
				Reasoning: result.Reasoning,
			}
		}
		return nil
	}
}

// endpointsOf lists every METHOD:path pair of a spec
func endpointsOf(spec *openapi3.T) []string {
	var out []string
	if spec.Paths == nil {
		return out
	}
	for p, item := range spec.Paths.Map() {
		if item == nil {
			continue
		}
		for method := range item.Operations() {
			out = append(out, fmt.Sprintf("%s:%s", strings.ToUpper(method), p))
		}
	}
	return out
}
