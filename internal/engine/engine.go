// Package engine orchestrates the drift analysis pipeline: it fans out the
// layer analyzers over a change set, expands findings into atomic artifacts,
// runs correlation and severity reassessment, and assembles the report.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/driftgate/driftgate/internal/analyzers"
	"github.com/driftgate/driftgate/internal/analyzers/codescan"
	"github.com/driftgate/driftgate/internal/analyzers/configscan"
	"github.com/driftgate/driftgate/internal/analyzers/iac"
	"github.com/driftgate/driftgate/internal/analyzers/openapi"
	"github.com/driftgate/driftgate/internal/analyzers/sqlmigrate"
	"github.com/driftgate/driftgate/internal/artifact"
	"github.com/driftgate/driftgate/internal/config"
	"github.com/driftgate/driftgate/internal/correlation"
	"github.com/driftgate/driftgate/internal/fetch"
	"github.com/driftgate/driftgate/internal/models"
	"github.com/driftgate/driftgate/internal/reassess"
	"github.com/driftgate/driftgate/internal/report"
)

// Engine runs the full analysis pipeline for one change set
type Engine struct {
	cfg     *config.Config
	fetcher models.ContentFetcher
	logger  *slog.Logger
}

// New creates an engine. The fetcher is required; a nil logger falls back to
// the default.
func New(cfg *config.Config, fetcher models.ContentFetcher, logger *slog.Logger) *Engine {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{cfg: cfg, fetcher: fetcher, logger: logger.With("component", "engine")}
}

// Run analyzes the change set and returns the report. The only fatal
// condition is an unreadable change set; it yields an empty, unblocked
// report and an error.
func (e *Engine) Run(ctx context.Context, cs *models.ChangeSet) (*models.Report, error) {
	if e.fetcher == nil {
		e.logger.Error("no content fetcher configured, emitting empty report")
		return report.Empty(), fmt.Errorf("no content fetcher configured")
	}
	if cs == nil || len(cs.Files) == 0 {
		e.logger.Info("change set is empty, nothing to analyze")
		return report.Build(cs, nil, nil, e.cfg.OverrideReason), nil
	}

	bounded := fetch.NewBounded(e.fetcher, e.cfg.Fetch.Fanout, e.cfg.Fetch.Timeout, e.logger)
	code := codescan.New()
	all := []analyzers.Analyzer{
		openapi.New(),
		sqlmigrate.New(),
		iac.New(),
		configscan.New(),
		code,
	}

	var mu sync.Mutex
	var findings []models.DriftFinding

	g, gctx := errgroup.WithContext(ctx)
	for _, a := range all {
		a := a
		if len(analyzers.Handled(a, cs)) == 0 && !alwaysRuns(a, e.cfg) {
			continue
		}
		g.Go(func() error {
			ac := &analyzers.Context{
				ChangeSet: cs,
				Fetcher:   bounded,
				Config:    e.cfg,
				Logger:    e.logger.With("analyzer", a.Name()),
			}
			found, err := a.Analyze(gctx, ac)
			if err != nil {
				// analyzer failure costs its findings, not the run
				e.logger.Warn("analyzer failed", "analyzer", a.Name(), "error", err)
				return nil
			}
			mu.Lock()
			findings = append(findings, found...)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		e.logger.Error("change set analysis aborted", "error", err)
		return report.Empty(), err
	}

	expanded := artifact.Expand(findings)
	correlations := correlation.NewEngine(e.cfg.Correlation, code.Analysis(), e.logger).Correlate(expanded)
	reassessed := reassess.Apply(expanded, correlations, e.cfg.Correlation.Thresholds, e.logger)

	rep := report.Build(cs, reassessed, correlations, e.cfg.OverrideReason)
	e.logger.Info("analysis complete",
		"findings", len(rep.Findings),
		"correlations", len(rep.Correlations),
		"blocked", rep.Summary.Blocked)
	return rep, nil
}

// alwaysRuns reports whether an analyzer must run even when no changed file
// matches its name-based filter, because a configured artifact path is not
// required to look like one
func alwaysRuns(a analyzers.Analyzer, cfg *config.Config) bool {
	switch a.Name() {
	case "iac":
		return cfg.TerraformPath != ""
	case "openapi":
		return cfg.OpenAPIPath != ""
	}
	return false
}
