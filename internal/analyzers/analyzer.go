// Package analyzers defines the layer-analyzer capability set and the
// shared analysis context. The orchestrator treats every analyzer the same
// way: it asks whether any changed file is handled, then collects findings.
package analyzers

import (
	"context"
	"log/slog"

	"github.com/driftgate/driftgate/internal/config"
	"github.com/driftgate/driftgate/internal/models"
)

// Analyzer is the capability set shared by all layer analyzers
type Analyzer interface {
	// Name identifies the analyzer in logs and reports
	Name() string

	// CanHandle reports whether the analyzer is interested in a changed file
	CanHandle(file models.ChangedFile) bool

	// Analyze inspects the change set and returns drift findings. Per-file
	// parse failures are logged and skipped; only change-set level failures
	// return an error.
	Analyze(ctx context.Context, ac *Context) ([]models.DriftFinding, error)
}

// Context carries the shared inputs of a single analysis run
type Context struct {
	ChangeSet *models.ChangeSet
	Fetcher   models.ContentFetcher
	Config    *config.Config
	Logger    *slog.Logger
}

// FetchBase retrieves a file at the base revision; nil means absent
func (c *Context) FetchBase(ctx context.Context, path string) ([]byte, error) {
	return c.Fetcher.Fetch(ctx, path, c.ChangeSet.BaseRef)
}

// FetchHead retrieves a file at the head revision; nil means absent
func (c *Context) FetchHead(ctx context.Context, path string) ([]byte, error) {
	return c.Fetcher.Fetch(ctx, path, c.ChangeSet.HeadRef)
}

// Handled filters the change set down to the files an analyzer handles
func Handled(a Analyzer, cs *models.ChangeSet) []models.ChangedFile {
	var out []models.ChangedFile
	for _, f := range cs.Files {
		if a.CanHandle(f) {
			out = append(out, f)
		}
	}
	return out
}
