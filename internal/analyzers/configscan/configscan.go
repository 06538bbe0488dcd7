// Package configscan analyzes application and dependency configuration
// changes: generic config key diffs with secret redaction, package manifest
// and lockfile diffs with version semantics, docker-compose services and
// feature flags.
package configscan

import (
	"context"
	"path"
	"strings"

	"github.com/driftgate/driftgate/internal/analyzers"
	"github.com/driftgate/driftgate/internal/artifact"
	"github.com/driftgate/driftgate/internal/models"
	"github.com/driftgate/driftgate/internal/risk"
)

// Analyzer routes each handled file to the right configuration pass
type Analyzer struct{}

// New creates a configuration analyzer
func New() *Analyzer {
	return &Analyzer{}
}

// Name implements analyzers.Analyzer
func (a *Analyzer) Name() string { return "config" }

// CanHandle matches package manifests, lockfiles, compose files, feature
// flag files and anything under the configured config globs
func (a *Analyzer) CanHandle(file models.ChangedFile) bool {
	base := strings.ToLower(path.Base(file.Path))
	switch base {
	case "package.json", "package-lock.json", "npm-shrinkwrap.json":
		return true
	}
	if strings.HasPrefix(base, "docker-compose") {
		return true
	}
	ext := path.Ext(base)
	return ext == ".json" || ext == ".yaml" || ext == ".yml" || ext == ".env" || ext == ".properties"
}

// Analyze implements analyzers.Analyzer
func (a *Analyzer) Analyze(ctx context.Context, ac *analyzers.Context) ([]models.DriftFinding, error) {
	var findings []models.DriftFinding

	for _, file := range ac.ChangeSet.Files {
		base := strings.ToLower(path.Base(file.Path))

		var changes []string
		var diffErr error

		switch {
		case base == "package.json":
			changes, diffErr = a.diffManifestFile(ctx, ac, file)
		case base == "package-lock.json" || base == "npm-shrinkwrap.json":
			changes, diffErr = a.diffLockfileFile(ctx, ac, file)
		case strings.HasPrefix(base, "docker-compose"):
			changes, diffErr = a.diffRevisions(ctx, ac, file, DiffCompose)
		case a.isFeatureFlagFile(ac, file.Path):
			changes, diffErr = a.diffRevisions(ctx, ac, file, DiffFeatureFlags)
		case a.isConfigFile(ac, file.Path):
			changes, diffErr = a.diffConfigKeys(ctx, ac, file)
		default:
			continue
		}

		if diffErr != nil {
			ac.Logger.Warn("failed to analyze config file, skipping", "file", file.Path, "error", diffErr)
			continue
		}
		if len(changes) == 0 {
			continue
		}

		result := risk.Score(changes, "configuration")
		findings = append(findings, models.DriftFinding{
			Type:      models.FindingTypeConfiguration,
			File:      artifact.NormalizePath(file.Path),
			Severity:  result.Severity,
			Changes:   changes,
			Reasoning: result.Reasoning,
		})
	}
	return findings, nil
}

func (a *Analyzer) isFeatureFlagFile(ac *analyzers.Context, p string) bool {
	glob := ac.Config.FeatureFlagGlob
	if glob == "" {
		return false
	}
	if artifact.MatchGlob(glob, p) {
		return true
	}
	// brace-free fallback for the default pattern
	base := strings.ToLower(path.Base(p))
	return strings.Contains(base, "feature-flag") || strings.Contains(base, "feature_flag")
}

func (a *Analyzer) isConfigFile(ac *analyzers.Context, p string) bool {
	for _, glob := range ac.Config.ConfigGlobs {
		if artifact.MatchGlob(glob, p) {
			return true
		}
	}
	if len(ac.Config.ConfigGlobs) > 0 {
		return false
	}
	// Without explicit globs, treat conventional config locations as config.
	lower := strings.ToLower(p)
	return strings.Contains(lower, "config") || strings.Contains(lower, "settings")
}

func (a *Analyzer) diffManifestFile(ctx context.Context, ac *analyzers.Context, file models.ChangedFile) ([]string, error) {
	baseRaw, headRaw, err := a.bothRevisions(ctx, ac, file.Path)
	if err != nil {
		return nil, err
	}
	if headRaw == nil || baseRaw == nil {
		// A brand new or deleted manifest carries no version semantics to
		// compare; the change-set status already covers it.
		return nil, nil
	}
	return DiffManifest(baseRaw, headRaw)
}

func (a *Analyzer) diffLockfileFile(ctx context.Context, ac *analyzers.Context, file models.ChangedFile) ([]string, error) {
	baseRaw, headRaw, err := a.bothRevisions(ctx, ac, file.Path)
	if err != nil {
		return nil, err
	}
	if headRaw == nil {
		return nil, nil
	}
	return DiffLockfile(path.Base(file.Path), baseRaw, headRaw)
}

func (a *Analyzer) diffConfigKeys(ctx context.Context, ac *analyzers.Context, file models.ChangedFile) ([]string, error) {
	baseRaw, headRaw, err := a.bothRevisions(ctx, ac, file.Path)
	if err != nil {
		return nil, err
	}

	var baseKeys, headKeys []string
	if baseRaw != nil {
		tree, err := parseTree(baseRaw)
		if err != nil {
			return nil, err
		}
		baseKeys = ExtractKeys(tree)
	}
	if headRaw != nil {
		tree, err := parseTree(headRaw)
		if err != nil {
			return nil, err
		}
		headKeys = ExtractKeys(tree)
	}
	return DiffKeys(baseKeys, headKeys), nil
}

// diffRevisions fetches both revisions and applies a two-sided diff
func (a *Analyzer) diffRevisions(ctx context.Context, ac *analyzers.Context, file models.ChangedFile, diff func(base, head []byte) ([]string, error)) ([]string, error) {
	baseRaw, headRaw, err := a.bothRevisions(ctx, ac, file.Path)
	if err != nil {
		return nil, err
	}
	return diff(baseRaw, headRaw)
}

func (a *Analyzer) bothRevisions(ctx context.Context, ac *analyzers.Context, p string) (base, head []byte, err error) {
	if base, err = ac.FetchBase(ctx, p); err != nil {
		return nil, nil, err
	}
	if head, err = ac.FetchHead(ctx, p); err != nil {
		return nil, nil, err
	}
	return base, head, nil
}
