// Package iac analyzes infrastructure-as-code changes: Terraform plan JSON,
// CloudFormation templates, raw HCL and Kubernetes manifests. Plan and
// template diffs share one deep property comparison.
package iac

import (
	"context"
	"path"
	"strings"

	"github.com/driftgate/driftgate/internal/analyzers"
	"github.com/driftgate/driftgate/internal/artifact"
	"github.com/driftgate/driftgate/internal/models"
)

// Analyzer routes each handled file to the right IaC pass
type Analyzer struct{}

// New creates an IaC analyzer
func New() *Analyzer {
	return &Analyzer{}
}

// Name implements analyzers.Analyzer
func (a *Analyzer) Name() string { return "iac" }

// CanHandle matches Terraform plans, .tf files, CloudFormation templates
// and YAML manifests
func (a *Analyzer) CanHandle(file models.ChangedFile) bool {
	p := file.Path
	ext := path.Ext(p)
	switch {
	case ext == ".tf":
		return true
	case strings.HasSuffix(p, ".tfplan.json") || strings.HasSuffix(p, "plan.json"):
		return true
	case ext == ".yaml" || ext == ".yml" || ext == ".json" || ext == ".template":
		return true
	}
	return false
}

// Analyze implements analyzers.Analyzer
func (a *Analyzer) Analyze(ctx context.Context, ac *analyzers.Context) ([]models.DriftFinding, error) {
	var findings []models.DriftFinding
	seenPlan := false

	for _, file := range ac.ChangeSet.Files {
		var finding *models.DriftFinding

		switch {
		case a.isTerraformPlan(ac, file.Path):
			if file.Status == models.StatusRemoved {
				continue
			}
			finding = analyzeTerraformPlan(ctx, ac, file.Path)
			seenPlan = true

		case a.isCloudFormation(ac, file.Path):
			finding = analyzeCloudFormation(ctx, ac, file.Path)

		case path.Ext(file.Path) == ".tf" && file.Status != models.StatusRemoved:
			finding = analyzeHCL(ctx, ac, file.Path)

		case a.isManifestCandidate(file) && file.Status != models.StatusRemoved:
			finding = analyzeKubernetes(ctx, ac, file.Path)
		}

		if finding != nil {
			findings = append(findings, *finding)
		}
	}

	// The configured plan path may carry drift even when not in the file list
	// (plans are often produced by CI rather than committed).
	if !seenPlan && ac.Config.TerraformPath != "" {
		if finding := analyzeTerraformPlan(ctx, ac, ac.Config.TerraformPath); finding != nil {
			findings = append(findings, *finding)
		}
	}

	return findings, nil
}

func (a *Analyzer) isTerraformPlan(ac *analyzers.Context, p string) bool {
	if ac.Config.TerraformPath != "" {
		return artifact.NormalizePath(p) == artifact.NormalizePath(ac.Config.TerraformPath)
	}
	return strings.HasSuffix(p, ".tfplan.json") || strings.HasSuffix(p, "tfplan.json")
}

func (a *Analyzer) isCloudFormation(ac *analyzers.Context, p string) bool {
	if ac.Config.CloudFormationGlob != "" {
		return artifact.MatchGlob(ac.Config.CloudFormationGlob, p)
	}
	base := strings.ToLower(path.Base(p))
	return strings.Contains(base, "cloudformation") || strings.HasSuffix(p, ".template")
}

// isManifestCandidate is a cheap path-level filter; the YAML pass still
// verifies kind/apiVersion before emitting anything
func (a *Analyzer) isManifestCandidate(file models.ChangedFile) bool {
	ext := path.Ext(file.Path)
	if ext != ".yaml" && ext != ".yml" {
		return false
	}
	p := strings.ToLower(file.Path)
	return strings.Contains(p, "k8s") || strings.Contains(p, "kubernetes") ||
		strings.Contains(p, "manifests") || strings.Contains(p, "deploy")
}
