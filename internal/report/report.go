// Package report assembles the typed output of a drift analysis run and
// decides the merge gate.
package report

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/driftgate/driftgate/internal/models"
)

// Build assembles the final report. Findings are sorted deterministically by
// (type, file, first indicator) so identical inputs produce identical
// reports regardless of analyzer interleaving. A non-empty override reason
// unblocks the merge while recording the original decision.
func Build(cs *models.ChangeSet, findings []models.DriftFinding, correlations []models.Correlation, overrideReason string) *models.Report {
	sortFindings(findings)

	summary := models.Summary{}
	for _, f := range findings {
		switch f.Severity {
		case models.SeverityHigh:
			summary.High++
		case models.SeverityMedium:
			summary.Medium++
		default:
			summary.Low++
		}
	}

	report := &models.Report{
		RunID:        uuid.NewString(),
		GeneratedAt:  time.Now().UTC(),
		Findings:     findings,
		Correlations: correlations,
	}
	if cs != nil {
		report.BaseRef = cs.BaseRef
		report.HeadRef = cs.HeadRef
	}

	if summary.High > 0 && overrideReason != "" {
		summary.OverrideApplied = true
		report.Override = &models.Override{
			Applied:          true,
			Reason:           overrideReason,
			OriginalSeverity: models.SeverityHigh,
			Timestamp:        report.GeneratedAt,
		}
	}
	summary.Blocked = summary.High > 0 && !summary.OverrideApplied
	report.Summary = summary
	return report
}

// Empty returns the report emitted when the change set itself cannot be
// read. Nothing is known, so nothing blocks.
func Empty() *models.Report {
	return &models.Report{
		RunID:       uuid.NewString(),
		GeneratedAt: time.Now().UTC(),
		Findings:    []models.DriftFinding{},
	}
}

func sortFindings(findings []models.DriftFinding) {
	sort.SliceStable(findings, func(i, j int) bool {
		if findings[i].Type != findings[j].Type {
			return findings[i].Type < findings[j].Type
		}
		if findings[i].File != findings[j].File {
			return findings[i].File < findings[j].File
		}
		return firstChange(findings[i]) < firstChange(findings[j])
	})
}

func firstChange(f models.DriftFinding) string {
	if len(f.Changes) > 0 {
		return f.Changes[0]
	}
	return ""
}
