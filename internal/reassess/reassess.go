// Package reassess upgrades finding severities based on correlation
// outcomes. Reassessment only ever raises severity; the critical-security
// rail additionally forces high regardless of correlations.
package reassess

import (
	"fmt"
	"log/slog"

	"github.com/driftgate/driftgate/internal/config"
	"github.com/driftgate/driftgate/internal/models"
	"github.com/driftgate/driftgate/internal/risk"
)

// linkCounts tallies the correlations touching one finding
type linkCounts struct {
	hard    int
	soft    int
	cascade map[string]bool
	user    int
	keys    []string
}

// Apply reassesses every finding against the correlations and returns the
// updated slice. Input findings must carry artifact IDs.
func Apply(findings []models.DriftFinding, correlations []models.Correlation, thresholds config.ThresholdConfig, logger *slog.Logger) []models.DriftFinding {
	if logger == nil {
		logger = slog.Default()
	}

	counts := map[string]*linkCounts{}
	countsFor := func(id string) *linkCounts {
		lc, ok := counts[id]
		if !ok {
			lc = &linkCounts{cascade: map[string]bool{}}
			counts[id] = lc
		}
		return lc
	}
	for _, corr := range correlations {
		for _, side := range []struct{ id, other string }{
			{corr.SourceID, corr.TargetID},
			{corr.TargetID, corr.SourceID},
		} {
			lc := countsFor(side.id)
			key := corr.SourceID + "::" + corr.TargetID
			switch {
			case corr.FinalScore >= thresholds.BlockMin:
				lc.hard++
				lc.cascade[side.other] = true
				lc.keys = append(lc.keys, key)
			case corr.FinalScore >= thresholds.CorrelateMin:
				lc.soft++
				lc.keys = append(lc.keys, key)
			}
			if corr.UserDefined {
				lc.user++
			}
		}
	}

	out := make([]models.DriftFinding, len(findings))
	for i, f := range findings {
		out[i] = reassessOne(f, countsFor(f.ArtifactID), logger)
	}
	return out
}

func reassessOne(f models.DriftFinding, lc *linkCounts, logger *slog.Logger) models.DriftFinding {
	original := f.Severity

	if risk.IsCritical(f.Changes) {
		if f.Severity != models.SeverityHigh {
			f.Severity = models.SeverityHigh
			f.Reasoning = append(f.Reasoning, "Critical security indicator present, severity forced to high")
		}
	} else {
		cascade := len(lc.cascade)
		upgraded := ""
		switch {
		case cascade >= 3 && f.Severity == models.SeverityMedium:
			f.Severity = models.SeverityHigh
			upgraded = fmt.Sprintf("%d correlated components affected", cascade)
		case cascade >= 2 && f.Severity == models.SeverityLow:
			f.Severity = models.SeverityMedium
			upgraded = fmt.Sprintf("%d correlated components affected", cascade)
		case lc.hard >= 4 && f.Severity != models.SeverityHigh:
			f.Severity = models.SeverityHigh
			upgraded = fmt.Sprintf("%d hard correlation links", lc.hard)
		}

		// user-defined correlations upgrade more aggressively
		if lc.user >= 1 && f.Severity == models.SeverityLow {
			f.Severity = models.SeverityMedium
			upgraded = "user-defined correlation present"
		}
		if lc.user >= 2 && f.Severity == models.SeverityMedium {
			f.Severity = models.SeverityHigh
			upgraded = "multiple user-defined correlations present"
		}

		if upgraded != "" {
			f.Reasoning = append(f.Reasoning,
				fmt.Sprintf("Severity upgraded from %s to %s: %s", original, f.Severity, upgraded))
			logger.Info("severity upgraded by correlation",
				"artifact", f.ArtifactID, "from", original, "to", f.Severity)
		}
	}

	if lc.hard+lc.soft+lc.user > 0 || f.Severity != original {
		f.Correlation = &models.CorrelationImpact{
			Hard:         lc.hard,
			Soft:         lc.soft,
			Cascade:      len(lc.cascade),
			Correlations: lc.keys,
		}
	}
	return f
}
