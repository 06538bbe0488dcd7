package reassess

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftgate/driftgate/internal/config"
	"github.com/driftgate/driftgate/internal/models"
)

var thresholds = config.ThresholdConfig{CorrelateMin: 0.55, BlockMin: 0.80}

func finding(id string, severity models.Severity, changes ...string) models.DriftFinding {
	return models.DriftFinding{
		Type:       models.FindingTypeDatabase,
		ArtifactID: id,
		Severity:   severity,
		Changes:    changes,
	}
}

func corr(source, target string, score float64) models.Correlation {
	return models.Correlation{SourceID: source, TargetID: target, FinalScore: score}
}

func TestApplyCriticalRailForcesHigh(t *testing.T) {
	findings := []models.DriftFinding{
		finding("db:table:users", models.SeverityLow, "DROP TABLE: users"),
	}
	out := Apply(findings, nil, thresholds, nil)
	require.Len(t, out, 1)
	assert.Equal(t, models.SeverityHigh, out[0].Severity)
	assert.Contains(t, out[0].Reasoning, "Critical security indicator present, severity forced to high")
}

func TestApplyCascadeUpgradesLowToMedium(t *testing.T) {
	findings := []models.DriftFinding{
		finding("db:table:users", models.SeverityLow, "ADD COLUMN: users.nickname"),
	}
	correlations := []models.Correlation{
		corr("db:table:users", "api:GET:/users", 0.9),
		corr("db:table:users", "api:POST:/users", 0.85),
	}
	out := Apply(findings, correlations, thresholds, nil)
	require.Len(t, out, 1)
	assert.Equal(t, models.SeverityMedium, out[0].Severity)
	assert.Contains(t, out[0].Reasoning,
		"Severity upgraded from low to medium: 2 correlated components affected")
	require.NotNil(t, out[0].Correlation)
	assert.Equal(t, 2, out[0].Correlation.Hard)
	assert.Equal(t, 2, out[0].Correlation.Cascade)
}

func TestApplyCascadeUpgradesMediumToHigh(t *testing.T) {
	findings := []models.DriftFinding{
		finding("db:table:users", models.SeverityMedium, "TYPE NARROWING: users.name -> varchar(50)"),
	}
	correlations := []models.Correlation{
		corr("db:table:users", "api:GET:/users", 0.9),
		corr("db:table:users", "api:POST:/users", 0.85),
		corr("db:table:users", "api:PUT:/users/{id}", 0.82),
	}
	out := Apply(findings, correlations, thresholds, nil)
	assert.Equal(t, models.SeverityHigh, out[0].Severity)
}

func TestApplyCascadeCountsDistinctCounterparts(t *testing.T) {
	findings := []models.DriftFinding{
		finding("db:table:users", models.SeverityLow, "ADD COLUMN: users.nickname"),
	}
	// two hard links to the same counterpart are one cascade component
	correlations := []models.Correlation{
		corr("db:table:users", "api:GET:/users", 0.9),
		corr("api:GET:/users", "db:table:users", 0.85),
	}
	out := Apply(findings, correlations, thresholds, nil)
	assert.Equal(t, models.SeverityLow, out[0].Severity)
	require.NotNil(t, out[0].Correlation)
	assert.Equal(t, 1, out[0].Correlation.Cascade)
}

func TestApplySoftLinksDoNotUpgrade(t *testing.T) {
	findings := []models.DriftFinding{
		finding("db:table:users", models.SeverityLow, "ADD COLUMN: users.nickname"),
	}
	correlations := []models.Correlation{
		corr("db:table:users", "api:GET:/users", 0.6),
		corr("db:table:users", "api:POST:/users", 0.7),
		corr("db:table:users", "config:config/app.yaml", 0.79),
	}
	out := Apply(findings, correlations, thresholds, nil)
	assert.Equal(t, models.SeverityLow, out[0].Severity)
	require.NotNil(t, out[0].Correlation)
	assert.Equal(t, 3, out[0].Correlation.Soft)
	assert.Equal(t, 0, out[0].Correlation.Hard)
}

func TestApplyManyHardLinksUpgradeToHigh(t *testing.T) {
	findings := []models.DriftFinding{
		finding("db:table:users", models.SeverityLow, "ADD COLUMN: users.nickname"),
	}
	// repeated hard links to one counterpart keep cascade at 1, so only the
	// hard-link rule can fire
	correlations := []models.Correlation{
		corr("db:table:users", "api:GET:/users", 0.9),
		corr("api:GET:/users", "db:table:users", 0.9),
		corr("db:table:users", "api:GET:/users", 0.85),
		corr("api:GET:/users", "db:table:users", 0.85),
	}
	out := Apply(findings, correlations, thresholds, nil)
	assert.Equal(t, models.SeverityHigh, out[0].Severity)
	require.NotNil(t, out[0].Correlation)
	assert.Equal(t, 4, out[0].Correlation.Hard)
	assert.Equal(t, 1, out[0].Correlation.Cascade)
}

func TestApplyUserRuleLadder(t *testing.T) {
	userCorr := models.Correlation{
		SourceID: "db:table:users", TargetID: "config:config/app.yaml",
		FinalScore: 1.0, UserDefined: true,
	}
	secondUser := models.Correlation{
		SourceID: "db:table:users", TargetID: "api:GET:/users",
		FinalScore: 1.0, UserDefined: true,
	}

	findings := []models.DriftFinding{
		finding("db:table:users", models.SeverityLow, "ADD COLUMN: users.nickname"),
	}
	out := Apply(findings, []models.Correlation{userCorr}, thresholds, nil)
	assert.Equal(t, models.SeverityMedium, out[0].Severity, "one user rule lifts low to medium")

	out = Apply(findings, []models.Correlation{userCorr, secondUser}, thresholds, nil)
	assert.Equal(t, models.SeverityHigh, out[0].Severity, "two user rules lift further to high")
}

func TestApplyUncorrelatedFindingUntouched(t *testing.T) {
	findings := []models.DriftFinding{
		finding("db:table:orders", models.SeverityLow, "ADD COLUMN: orders.note"),
	}
	correlations := []models.Correlation{
		corr("db:table:users", "api:GET:/users", 0.9),
	}
	out := Apply(findings, correlations, thresholds, nil)
	assert.Equal(t, models.SeverityLow, out[0].Severity)
	assert.Nil(t, out[0].Correlation)
	assert.Empty(t, out[0].Reasoning)
}

func TestApplyHighStaysHigh(t *testing.T) {
	findings := []models.DriftFinding{
		finding("db:table:users", models.SeverityHigh, "DROP TABLE: users"),
	}
	out := Apply(findings, nil, thresholds, nil)
	assert.Equal(t, models.SeverityHigh, out[0].Severity)
	assert.Empty(t, out[0].Reasoning, "already high, the rail adds no reasoning")
}
