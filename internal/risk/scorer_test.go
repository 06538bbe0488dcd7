package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftgate/driftgate/internal/models"
)

func TestScoreTiers(t *testing.T) {
	tests := []struct {
		name     string
		changes  []string
		expected models.Severity
	}{
		{"drop table", []string{"DROP TABLE: users"}, models.SeverityHigh},
		{"table rename", []string{"TABLE RENAME: orders (schema change)"}, models.SeverityHigh},
		{"api deletion", []string{"API_DELETION: OpenAPI specification was deleted"}, models.SeverityHigh},
		{"open cidr pattern", []string{`PROPERTY_MODIFIED: sg.ingress[0].cidr_blocks: ["10.0.0.0/8"] → ["0.0.0.0/0"]`}, models.SeverityHigh},
		{"integrity mismatch", []string{"INTEGRITY_MISMATCH: 1 packages have different checksums"}, models.SeverityHigh},
		{"type narrowing", []string{"TYPE NARROWING: users.name -> varchar(50)"}, models.SeverityMedium},
		{"api expansion", []string{"API_EXPANSION: GET:/users"}, models.SeverityMedium},
		{"minor bump", []string{"MINOR_VERSION_BUMP: lodash from 4.17.20 -> 4.18.0"}, models.SeverityMedium},
		{"unmatched", []string{"Modified: /info/description"}, models.SeverityLow},
		{"high wins over medium", []string{"ADD CONSTRAINT: chk_age", "DROP COLUMN: users.email"}, models.SeverityHigh},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Score(tt.changes, "test")
			assert.Equal(t, tt.expected, result.Severity)
			assert.NotEmpty(t, result.Reasoning)
		})
	}
}

func TestScoreEmptyChanges(t *testing.T) {
	result := Score(nil, "database")
	assert.Equal(t, models.SeverityLow, result.Severity)
	assert.Empty(t, result.Reasoning)
}

func TestScoreCaseInsensitive(t *testing.T) {
	result := Score([]string{"drop table: users"}, "database")
	assert.Equal(t, models.SeverityHigh, result.Severity)
}

func TestApplyOverride(t *testing.T) {
	result := Score([]string{"DROP TABLE: users"}, "database")
	require.Equal(t, models.SeverityHigh, result.Severity)

	overridden := ApplyOverride(result, "intentional cleanup, table is unused")
	require.NotNil(t, overridden.Override)
	assert.True(t, overridden.Override.Applied)
	assert.True(t, overridden.AllowMerge)
	assert.Equal(t, models.SeverityHigh, overridden.Override.OriginalSeverity)
	// severity itself is not rewritten
	assert.Equal(t, models.SeverityHigh, overridden.Severity)
}

func TestApplyOverrideEmptyReasonIsNoOp(t *testing.T) {
	result := Score([]string{"DROP TABLE: users"}, "database")
	same := ApplyOverride(result, "   ")
	assert.Nil(t, same.Override)
	assert.False(t, same.AllowMerge)
}

func TestIsCritical(t *testing.T) {
	tests := []struct {
		changes []string
		want    bool
	}{
		{[]string{"DROP TABLE: users"}, true},
		{[]string{"SECURITY_VULNERABILITY: event-stream"}, true},
		{[]string{"CVE-2021-23337 in lodash"}, true},
		{[]string{"SECRET_KEY_REMOVED: database.[REDACTED_PAS]"}, true},
		{[]string{"ADD COLUMN: users.nickname"}, false},
		{nil, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsCritical(tt.changes), "%v", tt.changes)
	}
}
