package risk

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/driftgate/driftgate/internal/models"
)

// highIndicators map a change substring to severity high. Matching is
// case-insensitive; the highest tier that matches wins.
var highIndicators = []string{
	"DROP TABLE",
	"DROP COLUMN",
	"TRUNCATE TABLE",
	"DROP CONSTRAINT",
	"COLUMN LOSS",
	"API_DELETION",
	"BREAKING_CHANGE",
	"SECURITY_GROUP_DELETION",
	"RESOURCE_DELETION",
	"SECRET_KEY_ADDED",
	"SECRET_KEY_REMOVED",
	"MAJOR_VERSION_BUMP",
	"SECURITY_VULNERABILITY",
	"CVE_DETECTED",
	"INTEGRITY_MISMATCH",
	"TRANSITIVE_MAJOR_BUMP",
	"MALICIOUS_PACKAGE",
	// a rename is a drop+create; the new schema may not match
	"TABLE RENAME",
}

// highPatterns catch property-level changes that open security holes
var highPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)cidr.*0\.0\.0\.0/0`),
	regexp.MustCompile(`(?i)DeletionPolicy.*Delete`),
	regexp.MustCompile(`(?i)publicly.*true`),
	regexp.MustCompile(`(?i)encryption.*false`),
	regexp.MustCompile(`(?i)ssl.*false`),
}

var mediumIndicators = []string{
	"TYPE NARROWING",
	"NOT NULL",
	"REQUIRED",
	"COLUMN RENAME",
	"ADD CONSTRAINT",
	"API_EXPANSION",
	"SECURITY_GROUP_CHANGE",
	"COST_INCREASE",
	"FEATURE_FLAG_",
	"CONTAINER_REMOVED",
	"DEPENDENCY_REMOVED",
	"MINOR_VERSION_BUMP",
	"LICENSE_CHANGE",
	"DEPRECATED_PACKAGE",
	"TRANSITIVE_DEPENDENCIES_CHANGED",
	"NEW_LOCK_FILE",
}

var mediumPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)PROPERTY_(MODIFIED|ADDED|REMOVED).*(port|timeout|size)`),
	regexp.MustCompile(`(?i)(ingress|egress)`),
}

// criticalIndicators is the safety-rail set: findings carrying any of these
// tokens are forced to high severity and cannot be downgraded by any later
// stage, including correlation reassessment and ignore rules.
var criticalIndicators = []string{
	"SECURITY_VULNERABILITY",
	"CVE_DETECTED",
	"CVE-",
	"DROP TABLE",
	"DROP COLUMN",
	"TRUNCATE TABLE",
	"SECURITY_GROUP_DELETION",
	"SECRET_KEY_ADDED",
	"SECRET_KEY_REMOVED",
	"INTEGRITY_MISMATCH",
	"MALICIOUS_PACKAGE",
}

// Result is the outcome of scoring a set of change indicators
type Result struct {
	Severity   models.Severity  `json:"severity"`
	Reasoning  []string         `json:"reasoning"`
	Override   *models.Override `json:"override,omitempty"`
	AllowMerge bool             `json:"allowMerge"`
}

// Score classifies a set of change indicators into low/medium/high for the
// given layer kind. Empty input yields low with empty reasoning; any
// non-empty input that matches no indicator is low.
func Score(changes []string, kind string) Result {
	if len(changes) == 0 {
		return Result{Severity: models.SeverityLow}
	}

	var reasoning []string
	severity := models.SeverityLow

	for _, change := range changes {
		upper := strings.ToUpper(change)
		for _, ind := range highIndicators {
			if strings.Contains(upper, ind) {
				severity = models.SeverityHigh
				reasoning = append(reasoning, fmt.Sprintf("High-risk %s change: %s", kind, change))
			}
		}
		for _, re := range highPatterns {
			if re.MatchString(change) {
				severity = models.SeverityHigh
				reasoning = append(reasoning, fmt.Sprintf("Security-sensitive %s property change: %s", kind, change))
			}
		}
	}
	if severity == models.SeverityHigh {
		return Result{Severity: severity, Reasoning: dedupe(reasoning)}
	}

	for _, change := range changes {
		upper := strings.ToUpper(change)
		for _, ind := range mediumIndicators {
			if strings.Contains(upper, ind) {
				severity = models.SeverityMedium
				reasoning = append(reasoning, fmt.Sprintf("Moderate %s change: %s", kind, change))
			}
		}
		for _, re := range mediumPatterns {
			if re.MatchString(change) {
				severity = models.SeverityMedium
				reasoning = append(reasoning, fmt.Sprintf("Moderate %s change: %s", kind, change))
			}
		}
	}
	if severity == models.SeverityMedium {
		return Result{Severity: severity, Reasoning: dedupe(reasoning)}
	}

	return Result{
		Severity:  models.SeverityLow,
		Reasoning: []string{fmt.Sprintf("Low-risk %s changes detected", kind)},
	}
}

// ApplyOverride attaches a manual override to a scoring result and marks the
// merge as allowed. An empty reason is a no-op: the original result is
// returned unchanged.
func ApplyOverride(result Result, reason string) Result {
	if strings.TrimSpace(reason) == "" {
		return result
	}
	result.Override = &models.Override{
		Applied:          true,
		Reason:           reason,
		OriginalSeverity: result.Severity,
		Timestamp:        time.Now().UTC(),
	}
	result.AllowMerge = true
	return result
}

// IsCritical reports whether any change token matches the critical-security
// safety-rail set
func IsCritical(changes []string) bool {
	for _, change := range changes {
		upper := strings.ToUpper(change)
		for _, ind := range criticalIndicators {
			if strings.Contains(upper, ind) {
				return true
			}
		}
	}
	return false
}

// IsCriticalFinding reports whether a finding is protected by the
// critical-security safety rail
func IsCriticalFinding(f *models.DriftFinding) bool {
	return IsCritical(f.Changes)
}

func dedupe(in []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
