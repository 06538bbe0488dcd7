package correlation

import (
	"log/slog"
	"strings"

	"github.com/driftgate/driftgate/internal/artifact"
	"github.com/driftgate/driftgate/internal/config"
	"github.com/driftgate/driftgate/internal/models"
)

// criticalPairIndicators block ignore rules: a pair containing any of these
// on either side must still be evaluated
var criticalPairIndicators = []string{
	"DROP TABLE",
	"DROP COLUMN",
	"TRUNCATE",
	"CVE",
	"0.0.0.0/0",
}

// ruleOutcome is the result of resolving user rules against the findings
type ruleOutcome struct {
	// ignored pair keys are skipped by candidate selection
	ignored map[string]bool

	// explicit maps pair keys to the rule that declared the relationship
	explicit map[string]config.Rule

	// explicitPairs are the concrete pairs behind explicit, always in the
	// candidate set
	explicitPairs []Pair
}

// applyRules resolves each user rule's source and target tokens against the
// expanded findings. A rule that resolves nothing is inert and logged as a
// warning. Ignore rules never suppress critical pairs.
func applyRules(rules []config.Rule, findings []*models.DriftFinding, logger *slog.Logger) ruleOutcome {
	out := ruleOutcome{
		ignored:  map[string]bool{},
		explicit: map[string]config.Rule{},
	}

	for _, rule := range rules {
		sources := matchFindings(rule.Source, findings)
		targets := matchFindings(rule.Target, findings)
		if len(sources) == 0 || len(targets) == 0 {
			logger.Warn("correlation rule resolved no findings, rule is inert",
				"type", rule.Type, "source", rule.Source, "target", rule.Target)
			continue
		}

		for _, src := range sources {
			for _, tgt := range targets {
				if src.ArtifactID == tgt.ArtifactID {
					continue
				}
				pair := Pair{Source: src, Target: tgt}
				key := pair.Key()

				if rule.Type == "ignore" {
					if pairIsCritical(src, tgt) {
						logger.Warn("ignore rule not applied: pair carries critical indicators",
							"source", src.ArtifactID, "target", tgt.ArtifactID)
						continue
					}
					out.ignored[key] = true
					continue
				}

				if _, seen := out.explicit[key]; !seen {
					out.explicit[key] = rule
					out.explicitPairs = append(out.explicitPairs, pair)
				}
			}
		}
	}
	return out
}

// matchFindings resolves a rule token against artifact IDs by exact,
// substring, then glob match
func matchFindings(token string, findings []*models.DriftFinding) []*models.DriftFinding {
	var out []*models.DriftFinding
	for _, f := range findings {
		if artifact.MatchToken(token, f.ArtifactID) {
			out = append(out, f)
		}
	}
	return out
}

func pairIsCritical(a, b *models.DriftFinding) bool {
	return hasCriticalIndicator(a) || hasCriticalIndicator(b)
}

func hasCriticalIndicator(f *models.DriftFinding) bool {
	for _, change := range f.Changes {
		upper := strings.ToUpper(change)
		for _, indicator := range criticalPairIndicators {
			if strings.Contains(upper, indicator) {
				return true
			}
		}
	}
	return false
}
