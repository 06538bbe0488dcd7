package correlation

import (
	"fmt"
	"sort"
	"strings"

	"github.com/driftgate/driftgate/internal/config"
	"github.com/driftgate/driftgate/internal/models"
)

const maxEvidencePerCorrelation = 5

// pairSignals accumulates every strategy's signals for one pair
type pairSignals struct {
	pair     Pair
	byName   map[string][]Signal
	weights  map[string]float64
	userRule *config.Rule
}

func newPairSignals(pair Pair) *pairSignals {
	return &pairSignals{
		pair:    pair,
		byName:  map[string][]Signal{},
		weights: map[string]float64{},
	}
}

func (ps *pairSignals) add(strategy Strategy, signals []Signal) {
	if len(signals) == 0 {
		return
	}
	ps.byName[strategy.Name()] = append(ps.byName[strategy.Name()], signals...)
	ps.weights[strategy.Name()] = strategy.Weight()
}

// aggregate merges the collected signals into one correlation. Per strategy
// the max-confidence signal wins, ties broken toward file-and-line evidence.
// An explicit user rule forces the final score to 1.0.
func (ps *pairSignals) aggregate() models.Correlation {
	corr := models.Correlation{
		SourceID: ps.pair.Source.ArtifactID,
		TargetID: ps.pair.Target.ArtifactID,
		Scores:   map[string]float64{},
		Weights:  map[string]float64{},
	}

	relationships := map[string]bool{}
	var evidence []models.EvidenceItem

	weightSum := 0.0
	scoreSum := 0.0
	for name, signals := range ps.byName {
		best := bestSignal(signals)
		corr.Scores[name] = best.Confidence
		corr.Weights[name] = ps.weights[name]
		relationships[best.Relationship] = true
		evidence = append(evidence, best.Evidence...)
		scoreSum += best.Confidence * ps.weights[name]
		weightSum += ps.weights[name]
	}

	if ps.userRule != nil {
		corr.UserDefined = true
		corr.Scores["explicit"] = 1.0
		corr.Weights["explicit"] = 1.0
		relationships[ps.userRule.Type] = true
		reason := ps.userRule.Reason
		if reason == "" {
			reason = fmt.Sprintf("user rule %s: %s -> %s", ps.userRule.Type, ps.userRule.Source, ps.userRule.Target)
		}
		evidence = append(evidence, models.EvidenceItem{Reason: reason})
		corr.FinalScore = 1.0
	} else if weightSum > 0 {
		corr.FinalScore = clamp01(scoreSum / weightSum)
	}

	corr.Relationship = joinRelationships(relationships)
	corr.Evidence = dedupeEvidence(evidence)
	return corr
}

// bestSignal picks the max-confidence signal; on a tie the one carrying
// file-and-line evidence wins
func bestSignal(signals []Signal) Signal {
	best := signals[0]
	for _, s := range signals[1:] {
		if s.Confidence > best.Confidence ||
			(s.Confidence == best.Confidence && hasLocatedEvidence(s) && !hasLocatedEvidence(best)) {
			best = s
		}
	}
	return best
}

func hasLocatedEvidence(s Signal) bool {
	for _, e := range s.Evidence {
		if e.File != "" && e.Line > 0 {
			return true
		}
	}
	return false
}

func joinRelationships(set map[string]bool) string {
	names := make([]string, 0, len(set))
	for name := range set {
		names = append(names, name)
	}
	sort.Strings(names)
	return strings.Join(names, "|")
}

// dedupeEvidence removes duplicate items, case-insensitive on reason, and
// caps the list
func dedupeEvidence(items []models.EvidenceItem) []models.EvidenceItem {
	seen := map[string]bool{}
	var out []models.EvidenceItem
	for _, item := range items {
		key := fmt.Sprintf("%s|%s|%d", strings.ToLower(item.Reason), item.File, item.Line)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, item)
		if len(out) == maxEvidencePerCorrelation {
			break
		}
	}
	return out
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
