package correlation

import (
	"fmt"
	"path"

	"github.com/driftgate/driftgate/internal/models"
)

// temporalStrategy emits a fixed low-confidence signal for two findings in
// the same directory. Disabled by default; the co-location heuristic is too
// noisy for most repository layouts.
type temporalStrategy struct {
	meta
}

const temporalConfidence = 0.5

func (s *temporalStrategy) Evaluate(pair Pair) []Signal {
	if pair.Source.File == "" || pair.Target.File == "" {
		return nil
	}
	dir := path.Dir(pair.Source.File)
	if dir != path.Dir(pair.Target.File) {
		return nil
	}
	return []Signal{{
		Relationship: "temporal_correlation",
		Confidence:   temporalConfidence,
		Evidence: []models.EvidenceItem{{
			Reason: fmt.Sprintf("both changes live in %s", dir),
		}},
	}}
}
