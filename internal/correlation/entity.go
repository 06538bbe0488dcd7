package correlation

import (
	"fmt"
	"strings"

	"github.com/driftgate/driftgate/internal/artifact"
	"github.com/driftgate/driftgate/internal/models"
)

// entityStrategy matches API endpoint path nouns against database table
// names through the shared name-variation set
type entityStrategy struct {
	meta
}

func (s *entityStrategy) Evaluate(pair Pair) []Signal {
	api, ok := pair.side(models.FindingTypeAPI)
	if !ok {
		return nil
	}
	db, ok := pair.side(models.FindingTypeDatabase)
	if !ok {
		return nil
	}
	table := primaryEntity(db)
	if table == "" {
		return nil
	}
	_, path, ok := primaryEndpoint(api)
	if !ok {
		return nil
	}

	bestScore := 0.0
	bestNoun := ""
	for _, noun := range pathNouns(path) {
		if matched, score := artifact.NamesMatch(noun, table); matched && score > bestScore {
			bestScore = score
			bestNoun = noun
		}
	}
	if bestScore == 0 {
		return nil
	}
	return []Signal{{
		Relationship: "api_uses_table",
		Confidence:   bestScore,
		Evidence: []models.EvidenceItem{{
			Reason: fmt.Sprintf("endpoint segment %q matches table %q (similarity %.2f)", bestNoun, table, bestScore),
			File:   api.File,
		}},
	}}
}

// pathNouns extracts resource nouns from an endpoint path, skipping
// parameters and version segments
func pathNouns(path string) []string {
	var out []string
	for _, seg := range strings.Split(strings.Trim(path, "/"), "/") {
		if seg == "" || isParamSegment(seg) || isVersionSegment(seg) || seg == "api" {
			continue
		}
		out = append(out, strings.ToLower(seg))
	}
	return out
}

func isParamSegment(seg string) bool {
	return strings.HasPrefix(seg, ":") || strings.HasPrefix(seg, "{") || strings.HasPrefix(seg, "<")
}

func isVersionSegment(seg string) bool {
	if len(seg) < 2 || (seg[0] != 'v' && seg[0] != 'V') {
		return false
	}
	for _, r := range seg[1:] {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
