package correlation

import (
	"fmt"
	"strings"

	"github.com/driftgate/driftgate/internal/analyzers/codescan"
	"github.com/driftgate/driftgate/internal/artifact"
	"github.com/driftgate/driftgate/internal/models"
)

// codeStrategy links an API finding's handler to a database finding's table
// through the call graph extracted from changed source files. It is the only
// high-budget strategy and the only one that can produce file-and-line
// evidence for the actual data access.
type codeStrategy struct {
	meta
	analysis *codescan.Analysis
}

func (s *codeStrategy) Evaluate(pair Pair) []Signal {
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
	method, apiPath, ok := primaryEndpoint(api)
	if !ok {
		return nil
	}

	var signals []Signal
	for _, access := range s.analysis.HandlerTables() {
		if !methodMatches(access.Handler.Method, method) || !pathsEquivalent(access.Handler.Path, apiPath) {
			continue
		}
		matched, _ := artifact.NamesMatch(access.Table, table)
		if !matched {
			continue
		}
		signals = append(signals, Signal{
			Relationship: "api_uses_table",
			Confidence:   access.Confidence,
			Evidence: []models.EvidenceItem{{
				Reason: fmt.Sprintf("handler %s %s reaches table %s via %s", method, apiPath, table, access.Op),
				File:   access.File,
				Line:   access.Line,
			}},
		})
	}
	return signals
}

func methodMatches(handlerMethod, method string) bool {
	return handlerMethod == "ANY" || strings.EqualFold(handlerMethod, method)
}

// pathsEquivalent compares endpoint paths with parameter segments
// normalized, so /users/:id matches /users/{id}
func pathsEquivalent(a, b string) bool {
	as := normalizeSegments(a)
	bs := normalizeSegments(b)
	if len(as) != len(bs) {
		return false
	}
	for i := range as {
		if as[i] != bs[i] {
			return false
		}
	}
	return true
}

func normalizeSegments(p string) []string {
	var out []string
	for _, seg := range strings.Split(strings.Trim(p, "/"), "/") {
		if seg == "" {
			continue
		}
		if isParamSegment(seg) {
			out = append(out, "*")
			continue
		}
		out = append(out, strings.ToLower(seg))
	}
	return out
}
