package correlation

import (
	"fmt"
	"strings"

	"github.com/driftgate/driftgate/internal/models"
)

// operationStrategy aligns REST verbs with database operations
type operationStrategy struct {
	meta
}

// verbToOp maps an HTTP method to its natural SQL counterpart
var verbToOp = map[string]string{
	"GET":    "SELECT",
	"POST":   "INSERT",
	"PUT":    "UPDATE",
	"PATCH":  "UPDATE",
	"DELETE": "DELETE",
}

func (s *operationStrategy) Evaluate(pair Pair) []Signal {
	api, ok := pair.side(models.FindingTypeAPI)
	if !ok {
		return nil
	}
	db, ok := pair.side(models.FindingTypeDatabase)
	if !ok {
		return nil
	}
	method, _, ok := primaryEndpoint(api)
	if !ok {
		return nil
	}
	expected := verbToOp[method]
	if expected == "" {
		return nil
	}

	ops := dbOpsOf(db)
	if len(ops) == 0 {
		return nil
	}
	confidence := 0.0
	if ops[expected] {
		confidence = 1.0
	} else if expected != "SELECT" && ops["DELETE"] {
		// destructive schema change vs a write verb
		confidence = 0.6
	}
	if confidence == 0 {
		return nil
	}
	return []Signal{{
		Relationship: "operation_alignment",
		Confidence:   confidence,
		Evidence: []models.EvidenceItem{{
			Reason: fmt.Sprintf("%s aligns with %s operations on the table", method, expected),
		}},
	}}
}

// dbOpsOf derives the set of SQL operations implied by a database finding's
// change tokens. Destructive DDL counts as DELETE.
func dbOpsOf(db *models.DriftFinding) map[string]bool {
	ops := map[string]bool{}
	for _, change := range db.Changes {
		upper := strings.ToUpper(change)
		switch {
		case strings.Contains(upper, "DROP TABLE"),
			strings.Contains(upper, "DROP COLUMN"),
			strings.Contains(upper, "TRUNCATE"),
			strings.Contains(upper, "COLUMN LOSS"),
			strings.Contains(upper, "TABLE RENAME"):
			ops["DELETE"] = true
		case strings.Contains(upper, "INSERT"):
			ops["INSERT"] = true
		case strings.Contains(upper, "UPDATE"):
			ops["UPDATE"] = true
		case strings.Contains(upper, "SELECT"):
			ops["SELECT"] = true
		case strings.Contains(upper, "NOT NULL"),
			strings.Contains(upper, "TYPE NARROWING"),
			strings.Contains(upper, "CONSTRAINT"):
			ops["UPDATE"] = true
		}
	}
	return ops
}
