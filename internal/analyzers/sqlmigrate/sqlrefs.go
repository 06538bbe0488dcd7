package sqlmigrate

import "regexp"

// Raw SQL strings embedded in application code are analyzed with the same
// regex set as migrations so the two passes cannot disagree on table names.
var (
	reSelectFrom = regexp.MustCompile(`(?i)\bFROM\s+(` + identifier + `)`)
	reInsertInto = regexp.MustCompile(`(?i)\bINSERT\s+INTO\s+(` + identifier + `)`)
	reUpdateSet  = regexp.MustCompile(`(?i)\bUPDATE\s+(` + identifier + `)\s+SET\b`)
	reDeleteFrom = regexp.MustCompile(`(?i)\bDELETE\s+FROM\s+(` + identifier + `)`)
	reJoin       = regexp.MustCompile(`(?i)\bJOIN\s+(` + identifier + `)`)
)

// TableRef is a table referenced by a raw SQL string, with the operation
// that touches it
type TableRef struct {
	Table string
	Op    string
}

// TablesInSQL extracts table references from a raw SQL string
func TablesInSQL(sql string) []TableRef {
	var out []TableRef
	seen := map[string]bool{}
	add := func(table, op string) {
		table = cleanIdentifier(table)
		key := table + "|" + op
		if table != "" && !seen[key] {
			seen[key] = true
			out = append(out, TableRef{Table: table, Op: op})
		}
	}

	for _, m := range reInsertInto.FindAllStringSubmatch(sql, -1) {
		add(m[1], "INSERT")
	}
	for _, m := range reUpdateSet.FindAllStringSubmatch(sql, -1) {
		add(m[1], "UPDATE")
	}
	for _, m := range reDeleteFrom.FindAllStringSubmatch(sql, -1) {
		add(m[1], "DELETE")
	}
	for _, m := range reSelectFrom.FindAllStringSubmatch(sql, -1) {
		add(m[1], "SELECT")
	}
	for _, m := range reJoin.FindAllStringSubmatch(sql, -1) {
		add(m[1], "SELECT")
	}
	return out
}

// LooksLikeSQL reports whether a string literal plausibly contains SQL
func LooksLikeSQL(s string) bool {
	return reSelectFrom.MatchString(s) || reInsertInto.MatchString(s) ||
		reUpdateSet.MatchString(s) || reDeleteFrom.MatchString(s)
}
