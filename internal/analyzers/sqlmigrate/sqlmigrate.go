// Package sqlmigrate analyzes SQL migration files for destructive schema
// changes. Detection is pattern-driven: regex passes for DROP/TRUNCATE
// statements plus heuristics that separate renames from real data loss.
package sqlmigrate

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/driftgate/driftgate/internal/analyzers"
	"github.com/driftgate/driftgate/internal/artifact"
	"github.com/driftgate/driftgate/internal/models"
	"github.com/driftgate/driftgate/internal/risk"
)

// identifier matches plain, schema-qualified, bracketed, quoted and
// backticked SQL identifiers
const identifier = "[`\"\\[]?[A-Za-z_][A-Za-z0-9_$]*[`\"\\]]?(?:\\.[`\"\\[]?[A-Za-z_][A-Za-z0-9_$]*[`\"\\]]?)?"

var (
	reDropTable      = regexp.MustCompile(`(?i)\bDROP\s+TABLE\s+(?:IF\s+EXISTS\s+)?(` + identifier + `)`)
	reCreateTable    = regexp.MustCompile(`(?i)\bCREATE\s+TABLE\s+(?:IF\s+NOT\s+EXISTS\s+)?(` + identifier + `)`)
	reTruncate       = regexp.MustCompile(`(?i)\bTRUNCATE\s+TABLE\s+(` + identifier + `)`)
	reAlterTable     = regexp.MustCompile(`(?i)\bALTER\s+TABLE\s+(?:ONLY\s+)?(` + identifier + `)`)
	reDropColumn     = regexp.MustCompile(`(?i)\bDROP\s+COLUMN\s+(?:IF\s+EXISTS\s+)?(` + identifier + `)`)
	reAddColumn      = regexp.MustCompile(`(?i)\bADD\s+(?:COLUMN\s+)?(?:IF\s+NOT\s+EXISTS\s+)?(` + identifier + `)`)
	reDropConstraint = regexp.MustCompile(`(?i)\bDROP\s+CONSTRAINT\s+(?:IF\s+EXISTS\s+)?(` + identifier + `)`)
	reAddConstraint  = regexp.MustCompile(`(?i)\bADD\s+CONSTRAINT\s+(` + identifier + `)`)
	reDropPolicy     = regexp.MustCompile(`(?i)\bDROP\s+POLICY\s+(?:IF\s+EXISTS\s+)?(` + identifier + `)`)
	reAlterPolicy    = regexp.MustCompile(`(?i)\bALTER\s+POLICY\s+(` + identifier + `)`)
	reCreatePolicy   = regexp.MustCompile(`(?i)\bCREATE\s+POLICY\s+(` + identifier + `)`)
	reNotNull        = regexp.MustCompile(`(?i)\b(ALTER\s+COLUMN\s+(` + identifier + `)\s+SET\s+NOT\s+NULL|ADD\s+.*\bNOT\s+NULL)`)
	reTypeChange     = regexp.MustCompile(`(?i)\bALTER\s+COLUMN\s+(` + identifier + `)\s+(?:SET\s+DATA\s+)?TYPE\s+(\w+)\s*(?:\((\d+)[^)]*\))?`)

	reDML = regexp.MustCompile(`(?i)\b(INSERT\s+INTO|UPDATE\s+\S+\s+SET|DELETE\s+FROM)\b`)
	reDDL = regexp.MustCompile(`(?i)\b(CREATE|ALTER|DROP|TRUNCATE)\b`)
)

// narrowingTypes are target types that commonly lose precision or range
var narrowingTypes = map[string]bool{
	"smallint": true, "tinyint": true, "char": true, "varchar": true,
	"int": true, "integer": true, "real": true, "float": true,
}

// Analyzer scans changed SQL files matched by the configured glob
type Analyzer struct{}

// New creates a SQL migration analyzer
func New() *Analyzer {
	return &Analyzer{}
}

// Name implements analyzers.Analyzer
func (a *Analyzer) Name() string { return "sql" }

// CanHandle matches added or modified files against the SQL glob. Removed
// migrations are skipped: a deleted migration file says nothing about the
// schema at head.
func (a *Analyzer) CanHandle(file models.ChangedFile) bool {
	return file.Status != models.StatusRemoved && strings.HasSuffix(file.Path, ".sql")
}

// Analyze implements analyzers.Analyzer
func (a *Analyzer) Analyze(ctx context.Context, ac *analyzers.Context) ([]models.DriftFinding, error) {
	glob := ac.Config.SQLGlob
	if glob == "" {
		glob = "**/*.sql"
	}

	var findings []models.DriftFinding
	for _, file := range ac.ChangeSet.Files {
		if file.Status == models.StatusRemoved {
			continue
		}
		if !artifact.MatchGlob(glob, file.Path) {
			continue
		}

		content, err := ac.FetchHead(ctx, file.Path)
		if err != nil {
			ac.Logger.Warn("failed to fetch migration, skipping", "file", file.Path, "error", err)
			continue
		}
		if content == nil {
			ac.Logger.Info("migration absent at head", "file", file.Path)
			continue
		}

		if finding := a.analyzeFile(file.Path, string(content)); finding != nil {
			findings = append(findings, *finding)
		}
	}
	return findings, nil
}

// analyzeFile runs all detection passes over a single migration. Returns nil
// when the file is DML-only or yields no indicators.
func (a *Analyzer) analyzeFile(path, content string) *models.DriftFinding {
	if isDMLOnly(content) {
		return nil
	}

	var changes []string
	tables := map[string]bool{}

	dropped := map[string]bool{}
	for _, m := range reDropTable.FindAllStringSubmatch(content, -1) {
		table := cleanIdentifier(m[1])
		dropped[table] = true
		tables[table] = true
	}
	created := map[string]bool{}
	for _, m := range reCreateTable.FindAllStringSubmatch(content, -1) {
		table := cleanIdentifier(m[1])
		created[table] = true
		tables[table] = true
	}

	// A table both dropped and created in the same migration is a rename in
	// disguise; the schema may still differ, so it stays high-risk.
	var renamed []string
	for table := range dropped {
		if created[table] {
			renamed = append(renamed, table)
			delete(dropped, table)
		}
	}
	for table := range dropped {
		changes = append(changes, fmt.Sprintf("DROP TABLE: %s", table))
	}
	for _, table := range renamed {
		changes = append(changes, fmt.Sprintf("TABLE RENAME: %s (schema change)", table))
	}

	for _, m := range reTruncate.FindAllStringSubmatch(content, -1) {
		table := cleanIdentifier(m[1])
		tables[table] = true
		changes = append(changes, fmt.Sprintf("TRUNCATE TABLE: %s", table))
	}

	colDropped, colAdded := columnDeltas(content, tables)
	for table, nDropped := range colDropped {
		nAdded := colAdded[table]
		net := nDropped - nAdded
		switch {
		case net > 0:
			changes = append(changes, fmt.Sprintf("COLUMN LOSS: %s (net -%d columns)", table, net))
		case nAdded > 0:
			changes = append(changes, fmt.Sprintf("COLUMN RENAME: %s (%d dropped, %d added)", table, nDropped, nAdded))
		}
	}

	changes = append(changes, statementIndicators(content, tables)...)

	if len(changes) == 0 {
		return nil
	}

	result := risk.Score(changes, "database")

	var entities []string
	for table := range tables {
		entities = append(entities, table)
	}

	meta := &models.Metadata{TablesAnalyzed: countDistinct(dropped, created)}
	if len(renamed) == 1 {
		meta.Renamed = &models.RenameInfo{From: renamed[0], To: renamed[0]}
	}

	return &models.DriftFinding{
		Type:      models.FindingTypeDatabase,
		File:      artifact.NormalizePath(path),
		Severity:  result.Severity,
		Changes:   changes,
		Reasoning: result.Reasoning,
		Entities:  entities,
		Metadata:  meta,
	}
}

// statementIndicators captures the per-statement passes that need the
// enclosing ALTER TABLE context: column drops, constraints, policies, NOT
// NULL additions and type narrowing.
func statementIndicators(content string, tables map[string]bool) []string {
	var changes []string
	currentTable := ""

	for _, stmt := range splitStatements(content) {
		if m := reAlterTable.FindStringSubmatch(stmt); m != nil {
			currentTable = cleanIdentifier(m[1])
			tables[currentTable] = true
		}
		for _, m := range reDropColumn.FindAllStringSubmatch(stmt, -1) {
			col := cleanIdentifier(m[1])
			changes = append(changes, fmt.Sprintf("DROP COLUMN: %s.%s", currentTable, col))
		}
		for _, m := range reDropConstraint.FindAllStringSubmatch(stmt, -1) {
			changes = append(changes, fmt.Sprintf("DROP CONSTRAINT: %s", cleanIdentifier(m[1])))
		}
		for _, m := range reAddConstraint.FindAllStringSubmatch(stmt, -1) {
			changes = append(changes, fmt.Sprintf("ADD CONSTRAINT: %s", cleanIdentifier(m[1])))
		}
		for _, m := range reDropPolicy.FindAllStringSubmatch(stmt, -1) {
			changes = append(changes, fmt.Sprintf("DROP POLICY: %s", cleanIdentifier(m[1])))
		}
		for _, m := range reAlterPolicy.FindAllStringSubmatch(stmt, -1) {
			changes = append(changes, fmt.Sprintf("ALTER POLICY: %s", cleanIdentifier(m[1])))
		}
		for _, m := range reCreatePolicy.FindAllStringSubmatch(stmt, -1) {
			changes = append(changes, fmt.Sprintf("CREATE POLICY: %s", cleanIdentifier(m[1])))
		}
		if reNotNull.MatchString(stmt) && strings.Contains(strings.ToUpper(stmt), "ALTER") {
			changes = append(changes, fmt.Sprintf("NOT NULL: %s", currentTable))
		}
		for _, m := range reTypeChange.FindAllStringSubmatch(stmt, -1) {
			newType := strings.ToLower(m[2])
			if narrowingTypes[newType] {
				changes = append(changes, fmt.Sprintf("TYPE NARROWING: %s.%s -> %s", currentTable, cleanIdentifier(m[1]), newType))
			}
		}
	}
	return changes
}

// columnDeltas counts dropped and added columns per table, keyed by the last
// ALTER TABLE prefix seen before each match
func columnDeltas(content string, tables map[string]bool) (dropped, added map[string]int) {
	dropped = map[string]int{}
	added = map[string]int{}
	currentTable := ""

	for _, stmt := range splitStatements(content) {
		if m := reAlterTable.FindStringSubmatch(stmt); m != nil {
			currentTable = cleanIdentifier(m[1])
			tables[currentTable] = true
		}
		if currentTable == "" {
			continue
		}
		dropped[currentTable] += len(reDropColumn.FindAllString(stmt, -1))
		if strings.Contains(strings.ToUpper(stmt), "ALTER TABLE") {
			for _, m := range reAddColumn.FindAllStringSubmatch(stmt, -1) {
				if kw := strings.ToUpper(cleanIdentifier(m[1])); kw == "CONSTRAINT" || kw == "PRIMARY" || kw == "FOREIGN" || kw == "UNIQUE" || kw == "CHECK" {
					continue
				}
				added[currentTable]++
			}
		}
	}

	for table, n := range dropped {
		if n == 0 {
			delete(dropped, table)
		}
	}
	return dropped, added
}

// isDMLOnly reports whether a file contains data statements but no schema
// statements; such migrations are filtered from drift analysis
func isDMLOnly(content string) bool {
	return reDML.MatchString(content) && !reDDL.MatchString(content)
}

func splitStatements(content string) []string {
	return strings.Split(content, ";")
}

// cleanIdentifier strips quoting and bracket characters and lowercases; a
// schema qualifier is reduced to the bare object name
func cleanIdentifier(id string) string {
	id = strings.Trim(id, "`\"[]")
	if idx := strings.LastIndex(id, "."); idx >= 0 {
		id = id[idx+1:]
	}
	return strings.ToLower(strings.Trim(id, "`\"[]"))
}

func countDistinct(sets ...map[string]bool) int {
	seen := map[string]bool{}
	for _, set := range sets {
		for k := range set {
			seen[k] = true
		}
	}
	return len(seen)
}
