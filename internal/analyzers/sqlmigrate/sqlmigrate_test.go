package sqlmigrate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftgate/driftgate/internal/models"
)

func TestAnalyzeFileDropTable(t *testing.T) {
	a := New()
	finding := a.analyzeFile("migrations/002_drop.sql", "DROP TABLE users;")
	require.NotNil(t, finding)
	assert.Equal(t, models.FindingTypeDatabase, finding.Type)
	assert.Equal(t, models.SeverityHigh, finding.Severity)
	assert.Contains(t, finding.Changes, "DROP TABLE: users")
	assert.Contains(t, finding.Entities, "users")
}

func TestAnalyzeFileDMLOnlyIsFiltered(t *testing.T) {
	a := New()
	content := `INSERT INTO users (name) VALUES ('a');
UPDATE users SET name = 'b' WHERE id = 1;
DELETE FROM sessions WHERE expired = true;`
	assert.Nil(t, a.analyzeFile("migrations/seed.sql", content))
}

func TestAnalyzeFileRenameHeuristic(t *testing.T) {
	a := New()
	content := `DROP TABLE orders;
CREATE TABLE orders (
  id bigint PRIMARY KEY,
  total numeric
);`
	finding := a.analyzeFile("migrations/003_recreate.sql", content)
	require.NotNil(t, finding)
	assert.Contains(t, finding.Changes, "TABLE RENAME: orders (schema change)")
	assert.NotContains(t, finding.Changes, "DROP TABLE: orders")
	// recreate is still a drop underneath
	assert.Equal(t, models.SeverityHigh, finding.Severity)
	require.NotNil(t, finding.Metadata)
	require.NotNil(t, finding.Metadata.Renamed)
}

func TestAnalyzeFileColumnLoss(t *testing.T) {
	a := New()
	content := `ALTER TABLE users DROP COLUMN email;
ALTER TABLE users DROP COLUMN phone;`
	finding := a.analyzeFile("migrations/004_trim.sql", content)
	require.NotNil(t, finding)
	assert.Contains(t, finding.Changes, "COLUMN LOSS: users (net -2 columns)")
}

func TestAnalyzeFileColumnRename(t *testing.T) {
	a := New()
	content := `ALTER TABLE users DROP COLUMN email, ADD COLUMN email_address varchar(255);`
	finding := a.analyzeFile("migrations/005_rename_col.sql", content)
	require.NotNil(t, finding)
	assert.Contains(t, finding.Changes, "COLUMN RENAME: users (1 dropped, 1 added)")
}

func TestAnalyzeFileConstraintAndNarrowing(t *testing.T) {
	a := New()
	content := `ALTER TABLE accounts ALTER COLUMN balance TYPE smallint;
ALTER TABLE accounts ADD CONSTRAINT chk_balance CHECK (balance >= 0);`
	finding := a.analyzeFile("migrations/006_tighten.sql", content)
	require.NotNil(t, finding)
	assert.Contains(t, finding.Changes, "TYPE NARROWING: accounts.balance -> smallint")
	assert.Contains(t, finding.Changes, "ADD CONSTRAINT: chk_balance")
	assert.Equal(t, models.SeverityMedium, finding.Severity)
}

func TestAnalyzeFileQuotedIdentifiers(t *testing.T) {
	a := New()
	finding := a.analyzeFile("m.sql", `DROP TABLE IF EXISTS "public"."User_Sessions";`)
	require.NotNil(t, finding)
	assert.Contains(t, finding.Changes, "DROP TABLE: user_sessions")
}

func TestTablesInSQL(t *testing.T) {
	refs := TablesInSQL(`SELECT u.id FROM users u JOIN orders o ON o.user_id = u.id`)
	tables := map[string]string{}
	for _, r := range refs {
		tables[r.Table] = r.Op
	}
	assert.Equal(t, "SELECT", tables["users"])
	assert.Equal(t, "SELECT", tables["orders"])

	refs = TablesInSQL(`INSERT INTO audit_log (msg) VALUES ($1)`)
	require.Len(t, refs, 1)
	assert.Equal(t, TableRef{Table: "audit_log", Op: "INSERT"}, refs[0])

	refs = TablesInSQL(`UPDATE users SET name = $1 WHERE id = $2`)
	require.Len(t, refs, 1)
	assert.Equal(t, TableRef{Table: "users", Op: "UPDATE"}, refs[0])
}

func TestLooksLikeSQL(t *testing.T) {
	assert.True(t, LooksLikeSQL("SELECT * FROM users WHERE id = ?"))
	assert.True(t, LooksLikeSQL("delete from sessions where expired"))
	assert.False(t, LooksLikeSQL("hello world"))
	assert.False(t, LooksLikeSQL("/v1/users/:id"))
}
