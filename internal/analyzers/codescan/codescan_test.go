package codescan

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftgate/driftgate/internal/analyzers"
	"github.com/driftgate/driftgate/internal/config"
	"github.com/driftgate/driftgate/internal/models"
)

func TestDetectLanguage(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"src/routes/users.js", "javascript"},
		{"src/app.ts", "typescript"},
		{"src/App.tsx", "tsx"},
		{"api/views.py", "python"},
		{"internal/server/server.go", "go"},
		{"src/main/java/UserController.java", "java"},
		{"src/main/kotlin/UserController.kt", "kotlin"},
		{"README.md", ""},
		{"schema.sql", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, DetectLanguage(tt.path), tt.path)
	}
}

const jsUserRoutes = `const express = require('express');
const router = express.Router();

const getUserById = async (req, res) => {
  const user = await prisma.user.findUnique({ where: { id: req.params.id } });
  res.json(user);
};

async function listOrders(req, res) {
  const rows = await db.query('SELECT id, total FROM orders WHERE user_id = $1', [req.params.id]);
  res.json(rows);
}

router.get('/users/:id', getUserById);
router.get('/users/:id/orders', listOrders);
router.post('/users', userController.createUser);
`

func TestExtractJavaScriptRoutesAndORM(t *testing.T) {
	fa, err := extractFile("src/routes/users.js", "javascript", []byte(jsUserRoutes))
	require.NoError(t, err)

	require.Len(t, fa.Handlers, 3)
	assert.Equal(t, Handler{
		Method: "GET", Path: "/users/:id", File: "src/routes/users.js",
		Symbol: "getUserById", Line: 14,
	}, fa.Handlers[0])
	assert.Equal(t, "listOrders", fa.Handlers[1].Symbol)
	assert.Equal(t, "createUser", fa.Handlers[2].Symbol, "member expression handler binds its property name")

	var prismaRef, rawRef *DBRef
	for i := range fa.DBRefs {
		switch fa.DBRefs[i].ORM {
		case "prisma":
			prismaRef = &fa.DBRefs[i]
		case "raw":
			rawRef = &fa.DBRefs[i]
		}
	}
	require.NotNil(t, prismaRef)
	assert.Equal(t, "user", prismaRef.Table)
	assert.Equal(t, "SELECT", prismaRef.Op)
	assert.Equal(t, "getUserById", prismaRef.Symbol)
	assert.True(t, prismaRef.Inferred)

	require.NotNil(t, rawRef)
	assert.Equal(t, "orders", rawRef.Table)
	assert.Equal(t, "SELECT", rawRef.Op)
	assert.Equal(t, "listOrders", rawRef.Symbol)
	assert.False(t, rawRef.Inferred)

	var sources []string
	for _, imp := range fa.Imports {
		sources = append(sources, imp.Source)
	}
	assert.Contains(t, sources, "express")
}

const pyViews = `from flask import Flask

app = Flask(__name__)

@app.route('/users/<id>', methods=['GET', 'DELETE'])
def user_detail(id):
    cursor.execute('SELECT name FROM users WHERE id = %s', (id,))
    return jsonify(cursor.fetchone())
`

func TestExtractPythonFlask(t *testing.T) {
	fa, err := extractFile("api/views.py", "python", []byte(pyViews))
	require.NoError(t, err)

	methods := map[string]bool{}
	for _, h := range fa.Handlers {
		assert.Equal(t, "/users/<id>", h.Path)
		assert.Equal(t, "user_detail", h.Symbol)
		methods[h.Method] = true
	}
	assert.True(t, methods["GET"])
	assert.True(t, methods["DELETE"])

	require.NotEmpty(t, fa.DBRefs)
	assert.Equal(t, "users", fa.DBRefs[0].Table)
	assert.Equal(t, "SELECT", fa.DBRefs[0].Op)
}

const goServer = `package server

func registerRoutes(r *gin.Engine) {
	r.GET("/users/:id", getUser)
}

func getUser(c *gin.Context) {
	row := db.QueryRow("SELECT name FROM users WHERE id = $1", c.Param("id"))
	_ = row
}
`

func TestExtractGoRoutesAndSQL(t *testing.T) {
	fa, err := extractFile("internal/server/routes.go", "go", []byte(goServer))
	require.NoError(t, err)

	require.Len(t, fa.Handlers, 1)
	assert.Equal(t, "GET", fa.Handlers[0].Method)
	assert.Equal(t, "/users/:id", fa.Handlers[0].Path)
	assert.Equal(t, "getUser", fa.Handlers[0].Symbol)

	require.NotEmpty(t, fa.DBRefs)
	assert.Equal(t, "users", fa.DBRefs[0].Table)
	assert.Equal(t, "getUser", fa.DBRefs[0].Symbol)
}

const ktController = `@RestController
class UserController(private val jdbc: JdbcTemplate) {

    @GetMapping("/users/{id}")
    fun getUser(@PathVariable id: Long): User {
        return jdbc.queryForObject("SELECT name, email FROM users WHERE id = ?", id)
    }
}
`

func TestExtractKotlinRegexFallback(t *testing.T) {
	fa, err := extractFile("src/main/kotlin/UserController.kt", "kotlin", []byte(ktController))
	require.NoError(t, err)

	require.Len(t, fa.Handlers, 1)
	assert.Equal(t, "GET", fa.Handlers[0].Method)
	assert.Equal(t, "/users/{id}", fa.Handlers[0].Path)

	require.Len(t, fa.DBRefs, 1)
	assert.Equal(t, "users", fa.DBRefs[0].Table)
	assert.Equal(t, "getUser", fa.DBRefs[0].Symbol)
}

func TestHandlerTablesConfidence(t *testing.T) {
	analysis := NewAnalysis()
	analysis.Files["routes.js"] = &FileAnalysis{
		File: "routes.js",
		Handlers: []Handler{
			{Method: "GET", Path: "/users/:id", Symbol: "getUserById", File: "routes.js", Line: 3},
		},
		DBRefs: []DBRef{
			{ORM: "prisma", Table: "user", Op: "SELECT", Symbol: "getUserById", File: "routes.js", Line: 5, Inferred: true},
		},
		Calls: []Call{
			{Caller: "getUserById", Callee: "loadProfile", Line: 6},
		},
	}
	analysis.Files["profile.js"] = &FileAnalysis{
		File: "profile.js",
		DBRefs: []DBRef{
			{ORM: "raw", Table: "profiles", Op: "SELECT", Symbol: "loadProfile", File: "profile.js", Line: 10},
		},
		Calls: []Call{
			{Caller: "loadProfile", Callee: "auditAccess", Line: 11},
		},
	}
	analysis.Files["audit.js"] = &FileAnalysis{
		File: "audit.js",
		DBRefs: []DBRef{
			{ORM: "raw", Table: "audit_log", Op: "INSERT", Symbol: "auditAccess", File: "audit.js", Line: 4},
		},
	}

	accesses := analysis.HandlerTables()
	byTable := map[string]TableAccess{}
	for _, ta := range accesses {
		byTable[ta.Table] = ta
	}
	require.Len(t, byTable, 3)

	// direct ORM call in the handler body, with the inferred penalty
	assert.InDelta(t, 0.85, byTable["user"].Confidence, 1e-9)
	// one hop away
	assert.InDelta(t, 0.80, byTable["profiles"].Confidence, 1e-9)
	// two hops away
	assert.InDelta(t, 0.70, byTable["audit_log"].Confidence, 1e-9)
}

func TestHandlerTablesStopsAtDepthTwo(t *testing.T) {
	analysis := NewAnalysis()
	analysis.Files["a.js"] = &FileAnalysis{
		File:     "a.js",
		Handlers: []Handler{{Method: "GET", Path: "/x", Symbol: "h"}},
		Calls: []Call{
			{Caller: "h", Callee: "b"},
			{Caller: "b", Callee: "c"},
			{Caller: "c", Callee: "d"},
		},
		DBRefs: []DBRef{
			{ORM: "raw", Table: "too_deep", Op: "SELECT", Symbol: "d"},
		},
	}
	assert.Empty(t, analysis.HandlerTables())
}

func TestAnalyzeProducesAPIFindings(t *testing.T) {
	fetcher := mapFetcher{"head:src/routes/users.js": []byte(jsUserRoutes)}
	ac := &analyzers.Context{
		ChangeSet: &models.ChangeSet{
			BaseRef: "base",
			HeadRef: "head",
			Files: []models.ChangedFile{
				{Path: "src/routes/users.js", Status: models.StatusModified},
				{Path: "README.md", Status: models.StatusModified},
			},
		},
		Fetcher: fetcher,
		Config:  config.Default(),
		Logger:  slog.Default(),
	}

	a := New()
	findings, err := a.Analyze(context.Background(), ac)
	require.NoError(t, err)
	require.Len(t, findings, 1)

	f := findings[0]
	assert.Equal(t, models.FindingTypeAPI, f.Type)
	assert.Equal(t, "src/routes/users.js", f.File)
	assert.Contains(t, f.Changes, "API_HANDLER_MODIFIED: GET /users/:id")
	assert.Contains(t, f.Endpoints, "GET:/users/:id")
	assert.Contains(t, f.Entities, "getUserById")

	// the analysis survives for the correlation pass
	require.NotNil(t, a.Analysis())
	assert.NotEmpty(t, a.Analysis().AllHandlers())
}

// mapFetcher serves content from a map keyed by "ref:path"
type mapFetcher map[string][]byte

func (m mapFetcher) Fetch(_ context.Context, path, ref string) ([]byte, error) {
	return m[ref+":"+path], nil
}

func TestAnalyzeCacheHitKeepsOwnPath(t *testing.T) {
	fetcher := mapFetcher{
		"head:src/routes/users.js":  []byte(jsUserRoutes),
		"head:src/routes/legacy.js": []byte(jsUserRoutes),
	}
	ac := &analyzers.Context{
		ChangeSet: &models.ChangeSet{
			BaseRef: "base",
			HeadRef: "head",
			Files: []models.ChangedFile{
				{Path: "src/routes/users.js", Status: models.StatusModified},
				{Path: "src/routes/legacy.js", Status: models.StatusModified},
			},
		},
		Fetcher: fetcher,
		Config:  config.Default(),
		Logger:  slog.Default(),
	}

	a := New()
	_, err := a.Analyze(context.Background(), ac)
	require.NoError(t, err)

	// identical content at two paths shares one cache entry, but each file's
	// evidence must carry its own path
	for _, path := range []string{"src/routes/users.js", "src/routes/legacy.js"} {
		fa := a.Analysis().Files[path]
		require.NotNil(t, fa)
		assert.Equal(t, path, fa.File)
		require.NotEmpty(t, fa.Handlers)
		for _, h := range fa.Handlers {
			assert.Equal(t, path, h.File)
		}
		require.NotEmpty(t, fa.DBRefs)
		for _, ref := range fa.DBRefs {
			assert.Equal(t, path, ref.File)
		}
	}
}

func TestAnalysisCache(t *testing.T) {
	c := newAnalysisCache()
	code := []byte("const x = 1;")
	fa := &FileAnalysis{File: "x.js", Language: "javascript"}

	_, ok := c.get("javascript", code)
	assert.False(t, ok)

	c.put("javascript", code, fa)
	got, ok := c.get("javascript", code)
	require.True(t, ok)
	assert.Same(t, fa, got)

	_, ok = c.get("typescript", code)
	assert.False(t, ok, "cache key includes the language")
}
