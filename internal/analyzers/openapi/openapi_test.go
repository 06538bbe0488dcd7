package openapi

import (
	"context"
	"log/slog"
	"testing"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftgate/driftgate/internal/analyzers"
	"github.com/driftgate/driftgate/internal/config"
	"github.com/driftgate/driftgate/internal/models"
)

const baseSpec = `openapi: 3.0.0
info:
  title: Users API
  version: 1.0.0
paths:
  /users:
    get:
      summary: List users
      responses:
        '200':
          description: OK
  /users/{id}:
    get:
      summary: Get one user
      parameters:
        - name: id
          in: path
          required: true
          schema:
            type: string
      responses:
        '200':
          description: OK
`

const headSpecWithoutGetOne = `openapi: 3.0.0
info:
  title: Users API
  version: 1.0.0
paths:
  /users:
    get:
      summary: List users
      responses:
        '200':
          description: OK
`

// mapFetcher serves content from a map keyed by "ref:path"
type mapFetcher map[string][]byte

func (m mapFetcher) Fetch(_ context.Context, path, ref string) ([]byte, error) {
	return m[ref+":"+path], nil
}

func testContext(files mapFetcher, changed ...models.ChangedFile) *analyzers.Context {
	return &analyzers.Context{
		ChangeSet: &models.ChangeSet{BaseRef: "base", HeadRef: "head", Files: changed},
		Fetcher:   files,
		Config:    config.Default(),
		Logger:    slog.Default(),
	}
}

func TestAnalyzeSpecDeleted(t *testing.T) {
	ac := testContext(
		mapFetcher{"base:openapi.yaml": []byte(baseSpec)},
		models.ChangedFile{Path: "openapi.yaml", Status: models.StatusRemoved},
	)

	findings, err := New().Analyze(context.Background(), ac)
	require.NoError(t, err)
	require.Len(t, findings, 1)

	f := findings[0]
	assert.Equal(t, models.FindingTypeAPI, f.Type)
	assert.Equal(t, models.SeverityHigh, f.Severity)
	assert.Equal(t, []string{"API_DELETION: OpenAPI specification was deleted"}, f.Changes)
	assert.Contains(t, f.Endpoints, "GET:/users")
	assert.Contains(t, f.Endpoints, "GET:/users/{id}")
}

func TestAnalyzeSpecAdded(t *testing.T) {
	ac := testContext(
		mapFetcher{"head:openapi.yaml": []byte(baseSpec)},
		models.ChangedFile{Path: "openapi.yaml", Status: models.StatusAdded},
	)

	findings, err := New().Analyze(context.Background(), ac)
	require.NoError(t, err)
	require.Len(t, findings, 1)
	assert.Equal(t, models.SeverityLow, findings[0].Severity)
	assert.Equal(t, []string{"New OpenAPI specification added"}, findings[0].Changes)
}

func TestAnalyzeEndpointRemoved(t *testing.T) {
	ac := testContext(
		mapFetcher{
			"base:openapi.yaml": []byte(baseSpec),
			"head:openapi.yaml": []byte(headSpecWithoutGetOne),
		},
		models.ChangedFile{Path: "openapi.yaml", Status: models.StatusModified},
	)

	findings, err := New().Analyze(context.Background(), ac)
	require.NoError(t, err)
	require.Len(t, findings, 1)

	f := findings[0]
	assert.Equal(t, models.SeverityHigh, f.Severity)
	assert.Contains(t, f.Changes, "BREAKING_CHANGE: /paths/users/{id}/get")
	assert.Contains(t, f.Endpoints, "GET:/users/{id}")
}

func TestAnalyzeUnparseableSpecFallsBack(t *testing.T) {
	ac := testContext(
		mapFetcher{
			"base:openapi.yaml": []byte("not: [valid"),
			"head:openapi.yaml": []byte("also not valid {{{"),
		},
		models.ChangedFile{Path: "openapi.yaml", Status: models.StatusModified},
	)

	findings, err := New().Analyze(context.Background(), ac)
	require.NoError(t, err)
	require.Len(t, findings, 1)
	assert.Equal(t, []string{"OpenAPI specification changes detected (fallback detection)"}, findings[0].Changes)
	assert.Equal(t, models.SeverityLow, findings[0].Severity)
}

func TestAnalyzeRenameDetection(t *testing.T) {
	cfg := config.Default()
	cfg.OpenAPIPath = "api/openapi.yaml"
	ac := &analyzers.Context{
		ChangeSet: &models.ChangeSet{
			BaseRef: "base",
			HeadRef: "head",
			Files: []models.ChangedFile{
				{Path: "docs/swagger.yaml", Status: models.StatusRemoved},
				{Path: "api/spec.yaml", Status: models.StatusAdded},
			},
		},
		Fetcher: mapFetcher{
			"base:docs/swagger.yaml": []byte(baseSpec),
			"head:api/spec.yaml":     []byte(headSpecWithoutGetOne),
		},
		Config: cfg,
		Logger: slog.Default(),
	}

	findings, err := New().Analyze(context.Background(), ac)
	require.NoError(t, err)
	require.Len(t, findings, 1)
	require.NotNil(t, findings[0].Metadata)
	require.NotNil(t, findings[0].Metadata.Renamed)
	assert.Equal(t, "docs/swagger.yaml", findings[0].Metadata.Renamed.From)
	assert.Equal(t, "api/spec.yaml", findings[0].Metadata.Renamed.To)
}

func TestAnalyzeRemovedSpecWithoutAddedCounterpart(t *testing.T) {
	cfg := config.Default()
	cfg.OpenAPIPath = "api/openapi.yaml"
	ac := &analyzers.Context{
		ChangeSet: &models.ChangeSet{
			BaseRef: "base",
			HeadRef: "head",
			Files:   []models.ChangedFile{{Path: "docs/swagger.yaml", Status: models.StatusRemoved}},
		},
		Fetcher: mapFetcher{"base:docs/swagger.yaml": []byte(baseSpec)},
		Config:  cfg,
		Logger:  slog.Default(),
	}

	findings, err := New().Analyze(context.Background(), ac)
	require.NoError(t, err)
	assert.Empty(t, findings, "no added counterpart, so this is not a rename of the configured spec")
}

func TestDiffParameterRequired(t *testing.T) {
	loader := openapi3.NewLoader()
	base, err := loader.LoadFromData([]byte(baseSpec))
	require.NoError(t, err)

	head, err := loader.LoadFromData([]byte(headSpecWithoutGetOne))
	require.NoError(t, err)

	diff := Diff(base, head)
	require.NotEmpty(t, diff)
	assert.Equal(t, "endpoint_removed", diff[0].Type)
	assert.True(t, diff[0].Breaking)

	changes, endpoints := ClassifyChanges(diff)
	assert.Contains(t, changes, "BREAKING_CHANGE: /paths/users/{id}/get")
	assert.Contains(t, endpoints, "GET:/users/{id}")
}
