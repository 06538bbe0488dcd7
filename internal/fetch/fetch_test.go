package fetch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftgate/driftgate/internal/models"
)

func writeFiles(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for p, content := range files {
		full := filepath.Join(dir, filepath.FromSlash(p))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
	}
}

func TestLocalChangeSet(t *testing.T) {
	baseDir := t.TempDir()
	headDir := t.TempDir()
	writeFiles(t, baseDir, map[string]string{
		"migrations/001_init.sql": "CREATE TABLE users (id int);",
		"openapi.yaml":            "openapi: 3.0.0",
		"deleted.txt":             "gone",
	})
	writeFiles(t, headDir, map[string]string{
		"migrations/001_init.sql": "CREATE TABLE users (id int);",
		"openapi.yaml":            "openapi: 3.0.1",
		"added.txt":               "new",
	})

	l := NewLocal(baseDir, headDir, "main")
	cs, err := l.ChangeSet()
	require.NoError(t, err)

	assert.Equal(t, "main", cs.BaseRef)
	assert.Equal(t, []models.ChangedFile{
		{Path: "added.txt", Status: models.StatusAdded},
		{Path: "deleted.txt", Status: models.StatusRemoved},
		{Path: "openapi.yaml", Status: models.StatusModified},
	}, cs.Files)
}

func TestLocalFetchPerRevision(t *testing.T) {
	baseDir := t.TempDir()
	headDir := t.TempDir()
	writeFiles(t, baseDir, map[string]string{"a.txt": "base content"})
	writeFiles(t, headDir, map[string]string{"a.txt": "head content"})

	l := NewLocal(baseDir, headDir, "main")
	ctx := context.Background()

	base, err := l.Fetch(ctx, "a.txt", "main")
	require.NoError(t, err)
	assert.Equal(t, "base content", string(base))

	head, err := l.Fetch(ctx, "a.txt", "feature")
	require.NoError(t, err)
	assert.Equal(t, "head content", string(head))

	missing, err := l.Fetch(ctx, "nope.txt", "feature")
	require.NoError(t, err, "a missing file is a domain signal, not an error")
	assert.Nil(t, missing)
}

func TestChangeSetFromJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "changes.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"base_ref": "main",
		"head_ref": "feature",
		"files": [
			{"path": "migrations/002.sql", "status": "added"},
			{"path": "openapi.yaml", "status": "modified"}
		]
	}`), 0o644))

	cs, err := ChangeSetFromJSON(path)
	require.NoError(t, err)
	assert.Equal(t, "main", cs.BaseRef)
	require.Len(t, cs.Files, 2)
	assert.Equal(t, models.StatusAdded, cs.Files[0].Status)

	_, err = ChangeSetFromJSON(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

type funcFetcher func(ctx context.Context, path, ref string) ([]byte, error)

func (f funcFetcher) Fetch(ctx context.Context, path, ref string) ([]byte, error) {
	return f(ctx, path, ref)
}

func TestBoundedTreatsTimeoutAsAbsent(t *testing.T) {
	inner := funcFetcher(func(ctx context.Context, path, ref string) ([]byte, error) {
		return nil, context.DeadlineExceeded
	})
	b := NewBounded(inner, 2, time.Second, nil)

	content, err := b.Fetch(context.Background(), "a.txt", "head")
	require.NoError(t, err)
	assert.Nil(t, content)
}

func TestBoundedPropagatesRealErrors(t *testing.T) {
	boom := errors.New("network unreachable")
	inner := funcFetcher(func(ctx context.Context, path, ref string) ([]byte, error) {
		return nil, boom
	})
	b := NewBounded(inner, 2, time.Second, nil)

	_, err := b.Fetch(context.Background(), "a.txt", "head")
	assert.ErrorIs(t, err, boom)
}

func TestBoundedDelegates(t *testing.T) {
	inner := funcFetcher(func(ctx context.Context, path, ref string) ([]byte, error) {
		return []byte(ref + ":" + path), nil
	})
	b := NewBounded(inner, 0, 0, nil)

	content, err := b.Fetch(context.Background(), "a.txt", "head")
	require.NoError(t, err)
	assert.Equal(t, "head:a.txt", string(content))
}
