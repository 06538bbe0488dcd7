package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/driftgate/driftgate/internal/models"
)

// Local serves file content from two checked-out directories, one per
// revision. Any ref other than the base ref reads from the head directory.
type Local struct {
	BaseDir string
	HeadDir string
	BaseRef string
}

// NewLocal creates a local fetcher over two directories
func NewLocal(baseDir, headDir, baseRef string) *Local {
	return &Local{BaseDir: baseDir, HeadDir: headDir, BaseRef: baseRef}
}

// Fetch implements models.ContentFetcher
func (l *Local) Fetch(_ context.Context, path, ref string) ([]byte, error) {
	dir := l.HeadDir
	if ref == l.BaseRef {
		dir = l.BaseDir
	}
	content, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(path)))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s@%s: %w", path, ref, err)
	}
	return content, nil
}

// ChangeSet enumerates the delta between the two directories
func (l *Local) ChangeSet() (*models.ChangeSet, error) {
	baseFiles, err := listFiles(l.BaseDir)
	if err != nil {
		return nil, fmt.Errorf("walk base dir: %w", err)
	}
	headFiles, err := listFiles(l.HeadDir)
	if err != nil {
		return nil, fmt.Errorf("walk head dir: %w", err)
	}

	cs := &models.ChangeSet{BaseRef: "base", HeadRef: "head"}
	if l.BaseRef != "" {
		cs.BaseRef = l.BaseRef
	}

	paths := map[string]bool{}
	for p := range baseFiles {
		paths[p] = true
	}
	for p := range headFiles {
		paths[p] = true
	}
	sorted := make([]string, 0, len(paths))
	for p := range paths {
		sorted = append(sorted, p)
	}
	sort.Strings(sorted)

	for _, p := range sorted {
		inBase, inHead := baseFiles[p], headFiles[p]
		switch {
		case inBase && !inHead:
			cs.Files = append(cs.Files, models.ChangedFile{Path: p, Status: models.StatusRemoved})
		case !inBase && inHead:
			cs.Files = append(cs.Files, models.ChangedFile{Path: p, Status: models.StatusAdded})
		default:
			same, err := sameContent(filepath.Join(l.BaseDir, p), filepath.Join(l.HeadDir, p))
			if err != nil {
				return nil, err
			}
			if !same {
				cs.Files = append(cs.Files, models.ChangedFile{Path: p, Status: models.StatusModified})
			}
		}
	}
	return cs, nil
}

// ChangeSetFromJSON reads a change-set descriptor from a JSON file
func ChangeSetFromJSON(path string) (*models.ChangeSet, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read change set %s: %w", path, err)
	}
	var cs models.ChangeSet
	if err := json.Unmarshal(raw, &cs); err != nil {
		return nil, fmt.Errorf("parse change set %s: %w", path, err)
	}
	return &cs, nil
}

func listFiles(dir string) (map[string]bool, error) {
	out := map[string]bool{}
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		out[filepath.ToSlash(rel)] = true
		return nil
	})
	return out, err
}

func sameContent(a, b string) (bool, error) {
	ca, err := os.ReadFile(a)
	if err != nil {
		return false, err
	}
	cb, err := os.ReadFile(b)
	if err != nil {
		return false, err
	}
	return string(ca) == string(cb), nil
}
