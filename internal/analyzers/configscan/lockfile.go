package configscan

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// lockfile covers both npm lockfile schema shapes: the v1 "dependencies"
// map and the v2/v3 "packages" map keyed by node_modules path
type lockfile struct {
	Dependencies map[string]lockEntry `json:"dependencies"`
	Packages     map[string]lockEntry `json:"packages"`
}

type lockEntry struct {
	Version   string `json:"version"`
	Integrity string `json:"integrity"`
}

// DiffLockfile compares lockfile revisions. A nil base means the lockfile
// is new. Emits transitive-change counts, transitive major bumps, integrity
// mismatches and vulnerable transitive packages.
func DiffLockfile(file string, baseRaw, headRaw []byte) ([]string, error) {
	head, err := parseLockfile(headRaw)
	if err != nil {
		return nil, fmt.Errorf("parse head lockfile: %w", err)
	}
	if baseRaw == nil {
		return []string{fmt.Sprintf("NEW_LOCK_FILE: %s created", file)}, nil
	}
	base, err := parseLockfile(baseRaw)
	if err != nil {
		return nil, fmt.Errorf("parse base lockfile: %w", err)
	}

	var changes []string
	changed := 0
	integrityMismatches := 0

	for _, name := range sortedLockNames(head) {
		headEntry := head[name]
		baseEntry, existed := base[name]
		if !existed {
			changed++
			changes = append(changes, vulnerabilityIndicators(name, headEntry.Version)...)
			continue
		}
		if baseEntry.Version != headEntry.Version {
			changed++
			baseV, okBase := parseVersion(baseEntry.Version)
			headV, okHead := parseVersion(headEntry.Version)
			if okBase && okHead && baseV.major != headV.major {
				changes = append(changes, fmt.Sprintf("TRANSITIVE_MAJOR_BUMP: %s", name))
			}
			changes = append(changes, vulnerabilityIndicators(name, headEntry.Version)...)
			continue
		}
		// Same version, different checksum: the published artifact changed
		// under our feet.
		if baseEntry.Integrity != "" && headEntry.Integrity != "" && baseEntry.Integrity != headEntry.Integrity {
			integrityMismatches++
		}
	}
	for name := range base {
		if _, exists := head[name]; !exists {
			changed++
		}
	}

	if changed > 0 {
		changes = append(changes, fmt.Sprintf("TRANSITIVE_DEPENDENCIES_CHANGED: %d packages", changed))
	}
	if integrityMismatches > 0 {
		changes = append(changes, fmt.Sprintf("INTEGRITY_MISMATCH: %d packages have different checksums", integrityMismatches))
	}
	return changes, nil
}

// parseLockfile normalizes both schema shapes into a name → entry map
func parseLockfile(raw []byte) (map[string]lockEntry, error) {
	var lf lockfile
	if err := json.Unmarshal(raw, &lf); err != nil {
		return nil, err
	}
	out := map[string]lockEntry{}
	for name, entry := range lf.Dependencies {
		out[name] = entry
	}
	for path, entry := range lf.Packages {
		if path == "" {
			continue // the root project entry
		}
		name := strings.TrimPrefix(path, "node_modules/")
		if idx := strings.LastIndex(name, "node_modules/"); idx >= 0 {
			name = name[idx+len("node_modules/"):]
		}
		out[name] = entry
	}
	return out, nil
}

func sortedLockNames(m map[string]lockEntry) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
