package configscan

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// packageManifest is the subset of package.json we consume
type packageManifest struct {
	Name            string            `json:"name"`
	License         string            `json:"license"`
	Dependencies    map[string]string `json:"dependencies"`
	DevDependencies map[string]string `json:"devDependencies"`
}

// vulnerableVersions is a short, fixed, transparent rule set. It is not an
// audit tool; matches come with a recommendation to run one. Expanding this
// list requires an explicit configuration surface, so it stays hardcoded.
var vulnerableVersions = []struct {
	name      string
	predicate func(v version) bool
}{
	{"event-stream", func(version) bool { return true }},
	{"flatmap-stream", func(version) bool { return true }},
	{"eslint-scope", func(v version) bool { return v.equals(version{3, 7, 2}) }},
	{"bootstrap", func(v version) bool { return v.less(version{3, 4, 0}) }},
	{"lodash", func(v version) bool { return v.less(version{4, 17, 11}) }},
}

// version is a parsed major.minor.patch triple
type version struct {
	major, minor, patch int
}

func (v version) equals(o version) bool {
	return v.major == o.major && v.minor == o.minor && v.patch == o.patch
}

// less compares numeric segments lexicographically
func (v version) less(o version) bool {
	if v.major != o.major {
		return v.major < o.major
	}
	if v.minor != o.minor {
		return v.minor < o.minor
	}
	return v.patch < o.patch
}

// parseVersion strips a single leading range prefix (^ ~ = v) and parses
// major.minor.patch. Missing segments default to zero.
func parseVersion(s string) (version, bool) {
	s = strings.TrimSpace(s)
	if len(s) > 0 && strings.ContainsAny(s[:1], "^~=v") {
		s = s[1:]
	}
	parts := strings.SplitN(s, "-", 2)[0] // drop prerelease
	segs := strings.Split(parts, ".")
	var v version
	nums := make([]int, 0, 3)
	for _, seg := range segs {
		n, err := strconv.Atoi(seg)
		if err != nil {
			return version{}, false
		}
		nums = append(nums, n)
	}
	if len(nums) == 0 {
		return version{}, false
	}
	v.major = nums[0]
	if len(nums) > 1 {
		v.minor = nums[1]
	}
	if len(nums) > 2 {
		v.patch = nums[2]
	}
	return v, true
}

// DiffManifest compares two package manifests and emits dependency and
// license change indicators
func DiffManifest(baseRaw, headRaw []byte) ([]string, error) {
	var base, head packageManifest
	if err := json.Unmarshal(baseRaw, &base); err != nil {
		return nil, fmt.Errorf("parse base manifest: %w", err)
	}
	if err := json.Unmarshal(headRaw, &head); err != nil {
		return nil, fmt.Errorf("parse head manifest: %w", err)
	}

	baseDeps := mergeDeps(base.Dependencies, base.DevDependencies)
	headDeps := mergeDeps(head.Dependencies, head.DevDependencies)

	var changes []string
	for _, name := range sortedDepNames(headDeps) {
		headVer := headDeps[name]
		baseVer, existed := baseDeps[name]
		if !existed {
			changes = append(changes, fmt.Sprintf("DEPENDENCY_ADDED: %s@%s", name, headVer))
			changes = append(changes, vulnerabilityIndicators(name, headVer)...)
			continue
		}
		if baseVer != headVer {
			changes = append(changes, versionIndicator(name, baseVer, headVer))
			changes = append(changes, vulnerabilityIndicators(name, headVer)...)
		}
	}
	for _, name := range sortedDepNames(baseDeps) {
		if _, exists := headDeps[name]; !exists {
			changes = append(changes, fmt.Sprintf("DEPENDENCY_REMOVED: %s", name))
		}
	}

	if base.License != head.License && (base.License != "" || head.License != "") {
		changes = append(changes, fmt.Sprintf("LICENSE_CHANGE: %s -> %s", base.License, head.License))
	}
	return changes, nil
}

// versionIndicator classifies a version change by its first differing
// segment
func versionIndicator(name, from, to string) string {
	fromV, okFrom := parseVersion(from)
	toV, okTo := parseVersion(to)
	if !okFrom || !okTo {
		return fmt.Sprintf("DEPENDENCY_VERSION_CHANGED: %s %s -> %s", name, from, to)
	}
	switch {
	case fromV.major != toV.major:
		return fmt.Sprintf("MAJOR_VERSION_BUMP: %s %s -> %s", name, from, to)
	case fromV.minor != toV.minor:
		return fmt.Sprintf("MINOR_VERSION_BUMP: %s %s -> %s", name, from, to)
	default:
		return fmt.Sprintf("PATCH: %s %s -> %s", name, from, to)
	}
}

// vulnerabilityIndicators checks a dependency against the fixed rule set
func vulnerabilityIndicators(name, versionStr string) []string {
	v, ok := parseVersion(versionStr)
	if !ok {
		v = version{}
	}
	for _, rule := range vulnerableVersions {
		if rule.name == name && rule.predicate(v) {
			return []string{
				fmt.Sprintf("SECURITY_VULNERABILITY: %s", name),
				fmt.Sprintf("SECURITY_RECOMMENDATION: run a full dependency audit (npm audit) for %s@%s", name, versionStr),
			}
		}
	}
	return nil
}

func mergeDeps(maps ...map[string]string) map[string]string {
	out := map[string]string{}
	for _, m := range maps {
		for k, v := range m {
			out[k] = v
		}
	}
	return out
}

func sortedDepNames(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
