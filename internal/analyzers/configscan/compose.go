package configscan

import (
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"
)

// composeFile is the subset of a docker-compose file we consume
type composeFile struct {
	Services map[string]any `yaml:"services"`
}

// DiffCompose compares the service sets of two docker-compose revisions
func DiffCompose(baseRaw, headRaw []byte) ([]string, error) {
	var base, head composeFile
	if baseRaw != nil {
		if err := yaml.Unmarshal(baseRaw, &base); err != nil {
			return nil, fmt.Errorf("parse base compose file: %w", err)
		}
	}
	if headRaw != nil {
		if err := yaml.Unmarshal(headRaw, &head); err != nil {
			return nil, fmt.Errorf("parse head compose file: %w", err)
		}
	}

	var changes []string
	for _, name := range sortedServiceNames(head.Services) {
		if _, ok := base.Services[name]; !ok {
			changes = append(changes, fmt.Sprintf("CONTAINER_ADDED: %s", name))
		}
	}
	for _, name := range sortedServiceNames(base.Services) {
		if _, ok := head.Services[name]; !ok {
			changes = append(changes, fmt.Sprintf("CONTAINER_REMOVED: %s", name))
		}
	}
	return changes, nil
}

// DiffFeatureFlags compares boolean flags between two feature-flag file
// revisions. Only boolean leaves count as flags.
func DiffFeatureFlags(baseRaw, headRaw []byte) ([]string, error) {
	baseFlags, err := flagSet(baseRaw)
	if err != nil {
		return nil, fmt.Errorf("parse base feature flags: %w", err)
	}
	headFlags, err := flagSet(headRaw)
	if err != nil {
		return nil, fmt.Errorf("parse head feature flags: %w", err)
	}

	var changes []string
	for _, name := range sortedFlagNames(headFlags) {
		if _, ok := baseFlags[name]; !ok {
			changes = append(changes, fmt.Sprintf("FEATURE_FLAG_ADDED: %s", name))
		}
	}
	for _, name := range sortedFlagNames(baseFlags) {
		if _, ok := headFlags[name]; !ok {
			changes = append(changes, fmt.Sprintf("FEATURE_FLAG_REMOVED: %s", name))
		}
	}
	return changes, nil
}

func flagSet(raw []byte) (map[string]bool, error) {
	out := map[string]bool{}
	if raw == nil {
		return out, nil
	}
	tree, err := parseTree(raw)
	if err != nil {
		return nil, err
	}
	collectFlags("", tree, out)
	return out, nil
}

func collectFlags(prefix string, tree map[string]any, out map[string]bool) {
	for key, value := range tree {
		path := key
		if prefix != "" {
			path = prefix + "." + key
		}
		switch v := value.(type) {
		case bool:
			out[path] = v
		case map[string]any:
			collectFlags(path, v, out)
		}
	}
}

func sortedServiceNames(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedFlagNames(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
