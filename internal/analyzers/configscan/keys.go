package configscan

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// secretCategories maps key substrings to redaction categories. The
// category's first three letters become the redaction label, so values and
// even key names of credentials never reach the report.
var secretCategories = []struct {
	keywords []string
	label    string
}{
	{[]string{"password", "pwd"}, "PAS"},
	{[]string{"apikey", "api_key"}, "API"},
	{[]string{"token"}, "TOK"},
	{[]string{"secret"}, "SEC"},
	{[]string{"credential", "private_key"}, "CRE"},
}

// redactKey returns the redaction label for a secret-bearing key, or ""
// when the key is not secret
func redactKey(key string) string {
	lower := strings.ToLower(key)
	for _, cat := range secretCategories {
		for _, kw := range cat.keywords {
			if strings.Contains(lower, kw) {
				return fmt.Sprintf("[REDACTED_%s]", cat.label)
			}
		}
	}
	return ""
}

// ExtractKeys walks a parsed config tree and produces sorted dotted key
// paths. Leaf keys that look like secrets are substituted with a redaction
// label; values are never emitted.
func ExtractKeys(tree map[string]any) []string {
	var out []string
	walkKeys("", tree, &out)
	sort.Strings(out)
	return out
}

func walkKeys(prefix string, tree map[string]any, out *[]string) {
	for key, value := range tree {
		emitted := key
		if child, ok := value.(map[string]any); ok {
			path := emitted
			if prefix != "" {
				path = prefix + "." + emitted
			}
			walkKeys(path, child, out)
			continue
		}
		if label := redactKey(key); label != "" {
			emitted = label
		}
		path := emitted
		if prefix != "" {
			path = prefix + "." + emitted
		}
		*out = append(*out, path)
	}
}

// DiffKeys compares base and head key sets and emits CONFIG_KEY_* tokens
// for normal keys and SECRET_KEY_* tokens for redacted ones
func DiffKeys(baseKeys, headKeys []string) []string {
	baseSet := toSet(baseKeys)
	headSet := toSet(headKeys)

	var changes []string
	for _, k := range headKeys {
		if !baseSet[k] {
			if strings.Contains(k, "[REDACTED_") {
				changes = append(changes, fmt.Sprintf("SECRET_KEY_ADDED: %s", k))
			} else {
				changes = append(changes, fmt.Sprintf("CONFIG_KEY_ADDED: %s", k))
			}
		}
	}
	for _, k := range baseKeys {
		if !headSet[k] {
			if strings.Contains(k, "[REDACTED_") {
				changes = append(changes, fmt.Sprintf("SECRET_KEY_REMOVED: %s", k))
			} else {
				changes = append(changes, fmt.Sprintf("CONFIG_KEY_REMOVED: %s", k))
			}
		}
	}
	return changes
}

// parseTree decodes JSON or YAML content into a generic string-keyed tree
func parseTree(raw []byte) (map[string]any, error) {
	trimmed := strings.TrimSpace(string(raw))
	if strings.HasPrefix(trimmed, "{") {
		var tree map[string]any
		if err := json.Unmarshal(raw, &tree); err != nil {
			return nil, err
		}
		return tree, nil
	}
	var tree map[string]any
	if err := yaml.Unmarshal(raw, &tree); err != nil {
		return nil, err
	}
	return tree, nil
}

func toSet(keys []string) map[string]bool {
	out := make(map[string]bool, len(keys))
	for _, k := range keys {
		out[k] = true
	}
	return out
}
