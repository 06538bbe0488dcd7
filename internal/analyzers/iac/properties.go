package iac

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// PropertyChange is one entry from the deep property comparison
type PropertyChange struct {
	Token    string
	Security bool
}

var securityPathPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)security`),
	regexp.MustCompile(`(?i)cidr`),
	regexp.MustCompile(`(?i)ingress`),
	regexp.MustCompile(`(?i)egress`),
	regexp.MustCompile(`(?i)port`),
	regexp.MustCompile(`(?i)public`),
	regexp.MustCompile(`(?i)deletion`),
	regexp.MustCompile(`(?i)policy`),
	regexp.MustCompile(`(?i)role`),
	regexp.MustCompile(`(?i)permission`),
}

// CompareProperties walks two property trees of a resource and reports
// modified, removed and added properties. The algorithm is shared by the
// Terraform and CloudFormation passes.
func CompareProperties(resourceID string, before, after map[string]any) []PropertyChange {
	var out []PropertyChange
	compareMaps(resourceID, "", before, after, &out)
	return out
}

func compareMaps(resourceID, path string, before, after map[string]any, out *[]PropertyChange) {
	keys := map[string]bool{}
	for k := range before {
		keys[k] = true
	}
	for k := range after {
		keys[k] = true
	}
	sorted := make([]string, 0, len(keys))
	for k := range keys {
		sorted = append(sorted, k)
	}
	sort.Strings(sorted)

	for _, k := range sorted {
		childPath := k
		if path != "" {
			childPath = path + "." + k
		}
		bv, inBefore := before[k]
		av, inAfter := after[k]

		switch {
		case inBefore && !inAfter:
			*out = append(*out, propChange(
				fmt.Sprintf("PROPERTY_REMOVED: %s.%s: %s", resourceID, childPath, encode(bv)),
				childPath, bv))
		case !inBefore && inAfter:
			*out = append(*out, propChange(
				fmt.Sprintf("PROPERTY_ADDED: %s.%s: %s", resourceID, childPath, encode(av)),
				childPath, av))
		default:
			compareValues(resourceID, childPath, bv, av, out)
		}
	}
}

func compareValues(resourceID, path string, bv, av any, out *[]PropertyChange) {
	bMap, bIsMap := bv.(map[string]any)
	aMap, aIsMap := av.(map[string]any)
	if bIsMap && aIsMap {
		compareMaps(resourceID, path, bMap, aMap, out)
		return
	}

	bArr, bIsArr := bv.([]any)
	aArr, aIsArr := av.([]any)
	if bIsArr && aIsArr {
		if isRuleArray(bArr) || isRuleArray(aArr) {
			compareRuleArrays(resourceID, path, bArr, aArr, out)
			return
		}
		if encode(bv) != encode(av) {
			*out = append(*out, propChange(
				fmt.Sprintf("PROPERTY_MODIFIED: %s.%s: %s → %s", resourceID, path, encode(bv), encode(av)),
				path, av))
		}
		return
	}

	if encode(bv) != encode(av) {
		*out = append(*out, propChange(
			fmt.Sprintf("PROPERTY_MODIFIED: %s.%s: %s → %s", resourceID, path, encode(bv), encode(av)),
			path, av))
	}
}

// propChange builds a PropertyChange, flagging it security-sensitive when
// the path matches a sensitive pattern or the new value opens to the world
func propChange(token, path string, newValue any) PropertyChange {
	security := strings.Contains(encode(newValue), "0.0.0.0/0")
	if !security {
		for _, re := range securityPathPatterns {
			if re.MatchString(path) {
				security = true
				break
			}
		}
	}
	return PropertyChange{Token: token, Security: security}
}

// ── security-rule array fingerprinting ──

// isRuleArray reports whether an array holds rule-shaped objects
// (protocol + from/to port, snake_case or PascalCase)
func isRuleArray(arr []any) bool {
	for _, item := range arr {
		m, ok := item.(map[string]any)
		if !ok {
			return false
		}
		if _, ok := ruleField(m, "protocol", "Protocol", "IpProtocol"); !ok {
			return false
		}
		if _, ok := ruleField(m, "from_port", "FromPort"); !ok {
			return false
		}
		if _, ok := ruleField(m, "to_port", "ToPort"); !ok {
			return false
		}
	}
	return len(arr) > 0
}

func ruleField(m map[string]any, names ...string) (any, bool) {
	for _, n := range names {
		if v, ok := m[n]; ok {
			return v, true
		}
	}
	return nil, false
}

// matchingFingerprint identifies a rule by proto-from-to, CIDR excluded, so
// a CIDR edit on the same rule is seen as a modification rather than a
// remove+add pair
func matchingFingerprint(m map[string]any) string {
	proto, _ := ruleField(m, "protocol", "Protocol", "IpProtocol")
	from, _ := ruleField(m, "from_port", "FromPort")
	to, _ := ruleField(m, "to_port", "ToPort")
	return fmt.Sprintf("%v-%v-%v", proto, from, to)
}

// firstCIDR extracts the first CIDR of a rule object
func firstCIDR(m map[string]any) string {
	if v, ok := ruleField(m, "cidr_blocks", "CidrBlocks"); ok {
		if arr, ok := v.([]any); ok && len(arr) > 0 {
			return fmt.Sprintf("%v", arr[0])
		}
	}
	if v, ok := ruleField(m, "cidr_ip", "CidrIp"); ok {
		return fmt.Sprintf("%v", v)
	}
	return ""
}

func ruleDescription(m map[string]any) string {
	if v, ok := ruleField(m, "description", "Description"); ok {
		return fmt.Sprintf("%v", v)
	}
	return ""
}

func compareRuleArrays(resourceID, path string, before, after []any, out *[]PropertyChange) {
	beforeRules := indexRules(before)
	afterRules := indexRules(after)

	fps := map[string]bool{}
	for fp := range beforeRules {
		fps[fp] = true
	}
	for fp := range afterRules {
		fps[fp] = true
	}
	sorted := make([]string, 0, len(fps))
	for fp := range fps {
		sorted = append(sorted, fp)
	}
	sort.Strings(sorted)

	for i, fp := range sorted {
		b, inBefore := beforeRules[fp]
		a, inAfter := afterRules[fp]
		rulePath := fmt.Sprintf("%s[%d]", path, i)

		switch {
		case inBefore && !inAfter:
			*out = append(*out, propChange(
				fmt.Sprintf("PROPERTY_REMOVED: %s.%s: %s", resourceID, rulePath, encode(b)),
				rulePath, b))
		case !inBefore && inAfter:
			*out = append(*out, propChange(
				fmt.Sprintf("PROPERTY_ADDED: %s.%s: %s", resourceID, rulePath, encode(a)),
				rulePath, a))
		default:
			compareMatchedRule(resourceID, rulePath, b, a, out)
		}
	}
}

// compareMatchedRule diffs two rules sharing a matching fingerprint. A
// differing full fingerprint emits one modification per changed
// sub-property: the CIDR, the description, or a generic fallback.
func compareMatchedRule(resourceID, rulePath string, before, after map[string]any, out *[]PropertyChange) {
	bCIDR, aCIDR := firstCIDR(before), firstCIDR(after)
	bDesc, aDesc := ruleDescription(before), ruleDescription(after)

	emitted := false
	if bCIDR != aCIDR {
		bBlocks, _ := ruleField(before, "cidr_blocks", "CidrBlocks", "cidr_ip", "CidrIp")
		aBlocks, _ := ruleField(after, "cidr_blocks", "CidrBlocks", "cidr_ip", "CidrIp")
		*out = append(*out, propChange(
			fmt.Sprintf("PROPERTY_MODIFIED: %s.%s.cidr_blocks: %s → %s", resourceID, rulePath, encode(bBlocks), encode(aBlocks)),
			rulePath+".cidr_blocks", aBlocks))
		emitted = true
	}
	if bDesc != aDesc {
		*out = append(*out, propChange(
			fmt.Sprintf("PROPERTY_MODIFIED: %s.%s.description: %s → %s", resourceID, rulePath, encode(bDesc), encode(aDesc)),
			rulePath+".description", aDesc))
		emitted = true
	}
	if !emitted && encode(before) != encode(after) {
		*out = append(*out, propChange(
			fmt.Sprintf("PROPERTY_MODIFIED: %s.%s: rule properties changed", resourceID, rulePath),
			rulePath, after))
	}
}

func indexRules(arr []any) map[string]map[string]any {
	out := map[string]map[string]any{}
	for _, item := range arr {
		if m, ok := item.(map[string]any); ok {
			out[matchingFingerprint(m)] = m
		}
	}
	return out
}

// encode renders a value as compact JSON for change tokens
func encode(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}
