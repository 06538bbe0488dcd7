package artifact

import (
	"strings"
	"unicode"
)

// common table/endpoint affixes that carry no identity
var stripPrefixes = []string{"tbl_", "t_", "api_", "app_"}
var stripSuffixes = []string{"_table", "_tbl", "_v1", "_v2"}

// NameVariations returns the set of normalized variants of an entity name:
// the lowercased original, singular/plural forms, snake_case and camelCase
// conversions, and prefix/suffix-stripped forms. Both the correlation entity
// strategy and the code-analysis table matcher resolve names through this
// single function so they cannot diverge.
func NameVariations(name string) []string {
	seen := map[string]bool{}
	var out []string
	add := func(v string) {
		v = strings.ToLower(strings.TrimSpace(v))
		if v != "" && !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}

	base := strings.ToLower(strings.TrimSpace(name))
	add(base)
	add(CamelToSnake(name))
	add(SnakeToCamel(base))

	for _, v := range append([]string{}, out...) {
		add(singular(v))
		add(plural(v))
	}

	for _, v := range append([]string{}, out...) {
		for _, p := range stripPrefixes {
			if strings.HasPrefix(v, p) {
				add(strings.TrimPrefix(v, p))
			}
		}
		for _, s := range stripSuffixes {
			if strings.HasSuffix(v, s) {
				add(strings.TrimSuffix(v, s))
			}
		}
	}
	return out
}

// singular applies common English singularization rules
func singular(s string) string {
	switch {
	case strings.HasSuffix(s, "ies") && len(s) > 3:
		return s[:len(s)-3] + "y"
	case strings.HasSuffix(s, "ses") && len(s) > 3:
		return s[:len(s)-2]
	case strings.HasSuffix(s, "s") && !strings.HasSuffix(s, "ss") && len(s) > 1:
		return s[:len(s)-1]
	}
	return s
}

// plural applies common English pluralization rules
func plural(s string) string {
	switch {
	case strings.HasSuffix(s, "y") && len(s) > 1 && !isVowel(rune(s[len(s)-2])):
		return s[:len(s)-1] + "ies"
	case strings.HasSuffix(s, "s") || strings.HasSuffix(s, "x") || strings.HasSuffix(s, "ch") || strings.HasSuffix(s, "sh"):
		return s + "es"
	default:
		return s + "s"
	}
}

func isVowel(r rune) bool {
	return strings.ContainsRune("aeiou", r)
}

// CamelToSnake converts camelCase or PascalCase to snake_case
func CamelToSnake(s string) string {
	var sb strings.Builder
	for i, r := range s {
		if unicode.IsUpper(r) {
			if i > 0 && !unicode.IsUpper(rune(s[i-1])) {
				sb.WriteByte('_')
			}
			sb.WriteRune(unicode.ToLower(r))
		} else {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

// SnakeToCamel converts snake_case to camelCase
func SnakeToCamel(s string) string {
	parts := strings.Split(s, "_")
	if len(parts) == 1 {
		return s
	}
	var sb strings.Builder
	sb.WriteString(parts[0])
	for _, p := range parts[1:] {
		if p == "" {
			continue
		}
		sb.WriteString(strings.ToUpper(p[:1]))
		sb.WriteString(p[1:])
	}
	return sb.String()
}

// Similarity returns a normalized Levenshtein ratio in [0,1] between two
// names; 1.0 means identical (case-insensitive)
func Similarity(a, b string) float64 {
	a = strings.ToLower(a)
	b = strings.ToLower(b)
	if a == b {
		return 1.0
	}
	la, lb := len(a), len(b)
	if la == 0 || lb == 0 {
		return 0.0
	}
	dist := levenshtein(a, b)
	max := la
	if lb > max {
		max = lb
	}
	return 1.0 - float64(dist)/float64(max)
}

// NamesMatch reports whether two entity names refer to the same thing
// through the variation set or a Levenshtein ratio of at least 0.7, and
// returns the best similarity observed.
func NamesMatch(a, b string) (bool, float64) {
	va := NameVariations(a)
	vb := NameVariations(b)
	setB := map[string]bool{}
	for _, v := range vb {
		setB[v] = true
	}
	for _, v := range va {
		if setB[v] {
			return true, 1.0
		}
	}
	best := 0.0
	for _, x := range va {
		for _, y := range vb {
			if s := Similarity(x, y); s > best {
				best = s
			}
		}
	}
	return best >= 0.7, best
}

func levenshtein(a, b string) int {
	la, lb := len(a), len(b)
	prev := make([]int, lb+1)
	cur := make([]int, lb+1)
	for j := 0; j <= lb; j++ {
		prev[j] = j
	}
	for i := 1; i <= la; i++ {
		cur[0] = i
		for j := 1; j <= lb; j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			cur[j] = min3(cur[j-1]+1, prev[j]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	return prev[lb]
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}
