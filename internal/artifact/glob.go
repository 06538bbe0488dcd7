package artifact

import (
	"regexp"
	"strings"
)

// GlobToRegex compiles a glob pattern to a regular expression. "**/"
// consumes any number of path segments (including none), "*" matches within
// a single segment, "?" matches a single character, "{a,b}" matches one of
// the comma-separated literal alternatives. An unclosed brace is literal.
func GlobToRegex(glob string) (*regexp.Regexp, error) {
	var sb strings.Builder
	sb.WriteString("^")
	i := 0
	for i < len(glob) {
		switch {
		case strings.HasPrefix(glob[i:], "**/"):
			sb.WriteString(`(?:[^/]+/)*`)
			i += 3
		case strings.HasPrefix(glob[i:], "**"):
			sb.WriteString(`.*`)
			i += 2
		case glob[i] == '*':
			sb.WriteString(`[^/]*`)
			i++
		case glob[i] == '?':
			sb.WriteString(`[^/]`)
			i++
		case glob[i] == '{':
			end := strings.IndexByte(glob[i:], '}')
			if end < 0 {
				sb.WriteString(regexp.QuoteMeta("{"))
				i++
				continue
			}
			alts := strings.Split(glob[i+1:i+end], ",")
			for j := range alts {
				alts[j] = regexp.QuoteMeta(alts[j])
			}
			sb.WriteString("(?:" + strings.Join(alts, "|") + ")")
			i += end + 1
		default:
			sb.WriteString(regexp.QuoteMeta(string(glob[i])))
			i++
		}
	}
	sb.WriteString("$")
	return regexp.Compile(sb.String())
}

// MatchGlob reports whether the normalized path matches the glob pattern.
// Invalid patterns never match.
func MatchGlob(glob, path string) bool {
	re, err := GlobToRegex(glob)
	if err != nil {
		return false
	}
	return re.MatchString(NormalizePath(path))
}

// MatchToken resolves a user-rule token against an artifact ID. Resolution
// order: exact match, substring match, glob match.
func MatchToken(token, artifactID string) bool {
	if token == "" {
		return false
	}
	if token == artifactID {
		return true
	}
	if strings.Contains(artifactID, token) {
		return true
	}
	if strings.ContainsAny(token, "*?") {
		re, err := GlobToRegex(token)
		if err != nil {
			return false
		}
		return re.MatchString(artifactID)
	}
	return false
}
