package codescan

import (
	"regexp"
	"strings"

	"github.com/driftgate/driftgate/internal/analyzers/sqlmigrate"
)

// No grammar binding ships for Kotlin, so a line-oriented pass recovers the
// common Spring and Ktor patterns.
var (
	reKtSpringMapping = regexp.MustCompile(`@(Get|Post|Put|Delete|Patch)Mapping\(\s*["']([^"']+)["']`)
	reKtKtorRoute     = regexp.MustCompile(`\b(get|post|put|delete|patch)\(\s*["'](/[^"']*)["']`)
	reKtFunction      = regexp.MustCompile(`\bfun\s+(\w+)\s*\(`)
	reKtString        = regexp.MustCompile(`"([^"]{10,})"`)
)

func extractKotlin(fa *FileAnalysis, code []byte) {
	symbol := ""
	for i, line := range strings.Split(string(code), "\n") {
		lineNo := i + 1
		if m := reKtFunction.FindStringSubmatch(line); m != nil {
			symbol = m[1]
		}

		if m := reKtSpringMapping.FindStringSubmatch(line); m != nil {
			fa.Handlers = append(fa.Handlers, Handler{
				Method: strings.ToUpper(m[1]),
				Path:   m[2],
				File:   fa.File,
				Symbol: symbol,
				Line:   lineNo,
			})
			continue
		}
		if m := reKtKtorRoute.FindStringSubmatch(line); m != nil {
			fa.Handlers = append(fa.Handlers, Handler{
				Method: strings.ToUpper(m[1]),
				Path:   m[2],
				File:   fa.File,
				Symbol: symbol,
				Line:   lineNo,
			})
			continue
		}

		for _, m := range reKtString.FindAllStringSubmatch(line, -1) {
			if !sqlmigrate.LooksLikeSQL(m[1]) {
				continue
			}
			for _, ref := range sqlmigrate.TablesInSQL(m[1]) {
				fa.DBRefs = append(fa.DBRefs, DBRef{
					ORM:    "raw",
					Table:  ref.Table,
					Op:     ref.Op,
					File:   fa.File,
					Symbol: symbol,
					Line:   lineNo,
				})
			}
		}
	}
}
