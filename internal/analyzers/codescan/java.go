package codescan

import (
	"regexp"
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

// springMappings maps Spring annotation names to HTTP methods
var springMappings = map[string]string{
	"GetMapping":     "GET",
	"PostMapping":    "POST",
	"PutMapping":     "PUT",
	"DeleteMapping":  "DELETE",
	"PatchMapping":   "PATCH",
	"RequestMapping": "ANY",
}

var reAnnotationPath = regexp.MustCompile(`["']([^"']+)["']`)
var reTableName = regexp.MustCompile(`name\s*=\s*["']([^"']+)["']`)

// javaQueryMethods carry raw SQL or JPQL in their first string argument
var javaQueryMethods = map[string]bool{
	"createQuery":       true,
	"createNativeQuery": true,
	"prepareStatement":  true,
	"query":             true,
	"update":            true,
}

func extractJava(fa *FileAnalysis, root *sitter.Node, code []byte) {
	walkTree(root, func(node *sitter.Node) {
		switch node.Kind() {
		case "method_declaration":
			extractJavaMapping(fa, node, code)
		case "class_declaration":
			extractJavaEntity(fa, node, code)
		case "method_invocation":
			extractJavaCall(fa, node, code)
		case "import_declaration":
			src := strings.TrimSuffix(strings.TrimPrefix(getNodeText(node, code), "import "), ";")
			fa.Imports = append(fa.Imports, Import{Source: strings.TrimSpace(src)})
		}
	})
}

// extractJavaMapping reads Spring request mapping annotations on a method
func extractJavaMapping(fa *FileAnalysis, node *sitter.Node, code []byte) {
	symbol := ""
	if name := node.ChildByFieldName("name"); name != nil {
		symbol = getNodeText(name, code)
	}
	for _, ann := range annotationsOf(node, code) {
		annName, annText, annLine := ann.name, ann.text, ann.line
		method, ok := springMappings[annName]
		if !ok {
			continue
		}
		path := ""
		if m := reAnnotationPath.FindStringSubmatch(annText); m != nil {
			path = m[1]
		}
		if m := regexp.MustCompile(`method\s*=\s*RequestMethod\.(\w+)`).FindStringSubmatch(annText); m != nil {
			method = m[1]
		}
		fa.Handlers = append(fa.Handlers, Handler{
			Method: method,
			Path:   path,
			File:   fa.File,
			Symbol: symbol,
			Line:   annLine,
		})
	}
}

// extractJavaEntity reads a JPA @Table annotation on an entity class
func extractJavaEntity(fa *FileAnalysis, node *sitter.Node, code []byte) {
	className := ""
	if name := node.ChildByFieldName("name"); name != nil {
		className = getNodeText(name, code)
	}
	for _, ann := range annotationsOf(node, code) {
		if ann.name != "Table" {
			continue
		}
		table := strings.ToLower(className)
		inferred := true
		if m := reTableName.FindStringSubmatch(ann.text); m != nil {
			table = strings.ToLower(m[1])
			inferred = false
		}
		fa.DBRefs = append(fa.DBRefs, DBRef{
			ORM:      "jpa",
			Table:    table,
			Op:       "MAPPED",
			File:     fa.File,
			Symbol:   className,
			Line:     ann.line,
			Inferred: inferred,
		})
	}
}

func extractJavaCall(fa *FileAnalysis, node *sitter.Node, code []byte) {
	name := ""
	if n := node.ChildByFieldName("name"); n != nil {
		name = getNodeText(n, code)
	}
	if name == "" {
		return
	}
	if javaQueryMethods[name] {
		extractRawSQLRefs(fa, node, firstStringArg(node.ChildByFieldName("arguments"), code), code)
		return
	}
	fa.Calls = append(fa.Calls, Call{
		Caller: enclosingSymbol(node, code),
		Callee: name,
		Line:   lineOf(node),
	})
}

type javaAnnotation struct {
	name string
	text string
	line int
}

// annotationsOf collects annotations from a declaration's modifiers
func annotationsOf(node *sitter.Node, code []byte) []javaAnnotation {
	var out []javaAnnotation
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if child == nil || child.Kind() != "modifiers" {
			continue
		}
		for j := uint(0); j < child.ChildCount(); j++ {
			mod := child.Child(j)
			if mod == nil {
				continue
			}
			kind := mod.Kind()
			if kind != "annotation" && kind != "marker_annotation" {
				continue
			}
			text := getNodeText(mod, code)
			name := text
			if n := mod.ChildByFieldName("name"); n != nil {
				name = getNodeText(n, code)
			} else {
				name = strings.TrimPrefix(strings.SplitN(name, "(", 2)[0], "@")
			}
			out = append(out, javaAnnotation{name: strings.TrimPrefix(name, "@"), text: text, line: lineOf(mod)})
		}
	}
	return out
}
