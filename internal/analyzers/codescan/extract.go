package codescan

import (
	"fmt"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

// extractFile parses one source file and pulls out handlers, database call
// sites, call edges and imports
func extractFile(file, lang string, code []byte) (*FileAnalysis, error) {
	fa := &FileAnalysis{File: file, Language: lang}

	if lang == "kotlin" {
		extractKotlin(fa, code)
		return fa, nil
	}

	parser, err := NewLanguageParser(lang)
	if err != nil {
		return nil, err
	}
	defer parser.Close()

	tree, err := parser.Parse(code)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", file, err)
	}
	defer tree.Close()

	root := tree.RootNode()
	switch lang {
	case "javascript", "jsx", "typescript", "tsx":
		extractJavaScript(fa, root, code)
	case "python":
		extractPython(fa, root, code)
	case "go":
		extractGo(fa, root, code)
	case "java":
		extractJava(fa, root, code)
	}
	return fa, nil
}

// handlerSymbolArg returns the last bare identifier argument of a route
// registration, which is the handler function reference, or ""
func handlerSymbolArg(args *sitter.Node, code []byte) string {
	if args == nil {
		return ""
	}
	symbol := ""
	for i := uint(0); i < args.NamedChildCount(); i++ {
		child := args.NamedChild(i)
		switch child.Kind() {
		case "identifier":
			symbol = getNodeText(child, code)
		case "member_expression", "selector_expression", "attribute":
			full := getNodeText(child, code)
			if idx := lastDotIndex(full); idx >= 0 {
				symbol = full[idx+1:]
			} else {
				symbol = full
			}
		}
	}
	return symbol
}

func lastDotIndex(s string) int {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == '.' {
			return i
		}
	}
	return -1
}

// firstStringArg returns the first string literal argument of a call's
// argument list, or ""
func firstStringArg(args *sitter.Node, code []byte) string {
	if args == nil {
		return ""
	}
	for i := uint(0); i < args.NamedChildCount(); i++ {
		child := args.NamedChild(i)
		switch child.Kind() {
		case "string", "template_string", "interpreted_string_literal", "raw_string_literal", "string_literal", "line_string_literal":
			return stripQuotes(getNodeText(child, code))
		}
	}
	return ""
}
