package codescan

import (
	"fmt"
	"path/filepath"
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_go "github.com/tree-sitter/tree-sitter-go/bindings/go"
	tree_sitter_java "github.com/tree-sitter/tree-sitter-java/bindings/go"
	tree_sitter_javascript "github.com/tree-sitter/tree-sitter-javascript/bindings/go"
	tree_sitter_python "github.com/tree-sitter/tree-sitter-python/bindings/go"
	tree_sitter_typescript "github.com/tree-sitter/tree-sitter-typescript/bindings/go"
)

// LanguageParser wraps a tree-sitter parser with a language grammar.
// Always call Close() to release CGO-side memory.
type LanguageParser struct {
	parser   *sitter.Parser
	language *sitter.Language
	langName string
}

// NewLanguageParser creates a parser for the specified language.
// Supported: javascript, typescript, python, go, java.
func NewLanguageParser(lang string) (*LanguageParser, error) {
	parser := sitter.NewParser()
	if parser == nil {
		return nil, fmt.Errorf("failed to create tree-sitter parser")
	}

	var language *sitter.Language
	switch lang {
	case "javascript", "jsx":
		language = sitter.NewLanguage(tree_sitter_javascript.Language())
	case "typescript", "tsx":
		language = sitter.NewLanguage(tree_sitter_typescript.LanguageTypescript())
	case "python":
		language = sitter.NewLanguage(tree_sitter_python.Language())
	case "go":
		language = sitter.NewLanguage(tree_sitter_go.Language())
	case "java":
		language = sitter.NewLanguage(tree_sitter_java.Language())
	default:
		parser.Close()
		return nil, fmt.Errorf("unsupported language: %s", lang)
	}

	if err := parser.SetLanguage(language); err != nil {
		parser.Close()
		return nil, fmt.Errorf("failed to set language %s: %w", lang, err)
	}

	return &LanguageParser{parser: parser, language: language, langName: lang}, nil
}

// Close releases parser resources
func (lp *LanguageParser) Close() {
	if lp.parser != nil {
		lp.parser.Close()
	}
}

// Parse parses source code and returns the syntax tree. Caller must call
// tree.Close() when done.
func (lp *LanguageParser) Parse(code []byte) (*sitter.Tree, error) {
	tree := lp.parser.Parse(code, nil)
	if tree == nil {
		return nil, fmt.Errorf("failed to parse code")
	}
	return tree, nil
}

// DetectLanguage returns the language identifier for a file path, or ""
// when the extension is not supported
func DetectLanguage(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".js", ".mjs", ".cjs":
		return "javascript"
	case ".jsx":
		return "jsx"
	case ".ts":
		return "typescript"
	case ".tsx":
		return "tsx"
	case ".py":
		return "python"
	case ".go":
		return "go"
	case ".java":
		return "java"
	case ".kt", ".kts":
		// no grammar binding; the kotlin path uses the regex extractor
		return "kotlin"
	}
	return ""
}

// getNodeText extracts text from a node using byte offsets
func getNodeText(node *sitter.Node, code []byte) string {
	if node == nil {
		return ""
	}
	start := node.StartByte()
	end := node.EndByte()
	if int(end) > len(code) {
		end = uint(len(code))
	}
	return string(code[start:end])
}

// lineOf returns the 1-based line of a node
func lineOf(node *sitter.Node) int {
	return int(node.StartPosition().Row) + 1
}

// walkTree visits every node depth-first
func walkTree(node *sitter.Node, visit func(*sitter.Node)) {
	if node == nil {
		return
	}
	visit(node)
	for i := uint(0); i < node.ChildCount(); i++ {
		walkTree(node.Child(uint(i)), visit)
	}
}

// stripQuotes removes surrounding string delimiters from a literal
func stripQuotes(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 {
		first, last := s[0], s[len(s)-1]
		if (first == '\'' && last == '\'') || (first == '"' && last == '"') || (first == '`' && last == '`') {
			return s[1 : len(s)-1]
		}
	}
	return s
}

// enclosingSymbol walks up to the nearest named function-like ancestor
func enclosingSymbol(node *sitter.Node, code []byte) string {
	current := node.Parent()
	for current != nil {
		switch current.Kind() {
		case "function_declaration", "function_definition", "method_definition", "method_declaration":
			if nameNode := current.ChildByFieldName("name"); nameNode != nil {
				return getNodeText(nameNode, code)
			}
		case "variable_declarator":
			// const getUser = async () => {...}
			if nameNode := current.ChildByFieldName("name"); nameNode != nil {
				return getNodeText(nameNode, code)
			}
		}
		current = current.Parent()
	}
	return ""
}
