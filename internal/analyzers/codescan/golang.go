package codescan

import (
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

// goRouteMethods covers gin, echo, fiber and chi style registration
var goRouteMethods = map[string]string{
	"GET":     "GET",
	"POST":    "POST",
	"PUT":     "PUT",
	"DELETE":  "DELETE",
	"PATCH":   "PATCH",
	"HEAD":    "HEAD",
	"OPTIONS": "OPTIONS",
	"Get":     "GET",
	"Post":    "POST",
	"Put":     "PUT",
	"Delete":  "DELETE",
	"Patch":   "PATCH",
}

// goSQLMethods are database/sql call sites whose first string arg is SQL
var goSQLMethods = map[string]bool{
	"Query":           true,
	"QueryRow":        true,
	"Exec":            true,
	"QueryContext":    true,
	"QueryRowContext": true,
	"ExecContext":     true,
	"Get":             false, // sqlx Get/Select take a dest first
	"Select":          false,
}

func extractGo(fa *FileAnalysis, root *sitter.Node, code []byte) {
	walkTree(root, func(node *sitter.Node) {
		switch node.Kind() {
		case "call_expression":
			extractGoCall(fa, node, code)
		case "import_spec":
			extractGoImport(fa, node, code)
		}
	})
}

func extractGoCall(fa *FileAnalysis, node *sitter.Node, code []byte) {
	fn := node.ChildByFieldName("function")
	if fn == nil {
		return
	}
	args := node.ChildByFieldName("arguments")

	if fn.Kind() == "identifier" {
		fa.Calls = append(fa.Calls, Call{
			Caller: enclosingSymbol(node, code),
			Callee: getNodeText(fn, code),
			Line:   lineOf(node),
		})
		return
	}
	if fn.Kind() != "selector_expression" {
		return
	}
	field := fn.ChildByFieldName("field")
	operand := fn.ChildByFieldName("operand")
	if field == nil || operand == nil {
		return
	}
	name := getNodeText(field, code)

	// r.GET("/users", handler)
	if method, ok := goRouteMethods[name]; ok {
		if path := firstStringArg(args, code); strings.HasPrefix(path, "/") {
			fa.Handlers = append(fa.Handlers, Handler{
				Method: method,
				Path:   path,
				File:   fa.File,
				Symbol: routeSymbol(node, args, code),
				Line:   lineOf(node),
			})
			return
		}
	}

	// mux.HandleFunc("/users", handler).Methods("GET")
	if name == "HandleFunc" || name == "Handle" {
		if path := firstStringArg(args, code); path != "" {
			fa.Handlers = append(fa.Handlers, Handler{
				Method: methodFromChain(node, code),
				Path:   path,
				File:   fa.File,
				Symbol: routeSymbol(node, args, code),
				Line:   lineOf(node),
			})
		}
		return
	}

	// db.Query("SELECT ... FROM users")
	if isSQL, ok := goSQLMethods[name]; ok && isSQL {
		extractRawSQLRefs(fa, node, firstStringArg(args, code), code)
		return
	}
	// sqlx Get/Select carry SQL in a later argument; scan all string args
	if _, ok := goSQLMethods[name]; ok {
		if args != nil {
			for i := uint(0); i < args.NamedChildCount(); i++ {
				child := args.NamedChild(i)
				if k := child.Kind(); k == "interpreted_string_literal" || k == "raw_string_literal" {
					extractRawSQLRefs(fa, node, stripQuotes(getNodeText(child, code)), code)
				}
			}
		}
		return
	}

	// gorm: db.Table("users").Where(...)
	if name == "Table" {
		if table := firstStringArg(args, code); table != "" {
			fa.DBRefs = append(fa.DBRefs, DBRef{
				ORM:    "gorm",
				Table:  strings.ToLower(table),
				Op:     "SELECT",
				File:   fa.File,
				Symbol: enclosingSymbol(node, code),
				Line:   lineOf(node),
			})
		}
		return
	}

	fa.Calls = append(fa.Calls, Call{
		Caller: enclosingSymbol(node, code),
		Callee: name,
		Line:   lineOf(node),
	})
}

// routeSymbol prefers the registered handler function over the enclosing one
func routeSymbol(node, args *sitter.Node, code []byte) string {
	if symbol := handlerSymbolArg(args, code); symbol != "" {
		return symbol
	}
	return enclosingSymbol(node, code)
}

// methodFromChain recovers the HTTP method from a gorilla/mux style
// .Methods("GET") chained on a HandleFunc call
func methodFromChain(call *sitter.Node, code []byte) string {
	parent := call.Parent()
	if parent == nil || parent.Kind() != "selector_expression" {
		return "ANY"
	}
	field := parent.ChildByFieldName("field")
	if field == nil || getNodeText(field, code) != "Methods" {
		return "ANY"
	}
	outer := parent.Parent()
	if outer == nil || outer.Kind() != "call_expression" {
		return "ANY"
	}
	if method := firstStringArg(outer.ChildByFieldName("arguments"), code); method != "" {
		return strings.ToUpper(method)
	}
	return "ANY"
}

func extractGoImport(fa *FileAnalysis, node *sitter.Node, code []byte) {
	local := ""
	if name := node.ChildByFieldName("name"); name != nil {
		local = getNodeText(name, code)
	}
	source := ""
	if p := node.ChildByFieldName("path"); p != nil {
		source = stripQuotes(getNodeText(p, code))
	}
	if source != "" {
		fa.Imports = append(fa.Imports, Import{LocalName: local, Source: source})
	}
}
