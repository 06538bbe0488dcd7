package codescan

import (
	"regexp"
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

// Flask style: @app.route("/users", methods=["GET", "POST"])
var reFlaskRoute = regexp.MustCompile(`@\w+\.route\(\s*["']([^"']+)["'](?:.*methods\s*=\s*\[([^\]]*)\])?`)

// FastAPI style: @app.get("/users")
var reFastAPIRoute = regexp.MustCompile(`@\w+\.(get|post|put|delete|patch|head|options)\(\s*["']([^"']+)["']`)

// sqlalchemyOps maps SQLAlchemy query methods to SQL operations
var sqlalchemyOps = map[string]string{
	"query":   "SELECT",
	"add":     "INSERT",
	"add_all": "INSERT",
	"merge":   "UPDATE",
	"delete":  "DELETE",
}

// djangoOps maps Django queryset methods to SQL operations
var djangoOps = map[string]string{
	"filter":  "SELECT",
	"get":     "SELECT",
	"all":     "SELECT",
	"exclude": "SELECT",
	"create":  "INSERT",
	"update":  "UPDATE",
	"delete":  "DELETE",
}

func extractPython(fa *FileAnalysis, root *sitter.Node, code []byte) {
	walkTree(root, func(node *sitter.Node) {
		switch node.Kind() {
		case "decorated_definition":
			extractPyRoute(fa, node, code)
		case "call":
			extractPyCall(fa, node, code)
		case "import_statement", "import_from_statement":
			fa.Imports = append(fa.Imports, Import{Source: strings.TrimSpace(getNodeText(node, code))})
		}
	})
}

// extractPyRoute reads route decorators on a function definition
func extractPyRoute(fa *FileAnalysis, node *sitter.Node, code []byte) {
	symbol := ""
	if def := node.ChildByFieldName("definition"); def != nil {
		if name := def.ChildByFieldName("name"); name != nil {
			symbol = getNodeText(name, code)
		}
	}

	for i := uint(0); i < node.NamedChildCount(); i++ {
		child := node.NamedChild(i)
		if child.Kind() != "decorator" {
			continue
		}
		text := getNodeText(child, code)
		line := lineOf(child)

		if m := reFastAPIRoute.FindStringSubmatch(text); m != nil {
			fa.Handlers = append(fa.Handlers, Handler{
				Method: strings.ToUpper(m[1]),
				Path:   m[2],
				File:   fa.File,
				Symbol: symbol,
				Line:   line,
			})
			continue
		}
		if m := reFlaskRoute.FindStringSubmatch(text); m != nil {
			for _, method := range flaskMethods(m[2]) {
				fa.Handlers = append(fa.Handlers, Handler{
					Method: method,
					Path:   m[1],
					File:   fa.File,
					Symbol: symbol,
					Line:   line,
				})
			}
		}
	}
}

// flaskMethods parses the methods=[...] list; Flask defaults to GET
func flaskMethods(list string) []string {
	if strings.TrimSpace(list) == "" {
		return []string{"GET"}
	}
	var out []string
	for _, part := range strings.Split(list, ",") {
		method := strings.ToUpper(strings.Trim(strings.TrimSpace(part), `"'`))
		if method != "" {
			out = append(out, method)
		}
	}
	if len(out) == 0 {
		return []string{"GET"}
	}
	return out
}

func extractPyCall(fa *FileAnalysis, node *sitter.Node, code []byte) {
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
	if fn.Kind() != "attribute" {
		return
	}
	object := fn.ChildByFieldName("object")
	attr := fn.ChildByFieldName("attribute")
	if object == nil || attr == nil {
		return
	}
	prop := getNodeText(attr, code)
	objText := getNodeText(object, code)

	// cursor.execute("SELECT ...")
	if prop == "execute" || prop == "executemany" {
		extractRawSQLRefs(fa, node, firstStringArg(args, code), code)
		return
	}

	// session.query(User)
	if op, ok := sqlalchemyOps[prop]; ok && (objText == "session" || objText == "db.session" || strings.HasSuffix(objText, "_session")) {
		if model := firstIdentifierArg(args, code); model != "" {
			fa.DBRefs = append(fa.DBRefs, DBRef{
				ORM:      "sqlalchemy",
				Table:    strings.ToLower(model),
				Op:       op,
				File:     fa.File,
				Symbol:   enclosingSymbol(node, code),
				Line:     lineOf(node),
				Inferred: true,
			})
			return
		}
	}

	// User.objects.filter(...)
	if op, ok := djangoOps[prop]; ok && strings.HasSuffix(objText, ".objects") {
		model := strings.TrimSuffix(objText, ".objects")
		fa.DBRefs = append(fa.DBRefs, DBRef{
			ORM:      "django",
			Table:    strings.ToLower(model),
			Op:       op,
			File:     fa.File,
			Symbol:   enclosingSymbol(node, code),
			Line:     lineOf(node),
			Inferred: true,
		})
		return
	}

	fa.Calls = append(fa.Calls, Call{
		Caller: enclosingSymbol(node, code),
		Callee: prop,
		Line:   lineOf(node),
	})
}

// firstIdentifierArg returns the first bare identifier argument, or ""
func firstIdentifierArg(args *sitter.Node, code []byte) string {
	if args == nil {
		return ""
	}
	for i := uint(0); i < args.NamedChildCount(); i++ {
		child := args.NamedChild(i)
		if child.Kind() == "identifier" {
			return getNodeText(child, code)
		}
	}
	return ""
}
