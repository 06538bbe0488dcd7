package codescan

import (
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/driftgate/driftgate/internal/analyzers/sqlmigrate"
)

// httpVerbs maps router method names to HTTP methods
var httpVerbs = map[string]string{
	"get":     "GET",
	"post":    "POST",
	"put":     "PUT",
	"delete":  "DELETE",
	"patch":   "PATCH",
	"head":    "HEAD",
	"options": "OPTIONS",
	"all":     "ANY",
}

// routerNames are receiver identifiers treated as Express-style routers
var routerNames = map[string]bool{
	"app":    true,
	"router": true,
	"server": true,
	"api":    true,
}

// prismaOps maps prisma client methods to the SQL operation they perform
var prismaOps = map[string]string{
	"findMany":   "SELECT",
	"findUnique": "SELECT",
	"findFirst":  "SELECT",
	"count":      "SELECT",
	"aggregate":  "SELECT",
	"create":     "INSERT",
	"createMany": "INSERT",
	"update":     "UPDATE",
	"updateMany": "UPDATE",
	"upsert":     "UPDATE",
	"delete":     "DELETE",
	"deleteMany": "DELETE",
}

// knexOps maps knex query builder methods to SQL operations
var knexOps = map[string]string{
	"select": "SELECT",
	"first":  "SELECT",
	"where":  "SELECT",
	"insert": "INSERT",
	"update": "UPDATE",
	"del":    "DELETE",
	"delete": "DELETE",
}

// sequelizeOps maps sequelize model methods to SQL operations
var sequelizeOps = map[string]string{
	"findAll":         "SELECT",
	"findOne":         "SELECT",
	"findByPk":        "SELECT",
	"findAndCountAll": "SELECT",
	"create":          "INSERT",
	"bulkCreate":      "INSERT",
	"update":          "UPDATE",
	"upsert":          "UPDATE",
	"destroy":         "DELETE",
}

// rawQueryMethods are member names whose string argument is raw SQL
var rawQueryMethods = map[string]bool{
	"query":           true,
	"execute":         true,
	"raw":             true,
	"$queryRaw":       true,
	"$executeRaw":     true,
	"$queryRawUnsafe": true,
}

func extractJavaScript(fa *FileAnalysis, root *sitter.Node, code []byte) {
	walkTree(root, func(node *sitter.Node) {
		switch node.Kind() {
		case "call_expression":
			extractJSCall(fa, node, code)
		case "import_statement":
			extractJSImport(fa, node, code)
		}
	})
}

func extractJSCall(fa *FileAnalysis, node *sitter.Node, code []byte) {
	fn := node.ChildByFieldName("function")
	if fn == nil {
		return
	}
	args := node.ChildByFieldName("arguments")

	if fn.Kind() == "identifier" {
		name := getNodeText(fn, code)
		if name == "require" {
			extractJSRequire(fa, node, args, code)
			return
		}
		fa.Calls = append(fa.Calls, Call{
			Caller: enclosingSymbol(node, code),
			Callee: name,
			Line:   lineOf(node),
		})
		return
	}
	if fn.Kind() != "member_expression" {
		return
	}

	object := fn.ChildByFieldName("object")
	property := fn.ChildByFieldName("property")
	if object == nil || property == nil {
		return
	}
	prop := getNodeText(property, code)

	// app.get("/users", handler)
	if method, ok := httpVerbs[prop]; ok && object.Kind() == "identifier" && routerNames[getNodeText(object, code)] {
		if path := firstStringArg(args, code); path != "" {
			symbol := handlerSymbolArg(args, code)
			if symbol == "" {
				symbol = enclosingSymbol(node, code)
			}
			fa.Handlers = append(fa.Handlers, Handler{
				Method: method,
				Path:   path,
				File:   fa.File,
				Symbol: symbol,
				Line:   lineOf(node),
			})
		}
		return
	}

	// prisma.user.findMany(...)
	if op, ok := prismaOps[prop]; ok && object.Kind() == "member_expression" {
		inner := object.ChildByFieldName("object")
		model := object.ChildByFieldName("property")
		if inner != nil && model != nil && strings.Contains(strings.ToLower(getNodeText(inner, code)), "prisma") {
			fa.DBRefs = append(fa.DBRefs, DBRef{
				ORM:      "prisma",
				Table:    strings.ToLower(getNodeText(model, code)),
				Op:       op,
				File:     fa.File,
				Symbol:   enclosingSymbol(node, code),
				Line:     lineOf(node),
				Inferred: true,
			})
			return
		}
	}

	// knex("users").insert(...)
	if op, ok := knexOps[prop]; ok && object.Kind() == "call_expression" {
		innerFn := object.ChildByFieldName("function")
		if innerFn != nil && innerFn.Kind() == "identifier" && getNodeText(innerFn, code) == "knex" {
			if table := firstStringArg(object.ChildByFieldName("arguments"), code); table != "" {
				fa.DBRefs = append(fa.DBRefs, DBRef{
					ORM:    "knex",
					Table:  strings.ToLower(table),
					Op:     op,
					File:   fa.File,
					Symbol: enclosingSymbol(node, code),
					Line:   lineOf(node),
				})
				return
			}
		}
	}

	// User.findAll(...) with a capitalized model identifier
	if op, ok := sequelizeOps[prop]; ok && object.Kind() == "identifier" {
		model := getNodeText(object, code)
		if model != "" && model[0] >= 'A' && model[0] <= 'Z' {
			fa.DBRefs = append(fa.DBRefs, DBRef{
				ORM:      "sequelize",
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

	// db.query("SELECT ... FROM users")
	if rawQueryMethods[prop] {
		extractRawSQLRefs(fa, node, firstStringArg(args, code), code)
		return
	}

	fa.Calls = append(fa.Calls, Call{
		Caller: enclosingSymbol(node, code),
		Callee: prop,
		Line:   lineOf(node),
	})
}

// extractRawSQLRefs runs the migration regex set over a raw SQL string
func extractRawSQLRefs(fa *FileAnalysis, node *sitter.Node, sql string, code []byte) {
	if sql == "" || !sqlmigrate.LooksLikeSQL(sql) {
		return
	}
	for _, ref := range sqlmigrate.TablesInSQL(sql) {
		fa.DBRefs = append(fa.DBRefs, DBRef{
			ORM:    "raw",
			Table:  ref.Table,
			Op:     ref.Op,
			File:   fa.File,
			Symbol: enclosingSymbol(node, code),
			Line:   lineOf(node),
		})
	}
}

func extractJSRequire(fa *FileAnalysis, node, args *sitter.Node, code []byte) {
	source := firstStringArg(args, code)
	if source == "" {
		return
	}
	local := ""
	if parent := node.Parent(); parent != nil && parent.Kind() == "variable_declarator" {
		if name := parent.ChildByFieldName("name"); name != nil {
			local = getNodeText(name, code)
		}
	}
	fa.Imports = append(fa.Imports, Import{LocalName: local, Source: source})
}

func extractJSImport(fa *FileAnalysis, node *sitter.Node, code []byte) {
	source := node.ChildByFieldName("source")
	if source == nil {
		return
	}
	src := stripQuotes(getNodeText(source, code))
	local := ""
	// import X from "y" / import { a, b } from "y"
	for i := uint(0); i < node.NamedChildCount(); i++ {
		child := node.NamedChild(i)
		if child.Kind() == "import_clause" {
			local = strings.TrimSpace(getNodeText(child, code))
			break
		}
	}
	fa.Imports = append(fa.Imports, Import{LocalName: local, Source: src})
}
