package parse

import (
	"path/filepath"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

// React and Next.js heuristics shared by the JavaScript and TypeScript
// parsers. A callable is a component iff its name starts uppercase and
// its body contains at least one JSX element.

// Next.js framework roles derived from file location.
const (
	RoleNextPage       = "next_page"
	RoleNextLayout     = "next_layout"
	RoleNextAppRoute   = "next_app_route"
	RoleNextAPIRoute   = "next_api_route"
	RoleNextAPIHandler = "next_api_handler"
	RoleNextApp        = "next_app"
	RoleNextDocument   = "next_document"
)

// jsLikeCalls collects unqualified callee names: foo() contributes
// "foo", obj.save() contributes "save".
func jsLikeCalls(n *sitter.Node, src []byte) []string {
	var calls []string
	for _, call := range findByType(n, "call_expression") {
		fn := call.ChildByFieldName("function")
		if fn == nil {
			continue
		}
		switch fn.Type() {
		case "identifier":
			calls = append(calls, nodeText(fn, src))
		case "member_expression":
			if prop := fn.ChildByFieldName("property"); prop != nil {
				calls = append(calls, nodeText(prop, src))
			}
		}
	}
	return calls
}

// isReactComponent applies the component heuristic to a callable body.
func isReactComponent(n *sitter.Node, name string) bool {
	if name == "" || name == "<anonymous>" {
		return false
	}
	if name[0] < 'A' || name[0] > 'Z' {
		return false
	}
	return len(findByType(n, "jsx_element", "jsx_self_closing_element")) > 0
}

// jsxRenders lists the distinct uppercase JSX tag names in the subtree.
// Lowercase tags are plain HTML and are skipped.
func jsxRenders(n *sitter.Node, src []byte) []string {
	var renders []string
	for _, jsx := range findByType(n, "jsx_opening_element", "jsx_self_closing_element") {
		nameNode := jsx.ChildByFieldName("name")
		if nameNode == nil {
			continue
		}
		tag := nodeText(nameNode, src)
		if tag != "" && tag[0] >= 'A' && tag[0] <= 'Z' {
			renders = append(renders, tag)
		}
	}
	return dedupe(renders)
}

// reactHooks lists the distinct hook calls in the subtree, identifiers
// shaped use[A-Z]...
func reactHooks(n *sitter.Node, src []byte) []string {
	var hooks []string
	for _, call := range findByType(n, "call_expression") {
		fn := call.ChildByFieldName("function")
		if fn == nil || fn.Type() != "identifier" {
			continue
		}
		name := nodeText(fn, src)
		if strings.HasPrefix(name, "use") && len(name) > 3 && name[3] >= 'A' && name[3] <= 'Z' {
			hooks = append(hooks, name)
		}
	}
	return dedupe(hooks)
}

var axiosMethods = map[string]bool{
	"get":    true,
	"post":   true,
	"put":    true,
	"delete": true,
	"patch":  true,
}

// jsAPICalls collects /api endpoint URLs from fetch(...) and
// axios.{get,post,put,delete,patch}(...) calls.
func jsAPICalls(n *sitter.Node, src []byte) []string {
	var urls []string
	for _, call := range findByType(n, "call_expression") {
		fn := call.ChildByFieldName("function")
		if fn == nil {
			continue
		}

		switch fn.Type() {
		case "identifier":
			if nodeText(fn, src) != "fetch" {
				continue
			}
		case "member_expression":
			obj := fn.ChildByFieldName("object")
			prop := fn.ChildByFieldName("property")
			if obj == nil || prop == nil {
				continue
			}
			if nodeText(obj, src) != "axios" || !axiosMethods[nodeText(prop, src)] {
				continue
			}
		default:
			continue
		}

		if url := firstStringArg(call, src); strings.HasPrefix(url, "/api") {
			urls = append(urls, url)
		}
	}
	return dedupe(urls)
}

// firstStringArg returns the first string-typed argument of a call.
// Template literals contribute their static prefix, so
// `/api/users/${id}` yields "/api/users/".
func firstStringArg(call *sitter.Node, src []byte) string {
	args := call.ChildByFieldName("arguments")
	if args == nil {
		return ""
	}
	for i := 0; i < int(args.NamedChildCount()); i++ {
		arg := args.NamedChild(i)
		switch arg.Type() {
		case "string":
			return unquote(nodeText(arg, src))
		case "template_string":
			text := strings.Trim(nodeText(arg, src), "`")
			if idx := strings.Index(text, "${"); idx >= 0 {
				text = text[:idx]
			}
			return text
		}
	}
	return ""
}

// detectNextRole classifies a file by its place in a Next.js tree.
// Returns "" for files outside the pages/ and app/ conventions.
func detectNextRole(path string) string {
	pathStr := filepath.ToSlash(path)
	base := filepath.Base(pathStr)

	if strings.Contains(pathStr, "pages/") {
		switch base {
		case "_app.tsx", "_app.jsx":
			return RoleNextApp
		case "_document.tsx", "_document.jsx":
			return RoleNextDocument
		}
		if strings.Contains(pathStr, "api/") {
			return RoleNextAPIRoute
		}
		return RoleNextPage
	}

	if strings.Contains(pathStr, "app/") {
		switch base {
		case "layout.tsx", "layout.jsx":
			return RoleNextLayout
		case "page.tsx", "page.jsx":
			return RoleNextAppRoute
		case "route.ts", "route.js":
			return RoleNextAPIHandler
		}
	}

	return ""
}

// heritageNames returns the unqualified base names from a class or
// interface declaration. It scans extends/implements clauses directly
// because the clause shapes differ between the JS and TS grammars.
func heritageNames(decl *sitter.Node, src []byte) []string {
	var names []string

	var collect func(n *sitter.Node)
	collect = func(n *sitter.Node) {
		for i := 0; i < int(n.ChildCount()); i++ {
			child := n.Child(i)
			switch child.Type() {
			case "identifier", "type_identifier":
				names = append(names, nodeText(child, src))
			case "member_expression", "nested_type_identifier":
				// React.Component keeps only the unqualified part
				if prop := child.ChildByFieldName("property"); prop != nil {
					names = append(names, nodeText(prop, src))
				} else if name := child.ChildByFieldName("name"); name != nil {
					names = append(names, nodeText(name, src))
				}
			case "generic_type":
				if name := child.ChildByFieldName("name"); name != nil {
					names = append(names, nodeText(name, src))
				}
			}
		}
	}

	for i := 0; i < int(decl.ChildCount()); i++ {
		child := decl.Child(i)
		switch child.Type() {
		case "class_heritage":
			// JS wraps the expression directly; TS nests clauses
			clauses := findByType(child, "extends_clause", "implements_clause")
			if len(clauses) == 0 {
				collect(child)
			}
			for _, clause := range clauses {
				collect(clause)
			}
		case "extends_clause", "implements_clause", "extends_type_clause":
			collect(child)
		}
	}

	return names
}
