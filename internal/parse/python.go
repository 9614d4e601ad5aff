package parse

import (
	"context"
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"

	"swarm/internal/logging"
)

// routeMethods are the decorator attributes that may declare an API
// route, e.g. @app.get("/api/users") or @router.route("/api/data").
var routeMethods = map[string]bool{
	"get":    true,
	"post":   true,
	"put":    true,
	"delete": true,
	"patch":  true,
	"route":  true,
}

// PythonParser extracts ASTNodes from Python source via tree-sitter.
type PythonParser struct {
	parser *sitter.Parser
}

// NewPythonParser creates a Python parser.
func NewPythonParser() *PythonParser {
	p := sitter.NewParser()
	p.SetLanguage(python.GetLanguage())
	return &PythonParser{parser: p}
}

// Language returns "python".
func (p *PythonParser) Language() string { return "python" }

// Extensions returns [".py", ".pyw"].
func (p *PythonParser) Extensions() []string { return []string{".py", ".pyw"} }

// Parse extracts functions and classes at every nesting depth. Methods
// surface as plain functions, the flat view the graph builder expects.
func (p *PythonParser) Parse(path string, content []byte) ([]ASTNode, error) {
	tree, err := p.parser.ParseCtx(context.Background(), nil, content)
	if err != nil {
		return nil, fmt.Errorf("python parse %s: %w", path, err)
	}
	defer tree.Close()

	lines := strings.Split(string(content), "\n")
	var nodes []ASTNode

	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		for i := 0; i < int(n.NamedChildCount()); i++ {
			child := n.NamedChild(i)
			switch child.Type() {
			case "function_definition":
				nodes = append(nodes, p.extractFunction(child, nil, path, content, lines))
				walk(child)
			case "class_definition":
				nodes = append(nodes, p.extractClass(child, path, content, lines))
				walk(child)
			case "decorated_definition":
				decorators := pyDecorators(child)
				def := child.ChildByFieldName("definition")
				if def == nil {
					continue
				}
				switch def.Type() {
				case "function_definition":
					nodes = append(nodes, p.extractFunction(def, decorators, path, content, lines))
				case "class_definition":
					nodes = append(nodes, p.extractClass(def, path, content, lines))
				}
				walk(def)
			default:
				walk(child)
			}
		}
	}
	walk(tree.RootNode())

	logging.ParseDebug("python: %s -> %d nodes", path, len(nodes))
	return nodes, nil
}

func (p *PythonParser) extractFunction(n *sitter.Node, decorators []*sitter.Node, path string, src []byte, lines []string) ASTNode {
	start, end := nodeLines(n)
	name := "<anonymous>"
	if nameNode := n.ChildByFieldName("name"); nameNode != nil {
		name = nodeText(nameNode, src)
	}

	return ASTNode{
		Name:      name,
		Type:      NodeFunction,
		File:      path,
		StartLine: start,
		EndLine:   end,
		Content:   spanText(lines, start, end),
		Calls:     pyCalls(n, src, true),
		APIRoute:  pyAPIRoute(decorators, src),
	}
}

func (p *PythonParser) extractClass(n *sitter.Node, path string, src []byte, lines []string) ASTNode {
	start, end := nodeLines(n)
	name := "<anonymous>"
	if nameNode := n.ChildByFieldName("name"); nameNode != nil {
		name = nodeText(nameNode, src)
	}

	var inherits []string
	if supers := n.ChildByFieldName("superclasses"); supers != nil {
		for i := 0; i < int(supers.NamedChildCount()); i++ {
			base := supers.NamedChild(i)
			switch base.Type() {
			case "identifier":
				inherits = append(inherits, nodeText(base, src))
			case "attribute":
				// module.BaseClass keeps only the unqualified name
				if attr := base.ChildByFieldName("attribute"); attr != nil {
					inherits = append(inherits, nodeText(attr, src))
				}
			}
		}
	}

	return ASTNode{
		Name:      name,
		Type:      NodeClass,
		File:      path,
		StartLine: start,
		EndLine:   end,
		Content:   spanText(lines, start, end),
		Calls:     pyCalls(n, src, false),
		Inherits:  inherits,
	}
}

// pyCalls collects unqualified callee names within the subtree. Method
// calls like obj.save() contribute "save" when withAttributes is set.
func pyCalls(n *sitter.Node, src []byte, withAttributes bool) []string {
	var calls []string
	for _, call := range findByType(n, "call") {
		fn := call.ChildByFieldName("function")
		if fn == nil {
			continue
		}
		switch fn.Type() {
		case "identifier":
			calls = append(calls, nodeText(fn, src))
		case "attribute":
			if !withAttributes {
				continue
			}
			if attr := fn.ChildByFieldName("attribute"); attr != nil {
				calls = append(calls, nodeText(attr, src))
			}
		}
	}
	return calls
}

// pyDecorators returns the decorator nodes of a decorated_definition.
func pyDecorators(n *sitter.Node) []*sitter.Node {
	var decorators []*sitter.Node
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		if child.Type() == "decorator" {
			decorators = append(decorators, child)
		}
	}
	return decorators
}

// pyAPIRoute picks the served route out of handler decorators.
// Matches @<app>.{get,post,put,delete,patch,route}("/api/...") and
// returns the first /api path found.
func pyAPIRoute(decorators []*sitter.Node, src []byte) string {
	for _, dec := range decorators {
		for i := 0; i < int(dec.NamedChildCount()); i++ {
			expr := dec.NamedChild(i)
			if expr.Type() != "call" {
				continue
			}
			fn := expr.ChildByFieldName("function")
			if fn == nil || fn.Type() != "attribute" {
				continue
			}
			attr := fn.ChildByFieldName("attribute")
			if attr == nil || !routeMethods[nodeText(attr, src)] {
				continue
			}
			args := expr.ChildByFieldName("arguments")
			if args == nil {
				continue
			}
			for j := 0; j < int(args.NamedChildCount()); j++ {
				arg := args.NamedChild(j)
				if arg.Type() != "string" {
					break
				}
				route := unquote(nodeText(arg, src))
				if strings.HasPrefix(route, "/api") {
					return route
				}
				break
			}
		}
	}
	return ""
}
