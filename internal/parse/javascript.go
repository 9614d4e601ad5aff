package parse

import (
	"context"
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"

	"swarm/internal/logging"
)

// JavaScriptParser extracts ASTNodes from JavaScript and JSX source via
// tree-sitter. React components, rendered JSX tags, hooks usage and
// fetch/axios API calls are annotated on the way out.
type JavaScriptParser struct {
	parser *sitter.Parser
}

// NewJavaScriptParser creates a JavaScript/JSX parser.
func NewJavaScriptParser() *JavaScriptParser {
	p := sitter.NewParser()
	p.SetLanguage(javascript.GetLanguage())
	return &JavaScriptParser{parser: p}
}

// Language returns "javascript".
func (p *JavaScriptParser) Language() string { return "javascript" }

// Extensions returns [".js", ".jsx", ".mjs", ".cjs"].
func (p *JavaScriptParser) Extensions() []string {
	return []string{".js", ".jsx", ".mjs", ".cjs"}
}

// Parse extracts function declarations, arrow functions bound to
// variables, and class declarations.
func (p *JavaScriptParser) Parse(path string, content []byte) ([]ASTNode, error) {
	tree, err := p.parser.ParseCtx(context.Background(), nil, content)
	if err != nil {
		return nil, fmt.Errorf("javascript parse %s: %w", path, err)
	}
	defer tree.Close()

	lines := strings.Split(string(content), "\n")
	root := tree.RootNode()
	var nodes []ASTNode

	for _, fn := range findByType(root, "function_declaration") {
		nodes = append(nodes, extractJSCallable(fn, fn, path, content, lines))
	}
	for _, decl := range findByType(root, "variable_declarator") {
		if value := decl.ChildByFieldName("value"); value != nil && value.Type() == "arrow_function" {
			nodes = append(nodes, extractJSCallable(decl, value, path, content, lines))
		}
	}
	for _, class := range findByType(root, "class_declaration") {
		nodes = append(nodes, extractJSClass(class, path, content, lines))
	}

	logging.ParseDebug("javascript: %s -> %d nodes", path, len(nodes))
	return nodes, nil
}

// extractJSCallable turns a function declaration or arrow binding into
// an ASTNode. decl spans the source; body is what gets inspected for
// calls and JSX (the arrow function itself for bindings).
func extractJSCallable(decl, body *sitter.Node, path string, src []byte, lines []string) ASTNode {
	start, end := nodeLines(decl)
	name := "<anonymous>"
	if nameNode := decl.ChildByFieldName("name"); nameNode != nil {
		name = nodeText(nameNode, src)
	}

	node := ASTNode{
		Name:          name,
		Type:          NodeFunction,
		File:          path,
		StartLine:     start,
		EndLine:       end,
		Content:       spanText(lines, start, end),
		Calls:         jsLikeCalls(body, src),
		FrameworkRole: detectNextRole(path),
		APICalls:      jsAPICalls(body, src),
	}

	if isReactComponent(body, name) {
		node.Type = NodeComponent
		node.Renders = jsxRenders(body, src)
		if hooks := reactHooks(body, src); len(hooks) > 0 {
			node.Metadata = map[string]interface{}{"hooks": hooks}
		}
	}

	return node
}

func extractJSClass(n *sitter.Node, path string, src []byte, lines []string) ASTNode {
	start, end := nodeLines(n)
	name := "<anonymous>"
	if nameNode := n.ChildByFieldName("name"); nameNode != nil {
		name = nodeText(nameNode, src)
	}

	return ASTNode{
		Name:      name,
		Type:      NodeClass,
		File:      path,
		StartLine: start,
		EndLine:   end,
		Content:   spanText(lines, start, end),
		Calls:     jsLikeCalls(n, src),
		Inherits:  heritageNames(n, src),
	}
}
