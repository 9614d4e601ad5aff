package parse

import (
	"context"
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/rust"

	"swarm/internal/logging"
)

// RustParser extracts ASTNodes from Rust source via tree-sitter.
type RustParser struct {
	parser *sitter.Parser
}

// NewRustParser creates a Rust parser.
func NewRustParser() *RustParser {
	p := sitter.NewParser()
	p.SetLanguage(rust.GetLanguage())
	return &RustParser{parser: p}
}

// Language returns "rust".
func (p *RustParser) Language() string { return "rust" }

// Extensions returns [".rs"].
func (p *RustParser) Extensions() []string { return []string{".rs"} }

// Parse extracts functions, structs, impl methods, traits and modules.
// A function inside an impl block surfaces twice, once under its bare
// name and once as Type::name; the graph keys on the name so both
// views coexist.
func (p *RustParser) Parse(path string, content []byte) ([]ASTNode, error) {
	tree, err := p.parser.ParseCtx(context.Background(), nil, content)
	if err != nil {
		return nil, fmt.Errorf("rust parse %s: %w", path, err)
	}
	defer tree.Close()

	lines := strings.Split(string(content), "\n")
	root := tree.RootNode()
	var nodes []ASTNode

	for _, fn := range findByType(root, "function_item") {
		nodes = append(nodes, p.extractNamed(fn, NodeFunction, path, content, lines, rustCalls(fn, content)))
	}
	for _, st := range findByType(root, "struct_item") {
		nodes = append(nodes, p.extractNamed(st, NodeStruct, path, content, lines, nil))
	}
	for _, impl := range findByType(root, "impl_item") {
		nodes = append(nodes, p.extractImplMethods(impl, path, content, lines)...)
	}
	for _, tr := range findByType(root, "trait_item") {
		nodes = append(nodes, p.extractNamed(tr, NodeTrait, path, content, lines, nil))
	}
	for _, mod := range findByType(root, "mod_item") {
		nodes = append(nodes, p.extractNamed(mod, NodeModule, path, content, lines, nil))
	}

	logging.ParseDebug("rust: %s -> %d nodes", path, len(nodes))
	return nodes, nil
}

func (p *RustParser) extractNamed(n *sitter.Node, nodeType, path string, src []byte, lines []string, calls []string) ASTNode {
	start, end := nodeLines(n)
	name := "<anonymous>"
	if nameNode := n.ChildByFieldName("name"); nameNode != nil {
		name = nodeText(nameNode, src)
	}

	return ASTNode{
		Name:      name,
		Type:      nodeType,
		File:      path,
		StartLine: start,
		EndLine:   end,
		Content:   spanText(lines, start, end),
		Calls:     calls,
	}
}

// extractImplMethods walks an impl block and emits Type::method nodes.
func (p *RustParser) extractImplMethods(impl *sitter.Node, path string, src []byte, lines []string) []ASTNode {
	implName := "UnknownImpl"
	if typeNode := impl.ChildByFieldName("type"); typeNode != nil {
		implName = nodeText(typeNode, src)
	}

	var nodes []ASTNode
	for _, fn := range findByType(impl, "function_item") {
		nameNode := fn.ChildByFieldName("name")
		if nameNode == nil {
			continue
		}
		start, end := nodeLines(fn)
		nodes = append(nodes, ASTNode{
			Name:      implName + "::" + nodeText(nameNode, src),
			Type:      NodeMethod,
			File:      path,
			StartLine: start,
			EndLine:   end,
			Content:   spanText(lines, start, end),
			Calls:     rustCalls(fn, src),
		})
	}
	return nodes
}

// rustCalls collects unqualified callee names: foo() and path::to::foo()
// both contribute "foo", obj.method() contributes "method".
func rustCalls(n *sitter.Node, src []byte) []string {
	var calls []string
	for _, call := range findByType(n, "call_expression") {
		fn := call.ChildByFieldName("function")
		if fn == nil {
			continue
		}
		switch fn.Type() {
		case "identifier":
			calls = append(calls, nodeText(fn, src))
		case "scoped_identifier":
			if name := fn.ChildByFieldName("name"); name != nil {
				calls = append(calls, nodeText(name, src))
			}
		case "field_expression":
			if field := fn.ChildByFieldName("field"); field != nil {
				calls = append(calls, nodeText(field, src))
			}
		}
	}
	return calls
}
