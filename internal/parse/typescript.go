package parse

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"

	"swarm/internal/logging"
)

// TypeScriptParser extracts ASTNodes from TypeScript and TSX source.
// TSX needs its own grammar, so the parser keeps one per dialect and
// picks by extension.
type TypeScriptParser struct {
	tsParser  *sitter.Parser
	tsxParser *sitter.Parser
}

// NewTypeScriptParser creates a TypeScript/TSX parser.
func NewTypeScriptParser() *TypeScriptParser {
	ts := sitter.NewParser()
	ts.SetLanguage(typescript.GetLanguage())
	tsxP := sitter.NewParser()
	tsxP.SetLanguage(tsx.GetLanguage())
	return &TypeScriptParser{tsParser: ts, tsxParser: tsxP}
}

// Language returns "typescript".
func (p *TypeScriptParser) Language() string { return "typescript" }

// Extensions returns [".ts", ".tsx", ".mts", ".cts"].
func (p *TypeScriptParser) Extensions() []string {
	return []string{".ts", ".tsx", ".mts", ".cts"}
}

// Parse extracts functions, arrow bindings, classes, interfaces and
// type aliases. React annotations follow the JavaScript rules.
func (p *TypeScriptParser) Parse(path string, content []byte) ([]ASTNode, error) {
	parser := p.tsParser
	if strings.ToLower(filepath.Ext(path)) == ".tsx" {
		parser = p.tsxParser
	}

	tree, err := parser.ParseCtx(context.Background(), nil, content)
	if err != nil {
		return nil, fmt.Errorf("typescript parse %s: %w", path, err)
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
	for _, iface := range findByType(root, "interface_declaration") {
		nodes = append(nodes, p.extractInterface(iface, path, content, lines))
	}
	for _, alias := range findByType(root, "type_alias_declaration") {
		nodes = append(nodes, p.extractTypeAlias(alias, path, content, lines))
	}

	logging.ParseDebug("typescript: %s -> %d nodes", path, len(nodes))
	return nodes, nil
}

func (p *TypeScriptParser) extractInterface(n *sitter.Node, path string, src []byte, lines []string) ASTNode {
	start, end := nodeLines(n)
	name := "<anonymous>"
	if nameNode := n.ChildByFieldName("name"); nameNode != nil {
		name = nodeText(nameNode, src)
	}

	return ASTNode{
		Name:      name,
		Type:      NodeInterface,
		File:      path,
		StartLine: start,
		EndLine:   end,
		Content:   spanText(lines, start, end),
		Inherits:  heritageNames(n, src),
	}
}

func (p *TypeScriptParser) extractTypeAlias(n *sitter.Node, path string, src []byte, lines []string) ASTNode {
	start, end := nodeLines(n)
	name := "<anonymous>"
	if nameNode := n.ChildByFieldName("name"); nameNode != nil {
		name = nodeText(nameNode, src)
	}

	return ASTNode{
		Name:      name,
		Type:      NodeType,
		File:      path,
		StartLine: start,
		EndLine:   end,
		Content:   spanText(lines, start, end),
	}
}
