package parse

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"strings"

	"swarm/internal/logging"
)

// GoParser extracts ASTNodes from Go source using the standard go/ast
// package. It carries no native dependencies and is the parser that is
// always registered.
type GoParser struct{}

// NewGoParser creates the native Go parser.
func NewGoParser() *GoParser {
	return &GoParser{}
}

// Language returns "go".
func (p *GoParser) Language() string { return "go" }

// Extensions returns [".go"].
func (p *GoParser) Extensions() []string { return []string{".go"} }

// Parse extracts functions, methods and type declarations.
func (p *GoParser) Parse(path string, content []byte) ([]ASTNode, error) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, path, content, parser.ParseComments)
	if err != nil {
		return nil, fmt.Errorf("go parse %s: %w", path, err)
	}

	lines := strings.Split(string(content), "\n")
	var nodes []ASTNode

	for _, decl := range file.Decls {
		switch d := decl.(type) {
		case *ast.FuncDecl:
			nodes = append(nodes, p.extractFunc(fset, d, path, lines))
		case *ast.GenDecl:
			if d.Tok == token.TYPE {
				nodes = append(nodes, p.extractTypes(fset, d, path, lines)...)
			}
		}
	}

	logging.ParseDebug("go: %s -> %d nodes", path, len(nodes))
	return nodes, nil
}

func (p *GoParser) extractFunc(fset *token.FileSet, d *ast.FuncDecl, path string, lines []string) ASTNode {
	start := fset.Position(d.Pos()).Line
	end := fset.Position(d.End()).Line

	name := d.Name.Name
	nodeType := NodeFunction
	if d.Recv != nil && len(d.Recv.List) > 0 {
		nodeType = NodeMethod
		if recv := receiverName(d.Recv.List[0].Type); recv != "" {
			name = recv + "." + name
		}
	}

	return ASTNode{
		Name:      name,
		Type:      nodeType,
		File:      path,
		StartLine: start,
		EndLine:   end,
		Content:   spanText(lines, start, end),
		Calls:     goCalls(d.Body),
	}
}

func (p *GoParser) extractTypes(fset *token.FileSet, d *ast.GenDecl, path string, lines []string) []ASTNode {
	var nodes []ASTNode
	for _, spec := range d.Specs {
		ts, ok := spec.(*ast.TypeSpec)
		if !ok {
			continue
		}

		start := fset.Position(ts.Pos()).Line
		end := fset.Position(ts.End()).Line
		nodeType := NodeType
		var inherits []string

		switch t := ts.Type.(type) {
		case *ast.StructType:
			nodeType = NodeStruct
			inherits = embeddedNames(t.Fields)
		case *ast.InterfaceType:
			nodeType = NodeInterface
			inherits = embeddedNames(t.Methods)
		}

		nodes = append(nodes, ASTNode{
			Name:      ts.Name.Name,
			Type:      nodeType,
			File:      path,
			StartLine: start,
			EndLine:   end,
			Content:   spanText(lines, start, end),
			Inherits:  inherits,
		})
	}
	return nodes
}

// goCalls collects unqualified callee names in a function body.
// pkg.Fn() and recv.Method() both contribute the bare symbol.
func goCalls(body *ast.BlockStmt) []string {
	if body == nil {
		return nil
	}
	var calls []string
	ast.Inspect(body, func(n ast.Node) bool {
		call, ok := n.(*ast.CallExpr)
		if !ok {
			return true
		}
		switch fn := call.Fun.(type) {
		case *ast.Ident:
			calls = append(calls, fn.Name)
		case *ast.SelectorExpr:
			calls = append(calls, fn.Sel.Name)
		}
		return true
	})
	return calls
}

// receiverName renders a method receiver type, keeping the pointer
// marker so Load and *Store.Load stay distinguishable.
func receiverName(expr ast.Expr) string {
	switch t := expr.(type) {
	case *ast.Ident:
		return t.Name
	case *ast.StarExpr:
		return "*" + receiverName(t.X)
	case *ast.IndexExpr:
		return receiverName(t.X)
	case *ast.IndexListExpr:
		return receiverName(t.X)
	}
	return ""
}

// embeddedNames returns the unqualified names of embedded fields, the
// Go analogue of base classes.
func embeddedNames(fields *ast.FieldList) []string {
	if fields == nil {
		return nil
	}
	var names []string
	for _, f := range fields.List {
		if len(f.Names) != 0 {
			continue
		}
		if name := embeddedTypeName(f.Type); name != "" {
			names = append(names, name)
		}
	}
	return names
}

func embeddedTypeName(expr ast.Expr) string {
	switch t := expr.(type) {
	case *ast.Ident:
		return t.Name
	case *ast.StarExpr:
		return embeddedTypeName(t.X)
	case *ast.SelectorExpr:
		return t.Sel.Name
	case *ast.IndexExpr:
		return embeddedTypeName(t.X)
	}
	return ""
}
