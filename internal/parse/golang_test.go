package parse

import (
	"testing"
)

func TestGoParser_Parse(t *testing.T) {
	src := `package store

import "fmt"

type Store struct {
	Base
	name string
}

type Reader interface {
	Closer
	Read(p []byte) (int, error)
}

func NewStore(name string) *Store {
	validate(name)
	return &Store{name: name}
}

func (s *Store) Load(path string) error {
	data, err := readAll(path)
	if err != nil {
		return fmt.Errorf("load: %w", err)
	}
	s.apply(data)
	return nil
}
`
	p := NewGoParser()
	if p.Language() != "go" {
		t.Errorf("Language() = %s, want go", p.Language())
	}

	nodes, err := p.Parse("store.go", []byte(src))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	byName := make(map[string]ASTNode)
	for _, n := range nodes {
		byName[n.Name] = n
	}

	st, ok := byName["Store"]
	if !ok {
		t.Fatal("did not find Store struct")
	}
	if st.Type != NodeStruct {
		t.Errorf("Store type = %s, want struct", st.Type)
	}
	if len(st.Inherits) != 1 || st.Inherits[0] != "Base" {
		t.Errorf("Store inherits = %v, want [Base]", st.Inherits)
	}

	iface, ok := byName["Reader"]
	if !ok {
		t.Fatal("did not find Reader interface")
	}
	if iface.Type != NodeInterface {
		t.Errorf("Reader type = %s, want interface", iface.Type)
	}
	if len(iface.Inherits) != 1 || iface.Inherits[0] != "Closer" {
		t.Errorf("Reader inherits = %v, want [Closer]", iface.Inherits)
	}

	fn, ok := byName["NewStore"]
	if !ok {
		t.Fatal("did not find NewStore function")
	}
	if fn.Type != NodeFunction {
		t.Errorf("NewStore type = %s, want function", fn.Type)
	}
	if len(fn.Calls) != 1 || fn.Calls[0] != "validate" {
		t.Errorf("NewStore calls = %v, want [validate]", fn.Calls)
	}

	method, ok := byName["*Store.Load"]
	if !ok {
		t.Fatalf("did not find *Store.Load method, have %v", names(nodes))
	}
	if method.Type != NodeMethod {
		t.Errorf("Load type = %s, want method", method.Type)
	}
	// Selector calls contribute the bare symbol
	wantCalls := map[string]bool{"readAll": true, "Errorf": true, "apply": true}
	for _, c := range method.Calls {
		if !wantCalls[c] {
			t.Errorf("unexpected call %q in %v", c, method.Calls)
		}
		delete(wantCalls, c)
	}
	if len(wantCalls) != 0 {
		t.Errorf("missing calls: %v", wantCalls)
	}
}

func TestGoParser_LinesAndContent(t *testing.T) {
	src := `package x

func hello() {
	println("hi")
}
`
	nodes, err := NewGoParser().Parse("x.go", []byte(src))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(nodes) != 1 {
		t.Fatalf("got %d nodes, want 1", len(nodes))
	}

	n := nodes[0]
	if n.StartLine != 3 || n.EndLine != 5 {
		t.Errorf("lines = %d..%d, want 3..5", n.StartLine, n.EndLine)
	}
	want := "func hello() {\n\tprintln(\"hi\")\n}"
	if n.Content != want {
		t.Errorf("content = %q, want %q", n.Content, want)
	}
}

func TestGoParser_SyntaxError(t *testing.T) {
	_, err := NewGoParser().Parse("bad.go", []byte("package x\nfunc {"))
	if err == nil {
		t.Fatal("expected error for invalid source")
	}
}

func names(nodes []ASTNode) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = n.Name
	}
	return out
}

func findNode(t *testing.T, nodes []ASTNode, name string) ASTNode {
	t.Helper()
	for _, n := range nodes {
		if n.Name == name {
			return n
		}
	}
	t.Fatalf("node %q not found in %v", name, names(nodes))
	return ASTNode{}
}

func containsStr(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
