package parse

import (
	"testing"
)

func TestPythonParser_ClassesAndFunctions(t *testing.T) {
	src := `import os

class UserService(BaseService, mixins.Cacheable):
    def __init__(self, db):
        self.db = db

    def find(self, user_id):
        row = self.db.query(user_id)
        return format_row(row)

def standalone():
    helper()
`
	p := NewPythonParser()
	nodes, err := p.Parse("service.py", []byte(src))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	cls := findNode(t, nodes, "UserService")
	if cls.Type != NodeClass {
		t.Errorf("UserService type = %s, want class", cls.Type)
	}
	// Dotted bases keep only the unqualified name
	if len(cls.Inherits) != 2 || cls.Inherits[0] != "BaseService" || cls.Inherits[1] != "Cacheable" {
		t.Errorf("inherits = %v, want [BaseService Cacheable]", cls.Inherits)
	}

	// Methods surface as plain functions
	find := findNode(t, nodes, "find")
	if find.Type != NodeFunction {
		t.Errorf("find type = %s, want function", find.Type)
	}
	if !containsStr(find.Calls, "query") || !containsStr(find.Calls, "format_row") {
		t.Errorf("find calls = %v, want query and format_row", find.Calls)
	}

	standalone := findNode(t, nodes, "standalone")
	if !containsStr(standalone.Calls, "helper") {
		t.Errorf("standalone calls = %v, want helper", standalone.Calls)
	}
}

func TestPythonParser_APIRoute(t *testing.T) {
	src := `@app.get("/api/users")
def list_users():
    return db.all()

@router.post("/api/comments")
def add_comment(body):
    return db.insert(body)

@app.get("/health")
def health():
    return "ok"

def plain():
    pass
`
	nodes, err := NewPythonParser().Parse("routes.py", []byte(src))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if got := findNode(t, nodes, "list_users").APIRoute; got != "/api/users" {
		t.Errorf("list_users route = %q, want /api/users", got)
	}
	if got := findNode(t, nodes, "add_comment").APIRoute; got != "/api/comments" {
		t.Errorf("add_comment route = %q, want /api/comments", got)
	}
	// Non-/api paths are not API routes
	if got := findNode(t, nodes, "health").APIRoute; got != "" {
		t.Errorf("health route = %q, want empty", got)
	}
	if got := findNode(t, nodes, "plain").APIRoute; got != "" {
		t.Errorf("plain route = %q, want empty", got)
	}
}

func TestPythonParser_LinesAndContent(t *testing.T) {
	src := `x = 1

def f():
    return 2
`
	nodes, err := NewPythonParser().Parse("f.py", []byte(src))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	fn := findNode(t, nodes, "f")
	if fn.StartLine != 3 || fn.EndLine != 4 {
		t.Errorf("lines = %d..%d, want 3..4", fn.StartLine, fn.EndLine)
	}
	want := "def f():\n    return 2"
	if fn.Content != want {
		t.Errorf("content = %q, want %q", fn.Content, want)
	}
}

func TestPythonParser_NestedFunctions(t *testing.T) {
	src := `def outer():
    def inner():
        pass
    inner()
`
	nodes, err := NewPythonParser().Parse("nested.py", []byte(src))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(nodes) != 2 {
		t.Fatalf("got %d nodes, want 2 (outer and inner)", len(nodes))
	}
	findNode(t, nodes, "outer")
	findNode(t, nodes, "inner")
}
