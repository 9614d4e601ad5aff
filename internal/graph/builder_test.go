package graph

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"swarm/internal/parse"
)

func writeTestFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestBuilder_GoSources(t *testing.T) {
	root := t.TempDir()
	writeTestFile(t, root, "svc/handler.go", `package svc

func Process() {
	validate()
}

func validate() {}
`)

	b := NewBuilder(parse.NewRegistry(true), 2)
	g, err := b.Build(context.Background(), root)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	if !g.HasNode("svc/handler.go::Process") {
		t.Errorf("missing Process node, have %v", g.NodeIDs())
	}
	typ, ok := g.EdgeType("svc/handler.go::Process", "svc/handler.go::validate")
	if !ok || typ != EdgeCalls {
		t.Errorf("call edge = %q, %v", typ, ok)
	}
}

func TestBuilder_SkipsVendoredDirs(t *testing.T) {
	root := t.TempDir()
	writeTestFile(t, root, "main.go", "package main\n\nfunc main() {}\n")
	writeTestFile(t, root, "vendor/dep/dep.go", "package dep\n\nfunc Hidden() {}\n")
	writeTestFile(t, root, "node_modules/x/index.go", "package x\n\nfunc Hidden() {}\n")

	b := NewBuilder(parse.NewRegistry(true), 2)
	g, err := b.Build(context.Background(), root)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	for _, id := range g.NodeIDs() {
		if SymbolPart(id) == "Hidden" {
			t.Errorf("vendored node leaked into graph: %s", id)
		}
	}
}

func TestBuilder_MalformedFileDoesNotSinkBuild(t *testing.T) {
	root := t.TempDir()
	writeTestFile(t, root, "good.go", "package good\n\nfunc Fine() {}\n")
	writeTestFile(t, root, "bad.go", "package {{{{\n")

	b := NewBuilder(parse.NewRegistry(true), 2)
	g, err := b.Build(context.Background(), root)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if !g.HasNode("good.go::Fine") {
		t.Error("healthy file dropped alongside malformed one")
	}
}

func TestBuilder_ContextCancellation(t *testing.T) {
	root := t.TempDir()
	for i := 0; i < 20; i++ {
		writeTestFile(t, root, filepath.Join("pkg", string(rune('a'+i))+".go"),
			"package pkg\n\nfunc F() {}\n")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	b := NewBuilder(parse.NewRegistry(true), 2)
	if _, err := b.Build(ctx, root); err == nil {
		t.Error("cancelled build returned nil error")
	}
}

func TestConnectAPIEdges_BridgesFrontendToHandler(t *testing.T) {
	g := NewGraph()
	g.SetMeta("web/app.jsx::UserList", &NodeMeta{
		File: "web/app.jsx", Name: "UserList", Type: "component",
		APICalls: []string{"/api/users/42"},
	})
	g.SetMeta("api/users.py::get_user", &NodeMeta{
		File: "api/users.py", Name: "get_user", Type: "function",
		APIRoute: "/api/users/:id",
	})

	added := connectAPIEdges(g)
	if added != 1 {
		t.Fatalf("added = %d, want 1", added)
	}
	typ, ok := g.EdgeType("web/app.jsx::UserList", "api/users.py::get_user")
	if !ok || typ != EdgeCallsAPI {
		t.Errorf("api edge = %q, %v", typ, ok)
	}
}

func TestNormalizeRoute(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"/api/users/123", "/api/users/:id"},
		{"/api/users/123/", "/api/users/:id"},
		{"/api/users?page=2", "/api/users"},
		{"/api/items/550e8400-e29b-41d4-a716-446655440000", "/api/items/:id"},
		{"/api/users/:id", "/api/users/:id"},
	}
	for _, tc := range cases {
		if got := NormalizeRoute(tc.in); got != tc.want {
			t.Errorf("NormalizeRoute(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
