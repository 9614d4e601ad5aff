package graph

import (
	"path/filepath"
	"testing"
)

func TestSQLStore_Snapshot(t *testing.T) {
	store, err := OpenSQLStore(filepath.Join(t.TempDir(), "graph.db"))
	if err != nil {
		t.Fatalf("OpenSQLStore failed: %v", err)
	}
	defer store.Close()

	g := twoNodeGraph()
	g.AddEdge("a.py::alpha", "a.py::phantom", EdgeCalls)

	if err := store.Snapshot(g); err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	nodes, edges, err := store.Counts()
	if err != nil {
		t.Fatalf("Counts failed: %v", err)
	}
	if nodes != g.NodeCount() || edges != g.EdgeCount() {
		t.Errorf("stored %d/%d, want %d/%d", nodes, edges, g.NodeCount(), g.EdgeCount())
	}

	// A second snapshot replaces, not appends.
	if err := store.Snapshot(twoNodeGraph()); err != nil {
		t.Fatalf("second Snapshot failed: %v", err)
	}
	nodes, edges, err = store.Counts()
	if err != nil {
		t.Fatalf("Counts failed: %v", err)
	}
	if nodes != 2 || edges != 1 {
		t.Errorf("after replace: %d/%d, want 2/1", nodes, edges)
	}
}
