package graph

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestCache_RoundTrip(t *testing.T) {
	g := twoNodeGraph()
	path := filepath.Join(t.TempDir(), DefaultCacheName)
	hash := [32]byte{1, 2, 3}

	if err := SaveCache(path, g, hash); err != nil {
		t.Fatalf("SaveCache failed: %v", err)
	}
	loaded, err := LoadCache(path, hash)
	if err != nil {
		t.Fatalf("LoadCache failed: %v", err)
	}

	if loaded.NodeCount() != g.NodeCount() || loaded.EdgeCount() != g.EdgeCount() {
		t.Errorf("loaded %d/%d nodes/edges, want %d/%d",
			loaded.NodeCount(), loaded.EdgeCount(), g.NodeCount(), g.EdgeCount())
	}
	m := loaded.Meta("a.py::alpha")
	if m == nil || m.Content != "def alpha():\n    beta()" {
		t.Errorf("metadata lost: %+v", m)
	}
	typ, ok := loaded.EdgeType("a.py::alpha", "b.py::beta")
	if !ok || typ != EdgeCalls {
		t.Errorf("edge lost: %q, %v", typ, ok)
	}
}

func TestCache_SourceHashMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultCacheName)
	if err := SaveCache(path, twoNodeGraph(), [32]byte{1}); err != nil {
		t.Fatalf("SaveCache failed: %v", err)
	}

	if _, err := LoadCache(path, [32]byte{2}); !errors.Is(err, ErrCacheStale) {
		t.Errorf("err = %v, want ErrCacheStale", err)
	}
}

func TestCache_BadMagic(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultCacheName)
	if err := os.WriteFile(path, []byte("NOPE and then some garbage"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadCache(path, [32]byte{}); !errors.Is(err, ErrCacheStale) {
		t.Errorf("err = %v, want ErrCacheStale", err)
	}
}

func TestCache_MissingFile(t *testing.T) {
	_, err := LoadCache(filepath.Join(t.TempDir(), "absent"), [32]byte{})
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("err = %v, want os.ErrNotExist", err)
	}
}

func TestCache_TruncatedEnvelope(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultCacheName)
	data := append([]byte{}, cacheMagic[:]...)
	data = append(data, cacheFormatVersion)
	data = append(data, 0xc1) // invalid msgpack byte
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadCache(path, [32]byte{}); !errors.Is(err, ErrCacheStale) {
		t.Errorf("err = %v, want ErrCacheStale", err)
	}
}

func TestHashSources_TracksContent(t *testing.T) {
	root := t.TempDir()
	writeTestFile(t, root, "a.go", "package a\n")

	before := HashSources(root, []string{"a.go"})
	writeTestFile(t, root, "a.go", "package a // changed\n")
	after := HashSources(root, []string{"a.go"})

	if before == after {
		t.Error("hash unchanged after content edit")
	}
	// A vanished file still changes the digest through its path entry.
	gone := HashSources(root, []string{"a.go", "b.go"})
	if gone == after {
		t.Error("hash unchanged after file list change")
	}
}
