// Package parse converts source text into uniform ASTNode lists across
// languages. A Registry maps file extensions to parsers; the Go parser
// carries no native dependencies and is always registered, while the
// tree-sitter parsers for Python, JavaScript, TypeScript and Rust are
// attached lazily and degrade to "no parser" when they cannot load.
package parse

import (
	"errors"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

// ErrParserUnavailable is returned when no parser is registered for a
// file's extension. Callers skip the file and continue.
var ErrParserUnavailable = errors.New("no parser available for file type")

// CodeParser is the contract each language parser implements.
//
// Invariants every implementation upholds:
//   - Name and Type are always set; StartLine/EndLine are 1-based inclusive.
//   - Content is the verbatim source text spanning StartLine..EndLine.
//   - Calls holds unqualified callee symbols reachable in the subtree.
//   - Inherits holds unqualified base names for classes/interfaces.
type CodeParser interface {
	// Parse extracts ASTNodes from source content. The path is carried
	// into each node and used for framework-role detection.
	Parse(path string, content []byte) ([]ASTNode, error)

	// Extensions returns the file extensions this parser handles,
	// lowercase with leading dot. The first is the canonical one.
	Extensions() []string

	// Language returns a short identifier for logging ("go", "python", ...).
	Language() string
}

// spanText returns the verbatim source lines start..end (1-based,
// inclusive), clamped to the file.
func spanText(lines []string, start, end int) string {
	if start < 1 || end < start || start > len(lines) {
		return ""
	}
	if end > len(lines) {
		end = len(lines)
	}
	return strings.Join(lines[start-1:end], "\n")
}

// nodeText returns the raw source text covered by a tree-sitter node.
func nodeText(n *sitter.Node, src []byte) string {
	return string(src[n.StartByte():n.EndByte()])
}

// nodeLines returns the 1-based inclusive line span of a tree-sitter node.
func nodeLines(n *sitter.Node) (int, int) {
	return int(n.StartPoint().Row) + 1, int(n.EndPoint().Row) + 1
}

// findByType collects every node in the subtree (root included) whose
// grammar type is in types, in document order.
func findByType(root *sitter.Node, types ...string) []*sitter.Node {
	var results []*sitter.Node
	var walk func(*sitter.Node)
	walk = func(n *sitter.Node) {
		t := n.Type()
		for _, want := range types {
			if t == want {
				results = append(results, n)
				break
			}
		}
		for i := 0; i < int(n.ChildCount()); i++ {
			walk(n.Child(i))
		}
	}
	walk(root)
	return results
}

// unquote strips matching string delimiters from a source literal.
func unquote(s string) string {
	s = strings.Trim(s, "\"")
	s = strings.Trim(s, "'")
	s = strings.Trim(s, "`")
	return s
}

// dedupe returns the input with duplicates removed, preserving first
// occurrence order.
func dedupe(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
