package parse

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"swarm/internal/logging"
)

// Registry routes parse requests to language parsers by file extension.
//
// The Go parser is registered at construction and is always available.
// The tree-sitter parsers (Python, JavaScript, TypeScript, Rust) attach
// on the first lookup; a parser whose grammar fails to load is skipped
// with a debug log so a missing dependency never takes the build down.
// Lite mode skips the optional parsers entirely.
type Registry struct {
	mu       sync.RWMutex
	parsers  map[string]CodeParser // extension -> parser
	liteMode bool
	loaded   bool
}

// NewRegistry creates a Registry with the native parser registered.
func NewRegistry(liteMode bool) *Registry {
	r := &Registry{
		parsers:  make(map[string]CodeParser),
		liteMode: liteMode,
	}
	r.register(NewGoParser())
	logging.ParseDebug("registry: registered native parser (go), lite=%v", liteMode)
	return r
}

// Register adds a parser for its declared extensions, replacing any
// previous registration for the same extension.
func (r *Registry) Register(p CodeParser) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.register(p)
}

func (r *Registry) register(p CodeParser) {
	for _, ext := range p.Extensions() {
		r.parsers[normalizeExt(ext)] = p
	}
}

// ParserFor returns the parser for a file path, or nil when the
// extension has no parser. The first call attaches optional parsers.
func (r *Registry) ParserFor(path string) CodeParser {
	r.ensureOptional()

	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.parsers[normalizeExt(filepath.Ext(path))]
}

// HasParser reports whether a parser exists for the given file path.
func (r *Registry) HasParser(path string) bool {
	return r.ParserFor(path) != nil
}

// Parse extracts ASTNodes from a file using the matching parser.
// Returns ErrParserUnavailable when no parser handles the extension.
func (r *Registry) Parse(path string, content []byte) ([]ASTNode, error) {
	p := r.ParserFor(path)
	if p == nil {
		return nil, fmt.Errorf("%w: %s", ErrParserUnavailable, filepath.Ext(path))
	}
	return p.Parse(path, content)
}

// SupportedExtensions returns all registered extensions, sorted.
func (r *Registry) SupportedExtensions() []string {
	r.ensureOptional()

	r.mu.RLock()
	defer r.mu.RUnlock()
	exts := make([]string, 0, len(r.parsers))
	for ext := range r.parsers {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// Languages returns the registered language identifiers, sorted.
func (r *Registry) Languages() []string {
	r.ensureOptional()

	r.mu.RLock()
	defer r.mu.RUnlock()
	seen := make(map[string]bool)
	var langs []string
	for _, p := range r.parsers {
		if !seen[p.Language()] {
			seen[p.Language()] = true
			langs = append(langs, p.Language())
		}
	}
	sort.Strings(langs)
	return langs
}

// ensureOptional attaches the tree-sitter parsers once. Grammar load
// failures are recovered and logged; the affected language stays
// unregistered.
func (r *Registry) ensureOptional() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.loaded {
		return
	}
	r.loaded = true

	if r.liteMode {
		logging.ParseDebug("registry: lite mode, optional parsers disabled")
		return
	}

	var attached []string
	for _, load := range []struct {
		lang string
		make func() CodeParser
	}{
		{"python", func() CodeParser { return NewPythonParser() }},
		{"javascript", func() CodeParser { return NewJavaScriptParser() }},
		{"typescript", func() CodeParser { return NewTypeScriptParser() }},
		{"rust", func() CodeParser { return NewRustParser() }},
	} {
		if p := safeConstruct(load.lang, load.make); p != nil {
			r.register(p)
			attached = append(attached, load.lang)
		}
	}

	if len(attached) > 0 {
		logging.Parse("registry: multi-language support enabled: %s", strings.Join(attached, ", "))
	} else {
		logging.ParseDebug("registry: no optional parsers loaded")
	}
}

// safeConstruct builds an optional parser, converting a grammar-load
// panic into a nil parser.
func safeConstruct(lang string, make func() CodeParser) (p CodeParser) {
	defer func() {
		if rec := recover(); rec != nil {
			logging.ParseDebug("registry: %s parser unavailable: %v", lang, rec)
			p = nil
		}
	}()
	return make()
}

// normalizeExt lowercases an extension and ensures a leading dot.
func normalizeExt(ext string) string {
	ext = strings.ToLower(ext)
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}
