// Package policy evaluates kernel dispatch as a datalog program: which
// tasks are ready to run (every dependency COMPLETED) and which roles are
// eligible to run them (performance index clear of the circuit breaker).
// The base program is compiled once; callers may layer extra rule fragments
// on top, and a fragment that fails analysis is rolled back so a bad rule
// can never brick dispatch.
package policy

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"

	"swarm/internal/logging"

	"github.com/google/mangle/analysis"
	"github.com/google/mangle/ast"
	_ "github.com/google/mangle/builtin"
	"github.com/google/mangle/parse"
)

// unsafeNegationPattern matches negated atoms containing anonymous
// variables, e.g. !completed(_). The anonymous variable is unbound inside
// the negation, which violates negation safety.
var unsafeNegationPattern = regexp.MustCompile(`!\s*\w+\s*\([^)]*_[^)]*\)`)

// checkUnsafeNegation rejects rule text with anonymous variables in negated
// atoms before it ever reaches the analyzer.
func checkUnsafeNegation(rules string) error {
	if m := unsafeNegationPattern.FindString(rules); m != "" {
		return fmt.Errorf("unsafe negation %q: anonymous variables in a negated atom are unbound; bind them with a positive atom or a helper predicate", m)
	}
	return nil
}

// Engine holds the compiled dispatch program. Facts are asserted per
// evaluation into a throwaway store, so the engine itself carries no
// mutable world state between ticks.
type Engine struct {
	mu          sync.RWMutex
	fragments   []parse.SourceUnit
	program     *analysis.ProgramInfo
	preds       map[string]ast.PredicateSym
	loadedFiles map[string]struct{}
}

// NewEngine parses and analyzes the base dispatch program.
func NewEngine() (*Engine, error) {
	e := &Engine{loadedFiles: make(map[string]struct{})}
	if err := e.loadFragment(dispatchProgram); err != nil {
		return nil, fmt.Errorf("compile dispatch program: %w", err)
	}
	logging.Policy("Dispatch policy compiled: %d predicates", len(e.preds))
	return e, nil
}

// LoadRules layers an additional rule fragment onto the base program.
// The fragment must declare any new predicates it derives and may
// reference every predicate of the base program. It is rejected wholesale
// when it fails analysis, leaving the previous program in force.
func (e *Engine) LoadRules(src string) error {
	if strings.TrimSpace(src) == "" {
		return fmt.Errorf("empty rules")
	}
	if err := checkUnsafeNegation(src); err != nil {
		logging.Get(logging.CategoryPolicy).Error("Rule fragment rejected: %v", err)
		return err
	}
	if err := e.loadFragment(src); err != nil {
		logging.Get(logging.CategoryPolicy).Error("Rule fragment rejected: %v", err)
		return fmt.Errorf("rules rejected: %w", err)
	}
	logging.Policy("Loaded rule fragment (%d bytes)", len(src))
	return nil
}

// LoadRulesFile reads a .mg file and appends its rules. Files are tracked
// by base name; loading the same file twice is a no-op.
func (e *Engine) LoadRulesFile(path string) error {
	key := strings.ToLower(filepath.Base(path))

	e.mu.RLock()
	_, seen := e.loadedFiles[key]
	e.mu.RUnlock()
	if seen {
		logging.PolicyDebug("Rules file already loaded, skipping: %s", path)
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read rules file: %w", err)
	}
	if err := e.LoadRules(string(data)); err != nil {
		return fmt.Errorf("load %s: %w", filepath.Base(path), err)
	}

	e.mu.Lock()
	e.loadedFiles[key] = struct{}{}
	e.mu.Unlock()

	logging.Policy("Loaded dispatch rules from %s", path)
	return nil
}

// DeclaredPredicates returns the sorted predicate names of the compiled
// program, base and layered fragments combined.
func (e *Engine) DeclaredPredicates() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	names := make([]string, 0, len(e.preds))
	for name := range e.preds {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// loadFragment parses one source unit, appends it, and rebuilds the
// program. On analysis failure the fragment is popped; a failed rebuild
// never touches the previously compiled program.
func (e *Engine) loadFragment(src string) error {
	unit, err := parse.Unit(strings.NewReader(src))
	if err != nil {
		return fmt.Errorf("parse rules: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.fragments = append(e.fragments, unit)
	if err := e.rebuildLocked(); err != nil {
		e.fragments = e.fragments[:len(e.fragments)-1]
		return fmt.Errorf("analyze rules: %w", err)
	}
	return nil
}

// rebuildLocked re-analyzes all fragments as one unit and refreshes the
// predicate index. Program fields are only assigned on success.
func (e *Engine) rebuildLocked() error {
	var clauses []ast.Clause
	var decls []ast.Decl
	for _, fragment := range e.fragments {
		clauses = append(clauses, fragment.Clauses...)
		decls = append(decls, fragment.Decls...)
	}

	programInfo, err := analysis.AnalyzeOneUnit(parse.SourceUnit{Clauses: clauses, Decls: decls}, nil)
	if err != nil {
		return err
	}

	e.program = programInfo
	e.preds = make(map[string]ast.PredicateSym, len(programInfo.Decls))
	for sym := range programInfo.Decls {
		e.preds[sym.Symbol] = sym
	}
	return nil
}
