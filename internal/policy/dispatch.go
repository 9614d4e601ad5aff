package policy

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"swarm/internal/logging"
	"swarm/internal/types"

	"github.com/google/mangle/ast"
	mengine "github.com/google/mangle/engine"
	"github.com/google/mangle/factstore"
)

// dispatchProgram is the base dispatch policy. Performance indexes are
// asserted as integer centipoints (0.30 -> 30) so the circuit-breaker
// comparison stays in datalog integer arithmetic. The breaker is strict:
// an index of exactly 0.30 does not trip.
const dispatchProgram = `
# Extensional facts, asserted fresh on every evaluation.
Decl task(Id, Status).
Decl depends_on(Id, Dep).
Decl assigned(Id, Role).
Decl intent(Id, Kind).
Decl role(Name).
Decl performance_index(Name, Centipoints).

# Derived dispatch state.
Decl completed(Id).
Decl blocked(Id).
Decl ready(Id).
Decl tripped(Name).
Decl eligible(Name).
Decl dispatch(Id, Role).

completed(T) :- task(T, /completed).
blocked(T) :- depends_on(T, D), !completed(D).
ready(T) :- task(T, /pending), !blocked(T).
tripped(R) :- performance_index(R, P), P < 30.
eligible(R) :- role(R), !tripped(R).
dispatch(T, R) :- ready(T), assigned(T, R), eligible(R).
`

// derivedFactLimit caps fixpoint evaluation so a pathological custom rule
// fragment cannot stall the tick loop with a fact explosion.
const derivedFactLimit = 100000

// statusNames maps task lifecycle states to their policy name constants.
var statusNames = map[types.TaskStatus]string{
	types.StatusPending:    "/pending",
	types.StatusInProgress: "/in_progress",
	types.StatusCompleted:  "/completed",
	types.StatusFailed:     "/failed",
}

// RoleScore carries a role's current performance index into an evaluation.
type RoleScore struct {
	Role  string
	Index float64 // 0..1, from telemetry.PerformanceIndex
}

// Decision is the materialized dispatch state of one evaluation. A ready
// task has status PENDING and only COMPLETED dependencies; an eligible
// role is clear of the circuit breaker; Dispatch pairs every ready task
// with its eligible assigned role.
type Decision struct {
	Ready    []string
	Blocked  []string
	Eligible []string
	Tripped  []string
	Dispatch map[string]string

	readySet    map[string]struct{}
	eligibleSet map[string]struct{}
	store       factstore.FactStore
	engine      *Engine
}

// IsReady reports whether the task may be dispatched this tick.
func (d *Decision) IsReady(taskID string) bool {
	_, ok := d.readySet[taskID]
	return ok
}

// IsEligible reports whether the role is clear of the circuit breaker.
func (d *Decision) IsEligible(role string) bool {
	_, ok := d.eligibleSet[role]
	return ok
}

// Facts returns the derived rows for any declared predicate, sorted. This
// is how custom rule fragments loaded with LoadRules surface their
// conclusions.
func (d *Decision) Facts(predicate string) ([][]string, error) {
	if d.store == nil || d.engine == nil {
		return nil, fmt.Errorf("decision has no fact store")
	}
	d.engine.mu.RLock()
	defer d.engine.mu.RUnlock()
	return d.engine.rowsLocked(d.store, predicate)
}

// Summary renders a one-line digest for logs.
func (d *Decision) Summary() string {
	return fmt.Sprintf("%d ready, %d blocked, %d eligible, %d tripped",
		len(d.Ready), len(d.Blocked), len(d.Eligible), len(d.Tripped))
}

// Evaluate asserts the current task and role facts into a fresh store,
// runs the dispatch program, and returns the derived decision. Starting
// from an empty store each time means a fact retracted between ticks can
// never linger.
func (e *Engine) Evaluate(tasks []*types.Task, roles []RoleScore) (*Decision, error) {
	timer := logging.StartTimer(logging.CategoryPolicy, "Evaluate")

	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.program == nil {
		return nil, fmt.Errorf("dispatch program not compiled")
	}

	atoms, err := e.dispatchFactsLocked(tasks, roles)
	if err != nil {
		return nil, err
	}

	store := factstore.NewSimpleInMemoryStore()
	for _, atom := range atoms {
		store.Add(atom)
	}

	stats, err := mengine.EvalProgramWithStats(e.program, store,
		mengine.WithCreatedFactLimit(derivedFactLimit))
	if err != nil {
		return nil, fmt.Errorf("evaluate dispatch program: %w", err)
	}
	logging.PolicyDebug("Dispatch evaluation: %d facts in, %+v", len(atoms), stats)

	decision, err := e.collectDecisionLocked(store)
	if err != nil {
		return nil, err
	}

	timer.Stop()
	logging.PolicyDebug("Dispatch decision: %s", decision.Summary())
	return decision, nil
}

// dispatchFactsLocked converts tasks and role scores to EDB atoms.
func (e *Engine) dispatchFactsLocked(tasks []*types.Task, roles []RoleScore) ([]ast.Atom, error) {
	atoms := make([]ast.Atom, 0, len(tasks)*2+len(roles)*2)

	for _, t := range tasks {
		if t == nil {
			continue
		}
		status, err := statusConstant(t.Status)
		if err != nil {
			return nil, err
		}
		atom, err := e.atomLocked("task", ast.String(t.ID), status)
		if err != nil {
			return nil, err
		}
		atoms = append(atoms, atom)

		for _, dep := range t.DependsOn {
			atom, err := e.atomLocked("depends_on", ast.String(t.ID), ast.String(dep))
			if err != nil {
				return nil, err
			}
			atoms = append(atoms, atom)
		}
		if t.Worker != "" {
			atom, err := e.atomLocked("assigned", ast.String(t.ID), ast.String(t.Worker))
			if err != nil {
				return nil, err
			}
			atoms = append(atoms, atom)
		}
		for _, intent := range t.Intents.Slice() {
			atom, err := e.atomLocked("intent", ast.String(t.ID), ast.String(string(intent)))
			if err != nil {
				return nil, err
			}
			atoms = append(atoms, atom)
		}
	}

	for _, r := range roles {
		atom, err := e.atomLocked("role", ast.String(r.Role))
		if err != nil {
			return nil, err
		}
		atoms = append(atoms, atom)
		atom, err = e.atomLocked("performance_index", ast.String(r.Role), ast.Number(centipoints(r.Index)))
		if err != nil {
			return nil, err
		}
		atoms = append(atoms, atom)
	}

	return atoms, nil
}

// atomLocked builds an atom for a declared predicate, checking arity.
func (e *Engine) atomLocked(predicate string, args ...ast.BaseTerm) (ast.Atom, error) {
	sym, ok := e.preds[predicate]
	if !ok {
		return ast.Atom{}, fmt.Errorf("predicate %s is not declared", predicate)
	}
	if len(args) != sym.Arity {
		return ast.Atom{}, fmt.Errorf("predicate %s expects %d args, got %d", predicate, sym.Arity, len(args))
	}
	return ast.Atom{Predicate: sym, Args: args}, nil
}

// collectDecisionLocked reads the derived predicates back out of the store.
func (e *Engine) collectDecisionLocked(store factstore.FactStore) (*Decision, error) {
	d := &Decision{
		Dispatch: make(map[string]string),
		store:    store,
		engine:   e,
	}

	var err error
	if d.Ready, err = e.columnLocked(store, "ready"); err != nil {
		return nil, err
	}
	if d.Blocked, err = e.columnLocked(store, "blocked"); err != nil {
		return nil, err
	}
	if d.Eligible, err = e.columnLocked(store, "eligible"); err != nil {
		return nil, err
	}
	if d.Tripped, err = e.columnLocked(store, "tripped"); err != nil {
		return nil, err
	}

	pairs, err := e.rowsLocked(store, "dispatch")
	if err != nil {
		return nil, err
	}
	for _, pair := range pairs {
		if len(pair) == 2 {
			d.Dispatch[pair[0]] = pair[1]
		}
	}

	d.readySet = toSet(d.Ready)
	d.eligibleSet = toSet(d.Eligible)
	return d, nil
}

// rowsLocked returns every fact of a predicate as a string row, sorted.
func (e *Engine) rowsLocked(store factstore.FactStore, predicate string) ([][]string, error) {
	sym, ok := e.preds[predicate]
	if !ok {
		return nil, fmt.Errorf("predicate %s is not declared", predicate)
	}

	var rows [][]string
	err := store.GetFacts(ast.NewQuery(sym), func(fact ast.Atom) error {
		row := make([]string, len(fact.Args))
		for i, arg := range fact.Args {
			row[i] = constantString(arg)
		}
		rows = append(rows, row)
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		for k := 0; k < len(a) && k < len(b); k++ {
			if a[k] != b[k] {
				return a[k] < b[k]
			}
		}
		return len(a) < len(b)
	})
	return rows, nil
}

// columnLocked returns the first column of a unary predicate, sorted.
func (e *Engine) columnLocked(store factstore.FactStore, predicate string) ([]string, error) {
	rows, err := e.rowsLocked(store, predicate)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(rows))
	for _, row := range rows {
		if len(row) > 0 {
			out = append(out, row[0])
		}
	}
	return out, nil
}

func statusConstant(s types.TaskStatus) (ast.Constant, error) {
	name, ok := statusNames[s]
	if !ok {
		return ast.Constant{}, fmt.Errorf("task status %q has no policy constant", s)
	}
	return ast.Name(name)
}

// centipoints floors a 0..1 performance index into an integer. Flooring
// keeps the breaker boundary exact: 0.30 maps to 30 and does not trip.
func centipoints(index float64) int64 {
	return int64(math.Floor(index * 100))
}

func constantString(term ast.BaseTerm) string {
	c, ok := term.(ast.Constant)
	if !ok {
		return term.String()
	}
	switch c.Type {
	case ast.StringType:
		return c.Symbol
	case ast.NameType:
		return strings.TrimPrefix(c.Symbol, "/")
	default:
		return c.String()
	}
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}
