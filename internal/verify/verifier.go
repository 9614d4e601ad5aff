// Package verify is the optional symbolic verification gate. It shells
// out to an SMT solver (z3 by default) with a bounded time budget and
// reports the outcome as a GateResult, never an error: verification is a
// best-effort quality gate, not a correctness oracle.
//
// Verification conditions are expressed as SMT-LIB 2 assertions. The
// gate checks whether the negated postconditions are satisfiable under
// the preconditions: unsat means every postcondition holds, sat yields a
// counterexample model, and a timeout or unknown verdict is recorded as
// inconclusive. Without a solver on PATH the gate reports SKIPPED, so an
// environment with no z3 installed still runs every other subsystem.
package verify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"swarm/internal/logging"
	"swarm/internal/types"
)

// ErrSolverUnavailable reports that no SMT solver binary was found.
var ErrSolverUnavailable = errors.New("smt solver not available")

// DefaultSolver is the solver binary probed when none is configured.
const DefaultSolver = "z3"

// DefaultBudget bounds one solver invocation.
const DefaultBudget = 5 * time.Second

// Condition is one SMT-LIB 2 assertion, e.g. "(> x 0)".
type Condition string

// Obligation is a single verification obligation: declarations plus
// preconditions and the postconditions they should entail.
type Obligation struct {
	Name           string
	Declarations   []string // e.g. "(declare-const x Int)"
	Preconditions  []Condition
	Postconditions []Condition
}

// Result is the raw solver outcome for one obligation.
type Result struct {
	Verified       bool
	Message        string
	Counterexample string
	ProofTime      time.Duration
}

// Verifier runs obligations through an external SMT solver.
type Verifier struct {
	solver string
	budget time.Duration
}

// NewVerifier probes for the solver binary. A missing binary returns
// ErrSolverUnavailable; callers keep a nil verifier and the kernel's
// probe degrades to SKIPPED.
func NewVerifier(solver string, budget time.Duration) (*Verifier, error) {
	if solver == "" {
		solver = DefaultSolver
	}
	if budget <= 0 {
		budget = DefaultBudget
	}
	if _, err := exec.LookPath(solver); err != nil {
		return nil, fmt.Errorf("%w: %q not on PATH", ErrSolverUnavailable, solver)
	}
	return &Verifier{solver: solver, budget: budget}, nil
}

// Budget returns the per-invocation solver time budget.
func (v *Verifier) Budget() time.Duration { return v.budget }

// VerifyObligation checks that the postconditions hold for every input
// satisfying the preconditions. The solver searches for a violation, so
// unsat is the success verdict.
func (v *Verifier) VerifyObligation(ctx context.Context, ob Obligation) Result {
	var script strings.Builder
	for _, d := range ob.Declarations {
		script.WriteString(d)
		script.WriteByte('\n')
	}
	for _, pre := range ob.Preconditions {
		fmt.Fprintf(&script, "(assert %s)\n", pre)
	}
	for _, post := range ob.Postconditions {
		fmt.Fprintf(&script, "(assert (not %s))\n", post)
	}
	script.WriteString("(check-sat)\n(get-model)\n")

	start := time.Now()
	verdict, model, err := v.run(ctx, script.String())
	elapsed := time.Since(start)

	switch {
	case err != nil:
		logging.Verify("obligation %s inconclusive: %v", ob.Name, err)
		return Result{Message: fmt.Sprintf("inconclusive: %v", err), ProofTime: elapsed}
	case verdict == "unsat":
		return Result{
			Verified:  true,
			Message:   "all postconditions hold for inputs satisfying preconditions",
			ProofTime: elapsed,
		}
	case verdict == "sat":
		logging.Verify("obligation %s refuted, counterexample found", ob.Name)
		return Result{
			Message:        "postcondition violated",
			Counterexample: model,
			ProofTime:      elapsed,
		}
	default:
		return Result{Message: "inconclusive (timeout or unknown)", ProofTime: elapsed}
	}
}

// Gate runs the obligations and folds the outcomes into one GateResult.
// Inconclusive verdicts fail the gate with their message; they are still
// results, not errors, per the resource-timeout policy.
func (v *Verifier) Gate(ctx context.Context, obligations []Obligation) types.GateResult {
	if len(obligations) == 0 {
		return types.GateResult{
			Intent:    types.GateVerify,
			Status:    types.GateSkipped,
			Message:   "no verification obligations supplied",
			Timestamp: time.Now().UTC(),
		}
	}

	for _, ob := range obligations {
		res := v.VerifyObligation(ctx, ob)
		if !res.Verified {
			msg := res.Message
			if res.Counterexample != "" {
				msg = fmt.Sprintf("%s: %s (counterexample: %s)", ob.Name, res.Message, res.Counterexample)
			} else if ob.Name != "" {
				msg = fmt.Sprintf("%s: %s", ob.Name, res.Message)
			}
			return types.GateResult{
				Intent:    types.GateVerify,
				Status:    types.GateFailed,
				Message:   msg,
				Timestamp: time.Now().UTC(),
			}
		}
	}
	return types.GateResult{
		Intent:    types.GateVerify,
		Status:    types.GatePassed,
		Message:   fmt.Sprintf("%d obligations verified", len(obligations)),
		Timestamp: time.Now().UTC(),
	}
}

// run feeds the script to the solver on stdin and splits the verdict
// line from the model block.
func (v *Verifier) run(ctx context.Context, script string) (verdict, model string, err error) {
	runCtx, cancel := context.WithTimeout(ctx, v.budget)
	defer cancel()

	// -T is wall-clock seconds; the context deadline backstops it.
	budgetSecs := int(v.budget.Seconds())
	if budgetSecs < 1 {
		budgetSecs = 1
	}
	cmd := exec.CommandContext(runCtx, v.solver, "-in", fmt.Sprintf("-T:%d", budgetSecs))
	cmd.Stdin = strings.NewReader(script)

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	runErr := cmd.Run()
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return "unknown", "", nil
	}

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	for i, line := range lines {
		switch strings.TrimSpace(line) {
		case "sat":
			return "sat", strings.TrimSpace(strings.Join(lines[i+1:], " ")), nil
		case "unsat":
			return "unsat", "", nil
		case "unknown":
			return "unknown", "", nil
		}
	}
	if runErr != nil {
		return "", "", fmt.Errorf("solver: %w", runErr)
	}
	return "unknown", "", nil
}

// Probe is the kernel's verification step: with no solver available it
// reports SKIPPED, otherwise it acknowledges the request with a PASSED
// probe result. Callers attach real obligations through Gate.
func Probe(v *Verifier) types.GateResult {
	if v == nil {
		return types.GateResult{
			Intent:    types.GateVerify,
			Status:    types.GateSkipped,
			Message:   "symbolic verification not available (solver missing)",
			Timestamp: time.Now().UTC(),
		}
	}
	return types.GateResult{
		Intent:    types.GateVerify,
		Status:    types.GatePassed,
		Message:   fmt.Sprintf("verifier ready (budget %s)", v.budget),
		Timestamp: time.Now().UTC(),
	}
}
