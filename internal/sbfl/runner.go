package sbfl

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"strings"
	"time"

	"swarm/internal/logging"
	"swarm/internal/types"
)

// DefaultSuiteTimeout caps a suite invocation when the task does not
// set its own budget.
const DefaultSuiteTimeout = 5 * time.Minute

// Runner executes one test suite invocation and reads back the
// coverage report it wrote. Timeouts and failures come back as FAILED
// gate results, never as errors; the orchestrator treats a broken
// suite as a signal, not a crash.
type Runner struct {
	Timeout      time.Duration
	CoverProfile string
	Dir          string
}

// NewRunner builds a runner for one suite configuration. coverProfile
// is the path the test command writes its report to (Go cover profile
// or lcov tracefile).
func NewRunner(dir, coverProfile string, timeout time.Duration) *Runner {
	if timeout <= 0 {
		timeout = DefaultSuiteTimeout
	}
	return &Runner{Timeout: timeout, CoverProfile: coverProfile, Dir: dir}
}

// RunSuite runs the test command under the timeout and assembles the
// suite-level spectrum: the whole run counts as one passing or one
// failing test. The coverage report is consumed on every exit path,
// including failures, since failing-run coverage is the signal.
func (r *Runner) RunSuite(ctx context.Context, command string) (types.GateResult, CoverageSpectrum) {
	gate := types.GateResult{
		Intent:    types.GateTest,
		Status:    types.GateFailed,
		ExitCode:  -1,
		Timestamp: time.Now(),
	}
	spectrum := CoverageSpectrum{
		Passed: map[string]map[int]bool{},
		Failed: map[string]map[int]bool{},
	}

	args := strings.Fields(command)
	if len(args) == 0 {
		gate.Message = "empty test command"
		return gate, spectrum
	}

	// Stale reports would be misread as this run's coverage.
	if r.CoverProfile != "" {
		_ = os.Remove(r.CoverProfile)
	}

	execCtx, cancel := context.WithTimeout(ctx, r.Timeout)
	defer cancel()

	cmd := exec.CommandContext(execCtx, args[0], args[1:]...)
	cmd.Dir = r.Dir
	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output

	logging.SBFL("Running suite: %s (timeout=%s)", command, r.Timeout)
	err := cmd.Run()

	switch {
	case execCtx.Err() == context.DeadlineExceeded:
		gate.Message = "test suite timed out after " + r.Timeout.String()
		logging.SBFLDebug("Suite killed: %s", gate.Message)
	case err == nil:
		gate.Status = types.GatePassed
		gate.ExitCode = 0
	default:
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			gate.ExitCode = exitErr.ExitCode()
		}
		gate.Message = tailOf(output.String(), 400)
	}

	covered := r.readCoverage()
	if gate.Status == types.GatePassed {
		spectrum.Passed = covered
		spectrum.TotalPassed = 1
	} else {
		spectrum.Failed = covered
		spectrum.TotalFailed = 1
	}
	gate.ArtifactRef = r.CoverProfile

	logging.SBFL("Suite complete: %s (%d files covered)", gate.Status, len(covered))
	return gate, spectrum
}

func (r *Runner) readCoverage() map[string]map[int]bool {
	if r.CoverProfile == "" {
		return map[string]map[int]bool{}
	}
	covered, err := ParseCoverageFile(r.CoverProfile)
	if err != nil {
		logging.SBFLDebug("No usable coverage report: %v", err)
		return map[string]map[int]bool{}
	}
	return covered
}

// Localizer is the full pipeline: run the suite, score the spectrum,
// rank suspects, render the debugging brief.
type Localizer struct {
	runner *Runner
	topK   int
}

// NewLocalizer wires a runner to the ranking stage. topK <= 0 takes
// the default.
func NewLocalizer(runner *Runner, topK int) *Localizer {
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &Localizer{runner: runner, topK: topK}
}

// Analyze runs the suite and returns the gate outcome plus a debug
// prompt. A passing suite short-circuits to NoFaultMessage.
func (l *Localizer) Analyze(ctx context.Context, command string) (types.GateResult, string) {
	gate, spectrum := l.runner.RunSuite(ctx, command)

	if spectrum.TotalFailed == 0 {
		return gate, NoFaultMessage
	}

	scores := Suspiciousness(spectrum)
	top := TopSuspicious(scores, l.topK)
	prompt := DebugPrompt(top, l.loadSnippets(top))

	logging.SBFL("Analysis complete: %d suspects identified", len(top))
	return gate, prompt
}

// loadSnippets reads the flagged line from each source file when it is
// reachable; missing files just lose their snippet.
func (l *Localizer) loadSnippets(lines []SuspiciousLine) map[LineRef]string {
	wanted := make(map[string][]int)
	for _, s := range lines {
		wanted[s.File] = append(wanted[s.File], s.Line)
	}

	snippets := make(map[LineRef]string)
	for file, nums := range wanted {
		f, err := os.Open(file)
		if err != nil {
			continue
		}
		want := make(map[int]bool, len(nums))
		for _, n := range nums {
			want[n] = true
		}
		scanner := bufio.NewScanner(f)
		for n := 1; scanner.Scan(); n++ {
			if want[n] {
				snippets[LineRef{File: file, Line: n}] = strings.TrimSpace(scanner.Text())
			}
		}
		f.Close()
	}
	return snippets
}

func tailOf(s string, max int) string {
	s = strings.TrimSpace(s)
	if len(s) <= max {
		return s
	}
	return "..." + s[len(s)-max:]
}
