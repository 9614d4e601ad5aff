package sbfl

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"swarm/internal/types"
)

// writeSuiteScript fakes a test command: it writes the given coverage
// report and exits with the given code.
func writeSuiteScript(t *testing.T, dir, profile, report string, exitCode int) string {
	t.Helper()
	script := "#!/bin/sh\n"
	if report != "" {
		reportFile := filepath.Join(dir, "report.txt")
		require.NoError(t, os.WriteFile(reportFile, []byte(report), 0o644))
		script += "cp " + reportFile + " " + profile + "\n"
	}
	script += "exit " + strconv.Itoa(exitCode) + "\n"

	path := filepath.Join(dir, "suite.sh")
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}

const goProfile = `mode: set
app.go:1.1,2.10 1 1
`

func TestRunSuite_PassingSuite(t *testing.T) {
	dir := t.TempDir()
	profile := filepath.Join(dir, "coverage.out")
	script := writeSuiteScript(t, dir, profile, goProfile, 0)

	r := NewRunner(dir, profile, 10*time.Second)
	gate, spectrum := r.RunSuite(context.Background(), script)

	assert.Equal(t, types.GatePassed, gate.Status)
	assert.Equal(t, 0, gate.ExitCode)
	assert.Equal(t, 1, spectrum.TotalPassed)
	assert.Equal(t, 0, spectrum.TotalFailed)
	assert.Equal(t, map[int]bool{1: true, 2: true}, spectrum.Passed["app.go"])
	assert.Empty(t, spectrum.Failed)
}

func TestRunSuite_FailingSuiteKeepsCoverage(t *testing.T) {
	dir := t.TempDir()
	profile := filepath.Join(dir, "coverage.out")
	script := writeSuiteScript(t, dir, profile, goProfile, 1)

	r := NewRunner(dir, profile, 10*time.Second)
	gate, spectrum := r.RunSuite(context.Background(), script)

	assert.Equal(t, types.GateFailed, gate.Status)
	assert.Equal(t, 1, gate.ExitCode)
	assert.Equal(t, 1, spectrum.TotalFailed)
	// Failing-run coverage is the localization signal.
	assert.Equal(t, map[int]bool{1: true, 2: true}, spectrum.Failed["app.go"])
}

func TestRunSuite_RemovesStaleProfile(t *testing.T) {
	dir := t.TempDir()
	profile := filepath.Join(dir, "coverage.out")
	require.NoError(t, os.WriteFile(profile, []byte(goProfile), 0o644))

	// The suite writes nothing: a stale report must not leak in.
	script := writeSuiteScript(t, dir, profile, "", 1)
	r := NewRunner(dir, profile, 10*time.Second)
	_, spectrum := r.RunSuite(context.Background(), script)

	assert.Empty(t, spectrum.Failed)
}

func TestRunSuite_TimeoutIsFailedGateNotError(t *testing.T) {
	dir := t.TempDir()
	r := NewRunner(dir, "", 50*time.Millisecond)

	gate, spectrum := r.RunSuite(context.Background(), "sleep 2")

	assert.Equal(t, types.GateFailed, gate.Status)
	assert.Contains(t, gate.Message, "timed out")
	assert.Equal(t, 1, spectrum.TotalFailed)
}

func TestRunSuite_EmptyCommand(t *testing.T) {
	r := NewRunner(t.TempDir(), "", time.Second)
	gate, _ := r.RunSuite(context.Background(), "   ")
	assert.Equal(t, types.GateFailed, gate.Status)
	assert.Equal(t, "empty test command", gate.Message)
}

func TestAnalyze_PassingSuiteShortCircuits(t *testing.T) {
	dir := t.TempDir()
	profile := filepath.Join(dir, "coverage.out")
	script := writeSuiteScript(t, dir, profile, goProfile, 0)

	l := NewLocalizer(NewRunner(dir, profile, 10*time.Second), 5)
	gate, prompt := l.Analyze(context.Background(), script)

	assert.Equal(t, types.GatePassed, gate.Status)
	assert.Equal(t, NoFaultMessage, prompt)
}

func TestAnalyze_FailingSuiteProducesPrompt(t *testing.T) {
	dir := t.TempDir()
	profile := filepath.Join(dir, "coverage.out")
	script := writeSuiteScript(t, dir, profile, goProfile, 1)

	l := NewLocalizer(NewRunner(dir, profile, 10*time.Second), 5)
	gate, prompt := l.Analyze(context.Background(), script)

	assert.Equal(t, types.GateFailed, gate.Status)
	assert.Contains(t, prompt, "Automated Fault Localization Results")
	assert.Contains(t, prompt, "app.go:L1")
}

func TestTailOf(t *testing.T) {
	assert.Equal(t, "short", tailOf("  short  ", 10))
	long := tailOf("aaaaabbbbb", 5)
	assert.Equal(t, "...bbbbb", long)
}
