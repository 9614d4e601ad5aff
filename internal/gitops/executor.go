// Package gitops is the autonomous git layer: repository detection,
// the validated git subshell executor, a GitHub REST adapter, the
// static tool registry, and the five dispatchable git agent roles.
// Actual task mutation stays with the kernel; this package performs
// the side effects the kernel's git workflow asks for.
package gitops

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"swarm/internal/logging"
)

// ErrNotGit rejects subshell commands outside the git allowlist. The
// commit-message agent produces run_command calls from free text, so
// every command line is checked before it reaches a shell.
var ErrNotGit = errors.New("only git commands may be executed")

// defaultHelperTimeout caps a git subprocess when the config does not
// set its own budget.
const defaultHelperTimeout = 5 * time.Second

// CommandResult is the outcome of one git subshell invocation.
type CommandResult struct {
	Command  string
	Output   string
	ExitCode int
}

// Executor runs git subprocesses under a timeout, rooted in one
// working directory. Typed helpers cover the adapter operations;
// Run handles generic run_command tool calls with prefix validation.
type Executor struct {
	dir     string
	timeout time.Duration
}

// NewExecutor builds an executor for the repository at dir.
func NewExecutor(dir string, timeout time.Duration) *Executor {
	if timeout <= 0 {
		timeout = defaultHelperTimeout
	}
	return &Executor{dir: dir, timeout: timeout}
}

// Dir returns the working directory commands run in.
func (e *Executor) Dir() string { return e.dir }

// Run executes a full command line, which must start with "git ".
// Arguments are whitespace-split; quoted arguments are not supported,
// so commit messages go through Commit instead.
func (e *Executor) Run(ctx context.Context, command string) (CommandResult, error) {
	trimmed := strings.TrimSpace(command)
	if !strings.HasPrefix(trimmed, "git ") {
		return CommandResult{Command: command, ExitCode: -1}, fmt.Errorf("%w: %q", ErrNotGit, command)
	}
	args := strings.Fields(trimmed)
	return e.run(ctx, args[1:]...)
}

// Add stages the given files, or everything when the list is empty.
func (e *Executor) Add(ctx context.Context, files []string) (CommandResult, error) {
	if len(files) == 0 {
		return e.run(ctx, "add", "-A")
	}
	return e.run(ctx, append([]string{"add"}, files...)...)
}

// Commit records staged changes with the given message.
func (e *Executor) Commit(ctx context.Context, message string) (CommandResult, error) {
	return e.run(ctx, "commit", "-m", message)
}

// Push publishes a branch; remote defaults to origin.
func (e *Executor) Push(ctx context.Context, remote, branch string) (CommandResult, error) {
	if remote == "" {
		remote = "origin"
	}
	args := []string{"push", remote}
	if branch != "" {
		args = append(args, branch)
	}
	return e.run(ctx, args...)
}

// CreateBranch creates and switches to a new branch.
func (e *Executor) CreateBranch(ctx context.Context, name string) (CommandResult, error) {
	return e.run(ctx, "checkout", "-b", name)
}

// StatusPorcelain returns machine-readable status output; empty output
// means a clean tree.
func (e *Executor) StatusPorcelain(ctx context.Context) (string, error) {
	res, err := e.run(ctx, "status", "--porcelain")
	return res.Output, err
}

// ConfigGet reads a single git config value.
func (e *Executor) ConfigGet(ctx context.Context, key string) (string, error) {
	res, err := e.run(ctx, "config", "--get", key)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(res.Output), nil
}

// CurrentBranch returns the checked-out branch name, empty on a
// detached HEAD.
func (e *Executor) CurrentBranch(ctx context.Context) (string, error) {
	res, err := e.run(ctx, "branch", "--show-current")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(res.Output), nil
}

// DiffNames lists the files changed since the given revision.
func (e *Executor) DiffNames(ctx context.Context, since string) ([]string, error) {
	res, err := e.run(ctx, "diff", "--name-only", since)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, line := range strings.Split(res.Output, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			files = append(files, line)
		}
	}
	return files, nil
}

func (e *Executor) run(ctx context.Context, args ...string) (CommandResult, error) {
	execCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	cmd := exec.CommandContext(execCtx, "git", args...)
	cmd.Dir = e.dir
	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output

	logging.GitOpsDebug("git %s", strings.Join(args, " "))
	err := cmd.Run()

	result := CommandResult{
		Command: "git " + strings.Join(args, " "),
		Output:  output.String(),
	}

	switch {
	case execCtx.Err() == context.DeadlineExceeded:
		result.ExitCode = -1
		return result, fmt.Errorf("git %s timed out after %s", args[0], e.timeout)
	case err == nil:
		return result, nil
	default:
		result.ExitCode = -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
		}
		return result, fmt.Errorf("git %s: %s", args[0], outputTail(output.String(), 200))
	}
}

// outputTail keeps the last max bytes of subprocess or response output
// for error messages, where the tail carries the actual failure.
func outputTail(s string, max int) string {
	s = strings.TrimSpace(s)
	if len(s) <= max {
		return s
	}
	return "..." + s[len(s)-max:]
}
