package prompt

import (
	"fmt"
	"strings"

	"swarm/internal/types"
)

// commitKeywords maps descriptions to conventional commit types. Order
// matters: the first matching row wins, so "add a fix for X" is feat.
var commitKeywords = []struct {
	commitType string
	keywords   []string
}{
	{"feat", []string{"add", "implement", "feature", "introduce"}},
	{"fix", []string{"fix", "bug", "resolve", "patch"}},
	{"refactor", []string{"refactor", "restructure", "reorganize"}},
	{"test", []string{"test", "spec", "coverage"}},
	{"docs", []string{"doc", "readme", "guide"}},
	{"perf", []string{"optimize", "performance", "perf"}},
	{"style", []string{"style", "format", "lint"}},
}

// InferCommitType derives a conventional commit type from the task
// description. Unmatched descriptions are chores.
func InferCommitType(task *types.Task) string {
	desc := strings.ToLower(task.Description)
	for _, row := range commitKeywords {
		for _, kw := range row.keywords {
			if strings.Contains(desc, kw) {
				return row.commitType
			}
		}
	}
	return "chore"
}

// InferScope derives the commit scope from the task's output files: the
// directory containing the first output file, or "core" when the task
// touched nothing with a parent directory.
func InferScope(task *types.Task) string {
	if len(task.OutputFiles) > 0 {
		first := task.OutputFiles[0]
		parts := strings.Split(first, "/")
		if len(parts) > 1 {
			return parts[len(parts)-2]
		}
	}
	return "core"
}

// FormatCommitMessage builds a "type(scope): description" subject line.
// includeEmoji prefixes the robot marker used to spot automated commits
// in history; a non-empty model adds a Model-Provenance trailer.
func FormatCommitMessage(task *types.Task, includeEmoji bool, model string) string {
	message := fmt.Sprintf("%s(%s): %s", InferCommitType(task), InferScope(task), task.Description)
	if includeEmoji {
		message = "🤖 " + message
	}
	if model != "" {
		message += fmt.Sprintf("\n\nModel-Provenance: %s", model)
	}
	return message
}

// maxCommitBodyLines caps how much feedback history lands in a commit.
const maxCommitBodyLines = 5

// FormatCommitBody extracts accomplishments from a task feedback log as
// commit body bullets. Only lines marking completed work survive; maxLines
// <= 0 applies the default cap. Returns "" when nothing qualifies.
func FormatCommitBody(feedbackLog []string, maxLines int) string {
	if maxLines <= 0 {
		maxLines = maxCommitBodyLines
	}

	var accomplishments []string
	for _, entry := range feedbackLog {
		if strings.Contains(entry, "✅") || strings.Contains(entry, "Completed") || strings.Contains(entry, "Created") {
			accomplishments = append(accomplishments, strings.TrimSpace(entry))
		}
	}
	if len(accomplishments) == 0 {
		return ""
	}
	if len(accomplishments) > maxLines {
		accomplishments = accomplishments[:maxLines]
	}

	lines := make([]string, len(accomplishments))
	for i, a := range accomplishments {
		lines[i] = "- " + strings.TrimSpace(strings.ReplaceAll(a, "✅", ""))
	}
	return strings.Join(lines, "\n")
}

// FullCommitMessage combines the subject and the feedback-log body.
func FullCommitMessage(task *types.Task, includeEmoji bool, model string) string {
	message := FormatCommitMessage(task, includeEmoji, model)
	if body := FormatCommitBody(task.FeedbackLog, 0); body != "" {
		return message + "\n\n" + body
	}
	return message
}
