// Package plan is the bridge between the human-edited Markdown project
// plan and the blackboard. The grammar is three case-sensitive sections
// (## Todo, ## In Progress, ## Completed) holding checkbox task lines
// with optional indented Context and Flags metadata. Free text between
// sections is preserved across a parse/generate round-trip but never
// interpreted.
package plan

import (
	"fmt"
	"regexp"
	"strings"

	"swarm/internal/types"
)

// Canonical section headers. Case-sensitive by contract.
const (
	SectionTodo       = "## Todo"
	SectionInProgress = "## In Progress"
	SectionCompleted  = "## Completed"
)

var sectionOrder = []string{SectionTodo, SectionInProgress, SectionCompleted}

// DefaultHeader opens a generated plan with no preserved preamble.
const DefaultHeader = "# Project Plan"

var (
	taskLineRe = regexp.MustCompile(`^\s*-\s*\[( |x|/)\]\s+(.*)`)
	roleRe     = regexp.MustCompile(`@(\w+)`)
)

// Document is one parsed plan file: the tasks plus everything the
// grammar does not cover, kept so a round-trip does not destroy human
// notes.
type Document struct {
	// Preamble holds the lines before the first recognized section,
	// verbatim. Empty means a fresh file; Render emits DefaultHeader.
	Preamble []string

	// Notes holds free-text lines found inside each section, keyed by
	// section header.
	Notes map[string][]string

	Tasks []*types.Task
}

// planFlags maps Flags metadata keys to intent variants. git_auto_push
// is a GitMeta modifier, handled separately.
var planFlags = map[string]types.Intent{
	"context_needed":           types.IntentContext,
	"requires_consensus":       types.IntentConsensus,
	"requires_debate":          types.IntentDebate,
	"verification_required":    types.IntentVerify,
	"tests_failing":            types.IntentDebug,
	"git_commit_ready":         types.IntentGitCommit,
	"git_create_pr":            types.IntentGitPR,
	"feature_discovery":        types.IntentFeatureScout,
	"code_audit":               types.IntentCodeAudit,
	"issue_triage_needed":      types.IntentIssueTriage,
	"branch_management_needed": types.IntentBranchManager,
	"project_bootstrap":        types.IntentProjectLifecycle,
}

// outboundFlags is the whitelist re-emitted when rendering. Everything
// else stays machine-side; the plan shows only the git handoff state.
var outboundFlags = []types.Intent{types.IntentGitCommit, types.IntentGitPR}

// Parse reads plan Markdown into a Document. The parser is tolerant:
// unrecognized lines become preserved free text, and a malformed flag
// entry is skipped rather than failing the file.
func Parse(content string) *Document {
	doc := &Document{Notes: make(map[string][]string)}
	section := ""
	var current *types.Task

	flush := func() {
		if current != nil {
			doc.Tasks = append(doc.Tasks, current)
			current = nil
		}
	}

	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)

		if trimmed == SectionTodo || trimmed == SectionInProgress || trimmed == SectionCompleted {
			flush()
			section = trimmed
			continue
		}

		if m := taskLineRe.FindStringSubmatch(line); m != nil && section != "" {
			flush()
			current = parseTaskLine(m[1], m[2])
			continue
		}

		// Indented metadata belongs to the task above it.
		if current != nil && (strings.HasPrefix(line, "  -") || strings.HasPrefix(line, "\t-")) {
			applyMetadata(current, strings.TrimSpace(strings.TrimPrefix(trimmed, "-")))
			continue
		}

		// Everything else is free text: preamble before the first
		// section, section notes after. Blank padding lines are
		// regenerated canonically, so they are not preserved.
		if section == "" {
			doc.Preamble = append(doc.Preamble, line)
		} else if trimmed != "" {
			flush()
			doc.Notes[section] = append(doc.Notes[section], line)
		}
	}
	flush()

	// Trim trailing blank preamble lines; Render reinserts spacing.
	for len(doc.Preamble) > 0 && strings.TrimSpace(doc.Preamble[len(doc.Preamble)-1]) == "" {
		doc.Preamble = doc.Preamble[:len(doc.Preamble)-1]
	}
	return doc
}

// parseTaskLine builds a task from a checkbox line. The checkbox char
// is the status authority; the section only groups.
func parseTaskLine(statusChar, rest string) *types.Task {
	desc := strings.TrimSpace(rest)

	role := "engineer"
	if m := roleRe.FindStringSubmatch(desc); m != nil {
		role = m[1]
		desc = strings.TrimSpace(strings.Replace(desc, "@"+role, "", 1))
	}

	status := types.StatusPending
	switch strings.ToLower(statusChar) {
	case "x":
		status = types.StatusCompleted
	case "/":
		status = types.StatusInProgress
	}

	task := types.NewTask(desc)
	task.Status = status
	task.Worker = role
	return task
}

// applyMetadata handles one indented metadata entry under a task line.
func applyMetadata(task *types.Task, meta string) {
	lower := strings.ToLower(meta)
	switch {
	case strings.HasPrefix(lower, "context:"):
		task.InputFiles = nil
		for _, f := range strings.Split(meta[len("context:"):], ",") {
			if f = strings.TrimSpace(f); f != "" {
				task.InputFiles = append(task.InputFiles, f)
			}
		}
	case strings.HasPrefix(lower, "flags:"):
		for _, entry := range strings.Split(meta[len("flags:"):], ",") {
			key, val, ok := strings.Cut(entry, "=")
			if !ok {
				continue
			}
			key = strings.TrimSpace(key)
			on := strings.EqualFold(strings.TrimSpace(val), "true")

			if key == "git_auto_push" {
				task.Git.AutoPush = on
				continue
			}
			if intent, known := planFlags[key]; known {
				if on {
					task.Intents.Add(intent)
				} else {
					task.Intents.Remove(intent)
				}
			}
		}
	}
}

// Render writes the document back to canonical Markdown: preserved
// preamble (or the default header), then the three sections, each with
// its preserved notes followed by its tasks.
func (doc *Document) Render() string {
	var out []string
	if len(doc.Preamble) > 0 {
		out = append(out, doc.Preamble...)
	} else {
		out = append(out, DefaultHeader)
	}
	out = append(out, "")

	buckets := map[string][]*types.Task{}
	for _, t := range doc.Tasks {
		buckets[sectionFor(t.Status)] = append(buckets[sectionFor(t.Status)], t)
	}

	for _, section := range sectionOrder {
		out = append(out, section)
		out = append(out, doc.Notes[section]...)
		for _, t := range buckets[section] {
			out = append(out, renderTask(t))
		}
		if section != SectionCompleted {
			out = append(out, "")
		}
	}
	return strings.Join(out, "\n")
}

func sectionFor(status types.TaskStatus) string {
	switch status {
	case types.StatusCompleted:
		return SectionCompleted
	case types.StatusInProgress:
		return SectionInProgress
	default:
		// PENDING and FAILED both surface as open work; the plan never
		// shows errors, only status.
		return SectionTodo
	}
}

func renderTask(t *types.Task) string {
	mark := " "
	switch t.Status {
	case types.StatusCompleted:
		mark = "x"
	case types.StatusInProgress:
		mark = "/"
	}

	line := fmt.Sprintf("- [%s] %s", mark, t.Description)
	if t.Worker != "" {
		line += " @" + t.Worker
	}

	var sublines []string
	if len(t.InputFiles) > 0 {
		sublines = append(sublines, "  - Context: "+strings.Join(t.InputFiles, ", "))
	}

	var flags []string
	for _, intent := range outboundFlags {
		if t.Intents.Has(intent) {
			flags = append(flags, string(intent)+"=True")
		}
	}
	if len(flags) > 0 {
		sublines = append(sublines, "  - Flags: "+strings.Join(flags, ", "))
	}

	if len(sublines) == 0 {
		return line
	}
	return line + "\n" + strings.Join(sublines, "\n")
}
