package plan

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"swarm/internal/logging"
	"swarm/internal/types"
)

// DefaultPlanFile is the plan location relative to the workspace root.
const DefaultPlanFile = "docs/ai/PLAN.md"

// Engine synchronizes the human tier (the Markdown plan) with the
// machine tier (the blackboard profile).
type Engine struct {
	root     string
	planPath string
}

// NewEngine builds a sync engine rooted at the workspace. An empty
// planFile uses the default location.
func NewEngine(root, planFile string) *Engine {
	if planFile == "" {
		planFile = DefaultPlanFile
	}
	return &Engine{root: root, planPath: filepath.Join(root, planFile)}
}

// Path returns the absolute plan file path.
func (e *Engine) Path() string { return e.planPath }

// SyncInbound reads the plan file and merges its tasks into the
// profile. Returns true when the profile changed. A missing plan file
// is not an error; there is simply nothing to merge.
func (e *Engine) SyncInbound(profile *types.ProjectProfile) bool {
	content, err := os.ReadFile(e.planPath)
	if err != nil {
		if !os.IsNotExist(err) {
			logging.PlanWarn("inbound sync read failed: %v", err)
		}
		return false
	}

	doc := Parse(string(content))

	// Descriptions are the join key; the plan file has no task ids.
	existing := make(map[string]*types.Task, len(profile.Tasks))
	for _, t := range profile.Tasks {
		existing[t.Description] = t
	}

	changed := false
	for _, parsed := range doc.Tasks {
		old, ok := existing[parsed.Description]
		if !ok {
			logging.Plan("new task from plan: %s", parsed.Description)
			profile.AddTask(parsed)
			changed = true
			continue
		}
		if mergeTask(old, parsed) {
			changed = true
		}
	}

	logging.Plan("inbound sync merged %d plan tasks", len(doc.Tasks))
	return changed
}

// mergeTask applies the plan's view onto an existing blackboard task.
// Context and Flags are authoritative; a PENDING checkbox never
// downgrades a task the kernel already moved forward.
func mergeTask(old, parsed *types.Task) bool {
	changed := false

	if parsed.Status != types.StatusPending && parsed.Status != old.Status {
		old.Status = parsed.Status
		changed = true
	}

	if parsed.Worker != "" && parsed.Worker != old.Worker {
		old.Worker = parsed.Worker
		changed = true
	}

	if len(parsed.InputFiles) > 0 {
		old.InputFiles = parsed.InputFiles
		changed = true
	}

	// The plan round-trips only the whitelisted git flags, so those are
	// the ones its absence can authoritatively clear.
	for _, intent := range outboundFlags {
		if parsed.Intents.Has(intent) != old.Intents.Has(intent) {
			if parsed.Intents.Has(intent) {
				old.Intents.Add(intent)
			} else {
				old.Intents.Remove(intent)
			}
			changed = true
		}
	}
	for intent := range parsed.Intents {
		if !old.Intents.Has(intent) {
			old.Intents.Add(intent)
			changed = true
		}
	}
	return changed
}

// SyncOutbound renders the profile's tasks into the plan file,
// preserving any free text the current file carries. Write failures are
// logged, never raised: the plan is a mirror, not the store of record.
func (e *Engine) SyncOutbound(profile *types.ProjectProfile) {
	doc := &Document{Notes: make(map[string][]string)}
	if content, err := os.ReadFile(e.planPath); err == nil {
		prior := Parse(string(content))
		doc.Preamble = prior.Preamble
		doc.Notes = prior.Notes
	}

	for _, id := range sortedTaskIDs(profile) {
		doc.Tasks = append(doc.Tasks, profile.Tasks[id])
	}

	if err := os.MkdirAll(filepath.Dir(e.planPath), 0755); err != nil {
		logging.PlanWarn("outbound sync mkdir failed: %v", err)
		return
	}
	if err := os.WriteFile(e.planPath, []byte(doc.Render()+"\n"), 0644); err != nil {
		logging.PlanWarn("outbound sync write failed: %v", err)
		return
	}
	logging.Plan("plan updated: %s", e.planPath)
}

// sortedTaskIDs orders tasks by creation time then id so the rendered
// plan is stable across runs despite map iteration.
func sortedTaskIDs(profile *types.ProjectProfile) []string {
	ids := make([]string, 0, len(profile.Tasks))
	for id := range profile.Tasks {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		ta, tb := profile.Tasks[ids[i]], profile.Tasks[ids[j]]
		if !ta.CreatedAt.Equal(tb.CreatedAt) {
			return ta.CreatedAt.Before(tb.CreatedAt)
		}
		return ids[i] < ids[j]
	})
	return ids
}

// String renders a short description for logs.
func (e *Engine) String() string {
	return fmt.Sprintf("plan[%s]", e.planPath)
}
