package kernel

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"swarm/internal/logging"
	"swarm/internal/prompt"
	"swarm/internal/telemetry"
	"swarm/internal/types"
	"swarm/internal/verify"
)

// handoffRe extracts a structured role handoff from a reasoning trace:
// <handoff_to role="auditor">reason</handoff_to>
var handoffRe = regexp.MustCompile(`<handoff_to\s+role="(\w+)"[^>]*>([^<]*)</handoff_to>`)

// ProcessTask runs one task through a full kernel tick: reload state,
// loop guard, provenance pruning, intent dispatch, and the classical
// LLM flow when no algorithmic path claimed the task. The profile is
// saved on every exit path that mutated it.
func (k *Kernel) ProcessTask(ctx context.Context, taskID string) error {
	profile, err := k.deps.Store.Load(ctx, k.deps.SessionID, k.deps.AgentID)
	if err != nil {
		return fmt.Errorf("load profile: %w", err)
	}

	task := profile.GetTask(taskID)
	if task == nil || task.Status == types.StatusCompleted {
		return nil
	}

	if task.LoopDetected() {
		task.Status = types.StatusFailed
		task.AppendFeedback("task aborted: feedback loop detected")
		logging.KernelWarn("Task %s aborted: feedback log exceeded %d entries", shortID(taskID), types.MaxFeedbackLogEntries)
		return k.save(ctx, profile)
	}

	if k.deps.Pruner != nil && len(profile.ProvenanceLog) > 0 {
		profile.ProvenanceLog = k.deps.Pruner.Prune(ctx, profile.ProvenanceLog, task.Description)
	}

	if k.dispatchIntents(ctx, profile, task) {
		return k.save(ctx, profile)
	}

	if err := k.classicalFlow(ctx, profile, task); err != nil {
		return err
	}

	if err := k.save(ctx, profile); err != nil {
		return err
	}
	if k.deps.Plan != nil {
		k.deps.Plan.SyncOutbound(profile)
	}
	return nil
}

// dispatchIntents routes the task to the algorithmic subsystems in fixed
// order. The first handler that claims the task ends the tick; a handler
// that cannot serve its intent reports false and the task falls through.
func (k *Kernel) dispatchIntents(ctx context.Context, profile *types.ProjectProfile, task *types.Task) bool {
	handled := false

	if task.HasIntent(types.IntentContext) && k.retrieveContext(task) {
		handled = true
	}
	if task.HasIntent(types.IntentConsensus) && k.setupConsensus(task) {
		handled = true
	}
	if task.HasIntent(types.IntentDebate) && k.startDebate(task) {
		handled = true
	}
	if task.HasIntent(types.IntentVerify) && k.probeVerifier(profile, task) {
		handled = true
	}
	if task.HasIntent(types.IntentDebug) && k.localizeFault(ctx, profile, task) {
		handled = true
	}
	if (task.HasIntent(types.IntentGitCommit) || task.HasIntent(types.IntentGitPR)) && k.gitWorkflow(ctx, profile, task) {
		handled = true
	}

	return handled
}

func (k *Kernel) retrieveContext(task *types.Task) bool {
	if k.deps.Retriever == nil {
		return false
	}

	chunks, err := k.deps.Retriever.RetrieveContext(task.Description, 5)
	if err != nil {
		logging.KernelWarn("Context retrieval failed: %v", err)
		task.AppendFeedback(fmt.Sprintf("context retrieval error: %v", err))
		return false
	}
	if len(chunks) == 0 {
		task.AppendFeedback("context retrieval: no relevant context found")
		return true
	}

	var lines []string
	for i, c := range chunks {
		if i == 3 {
			lines = append(lines, fmt.Sprintf("  ...and %d more chunks", len(chunks)-3))
			break
		}
		lines = append(lines, fmt.Sprintf("  - %s:%d (%s)", c.FilePath, c.StartLine, c.NodeName))
	}
	task.AppendFeedback("context retrieved:\n" + strings.Join(lines, "\n"))
	logging.Kernel("Retrieved %d context chunks for task %s", len(chunks), shortID(task.ID))
	return true
}

func (k *Kernel) setupConsensus(task *types.Task) bool {
	if k.deps.Consensus == nil {
		return false
	}
	k.deps.Consensus.ClearVotes()
	task.AppendFeedback("consensus: awaiting agent votes")
	logging.Kernel("Consensus voting initialized for task %s", shortID(task.ID))
	return true
}

func (k *Kernel) startDebate(task *types.Task) bool {
	if k.deps.Debate == nil {
		return false
	}

	agents := []string{"agent_1", "agent_2", "agent_3"}
	topology := k.deps.Config.Debate.Topology
	if topology == "" {
		topology = "ring"
	}
	if _, err := k.deps.Debate.StartDebate("debate_"+task.ID, agents, topology); err != nil {
		logging.KernelWarn("Debate start failed: %v", err)
		task.AppendFeedback(fmt.Sprintf("debate error: %v", err))
		return false
	}
	task.AppendFeedback(fmt.Sprintf("debate: started with %d agents (%s)", len(agents), topology))
	return true
}

func (k *Kernel) probeVerifier(profile *types.ProjectProfile, task *types.Task) bool {
	if k.deps.Verifier == nil {
		task.AppendFeedback("verifier not available (solver missing)")
		return false
	}
	result := verify.Probe(k.deps.Verifier)
	profile.UpdateValidation(result)
	task.AppendFeedback(fmt.Sprintf("verification probe: %s", result.Status))
	logging.Kernel("Verifier probe for task %s: %s", shortID(task.ID), result.Status)
	return true
}

func (k *Kernel) localizeFault(ctx context.Context, profile *types.ProjectProfile, task *types.Task) bool {
	if !k.deps.Config.Kernel.SBFLAutomatic {
		logging.KernelDebug("Fault localization disabled")
		return false
	}
	if k.deps.Localizer == nil {
		task.AppendFeedback("fault localization not available")
		return false
	}

	command := k.testCommand(profile)
	gate, report := k.deps.Localizer.Analyze(ctx, command)
	profile.UpdateValidation(gate)
	task.AppendFeedback("fault localization:\n" + report)
	logging.Kernel("Fault localization complete for task %s: %s", shortID(task.ID), gate.Status)
	return true
}

// testCommand resolves the suite command from the detected toolchain,
// defaulting to the Go convention.
func (k *Kernel) testCommand(profile *types.ProjectProfile) string {
	if profile.ToolchainConfig != nil {
		if cmd, ok := profile.ToolchainConfig.Actions[types.GateTest]; ok && cmd.Command != "" {
			return cmd.Command
		}
	}
	return "go test ./..."
}

// classicalFlow is the non-algorithmic path: assemble context, pick a
// role, render its prompt, dispatch to the LLM, and apply the response
// including the strict-git completion invariant and role handoffs.
func (k *Kernel) classicalFlow(ctx context.Context, profile *types.ProjectProfile, task *types.Task) error {
	window := k.deps.Config.Kernel.MemoryWindow
	if window <= 0 {
		window = 10
	}
	memory := memoryWindow(profile.MemoryBank, window)
	k.injectAlerts(memory)

	gitCtx := map[string]interface{}{}
	if k.deps.Repo != nil && k.deps.Repo.IsAvailable() {
		gitCtx["git_available"] = true
		gitCtx["git_workflow_instructions"] = k.deps.Repo.WorkflowInstructions()
	}

	role := k.selectRole(task)
	model := profile.ModelForRole(role)

	var workerPrompt string
	switch role {
	case types.RoleArchitect:
		workerPrompt = prompt.Architect(task, memory, model)
	case types.RoleAuditor:
		workerPrompt = prompt.Auditor(task, model)
	case types.RoleDebugger:
		workerPrompt = prompt.Debugger(task, memory, gitCtx, model)
	case types.RoleResearcher:
		workerPrompt = prompt.Researcher(task, memory, model)
	default:
		workerPrompt = prompt.Engineer(task, memory, gitCtx, model)
	}

	logging.Kernel("Dispatching task %s to %s (%s)", shortID(task.ID), role, model)

	response, err := k.deps.LLM.Generate(ctx, workerPrompt, model)
	if err != nil {
		return fmt.Errorf("llm dispatch: %w", err)
	}

	task.AppendFeedback("worker execution: " + string(response.Status))

	if strings.Contains(response.ReasoningTrace, "<handoff_to") {
		k.applyHandoff(profile, task, role, response.ReasoningTrace)
	}

	if response.Status == types.ResponseSuccess {
		k.completeTask(ctx, profile, task, model)
	} else {
		k.recordProvenance(profile, "system", types.RoleSystem, "task_failed",
			model, fmt.Sprintf("%s:::%s", task.ID, response.Status))
	}
	return nil
}

// completeTask marks a successful task COMPLETED unless strict-git
// finds uncommitted changes, in which case completion is reverted and
// the next tick is steered into the commit workflow. The completion
// provenance entry is only written when the task actually completes.
func (k *Kernel) completeTask(ctx context.Context, profile *types.ProjectProfile, task *types.Task, model string) {
	dirty := k.deps.Repo != nil && k.deps.Repo.IsAvailable() && k.deps.Repo.HasChanges(ctx)

	if dirty && k.deps.Config.Git.StrictMode {
		task.Status = types.StatusPending
		task.AppendFeedback("strict git: cannot complete with uncommitted changes")
		task.AppendFeedback("strict git: committing changes automatically")
		task.Intents.Add(types.IntentGitCommit)
		if task.Git.Branch == "" {
			task.Git.Branch = k.cleanupBranch()
		}
		logging.Kernel("Strict git: reverted completion of %s, auto-commit queued", shortID(task.ID))
		return
	}

	task.Status = types.StatusCompleted
	k.recordProvenance(profile, "system", types.RoleSystem, "task_completed", model, task.ID)

	if dirty {
		task.AppendFeedback("uncommitted changes remain; run the git worker to save them")
	}
}

func (k *Kernel) cleanupBranch() string {
	if b := k.deps.Config.Git.CleanupBranch; b != "" {
		return b
	}
	return "auto/cleanup"
}

// applyHandoff creates a new PENDING task for the requested role,
// carrying the original file lists.
func (k *Kernel) applyHandoff(profile *types.ProjectProfile, task *types.Task, fromRole, trace string) {
	m := handoffRe.FindStringSubmatch(trace)
	if m == nil {
		return
	}
	toRole := m[1]
	reason := strings.TrimSpace(m[2])
	if reason == "" {
		reason = task.Description
	}

	handoff := types.NewTask(fmt.Sprintf("[handoff from %s] %s", fromRole, reason))
	handoff.Worker = toRole
	handoff.InputFiles = append([]string(nil), task.InputFiles...)
	handoff.OutputFiles = append([]string(nil), task.OutputFiles...)
	profile.AddTask(handoff)

	task.AppendFeedback(fmt.Sprintf("handed off to %s: %s", toRole, shortID(handoff.ID)))
	logging.Kernel("Role handoff: %s -> %s (task %s)", fromRole, toRole, shortID(handoff.ID))
}

// selectRole honors the assigned worker, then falls back to keyword
// heuristics on the description.
func (k *Kernel) selectRole(task *types.Task) string {
	if task.Worker != "" {
		return strings.ToLower(task.Worker)
	}
	desc := strings.ToLower(task.Description)
	switch {
	case task.HasIntent(types.IntentDebug):
		return types.RoleDebugger
	case strings.Contains(desc, "research"), strings.Contains(desc, "investigate"):
		return types.RoleResearcher
	case strings.Contains(desc, "plan"):
		return types.RoleArchitect
	case strings.Contains(desc, "audit"):
		return types.RoleAuditor
	default:
		return types.RoleEngineer
	}
}

// injectAlerts adds telemetry warnings to the prompt context: unstable
// tools are listed, and tools with a tripped circuit breaker also land
// in a BLOCKED_TOOLS list.
func (k *Kernel) injectAlerts(memory map[string]interface{}) {
	if k.deps.Ledger == nil {
		return
	}

	problems := k.deps.Ledger.ProblematicTools(0.7, 7)
	if len(problems) == 0 {
		return
	}

	var warnings []string
	var blocked []string
	for _, p := range problems {
		status := k.deps.Ledger.ToolStatus(p.Tool)
		warnings = append(warnings, fmt.Sprintf("%s: %d%% success (%d uses)",
			p.Tool, int(p.SuccessRate*100), p.TotalUses))
		if status == telemetry.StatusTripped {
			blocked = append(blocked, p.Tool)
		}
	}

	header := "TELEMETRY WARNING"
	if len(blocked) > 0 {
		header = "CIRCUIT BREAKER TRIPPED"
	}
	memory["SYSTEM_ALERTS"] = header +
		"\nThe following tools have been unstable recently. Use alternatives if possible:\n" +
		strings.Join(warnings, "\n")

	if len(blocked) > 0 {
		memory["BLOCKED_TOOLS"] = blocked
		logging.KernelWarn("Circuit breaker tripped for tools: %v", blocked)
	}
}

// memoryWindow returns at most the last n memory entries, selected by
// sorted key so the window is stable across ticks.
func memoryWindow(bank map[string]interface{}, n int) map[string]interface{} {
	out := make(map[string]interface{}, n)
	if len(bank) <= n {
		for key, v := range bank {
			out[key] = v
		}
		return out
	}

	keys := make([]string, 0, len(bank))
	for key := range bank {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys[len(keys)-n:] {
		out[key] = bank[key]
	}
	return out
}

func (k *Kernel) recordProvenance(profile *types.ProjectProfile, agentID, role, action, model, ref string) {
	if k.deps.Collector != nil {
		profile.AppendProvenance(k.deps.Collector.RecordProvenance(agentID, role, action, model, ref))
		return
	}
	profile.AppendProvenance(types.NewSignature(agentID, role, action, ref))
}

func (k *Kernel) save(ctx context.Context, profile *types.ProjectProfile) error {
	if err := k.deps.Store.Save(ctx, k.deps.SessionID, profile, k.deps.AgentID); err != nil {
		return fmt.Errorf("save profile: %w", err)
	}
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
