package types

import "sort"

// Intent is a dispatch variant attached to a task. Each intent routes the
// task through one orchestrator subsystem (retrieval, voting, debate,
// verification, fault localization, or one of the git workflows).
type Intent string

const (
	IntentContext          Intent = "context_needed"           // knowledge graph retrieval
	IntentConsensus        Intent = "requires_consensus"       // weighted voting
	IntentDebate           Intent = "requires_debate"          // sparse debate engine
	IntentVerify           Intent = "verification_required"    // formal verifier gate
	IntentDebug            Intent = "tests_failing"            // Ochiai fault localization
	IntentGitCommit        Intent = "git_commit_ready"         // commit worker
	IntentGitPR            Intent = "git_create_pr"            // PR creation worker
	IntentFeatureScout     Intent = "feature_discovery"        // feature scout role
	IntentCodeAudit        Intent = "code_audit"               // code auditor role
	IntentIssueTriage      Intent = "issue_triage_needed"      // issue triage role
	IntentBranchManager    Intent = "branch_management_needed" // branch manager role
	IntentProjectLifecycle Intent = "project_bootstrap"        // project lifecycle role
)

// AllIntents lists every dispatch variant in declaration order.
var AllIntents = []Intent{
	IntentContext,
	IntentConsensus,
	IntentDebate,
	IntentVerify,
	IntentDebug,
	IntentGitCommit,
	IntentGitPR,
	IntentFeatureScout,
	IntentCodeAudit,
	IntentIssueTriage,
	IntentBranchManager,
	IntentProjectLifecycle,
}

// IntentSet is the set of dispatch variants active on a task.
// The zero value is usable; Add allocates lazily.
type IntentSet map[Intent]bool

// NewIntentSet builds a set from the given intents.
func NewIntentSet(intents ...Intent) IntentSet {
	s := make(IntentSet, len(intents))
	for _, i := range intents {
		s[i] = true
	}
	return s
}

// Has reports whether the intent is in the set.
func (s IntentSet) Has(i Intent) bool {
	return s[i]
}

// Add inserts an intent. Returns the set so callers can chain on a nil map.
func (s *IntentSet) Add(i Intent) {
	if *s == nil {
		*s = make(IntentSet)
	}
	(*s)[i] = true
}

// Remove drops an intent from the set.
func (s IntentSet) Remove(i Intent) {
	delete(s, i)
}

// Slice returns the active intents in declaration order.
func (s IntentSet) Slice() []Intent {
	order := make(map[Intent]int, len(AllIntents))
	for idx, i := range AllIntents {
		order[i] = idx
	}
	out := make([]Intent, 0, len(s))
	for i, on := range s {
		if on {
			out = append(out, i)
		}
	}
	sort.Slice(out, func(a, b int) bool { return order[out[a]] < order[out[b]] })
	return out
}

// Clone returns an independent copy of the set.
func (s IntentSet) Clone() IntentSet {
	if s == nil {
		return nil
	}
	out := make(IntentSet, len(s))
	for i, on := range s {
		out[i] = on
	}
	return out
}

// Empty reports whether no intent is active.
func (s IntentSet) Empty() bool {
	for _, on := range s {
		if on {
			return false
		}
	}
	return true
}
