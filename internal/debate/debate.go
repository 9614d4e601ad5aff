// Package debate runs sparse multi-agent debates: blind drafting,
// topology-limited critique, revision, convergence. Restricting who
// sees whose draft slows false consensus; blind first drafts preserve
// ensemble diversity.
package debate

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"swarm/internal/logging"
)

// Phase is the debate state machine position.
type Phase string

const (
	PhaseBlindDraft Phase = "blind_draft"
	PhaseCritique   Phase = "critique"
	PhaseRevision   Phase = "revision"
	PhaseConverged  Phase = "converged"
)

// Topologies restricting critique visibility.
const (
	TopologyRing  = "ring"
	TopologyPairs = "pairs"
	TopologyTree  = "tree"
)

// DefaultMaxRounds forces termination of debates that never converge.
const DefaultMaxRounds = 5

var (
	// ErrInvalidPhase is returned when an operation arrives in the
	// wrong state machine phase.
	ErrInvalidPhase = errors.New("debate phase violation")
	// ErrDebateNotFound is returned for unknown debate ids.
	ErrDebateNotFound = errors.New("debate not found")
	// ErrTooFewAgents is returned when fewer than two agents join.
	ErrTooFewAgents = errors.New("debate requires at least 2 agents")
)

// Critique is one agent's response to another's draft.
type Critique struct {
	FromAgent string `json:"from_agent"`
	ToAgent   string `json:"to_agent"`
	Round     int    `json:"round_num"`
	Message   string `json:"message"`
	Severity  string `json:"severity"` // blocking | suggestion | clarification
}

// State is a debate session's full record.
type State struct {
	Agents    []string            `json:"agents"`
	Phase     Phase               `json:"phase"`
	Round     int                 `json:"current_round"`
	Drafts    map[string]string   `json:"drafts"`
	Critiques []Critique          `json:"critiques"`
	Revisions map[string][]string `json:"revisions"`
	Topology  string              `json:"topology"`
}

// SpeakerConstraints bound turn-taking in critique rounds.
type SpeakerConstraints struct {
	NoConsecutiveRepeats bool
	MaxTurnsPerAgent     int // 0 = unlimited
	PreviousSpeaker      string
}

// CritiqueFn produces a critique from the drafts visible to the critic.
type CritiqueFn func(criticID string, visibleDrafts map[string]string) (string, error)

// Engine manages concurrent debate sessions keyed by id.
type Engine struct {
	mu        sync.Mutex
	maxRounds int
	debates   map[string]*State
}

// NewEngine creates a debate engine. maxRounds <= 0 takes the default.
func NewEngine(maxRounds int) *Engine {
	if maxRounds <= 0 {
		maxRounds = DefaultMaxRounds
	}
	return &Engine{maxRounds: maxRounds, debates: make(map[string]*State)}
}

// StartDebate opens a session in BLIND_DRAFT. Restarting an id replaces
// the previous session.
func (e *Engine) StartDebate(debateID string, agents []string, topology string) (*State, error) {
	if len(agents) < 2 {
		return nil, ErrTooFewAgents
	}
	switch topology {
	case TopologyRing, TopologyPairs, TopologyTree:
	case "":
		topology = TopologyRing
	default:
		return nil, fmt.Errorf("unknown debate topology %q", topology)
	}

	state := &State{
		Agents:    append([]string(nil), agents...),
		Phase:     PhaseBlindDraft,
		Drafts:    make(map[string]string),
		Revisions: make(map[string][]string),
		Topology:  topology,
	}
	e.mu.Lock()
	e.debates[debateID] = state
	e.mu.Unlock()

	logging.Debate("Debate started: %s with %d agents (topology=%s)", debateID, len(agents), topology)
	return state, nil
}

// BlindDraft records the independent first drafts and advances to
// CRITIQUE. Agents must not have seen each other's work yet; the
// engine cannot verify that, only the caller can.
func (e *Engine) BlindDraft(debateID string, drafts map[string]string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	state, ok := e.debates[debateID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrDebateNotFound, debateID)
	}
	if state.Phase != PhaseBlindDraft {
		return fmt.Errorf("%w: BlindDraft in phase %s", ErrInvalidPhase, state.Phase)
	}

	state.Drafts = make(map[string]string, len(drafts))
	for agent, draft := range drafts {
		state.Drafts[agent] = draft
	}
	state.Phase = PhaseCritique
	logging.Debate("Blind drafts collected: %d agents", len(drafts))
	return nil
}

// SparseCritique runs one critique round: each (critic, target) pair
// from the topology produces a critique where the critic sees only the
// target's draft. Advances to REVISION. A failing critique function
// aborts the round with the phase unchanged so it can be retried.
func (e *Engine) SparseCritique(debateID string, generate CritiqueFn) ([]Critique, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	state, ok := e.debates[debateID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrDebateNotFound, debateID)
	}
	if state.Phase != PhaseCritique {
		return nil, fmt.Errorf("%w: SparseCritique in phase %s", ErrInvalidPhase, state.Phase)
	}

	pairings := topologyPairings(state.Agents, state.Topology)
	critiques := make([]Critique, 0, len(pairings))
	for _, pair := range pairings {
		visible := map[string]string{pair.target: state.Drafts[pair.target]}
		message, err := generate(pair.critic, visible)
		if err != nil {
			return nil, fmt.Errorf("critique from %s failed: %w", pair.critic, err)
		}
		critiques = append(critiques, Critique{
			FromAgent: pair.critic,
			ToAgent:   pair.target,
			Round:     state.Round,
			Message:   message,
			Severity:  "suggestion",
		})
	}

	state.Critiques = append(state.Critiques, critiques...)
	state.Phase = PhaseRevision
	logging.Debate("Critiques generated: %d", len(critiques))
	return critiques, nil
}

// Revise applies revised drafts, bumps the round, and reports
// convergence: at least n-1 drafts byte-equal to the prior round, or
// the round cap reached. Converged debates freeze; otherwise the state
// returns to CRITIQUE.
func (e *Engine) Revise(debateID string, revisions map[string]string) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	state, ok := e.debates[debateID]
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrDebateNotFound, debateID)
	}
	if state.Phase != PhaseRevision {
		return false, fmt.Errorf("%w: Revise in phase %s", ErrInvalidPhase, state.Phase)
	}

	unchanged := 0
	for agent, draft := range revisions {
		state.Revisions[agent] = append(state.Revisions[agent], draft)
		if state.Drafts[agent] == draft {
			unchanged++
		}
	}
	for agent, draft := range revisions {
		state.Drafts[agent] = draft
	}
	state.Round++

	converged := unchanged >= len(state.Agents)-1 || state.Round >= e.maxRounds
	if converged {
		state.Phase = PhaseConverged
		logging.Debate("Debate converged after %d rounds", state.Round)
	} else {
		state.Phase = PhaseCritique
		logging.Debate("Round %d: %d unchanged", state.Round, unchanged)
	}
	return converged, nil
}

// SelectNextSpeaker returns the smallest agent id that passes the
// constraints, or "" when every agent is excluded.
func (e *Engine) SelectNextSpeaker(state *State, constraints SpeakerConstraints) string {
	excluded := make(map[string]bool)
	if constraints.NoConsecutiveRepeats && constraints.PreviousSpeaker != "" {
		excluded[constraints.PreviousSpeaker] = true
	}
	if constraints.MaxTurnsPerAgent > 0 {
		turns := make(map[string]int)
		for _, c := range state.Critiques {
			turns[c.FromAgent]++
		}
		for _, agent := range state.Agents {
			if turns[agent] >= constraints.MaxTurnsPerAgent {
				excluded[agent] = true
			}
		}
	}

	candidates := make([]string, 0, len(state.Agents))
	for _, agent := range state.Agents {
		if !excluded[agent] {
			candidates = append(candidates, agent)
		}
	}
	if len(candidates) == 0 {
		return ""
	}
	sort.Strings(candidates)
	return candidates[0]
}

// FinalDrafts returns a copy of the current drafts. Callers should
// check the phase; asking before convergence is legal but logged.
func (e *Engine) FinalDrafts(debateID string) (map[string]string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	state, ok := e.debates[debateID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrDebateNotFound, debateID)
	}
	if state.Phase != PhaseConverged {
		logging.DebateWarn("Debate %s not yet converged", debateID)
	}
	out := make(map[string]string, len(state.Drafts))
	for agent, draft := range state.Drafts {
		out[agent] = draft
	}
	return out, nil
}

// GetState returns the live state for a debate id.
func (e *Engine) GetState(debateID string) (*State, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	state, ok := e.debates[debateID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrDebateNotFound, debateID)
	}
	return state, nil
}

type pairing struct {
	critic string
	target string
}

// topologyPairings maps agents to (critic, target) pairs:
// ring: i critiques i+1 mod n; pairs: first half critiques second
// half positionally; tree: i critiques children 2i+1 and 2i+2.
func topologyPairings(agents []string, topology string) []pairing {
	n := len(agents)
	switch topology {
	case TopologyRing:
		out := make([]pairing, 0, n)
		for i := 0; i < n; i++ {
			out = append(out, pairing{critic: agents[i], target: agents[(i+1)%n]})
		}
		return out
	case TopologyPairs:
		mid := n / 2
		out := make([]pairing, 0, mid)
		for i := 0; i < mid && mid+i < n; i++ {
			out = append(out, pairing{critic: agents[i], target: agents[mid+i]})
		}
		return out
	case TopologyTree:
		var out []pairing
		for i := 0; i < n; i++ {
			if left := 2*i + 1; left < n {
				out = append(out, pairing{critic: agents[i], target: agents[left]})
			}
			if right := 2*i + 2; right < n {
				out = append(out, pairing{critic: agents[i], target: agents[right]})
			}
		}
		return out
	}
	return nil
}
