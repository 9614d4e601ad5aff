package debate

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echoCritique(criticID string, visible map[string]string) (string, error) {
	for target, draft := range visible {
		return fmt.Sprintf("%s reviewed %s: %q", criticID, target, draft), nil
	}
	return "", errors.New("nothing visible")
}

func TestStartDebate_RequiresTwoAgents(t *testing.T) {
	e := NewEngine(0)
	_, err := e.StartDebate("d1", []string{"solo"}, TopologyRing)
	assert.ErrorIs(t, err, ErrTooFewAgents)

	_, err = e.StartDebate("d1", nil, TopologyRing)
	assert.ErrorIs(t, err, ErrTooFewAgents)
}

func TestStartDebate_RejectsUnknownTopology(t *testing.T) {
	e := NewEngine(0)
	_, err := e.StartDebate("d1", []string{"a", "b"}, "mesh")
	require.Error(t, err)
}

func TestStartDebate_DefaultsToRing(t *testing.T) {
	e := NewEngine(0)
	state, err := e.StartDebate("d1", []string{"a", "b"}, "")
	require.NoError(t, err)
	assert.Equal(t, TopologyRing, state.Topology)
	assert.Equal(t, PhaseBlindDraft, state.Phase)
	assert.Equal(t, 0, state.Round)
}

func TestPhaseGuards(t *testing.T) {
	e := NewEngine(0)
	_, err := e.StartDebate("d1", []string{"a", "b"}, TopologyRing)
	require.NoError(t, err)

	// Critique and revision are illegal before drafts exist.
	_, err = e.SparseCritique("d1", echoCritique)
	assert.ErrorIs(t, err, ErrInvalidPhase)
	_, err = e.Revise("d1", map[string]string{"a": "x"})
	assert.ErrorIs(t, err, ErrInvalidPhase)

	require.NoError(t, e.BlindDraft("d1", map[string]string{"a": "A0", "b": "B0"}))

	// A second blind draft is illegal once critique opens.
	err = e.BlindDraft("d1", map[string]string{"a": "A1"})
	assert.ErrorIs(t, err, ErrInvalidPhase)
}

func TestUnknownDebateID(t *testing.T) {
	e := NewEngine(0)
	assert.ErrorIs(t, e.BlindDraft("ghost", nil), ErrDebateNotFound)
	_, err := e.SparseCritique("ghost", echoCritique)
	assert.ErrorIs(t, err, ErrDebateNotFound)
	_, err = e.Revise("ghost", nil)
	assert.ErrorIs(t, err, ErrDebateNotFound)
	_, err = e.FinalDrafts("ghost")
	assert.ErrorIs(t, err, ErrDebateNotFound)
}

func TestSparseCritique_CriticSeesOnlyTarget(t *testing.T) {
	e := NewEngine(0)
	_, err := e.StartDebate("d1", []string{"a", "b", "c"}, TopologyRing)
	require.NoError(t, err)
	require.NoError(t, e.BlindDraft("d1", map[string]string{"a": "A0", "b": "B0", "c": "C0"}))

	seen := make(map[string][]string)
	critiques, err := e.SparseCritique("d1", func(critic string, visible map[string]string) (string, error) {
		for target := range visible {
			seen[critic] = append(seen[critic], target)
		}
		return "looks fine", nil
	})
	require.NoError(t, err)
	require.Len(t, critiques, 3)

	// Ring: a->b, b->c, c->a. Each critic saw exactly one draft.
	assert.Equal(t, []string{"b"}, seen["a"])
	assert.Equal(t, []string{"c"}, seen["b"])
	assert.Equal(t, []string{"a"}, seen["c"])
	for _, c := range critiques {
		assert.Equal(t, 0, c.Round)
		assert.Equal(t, "suggestion", c.Severity)
	}
}

func TestSparseCritique_GeneratorErrorKeepsPhase(t *testing.T) {
	e := NewEngine(0)
	_, err := e.StartDebate("d1", []string{"a", "b"}, TopologyRing)
	require.NoError(t, err)
	require.NoError(t, e.BlindDraft("d1", map[string]string{"a": "A0", "b": "B0"}))

	boom := errors.New("model unavailable")
	_, err = e.SparseCritique("d1", func(string, map[string]string) (string, error) {
		return "", boom
	})
	require.ErrorIs(t, err, boom)

	// Retry succeeds: phase was left at critique.
	_, err = e.SparseCritique("d1", echoCritique)
	assert.NoError(t, err)
}

func TestRevise_ConvergesWhenAllButOneUnchanged(t *testing.T) {
	e := NewEngine(0)
	_, err := e.StartDebate("d1", []string{"a", "b", "c"}, TopologyRing)
	require.NoError(t, err)
	require.NoError(t, e.BlindDraft("d1", map[string]string{"a": "A0", "b": "B0", "c": "C0"}))
	_, err = e.SparseCritique("d1", echoCritique)
	require.NoError(t, err)

	// Two of three drafts unchanged: n-1 threshold met on round one.
	converged, err := e.Revise("d1", map[string]string{"a": "A0", "b": "B0", "c": "C1"})
	require.NoError(t, err)
	assert.True(t, converged)

	state, err := e.GetState("d1")
	require.NoError(t, err)
	assert.Equal(t, PhaseConverged, state.Phase)
	assert.Equal(t, 1, state.Round)

	final, err := e.FinalDrafts("d1")
	require.NoError(t, err)
	assert.Equal(t, "C1", final["c"])
	assert.Equal(t, "A0", final["a"])
}

func TestRevise_LoopsBackToCritique(t *testing.T) {
	e := NewEngine(0)
	_, err := e.StartDebate("d1", []string{"a", "b", "c"}, TopologyRing)
	require.NoError(t, err)
	require.NoError(t, e.BlindDraft("d1", map[string]string{"a": "A0", "b": "B0", "c": "C0"}))
	_, err = e.SparseCritique("d1", echoCritique)
	require.NoError(t, err)

	// Everyone rewrote: only 0 unchanged, keep debating.
	converged, err := e.Revise("d1", map[string]string{"a": "A1", "b": "B1", "c": "C1"})
	require.NoError(t, err)
	assert.False(t, converged)

	state, err := e.GetState("d1")
	require.NoError(t, err)
	assert.Equal(t, PhaseCritique, state.Phase)
	assert.Equal(t, 1, state.Round)
	assert.Equal(t, []string{"A1"}, state.Revisions["a"])
}

func TestRevise_RoundCapForcesConvergence(t *testing.T) {
	e := NewEngine(2)
	_, err := e.StartDebate("d1", []string{"a", "b", "c"}, TopologyRing)
	require.NoError(t, err)
	require.NoError(t, e.BlindDraft("d1", map[string]string{"a": "A0", "b": "B0", "c": "C0"}))

	round := func(suffix string) bool {
		_, err := e.SparseCritique("d1", echoCritique)
		require.NoError(t, err)
		converged, err := e.Revise("d1", map[string]string{
			"a": "A" + suffix, "b": "B" + suffix, "c": "C" + suffix,
		})
		require.NoError(t, err)
		return converged
	}

	assert.False(t, round("1"))
	// Round 2 hits maxRounds even though every draft changed again.
	assert.True(t, round("2"))
}

func TestTopologyPairings(t *testing.T) {
	agents := []string{"a", "b", "c", "d"}

	tests := []struct {
		topology string
		want     []pairing
	}{
		{TopologyRing, []pairing{
			{"a", "b"}, {"b", "c"}, {"c", "d"}, {"d", "a"},
		}},
		{TopologyPairs, []pairing{
			{"a", "c"}, {"b", "d"},
		}},
		{TopologyTree, []pairing{
			{"a", "b"}, {"a", "c"}, {"b", "d"},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.topology, func(t *testing.T) {
			assert.Equal(t, tt.want, topologyPairings(agents, tt.topology))
		})
	}
}

func TestTopologyPairings_OddPairs(t *testing.T) {
	// With 5 agents the pairs topology leaves the middle agent unpaired
	// as a critic and the last agent covered.
	got := topologyPairings([]string{"a", "b", "c", "d", "e"}, TopologyPairs)
	assert.Equal(t, []pairing{{"a", "c"}, {"b", "d"}}, got)
}

func TestSelectNextSpeaker(t *testing.T) {
	e := NewEngine(0)
	state := &State{
		Agents: []string{"carol", "alice", "bob"},
		Critiques: []Critique{
			{FromAgent: "alice"}, {FromAgent: "alice"}, {FromAgent: "bob"},
		},
	}

	// Unconstrained: smallest id wins.
	got := e.SelectNextSpeaker(state, SpeakerConstraints{})
	assert.Equal(t, "alice", got)

	// No consecutive repeats excludes the previous speaker.
	got = e.SelectNextSpeaker(state, SpeakerConstraints{
		NoConsecutiveRepeats: true,
		PreviousSpeaker:      "alice",
	})
	assert.Equal(t, "bob", got)

	// Turn cap counts critiques authored so far.
	got = e.SelectNextSpeaker(state, SpeakerConstraints{MaxTurnsPerAgent: 1})
	assert.Equal(t, "carol", got)

	// All excluded: no speaker.
	got = e.SelectNextSpeaker(state, SpeakerConstraints{
		NoConsecutiveRepeats: true,
		PreviousSpeaker:      "carol",
		MaxTurnsPerAgent:     1,
	})
	assert.Equal(t, "", got)
}

func TestFinalDrafts_ReturnsCopy(t *testing.T) {
	e := NewEngine(0)
	_, err := e.StartDebate("d1", []string{"a", "b"}, TopologyRing)
	require.NoError(t, err)
	require.NoError(t, e.BlindDraft("d1", map[string]string{"a": "A0", "b": "B0"}))

	final, err := e.FinalDrafts("d1")
	require.NoError(t, err)
	final["a"] = "tampered"

	state, err := e.GetState("d1")
	require.NoError(t, err)
	assert.Equal(t, "A0", state.Drafts["a"])
}
