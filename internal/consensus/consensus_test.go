package consensus

import (
	"errors"
	"math"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestEngine_ConfidenceRange(t *testing.T) {
	e := NewEngine(0, 0)

	if err := e.RegisterVote("a1", "yes", 1.2, ""); !errors.Is(err, ErrConfidenceRange) {
		t.Errorf("err = %v, want ErrConfidenceRange", err)
	}
	if err := e.RegisterVote("a1", "yes", -0.1, ""); !errors.Is(err, ErrConfidenceRange) {
		t.Errorf("err = %v, want ErrConfidenceRange", err)
	}
	if err := e.RegisterVote("a1", "yes", 0, ""); err != nil {
		t.Errorf("boundary 0 rejected: %v", err)
	}
	if err := e.RegisterVote("a1", "yes", 1, ""); err != nil {
		t.Errorf("boundary 1 rejected: %v", err)
	}
}

func TestEngine_EmptyVotes(t *testing.T) {
	e := NewEngine(0, 0)
	if _, err := e.ComputeDecision(nil, false); !errors.Is(err, ErrNoVotes) {
		t.Errorf("err = %v, want ErrNoVotes", err)
	}
}

func TestEngine_WeightedMajority(t *testing.T) {
	e := NewEngine(0, 0)
	votes := []Vote{
		{AgentID: "a1", Decision: "approve", Confidence: 0.9},
		{AgentID: "a2", Decision: "approve", Confidence: 0.8},
		{AgentID: "a3", Decision: "reject", Confidence: 0.6},
	}

	result, err := e.ComputeDecision(votes, false)
	if err != nil {
		t.Fatalf("ComputeDecision failed: %v", err)
	}
	if result.Decision != "approve" {
		t.Errorf("decision = %s, want approve", result.Decision)
	}
	if math.Abs(result.TotalWeight-1.7) > 1e-9 {
		t.Errorf("total weight = %f, want 1.7", result.TotalWeight)
	}
	if math.Abs(result.WinningMargin-1.1) > 1e-9 {
		t.Errorf("margin = %f, want 1.1", result.WinningMargin)
	}
}

func TestEngine_UnanimousMarginIsTotalWeight(t *testing.T) {
	e := NewEngine(0, 0)
	votes := []Vote{
		{AgentID: "a1", Decision: "ship", Confidence: 0.5},
		{AgentID: "a2", Decision: "ship", Confidence: 0.5},
	}

	result, err := e.ComputeDecision(votes, false)
	if err != nil {
		t.Fatalf("ComputeDecision failed: %v", err)
	}
	if result.WinningMargin != result.TotalWeight {
		t.Errorf("unanimous margin = %f, want total weight %f",
			result.WinningMargin, result.TotalWeight)
	}
}

func TestEngine_TieGoesToFirstEncountered(t *testing.T) {
	e := NewEngine(0, 0)
	votes := []Vote{
		{AgentID: "a1", Decision: "blue", Confidence: 0.5},
		{AgentID: "a2", Decision: "green", Confidence: 0.5},
	}

	for i := 0; i < 20; i++ {
		result, err := e.ComputeDecision(votes, false)
		if err != nil {
			t.Fatal(err)
		}
		if result.Decision != "blue" {
			t.Fatalf("run %d: tie broke to %s, want blue", i, result.Decision)
		}
	}
}

func TestEngine_EloScalesWeight(t *testing.T) {
	e := NewEngine(32, 1500)

	// Push a1's rating up and a2's down in the same domain.
	for i := 0; i < 10; i++ {
		e.UpdateEloRating("a1", true, "backend", 0)
		e.UpdateEloRating("a2", false, "backend", 0)
	}
	if e.AgentRating("a1", "backend") <= 1500 {
		t.Fatalf("a1 rating = %f, want > 1500", e.AgentRating("a1", "backend"))
	}
	if e.AgentRating("a2", "backend") >= 1500 {
		t.Fatalf("a2 rating = %f, want < 1500", e.AgentRating("a2", "backend"))
	}

	// Equal confidence, but a1's reputation should now dominate.
	votes := []Vote{
		{AgentID: "a1", Decision: "optionA", Confidence: 0.7, Domain: "backend"},
		{AgentID: "a2", Decision: "optionB", Confidence: 0.7, Domain: "backend"},
	}
	result, err := e.ComputeDecision(votes, true)
	if err != nil {
		t.Fatal(err)
	}
	if result.Decision != "optionA" {
		t.Errorf("decision = %s, want optionA (higher Elo)", result.Decision)
	}

	// Without Elo the same votes tie and break to first encountered.
	result, err = e.ComputeDecision(votes, false)
	if err != nil {
		t.Fatal(err)
	}
	if result.Decision != "optionA" {
		t.Errorf("no-elo decision = %s, want optionA", result.Decision)
	}
}

func TestEngine_EloUpdateSymmetry(t *testing.T) {
	e := NewEngine(32, 1500)

	// At equal ratings, expected = 0.5, so a win gains K/2.
	got := e.UpdateEloRating("a1", true, "", 0)
	if math.Abs(got-1516) > 1e-9 {
		t.Errorf("rating after first win = %f, want 1516", got)
	}
	got = e.UpdateEloRating("a2", false, "", 0)
	if math.Abs(got-1484) > 1e-9 {
		t.Errorf("rating after first loss = %f, want 1484", got)
	}
}

func TestEngine_TopAgents(t *testing.T) {
	e := NewEngine(32, 1500)
	e.UpdateEloRating("strong", true, "general", 0)
	e.UpdateEloRating("weak", false, "general", 0)
	e.UpdateEloRating("mid", true, "other", 0)

	top := e.TopAgents("general", 2)
	if len(top) != 2 {
		t.Fatalf("top = %v", top)
	}
	if top[0].AgentID != "strong" {
		t.Errorf("top[0] = %s, want strong", top[0].AgentID)
	}
}

func TestEngine_ClearVotesPreservesRatings(t *testing.T) {
	e := NewEngine(32, 1500)
	if err := e.RegisterVote("a1", "x", 0.9, ""); err != nil {
		t.Fatal(err)
	}
	e.UpdateEloRating("a1", true, "general", 0)

	e.ClearVotes()
	if e.VoteCount() != 0 {
		t.Errorf("votes = %d after clear", e.VoteCount())
	}
	if e.AgentRating("a1", "general") == 1500 {
		t.Error("rating reset by ClearVotes")
	}
}

func TestEngine_MarginNeverNegative(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("winning margin is non-negative and decision holds max weight",
		prop.ForAll(
			func(confidences []float64, choices []bool) bool {
				if len(confidences) == 0 {
					return true
				}
				e := NewEngine(0, 0)
				votes := make([]Vote, 0, len(confidences))
				for i, c := range confidences {
					decision := "A"
					if i < len(choices) && choices[i] {
						decision = "B"
					}
					votes = append(votes, Vote{
						AgentID:    "agent",
						Decision:   decision,
						Confidence: c,
					})
				}
				result, err := e.ComputeDecision(votes, false)
				if err != nil {
					return false
				}
				if result.WinningMargin < 0 {
					return false
				}
				for _, w := range result.VoteDistribution {
					if w > result.TotalWeight {
						return false
					}
				}
				return true
			},
			gen.SliceOf(gen.Float64Range(0, 1)),
			gen.SliceOf(gen.Bool()),
		))

	properties.TestingRun(t)
}
