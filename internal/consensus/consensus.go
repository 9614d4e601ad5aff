// Package consensus aggregates multi-agent votes into a single
// decision using confidence-weighted majority voting with optional Elo
// reputation scaling.
package consensus

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"

	"swarm/internal/logging"
)

// Elo defaults: K controls adaptation speed, the initial rating is the
// neutral point where the multiplier is exactly 1.
const (
	DefaultKFactor       = 32.0
	DefaultInitialRating = 1500.0
)

// ErrNoVotes is returned when a decision is requested with no votes.
var ErrNoVotes = errors.New("no votes to aggregate")

// ErrConfidenceRange is returned for confidence outside [0, 1].
var ErrConfidenceRange = errors.New("confidence must be in [0, 1]")

// Vote is a single agent's weighted choice.
type Vote struct {
	AgentID    string  `json:"agent_id"`
	Decision   string  `json:"decision"`
	Confidence float64 `json:"confidence"`
	Domain     string  `json:"domain"`
}

// Result is the outcome of one aggregation.
type Result struct {
	Decision         string             `json:"decision"`
	TotalWeight      float64            `json:"total_weight"`
	VoteDistribution map[string]float64 `json:"vote_distribution"`
	WinningMargin    float64            `json:"winning_margin"`
}

// Engine accumulates votes and per-domain Elo ratings. Safe for
// concurrent use; ratings survive ClearVotes so reputation persists
// across decisions within a session.
type Engine struct {
	mu            sync.Mutex
	kFactor       float64
	initialRating float64
	ratings       map[string]map[string]float64 // agent -> domain -> rating
	votes         []Vote
}

// NewEngine creates a consensus engine with the given Elo parameters.
// Non-positive values take the defaults.
func NewEngine(kFactor, initialRating float64) *Engine {
	if kFactor <= 0 {
		kFactor = DefaultKFactor
	}
	if initialRating <= 0 {
		initialRating = DefaultInitialRating
	}
	return &Engine{
		kFactor:       kFactor,
		initialRating: initialRating,
		ratings:       make(map[string]map[string]float64),
	}
}

// RegisterVote records one vote. Confidence outside [0, 1] is rejected.
func (e *Engine) RegisterVote(agentID, decision string, confidence float64, domain string) error {
	if confidence < 0 || confidence > 1 {
		return fmt.Errorf("%w: got %v", ErrConfidenceRange, confidence)
	}
	if domain == "" {
		domain = "general"
	}
	e.mu.Lock()
	e.votes = append(e.votes, Vote{
		AgentID:    agentID,
		Decision:   decision,
		Confidence: confidence,
		Domain:     domain,
	})
	e.mu.Unlock()
	logging.ConsensusDebug("Vote registered: %s -> %s (confidence=%.2f, domain=%s)",
		agentID, decision, confidence, domain)
	return nil
}

// ComputeDecision aggregates votes (the registered history when votes
// is nil) into the decision with the highest total weight. With useElo,
// each weight is confidence x (rating/initial); otherwise confidence
// alone. Ties go to the decision first encountered in vote order. The
// margin is top minus runner-up weight, or the top weight when only
// one decision received votes.
func (e *Engine) ComputeDecision(votes []Vote, useElo bool) (*Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if votes == nil {
		votes = e.votes
	}
	if len(votes) == 0 {
		return nil, ErrNoVotes
	}

	weights := make(map[string]float64)
	firstSeen := make(map[string]int)
	for i, v := range votes {
		weight := v.Confidence
		if useElo {
			weight *= e.ratingLocked(v.AgentID, v.Domain) / e.initialRating
		}
		if _, ok := firstSeen[v.Decision]; !ok {
			firstSeen[v.Decision] = i
		}
		weights[v.Decision] += weight
	}

	var winner string
	best := math.Inf(-1)
	for decision, w := range weights {
		if w > best || (w == best && firstSeen[decision] < firstSeen[winner]) {
			winner, best = decision, w
		}
	}

	sorted := make([]float64, 0, len(weights))
	for _, w := range weights {
		sorted = append(sorted, w)
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(sorted)))
	margin := sorted[0]
	if len(sorted) > 1 {
		margin = sorted[0] - sorted[1]
	}

	logging.Consensus("Consensus: %s (weight=%.2f, margin=%.2f)", winner, best, margin)
	return &Result{
		Decision:         winner,
		TotalWeight:      best,
		VoteDistribution: weights,
		WinningMargin:    margin,
	}, nil
}

// UpdateEloRating adjusts an agent's domain rating after the vote
// outcome is known. opponentRating <= 0 uses the initial rating as the
// opponent. Returns the new rating.
func (e *Engine) UpdateEloRating(agentID string, wasCorrect bool, domain string, opponentRating float64) float64 {
	if domain == "" {
		domain = "general"
	}
	if opponentRating <= 0 {
		opponentRating = e.initialRating
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	current := e.ratingLocked(agentID, domain)
	expected := 1.0 / (1.0 + math.Pow(10, (opponentRating-current)/400))
	actual := 0.0
	if wasCorrect {
		actual = 1.0
	}
	updated := current + e.kFactor*(actual-expected)

	byDomain, ok := e.ratings[agentID]
	if !ok {
		byDomain = make(map[string]float64)
		e.ratings[agentID] = byDomain
	}
	byDomain[domain] = updated

	logging.Consensus("Elo update: %s in %s: %.0f -> %.0f", agentID, domain, current, updated)
	return updated
}

// AgentRating returns the current rating, the initial value for agents
// never scored in the domain.
func (e *Engine) AgentRating(agentID, domain string) float64 {
	if domain == "" {
		domain = "general"
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ratingLocked(agentID, domain)
}

// AgentScore pairs an agent with its rating for ranking output.
type AgentScore struct {
	AgentID string
	Rating  float64
}

// TopAgents returns the topK highest-rated agents in a domain, rating
// descending with agent id as the tiebreak.
func (e *Engine) TopAgents(domain string, topK int) []AgentScore {
	if domain == "" {
		domain = "general"
	}
	if topK <= 0 {
		topK = 5
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	scores := make([]AgentScore, 0, len(e.ratings))
	for agentID, byDomain := range e.ratings {
		rating, ok := byDomain[domain]
		if !ok {
			rating = e.initialRating
		}
		scores = append(scores, AgentScore{AgentID: agentID, Rating: rating})
	}
	sort.Slice(scores, func(i, j int) bool {
		if scores[i].Rating != scores[j].Rating {
			return scores[i].Rating > scores[j].Rating
		}
		return scores[i].AgentID < scores[j].AgentID
	})
	if len(scores) > topK {
		scores = scores[:topK]
	}
	return scores
}

// ClearVotes drops vote history while preserving Elo ratings.
func (e *Engine) ClearVotes() {
	e.mu.Lock()
	e.votes = nil
	e.mu.Unlock()
	logging.ConsensusDebug("Vote history cleared")
}

// VoteCount returns the number of registered votes.
func (e *Engine) VoteCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.votes)
}

func (e *Engine) ratingLocked(agentID, domain string) float64 {
	if byDomain, ok := e.ratings[agentID]; ok {
		if rating, ok := byDomain[domain]; ok {
			return rating
		}
	}
	return e.initialRating
}
