package kernel

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"swarm/internal/graph"
	"swarm/internal/types"
)

func TestRunDeliberation_FallbackDecomposition(t *testing.T) {
	k, _, _ := newTestKernel(t, func(d *Deps) {
		d.LLM = &stubLLM{responses: []types.AgentResponse{
			{Status: types.ResponseSuccess, ReasoningTrace: "use a queue", ValidationScore: 0.8},
		}}
	})

	result := k.RunDeliberation(context.Background(), "scale the ingest path", "", nil, 3)

	require.Len(t, result.Steps, 3)
	assert.Equal(t, "Decompose", result.Steps[0].Name)
	assert.Equal(t, "fallback", result.Steps[0].Worker)
	assert.Contains(t, result.Steps[0].Output, "scale the ingest path")
	assert.Equal(t, "Analyze", result.Steps[1].Name)
	assert.Contains(t, result.Steps[1].Output, "1 sub-problems")
	assert.Equal(t, "use a queue", result.FinalAnswer)
	assert.InDelta(t, 0.8, result.Confidence, 0.001)
}

func TestRunDeliberation_GraphDecomposition(t *testing.T) {
	k, _, _ := newTestKernel(t, func(d *Deps) {
		d.Retriever = &stubRetriever{chunks: []graph.ContextChunk{
			{NodeName: "ingest", Content: "func ingest() { ... }"},
			{NodeName: "flush", Content: "func flush() { ... }"},
			{NodeName: "drain", Content: "func drain() { ... }"},
			{NodeName: "extra", Content: "never listed"},
		}}
		d.LLM = &stubLLM{responses: []types.AgentResponse{
			{Status: types.ResponseSuccess, ReasoningTrace: "batch the writes", ValidationScore: 0.9},
		}}
	})

	result := k.RunDeliberation(context.Background(), "speed up ingestion", "", []string{"no new deps"}, 3)

	require.Len(t, result.Steps, 3)
	assert.Equal(t, "retriever", result.Steps[0].Worker)
	assert.Contains(t, result.Steps[0].Output, "ingest:")
	assert.Contains(t, result.Steps[0].Output, "drain:")
	assert.NotContains(t, result.Steps[0].Output, "extra")
	assert.Equal(t, "batch the writes", result.FinalAnswer)
}

func TestRunDeliberation_TwoStepsSkipsSynthesis(t *testing.T) {
	k, _, llm := newTestKernel(t, nil)

	result := k.RunDeliberation(context.Background(), "small question", "", nil, 2)

	assert.Len(t, result.Steps, 2)
	assert.Empty(t, result.FinalAnswer)
	assert.Zero(t, result.Confidence)
	assert.Zero(t, llm.calls)
}

func TestRunDeliberation_CancelledSynthesisScoresZero(t *testing.T) {
	k, _, _ := newTestKernel(t, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	result := k.RunDeliberation(ctx, "doomed question", "", nil, 3)

	assert.Contains(t, result.FinalAnswer, "deliberation failed")
	assert.Zero(t, result.Confidence)
	assert.Len(t, result.Steps, 2)
}
