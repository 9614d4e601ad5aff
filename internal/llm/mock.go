package llm

import (
	"context"
	"encoding/json"

	"swarm/internal/types"
)

// MockProvider answers when no provider key is configured. It simulates
// success so offline runs and tests exercise the full dispatch path.
type MockProvider struct{}

// Complete returns a canned successful AgentResponse.
func (p *MockProvider) Complete(_ context.Context, _ Request) (string, error) {
	resp := types.AgentResponse{
		Status:          types.ResponseSuccess,
		ReasoningTrace:  "[MOCK] No API key. Simulating success.",
		ValidationScore: 1.0,
	}
	data, err := json.Marshal(resp)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Name returns the provider name.
func (p *MockProvider) Name() string {
	return "mock"
}
