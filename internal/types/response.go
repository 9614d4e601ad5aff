package types

import (
	"encoding/json"
	"fmt"
)

// ResponseStatus is the worker-reported outcome of one LLM dispatch.
type ResponseStatus string

const (
	ResponseSuccess            ResponseStatus = "SUCCESS"
	ResponseFailed             ResponseStatus = "FAILED"
	ResponseNeedsClarification ResponseStatus = "NEEDS_CLARIFICATION"
	ResponsePending            ResponseStatus = "PENDING"
)

// Valid reports whether the status is one of the four contract values.
func (s ResponseStatus) Valid() bool {
	switch s {
	case ResponseSuccess, ResponseFailed, ResponseNeedsClarification, ResponsePending:
		return true
	}
	return false
}

// ToolCall is a tool invocation requested by a worker. Arguments arrive
// from models either as a JSON object or as a string containing JSON, so
// decoding accepts both.
type ToolCall struct {
	Function  string                 `json:"function"`
	Arguments map[string]interface{} `json:"arguments,omitempty"`
}

// UnmarshalJSON accepts arguments as an object or a JSON-encoded string.
func (tc *ToolCall) UnmarshalJSON(data []byte) error {
	var raw struct {
		Function  string          `json:"function"`
		Arguments json.RawMessage `json:"arguments"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	tc.Function = raw.Function
	tc.Arguments = nil

	if len(raw.Arguments) == 0 || string(raw.Arguments) == "null" {
		return nil
	}

	var asMap map[string]interface{}
	if err := json.Unmarshal(raw.Arguments, &asMap); err == nil {
		tc.Arguments = asMap
		return nil
	}

	var asString string
	if err := json.Unmarshal(raw.Arguments, &asString); err == nil {
		if asString == "" {
			return nil
		}
		if err := json.Unmarshal([]byte(asString), &asMap); err == nil {
			tc.Arguments = asMap
			return nil
		}
		// Preserve the raw string when it is not valid JSON
		tc.Arguments = map[string]interface{}{"_raw": asString}
		return nil
	}

	return fmt.Errorf("tool call %q: arguments are neither object nor string", raw.Function)
}

// AgentResponse is the standardized response format for all workers.
type AgentResponse struct {
	Status           ResponseStatus         `json:"status"`
	ReasoningTrace   string                 `json:"reasoning_trace"`
	ValidationScore  float64                `json:"validation_score"`
	ArtifactsCreated []string               `json:"artifacts_created,omitempty"`
	ToolCalls        []ToolCall             `json:"tool_calls,omitempty"`
	BlackboardUpdate map[string]interface{} `json:"blackboard_update,omitempty"`
}

// Validate enforces the response contract: a known status and a
// validation score in [0, 1].
func (r *AgentResponse) Validate() error {
	if !r.Status.Valid() {
		return fmt.Errorf("invalid response status %q", r.Status)
	}
	if r.ValidationScore < 0 || r.ValidationScore > 1 {
		return fmt.Errorf("validation_score %v outside [0, 1]", r.ValidationScore)
	}
	return nil
}
