package llm

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// agentResponseSchema is the wire contract every worker reply must meet
// before it is decoded into a typed value. Extra keys are allowed so
// workers can attach provider-specific metadata.
const agentResponseSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "title": "AgentResponse",
  "type": "object",
  "properties": {
    "status": {
      "type": "string",
      "pattern": "^(PENDING|SUCCESS|FAILED|NEEDS_CLARIFICATION)$"
    },
    "reasoning_trace": {
      "type": "string"
    },
    "validation_score": {
      "type": "number",
      "minimum": 0.0,
      "maximum": 1.0
    },
    "artifacts_created": {
      "type": "array",
      "items": {"type": "string"}
    },
    "tool_calls": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "function": {"type": "string"},
          "arguments": {}
        },
        "required": ["function"]
      }
    },
    "blackboard_update": {
      "type": "object"
    }
  },
  "required": ["status", "reasoning_trace"],
  "additionalProperties": true
}`

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func compiledSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		schema, schemaErr = jsonschema.CompileString("agent_response.json", agentResponseSchema)
	})
	return schema, schemaErr
}

// ValidateAgentResponseJSON checks a raw JSON document against the
// response contract.
func ValidateAgentResponseJSON(data []byte) error {
	s, err := compiledSchema()
	if err != nil {
		return fmt.Errorf("schema compile: %w", err)
	}

	var doc interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("invalid JSON document: %w", err)
	}

	return s.Validate(doc)
}
