package llm

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"swarm/internal/types"
)

// Models wrap JSON in markdown fences, prefix it with chatter, or leave
// trailing commas. The repair chain tries progressively more invasive
// fixes and gives up with the head of the offending output.
var (
	fenceRE         = regexp.MustCompile("(?s)```(?:\\w+)?\\s*(.*?)```")
	trailingCommaRE = regexp.MustCompile(`,\s*([\]}])`)
)

// SafeParseJSON extracts a JSON document from raw model output.
// The chain: strip code fences, try the text as-is, try the outermost
// brace span, then retry that span with trailing commas removed.
func SafeParseJSON(raw string) ([]byte, error) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return nil, fmt.Errorf("empty response")
	}

	if m := fenceRE.FindStringSubmatch(text); m != nil {
		text = strings.TrimSpace(m[1])
	}

	if json.Valid([]byte(text)) {
		return []byte(text), nil
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		candidate := text[start : end+1]
		if json.Valid([]byte(candidate)) {
			return []byte(candidate), nil
		}
		repaired := trailingCommaRE.ReplaceAllString(candidate, "$1")
		if json.Valid([]byte(repaired)) {
			return []byte(repaired), nil
		}
	}

	return nil, fmt.Errorf("could not parse JSON from response: %s...", head(raw, 100))
}

// ParseAgentResponse repairs raw model output and validates it against
// the embedded AgentResponse schema before decoding.
func ParseAgentResponse(raw string) (types.AgentResponse, error) {
	data, err := SafeParseJSON(raw)
	if err != nil {
		return types.AgentResponse{}, err
	}

	if err := ValidateAgentResponseJSON(data); err != nil {
		return types.AgentResponse{}, fmt.Errorf("schema validation failed: %w", err)
	}

	var resp types.AgentResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return types.AgentResponse{}, fmt.Errorf("failed to decode response: %w", err)
	}

	if err := resp.Validate(); err != nil {
		return types.AgentResponse{}, fmt.Errorf("invalid response: %w", err)
	}

	return resp, nil
}

// head returns the first n bytes of s without splitting past the limit.
func head(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
