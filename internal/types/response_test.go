package types

import (
	"encoding/json"
	"testing"
)

func TestToolCallArgumentsAsObject(t *testing.T) {
	raw := `{"function":"git_commit","arguments":{"message":"fix: auth","files":["a.go"]}}`

	var tc ToolCall
	if err := json.Unmarshal([]byte(raw), &tc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if tc.Function != "git_commit" {
		t.Errorf("function = %q", tc.Function)
	}
	if tc.Arguments["message"] != "fix: auth" {
		t.Errorf("arguments = %v", tc.Arguments)
	}
}

func TestToolCallArgumentsAsString(t *testing.T) {
	// Some models double-encode arguments as a JSON string
	raw := `{"function":"git_push","arguments":"{\"branch\":\"dev\"}"}`

	var tc ToolCall
	if err := json.Unmarshal([]byte(raw), &tc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if tc.Arguments["branch"] != "dev" {
		t.Errorf("arguments = %v", tc.Arguments)
	}
}

func TestToolCallArgumentsNonJSONString(t *testing.T) {
	raw := `{"function":"note","arguments":"just some text"}`

	var tc ToolCall
	if err := json.Unmarshal([]byte(raw), &tc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if tc.Arguments["_raw"] != "just some text" {
		t.Errorf("raw string not preserved: %v", tc.Arguments)
	}
}

func TestAgentResponseValidate(t *testing.T) {
	good := AgentResponse{Status: ResponseSuccess, ValidationScore: 0.9}
	if err := good.Validate(); err != nil {
		t.Errorf("valid response rejected: %v", err)
	}

	badStatus := AgentResponse{Status: "MAYBE", ValidationScore: 0.5}
	if err := badStatus.Validate(); err == nil {
		t.Error("unknown status accepted")
	}

	badScore := AgentResponse{Status: ResponseFailed, ValidationScore: 1.5}
	if err := badScore.Validate(); err == nil {
		t.Error("out-of-range score accepted")
	}
}

func TestProjectProfileDefaults(t *testing.T) {
	p := NewProjectProfile()
	if p.SchemaVersion != SchemaVersion {
		t.Errorf("schema version = %q", p.SchemaVersion)
	}
	if _, ok := p.WorkerModels["default"]; !ok {
		t.Error("default worker model missing")
	}

	// Deserialized profiles may have nil maps
	var loaded ProjectProfile
	if err := json.Unmarshal([]byte(`{"schema_version":"3.2.0"}`), &loaded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	loaded.EnsureDefaults()
	if loaded.Tasks == nil || loaded.ActiveContext == nil || loaded.MemoryBank == nil {
		t.Error("EnsureDefaults left nil maps")
	}
	if loaded.WorkerModels["default"] == "" {
		t.Error("EnsureDefaults did not install default model")
	}
}

func TestModelForRole(t *testing.T) {
	p := NewProjectProfile()
	p.WorkerModels["engineer"] = "model-a"

	if got := p.ModelForRole("engineer"); got != "model-a" {
		t.Errorf("ModelForRole(engineer) = %q", got)
	}
	if got := p.ModelForRole("unknown_role"); got != p.WorkerModels["default"] {
		t.Errorf("unknown role should fall back to default, got %q", got)
	}
}
