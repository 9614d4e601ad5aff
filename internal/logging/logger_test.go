package logging

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// writeConfig writes a .swarm/config.json with the given logging block.
func writeConfig(t *testing.T, ws string, cfg loggingConfig) {
	t.Helper()
	dir := filepath.Join(ws, ".swarm")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	data, err := json.Marshal(configFile{Logging: cfg})
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "config.json"), data, 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

// resetState clears package globals between tests.
func resetState() {
	CloseAll()
	configMu.Lock()
	config = loggingConfig{}
	configLoaded = false
	logLevel = LevelInfo
	configMu.Unlock()
	logsDir = ""
	workspace = ""
}

func TestInitializeWithoutConfig(t *testing.T) {
	resetState()
	ws := t.TempDir()

	if err := Initialize(ws); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	if IsDebugMode() {
		t.Error("expected production mode when no config file exists")
	}

	// No logs directory should be created in production mode
	if _, err := os.Stat(filepath.Join(ws, ".swarm", "logs")); !os.IsNotExist(err) {
		t.Error("logs directory should not exist in production mode")
	}
}

func TestInitializeDebugMode(t *testing.T) {
	resetState()
	ws := t.TempDir()
	writeConfig(t, ws, loggingConfig{DebugMode: true, Level: "debug"})

	if err := Initialize(ws); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	if !IsDebugMode() {
		t.Error("expected debug mode")
	}

	if _, err := os.Stat(filepath.Join(ws, ".swarm", "logs")); err != nil {
		t.Errorf("logs directory should exist: %v", err)
	}
}

func TestDebugEnvOverride(t *testing.T) {
	resetState()
	ws := t.TempDir()
	t.Setenv("SWARM_DEBUG", "true")

	if err := Initialize(ws); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	if !IsDebugMode() {
		t.Error("SWARM_DEBUG=true should enable debug mode without a config file")
	}
}

func TestCategoryFiltering(t *testing.T) {
	resetState()
	ws := t.TempDir()
	writeConfig(t, ws, loggingConfig{
		DebugMode: true,
		Level:     "debug",
		Categories: map[string]bool{
			"kernel": true,
			"llm":    false,
		},
	})

	if err := Initialize(ws); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	if !IsCategoryEnabled(CategoryKernel) {
		t.Error("kernel category should be enabled")
	}
	if IsCategoryEnabled(CategoryLLM) {
		t.Error("llm category should be disabled")
	}
	// Unlisted categories default to enabled in debug mode
	if !IsCategoryEnabled(CategoryGraph) {
		t.Error("unlisted category should default to enabled")
	}
}

func TestVerboseTelemetryEnv(t *testing.T) {
	resetState()
	ws := t.TempDir()
	writeConfig(t, ws, loggingConfig{
		DebugMode: true,
		Level:     "info",
		Categories: map[string]bool{
			"telemetry": false,
		},
	})
	t.Setenv("SWARM_VERBOSE_TELEMETRY", "true")

	if err := Initialize(ws); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	if !IsCategoryEnabled(CategoryTelemetry) {
		t.Error("SWARM_VERBOSE_TELEMETRY=true should force the telemetry category on")
	}
}

func TestDisabledCategoryIsNoop(t *testing.T) {
	resetState()
	ws := t.TempDir()
	writeConfig(t, ws, loggingConfig{
		DebugMode:  true,
		Level:      "debug",
		Categories: map[string]bool{"debate": false},
	})

	if err := Initialize(ws); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	l := Get(CategoryDebate)
	if l.logger != nil {
		t.Error("disabled category should return a no-op logger")
	}

	// Must not panic
	l.Debug("nothing")
	l.Info("nothing")
	l.Warn("nothing")
	l.Error("nothing")
}

func TestLogFileWritten(t *testing.T) {
	resetState()
	ws := t.TempDir()
	writeConfig(t, ws, loggingConfig{DebugMode: true, Level: "debug"})

	if err := Initialize(ws); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	Get(CategoryKernel).Info("tick %d complete", 7)
	CloseAll()

	date := time.Now().Format("2006-01-02")
	path := filepath.Join(ws, ".swarm", "logs", date+"_kernel.log")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), "tick 7 complete") {
		t.Errorf("log file missing message, got: %s", data)
	}
}

func TestLogLevelFiltering(t *testing.T) {
	resetState()
	ws := t.TempDir()
	writeConfig(t, ws, loggingConfig{DebugMode: true, Level: "warn"})

	if err := Initialize(ws); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	l := Get(CategoryGraph)
	l.Debug("should not appear")
	l.Info("should not appear")
	l.Warn("warn appears")
	CloseAll()

	date := time.Now().Format("2006-01-02")
	data, err := os.ReadFile(filepath.Join(ws, ".swarm", "logs", date+"_graph.log"))
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	content := string(data)
	if strings.Contains(content, "should not appear") {
		t.Error("below-threshold messages leaked into log")
	}
	if !strings.Contains(content, "warn appears") {
		t.Error("warn message missing")
	}
}

func TestJSONFormat(t *testing.T) {
	resetState()
	ws := t.TempDir()
	writeConfig(t, ws, loggingConfig{DebugMode: true, Level: "info", JSONFormat: true})

	if err := Initialize(ws); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	Get(CategoryTelemetry).Info("recorded event")
	CloseAll()

	date := time.Now().Format("2006-01-02")
	data, err := os.ReadFile(filepath.Join(ws, ".swarm", "logs", date+"_telemetry.log"))
	if err != nil {
		t.Fatalf("read log: %v", err)
	}

	// Each line carries the stdlib log prefix followed by a JSON payload
	line := strings.TrimSpace(string(data))
	idx := strings.Index(line, "{")
	if idx < 0 {
		t.Fatalf("no JSON payload in: %s", line)
	}
	var entry StructuredLogEntry
	if err := json.Unmarshal([]byte(line[idx:]), &entry); err != nil {
		t.Fatalf("unmarshal entry: %v", err)
	}
	if entry.Category != "telemetry" || entry.Message != "recorded event" {
		t.Errorf("unexpected entry: %+v", entry)
	}
}

func TestRequestLogger(t *testing.T) {
	resetState()
	ws := t.TempDir()
	writeConfig(t, ws, loggingConfig{DebugMode: true, Level: "debug"})

	if err := Initialize(ws); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	rl := WithRequestID(CategoryKernel, "task-42").WithField("role", "engineer")
	rl.Info("dispatching")
	CloseAll()

	date := time.Now().Format("2006-01-02")
	data, err := os.ReadFile(filepath.Join(ws, ".swarm", "logs", date+"_kernel.log"))
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	content := string(data)
	if !strings.Contains(content, "req:task-42") {
		t.Error("request ID missing from log line")
	}
	if !strings.Contains(content, "role:engineer") {
		t.Error("field missing from log line")
	}
}

func TestTimer(t *testing.T) {
	resetState()
	ws := t.TempDir()
	writeConfig(t, ws, loggingConfig{DebugMode: true, Level: "debug"})

	if err := Initialize(ws); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	timer := StartTimer(CategoryGraph, "pagerank")
	time.Sleep(5 * time.Millisecond)
	elapsed := timer.Stop()

	if elapsed < 5*time.Millisecond {
		t.Errorf("elapsed %v too short", elapsed)
	}
}
