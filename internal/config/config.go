// Package config loads swarm configuration from .swarm/swarm.yaml with
// environment variable overrides. Every component receives its section at
// construction time; nothing reads the environment after startup.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all swarm configuration.
type Config struct {
	// Core settings
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// Blackboard persistence and locking
	Blackboard BlackboardConfig `yaml:"blackboard"`

	// Telemetry ledger
	Telemetry TelemetryConfig `yaml:"telemetry"`

	// Knowledge graph retrieval
	Graph GraphConfig `yaml:"graph"`

	// Provenance context pruner
	Prune PruneConfig `yaml:"prune"`

	// LLM providers
	LLM LLMConfig `yaml:"llm"`

	// Embedding provider chain
	Embedder EmbedderConfig `yaml:"embedder"`

	// Git workflow
	Git GitConfig `yaml:"git"`

	// GitHub adapter
	GitHub GitHubConfig `yaml:"github"`

	// Orchestrator kernel
	Kernel KernelConfig `yaml:"kernel"`

	// Debate engine
	Debate DebateConfig `yaml:"debate"`

	// Fault localization
	SBFL SBFLConfig `yaml:"sbfl"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// BlackboardConfig configures the session state store.
type BlackboardConfig struct {
	StateFile   string `yaml:"state_file"`   // JSON profile path, relative to workspace
	PostgresURL string `yaml:"postgres_url"` // empty disables the SQL backend
	LockTTL     string `yaml:"lock_ttl"`     // SQL lock expiry
	LockTimeout string `yaml:"lock_timeout"` // file lock acquisition timeout
}

// TelemetryConfig configures the event ledger.
type TelemetryConfig struct {
	DatabasePath  string `yaml:"database_path"`
	RetentionDays int    `yaml:"retention_days"`
}

// GraphConfig configures HippoRAG graph retrieval.
type GraphConfig struct {
	CachePath     string  `yaml:"cache_path"`    // versioned binary cache
	SnapshotPath  string  `yaml:"snapshot_path"` // optional SQL snapshot, empty disables
	Damping       float64 `yaml:"damping"`
	MaxIterations int     `yaml:"max_iterations"`
	Workers       int     `yaml:"workers"` // parallel file parsing
	LiteMode      bool    `yaml:"lite_mode"`
}

// PruneConfig configures the provenance context pruner.
type PruneConfig struct {
	KeepTail     int `yaml:"keep_tail"`
	KeepRelevant int `yaml:"keep_relevant"`
}

// LLMConfig configures the LLM provider router.
type LLMConfig struct {
	Provider       string `yaml:"provider"` // gemini, anthropic, openai, ollama
	APIKey         string `yaml:"api_key"`
	Model          string `yaml:"model"`
	BaseURL        string `yaml:"base_url"`
	OllamaEndpoint string `yaml:"ollama_endpoint"`
	Timeout        string `yaml:"timeout"`

	// Per-provider keys, captured at startup. The router and the embedder
	// chain probe providers independently of the primary Provider above.
	GeminiAPIKey    string `yaml:"gemini_api_key"`
	OpenAIAPIKey    string `yaml:"openai_api_key"`
	AnthropicAPIKey string `yaml:"anthropic_api_key"`
}

// EmbedderConfig configures the embedding provider chain.
type EmbedderConfig struct {
	// PreferredOrder is tried front to back; exhausting it degrades
	// retrieval to keyword-only mode.
	PreferredOrder []string `yaml:"preferred_order"`
	Model          string   `yaml:"model"`
	Dimensions     int      `yaml:"dimensions"`
}

// GitConfig configures the git worker.
type GitConfig struct {
	StrictMode    bool   `yaml:"strict_mode"`    // forbid COMPLETED with dirty workspace
	StrictTools   bool   `yaml:"strict_tools"`   // tool manifest failures abort startup
	DefaultBase   string `yaml:"default_base"`   // base branch for PRs
	CleanupBranch string `yaml:"cleanup_branch"` // branch used by strict-git reverts
	HelperTimeout string `yaml:"helper_timeout"` // subprocess timeout for git helpers
}

// GitHubConfig configures the GitHub REST adapter.
type GitHubConfig struct {
	Token     string `yaml:"token"`
	BaseURL   string `yaml:"base_url"`
	RepoOwner string `yaml:"repo_owner"`
	RepoName  string `yaml:"repo_name"`
	Timeout   string `yaml:"timeout"`
}

// KernelConfig configures the orchestrator loop.
type KernelConfig struct {
	TickInterval  string `yaml:"tick_interval"`
	MemoryWindow  int    `yaml:"memory_window"`  // recent memory entries injected per prompt
	LiteMode      bool   `yaml:"lite_mode"`      // keyword-only retrieval, no optional parsers
	SBFLAutomatic bool   `yaml:"sbfl_automatic"` // run fault localization on tests_failing
}

// DebateConfig configures the sparse debate engine.
type DebateConfig struct {
	MaxRounds int    `yaml:"max_rounds"`
	Topology  string `yaml:"topology"` // ring, pairs, tree
}

// SBFLConfig configures the fault localizer.
type SBFLConfig struct {
	TestTimeout string `yaml:"test_timeout"`
	TopN        int    `yaml:"top_n"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "swarm",
		Version: "3.4.0",

		Blackboard: BlackboardConfig{
			StateFile:   "project_profile.json",
			LockTTL:     "5m",
			LockTimeout: "5s",
		},

		Telemetry: TelemetryConfig{
			DatabasePath:  filepath.Join(".swarm", "telemetry.db"),
			RetentionDays: 30,
		},

		Graph: GraphConfig{
			CachePath:     ".hipporag_cache",
			Damping:       0.85,
			MaxIterations: 100,
			Workers:       4,
		},

		Prune: PruneConfig{
			KeepTail:     10,
			KeepRelevant: 20,
		},

		LLM: LLMConfig{
			Provider:       "gemini",
			Model:          "gemini-3-flash-preview",
			OllamaEndpoint: "http://localhost:11434",
			Timeout:        "120s",
		},

		Embedder: EmbedderConfig{
			PreferredOrder: []string{"gemini", "ollama"},
			Model:          "text-embedding-004",
			Dimensions:     768,
		},

		Git: GitConfig{
			StrictMode:    true,
			DefaultBase:   "dev",
			CleanupBranch: "auto/cleanup",
			HelperTimeout: "5s",
		},

		GitHub: GitHubConfig{
			BaseURL: "https://api.github.com",
			Timeout: "5s",
		},

		Kernel: KernelConfig{
			TickInterval: "2s",
			MemoryWindow: 10,
		},

		Debate: DebateConfig{
			MaxRounds: 5,
			Topology:  "ring",
		},

		SBFL: SBFLConfig{
			TestTimeout: "120s",
			TopN:        10,
		},

		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// DefaultPath returns the default config file path under the workspace.
func DefaultPath(workspace string) string {
	return filepath.Join(workspace, ".swarm", "swarm.yaml")
}

// Load loads configuration from a YAML file, falling back to defaults when
// the file does not exist, then applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	// Provider API keys in priority order
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		c.LLM.APIKey = key
		c.LLM.GeminiAPIKey = key
		if c.LLM.Provider == "" {
			c.LLM.Provider = "gemini"
		}
	}
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		c.LLM.APIKey = key
		c.LLM.AnthropicAPIKey = key
		c.LLM.Provider = "anthropic"
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		c.LLM.APIKey = key
		c.LLM.OpenAIAPIKey = key
		c.LLM.Provider = "openai"
	}

	if url := os.Getenv("OLLAMA_HOST"); url != "" {
		c.LLM.OllamaEndpoint = url
	}

	// SQL session store is enabled solely by POSTGRES_URL
	if url := os.Getenv("POSTGRES_URL"); url != "" {
		c.Blackboard.PostgresURL = url
	}

	if token := os.Getenv("GITHUB_TOKEN"); token != "" {
		c.GitHub.Token = token
	}

	// Mode switches. SWARM_STRICT_GIT defaults to true; only an explicit
	// "false" disables it.
	if v := os.Getenv("SWARM_LITE_MODE"); v == "true" {
		c.Kernel.LiteMode = true
		c.Graph.LiteMode = true
	}
	if v := os.Getenv("SWARM_STRICT_GIT"); v == "false" {
		c.Git.StrictMode = false
	}
	if v := os.Getenv("SWARM_STRICT_TOOLS"); v == "true" {
		c.Git.StrictTools = true
	}
	if v := os.Getenv("SWARM_SBFL_ENABLED"); v == "true" {
		c.Kernel.SBFLAutomatic = true
	}
}

// GetLLMTimeout returns the LLM timeout as a duration.
func (c *Config) GetLLMTimeout() time.Duration {
	d, err := time.ParseDuration(c.LLM.Timeout)
	if err != nil {
		return 120 * time.Second
	}
	return d
}

// GetLockTTL returns the SQL lock expiry as a duration.
func (c *Config) GetLockTTL() time.Duration {
	d, err := time.ParseDuration(c.Blackboard.LockTTL)
	if err != nil {
		return 5 * time.Minute
	}
	return d
}

// GetLockTimeout returns the file lock acquisition timeout as a duration.
func (c *Config) GetLockTimeout() time.Duration {
	d, err := time.ParseDuration(c.Blackboard.LockTimeout)
	if err != nil {
		return 5 * time.Second
	}
	return d
}

// GetGitHelperTimeout returns the git helper subprocess timeout.
func (c *Config) GetGitHelperTimeout() time.Duration {
	d, err := time.ParseDuration(c.Git.HelperTimeout)
	if err != nil {
		return 5 * time.Second
	}
	return d
}

// GetGitHubTimeout returns the GitHub adapter operation timeout.
func (c *Config) GetGitHubTimeout() time.Duration {
	d, err := time.ParseDuration(c.GitHub.Timeout)
	if err != nil {
		return 5 * time.Second
	}
	return d
}

// GetTickInterval returns the kernel tick interval as a duration.
func (c *Config) GetTickInterval() time.Duration {
	d, err := time.ParseDuration(c.Kernel.TickInterval)
	if err != nil {
		return 2 * time.Second
	}
	return d
}

// GetTestTimeout returns the fault localizer test timeout.
func (c *Config) GetTestTimeout() time.Duration {
	d, err := time.ParseDuration(c.SBFL.TestTimeout)
	if err != nil {
		return 120 * time.Second
	}
	return d
}

// ValidProviders lists all supported LLM providers.
var ValidProviders = []string{"gemini", "anthropic", "openai", "ollama"}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validProvider := false
	for _, p := range ValidProviders {
		if c.LLM.Provider == p {
			validProvider = true
			break
		}
	}
	if !validProvider {
		return fmt.Errorf("invalid LLM provider: %s (valid: %v)", c.LLM.Provider, ValidProviders)
	}

	// Ollama needs no key; every remote provider does
	if c.LLM.Provider != "ollama" && c.LLM.APIKey == "" {
		return fmt.Errorf("LLM API key not configured (set GEMINI_API_KEY, ANTHROPIC_API_KEY, or OPENAI_API_KEY)")
	}

	if c.Graph.Damping <= 0 || c.Graph.Damping >= 1 {
		return fmt.Errorf("graph damping %v outside (0, 1)", c.Graph.Damping)
	}

	switch c.Debate.Topology {
	case "ring", "pairs", "tree":
	default:
		return fmt.Errorf("invalid debate topology: %s (valid: ring, pairs, tree)", c.Debate.Topology)
	}

	return nil
}

// SQLEnabled reports whether the SQL session backend is configured.
func (c *Config) SQLEnabled() bool {
	return c.Blackboard.PostgresURL != ""
}
