// Package llm routes worker prompts to LLM providers and repairs their
// raw output into validated AgentResponse values.
//
// A Router owns the provider set. Model aliases pick the provider: aliases
// containing "ollama", "local", or "lmstudio" go to the local
// OpenAI-compatible endpoint, "claude"/"anthropic" prefixes go to
// Anthropic, "gpt"/"openai" to OpenAI, and "gemini" to the Gemini cascade.
// The "default" alias uses the configured primary, falling back through
// whichever provider keys are present, and finally to the mock provider
// so the kernel keeps running with no keys at all.
//
// Provider outages never surface as errors: a dead provider produces a
// FAILED AgentResponse the kernel can requeue on, because one flaky API
// call must not abort the tick loop.
package llm

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"swarm/internal/config"
	"swarm/internal/logging"
	"swarm/internal/types"
)

// DefaultSystemPrompt frames every worker call.
const DefaultSystemPrompt = "You are an AI coding agent. Respond in JSON."

// jsonInstruction is appended for providers without a native JSON
// response mode.
const jsonInstruction = "\n\nIMPORTANT: Respond ONLY with valid JSON matching the AgentResponse schema."

// GeminiCascade lists Gemini models tried in order until one answers.
// A model that stops answering is skipped for the rest of the session.
var GeminiCascade = []string{
	"gemini-3-flash-preview",
	"gemini-2.5-flash",
	"gemini-2.5-pro",
}

// Default models per provider when the alias carries no version.
const (
	defaultOpenAIModel    = "gpt-4o"
	defaultAnthropicModel = "claude-sonnet-4-20250514"
	defaultLocalModel     = "llama3.2"
)

// Request is one completion request against a provider.
type Request struct {
	Model       string
	System      string
	Prompt      string
	Temperature float64
}

// Provider produces raw completions. Implementations wrap one vendor SDK.
type Provider interface {
	Complete(ctx context.Context, req Request) (string, error)
	Name() string
}

// routeKind selects which provider family serves an alias.
type routeKind int

const (
	routeMock routeKind = iota
	routeGemini
	routeOpenAI
	routeAnthropic
	routeLocal
)

type route struct {
	kind  routeKind
	model string
}

// Router resolves model aliases to providers and shapes raw completions
// into validated AgentResponse values.
type Router struct {
	cfg     config.LLMConfig
	timeout time.Duration

	mu        sync.Mutex
	providers map[routeKind]Provider
	cascadeAt int // first cascade entry still believed healthy

	// OnFallback is invoked when the Gemini cascade permanently moves to a
	// later model, so the caller can persist the new default alias in the
	// profile's worker_models map.
	OnFallback func(model string)
}

// NewRouter creates a router over the configured providers.
func NewRouter(cfg *config.Config) *Router {
	return &Router{
		cfg:       cfg.LLM,
		timeout:   cfg.GetLLMTimeout(),
		providers: make(map[routeKind]Provider),
	}
}

// RegisterProvider overrides the provider serving a route. Tests and
// offline runs inject fakes here.
func (r *Router) RegisterProvider(kind routeKind, p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[kind] = p
}

// Route kinds exported for RegisterProvider callers.
const (
	RouteMock      = routeMock
	RouteGemini    = routeGemini
	RouteOpenAI    = routeOpenAI
	RouteAnthropic = routeAnthropic
	RouteLocal     = routeLocal
)

// Generate resolves the alias, runs the completion, and repairs the reply
// into an AgentResponse. Provider and parse failures come back as FAILED
// responses; the error return is reserved for a cancelled caller context.
func (r *Router) Generate(ctx context.Context, prompt, modelAlias string) (types.AgentResponse, error) {
	if err := ctx.Err(); err != nil {
		return types.AgentResponse{}, err
	}

	parent := ctx
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	logging.LLMDebug("dispatch alias=%s prompt (%d chars): %.500s", modelAlias, len(prompt), prompt)

	rt := r.resolve(modelAlias)
	if rt.kind == routeGemini {
		return r.generateGemini(ctx, parent, prompt, rt.model)
	}

	provider, err := r.provider(ctx, rt.kind)
	if err != nil {
		logging.LLMWarn("provider for alias %q unavailable: %v", modelAlias, err)
		return errorResponse(err), nil
	}

	raw, err := provider.Complete(ctx, Request{
		Model:       rt.model,
		System:      DefaultSystemPrompt,
		Prompt:      prompt,
		Temperature: 0.1,
	})
	if err != nil {
		if parent.Err() != nil {
			return types.AgentResponse{}, parent.Err()
		}
		logging.LLMWarn("%s completion failed: %v", provider.Name(), err)
		return errorResponse(err), nil
	}

	return r.finish(provider.Name(), raw), nil
}

// generateGemini walks the cascade until a model answers. A pinned model
// (explicit alias) skips the cascade entirely.
func (r *Router) generateGemini(ctx, parent context.Context, prompt, pinned string) (types.AgentResponse, error) {
	provider, err := r.provider(ctx, routeGemini)
	if err != nil {
		logging.LLMWarn("gemini unavailable: %v", err)
		return errorResponse(err), nil
	}

	models := []string{pinned}
	start := 0
	if pinned == "" {
		r.mu.Lock()
		start = r.cascadeAt
		r.mu.Unlock()
		if start >= len(GeminiCascade) {
			start = len(GeminiCascade) - 1
		}
		models = GeminiCascade[start:]
	}

	var lastErr error
	for i, model := range models {
		raw, err := provider.Complete(ctx, Request{
			Model:       model,
			System:      DefaultSystemPrompt,
			Prompt:      prompt,
			Temperature: 0.1,
		})
		if err != nil {
			if parent.Err() != nil {
				return types.AgentResponse{}, parent.Err()
			}
			lastErr = err
			logging.LLMWarn("gemini model %s failed, trying next: %v", model, err)
			continue
		}

		if pinned == "" && i > 0 {
			r.mu.Lock()
			r.cascadeAt = start + i
			r.mu.Unlock()
			logging.LLM("gemini cascade fell back to %s", model)
			if r.OnFallback != nil {
				r.OnFallback(model)
			}
		}
		return r.finish("gemini:"+model, raw), nil
	}
	return errorResponse(lastErr), nil
}

// finish repairs and validates raw provider output. Anything that
// survives the repair chain but fails the schema is still a FAILED
// response, not an error.
func (r *Router) finish(providerName, raw string) types.AgentResponse {
	resp, err := ParseAgentResponse(raw)
	if err != nil {
		logging.LLMWarn("%s returned unparseable output: %v", providerName, err)
		return types.AgentResponse{
			Status:         types.ResponseFailed,
			ReasoningTrace: err.Error(),
		}
	}
	logging.LLMDebug("%s responded status=%s score=%.2f", providerName, resp.Status, resp.ValidationScore)
	return resp
}

// resolve maps a model alias to a provider route.
func (r *Router) resolve(alias string) route {
	a := strings.ToLower(strings.TrimSpace(alias))

	// Local aliases win regardless of configured keys.
	for _, kw := range []string{"ollama", "local", "lmstudio"} {
		if strings.Contains(a, kw) {
			return route{routeLocal, r.localModel(alias)}
		}
	}

	switch {
	case strings.HasPrefix(a, "gemini"):
		return route{routeGemini, stripProviderPrefix(alias)}
	case strings.HasPrefix(a, "claude"), strings.HasPrefix(a, "anthropic"):
		return route{routeAnthropic, anthropicModelFor(alias)}
	case strings.HasPrefix(a, "gpt"), strings.HasPrefix(a, "openai"), strings.HasPrefix(a, "o1"), strings.HasPrefix(a, "o3"):
		return route{routeOpenAI, openaiModelFor(alias)}
	}

	// The alias carries no provider hint ("default"). Prefer the
	// configured primary, then whichever keys exist, then the mock.
	switch r.cfg.Provider {
	case "anthropic":
		if r.anthropicKey() != "" {
			return route{routeAnthropic, r.primaryModel(defaultAnthropicModel)}
		}
	case "openai":
		if r.openaiKey() != "" {
			return route{routeOpenAI, r.primaryModel(defaultOpenAIModel)}
		}
	case "ollama":
		return route{routeLocal, r.localModel("")}
	}

	if r.geminiKey() != "" {
		return route{routeGemini, ""} // cascade picks the model
	}
	if r.anthropicKey() != "" {
		return route{routeAnthropic, defaultAnthropicModel}
	}
	if r.openaiKey() != "" {
		return route{routeOpenAI, defaultOpenAIModel}
	}
	return route{routeMock, ""}
}

// provider returns the cached provider for a route, constructing it on
// first use. Construction failures (bad key, unreachable endpoint) are
// reported per call and retried next time.
func (r *Router) provider(ctx context.Context, kind routeKind) (Provider, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p, ok := r.providers[kind]; ok {
		return p, nil
	}

	var (
		p   Provider
		err error
	)
	switch kind {
	case routeGemini:
		p, err = NewGeminiProvider(ctx, r.geminiKey())
	case routeOpenAI:
		p, err = NewOpenAIProvider(r.openaiKey(), r.cfg.BaseURL)
	case routeAnthropic:
		p, err = NewAnthropicProvider(r.anthropicKey())
	case routeLocal:
		p, err = NewLocalProvider(r.cfg.OllamaEndpoint)
	default:
		p = &MockProvider{}
	}
	if err != nil {
		return nil, err
	}
	r.providers[kind] = p
	return p, nil
}

func (r *Router) geminiKey() string { return geminiKeyFor(r.cfg) }

func (r *Router) openaiKey() string { return openaiKeyFor(r.cfg) }

func (r *Router) anthropicKey() string {
	if r.cfg.AnthropicAPIKey != "" {
		return r.cfg.AnthropicAPIKey
	}
	if r.cfg.Provider == "anthropic" {
		return r.cfg.APIKey
	}
	return ""
}

// primaryModel prefers the configured model for the primary provider.
func (r *Router) primaryModel(fallback string) string {
	if r.cfg.Model != "" {
		return r.cfg.Model
	}
	return fallback
}

// localModel resolves the model id for the local endpoint. Bare keywords
// like "ollama" or "local" carry no model, so the configured one is used.
func (r *Router) localModel(alias string) string {
	model := stripProviderPrefix(alias)
	switch strings.ToLower(model) {
	case "", "ollama", "local", "lmstudio", "default":
		if r.cfg.Provider == "ollama" && r.cfg.Model != "" {
			return r.cfg.Model
		}
		return defaultLocalModel
	}
	return model
}

// stripProviderPrefix turns "ollama/llama3.2" into "llama3.2". Aliases
// without a slash pass through unchanged.
func stripProviderPrefix(alias string) string {
	if i := strings.LastIndex(alias, "/"); i >= 0 {
		return alias[i+1:]
	}
	return alias
}

func anthropicModelFor(alias string) string {
	model := stripProviderPrefix(alias)
	if strings.EqualFold(model, "anthropic") || strings.EqualFold(model, "claude") {
		return defaultAnthropicModel
	}
	return model
}

func openaiModelFor(alias string) string {
	model := stripProviderPrefix(alias)
	if strings.EqualFold(model, "openai") {
		return defaultOpenAIModel
	}
	return model
}

// errorResponse shapes a provider failure into the FAILED response the
// kernel requeues on.
func errorResponse(err error) types.AgentResponse {
	msg := "unknown"
	if err != nil {
		msg = err.Error()
	}
	return types.AgentResponse{
		Status:         types.ResponseFailed,
		ReasoningTrace: fmt.Sprintf("API Error: %s", msg),
	}
}
