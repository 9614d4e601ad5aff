package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"google.golang.org/genai"

	"swarm/internal/config"
	"swarm/internal/logging"
)

// Embedder generates vector embeddings for text. All engines in the
// chain produce vectors of the same dimensionality so stores and caches
// stay interchangeable.
type Embedder interface {
	// Embed generates an embedding for a single text
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the dimensionality of embeddings
	Dimensions() int

	// Name returns the engine name
	Name() string
}

// HealthChecker is an optional interface for embedders whose backing
// service may simply not be running (local servers). The chain probes it
// before selecting the engine.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

const defaultEmbedDimensions = 768

// NewEmbedderChain walks the preferred provider order and returns the
// first embedder that is configured and reachable. Every provider down
// means nil: callers treat a nil Embedder as keyword-only retrieval,
// never as an error.
func NewEmbedderChain(ctx context.Context, cfg config.EmbedderConfig, llmCfg config.LLMConfig) Embedder {
	order := cfg.PreferredOrder
	if len(order) == 0 {
		order = []string{"gemini", "openai", "ollama"}
	}

	for _, name := range order {
		var (
			e   Embedder
			err error
		)
		switch strings.ToLower(name) {
		case "gemini", "genai":
			e, err = NewGeminiEmbedder(ctx, geminiKeyFor(llmCfg), cfg.Model)
		case "openai":
			e, err = NewOpenAIEmbedder(openaiKeyFor(llmCfg), cfg.Dimensions)
		case "ollama", "local":
			e, err = NewOllamaEmbedder(llmCfg.OllamaEndpoint, "")
		default:
			err = fmt.Errorf("unsupported embedding provider: %s", name)
		}
		if err != nil {
			logging.LLMDebug("embedder %s skipped: %v", name, err)
			continue
		}

		if hc, ok := e.(HealthChecker); ok {
			if err := hc.HealthCheck(ctx); err != nil {
				logging.LLMWarn("embedder %s unreachable: %v", e.Name(), err)
				continue
			}
		}

		logging.LLM("embedder selected: %s (%d dims)", e.Name(), e.Dimensions())
		return e
	}

	logging.LLMWarn("no embedding provider available; retrieval degrades to keyword-only")
	return nil
}

func geminiKeyFor(cfg config.LLMConfig) string {
	if cfg.GeminiAPIKey != "" {
		return cfg.GeminiAPIKey
	}
	if cfg.Provider == "gemini" {
		return cfg.APIKey
	}
	return ""
}

func openaiKeyFor(cfg config.LLMConfig) string {
	if cfg.OpenAIAPIKey != "" {
		return cfg.OpenAIAPIKey
	}
	if cfg.Provider == "openai" {
		return cfg.APIKey
	}
	return ""
}

// =============================================================================
// GEMINI EMBEDDER
// =============================================================================

// GeminiEmbedder generates embeddings through the Gemini API.
type GeminiEmbedder struct {
	client *genai.Client
	model  string
}

// NewGeminiEmbedder creates a Gemini embedder.
func NewGeminiEmbedder(ctx context.Context, apiKey, model string) (*GeminiEmbedder, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	if model == "" {
		model = "text-embedding-004"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	return &GeminiEmbedder{client: client, model: model}, nil
}

// Embed generates an embedding for a single text.
func (e *GeminiEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vecs) == 0 {
		return nil, fmt.Errorf("no embeddings returned")
	}
	return vecs[0], nil
}

// EmbedBatch generates embeddings for multiple texts in one call.
func (e *GeminiEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	contents := make([]*genai.Content, len(texts))
	for i, text := range texts {
		contents[i] = genai.NewContentFromText(text, genai.RoleUser)
	}

	result, err := e.client.Models.EmbedContent(ctx,
		e.model,
		contents,
		&genai.EmbedContentConfig{
			TaskType: "SEMANTIC_SIMILARITY",
		},
	)
	if err != nil {
		return nil, fmt.Errorf("gemini embed failed: %w", err)
	}

	embeddings := make([][]float32, len(result.Embeddings))
	for i, emb := range result.Embeddings {
		embeddings[i] = emb.Values
	}
	return embeddings, nil
}

// Dimensions returns the embedding dimensionality.
// text-embedding-004 produces 768-dimensional vectors.
func (e *GeminiEmbedder) Dimensions() int {
	return defaultEmbedDimensions
}

// Name returns the engine name.
func (e *GeminiEmbedder) Name() string {
	return fmt.Sprintf("gemini:%s", e.model)
}

// =============================================================================
// OPENAI EMBEDDER
// =============================================================================

// OpenAIEmbedder generates embeddings through the OpenAI API. The model
// natively produces 1536 dimensions; the request pins it to the chain
// width so vectors stay interchangeable with the other engines.
type OpenAIEmbedder struct {
	client openai.Client
	dims   int
}

// NewOpenAIEmbedder creates an OpenAI embedder.
func NewOpenAIEmbedder(apiKey string, dims int) (*OpenAIEmbedder, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai API key is required")
	}
	if dims <= 0 {
		dims = defaultEmbedDimensions
	}

	return &OpenAIEmbedder{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
		dims:   dims,
	}, nil
}

// Embed generates an embedding for a single text.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vecs) == 0 {
		return nil, fmt.Errorf("no embeddings returned")
	}
	return vecs[0], nil
}

// EmbedBatch generates embeddings for multiple texts in one call.
func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	resp, err := e.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Model:      openai.EmbeddingModelTextEmbedding3Small,
		Input:      openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
		Dimensions: openai.Int(int64(e.dims)),
	})
	if err != nil {
		return nil, fmt.Errorf("openai embed failed: %w", err)
	}

	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("openai returned %d embeddings for %d texts", len(resp.Data), len(texts))
	}

	embeddings := make([][]float32, len(resp.Data))
	for i, d := range resp.Data {
		vec := make([]float32, len(d.Embedding))
		for j, v := range d.Embedding {
			vec[j] = float32(v)
		}
		embeddings[i] = vec
	}
	return embeddings, nil
}

// Dimensions returns the embedding dimensionality.
func (e *OpenAIEmbedder) Dimensions() int {
	return e.dims
}

// Name returns the engine name.
func (e *OpenAIEmbedder) Name() string {
	return "openai:text-embedding-3-small"
}

// =============================================================================
// OLLAMA EMBEDDER
// =============================================================================

// OllamaEmbedder generates embeddings using a local Ollama server.
type OllamaEmbedder struct {
	endpoint string
	model    string
	client   *http.Client
}

// NewOllamaEmbedder creates an Ollama embedder.
func NewOllamaEmbedder(endpoint, model string) (*OllamaEmbedder, error) {
	if endpoint == "" {
		endpoint = "http://localhost:11434"
	}
	if model == "" {
		model = "nomic-embed-text"
	}

	return &OllamaEmbedder{
		endpoint: strings.TrimRight(endpoint, "/"),
		model:    model,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}, nil
}

type ollamaEmbedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type ollamaEmbedResponse struct {
	Embedding []float32 `json:"embedding"`
}

// Embed generates an embedding for a single text.
func (e *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(ollamaEmbedRequest{
		Model:  e.model,
		Prompt: text,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", e.endpoint+"/api/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("ollama request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("ollama returned status %d: %s", resp.StatusCode, string(bodyBytes))
	}

	var result ollamaEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return result.Embedding, nil
}

// EmbedBatch generates embeddings for multiple texts. Ollama has no
// batch endpoint, so texts are embedded sequentially.
func (e *OllamaEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		embedding, err := e.Embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("failed to embed text %d: %w", i, err)
		}
		embeddings[i] = embedding
	}
	return embeddings, nil
}

// HealthCheck verifies the local server is up before the chain commits
// to it.
func (e *OllamaEmbedder) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, "GET", e.endpoint+"/api/tags", nil)
	if err != nil {
		return err
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("ollama not reachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ollama returned status %d", resp.StatusCode)
	}
	return nil
}

// Dimensions returns the embedding dimensionality.
// nomic-embed-text produces 768-dimensional vectors.
func (e *OllamaEmbedder) Dimensions() int {
	return defaultEmbedDimensions
}

// Name returns the engine name.
func (e *OllamaEmbedder) Name() string {
	return fmt.Sprintf("ollama:%s", e.model)
}
