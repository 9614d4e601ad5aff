package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAIProvider generates completions through the OpenAI API. The same
// client shape serves any OpenAI-compatible server via a base URL, which
// is how the local Ollama route works.
type OpenAIProvider struct {
	client openai.Client
	name   string
	// jsonMode asks the server for a native JSON response. Disabled for
	// local servers that predate response_format support.
	jsonMode bool
}

// NewOpenAIProvider creates a provider against api.openai.com.
func NewOpenAIProvider(apiKey, baseURL string) (*OpenAIProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai API key is required")
	}

	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}

	return &OpenAIProvider{
		client:   openai.NewClient(opts...),
		name:     "openai",
		jsonMode: true,
	}, nil
}

// NewLocalProvider creates a provider against a local OpenAI-compatible
// endpoint (Ollama, LM Studio). The key is a placeholder; local servers
// ignore it but the client requires one.
func NewLocalProvider(endpoint string) (*OpenAIProvider, error) {
	if endpoint == "" {
		endpoint = "http://localhost:11434"
	}
	if !strings.HasSuffix(endpoint, "/v1") {
		endpoint = strings.TrimRight(endpoint, "/") + "/v1"
	}

	return &OpenAIProvider{
		client: openai.NewClient(
			option.WithAPIKey("ollama"),
			option.WithBaseURL(endpoint),
		),
		name: "local",
	}, nil
}

// Complete runs one chat completion.
func (p *OpenAIProvider) Complete(ctx context.Context, req Request) (string, error) {
	model := req.Model
	if model == "" {
		model = defaultOpenAIModel
	}

	prompt := req.Prompt
	if !p.jsonMode {
		prompt += jsonInstruction
	}

	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(req.System),
			openai.UserMessage(prompt),
		},
	}
	if req.Temperature > 0 {
		params.Temperature = openai.Float(req.Temperature)
	}
	if p.jsonMode {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &openai.ResponseFormatJSONObjectParam{},
		}
	}

	completion, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("%s completion failed: %w", p.name, err)
	}

	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("no completion returned")
	}

	return strings.TrimSpace(completion.Choices[0].Message.Content), nil
}

// Name returns the provider name.
func (p *OpenAIProvider) Name() string {
	return p.name
}
