package agent

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rs/zerolog/log"
	"google.golang.org/genai"
)

// Completer is a single request/response call to a language model.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
	Model() string
}

// AnthropicCompleter calls the Anthropic Messages API (or a compatible provider).
type AnthropicCompleter struct {
	client    *anthropic.Client
	model     string
	maxTokens int
}

// NewAnthropicCompleter creates a completer backed by Claude. baseURL
// overrides the endpoint for compatible proxies.
func NewAnthropicCompleter(apiKey, model, baseURL string) *AnthropicCompleter {
	if model == "" {
		model = "claude-sonnet-4-5"
	}
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &AnthropicCompleter{
		client:    anthropic.NewClient(opts...),
		model:     model,
		maxTokens: 4096,
	}
}

func (a *AnthropicCompleter) Model() string { return a.model }

func (a *AnthropicCompleter) Complete(ctx context.Context, system, user string) (string, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.F(anthropic.Model(a.model)),
		MaxTokens: anthropic.F(int64(a.maxTokens)),
		Messages: anthropic.F([]anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(user)),
		}),
	}
	if system != "" {
		params.System = anthropic.F([]anthropic.TextBlockParam{
			anthropic.NewTextBlock(system),
		})
	}

	resp, err := a.client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("LLM call failed: %w", err)
	}

	var text string
	for _, block := range resp.Content {
		if b, ok := block.AsUnion().(anthropic.TextBlock); ok {
			text += b.Text
		}
	}
	log.Debug().
		Str("model", a.model).
		Str("stop_reason", string(resp.StopReason)).
		Int("chars", len(text)).
		Msg("completion")
	return text, nil
}

// GeminiCompleter calls Gemini through the Google GenAI SDK.
type GeminiCompleter struct {
	client *genai.Client
	model  string
}

func NewGeminiCompleter(ctx context.Context, apiKey, model string) (*GeminiCompleter, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	if model == "" {
		model = "gemini-2.5-flash"
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return &GeminiCompleter{client: client, model: model}, nil
}

func (g *GeminiCompleter) Model() string { return g.model }

func (g *GeminiCompleter) Complete(ctx context.Context, system, user string) (string, error) {
	var cfg *genai.GenerateContentConfig
	if system != "" {
		cfg = &genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(system, genai.RoleUser),
		}
	}
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(user), cfg)
	if err != nil {
		return "", fmt.Errorf("LLM call failed: %w", err)
	}
	text := resp.Text()
	log.Debug().Str("model", g.model).Int("chars", len(text)).Msg("completion")
	return text, nil
}
