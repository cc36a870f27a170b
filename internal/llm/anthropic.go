package llm

import (
	"context"
	"strings"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/haasonsaas/webpilot/internal/errdefs"
	"github.com/haasonsaas/webpilot/pkg/models"
)

// AnthropicOptions configures an Anthropic invoker.
type AnthropicOptions struct {
	// APIKey authenticates requests. Required.
	APIKey string

	// Model is the Claude model identifier.
	Model string

	// BaseURL overrides the API endpoint, mainly for tests.
	BaseURL string

	Temperature float64
	MaxTokens   int
}

// Anthropic invokes the Claude Messages API. System-role messages become the
// top-level system blocks; everything else maps to user and assistant turns.
type Anthropic struct {
	model       string
	temperature float64
	maxTokens   int
	client      anthropic.Client
}

// NewAnthropic builds an Anthropic invoker.
func NewAnthropic(opts AnthropicOptions) (*Anthropic, error) {
	if opts.APIKey == "" {
		return nil, errdefs.Configuration("llm.anthropic.api_key", "api key is required")
	}
	if opts.MaxTokens <= 0 {
		// The Messages API rejects requests without a positive max_tokens.
		opts.MaxTokens = 1024
	}
	clientOpts := []option.RequestOption{option.WithAPIKey(opts.APIKey)}
	if opts.BaseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(opts.BaseURL))
	}
	return &Anthropic{
		model:       opts.Model,
		temperature: opts.Temperature,
		maxTokens:   opts.MaxTokens,
		client:      anthropic.NewClient(clientOpts...),
	}, nil
}

func (a *Anthropic) Name() string { return "anthropic" }

func (a *Anthropic) Model() string { return a.model }

// Invoke sends the conversation as a single Messages call and returns the
// concatenated text blocks of the reply.
func (a *Anthropic) Invoke(ctx context.Context, messages []models.Message) (string, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: int64(a.maxTokens),
	}
	if a.temperature > 0 {
		params.Temperature = anthropic.Float(a.temperature)
	}
	for _, msg := range messages {
		switch msg.Role {
		case models.RoleSystem:
			params.System = append(params.System, anthropic.TextBlockParam{Text: msg.Content})
		case models.RoleAssistant:
			params.Messages = append(params.Messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(msg.Content)))
		default:
			params.Messages = append(params.Messages, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
		}
	}
	msg, err := a.client.Messages.New(ctx, params)
	if err != nil {
		return "", errdefs.LLM("anthropic", a.model, err)
	}
	var reply strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			reply.WriteString(block.Text)
		}
	}
	return reply.String(), nil
}
