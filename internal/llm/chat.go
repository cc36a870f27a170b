package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/haasonsaas/webpilot/internal/errdefs"
	"github.com/haasonsaas/webpilot/pkg/models"
)

// ChatOptions configures a Chat invoker.
type ChatOptions struct {
	// Name labels the provider in errors, "gateway" or "openai".
	Name string

	// APIKey authenticates requests. Required.
	APIKey string

	// BaseURL overrides the API endpoint. A {model} placeholder is replaced
	// with the model identifier to match gateways that route by deployment
	// path. Empty means the public OpenAI endpoint.
	BaseURL string

	// Model is the identifier sent with every request.
	Model string

	// Headers are set on every outgoing request, for example
	// {"ai-gateway-version": "v2"}.
	Headers map[string]string

	Temperature float64
	MaxTokens   int
}

// Chat invokes OpenAI-compatible chat completion endpoints. It backs both the
// gateway and openai providers; the gateway differs only in base URL and
// injected headers.
type Chat struct {
	name        string
	model       string
	temperature float32
	maxTokens   int
	client      *openai.Client
}

// NewChat builds a Chat invoker.
func NewChat(opts ChatOptions) (*Chat, error) {
	if opts.APIKey == "" {
		return nil, errdefs.Configuration("llm."+opts.Name+".api_key", "api key is required")
	}
	clientConfig := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		base := strings.ReplaceAll(opts.BaseURL, "{model}", opts.Model)
		clientConfig.BaseURL = strings.TrimRight(base, "/")
	}
	if len(opts.Headers) > 0 {
		clientConfig.HTTPClient = &http.Client{
			Transport: &headerTransport{headers: opts.Headers},
		}
	}
	return &Chat{
		name:        opts.Name,
		model:       opts.Model,
		temperature: float32(opts.Temperature),
		maxTokens:   opts.MaxTokens,
		client:      openai.NewClientWithConfig(clientConfig),
	}, nil
}

func (c *Chat) Name() string { return c.name }

func (c *Chat) Model() string { return c.model }

// Invoke sends the conversation as a single chat completion and returns the
// first choice's content.
func (c *Chat) Invoke(ctx context.Context, messages []models.Message) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    toChatMessages(messages),
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	})
	if err != nil {
		return "", errdefs.LLM(c.name, c.model, err)
	}
	if len(resp.Choices) == 0 {
		return "", errdefs.LLM(c.name, c.model, fmt.Errorf("response contained no choices"))
	}
	return resp.Choices[0].Message.Content, nil
}

func toChatMessages(messages []models.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, msg := range messages {
		role := openai.ChatMessageRoleUser
		switch msg.Role {
		case models.RoleSystem:
			role = openai.ChatMessageRoleSystem
		case models.RoleAssistant:
			role = openai.ChatMessageRoleAssistant
		}
		out = append(out, openai.ChatCompletionMessage{Role: role, Content: msg.Content})
	}
	return out
}

// headerTransport sets fixed headers on every outgoing request.
type headerTransport struct {
	base    http.RoundTripper
	headers map[string]string
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	for k, v := range t.headers {
		clone.Header.Set(k, v)
	}
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	return base.RoundTrip(clone)
}
