// Package llm provides the chat-model invokers behind the automation agent.
// Three providers are supported: a self-hosted OpenAI-compatible gateway, the
// public OpenAI API, and the Anthropic Messages API. All of them take a plain
// conversation and return a single text reply; streaming and retries are left
// to the caller.
package llm

import (
	"context"
	"fmt"

	"github.com/haasonsaas/webpilot/internal/config"
	"github.com/haasonsaas/webpilot/internal/errdefs"
	"github.com/haasonsaas/webpilot/pkg/models"
)

// Invoker sends a conversation to a chat model and returns the assistant's
// reply text.
type Invoker interface {
	// Invoke issues one non-streaming completion for the conversation.
	Invoke(ctx context.Context, messages []models.Message) (string, error)

	// Name identifies the provider, e.g. "gateway" or "anthropic".
	Name() string

	// Model reports the model identifier requests are issued against.
	Model() string
}

// New builds the invoker selected by cfg.LLM.Provider.
func New(cfg *config.Config) (Invoker, error) {
	switch cfg.LLM.Provider {
	case config.ProviderGateway:
		headers := make(map[string]string, len(cfg.LLM.Gateway.Headers)+1)
		for k, v := range cfg.LLM.Gateway.Headers {
			headers[k] = v
		}
		// Gateway deployments expect the key in an api-key header alongside
		// the bearer token.
		headers["api-key"] = cfg.LLM.Gateway.APIKey
		return NewChat(ChatOptions{
			Name:        config.ProviderGateway,
			APIKey:      cfg.LLM.Gateway.APIKey,
			BaseURL:     cfg.LLM.Gateway.BaseURL,
			Model:       cfg.LLM.Gateway.Model,
			Headers:     headers,
			Temperature: cfg.LLM.Temperature,
			MaxTokens:   cfg.LLM.MaxTokens,
		})
	case config.ProviderOpenAI:
		return NewChat(ChatOptions{
			Name:        config.ProviderOpenAI,
			APIKey:      cfg.LLM.OpenAI.APIKey,
			Model:       cfg.LLM.OpenAI.Model,
			Temperature: cfg.LLM.Temperature,
			MaxTokens:   cfg.LLM.MaxTokens,
		})
	case config.ProviderAnthropic:
		return NewAnthropic(AnthropicOptions{
			APIKey:      cfg.LLM.Anthropic.APIKey,
			Model:       cfg.LLM.Anthropic.Model,
			Temperature: cfg.LLM.Temperature,
			MaxTokens:   cfg.LLM.MaxTokens,
		})
	default:
		return nil, errdefs.Configuration("llm.provider", fmt.Sprintf(
			"unknown provider %q (supported: %s, %s, %s)",
			cfg.LLM.Provider, config.ProviderGateway, config.ProviderOpenAI, config.ProviderAnthropic))
	}
}
