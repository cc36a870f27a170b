package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/haasonsaas/webpilot/internal/config"
	"github.com/haasonsaas/webpilot/internal/errdefs"
	"github.com/haasonsaas/webpilot/pkg/models"
)

const chatReply = `{"id":"chatcmpl-1","object":"chat.completion","created":1700000000,"model":"llama-3.3-70b-versatile","choices":[{"index":0,"message":{"role":"assistant","content":"USE_TOOL: playwright_close_browser\nARGS: {}"},"finish_reason":"stop"}]}`

const anthropicReply = `{"id":"msg_01","type":"message","role":"assistant","model":"claude-sonnet-4-20250514","content":[{"type":"text","text":"USE_TOOL: playwright_navigate\nARGS: {\"url\": \"https://example.com\"}"}],"stop_reason":"end_turn","stop_sequence":null,"usage":{"input_tokens":42,"output_tokens":12}}`

type chatRequest struct {
	Model       string  `json:"model"`
	Temperature float64 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens"`
	Messages    []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

type anthropicRequest struct {
	Model       string  `json:"model"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float64 `json:"temperature"`
	System      []struct {
		Text string `json:"text"`
	} `json:"system"`
	Messages []struct {
		Role    string `json:"role"`
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	} `json:"messages"`
}

func conversation() []models.Message {
	return []models.Message{
		models.SystemMessage("You are a QA automation agent."),
		models.UserMessage("Navigate to https://example.com"),
		models.AssistantMessage("USE_TOOL: playwright_navigate\nARGS: {\"url\": \"https://example.com\"}"),
		models.ToolOutputMessage("Tool execution results:\n\n✅ playwright_navigate: done"),
	}
}

func TestChatGatewayRequestShape(t *testing.T) {
	var gotPath string
	var gotHeaders http.Header
	var gotBody chatRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotHeaders = r.Header.Clone()
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, chatReply)
	}))
	defer server.Close()

	chat, err := NewChat(ChatOptions{
		Name:        "gateway",
		APIKey:      "gw-key",
		BaseURL:     server.URL + "/openai/deployments/{model}",
		Model:       "llama-3.3-70b-versatile",
		Headers:     map[string]string{"ai-gateway-version": "v2", "api-key": "gw-key"},
		Temperature: 0.3,
		MaxTokens:   256,
	})
	if err != nil {
		t.Fatalf("NewChat: %v", err)
	}

	reply, err := chat.Invoke(context.Background(), conversation())
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if want := "USE_TOOL: playwright_close_browser\nARGS: {}"; reply != want {
		t.Errorf("reply = %q, want %q", reply, want)
	}

	if want := "/openai/deployments/llama-3.3-70b-versatile/chat/completions"; gotPath != want {
		t.Errorf("request path = %q, want %q", gotPath, want)
	}
	if got := gotHeaders.Get("ai-gateway-version"); got != "v2" {
		t.Errorf("ai-gateway-version header = %q, want %q", got, "v2")
	}
	if got := gotHeaders.Get("api-key"); got != "gw-key" {
		t.Errorf("api-key header = %q, want %q", got, "gw-key")
	}
	if got := gotHeaders.Get("Authorization"); got != "Bearer gw-key" {
		t.Errorf("Authorization header = %q, want %q", got, "Bearer gw-key")
	}

	if gotBody.Model != "llama-3.3-70b-versatile" {
		t.Errorf("body model = %q, want %q", gotBody.Model, "llama-3.3-70b-versatile")
	}
	if gotBody.Temperature != 0.3 {
		t.Errorf("body temperature = %v, want 0.3", gotBody.Temperature)
	}
	if gotBody.MaxTokens != 256 {
		t.Errorf("body max_tokens = %d, want 256", gotBody.MaxTokens)
	}
	wantRoles := []string{"system", "user", "assistant", "user"}
	if len(gotBody.Messages) != len(wantRoles) {
		t.Fatalf("body carried %d messages, want %d", len(gotBody.Messages), len(wantRoles))
	}
	for i, want := range wantRoles {
		if gotBody.Messages[i].Role != want {
			t.Errorf("message %d role = %q, want %q", i, gotBody.Messages[i].Role, want)
		}
	}
	if got := gotBody.Messages[0].Content; got != "You are a QA automation agent." {
		t.Errorf("system content = %q", got)
	}
}

func TestChatEmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"chatcmpl-2","object":"chat.completion","choices":[]}`)
	}))
	defer server.Close()

	chat, err := NewChat(ChatOptions{Name: "openai", APIKey: "test-key", BaseURL: server.URL, Model: "gpt-4o"})
	if err != nil {
		t.Fatalf("NewChat: %v", err)
	}
	_, err = chat.Invoke(context.Background(), conversation())
	if err == nil {
		t.Fatal("expected error for empty choices")
	}
	if kind := errdefs.KindOf(err); kind != errdefs.KindLLM {
		t.Errorf("error kind = %q, want %q", kind, errdefs.KindLLM)
	}
	if !strings.Contains(err.Error(), "no choices") {
		t.Errorf("error = %q, want mention of missing choices", err)
	}
}

func TestChatTransportFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, `{"error":{"message":"upstream deployment unavailable","type":"server_error"}}`)
	}))
	defer server.Close()

	chat, err := NewChat(ChatOptions{Name: "gateway", APIKey: "gw-key", BaseURL: server.URL, Model: "llama-3.3-70b-versatile"})
	if err != nil {
		t.Fatalf("NewChat: %v", err)
	}
	_, err = chat.Invoke(context.Background(), conversation())
	if err == nil {
		t.Fatal("expected error for HTTP 500")
	}
	if kind := errdefs.KindOf(err); kind != errdefs.KindLLM {
		t.Errorf("error kind = %q, want %q", kind, errdefs.KindLLM)
	}
	if !strings.Contains(err.Error(), "provider=gateway") {
		t.Errorf("error = %q, want provider context", err)
	}
}

func TestChatRequiresAPIKey(t *testing.T) {
	_, err := NewChat(ChatOptions{Name: "gateway", Model: "llama-3.3-70b-versatile"})
	if err == nil {
		t.Fatal("expected error for missing api key")
	}
	if kind := errdefs.KindOf(err); kind != errdefs.KindConfiguration {
		t.Errorf("error kind = %q, want %q", kind, errdefs.KindConfiguration)
	}
	if !strings.Contains(err.Error(), "llm.gateway.api_key") {
		t.Errorf("error = %q, want offending key named", err)
	}
}

func TestAnthropicRequestShape(t *testing.T) {
	var gotPath string
	var gotHeaders http.Header
	var gotBody anthropicRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotHeaders = r.Header.Clone()
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, anthropicReply)
	}))
	defer server.Close()

	invoker, err := NewAnthropic(AnthropicOptions{
		APIKey:      "anthropic-key",
		Model:       "claude-sonnet-4-20250514",
		BaseURL:     server.URL,
		Temperature: 0.3,
		MaxTokens:   256,
	})
	if err != nil {
		t.Fatalf("NewAnthropic: %v", err)
	}

	reply, err := invoker.Invoke(context.Background(), conversation())
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if want := "USE_TOOL: playwright_navigate\nARGS: {\"url\": \"https://example.com\"}"; reply != want {
		t.Errorf("reply = %q, want %q", reply, want)
	}

	if !strings.HasSuffix(gotPath, "/v1/messages") {
		t.Errorf("request path = %q, want /v1/messages suffix", gotPath)
	}
	if got := gotHeaders.Get("x-api-key"); got != "anthropic-key" {
		t.Errorf("x-api-key header = %q, want %q", got, "anthropic-key")
	}

	if gotBody.Model != "claude-sonnet-4-20250514" {
		t.Errorf("body model = %q, want %q", gotBody.Model, "claude-sonnet-4-20250514")
	}
	if gotBody.MaxTokens != 256 {
		t.Errorf("body max_tokens = %d, want 256", gotBody.MaxTokens)
	}
	if gotBody.Temperature != 0.3 {
		t.Errorf("body temperature = %v, want 0.3", gotBody.Temperature)
	}
	if len(gotBody.System) != 1 || gotBody.System[0].Text != "You are a QA automation agent." {
		t.Fatalf("system blocks = %+v, want the system prompt", gotBody.System)
	}
	wantRoles := []string{"user", "assistant", "user"}
	if len(gotBody.Messages) != len(wantRoles) {
		t.Fatalf("body carried %d messages, want %d", len(gotBody.Messages), len(wantRoles))
	}
	for i, want := range wantRoles {
		if gotBody.Messages[i].Role != want {
			t.Errorf("message %d role = %q, want %q", i, gotBody.Messages[i].Role, want)
		}
	}
	if got := gotBody.Messages[0].Content[0].Text; got != "Navigate to https://example.com" {
		t.Errorf("first message text = %q", got)
	}
}

func TestAnthropicAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"type":"error","error":{"type":"invalid_request_error","message":"max_tokens is required"}}`)
	}))
	defer server.Close()

	invoker, err := NewAnthropic(AnthropicOptions{APIKey: "anthropic-key", Model: "claude-sonnet-4-20250514", BaseURL: server.URL, MaxTokens: 64})
	if err != nil {
		t.Fatalf("NewAnthropic: %v", err)
	}
	_, err = invoker.Invoke(context.Background(), conversation())
	if err == nil {
		t.Fatal("expected error for HTTP 400")
	}
	if kind := errdefs.KindOf(err); kind != errdefs.KindLLM {
		t.Errorf("error kind = %q, want %q", kind, errdefs.KindLLM)
	}
	if !strings.Contains(err.Error(), "provider=anthropic") {
		t.Errorf("error = %q, want provider context", err)
	}
}

func TestAnthropicMaxTokensFloor(t *testing.T) {
	var gotBody anthropicRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, anthropicReply)
	}))
	defer server.Close()

	invoker, err := NewAnthropic(AnthropicOptions{APIKey: "anthropic-key", Model: "claude-sonnet-4-20250514", BaseURL: server.URL})
	if err != nil {
		t.Fatalf("NewAnthropic: %v", err)
	}
	if _, err := invoker.Invoke(context.Background(), conversation()); err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if gotBody.MaxTokens != 1024 {
		t.Errorf("body max_tokens = %d, want default 1024", gotBody.MaxTokens)
	}
}

func TestAnthropicRequiresAPIKey(t *testing.T) {
	_, err := NewAnthropic(AnthropicOptions{Model: "claude-sonnet-4-20250514"})
	if err == nil {
		t.Fatal("expected error for missing api key")
	}
	if kind := errdefs.KindOf(err); kind != errdefs.KindConfiguration {
		t.Errorf("error kind = %q, want %q", kind, errdefs.KindConfiguration)
	}
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.LLM.Temperature = 0.3
	cfg.LLM.MaxTokens = 512
	cfg.LLM.Gateway.APIKey = "gw-key"
	cfg.LLM.Gateway.BaseURL = "https://gateway.example.com/openai/deployments/{model}"
	cfg.LLM.Gateway.Model = "llama-3.3-70b-versatile"
	cfg.LLM.Gateway.Headers = map[string]string{"ai-gateway-version": "v2"}
	cfg.LLM.OpenAI.APIKey = "oa-key"
	cfg.LLM.OpenAI.Model = "gpt-4o"
	cfg.LLM.Anthropic.APIKey = "an-key"
	cfg.LLM.Anthropic.Model = "claude-sonnet-4-20250514"
	return cfg
}

func TestNewSelectsProvider(t *testing.T) {
	tests := []struct {
		provider  string
		wantName  string
		wantModel string
	}{
		{config.ProviderGateway, "gateway", "llama-3.3-70b-versatile"},
		{config.ProviderOpenAI, "openai", "gpt-4o"},
		{config.ProviderAnthropic, "anthropic", "claude-sonnet-4-20250514"},
	}
	for _, tt := range tests {
		t.Run(tt.provider, func(t *testing.T) {
			cfg := testConfig()
			cfg.LLM.Provider = tt.provider
			invoker, err := New(cfg)
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			if invoker.Name() != tt.wantName {
				t.Errorf("Name() = %q, want %q", invoker.Name(), tt.wantName)
			}
			if invoker.Model() != tt.wantModel {
				t.Errorf("Model() = %q, want %q", invoker.Model(), tt.wantModel)
			}
		})
	}
}

func TestNewUnknownProvider(t *testing.T) {
	cfg := testConfig()
	cfg.LLM.Provider = "groq"
	_, err := New(cfg)
	if err == nil {
		t.Fatal("expected error for unknown provider")
	}
	if kind := errdefs.KindOf(err); kind != errdefs.KindConfiguration {
		t.Errorf("error kind = %q, want %q", kind, errdefs.KindConfiguration)
	}
	if !strings.Contains(err.Error(), "groq") {
		t.Errorf("error = %q, want offending provider named", err)
	}
}

func TestNewGatewayInjectsAPIKeyHeader(t *testing.T) {
	var gotHeaders http.Header
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeaders = r.Header.Clone()
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, chatReply)
	}))
	defer server.Close()

	cfg := testConfig()
	cfg.LLM.Provider = config.ProviderGateway
	cfg.LLM.Gateway.BaseURL = server.URL + "/openai/deployments/{model}"
	invoker, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := invoker.Invoke(context.Background(), conversation()); err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if got := gotHeaders.Get("api-key"); got != "gw-key" {
		t.Errorf("api-key header = %q, want %q", got, "gw-key")
	}
	if got := gotHeaders.Get("ai-gateway-version"); got != "v2" {
		t.Errorf("ai-gateway-version header = %q, want %q", got, "v2")
	}
	if want := "/openai/deployments/llama-3.3-70b-versatile/chat/completions"; gotPath != want {
		t.Errorf("request path = %q, want %q", gotPath, want)
	}
}
