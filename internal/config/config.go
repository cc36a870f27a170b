package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/haasonsaas/webpilot/internal/errdefs"
)

// Config is the main configuration structure for webpilot.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	LLM     LLMConfig     `yaml:"llm"`
	Browser BrowserConfig `yaml:"browser"`
	Storage StorageConfig `yaml:"storage"`
	Prompts PromptsConfig `yaml:"prompts"`
	Logging LoggingConfig `yaml:"logging"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// LLMConfig selects the active provider and carries shared generation settings.
type LLMConfig struct {
	Provider    string          `yaml:"provider"`
	Temperature float64         `yaml:"temperature"`
	MaxTokens   int             `yaml:"max_tokens"`
	Gateway     GatewayConfig   `yaml:"gateway"`
	OpenAI      ProviderConfig  `yaml:"openai"`
	Anthropic   ProviderConfig  `yaml:"anthropic"`
}

// GatewayConfig points at an OpenAI-compatible gateway deployment. The
// base_url may contain a {model} placeholder resolved per request.
type GatewayConfig struct {
	BaseURL string            `yaml:"base_url"`
	APIKey  string            `yaml:"api_key"`
	Model   string            `yaml:"model"`
	Headers map[string]string `yaml:"headers"`
}

type ProviderConfig struct {
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"`
}

type BrowserConfig struct {
	Engine        string `yaml:"engine"`
	Headless      bool   `yaml:"headless"`
	MaxIterations int    `yaml:"max_iterations"`
	ScreenshotDir string `yaml:"screenshot_dir"`
}

type StorageConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// PromptsConfig controls template overrides. TemplateDir, when set, is
// watched for changes and its files shadow the built-in templates.
type PromptsConfig struct {
	TemplateDir string `yaml:"template_dir"`
	Strict      bool   `yaml:"strict"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Supported enum values. Validation rejects anything else.
const (
	ProviderGateway   = "gateway"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// Load reads and parses the configuration file. Environment variables in
// ${VAR} form are expanded before parsing, unknown fields are rejected, and
// the result is validated.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	raw, err := parseRawBytes([]byte(expanded), path)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg, err := decodeRawConfig(raw)
	if err != nil {
		return nil, err
	}

	applyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromEnv builds a configuration from environment variables alone, for
// callers that run without a config file. Recognized variables:
// LLM_PROVIDER, GATEWAY_BASE_URL, GATEWAY_API_KEY, GATEWAY_MODEL,
// OPENAI_API_KEY, OPENAI_MODEL, ANTHROPIC_API_KEY, ANTHROPIC_MODEL,
// BROWSER_TYPE, HEADLESS, MAX_ITERATIONS, LLM_TEMPERATURE, LLM_MAX_TOKENS,
// STORAGE_DRIVER, STORAGE_DSN. The provider is auto-detected from which API
// key is present when LLM_PROVIDER is unset.
func FromEnv() (*Config, error) {
	cfg := &Config{}

	cfg.LLM.Provider = os.Getenv("LLM_PROVIDER")
	cfg.LLM.Gateway.BaseURL = os.Getenv("GATEWAY_BASE_URL")
	cfg.LLM.Gateway.APIKey = os.Getenv("GATEWAY_API_KEY")
	cfg.LLM.Gateway.Model = os.Getenv("GATEWAY_MODEL")
	cfg.LLM.OpenAI.APIKey = os.Getenv("OPENAI_API_KEY")
	cfg.LLM.OpenAI.Model = os.Getenv("OPENAI_MODEL")
	cfg.LLM.Anthropic.APIKey = os.Getenv("ANTHROPIC_API_KEY")
	cfg.LLM.Anthropic.Model = os.Getenv("ANTHROPIC_MODEL")
	cfg.Browser.Engine = os.Getenv("BROWSER_TYPE")
	cfg.Storage.Driver = os.Getenv("STORAGE_DRIVER")
	cfg.Storage.DSN = os.Getenv("STORAGE_DSN")

	if v := os.Getenv("HEADLESS"); v != "" {
		headless, err := strconv.ParseBool(v)
		if err != nil {
			return nil, errdefs.Configuration("HEADLESS", fmt.Sprintf("invalid boolean %q", v))
		}
		cfg.Browser.Headless = headless
	}
	if v := os.Getenv("MAX_ITERATIONS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, errdefs.Configuration("MAX_ITERATIONS", fmt.Sprintf("invalid integer %q", v))
		}
		cfg.Browser.MaxIterations = n
	}
	if v := os.Getenv("LLM_TEMPERATURE"); v != "" {
		t, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, errdefs.Configuration("LLM_TEMPERATURE", fmt.Sprintf("invalid float %q", v))
		}
		cfg.LLM.Temperature = t
	}
	if v := os.Getenv("LLM_MAX_TOKENS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, errdefs.Configuration("LLM_MAX_TOKENS", fmt.Sprintf("invalid integer %q", v))
		}
		cfg.LLM.MaxTokens = n
	}

	if cfg.LLM.Provider == "" {
		cfg.LLM.Provider = detectProvider(cfg)
	}

	applyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// detectProvider picks the first provider with an API key configured.
func detectProvider(cfg *Config) string {
	switch {
	case cfg.LLM.Gateway.APIKey != "":
		return ProviderGateway
	case cfg.LLM.OpenAI.APIKey != "":
		return ProviderOpenAI
	case cfg.LLM.Anthropic.APIKey != "":
		return ProviderAnthropic
	default:
		return ProviderOpenAI
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8000
	}
	if cfg.LLM.Provider == "" {
		cfg.LLM.Provider = ProviderOpenAI
	}
	if cfg.LLM.Temperature == 0 {
		cfg.LLM.Temperature = 0.3
	}
	if cfg.LLM.MaxTokens == 0 {
		cfg.LLM.MaxTokens = 1024
	}
	if cfg.LLM.Gateway.Model == "" {
		cfg.LLM.Gateway.Model = "llama-3.3-70b-versatile"
	}
	if cfg.LLM.Gateway.Headers == nil {
		cfg.LLM.Gateway.Headers = map[string]string{"ai-gateway-version": "v2"}
	}
	if cfg.LLM.OpenAI.Model == "" {
		cfg.LLM.OpenAI.Model = "gpt-4o"
	}
	if cfg.LLM.Anthropic.Model == "" {
		cfg.LLM.Anthropic.Model = "claude-sonnet-4-20250514"
	}
	if cfg.Browser.Engine == "" {
		cfg.Browser.Engine = "chromium"
	}
	if cfg.Browser.MaxIterations == 0 {
		cfg.Browser.MaxIterations = 10
	}
	if cfg.Browser.ScreenshotDir == "" {
		cfg.Browser.ScreenshotDir = "screenshots"
	}
	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = "memory"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

// Validate checks semantic constraints after defaults are applied.
func (c *Config) Validate() error {
	switch c.LLM.Provider {
	case ProviderGateway, ProviderOpenAI, ProviderAnthropic:
	default:
		return errdefs.Configuration("llm.provider",
			fmt.Sprintf("unknown provider %q (expected gateway, openai, or anthropic)", c.LLM.Provider))
	}

	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		return errdefs.Configuration("llm.temperature",
			fmt.Sprintf("%v out of range [0, 2]", c.LLM.Temperature))
	}
	if c.LLM.MaxTokens <= 0 {
		return errdefs.Configuration("llm.max_tokens",
			fmt.Sprintf("%d must be positive", c.LLM.MaxTokens))
	}
	if c.Browser.MaxIterations < 1 {
		return errdefs.Configuration("browser.max_iterations",
			fmt.Sprintf("%d must be at least 1", c.Browser.MaxIterations))
	}

	switch c.Browser.Engine {
	case "chromium", "firefox", "webkit", "edge":
	default:
		return errdefs.Configuration("browser.engine",
			fmt.Sprintf("unknown engine %q (expected chromium, firefox, webkit, or edge)", c.Browser.Engine))
	}

	switch c.Storage.Driver {
	case "memory":
	case "sqlite", "postgres":
		if strings.TrimSpace(c.Storage.DSN) == "" {
			return errdefs.Configuration("storage.dsn",
				fmt.Sprintf("required for driver %q", c.Storage.Driver))
		}
	default:
		return errdefs.Configuration("storage.driver",
			fmt.Sprintf("unknown driver %q (expected memory, sqlite, or postgres)", c.Storage.Driver))
	}

	return nil
}

// ValidateCredentials checks that the active provider has what it needs to
// issue requests. Split from Validate so read-only commands can load a
// config without secrets present.
func (c *Config) ValidateCredentials() error {
	switch c.LLM.Provider {
	case ProviderGateway:
		if c.LLM.Gateway.BaseURL == "" {
			return errdefs.Configuration("llm.gateway.base_url", "required for gateway provider")
		}
		if c.LLM.Gateway.APIKey == "" {
			return errdefs.Configuration("llm.gateway.api_key", "required for gateway provider")
		}
	case ProviderOpenAI:
		if c.LLM.OpenAI.APIKey == "" {
			return errdefs.Configuration("llm.openai.api_key", "required for openai provider")
		}
	case ProviderAnthropic:
		if c.LLM.Anthropic.APIKey == "" {
			return errdefs.Configuration("llm.anthropic.api_key", "required for anthropic provider")
		}
	}
	return nil
}

// ActiveModel returns the model of the active provider.
func (c *Config) ActiveModel() string {
	switch c.LLM.Provider {
	case ProviderGateway:
		return c.LLM.Gateway.Model
	case ProviderAnthropic:
		return c.LLM.Anthropic.Model
	default:
		return c.LLM.OpenAI.Model
	}
}

// Sanitized returns a copy safe to expose over the API: API keys are
// replaced with a marker showing only whether one was set.
func (c *Config) Sanitized() Config {
	out := *c
	out.LLM.Gateway.APIKey = maskSecret(c.LLM.Gateway.APIKey)
	out.LLM.OpenAI.APIKey = maskSecret(c.LLM.OpenAI.APIKey)
	out.LLM.Anthropic.APIKey = maskSecret(c.LLM.Anthropic.APIKey)
	out.Storage.DSN = maskSecret(c.Storage.DSN)
	if c.LLM.Gateway.Headers != nil {
		out.LLM.Gateway.Headers = make(map[string]string, len(c.LLM.Gateway.Headers))
		for k, v := range c.LLM.Gateway.Headers {
			if sensitiveHeader(k) {
				v = maskSecret(v)
			}
			out.LLM.Gateway.Headers[k] = v
		}
	}
	return out
}

func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	return "[SET]"
}

func sensitiveHeader(name string) bool {
	name = strings.ToLower(name)
	return name == "authorization" || name == "cookie" ||
		strings.Contains(name, "key") || strings.Contains(name, "token") ||
		strings.Contains(name, "secret")
}
