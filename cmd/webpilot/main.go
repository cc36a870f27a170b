// Package main provides the CLI entry point for the webpilot automation
// service.
//
// webpilot executes natural-language QA test cases against real web pages: a
// chat model plans one browser action per turn, Playwright performs it, and
// the finished transcript is distilled into a navigation graph of the pages
// visited and the actions that connected them.
//
// # Basic Usage
//
// Start the HTTP API:
//
//	webpilot serve --config webpilot.yaml
//
// Execute a single test case:
//
//	webpilot run --id TC_001 --description "Verify login with valid credentials"
//
// Convert a test description into executable steps without running them:
//
//	webpilot convert --id TC_001 --description "Verify login with valid credentials"
//
// # Environment Variables
//
// Configuration can be provided via environment variables when no config
// file is present:
//
//   - WEBPILOT_CONFIG: path to the configuration file (default: webpilot.yaml)
//   - GATEWAY_BASE_URL, GATEWAY_API_KEY, GATEWAY_MODEL: gateway provider
//   - OPENAI_API_KEY, OPENAI_MODEL: OpenAI provider
//   - ANTHROPIC_API_KEY, ANTHROPIC_MODEL: Anthropic provider
//   - STORAGE_DRIVER, STORAGE_DSN: outcome persistence
//
// A .env.local or .env file in the working directory is loaded at startup.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// Build information, populated by ldflags during build.
//
// Example:
//
//	go build -ldflags "-X main.version=v1.0.0 -X main.commit=$(git rev-parse HEAD) -X main.date=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	loadDotEnv()

	if err := buildRootCmd().Execute(); err != nil {
		slog.Error("command execution failed", "error", err)
		os.Exit(1)
	}
}

// loadDotEnv loads .env files so local runs can carry API keys without
// exporting them. Priority: .env.local over .env over the real environment.
func loadDotEnv() {
	for _, file := range []string{".env.local", ".env"} {
		if err := godotenv.Load(file); err != nil && !os.IsNotExist(err) {
			slog.Warn("failed to load env file", "file", file, "error", err)
		}
	}
}

func buildRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "webpilot",
		Short: "webpilot - LLM-driven browser automation for QA test cases",
		Long: `webpilot turns plain-language QA test cases into real browser runs.

A chat model reads the test instructions and drives Playwright one action at
a time; the transcript of every run is distilled into a navigation graph and
an outcome record that can be stored and queried over HTTP.

Supported engines: chromium, firefox, webkit, edge
Supported LLM providers: gateway (OpenAI-compatible), OpenAI, Anthropic`,
		Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		buildServeCmd(),
		buildRunCmd(),
		buildConvertCmd(),
		buildValidateCmd(),
		buildImportCmd(),
		buildConfigCmd(),
		buildInstallBrowsersCmd(),
		buildVersionCmd(),
	)

	return rootCmd
}
