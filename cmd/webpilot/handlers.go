package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/haasonsaas/webpilot/internal/api"
	"github.com/haasonsaas/webpilot/internal/browser"
	"github.com/haasonsaas/webpilot/internal/config"
	"github.com/haasonsaas/webpilot/internal/errdefs"
	"github.com/haasonsaas/webpilot/internal/ingest"
	"github.com/haasonsaas/webpilot/internal/llm"
	"github.com/haasonsaas/webpilot/internal/observability"
	"github.com/haasonsaas/webpilot/internal/prompt"
	"github.com/haasonsaas/webpilot/internal/runner"
	"github.com/haasonsaas/webpilot/internal/store"
	"github.com/haasonsaas/webpilot/pkg/models"
)

// loadConfig reads the configuration file when one was resolved, otherwise
// builds the configuration from environment variables alone.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.Load(path)
	}
	return config.FromEnv()
}

func newLogger(cfg *config.Config) *observability.Logger {
	return observability.NewLogger(observability.LogConfig{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
}

// newRunner wires the invoker, template registry and assembler for one CLI
// invocation. The returned cleanup releases the registry.
func newRunner(cfg *config.Config, logger *observability.Logger) (*runner.Runner, func(), error) {
	if err := cfg.ValidateCredentials(); err != nil {
		return nil, nil, err
	}
	invoker, err := llm.New(cfg)
	if err != nil {
		return nil, nil, err
	}
	registry, err := prompt.NewRegistry(prompt.RegistryOptions{
		OverrideDir: cfg.Prompts.TemplateDir,
		Logger:      logger,
	})
	if err != nil {
		return nil, nil, err
	}

	validatorCfg := prompt.DefaultValidationConfig()
	validatorCfg.StrictMode = cfg.Prompts.Strict

	run := runner.New(runner.Options{
		Invoker:   invoker,
		Assembler: prompt.NewAssembler(registry, prompt.NewValidator(validatorCfg)),
		Browser:   cfg.Browser,
		Logger:    logger,
	})
	return run, func() { _ = registry.Close() }, nil
}

func runServe(ctx context.Context, configPath string, debug bool) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if debug {
		cfg.Logging.Level = "debug"
	}
	logger := newLogger(cfg)

	if err := cfg.ValidateCredentials(); err != nil {
		return err
	}

	st, err := store.Open(cfg.Storage)
	if err != nil {
		return err
	}
	defer st.Close()

	server, err := api.NewServer(api.Options{
		Config:  cfg,
		Store:   st,
		Logger:  logger,
		Version: version,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := server.Start(ctx); err != nil {
		return err
	}
	logger.Info(ctx, "server ready",
		"addr", server.Addr(),
		"provider", cfg.LLM.Provider,
		"model", cfg.ActiveModel(),
		"storage", cfg.Storage.Driver)

	<-ctx.Done()
	logger.Info(context.Background(), "shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func runRun(cmd *cobra.Command, flags runFlags) error {
	cfg, err := loadConfig(flags.configPath)
	if err != nil {
		return err
	}
	if flags.debug {
		cfg.Logging.Level = "debug"
	}
	if cmd.Flags().Changed("headless") {
		cfg.Browser.Headless = flags.headless
	}
	logger := newLogger(cfg)

	tc, err := buildTestCase(flags)
	if err != nil {
		return err
	}

	run, cleanup, err := newRunner(cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	record, err := run.Execute(ctx, tc)
	if err != nil {
		return err
	}

	persistResult(ctx, cfg, logger, record)

	out, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("encode outcome record: %w", err)
	}
	if flags.output != "" {
		if err := os.WriteFile(flags.output, append(out, '\n'), 0o644); err != nil {
			return fmt.Errorf("write outcome file: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Outcome written to %s\n", flags.output)
	} else {
		fmt.Fprintln(cmd.OutOrStdout(), string(out))
	}

	if record.Status != models.StatusSuccess {
		if record.ErrorMessage != "" {
			return fmt.Errorf("run finished with status %q: %s", record.Status, record.ErrorMessage)
		}
		return fmt.Errorf("run finished with status %q", record.Status)
	}
	return nil
}

// buildTestCase merges --file contents with the individual flags; flags win.
func buildTestCase(flags runFlags) (models.TestCase, error) {
	var tc models.TestCase
	if flags.file != "" {
		raw, err := os.ReadFile(flags.file)
		if err != nil {
			return tc, errdefs.InvalidInput("file", fmt.Sprintf("cannot read test case file: %v", err))
		}
		if err := json.Unmarshal(raw, &tc); err != nil {
			return tc, errdefs.InvalidInput("file", fmt.Sprintf("not a valid test case document: %v", err))
		}
	}
	if flags.id != "" {
		tc.ID = flags.id
	}
	if flags.description != "" {
		tc.Description = flags.description
	}
	if flags.prompt != "" {
		tc.GeneratedPrompt = flags.prompt
	}
	if flags.module != "" {
		tc.Module = flags.module
	}
	if flags.functionality != "" {
		tc.Functionality = flags.functionality
	}
	if flags.priority != "" {
		tc.Priority = flags.priority
	}
	if flags.engine != "" {
		engine := models.Engine(flags.engine)
		switch engine {
		case models.EngineChromium, models.EngineFirefox, models.EngineWebKit, models.EngineEdge:
			tc.Browser.Engine = engine
		default:
			return tc, errdefs.InvalidInput("engine",
				fmt.Sprintf("unknown engine %q (supported: chromium, firefox, webkit, edge)", flags.engine))
		}
	}
	if flags.maxIterations > 0 {
		tc.Browser.MaxIterations = flags.maxIterations
	}
	return tc, nil
}

// persistResult saves the record when a durable driver is configured.
// Storage problems are logged, never fatal: the run already finished.
func persistResult(ctx context.Context, cfg *config.Config, logger *observability.Logger, record *models.ExecutionResult) {
	if cfg.Storage.Driver == "" || cfg.Storage.Driver == "memory" {
		return
	}
	st, err := store.Open(cfg.Storage)
	if err != nil {
		logger.Warn(ctx, "cannot open result store", "error", err)
		return
	}
	defer st.Close()
	if err := st.SaveResult(ctx, record); err != nil {
		logger.Warn(ctx, "failed to persist result", "error", err)
	}
}

func runConvert(cmd *cobra.Command, configPath, id, description, module, functionality, priority string) error {
	if description == "" {
		return errdefs.InvalidInput("description", "a short description is required")
	}
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	run, cleanup, err := newRunner(cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	steps, err := run.Convert(cmd.Context(), models.TestCase{
		ID:            id,
		Description:   description,
		Module:        module,
		Functionality: functionality,
		Priority:      priority,
	})
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), steps)
	return nil
}

func runValidate(cmd *cobra.Command, path string) error {
	var (
		raw []byte
		err error
	)
	if path == "" || path == "-" {
		raw, err = io.ReadAll(cmd.InOrStdin())
	} else {
		raw, err = os.ReadFile(path)
	}
	if err != nil {
		return errdefs.InvalidInput("file", fmt.Sprintf("cannot read prompt: %v", err))
	}

	validator := prompt.NewValidator(prompt.DefaultValidationConfig())
	report := validator.Validate(string(raw))

	out := cmd.OutOrStdout()
	for _, f := range report.Findings {
		marker := "FAIL"
		if f.Passed {
			marker = "ok"
		}
		fmt.Fprintf(out, "%-4s [%s] %s\n", marker, f.Severity, f.Message)
		if !f.Passed && f.Suggestion != "" {
			fmt.Fprintf(out, "       suggestion: %s\n", f.Suggestion)
		}
	}
	fmt.Fprintf(out, "estimated tokens: %d\n", report.TokenCount)

	if !report.Valid {
		return fmt.Errorf("prompt failed validation")
	}
	fmt.Fprintln(out, "prompt is valid")
	return nil
}

func runImport(cmd *cobra.Command, path, sheet, output string) error {
	cases, err := ingest.ReadTestCases(path, sheet)
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(cases, "", "  ")
	if err != nil {
		return fmt.Errorf("encode test cases: %w", err)
	}

	if output != "" {
		if err := os.WriteFile(output, append(out, '\n'), 0o644); err != nil {
			return fmt.Errorf("write output file: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Read %d test cases into %s\n", len(cases), output)
		return nil
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}

func runConfigShow(cmd *cobra.Command, configPath string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	out, err := yaml.Marshal(cfg.Sanitized())
	if err != nil {
		return fmt.Errorf("encode configuration: %w", err)
	}
	fmt.Fprint(cmd.OutOrStdout(), string(out))
	return nil
}

func runConfigSchema(cmd *cobra.Command) error {
	schema, err := config.JSONSchema()
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(schema))
	return nil
}

func runInstallBrowsers(cmd *cobra.Command) error {
	fmt.Fprintln(cmd.OutOrStdout(), "Installing Playwright driver and browser binaries ...")
	if err := browser.Install(true); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Browsers ready.")
	return nil
}
