package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// defaultConfigFile is used when --config and WEBPILOT_CONFIG are both unset.
const defaultConfigFile = "webpilot.yaml"

// resolveConfigPath applies the WEBPILOT_CONFIG fallback. An empty result
// means "no config file": the environment alone configures the process.
func resolveConfigPath(path string) string {
	if path != "" {
		return path
	}
	if env := os.Getenv("WEBPILOT_CONFIG"); env != "" {
		return env
	}
	if _, err := os.Stat(defaultConfigFile); err == nil {
		return defaultConfigFile
	}
	return ""
}

func buildServeCmd() *cobra.Command {
	var (
		configPath string
		debug      bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the webpilot HTTP API server",
		Long: `Start the HTTP API server.

The server exposes prompt generation, test execution, workbook import,
stored results, and Prometheus metrics. Outcome records are persisted with
the configured storage driver (memory, sqlite, or postgres).

Graceful shutdown is handled on SIGINT/SIGTERM signals.`,
		Example: `  # Start with the default config file
  webpilot serve

  # Start with an explicit config and debug logging
  webpilot serve --config webpilot.yaml --debug`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), resolveConfigPath(configPath), debug)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to YAML or JSON5 configuration file")
	cmd.Flags().BoolVarP(&debug, "debug", "d", false, "Enable debug logging (verbose output)")

	return cmd
}

type runFlags struct {
	configPath    string
	debug         bool
	file          string
	id            string
	description   string
	prompt        string
	module        string
	functionality string
	priority      string
	engine        string
	headless      bool
	maxIterations int
	output        string
}

func buildRunCmd() *cobra.Command {
	var flags runFlags

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute one test case in a real browser",
		Long: `Execute one test case and print the outcome record as JSON.

The test case comes from --file (a JSON document) or from the flags below;
flags override file fields. When the case has no generated prompt, the
description is converted into numbered steps first. The command exits
non-zero when the run does not finish with status "success".`,
		Example: `  # Run from an existing prompt
  webpilot run --id TC_001 --prompt "1. Navigate to https://example.com\n2. Take a screenshot"

  # Convert a description and run it headless in firefox
  webpilot run --id TC_002 --description "Verify login" --engine firefox --headless

  # Run a test case stored as JSON
  webpilot run --file testcase.json --output outcome.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			flags.configPath = resolveConfigPath(flags.configPath)
			return runRun(cmd, flags)
		},
	}

	cmd.Flags().StringVarP(&flags.configPath, "config", "c", "", "Path to YAML or JSON5 configuration file")
	cmd.Flags().BoolVarP(&flags.debug, "debug", "d", false, "Enable debug logging (verbose output)")
	cmd.Flags().StringVarP(&flags.file, "file", "f", "", "Path to a test case JSON file")
	cmd.Flags().StringVar(&flags.id, "id", "", "Test case identifier")
	cmd.Flags().StringVar(&flags.description, "description", "", "Short test description to convert into steps")
	cmd.Flags().StringVar(&flags.prompt, "prompt", "", "Pre-generated automation steps (skips conversion)")
	cmd.Flags().StringVar(&flags.module, "module", "", "Module name used as conversion context")
	cmd.Flags().StringVar(&flags.functionality, "functionality", "", "Functionality used as conversion context")
	cmd.Flags().StringVar(&flags.priority, "priority", "", "Priority used as conversion context")
	cmd.Flags().StringVar(&flags.engine, "engine", "", "Browser engine (chromium, firefox, webkit, edge)")
	cmd.Flags().BoolVar(&flags.headless, "headless", false, "Run the browser headless")
	cmd.Flags().IntVar(&flags.maxIterations, "max-iterations", 0, "Maximum agent loop iterations")
	cmd.Flags().StringVarP(&flags.output, "output", "o", "", "Write the outcome record JSON to this file")

	return cmd
}

func buildConvertCmd() *cobra.Command {
	var (
		configPath    string
		id            string
		description   string
		module        string
		functionality string
		priority      string
	)

	cmd := &cobra.Command{
		Use:   "convert",
		Short: "Convert a test description into automation steps",
		Long: `Convert a short test description into numbered automation steps.

The steps are printed to stdout and can be passed back to "webpilot run"
via --prompt, or stored in a workbook's generated prompt column.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConvert(cmd, resolveConfigPath(configPath), id, description, module, functionality, priority)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to YAML or JSON5 configuration file")
	cmd.Flags().StringVar(&id, "id", "", "Test case identifier")
	cmd.Flags().StringVar(&description, "description", "", "Short test description (required)")
	cmd.Flags().StringVar(&module, "module", "", "Module name used as conversion context")
	cmd.Flags().StringVar(&functionality, "functionality", "", "Functionality used as conversion context")
	cmd.Flags().StringVar(&priority, "priority", "", "Priority used as conversion context")

	return cmd
}

func buildValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate [file]",
		Short: "Validate a prompt before sending it to a model",
		Long: `Run the prompt validator and print its findings.

The prompt is read from the named file, or from stdin when no file is
given. The command exits non-zero when the prompt fails validation.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			}
			return runValidate(cmd, path)
		},
	}
	return cmd
}

func buildImportCmd() *cobra.Command {
	var (
		sheet  string
		output string
	)

	cmd := &cobra.Command{
		Use:   "import <workbook.xlsx>",
		Short: "Read test cases from an Excel workbook",
		Long: `Read test cases from an Excel workbook and print them as JSON.

The first non-blank row is the header; "Test ID" and "Short Description"
columns are required (common aliases are accepted).`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd, args[0], sheet, output)
		},
	}

	cmd.Flags().StringVar(&sheet, "sheet", "", "Sheet name to read (default Sheet1)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write the JSON to this file instead of stdout")

	return cmd
}

func buildConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the configuration",
	}

	var configPath string
	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the resolved configuration with secrets masked",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigShow(cmd, resolveConfigPath(configPath))
		},
	}
	showCmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to YAML or JSON5 configuration file")

	schemaCmd := &cobra.Command{
		Use:   "schema",
		Short: "Print the configuration JSON Schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigSchema(cmd)
		},
	}

	cmd.AddCommand(showCmd, schemaCmd)
	return cmd
}

func buildInstallBrowsersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "install-browsers",
		Short: "Download the Playwright driver and browser binaries",
		Long: `Download the Playwright driver and browser binaries.

Run this once before the first "serve" or "run" on a new machine. Safe to
run again; existing installations are reused.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInstallBrowsers(cmd)
		},
	}
}

func buildVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "webpilot %s\n", version)
			fmt.Fprintf(out, "  commit: %s\n", commit)
			fmt.Fprintf(out, "  built:  %s\n", date)
		},
	}
}
