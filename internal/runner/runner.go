// Package runner coordinates one automation run end to end: prompt
// assembly, the browser session, the agent loop, transcript scanning, and
// the outcome record handed back to callers.
package runner

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/haasonsaas/webpilot/internal/agent"
	"github.com/haasonsaas/webpilot/internal/browser"
	"github.com/haasonsaas/webpilot/internal/config"
	"github.com/haasonsaas/webpilot/internal/errdefs"
	"github.com/haasonsaas/webpilot/internal/graph"
	"github.com/haasonsaas/webpilot/internal/llm"
	"github.com/haasonsaas/webpilot/internal/observability"
	"github.com/haasonsaas/webpilot/internal/prompt"
	"github.com/haasonsaas/webpilot/internal/tools"
	"github.com/haasonsaas/webpilot/pkg/models"
)

const screenshotMarker = "✅ Screenshot saved to: "

// Options configures a Runner. Invoker and Assembler are required.
type Options struct {
	Invoker   llm.Invoker
	Assembler *prompt.Assembler

	// Browser carries the run defaults. Per-test browser options override
	// the engine, headless mode and iteration ceiling.
	Browser config.BrowserConfig

	Logger  *observability.Logger
	Metrics *observability.Metrics
}

// Runner executes test cases. Every Execute call owns a fresh browser
// session, so one Runner per request is the intended usage; concurrent
// Runners do not share state.
type Runner struct {
	invoker    llm.Invoker
	assembler  *prompt.Assembler
	browserCfg config.BrowserConfig
	logger     *observability.Logger
	metrics    *observability.Metrics

	// newSession is swapped by tests to avoid launching a real browser.
	newSession func(opts browser.Options) tools.Session
}

// New builds a Runner.
func New(opts Options) *Runner {
	if opts.Logger == nil {
		opts.Logger = observability.NewLogger(observability.LogConfig{})
	}
	return &Runner{
		invoker:    opts.Invoker,
		assembler:  opts.Assembler,
		browserCfg: opts.Browser,
		logger:     opts.Logger,
		metrics:    opts.Metrics,
		newSession: func(o browser.Options) tools.Session {
			return browser.NewSession(o)
		},
	}
}

// Execute runs one test case and returns its outcome record. The error
// return carries pre-run rejections only: a missing test id, an empty
// instruction, or a failed prompt conversion. Once the loop starts, every
// failure is encoded in the record's status and error message.
func (r *Runner) Execute(ctx context.Context, tc models.TestCase) (*models.ExecutionResult, error) {
	if strings.TrimSpace(tc.ID) == "" {
		return nil, errdefs.InvalidInput("test_id", "test_id is required")
	}
	ctx = observability.WithTestID(ctx, tc.ID)

	task := strings.TrimSpace(tc.GeneratedPrompt)
	if task == "" {
		converted, err := r.Convert(ctx, tc)
		if err != nil {
			return nil, err
		}
		task = converted
	}

	system, user, err := r.assembler.AgentPrompts(task)
	if err != nil {
		return nil, err
	}

	engine, headless, maxIterations := r.browserOptions(tc)
	started := time.Now()

	session := r.newSession(browser.Options{
		Engine:   engine,
		Headless: headless,
		Logger:   r.logger,
	})
	defer func() {
		if closeErr := session.Close(ctx); closeErr != nil {
			r.logger.Warn(ctx, "session close failed", "error", closeErr)
		}
	}()

	registry := tools.NewRegistry()
	catalogue := tools.NewCatalogue(session, tools.CatalogueOptions{
		ScreenshotDir: r.browserCfg.ScreenshotDir,
		Logger:        r.logger,
	})
	for _, tool := range catalogue.Tools() {
		registry.Register(tool)
	}

	loop := agent.NewLoop(agent.LoopOptions{
		Invoker:       r.invoker,
		Registry:      registry,
		MaxIterations: maxIterations,
		Logger:        r.logger,
	})
	result, runErr := loop.Run(ctx, system, user)
	elapsed := time.Since(started)

	outcomes := result.Transcript.ToolOutcomes()
	pages, edges := graph.Scan(outcomes)
	status, errMsg := runStatus(result, runErr)

	record := &models.ExecutionResult{
		TestID:        tc.ID,
		Status:        status,
		ExecutionTime: elapsed.Seconds(),
		StepsExecuted: successCount(result.Executions),
		AgentOutput:   result.Transcript.Text(),
		Pages:         pages,
		Edges:         edges,
		Screenshots:   collectScreenshots(outcomes),
		ErrorMessage:  errMsg,
		ExecutedAt:    time.Now().UTC(),
	}

	r.observe(record, result, elapsed)
	r.logger.Info(ctx, "run finished",
		"status", string(status),
		"iterations", result.Iterations,
		"steps", record.StepsExecuted,
		"pages", len(pages),
		"edges", len(edges),
		"duration_s", elapsed.Seconds())
	return record, nil
}

// Convert renders the conversion prompts for the test case and invokes the
// model once, returning the numbered automation steps.
func (r *Runner) Convert(ctx context.Context, tc models.TestCase) (string, error) {
	if strings.TrimSpace(tc.Description) == "" {
		return "", errdefs.InvalidInput("short_description", "short_description is required")
	}

	system, user, err := r.assembler.ConversionPrompts(tc.ID, tc.Description, conversionContext(tc))
	if err != nil {
		return "", err
	}

	reply, err := r.invoker.Invoke(ctx, []models.Message{
		models.SystemMessage(system),
		models.UserMessage(user),
	})
	if err != nil {
		return "", err
	}
	steps := strings.TrimSpace(reply)
	if steps == "" {
		return "", errdefs.LLM(r.invoker.Name(), r.invoker.Model(),
			fmt.Errorf("conversion returned an empty prompt"))
	}
	return steps, nil
}

func (r *Runner) browserOptions(tc models.TestCase) (models.Engine, bool, int) {
	engine := models.Engine(r.browserCfg.Engine)
	if tc.Browser.Engine != "" {
		engine = tc.Browser.Engine
	}
	headless := r.browserCfg.Headless || tc.Browser.Headless
	maxIterations := r.browserCfg.MaxIterations
	if tc.Browser.MaxIterations > 0 {
		maxIterations = tc.Browser.MaxIterations
	}
	return engine, headless, maxIterations
}

func (r *Runner) observe(record *models.ExecutionResult, result *agent.RunResult, elapsed time.Duration) {
	if r.metrics == nil {
		return
	}
	r.metrics.RunCounter.WithLabelValues(string(record.Status)).Inc()
	r.metrics.RunDuration.Observe(elapsed.Seconds())
	for _, exec := range result.Executions {
		status := "success"
		if !exec.OK {
			status = "error"
		}
		r.metrics.ToolExecutionCounter.WithLabelValues(exec.Tool, status).Inc()
	}
}

// runStatus maps the loop's terminal state onto the outcome taxonomy:
// success needs a completed loop with no failed critical action, reaching
// the iteration ceiling counts as failed, any other abort is an error.
func runStatus(result *agent.RunResult, runErr error) (models.RunStatus, string) {
	switch {
	case runErr == nil:
		if criticalFailure(result.Executions) {
			return models.StatusFailed, ""
		}
		return models.StatusSuccess, ""
	case errors.Is(runErr, errdefs.ErrMaxIterations):
		return models.StatusFailed, runErr.Error()
	default:
		return models.StatusError, runErr.Error()
	}
}

// criticalFailure reports whether any navigate, click or type execution
// failed. Failures of waits, content reads and screenshots do not demote a
// run on their own.
func criticalFailure(execs []agent.Execution) bool {
	for _, exec := range execs {
		if exec.OK {
			continue
		}
		switch exec.Tool {
		case tools.NameNavigate, tools.NameClick, tools.NameType:
			return true
		}
	}
	return false
}

func successCount(execs []agent.Execution) int {
	count := 0
	for _, exec := range execs {
		if exec.OK {
			count++
		}
	}
	return count
}

// collectScreenshots pulls the saved paths out of successful screenshot
// outcomes. Failed screenshot attempts never carry the success marker.
func collectScreenshots(outcomes string) []string {
	shots := []string{}
	for _, line := range strings.Split(outcomes, "\n") {
		idx := strings.Index(line, screenshotMarker)
		if idx < 0 {
			continue
		}
		if path := strings.TrimSpace(line[idx+len(screenshotMarker):]); path != "" {
			shots = append(shots, path)
		}
	}
	return shots
}

func conversionContext(tc models.TestCase) map[string]string {
	context := map[string]string{}
	if tc.Module != "" {
		context["Module"] = tc.Module
	}
	if tc.Functionality != "" {
		context["Functionality"] = tc.Functionality
	}
	if tc.Priority != "" {
		context["Priority"] = tc.Priority
	}
	return context
}
