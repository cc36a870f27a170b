package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/haasonsaas/webpilot/internal/errdefs"
	"github.com/haasonsaas/webpilot/internal/llm"
	"github.com/haasonsaas/webpilot/internal/observability"
	"github.com/haasonsaas/webpilot/internal/tools"
	"github.com/haasonsaas/webpilot/pkg/models"
)

// State identifies a phase of the run loop.
type State int

const (
	StateReady State = iota
	StateInvoking
	StateParsing
	StateExecuting
	StateCompleted
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateReady:
		return "ready"
	case StateInvoking:
		return "invoking_model"
	case StateParsing:
		return "parsing"
	case StateExecuting:
		return "executing_tools"
	case StateCompleted:
		return "completed"
	case StateAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// Execution records the outcome of one tool invocation.
type Execution struct {
	Tool string
	OK   bool
}

// RunResult carries the terminal state of one loop run. Executions lists
// every tool invocation in order so callers can count successes without
// re-parsing transcript text.
type RunResult struct {
	State      State
	Transcript *Transcript
	Executions []Execution
	Iterations int
}

// LoopOptions configures a Loop.
type LoopOptions struct {
	// Invoker sends the conversation to the model. Required.
	Invoker llm.Invoker

	// Registry resolves tool names to implementations. Required.
	Registry *tools.Registry

	// MaxIterations caps the number of model invocations per run.
	// Default: 10.
	MaxIterations int

	Logger *observability.Logger
}

// Loop drives the invoke-parse-execute cycle for one automation run.
type Loop struct {
	invoker       llm.Invoker
	registry      *tools.Registry
	maxIterations int
	logger        *observability.Logger
}

// NewLoop builds a Loop.
func NewLoop(opts LoopOptions) *Loop {
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = 10
	}
	if opts.Logger == nil {
		opts.Logger = observability.NewLogger(observability.LogConfig{})
	}
	return &Loop{
		invoker:       opts.Invoker,
		registry:      opts.Registry,
		maxIterations: opts.MaxIterations,
		logger:        opts.Logger,
	}
}

// Run executes the loop until the model stops requesting tools, the
// iteration ceiling is hit, or the model transport fails. Tool failures
// never abort a run; their ❌ outcomes feed the next model turn. The
// returned RunResult is valid even when err is non-nil.
func (l *Loop) Run(ctx context.Context, system, task string) (*RunResult, error) {
	transcript := NewTranscript(system, task)
	result := &RunResult{State: StateReady, Transcript: transcript}

	l.logger.Info(ctx, "run started",
		"provider", l.invoker.Name(),
		"model", l.invoker.Model(),
		"max_iterations", l.maxIterations)

	for {
		if result.Iterations >= l.maxIterations {
			result.State = StateAborted
			l.logger.Warn(ctx, "iteration ceiling reached", "iterations", result.Iterations)
			return result, errdefs.State(
				fmt.Sprintf("aborted after %d iterations", result.Iterations),
				errdefs.ErrMaxIterations)
		}

		result.State = StateInvoking
		result.Iterations++
		reply, err := l.invoker.Invoke(ctx, transcript.Messages())
		if err != nil {
			result.State = StateAborted
			l.logger.Error(ctx, "model invocation failed", "iteration", result.Iterations, "error", err)
			return result, err
		}
		transcript.Append(models.AssistantMessage(reply))

		result.State = StateParsing
		calls := ParseToolCalls(reply)
		if len(calls) == 0 {
			result.State = StateCompleted
			l.logger.Info(ctx, "run completed",
				"iterations", result.Iterations,
				"executions", len(result.Executions))
			return result, nil
		}

		result.State = StateExecuting
		lines := make([]string, 0, len(calls))
		for _, call := range calls {
			outcome := l.execute(ctx, call)
			result.Executions = append(result.Executions, Execution{Tool: call.Name, OK: outcome.OK})
			lines = append(lines, fmt.Sprintf("%s %s: %s", statusMarker(outcome.OK), call.Name, outcome.Report))
		}
		transcript.Append(models.ToolOutputMessage("Tool execution results:\n\n" + strings.Join(lines, "\n\n")))
	}
}

func (l *Loop) execute(ctx context.Context, call ToolCall) tools.Outcome {
	if call.Note != "" {
		l.logger.Warn(ctx, "malformed tool args", "tool", call.Name)
		return tools.Outcome{OK: false, Report: call.Note}
	}
	tool, found := l.registry.Get(call.Name)
	if !found {
		l.logger.Warn(ctx, "tool not found", "tool", call.Name)
		return tools.Outcome{OK: false, Report: fmt.Sprintf("❌ Tool '%s' not found", call.Name)}
	}
	outcome := tool.Execute(ctx, call.Args)
	l.logger.Debug(ctx, "tool executed", "tool", call.Name, "ok", outcome.OK)
	return outcome
}

func statusMarker(ok bool) string {
	if ok {
		return "✅"
	}
	return "❌"
}
