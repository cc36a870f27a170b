package tools

import (
	"context"
	"fmt"
	"strconv"
	"sync"
)

// Tool is one named browser operation invocable by the model. Execute never
// returns a Go error; failures are reported through the outcome so the model
// can see them and adapt.
type Tool interface {
	// Name returns the wire name the model uses to invoke the tool.
	Name() string

	// Description returns a natural language description of what the tool
	// does, included verbatim in the agent system prompt.
	Description() string

	// Execute runs the tool with the given argument map.
	Execute(ctx context.Context, args Args) Outcome
}

// Outcome is the result of one tool execution. Report always begins with a
// status marker the transcript scanner keys on.
type Outcome struct {
	OK     bool
	Report string
}

func ok(format string, a ...any) Outcome {
	return Outcome{OK: true, Report: "✅ " + fmt.Sprintf(format, a...)}
}

func fail(format string, a ...any) Outcome {
	return Outcome{OK: false, Report: "❌ " + fmt.Sprintf(format, a...)}
}

// Args is the argument map parsed from a model directive. Values are
// untrusted JSON; each tool coerces the keys it needs and ignores the rest.
type Args map[string]any

// String returns the value under key as a string. Missing keys and JSON
// nulls yield ""; non-string scalars are stringified.
func (a Args) String(key string) string {
	switch v := a[key].(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// Int returns the value under key as an int, or def when the key is missing,
// null, or not coercible.
func (a Args) Int(key string, def int) int {
	switch v := a[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case string:
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
		return def
	default:
		return def
	}
}

// Bool returns the value under key as a bool, or def when missing or not
// coercible.
func (a Args) Bool(key string, def bool) bool {
	switch v := a[key].(type) {
	case bool:
		return v
	case string:
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
		return def
	default:
		return def
	}
}

// Registry holds the tool catalogue, preserving registration order for
// prompt rendering.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
	order []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds a tool. Re-registering a name replaces the tool but keeps
// its original position.
func (r *Registry) Register(t Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	name := t.Name()
	if _, exists := r.tools[name]; !exists {
		r.order = append(r.order, name)
	}
	r.tools[name] = t
}

// Get returns the tool registered under name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, found := r.tools[name]
	return t, found
}

// List returns all tools in registration order.
func (r *Registry) List() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Tool, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name])
	}
	return out
}

// Names returns the tool names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}
