package prompt

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/haasonsaas/webpilot/internal/errdefs"
)

var placeholderPattern = regexp.MustCompile(`\{([a-zA-Z_][a-zA-Z0-9_]*)\}`)

// Assembler renders registry templates and screens the rendered user prompt
// before it reaches a model.
type Assembler struct {
	registry  *Registry
	validator *Validator
}

// NewAssembler binds a registry and a validator. A nil validator gets the
// production defaults.
func NewAssembler(registry *Registry, validator *Validator) *Assembler {
	if validator == nil {
		validator = NewValidator(DefaultValidationConfig())
	}
	return &Assembler{registry: registry, validator: validator}
}

// Format renders the named template with vars and returns (system, user).
// Unknown templates and unresolved placeholders are configuration errors;
// a user prompt the validator rejects is invalid input.
func (a *Assembler) Format(name string, vars map[string]string) (string, string, error) {
	tmpl, found := a.registry.Get(name)
	if !found {
		return "", "", errdefs.Configuration("prompts.template",
			fmt.Sprintf("template %q not found (available: %s)", name, strings.Join(a.registry.Names(), ", ")))
	}

	user, err := substitute(tmpl.User, vars)
	if err != nil {
		return "", "", err
	}

	report := a.validator.Validate(user)
	if !report.Valid {
		return "", "", errdefs.InvalidInput("prompt", blockingMessage(&report))
	}
	return tmpl.System, user, nil
}

// ConversionPrompts selects the conversion template for the given inputs:
// the context variant when a test id or extra context is present, the basic
// one otherwise.
func (a *Assembler) ConversionPrompts(testID, shortDescription string, context map[string]string) (string, string, error) {
	if testID == "" && len(context) == 0 {
		return a.Format(TemplateConversion, map[string]string{
			"short_description": shortDescription,
		})
	}

	contextBlock := "None"
	if len(context) > 0 {
		keys := make([]string, 0, len(context))
		for key := range context {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		var b strings.Builder
		for _, key := range keys {
			fmt.Fprintf(&b, "- %s: %s\n", key, context[key])
		}
		contextBlock = b.String()
	}

	id := testID
	if id == "" {
		id = "N/A"
	}
	return a.Format(TemplateConversionContext, map[string]string{
		"test_id":           id,
		"short_description": shortDescription,
		"context":           contextBlock,
	})
}

// AgentPrompts returns the agent framing prompt plus the task as the user
// message.
func (a *Assembler) AgentPrompts(task string) (string, string, error) {
	return a.Format(TemplateAgentSystem, map[string]string{"task": task})
}

// Validator exposes the underlying validator for standalone checks.
func (a *Assembler) Validator() *Validator {
	return a.validator
}

func substitute(text string, vars map[string]string) (string, error) {
	seen := make(map[string]bool)
	var missing []string
	out := placeholderPattern.ReplaceAllStringFunc(text, func(m string) string {
		key := m[1 : len(m)-1]
		val, found := vars[key]
		if !found {
			if !seen[key] {
				seen[key] = true
				missing = append(missing, key)
			}
			return m
		}
		return val
	})
	if len(missing) > 0 {
		sort.Strings(missing)
		return "", errdefs.Configuration("prompts.template",
			fmt.Sprintf("unresolved placeholders: %s", strings.Join(missing, ", ")))
	}
	return out, nil
}

func blockingMessage(report *Report) string {
	for _, sev := range []Severity{SeverityCritical, SeverityError} {
		if findings := report.BySeverity(sev); len(findings) > 0 {
			return findings[0].Message
		}
	}
	return "prompt failed validation"
}
