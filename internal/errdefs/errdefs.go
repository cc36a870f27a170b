// Package errdefs defines the error taxonomy shared across the run pipeline.
// Every failure surfaced to callers is one of these kinds; collaborators map
// kinds onto their own surfaces (the HTTP shell maps them to status codes).
package errdefs

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Kind classifies an error for policy decisions.
type Kind string

const (
	KindInvalidInput  Kind = "invalid_input"
	KindConfiguration Kind = "configuration"
	KindValidation    Kind = "validation"
	KindLLM           Kind = "llm"
	KindBrowser       Kind = "browser"
	KindState         Kind = "state"
	KindDatabase      Kind = "database"
)

// Sentinel errors for conditions tested with errors.Is.
var (
	ErrSessionNotReady  = errors.New("browser session not initialized")
	ErrMaxIterations    = errors.New("max iterations reached")
	ErrTemplateNotFound = errors.New("prompt template not found")
	ErrMissingVariable  = errors.New("missing template variable")
)

// Error is a classified error with the structured context its kind calls for.
// Zero-value fields are omitted from the message.
type Error struct {
	Kind Kind
	Msg  string

	// Field names the offending input field for invalid-input errors.
	Field string
	// ConfigKey names the configuration key for configuration errors.
	ConfigKey string
	// Provider and Model identify the LLM endpoint for llm errors.
	Provider string
	Model    string
	// ToolName and Selector identify the browser action for browser errors.
	ToolName string
	Selector string
	// Op and Table identify the statement for database errors.
	Op    string
	Table string

	Err error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	for _, part := range []struct{ k, v string }{
		{"field", e.Field},
		{"key", e.ConfigKey},
		{"provider", e.Provider},
		{"model", e.Model},
		{"tool", e.ToolName},
		{"selector", e.Selector},
		{"op", e.Op},
		{"table", e.Table},
	} {
		if part.v != "" {
			fmt.Fprintf(&b, " %s=%s", part.k, part.v)
		}
	}
	if e.Msg != "" {
		b.WriteString(": ")
		b.WriteString(e.Msg)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// InvalidInput reports a rejected caller input.
func InvalidInput(field, msg string) *Error {
	return &Error{Kind: KindInvalidInput, Field: field, Msg: msg}
}

// Configuration reports a bad or missing configuration value.
func Configuration(key, msg string) *Error {
	return &Error{Kind: KindConfiguration, ConfigKey: key, Msg: msg}
}

// Validation reports a failed prompt validation.
func Validation(msg string) *Error {
	return &Error{Kind: KindValidation, Msg: msg}
}

// LLM reports a model transport failure.
func LLM(provider, model string, err error) *Error {
	return &Error{Kind: KindLLM, Provider: provider, Model: model, Err: err}
}

// Browser reports a browser action failure.
func Browser(tool, selector string, err error) *Error {
	return &Error{Kind: KindBrowser, ToolName: tool, Selector: selector, Err: err}
}

// State reports a loop guard violation.
func State(msg string, err error) *Error {
	return &Error{Kind: KindState, Msg: msg, Err: err}
}

// Database reports a persistence failure. Never fatal to a run.
func Database(op, table string, err error) *Error {
	return &Error{Kind: KindDatabase, Op: op, Table: table, Err: err}
}

// KindOf returns the kind of err, or "" when err carries none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind reports whether err carries the given kind anywhere in its chain.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// HTTPStatus maps an error to the status code the API surface responds with.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindInvalidInput, KindValidation:
		return http.StatusBadRequest
	case KindLLM:
		return http.StatusBadGateway
	case KindConfiguration, KindBrowser, KindState, KindDatabase:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
