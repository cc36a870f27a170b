package api

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/haasonsaas/webpilot/internal/errdefs"
)

// Request bodies are validated against these schemas before decoding, so
// handlers never see structurally bad input.
type schemaRegistry struct {
	once     sync.Once
	initErr  error
	compiled map[string]*jsonschema.Schema
}

var requestSchemas schemaRegistry

func initSchemas() error {
	requestSchemas.once.Do(func() {
		sources := map[string]string{
			schemaGeneratePrompt: generatePromptSchema,
			schemaExecute:        executeSchema,
			schemaSwitchProvider: switchProviderSchema,
		}
		requestSchemas.compiled = make(map[string]*jsonschema.Schema, len(sources))
		for name, source := range sources {
			compiled, err := jsonschema.CompileString(name, source)
			if err != nil {
				requestSchemas.initErr = err
				return
			}
			requestSchemas.compiled[name] = compiled
		}
	})
	return requestSchemas.initErr
}

// validateBody checks raw against the named schema and reports a
// validation error suitable for a 400 response.
func validateBody(name string, raw []byte) error {
	if err := initSchemas(); err != nil {
		return fmt.Errorf("compile request schemas: %w", err)
	}
	schema := requestSchemas.compiled[name]
	if schema == nil {
		return fmt.Errorf("unknown request schema %q", name)
	}

	var payload any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return errdefs.Validation("request body is not valid JSON")
	}
	if err := schema.Validate(payload); err != nil {
		return errdefs.Validation(err.Error())
	}
	return nil
}

const (
	schemaGeneratePrompt = "generate_prompt_request"
	schemaExecute        = "execute_request"
	schemaSwitchProvider = "switch_provider_request"
)

const generatePromptSchema = `{
  "type": "object",
  "required": ["test_id", "short_description"],
  "properties": {
    "test_id": { "type": "string", "minLength": 1 },
    "short_description": { "type": "string", "minLength": 1 },
    "module": { "type": "string" },
    "functionality": { "type": "string" },
    "priority": { "type": "string" }
  }
}`

const executeSchema = `{
  "type": "object",
  "required": ["test_id"],
  "properties": {
    "test_id": { "type": "string", "minLength": 1 },
    "short_description": { "type": "string" },
    "generated_prompt": { "type": "string" },
    "module": { "type": "string" },
    "functionality": { "type": "string" },
    "priority": { "type": "string" },
    "browser": {
      "type": "object",
      "properties": {
        "engine": { "enum": ["chromium", "firefox", "webkit", "edge"] },
        "headless": { "type": "boolean" },
        "max_iterations": { "type": "integer", "minimum": 1 }
      }
    }
  }
}`

const switchProviderSchema = `{
  "type": "object",
  "required": ["provider"],
  "properties": {
    "provider": { "enum": ["gateway", "openai", "anthropic"] }
  }
}`
