package models

// Engine selects the browser engine for a run.
type Engine string

const (
	EngineChromium Engine = "chromium"
	EngineFirefox  Engine = "firefox"
	EngineWebKit   Engine = "webkit"
	// EngineEdge launches Chromium with the msedge channel.
	EngineEdge Engine = "edge"
)

// BrowserOptions configures the browser session for one run.
type BrowserOptions struct {
	Engine        Engine `json:"engine,omitempty"`
	Headless      bool   `json:"headless,omitempty"`
	MaxIterations int    `json:"max_iterations,omitempty"`
}

// TestCase is the immutable input to one automation run. Module,
// Functionality and Priority are prompt context only; GeneratedPrompt, when
// set, is executed as-is instead of converting the description first.
type TestCase struct {
	ID              string         `json:"test_id"`
	Description     string         `json:"short_description"`
	Module          string         `json:"module,omitempty"`
	Functionality   string         `json:"functionality,omitempty"`
	Priority        string         `json:"priority,omitempty"`
	GeneratedPrompt string         `json:"generated_prompt,omitempty"`
	Browser         BrowserOptions `json:"browser,omitempty"`
}

// TestCasePrompt is the result of converting a test case description into
// executable automation steps.
type TestCasePrompt struct {
	TestID          string `json:"test_id"`
	GeneratedPrompt string `json:"generated_prompt"`
	Status          string `json:"status"`
}
