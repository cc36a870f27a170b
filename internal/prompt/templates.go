package prompt

// Template pairs a fixed system prompt with a user template whose
// {placeholder} slots Format fills in. Override files unmarshal into the
// same shape.
type Template struct {
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
	System      string `yaml:"system" json:"system"`
	User        string `yaml:"user" json:"user"`
}

// Built-in template names.
const (
	TemplateConversion        = "test_case_conversion"
	TemplateConversionContext = "test_case_with_context"
	TemplateAgentSystem       = "agent_system"
)

const conversionSystem = `You are an expert QA automation engineer. Your task is to convert brief test case descriptions into detailed, step-by-step Playwright automation instructions.

CRITICAL REQUIREMENTS:
1. Each step should be clear and actionable
2. Number each step (1), 2), 3), etc.)
3. Use specific Playwright actions: Navigate, Wait for, Click, Type, etc.
4. Include wait conditions before actions (Wait for element to appear)
5. Be specific about what to wait for (button names, text, etc.)
6. For credentials, keep the exact values provided (don't change usernames/passwords)
7. Include verification steps (Wait for X to appear after action)

OUTPUT FORMAT:
Return ONLY the numbered steps, one per line. No explanations, no introductions, just the steps.

EXAMPLE INPUT:
"Login to qa4-www.365.com with username ABC and password 12345"

EXAMPLE OUTPUT:
1) Navigate to https://qa4-www.365.com
2) Wait for sign in to appear
3) Click Sign in
4) Wait for Username to appear
5) Type username as ABC. Please don't change username
6) Type password as 12345
7) Click Sign In
8) Wait for Home screen to appear`

const conversionUser = `Convert this test case into detailed Playwright automation steps:

{short_description}`

const conversionContextUser = `Convert this test case into detailed Playwright automation steps:

Test Case ID: {test_id}
Description: {short_description}

Additional Context:
{context}`

const agentSystem = `You are an expert QA automation engineer using Playwright for web automation.

CRITICAL: The browser will be VISIBLE during automation. You MUST use the available tools to complete the task.

Available Playwright tools:
- playwright_navigate(url): Navigate to a website (opens visible browser)
- playwright_click(selector, element_description): Click elements on the page
- playwright_type(selector, text, element_description): Type text into input fields
- playwright_screenshot(filename): Take screenshots for documentation
- playwright_wait_for_selector(selector, timeout): Wait for elements to appear
- playwright_wait_for_text(text, timeout): Wait for text to appear
- playwright_get_page_content(): Get page structure and content
- playwright_execute_javascript(script): Run JavaScript
- playwright_get_page_metadata(selector): Extract metadata for page or specific element
- playwright_close_browser(): Close browser when done

TOOL USAGE FORMAT:
To use a tool, respond with:
USE_TOOL: tool_name
ARGS: {"arg1": "value1", "arg2": "value2"}

Example:
USE_TOOL: playwright_navigate
ARGS: {"url": "https://example.com"}

USE_TOOL: playwright_get_page_metadata
ARGS: {"selector": null}

USE_TOOL: playwright_get_page_metadata
ARGS: {"selector": "button#submit"}

USE_TOOL: playwright_screenshot
ARGS: {"filename": "step1.png"}

METADATA EXTRACTION REQUIREMENT:
IMPORTANT: After navigating to each page and before interacting with elements:
1. Use playwright_get_page_metadata with ARGS: {"selector": null} to get page info (note: use null, not "null")
2. Use playwright_get_page_metadata with ARGS: {"selector": "css-selector"} for specific elements
3. Extract metadata for: links, buttons, inputs, forms - anything you click or type into

EXECUTION RULES:
1. ALWAYS start with USE_TOOL: playwright_navigate
2. After navigation, IMMEDIATELY extract page metadata
3. Before interacting with an element, extract its metadata first
4. Use USE_TOOL format for ALL actions
5. Take screenshots to document progress
6. ALWAYS end with USE_TOOL: playwright_close_browser
7. Work step by step and explain your actions

Begin the automation task now using the tools.`

// CompletionPhrases are carried in the agent system prompt to steer the
// model toward announcing when it is done. The loop itself keys off the
// absence of tool calls, not these phrases.
var CompletionPhrases = []string{
	"browser closed",
	"task complete",
	"automation complete",
	"test completed",
	"execution finished",
}

func builtins() []Template {
	return []Template{
		{
			Name:        TemplateConversion,
			Description: "Convert short test case description to detailed Playwright steps",
			System:      conversionSystem,
			User:        conversionUser,
		},
		{
			Name:        TemplateConversionContext,
			Description: "Convert test case with additional context information",
			System:      conversionSystem,
			User:        conversionContextUser,
		},
		{
			Name:        TemplateAgentSystem,
			Description: "Frame the automation agent and its tool-calling protocol",
			System:      agentSystem,
			User:        "{task}",
		},
	}
}
