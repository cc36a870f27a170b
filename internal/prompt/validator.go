package prompt

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

// Severity ranks a validation finding.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

// Finding is one validation check outcome.
type Finding struct {
	Passed     bool     `json:"passed"`
	Severity   Severity `json:"severity"`
	Message    string   `json:"message"`
	Field      string   `json:"field,omitempty"`
	Suggestion string   `json:"suggestion,omitempty"`
}

// Report collects the findings for one prompt.
type Report struct {
	Valid      bool      `json:"valid"`
	TokenCount int       `json:"token_count"`
	Findings   []Finding `json:"findings"`
	Sanitized  string    `json:"sanitized,omitempty"`
}

// BySeverity returns the findings of one severity.
func (r *Report) BySeverity(sev Severity) []Finding {
	var out []Finding
	for _, f := range r.Findings {
		if f.Severity == sev {
			out = append(out, f)
		}
	}
	return out
}

// HasErrors reports whether any finding is error or critical severity.
func (r *Report) HasErrors() bool {
	for _, f := range r.Findings {
		if f.Severity == SeverityError || f.Severity == SeverityCritical {
			return true
		}
	}
	return false
}

// Summary counts findings per severity.
func (r *Report) Summary() map[Severity]int {
	out := make(map[Severity]int, 4)
	for _, f := range r.Findings {
		out[f.Severity]++
	}
	return out
}

// ValidationConfig tunes the validator.
type ValidationConfig struct {
	MaxLength       int
	MinLength       int
	MaxTokens       int
	AllowHTML       bool
	AllowCode       bool
	StrictMode      bool
	CheckInjections bool
	CheckProfanity  bool
}

// DefaultValidationConfig returns the production validation settings.
func DefaultValidationConfig() ValidationConfig {
	return ValidationConfig{
		MaxLength:       10000,
		MinLength:       10,
		MaxTokens:       4000,
		AllowCode:       true,
		CheckInjections: true,
	}
}

// Validator screens prompts before they reach a model.
type Validator struct {
	config ValidationConfig
}

// NewValidator creates a validator. Zero limits fall back to defaults.
func NewValidator(config ValidationConfig) *Validator {
	def := DefaultValidationConfig()
	if config.MaxLength <= 0 {
		config.MaxLength = def.MaxLength
	}
	if config.MinLength <= 0 {
		config.MinLength = def.MinLength
	}
	if config.MaxTokens <= 0 {
		config.MaxTokens = def.MaxTokens
	}
	return &Validator{config: config}
}

type patternCheck struct {
	re    *regexp.Regexp
	label string
}

// Patterns that indicate code smuggled into a prompt. Any hit is critical.
var injectionChecks = []patternCheck{
	{regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`), "script tag"},
	{regexp.MustCompile(`(?i)javascript:`), "javascript: protocol"},
	{regexp.MustCompile(`(?i)\bon\w+\s*=`), "inline event handler"},
	{regexp.MustCompile(`(?i)\beval\s*\(`), "eval call"},
	{regexp.MustCompile(`(?i)\bexec\s*\(`), "exec call"},
	{regexp.MustCompile(`__import__`), "dynamic import"},
	{regexp.MustCompile(`(?i)\bsubprocess\b`), "subprocess call"},
	{regexp.MustCompile(`(?i)os\.system`), "shell command"},
	{regexp.MustCompile(`(?s)\$\{.*?\}`), "template injection"},
	{regexp.MustCompile(`(?s)\{\{.*?\}\}`), "template injection"},
}

// Phrases that try to override the agent's instructions. Error severity:
// they block only in strict mode.
var overrideChecks = []patternCheck{
	{regexp.MustCompile(`(?i)ignore\s+previous\s+instructions`), "ignore previous instructions"},
	{regexp.MustCompile(`(?i)disregard\s+all\s+previous`), "disregard all previous"},
	{regexp.MustCompile(`(?i)forget\s+everything`), "forget everything"},
	{regexp.MustCompile(`(?i)new\s+instructions`), "new instructions"},
	{regexp.MustCompile(`(?i)system\s+prompt`), "system prompt"},
	{regexp.MustCompile(`(?i)jailbreak`), "jailbreak"},
	{regexp.MustCompile(`(?i)bypass\s+restrictions`), "bypass restrictions"},
}

var (
	profanityPattern  = regexp.MustCompile(`(?i)\b(fuck|shit|damn|bitch|asshole|bastard)\b`)
	specialCharClass  = regexp.MustCompile(`[^a-zA-Z0-9\s.,!?;:\-'"()]`)
	htmlTagPattern    = regexp.MustCompile(`<[^>]+>`)
	whitespaceRun     = regexp.MustCompile(`\s+`)
	sanitizePolicy    = bluemonday.StrictPolicy()
	bracketPairs      = map[rune]rune{'(': ')', '[': ']', '{': '}'}
	closingBrackets   = map[rune]bool{')': true, ']': true, '}': true}
	longLineThreshold = 200
)

// Validate runs every configured check and returns the report. The report
// always carries a sanitized form of the prompt.
func (v *Validator) Validate(text string) Report {
	report := Report{}

	if strings.TrimSpace(text) == "" {
		report.Findings = append(report.Findings, Finding{
			Severity:   SeverityCritical,
			Message:    "Prompt is empty or contains only whitespace",
			Field:      "prompt",
			Suggestion: "Provide a non-empty prompt",
		})
		report.Sanitized = ""
		return report
	}

	v.checkBasic(text, &report)
	v.checkLength(text, &report)
	v.checkTokens(text, &report)
	if v.config.CheckInjections {
		v.checkSecurity(text, &report)
	}
	if !v.config.AllowHTML {
		v.checkHTML(text, &report)
	}
	if !v.config.AllowCode {
		v.checkCode(text, &report)
	}
	if v.config.CheckProfanity {
		v.checkProfanity(text, &report)
	}
	v.checkStructure(text, &report)

	report.Sanitized = v.Sanitize(text)

	hasCritical := len(report.BySeverity(SeverityCritical)) > 0
	report.Valid = !hasCritical && (!v.config.StrictMode || !report.HasErrors())
	return report
}

func (v *Validator) checkBasic(text string, report *Report) {
	if utf8.RuneCountInString(strings.TrimSpace(text)) < v.config.MinLength {
		report.Findings = append(report.Findings, Finding{
			Severity:   SeverityWarning,
			Message:    fmt.Sprintf("Prompt is too short (minimum %d characters)", v.config.MinLength),
			Field:      "prompt",
			Suggestion: fmt.Sprintf("Expand the prompt to at least %d characters", v.config.MinLength),
		})
		return
	}
	report.Findings = append(report.Findings, Finding{
		Passed:   true,
		Severity: SeverityInfo,
		Message:  "Basic validation passed",
	})
}

func (v *Validator) checkLength(text string, report *Report) {
	length := utf8.RuneCountInString(text)
	switch {
	case length > v.config.MaxLength:
		report.Findings = append(report.Findings, Finding{
			Severity:   SeverityError,
			Message:    fmt.Sprintf("Prompt exceeds maximum length (%d > %d)", length, v.config.MaxLength),
			Field:      "prompt",
			Suggestion: fmt.Sprintf("Reduce prompt length to under %d characters", v.config.MaxLength),
		})
	case length*10 > v.config.MaxLength*9:
		report.Findings = append(report.Findings, Finding{
			Passed:     true,
			Severity:   SeverityWarning,
			Message:    fmt.Sprintf("Prompt is close to maximum length (%d/%d)", length, v.config.MaxLength),
			Field:      "prompt",
			Suggestion: "Consider shortening the prompt",
		})
	default:
		report.Findings = append(report.Findings, Finding{
			Passed:   true,
			Severity: SeverityInfo,
			Message:  fmt.Sprintf("Prompt length is acceptable (%d characters)", length),
		})
	}
}

// checkTokens estimates tokens at four characters each, close enough to
// catch prompts that would blow the model context.
func (v *Validator) checkTokens(text string, report *Report) {
	estimated := utf8.RuneCountInString(text) / 4
	report.TokenCount = estimated

	switch {
	case estimated > v.config.MaxTokens:
		report.Findings = append(report.Findings, Finding{
			Severity:   SeverityError,
			Message:    fmt.Sprintf("Estimated token count exceeds limit (%d > %d)", estimated, v.config.MaxTokens),
			Field:      "prompt",
			Suggestion: fmt.Sprintf("Reduce prompt to under %d tokens", v.config.MaxTokens),
		})
	case estimated*10 > v.config.MaxTokens*9:
		report.Findings = append(report.Findings, Finding{
			Passed:   true,
			Severity: SeverityWarning,
			Message:  fmt.Sprintf("Estimated token count is high (%d/%d)", estimated, v.config.MaxTokens),
			Field:    "prompt",
		})
	default:
		report.Findings = append(report.Findings, Finding{
			Passed:   true,
			Severity: SeverityInfo,
			Message:  fmt.Sprintf("Estimated token count: %d", estimated),
		})
	}
}

func (v *Validator) checkSecurity(text string, report *Report) {
	for _, check := range injectionChecks {
		if check.re.MatchString(text) {
			report.Findings = append(report.Findings, Finding{
				Severity:   SeverityCritical,
				Message:    fmt.Sprintf("Potential injection attack detected: %s", check.label),
				Field:      "prompt",
				Suggestion: "Remove suspicious code patterns",
			})
		}
	}

	for _, check := range overrideChecks {
		if check.re.MatchString(text) {
			report.Findings = append(report.Findings, Finding{
				Severity:   SeverityError,
				Message:    fmt.Sprintf("Suspicious pattern detected: %s", check.label),
				Field:      "prompt",
				Suggestion: "Rephrase the prompt to avoid manipulation attempts",
			})
		}
	}

	total := utf8.RuneCountInString(text)
	special := len(specialCharClass.FindAllString(text, -1))
	if total > 0 {
		ratio := float64(special) / float64(total)
		if ratio > 0.3 {
			report.Findings = append(report.Findings, Finding{
				Severity:   SeverityWarning,
				Message:    fmt.Sprintf("High ratio of special characters (%.1f%%)", ratio*100),
				Field:      "prompt",
				Suggestion: "Review for obfuscated content",
			})
		}
	}
}

func (v *Validator) checkHTML(text string, report *Report) {
	tags := htmlTagPattern.FindAllString(text, -1)
	if len(tags) == 0 {
		return
	}
	sample := tags
	if len(sample) > 3 {
		sample = sample[:3]
	}
	report.Findings = append(report.Findings, Finding{
		Severity:   SeverityError,
		Message:    fmt.Sprintf("HTML tags detected but not allowed: %s", strings.Join(sample, ", ")),
		Field:      "prompt",
		Suggestion: "Remove HTML tags or enable allow_html",
	})
}

func (v *Validator) checkCode(text string, report *Report) {
	if strings.Contains(text, "```") {
		report.Findings = append(report.Findings, Finding{
			Severity:   SeverityWarning,
			Message:    "Code block detected but allow_code is disabled",
			Field:      "prompt",
			Suggestion: "Remove fenced code blocks or enable allow_code",
		})
	}
}

func (v *Validator) checkProfanity(text string, report *Report) {
	matches := profanityPattern.FindAllString(text, -1)
	if len(matches) > 0 {
		report.Findings = append(report.Findings, Finding{
			Severity:   SeverityWarning,
			Message:    fmt.Sprintf("Profanity detected: %d occurrence(s)", len(matches)),
			Field:      "prompt",
			Suggestion: "Remove inappropriate language",
		})
	}
}

func (v *Validator) checkStructure(text string, report *Report) {
	var stack []rune
	balanced := true
	for _, ch := range text {
		if _, opens := bracketPairs[ch]; opens {
			stack = append(stack, ch)
			continue
		}
		if closingBrackets[ch] {
			if len(stack) == 0 || bracketPairs[stack[len(stack)-1]] != ch {
				report.Findings = append(report.Findings, Finding{
					Severity:   SeverityWarning,
					Message:    "Unbalanced brackets detected",
					Field:      "prompt",
					Suggestion: "Check for matching brackets",
				})
				balanced = false
				break
			}
			stack = stack[:len(stack)-1]
		}
	}
	if balanced && len(stack) > 0 {
		report.Findings = append(report.Findings, Finding{
			Severity:   SeverityWarning,
			Message:    "Unclosed brackets detected",
			Field:      "prompt",
			Suggestion: "Ensure all brackets are properly closed",
		})
	}

	longLines := 0
	for _, line := range strings.Split(text, "\n") {
		if utf8.RuneCountInString(line) > longLineThreshold {
			longLines++
		}
	}
	if longLines > 0 {
		report.Findings = append(report.Findings, Finding{
			Passed:     true,
			Severity:   SeverityInfo,
			Message:    fmt.Sprintf("Prompt contains %d long line(s)", longLines),
			Field:      "prompt",
			Suggestion: "Consider breaking long lines for readability",
		})
	}
}

// Sanitize strips HTML, collapses whitespace runs, and trims the result.
func (v *Validator) Sanitize(text string) string {
	s := text
	if !v.config.AllowHTML {
		s = sanitizePolicy.Sanitize(s)
	}
	s = whitespaceRun.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}
