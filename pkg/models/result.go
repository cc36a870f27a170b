package models

import "time"

// RunStatus classifies the outcome of one automation run.
type RunStatus string

const (
	// StatusSuccess means the loop completed and every navigate, click and
	// type action succeeded.
	StatusSuccess RunStatus = "success"
	// StatusFailed means a critical tool action failed or the iteration
	// ceiling was reached before completion.
	StatusFailed RunStatus = "failed"
	// StatusError means the run aborted before completion, typically on a
	// model transport failure.
	StatusError RunStatus = "error"
)

// ElementRecord describes one interactive element observed on a page.
// DependsOn is always empty in this design; it is reserved for downstream
// enrichment.
type ElementRecord struct {
	ID        string   `json:"id"`
	Type      string   `json:"type"`
	Tag       string   `json:"tag"`
	Text      string   `json:"text"`
	ElementID string   `json:"element_id,omitempty"`
	Name      string   `json:"name,omitempty"`
	Class     string   `json:"class,omitempty"`
	Href      string   `json:"href,omitempty"`
	InputType string   `json:"input_type,omitempty"`
	DependsOn []string `json:"depends_on"`
}

// ElementKind maps an HTML tag to the element kind used in records and
// transcripts. Unrecognized tags pass through unchanged.
func ElementKind(tag string) string {
	switch tag {
	case "a":
		return "link"
	case "button", "input", "form", "select", "textarea":
		return tag
	default:
		return tag
	}
}

// PageMetadata holds the URL, title and key elements of one visited page.
type PageMetadata struct {
	URL         string          `json:"url"`
	Title       string          `json:"title"`
	KeyElements []ElementRecord `json:"key_elements"`
}

// PageNode is one node of the extracted navigation graph. Coordinates are
// hints for downstream visualization.
type PageNode struct {
	ID       string       `json:"id"`
	Label    string       `json:"label"`
	X        int          `json:"x"`
	Y        int          `json:"y"`
	Metadata PageMetadata `json:"metadata"`
}

// Edge is a directed, labelled transition between two page nodes.
type Edge struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Label  string `json:"label"`
}

// ExecutionResult is the outcome record returned to the caller after one run.
// StepsExecuted counts successful tool executions; AgentOutput is the full
// raw transcript text.
type ExecutionResult struct {
	TestID        string     `json:"test_id"`
	Status        RunStatus  `json:"status"`
	ExecutionTime float64    `json:"execution_time"`
	StepsExecuted int        `json:"steps_executed"`
	AgentOutput   string     `json:"agent_output"`
	Pages         []PageNode `json:"pages"`
	Edges         []Edge     `json:"edges"`
	Screenshots   []string   `json:"screenshots"`
	ErrorMessage  string     `json:"error_message,omitempty"`
	ExecutedAt    time.Time  `json:"executed_at"`
}
