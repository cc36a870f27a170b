package agent

import (
	"strings"

	"github.com/haasonsaas/webpilot/pkg/models"
)

// Transcript accumulates the conversation for one run: the system prompt,
// the task, every assistant reply, and the combined tool-outcome messages.
type Transcript struct {
	messages []models.Message
}

// NewTranscript seeds a transcript with the system prompt and the task.
func NewTranscript(system, task string) *Transcript {
	return &Transcript{messages: []models.Message{
		models.SystemMessage(system),
		models.UserMessage(task),
	}}
}

// Append adds a message to the transcript.
func (t *Transcript) Append(msg models.Message) {
	t.messages = append(t.messages, msg)
}

// Messages returns a copy of the conversation in order.
func (t *Transcript) Messages() []models.Message {
	out := make([]models.Message, len(t.messages))
	copy(out, t.messages)
	return out
}

// Len reports the number of messages.
func (t *Transcript) Len() int {
	return len(t.messages)
}

// Last returns the final message, if any.
func (t *Transcript) Last() (models.Message, bool) {
	if len(t.messages) == 0 {
		return models.Message{}, false
	}
	return t.messages[len(t.messages)-1], true
}

// ToolOutcomes joins the contents of the tool-outcome messages in order.
// This is the text the transcript scanner consumes.
func (t *Transcript) ToolOutcomes() string {
	var parts []string
	for _, msg := range t.messages {
		if msg.ToolOutput {
			parts = append(parts, msg.Content)
		}
	}
	return strings.Join(parts, "\n\n")
}

// Text renders the whole transcript, message contents in order separated by
// blank lines. The system prompt is excluded.
func (t *Transcript) Text() string {
	var parts []string
	for _, msg := range t.messages {
		if msg.Role == models.RoleSystem {
			continue
		}
		parts = append(parts, msg.Content)
	}
	return strings.Join(parts, "\n\n")
}
