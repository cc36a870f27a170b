package models

// Role indicates the message author type.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one entry in a run transcript. Tool outcomes are carried as
// user-role messages so the model observes them on its next turn; ToolOutput
// marks them for post-processing without changing their wire role.
type Message struct {
	Role       Role   `json:"role"`
	Content    string `json:"content"`
	ToolOutput bool   `json:"tool_output,omitempty"`
}

// SystemMessage builds a system-role message.
func SystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// UserMessage builds a user-role message.
func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// AssistantMessage builds an assistant-role message.
func AssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}

// ToolOutputMessage builds the combined tool-results message for one turn.
// It is user-role on the wire.
func ToolOutputMessage(content string) Message {
	return Message{Role: RoleUser, Content: content, ToolOutput: true}
}
