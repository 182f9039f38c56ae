// Package session holds the protocol-agnostic conversation types shared by
// every backend adapter and the agent loop, plus the in-memory history the
// agent appends to for the life of the process.
package session

// Roles a Message may carry. Adapters translate these into whatever their
// backend's wire format calls them.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
	RoleTool      = "tool"
)

// ToolCall is a model-requested tool invocation. ID is the backend-assigned
// correlation token; backends without a call-id concept leave it empty and
// correlate results by tool name instead. Args is always a fully parsed
// key/value map by the time a ToolCall leaves an adapter, never a raw JSON
// string.
type ToolCall struct {
	ID   string                 `json:"id,omitempty"`
	Name string                 `json:"name"`
	Args map[string]interface{} `json:"args,omitempty"`
}

// ToolResult is the outcome of one tool invocation.
type ToolResult struct {
	ToolCallID string `json:"tool_call_id,omitempty"`
	ToolName   string `json:"tool_name"`
	Content    string `json:"content"`
}

// Message is one entry in the conversation. Messages are immutable once
// appended to a History.
//
// A tool-role message carries either the batched ToolResults list or, in the
// legacy single-result form, a ToolCallID/ToolName pair with the result text
// in Content. Whether results are sent batched or one-per-message on the
// wire is each adapter's decision, not the caller's.
type Message struct {
	Role        string       `json:"role"`
	Content     string       `json:"content,omitempty"`
	ToolCalls   []ToolCall   `json:"tool_calls,omitempty"`
	ToolResults []ToolResult `json:"tool_results,omitempty"`
	ToolCallID  string       `json:"tool_call_id,omitempty"`
	ToolName    string       `json:"tool_name,omitempty"`
	Images      [][]byte     `json:"images,omitempty"`
}

// UserMessage builds a plain user turn.
func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// AssistantMessage builds an assistant turn with any tool calls the model
// requested.
func AssistantMessage(content string, calls []ToolCall) Message {
	return Message{Role: RoleAssistant, Content: content, ToolCalls: calls}
}

// ToolResultsMessage builds a tool turn batching all results for one model
// turn.
func ToolResultsMessage(results []ToolResult) Message {
	return Message{Role: RoleTool, ToolResults: results}
}

// Results returns the tool results carried by a tool-role message, accepting
// both the batched list and the legacy single-result form.
func (m Message) Results() []ToolResult {
	if len(m.ToolResults) > 0 {
		return m.ToolResults
	}
	if m.ToolCallID != "" || m.ToolName != "" {
		return []ToolResult{{ToolCallID: m.ToolCallID, ToolName: m.ToolName, Content: m.Content}}
	}
	return nil
}
