package session

import (
	"time"

	"github.com/google/uuid"
)

// Role identifies the author of a conversation message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleTool      Role = "tool"
)

// Message is one turn in a conversation. Assistant messages may carry tool
// calls; a tool message carries exactly one result answering a call issued
// by a prior assistant message in the same window.
type Message struct {
	Role        Role         `json:"role"`
	Content     string       `json:"content"`
	Timestamp   time.Time    `json:"timestamp"`
	AgentID     string       `json:"agent_id,omitempty"`
	ToolCalls   []ToolCall   `json:"tool_calls,omitempty"`
	ToolResults []ToolResult `json:"tool_results,omitempty"`
}

// ToolCall is a model-issued request to invoke a named tool. The ID is
// opaque and unique within a turn; backends that do not issue ids get a
// synthesized one.
type ToolCall struct {
	ID   string                 `json:"id"`
	Name string                 `json:"name"`
	Args map[string]interface{} `json:"args"`
}

// ToolResult is the contained outcome of one tool call. Output is set only
// on success, Error only on failure; the constructors below keep that
// invariant.
type ToolResult struct {
	ToolCallID string `json:"tool_call_id"`
	Success    bool   `json:"success"`
	Output     string `json:"output,omitempty"`
	Error      string `json:"error,omitempty"`
}

// NewMessage creates a timestamped message.
func NewMessage(role Role, content string) Message {
	return Message{Role: role, Content: content, Timestamp: time.Now()}
}

// NewToolCall creates a tool call with a fresh id.
func NewToolCall(name string, args map[string]interface{}) ToolCall {
	return ToolCall{ID: uuid.NewString(), Name: name, Args: args}
}

// SucceededResult builds a successful ToolResult.
func SucceededResult(toolCallID, output string) ToolResult {
	return ToolResult{ToolCallID: toolCallID, Success: true, Output: output}
}

// FailedResult builds a failed ToolResult.
func FailedResult(toolCallID, errMsg string) ToolResult {
	return ToolResult{ToolCallID: toolCallID, Success: false, Error: errMsg}
}

// ToolMessage builds the tool-role message answering one call. Content
// mirrors the result payload so backends that thread results as plain text
// see the same information.
func ToolMessage(result ToolResult) Message {
	content := result.Output
	if !result.Success {
		content = result.Error
	}
	msg := NewMessage(RoleTool, content)
	msg.ToolResults = []ToolResult{result}
	return msg
}

// Window returns the trailing n messages, oldest first. It returns the
// input slice unchanged when it already fits. Cutting the slice can sever
// a tool-result turn from the assistant turn that issued its call, so
// leading tool messages are dropped until the window opens on a turn that
// stands on its own; backends reject a tool result whose call id no
// message in the request issued.
func Window(messages []Message, n int) []Message {
	if n <= 0 {
		return nil
	}
	if len(messages) <= n {
		return messages
	}
	out := messages[len(messages)-n:]
	for len(out) > 0 && out[0].Role == RoleTool {
		out = out[1:]
	}
	return out
}
