package llm

import "context"

// Role identifies the author of a conversation message
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is one entry of a conversation.
// The set of implementations is closed: SystemMessage, UserMessage,
// AssistantMessage and ToolMessage.
type Message interface {
	Role() Role
	isMessage()
}

// SystemMessage carries the instructions for the run
type SystemMessage struct {
	Content string
}

// UserMessage carries the user's question
type UserMessage struct {
	Content string
}

// AssistantMessage is a model turn, optionally requesting tool calls
type AssistantMessage struct {
	Content   string
	ToolCalls []ToolCall
}

// ToolMessage is the observation for exactly one tool call
type ToolMessage struct {
	CallID  string
	Name    string
	Content string
}

func (SystemMessage) Role() Role    { return RoleSystem }
func (UserMessage) Role() Role      { return RoleUser }
func (AssistantMessage) Role() Role { return RoleAssistant }
func (ToolMessage) Role() Role      { return RoleTool }

func (SystemMessage) isMessage()    {}
func (UserMessage) isMessage()      {}
func (AssistantMessage) isMessage() {}
func (ToolMessage) isMessage()      {}

// ToolCall is a model request to invoke a named tool
type ToolCall struct {
	ID        string
	Name      string
	Arguments map[string]interface{}
	// RawArguments is the sanitized argument JSON as it will be echoed back to the provider
	RawArguments string
	// ExtraContent carries provider metadata (Gemini thought_signature) that must be echoed back
	ExtraContent map[string]interface{}
}

// ToolDefinition describes a tool the model may call
type ToolDefinition struct {
	Name        string
	Description string
	Parameters  map[string]interface{}
}

// Usage is the token accounting reported for one model call
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// Response is the decoded result of one model call
type Response struct {
	Content      string
	ToolCalls    []ToolCall
	Usage        Usage
	FinishReason string
}

// Model is the chat model the agent talks to
type Model interface {
	Invoke(ctx context.Context, messages []Message, tools []ToolDefinition) (*Response, error)
}
