package agent

import (
	"fmt"

	"procurement/internal/llm"
)

// Conversation is the message log of one run. It tracks the tool calls of
// the latest assistant turn that still wait for their observation.
type Conversation struct {
	messages []llm.Message
	pending  []llm.ToolCall
}

func newConversation(systemPrompt, question string) *Conversation {
	return &Conversation{
		messages: []llm.Message{
			llm.SystemMessage{Content: systemPrompt},
			llm.UserMessage{Content: question},
		},
	}
}

// Messages returns a copy of the log for a model call. It fails while
// observations are still owed.
func (c *Conversation) Messages() ([]llm.Message, error) {
	if len(c.pending) > 0 {
		return nil, fmt.Errorf("%d tool call(s) still waiting for an observation", len(c.pending))
	}
	out := make([]llm.Message, len(c.messages))
	copy(out, c.messages)
	return out, nil
}

// AppendAssistant records a model turn and the calls it requests.
func (c *Conversation) AppendAssistant(resp *llm.Response) {
	calls := append([]llm.ToolCall(nil), resp.ToolCalls...)
	c.messages = append(c.messages, llm.AssistantMessage{
		Content:   resp.Content,
		ToolCalls: calls,
	})
	c.pending = calls
}

// AppendObservation records the result of the next pending call.
func (c *Conversation) AppendObservation(call llm.ToolCall, content string) error {
	if len(c.pending) == 0 || c.pending[0].ID != call.ID {
		return fmt.Errorf("observation for %s (%s) is out of order", call.Name, call.ID)
	}
	c.pending = c.pending[1:]
	c.messages = append(c.messages, llm.ToolMessage{
		CallID:  call.ID,
		Name:    call.Name,
		Content: content,
	})
	return nil
}

// Pending returns the calls still waiting for an observation
func (c *Conversation) Pending() []llm.ToolCall {
	return append([]llm.ToolCall(nil), c.pending...)
}

// Len returns the number of messages
func (c *Conversation) Len() int {
	return len(c.messages)
}
