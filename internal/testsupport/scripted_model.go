// Package testsupport holds deterministic doubles for the model and the
// document store.
package testsupport

import (
	"context"
	"fmt"
	"sync"

	"procurement/internal/llm"
)

// Step configures one model turn in a scripted sequence.
type Step struct {
	Response llm.Response
	Err      error
	Panic    interface{}
}

// Answer is a final answer with no tool calls.
func Answer(content string, input, output int) Step {
	return Step{Response: llm.Response{
		Content: content,
		Usage:   llm.Usage{InputTokens: input, OutputTokens: output},
	}}
}

// Calls is a turn requesting the given tool calls.
func Calls(input, output int, calls ...llm.ToolCall) Step {
	return Step{Response: llm.Response{
		ToolCalls: calls,
		Usage:     llm.Usage{InputTokens: input, OutputTokens: output},
	}}
}

// Call builds a tool call.
func Call(id, name string, args map[string]interface{}) llm.ToolCall {
	if args == nil {
		args = map[string]interface{}{}
	}
	return llm.ToolCall{ID: id, Name: name, Arguments: args}
}

// ScriptedModel replays steps in order and records every request.
// When Repeat is set, the last step is replayed once the script runs out.
type ScriptedModel struct {
	mu       sync.Mutex
	index    int
	steps    []Step
	requests [][]llm.Message
	tools    [][]llm.ToolDefinition
	Repeat   bool
}

func NewScriptedModel(steps ...Step) *ScriptedModel {
	cloned := make([]Step, len(steps))
	copy(cloned, steps)
	return &ScriptedModel{steps: cloned}
}

var _ llm.Model = (*ScriptedModel)(nil)

func (m *ScriptedModel) Invoke(_ context.Context, messages []llm.Message, tools []llm.ToolDefinition) (*llm.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := make([]llm.Message, len(messages))
	copy(snapshot, messages)
	m.requests = append(m.requests, snapshot)
	m.tools = append(m.tools, tools)

	if m.index >= len(m.steps) {
		if !m.Repeat || len(m.steps) == 0 {
			return nil, fmt.Errorf("script exhausted at step %d", m.index+1)
		}
		m.index = len(m.steps) - 1
	}
	current := m.steps[m.index]
	m.index++

	if current.Panic != nil {
		panic(current.Panic)
	}
	if current.Err != nil {
		return nil, current.Err
	}
	resp := current.Response
	resp.ToolCalls = append([]llm.ToolCall(nil), current.Response.ToolCalls...)
	return &resp, nil
}

// Requests returns the conversations the model was called with.
func (m *ScriptedModel) Requests() [][]llm.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]llm.Message(nil), m.requests...)
}

// Tools returns the tool definitions bound on each call.
func (m *ScriptedModel) Tools() [][]llm.ToolDefinition {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]llm.ToolDefinition(nil), m.tools...)
}

// CallCount returns how many times Invoke ran.
func (m *ScriptedModel) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}
