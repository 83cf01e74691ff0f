// Package agent runs the procurement reasoning loop: the model decides which
// tool to call, the loop dispatches it and feeds the observation back until
// the model answers or the iteration cap is reached.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"procurement/internal/llm"
	"procurement/internal/logging"
	"procurement/internal/models"
)

// DefaultMaxIterations bounds the number of model calls in one run
const DefaultMaxIterations = 8

// Dispatcher executes tool calls on behalf of the loop
type Dispatcher interface {
	Definitions() []llm.ToolDefinition
	WebSearchEnabled() bool
	Dispatch(ctx context.Context, call llm.ToolCall) string
}

// Agent is the reasoning loop controller. It holds no per-run state and may
// serve concurrent ProcessQuery calls.
type Agent struct {
	model         llm.Model
	tools         Dispatcher
	maxIterations int
	systemPrompt  string
	now           func() time.Time
}

// Option configures an Agent
type Option func(*Agent)

// WithMaxIterations overrides the iteration cap. Non-positive values keep the default.
func WithMaxIterations(n int) Option {
	return func(a *Agent) {
		if n > 0 {
			a.maxIterations = n
		}
	}
}

// WithSystemPrompt replaces the generated instructions
func WithSystemPrompt(prompt string) Option {
	return func(a *Agent) {
		if prompt != "" {
			a.systemPrompt = prompt
		}
	}
}

// New builds an agent over a model and its tools.
func New(model llm.Model, tools Dispatcher, opts ...Option) (*Agent, error) {
	if model == nil {
		return nil, errors.New("model is required")
	}
	if tools == nil {
		return nil, errors.New("tool dispatcher is required")
	}

	a := &Agent{
		model:         model,
		tools:         tools,
		maxIterations: DefaultMaxIterations,
		systemPrompt:  SystemPrompt(tools.WebSearchEnabled()),
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// MaxIterations returns the configured iteration cap
func (a *Agent) MaxIterations() int {
	return a.maxIterations
}

// WebSearchEnabled reports whether search_web is bound for runs
func (a *Agent) WebSearchEnabled() bool {
	return a.tools.WebSearchEnabled()
}

type sessionKey struct{}

// ContextWithSession tags runs started with ctx with a session ID for logging.
func ContextWithSession(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, sessionKey{}, sessionID)
}

func sessionFromContext(ctx context.Context) string {
	id, _ := ctx.Value(sessionKey{}).(string)
	return id
}

// run is the mutable state of one ProcessQuery call
type run struct {
	logger       *slog.Logger
	state        State
	conversation *Conversation
	iterations   int
	toolsUsed    []string
	usage        models.TokenUsage
	answer       string
}

// ProcessQuery answers one question. It never panics and never returns an
// error: failures are reported through the result's Success and Error fields.
func (a *Agent) ProcessQuery(ctx context.Context, question string) (result models.AgentRunResult) {
	start := a.now()
	r := &run{
		logger:       logging.WithRun(uuid.New().String(), sessionFromContext(ctx)),
		state:        StateThinking,
		conversation: newConversation(a.systemPrompt, question),
		toolsUsed:    []string{},
	}

	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("❌ [AGENT] Recovered from panic: %v", rec)
			result = a.failed(r, question, fmt.Errorf("internal error: %v", rec), start)
		}
	}()

	log.Printf("🤖 [AGENT] Starting reasoning loop for: %s", question)

	if err := a.loop(ctx, r); err != nil {
		r.logger.Error("agent run failed", "error", err, "iterations", r.iterations)
		return a.failed(r, question, err, start)
	}

	response := r.answer
	if r.state == StateExhausted {
		log.Printf("⚠️ [AGENT] Hit max iterations (%d)", a.maxIterations)
		response = exhaustedResponse(a.maxIterations, r.toolsUsed)
	}

	r.logger.Info("agent run finished",
		"state", r.state.String(),
		"iterations", r.iterations,
		"tools_used", r.toolsUsed,
		"total_tokens", r.usage.Total,
	)

	return models.AgentRunResult{
		Success:       true,
		Question:      question,
		Response:      response,
		Iterations:    r.iterations,
		ToolsUsed:     r.toolsUsed,
		ExecutionTime: a.now().Sub(start).Seconds(),
		TokenUsage:    r.usage,
		Exhausted:     r.state == StateExhausted,
	}
}

func (a *Agent) loop(ctx context.Context, r *run) error {
	definitions := a.tools.Definitions()

	for !r.state.Terminal() {
		var err error
		switch r.state {
		case StateThinking:
			if r.iterations >= a.maxIterations {
				r.state, err = transition(r.state, StateExhausted)
				break
			}
			r.state, err = a.think(ctx, r, definitions)
		case StateActing:
			a.act(ctx, r)
			next := StateThinking
			if r.iterations >= a.maxIterations {
				next = StateExhausted
			}
			r.state, err = transition(r.state, next)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// think makes one model call and decides whether the run is done.
func (a *Agent) think(ctx context.Context, r *run, definitions []llm.ToolDefinition) (State, error) {
	r.iterations++
	log.Printf("🔄 [AGENT] Iteration %d/%d", r.iterations, a.maxIterations)

	messages, err := r.conversation.Messages()
	if err != nil {
		return r.state, err
	}

	resp, err := a.model.Invoke(ctx, messages, definitions)
	if err != nil {
		return r.state, fmt.Errorf("model invocation failed: %w", err)
	}

	r.conversation.AppendAssistant(resp)
	r.usage.Add(resp.Usage.InputTokens, resp.Usage.OutputTokens)
	r.logger.Debug("model turn",
		"iteration", r.iterations,
		"input_tokens", resp.Usage.InputTokens,
		"output_tokens", resp.Usage.OutputTokens,
		"tool_calls", len(resp.ToolCalls),
	)

	if len(resp.ToolCalls) == 0 {
		r.answer = resp.Content
		log.Printf("✅ [AGENT] Final answer after %d iteration(s)", r.iterations)
		return transition(r.state, StateDone)
	}
	if resp.Content != "" {
		log.Printf("💭 [AGENT] Thinking: %.100s", resp.Content)
	}
	return transition(r.state, StateActing)
}

// act dispatches the pending calls one at a time, in the order the model gave them.
func (a *Agent) act(ctx context.Context, r *run) {
	for _, call := range r.conversation.Pending() {
		toolLog := logging.WithTool(r.logger, call.Name, call.ID)
		log.Printf("🔧 [AGENT] Calling tool: %s", call.Name)
		r.toolsUsed = append(r.toolsUsed, call.Name)

		started := time.Now()
		observation := a.tools.Dispatch(ctx, call)
		toolLog.Debug("tool observed", "elapsed", time.Since(started), "bytes", len(observation))
		log.Printf("👀 [AGENT] Observing: %.150s", observation)

		// calls are replayed in pending order
		_ = r.conversation.AppendObservation(call, observation)
	}
}

func (a *Agent) failed(r *run, question string, err error, start time.Time) models.AgentRunResult {
	return models.AgentRunResult{
		Success:       false,
		Question:      question,
		Response:      errorResponse(question, err.Error()),
		Iterations:    r.iterations,
		ToolsUsed:     r.toolsUsed,
		ExecutionTime: a.now().Sub(start).Seconds(),
		TokenUsage:    r.usage,
		Error:         err.Error(),
	}
}
