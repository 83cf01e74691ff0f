package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"procurement/internal/agent"
	"procurement/internal/chatlog"
	"procurement/internal/models"
)

var (
	ErrEmptyQuestion       = errors.New("question is required")
	ErrInvalidFeedback     = errors.New("feedback must be upvote, downvote or NA")
	ErrInteractionNotFound = errors.New("interaction not found in session history")
)

// Runner answers questions
type Runner interface {
	ProcessQuery(ctx context.Context, question string) models.AgentRunResult
	MaxIterations() int
	WebSearchEnabled() bool
}

// Pinger reports store connectivity
type Pinger interface {
	Ping(ctx context.Context) error
}

// AssistantConfig describes the model and tools behind the assistant
type AssistantConfig struct {
	Provider string
	Model    string
	Tools    []string
}

// AskResponse is the result of one question
type AskResponse struct {
	SessionID     string                `json:"session_id"`
	InteractionID string                `json:"interaction_id"`
	Result        models.AgentRunResult `json:"result"`
}

// AssistantService runs questions for sessions and records what happened
type AssistantService struct {
	runner   Runner
	sessions SessionStore
	chatLog  *chatlog.Logger
	metrics  *Metrics
	store    Pinger
	cfg      AssistantConfig

	totalQueries atomic.Int64
}

// NewAssistantService wires the assistant. chatLog, metrics and store may be nil.
func NewAssistantService(runner Runner, sessions SessionStore, chatLog *chatlog.Logger, metrics *Metrics, store Pinger, cfg AssistantConfig) *AssistantService {
	if chatLog == nil {
		chatLog = chatlog.Disabled()
	}
	return &AssistantService{
		runner:   runner,
		sessions: sessions,
		chatLog:  chatLog,
		metrics:  metrics,
		store:    store,
		cfg:      cfg,
	}
}

// Ask answers question within a session. An empty sessionID starts a new session.
func (s *AssistantService) Ask(ctx context.Context, sessionID, question string) (*AskResponse, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, ErrEmptyQuestion
	}
	if sessionID == "" {
		sessionID = chatlog.NewSessionID()
	}
	interactionID := uuid.New().String()

	result := s.runner.ProcessQuery(agent.ContextWithSession(ctx, sessionID), question)
	s.totalQueries.Add(1)
	s.metrics.RecordRun(result)

	entry := models.HistoryEntry{
		InteractionID: interactionID,
		Timestamp:     time.Now().UTC(),
		Question:      question,
		Response:      result.Response,
		ToolsUsed:     result.ToolsUsed,
		Iterations:    result.Iterations,
		Success:       result.Success,
		TokenUsage:    result.TokenUsage,
	}
	if err := s.sessions.Append(ctx, sessionID, entry); err != nil {
		log.Printf("⚠️ [ASSISTANT] Failed to save history for session %s: %v", sessionID, err)
	}

	if err := s.chatLog.Log(ctx, chatlog.Record{
		InteractionID: interactionID,
		SessionID:     sessionID,
		Timestamp:     entry.Timestamp,
		Model:         s.cfg.Model,
		UserQuery:     question,
		ToolsUsed:     result.ToolsUsed,
		Response:      result.Response,
		UserFeedback:  models.FeedbackNone,
		TokenCount:    result.TokenUsage,
	}); err != nil {
		log.Printf("⚠️ [ASSISTANT] Failed to log interaction: %v", err)
	}

	return &AskResponse{
		SessionID:     sessionID,
		InteractionID: interactionID,
		Result:        result,
	}, nil
}

// Feedback records a vote on an earlier answer. The vote is logged as a new
// record carrying the original interaction's question and answer.
func (s *AssistantService) Feedback(ctx context.Context, sessionID, interactionID, vote string) error {
	feedback, ok := models.ParseFeedback(vote)
	if !ok {
		return ErrInvalidFeedback
	}

	history, err := s.sessions.List(ctx, sessionID)
	if err != nil {
		return err
	}
	var entry *models.HistoryEntry
	for i := range history {
		if history[i].InteractionID == interactionID {
			entry = &history[i]
			break
		}
	}
	if entry == nil {
		return ErrInteractionNotFound
	}

	if err := s.chatLog.Log(ctx, chatlog.Record{
		InteractionID: interactionID,
		SessionID:     sessionID,
		Model:         s.cfg.Model,
		UserQuery:     entry.Question,
		ToolsUsed:     entry.ToolsUsed,
		Response:      entry.Response,
		UserFeedback:  feedback,
		TokenCount:    entry.TokenUsage,
	}); err != nil {
		return fmt.Errorf("failed to record feedback: %w", err)
	}
	log.Printf("👍 [ASSISTANT] Recorded %s for interaction %s", feedback, interactionID)
	return nil
}

// History returns the session's recent interactions, oldest first
func (s *AssistantService) History(ctx context.Context, sessionID string) ([]models.HistoryEntry, error) {
	return s.sessions.List(ctx, sessionID)
}

// ClearHistory forgets the session's interactions
func (s *AssistantService) ClearHistory(ctx context.Context, sessionID string) error {
	return s.sessions.Clear(ctx, sessionID)
}

// Info describes the running assistant
func (s *AssistantService) Info(ctx context.Context) models.AgentInfo {
	connected := false
	if s.store != nil {
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		connected = s.store.Ping(pingCtx) == nil
		cancel()
	}
	return models.AgentInfo{
		Provider:         s.cfg.Provider,
		Model:            s.cfg.Model,
		MaxIterations:    s.runner.MaxIterations(),
		WebSearchEnabled: s.runner.WebSearchEnabled(),
		Tools:            s.cfg.Tools,
		MongoConnected:   connected,
		TotalQueries:     s.totalQueries.Load(),
	}
}
