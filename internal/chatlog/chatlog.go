// Package chatlog persists one record per answered question and per user vote.
package chatlog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"procurement/internal/models"
)

// Record is one logged interaction
type Record struct {
	InteractionID string            `json:"interaction_id" bson:"interaction_id"`
	SessionID     string            `json:"session_id" bson:"session_id"`
	Timestamp     time.Time         `json:"timestamp" bson:"timestamp"`
	Model         string            `json:"model" bson:"model"`
	UserQuery     string            `json:"user_query" bson:"user_query"`
	ToolsUsed     []string          `json:"tools_used" bson:"tools_used"`
	Response      string            `json:"response" bson:"response"`
	UserFeedback  models.Feedback   `json:"user_feedback" bson:"user_feedback"`
	TokenCount    models.TokenUsage `json:"token_count" bson:"token_count"`
}

// toolsJSON renders tools_used the way flat sinks store it
func (r Record) toolsJSON() string {
	tools := r.ToolsUsed
	if tools == nil {
		tools = []string{}
	}
	data, _ := json.Marshal(tools)
	return string(data)
}

func (r Record) tokenJSON() string {
	data, _ := json.Marshal(r.TokenCount)
	return string(data)
}

// Sink stores records
type Sink interface {
	Name() string
	Write(ctx context.Context, rec Record) error
	Close() error
}

// NewSessionID returns a fresh session identifier
func NewSessionID() string {
	return uuid.New().String()
}

// Logger writes records to its sinks. When a sink fails, the record is
// written to the CSV fallback instead so no interaction is lost.
type Logger struct {
	enabled  bool
	sinks    []Sink
	fallback Sink
}

// NewLogger builds a logger. fallback may be nil when no CSV path is configured.
func NewLogger(enabled bool, fallback Sink, sinks ...Sink) *Logger {
	return &Logger{enabled: enabled, sinks: sinks, fallback: fallback}
}

// Disabled returns a logger that drops every record
func Disabled() *Logger {
	return &Logger{}
}

// Enabled reports whether records are written at all
func (l *Logger) Enabled() bool {
	return l != nil && l.enabled
}

// SinkNames lists the configured sinks, fallback last
func (l *Logger) SinkNames() []string {
	var names []string
	for _, s := range l.sinks {
		names = append(names, s.Name())
	}
	if l.fallback != nil {
		names = append(names, l.fallback.Name())
	}
	return names
}

// Log stores rec. It fills in missing identifiers and the timestamp.
func (l *Logger) Log(ctx context.Context, rec Record) error {
	if !l.Enabled() {
		return nil
	}
	if rec.InteractionID == "" {
		rec.InteractionID = uuid.New().String()
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}
	if rec.UserFeedback == "" {
		rec.UserFeedback = models.FeedbackNone
	}

	failed := len(l.sinks) == 0
	for _, sink := range l.sinks {
		if err := sink.Write(ctx, rec); err != nil {
			log.Printf("⚠️ [CHATLOG] %s sink failed: %v. Falling back to CSV.", sink.Name(), err)
			failed = true
			continue
		}
		log.Printf("✅ [CHATLOG] Logged to %s: %s", sink.Name(), rec.SessionID)
	}

	if !failed {
		return nil
	}
	if l.fallback == nil {
		return errors.New("chat log sink failed and no fallback is configured")
	}
	if err := l.fallback.Write(ctx, rec); err != nil {
		return fmt.Errorf("failed to log interaction: %w", err)
	}
	return nil
}

// Close closes every sink
func (l *Logger) Close() error {
	if l == nil {
		return nil
	}
	var errs []error
	for _, s := range l.sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
		}
	}
	if l.fallback != nil {
		if err := l.fallback.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
