package logging

import (
	"context"
	"log/slog"
	"testing"
)

func TestNewHandlerSelectsFormat(t *testing.T) {
	if _, ok := newHandler("production").(*slog.JSONHandler); !ok {
		t.Errorf("expected JSON handler in production")
	}
	if _, ok := newHandler("PRODUCTION").(*slog.JSONHandler); !ok {
		t.Errorf("expected environment match to be case-insensitive")
	}
	if _, ok := newHandler("development").(*slog.TextHandler); !ok {
		t.Errorf("expected text handler outside production")
	}
}

func TestWithToolKeepsRunFields(t *testing.T) {
	logger := WithTool(WithRun("run-1", "session-1"), "execute_query", "call-1")
	if logger == nil {
		t.Fatal("expected logger")
	}
	if !logger.Handler().Enabled(context.Background(), slog.LevelError) {
		t.Errorf("expected error level to be enabled")
	}
}
