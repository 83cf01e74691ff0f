package logging

import (
	"log/slog"
	"os"
	"strings"
)

// Init configures the global slog logger.
// In production (ENVIRONMENT=production) it uses JSON output for log aggregation.
// Otherwise it uses the human-readable text handler.
func Init() {
	slog.SetDefault(slog.New(newHandler(os.Getenv("ENVIRONMENT"))))
}

func newHandler(env string) slog.Handler {
	if strings.EqualFold(env, "production") {
		return slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})
	}
	return slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug})
}

// WithRun returns a logger carrying the identifiers of one question run.
func WithRun(runID, sessionID string) *slog.Logger {
	return slog.With(
		"run_id", runID,
		"session_id", sessionID,
	)
}

// WithTool scopes a run logger to a single tool invocation.
func WithTool(logger *slog.Logger, tool, callID string) *slog.Logger {
	return logger.With(
		"tool", tool,
		"call_id", callID,
	)
}
