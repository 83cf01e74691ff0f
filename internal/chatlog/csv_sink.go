package chatlog

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// csvColumns is the column order of the CSV log
var csvColumns = []string{
	"session_id",
	"timestamp",
	"model",
	"user_query",
	"tools_used",
	"response",
	"user_feedback",
	"token_count",
	"interaction_id",
}

// CSVSink appends records to a local CSV file, writing the header when the
// file is new.
type CSVSink struct {
	mu   sync.Mutex
	path string
}

func NewCSVSink(path string) *CSVSink {
	return &CSVSink{path: path}
}

func (s *CSVSink) Name() string { return "csv" }

// Path returns the file records are appended to
func (s *CSVSink) Path() string { return s.path }

func (s *CSVSink) Write(_ context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create log directory: %w", err)
		}
	}

	needsHeader := true
	if info, err := os.Stat(s.path); err == nil && info.Size() > 0 {
		needsHeader = false
	}

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", s.path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if needsHeader {
		if err := w.Write(csvColumns); err != nil {
			return err
		}
	}
	if err := w.Write([]string{
		rec.SessionID,
		rec.Timestamp.UTC().Format(time.RFC3339Nano),
		rec.Model,
		rec.UserQuery,
		rec.toolsJSON(),
		rec.Response,
		string(rec.UserFeedback),
		rec.tokenJSON(),
		rec.InteractionID,
	}); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}

func (s *CSVSink) Close() error { return nil }
