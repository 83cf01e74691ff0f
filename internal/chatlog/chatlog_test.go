package chatlog

import (
	"context"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"procurement/internal/database"
	"procurement/internal/models"
)

type failingSink struct{ writes int }

func (f *failingSink) Name() string { return "bigquery" }
func (f *failingSink) Write(context.Context, Record) error {
	f.writes++
	return errors.New("table not found")
}
func (f *failingSink) Close() error { return nil }

type memorySink struct{ records []Record }

func (m *memorySink) Name() string { return "memory" }
func (m *memorySink) Write(_ context.Context, rec Record) error {
	m.records = append(m.records, rec)
	return nil
}
func (m *memorySink) Close() error { return nil }

func sampleRecord() Record {
	return Record{
		SessionID:  "session-1",
		Timestamp:  time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
		Model:      "gpt-4o-mini",
		UserQuery:  "How many total orders are in the database?",
		ToolsUsed:  []string{"translate_query", "execute_query"},
		Response:   "There are 42 orders, \"exactly\".",
		TokenCount: models.TokenUsage{Input: 100, Output: 20, Total: 120},
	}
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("failed to open csv: %v", err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("failed to parse csv: %v", err)
	}
	return rows
}

func TestCSVSinkWritesHeaderOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "chat_logs.csv")
	logger := NewLogger(true, NewCSVSink(path))

	rec := sampleRecord()
	if err := logger.Log(context.Background(), rec); err != nil {
		t.Fatalf("first log failed: %v", err)
	}
	rec.UserFeedback = models.FeedbackUpvote
	if err := logger.Log(context.Background(), rec); err != nil {
		t.Fatalf("second log failed: %v", err)
	}

	rows := readCSV(t, path)
	if len(rows) != 3 {
		t.Fatalf("expected header + 2 rows, got %d", len(rows))
	}
	if rows[0][0] != "session_id" || rows[0][7] != "token_count" {
		t.Errorf("unexpected header: %v", rows[0])
	}
	if rows[1][4] != `["translate_query","execute_query"]` {
		t.Errorf("tools_used not stored as JSON: %q", rows[1][4])
	}
	if rows[1][6] != "NA" || rows[2][6] != "upvote" {
		t.Errorf("unexpected feedback columns: %q %q", rows[1][6], rows[2][6])
	}
	if rows[1][7] != `{"input_token_count":100,"output_token_count":20,"total_token_count":120}` {
		t.Errorf("unexpected token_count: %q", rows[1][7])
	}
	if rows[1][5] != rec.Response {
		t.Errorf("response not round-tripped: %q", rows[1][5])
	}
	if rows[1][8] == "" {
		t.Error("interaction_id should be generated")
	}
}

func TestLoggerFallsBackToCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fallback.csv")
	primary := &failingSink{}
	logger := NewLogger(true, NewCSVSink(path), primary)

	if err := logger.Log(context.Background(), sampleRecord()); err != nil {
		t.Fatalf("fallback should absorb sink failure: %v", err)
	}
	if primary.writes != 1 {
		t.Errorf("expected primary to be tried once, got %d", primary.writes)
	}
	if rows := readCSV(t, path); len(rows) != 2 {
		t.Errorf("expected record in fallback csv, got %d rows", len(rows))
	}
}

func TestLoggerSkipsFallbackOnSuccess(t *testing.T) {
	path := filepath.Join(t.TempDir(), "unused.csv")
	primary := &memorySink{}
	logger := NewLogger(true, NewCSVSink(path), primary)

	if err := logger.Log(context.Background(), sampleRecord()); err != nil {
		t.Fatal(err)
	}
	if len(primary.records) != 1 {
		t.Fatalf("expected one record, got %d", len(primary.records))
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("fallback csv should not be created when the primary sink succeeds")
	}
	if got := logger.SinkNames(); len(got) != 2 || got[0] != "memory" || got[1] != "csv" {
		t.Errorf("unexpected sink names: %v", got)
	}
}

func TestDisabledLoggerDropsRecords(t *testing.T) {
	primary := &memorySink{}
	logger := NewLogger(false, nil, primary)
	if err := logger.Log(context.Background(), sampleRecord()); err != nil {
		t.Fatal(err)
	}
	if len(primary.records) != 0 {
		t.Error("disabled logger must not write")
	}
	if Disabled().Enabled() {
		t.Error("Disabled() should not be enabled")
	}
}

func TestLoggerWithoutFallbackReportsFailure(t *testing.T) {
	logger := NewLogger(true, nil, &failingSink{})
	if err := logger.Log(context.Background(), sampleRecord()); err == nil {
		t.Error("expected error without fallback")
	}
}

func TestSQLSinkSQLite(t *testing.T) {
	db, err := database.OpenSQL(database.DriverSQLite, filepath.Join(t.TempDir(), "chat.db"))
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	ctx := context.Background()

	sink, err := NewSQLSink(ctx, db, "chat_logs")
	if err != nil {
		t.Fatalf("failed to create sink: %v", err)
	}
	defer sink.Close()

	rec := sampleRecord()
	rec.InteractionID = "interaction-1"
	if err := sink.Write(ctx, rec); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	rec.UserFeedback = models.FeedbackDownvote
	if err := sink.Write(ctx, rec); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	var count int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM chat_logs WHERE interaction_id = ?", "interaction-1").Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != 2 {
		t.Errorf("expected 2 rows (feedback appends), got %d", count)
	}

	var tools, feedback string
	if err := db.QueryRowContext(ctx, "SELECT tools_used, user_feedback FROM chat_logs ORDER BY id DESC LIMIT 1").Scan(&tools, &feedback); err != nil {
		t.Fatal(err)
	}
	if tools != `["translate_query","execute_query"]` || feedback != "downvote" {
		t.Errorf("unexpected row: tools=%q feedback=%q", tools, feedback)
	}
}

func TestSQLSinkRejectsBadTableName(t *testing.T) {
	db, err := database.OpenSQL(database.DriverSQLite, filepath.Join(t.TempDir(), "chat.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	if _, err := NewSQLSink(context.Background(), db, "logs; DROP TABLE x"); err == nil {
		t.Error("expected invalid table name error")
	}
}
