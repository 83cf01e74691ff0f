package chatlog

import (
	"context"
	"fmt"
	"regexp"

	"procurement/internal/database"
)

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_.]*$`)

// SQLSink inserts records into a relational or warehouse table.
// tools_used and token_count are stored as JSON strings.
type SQLSink struct {
	db    *database.DB
	table string
}

// NewSQLSink wraps db and creates the table for mysql and sqlite. BigQuery
// tables are expected to exist.
func NewSQLSink(ctx context.Context, db *database.DB, table string) (*SQLSink, error) {
	if table == "" {
		table = "chat_logs"
	}
	if !tableNamePattern.MatchString(table) {
		return nil, fmt.Errorf("invalid chat log table name %q", table)
	}
	s := &SQLSink{db: db, table: table}
	if err := s.ensureTable(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLSink) Name() string { return s.db.Driver }

func (s *SQLSink) ensureTable(ctx context.Context) error {
	var ddl string
	switch s.db.Driver {
	case database.DriverMySQL:
		ddl = fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			interaction_id VARCHAR(64) NOT NULL,
			session_id VARCHAR(64) NOT NULL,
			timestamp DATETIME(6) NOT NULL,
			model VARCHAR(128),
			user_query TEXT NOT NULL,
			tools_used TEXT,
			response MEDIUMTEXT,
			user_feedback VARCHAR(16),
			token_count TEXT,
			INDEX idx_session_time (session_id, timestamp)
		)`, s.table)
	case database.DriverSQLite:
		ddl = fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			interaction_id TEXT NOT NULL,
			session_id TEXT NOT NULL,
			timestamp TEXT NOT NULL,
			model TEXT,
			user_query TEXT NOT NULL,
			tools_used TEXT,
			response TEXT,
			user_feedback TEXT,
			token_count TEXT
		)`, s.table)
	default:
		return nil
	}

	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("failed to create %s: %w", s.table, err)
	}
	return nil
}

func (s *SQLSink) Write(ctx context.Context, rec Record) error {
	var ts interface{} = rec.Timestamp.UTC()
	if s.db.Driver == database.DriverSQLite {
		ts = rec.Timestamp.UTC().Format("2006-01-02T15:04:05.000000Z")
	}

	query := fmt.Sprintf(`INSERT INTO %s
		(interaction_id, session_id, timestamp, model, user_query, tools_used, response, user_feedback, token_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`, s.table)

	_, err := s.db.ExecContext(ctx, query,
		rec.InteractionID,
		rec.SessionID,
		ts,
		rec.Model,
		rec.UserQuery,
		rec.toolsJSON(),
		rec.Response,
		string(rec.UserFeedback),
		rec.tokenJSON(),
	)
	if err != nil {
		return fmt.Errorf("insert into %s failed: %w", s.table, err)
	}
	return nil
}

func (s *SQLSink) Close() error {
	return s.db.Close()
}
