package ingest

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// DefaultBatchSize is the number of documents per insert
const DefaultBatchSize = 1000

// Store is the write side of the procurement collection
type Store interface {
	InsertMany(ctx context.Context, docs []interface{}) (int, error)
	Drop(ctx context.Context) error
}

// RowError records why a row was skipped
type RowError struct {
	Row   int    `json:"row"`
	Error string `json:"error"`
}

// Stats summarises a load
type Stats struct {
	Processed int        `json:"total_rows_processed"`
	Inserted  int        `json:"total_rows_inserted"`
	Skipped   int        `json:"total_rows_skipped"`
	Errors    []RowError `json:"errors,omitempty"`
}

// Options controls a load
type Options struct {
	BatchSize int
	// Drop empties the collection before loading
	Drop bool
	// StartFrom skips data rows before this 1-based row number
	StartFrom int
	// Progress is called after every inserted batch
	Progress func(rowsRead int)
}

// Loader streams CSV rows into the store in batches
type Loader struct {
	store  Store
	logger *logrus.Logger
}

// NewLoader creates a loader. A nil logger gets a JSON logrus logger.
func NewLoader(store Store, logger *logrus.Logger) *Loader {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	return &Loader{store: store, logger: logger}
}

// LoadFile loads the CSV at path
func (l *Loader) LoadFile(ctx context.Context, path string, opts Options) (Stats, error) {
	f, err := os.Open(path)
	if err != nil {
		return Stats{}, fmt.Errorf("csv file not found: %w", err)
	}
	defer f.Close()

	l.logger.WithField("path", path).Info("Starting data load")
	return l.Load(ctx, f, opts)
}

// Load reads rows from r. Malformed rows are skipped and reported in Stats;
// an insert failure aborts the load.
func (l *Loader) Load(ctx context.Context, r io.Reader, opts Options) (Stats, error) {
	var stats Stats
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}

	if opts.Drop {
		if err := l.store.Drop(ctx); err != nil {
			return stats, fmt.Errorf("failed to drop collection: %w", err)
		}
		l.logger.Info("Dropped existing collection")
	}

	reader := csv.NewReader(r)
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err != nil {
		return stats, fmt.Errorf("failed to read csv header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(header[i], "\ufeff"))
	}

	batch := make([]interface{}, 0, opts.BatchSize)
	flush := func(rowNum int) error {
		if len(batch) == 0 {
			return nil
		}
		inserted, err := l.store.InsertMany(ctx, batch)
		stats.Inserted += inserted
		if err != nil {
			return fmt.Errorf("insert failed near row %d: %w", rowNum, err)
		}
		batch = batch[:0]
		if opts.Progress != nil {
			opts.Progress(rowNum)
		}
		return nil
	}

	rowNum := 0
	for {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		rowNum++

		if rowNum < opts.StartFrom {
			continue
		}
		stats.Processed++

		if err != nil {
			var parseErr *csv.ParseError
			if !errors.As(err, &parseErr) {
				return stats, fmt.Errorf("failed to read row %d: %w", rowNum, err)
			}
			l.logger.WithFields(logrus.Fields{"row": rowNum, "error": err.Error()}).Warn("Skipping malformed row")
			stats.Skipped++
			stats.Errors = append(stats.Errors, RowError{Row: rowNum, Error: err.Error()})
			continue
		}

		row := make(map[string]string, len(header))
		for i, h := range header {
			if i < len(record) {
				row[h] = record[i]
			}
		}
		batch = append(batch, ParseRow(row))

		if len(batch) >= opts.BatchSize {
			if err := flush(rowNum); err != nil {
				return stats, err
			}
		}
	}

	if err := flush(rowNum); err != nil {
		return stats, err
	}

	l.logger.WithFields(logrus.Fields{
		"processed": stats.Processed,
		"inserted":  stats.Inserted,
		"skipped":   stats.Skipped,
	}).Info("Data load completed")
	return stats, nil
}
