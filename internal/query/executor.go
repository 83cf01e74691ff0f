package query

import (
	"context"
	"errors"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"procurement/internal/models"
)

// DefaultTimeout is the execution budget of one query
const DefaultTimeout = 30 * time.Second

// DocumentStore is the read side of the procurement collection
type DocumentStore interface {
	Find(ctx context.Context, filter bson.M, limit int64, maxTime time.Duration) ([]bson.M, error)
	Aggregate(ctx context.Context, pipeline []bson.D, maxTime time.Duration) ([]bson.M, error)
	SampleOne(ctx context.Context) (bson.M, error)
}

// ExecutionObserver is told about every executed query.
type ExecutionObserver func(kind Kind, success bool, elapsed time.Duration)

// Executor runs validated queries against the store and never panics or
// returns an error: every failure becomes an unsuccessful QueryResult.
type Executor struct {
	store      DocumentStore
	maxResults int64
	timeout    time.Duration
	observe    ExecutionObserver
}

// NewExecutor builds an executor. Zero values pick the defaults.
func NewExecutor(store DocumentStore, maxResults int64, timeout time.Duration) *Executor {
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Executor{store: store, maxResults: maxResults, timeout: timeout}
}

// SetObserver registers a callback for execution metrics.
func (e *Executor) SetObserver(observe ExecutionObserver) {
	e.observe = observe
}

// MaxResults returns the result cap applied to every query.
func (e *Executor) MaxResults() int64 {
	return e.maxResults
}

// ExecuteRaw decodes the wire form, validates it and runs it.
func (e *Executor) ExecuteRaw(ctx context.Context, raw bson.D) models.QueryResult {
	q, err := Decode(raw)
	if err != nil {
		return failure(err)
	}
	return e.Execute(ctx, q)
}

// Execute validates q and runs it within the time budget.
func (e *Executor) Execute(ctx context.Context, q StructuredQuery) (result models.QueryResult) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("❌ [QUERY] Recovered from panic: %v", r)
			result = failure(executionError(nil, "query aborted: %v", r))
		}
	}()

	if err := Validate(&q, e.maxResults); err != nil {
		log.Printf("🚫 [QUERY] Rejected %s query: %v", q.Kind, err)
		return failure(err)
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	start := time.Now()
	var (
		docs []bson.M
		err  error
	)
	switch q.Kind {
	case KindFind:
		docs, err = e.store.Find(ctx, q.Filter, q.Limit, e.timeout)
	case KindAggregate:
		pipeline := withResultCap(q.Pipeline, e.maxResults)
		log.Printf("📦 [QUERY] Running aggregate with stages %s", describeStages(pipeline))
		docs, err = e.store.Aggregate(ctx, pipeline, e.timeout)
	}
	elapsed := time.Since(start)

	if e.observe != nil {
		e.observe(q.Kind, err == nil, elapsed)
	}

	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || mongo.IsTimeout(err) {
			err = executionError(ErrTimeBudget, "query did not finish within %v", e.timeout)
		} else {
			err = executionError(err, "%s failed", q.Kind)
		}
		log.Printf("❌ [QUERY] %v", err)
		return failure(err)
	}

	records := NormalizeRecords(docs)
	log.Printf("✅ [QUERY] %s returned %d record(s) in %v", q.Kind, len(records), elapsed)
	return models.QueryResult{
		Success: true,
		Results: records,
		Count:   len(records),
	}
}

// ParseQueryArgument accepts the execute_query argument either as a JSON
// string or as an already-decoded object. Strings and bson.D keep their key
// order; plain maps have none to keep.
func ParseQueryArgument(arg interface{}) (bson.D, error) {
	switch v := arg.(type) {
	case bson.D:
		return v, nil
	case map[string]interface{}:
		return orderedMap(v), nil
	case string:
		decoded, err := DecodeJSON([]byte(stripCodeFences(v)))
		if err != nil {
			return nil, validationError(err, "query_json is not valid JSON")
		}
		d, ok := decoded.(bson.D)
		if !ok {
			return nil, validationError(nil, "query_json must be an object with query_type and query, got %T", decoded)
		}
		return d, nil
	case nil:
		return nil, validationError(nil, "missing query_json")
	default:
		return nil, validationError(nil, "query_json must be a JSON string or object, got %T", arg)
	}
}

func failure(err error) models.QueryResult {
	return models.QueryResult{
		Success: false,
		Results: []map[string]interface{}{},
		Count:   0,
		Error:   err.Error(),
	}
}
