// Package query turns natural-language questions into validated MongoDB
// queries and runs them against the procurement collection.
package query

import (
	"go.mongodb.org/mongo-driver/bson"
)

// Kind is the shape of a structured query
type Kind string

const (
	KindFind      Kind = "find"
	KindAggregate Kind = "aggregate"
)

// DefaultMaxResults caps every query result
const DefaultMaxResults int64 = 100

// StructuredQuery is a read-only query: either a filtered find or an aggregation pipeline.
// Stages are ordered documents so multi-key stages like $sort keep their key order.
type StructuredQuery struct {
	Kind     Kind
	Filter   bson.M
	Limit    int64
	Pipeline []bson.D
}

// Find builds a find query.
func Find(filter bson.M, limit int64) StructuredQuery {
	return StructuredQuery{Kind: KindFind, Filter: filter, Limit: limit}
}

// Aggregate builds an aggregation query.
func Aggregate(stages ...bson.D) StructuredQuery {
	return StructuredQuery{Kind: KindAggregate, Pipeline: stages}
}

// Body returns the "query" object of the wire form.
func (q StructuredQuery) Body() bson.D {
	if q.Kind == KindAggregate {
		stages := make(bson.A, len(q.Pipeline))
		for i, stage := range q.Pipeline {
			stages[i] = stage
		}
		return bson.D{{Key: "pipeline", Value: stages}}
	}
	filter := q.Filter
	if filter == nil {
		filter = bson.M{}
	}
	body := bson.D{{Key: "filter", Value: filter}}
	if q.Limit > 0 {
		body = append(body, bson.E{Key: "limit", Value: q.Limit})
	}
	return body
}

// MarshalJSON renders {"query_type": ..., "query": {...}}.
func (q StructuredQuery) MarshalJSON() ([]byte, error) {
	return renderJSON(bson.D{
		{Key: "query_type", Value: string(q.Kind)},
		{Key: "query", Value: q.Body()},
	})
}

// Translation is the translator's output: a validated query and its explanation
type Translation struct {
	Query       StructuredQuery
	Explanation string
}

// MarshalJSON renders the translation the way execute_query accepts it back.
func (t Translation) MarshalJSON() ([]byte, error) {
	return renderJSON(bson.D{
		{Key: "query_type", Value: string(t.Query.Kind)},
		{Key: "query", Value: t.Query.Body()},
		{Key: "explanation", Value: t.Explanation},
	})
}
