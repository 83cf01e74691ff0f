package query

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
)

// Decode builds a StructuredQuery from its wire form
// {"query_type": "find"|"aggregate", "query": {...}}.
//
// It is lenient about what models tend to produce: "query" may be a JSON
// string, an aggregate "query" may be the bare stage list, and a find "query"
// without "filter" is taken as having an empty filter.
func Decode(raw bson.D) (StructuredQuery, error) {
	return decode(raw, false)
}

// decodeStrict additionally requires a find query to name its filter, which
// is what the translator is instructed to emit.
func decodeStrict(raw bson.D) (StructuredQuery, error) {
	return decode(raw, true)
}

func decode(raw bson.D, strict bool) (StructuredQuery, error) {
	kindValue, ok := field(raw, "query_type")
	if !ok {
		return StructuredQuery{}, validationError(nil, "missing 'query_type' field")
	}
	kindName, _ := kindValue.(string)
	kind := Kind(strings.ToLower(strings.TrimSpace(kindName)))
	if kind != KindFind && kind != KindAggregate {
		return StructuredQuery{}, validationError(nil, "invalid query_type %v, must be 'find' or 'aggregate'", kindValue)
	}

	body, ok := field(raw, "query")
	if !ok || body == nil {
		return StructuredQuery{}, validationError(nil, "missing 'query' field")
	}
	if s, isString := body.(string); isString {
		parsed, err := DecodeJSON([]byte(s))
		if err != nil {
			return StructuredQuery{}, validationError(err, "'query' is not valid JSON")
		}
		body = parsed
	} else {
		body = orderedValue(body)
	}

	switch kind {
	case KindAggregate:
		stages, err := decodePipeline(body)
		if err != nil {
			return StructuredQuery{}, err
		}
		return StructuredQuery{Kind: KindAggregate, Pipeline: stages}, nil
	default:
		return decodeFind(body, strict)
	}
}

func decodePipeline(body interface{}) ([]bson.D, error) {
	var list bson.A
	switch b := body.(type) {
	case bson.A:
		// bare stage list
		list = b
	case bson.D:
		p, ok := field(b, "pipeline")
		if !ok {
			return nil, validationError(nil, "aggregate query must have 'pipeline' field")
		}
		switch pl := p.(type) {
		case bson.A:
			list = pl
		case nil:
			list = nil
		default:
			return nil, validationError(nil, "'pipeline' must be a list of stages, got %T", p)
		}
	default:
		return nil, validationError(nil, "aggregate query must be an object or a list of stages, got %T", body)
	}

	stages := make([]bson.D, 0, len(list))
	for i, item := range list {
		stage, ok := item.(bson.D)
		if !ok {
			return nil, validationError(nil, "pipeline stage %d must be an object, got %T", i, item)
		}
		stages = append(stages, stage)
	}
	return stages, nil
}

func decodeFind(body interface{}, strict bool) (StructuredQuery, error) {
	b, ok := body.(bson.D)
	if !ok {
		return StructuredQuery{}, validationError(nil, "find query must be an object, got %T", body)
	}

	q := StructuredQuery{Kind: KindFind, Filter: bson.M{}}
	filter, present := field(b, "filter")
	switch f := filter.(type) {
	case bson.D:
		for _, e := range f {
			q.Filter[e.Key] = e.Value
		}
	case nil:
		if strict && !present {
			return StructuredQuery{}, validationError(nil, "find query must have 'filter' field")
		}
	default:
		return StructuredQuery{}, validationError(nil, "'filter' must be an object, got %T", f)
	}

	if l, present := field(b, "limit"); present {
		limit, err := toInt64(l)
		if err != nil {
			return StructuredQuery{}, validationError(err, "invalid 'limit'")
		}
		q.Limit = limit
	}
	return q, nil
}

// toBSONValue turns JSON numbers into BSON numbers. Whole numbers become
// int64 so stages like {"$limit": 5} reach the server as integers.
func toBSONValue(v interface{}) interface{} {
	switch val := v.(type) {
	case float64:
		return wholeOrFloat(val)
	case int:
		return int64(val)
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return i
		}
		f, err := val.Float64()
		if err != nil {
			return val.String()
		}
		return wholeOrFloat(f)
	default:
		return v
	}
}

func wholeOrFloat(f float64) interface{} {
	if f == math.Trunc(f) && math.Abs(f) < 1<<53 {
		return int64(f)
	}
	return f
}

func toInt64(v interface{}) (int64, error) {
	switch n := v.(type) {
	case float64:
		return int64(n), nil
	case int:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case int64:
		return n, nil
	case json.Number:
		return n.Int64()
	case string:
		var parsed int64
		_, err := fmt.Sscan(n, &parsed)
		return parsed, err
	default:
		return 0, fmt.Errorf("unsupported limit type %T", v)
	}
}
