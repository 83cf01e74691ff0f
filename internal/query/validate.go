package query

import (
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
)

var destructiveStages = map[string]bool{
	"$out":   true,
	"$merge": true,
}

// Validate checks q and fills in defaults in place.
// Find queries get an empty filter when none is given and a limit clamped to
// (0, maxResults]. Aggregations must have at least one stage and may not
// contain $out or $merge at any depth.
func Validate(q *StructuredQuery, maxResults int64) error {
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}

	switch q.Kind {
	case KindFind:
		if q.Filter == nil {
			q.Filter = bson.M{}
		}
		if q.Limit <= 0 || q.Limit > maxResults {
			q.Limit = maxResults
		}
		return nil
	case KindAggregate:
		if len(q.Pipeline) == 0 {
			return validationError(ErrEmptyPipeline, "aggregate query needs at least one stage")
		}
		for i, stage := range q.Pipeline {
			if name, found := findDestructive(stage); found {
				return validationError(ErrDestructiveStage, "stage %d uses %s", i, name)
			}
		}
		return nil
	default:
		return validationError(nil, "invalid query_type %q, must be 'find' or 'aggregate'", q.Kind)
	}
}

// findDestructive walks a stage, including nested sub-pipelines such as
// $facet and $lookup, looking for write stages.
func findDestructive(v interface{}) (string, bool) {
	switch val := v.(type) {
	case bson.M:
		return findDestructiveInMap(val)
	case map[string]interface{}:
		return findDestructiveInMap(val)
	case bson.D:
		for _, e := range val {
			if destructiveStages[e.Key] {
				return e.Key, true
			}
			if name, found := findDestructive(e.Value); found {
				return name, true
			}
		}
	case bson.A:
		return findDestructiveInSlice(val)
	case []interface{}:
		return findDestructiveInSlice(val)
	case []bson.D:
		for _, item := range val {
			if name, found := findDestructive(item); found {
				return name, true
			}
		}
	}
	return "", false
}

func findDestructiveInMap(m map[string]interface{}) (string, bool) {
	for k, v := range m {
		if destructiveStages[k] {
			return k, true
		}
		if name, found := findDestructive(v); found {
			return name, true
		}
	}
	return "", false
}

func findDestructiveInSlice(items []interface{}) (string, bool) {
	for _, item := range items {
		if name, found := findDestructive(item); found {
			return name, true
		}
	}
	return "", false
}

// HasStage reports whether any top-level stage of the pipeline is the named operator.
func HasStage(pipeline []bson.D, name string) bool {
	for _, stage := range pipeline {
		if _, ok := field(stage, name); ok {
			return true
		}
	}
	return false
}

// withResultCap returns a copy of pipeline ending in {$limit: max} unless the
// pipeline already limits or counts its output.
func withResultCap(pipeline []bson.D, max int64) []bson.D {
	out := make([]bson.D, len(pipeline), len(pipeline)+1)
	copy(out, pipeline)
	if HasStage(pipeline, "$limit") || HasStage(pipeline, "$count") {
		return out
	}
	return append(out, bson.D{{Key: "$limit", Value: max}})
}

func describeStages(pipeline []bson.D) string {
	names := make([]string, 0, len(pipeline))
	for _, stage := range pipeline {
		for _, e := range stage {
			names = append(names, e.Key)
		}
	}
	return fmt.Sprint(names)
}
