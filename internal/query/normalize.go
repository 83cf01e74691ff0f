package query

import (
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// NormalizeRecords converts driver results into plain JSON-safe records.
// Nothing is dropped: _id in particular survives because, after a $group,
// it holds the grouped value the answer is about.
func NormalizeRecords(records []bson.M) []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(records))
	for _, record := range records {
		out = append(out, normalizeMap(record))
	}
	return out
}

// NormalizeValue maps BSON-specific values to JSON-safe ones:
// ObjectID to its hex string, dates to RFC 3339 text and Decimal128 to its
// decimal string. Nested documents and arrays are walked. Applying it to its
// own output returns the same value.
func NormalizeValue(v interface{}) interface{} {
	switch val := v.(type) {
	case bson.M:
		return normalizeMap(val)
	case map[string]interface{}:
		return normalizeMap(val)
	case bson.D:
		m := make(map[string]interface{}, len(val))
		for _, e := range val {
			m[e.Key] = NormalizeValue(e.Value)
		}
		return m
	case bson.A:
		return normalizeSlice(val)
	case []interface{}:
		return normalizeSlice(val)
	case primitive.ObjectID:
		return val.Hex()
	case primitive.DateTime:
		return val.Time().UTC().Format(time.RFC3339)
	case time.Time:
		return val.UTC().Format(time.RFC3339)
	case primitive.Decimal128:
		return val.String()
	case primitive.Timestamp:
		return time.Unix(int64(val.T), 0).UTC().Format(time.RFC3339)
	case primitive.Regex:
		return val.String()
	case primitive.Null, primitive.Undefined:
		return nil
	default:
		return v
	}
}

func normalizeMap(m map[string]interface{}) map[string]interface{} {
	result := make(map[string]interface{}, len(m))
	for k, v := range m {
		result[k] = NormalizeValue(v)
	}
	return result
}

func normalizeSlice(arr []interface{}) []interface{} {
	result := make([]interface{}, len(arr))
	for i, v := range arr {
		result[i] = NormalizeValue(v)
	}
	return result
}
