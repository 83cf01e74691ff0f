package query

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

func TestValidateFindDefaults(t *testing.T) {
	tests := []struct {
		name  string
		limit int64
		want  int64
	}{
		{"missing limit", 0, 100},
		{"negative limit", -5, 100},
		{"limit above cap", 5000, 100},
		{"limit within cap", 25, 25},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := StructuredQuery{Kind: KindFind, Limit: tt.limit}
			require.NoError(t, Validate(&q, 100))
			assert.Equal(t, tt.want, q.Limit)
			assert.NotNil(t, q.Filter)
		})
	}
}

func TestValidateRejectsEmptyPipeline(t *testing.T) {
	q := Aggregate()
	err := Validate(&q, 100)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrEmptyPipeline))
	assert.Equal(t, ErrorKindValidation, KindOf(err))
}

func TestValidateRejectsDestructiveStages(t *testing.T) {
	tests := []struct {
		name     string
		pipeline []bson.D
	}{
		{"top-level $out", []bson.D{{{Key: "$match", Value: bson.M{}}}, {{Key: "$out", Value: "copy"}}}},
		{"top-level $merge", []bson.D{{{Key: "$merge", Value: bson.M{"into": "other"}}}}},
		{"nested in $facet", []bson.D{{{Key: "$facet", Value: bson.M{"a": bson.A{bson.D{{Key: "$out", Value: "x"}}}}}}}},
		{"nested in $lookup", []bson.D{{{Key: "$lookup", Value: bson.M{"from": "x", "pipeline": []interface{}{map[string]interface{}{"$merge": "y"}}}}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := Aggregate(tt.pipeline...)
			err := Validate(&q, 100)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrDestructiveStage))
		})
	}
}

func TestValidateRejectsUnknownKind(t *testing.T) {
	q := StructuredQuery{Kind: "delete"}
	err := Validate(&q, 100)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid query_type")
}

func TestWithResultCap(t *testing.T) {
	plain := []bson.D{{{Key: "$match", Value: bson.M{"fiscal_year": "2013-2014"}}}}
	capped := withResultCap(plain, 100)
	require.Len(t, capped, 2)
	assert.Equal(t, bson.D{{Key: "$limit", Value: int64(100)}}, capped[1])
	assert.Len(t, plain, 1, "input pipeline must not be modified")

	limited := []bson.D{{{Key: "$sort", Value: bson.D{{Key: "total_price", Value: -1}}}}, {{Key: "$limit", Value: 5}}}
	assert.Len(t, withResultCap(limited, 100), 2)

	counted := []bson.D{{{Key: "$count", Value: "total_orders"}}}
	assert.Len(t, withResultCap(counted, 100), 1)
}

func TestDecodeAcceptsBareStageList(t *testing.T) {
	q, err := Decode(wire(map[string]interface{}{
		"query_type": "aggregate",
		"query":      []interface{}{map[string]interface{}{"$count": "n"}},
	}))
	require.NoError(t, err)
	assert.Equal(t, KindAggregate, q.Kind)
	require.Len(t, q.Pipeline, 1)
	assert.Equal(t, bson.D{{Key: "$count", Value: "n"}}, q.Pipeline[0])
}

func TestDecodeAcceptsQueryAsString(t *testing.T) {
	q, err := Decode(wire(map[string]interface{}{
		"query_type": "find",
		"query":      `{"filter": {"fiscal_year": "2013-2014"}, "limit": 10}`,
	}))
	require.NoError(t, err)
	assert.Equal(t, int64(10), q.Limit)
	assert.Equal(t, "2013-2014", q.Filter["fiscal_year"])
}

func TestDecodeConvertsWholeNumbers(t *testing.T) {
	q, err := Decode(wire(map[string]interface{}{
		"query_type": "aggregate",
		"query": map[string]interface{}{
			"pipeline": []interface{}{
				map[string]interface{}{"$limit": float64(5)},
				map[string]interface{}{"$match": map[string]interface{}{"total_price": map[string]interface{}{"$gt": 10.5}}},
			},
		},
	}))
	require.NoError(t, err)
	assert.Equal(t, bson.D{{Key: "$limit", Value: int64(5)}}, q.Pipeline[0])
	assert.Equal(t, bson.D{{Key: "$match", Value: bson.D{{Key: "total_price", Value: bson.D{{Key: "$gt", Value: 10.5}}}}}}, q.Pipeline[1])
}

func TestDecodeKeepsCompoundSortOrder(t *testing.T) {
	raw, err := ParseQueryArgument(`{"query_type": "aggregate", "query": {"pipeline": [
		{"$group": {"_id": {"year": "$creation_year", "month": "$creation_month"}, "orders": {"$sum": 1}}},
		{"$sort": {"_id.year": 1, "_id.month": 1}}
	]}}`)
	require.NoError(t, err)
	q, err := Decode(raw)
	require.NoError(t, err)
	require.Len(t, q.Pipeline, 2)

	want := bson.D{{Key: "_id.year", Value: int64(1)}, {Key: "_id.month", Value: int64(1)}}
	for i := 0; i < 50; i++ {
		encoded, err := bson.Marshal(q.Pipeline[1])
		require.NoError(t, err)
		var stage bson.D
		require.NoError(t, bson.Unmarshal(encoded, &stage))
		require.Equal(t, "$sort", stage[0].Key)
		assert.Equal(t, want, stage[0].Value)
	}

	group, _ := field(q.Pipeline[0], "$group")
	id, _ := field(group.(bson.D), "_id")
	assert.Equal(t, bson.D{{Key: "year", Value: "$creation_year"}, {Key: "month", Value: "$creation_month"}}, id)
}

func TestQueryJSONKeepsStageKeyOrder(t *testing.T) {
	q := Aggregate(bson.D{{Key: "$sort", Value: bson.D{{Key: "fiscal_year", Value: 1}, {Key: "fiscal_quarter", Value: 1}}}})

	data, err := q.MarshalJSON()
	require.NoError(t, err)

	assert.JSONEq(t, `{"query_type": "aggregate", "query": {"pipeline": [{"$sort": {"fiscal_year": 1, "fiscal_quarter": 1}}]}}`, string(data))
	assert.Less(t, strings.Index(string(data), "fiscal_year"), strings.Index(string(data), "fiscal_quarter"))
}

func TestDecodeJSON(t *testing.T) {
	v, err := DecodeJSON([]byte(`{"b": [1, 2.5, "x", true, null], "a": {"z": 1, "y": 2}}`))
	require.NoError(t, err)
	assert.Equal(t, bson.D{
		{Key: "b", Value: bson.A{int64(1), 2.5, "x", true, nil}},
		{Key: "a", Value: bson.D{{Key: "z", Value: int64(1)}, {Key: "y", Value: int64(2)}}},
	}, v)

	_, err = DecodeJSON([]byte(`{"a": 1} {"b": 2}`))
	assert.Error(t, err)

	_, err = DecodeJSON([]byte(`{"a": `))
	assert.Error(t, err)
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name string
		raw  map[string]interface{}
	}{
		{"missing query_type", map[string]interface{}{"query": map[string]interface{}{}}},
		{"bad query_type", map[string]interface{}{"query_type": "update", "query": map[string]interface{}{}}},
		{"missing query", map[string]interface{}{"query_type": "find"}},
		{"aggregate without pipeline", map[string]interface{}{"query_type": "aggregate", "query": map[string]interface{}{"stages": []interface{}{}}}},
		{"non-object stage", map[string]interface{}{"query_type": "aggregate", "query": []interface{}{"$count"}}},
		{"filter not object", map[string]interface{}{"query_type": "find", "query": map[string]interface{}{"filter": "x"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(wire(tt.raw))
			require.Error(t, err)
			assert.Equal(t, ErrorKindValidation, KindOf(err))
		})
	}
}

func TestDecodeStrictRequiresFilter(t *testing.T) {
	raw := wire(map[string]interface{}{"query_type": "find", "query": map[string]interface{}{"limit": 5}})

	_, err := Decode(raw)
	assert.NoError(t, err)

	_, err = decodeStrict(raw)
	assert.Error(t, err)
}

// wire builds the decoded wire form from a literal map.
func wire(m map[string]interface{}) bson.D {
	return orderedMap(m)
}
