package query

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"procurement/internal/testsupport"
)

func seedOrders(n int) []bson.M {
	docs := make([]bson.M, 0, n)
	departments := []string{"Water Resources", "Corrections", "Transportation"}
	for i := 0; i < n; i++ {
		docs = append(docs, bson.M{
			"department_name": departments[i%len(departments)],
			"fiscal_year":     "2013-2014",
			"total_price":     float64(100 * (i + 1)),
		})
	}
	return docs
}

func TestExecuteCount(t *testing.T) {
	store := testsupport.NewMemStore(seedOrders(42)...)
	exec := NewExecutor(store, 100, time.Second)

	result := exec.Execute(context.Background(), Aggregate(bson.D{{Key: "$count", Value: "total_orders"}}))

	require.True(t, result.Success, result.Error)
	require.Equal(t, 1, result.Count)
	assert.EqualValues(t, 42, result.Results[0]["total_orders"])

	pipelines := store.Pipelines()
	require.Len(t, pipelines, 1)
	assert.Len(t, pipelines[0], 1, "$count pipelines are not capped")
}

func TestExecuteAppendsLimit(t *testing.T) {
	store := testsupport.NewMemStore(seedOrders(250)...)
	exec := NewExecutor(store, 100, time.Second)

	result := exec.Execute(context.Background(), Aggregate(bson.D{{Key: "$match", Value: bson.M{"fiscal_year": "2013-2014"}}}))

	require.True(t, result.Success, result.Error)
	assert.Equal(t, 100, result.Count)
	last := store.Pipelines()[0][1]
	assert.Equal(t, bson.D{{Key: "$limit", Value: int64(100)}}, last)
}

func TestExecuteFindDefaultsLimit(t *testing.T) {
	store := testsupport.NewMemStore(seedOrders(250)...)
	exec := NewExecutor(store, 100, time.Second)

	result := exec.Execute(context.Background(), Find(nil, 0))

	require.True(t, result.Success, result.Error)
	assert.Equal(t, 100, result.Count)
	assert.Len(t, result.Results, 100)
}

func TestExecuteKeepsGroupingKey(t *testing.T) {
	store := testsupport.NewMemStore(seedOrders(9)...)
	exec := NewExecutor(store, 100, time.Second)

	result := exec.Execute(context.Background(), Aggregate(
		bson.D{{Key: "$group", Value: bson.M{"_id": "$department_name", "total_spending": bson.M{"$sum": "$total_price"}}}},
		bson.D{{Key: "$sort", Value: bson.D{{Key: "total_spending", Value: -1}}}},
		bson.D{{Key: "$limit", Value: 1}},
	))

	require.True(t, result.Success, result.Error)
	require.Equal(t, 1, result.Count)
	// Transportation holds the 3rd, 6th and 9th orders: 300 + 600 + 900
	assert.Equal(t, "Transportation", result.Results[0]["_id"])
	assert.EqualValues(t, 1800.0, result.Results[0]["total_spending"])
}

func TestExecuteRejectsDestructiveWithoutTouchingStore(t *testing.T) {
	store := testsupport.NewMemStore(seedOrders(3)...)
	exec := NewExecutor(store, 100, time.Second)

	result := exec.Execute(context.Background(), Aggregate(bson.D{{Key: "$match", Value: bson.M{}}}, bson.D{{Key: "$out", Value: "stolen"}}))

	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "destructive")
	assert.NotNil(t, result.Results)
	assert.Empty(t, store.Pipelines())
}

func TestExecuteReportsStoreFailure(t *testing.T) {
	store := testsupport.NewMemStore()
	store.FailWith(errors.New("connection refused"))
	exec := NewExecutor(store, 100, time.Second)

	result := exec.Execute(context.Background(), Find(bson.M{}, 10))

	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "connection refused")
	assert.Equal(t, 0, result.Count)
}

func TestExecuteEnforcesTimeBudget(t *testing.T) {
	store := testsupport.NewMemStore(seedOrders(3)...)
	store.SetDelay(time.Second)
	exec := NewExecutor(store, 100, 20*time.Millisecond)

	result := exec.Execute(context.Background(), Find(bson.M{}, 10))

	assert.False(t, result.Success)
	assert.Contains(t, result.Error, ErrTimeBudget.Error())
}

func TestExecuteObserver(t *testing.T) {
	store := testsupport.NewMemStore(seedOrders(3)...)
	exec := NewExecutor(store, 100, time.Second)

	var observed []string
	exec.SetObserver(func(kind Kind, success bool, _ time.Duration) {
		observed = append(observed, fmt.Sprintf("%s:%v", kind, success))
	})

	exec.Execute(context.Background(), Find(bson.M{}, 1))
	store.FailWith(errors.New("boom"))
	exec.Execute(context.Background(), Aggregate(bson.D{{Key: "$count", Value: "n"}}))

	assert.Equal(t, []string{"find:true", "aggregate:false"}, observed)
}

func TestExecuteRawWrapsBareSequence(t *testing.T) {
	store := testsupport.NewMemStore(seedOrders(5)...)
	exec := NewExecutor(store, 100, time.Second)

	raw, err := ParseQueryArgument(`{"query_type": "aggregate", "query": [{"$count": "total_orders"}]}`)
	require.NoError(t, err)

	result := exec.ExecuteRaw(context.Background(), raw)

	require.True(t, result.Success, result.Error)
	assert.EqualValues(t, 5, result.Results[0]["total_orders"])
}

func TestParseQueryArgument(t *testing.T) {
	d, err := ParseQueryArgument(map[string]interface{}{"query_type": "find"})
	require.NoError(t, err)
	assert.Equal(t, bson.D{{Key: "query_type", Value: "find"}}, d)

	d, err = ParseQueryArgument("```json\n{\"query_type\": \"find\", \"query\": {\"filter\": {}}}\n```")
	require.NoError(t, err)
	kind, _ := field(d, "query_type")
	assert.Equal(t, "find", kind)

	_, err = ParseQueryArgument(`[{"$count": "n"}]`)
	assert.Error(t, err)

	_, err = ParseQueryArgument("not json")
	assert.Error(t, err)

	_, err = ParseQueryArgument(nil)
	assert.Error(t, err)
}
