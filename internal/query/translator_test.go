package query

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"procurement/internal/llm"
	"procurement/internal/testsupport"
)

func TestTranslateStripsFencesAndValidates(t *testing.T) {
	model := testsupport.NewScriptedModel(testsupport.Answer("```json\n"+
		`{"query_type": "find", "query": {"filter": {"fiscal_year": "2013-2014"}}, "explanation": "orders in FY 2013-2014"}`+
		"\n```", 10, 5))
	translator := NewTranslator(model, DefaultExamples(), 5, 100)

	translation, err := translator.Translate(context.Background(), "Show orders from fiscal year 2013-2014")

	require.NoError(t, err)
	assert.Equal(t, KindFind, translation.Query.Kind)
	assert.Equal(t, int64(100), translation.Query.Limit, "missing limit defaults to the cap")
	assert.Equal(t, "orders in FY 2013-2014", translation.Explanation)

	requests := model.Requests()
	require.Len(t, requests, 1)
	prompt := requests[0][0].(llm.UserMessage).Content
	assert.Contains(t, prompt, "User Query: Show orders from fiscal year 2013-2014")
	assert.Contains(t, prompt, "How many total orders are in the database?")
	assert.True(t, strings.HasSuffix(prompt, "Return ONLY the JSON object, no additional text:"))
}

func TestTranslateRejectsInvalidJSON(t *testing.T) {
	model := testsupport.NewScriptedModel(testsupport.Answer("I think you want a count.", 1, 1))
	translator := NewTranslator(model, nil, 0, 100)

	_, err := translator.Translate(context.Background(), "How many orders?")

	require.Error(t, err)
	assert.Equal(t, ErrorKindTranslation, KindOf(err))
}

func TestTranslateRejectsDestructivePipeline(t *testing.T) {
	model := testsupport.NewScriptedModel(testsupport.Answer(
		`{"query_type": "aggregate", "query": {"pipeline": [{"$match": {}}, {"$merge": {"into": "x"}}]}}`, 1, 1))
	translator := NewTranslator(model, nil, 0, 100)

	_, err := translator.Translate(context.Background(), "Copy everything")

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDestructiveStage))
}

func TestTranslateRejectsFindWithoutFilter(t *testing.T) {
	model := testsupport.NewScriptedModel(testsupport.Answer(`{"query_type": "find", "query": {"limit": 5}}`, 1, 1))
	translator := NewTranslator(model, nil, 0, 100)

	_, err := translator.Translate(context.Background(), "Show orders")

	require.Error(t, err)
	assert.Equal(t, ErrorKindValidation, KindOf(err))
}

func TestTranslateModelFailure(t *testing.T) {
	model := testsupport.NewScriptedModel(testsupport.Step{Err: errors.New("quota exceeded")})
	translator := NewTranslator(model, nil, 0, 100)

	_, err := translator.Translate(context.Background(), "How many orders?")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota exceeded")
}

func TestPromptExampleCount(t *testing.T) {
	examples := DefaultExamples()
	translator := NewTranslator(nil, examples, 2, 100)

	prompt := translator.Prompt("q")

	assert.Equal(t, 2, strings.Count(prompt, "MongoDB Query Type:"))
	assert.Contains(t, prompt, "Fiscal year runs July-June")
}

func TestStripCodeFences(t *testing.T) {
	assert.Equal(t, `{"a":1}`, stripCodeFences("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, stripCodeFences("```\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, stripCodeFences("  {\"a\":1}  "))
}
