package query

import (
	"context"
	"log"
	"strings"

	"go.mongodb.org/mongo-driver/bson"

	"procurement/internal/llm"
)

// SchemaDescription is the field guide given to the translator model
const SchemaDescription = `DATABASE SCHEMA:
- creation_date (string, MM/DD/YYYY), creation_date_parsed (datetime), creation_year, creation_month, creation_quarter (integers)
- fiscal_year (string: "2013-2014"), fiscal_quarter (string: "Q1", "Q2", "Q3", "Q4")
  * Fiscal year runs July-June: Q1=Jul-Sep, Q2=Oct-Dec, Q3=Jan-Mar, Q4=Apr-Jun
- purchase_date, lpa_number, purchase_order_number, requisition_number
- acquisition_type, acquisition_method (e.g., "IT Goods", "WSCA/Coop")
- department_name, supplier_name, supplier_code
- item_name, item_description, quantity
- unit_price, total_price (numbers in dollars)
- commodity_title, class_code, family_code, segment_code, location`

const translatorInstructions = `INSTRUCTIONS:
1. Read the user's question
2. Write one MongoDB find query or aggregation pipeline that answers it
3. Reply with ONLY a JSON object shaped like:
{
  "query_type": "find" | "aggregate",
  "query": {...},
  "explanation": "Brief explanation"
}
A find query is {"filter": {...}, "limit": N}. An aggregate query is {"pipeline": [...]}.
Never use $out or $merge.`

// Translator turns a question into a validated StructuredQuery using the model
type Translator struct {
	model      llm.Model
	examples   []Example
	maxResults int64
}

// NewTranslator builds a translator that shows the first numExamples examples.
func NewTranslator(model llm.Model, examples []Example, numExamples int, maxResults int64) *Translator {
	if numExamples < 0 {
		numExamples = 0
	}
	if numExamples < len(examples) {
		examples = examples[:numExamples]
	}
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}
	return &Translator{model: model, examples: examples, maxResults: maxResults}
}

// Prompt renders the full translation prompt for a question.
func (t *Translator) Prompt(question string) string {
	var sb strings.Builder
	sb.WriteString("You are an expert MongoDB query generator for a California state procurement database.\n\n")
	sb.WriteString(SchemaDescription)
	sb.WriteString("\n\n")
	sb.WriteString(translatorInstructions)
	sb.WriteString("\n\nEXAMPLES:\n")
	sb.WriteString(formatExamples(t.examples))
	sb.WriteString("\n---\n")
	sb.WriteString("\nNow translate this query:\nUser Query: ")
	sb.WriteString(question)
	sb.WriteString("\n\nReturn ONLY the JSON object, no additional text:")
	return sb.String()
}

// Translate asks the model for a query and validates what comes back.
// Failures are *Error values of kind translation or validation.
func (t *Translator) Translate(ctx context.Context, question string) (*Translation, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, translationError(nil, "question is empty")
	}

	log.Printf("🧭 [TRANSLATOR] Translating: %s", question)

	resp, err := t.model.Invoke(ctx, []llm.Message{llm.UserMessage{Content: t.Prompt(question)}}, nil)
	if err != nil {
		return nil, translationError(err, "model call failed")
	}

	payload := stripCodeFences(resp.Content)
	decoded, err := DecodeJSON([]byte(payload))
	if err != nil {
		log.Printf("⚠️ [TRANSLATOR] Model did not return JSON: %.200s", payload)
		return nil, translationError(err, "model did not return valid JSON")
	}
	parsed, ok := decoded.(bson.D)
	if !ok {
		return nil, translationError(nil, "model returned %T instead of a JSON object", decoded)
	}

	q, err := decodeStrict(parsed)
	if err != nil {
		return nil, err
	}
	if err := Validate(&q, t.maxResults); err != nil {
		return nil, err
	}

	explanationValue, _ := field(parsed, "explanation")
	explanation, _ := explanationValue.(string)
	log.Printf("✅ [TRANSLATOR] Produced %s query", q.Kind)
	return &Translation{Query: q, Explanation: explanation}, nil
}

// stripCodeFences removes a surrounding ```json ... ``` block if present.
func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if idx := strings.Index(s, "```json"); idx >= 0 {
		s = s[idx+len("```json"):]
	} else if idx := strings.Index(s, "```"); idx >= 0 {
		s = s[idx+3:]
	} else {
		return s
	}
	if end := strings.Index(s, "```"); end >= 0 {
		s = s[:end]
	}
	return strings.TrimSpace(s)
}
