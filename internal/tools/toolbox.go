package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"strings"

	"go.mongodb.org/mongo-driver/bson"

	"procurement/internal/llm"
	"procurement/internal/models"
	"procurement/internal/query"
)

// SchemaInspector describes the procurement collection
type SchemaInspector interface {
	Inspect(ctx context.Context) string
}

// QueryTranslator turns a question into a validated query
type QueryTranslator interface {
	Translate(ctx context.Context, question string) (*query.Translation, error)
}

// QueryExecutor runs a query given in its wire form
type QueryExecutor interface {
	ExecuteRaw(ctx context.Context, raw bson.D) models.QueryResult
}

// WebSearcher is the best-effort web search
type WebSearcher interface {
	Search(ctx context.Context, query string, maxResults int) models.SearchResult
}

// Toolbox binds the agent's tools to their implementations.
// It is stateless and safe for concurrent use.
type Toolbox struct {
	schema     SchemaInspector
	translator QueryTranslator
	executor   QueryExecutor
	searcher   WebSearcher
	tools      []*Tool
}

// NewToolbox builds the toolbox. A nil searcher leaves search_web unbound.
func NewToolbox(schema SchemaInspector, translator QueryTranslator, executor QueryExecutor, searcher WebSearcher) *Toolbox {
	tb := &Toolbox{
		schema:     schema,
		translator: translator,
		executor:   executor,
		searcher:   searcher,
		tools: []*Tool{
			NewInspectSchemaTool(),
			NewTranslateQueryTool(),
			NewExecuteQueryTool(),
		},
	}
	if searcher != nil {
		tb.tools = append(tb.tools, NewSearchWebTool())
	}
	return tb
}

// WebSearchEnabled reports whether search_web is bound
func (tb *Toolbox) WebSearchEnabled() bool {
	return tb.searcher != nil
}

// Definitions returns the tools in the form bound to the model
func (tb *Toolbox) Definitions() []llm.ToolDefinition {
	defs := make([]llm.ToolDefinition, 0, len(tb.tools))
	for _, t := range tb.tools {
		defs = append(defs, t.Definition())
	}
	return defs
}

// Names lists the bound tool names
func (tb *Toolbox) Names() []string {
	names := make([]string, 0, len(tb.tools))
	for _, t := range tb.tools {
		names = append(names, t.Name())
	}
	return names
}

// Infos returns the metadata of every bound tool
func (tb *Toolbox) Infos() []ToolInfo {
	infos := make([]ToolInfo, 0, len(tb.tools))
	for _, t := range tb.tools {
		infos = append(infos, t.Info())
	}
	return infos
}

// Dispatch runs one tool call and returns its observation.
// It always produces exactly one observation string.
func (tb *Toolbox) Dispatch(ctx context.Context, call llm.ToolCall) string {
	args := call.Arguments
	if args == nil {
		args = map[string]interface{}{}
	}

	switch ParseKind(call.Name) {
	case KindInspectSchema:
		return tb.schema.Inspect(ctx)
	case KindTranslateQuery:
		return tb.translate(ctx, stringArg(args, "user_question"))
	case KindExecuteQuery:
		return tb.execute(ctx, queryArgument(call))
	case KindSearchWeb:
		if tb.searcher == nil {
			return UnknownToolObservation
		}
		return tb.search(ctx, stringArg(args, "query"), intArg(args, "max_results", 5))
	default:
		log.Printf("⚠️ [TOOLS] Model requested unknown tool %q", call.Name)
		return UnknownToolObservation
	}
}

func (tb *Toolbox) translate(ctx context.Context, question string) string {
	translation, err := tb.translator.Translate(ctx, question)
	if err != nil {
		log.Printf("⚠️ [TOOLS] translate_query failed: %v", err)
		return encode(map[string]string{"error": err.Error()})
	}
	return encode(translation)
}

func (tb *Toolbox) execute(ctx context.Context, arg interface{}) string {
	raw, err := query.ParseQueryArgument(arg)
	if err != nil {
		return encode(models.QueryResult{
			Success: false,
			Results: []map[string]interface{}{},
			Error:   err.Error(),
		})
	}
	return encode(tb.executor.ExecuteRaw(ctx, raw))
}

// queryArgument returns query_json from the raw argument JSON when the model
// sent it, since an object-valued query_json loses its key order once decoded
// into a map.
func queryArgument(call llm.ToolCall) interface{} {
	if call.RawArguments != "" {
		if decoded, err := query.DecodeJSON([]byte(call.RawArguments)); err == nil {
			if args, ok := decoded.(bson.D); ok {
				for _, e := range args {
					if e.Key == "query_json" {
						return e.Value
					}
				}
			}
		}
	}
	return call.Arguments["query_json"]
}

func (tb *Toolbox) search(ctx context.Context, q string, maxResults int) string {
	return encode(tb.searcher.Search(ctx, q, maxResults))
}

func encode(v interface{}) string {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf(`{"error": %q}`, "failed to encode observation: "+err.Error())
	}
	return string(data)
}

func stringArg(args map[string]interface{}, key string) string {
	switch v := args[key].(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

func intArg(args map[string]interface{}, key string, fallback int) int {
	switch v := args[key].(type) {
	case float64:
		if v > 0 {
			return int(v)
		}
	case int:
		if v > 0 {
			return v
		}
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}
