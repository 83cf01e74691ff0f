package tools

import "procurement/internal/llm"

// Tool is the metadata of one agent tool
type Tool struct {
	Kind        Kind
	DisplayName string
	Description string
	Parameters  map[string]interface{}
	Category    string
	Keywords    []string
}

// Name returns the tool name the model calls it by
func (t *Tool) Name() string {
	return t.Kind.String()
}

// ToolInfo is a JSON-serializable representation of a Tool
type ToolInfo struct {
	Name        string                 `json:"name"`
	DisplayName string                 `json:"displayName"`
	Description string                 `json:"description"`
	Category    string                 `json:"category"`
	Parameters  map[string]interface{} `json:"parameters"`
	Keywords    []string               `json:"keywords"`
}

// NewInspectSchemaTool creates the inspect_schema tool
func NewInspectSchemaTool() *Tool {
	return &Tool{
		Kind:        KindInspectSchema,
		DisplayName: "Inspect Schema",
		Description: "Inspect the procurement collection: lists the field names of a sample document, example values of the key fields, and conventions for dates, money and grouping. Use this when unsure about field names.",
		Parameters: map[string]interface{}{
			"type":       "object",
			"properties": map[string]interface{}{},
		},
		Category: "data_sources",
		Keywords: []string{"schema", "fields", "columns", "structure"},
	}
}

// NewTranslateQueryTool creates the translate_query tool
func NewTranslateQueryTool() *Tool {
	return &Tool{
		Kind:        KindTranslateQuery,
		DisplayName: "Translate Query",
		Description: "Convert a natural language question about procurement data into a MongoDB query. Returns JSON with query_type, query and explanation, or an error.",
		Parameters: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"user_question": map[string]interface{}{
					"type":        "string",
					"description": "The question about procurement data to translate",
				},
			},
			"required": []string{"user_question"},
		},
		Category: "computation",
		Keywords: []string{"translate", "query", "mongodb", "question"},
	}
}

// NewExecuteQueryTool creates the execute_query tool
func NewExecuteQueryTool() *Tool {
	return &Tool{
		Kind:        KindExecuteQuery,
		DisplayName: "Execute Query",
		Description: `Execute a MongoDB query against the procurement collection. Pass the JSON produced by translate_query, e.g. {"query_type": "aggregate", "query": {"pipeline": [...]}} or {"query_type": "find", "query": {"filter": {...}, "limit": 10}}. Returns success, results and count.`,
		Parameters: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"query_json": map[string]interface{}{
					"type":        "string",
					"description": "JSON string with query_type (find or aggregate) and query",
				},
			},
			"required": []string{"query_json"},
		},
		Category: "data_sources",
		Keywords: []string{"execute", "run", "mongodb", "aggregate", "find"},
	}
}

// NewSearchWebTool creates the search_web tool
func NewSearchWebTool() *Tool {
	return &Tool{
		Kind:        KindSearchWeb,
		DisplayName: "Search Web",
		Description: "Search the internet for external information such as current events, definitions or general knowledge. Not for procurement data questions.",
		Parameters: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "The search query to look up on the web",
				},
				"max_results": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of results to return (default 5)",
				},
			},
			"required": []string{"query"},
		},
		Category: "data_sources",
		Keywords: []string{"search", "web", "internet", "definition", "news"},
	}
}

// Definition converts the tool into the form bound to the model
func (t *Tool) Definition() llm.ToolDefinition {
	return llm.ToolDefinition{
		Name:        t.Name(),
		Description: t.Description,
		Parameters:  t.Parameters,
	}
}

// Info returns the JSON-serializable metadata of the tool
func (t *Tool) Info() ToolInfo {
	return ToolInfo{
		Name:        t.Name(),
		DisplayName: t.DisplayName,
		Description: t.Description,
		Category:    t.Category,
		Parameters:  t.Parameters,
		Keywords:    t.Keywords,
	}
}
