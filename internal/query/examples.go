package query

import (
	_ "embed"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"gopkg.in/yaml.v3"
)

//go:embed examples.yaml
var examplesYAML []byte

// Example is one question/query pair shown to the translator
type Example struct {
	Question    string
	QueryType   string
	Query       bson.D
	Explanation string
}

// UnmarshalYAML keeps the mapping order of the query so the prompt shows
// compound sorts the way they were written.
func (e *Example) UnmarshalYAML(node *yaml.Node) error {
	var raw struct {
		Question    string    `yaml:"user_query"`
		QueryType   string    `yaml:"query_type"`
		Query       yaml.Node `yaml:"query"`
		Explanation string    `yaml:"explanation"`
	}
	if err := node.Decode(&raw); err != nil {
		return err
	}

	e.Question, e.QueryType, e.Explanation = raw.Question, raw.QueryType, raw.Explanation
	e.Query = nil
	if raw.Query.Kind == 0 {
		return nil
	}
	value, err := yamlValue(&raw.Query)
	if err != nil {
		return err
	}
	query, ok := value.(bson.D)
	if !ok {
		return fmt.Errorf("line %d: query must be a mapping", raw.Query.Line)
	}
	e.Query = query
	return nil
}

func yamlValue(node *yaml.Node) (interface{}, error) {
	switch node.Kind {
	case yaml.DocumentNode:
		if len(node.Content) == 0 {
			return nil, nil
		}
		return yamlValue(node.Content[0])
	case yaml.AliasNode:
		return yamlValue(node.Alias)
	case yaml.MappingNode:
		doc := make(bson.D, 0, len(node.Content)/2)
		for i := 0; i+1 < len(node.Content); i += 2 {
			value, err := yamlValue(node.Content[i+1])
			if err != nil {
				return nil, err
			}
			doc = append(doc, bson.E{Key: node.Content[i].Value, Value: value})
		}
		return doc, nil
	case yaml.SequenceNode:
		arr := make(bson.A, 0, len(node.Content))
		for _, item := range node.Content {
			value, err := yamlValue(item)
			if err != nil {
				return nil, err
			}
			arr = append(arr, value)
		}
		return arr, nil
	default:
		var scalar interface{}
		if err := node.Decode(&scalar); err != nil {
			return nil, err
		}
		return toBSONValue(scalar), nil
	}
}

// LoadExamples parses a YAML example catalogue.
func LoadExamples(data []byte) ([]Example, error) {
	var examples []Example
	if err := yaml.Unmarshal(data, &examples); err != nil {
		return nil, fmt.Errorf("failed to parse examples: %w", err)
	}
	for i, ex := range examples {
		if ex.Question == "" || ex.Query == nil {
			return nil, fmt.Errorf("example %d is missing user_query or query", i)
		}
		if _, err := decodeStrict(bson.D{{Key: "query_type", Value: ex.QueryType}, {Key: "query", Value: ex.Query}}); err != nil {
			return nil, fmt.Errorf("example %d (%q): %w", i, ex.Question, err)
		}
	}
	return examples, nil
}

// DefaultExamples returns the built-in catalogue.
func DefaultExamples() []Example {
	examples, err := LoadExamples(examplesYAML)
	if err != nil {
		panic(fmt.Sprintf("query: built-in examples are invalid: %v", err))
	}
	return examples
}

// Questions lists the example questions, used as UI suggestions.
func Questions(examples []Example) []string {
	out := make([]string, 0, len(examples))
	for _, ex := range examples {
		out = append(out, ex.Question)
	}
	return out
}

func formatExamples(examples []Example) string {
	blocks := make([]string, 0, len(examples))
	for _, ex := range examples {
		queryJSON, err := bson.MarshalExtJSONIndent(ex.Query, false, false, "", "  ")
		if err != nil {
			continue
		}
		blocks = append(blocks, fmt.Sprintf(
			"User Query: %s\nMongoDB Query Type: %s\nMongoDB Query: %s\nExplanation: %s",
			ex.Question, ex.QueryType, queryJSON, ex.Explanation,
		))
	}
	return strings.Join(blocks, "\n---\n")
}
