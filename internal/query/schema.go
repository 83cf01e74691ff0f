package query

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"strings"
)

// sampleFields are the fields shown with sample values
var sampleFields = []string{
	"department_name", "supplier_name", "item_name",
	"total_price", "fiscal_year", "fiscal_quarter",
	"creation_date", "quantity",
}

const fieldNotes = `Key Field Notes:
- Dates: creation_date (string MM/DD/YYYY), fiscal_year (string "2013-2014"), fiscal_quarter (Q1-Q4)
- Money: total_price (number), unit_price (number)
- Identifiers: department_name, supplier_name, item_name
- Grouping: Use fiscal_year and fiscal_quarter for time-based queries`

// SchemaInspector describes the collection from one sample document
type SchemaInspector struct {
	store DocumentStore
}

func NewSchemaInspector(store DocumentStore) *SchemaInspector {
	return &SchemaInspector{store: store}
}

// Inspect returns the field list, sample values of the key fields and notes
// on how to query them. Failures are reported as text.
func (s *SchemaInspector) Inspect(ctx context.Context) string {
	sample, err := s.store.SampleOne(ctx)
	if err != nil {
		log.Printf("⚠️ [SCHEMA] Failed to sample collection: %v", err)
		return fmt.Sprintf("Error retrieving schema: %v", err)
	}
	if len(sample) == 0 {
		return "Collection is empty."
	}

	fields := make([]string, 0, len(sample))
	for k := range sample {
		if k != "_id" {
			fields = append(fields, k)
		}
	}
	sort.Strings(fields)

	clean := make(map[string]interface{})
	for _, f := range sampleFields {
		if v, ok := sample[f]; ok {
			clean[f] = NormalizeValue(v)
		}
	}
	sampleJSON, err := json.MarshalIndent(clean, "", "  ")
	if err != nil {
		sampleJSON = []byte("{}")
	}

	return fmt.Sprintf("Collection Fields: %s\n\nSample Document:\n%s\n\n%s\n",
		strings.Join(fields, ", "), sampleJSON, fieldNotes)
}
