// Package ingest loads the procurement purchase-order CSV export into the
// document store.
package ingest

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
)

// Column maps a CSV header to a document field
type Column struct {
	Header string
	Field  string
}

// FieldMapping is the CSV header to document field mapping, in file order.
var FieldMapping = []Column{
	{"Creation Date", "creation_date"},
	{"Purchase Date", "purchase_date"},
	{"Fiscal Year", "fiscal_year"},
	{"LPA Number", "lpa_number"},
	{"Purchase Order Number", "purchase_order_number"},
	{"Requisition Number", "requisition_number"},
	{"Acquisition Type", "acquisition_type"},
	{"Sub-Acquisition Type", "sub_acquisition_type"},
	{"Acquisition Method", "acquisition_method"},
	{"Sub-Acquisition Method", "sub_acquisition_method"},
	{"Department Name", "department_name"},
	{"Supplier Code", "supplier_code"},
	{"Supplier Name", "supplier_name"},
	{"Supplier Qualifications", "supplier_qualifications"},
	{"Supplier Zip Code", "supplier_zip_code"},
	{"CalCard", "cal_card"},
	{"Item Name", "item_name"},
	{"Item Description", "item_description"},
	{"Quantity", "quantity"},
	{"Unit Price", "unit_price"},
	{"Total Price", "total_price"},
	{"Classification Codes", "classification_codes"},
	{"Normalized UNSPSC", "normalized_unspsc"},
	{"Commodity Title", "commodity_title"},
	{"Class", "class_code"},
	{"Class Title", "class_title"},
	{"Family", "family_code"},
	{"Family Title", "family_title"},
	{"Segment", "segment_code"},
	{"Segment Title", "segment_title"},
	{"Location", "location"},
}

var datePattern = regexp.MustCompile(`^(\d{1,2})/(\d{1,2})/(\d{4})`)

// CleanCurrency parses "$1,234.56". Blank or unparseable values are 0.
func CleanCurrency(value string) float64 {
	return CleanNumeric(strings.ReplaceAll(value, "$", ""))
}

// CleanNumeric parses "1,234.5". Blank or unparseable values are 0.
func CleanNumeric(value string) float64 {
	cleaned := strings.TrimSpace(strings.ReplaceAll(value, ",", ""))
	if cleaned == "" {
		return 0
	}
	f, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0
	}
	return f
}

// ParsedDate is a MM/DD/YYYY date split into its parts
type ParsedDate struct {
	Time    time.Time
	Year    int
	Month   int
	Day     int
	Quarter int
}

// ParseDate parses MM/DD/YYYY. Invalid calendar dates (02/30/2014) are rejected.
func ParseDate(value string) (ParsedDate, bool) {
	m := datePattern.FindStringSubmatch(strings.TrimSpace(value))
	if m == nil {
		return ParsedDate{}, false
	}
	month, _ := strconv.Atoi(m[1])
	day, _ := strconv.Atoi(m[2])
	year, _ := strconv.Atoi(m[3])

	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Year() != year || int(t.Month()) != month || t.Day() != day {
		return ParsedDate{}, false
	}
	return ParsedDate{
		Time:    t,
		Year:    year,
		Month:   month,
		Day:     day,
		Quarter: (month-1)/3 + 1,
	}, true
}

// FiscalQuarter returns the California fiscal quarter of a month.
// The fiscal year starts July 1, so Jul-Sep is Q1 and Apr-Jun is Q4.
func FiscalQuarter(month int) string {
	switch {
	case month >= 7 && month <= 9:
		return "Q1"
	case month >= 10 && month <= 12:
		return "Q2"
	case month >= 1 && month <= 3:
		return "Q3"
	case month >= 4 && month <= 6:
		return "Q4"
	}
	return ""
}

// ParseRow converts one CSV row, keyed by header, into a document.
func ParseRow(row map[string]string) bson.M {
	doc := bson.M{}
	for _, col := range FieldMapping {
		value := row[col.Header]
		switch col.Field {
		case "quantity":
			doc[col.Field] = CleanNumeric(value)
		case "unit_price", "total_price":
			doc[col.Field] = CleanCurrency(value)
		default:
			doc[col.Field] = strings.TrimSpace(value)
		}
	}

	if created, _ := doc["creation_date"].(string); created != "" {
		if parsed, ok := ParseDate(created); ok {
			doc["creation_date_parsed"] = parsed.Time
			doc["creation_year"] = parsed.Year
			doc["creation_month"] = parsed.Month
			doc["creation_quarter"] = parsed.Quarter
			if q := FiscalQuarter(parsed.Month); q != "" {
				doc["fiscal_quarter"] = q
			}
		}
	}

	if purchased, _ := doc["purchase_date"].(string); purchased != "" {
		if parsed, ok := ParseDate(purchased); ok {
			doc["purchase_date_parsed"] = parsed.Time
		}
	}
	return doc
}
