package converter

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/atomicdeploy/pandata/pkg/pandata"
)

// ExportFormat represents the export format type
type ExportFormat string

const (
	FormatJSON ExportFormat = "json"
	FormatCSV  ExportFormat = "csv"
)

// ParseFormat validates a user supplied format name
func ParseFormat(s string) (ExportFormat, error) {
	switch f := ExportFormat(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatJSON, FormatCSV:
		return f, nil
	default:
		return "", fmt.Errorf("unsupported format: %q (expected json or csv)", s)
	}
}

var numberPattern = `-?\d+(?:\.\d+)?(?:[eE][+-]?\d+)?`

// Exporter renders records as JSON or CSV
type Exporter struct {
	indent       string
	inlineFields []string
}

// Option configures an Exporter
type Option func(*Exporter)

// WithIndent sets the JSON indent string; an empty string produces compact output
func WithIndent(indent string) Option {
	return func(e *Exporter) {
		e.indent = indent
	}
}

// WithInlineArrays keeps numeric arrays under the named fields on a single line
func WithInlineArrays(fields ...string) Option {
	return func(e *Exporter) {
		e.inlineFields = append(e.inlineFields, fields...)
	}
}

// NewExporter creates a new exporter
func NewExporter(opts ...Option) *Exporter {
	e := &Exporter{indent: "  "}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Export writes records in the given format. fields is only used for CSV.
func (e *Exporter) Export(format ExportFormat, records []pandata.Record, fields []string, w io.Writer) error {
	switch format {
	case FormatCSV:
		return e.ExportToCSVWriter(records, fields, w)
	case FormatJSON, "":
		return e.ExportToJSONWriter(records, w)
	default:
		return fmt.Errorf("unsupported format: %q", format)
	}
}

// ExportToJSONWriter writes records as a JSON array followed by a newline
func (e *Exporter) ExportToJSONWriter(records []pandata.Record, w io.Writer) error {
	if records == nil {
		records = []pandata.Record{}
	}

	output, err := e.marshal(records)
	if err != nil {
		return err
	}

	if _, err := io.WriteString(w, output+"\n"); err != nil {
		return fmt.Errorf("failed to write JSON: %w", err)
	}
	return nil
}

// ExportRecordToJSONWriter writes a single record, or null when r is nil
func (e *Exporter) ExportRecordToJSONWriter(r pandata.Record, w io.Writer) error {
	output, err := e.marshal(r)
	if err != nil {
		return err
	}

	if _, err := io.WriteString(w, output+"\n"); err != nil {
		return fmt.Errorf("failed to write JSON: %w", err)
	}
	return nil
}

func (e *Exporter) marshal(v any) (string, error) {
	var (
		data []byte
		err  error
	)
	if e.indent == "" {
		data, err = json.Marshal(v)
	} else {
		data, err = json.MarshalIndent(v, "", e.indent)
	}
	if err != nil {
		return "", fmt.Errorf("failed to encode JSON: %w", err)
	}

	output := string(data)
	if e.indent != "" && len(e.inlineFields) > 0 {
		output = makeArraysInline(output, e.inlineFields...)
	}
	return output, nil
}

// ExportToCSVWriter writes records as CSV with a header row. When fields is
// empty the sorted union of record keys is used.
func (e *Exporter) ExportToCSVWriter(records []pandata.Record, fields []string, w io.Writer) error {
	if len(fields) == 0 {
		fields = Fields(records)
	}

	writer := csv.NewWriter(w)

	if err := writer.Write(fields); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, record := range records {
		row := make([]string, len(fields))
		for i, field := range fields {
			if val, ok := record[field]; ok {
				row[i] = formatCell(val)
			}
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("failed to write CSV: %w", err)
	}
	return nil
}

// Fields returns the sorted union of top-level keys across records
func Fields(records []pandata.Record) []string {
	return pandata.NewWithRecords(records).Keys()
}

// formatCell renders a field value for CSV. Nested values are written as compact JSON.
func formatCell(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case map[string]any, []any:
		data, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprintf("%v", t)
		}
		return string(data)
	default:
		return fmt.Sprintf("%v", t)
	}
}

// makeArraysInline converts multi-line numeric arrays under the named
// fields to single-line format
func makeArraysInline(jsonStr string, fieldNames ...string) string {
	quoted := make([]string, 0, len(fieldNames))
	for _, name := range fieldNames {
		if name != "" {
			quoted = append(quoted, regexp.QuoteMeta(name))
		}
	}
	if len(quoted) == 0 {
		return jsonStr
	}

	// Matches: "field": [\n      1,\n      2\n    ]
	pattern := fmt.Sprintf(`"(%s)":\s*\[\s*((?:%s\s*,?\s*)+)\]`, strings.Join(quoted, "|"), numberPattern)
	re := regexp.MustCompile(pattern)
	valueRe := regexp.MustCompile(numberPattern)

	return re.ReplaceAllStringFunc(jsonStr, func(match string) string {
		sub := re.FindStringSubmatch(match)
		values := valueRe.FindAllString(sub[2], -1)
		return fmt.Sprintf(`"%s": [%s]`, sub[1], strings.Join(values, ", "))
	})
}
