package converter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/atomicdeploy/pandata/pkg/pandata"
)

func TestExportToJSONWriter(t *testing.T) {
	tests := []struct {
		name     string
		records  []pandata.Record
		expected string
	}{
		{
			name: "Simple records",
			records: []pandata.Record{
				{"id": float64(1), "name": "Item 1"},
				{"id": float64(2), "name": "Item 2"},
			},
			expected: `[
  {"id": 1, "name": "Item 1"},
  {"id": 2, "name": "Item 2"}
]`,
		},
		{
			name:     "Empty records",
			records:  []pandata.Record{},
			expected: `[]`,
		},
		{
			name:     "Nil records",
			records:  nil,
			expected: `[]`,
		},
		{
			name: "Nested values",
			records: []pandata.Record{
				{"id": float64(3), "meta": map[string]any{"a": true}, "list": []any{"x", nil}},
			},
			expected: `[{"id": 3, "meta": {"a": true}, "list": ["x", null]}]`,
		},
		{
			name: "Special characters",
			records: []pandata.Record{
				{"name": "Test \"quoted\" & <special>"},
			},
			expected: `[{"name": "Test \"quoted\" & <special>"}]`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exp := NewExporter()
			var buf bytes.Buffer

			err := exp.ExportToJSONWriter(tt.records, &buf)
			if err != nil {
				t.Fatalf("ExportToJSONWriter failed: %v", err)
			}

			output := buf.String()
			if !strings.HasSuffix(output, "\n") {
				t.Error("Output should end with a newline")
			}

			var expectedJSON, actualJSON []interface{}
			if err := json.Unmarshal([]byte(tt.expected), &expectedJSON); err != nil {
				t.Fatalf("Failed to parse expected JSON: %v", err)
			}
			if err := json.Unmarshal(buf.Bytes(), &actualJSON); err != nil {
				t.Fatalf("Failed to parse actual JSON: %v", err)
			}

			if !jsonEqual(expectedJSON, actualJSON) {
				t.Errorf("JSON output mismatch:\nExpected:\n%s\nGot:\n%s", tt.expected, output)
			}
		})
	}
}

func TestExportToJSONWriterCompact(t *testing.T) {
	exp := NewExporter(WithIndent(""))
	var buf bytes.Buffer

	records := []pandata.Record{{"id": float64(1)}}
	if err := exp.ExportToJSONWriter(records, &buf); err != nil {
		t.Fatalf("ExportToJSONWriter failed: %v", err)
	}

	if got := buf.String(); got != "[{\"id\":1}]\n" {
		t.Errorf("Expected compact output, got %q", got)
	}
}

func TestExportToJSONWriterInlineArrays(t *testing.T) {
	exp := NewExporter(WithInlineArrays("scores"))
	var buf bytes.Buffer

	records := []pandata.Record{{"id": float64(1), "scores": []any{float64(3), float64(4)}}}
	if err := exp.ExportToJSONWriter(records, &buf); err != nil {
		t.Fatalf("ExportToJSONWriter failed: %v", err)
	}

	if !strings.Contains(buf.String(), `"scores": [3, 4]`) {
		t.Errorf("Expected inline scores array, got:\n%s", buf.String())
	}
}

func TestExportRecordToJSONWriter(t *testing.T) {
	exp := NewExporter(WithIndent(""))

	var buf bytes.Buffer
	if err := exp.ExportRecordToJSONWriter(pandata.Record{"id": float64(2)}, &buf); err != nil {
		t.Fatalf("ExportRecordToJSONWriter failed: %v", err)
	}
	if got := buf.String(); got != "{\"id\":2}\n" {
		t.Errorf("Unexpected output %q", got)
	}

	buf.Reset()
	if err := exp.ExportRecordToJSONWriter(nil, &buf); err != nil {
		t.Fatalf("ExportRecordToJSONWriter failed: %v", err)
	}
	if got := buf.String(); got != "null\n" {
		t.Errorf("Expected null, got %q", got)
	}
}

func TestExportToCSVWriter(t *testing.T) {
	tests := []struct {
		name            string
		records         []pandata.Record
		fields          []string
		expectedHeaders []string
		expectedRows    [][]string
	}{
		{
			name: "Simple CSV",
			records: []pandata.Record{
				{"id": float64(1), "name": "Item 1"},
				{"id": float64(2), "name": "Item 2"},
			},
			fields:          []string{"id", "name"},
			expectedHeaders: []string{"id", "name"},
			expectedRows: [][]string{
				{"1", "Item 1"},
				{"2", "Item 2"},
			},
		},
		{
			name: "CSV with missing field",
			records: []pandata.Record{
				{"id": float64(1), "name": "Item"},
				{"id": float64(2)},
			},
			fields:          []string{"id", "name"},
			expectedHeaders: []string{"id", "name"},
			expectedRows: [][]string{
				{"1", "Item"},
				{"2", ""},
			},
		},
		{
			name: "Derived header",
			records: []pandata.Record{
				{"name": "a", "id": float64(1)},
				{"active": true, "id": 2.5},
			},
			expectedHeaders: []string{"active", "id", "name"},
			expectedRows: [][]string{
				{"", "1", "a"},
				{"true", "2.5", ""},
			},
		},
		{
			name: "Nested and null values",
			records: []pandata.Record{
				{"id": float64(1), "meta": map[string]any{"k": "v"}, "note": nil},
			},
			fields:          []string{"id", "meta", "note"},
			expectedHeaders: []string{"id", "meta", "note"},
			expectedRows: [][]string{
				{"1", `{"k":"v"}`, ""},
			},
		},
		{
			name:            "Empty records",
			records:         []pandata.Record{},
			fields:          []string{"id", "name"},
			expectedHeaders: []string{"id", "name"},
			expectedRows:    [][]string{},
		},
		{
			name: "CSV with special characters",
			records: []pandata.Record{
				{"id": "special", "name": "Test \"quoted\", with, commas"},
			},
			fields:          []string{"id", "name"},
			expectedHeaders: []string{"id", "name"},
			expectedRows: [][]string{
				{"special", "Test \"quoted\", with, commas"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exp := NewExporter()
			var buf bytes.Buffer

			err := exp.ExportToCSVWriter(tt.records, tt.fields, &buf)
			if err != nil {
				t.Fatalf("ExportToCSVWriter failed: %v", err)
			}

			reader := csv.NewReader(strings.NewReader(buf.String()))
			reader.FieldsPerRecord = -1
			rows, err := reader.ReadAll()
			if err != nil {
				t.Fatalf("Failed to parse CSV: %v", err)
			}

			if len(rows) < 1 {
				t.Fatal("No header row in CSV output")
			}
			if !equalStrings(rows[0], tt.expectedHeaders) {
				t.Errorf("Header mismatch: expected %v, got %v", tt.expectedHeaders, rows[0])
			}

			dataRows := rows[1:]
			if len(dataRows) != len(tt.expectedRows) {
				t.Fatalf("Row count mismatch: expected %d, got %d", len(tt.expectedRows), len(dataRows))
			}
			for i, expectedRow := range tt.expectedRows {
				if !equalStrings(dataRows[i], expectedRow) {
					t.Errorf("Row[%d] mismatch: expected %v, got %v", i, expectedRow, dataRows[i])
				}
			}
		})
	}
}

func TestExport(t *testing.T) {
	exp := NewExporter()
	records := []pandata.Record{{"id": float64(1)}}

	var buf bytes.Buffer
	if err := exp.Export(FormatCSV, records, nil, &buf); err != nil {
		t.Fatalf("Export csv failed: %v", err)
	}
	if got := buf.String(); got != "id\n1\n" {
		t.Errorf("Unexpected CSV output %q", got)
	}

	buf.Reset()
	if err := exp.Export(ExportFormat("xml"), records, nil, &buf); err == nil {
		t.Error("Expected error for unsupported format")
	}
}

func TestParseFormat(t *testing.T) {
	for _, in := range []string{"json", "JSON", " csv "} {
		if _, err := ParseFormat(in); err != nil {
			t.Errorf("ParseFormat(%q) failed: %v", in, err)
		}
	}
	if _, err := ParseFormat("yaml"); err == nil {
		t.Error("Expected error for yaml")
	}
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// jsonEqual compares two JSON values for equality using simple marshaling
func jsonEqual(a, b interface{}) bool {
	aJSON, err := json.Marshal(a)
	if err != nil {
		return false
	}
	bJSON, err := json.Marshal(b)
	if err != nil {
		return false
	}
	return string(aJSON) == string(bJSON)
}

// errWriter is a writer that always returns an error
type errWriter struct{}

func (e *errWriter) Write(p []byte) (n int, err error) {
	return 0, fmt.Errorf("write error")
}

func TestExportToJSONWriterError(t *testing.T) {
	exp := NewExporter()
	records := []pandata.Record{{"id": float64(1)}}

	err := exp.ExportToJSONWriter(records, &errWriter{})
	if err == nil {
		t.Fatal("Expected error when writer fails, got nil")
	}
	if !strings.Contains(err.Error(), "failed to write JSON") {
		t.Errorf("Expected error message to contain 'failed to write JSON', got: %v", err)
	}
}

func TestExportToCSVWriterError(t *testing.T) {
	exp := NewExporter()
	records := []pandata.Record{{"id": float64(1)}}

	err := exp.ExportToCSVWriter(records, []string{"id"}, &errWriter{})
	if err == nil {
		t.Fatal("Expected error when writer fails, got nil")
	}
	if !strings.Contains(err.Error(), "failed to write CSV") {
		t.Errorf("Expected error message to contain 'failed to write CSV', got: %v", err)
	}
}
