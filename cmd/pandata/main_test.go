package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeItems(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "items.json")
	content := `[
  {"id": 2, "name": "Item 2", "group": "b"},
  {"id": 1, "name": "Item 1", "group": "a"},
  {"id": 3, "name": "3", "group": "a"}
]`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write items: %v", err)
	}
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func ids(t *testing.T, output string) []float64 {
	t.Helper()
	var records []map[string]interface{}
	if err := json.Unmarshal([]byte(output), &records); err != nil {
		t.Fatalf("Failed to parse output %q: %v", output, err)
	}
	out := make([]float64, 0, len(records))
	for _, r := range records {
		out = append(out, r["id"].(float64))
	}
	return out
}

func TestCommands(t *testing.T) {
	path := writeItems(t)

	tests := []struct {
		name string
		args []string
		want []float64
	}{
		{"all", []string{"all", path}, []float64{2, 1, 3}},
		{"find string", []string{"find", path, "group", "a"}, []float64{1, 3}},
		{"find number", []string{"find", path, "id", "2"}, []float64{2}},
		{"find quoted string", []string{"find", path, "name", `"3"`}, []float64{3}},
		{"find forced string", []string{"find", "--string", path, "name", "3"}, []float64{3}},
		{"find numeric probe misses string", []string{"find", path, "name", "3"}, []float64{}},
		{"remove", []string{"remove", path, "group", "a"}, []float64{2}},
		{"sort", []string{"sort", path, "id"}, []float64{1, 2, 3}},
		{"sort desc", []string{"sort", path, "id", "--desc"}, []float64{3, 2, 1}},
		{"sort text", []string{"sort", path, "name", "--text"}, []float64{3, 1, 2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			output, err := run(t, tt.args...)
			if err != nil {
				t.Fatalf("Command failed: %v", err)
			}
			got := ids(t, output)
			if len(got) != len(tt.want) {
				t.Fatalf("Expected ids %v, got %v", tt.want, got)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("Expected ids %v, got %v", tt.want, got)
					break
				}
			}
		})
	}
}

func TestFirstCommand(t *testing.T) {
	path := writeItems(t)

	output, err := run(t, "first", path, "group", "a")
	if err != nil {
		t.Fatalf("Command failed: %v", err)
	}
	var record map[string]interface{}
	if err := json.Unmarshal([]byte(output), &record); err != nil {
		t.Fatalf("Failed to parse output: %v", err)
	}
	if record["id"] != float64(1) {
		t.Errorf("Expected id 1, got %v", record["id"])
	}

	if _, err := run(t, "first", path, "group", "z"); err == nil {
		t.Error("Expected error when nothing matches")
	}
}

func TestCSVOutput(t *testing.T) {
	path := writeItems(t)

	output, err := run(t, "find", path, "group", "a", "--format", "csv", "--fields", "id,name")
	if err != nil {
		t.Fatalf("Command failed: %v", err)
	}
	if output != "id,name\n1,Item 1\n3,3\n" {
		t.Errorf("Unexpected CSV output %q", output)
	}
}

func TestInfoCommand(t *testing.T) {
	output, err := run(t, "info", writeItems(t))
	if err != nil {
		t.Fatalf("Command failed: %v", err)
	}
	for _, want := range []string{"Records: 3", "group", "name", "(in 3 records)"} {
		if !strings.Contains(output, want) {
			t.Errorf("Expected output to contain %q, got:\n%s", want, output)
		}
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := run(t, "all", filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("Expected error for missing file")
	}

	bad := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(bad, []byte(`{"id": 1}`), 0644); err != nil {
		t.Fatalf("Failed to write: %v", err)
	}
	_, err := run(t, "all", bad)
	if err == nil || !strings.Contains(err.Error(), "expected an array of objects") {
		t.Errorf("Expected shape error, got %v", err)
	}

	if _, err := run(t, "all", writeItems(t), "--format", "xml"); err == nil {
		t.Error("Expected error for unsupported format")
	}
}

func TestParseDebounceDuration(t *testing.T) {
	d, err := parseDebounceDuration("500ms")
	if err != nil || d != 500*time.Millisecond {
		t.Errorf("Expected 500ms, got %v (%v)", d, err)
	}
	if _, err := parseDebounceDuration("soon"); err == nil {
		t.Error("Expected error for invalid duration")
	}
	if _, err := parseDebounceDuration("-1s"); err == nil {
		t.Error("Expected error for negative duration")
	}
}
