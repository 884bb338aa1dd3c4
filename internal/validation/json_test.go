package validation

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/tidwall/gjson"
)

func planSchema() FormatSpec {
	return FormatSpec{
		Type: FormatJSON,
		Schema: &JSONSchema{
			RootType:       "object",
			RequiredFields: []string{"objective", "tasks"},
			FieldTypes:     map[string]string{"tasks": "array", "objective": "string"},
		},
	}
}

func TestValidateJSON(t *testing.T) {
	tests := []struct {
		name   string
		output string
		want   []ErrorKind
	}{
		{"valid", `{"objective":"x","tasks":[]}`, nil},
		{"fenced", "```json\n{\"objective\":\"x\",\"tasks\":[]}\n```", nil},
		{"prose", `Here you go: {"objective":"x","tasks":[]}`, []ErrorKind{ErrorSyntax}},
		{"missing field", `{"objective":"x"}`, []ErrorKind{ErrorMissing}},
		{"wrong type", `{"objective":"x","tasks":{}}`, []ErrorKind{ErrorType}},
		{"wrong root", `[1,2]`, []ErrorKind{ErrorStructure, ErrorMissing, ErrorMissing}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ValidateJSON(tt.output, planSchema())
			if len(result.Errors) != len(tt.want) {
				t.Fatalf("errors = %+v, want kinds %v", result.Errors, tt.want)
			}
			for i, kind := range tt.want {
				if result.Errors[i].Kind != kind {
					t.Errorf("error[%d].Kind = %s, want %s", i, result.Errors[i].Kind, kind)
				}
			}
			if result.Valid != (len(tt.want) == 0) {
				t.Errorf("Valid = %v", result.Valid)
			}
		})
	}
}

func TestValidateJSON_NoSchema(t *testing.T) {
	if !ValidateJSON(`[1, "two"]`, FormatSpec{Type: FormatJSON}).Valid {
		t.Error("any valid JSON passes without a schema")
	}
}

func TestAutoCorrectJSON(t *testing.T) {
	spec := planSchema()

	corrected := AutoCorrectJSON("Sure! ```json\n{\"objective\": \"x\"}\n``` hope that helps", spec)
	if !gjson.Valid(corrected) {
		t.Fatalf("corrected output is not JSON: %q", corrected)
	}
	if got := gjson.Get(corrected, "objective").String(); got != "x" {
		t.Errorf("objective = %q, existing keys must be kept", got)
	}
	if tasks := gjson.Get(corrected, "tasks"); !tasks.Exists() || tasks.Type != gjson.Null {
		t.Errorf("tasks should be added as null, got %s", tasks.Raw)
	}

	if got := AutoCorrectJSON("{}", spec); got != `{"objective": null, "tasks": null}` {
		t.Errorf("AutoCorrectJSON(empty) = %q", got)
	}

	if got := AutoCorrectJSON("not json at all", spec); got != "not json at all" {
		t.Errorf("uncorrectable output should be returned as is, got %q", got)
	}
}

func TestExtractJSON(t *testing.T) {
	got, ok := ExtractJSON("prefix [1, 2, 3] suffix")
	if !ok || got != "[1, 2, 3]" {
		t.Errorf("ExtractJSON = %q, %v", got, ok)
	}
	if _, ok := ExtractJSON("{broken"); ok {
		t.Error("broken JSON should not extract")
	}
}

func TestLoadSpec(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plan.yaml")
	data := `type: JSON
schema:
  root_type: object
  required_fields: [objective, tasks]
  field_types:
    tasks: array
`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	spec, err := LoadSpec(path)
	if err != nil {
		t.Fatalf("LoadSpec failed: %v", err)
	}
	if spec.Type != FormatJSON {
		t.Errorf("Type = %q, want json", spec.Type)
	}
	if spec.Schema == nil || len(spec.Schema.RequiredFields) != 2 || spec.Schema.FieldTypes["tasks"] != "array" {
		t.Errorf("Schema = %+v", spec.Schema)
	}

	if _, err := ParseSpec([]byte("type: xml")); err == nil {
		t.Error("unknown type should fail to parse")
	}
	if _, err := LoadSpec(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("missing file should fail")
	}
}
