package validation

import (
	"fmt"
	"os"
	"strings"

	"go.yaml.in/yaml/v3"
)

// FormatType names the output contract a FormatSpec describes.
type FormatType string

const (
	FormatMarkdown FormatType = "markdown"
	FormatJSON     FormatType = "json"
	FormatCode     FormatType = "code"
	FormatList     FormatType = "list"
	FormatFreeform FormatType = "freeform"
)

// Valid reports whether t is a known format type.
func (t FormatType) Valid() bool {
	switch t {
	case FormatMarkdown, FormatJSON, FormatCode, FormatList, FormatFreeform:
		return true
	}
	return false
}

// ErrorKind classifies a FormatError.
type ErrorKind string

const (
	ErrorMissing   ErrorKind = "missing"
	ErrorStructure ErrorKind = "structure"
	ErrorInvalid   ErrorKind = "invalid"
	ErrorSyntax    ErrorKind = "syntax"
	ErrorType      ErrorKind = "type"
)

// FormatError is one problem found in an output.
type FormatError struct {
	Kind       ErrorKind `json:"kind"`
	Message    string    `json:"message"`
	Location   string    `json:"location,omitempty"`
	Suggestion string    `json:"suggestion,omitempty"`
}

func (e FormatError) Error() string {
	if e.Location != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Kind, e.Message, e.Location)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// JSONSchema is the subset of structure checked for json outputs.
// Paths use gjson syntax ("user.name", "items.0").
type JSONSchema struct {
	RootType       string            `yaml:"root_type" json:"root_type,omitempty"`
	RequiredFields []string          `yaml:"required_fields" json:"required_fields,omitempty"`
	FieldTypes     map[string]string `yaml:"field_types" json:"field_types,omitempty"`
}

// FormatSpec declares what an output must look like.
type FormatSpec struct {
	Type FormatType `yaml:"type" json:"type"`

	// markdown
	RequiredSections []string `yaml:"required_sections" json:"required_sections,omitempty"`

	// json
	Schema *JSONSchema `yaml:"schema" json:"schema,omitempty"`

	// code
	Language string `yaml:"language" json:"language,omitempty"`

	// list
	MinItems int  `yaml:"min_items" json:"min_items,omitempty"`
	MaxItems int  `yaml:"max_items" json:"max_items,omitempty"`
	Ordered  bool `yaml:"ordered" json:"ordered,omitempty"`
}

// FormatValidation is the outcome of one Validate call.
type FormatValidation struct {
	Valid           bool          `json:"valid"`
	Errors          []FormatError `json:"errors,omitempty"`
	Suggestions     []string      `json:"suggestions,omitempty"`
	CorrectedOutput *string       `json:"corrected_output,omitempty"`
}

func (v *FormatValidation) addError(kind ErrorKind, message, location, suggestion string) {
	v.Errors = append(v.Errors, FormatError{
		Kind:       kind,
		Message:    message,
		Location:   location,
		Suggestion: suggestion,
	})
	if suggestion != "" {
		v.Suggestions = append(v.Suggestions, suggestion)
	}
	v.Valid = false
}

// HasKind reports whether any error of the given kind was found.
func (v FormatValidation) HasKind(kind ErrorKind) bool {
	for _, e := range v.Errors {
		if e.Kind == kind {
			return true
		}
	}
	return false
}

// Validate checks output against spec. An empty type is treated as freeform.
// When the output is invalid and an auto-correction changes it, the corrected
// text is attached.
func Validate(output string, spec FormatSpec) FormatValidation {
	var v FormatValidation

	switch spec.Type {
	case FormatMarkdown:
		v = ValidateMarkdown(output, spec)
	case FormatJSON:
		v = ValidateJSON(output, spec)
	case FormatCode:
		v = ValidateCode(output, spec)
	case FormatList:
		v = ValidateList(output, spec)
	case FormatFreeform, "":
		v = FormatValidation{Valid: true}
	default:
		v = FormatValidation{Valid: true}
		v.addError(ErrorInvalid, fmt.Sprintf("unknown format type %q", spec.Type), "",
			"use one of markdown, json, code, list, freeform")
		return v
	}

	if !v.Valid {
		if corrected, ok := AutoCorrect(output, spec); ok && corrected != output {
			v.CorrectedOutput = &corrected
		}
	}
	return v
}

// AutoCorrect applies the non-destructive correction defined for spec.Type.
// The bool is false when no correction exists for the type.
func AutoCorrect(output string, spec FormatSpec) (string, bool) {
	switch spec.Type {
	case FormatMarkdown:
		return AutoCorrectMarkdown(output, spec), true
	case FormatJSON:
		return AutoCorrectJSON(output, spec), true
	case FormatCode:
		return AutoCorrectCode(output, spec), true
	case FormatList:
		return AutoCorrectList(output, spec), true
	}
	return output, false
}

// ParseSpec decodes a YAML format spec.
func ParseSpec(data []byte) (FormatSpec, error) {
	var spec FormatSpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return FormatSpec{}, fmt.Errorf("parse format spec: %w", err)
	}
	spec.Type = FormatType(strings.ToLower(strings.TrimSpace(string(spec.Type))))
	if spec.Type == "" {
		spec.Type = FormatFreeform
	}
	if !spec.Type.Valid() {
		return FormatSpec{}, fmt.Errorf("parse format spec: unknown type %q", spec.Type)
	}
	return spec, nil
}

// LoadSpec reads a YAML format spec from path.
func LoadSpec(path string) (FormatSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return FormatSpec{}, fmt.Errorf("read format spec: %w", err)
	}
	return ParseSpec(data)
}

const fenceMarker = "```"

// isFence reports whether line opens or closes a fenced code block.
func isFence(line string) bool {
	return strings.HasPrefix(strings.TrimSpace(line), fenceMarker)
}

// countFences returns the number of fence marker lines in s.
func countFences(s string) int {
	n := 0
	for _, line := range strings.Split(s, "\n") {
		if isFence(line) {
			n++
		}
	}
	return n
}

// countFenceMarkers returns the number of ``` markers anywhere in s, inline ones included.
func countFenceMarkers(s string) int {
	return strings.Count(s, fenceMarker)
}

// closeFence appends a closing fence to s.
func closeFence(s string) string {
	if !strings.HasSuffix(s, "\n") {
		s += "\n"
	}
	return s + fenceMarker
}
