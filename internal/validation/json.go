package validation

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

// StripFences removes a surrounding markdown code fence, if any.
func StripFences(s string) string {
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, fenceMarker) {
		return trimmed
	}
	// Drop the opening fence line (which may carry a language tag).
	if idx := strings.Index(trimmed, "\n"); idx >= 0 {
		trimmed = trimmed[idx+1:]
	} else {
		trimmed = strings.TrimPrefix(trimmed, fenceMarker)
	}
	trimmed = strings.TrimSpace(trimmed)
	trimmed = strings.TrimSuffix(trimmed, fenceMarker)
	return strings.TrimSpace(trimmed)
}

// ExtractJSON returns the JSON value embedded in s: fences are stripped and the
// text between the first opening brace/bracket and the last matching closer is
// returned. ok is false when nothing that parses is found.
func ExtractJSON(s string) (string, bool) {
	body := StripFences(s)
	if gjson.Valid(body) {
		return body, true
	}

	for _, pair := range [][2]string{{"{", "}"}, {"[", "]"}} {
		start := strings.Index(body, pair[0])
		end := strings.LastIndex(body, pair[1])
		if start < 0 || end <= start {
			continue
		}
		candidate := body[start : end+1]
		if gjson.Valid(candidate) {
			return candidate, true
		}
	}
	return "", false
}

// jsonTypeName describes a gjson value with the names used in FieldTypes.
func jsonTypeName(r gjson.Result) string {
	switch r.Type {
	case gjson.String:
		return "string"
	case gjson.Number:
		return "number"
	case gjson.True, gjson.False:
		return "boolean"
	case gjson.Null:
		return "null"
	case gjson.JSON:
		if r.IsArray() {
			return "array"
		}
		return "object"
	}
	return "unknown"
}

func knownJSONType(name string) bool {
	switch name {
	case "string", "number", "boolean", "null", "object", "array":
		return true
	}
	return false
}

// ValidateJSON checks that output parses and, when a schema is given, that its
// root type, required fields and field types match.
func ValidateJSON(output string, spec FormatSpec) FormatValidation {
	v := FormatValidation{Valid: true}

	payload := StripFences(output)
	if !gjson.Valid(payload) {
		suggestion := "return a single JSON value with no surrounding text"
		if _, ok := ExtractJSON(output); ok {
			suggestion = "remove the prose around the JSON value"
		}
		v.addError(ErrorSyntax, "output is not valid JSON", "", suggestion)
		return v
	}

	schema := spec.Schema
	if schema == nil {
		return v
	}

	root := gjson.Parse(payload)
	if schema.RootType != "" && jsonTypeName(root) != schema.RootType {
		v.addError(ErrorStructure,
			fmt.Sprintf("root is %s, want %s", jsonTypeName(root), schema.RootType),
			"$",
			fmt.Sprintf("wrap the output in a JSON %s", schema.RootType))
	}

	for _, path := range schema.RequiredFields {
		if !gjson.Get(payload, path).Exists() {
			v.addError(ErrorMissing,
				fmt.Sprintf("required field %q not found", path),
				path,
				fmt.Sprintf("add field %q", path))
		}
	}

	paths := make([]string, 0, len(schema.FieldTypes))
	for path := range schema.FieldTypes {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	for _, path := range paths {
		want := schema.FieldTypes[path]
		if !knownJSONType(want) {
			v.addError(ErrorInvalid,
				fmt.Sprintf("schema declares unknown type %q", want),
				path, "")
			continue
		}
		value := gjson.Get(payload, path)
		if !value.Exists() {
			continue
		}
		if got := jsonTypeName(value); got != want {
			v.addError(ErrorType,
				fmt.Sprintf("field %q is %s, want %s", path, got, want),
				path,
				fmt.Sprintf("make %q a %s", path, want))
		}
	}

	return v
}

// AutoCorrectJSON unwraps a JSON value embedded in prose or fences and adds
// missing top-level required keys with null values. Existing keys are never
// touched.
func AutoCorrectJSON(output string, spec FormatSpec) string {
	payload, ok := ExtractJSON(output)
	if !ok {
		return output
	}
	if spec.Schema == nil || !gjson.Parse(payload).IsObject() {
		return payload
	}

	var additions []string
	for _, path := range spec.Schema.RequiredFields {
		if strings.ContainsAny(path, ".*?#|@\\") {
			continue
		}
		if gjson.Get(payload, path).Exists() {
			continue
		}
		additions = append(additions, strconv.Quote(path)+": null")
	}
	if len(additions) == 0 {
		return payload
	}

	end := strings.LastIndex(payload, "}")
	inner := strings.TrimSpace(payload[1:end])
	sep := ", "
	if inner == "" {
		sep = ""
	}
	return strings.TrimRight(payload[:end], " \t\r\n") + sep + strings.Join(additions, ", ") + "}"
}
