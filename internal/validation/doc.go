// Package validation checks generated output against a declared format contract.
//
// # Overview
//
// A FormatSpec names the expected shape of an output:
//
//   - markdown: required sections, no empty links, balanced code fences
//   - json: parses, and optionally matches a schema of gjson paths and types
//   - code: non-empty, declared language, balanced fences and brackets
//   - list: item count bounds, consistent markers, no empty items
//   - freeform: always valid
//
// Validate never fails; problems are reported as typed FormatErrors in a
// FormatValidation. When an output is invalid, Validate also attaches the
// result of AutoCorrect if it differs from the input.
//
// # Auto-correction
//
// Corrections only add text. Markdown gains a closing fence and placeholder
// sections, lists gain placeholder items, code gains a closing fence, and JSON
// is unwrapped from surrounding prose before missing top-level keys are added
// as null.
//
// # Usage
//
//	spec := validation.FormatSpec{
//	    Type:             validation.FormatMarkdown,
//	    RequiredSections: []string{"Summary", "Risks"},
//	}
//	result := validation.Validate(answer, spec)
//	if !result.Valid && result.CorrectedOutput != nil {
//	    answer = *result.CorrectedOutput
//	}
//
// Specs can also be loaded from YAML with LoadSpec:
//
//	type: json
//	schema:
//	  root_type: object
//	  required_fields: [objective, tasks]
//	  field_types:
//	    tasks: array
package validation
