package validation

import (
	"strings"
	"testing"
)

func TestValidateMarkdown_MissingSection(t *testing.T) {
	spec := FormatSpec{Type: FormatMarkdown, RequiredSections: []string{"Summary"}}

	result := ValidateMarkdown("no headers here", spec)
	if result.Valid {
		t.Fatal("expected invalid result")
	}
	if !result.HasKind(ErrorMissing) {
		t.Errorf("expected a missing error, got %+v", result.Errors)
	}
	if len(result.Suggestions) == 0 {
		t.Error("expected a suggestion for the missing section")
	}

	corrected := AutoCorrectMarkdown("no headers here", spec)
	if !strings.HasPrefix(corrected, "no headers here") {
		t.Errorf("correction must keep existing content, got %q", corrected)
	}
	if !strings.Contains(corrected, "## Summary\n\n[Content needed]") {
		t.Errorf("corrected output lacks placeholder section: %q", corrected)
	}

	again := ValidateMarkdown(corrected, spec)
	if again.HasKind(ErrorMissing) {
		t.Errorf("re-validation still reports missing sections: %+v", again.Errors)
	}
}

func TestValidateMarkdown_SectionMatching(t *testing.T) {
	doc := "# Project Overview\n\nText.\n\n### Known RISKS and mitigations\n\nMore."
	spec := FormatSpec{Type: FormatMarkdown, RequiredSections: []string{"overview", "risks"}}

	result := ValidateMarkdown(doc, spec)
	if !result.Valid {
		t.Errorf("expected valid, got %+v", result.Errors)
	}
}

func TestValidateMarkdown_UnclosedFence(t *testing.T) {
	input := "```js\ncode"

	result := ValidateMarkdown(input, FormatSpec{Type: FormatMarkdown})
	if !result.HasKind(ErrorStructure) {
		t.Fatalf("expected structure error, got %+v", result.Errors)
	}

	corrected := AutoCorrectMarkdown(input, FormatSpec{Type: FormatMarkdown})
	if n := strings.Count(corrected, "```"); n%2 != 0 {
		t.Errorf("fence count after correction = %d, want even", n)
	}
	if !strings.HasPrefix(corrected, input) {
		t.Errorf("correction must be additive, got %q", corrected)
	}
}

func TestValidateMarkdown_InlineFenceMarker(t *testing.T) {
	input := "# Title\n\nSee below ```js\nconsole.log(1)"
	spec := FormatSpec{Type: FormatMarkdown, RequiredSections: []string{"Summary"}}

	result := ValidateMarkdown(input, spec)
	if !result.HasKind(ErrorStructure) {
		t.Fatalf("expected structure error for inline opener, got %+v", result.Errors)
	}

	corrected := AutoCorrectMarkdown(input, spec)
	if n := strings.Count(corrected, "```"); n != 2 {
		t.Errorf("fence markers after correction = %d, want 2: %q", n, corrected)
	}
	if !strings.HasPrefix(corrected, input) {
		t.Errorf("correction must be additive, got %q", corrected)
	}
	if again := ValidateMarkdown(corrected, spec); !again.Valid {
		t.Errorf("corrected output should validate, got %+v", again.Errors)
	}
}

func TestAutoCorrectMarkdown_KeepsTrailingNewlines(t *testing.T) {
	spec := FormatSpec{Type: FormatMarkdown, RequiredSections: []string{"Summary", "Risks"}}

	tests := []string{
		"# Intro\n\ntext\n\n\n",
		"# Intro\n\ntext\n",
		"# Intro\n\ntext",
	}
	for _, input := range tests {
		corrected := AutoCorrectMarkdown(input, spec)
		if !strings.HasPrefix(corrected, input) {
			t.Errorf("AutoCorrectMarkdown(%q) dropped content: %q", input, corrected)
		}
		if !strings.Contains(corrected, "\n\n## Summary\n\n[Content needed]\n\n## Risks\n\n[Content needed]") {
			t.Errorf("AutoCorrectMarkdown(%q) = %q, want both placeholder sections", input, corrected)
		}
	}
}

func TestValidateMarkdown_EmptyLinks(t *testing.T) {
	doc := "# Links\n\nSee [docs]() and [home]( ) but [ok](https://example.com)."

	result := ValidateMarkdown(doc, FormatSpec{Type: FormatMarkdown})
	count := 0
	for _, e := range result.Errors {
		if e.Kind == ErrorInvalid {
			count++
		}
	}
	if count != 2 {
		t.Errorf("invalid link errors = %d, want 2 (%+v)", count, result.Errors)
	}
}

func TestValidateMarkdown_Empty(t *testing.T) {
	result := ValidateMarkdown("   \n\n", FormatSpec{Type: FormatMarkdown})
	if !result.HasKind(ErrorStructure) {
		t.Errorf("expected structure error for empty document, got %+v", result.Errors)
	}
}

func TestHeadings_SkipsCodeBlocks(t *testing.T) {
	doc := "# Real\n```python\n# not a heading\n```\n####### too deep\n## Second"

	got := Headings(doc)
	want := []string{"Real", "Second"}
	if len(got) != len(want) {
		t.Fatalf("Headings = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Headings[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestValidate_AttachesCorrection(t *testing.T) {
	spec := FormatSpec{Type: FormatMarkdown, RequiredSections: []string{"Summary"}}

	result := Validate("# Intro\n\nhello", spec)
	if result.Valid {
		t.Fatal("expected invalid")
	}
	if result.CorrectedOutput == nil {
		t.Fatal("expected corrected output")
	}
	if !Validate(*result.CorrectedOutput, spec).Valid {
		t.Errorf("corrected output should validate: %q", *result.CorrectedOutput)
	}

	ok := Validate("# Summary\n\nhello", spec)
	if !ok.Valid || ok.CorrectedOutput != nil {
		t.Errorf("valid output should have no correction: %+v", ok)
	}
}

func TestValidate_FreeformAndUnknown(t *testing.T) {
	if !Validate("", FormatSpec{Type: FormatFreeform}).Valid {
		t.Error("freeform must always be valid")
	}
	if !Validate("anything", FormatSpec{}).Valid {
		t.Error("empty type is freeform")
	}
	result := Validate("x", FormatSpec{Type: "yaml"})
	if result.Valid || !result.HasKind(ErrorInvalid) {
		t.Errorf("unknown type should be invalid, got %+v", result)
	}
}
