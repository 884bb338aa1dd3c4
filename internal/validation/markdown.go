package validation

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	headingPattern   = regexp.MustCompile(`^#{1,6}\s+(\S.*)$`)
	emptyLinkPattern = regexp.MustCompile(`\[([^\]]*)\]\(\s*\)`)
)

const placeholderContent = "[Content needed]"

// Headings returns the heading texts of a markdown document, skipping
// fenced code blocks. A line with an odd number of ``` markers opens or
// closes a block, including an opener that trails other text.
func Headings(output string) []string {
	var headings []string
	inFence := false
	for _, line := range strings.Split(output, "\n") {
		if countFenceMarkers(line)%2 != 0 {
			inFence = !inFence
			continue
		}
		if inFence {
			continue
		}
		if m := headingPattern.FindStringSubmatch(strings.TrimRight(line, " \t\r")); m != nil {
			headings = append(headings, strings.TrimSpace(m[1]))
		}
	}
	return headings
}

// hasSection reports whether some heading contains name, ignoring case.
func hasSection(headings []string, name string) bool {
	want := strings.ToLower(strings.TrimSpace(name))
	for _, h := range headings {
		if strings.Contains(strings.ToLower(h), want) {
			return true
		}
	}
	return false
}

func missingSections(output string, required []string) []string {
	headings := Headings(output)
	var missing []string
	for _, name := range required {
		if strings.TrimSpace(name) == "" {
			continue
		}
		if !hasSection(headings, name) {
			missing = append(missing, name)
		}
	}
	return missing
}

// ValidateMarkdown checks required sections, emptiness, empty links and
// unclosed code blocks.
func ValidateMarkdown(output string, spec FormatSpec) FormatValidation {
	v := FormatValidation{Valid: true}

	headings := Headings(output)
	for _, name := range missingSections(output, spec.RequiredSections) {
		v.addError(ErrorMissing,
			fmt.Sprintf("required section %q not found", name),
			"",
			fmt.Sprintf("add a \"## %s\" section", name))
	}

	hasContent := false
	for _, line := range strings.Split(output, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed != "" && !headingPattern.MatchString(trimmed) {
			hasContent = true
			break
		}
	}
	if len(headings) == 0 && !hasContent {
		v.addError(ErrorStructure, "document has no headings and no content", "",
			"add at least one heading or paragraph")
	}

	for i, line := range strings.Split(output, "\n") {
		for _, m := range emptyLinkPattern.FindAllStringSubmatch(line, -1) {
			v.addError(ErrorInvalid,
				fmt.Sprintf("link %q has an empty URL", m[1]),
				fmt.Sprintf("line %d", i+1),
				"fill in the link target or remove the link")
		}
	}

	if countFenceMarkers(output)%2 != 0 {
		v.addError(ErrorStructure, "unclosed code block", "",
			"add a closing ``` fence")
	}

	return v
}

// AutoCorrectMarkdown closes an unbalanced code fence and appends a placeholder
// section for each missing required section. Existing content is kept as is.
func AutoCorrectMarkdown(output string, spec FormatSpec) string {
	corrected := output
	if countFenceMarkers(corrected)%2 != 0 {
		corrected = closeFence(corrected)
	}

	for _, name := range missingSections(corrected, spec.RequiredSections) {
		corrected = sectionBreak(corrected) + fmt.Sprintf("## %s\n\n%s", name, placeholderContent)
	}
	return corrected
}

// sectionBreak pads s so that a following heading starts after a blank line.
func sectionBreak(s string) string {
	switch {
	case s == "" || strings.HasSuffix(s, "\n\n"):
		return s
	case strings.HasSuffix(s, "\n"):
		return s + "\n"
	default:
		return s + "\n\n"
	}
}
