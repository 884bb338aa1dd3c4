package validation

import (
	"fmt"
	"strings"
)

var bracketPairs = map[rune]rune{')': '(', ']': '[', '}': '{'}

type openBracket struct {
	char rune
	line int
}

// codeBody returns the code inside the first fenced block, or the whole output
// when it is not fenced, along with the opening fence's language tag.
func codeBody(output string) (body, lang string, fenced bool) {
	lines := strings.Split(output, "\n")
	start := -1
	for i, line := range lines {
		if isFence(line) {
			start = i
			break
		}
	}
	if start < 0 {
		return output, "", false
	}

	lang = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(lines[start]), fenceMarker))
	end := len(lines)
	for i := start + 1; i < len(lines); i++ {
		if isFence(lines[i]) {
			end = i
			break
		}
	}
	return strings.Join(lines[start+1:end], "\n"), lang, true
}

// checkBrackets reports unmatched brackets outside string literals.
// Quoted strings end at the line break; backtick strings may span lines.
func checkBrackets(code string) []FormatError {
	var (
		errs  []FormatError
		stack []openBracket
		quote rune
		esc   bool
		line  = 1
	)

	for _, r := range code {
		if r == '\n' {
			line++
			if quote == '"' || quote == '\'' {
				quote = 0
			}
			esc = false
			continue
		}
		if quote != 0 {
			switch {
			case esc:
				esc = false
			case r == '\\' && quote != '`':
				esc = true
			case r == quote:
				quote = 0
			}
			continue
		}

		switch r {
		case '"', '\'', '`':
			quote = r
		case '(', '[', '{':
			stack = append(stack, openBracket{char: r, line: line})
		case ')', ']', '}':
			want := bracketPairs[r]
			if len(stack) == 0 || stack[len(stack)-1].char != want {
				errs = append(errs, FormatError{
					Kind:       ErrorStructure,
					Message:    fmt.Sprintf("unexpected %q", r),
					Location:   fmt.Sprintf("line %d", line),
					Suggestion: fmt.Sprintf("remove the %q or add the matching %q", r, want),
				})
				continue
			}
			stack = stack[:len(stack)-1]
		}
	}

	for _, open := range stack {
		errs = append(errs, FormatError{
			Kind:       ErrorStructure,
			Message:    fmt.Sprintf("unclosed %q", open.char),
			Location:   fmt.Sprintf("line %d", open.line),
			Suggestion: "close the bracket",
		})
	}
	return errs
}

// ValidateCode checks a code output: non-empty, balanced fences, the declared
// language on the opening fence and balanced brackets.
func ValidateCode(output string, spec FormatSpec) FormatValidation {
	v := FormatValidation{Valid: true}

	if strings.TrimSpace(output) == "" {
		v.addError(ErrorMissing, "no code found", "", "return the requested code")
		return v
	}

	if countFences(output)%2 != 0 {
		v.addError(ErrorStructure, "unclosed code block", "", "add a closing ``` fence")
	}

	body, lang, fenced := codeBody(output)
	if spec.Language != "" && fenced {
		switch {
		case lang == "":
			v.Suggestions = append(v.Suggestions,
				fmt.Sprintf("label the code block as ```%s", spec.Language))
		case !strings.EqualFold(lang, spec.Language):
			v.addError(ErrorInvalid,
				fmt.Sprintf("code block is labelled %q, want %q", lang, spec.Language),
				"line 1",
				fmt.Sprintf("write the code in %s", spec.Language))
		}
	}

	if strings.TrimSpace(body) == "" {
		v.addError(ErrorMissing, "code block is empty", "", "return the requested code")
	}

	for _, e := range checkBrackets(body) {
		v.addError(e.Kind, e.Message, e.Location, e.Suggestion)
	}
	return v
}

// AutoCorrectCode closes an unbalanced code fence.
func AutoCorrectCode(output string, spec FormatSpec) string {
	if countFences(output)%2 != 0 {
		return closeFence(output)
	}
	return output
}
