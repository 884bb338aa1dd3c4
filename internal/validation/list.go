package validation

import (
	"fmt"
	"regexp"
	"strings"
)

var listItemPattern = regexp.MustCompile(`^\s*([-*+]|\d+[.)])(?:\s+(.*))?$`)

const placeholderItem = "[Item needed]"

type listItem struct {
	ordered bool
	text    string
	line    int
}

func listItems(output string) []listItem {
	var items []listItem
	for i, line := range strings.Split(output, "\n") {
		m := listItemPattern.FindStringSubmatch(strings.TrimRight(line, " \t\r"))
		if m == nil {
			continue
		}
		marker := m[1]
		items = append(items, listItem{
			ordered: marker != "-" && marker != "*" && marker != "+",
			text:    strings.TrimSpace(m[2]),
			line:    i + 1,
		})
	}
	return items
}

// ValidateList checks item count bounds, marker consistency and empty items.
func ValidateList(output string, spec FormatSpec) FormatValidation {
	v := FormatValidation{Valid: true}

	items := listItems(output)
	if len(items) == 0 {
		v.addError(ErrorStructure, "no list items found", "",
			"start each item with \"- \" or \"1. \"")
	}

	if spec.MinItems > 0 && len(items) < spec.MinItems {
		v.addError(ErrorMissing,
			fmt.Sprintf("list has %d items, want at least %d", len(items), spec.MinItems),
			"",
			fmt.Sprintf("add %d more items", spec.MinItems-len(items)))
	}
	if spec.MaxItems > 0 && len(items) > spec.MaxItems {
		v.addError(ErrorInvalid,
			fmt.Sprintf("list has %d items, want at most %d", len(items), spec.MaxItems),
			"",
			fmt.Sprintf("remove %d items", len(items)-spec.MaxItems))
	}

	if spec.Ordered {
		for _, item := range items {
			if !item.ordered {
				v.addError(ErrorInvalid, "ordered list mixes in an unordered marker",
					fmt.Sprintf("line %d", item.line),
					"number every item")
				break
			}
		}
	}

	for _, item := range items {
		if item.text == "" {
			v.addError(ErrorInvalid, "empty list item",
				fmt.Sprintf("line %d", item.line),
				"fill in or remove the item")
		}
	}
	return v
}

// AutoCorrectList appends placeholder items until MinItems is reached.
func AutoCorrectList(output string, spec FormatSpec) string {
	count := len(listItems(output))
	if spec.MinItems <= count {
		return output
	}

	corrected := strings.TrimRight(output, "\n")
	for n := count + 1; n <= spec.MinItems; n++ {
		if corrected != "" {
			corrected += "\n"
		}
		if spec.Ordered {
			corrected += fmt.Sprintf("%d. %s", n, placeholderItem)
		} else {
			corrected += "- " + placeholderItem
		}
	}
	return corrected
}
