package orchestrator

import (
	"fmt"
	"strings"

	"github.com/ShayCichocki/swarm/pkg/models"
)

// truncate shortens s to at most max runes, marking the cut with "...".
// A non-positive max disables truncation.
func truncate(s string, max int) string {
	if max <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}

// buildContext joins the successful results of deps, each tagged with its
// task id. Failed and missing dependencies contribute nothing.
func buildContext(deps []int, finished map[int]models.ExecutionResult, maxChars int) string {
	var parts []string
	for _, dep := range deps {
		r, ok := finished[dep]
		if !ok || !r.Success {
			continue
		}
		parts = append(parts, fmt.Sprintf("[Result from task %d]\n%s", dep, truncate(r.Content, maxChars)))
	}
	return strings.Join(parts, "\n\n")
}
