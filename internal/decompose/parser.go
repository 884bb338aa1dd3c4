package decompose

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/ShayCichocki/swarm/pkg/models"
)

// ErrPlanParse indicates the planner's response could not be turned into a plan.
var ErrPlanParse = errors.New("plan parse error")

// PlanParser turns a planning agent's raw response into a normalized plan.
type PlanParser interface {
	Parse(response string) (*models.Plan, error)
}

// LenientParser accepts a JSON plan wrapped in prose or code fences. It strips
// fence markers and parses the text between the first '{' and the last '}'.
type LenientParser struct{}

var _ PlanParser = LenientParser{}

// rawPlan is the JSON structure returned by the planning agent.
type rawPlan struct {
	Objective string    `json:"objective"`
	Tasks     []rawTask `json:"tasks"`
}

// rawTask is one task as the agent wrote it; every field is optional.
type rawTask struct {
	ID           flexibleID   `json:"id"`
	Agent        string       `json:"agent"`
	Task         string       `json:"task"`
	Dependencies []flexibleID `json:"dependencies"`
}

// flexibleID accepts 3, 3.0, "3" and null.
type flexibleID struct {
	value int
	set   bool
}

func (f *flexibleID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = flexibleID{}
		return nil
	}

	text := string(data)
	if len(data) > 0 && data[0] == '"' {
		if err := json.Unmarshal(data, &text); err != nil {
			return err
		}
		text = strings.TrimSpace(text)
		if text == "" {
			*f = flexibleID{}
			return nil
		}
	}

	n, err := strconv.ParseFloat(text, 64)
	if err != nil || n != math.Trunc(n) {
		return fmt.Errorf("task id %s is not an integer", string(data))
	}
	*f = flexibleID{value: int(n), set: true}
	return nil
}

// ExtractObject strips code fence markers from response and returns the text
// between the first '{' and the last '}'.
func ExtractObject(response string) (string, error) {
	var b strings.Builder
	for _, line := range strings.Split(response, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			continue
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}
	cleaned := b.String()

	start := strings.Index(cleaned, "{")
	end := strings.LastIndex(cleaned, "}")
	if start == -1 || end == -1 || end <= start {
		return "", fmt.Errorf("%w: no JSON object found in response (got %d chars): %q",
			ErrPlanParse, utf8.RuneCountInString(response), previewText(response, previewRunes))
	}
	return cleaned[start : end+1], nil
}

// Parse extracts and normalizes a plan. Tasks missing an id get their 1-based
// position, missing or unknown agents map to the default role, missing
// dependencies become empty and every status is reset to pending.
func (LenientParser) Parse(response string) (*models.Plan, error) {
	payload, err := ExtractObject(response)
	if err != nil {
		return nil, err
	}

	var raw rawPlan
	if err := json.Unmarshal([]byte(payload), &raw); err != nil {
		return nil, fmt.Errorf("%w: unmarshal JSON: %v", ErrPlanParse, err)
	}
	if len(raw.Tasks) == 0 {
		return nil, fmt.Errorf("%w: plan has no tasks", ErrPlanParse)
	}

	return normalize(raw)
}

func normalize(raw rawPlan) (*models.Plan, error) {
	plan := &models.Plan{
		Objective: strings.TrimSpace(raw.Objective),
		Tasks:     make([]*models.Task, 0, len(raw.Tasks)),
	}
	seen := make(map[int]bool, len(raw.Tasks))

	for i, rt := range raw.Tasks {
		id := i + 1
		if rt.ID.set {
			id = rt.ID.value
		}
		if seen[id] {
			return nil, fmt.Errorf("%w: duplicate task id %d", ErrPlanParse, id)
		}
		seen[id] = true

		deps := make([]int, 0, len(rt.Dependencies))
		depSeen := make(map[int]bool, len(rt.Dependencies))
		for _, dep := range rt.Dependencies {
			if !dep.set || depSeen[dep.value] {
				continue
			}
			depSeen[dep.value] = true
			deps = append(deps, dep.value)
		}

		plan.Tasks = append(plan.Tasks, &models.Task{
			ID:           id,
			Role:         models.ResolveRole(rt.Agent),
			Instruction:  strings.TrimSpace(rt.Task),
			Dependencies: deps,
			Status:       models.TaskStatusPending,
		})
	}

	return plan, nil
}

// FallbackPlan is the single-task plan used when planning produced nothing
// usable: the objective verbatim, assigned to the default role.
func FallbackPlan(objective string) *models.Plan {
	return &models.Plan{
		Objective: objective,
		Tasks: []*models.Task{{
			ID:           1,
			Role:         models.DefaultRole,
			Instruction:  objective,
			Dependencies: []int{},
			Status:       models.TaskStatusPending,
		}},
		Fallback: true,
	}
}

const previewRunes = 200

// previewText cuts s to at most max runes for error messages.
func previewText(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "... (truncated)"
}
