package decompose

// planningPrompt is the prompt template for objective decomposition.
// The first verb is the objective, the second the list of roles.
const planningPrompt = `Break this objective into a small plan of tasks for a team of specialist agents.

Objective:
%s

Available agents: %s

Return ONLY a JSON object with this exact structure (no other text):
{
  "objective": "The objective restated in one sentence",
  "tasks": [
    {
      "id": 1,
      "agent": "researcher",
      "task": "What this agent must do, self-contained",
      "dependencies": []
    }
  ]
}

Guidelines:
- Use between 1 and 6 tasks; prefer fewer, larger tasks
- ids are integers starting at 1
- dependencies lists the ids of tasks whose results this task needs
- Only add a dependency when the task truly needs the other task's output
- Never create circular dependencies
- Use an empty array [] when a task has no dependencies`
