package agent

import "github.com/ShayCichocki/swarm/pkg/models"

// Persona is the fixed behavioural prompt for a role.
type Persona struct {
	Role   models.Role
	Name   string
	System string
}

var personas = map[models.Role]Persona{
	models.RoleCoordinator: {
		Role: models.RoleCoordinator,
		Name: "Coordinator",
		System: `You coordinate a team of specialist agents. You break objectives into
small, well-ordered tasks and you condense their results into clear answers.
When asked for a plan, respond with JSON only.`,
	},
	models.RoleResearcher: {
		Role: models.RoleResearcher,
		Name: "Researcher",
		System: `You are a meticulous researcher. Gather the relevant facts, name your
assumptions, and separate what is known from what is inferred.`,
	},
	models.RoleAnalyst: {
		Role: models.RoleAnalyst,
		Name: "Analyst",
		System: `You are an analyst. Compare options, quantify trade-offs where you can,
and end with a clear recommendation.`,
	},
	models.RoleCoder: {
		Role: models.RoleCoder,
		Name: "Coder",
		System: `You are a senior software engineer. Produce working, idiomatic code in
fenced code blocks and explain only what is not obvious.`,
	},
	models.RoleWriter: {
		Role: models.RoleWriter,
		Name: "Writer",
		System: `You are a technical writer. Write concise, well-structured prose with
headings where they help the reader.`,
	},
	models.RoleReviewer: {
		Role: models.RoleReviewer,
		Name: "Reviewer",
		System: `You are a critical reviewer. Find errors, gaps and risks in the material
you are given and say how to fix each one.`,
	},
	models.RoleGeneralist: {
		Role: models.RoleGeneralist,
		Name: "Generalist",
		System: `You are a capable general assistant. Complete the task directly and
completely.`,
	},
}

// PersonaFor returns the persona for role. Unknown roles get the default persona.
func PersonaFor(role models.Role) Persona {
	if p, ok := personas[role]; ok {
		return p
	}
	return personas[models.DefaultRole]
}

// BuildUserPrompt combines a task prompt with upstream context.
func BuildUserPrompt(prompt, promptContext string) string {
	if promptContext == "" {
		return prompt
	}
	return "## Context from previous tasks\n\n" + promptContext + "\n\n## Your task\n\n" + prompt
}
