package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/ShayCichocki/swarm/internal/agent"
	"github.com/ShayCichocki/swarm/pkg/models"
)

// Backend answers prompts through the Anthropic Messages API, using the
// persona system prompt of the requested role.
type Backend struct {
	client *Client
}

var _ agent.Backend = (*Backend)(nil)

// NewBackend creates a Backend on top of client.
func NewBackend(client *Client) *Backend {
	return &Backend{client: client}
}

// Client returns the underlying API client.
func (b *Backend) Client() *Client {
	return b.client
}

// Invoke sends one user turn to the model and returns the concatenated text blocks.
// Failures are returned as *agent.BackendError.
func (b *Backend) Invoke(ctx context.Context, role models.Role, prompt, promptContext string) (string, error) {
	persona := agent.PersonaFor(role)

	resp, err := b.client.inner.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     b.client.Model(),
		MaxTokens: b.client.maxTokens,
		System: []anthropic.TextBlockParam{
			{Text: persona.System},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(agent.BuildUserPrompt(prompt, promptContext))),
		},
	})
	if err != nil {
		return "", &agent.BackendError{Kind: classify(err), Role: role, Err: err}
	}

	b.client.Tracker().Add(resp.Usage.InputTokens, resp.Usage.OutputTokens)

	var result strings.Builder
	for _, block := range resp.Content {
		if variant, ok := block.AsAny().(anthropic.TextBlock); ok {
			result.WriteString(variant.Text)
		}
	}

	if strings.TrimSpace(result.String()) == "" {
		return "", &agent.BackendError{Kind: agent.ErrorKindMalformed, Role: role, Err: agent.ErrEmptyResponse}
	}
	return result.String(), nil
}

// classify maps an SDK error to a retry classification.
func classify(err error) agent.ErrorKind {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode == 529:
			return agent.ErrorKindQuota
		case apiErr.StatusCode == http.StatusRequestTimeout || apiErr.StatusCode == http.StatusConflict:
			return agent.ErrorKindTransient
		case apiErr.StatusCode >= 500:
			return agent.ErrorKindTransient
		case apiErr.StatusCode >= 400:
			return agent.ErrorKindMalformed
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return agent.ErrorKindTransient
	}
	return agent.ErrorKindUnknown
}
