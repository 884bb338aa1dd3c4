// Package agent defines the agent backend capability consumed by the orchestrator.
package agent

import (
	"context"
	"errors"
	"fmt"

	"github.com/ShayCichocki/swarm/pkg/models"
)

// Backend is a language-model capability that answers a prompt in the voice
// of a persona. Implementations must honour ctx cancellation.
type Backend interface {
	// Invoke asks the persona for role to respond to prompt. promptContext
	// carries results from upstream tasks and may be empty.
	Invoke(ctx context.Context, role models.Role, prompt, promptContext string) (string, error)
}

// BackendFunc adapts a plain function to the Backend interface.
type BackendFunc func(ctx context.Context, role models.Role, prompt, promptContext string) (string, error)

// Invoke calls f.
func (f BackendFunc) Invoke(ctx context.Context, role models.Role, prompt, promptContext string) (string, error) {
	return f(ctx, role, prompt, promptContext)
}

// ErrorKind classifies backend failures for retry decisions.
type ErrorKind string

const (
	// ErrorKindTransient covers network failures, timeouts and 5xx responses.
	ErrorKindTransient ErrorKind = "transient"
	// ErrorKindQuota covers rate limiting and overload.
	ErrorKindQuota ErrorKind = "quota"
	// ErrorKindMalformed covers requests the backend rejected as invalid.
	ErrorKindMalformed ErrorKind = "malformed"
	// ErrorKindUnknown is used when nothing more specific is known.
	ErrorKindUnknown ErrorKind = "unknown"
)

// ErrEmptyResponse is returned when the backend produced no text.
var ErrEmptyResponse = errors.New("empty response from backend")

// BackendError wraps a failed backend call.
type BackendError struct {
	Kind ErrorKind
	Role models.Role
	Err  error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("%s backend error for %s: %v", e.Kind, e.Role, e.Err)
}

func (e *BackendError) Unwrap() error { return e.Err }

// Retryable reports whether the failure may succeed on another attempt.
// Malformed input never does.
func (e *BackendError) Retryable() bool {
	return e.Kind == ErrorKindTransient || e.Kind == ErrorKindQuota
}

// IsRetryable reports whether err is a retryable backend failure.
// Context cancellation is never retryable.
func IsRetryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var be *BackendError
	if errors.As(err, &be) {
		return be.Retryable()
	}
	return false
}
