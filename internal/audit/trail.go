// Package audit records how an objective is rewritten during a run and how far
// each rewrite drifts from what the user originally asked for.
package audit

import (
	"log"
	"sync"
	"time"
)

const (
	// DefaultMaxDrift is the total drift ValidateIntent tolerates by default.
	DefaultMaxDrift = 70
	// DefaultWarnThreshold is the per-transformation drift above which a warning is logged.
	DefaultWarnThreshold = 50
)

// Transformation is one append-only audit entry.
type Transformation struct {
	Timestamp  time.Time `json:"timestamp"`
	Source     string    `json:"source"`
	Reason     string    `json:"reason"`
	Before     string    `json:"before"`
	After      string    `json:"after"`
	DriftScore int       `json:"drift_score"`
}

// State is a snapshot of a trail.
type State struct {
	OriginalPrompt  string           `json:"original_prompt"`
	CurrentPrompt   string           `json:"current_prompt"`
	Transformations []Transformation `json:"transformations"`
}

// Trail tracks the transformations applied to one objective.
// A Trail belongs to exactly one run; construct a new one per objective.
type Trail struct {
	mu              sync.RWMutex
	original        string
	current         string
	transformations []Transformation
	warnThreshold   int
	now             func() time.Time
	warn            func(format string, args ...any)
}

// Option configures a Trail.
type Option func(*Trail)

// WithWarnThreshold sets the per-transformation drift that triggers a warning.
func WithWarnThreshold(threshold int) Option {
	return func(t *Trail) {
		t.warnThreshold = threshold
	}
}

// WithWarnFunc replaces the warning sink (log.Printf by default).
func WithWarnFunc(fn func(format string, args ...any)) Option {
	return func(t *Trail) {
		if fn != nil {
			t.warn = fn
		}
	}
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(t *Trail) {
		if now != nil {
			t.now = now
		}
	}
}

// NewTrail creates an empty trail.
func NewTrail(opts ...Option) *Trail {
	t := &Trail{
		warnThreshold: DefaultWarnThreshold,
		now:           time.Now,
		warn:          log.Printf,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Initialize resets the trail to original. Any prior transformations are discarded.
func (t *Trail) Initialize(original string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.original = original
	t.current = original
	t.transformations = nil
}

// RecordTransformation appends an entry moving the current prompt to newPrompt.
// The entry's drift is measured against the original prompt.
func (t *Trail) RecordTransformation(source, reason, newPrompt string) Transformation {
	t.mu.Lock()
	entry := Transformation{
		Timestamp:  t.now(),
		Source:     source,
		Reason:     reason,
		Before:     t.current,
		After:      newPrompt,
		DriftScore: Drift(t.original, newPrompt),
	}
	t.transformations = append(t.transformations, entry)
	t.current = newPrompt
	threshold := t.warnThreshold
	t.mu.Unlock()

	if entry.DriftScore > threshold {
		t.warn("[audit] WARNING: %s transformation drifted %d%% from the original objective (%s)",
			source, entry.DriftScore, reason)
	}
	return entry
}

// TotalDrift returns the drift between the original and the latest prompt.
func (t *Trail) TotalDrift() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return Drift(t.original, t.current)
}

// ValidateIntent reports whether total drift is within maxDrift.
// A violation is logged; the caller decides whether to act on it.
func (t *Trail) ValidateIntent(maxDrift int) bool {
	drift := t.TotalDrift()
	if drift > maxDrift {
		t.warn("[audit] intent violation: total drift %d%% exceeds %d%%", drift, maxDrift)
		return false
	}
	return true
}

// Original returns the prompt the trail was initialized with.
func (t *Trail) Original() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.original
}

// Current returns the latest prompt.
func (t *Trail) Current() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.current
}

// Transformations returns a copy of the recorded entries in order.
func (t *Trail) Transformations() []Transformation {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Transformation, len(t.transformations))
	copy(out, t.transformations)
	return out
}

// State returns a snapshot of the trail.
func (t *Trail) State() State {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Transformation, len(t.transformations))
	copy(out, t.transformations)
	return State{
		OriginalPrompt:  t.original,
		CurrentPrompt:   t.current,
		Transformations: out,
	}
}
