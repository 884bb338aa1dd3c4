// Tracing instrumentation for the orchestrator.
package orchestrator

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ShayCichocki/swarm/pkg/models"
)

const tracerName = "github.com/ShayCichocki/swarm/internal/orchestrator"

// tracer returns the global tracer. Without a configured provider it is a no-op.
func tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

// startRunSpan starts a span for one orchestration run.
func startRunSpan(ctx context.Context, runID, objective string) (context.Context, trace.Span) {
	ctx, span := tracer().Start(ctx, "swarm.run")
	span.SetAttributes(
		attribute.String("run.id", runID),
		attribute.Int("run.objective_length", len(objective)),
	)
	return ctx, span
}

// startPhaseSpan starts a span for an orchestrator phase.
func startPhaseSpan(ctx context.Context, phase Phase) (context.Context, trace.Span) {
	ctx, span := tracer().Start(ctx, "phase."+string(phase))
	span.SetAttributes(attribute.String("phase.name", string(phase)))
	return ctx, span
}

// startTaskSpan starts a span for a single task execution.
func startTaskSpan(ctx context.Context, task *models.Task, role models.Role) (context.Context, trace.Span) {
	ctx, span := tracer().Start(ctx, "task."+string(role))
	span.SetAttributes(
		attribute.Int("task.id", task.ID),
		attribute.String("task.role", string(role)),
		attribute.IntSlice("task.dependencies", task.Dependencies),
	)
	return ctx, span
}

// endSpan records err, if any, and ends the span.
func endSpan(span trace.Span, err error, attrs ...attribute.KeyValue) {
	if len(attrs) > 0 {
		span.SetAttributes(attrs...)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
