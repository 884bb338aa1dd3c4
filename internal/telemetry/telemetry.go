// Package telemetry installs the OpenTelemetry tracer provider that receives
// the orchestrator's run and phase spans.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/ShayCichocki/swarm/internal/config"
	"github.com/ShayCichocki/swarm/internal/version"
)

// ServiceName tags every exported span.
const ServiceName = "swarm"

// Shutdown flushes pending spans and releases the exporter.
type Shutdown func(context.Context) error

func nopShutdown(context.Context) error { return nil }

// Setup installs a global tracer provider for cfg. Without an exporter the
// no-op provider stays in place and the returned Shutdown does nothing.
// Stdout spans go to cfg.File when set, otherwise to stderr.
func Setup(ctx context.Context, cfg config.TracingConfig, stderr io.Writer) (Shutdown, error) {
	exp, closeOut, err := newExporter(ctx, cfg, stderr)
	if err != nil {
		return nopShutdown, err
	}
	if exp == nil {
		return nopShutdown, nil
	}

	tp := NewProvider(exp)
	otel.SetTracerProvider(tp)

	return func(ctx context.Context) error {
		err := tp.Shutdown(ctx)
		if closeOut != nil {
			err = errors.Join(err, closeOut())
		}
		return err
	}, nil
}

// NewProvider builds a batching provider whose spans carry the service name
// and version.
func NewProvider(exp sdktrace.SpanExporter, opts ...sdktrace.TracerProviderOption) *sdktrace.TracerProvider {
	res := resource.NewSchemaless(
		attribute.String("service.name", ServiceName),
		attribute.String("service.version", version.Get()),
	)
	base := []sdktrace.TracerProviderOption{
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
	}
	return sdktrace.NewTracerProvider(append(base, opts...)...)
}

func newExporter(ctx context.Context, cfg config.TracingConfig, stderr io.Writer) (sdktrace.SpanExporter, func() error, error) {
	switch cfg.Exporter {
	case config.TraceExporterNone:
		return nil, nil, nil

	case config.TraceExporterStdout:
		if cfg.File == "" {
			exp, err := stdouttrace.New(stdouttrace.WithWriter(stderr))
			return exp, nil, err
		}
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, nil, fmt.Errorf("open trace file: %w", err)
		}
		exp, err := stdouttrace.New(stdouttrace.WithWriter(f))
		if err != nil {
			f.Close()
			return nil, nil, err
		}
		return exp, f.Close, nil

	case config.TraceExporterOTLP:
		var opts []otlptracehttp.Option
		if cfg.Endpoint != "" {
			opts = append(opts, otlptracehttp.WithEndpoint(cfg.Endpoint))
		}
		if cfg.Insecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		exp, err := otlptracehttp.New(ctx, opts...)
		if err != nil {
			return nil, nil, fmt.Errorf("create otlp exporter: %w", err)
		}
		return exp, nil, nil

	default:
		return nil, nil, fmt.Errorf("unknown trace exporter %q", cfg.Exporter)
	}
}
