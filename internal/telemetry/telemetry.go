// Package telemetry initializes the optional OpenTelemetry trace pipeline.
// Tracing is disabled (the global no-op provider stays in place) when no
// collector endpoint is configured.
package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// scopeName identifies the instrumentation scope on every span.
const scopeName = "github.com/dbrain-dev/dbrain"

// Options configures the OTLP/HTTP trace exporter.
type Options struct {
	// Endpoint is the collector address (host:port). Empty disables tracing.
	Endpoint string

	// Insecure disables TLS for the exporter connection.
	Insecure bool

	// ServiceVersion is stamped on the trace resource.
	ServiceVersion string
}

// Init sets up the global tracer provider. The returned shutdown function
// flushes pending spans; it is safe to call even when tracing is disabled.
func Init(ctx context.Context, opts Options) (func(context.Context) error, error) {
	if opts.Endpoint == "" {
		return func(context.Context) error { return nil }, nil
	}

	expOpts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(opts.Endpoint)}
	if opts.Insecure {
		expOpts = append(expOpts, otlptracehttp.WithInsecure())
	}
	exporter, err := otlptracehttp.New(ctx, expOpts...)
	if err != nil {
		return nil, fmt.Errorf("telemetry: creating OTLP exporter: %w", err)
	}

	res := resource.NewSchemaless(
		attribute.String("service.name", "dbrain"),
		attribute.String("service.version", opts.ServiceVersion),
	)
	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(provider)

	return provider.Shutdown, nil
}

// Tracer returns the application tracer. Before Init (or with no endpoint
// configured) this yields no-op spans.
func Tracer() trace.Tracer {
	return otel.Tracer(scopeName)
}
