package observability

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/brandmentions/worker/internal/config"
)

// SetupTracing installs a tracer provider exporting spans to stdout. Spans
// are only sampled at debug log level so production runs pay no exporter
// cost; the returned shutdown func flushes pending spans.
func SetupTracing(cfg config.Config) (func(context.Context) error, error) {
	exporter, err := stdouttrace.New()
	if err != nil {
		return nil, fmt.Errorf("op=observability.SetupTracing: %w", err)
	}

	sampler := sdktrace.NeverSample()
	if strings.EqualFold(cfg.LogLevel, "debug") {
		sampler = sdktrace.AlwaysSample()
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithSampler(sdktrace.ParentBased(sampler)),
		sdktrace.WithResource(resource.NewSchemaless(
			attribute.String("service.name", "brand-mention-worker"),
			attribute.String("worker.id", cfg.WorkerID),
		)),
	)
	otel.SetTracerProvider(tp)
	return tp.Shutdown, nil
}
