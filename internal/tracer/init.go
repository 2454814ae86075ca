package tracer

import (
	"context"

	"ai-helpdesk-be/internal/pkg/logger"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
)

const ServiceName = "ai-helpdesk-backend"

type Options struct {
	Enabled     bool
	Endpoint    string  // host:port of the OTLP HTTP collector
	Environment string  // deployment.environment resource attribute
	SampleRatio float64 // fraction of root spans kept; <= 0 or >= 1 keeps all
}

// InitTracer installs an OTLP HTTP tracer provider and W3C trace-context
// propagation so chat turns join the caller's trace. The returned function
// flushes pending spans. When disabled the global no-op provider stays in place.
func InitTracer(opts Options, log logger.ILogger) func(context.Context) error {
	noop := func(context.Context) error { return nil }
	if !opts.Enabled {
		log.Info("Tracer", "OpenTelemetry tracing is disabled (set OTEL_ENABLED=true to enable)", nil)
		return noop
	}

	exporter, err := otlptracehttp.New(context.Background(),
		otlptracehttp.WithEndpoint(opts.Endpoint),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		log.Warn("Tracer", "Failed to create OTLP exporter, tracing disabled", map[string]interface{}{"error": err.Error()})
		return noop
	}

	sampler := sdktrace.AlwaysSample()
	if opts.SampleRatio > 0 && opts.SampleRatio < 1 {
		sampler = sdktrace.ParentBased(sdktrace.TraceIDRatioBased(opts.SampleRatio))
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithSampler(sampler),
		sdktrace.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceNameKey.String(ServiceName),
			semconv.DeploymentEnvironmentKey.String(opts.Environment),
		)),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))
	log.Info("Tracer", "OpenTelemetry tracer initialized", map[string]interface{}{
		"endpoint":     opts.Endpoint,
		"sample_ratio": opts.SampleRatio,
	})

	return tp.Shutdown
}
