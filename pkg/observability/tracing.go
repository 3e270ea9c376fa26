package observability

import (
	"context"
	"fmt"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.34.0"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the instrumentation name used by service spans.
const TracerName = "devconsole"

// TracingConfig holds tracing configuration
type TracingConfig struct {
	ServiceName string
	Environment string
	Endpoint    string
	SampleRate  float64
}

// TracerProvider wraps the SDK provider so callers can flush on shutdown.
type TracerProvider struct {
	provider *sdktrace.TracerProvider
}

// InitTracing installs a global OTLP tracer provider. Until it is called the
// global provider is a no-op, which is what tests and local runs get.
func InitTracing(ctx context.Context, config TracingConfig) (*TracerProvider, error) {
	if config.ServiceName == "" {
		config.ServiceName = "devconsole-backend"
	}
	if config.SampleRate == 0 {
		config.SampleRate = sampleRateFor(config.Environment)
	}

	exporter, err := newOTLPExporter(ctx, config.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to create exporter: %w", err)
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(semconv.SchemaURL,
			semconv.ServiceName(config.ServiceName),
			attribute.String("deployment.environment", config.Environment),
			attribute.String("cloud.platform", platform()),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(config.SampleRate))),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return &TracerProvider{provider: tp}, nil
}

// Shutdown flushes pending spans.
func (tp *TracerProvider) Shutdown(ctx context.Context) error {
	if tp == nil {
		return nil
	}
	return tp.provider.Shutdown(ctx)
}

// StartSpan starts a span on the global provider.
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer(TracerName).Start(ctx, name, trace.WithAttributes(attrs...))
}

// EndSpan records err on the span, if any, and ends it.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
	}
	span.End()
}

func newOTLPExporter(ctx context.Context, endpoint string) (sdktrace.SpanExporter, error) {
	if endpoint == "" {
		endpoint = "localhost:4317"
	}

	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(endpoint)}
	if endpoint == "localhost:4317" || endpoint == "127.0.0.1:4317" {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}

	return otlptrace.New(ctx, otlptracegrpc.NewClient(opts...))
}

func sampleRateFor(environment string) float64 {
	switch environment {
	case "production":
		return 0.05
	case "staging":
		return 0.25
	default:
		return 1.0
	}
}

func platform() string {
	if os.Getenv("AWS_LAMBDA_FUNCTION_NAME") != "" {
		return "aws_lambda"
	}
	if os.Getenv("ECS_CONTAINER_METADATA_URI") != "" {
		return "aws_ecs"
	}
	return "unknown"
}
