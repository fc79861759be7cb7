// Package tracing wires OpenTelemetry spans around metaCall dispatch and
// transport traffic. Tracing is advisory; a disabled provider turns every
// helper into a no-op.
package tracing

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/dmerejkowsky/libqi"

// Config controls the exporter and sampling of the provider.
type Config struct {
	ServiceName    string
	ServiceVersion string
	// ExporterType is "stdout" or "otlp".
	ExporterType string
	// Endpoint is the OTLP collector address, used when ExporterType is
	// "otlp".
	Endpoint     string
	SamplingRate float64
	Enabled      bool
}

// DefaultConfig traces everything to stdout.
func DefaultConfig() *Config {
	return &Config{
		ServiceName:  "qi-node",
		ExporterType: "stdout",
		SamplingRate: 1.0,
		Enabled:      true,
	}
}

// Init builds and installs the global tracer provider. It returns the
// provider so callers can Shutdown it on exit; a disabled config returns
// nil and installs nothing.
func Init(cfg *Config) (*sdktrace.TracerProvider, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if !cfg.Enabled {
		return nil, nil
	}

	var exporter sdktrace.SpanExporter
	var err error
	switch cfg.ExporterType {
	case "stdout", "":
		exporter, err = stdouttrace.New(stdouttrace.WithPrettyPrint())
	case "otlp":
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		exporter, err = otlptracegrpc.New(ctx,
			otlptracegrpc.WithEndpoint(cfg.Endpoint),
			otlptracegrpc.WithInsecure(),
		)
	default:
		return nil, fmt.Errorf("unknown exporter type %q", cfg.ExporterType)
	}
	if err != nil {
		return nil, fmt.Errorf("create exporter: %w", err)
	}

	res, err := resource.Merge(resource.Default(), resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.ServiceVersion),
	))
	if err != nil {
		return nil, fmt.Errorf("build resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.TraceIDRatioBased(cfg.SamplingRate)),
	)
	otel.SetTracerProvider(tp)
	return tp, nil
}

// StartCall opens a span for one metaCall.
func StartCall(ctx context.Context, service string, methodID uint32, callType string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, fmt.Sprintf("qi.call/%s", service),
		trace.WithAttributes(
			attribute.String("qi.service", service),
			attribute.Int64("qi.method_id", int64(methodID)),
			attribute.String("qi.call_type", callType),
		),
	)
}

// StartSend opens a span for one outgoing transport message.
func StartSend(ctx context.Context, endpoint, kind string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "qi.transport.send",
		trace.WithAttributes(
			attribute.String("qi.endpoint", endpoint),
			attribute.String("qi.message_kind", kind),
		),
		trace.WithSpanKind(trace.SpanKindClient),
	)
}

// EndWithError closes a span, recording err when non-nil.
func EndWithError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
