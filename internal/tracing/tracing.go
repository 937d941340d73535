// Package tracing wires OpenTelemetry. Spans are always safe to start: with
// tracing disabled the global no-op provider hands out no-op spans.
package tracing

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/onnwee/coin-tracker/internal/config"
)

const defaultEndpoint = "localhost:4318"

var tracer trace.Tracer

// Init exports spans over OTLP/HTTP when OTEL_ENABLED is set and returns
// the provider's shutdown. Disabled tracing returns a no-op shutdown.
func Init(cfg *config.Config, serviceName string) (func(context.Context) error, error) {
	if cfg == nil || !cfg.OTELEnabled {
		return func(context.Context) error { return nil }, nil
	}
	ctx := context.Background()

	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(endpoint(cfg.OTELEndpoint)),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(serviceName),
			semconv.ServiceVersionKey.String(version(cfg)),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.OTELSampleRate))),
	)
	otel.SetTracerProvider(tp)
	tracer = tp.Tracer(serviceName)

	return func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return tp.Shutdown(ctx)
	}, nil
}

// endpoint normalises OTEL_EXPORTER_OTLP_ENDPOINT to the host:port form
// WithEndpoint expects, accepting a full URL as well.
func endpoint(raw string) string {
	raw = strings.TrimSpace(raw)
	for _, scheme := range []string{"http://", "https://"} {
		raw = strings.TrimPrefix(raw, scheme)
	}
	raw = strings.TrimRight(raw, "/")
	if raw == "" {
		return defaultEndpoint
	}
	return raw
}

// version reuses the Sentry release so traces and error reports line up.
func version(cfg *config.Config) string {
	if cfg.SentryRelease != "" {
		return cfg.SentryRelease
	}
	return "dev"
}

func getTracer() trace.Tracer {
	if tracer == nil {
		return otel.Tracer("coin-tracker")
	}
	return tracer
}

// StartLoadSpan covers one read-through miss in the market layer.
func StartLoadSpan(ctx context.Context, kind, key string) (context.Context, trace.Span) {
	return getTracer().Start(ctx, "market."+kind,
		trace.WithAttributes(attribute.String("cache.key", key)),
	)
}

// StartUpstreamSpan starts a client span for a CoinGecko call.
func StartUpstreamSpan(ctx context.Context, endpoint, coinID string) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{attribute.String("coingecko.endpoint", endpoint)}
	if coinID != "" {
		attrs = append(attrs, attribute.String("coin.id", coinID))
	}
	return getTracer().Start(ctx, "coingecko."+endpoint,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attrs...),
	)
}

// EndSpan records err (if any) on span and ends it.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
