// Package tracing configures OpenTelemetry for holomem. It installs the
// process-wide tracer provider and defines the spans and attributes the
// memory engine records.
package tracing

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/goclaw/holomem/config"
	"github.com/goclaw/holomem/pkg/logger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// InstrumentationName names the memory engine tracer.
const InstrumentationName = "github.com/goclaw/holomem/pkg/memory"

// ShutdownFunc flushes pending spans and releases the provider.
type ShutdownFunc func(ctx context.Context) error

// Tracer returns the memory engine tracer from the global provider. It is a
// no-op tracer until Init installs an exporting provider.
func Tracer() trace.Tracer {
	return otel.Tracer(InstrumentationName)
}

// dialOTLP creates the span exporter for endpoint.
var dialOTLP = func(ctx context.Context, endpoint string, cfg config.TracingConfig) (sdktrace.SpanExporter, error) {
	opts := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithTimeout(cfg.Timeout),
		otlptracegrpc.WithInsecure(),
	}
	if len(cfg.Headers) > 0 {
		opts = append(opts, otlptracegrpc.WithHeaders(cfg.Headers))
	}
	return otlptracegrpc.New(ctx, opts...)
}

// exportFailed reports spans a collector did not accept.
var exportFailed = func(endpoint string, spans int, err error) {
	logger.Warn("trace export failed, spans dropped",
		"endpoint", endpoint,
		"spans", spans,
		"error", err,
	)
}

// droppingExporter reports export failures and drops the batch, so an
// unreachable collector never surfaces as a memory operation error.
type droppingExporter struct {
	sdktrace.SpanExporter
	endpoint string
}

func (d droppingExporter) ExportSpans(ctx context.Context, spans []sdktrace.ReadOnlySpan) error {
	if err := d.SpanExporter.ExportSpans(ctx, spans); err != nil {
		exportFailed(d.endpoint, len(spans), err)
	}
	return nil
}

// Init installs the tracer provider described by cfg. With tracing disabled
// a no-op provider is installed and the returned ShutdownFunc does nothing.
func Init(ctx context.Context, cfg config.TracingConfig, serviceName, serviceVersion string) (ShutdownFunc, error) {
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	if !cfg.Enabled {
		otel.SetTracerProvider(noop.NewTracerProvider())
		return func(context.Context) error { return nil }, nil
	}

	endpoint := endpointHost(cfg.Endpoint)
	switch {
	case endpoint == "":
		return nil, errors.New("tracing: endpoint is required when tracing is enabled")
	case cfg.Timeout <= 0:
		return nil, errors.New("tracing: timeout must be positive")
	}

	exp, err := dialOTLP(ctx, endpoint, cfg)
	if err != nil {
		return nil, fmt.Errorf("tracing: create exporter for %s: %w", endpoint, err)
	}
	res, err := resource.New(ctx, resource.WithAttributes(
		semconv.ServiceName(serviceName),
		semconv.ServiceVersion(serviceVersion),
	))
	if err != nil {
		_ = exp.Shutdown(ctx)
		return nil, fmt.Errorf("tracing: build resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(droppingExporter{SpanExporter: exp, endpoint: endpoint}),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler(cfg)),
	)
	otel.SetTracerProvider(tp)

	return func(ctx context.Context) error {
		if err := errors.Join(tp.ForceFlush(ctx), tp.Shutdown(ctx)); err != nil {
			return fmt.Errorf("tracing: shutdown: %w", err)
		}
		return nil
	}, nil
}

// sampler maps the configured strategy; the default follows the parent
// span and samples roots at SampleRate.
func sampler(cfg config.TracingConfig) sdktrace.Sampler {
	switch cfg.Sampler {
	case "always_on":
		return sdktrace.AlwaysSample()
	case "always_off":
		return sdktrace.NeverSample()
	case "ratio":
		return sdktrace.TraceIDRatioBased(cfg.SampleRate)
	}
	return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRate))
}

// endpointHost accepts host:port or a URL and returns host:port.
func endpointHost(endpoint string) string {
	raw := strings.TrimSpace(endpoint)
	if !strings.Contains(raw, "://") {
		return raw
	}
	if u, err := url.Parse(raw); err == nil && u.Host != "" {
		return u.Host
	}
	return raw
}
