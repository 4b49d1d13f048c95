package tracing

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/goclaw/holomem/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// collectingExporter keeps exported span names and can be made to fail.
type collectingExporter struct {
	mu       sync.Mutex
	names    []string
	fail     error
	shutdown bool
}

func (c *collectingExporter) ExportSpans(_ context.Context, spans []sdktrace.ReadOnlySpan) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail != nil {
		return c.fail
	}
	for _, s := range spans {
		c.names = append(c.names, s.Name())
	}
	return nil
}

func (c *collectingExporter) Shutdown(context.Context) error {
	c.mu.Lock()
	c.shutdown = true
	c.mu.Unlock()
	return nil
}

func enabledConfig() config.TracingConfig {
	return config.TracingConfig{
		Enabled:    true,
		Exporter:   "otlp",
		Endpoint:   "http://collector:4317/v1/traces",
		Timeout:    time.Second,
		Sampler:    "always_on",
		SampleRate: 1,
	}
}

// useExporter routes Init to exp and records the endpoint it was dialled with.
func useExporter(t *testing.T, exp sdktrace.SpanExporter) *string {
	t.Helper()
	orig := dialOTLP
	t.Cleanup(func() { dialOTLP = orig })
	var dialled string
	dialOTLP = func(_ context.Context, endpoint string, _ config.TracingConfig) (sdktrace.SpanExporter, error) {
		dialled = endpoint
		return exp, nil
	}
	return &dialled
}

func TestInit_DisabledInstallsNoop(t *testing.T) {
	dialled := useExporter(t, &collectingExporter{})

	shutdown, err := Init(context.Background(), config.TracingConfig{}, "holomem", "test")
	require.NoError(t, err)
	assert.Empty(t, *dialled)

	_, span := StartQuery(context.Background(), Tracer(), "recall")
	assert.False(t, span.SpanContext().IsValid())
	span.End()
	assert.NoError(t, shutdown(context.Background()))
}

func TestInit_RejectsIncompleteConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.TracingConfig)
	}{
		{"no endpoint", func(c *config.TracingConfig) { c.Endpoint = "  " }},
		{"no timeout", func(c *config.TracingConfig) { c.Timeout = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := enabledConfig()
			tt.mutate(&cfg)
			_, err := Init(context.Background(), cfg, "holomem", "test")
			assert.Error(t, err)
		})
	}
}

func TestInit_ExportsEngineSpans(t *testing.T) {
	exp := &collectingExporter{}
	dialled := useExporter(t, exp)

	shutdown, err := Init(context.Background(), enabledConfig(), "holomem", "test")
	require.NoError(t, err)
	assert.Equal(t, "collector:4317", *dialled)

	ctx, span := Tracer().Start(context.Background(), SpanIngest)
	EndIngest(span, "abc", true, nil)
	span.End()
	_, query := StartQuery(ctx, Tracer(), "compositional")
	query.End()

	require.NoError(t, shutdown(context.Background()))
	assert.ElementsMatch(t, []string{SpanIngest, SpanQuery}, exp.names)
	assert.True(t, exp.shutdown)
}

func TestInit_ExportFailureIsDropped(t *testing.T) {
	exp := &collectingExporter{fail: errors.New("collector unavailable")}
	useExporter(t, exp)

	orig := exportFailed
	t.Cleanup(func() { exportFailed = orig })
	var dropped int
	exportFailed = func(endpoint string, spans int, err error) {
		assert.Equal(t, "collector:4317", endpoint)
		assert.Error(t, err)
		dropped += spans
	}

	shutdown, err := Init(context.Background(), enabledConfig(), "holomem", "test")
	require.NoError(t, err)
	_, span := Tracer().Start(context.Background(), SpanMaintenance)
	span.End()

	assert.NoError(t, shutdown(context.Background()))
	assert.Equal(t, 1, dropped)
}

func TestSampler(t *testing.T) {
	tests := []struct {
		sampler string
		want    string
	}{
		{"always_on", "AlwaysOnSampler"},
		{"always_off", "AlwaysOffSampler"},
		{"ratio", "TraceIDRatioBased{0.5}"},
		{"", "ParentBased{root:TraceIDRatioBased{0.5}"},
	}
	for _, tt := range tests {
		t.Run(tt.sampler, func(t *testing.T) {
			got := sampler(config.TracingConfig{Sampler: tt.sampler, SampleRate: 0.5}).Description()
			assert.Contains(t, got, tt.want)
		})
	}
}

func TestEndpointHost(t *testing.T) {
	assert.Equal(t, "localhost:4317", endpointHost("localhost:4317"))
	assert.Equal(t, "localhost:4317", endpointHost(" http://localhost:4317/v1/traces "))
	assert.Equal(t, "", endpointHost(""))
}
