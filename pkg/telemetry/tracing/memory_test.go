package tracing

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func newRecorder(t *testing.T) (*tracetest.SpanRecorder, *sdktrace.TracerProvider) {
	t.Helper()
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	return sr, tp
}

func attrs(span sdktrace.ReadOnlySpan) map[attribute.Key]attribute.Value {
	out := make(map[attribute.Key]attribute.Value)
	for _, kv := range span.Attributes() {
		out[kv.Key] = kv.Value
	}
	return out
}

func TestEndIngest(t *testing.T) {
	sr, tp := newRecorder(t)
	tracer := tp.Tracer("test")

	_, ok := tracer.Start(context.Background(), SpanIngest)
	EndIngest(ok, "unit-1", true, nil)
	ok.End()

	_, failed := tracer.Start(context.Background(), SpanIngest)
	EndIngest(failed, "unit-2", false, errors.New("disk full"))
	failed.End()

	spans := sr.Ended()
	require.Len(t, spans, 2)

	a := attrs(spans[0])
	assert.Equal(t, "unit-1", a[AttrUnitID].AsString())
	assert.True(t, a[AttrCreated].AsBool())
	assert.Equal(t, codes.Unset, spans[0].Status().Code)

	a = attrs(spans[1])
	assert.Equal(t, "unit-2", a[AttrUnitID].AsString())
	assert.Equal(t, codes.Error, spans[1].Status().Code)
	assert.Equal(t, "disk full", spans[1].Status().Description)
	assert.Len(t, spans[1].Events(), 1)
}

func TestMaintenanceSpans(t *testing.T) {
	sr, tp := newRecorder(t)
	tracer := tp.Tracer("test")

	ctx, tick := tracer.Start(context.Background(), SpanMaintenance)
	_, crystallize := tracer.Start(ctx, SpanCrystallize)
	EndCrystallize(crystallize, 2, 1)
	_, retier := tracer.Start(ctx, SpanRetier)
	EndRetier(retier, 3, 1)
	RecordTick(tick, TickSummary{Tick: 7, Crystallized: 2, Evicted: 4, Retiered: 3, Pending: 1})
	tick.End()

	spans := sr.Ended()
	require.Len(t, spans, 3)
	byName := make(map[string]map[attribute.Key]attribute.Value)
	for _, s := range spans {
		byName[s.Name()] = attrs(s)
	}

	assert.Equal(t, int64(2), byName[SpanCrystallize][AttrCrystallized].AsInt64())
	assert.Equal(t, int64(1), byName[SpanCrystallize][AttrFailures].AsInt64())
	assert.Equal(t, int64(3), byName[SpanRetier][AttrRetiered].AsInt64())
	assert.Equal(t, int64(1), byName[SpanRetier][AttrCandidates].AsInt64())

	tickAttrs := byName[SpanMaintenance]
	assert.Equal(t, int64(7), tickAttrs[AttrTick].AsInt64())
	assert.Equal(t, int64(4), tickAttrs[AttrEvicted].AsInt64())
	assert.Equal(t, int64(1), tickAttrs[AttrPending].AsInt64())
}

func TestStartQuery(t *testing.T) {
	sr, tp := newRecorder(t)

	_, span := StartQuery(context.Background(), tp.Tracer("test"), "role")
	RecordResults(span, 5)
	Fail(span, nil)
	span.End()

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, SpanQuery, spans[0].Name())
	a := attrs(spans[0])
	assert.Equal(t, "role", a[AttrQueryKind].AsString())
	assert.Equal(t, int64(5), a[AttrResults].AsInt64())
	assert.Equal(t, codes.Unset, spans[0].Status().Code)
}
