package tracing

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Memory engine span names.
const (
	SpanIngest      = "memory.ingest"
	SpanMaintenance = "memory.maintenance"
	SpanCrystallize = "memory.crystallize"
	SpanRetier      = "memory.retier"
	SpanQuery       = "memory.query"
)

// Memory engine attribute keys.
const (
	AttrUnitID       = attribute.Key("memory.id")
	AttrCreated      = attribute.Key("memory.created")
	AttrQueryKind    = attribute.Key("memory.query.kind")
	AttrResults      = attribute.Key("memory.results")
	AttrTick         = attribute.Key("memory.tick")
	AttrCrystallized = attribute.Key("memory.crystallized")
	AttrFailures     = attribute.Key("memory.failures")
	AttrEvicted      = attribute.Key("memory.evicted")
	AttrRetiered     = attribute.Key("memory.retiered")
	AttrCandidates   = attribute.Key("memory.candidates")
	AttrPending      = attribute.Key("memory.pending")
)

// TickSummary is the outcome of one maintenance tick as recorded on its span.
type TickSummary struct {
	Tick         int
	Crystallized int
	Evicted      int
	Retiered     int
	Pending      int
}

// StartQuery starts a query span tagged with the query kind.
func StartQuery(ctx context.Context, tracer trace.Tracer, kind string) (context.Context, trace.Span) {
	return tracer.Start(ctx, SpanQuery, trace.WithAttributes(AttrQueryKind.String(kind)))
}

// EndIngest records the stored unit on span and marks the span failed when
// err is set. The id is recorded even on failure: a unit whose write failed
// stays resident.
func EndIngest(span trace.Span, id string, created bool, err error) {
	span.SetAttributes(AttrUnitID.String(id), AttrCreated.Bool(created))
	Fail(span, err)
}

// EndCrystallize records a crystallization pass and ends span.
func EndCrystallize(span trace.Span, promoted, failures int) {
	span.SetAttributes(AttrCrystallized.Int(promoted), AttrFailures.Int(failures))
	span.End()
}

// EndRetier records a tier reassignment and ends span.
func EndRetier(span trace.Span, retiered, candidates int) {
	span.SetAttributes(AttrRetiered.Int(retiered), AttrCandidates.Int(candidates))
	span.End()
}

// RecordTick records s on a maintenance span.
func RecordTick(span trace.Span, s TickSummary) {
	span.SetAttributes(
		AttrTick.Int(s.Tick),
		AttrCrystallized.Int(s.Crystallized),
		AttrEvicted.Int(s.Evicted),
		AttrRetiered.Int(s.Retiered),
		AttrPending.Int(s.Pending),
	)
}

// RecordResults records the number of results a query returned.
func RecordResults(span trace.Span, n int) {
	span.SetAttributes(AttrResults.Int(n))
}

// Fail marks span as failed with err. A nil err is ignored.
func Fail(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
