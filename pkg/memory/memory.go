// Package memory implements the associative memory engine: a fast-decaying
// conversational store, a durable content-addressed persistent store, the
// crystallization pipeline that promotes between them, an importance
// calculator, a storage tier optimizer and a global associative memory for
// compositional queries over HRR embeddings.
package memory

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for the memory engine.
var (
	ErrValidation      = errors.New("memory: validation failed")
	ErrNotFound        = errors.New("memory: unit not found")
	ErrClosed          = errors.New("memory: engine closed")
	ErrPersistence     = errors.New("memory: persistence failed")
	ErrCorruptedRecord = errors.New("memory: corrupted record")
	ErrCrystallization = errors.New("memory: crystallization failed")
)

// ValidationError reports input rejected before any state mutation.
type ValidationError struct {
	Field  string
	Reason string
	Cause  error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("memory: invalid %s: %s", e.Field, e.Reason)
}

// Is makes every ValidationError match ErrValidation.
func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func (e *ValidationError) Unwrap() error { return e.Cause }

// PersistenceError reports a failed durable write. The affected unit stays
// memory-resident and is retried on the next maintenance tick.
type PersistenceError struct {
	Op    string
	Key   string
	Cause error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("memory: %s %s: %v", e.Op, e.Key, e.Cause)
}

func (e *PersistenceError) Is(target error) bool { return target == ErrPersistence }

func (e *PersistenceError) Unwrap() error { return e.Cause }

// CorruptedRecordError reports a stored record that could not be decoded.
type CorruptedRecordError struct {
	Key   string
	Cause error
}

func (e *CorruptedRecordError) Error() string {
	return fmt.Sprintf("memory: corrupted record %s: %v", e.Key, e.Cause)
}

func (e *CorruptedRecordError) Is(target error) bool { return target == ErrCorruptedRecord }

func (e *CorruptedRecordError) Unwrap() error { return e.Cause }

// CrystallizationError reports a promotion that failed and was left queued.
type CrystallizationError struct {
	UnitID string
	Cause  error
}

func (e *CrystallizationError) Error() string {
	return fmt.Sprintf("memory: crystallize %s: %v", e.UnitID, e.Cause)
}

func (e *CrystallizationError) Is(target error) bool { return target == ErrCrystallization }

func (e *CrystallizationError) Unwrap() error { return e.Cause }

// Logger is the minimal logger interface used by the engine.
// *logger.SlogLogger satisfies it.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Debug(msg string, args ...any) {}
func (nopLogger) Info(msg string, args ...any)  {}
func (nopLogger) Warn(msg string, args ...any)  {}
func (nopLogger) Error(msg string, args ...any) {}

// MetricsRecorder receives engine metrics. *metrics.Manager satisfies it.
type MetricsRecorder interface {
	RecordIngest(result string)
	RecordCrystallized(count int)
	RecordCrystallizationFailure()
	RecordEvicted(reason string, count int)
	RecordRetiered(count int)
	SetConversationalUnits(count int)
	SetPersistentUnits(tier string, count int)
	SetUnpersistedUnits(count int)
	RecordMaintenanceDuration(d time.Duration)
	RecordQueryDuration(kind string, d time.Duration)
}

type nopMetrics struct{}

func (nopMetrics) RecordIngest(string)                       {}
func (nopMetrics) RecordCrystallized(int)                    {}
func (nopMetrics) RecordCrystallizationFailure()             {}
func (nopMetrics) RecordEvicted(string, int)                 {}
func (nopMetrics) RecordRetiered(int)                        {}
func (nopMetrics) SetConversationalUnits(int)                {}
func (nopMetrics) SetPersistentUnits(string, int)            {}
func (nopMetrics) SetUnpersistedUnits(int)                   {}
func (nopMetrics) RecordMaintenanceDuration(time.Duration)   {}
func (nopMetrics) RecordQueryDuration(string, time.Duration) {}

// ConsolidationHandler receives the consolidation candidates flagged by the
// tier optimizer. The engine never merges units itself.
type ConsolidationHandler func(ctx context.Context, candidates []ConsolidationCandidate)

// Ingest results reported to MetricsRecorder.
const (
	ingestCreated      = "created"
	ingestDeduplicated = "deduplicated"
	ingestUnpersisted  = "unpersisted"
	ingestRejected     = "rejected"
)

// Eviction reasons reported to MetricsRecorder.
const (
	evictDecayed  = "decayed"
	evictCapacity = "capacity"
)
