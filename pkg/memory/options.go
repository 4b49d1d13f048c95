package memory

import (
	"time"

	"github.com/goclaw/holomem/config"
	"github.com/goclaw/holomem/pkg/hrr"
	"github.com/goclaw/holomem/pkg/storage"
	"go.opentelemetry.io/otel/trace"
)

// Option is a functional option for configuring the Engine.
type Option func(*Engine)

// WithClock sets the time source. Tests use it to drive decay without sleeping.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithLogger sets the engine logger.
func WithLogger(log Logger) Option {
	return func(e *Engine) {
		if log != nil {
			e.log = log
		}
	}
}

// WithMetrics sets the metrics recorder for the engine.
func WithMetrics(metrics MetricsRecorder) Option {
	return func(e *Engine) {
		if metrics != nil {
			e.metrics = metrics
		}
	}
}

// WithTracer sets the tracer used for engine spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(e *Engine) {
		if tracer != nil {
			e.tracer = tracer
		}
	}
}

// WithStore sets the record store. The caller keeps ownership and closes it.
func WithStore(store storage.Store) Option {
	return func(e *Engine) {
		if store != nil {
			e.store = store
			e.ownsStore = false
		}
	}
}

// WithStorageConfig makes Open create the record store from cfg. The engine
// owns that store and closes it on Close.
func WithStorageConfig(cfg config.StorageConfig) Option {
	return func(e *Engine) {
		c := cfg
		e.storageCfg = &c
	}
}

// WithEncoder replaces the default capsule encoder. The factory receives
// the engine's vector space.
func WithEncoder(factory func(space *hrr.Space) Encoder) Option {
	return func(e *Engine) {
		if factory != nil {
			e.encoderFactory = factory
		}
	}
}

// WithPatternScorer replaces the built-in marker counter of the importance
// calculator.
func WithPatternScorer(scorer PatternScorer) Option {
	return func(e *Engine) {
		if scorer != nil {
			e.scorer = scorer
		}
	}
}

// WithConsolidationHandler sets the receiver of consolidation candidates.
func WithConsolidationHandler(handler ConsolidationHandler) Option {
	return func(e *Engine) {
		if handler != nil {
			e.consolidate = handler
		}
	}
}

// AddOption tunes a single conversational add or persistent ingest.
type AddOption func(*addOptions)

type addOptions struct {
	importance    float64
	hasImportance bool
	engagement    float64
}

// WithImportance sets the base importance explicitly instead of scoring it.
func WithImportance(importance float64) AddOption {
	return func(o *addOptions) {
		o.importance = importance
		o.hasImportance = true
	}
}

// WithEngagement sets the engagement factor in [0,1] used when scoring.
func WithEngagement(engagement float64) AddOption {
	return func(o *addOptions) {
		o.engagement = engagement
	}
}
