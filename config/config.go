// Package config provides configuration management for holomem.
package config

import (
	"fmt"
	"time"
)

// Config is the global configuration for holomem.
type Config struct {
	// App is the application configuration.
	App AppConfig `mapstructure:"app" validate:"required"`

	// Log is the logging configuration.
	Log LogConfig `mapstructure:"log" validate:"required"`

	// Storage is the persistence configuration.
	Storage StorageConfig `mapstructure:"storage"`

	// Metrics is the observability configuration.
	Metrics MetricsConfig `mapstructure:"metrics"`

	// Tracing is the distributed tracing configuration.
	Tracing TracingConfig `mapstructure:"tracing"`

	// Memory is the associative memory engine configuration.
	Memory MemoryConfig `mapstructure:"memory"`
}

// AppConfig holds application metadata and settings.
type AppConfig struct {
	// Name is the application name.
	Name string `mapstructure:"name" validate:"required"`

	// Version is the application version.
	Version string `mapstructure:"version"`

	// Environment is the runtime environment (development, staging, production).
	Environment string `mapstructure:"environment" validate:"env"`

	// Debug enables debug mode with verbose logging.
	Debug bool `mapstructure:"debug"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	// Level is the log level (debug, info, warn, error).
	Level string `mapstructure:"level" validate:"oneof=debug info warn error"`

	// Format is the output format (json, text).
	Format string `mapstructure:"format" validate:"oneof=json text"`

	// Output is the output destination (stdout, stderr, or file path).
	Output string `mapstructure:"output"`
}

// StorageConfig holds persistence settings.
type StorageConfig struct {
	// Type is the record store backend (memory, badger, file).
	Type string `mapstructure:"type" validate:"oneof=memory badger file"`

	// Badger is the BadgerDB configuration.
	Badger BadgerConfig `mapstructure:"badger"`

	// File is the directory store configuration.
	File FileConfig `mapstructure:"file"`
}

// BadgerConfig holds BadgerDB-specific settings.
type BadgerConfig struct {
	// Path is the database directory path.
	Path string `mapstructure:"path"`

	// SyncWrites enables synchronous writes for durability.
	SyncWrites bool `mapstructure:"sync_writes"`

	// ValueLogFileSize is the maximum size of value log files in bytes.
	ValueLogFileSize int64 `mapstructure:"value_log_file_size" validate:"gte=0"`

	// NumVersionsToKeep is the number of versions to keep per key.
	NumVersionsToKeep int `mapstructure:"num_versions_to_keep" validate:"gte=0"`
}

// FileConfig holds directory store settings.
type FileConfig struct {
	// Dir holds one file per record.
	Dir string `mapstructure:"dir"`

	// Sync fsyncs every record and its directory on write.
	Sync bool `mapstructure:"sync"`
}

// MetricsConfig holds observability settings.
type MetricsConfig struct {
	// Enabled enables metrics collection.
	Enabled bool `mapstructure:"enabled"`

	// Path is the metrics endpoint path.
	Path string `mapstructure:"path"`

	// Port is the metrics server port.
	Port int `mapstructure:"port" validate:"min=1,max=65535"`
}

// TracingConfig holds distributed tracing settings.
type TracingConfig struct {
	// Enabled enables distributed tracing.
	Enabled bool `mapstructure:"enabled"`

	// Exporter is the span exporter kind (otlp).
	Exporter string `mapstructure:"exporter" validate:"omitempty,oneof=otlp"`

	// Endpoint is the collector endpoint.
	Endpoint string `mapstructure:"endpoint"`

	// Headers are sent with every export request.
	Headers map[string]string `mapstructure:"headers"`

	// Timeout bounds a single export.
	Timeout time.Duration `mapstructure:"timeout"`

	// Sampler selects the sampling strategy (always_on, always_off, ratio).
	Sampler string `mapstructure:"sampler" validate:"omitempty,oneof=always_on always_off ratio"`

	// SampleRate is the fraction of traces to sample (0.0-1.0).
	SampleRate float64 `mapstructure:"sample_rate" validate:"min=0,max=1"`
}

// MemoryConfig holds the associative memory engine settings.
type MemoryConfig struct {
	// Vector configures the holographic vector space.
	Vector VectorConfig `mapstructure:"vector"`

	// Conversation configures the short-lived turn store.
	Conversation ConversationConfig `mapstructure:"conversation"`

	// Persistent configures the durable content-addressed store.
	Persistent PersistentConfig `mapstructure:"persistent"`

	// Crystallization configures promotion from conversation to persistent memory.
	Crystallization CrystallizationConfig `mapstructure:"crystallization"`

	// Importance configures the importance calculator.
	Importance ImportanceConfig `mapstructure:"importance"`

	// Tiering configures the storage tier optimizer.
	Tiering TieringConfig `mapstructure:"tiering"`

	// Recall configures hybrid text and vector recall.
	Recall RecallConfig `mapstructure:"recall"`
}

// VectorConfig holds HRR vector space settings.
type VectorConfig struct {
	// Dimension is the process-wide vector dimension D.
	Dimension int `mapstructure:"dimension" validate:"min=16"`

	// Seed makes role and symbol vectors reproducible across restarts.
	Seed uint64 `mapstructure:"seed"`
}

// ConversationConfig holds conversational store settings.
type ConversationConfig struct {
	// HalfLife is the decay half-life of conversational units.
	HalfLife time.Duration `mapstructure:"half_life" validate:"gt=0"`

	// MaxUnits caps the store size; the oldest non-crystallizable units are evicted first.
	MaxUnits int `mapstructure:"max_units" validate:"min=1"`

	// NegligibleFloor is the effective importance below which units are evicted.
	NegligibleFloor float64 `mapstructure:"negligible_floor" validate:"gte=0"`

	// AccessBoost is added to base importance on each access.
	AccessBoost float64 `mapstructure:"access_boost" validate:"gte=0"`

	// MaxImportance bounds base importance growth from access boosts.
	MaxImportance float64 `mapstructure:"max_importance" validate:"gt=0"`
}

// PersistentConfig holds persistent store settings.
type PersistentConfig struct {
	// HalfLife is the decay half-life of persistent units.
	HalfLife time.Duration `mapstructure:"half_life" validate:"gt=0"`

	// FastMode defers writes until the next maintenance tick or close.
	FastMode bool `mapstructure:"fast_mode"`

	// RelationshipFanout is the maximum number of neighbours linked on ingest.
	RelationshipFanout int `mapstructure:"relationship_fanout" validate:"gte=0"`

	// RelationshipMinAffinity is the minimum similarity for a relationship link.
	RelationshipMinAffinity float64 `mapstructure:"relationship_min_affinity" validate:"gte=-1,lte=1"`

	// WorkingSetSize bounds the global associative memory superposition.
	WorkingSetSize int `mapstructure:"working_set_size" validate:"min=1"`
}

// CrystallizationConfig holds promotion settings.
type CrystallizationConfig struct {
	// Threshold is the importance a unit must exceed to be promoted.
	Threshold float64 `mapstructure:"threshold" validate:"gte=0"`

	// Compare selects the importance compared against the threshold (effective, base).
	Compare string `mapstructure:"compare" validate:"oneof=effective base"`
}

// ImportanceConfig holds importance calculator settings.
type ImportanceConfig struct {
	// Weights are the relative factor weights.
	Weights ImportanceWeights `mapstructure:"weights"`

	// Scale maps the normalized [0,1] score onto the importance range.
	Scale float64 `mapstructure:"scale" validate:"gt=0"`

	// Markers are domain-relevant terms counted by the pattern factor.
	// Empty means the built-in marker list.
	Markers []string `mapstructure:"markers"`
}

// ImportanceWeights holds per-factor weights.
type ImportanceWeights struct {
	Complexity float64 `mapstructure:"complexity" validate:"gte=0"`
	Uniqueness float64 `mapstructure:"uniqueness" validate:"gte=0"`
	Pattern    float64 `mapstructure:"pattern" validate:"gte=0"`
	Temporal   float64 `mapstructure:"temporal" validate:"gte=0"`
	Engagement float64 `mapstructure:"engagement" validate:"gte=0"`
}

// Sum returns the total weight.
func (w ImportanceWeights) Sum() float64 {
	return w.Complexity + w.Uniqueness + w.Pattern + w.Temporal + w.Engagement
}

// TieringConfig holds storage tier optimizer settings.
type TieringConfig struct {
	// Hot, Warm and Cold are the fractions of units assigned to each tier,
	// taken from the top of the ranking; the remainder is archive.
	Hot  float64 `mapstructure:"hot" validate:"gte=0,lte=1"`
	Warm float64 `mapstructure:"warm" validate:"gte=0,lte=1"`
	Cold float64 `mapstructure:"cold" validate:"gte=0,lte=1"`

	// CentralityWeight scales the relationship centrality bonus.
	CentralityWeight float64 `mapstructure:"centrality_weight" validate:"gte=0"`

	// FrequencyWindow is the time constant of the access-rate estimate.
	FrequencyWindow time.Duration `mapstructure:"frequency_window" validate:"gt=0"`

	// EveryTicks runs the optimizer every N maintenance ticks.
	EveryTicks int `mapstructure:"every_ticks" validate:"min=1"`

	// ConsolidationSimilarity is the embedding similarity above which a pair is a consolidation candidate.
	ConsolidationSimilarity float64 `mapstructure:"consolidation_similarity" validate:"gte=-1,lte=1"`

	// ConsolidationAffinity is the relationship affinity a candidate pair must exceed.
	ConsolidationAffinity float64 `mapstructure:"consolidation_affinity" validate:"gte=0,lte=1"`

	// CompactArchive rewrites archive-tier records with zstd compression.
	CompactArchive bool `mapstructure:"compact_archive"`
}

// RecallConfig holds hybrid recall settings.
type RecallConfig struct {
	VectorWeight float64 `mapstructure:"vector_weight" validate:"gte=0"`
	BM25Weight   float64 `mapstructure:"bm25_weight" validate:"gte=0"`
	K1           float64 `mapstructure:"k1" validate:"gte=0"`
	B            float64 `mapstructure:"b" validate:"gte=0,lte=1"`
}

// Validate performs validation on the configuration.
func (c *Config) Validate() error {
	if err := ValidateWithDetails(c); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}

// String returns a string representation of the configuration (without sensitive data).
func (c *Config) String() string {
	return fmt.Sprintf("Config{App: %s, Env: %s, Storage: %s, D: %d}",
		c.App.Name, c.App.Environment, c.Storage.Type, c.Memory.Vector.Dimension)
}
