package config

import "time"

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		App: AppConfig{
			Name:        "holomem",
			Version:     "dev",
			Environment: "development",
			Debug:       false,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Storage: StorageConfig{
			Type: "badger",
			Badger: BadgerConfig{
				Path:              "./data/badger",
				SyncWrites:        true,
				ValueLogFileSize:  64 << 20, // 64MB
				NumVersionsToKeep: 1,
			},
			File: FileConfig{
				Dir:  "./data/records",
				Sync: true,
			},
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Path:    "/metrics",
			Port:    9091,
		},
		Tracing: TracingConfig{
			Enabled:    false,
			Exporter:   "otlp",
			Endpoint:   "localhost:4317",
			Timeout:    5 * time.Second,
			Sampler:    "ratio",
			SampleRate: 0.1,
		},
		Memory: DefaultMemoryConfig(),
	}
}

// DefaultMemoryConfig returns the memory engine defaults.
func DefaultMemoryConfig() MemoryConfig {
	return MemoryConfig{
		Vector: VectorConfig{
			Dimension: 1024,
			Seed:      42,
		},
		Conversation: ConversationConfig{
			HalfLife:        15 * time.Minute,
			MaxUnits:        200,
			NegligibleFloor: 0.05,
			AccessBoost:     0.1,
			MaxImportance:   5.0,
		},
		Persistent: PersistentConfig{
			HalfLife:                72 * time.Hour,
			FastMode:                false,
			RelationshipFanout:      5,
			RelationshipMinAffinity: 0.35,
			WorkingSetSize:          256,
		},
		Crystallization: CrystallizationConfig{
			Threshold: 3.0,
			Compare:   "effective",
		},
		Importance: ImportanceConfig{
			Weights: ImportanceWeights{
				Complexity: 0.25,
				Uniqueness: 0.20,
				Pattern:    0.20,
				Temporal:   0.15,
				Engagement: 0.20,
			},
			Scale: 5.0,
		},
		Tiering: TieringConfig{
			Hot:                     0.10,
			Warm:                    0.30,
			Cold:                    0.40,
			CentralityWeight:        0.5,
			FrequencyWindow:         24 * time.Hour,
			EveryTicks:              1,
			ConsolidationSimilarity: 0.90,
			ConsolidationAffinity:   0.85,
			CompactArchive:          false,
		},
		Recall: RecallConfig{
			VectorWeight: 0.7,
			BM25Weight:   0.3,
			K1:           1.5,
			B:            0.75,
		},
	}
}
