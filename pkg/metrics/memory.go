package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// initMemoryMetrics initializes memory engine metrics.
func (m *Manager) initMemoryMetrics(cfg Config) {
	m.ingests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "memory_ingest_total",
			Help: "Total number of persistent ingests by result (created, deduplicated, unpersisted, rejected)",
		},
		[]string{"result"},
	)

	m.crystallized = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "memory_crystallized_total",
			Help: "Total number of conversational units promoted to persistent memory",
		},
	)

	m.crystallizeFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "memory_crystallization_failures_total",
			Help: "Total number of failed promotion attempts left queued for retry",
		},
	)

	m.evicted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "memory_evicted_total",
			Help: "Total number of conversational units evicted by reason (decayed, capacity)",
		},
		[]string{"reason"},
	)

	m.retiered = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "memory_retiered_total",
			Help: "Total number of persistent units moved to a different storage tier",
		},
	)

	m.conversationalUnits = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "memory_conversational_units",
			Help: "Current number of units in conversational memory",
		},
	)

	m.persistentUnits = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "memory_persistent_units",
			Help: "Current number of persistent units by storage tier",
		},
		[]string{"tier"},
	)

	m.unpersistedUnits = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "memory_unpersisted_units",
			Help: "Current number of persistent units awaiting a durable write",
		},
	)

	m.maintenanceDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "memory_maintenance_duration_seconds",
			Help:    "Maintenance tick duration in seconds",
			Buckets: cfg.MaintenanceDurationBuckets,
		},
	)

	m.queryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "memory_query_duration_seconds",
			Help:    "Query duration in seconds by kind (role, compositional, recall)",
			Buckets: cfg.QueryDurationBuckets,
		},
		[]string{"kind"},
	)

	m.registry.MustRegister(m.ingests)
	m.registry.MustRegister(m.crystallized)
	m.registry.MustRegister(m.crystallizeFailures)
	m.registry.MustRegister(m.evicted)
	m.registry.MustRegister(m.retiered)
	m.registry.MustRegister(m.conversationalUnits)
	m.registry.MustRegister(m.persistentUnits)
	m.registry.MustRegister(m.unpersistedUnits)
	m.registry.MustRegister(m.maintenanceDuration)
	m.registry.MustRegister(m.queryDuration)
}

// RecordIngest records a persistent ingest outcome.
func (m *Manager) RecordIngest(result string) {
	if !m.enabled {
		return
	}
	m.ingests.WithLabelValues(result).Inc()
}

// RecordCrystallized records successful promotions.
func (m *Manager) RecordCrystallized(count int) {
	if !m.enabled || count <= 0 {
		return
	}
	m.crystallized.Add(float64(count))
}

// RecordCrystallizationFailure records a failed promotion attempt.
func (m *Manager) RecordCrystallizationFailure() {
	if !m.enabled {
		return
	}
	m.crystallizeFailures.Inc()
}

// RecordEvicted records evicted conversational units.
func (m *Manager) RecordEvicted(reason string, count int) {
	if !m.enabled || count <= 0 {
		return
	}
	m.evicted.WithLabelValues(reason).Add(float64(count))
}

// RecordRetiered records tier changes.
func (m *Manager) RecordRetiered(count int) {
	if !m.enabled || count <= 0 {
		return
	}
	m.retiered.Add(float64(count))
}

// SetConversationalUnits sets the conversational store size.
func (m *Manager) SetConversationalUnits(count int) {
	if !m.enabled {
		return
	}
	m.conversationalUnits.Set(float64(count))
}

// SetPersistentUnits sets the persistent unit count for a tier.
func (m *Manager) SetPersistentUnits(tier string, count int) {
	if !m.enabled {
		return
	}
	m.persistentUnits.WithLabelValues(tier).Set(float64(count))
}

// SetUnpersistedUnits sets the number of units awaiting a durable write.
func (m *Manager) SetUnpersistedUnits(count int) {
	if !m.enabled {
		return
	}
	m.unpersistedUnits.Set(float64(count))
}

// RecordMaintenanceDuration records a maintenance tick duration.
func (m *Manager) RecordMaintenanceDuration(duration time.Duration) {
	if !m.enabled {
		return
	}
	m.maintenanceDuration.Observe(duration.Seconds())
}

// RecordQueryDuration records a query duration.
func (m *Manager) RecordQueryDuration(kind string, duration time.Duration) {
	if !m.enabled {
		return
	}
	m.queryDuration.WithLabelValues(kind).Observe(duration.Seconds())
}
