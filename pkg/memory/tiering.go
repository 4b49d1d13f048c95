package memory

import (
	"sort"
	"time"

	"github.com/goclaw/holomem/config"
)

// TierOptimizer re-scores persistent units and assigns storage tiers by
// rank, and flags consolidation candidates.
type TierOptimizer struct {
	cfg      config.TieringConfig
	halfLife time.Duration
}

// NewTierOptimizer creates an optimizer for units decaying with halfLife.
func NewTierOptimizer(cfg config.TieringConfig, halfLife time.Duration) *TierOptimizer {
	return &TierOptimizer{cfg: cfg, halfLife: halfLife}
}

// Configure replaces the cutoffs and weights.
func (o *TierOptimizer) Configure(cfg config.TieringConfig) { o.cfg = cfg }

// Due reports whether the optimizer runs on maintenance tick.
func (o *TierOptimizer) Due(tick int) bool {
	every := o.cfg.EveryTicks
	if every <= 1 {
		return true
	}
	return tick%every == 0
}

type tierScore struct {
	unit  *PersistentUnit
	score float64
}

// Score returns the tier score of u. maxCentrality is the largest
// centrality in the store.
func (o *TierOptimizer) Score(u *PersistentUnit, now time.Time, maxCentrality float64) float64 {
	centrality := 0.0
	if maxCentrality > 0 {
		centrality = u.Centrality() / maxCentrality
	}
	freq := u.Access.At(now, o.cfg.FrequencyWindow)
	return u.EffectiveImportance(now, o.halfLife) * freq * (1 + o.cfg.CentralityWeight*centrality)
}

// Assign sets the tier of every unit and returns the ids whose tier changed,
// sorted.
func (o *TierOptimizer) Assign(units []*PersistentUnit, now time.Time) []string {
	n := len(units)
	if n == 0 {
		return nil
	}

	maxCentrality := 0.0
	for _, u := range units {
		if c := u.Centrality(); c > maxCentrality {
			maxCentrality = c
		}
	}

	scored := make([]tierScore, n)
	for i, u := range units {
		scored[i] = tierScore{unit: u, score: o.Score(u, now, maxCentrality)}
	}
	sort.Slice(scored, func(i, j int) bool {
		if scored[i].score != scored[j].score {
			return scored[i].score > scored[j].score
		}
		return scored[i].unit.ID < scored[j].unit.ID
	})

	var changed []string
	groupTier := TierArchive
	for r, s := range scored {
		if r == 0 || s.score != scored[r-1].score {
			groupTier = o.tierAt(float64(r) / float64(n))
		}
		if s.unit.Tier != groupTier {
			s.unit.Tier = groupTier
			changed = append(changed, s.unit.ID)
		}
	}
	sort.Strings(changed)
	return changed
}

// tierAt maps a rank fraction through the cumulative cutoffs.
func (o *TierOptimizer) tierAt(fraction float64) Tier {
	cut := o.cfg.Hot
	if fraction < cut {
		return TierHot
	}
	cut += o.cfg.Warm
	if fraction < cut {
		return TierWarm
	}
	cut += o.cfg.Cold
	if fraction < cut {
		return TierCold
	}
	return TierArchive
}

// Candidates returns related unit pairs whose affinity and embedding
// similarity both reach the consolidation thresholds. Each pair is reported
// once with A < B, ordered by A then B.
func (o *TierOptimizer) Candidates(units []*PersistentUnit, index *VectorIndex) []ConsolidationCandidate {
	var out []ConsolidationCandidate
	for _, u := range units {
		for other, affinity := range u.Relationships {
			if u.ID >= other || affinity < o.cfg.ConsolidationAffinity {
				continue
			}
			sim, ok := index.Similarity(u.ID, other)
			if !ok || sim < o.cfg.ConsolidationSimilarity {
				continue
			}
			out = append(out, ConsolidationCandidate{A: u.ID, B: other, Similarity: sim, Affinity: affinity})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].A != out[j].A {
			return out[i].A < out[j].A
		}
		return out[i].B < out[j].B
	})
	return out
}
