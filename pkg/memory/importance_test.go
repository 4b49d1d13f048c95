package memory

import (
	"testing"
	"time"

	"github.com/goclaw/holomem/config"
	"github.com/stretchr/testify/assert"
)

func newTestCalculator(scorer PatternScorer) *ImportanceCalculator {
	cfg := config.DefaultMemoryConfig()
	return NewImportanceCalculator(cfg.Importance, cfg.Conversation.HalfLife, scorer)
}

func TestImportance_ShortGreeting(t *testing.T) {
	calc := newTestCalculator(nil)
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	f := calc.Factors(ImportanceInput{Content: "Hello", Timestamp: now, Now: now})
	assert.InDelta(t, (0.05+1+0.625)/3, f.Complexity, 1e-9)
	assert.Equal(t, 1.0, f.Uniqueness)
	assert.Equal(t, 0.0, f.Pattern)
	assert.Equal(t, 1.0, f.Temporal)
	assert.Equal(t, 0.0, f.Engagement)

	score := calc.Score(ImportanceInput{Content: "Hello", Timestamp: now, Now: now})
	assert.InDelta(t, 2.448, score, 0.01)
	assert.Less(t, score, 3.0)
}

func TestImportance_RichContentCrossesThreshold(t *testing.T) {
	calc := newTestCalculator(nil)
	now := time.Now()

	score := calc.Score(ImportanceInput{
		Content:   "This is a very important philosophical question about memory",
		Timestamp: now,
		Now:       now,
	})
	assert.Greater(t, score, 3.0)
}

func TestImportance_Uniqueness(t *testing.T) {
	calc := newTestCalculator(nil)
	now := time.Now()

	tests := []struct {
		name    string
		nearest float64
		has     bool
		want    float64
	}{
		{"empty store", 0, false, 1},
		{"identical neighbour", 1, true, 0},
		{"distant neighbour", 0.25, true, 0.75},
		{"anti-correlated neighbour", -0.5, true, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := calc.Factors(ImportanceInput{Content: "x", Timestamp: now, Now: now, Nearest: tt.nearest, HasNeighbor: tt.has})
			assert.InDelta(t, tt.want, f.Uniqueness, 1e-9)
		})
	}
}

func TestImportance_TemporalDecaysWithAge(t *testing.T) {
	calc := newTestCalculator(nil)
	now := time.Now()

	f := calc.Factors(ImportanceInput{Content: "x", Timestamp: now.Add(-15 * time.Minute), Now: now})
	assert.InDelta(t, 0.5, f.Temporal, 1e-9)

	future := calc.Factors(ImportanceInput{Content: "x", Timestamp: now.Add(time.Minute), Now: now})
	assert.Equal(t, 1.0, future.Temporal)
}

func TestImportance_PatternMarkers(t *testing.T) {
	calc := newTestCalculator(nil)
	now := time.Now()

	one := calc.Factors(ImportanceInput{Content: "please remember this", Timestamp: now, Now: now})
	assert.InDelta(t, 0.5, one.Pattern, 1e-9)

	many := calc.Factors(ImportanceInput{Content: "Remember why this is important", Timestamp: now, Now: now})
	assert.Equal(t, 1.0, many.Pattern)
}

func TestImportance_CustomMarkers(t *testing.T) {
	cfg := config.DefaultMemoryConfig()
	cfg.Importance.Markers = []string{" Deploy ", "rollback"}
	calc := NewImportanceCalculator(cfg.Importance, cfg.Conversation.HalfLife, nil)
	now := time.Now()

	f := calc.Factors(ImportanceInput{Content: "deploy then rollback", Timestamp: now, Now: now})
	assert.Equal(t, 1.0, f.Pattern)

	f = calc.Factors(ImportanceInput{Content: "remember why", Timestamp: now, Now: now})
	assert.Equal(t, 0.0, f.Pattern)
}

func TestImportance_PatternScorerOverride(t *testing.T) {
	calc := newTestCalculator(PatternScorerFunc(func(content string) float64 { return 7 }))
	now := time.Now()

	f := calc.Factors(ImportanceInput{Content: "anything", Timestamp: now, Now: now})
	assert.Equal(t, 1.0, f.Pattern)
}

func TestImportance_EngagementIsClamped(t *testing.T) {
	calc := newTestCalculator(nil)
	now := time.Now()

	f := calc.Factors(ImportanceInput{Content: "x", Timestamp: now, Now: now, Engagement: 3})
	assert.Equal(t, 1.0, f.Engagement)
}

func TestImportance_Combine(t *testing.T) {
	calc := newTestCalculator(nil)

	assert.InDelta(t, 5.0, calc.Combine(Factors{1, 1, 1, 1, 1}), 1e-9)
	assert.Equal(t, 0.0, calc.Combine(Factors{}))

	cfg := config.DefaultMemoryConfig()
	cfg.Importance.Weights = config.ImportanceWeights{Engagement: 2}
	cfg.Importance.Scale = 10
	calc.Configure(cfg.Importance)
	assert.InDelta(t, 5.0, calc.Combine(Factors{Complexity: 1, Engagement: 0.5}), 1e-9)
}

func TestComplexity_Empty(t *testing.T) {
	assert.Equal(t, 0.0, complexity("  ...  "))
}
