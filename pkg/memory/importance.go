package memory

import (
	"math"
	"strings"
	"time"

	"github.com/goclaw/holomem/config"
)

// PatternScorer scores domain-relevant pattern density of content in [0,1].
// It replaces the built-in marker counter when supplied.
type PatternScorer interface {
	Score(content string) float64
}

// PatternScorerFunc adapts a function to PatternScorer.
type PatternScorerFunc func(content string) float64

// Score implements PatternScorer.
func (f PatternScorerFunc) Score(content string) float64 { return f(content) }

// defaultMarkers are counted by the built-in pattern scorer.
var defaultMarkers = []string{
	"important", "remember", "memory", "question", "why", "because",
	"learn", "learned", "idea", "understand", "philosophical", "meaning",
	"goal", "plan", "decide", "decision", "never", "always", "must",
	"insight", "realize", "believe",
}

// Factors are the normalized [0,1] inputs of an importance score.
type Factors struct {
	Complexity float64 `json:"complexity"`
	Uniqueness float64 `json:"uniqueness"`
	Pattern    float64 `json:"pattern"`
	Temporal   float64 `json:"temporal"`
	Engagement float64 `json:"engagement"`
}

// ImportanceInput is the content to score.
type ImportanceInput struct {
	Content string

	// Timestamp is when the content was produced; Now is the scoring time.
	Timestamp time.Time
	Now       time.Time

	// Nearest is the similarity of the closest persistent embedding;
	// HasNeighbor is false for an empty store.
	Nearest     float64
	HasNeighbor bool

	// Engagement is the caller-supplied emphasis in [0,1].
	Engagement float64
}

// ImportanceCalculator combines weighted factors into an importance score.
type ImportanceCalculator struct {
	weights  config.ImportanceWeights
	scale    float64
	halfLife time.Duration
	markers  map[string]struct{}
	scorer   PatternScorer
}

// NewImportanceCalculator creates a calculator. halfLife is the
// recency half-life of the temporal factor.
func NewImportanceCalculator(cfg config.ImportanceConfig, halfLife time.Duration, scorer PatternScorer) *ImportanceCalculator {
	c := &ImportanceCalculator{halfLife: halfLife, scorer: scorer}
	c.Configure(cfg)
	return c
}

// Configure replaces weights, scale and markers.
func (c *ImportanceCalculator) Configure(cfg config.ImportanceConfig) {
	c.weights = cfg.Weights
	c.scale = cfg.Scale
	markers := cfg.Markers
	if len(markers) == 0 {
		markers = defaultMarkers
	}
	c.markers = make(map[string]struct{}, len(markers))
	for _, m := range markers {
		c.markers[strings.ToLower(strings.TrimSpace(m))] = struct{}{}
	}
}

// Factors computes the normalized factors for in.
func (c *ImportanceCalculator) Factors(in ImportanceInput) Factors {
	f := Factors{
		Complexity: complexity(in.Content),
		Uniqueness: 1,
		Temporal:   DecayFactor(in.Now.Sub(in.Timestamp), c.halfLife),
		Engagement: clamp01(in.Engagement),
	}
	if in.HasNeighbor {
		f.Uniqueness = clamp01(1 - in.Nearest)
	}
	if c.scorer != nil {
		f.Pattern = clamp01(c.scorer.Score(in.Content))
	} else {
		f.Pattern = c.patternDensity(in.Content)
	}
	return f
}

// Score returns the importance of in on the configured scale.
func (c *ImportanceCalculator) Score(in ImportanceInput) float64 {
	return c.Combine(c.Factors(in))
}

// Combine returns the weighted mean of f scaled to the importance range.
func (c *ImportanceCalculator) Combine(f Factors) float64 {
	total := c.weights.Sum()
	if total <= 0 {
		return 0
	}
	w := c.weights
	sum := w.Complexity*f.Complexity +
		w.Uniqueness*f.Uniqueness +
		w.Pattern*f.Pattern +
		w.Temporal*f.Temporal +
		w.Engagement*f.Engagement
	return c.scale * sum / total
}

// patternDensity counts marker hits; two or more saturate the factor.
func (c *ImportanceCalculator) patternDensity(content string) float64 {
	hits := 0
	for _, w := range words(content) {
		if _, ok := c.markers[w]; ok {
			hits++
		}
	}
	return clamp01(float64(hits) / 2)
}

// complexity averages length, lexical diversity and mean word length,
// each normalized to [0,1].
func complexity(content string) float64 {
	ws := words(content)
	if len(ws) == 0 {
		return 0
	}

	unique := make(map[string]struct{}, len(ws))
	letters := 0
	for _, w := range ws {
		unique[w] = struct{}{}
		letters += len([]rune(w))
	}

	length := math.Min(1, float64(len(ws))/20)
	diversity := float64(len(unique)) / float64(len(ws))
	wordLen := math.Min(1, float64(letters)/float64(len(ws))/8)
	return (length + diversity + wordLen) / 3
}

func clamp01(x float64) float64 {
	switch {
	case math.IsNaN(x) || x < 0:
		return 0
	case x > 1:
		return 1
	}
	return x
}
