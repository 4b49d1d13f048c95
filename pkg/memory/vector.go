package memory

import (
	"fmt"
	"sort"
	"sync"

	"github.com/goclaw/holomem/pkg/hrr"
)

// Hit is a scored index match.
type Hit struct {
	ID    string
	Score float64
}

// VectorIndex provides nearest neighbor search over persistent embeddings
// using brute-force cosine similarity.
type VectorIndex struct {
	mu        sync.RWMutex
	dimension int
	vectors   map[string]hrr.Vector // unitID -> embedding
}

// NewVectorIndex creates a new vector index with the given dimension.
func NewVectorIndex(dimension int) *VectorIndex {
	return &VectorIndex{
		dimension: dimension,
		vectors:   make(map[string]hrr.Vector),
	}
}

// Add adds or replaces a vector in the index.
func (v *VectorIndex) Add(id string, vector hrr.Vector) error {
	if len(vector) != v.dimension {
		return fmt.Errorf("%w: expected %d, got %d", hrr.ErrDimensionMismatch, v.dimension, len(vector))
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.vectors[id] = vector.Clone()
	return nil
}

// Similarity returns the cosine similarity between two indexed vectors.
func (v *VectorIndex) Similarity(a, b string) (float64, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	va, okA := v.vectors[a]
	vb, okB := v.vectors[b]
	if !okA || !okB {
		return 0, false
	}
	return hrr.Cosine(va, vb), true
}

// Search finds the topK most similar vectors to query. Ids accepted by
// exclude are skipped. Equal scores are ordered by id.
func (v *VectorIndex) Search(query hrr.Vector, topK int, exclude func(id string) bool) ([]Hit, error) {
	if len(query) != v.dimension {
		return nil, fmt.Errorf("%w: expected %d, got %d", hrr.ErrDimensionMismatch, v.dimension, len(query))
	}
	if topK <= 0 {
		return nil, nil
	}

	v.mu.RLock()
	results := make([]Hit, 0, len(v.vectors))
	for id, vec := range v.vectors {
		if exclude != nil && exclude(id) {
			continue
		}
		results = append(results, Hit{ID: id, Score: hrr.Cosine(query, vec)})
	}
	v.mu.RUnlock()

	sortHits(results)
	if topK < len(results) {
		results = results[:topK]
	}
	return results, nil
}

// Len returns the number of vectors in the index.
func (v *VectorIndex) Len() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.vectors)
}

func sortHits(hits []Hit) {
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ID < hits[j].ID
	})
}
