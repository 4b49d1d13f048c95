package memory

import (
	"sync"

	"github.com/goclaw/holomem/pkg/hrr"
)

// HybridRetriever combines vector and BM25 retrieval with RRF fusion.
type HybridRetriever struct {
	vector       *VectorIndex
	bm25         *BM25Index
	vectorWeight float64
	bm25Weight   float64
	rrfK         float64 // RRF constant, typically 60
}

// NewHybridRetriever creates a new hybrid retriever.
func NewHybridRetriever(vector *VectorIndex, bm25 *BM25Index, vectorWeight, bm25Weight float64) *HybridRetriever {
	return &HybridRetriever{
		vector:       vector,
		bm25:         bm25,
		vectorWeight: vectorWeight,
		bm25Weight:   bm25Weight,
		rrfK:         60.0,
	}
}

// SetWeights replaces the fusion weights.
func (h *HybridRetriever) SetWeights(vectorWeight, bm25Weight float64) {
	h.vectorWeight = vectorWeight
	h.bm25Weight = bm25Weight
}

// Retrieve ranks units for a text query and its vector cue. Either side
// may be empty; a nil cue skips vector ranking.
func (h *HybridRetriever) Retrieve(text string, cue hrr.Vector, topK int) ([]Hit, error) {
	if topK <= 0 {
		topK = 10
	}

	// Fetch more candidates from each retriever for better fusion
	fetchK := topK * 3
	if fetchK < 30 {
		fetchK = 30
	}

	var (
		wg        sync.WaitGroup
		vectorRes []Hit
		vectorErr error
		bm25IDs   []string
	)

	// Run vector and BM25 in parallel
	if cue != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			vectorRes, vectorErr = h.vector.Search(cue, fetchK, nil)
		}()
	}

	if text != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			bm25IDs, _ = h.bm25.Search(text, fetchK)
		}()
	}

	wg.Wait()

	// Graceful degradation: if the vector side fails, use BM25 alone
	if vectorErr != nil {
		if len(bm25IDs) == 0 {
			return nil, vectorErr
		}
		vectorRes = nil
	}
	if len(vectorRes) == 0 && len(bm25IDs) == 0 {
		return nil, nil
	}

	vectorIDs := make([]string, len(vectorRes))
	for i, r := range vectorRes {
		vectorIDs[i] = r.ID
	}

	fused := h.fuseRRF(vectorIDs, bm25IDs)
	if topK < len(fused) {
		fused = fused[:topK]
	}
	return fused, nil
}

// fuseRRF applies Reciprocal Rank Fusion: RRF(d) = Σ weight/(k + rank(d))
func (h *HybridRetriever) fuseRRF(vectorIDs, bm25IDs []string) []Hit {
	scores := make(map[string]float64)

	for rank, id := range vectorIDs {
		scores[id] += h.vectorWeight / (h.rrfK + float64(rank+1))
	}
	for rank, id := range bm25IDs {
		scores[id] += h.bm25Weight / (h.rrfK + float64(rank+1))
	}

	results := make([]Hit, 0, len(scores))
	for id, score := range scores {
		results = append(results, Hit{ID: id, Score: score})
	}
	sortHits(results)
	return results
}
