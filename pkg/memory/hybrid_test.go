package memory

import (
	"testing"

	"github.com/goclaw/holomem/pkg/hrr"
)

func TestHybridRetriever_VectorOnly(t *testing.T) {
	vi := NewVectorIndex(3)
	bi := NewBM25Index(1.5, 0.75)
	hr := NewHybridRetriever(vi, bi, 0.7, 0.3)

	vi.Add("a", hrr.Vector{1, 0, 0})
	vi.Add("b", hrr.Vector{0, 1, 0})

	hits, err := hr.Retrieve("", hrr.Vector{1, 0, 0}, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 || hits[0].ID != "a" {
		t.Errorf("expected 'a', got %v", hits)
	}
}

func TestHybridRetriever_BM25Only(t *testing.T) {
	vi := NewVectorIndex(3)
	bi := NewBM25Index(1.5, 0.75)
	hr := NewHybridRetriever(vi, bi, 0.7, 0.3)

	bi.IndexDocument("a", "machine learning algorithms")
	bi.IndexDocument("b", "cooking recipes pasta")

	hits, err := hr.Retrieve("machine learning", nil, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 || hits[0].ID != "a" {
		t.Errorf("expected 'a', got %v", hits)
	}
}

func TestHybridRetriever_Fusion(t *testing.T) {
	vi := NewVectorIndex(2)
	bi := NewBM25Index(1.5, 0.75)
	hr := NewHybridRetriever(vi, bi, 0.5, 0.5)

	// "a" ranks first on both sides, "b" only on the vector side.
	vi.Add("a", hrr.Vector{1, 0})
	vi.Add("b", hrr.Vector{0.8, 0.2})
	vi.Add("c", hrr.Vector{0, 1})
	bi.IndexDocument("a", "holographic memory")
	bi.IndexDocument("c", "unrelated text")

	hits, err := hr.Retrieve("holographic", hrr.Vector{1, 0}, 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 3 {
		t.Fatalf("expected 3 fused results, got %v", hits)
	}
	if hits[0].ID != "a" {
		t.Errorf("expected 'a' first, got %v", hits)
	}
	want := 0.5/61 + 0.5/61
	if diff := hits[0].Score - want; diff > 1e-12 || diff < -1e-12 {
		t.Errorf("expected fused score %v, got %v", want, hits[0].Score)
	}
}

func TestHybridRetriever_DegradesToBM25(t *testing.T) {
	vi := NewVectorIndex(3)
	bi := NewBM25Index(1.5, 0.75)
	hr := NewHybridRetriever(vi, bi, 0.7, 0.3)
	bi.IndexDocument("a", "memory")

	// A cue of the wrong dimension fails the vector side only.
	hits, err := hr.Retrieve("memory", hrr.Vector{1}, 5)
	if err != nil {
		t.Fatalf("expected BM25 fallback, got %v", err)
	}
	if len(hits) != 1 || hits[0].ID != "a" {
		t.Errorf("expected 'a', got %v", hits)
	}

	if _, err := hr.Retrieve("", hrr.Vector{1}, 5); err == nil {
		t.Error("expected vector error without BM25 results")
	}
}

func TestHybridRetriever_Empty(t *testing.T) {
	hr := NewHybridRetriever(NewVectorIndex(2), NewBM25Index(1.5, 0.75), 0.7, 0.3)
	hits, err := hr.Retrieve("anything", hrr.Vector{1, 0}, 5)
	if err != nil || hits != nil {
		t.Errorf("expected no results, got %v %v", hits, err)
	}
}
