package memory

import (
	"errors"
	"math"
	"testing"

	"github.com/goclaw/holomem/pkg/hrr"
)

func TestVectorIndex_AddAndSearch(t *testing.T) {
	idx := NewVectorIndex(3)

	if err := idx.Add("a", hrr.Vector{1, 0, 0}); err != nil {
		t.Fatal(err)
	}
	if err := idx.Add("b", hrr.Vector{0, 1, 0}); err != nil {
		t.Fatal(err)
	}
	if err := idx.Add("c", hrr.Vector{0.9, 0.1, 0}); err != nil {
		t.Fatal(err)
	}

	hits, err := idx.Search(hrr.Vector{1, 0, 0}, 2, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 2 {
		t.Fatalf("expected 2 results, got %d", len(hits))
	}
	if hits[0].ID != "a" || hits[1].ID != "c" {
		t.Errorf("expected [a c], got %v", hits)
	}
	if math.Abs(hits[0].Score-1.0) > 0.001 {
		t.Errorf("expected score ~1.0, got %f", hits[0].Score)
	}
}

func TestVectorIndex_DimensionMismatch(t *testing.T) {
	idx := NewVectorIndex(3)
	err := idx.Add("a", hrr.Vector{1, 0})
	if !errors.Is(err, hrr.ErrDimensionMismatch) {
		t.Fatalf("expected dimension mismatch error, got %v", err)
	}

	_, err = idx.Search(hrr.Vector{1}, 1, nil)
	if !errors.Is(err, hrr.ErrDimensionMismatch) {
		t.Fatalf("expected dimension mismatch error on search, got %v", err)
	}
}

func TestVectorIndex_Exclude(t *testing.T) {
	idx := NewVectorIndex(2)
	idx.Add("a", hrr.Vector{1, 0})
	idx.Add("b", hrr.Vector{0.9, 0.1})

	hits, err := idx.Search(hrr.Vector{1, 0}, 10, func(id string) bool { return id == "a" })
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 || hits[0].ID != "b" {
		t.Errorf("expected only 'b', got %v", hits)
	}
}

func TestVectorIndex_TiesOrderedByID(t *testing.T) {
	idx := NewVectorIndex(2)
	idx.Add("z", hrr.Vector{1, 0})
	idx.Add("m", hrr.Vector{1, 0})
	idx.Add("a", hrr.Vector{1, 0})

	hits, _ := idx.Search(hrr.Vector{1, 0}, 3, nil)
	if hits[0].ID != "a" || hits[1].ID != "m" || hits[2].ID != "z" {
		t.Errorf("expected ties ordered by id, got %v", hits)
	}
}

func TestVectorIndex_Similarity(t *testing.T) {
	idx := NewVectorIndex(2)
	idx.Add("a", hrr.Vector{1, 0})
	idx.Add("b", hrr.Vector{0, 1})

	if sim, ok := idx.Similarity("a", "b"); !ok || math.Abs(sim) > 1e-12 {
		t.Errorf("expected orthogonal vectors, got %v %v", sim, ok)
	}
	if _, ok := idx.Similarity("a", "missing"); ok {
		t.Error("expected no similarity for an unknown id")
	}
}

func TestVectorIndex_CopiesInput(t *testing.T) {
	idx := NewVectorIndex(2)
	v := hrr.Vector{1, 0}
	idx.Add("a", v)
	v[0] = 0

	idx.Add("b", hrr.Vector{1, 0})
	if sim, _ := idx.Similarity("a", "b"); math.Abs(sim-1) > 1e-12 {
		t.Error("index should not alias caller vectors")
	}
}
