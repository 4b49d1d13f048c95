package memory

import (
	"reflect"
	"testing"
)

func TestBM25Index_IndexAndSearch(t *testing.T) {
	idx := NewBM25Index(1.5, 0.75)

	idx.IndexDocument("d1", "the quick brown fox jumps over the lazy dog")
	idx.IndexDocument("d2", "machine learning and artificial intelligence")
	idx.IndexDocument("d3", "the fox is quick and brown")

	ids, scores := idx.Search("quick fox", 10)
	if len(ids) != 2 {
		t.Fatalf("expected 2 results, got %v", ids)
	}
	for i, id := range ids {
		if id == "d2" {
			t.Errorf("d2 should not match 'quick fox', score=%f", scores[i])
		}
	}
	// The shorter document wins on length normalization.
	if ids[0] != "d3" {
		t.Errorf("expected d3 first, got %v", ids)
	}
}

func TestBM25Index_TopK(t *testing.T) {
	idx := NewBM25Index(1.5, 0.75)
	idx.IndexDocument("d1", "memory memory memory")
	idx.IndexDocument("d2", "memory palace")
	idx.IndexDocument("d3", "memory")

	ids, scores := idx.Search("memory", 2)
	if len(ids) != 2 || len(scores) != 2 {
		t.Fatalf("expected 2 results, got %v", ids)
	}
	if scores[0] < scores[1] {
		t.Errorf("expected descending scores, got %v", scores)
	}
}

func TestBM25Index_UpdateDocument(t *testing.T) {
	idx := NewBM25Index(1.5, 0.75)

	idx.IndexDocument("d1", "hello world")
	idx.IndexDocument("d1", "goodbye universe")

	ids, _ := idx.Search("hello", 10)
	if len(ids) != 0 {
		t.Errorf("expected no results for old content, got %v", ids)
	}

	ids, _ = idx.Search("goodbye", 10)
	if len(ids) != 1 || ids[0] != "d1" {
		t.Errorf("expected d1 for updated content, got %v", ids)
	}
	if idx.Len() != 1 {
		t.Errorf("expected 1 doc, got %d", idx.Len())
	}
}

func TestBM25Index_EmptyQuery(t *testing.T) {
	idx := NewBM25Index(1.5, 0.75)
	idx.IndexDocument("d1", "hello world")

	ids, _ := idx.Search("", 10)
	if len(ids) != 0 {
		t.Errorf("expected no results for empty query, got %v", ids)
	}

	ids, _ = idx.Search("the and of", 10)
	if len(ids) != 0 {
		t.Errorf("expected no results for a stop-word query, got %v", ids)
	}
}

func TestBM25Index_EmptyCorpus(t *testing.T) {
	idx := NewBM25Index(1.5, 0.75)
	ids, _ := idx.Search("hello", 10)
	if len(ids) != 0 {
		t.Errorf("expected no results for empty corpus, got %v", ids)
	}
}

func TestTokenize(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"Hello, World!", []string{"hello", "world"}},
		{"This is a very important question", []string{"important", "question"}},
		{"记忆 test", []string{"记", "忆", "test"}},
		{"   ", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := tokenize(tt.in)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("tokenize(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestWords_KeepsStopWords(t *testing.T) {
	got := words("This is it")
	want := []string{"this", "is", "it"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("words() = %v, want %v", got, want)
	}
}
