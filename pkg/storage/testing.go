package storage

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"testing"
)

// StoreTestSuite defines a test suite that can be run against any Store implementation.
type StoreTestSuite struct {
	NewStore func(t *testing.T) Store

	// Reopen closes s and opens a new store over the same location. Nil for
	// backends without durability; the durability test is skipped.
	Reopen func(t *testing.T, s Store) Store
}

// RunAllTests runs all store tests against the provided implementation.
func (s *StoreTestSuite) RunAllTests(t *testing.T) {
	t.Run("PutGet", s.TestPutGet)
	t.Run("Overwrite", s.TestOverwrite)
	t.Run("Delete", s.TestDelete)
	t.Run("KeysByPrefix", s.TestKeysByPrefix)
	t.Run("NotFound", s.TestNotFound)
	t.Run("ValueIsolation", s.TestValueIsolation)
	t.Run("ConcurrentAccess", s.TestConcurrentAccess)
	t.Run("Durability", s.TestDurability)
}

// TestPutGet tests a basic write and read.
func (s *StoreTestSuite) TestPutGet(t *testing.T) {
	store := s.NewStore(t)
	defer store.Close()
	ctx := context.Background()

	if err := store.Put(ctx, "unit:abc", []byte(`{"content":"hello"}`)); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	got, err := store.Get(ctx, "unit:abc")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(got) != `{"content":"hello"}` {
		t.Errorf("unexpected value %q", got)
	}
}

// TestOverwrite tests that Put replaces an existing record.
func (s *StoreTestSuite) TestOverwrite(t *testing.T) {
	store := s.NewStore(t)
	defer store.Close()
	ctx := context.Background()

	for _, v := range []string{"v1", "v2", "v3"} {
		if err := store.Put(ctx, "unit:k", []byte(v)); err != nil {
			t.Fatalf("Put %s failed: %v", v, err)
		}
	}
	got, err := store.Get(ctx, "unit:k")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(got) != "v3" {
		t.Errorf("expected v3, got %q", got)
	}
	keys, err := store.Keys(ctx, "unit:")
	if err != nil {
		t.Fatalf("Keys failed: %v", err)
	}
	if len(keys) != 1 {
		t.Errorf("expected 1 key after overwrites, got %d", len(keys))
	}
}

// TestDelete tests record removal.
func (s *StoreTestSuite) TestDelete(t *testing.T) {
	store := s.NewStore(t)
	defer store.Close()
	ctx := context.Background()

	if err := store.Put(ctx, "unit:gone", []byte("x")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := store.Delete(ctx, "unit:gone"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := store.Get(ctx, "unit:gone"); !IsNotFound(err) {
		t.Errorf("expected NotFoundError after delete, got %v", err)
	}
	if err := store.Delete(ctx, "unit:never"); err != nil {
		t.Errorf("deleting a missing key should not fail: %v", err)
	}
}

// TestKeysByPrefix tests prefix listing and ordering.
func (s *StoreTestSuite) TestKeysByPrefix(t *testing.T) {
	store := s.NewStore(t)
	defer store.Close()
	ctx := context.Background()

	for _, k := range []string{"unit:c", "unit:a", "session_state", "unit:b"} {
		if err := store.Put(ctx, k, []byte(k)); err != nil {
			t.Fatalf("Put %s failed: %v", k, err)
		}
	}

	keys, err := store.Keys(ctx, "unit:")
	if err != nil {
		t.Fatalf("Keys failed: %v", err)
	}
	want := []string{"unit:a", "unit:b", "unit:c"}
	if len(keys) != len(want) {
		t.Fatalf("expected %v, got %v", want, keys)
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Errorf("keys[%d] = %s, want %s", i, keys[i], want[i])
		}
	}

	all, err := store.Keys(ctx, "")
	if err != nil {
		t.Fatalf("Keys failed: %v", err)
	}
	if len(all) != 4 {
		t.Errorf("expected 4 keys, got %d", len(all))
	}
}

// TestNotFound tests the error returned for missing keys.
func (s *StoreTestSuite) TestNotFound(t *testing.T) {
	store := s.NewStore(t)
	defer store.Close()

	_, err := store.Get(context.Background(), "unit:missing")
	if err == nil {
		t.Fatal("expected error for missing key")
	}
	if !IsNotFound(err) {
		t.Errorf("expected NotFoundError, got %T: %v", err, err)
	}
}

// TestValueIsolation tests that callers cannot mutate stored records.
func (s *StoreTestSuite) TestValueIsolation(t *testing.T) {
	store := s.NewStore(t)
	defer store.Close()
	ctx := context.Background()

	value := []byte("original")
	if err := store.Put(ctx, "unit:iso", value); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	value[0] = 'X'

	got, err := store.Get(ctx, "unit:iso")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !bytes.Equal(got, []byte("original")) {
		t.Errorf("stored value was mutated: %q", got)
	}
}

// TestConcurrentAccess tests concurrent writers and readers.
func (s *StoreTestSuite) TestConcurrentAccess(t *testing.T) {
	store := s.NewStore(t)
	defer store.Close()
	ctx := context.Background()

	const writers = 8
	const perWriter = 10

	var wg sync.WaitGroup
	errCh := make(chan error, writers*perWriter*2)
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				key := fmt.Sprintf("unit:%d-%d", w, i)
				if err := store.Put(ctx, key, []byte(key)); err != nil {
					errCh <- err
					continue
				}
				got, err := store.Get(ctx, key)
				if err != nil {
					errCh <- err
					continue
				}
				if string(got) != key {
					errCh <- fmt.Errorf("read %q for key %s", got, key)
				}
			}
		}(w)
	}
	wg.Wait()
	close(errCh)

	for err := range errCh {
		t.Errorf("concurrent access error: %v", err)
	}

	keys, err := store.Keys(ctx, "unit:")
	if err != nil {
		t.Fatalf("Keys failed: %v", err)
	}
	if len(keys) != writers*perWriter {
		t.Errorf("expected %d keys, got %d", writers*perWriter, len(keys))
	}
}

// TestDurability tests that records survive closing and reopening the store.
func (s *StoreTestSuite) TestDurability(t *testing.T) {
	if s.Reopen == nil {
		t.Skip("backend is not durable")
	}
	store := s.NewStore(t)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		key := fmt.Sprintf("unit:%02d", i)
		if err := store.Put(ctx, key, []byte(key)); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
	}

	reopened := s.Reopen(t, store)
	defer reopened.Close()

	keys, err := reopened.Keys(ctx, "unit:")
	if err != nil {
		t.Fatalf("Keys failed: %v", err)
	}
	if len(keys) != 10 {
		t.Fatalf("expected 10 keys after reopen, got %d", len(keys))
	}
	for _, key := range keys {
		got, err := reopened.Get(ctx, key)
		if err != nil {
			t.Fatalf("Get %s failed: %v", key, err)
		}
		if string(got) != key {
			t.Errorf("key %s: got %q", key, got)
		}
	}
}
