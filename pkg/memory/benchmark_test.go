package memory

import (
	"context"
	"fmt"
	"testing"

	"github.com/goclaw/holomem/config"
	"github.com/goclaw/holomem/pkg/logger"
	memstore "github.com/goclaw/holomem/pkg/storage/memory"
)

// setupBenchmarkEngine opens an engine seeded with n persistent units.
func setupBenchmarkEngine(b *testing.B, n int) (*Engine, func()) {
	log := logger.New(&logger.Config{
		Level:  logger.ErrorLevel, // Reduce logging noise in benchmarks
		Format: "json",
		Output: "stdout",
	})

	ctx := context.Background()
	cfg := config.DefaultMemoryConfig()
	cfg.Persistent.FastMode = true
	e, err := Open(ctx, cfg, WithStore(memstore.NewMemoryStorage()), WithLogger(log))
	if err != nil {
		b.Fatalf("Failed to open engine: %v", err)
	}
	for i := 0; i < n; i++ {
		content := fmt.Sprintf("observation %d about topic %d", i, i%17)
		if _, err := e.IngestExperience(ctx, content, map[string]string{"where": fmt.Sprintf("room-%d", i%5)}); err != nil {
			b.Fatalf("Failed to seed engine: %v", err)
		}
	}
	return e, func() { e.Close(ctx) }
}

// BenchmarkIngestExperience benchmarks encoding, linking and indexing a new unit.
func BenchmarkIngestExperience(b *testing.B) {
	e, cleanup := setupBenchmarkEngine(b, 500)
	defer cleanup()
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := e.IngestExperience(ctx, fmt.Sprintf("benchmark entry %d", i), nil); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkRecall benchmarks hybrid recall over a seeded store.
func BenchmarkRecall(b *testing.B) {
	e, cleanup := setupBenchmarkEngine(b, 500)
	defer cleanup()
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := e.Recall(ctx, "observation about topic 3", 10); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkCompositionalQuery benchmarks a two-role cue.
func BenchmarkCompositionalQuery(b *testing.B) {
	e, cleanup := setupBenchmarkEngine(b, 500)
	defer cleanup()
	ctx := context.Background()
	roles := map[string]string{"where": "room-2", RoleContent: "topic"}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := e.CompositionalQuery(ctx, roles, 10); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkMaintenance benchmarks a full tick including retiering.
func BenchmarkMaintenance(b *testing.B) {
	e, cleanup := setupBenchmarkEngine(b, 500)
	defer cleanup()
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		e.Maintenance(ctx)
	}
}
