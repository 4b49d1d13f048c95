package memory

import (
	"fmt"

	"github.com/goclaw/holomem/config"
	"github.com/goclaw/holomem/pkg/storage"
	badgerstore "github.com/goclaw/holomem/pkg/storage/badger"
	filestore "github.com/goclaw/holomem/pkg/storage/file"
	memstore "github.com/goclaw/holomem/pkg/storage/memory"
)

// NewStore creates the record store selected by cfg. In fast mode durable
// writes are batched at maintenance, so per-write syncing is turned off.
func NewStore(cfg config.StorageConfig, fastMode bool) (storage.Store, error) {
	switch cfg.Type {
	case "badger":
		return badgerstore.NewBadgerStorage(&badgerstore.Config{
			Path:              cfg.Badger.Path,
			SyncWrites:        cfg.Badger.SyncWrites && !fastMode,
			ValueLogFileSize:  cfg.Badger.ValueLogFileSize,
			NumVersionsToKeep: cfg.Badger.NumVersionsToKeep,
		})
	case "file":
		return filestore.NewFileStorage(&filestore.Config{
			Dir:  cfg.File.Dir,
			Sync: cfg.File.Sync && !fastMode,
		})
	case "memory", "":
		return memstore.NewMemoryStorage(), nil
	default:
		return nil, &ValidationError{Field: "storage.type", Reason: fmt.Sprintf("unknown backend %q", cfg.Type)}
	}
}
