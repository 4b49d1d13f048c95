package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/goclaw/holomem/config"
	"github.com/goclaw/holomem/pkg/hrr"
	"github.com/goclaw/holomem/pkg/storage"
)

// IngestInput is a unit handed to PersistentStore.Ingest.
type IngestInput struct {
	Content    string
	Vector     hrr.Vector
	Importance float64
	Metadata   map[string]string
	Speaker    string
	OriginTurn int
	Now        time.Time
}

// PersistentStore is the durable, content-addressed unit store. All units are
// memory-resident; records are written through to a storage.Store, or
// deferred to Flush in fast mode. It is not safe for concurrent use; the
// Engine serializes access.
type PersistentStore struct {
	store storage.Store
	dim   int
	cfg   config.PersistentConfig
	tau   time.Duration

	compact bool

	units map[string]*PersistentUnit
	dirty map[string]struct{}

	index *VectorIndex
	bm25  *BM25Index

	log Logger
}

// NewPersistentStore creates a store over backend for vectors of dimension dim.
// tau is the access-rate time constant.
func NewPersistentStore(backend storage.Store, dim int, cfg config.PersistentConfig, tau time.Duration, bm25 *BM25Index, log Logger) *PersistentStore {
	if log == nil {
		log = nopLogger{}
	}
	return &PersistentStore{
		store: backend,
		dim:   dim,
		cfg:   cfg,
		tau:   tau,
		units: make(map[string]*PersistentUnit),
		dirty: make(map[string]struct{}),
		index: NewVectorIndex(dim),
		bm25:  bm25,
		log:   log,
	}
}

// Configure replaces the tunables. The half-life is kept.
func (s *PersistentStore) Configure(cfg config.PersistentConfig, tau time.Duration, compact bool) {
	cfg.HalfLife = s.cfg.HalfLife
	s.cfg = cfg
	s.tau = tau
	s.compact = compact
}

// HalfLife returns the decay half-life.
func (s *PersistentStore) HalfLife() time.Duration { return s.cfg.HalfLife }

// Index returns the vector index over unit embeddings.
func (s *PersistentStore) Index() *VectorIndex { return s.index }

// LoadAll reads every unit record from the backend. Records that cannot be
// read or decoded are skipped and counted; only a failure to list the
// records, or a cancelled ctx, is returned.
func (s *PersistentStore) LoadAll(ctx context.Context) (loaded, skipped int, err error) {
	keys, err := s.store.Keys(ctx, unitKeyPrefix)
	if err != nil {
		return 0, 0, fmt.Errorf("memory: list unit records: %w", err)
	}

	for _, key := range keys {
		if !isUnitKey(key) {
			continue
		}
		data, err := s.store.Get(ctx, key)
		if err != nil {
			if storage.IsNotFound(err) {
				continue
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return loaded, skipped, ctxErr
			}
			s.log.Warn("skipping unreadable unit record", "key", key, "error", err)
			skipped++
			continue
		}
		u, err := decodeUnit(key, data, s.dim)
		if err != nil {
			s.log.Warn("skipping corrupted unit record", "key", key, "error", err)
			skipped++
			continue
		}
		s.put(u)
		loaded++
	}
	return loaded, skipped, nil
}

// Ingest stores in under its content hash. When the content is already
// stored the existing unit is reinforced instead: its access statistics are
// updated and its base importance rises to the larger of the two. created
// reports which path was taken. A failed write leaves the unit dirty and
// memory-resident and returns its id with a *PersistenceError.
func (s *PersistentStore) Ingest(ctx context.Context, in IngestInput) (id string, created bool, err error) {
	id = ContentHash(in.Content)

	if u, ok := s.units[id]; ok {
		u.AccessCount++
		if in.Now.After(u.LastAccess) {
			u.LastAccess = in.Now
		}
		u.Access.Observe(in.Now, s.tau)
		if in.Importance > u.BaseImportance {
			u.BaseImportance = in.Importance
		}
		s.markDirty(id)
		if !s.cfg.FastMode {
			if err := s.save(ctx, u); err != nil {
				s.log.Warn("deferred reinforcement write", "id", id, "error", err)
			}
		}
		return id, false, nil
	}

	u := &PersistentUnit{
		ID:             id,
		Content:        in.Content,
		Vector:         in.Vector.Clone(),
		BaseImportance: in.Importance,
		CreatedAt:      in.Now,
		LastAccess:     in.Now,
		AccessCount:    1,
		Tier:           TierWarm,
		Metadata:       cloneMetadata(in.Metadata),
		Speaker:        in.Speaker,
		OriginTurn:     in.OriginTurn,
	}
	u.Access.Observe(in.Now, s.tau)

	if err := s.link(u); err != nil {
		return "", false, err
	}
	s.put(u)
	s.markDirty(id)

	if !s.cfg.FastMode {
		if err := s.save(ctx, u); err != nil {
			return id, true, err
		}
	}
	return id, true, nil
}

// link records bidirectional relationships between u and its nearest
// stored neighbours. Neighbours whose relationships change become dirty.
func (s *PersistentStore) link(u *PersistentUnit) error {
	if s.cfg.RelationshipFanout <= 0 || s.index.Len() == 0 {
		return nil
	}
	hits, err := s.index.Search(u.Vector, s.cfg.RelationshipFanout, nil)
	if err != nil {
		return &ValidationError{Field: "vector", Reason: err.Error(), Cause: err}
	}
	for _, h := range hits {
		if h.Score < s.cfg.RelationshipMinAffinity {
			continue
		}
		affinity := clamp01(h.Score)
		if u.Relationships == nil {
			u.Relationships = make(map[string]float64)
		}
		u.Relationships[h.ID] = affinity

		other := s.units[h.ID]
		if other.Relationships == nil {
			other.Relationships = make(map[string]float64)
		}
		other.Relationships[u.ID] = affinity
		s.markDirty(other.ID)
	}
	return nil
}

// Touch records an access to the unit with id.
func (s *PersistentStore) Touch(ctx context.Context, id string, now time.Time) error {
	u, ok := s.units[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	u.AccessCount++
	if now.After(u.LastAccess) {
		u.LastAccess = now
	}
	u.Access.Observe(now, s.tau)
	s.markDirty(id)
	if s.cfg.FastMode {
		return nil
	}
	return s.save(ctx, u)
}

// Flush writes every dirty unit in id order. It returns the number written
// and the number still pending, with the first write error.
func (s *PersistentStore) Flush(ctx context.Context) (persisted, pending int, err error) {
	ids := make([]string, 0, len(s.dirty))
	for id := range s.dirty {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		u, ok := s.units[id]
		if !ok {
			delete(s.dirty, id)
			continue
		}
		if serr := s.save(ctx, u); serr != nil {
			if err == nil {
				err = serr
			}
			continue
		}
		persisted++
	}
	return persisted, len(s.dirty), err
}

// save writes u and clears its dirty mark on success.
func (s *PersistentStore) save(ctx context.Context, u *PersistentUnit) error {
	key := unitKey(u.ID)
	data, err := encodeUnit(u, s.compact && u.Tier == TierArchive)
	if err != nil {
		return &PersistenceError{Op: "encode", Key: key, Cause: err}
	}
	if err := s.store.Put(ctx, key, data); err != nil {
		return &PersistenceError{Op: "put", Key: key, Cause: err}
	}
	delete(s.dirty, u.ID)
	return nil
}

// SaveSessionState writes the session summary.
func (s *PersistentStore) SaveSessionState(ctx context.Context, state SessionState) error {
	data, err := encodeSessionState(state)
	if err != nil {
		return &PersistenceError{Op: "encode", Key: sessionStateKey, Cause: err}
	}
	if err := s.store.Put(ctx, sessionStateKey, data); err != nil {
		return &PersistenceError{Op: "put", Key: sessionStateKey, Cause: err}
	}
	return nil
}

// SessionState reads the session summary.
func (s *PersistentStore) SessionState(ctx context.Context) (SessionState, error) {
	data, err := s.store.Get(ctx, sessionStateKey)
	if err != nil {
		if storage.IsNotFound(err) {
			return SessionState{}, fmt.Errorf("%w: %s", ErrNotFound, sessionStateKey)
		}
		return SessionState{}, &PersistenceError{Op: "get", Key: sessionStateKey, Cause: err}
	}
	return decodeSessionState(data)
}

func (s *PersistentStore) put(u *PersistentUnit) {
	s.units[u.ID] = u
	// Vectors are validated on ingest and decode.
	_ = s.index.Add(u.ID, u.Vector)
	if s.bm25 != nil {
		s.bm25.IndexDocument(u.ID, u.Content)
	}
}

func (s *PersistentStore) markDirty(id string) {
	s.dirty[id] = struct{}{}
}

// MarkDirty schedules the unit with id for the next Flush.
func (s *PersistentStore) MarkDirty(id string) {
	if _, ok := s.units[id]; ok {
		s.markDirty(id)
	}
}

// Get returns the live unit with id. Callers must not retain it past the
// engine lock.
func (s *PersistentStore) Get(id string) (*PersistentUnit, bool) {
	u, ok := s.units[id]
	return u, ok
}

// Lookup is Get without the found flag.
func (s *PersistentStore) Lookup(id string) *PersistentUnit {
	return s.units[id]
}

// Units returns the live units sorted by id.
func (s *PersistentStore) Units() []*PersistentUnit {
	out := make([]*PersistentUnit, 0, len(s.units))
	for _, u := range s.units {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Nearest returns the best similarity between v and any stored embedding.
func (s *PersistentStore) Nearest(v hrr.Vector) (float64, bool) {
	hits, err := s.index.Search(v, 1, nil)
	if err != nil || len(hits) == 0 {
		return 0, false
	}
	return hits[0].Score, true
}

// Len returns the number of stored units.
func (s *PersistentStore) Len() int { return len(s.units) }

// Unpersisted returns the number of units awaiting a durable write.
func (s *PersistentStore) Unpersisted() int { return len(s.dirty) }

// TierCounts returns the number of units per tier.
func (s *PersistentStore) TierCounts() map[Tier]int {
	counts := make(map[Tier]int, len(Tiers))
	for _, t := range Tiers {
		counts[t] = 0
	}
	for _, u := range s.units {
		counts[u.Tier]++
	}
	return counts
}
