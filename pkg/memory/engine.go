package memory

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/goclaw/holomem/config"
	"github.com/goclaw/holomem/pkg/hrr"
	"github.com/goclaw/holomem/pkg/storage"
	memstore "github.com/goclaw/holomem/pkg/storage/memory"
	"github.com/goclaw/holomem/pkg/telemetry/tracing"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
)

// Query kinds reported to MetricsRecorder.
const (
	queryRole          = "role"
	queryCompositional = "compositional"
	queryRecall        = "recall"
	queryGlobal        = "global"
)

// Engine is the associative memory engine. It owns a conversational store, a
// persistent store and the pipeline between them. Mutating operations are
// serialized; queries run concurrently with each other.
type Engine struct {
	mu sync.RWMutex

	cfg config.MemoryConfig

	now         func() time.Time
	log         Logger
	metrics     MetricsRecorder
	tracer      trace.Tracer
	consolidate ConsolidationHandler

	store      storage.Store
	ownsStore  bool
	storageCfg *config.StorageConfig

	encoderFactory func(space *hrr.Space) Encoder
	scorer         PatternScorer

	codec        *hrr.Codec
	space        *hrr.Space
	encoder      Encoder
	importance   *ImportanceCalculator
	conv         *ConversationalStore
	persistent   *PersistentStore
	bm25         *BM25Index
	hybrid       *HybridRetriever
	crystallizer *Crystallizer
	tiers        *TierOptimizer
	global       *GlobalMemory

	// vocab holds the symbols seen per role, the cleanup set for role queries.
	vocab map[string]map[string]struct{}

	ticks  int
	closed bool
}

// Open creates an engine and loads every stored unit. Without WithStore or
// WithStorageConfig the engine runs on an ephemeral in-memory store.
func Open(ctx context.Context, cfg config.MemoryConfig, opts ...Option) (*Engine, error) {
	if err := config.ValidateMemory(&cfg); err != nil {
		return nil, &ValidationError{Field: "config", Reason: err.Error(), Cause: err}
	}

	e := &Engine{
		cfg:     cfg,
		now:     time.Now,
		log:     nopLogger{},
		metrics: nopMetrics{},
		vocab:   make(map[string]map[string]struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.tracer == nil {
		e.tracer = tracing.Tracer()
	}

	if e.store == nil {
		if e.storageCfg != nil {
			store, err := NewStore(*e.storageCfg, cfg.Persistent.FastMode)
			if err != nil {
				return nil, err
			}
			e.store = store
		} else {
			e.log.Warn("no record store configured, persistent memory will not survive restart")
			e.store = memstore.NewMemoryStorage()
		}
		e.ownsStore = true
	}

	codec, err := hrr.NewCodec(cfg.Vector.Dimension)
	if err != nil {
		e.closeOwnedStore()
		return nil, &ValidationError{Field: "vector.dimension", Reason: err.Error(), Cause: err}
	}
	e.codec = codec
	e.space = hrr.NewSpace(codec, cfg.Vector.Seed)
	if e.encoderFactory != nil {
		e.encoder = e.encoderFactory(e.space)
	} else {
		e.encoder = NewDefaultEncoder(e.space)
	}

	e.importance = NewImportanceCalculator(cfg.Importance, cfg.Conversation.HalfLife, e.scorer)
	e.conv = NewConversationalStore(cfg.Conversation)
	e.bm25 = NewBM25Index(cfg.Recall.K1, cfg.Recall.B)
	e.persistent = NewPersistentStore(e.store, cfg.Vector.Dimension, cfg.Persistent, cfg.Tiering.FrequencyWindow, e.bm25, e.log)
	e.persistent.Configure(cfg.Persistent, cfg.Tiering.FrequencyWindow, cfg.Tiering.CompactArchive)
	e.hybrid = NewHybridRetriever(e.persistent.Index(), e.bm25, cfg.Recall.VectorWeight, cfg.Recall.BM25Weight)
	e.crystallizer = NewCrystallizer(cfg.Crystallization, cfg.Conversation.HalfLife)
	e.tiers = NewTierOptimizer(cfg.Tiering, cfg.Persistent.HalfLife)
	e.global = NewGlobalMemory(codec, cfg.Persistent.WorkingSetSize, cfg.Persistent.HalfLife)

	loaded, skipped, err := e.persistent.LoadAll(ctx)
	if err != nil {
		e.closeOwnedStore()
		return nil, &PersistenceError{Op: "load", Key: unitKeyPrefix, Cause: err}
	}

	units := e.persistent.Units()
	sort.SliceStable(units, func(i, j int) bool {
		return units[i].LastAccess.Before(units[j].LastAccess)
	})
	for _, u := range units {
		e.observe(u)
		e.global.WorkingSet().Touch(u.ID)
	}

	e.log.Info("memory engine opened",
		"dimension", cfg.Vector.Dimension,
		"loaded", loaded,
		"skipped", skipped,
		"fast_mode", cfg.Persistent.FastMode,
	)
	e.updateGauges()
	return e, nil
}

// IngestExperience stores content in the persistent store and returns its
// content hash. Re-ingesting stored content reinforces the existing unit
// and returns the same id. When the durable write fails the id is returned
// together with a *PersistenceError; the unit stays memory-resident and is
// retried on the next maintenance tick.
func (e *Engine) IngestExperience(ctx context.Context, content string, metadata map[string]string, opts ...AddOption) (string, error) {
	if strings.TrimSpace(content) == "" {
		e.metrics.RecordIngest(ingestRejected)
		return "", &ValidationError{Field: "content", Reason: "must not be empty"}
	}
	o, err := resolveAddOptions(opts)
	if err != nil {
		e.metrics.RecordIngest(ingestRejected)
		return "", err
	}

	ctx, span := e.tracer.Start(ctx, tracing.SpanIngest)
	defer span.End()

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return "", ErrClosed
	}

	id, created, err := e.ingestLocked(ctx, EncodeInput{Content: content, Metadata: metadata}, o, 0)
	tracing.EndIngest(span, id, created, err)
	return id, err
}

func (e *Engine) ingestLocked(ctx context.Context, in EncodeInput, o addOptions, originTurn int) (string, bool, error) {
	capsule, err := e.encoder.Encode(in)
	if err != nil {
		e.metrics.RecordIngest(ingestRejected)
		return "", false, &ValidationError{Field: "capsule", Reason: err.Error(), Cause: err}
	}
	embedding := capsule.Embedding()
	if len(embedding) != e.codec.Dim() {
		e.metrics.RecordIngest(ingestRejected)
		return "", false, &ValidationError{
			Field:  "vector",
			Reason: fmt.Sprintf("dimension %d, expected %d", len(embedding), e.codec.Dim()),
			Cause:  hrr.ErrDimensionMismatch,
		}
	}

	now := e.now()
	importance := o.importance
	if !o.hasImportance {
		nearest, ok := e.persistent.Nearest(embedding)
		importance = e.importance.Score(ImportanceInput{
			Content:     in.Content,
			Timestamp:   now,
			Now:         now,
			Nearest:     nearest,
			HasNeighbor: ok,
			Engagement:  o.engagement,
		})
	}

	id, created, err := e.persistent.Ingest(ctx, IngestInput{
		Content:    in.Content,
		Vector:     embedding,
		Importance: importance,
		Metadata:   in.Metadata,
		Speaker:    in.Speaker,
		OriginTurn: originTurn,
		Now:        now,
	})
	if id == "" {
		e.metrics.RecordIngest(ingestRejected)
		return "", false, err
	}

	e.global.WorkingSet().Touch(id)
	if u, ok := e.persistent.Get(id); ok {
		e.observe(u)
	}

	switch {
	case err != nil:
		e.metrics.RecordIngest(ingestUnpersisted)
		e.log.Warn("persistent write failed, unit kept in memory", "id", id, "error", err)
	case created:
		e.metrics.RecordIngest(ingestCreated)
	default:
		e.metrics.RecordIngest(ingestDeduplicated)
	}
	return id, created, err
}

// observe records the role values of u in the role vocabulary and makes
// sure each symbol is registered in the space.
func (e *Engine) observe(u *PersistentUnit) {
	e.addVocab(RoleContent, e.encoder.Symbols(RoleContent, u.Content))
	if u.Speaker != "" {
		e.addVocab(RoleSpeaker, e.encoder.Symbols(RoleSpeaker, u.Speaker))
	}
	for k, v := range u.Metadata {
		if k == RoleContent || k == RoleSpeaker {
			continue
		}
		e.addVocab(k, e.encoder.Symbols(k, v))
	}
}

func (e *Engine) addVocab(role string, symbols []string) {
	set, ok := e.vocab[role]
	if !ok {
		set = make(map[string]struct{})
		e.vocab[role] = set
	}
	for _, s := range symbols {
		e.space.Symbol(s)
		set[s] = struct{}{}
	}
}

// FreezeFrameLoad replaces the conversational store with units rebuilt from
// prior turns. Importance is scored as if each turn had just been added;
// effective importance then carries the elapsed time, so a restored turn
// matches the one that never left memory. The summary is persisted as the
// session state.
func (e *Engine) FreezeFrameLoad(ctx context.Context, turns []Turn) (FreezeFrameSummary, error) {
	for i, t := range turns {
		if strings.TrimSpace(t.Content) == "" {
			return FreezeFrameSummary{}, &ValidationError{Field: fmt.Sprintf("turns[%d].content", i), Reason: "must not be empty"}
		}
		if t.Timestamp.IsZero() {
			return FreezeFrameSummary{}, &ValidationError{Field: fmt.Sprintf("turns[%d].timestamp", i), Reason: "must be set"}
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return FreezeFrameSummary{}, ErrClosed
	}

	ordered := append([]Turn(nil), turns...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Timestamp.Before(ordered[j].Timestamp)
	})

	now := e.now()
	units := make([]*ConversationalUnit, len(ordered))
	for i, t := range ordered {
		units[i] = &ConversationalUnit{
			ID:             uuid.NewString(),
			Content:        t.Content,
			Timestamp:      t.Timestamp,
			Turn:           i + 1,
			Speaker:        t.Speaker,
			BaseImportance: e.scoreLocked(t.Content, now, now, 0),
			LastAccess:     t.Timestamp,
		}
	}
	e.conv.Replace(units)

	summary := FreezeFrameSummary{
		LoadedUnits: len(units),
		Digest:      digest(ordered),
	}
	err := e.persistent.SaveSessionState(ctx, SessionState{
		Digest:      summary.Digest,
		LoadedUnits: summary.LoadedUnits,
		SavedAt:     now,
	})
	if err != nil {
		e.log.Warn("session state not saved", "error", err)
	}
	e.metrics.SetConversationalUnits(e.conv.Len())
	e.log.Info("freeze frame loaded", "units", summary.LoadedUnits)
	return summary, err
}

// digest summarizes turns in one line.
func digest(turns []Turn) string {
	if len(turns) == 0 {
		return "no prior turns"
	}
	speakers := make([]string, 0)
	seen := make(map[string]struct{})
	for _, t := range turns {
		s := t.Speaker
		if s == "" {
			s = "unknown"
		}
		if _, ok := seen[s]; !ok {
			seen[s] = struct{}{}
			speakers = append(speakers, s)
		}
	}
	first, last := turns[0], turns[len(turns)-1]
	return fmt.Sprintf("%d turns by %s from %s to %s; last: %s",
		len(turns), strings.Join(speakers, ", "),
		first.Timestamp.UTC().Format(time.RFC3339), last.Timestamp.UTC().Format(time.RFC3339),
		truncate(last.Content, 80))
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

// scoreLocked scores content produced at ts, using the closest persistent
// embedding for uniqueness.
func (e *Engine) scoreLocked(content string, ts, now time.Time, engagement float64) float64 {
	in := ImportanceInput{
		Content:    content,
		Timestamp:  ts,
		Now:        now,
		Engagement: engagement,
	}
	if e.persistent.Len() > 0 {
		if c, err := e.encoder.Encode(EncodeInput{Content: content}); err == nil {
			in.Nearest, in.HasNeighbor = e.persistent.Nearest(c.Embedding())
		}
	}
	return e.importance.Score(in)
}

// AddConversationalMemory appends a turn to the conversational store and
// returns its unit id. Without WithImportance the importance is scored.
// Crystallization happens on the next maintenance tick.
func (e *Engine) AddConversationalMemory(ctx context.Context, content, speaker string, opts ...AddOption) (string, error) {
	if strings.TrimSpace(content) == "" {
		return "", &ValidationError{Field: "content", Reason: "must not be empty"}
	}
	o, err := resolveAddOptions(opts)
	if err != nil {
		return "", err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return "", ErrClosed
	}

	now := e.now()
	importance := o.importance
	if !o.hasImportance {
		importance = e.scoreLocked(content, now, now, o.engagement)
	}
	u := &ConversationalUnit{
		ID:             uuid.NewString(),
		Content:        content,
		Timestamp:      now,
		Turn:           e.conv.NextTurn(),
		Speaker:        speaker,
		BaseImportance: importance,
		LastAccess:     now,
	}
	e.conv.Add(u)
	e.metrics.SetConversationalUnits(e.conv.Len())
	return u.ID, nil
}

// AccessConversational records an access to a conversational unit and
// returns its updated state.
func (e *Engine) AccessConversational(ctx context.Context, id string) (ConversationalUnit, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ConversationalUnit{}, ErrClosed
	}
	u, err := e.conv.Access(id, e.now())
	if err != nil {
		return ConversationalUnit{}, err
	}
	return *u, nil
}

// Touch records an access to a persistent unit and moves it to the front
// of the working set.
func (e *Engine) Touch(ctx context.Context, id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}
	err := e.persistent.Touch(ctx, id, e.now())
	if errors.Is(err, ErrNotFound) {
		return err
	}
	e.global.WorkingSet().Touch(id)
	return err
}

// Maintenance runs one explicit tick: crystallization, conversational
// eviction, tier reassignment when due, and a flush of unpersisted units.
// Failures are collected in the report and never returned.
func (e *Engine) Maintenance(ctx context.Context) MaintenanceReport {
	ctx, span := e.tracer.Start(ctx, tracing.SpanMaintenance)
	defer span.End()

	report, candidates := e.maintain(ctx, span)

	if e.consolidate != nil && len(candidates) > 0 {
		e.consolidate(ctx, candidates)
	}
	return report
}

func (e *Engine) maintain(ctx context.Context, span trace.Span) (MaintenanceReport, []ConsolidationCandidate) {
	e.mu.Lock()
	defer e.mu.Unlock()

	var report MaintenanceReport
	if e.closed {
		report.Failures = append(report.Failures, ErrClosed)
		return report, nil
	}

	start := time.Now()
	e.ticks++
	now := e.now()

	// Crystallization.
	cctx, cspan := e.tracer.Start(ctx, tracing.SpanCrystallize)
	promoted, failures := e.crystallizer.Run(cctx, e.conv, now, e.promoteLocked)
	report.Crystallized = len(promoted)
	for _, f := range failures {
		if errors.Is(f, ErrCrystallization) {
			e.metrics.RecordCrystallizationFailure()
			e.log.Warn("crystallization failed, unit stays queued", "error", f)
		}
	}
	report.Failures = append(report.Failures, failures...)
	tracing.EndCrystallize(cspan, report.Crystallized, len(failures))
	e.metrics.RecordCrystallized(report.Crystallized)

	// Eviction.
	decayed, capacity := e.conv.Evict(now, func(u *ConversationalUnit) bool {
		return e.crystallizer.Eligible(u, now)
	})
	report.Evicted = decayed + capacity
	e.metrics.RecordEvicted(evictDecayed, decayed)
	e.metrics.RecordEvicted(evictCapacity, capacity)

	// Tiering.
	var candidates []ConsolidationCandidate
	if e.tiers.Due(e.ticks) {
		_, rspan := e.tracer.Start(ctx, tracing.SpanRetier)
		units := e.persistent.Units()
		changed := e.tiers.Assign(units, now)
		for _, id := range changed {
			e.persistent.MarkDirty(id)
		}
		report.Retiered = len(changed)
		candidates = e.tiers.Candidates(units, e.persistent.Index())
		report.Candidates = candidates
		tracing.EndRetier(rspan, report.Retiered, len(candidates))
		e.metrics.RecordRetiered(report.Retiered)
	}

	// Flush.
	persisted, pending, err := e.persistent.Flush(ctx)
	report.Persisted = persisted
	report.Pending = pending
	if err != nil {
		report.Failures = append(report.Failures, err)
		e.log.Warn("flush incomplete", "pending", pending, "error", err)
	}

	report.Duration = time.Since(start)
	e.metrics.RecordMaintenanceDuration(report.Duration)
	e.updateGauges()

	tracing.RecordTick(span, tracing.TickSummary{
		Tick:         e.ticks,
		Crystallized: report.Crystallized,
		Evicted:      report.Evicted,
		Retiered:     report.Retiered,
		Pending:      report.Pending,
	})
	e.log.Debug("maintenance tick",
		"tick", e.ticks,
		"crystallized", report.Crystallized,
		"evicted", report.Evicted,
		"retiered", report.Retiered,
		"persisted", report.Persisted,
		"pending", report.Pending,
		"failures", len(report.Failures),
	)
	return report, candidates
}

// promoteLocked is the crystallizer's promoter: it ingests a promotion into
// the persistent store with the speaker role bound.
func (e *Engine) promoteLocked(ctx context.Context, p Promotion) (string, error) {
	id, _, err := e.ingestLocked(ctx,
		EncodeInput{Content: p.Content, Speaker: p.Speaker},
		addOptions{importance: p.Importance, hasImportance: true},
		p.OriginTurn,
	)
	return id, err
}

func (e *Engine) updateGauges() {
	e.metrics.SetConversationalUnits(e.conv.Len())
	for tier, n := range e.persistent.TierCounts() {
		e.metrics.SetPersistentUnits(string(tier), n)
	}
	e.metrics.SetUnpersistedUnits(e.persistent.Unpersisted())
}

// WorkingMemoryContext renders the most relevant conversational units for a
// downstream response generator. It never mutates state.
func (e *Engine) WorkingMemoryContext(maxUnits int, includeMetadata bool) string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.conv.Context(e.now(), maxUnits, includeMetadata)
}

// QueryRole unbinds role from every persistent unit and resolves the result
// against the symbols seen for that role. It returns the topK units ranked
// by cleanup similarity.
func (e *Engine) QueryRole(ctx context.Context, role string, topK int) ([]RoleMatch, error) {
	if strings.TrimSpace(role) == "" {
		return nil, &ValidationError{Field: "role", Reason: "must not be empty"}
	}
	_, span := e.startQuery(ctx, queryRole)
	defer span.End()
	start := time.Now()
	defer func() { e.metrics.RecordQueryDuration(queryRole, time.Since(start)) }()

	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return nil, ErrClosed
	}

	set := e.vocab[role]
	if len(set) == 0 || topK <= 0 {
		return nil, nil
	}
	filter := func(symbol string) bool {
		_, ok := set[symbol]
		return ok
	}

	roleVec := e.space.Role(role)
	var out []RoleMatch
	for _, u := range e.persistent.Units() {
		filler, err := e.codec.Unbind(u.Vector, roleVec)
		if err != nil {
			continue
		}
		best := e.space.Nearest(filler, 1, filter)
		if len(best) == 0 {
			continue
		}
		out = append(out, RoleMatch{
			ID:         u.ID,
			Content:    u.Content,
			Symbol:     best[0].Symbol,
			Similarity: best[0].Similarity,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Similarity != out[j].Similarity {
			return out[i].Similarity > out[j].Similarity
		}
		return out[i].ID < out[j].ID
	})
	if topK < len(out) {
		out = out[:topK]
	}
	tracing.RecordResults(span, len(out))
	return out, nil
}

// CompositionalQuery binds each role to the filler of its value, superposes
// the bindings into a cue and ranks persistent units by similarity to it.
func (e *Engine) CompositionalQuery(ctx context.Context, roles map[string]string, topK int) ([]Result, error) {
	if len(roles) == 0 {
		return nil, &ValidationError{Field: "roles", Reason: "must not be empty"}
	}
	for role := range roles {
		if strings.TrimSpace(role) == "" {
			return nil, &ValidationError{Field: "roles", Reason: "role name must not be empty"}
		}
	}
	_, span := e.startQuery(ctx, queryCompositional)
	defer span.End()
	start := time.Now()
	defer func() { e.metrics.RecordQueryDuration(queryCompositional, time.Since(start)) }()

	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return nil, ErrClosed
	}

	cue, err := e.roleCue(roles)
	if err != nil {
		return nil, err
	}
	hits, err := e.persistent.Index().Search(cue, topK, nil)
	if err != nil {
		return nil, &ValidationError{Field: "roles", Reason: err.Error(), Cause: err}
	}
	out := e.results(hits)
	tracing.RecordResults(span, len(out))
	return out, nil
}

func (e *Engine) roleCue(roles map[string]string) (hrr.Vector, error) {
	keys := make([]string, 0, len(roles))
	for k := range roles {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	vectors := make([]hrr.Vector, 0, len(keys))
	weights := make([]float64, 0, len(keys))
	for _, k := range keys {
		bound, err := e.codec.Bind(e.space.Role(k), e.encoder.Filler(k, roles[k]))
		if err != nil {
			return nil, &ValidationError{Field: "roles", Reason: err.Error(), Cause: err}
		}
		vectors = append(vectors, bound)
		weights = append(weights, 1)
	}
	cue, err := e.codec.Superpose(vectors, weights)
	if err != nil {
		return nil, &ValidationError{Field: "roles", Reason: err.Error(), Cause: err}
	}
	return cue, nil
}

// Recall ranks persistent units for free text by fusing BM25 and
// content-vector rankings.
func (e *Engine) Recall(ctx context.Context, text string, topK int) ([]Result, error) {
	if strings.TrimSpace(text) == "" {
		return nil, &ValidationError{Field: "text", Reason: "must not be empty"}
	}
	_, span := e.startQuery(ctx, queryRecall)
	defer span.End()
	start := time.Now()
	defer func() { e.metrics.RecordQueryDuration(queryRecall, time.Since(start)) }()

	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return nil, ErrClosed
	}
	if e.persistent.Len() == 0 {
		return nil, nil
	}

	cue, err := e.codec.Bind(e.space.Role(RoleContent), e.encoder.Filler(RoleContent, text))
	if err != nil {
		return nil, &ValidationError{Field: "text", Reason: err.Error(), Cause: err}
	}
	hits, err := e.hybrid.Retrieve(text, cue, topK)
	if err != nil {
		return nil, err
	}
	out := e.results(hits)
	tracing.RecordResults(span, len(out))
	return out, nil
}

func (e *Engine) results(hits []Hit) []Result {
	out := make([]Result, 0, len(hits))
	for _, h := range hits {
		u, ok := e.persistent.Get(h.ID)
		if !ok {
			continue
		}
		out = append(out, Result{ID: u.ID, Content: u.Content, Score: h.Score})
	}
	return out
}

// GlobalRole unbinds role from the global associative memory state and
// returns the k closest symbols seen for that role.
func (e *Engine) GlobalRole(ctx context.Context, role string, k int) ([]hrr.Match, error) {
	if strings.TrimSpace(role) == "" {
		return nil, &ValidationError{Field: "role", Reason: "must not be empty"}
	}
	_, span := e.startQuery(ctx, queryGlobal)
	defer span.End()
	start := time.Now()
	defer func() { e.metrics.RecordQueryDuration(queryGlobal, time.Since(start)) }()

	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return nil, ErrClosed
	}

	state, ok := e.global.State(e.now(), e.persistent.Lookup)
	if !ok {
		return nil, nil
	}
	filler, err := e.codec.Unbind(state, e.space.Role(role))
	if err != nil {
		return nil, err
	}
	set := e.vocab[role]
	return e.space.Nearest(filler, k, func(symbol string) bool {
		_, ok := set[symbol]
		return ok
	}), nil
}

func (e *Engine) startQuery(ctx context.Context, kind string) (context.Context, trace.Span) {
	return tracing.StartQuery(ctx, e.tracer, kind)
}

// Get returns a copy of the persistent unit with id.
func (e *Engine) Get(id string) (*PersistentUnit, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	u, ok := e.persistent.Get(id)
	if !ok {
		return nil, false
	}
	return clonePersistent(u), true
}

// Conversational returns a copy of the conversational unit with id.
func (e *Engine) Conversational(id string) (*ConversationalUnit, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	u, ok := e.conv.Get(id)
	if !ok {
		return nil, false
	}
	return cloneConversational(u), true
}

// ConversationalUnits returns copies of the conversational units in
// arrival order.
func (e *Engine) ConversationalUnits() []*ConversationalUnit {
	e.mu.RLock()
	defer e.mu.RUnlock()
	units := e.conv.Units()
	out := make([]*ConversationalUnit, len(units))
	for i, u := range units {
		out[i] = cloneConversational(u)
	}
	return out
}

// PersistentUnits returns copies of the persistent units sorted by id.
func (e *Engine) PersistentUnits() []*PersistentUnit {
	e.mu.RLock()
	defer e.mu.RUnlock()
	units := e.persistent.Units()
	out := make([]*PersistentUnit, len(units))
	for i, u := range units {
		out[i] = clonePersistent(u)
	}
	return out
}

// Stats returns a snapshot of engine state.
func (e *Engine) Stats() Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return Stats{
		Conversational: e.conv.Len(),
		Persistent:     e.persistent.Len(),
		Tiers:          e.persistent.TierCounts(),
		Unpersisted:    e.persistent.Unpersisted(),
		WorkingSet:     e.global.WorkingSet().Len(),
		Symbols:        e.space.Symbols(),
		Ticks:          e.ticks,
	}
}

// LastSession returns the state saved by the last FreezeFrameLoad.
func (e *Engine) LastSession(ctx context.Context) (SessionState, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return SessionState{}, ErrClosed
	}
	return e.persistent.SessionState(ctx)
}

// Config returns the active configuration.
func (e *Engine) Config() config.MemoryConfig {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.cfg
}

// Reconfigure applies new tunables to a running engine. The vector
// dimension, seed and half-lives are fixed for the engine's lifetime.
func (e *Engine) Reconfigure(cfg config.MemoryConfig) error {
	if err := config.ValidateMemory(&cfg); err != nil {
		return &ValidationError{Field: "config", Reason: err.Error(), Cause: err}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}

	switch {
	case cfg.Vector != e.cfg.Vector:
		return &ValidationError{Field: "vector", Reason: "dimension and seed cannot change while open"}
	case cfg.Conversation.HalfLife != e.cfg.Conversation.HalfLife:
		return &ValidationError{Field: "conversation.half_life", Reason: "cannot change while open"}
	case cfg.Persistent.HalfLife != e.cfg.Persistent.HalfLife:
		return &ValidationError{Field: "persistent.half_life", Reason: "cannot change while open"}
	}

	e.importance.Configure(cfg.Importance)
	e.conv.Configure(cfg.Conversation)
	e.persistent.Configure(cfg.Persistent, cfg.Tiering.FrequencyWindow, cfg.Tiering.CompactArchive)
	e.crystallizer.Configure(cfg.Crystallization)
	e.tiers.Configure(cfg.Tiering)
	e.bm25.SetParams(cfg.Recall.K1, cfg.Recall.B)
	e.hybrid.SetWeights(cfg.Recall.VectorWeight, cfg.Recall.BM25Weight)
	e.global.WorkingSet().Resize(cfg.Persistent.WorkingSetSize)
	e.cfg = cfg

	e.log.Info("memory engine reconfigured",
		"threshold", cfg.Crystallization.Threshold,
		"compare", cfg.Crystallization.Compare,
		"fast_mode", cfg.Persistent.FastMode,
	)
	return nil
}

// Close flushes unpersisted units and closes the record store when the
// engine opened it. The engine is unusable afterwards.
func (e *Engine) Close(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true

	_, pending, err := e.persistent.Flush(ctx)
	if err != nil {
		e.log.Error("units lost on close", "pending", pending, "error", err)
	}
	if cerr := e.closeOwnedStore(); cerr != nil && err == nil {
		err = cerr
	}
	e.log.Info("memory engine closed", "persistent", e.persistent.Len())
	return err
}

func (e *Engine) closeOwnedStore() error {
	if !e.ownsStore || e.store == nil {
		return nil
	}
	if err := e.store.Close(); err != nil {
		return &PersistenceError{Op: "close", Key: "store", Cause: err}
	}
	return nil
}

func resolveAddOptions(opts []AddOption) (addOptions, error) {
	var o addOptions
	for _, opt := range opts {
		opt(&o)
	}
	if o.hasImportance && (math.IsNaN(o.importance) || math.IsInf(o.importance, 0) || o.importance < 0) {
		return o, &ValidationError{Field: "importance", Reason: "must be a finite non-negative number"}
	}
	if math.IsNaN(o.engagement) || o.engagement < 0 || o.engagement > 1 {
		return o, &ValidationError{Field: "engagement", Reason: "must be in [0,1]"}
	}
	return o, nil
}
