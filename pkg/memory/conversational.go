package memory

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/goclaw/holomem/config"
)

// ConversationalStore holds turn-scoped units in arrival order. It is not
// safe for concurrent use; the Engine serializes access.
type ConversationalStore struct {
	cfg   config.ConversationConfig
	units []*ConversationalUnit
	byID  map[string]*ConversationalUnit
	turn  int
}

// NewConversationalStore creates an empty store.
func NewConversationalStore(cfg config.ConversationConfig) *ConversationalStore {
	return &ConversationalStore{
		cfg:  cfg,
		byID: make(map[string]*ConversationalUnit),
	}
}

// Configure replaces the tunables. The half-life is kept.
func (s *ConversationalStore) Configure(cfg config.ConversationConfig) {
	cfg.HalfLife = s.cfg.HalfLife
	s.cfg = cfg
}

// HalfLife returns the decay half-life.
func (s *ConversationalStore) HalfLife() time.Duration { return s.cfg.HalfLife }

// NextTurn returns the next turn number.
func (s *ConversationalStore) NextTurn() int {
	s.turn++
	return s.turn
}

// Add appends u.
func (s *ConversationalStore) Add(u *ConversationalUnit) {
	if u.Turn > s.turn {
		s.turn = u.Turn
	}
	s.units = append(s.units, u)
	s.byID[u.ID] = u
}

// Replace swaps the whole store content, as on a freeze-frame load.
func (s *ConversationalStore) Replace(units []*ConversationalUnit) {
	s.units = nil
	s.byID = make(map[string]*ConversationalUnit, len(units))
	s.turn = 0
	for _, u := range units {
		s.Add(u)
	}
}

// Get returns the unit with id.
func (s *ConversationalStore) Get(id string) (*ConversationalUnit, bool) {
	u, ok := s.byID[id]
	return u, ok
}

// Access records an access: the count increments and base importance
// grows by the access boost, capped at the maximum importance.
func (s *ConversationalStore) Access(id string, now time.Time) (*ConversationalUnit, error) {
	u, ok := s.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	u.AccessCount++
	u.LastAccess = now
	boosted := u.BaseImportance + s.cfg.AccessBoost
	if boosted > s.cfg.MaxImportance {
		boosted = s.cfg.MaxImportance
	}
	if boosted > u.BaseImportance {
		u.BaseImportance = boosted
	}
	return u, nil
}

// Remove deletes the unit with id.
func (s *ConversationalStore) Remove(id string) bool {
	if _, ok := s.byID[id]; !ok {
		return false
	}
	delete(s.byID, id)
	for i, u := range s.units {
		if u.ID == id {
			s.units = append(s.units[:i], s.units[i+1:]...)
			break
		}
	}
	return true
}

// Units returns the units in arrival order. The slice is a copy; the units
// are not.
func (s *ConversationalStore) Units() []*ConversationalUnit {
	return append([]*ConversationalUnit(nil), s.units...)
}

// Len returns the number of units.
func (s *ConversationalStore) Len() int { return len(s.units) }

// Evict removes units whose effective importance fell below the negligible
// floor, then the oldest units beyond the size cap. Units for which keep
// returns true are never evicted. It returns the counts per reason.
func (s *ConversationalStore) Evict(now time.Time, keep func(*ConversationalUnit) bool) (decayed, capacity int) {
	survivors := s.units[:0]
	for _, u := range s.units {
		if !keep(u) && u.EffectiveImportance(now, s.cfg.HalfLife) < s.cfg.NegligibleFloor {
			delete(s.byID, u.ID)
			decayed++
			continue
		}
		survivors = append(survivors, u)
	}
	s.units = survivors

	excess := len(s.units) - s.cfg.MaxUnits
	if excess <= 0 {
		return decayed, 0
	}
	// Units are in arrival order, so the first evictable ones are the oldest.
	survivors = s.units[:0]
	for _, u := range s.units {
		if excess > 0 && !keep(u) {
			delete(s.byID, u.ID)
			excess--
			capacity++
			continue
		}
		survivors = append(survivors, u)
	}
	s.units = survivors
	return decayed, capacity
}

// Context returns up to maxUnits of the most relevant units, ranked by
// effective importance with newer units first on ties, and rendered in
// chronological order. It never mutates the store.
func (s *ConversationalStore) Context(now time.Time, maxUnits int, includeMetadata bool) string {
	if maxUnits <= 0 || len(s.units) == 0 {
		return ""
	}

	ranked := append([]*ConversationalUnit(nil), s.units...)
	sort.SliceStable(ranked, func(i, j int) bool {
		ei := ranked[i].EffectiveImportance(now, s.cfg.HalfLife)
		ej := ranked[j].EffectiveImportance(now, s.cfg.HalfLife)
		if ei != ej {
			return ei > ej
		}
		return ranked[i].Timestamp.After(ranked[j].Timestamp)
	})
	if maxUnits < len(ranked) {
		ranked = ranked[:maxUnits]
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if !ranked[i].Timestamp.Equal(ranked[j].Timestamp) {
			return ranked[i].Timestamp.Before(ranked[j].Timestamp)
		}
		return ranked[i].Turn < ranked[j].Turn
	})

	lines := make([]string, len(ranked))
	for i, u := range ranked {
		if includeMetadata {
			lines[i] = fmt.Sprintf("[turn=%d speaker=%s importance=%.2f age=%s] %s",
				u.Turn, u.Speaker, u.EffectiveImportance(now, s.cfg.HalfLife),
				u.Age(now).Truncate(time.Second), u.Content)
		} else {
			lines[i] = fmt.Sprintf("%s: %s", u.Speaker, u.Content)
		}
	}
	return strings.Join(lines, "\n")
}
