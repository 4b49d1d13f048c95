package memory

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/goclaw/holomem/pkg/hrr"
)

// Tier is a coarse retrieval-priority bucket for persistent units.
type Tier string

const (
	TierHot     Tier = "hot"
	TierWarm    Tier = "warm"
	TierCold    Tier = "cold"
	TierArchive Tier = "archive"
)

// Tiers lists every tier from hottest to coldest.
var Tiers = []Tier{TierHot, TierWarm, TierCold, TierArchive}

// rank orders tiers from hottest (0) to coldest (3).
func (t Tier) rank() int {
	switch t {
	case TierHot:
		return 0
	case TierWarm:
		return 1
	case TierCold:
		return 2
	default:
		return 3
	}
}

// Valid reports whether t is a known tier.
func (t Tier) Valid() bool {
	switch t {
	case TierHot, TierWarm, TierCold, TierArchive:
		return true
	}
	return false
}

// ConversationalUnit is a turn-scoped memory with a short decay half-life.
type ConversationalUnit struct {
	// ID is the unit identifier (a UUID).
	ID string `json:"id"`

	// Content is the raw turn text.
	Content string `json:"content"`

	// Timestamp is when the turn happened. Decay is measured from it.
	Timestamp time.Time `json:"timestamp"`

	// Turn is the turn number within the session.
	Turn int `json:"turn"`

	// Speaker identifies who produced the turn.
	Speaker string `json:"speaker"`

	// BaseImportance is the undecayed importance.
	BaseImportance float64 `json:"base_importance"`

	// AccessCount is the number of explicit accesses.
	AccessCount int `json:"access_count"`

	// LastAccess is the time of the last access, or Timestamp.
	LastAccess time.Time `json:"last_access"`
}

// Age returns the unit age at now.
func (u *ConversationalUnit) Age(now time.Time) time.Duration {
	return now.Sub(u.Timestamp)
}

// DecayFactor returns the decay multiplier at now.
func (u *ConversationalUnit) DecayFactor(now time.Time, halfLife time.Duration) float64 {
	return DecayFactor(u.Age(now), halfLife)
}

// EffectiveImportance returns BaseImportance scaled by the decay factor.
func (u *ConversationalUnit) EffectiveImportance(now time.Time, halfLife time.Duration) float64 {
	return u.BaseImportance * u.DecayFactor(now, halfLife)
}

// PersistentUnit is a durable, content-addressed memory.
type PersistentUnit struct {
	// ID is the content hash and primary key.
	ID string `json:"id"`

	// Content is the stored text.
	Content string `json:"content"`

	// Vector is the capsule embedding.
	Vector hrr.Vector `json:"vector"`

	// BaseImportance is the undecayed importance.
	BaseImportance float64 `json:"base_importance"`

	CreatedAt   time.Time `json:"created_at"`
	LastAccess  time.Time `json:"last_access"`
	AccessCount int       `json:"access_count"`

	// Access is the exponentially weighted access-rate estimate.
	Access AccessRate `json:"access"`

	// Tier is the assigned storage tier.
	Tier Tier `json:"tier"`

	// Relationships maps related unit ids to affinity scores.
	Relationships map[string]float64 `json:"relationships,omitempty"`

	// Metadata holds caller-supplied role values.
	Metadata map[string]string `json:"metadata,omitempty"`

	// Speaker and OriginTurn are set for units promoted from conversation.
	Speaker    string `json:"speaker,omitempty"`
	OriginTurn int    `json:"origin_turn,omitempty"`
}

// DecayFactor returns the decay multiplier at now, measured from the last access.
func (u *PersistentUnit) DecayFactor(now time.Time, halfLife time.Duration) float64 {
	return DecayFactor(now.Sub(u.LastAccess), halfLife)
}

// EffectiveImportance returns BaseImportance scaled by the decay factor.
func (u *PersistentUnit) EffectiveImportance(now time.Time, halfLife time.Duration) float64 {
	return u.BaseImportance * u.DecayFactor(now, halfLife)
}

// Centrality returns the sum of relationship affinities.
func (u *PersistentUnit) Centrality() float64 {
	var sum float64
	for _, a := range u.Relationships {
		sum += a
	}
	return sum
}

// Turn is a prior conversational turn supplied to FreezeFrameLoad.
type Turn struct {
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	Speaker   string    `json:"speaker"`
}

// Promotion is the record handed from the conversational store to the
// persistent store when a unit crystallizes.
type Promotion struct {
	UnitID     string
	Content    string
	Importance float64
	Timestamp  time.Time
	Speaker    string
	OriginTurn int
}

// Result is a ranked query hit.
type Result struct {
	ID      string  `json:"id"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
}

// RoleMatch is a QueryRole hit: the symbol best matching the role's filler
// in one unit, with its cleanup similarity.
type RoleMatch struct {
	ID         string  `json:"id"`
	Content    string  `json:"content"`
	Symbol     string  `json:"symbol"`
	Similarity float64 `json:"similarity"`
}

// ConsolidationCandidate is a pair of persistent units similar enough to merge.
type ConsolidationCandidate struct {
	A          string  `json:"a"`
	B          string  `json:"b"`
	Similarity float64 `json:"similarity"`
	Affinity   float64 `json:"affinity"`
}

// FreezeFrameSummary describes a restored conversational context.
type FreezeFrameSummary struct {
	LoadedUnits int    `json:"loaded_units"`
	Digest      string `json:"digest"`
}

// SessionState is the persisted summary of the last freeze-frame load.
type SessionState struct {
	Digest      string    `json:"digest"`
	LoadedUnits int       `json:"loaded_units"`
	SavedAt     time.Time `json:"saved_at"`
}

// MaintenanceReport summarizes one maintenance tick.
type MaintenanceReport struct {
	Crystallized int `json:"crystallized"`
	Evicted      int `json:"evicted"`
	Retiered     int `json:"retiered"`

	// Persisted is the number of records written; Pending is the number
	// still awaiting a durable write.
	Persisted int `json:"persisted"`
	Pending   int `json:"pending"`

	// Candidates are the consolidation candidates flagged this tick.
	Candidates []ConsolidationCandidate `json:"candidates,omitempty"`

	// Failures holds the crystallization and persistence errors absorbed
	// during the tick.
	Failures []error `json:"-"`

	Duration time.Duration `json:"duration"`
}

// Stats describes engine state.
type Stats struct {
	Conversational int          `json:"conversational"`
	Persistent     int          `json:"persistent"`
	Tiers          map[Tier]int `json:"tiers"`
	Unpersisted    int          `json:"unpersisted"`
	WorkingSet     int          `json:"working_set"`
	Symbols        int          `json:"symbols"`
	Ticks          int          `json:"ticks"`
}

// ContentHash returns the content address of content.
func ContentHash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}
