package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/goclaw/holomem/config"
)

// Importance compared against the crystallization threshold.
const (
	CompareEffective = "effective"
	CompareBase      = "base"
)

// Promoter hands a promotion to the persistent store and returns the
// persistent id.
type Promoter func(ctx context.Context, p Promotion) (string, error)

// Crystallizer promotes conversational units whose importance exceeds the
// threshold into the persistent store.
type Crystallizer struct {
	threshold float64
	compare   string
	halfLife  time.Duration
}

// NewCrystallizer creates a crystallizer for units decaying with halfLife.
func NewCrystallizer(cfg config.CrystallizationConfig, halfLife time.Duration) *Crystallizer {
	c := &Crystallizer{halfLife: halfLife}
	c.Configure(cfg)
	return c
}

// Configure replaces the threshold and compare mode.
func (c *Crystallizer) Configure(cfg config.CrystallizationConfig) {
	c.threshold = cfg.Threshold
	c.compare = cfg.Compare
	if c.compare != CompareBase {
		c.compare = CompareEffective
	}
}

// Value returns the importance of u compared against the threshold.
func (c *Crystallizer) Value(u *ConversationalUnit, now time.Time) float64 {
	if c.compare == CompareBase {
		return u.BaseImportance
	}
	return u.EffectiveImportance(now, c.halfLife)
}

// Eligible reports whether u crystallizes at now.
func (c *Crystallizer) Eligible(u *ConversationalUnit, now time.Time) bool {
	return c.Value(u, now) > c.threshold
}

// Run promotes every eligible unit in conv, oldest first. A promoted unit is
// removed from conv. A unit whose promotion fails stays queued and its
// failure is returned as a *CrystallizationError. A persistence failure
// still counts as promoted: the persistent store holds the unit and retries
// the write on Flush.
func (c *Crystallizer) Run(ctx context.Context, conv *ConversationalStore, now time.Time, promote Promoter) (promoted []string, failures []error) {
	queue := make([]*ConversationalUnit, 0)
	for _, u := range conv.Units() {
		if c.Eligible(u, now) {
			queue = append(queue, u)
		}
	}
	sort.SliceStable(queue, func(i, j int) bool {
		return queue[i].Timestamp.Before(queue[j].Timestamp)
	})

	for _, u := range queue {
		if err := ctx.Err(); err != nil {
			failures = append(failures, &CrystallizationError{UnitID: u.ID, Cause: err})
			break
		}
		p := Promotion{
			UnitID:     u.ID,
			Content:    u.Content,
			Importance: c.Value(u, now),
			Timestamp:  u.Timestamp,
			Speaker:    u.Speaker,
			OriginTurn: u.Turn,
		}
		id, err := safePromote(ctx, promote, p)
		if err != nil && !errors.Is(err, ErrPersistence) {
			failures = append(failures, &CrystallizationError{UnitID: u.ID, Cause: err})
			continue
		}
		if err != nil {
			failures = append(failures, err)
		}
		conv.Remove(u.ID)
		promoted = append(promoted, id)
	}
	return promoted, failures
}

func safePromote(ctx context.Context, promote Promoter, p Promotion) (id string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("promoter panic: %v", r)
		}
	}()
	return promote(ctx, p)
}
