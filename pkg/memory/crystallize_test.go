package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/goclaw/holomem/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCrystallizer(compare string) *Crystallizer {
	cfg := config.DefaultMemoryConfig()
	cfg.Crystallization.Compare = compare
	return NewCrystallizer(cfg.Crystallization, cfg.Conversation.HalfLife)
}

type recordingPromoter struct {
	promotions []Promotion
	fail       map[string]error
}

func (r *recordingPromoter) promote(ctx context.Context, p Promotion) (string, error) {
	if err := r.fail[p.Content]; err != nil {
		return "", err
	}
	r.promotions = append(r.promotions, p)
	return ContentHash(p.Content), nil
}

func TestCrystallizer_PromotesEligibleOldestFirst(t *testing.T) {
	s := newTestConversation(10)
	addTurn(s, "later", "user", 4, testEpoch.Add(time.Second))
	addTurn(s, "Hello", "user", 1, testEpoch.Add(2*time.Second))
	addTurn(s, "earlier", "agent", 3.5, testEpoch)

	c := newTestCrystallizer(CompareEffective)
	p := &recordingPromoter{}
	promoted, failures := c.Run(context.Background(), s, testEpoch.Add(2*time.Second), p.promote)

	assert.Empty(t, failures)
	assert.Equal(t, []string{ContentHash("earlier"), ContentHash("later")}, promoted)
	require.Len(t, p.promotions, 2)
	assert.Equal(t, "earlier", p.promotions[0].Content)
	assert.Equal(t, "agent", p.promotions[0].Speaker)
	assert.Equal(t, 3, p.promotions[0].OriginTurn)
	assert.Equal(t, testEpoch, p.promotions[0].Timestamp)

	require.Equal(t, 1, s.Len())
	_, ok := s.Get("Hello")
	assert.True(t, ok)
}

func TestCrystallizer_RunsAtMostOnce(t *testing.T) {
	s := newTestConversation(10)
	addTurn(s, "deep thought", "user", 4, testEpoch)

	c := newTestCrystallizer(CompareEffective)
	p := &recordingPromoter{}
	c.Run(context.Background(), s, testEpoch, p.promote)
	promoted, _ := c.Run(context.Background(), s, testEpoch, p.promote)

	assert.Empty(t, promoted)
	assert.Len(t, p.promotions, 1)
}

func TestCrystallizer_CompareModes(t *testing.T) {
	// 4.0 decays to 2.0 after one half-life.
	now := testEpoch.Add(15 * time.Minute)
	u := &ConversationalUnit{ID: "u", Content: "u", Timestamp: testEpoch, BaseImportance: 4}

	effective := newTestCrystallizer(CompareEffective)
	assert.InDelta(t, 2.0, effective.Value(u, now), 1e-9)
	assert.False(t, effective.Eligible(u, now))

	base := newTestCrystallizer(CompareBase)
	assert.Equal(t, 4.0, base.Value(u, now))
	assert.True(t, base.Eligible(u, now))
}

func TestCrystallizer_ThresholdIsExclusive(t *testing.T) {
	c := newTestCrystallizer(CompareBase)
	u := &ConversationalUnit{ID: "u", Timestamp: testEpoch, BaseImportance: 3.0}
	assert.False(t, c.Eligible(u, testEpoch))
}

func TestCrystallizer_FailureKeepsUnitQueued(t *testing.T) {
	s := newTestConversation(10)
	addTurn(s, "fails", "user", 4, testEpoch)
	addTurn(s, "works", "user", 4, testEpoch.Add(time.Second))

	c := newTestCrystallizer(CompareBase)
	boom := errors.New("encoder exploded")
	p := &recordingPromoter{fail: map[string]error{"fails": boom}}
	promoted, failures := c.Run(context.Background(), s, testEpoch, p.promote)

	assert.Equal(t, []string{ContentHash("works")}, promoted)
	require.Len(t, failures, 1)
	assert.ErrorIs(t, failures[0], ErrCrystallization)
	assert.ErrorIs(t, failures[0], boom)

	var ce *CrystallizationError
	require.ErrorAs(t, failures[0], &ce)
	assert.Equal(t, "fails", ce.UnitID)

	_, ok := s.Get("fails")
	assert.True(t, ok)

	// The next run retries it.
	p.fail = nil
	promoted, failures = c.Run(context.Background(), s, testEpoch, p.promote)
	assert.Equal(t, []string{ContentHash("fails")}, promoted)
	assert.Empty(t, failures)
	assert.Equal(t, 0, s.Len())
}

func TestCrystallizer_RecoversPromoterPanic(t *testing.T) {
	s := newTestConversation(10)
	addTurn(s, "panics", "user", 4, testEpoch)

	c := newTestCrystallizer(CompareBase)
	promoted, failures := c.Run(context.Background(), s, testEpoch, func(context.Context, Promotion) (string, error) {
		panic("promoter bug")
	})

	assert.Empty(t, promoted)
	require.Len(t, failures, 1)
	assert.ErrorIs(t, failures[0], ErrCrystallization)
	assert.Equal(t, 1, s.Len())
}

func TestCrystallizer_PersistenceFailureStillPromotes(t *testing.T) {
	s := newTestConversation(10)
	addTurn(s, "slow disk", "user", 4, testEpoch)

	c := newTestCrystallizer(CompareBase)
	perr := &PersistenceError{Op: "put", Key: "unit:x", Cause: errors.New("disk full")}
	promoted, failures := c.Run(context.Background(), s, testEpoch, func(context.Context, Promotion) (string, error) {
		return "x", perr
	})

	assert.Equal(t, []string{"x"}, promoted)
	require.Len(t, failures, 1)
	assert.ErrorIs(t, failures[0], ErrPersistence)
	assert.Equal(t, 0, s.Len())
}

func TestCrystallizer_StopsOnCancelledContext(t *testing.T) {
	s := newTestConversation(10)
	addTurn(s, "a", "user", 4, testEpoch)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := newTestCrystallizer(CompareBase)
	p := &recordingPromoter{}
	promoted, failures := c.Run(ctx, s, testEpoch, p.promote)
	assert.Empty(t, promoted)
	require.Len(t, failures, 1)
	assert.ErrorIs(t, failures[0], context.Canceled)
	assert.Equal(t, 1, s.Len())
}
