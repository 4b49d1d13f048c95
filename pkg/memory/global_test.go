package memory

import (
	"testing"
	"time"

	"github.com/goclaw/holomem/pkg/hrr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkingSet_Eviction(t *testing.T) {
	ws := NewWorkingSet(2)

	ws.Touch("a")
	ws.Touch("b")
	ws.Touch("c") // evicts "a"

	assert.Equal(t, []string{"c", "b"}, ws.IDs())
	if ws.Len() != 2 {
		t.Errorf("expected len 2, got %d", ws.Len())
	}
}

func TestWorkingSet_LRUOrder(t *testing.T) {
	ws := NewWorkingSet(2)

	ws.Touch("a")
	ws.Touch("b")
	ws.Touch("a") // promote "a"
	ws.Touch("c") // evicts "b"

	assert.Equal(t, []string{"c", "a"}, ws.IDs())
}

func TestWorkingSet_Resize(t *testing.T) {
	ws := NewWorkingSet(4)
	for _, id := range []string{"a", "b", "c", "d"} {
		ws.Touch(id)
	}
	assert.Equal(t, []string{"d", "c", "b", "a"}, ws.IDs())

	ws.Resize(1)
	assert.Equal(t, []string{"d"}, ws.IDs())
}

func TestGlobalMemory_EmptyState(t *testing.T) {
	codec, err := hrr.NewCodec(8)
	require.NoError(t, err)
	g := NewGlobalMemory(codec, 4, time.Hour)

	_, ok := g.State(time.Now(), func(string) *PersistentUnit { return nil })
	assert.False(t, ok)
}

func TestGlobalMemory_StateWeighsByEffectiveImportance(t *testing.T) {
	space := newTestSpace(t, 256)
	g := NewGlobalMemory(space.Codec(), 4, time.Hour)
	now := time.Now()

	units := map[string]*PersistentUnit{
		"strong": {ID: "strong", Vector: space.Symbol("strong"), BaseImportance: 4, LastAccess: now},
		"faded":  {ID: "faded", Vector: space.Symbol("faded"), BaseImportance: 4, LastAccess: now.Add(-10 * time.Hour)},
	}
	g.WorkingSet().Touch("strong")
	g.WorkingSet().Touch("faded")
	g.WorkingSet().Touch("gone")

	h, ok := g.State(now, func(id string) *PersistentUnit { return units[id] })
	require.True(t, ok)
	assert.InDelta(t, 1.0, h.Norm(), 1e-9)
	assert.Greater(t, hrr.Cosine(h, units["strong"].Vector), hrr.Cosine(h, units["faded"].Vector))
}
