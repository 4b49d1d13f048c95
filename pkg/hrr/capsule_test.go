package hrr

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpace_Deterministic(t *testing.T) {
	a := newTestSpace(t, 256)
	b := newTestSpace(t, 256)

	assert.Equal(t, a.Role("WHO"), b.Role("WHO"))
	assert.Equal(t, a.Symbol("alice"), b.Symbol("alice"))
	assert.Less(t, Cosine(a.Symbol("alice"), a.Symbol("bob")), 0.3)
	assert.Less(t, Cosine(a.Role("alice"), a.Symbol("alice")), 0.3)

	other := NewSpace(a.Codec(), 7)
	assert.NotEqual(t, a.Symbol("alice"), other.Symbol("alice"))
}

func TestSpace_ReturnsCopies(t *testing.T) {
	space := newTestSpace(t, 64)
	v := space.Symbol("x")
	v[0] = 42
	assert.NotEqual(t, 42.0, space.Symbol("x")[0])
}

func TestSpace_Nearest(t *testing.T) {
	space := newTestSpace(t, 512)
	for _, s := range []string{"library", "park", "office", "yesterday"} {
		space.Symbol(s)
	}

	matches := space.Nearest(space.Symbol("park"), 2, nil)
	require.Len(t, matches, 2)
	assert.Equal(t, "park", matches[0].Symbol)
	assert.InDelta(t, 1.0, matches[0].Similarity, 1e-9)

	filtered := space.Nearest(space.Symbol("park"), 10, func(s string) bool {
		return !strings.HasPrefix(s, "p")
	})
	assert.Len(t, filtered, 3)
	for _, m := range filtered {
		assert.NotEqual(t, "park", m.Symbol)
	}
}

func TestSpace_VectorDoesNotRegister(t *testing.T) {
	space := newTestSpace(t, 64)
	space.Symbol("known")

	transient := space.Vector("transient")
	assert.Equal(t, 1, space.Symbols())
	assert.Empty(t, space.Nearest(transient, 5, func(s string) bool { return s == "transient" }))

	assert.Equal(t, space.Symbol("transient"), transient)
	assert.Equal(t, space.Symbol("known"), space.Vector("known"))
	assert.Equal(t, 2, space.Symbols())
}

func TestCapsule_UnbindResolvesFillers(t *testing.T) {
	space := newTestSpace(t, 1024)
	for _, s := range []string{"library", "park", "yesterday", "today", "alice", "bob"} {
		space.Symbol(s)
	}

	capsule := NewCapsule(space)
	require.NoError(t, capsule.BindSymbol("WHERE", "library", 1))
	require.NoError(t, capsule.BindSymbol("WHEN", "yesterday", 1))
	require.NoError(t, capsule.BindSymbol("WHO", "alice", 1))

	for role, want := range map[string]string{"WHERE": "library", "WHEN": "yesterday", "WHO": "alice"} {
		approx, err := capsule.UnbindRole(role)
		require.NoError(t, err)
		best := space.Nearest(approx, 1, nil)
		require.Len(t, best, 1)
		assert.Equal(t, want, best[0].Symbol, "role %s", role)
		assert.Greater(t, best[0].Similarity, 0.4)
	}
}

func TestCapsule_UnboundRoleIsLowConfidence(t *testing.T) {
	space := newTestSpace(t, 1024)
	capsule := NewCapsule(space)
	require.NoError(t, capsule.BindSymbol("WHERE", "library", 1))
	require.NoError(t, capsule.BindSymbol("WHEN", "yesterday", 1))

	approx, err := capsule.UnbindRole("WHY")
	require.NoError(t, err)
	best := space.Nearest(approx, 1, nil)
	require.Len(t, best, 1)
	assert.Less(t, best[0].Similarity, 0.25)
}

func TestCapsule_BindValidation(t *testing.T) {
	space := newTestSpace(t, 64)
	capsule := NewCapsule(space)

	assert.ErrorIs(t, capsule.BindSymbol("WHERE", "library", 0), ErrZeroWeight)
	assert.ErrorIs(t, capsule.BindSymbol("", "library", 1), ErrEmptyRole)
	assert.ErrorIs(t, capsule.BindRole("WHERE", make(Vector, 8), 1), ErrDimensionMismatch)
	assert.Equal(t, 0, capsule.Len())
}

func TestCapsule_EmbeddingInvalidatedOnMutation(t *testing.T) {
	space := newTestSpace(t, 256)
	capsule := NewCapsule(space)
	require.NoError(t, capsule.BindSymbol("WHERE", "library", 1))
	first := capsule.Embedding()

	require.NoError(t, capsule.BindSymbol("WHERE", "park", 1))
	second := capsule.Embedding()

	assert.Equal(t, []string{"WHERE"}, capsule.Roles())
	assert.Less(t, Cosine(first, second), 0.5)
	assert.InDelta(t, 1.0, second.Norm(), 1e-9)

	filler, weight, err := capsule.Filler("WHERE")
	require.NoError(t, err)
	assert.Equal(t, 1.0, weight)
	assert.InDelta(t, 1.0, Cosine(filler, space.Symbol("park")), 1e-9)

	_, _, err = capsule.Filler("WHEN")
	assert.ErrorIs(t, err, ErrRoleNotBound)
}

func TestCapsule_EmptyEmbedding(t *testing.T) {
	space := newTestSpace(t, 32)
	emb := NewCapsule(space).Embedding()
	assert.Len(t, emb, 32)
	assert.InDelta(t, 1.0, emb.Norm(), 1e-9)
}
