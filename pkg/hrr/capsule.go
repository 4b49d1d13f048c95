package hrr

import (
	"fmt"
	"math"
)

// Capsule holds an ordered set of weighted role→filler bindings and derives
// one holographic embedding from them. The embedding is cached and
// recomputed lazily after any mutation. A Capsule is not safe for concurrent
// mutation.
type Capsule struct {
	space    *Space
	bindings []binding
	index    map[string]int

	embedding Vector
}

type binding struct {
	role   string
	filler Vector
	weight float64
}

// NewCapsule creates an empty capsule over space.
func NewCapsule(space *Space) *Capsule {
	return &Capsule{
		space: space,
		index: make(map[string]int),
	}
}

// BindRole adds or overwrites the binding for role. A zero or non-finite
// weight is rejected, as is a filler of the wrong dimension.
func (c *Capsule) BindRole(role string, filler Vector, weight float64) error {
	if role == "" {
		return ErrEmptyRole
	}
	if weight == 0 || math.IsNaN(weight) || math.IsInf(weight, 0) {
		return fmt.Errorf("%w: role %q weight %v", ErrZeroWeight, role, weight)
	}
	if err := checkDim(c.space.Dim(), filler); err != nil {
		return fmt.Errorf("role %q: %w", role, err)
	}

	b := binding{role: role, filler: filler.Clone(), weight: weight}
	if i, ok := c.index[role]; ok {
		c.bindings[i] = b
	} else {
		c.index[role] = len(c.bindings)
		c.bindings = append(c.bindings, b)
	}
	c.embedding = nil
	return nil
}

// BindSymbol binds role to the space's symbol vector for symbol.
func (c *Capsule) BindSymbol(role, symbol string, weight float64) error {
	return c.BindRole(role, c.space.Symbol(symbol), weight)
}

// Embedding returns the normalized weighted superposition of every
// role⊗filler binding. An empty capsule yields the uniform unit vector.
func (c *Capsule) Embedding() Vector {
	if c.embedding != nil {
		return c.embedding.Clone()
	}
	if len(c.bindings) == 0 {
		return Normalize(make(Vector, c.space.Dim()))
	}

	codec := c.space.Codec()
	bound := make([]Vector, len(c.bindings))
	weights := make([]float64, len(c.bindings))
	for i, b := range c.bindings {
		// Dimensions were checked on bind, so Bind cannot fail here.
		v, _ := codec.Bind(c.space.Role(b.role), b.filler)
		bound[i] = v
		weights[i] = b.weight
	}
	emb, _ := codec.Superpose(bound, weights)
	c.embedding = emb
	return emb.Clone()
}

// UnbindRole returns the approximate filler bound to role. Unbinding a role
// that was never bound is not an error: it yields a noise vector whose best
// cleanup match will have low similarity.
func (c *Capsule) UnbindRole(role string) (Vector, error) {
	if role == "" {
		return nil, ErrEmptyRole
	}
	return c.space.Codec().Unbind(c.Embedding(), c.space.Role(role))
}

// Filler returns the exact filler bound to role.
func (c *Capsule) Filler(role string) (Vector, float64, error) {
	i, ok := c.index[role]
	if !ok {
		return nil, 0, fmt.Errorf("%w: %q", ErrRoleNotBound, role)
	}
	return c.bindings[i].filler.Clone(), c.bindings[i].weight, nil
}

// Roles returns the bound role names in binding order.
func (c *Capsule) Roles() []string {
	roles := make([]string, len(c.bindings))
	for i, b := range c.bindings {
		roles[i] = b.role
	}
	return roles
}

// Len returns the number of bindings.
func (c *Capsule) Len() int { return len(c.bindings) }
