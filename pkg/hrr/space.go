package hrr

import (
	"hash/fnv"
	"math"
	"math/rand/v2"
	"sort"
	"sync"
)

// Match is a cleanup result: a known symbol and its similarity to a cue.
type Match struct {
	Symbol     string  `json:"symbol"`
	Similarity float64 `json:"similarity"`
}

// Space allocates named role and symbol vectors. Vectors are generated
// deterministically from (kind, name, seed), so two spaces built with the
// same dimension and seed agree on every vector, including across restarts.
//
// Role vectors are unitary, which makes unbinding a single binding exact.
// Symbol vectors are Gaussian draws normalized to unit length.
type Space struct {
	mu      sync.RWMutex
	codec   *Codec
	seed    uint64
	roles   map[string]Vector
	symbols map[string]Vector
	order   []string
}

// NewSpace creates a vector space over codec's dimension.
func NewSpace(codec *Codec, seed uint64) *Space {
	return &Space{
		codec:   codec,
		seed:    seed,
		roles:   make(map[string]Vector),
		symbols: make(map[string]Vector),
	}
}

// Codec returns the codec the space allocates for.
func (s *Space) Codec() *Codec { return s.codec }

// Dim returns the dimension of every vector in the space.
func (s *Space) Dim() int { return s.codec.Dim() }

// Role returns the role vector for name. The returned slice is a copy.
func (s *Space) Role(name string) Vector {
	s.mu.RLock()
	v, ok := s.roles[name]
	s.mu.RUnlock()
	if ok {
		return v.Clone()
	}

	rng := s.rng("role", name)
	v = s.codec.unitary(func(int) float64 { return rng.Float64() * 2 * math.Pi })

	s.mu.Lock()
	if cached, ok := s.roles[name]; ok {
		v = cached
	} else {
		s.roles[name] = v
	}
	s.mu.Unlock()
	return v.Clone()
}

// Symbol returns the symbol vector for name and registers it for cleanup
// searches. The returned slice is a copy.
func (s *Space) Symbol(name string) Vector {
	s.mu.RLock()
	v, ok := s.symbols[name]
	s.mu.RUnlock()
	if ok {
		return v.Clone()
	}

	v = s.draw(name)
	s.mu.Lock()
	if cached, ok := s.symbols[name]; ok {
		v = cached
	} else {
		s.symbols[name] = v
		s.order = append(s.order, name)
	}
	s.mu.Unlock()
	return v.Clone()
}

// Vector returns the same vector Symbol would for name without registering
// it. Query cues use it so cleanup only ever sees stored symbols.
func (s *Space) Vector(name string) Vector {
	s.mu.RLock()
	v, ok := s.symbols[name]
	s.mu.RUnlock()
	if ok {
		return v.Clone()
	}
	return s.draw(name)
}

func (s *Space) draw(name string) Vector {
	rng := s.rng("symbol", name)
	v := make(Vector, s.codec.Dim())
	for i := range v {
		v[i] = rng.NormFloat64()
	}
	return Normalize(v)
}

// Symbols returns the number of allocated symbols.
func (s *Space) Symbols() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.symbols)
}

// Nearest ranks the known symbols by similarity to cue and returns the
// top k. Symbols accepted by filter are considered; a nil filter accepts all.
func (s *Space) Nearest(cue Vector, k int, filter func(symbol string) bool) []Match {
	if k <= 0 || len(cue) != s.codec.Dim() {
		return nil
	}

	s.mu.RLock()
	matches := make([]Match, 0, len(s.order))
	for _, name := range s.order {
		if filter != nil && !filter(name) {
			continue
		}
		matches = append(matches, Match{Symbol: name, Similarity: Cosine(cue, s.symbols[name])})
	}
	s.mu.RUnlock()

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Similarity > matches[j].Similarity
	})
	if k < len(matches) {
		matches = matches[:k]
	}
	return matches
}

func (s *Space) rng(kind, name string) *rand.Rand {
	h := fnv.New64a()
	h.Write([]byte(kind))
	h.Write([]byte{0})
	h.Write([]byte(name))
	return rand.New(rand.NewPCG(h.Sum64(), s.seed))
}
