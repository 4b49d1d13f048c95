package memory

import (
	"sort"

	"github.com/goclaw/holomem/pkg/hrr"
)

// Built-in capsule roles.
const (
	RoleContent = "content"
	RoleSpeaker = "speaker"
)

// Binding weights used by DefaultEncoder.
const (
	contentWeight  = 1.0
	speakerWeight  = 0.5
	metadataWeight = 0.5
)

// EncodeInput is the content handed to an Encoder.
type EncodeInput struct {
	Content  string
	Speaker  string
	Metadata map[string]string
}

// Encoder turns content into a MemoryCapsule and builds query fillers.
type Encoder interface {
	// Encode builds the capsule for in.
	Encode(in EncodeInput) (*hrr.Capsule, error)

	// Filler returns the filler vector that Encode binds to role for value.
	Filler(role, value string) hrr.Vector

	// Symbols returns the cleanup symbols Encode registers for role and value.
	Symbols(role, value string) []string
}

// DefaultEncoder binds the content role to a superposition of token symbols,
// the speaker role to a speaker symbol and each metadata key to the symbol
// of its value.
type DefaultEncoder struct {
	space *hrr.Space
}

// NewDefaultEncoder creates an encoder over space.
func NewDefaultEncoder(space *hrr.Space) *DefaultEncoder {
	return &DefaultEncoder{space: space}
}

// Encode implements Encoder.
func (e *DefaultEncoder) Encode(in EncodeInput) (*hrr.Capsule, error) {
	c := hrr.NewCapsule(e.space)
	if err := c.BindRole(RoleContent, e.Filler(RoleContent, in.Content), contentWeight); err != nil {
		return nil, err
	}
	if in.Speaker != "" {
		if err := c.BindSymbol(RoleSpeaker, in.Speaker, speakerWeight); err != nil {
			return nil, err
		}
	}

	keys := make([]string, 0, len(in.Metadata))
	for k := range in.Metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if k == RoleContent || k == RoleSpeaker {
			continue
		}
		if err := c.BindSymbol(k, in.Metadata[k], metadataWeight); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Filler implements Encoder. Content is the term-frequency weighted
// superposition of its token symbols, or a content-hash symbol when it has
// no tokens; every other role uses the value's symbol. Fillers never
// register symbols in the space.
func (e *DefaultEncoder) Filler(role, value string) hrr.Vector {
	if role != RoleContent {
		return e.space.Vector(value)
	}

	symbols := e.Symbols(role, value)
	if len(symbols) == 1 {
		return e.space.Vector(symbols[0])
	}

	freq := make(map[string]int, len(symbols))
	for _, t := range tokenize(value) {
		freq[t]++
	}
	vectors := make([]hrr.Vector, len(symbols))
	weights := make([]float64, len(symbols))
	for i, s := range symbols {
		vectors[i] = e.space.Vector(s)
		weights[i] = float64(freq[s])
	}
	// Symbols share the space dimension, so Superpose cannot fail.
	v, _ := e.space.Codec().Superpose(vectors, weights)
	return v
}

// Symbols implements Encoder. Content yields its distinct tokens in first
// occurrence order.
func (e *DefaultEncoder) Symbols(role, value string) []string {
	if role != RoleContent {
		return []string{value}
	}
	tokens := tokenize(value)
	if len(tokens) == 0 {
		return []string{"#" + ContentHash(value)[:16]}
	}
	seen := make(map[string]struct{}, len(tokens))
	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
