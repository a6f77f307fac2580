package localcorr

import (
	"errors"
	"fmt"
)

// ErrDuplicatePair indicates an attempt to store a pair whose key is
// already in the set.
var ErrDuplicatePair = errors.New("localcorr: duplicate pair")

// PairSet is the arena owning all pairs of a calculation. Pairs live in a
// flat slice addressed by PairID; a key index resolves (i, j) lookups to
// slots. Insertion order is the canonical traversal order everywhere the
// solver or the energy assembly walks the set, which keeps runs
// deterministic.
type PairSet struct {
	pairs []*OrbitalPair
	index map[PairKey]PairID
}

// NewPairSet returns an empty arena.
func NewPairSet() *PairSet {
	return &PairSet{index: make(map[PairKey]PairID)}
}

// Add stores the pair and returns its arena slot.
func (s *PairSet) Add(p *OrbitalPair) (PairID, error) {
	key := p.Key()
	if _, ok := s.index[key]; ok {
		return 0, fmt.Errorf("%w: %s", ErrDuplicatePair, key)
	}

	id := PairID(len(s.pairs))
	s.pairs = append(s.pairs, p)
	s.index[key] = id

	return id, nil
}

// Len returns the number of stored pairs.
func (s *PairSet) Len() int {
	return len(s.pairs)
}

// Pair returns the pair in the given arena slot.
func (s *PairSet) Pair(id PairID) *OrbitalPair {
	return s.pairs[id]
}

// Lookup resolves a key to its arena slot.
func (s *PairSet) Lookup(key PairKey) (PairID, bool) {
	id, ok := s.index[key]

	return id, ok
}

// ByKey returns the pair stored under the key, or nil when it was never
// stored.
func (s *PairSet) ByKey(key PairKey) *OrbitalPair {
	id, ok := s.index[key]
	if !ok {
		return nil
	}

	return s.pairs[id]
}

// All returns the pairs in insertion order.
func (s *PairSet) All() []*OrbitalPair {
	out := make([]*OrbitalPair, len(s.pairs))
	copy(out, s.pairs)

	return out
}

// Solved returns the close and distant pairs in insertion order. These
// are the pairs entering the residual iteration.
func (s *PairSet) Solved() []*OrbitalPair {
	return s.byClass(func(c PairClass) bool { return c.Solvable() })
}

// VeryDistant returns the very distant pairs in insertion order.
func (s *PairSet) VeryDistant() []*OrbitalPair {
	return s.byClass(func(c PairClass) bool { return c == PairClassVeryDistant })
}

func (s *PairSet) byClass(keep func(PairClass) bool) []*OrbitalPair {
	var out []*OrbitalPair
	for _, p := range s.pairs {
		if keep(p.Class) {
			out = append(out, p)
		}
	}

	return out
}
