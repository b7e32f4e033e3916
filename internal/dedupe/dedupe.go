// Package dedupe adapts the teacher's bucketed UncomparableMap (built
// for values — like slices and sub-documents — that cannot be Go map
// keys) onto bsonval.Value, so a scalar-form $all argument can
// optionally have its duplicate entries collapsed before the parser
// builds the implicit AND-of-EQ (spec.md §4.10 Open Question).
package dedupe

import (
	"iter"
	"slices"

	"github.com/docexpr/matchexpr/bsonval"
)

// Hasher produces a bucket hash for a bsonval.Value. Values that
// Comparer treats as equal must hash identically.
type Hasher interface {
	Hash(v bsonval.Value) uint64
}

// Comparer reports whether two bsonval.Values are equal for
// deduplication purposes (spec.md equality semantics: same type and
// same contents, not Go's == since Document/Array are interfaces over
// slices).
type Comparer interface {
	Equal(a, b bsonval.Value) bool
}

// Set is an order-preserving deduplicating collection of bsonval.Values.
type Set struct {
	buckets  [][]bsonval.Value
	hasher   Hasher
	comparer Comparer
	order    []bsonval.Value
}

// New returns an empty Set using hasher/comparer for equality.
func New(hasher Hasher, comparer Comparer) *Set {
	return &Set{
		buckets:  make([][]bsonval.Value, 16),
		hasher:   hasher,
		comparer: comparer,
	}
}

// Add inserts v if no equal value is already present, and reports
// whether v was newly added.
func (s *Set) Add(v bsonval.Value) bool {
	idx := s.hasher.Hash(v) % uint64(len(s.buckets))
	bucket := s.buckets[idx]
	for _, existing := range bucket {
		if s.comparer.Equal(v, existing) {
			return false
		}
	}
	s.buckets[idx] = append(bucket, v)
	s.order = append(s.order, v)
	return true
}

// Values iterates the set's members in insertion order.
func (s *Set) Values() iter.Seq[bsonval.Value] {
	return func(yield func(bsonval.Value) bool) {
		for _, v := range s.order {
			if !yield(v) {
				return
			}
		}
	}
}

// Len reports the number of distinct members added so far.
func (s *Set) Len() int { return len(s.order) }

// Dedupe returns vals with later duplicates (per hasher/comparer)
// dropped, preserving the order of first occurrence.
func Dedupe(vals []bsonval.Value, hasher Hasher, comparer Comparer) []bsonval.Value {
	s := New(hasher, comparer)
	out := make([]bsonval.Value, 0, len(vals))
	for _, v := range vals {
		if s.Add(v) {
			out = append(out, v)
		}
	}
	return slices.Clip(out)
}
