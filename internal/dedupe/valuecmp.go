package dedupe

import (
	"cmp"
	"hash/fnv"
	"reflect"
	"slices"
	"strconv"

	"github.com/docexpr/matchexpr/bsonval"
)

// ValueComparer implements [Comparer] for bsonval.Value, adapted from
// the teacher's internal/adapter/comparer (itself a BSON-order
// comparison) onto this module's Value/Document/Array types instead of
// domain.Document/domain.Getter.
type ValueComparer struct{}

// Equal reports whether a and b compare equal under BSON ordering
// rules: same numeric value regardless of int32/int64/double tag, same
// string, same document shape irrespective of key order for dedupe
// purposes is NOT assumed — document equality requires identical
// key order, matching strict BSON binary comparison.
func (ValueComparer) Equal(a, b bsonval.Value) bool {
	c, err := compareValues(a, b)
	return err == nil && c == 0
}

func compareValues(a, b bsonval.Value) (int, error) {
	if c, ok := compareNumbers(a, b); ok {
		return c, nil
	}
	if a.Type() != b.Type() {
		return cmp.Compare(a.Type(), b.Type()), nil
	}
	switch a.Type() {
	case bsonval.TypeString:
		as, _ := a.AsString()
		bs, _ := b.AsString()
		return cmp.Compare(as, bs), nil
	case bsonval.TypeBool:
		ab, _ := a.AsBool()
		bb, _ := b.AsBool()
		return compareBool(ab, bb), nil
	case bsonval.TypeNull, bsonval.TypeUndefined, bsonval.TypeMinKey, bsonval.TypeMaxKey, bsonval.TypeEOO:
		return 0, nil
	case bsonval.TypeArray:
		aa, _ := a.AsArray()
		ba, _ := b.AsArray()
		return compareArrays(aa, ba)
	case bsonval.TypeDocument:
		ad, _ := a.AsDocument()
		bd, _ := b.AsDocument()
		return compareDocs(ad, bd)
	case bsonval.TypeRegex:
		ar, _ := a.AsRegex()
		br, _ := b.AsRegex()
		if c := cmp.Compare(ar.Pattern, br.Pattern); c != 0 {
			return c, nil
		}
		return cmp.Compare(ar.Flags, br.Flags), nil
	default:
		// Dates, binaries, object ids and timestamps: equal only when
		// their payloads are identical; no finer ordering is computed.
		if reflect.DeepEqual(a.Raw(), b.Raw()) {
			return 0, nil
		}
		return 1, nil
	}
}

func compareNumbers(a, b bsonval.Value) (int, bool) {
	av, aok := asFloat(a)
	bv, bok := asFloat(b)
	if !aok || !bok {
		return 0, false
	}
	return cmp.Compare(av, bv), true
}

func asFloat(v bsonval.Value) (float64, bool) {
	switch n := v.Raw().(type) {
	case float64:
		return n, true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

func compareBool(a, b bool) int {
	if a == b {
		return 0
	}
	if a {
		return 1
	}
	return -1
}

func compareArrays(a, b bsonval.Array) (int, error) {
	if a == nil || b == nil {
		return cmp.Compare(boolLen(a), boolLen(b)), nil
	}
	n := min(a.Len(), b.Len())
	for i := range n {
		c, err := compareValues(a.At(i), b.At(i))
		if err != nil {
			return 0, err
		}
		if c != 0 {
			return c, nil
		}
	}
	return cmp.Compare(a.Len(), b.Len()), nil
}

func boolLen(a bsonval.Array) int {
	if a == nil {
		return 0
	}
	return a.Len()
}

func compareDocs(a, b bsonval.Document) (int, error) {
	if a == nil || b == nil {
		return 0, nil
	}
	var aKeys, bKeys []string
	for k := range a.Iter() {
		aKeys = append(aKeys, k)
	}
	for k := range b.Iter() {
		bKeys = append(bKeys, k)
	}
	if len(aKeys) != len(bKeys) {
		return cmp.Compare(len(aKeys), len(bKeys)), nil
	}
	if !slices.Equal(aKeys, bKeys) {
		return slices.Compare(aKeys, bKeys), nil
	}
	for _, k := range aKeys {
		av, _ := a.Get(k)
		bv, _ := b.Get(k)
		c, err := compareValues(av, bv)
		if err != nil {
			return 0, err
		}
		if c != 0 {
			return c, nil
		}
	}
	return 0, nil
}

// ValueHasher implements [Hasher] for bsonval.Value via FNV-1a over a
// type-tagged rendering of the value's contents.
type ValueHasher struct{}

// Hash returns an FNV-1a digest of v's type tag plus a stable rendering
// of its contents; values ValueComparer.Equal treats as equal hash the
// same by construction, since the rendering only depends on the
// normalized numeric/string/ordering view compareValues also uses.
func (ValueHasher) Hash(v bsonval.Value) uint64 {
	h := fnv.New64a()
	writeHash(h, v)
	return h.Sum64()
}

func writeHash(h interface{ Write([]byte) (int, error) }, v bsonval.Value) {
	if f, ok := asFloat(v); ok {
		h.Write([]byte{1})
		h.Write([]byte(strconv.FormatFloat(f, 'g', -1, 64)))
		return
	}
	switch v.Type() {
	case bsonval.TypeString:
		s, _ := v.AsString()
		h.Write([]byte{2})
		h.Write([]byte(s))
	case bsonval.TypeBool:
		b, _ := v.AsBool()
		h.Write([]byte{3})
		if b {
			h.Write([]byte{1})
		} else {
			h.Write([]byte{0})
		}
	case bsonval.TypeArray:
		h.Write([]byte{4})
		if a, ok := v.AsArray(); ok {
			for e := range a.Iter() {
				writeHash(h, e)
			}
		}
	case bsonval.TypeDocument:
		h.Write([]byte{5})
		if d, ok := v.AsDocument(); ok {
			for k, e := range d.Iter() {
				h.Write([]byte(k))
				writeHash(h, e)
			}
		}
	default:
		h.Write([]byte{byte(v.Type())})
	}
}
