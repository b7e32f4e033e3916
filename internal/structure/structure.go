// Package structure adapts the teacher's generic object/list iteration
// helpers (pkg/structure) for use by [bsonval.FromNative]: given an
// arbitrary Go map, struct, slice or array, it yields (key, value) or
// (index, value) pairs without the caller needing to know which shape
// it started from.
package structure

import (
	"errors"
	"iter"
	"math"
	"strings"

	goreflect "github.com/goccy/go-reflect"
)

// ErrNotObject is returned by [Fields] when v is not a map or struct.
var ErrNotObject = errors.New("structure: not a map or struct")

// ErrNotList is returned by [Elements] when v is not a slice or array.
var ErrNotList = errors.New("structure: not a slice or array")

// TagName is the struct tag consulted for a field's document key.
const TagName = "matchexpr"

// Fields returns an iterator over v's fields in declaration (struct) or
// map-iteration order, along with the field count.
func Fields(v any) (iter.Seq2[string, any], int, error) {
	if v == nil {
		return nil, 0, ErrNotObject
	}
	if m, ok := v.(map[string]any); ok {
		return mapSeq(m), len(m), nil
	}

	rv := goreflect.ValueOf(v)
	for rv.Kind() == goreflect.Ptr || rv.Kind() == goreflect.Interface {
		if rv.IsNil() {
			return nil, 0, ErrNotObject
		}
		rv = rv.Elem()
	}

	switch rv.Kind() {
	case goreflect.Map:
		return mapReflectSeq(rv), rv.Len(), nil
	case goreflect.Struct:
		fields := structFields(rv)
		return sliceFieldSeq(fields), len(fields), nil
	default:
		return nil, 0, ErrNotObject
	}
}

// Elements returns an iterator over v's elements, along with the count.
func Elements(v any) (iter.Seq[any], int, error) {
	if v == nil {
		return nil, 0, ErrNotList
	}
	if s, ok := v.([]any); ok {
		return sliceSeq(s), len(s), nil
	}

	rv := goreflect.ValueOf(v)
	for rv.Kind() == goreflect.Ptr || rv.Kind() == goreflect.Interface {
		if rv.IsNil() {
			return nil, 0, ErrNotList
		}
		rv = rv.Elem()
	}

	switch rv.Kind() {
	case goreflect.Slice, goreflect.Array:
		n := rv.Len()
		return func(yield func(any) bool) {
			for i := range n {
				if !yield(rv.Index(i).Interface()) {
					return
				}
			}
		}, n, nil
	default:
		return nil, 0, ErrNotList
	}
}

func mapSeq(m map[string]any) iter.Seq2[string, any] {
	return func(yield func(string, any) bool) {
		for k, v := range m {
			if !yield(k, v) {
				return
			}
		}
	}
}

func sliceSeq(s []any) iter.Seq[any] {
	return func(yield func(any) bool) {
		for _, v := range s {
			if !yield(v) {
				return
			}
		}
	}
}

func mapReflectSeq(v goreflect.Value) iter.Seq2[string, any] {
	keys := v.MapKeys()
	return func(yield func(string, any) bool) {
		for _, k := range keys {
			if !yield(toString(k), v.MapIndex(k).Interface()) {
				return
			}
		}
	}
}

type namedField struct {
	name  string
	value any
}

func structFields(rv goreflect.Value) []namedField {
	typ := rv.Type()
	out := make([]namedField, 0, typ.NumField())
	for i := range typ.NumField() {
		sf := typ.Field(i)
		if sf.PkgPath != "" {
			continue
		}
		name := sf.Name
		if tag, ok := sf.Tag.Lookup(TagName); ok {
			if tag == "-" {
				continue
			}
			if idx := strings.IndexByte(tag, ','); idx >= 0 {
				tag = tag[:idx]
			}
			if tag != "" {
				name = tag
			}
		}
		out = append(out, namedField{name: name, value: rv.Field(i).Interface()})
	}
	return out
}

func sliceFieldSeq(fields []namedField) iter.Seq2[string, any] {
	return func(yield func(string, any) bool) {
		for _, f := range fields {
			if !yield(f.name, f.value) {
				return
			}
		}
	}
}

func toString(v goreflect.Value) string {
	if v.Kind() == goreflect.String {
		return v.String()
	}
	return ""
}

// ExactInt32 reports whether f has no fractional part and fits in an
// int32, returning the truncated value when it does. Used by $size/$type
// to decide between an integer code and the "matches nothing" sentinel.
func ExactInt32(f float64) (int32, bool) {
	if math.Trunc(f) != f {
		return 0, false
	}
	if f < math.MinInt32 || f > math.MaxInt32 {
		return 0, false
	}
	return int32(f), true
}
