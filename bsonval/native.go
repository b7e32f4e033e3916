package bsonval

import (
	"fmt"
	"regexp"
	"time"

	goreflect "github.com/goccy/go-reflect"

	"github.com/docexpr/matchexpr/internal/structure"
)

// FromNative converts an arbitrary Go value — a map, a struct, a slice,
// or a scalar — into a [Value], the way a caller that keeps its queries
// as plain `map[string]any` literals (rather than building [Document]s
// by hand) would bridge into the parser. Adapted from the teacher's
// internal/adapter/data document constructor, retargeted from
// domain.Document/M onto this package's order-preserving [Document].
func FromNative(v any) (Value, error) {
	switch t := v.(type) {
	case nil:
		return Null(), nil
	case Value:
		return t, nil
	case string:
		return String(t), nil
	case bool:
		return Bool(t), nil
	case int:
		return int64Or32(int64(t)), nil
	case int8:
		return Int32(int32(t)), nil
	case int16:
		return Int32(int32(t)), nil
	case int32:
		return Int32(t), nil
	case int64:
		return int64Or32(t), nil
	case float32:
		return Double(float64(t)), nil
	case float64:
		return Double(t), nil
	case time.Time:
		return Date(t), nil
	case []byte:
		return Bin(t), nil
	case ObjectID:
		return OID(t), nil
	case *regexp.Regexp:
		return RegexValue(Regex{Pattern: t.String()}), nil
	case Regex:
		return RegexValue(t), nil
	case map[string]any:
		return fromFields(mapAnySeq(t))
	}

	rv := goreflect.ValueOf(v)
	for rv.Kind() == goreflect.Ptr || rv.Kind() == goreflect.Interface {
		if rv.IsNil() {
			return Null(), nil
		}
		rv = rv.Elem()
		v = rv.Interface()
	}

	switch rv.Kind() {
	case goreflect.Slice, goreflect.Array:
		elems, n, err := structure.Elements(v)
		if err != nil {
			return Value{}, err
		}
		vals := make([]Value, 0, n)
		for e := range elems {
			ev, err := FromNative(e)
			if err != nil {
				return Value{}, err
			}
			vals = append(vals, ev)
		}
		return ArrValue(NewArray(vals...)), nil
	case goreflect.Map, goreflect.Struct:
		fields, _, err := structure.Fields(v)
		if err != nil {
			return Value{}, err
		}
		return fromFields(fields)
	default:
		return Value{}, fmt.Errorf("bsonval: cannot convert %T to a Value", v)
	}
}

func fromFields(fields func(yield func(string, any) bool)) (Value, error) {
	m := NewDocument()
	var err error
	fields(func(k string, val any) bool {
		var fv Value
		fv, err = FromNative(val)
		if err != nil {
			return false
		}
		m.Append(k, fv)
		return true
	})
	if err != nil {
		return Value{}, err
	}
	return DocValue(m), nil
}

func mapAnySeq(m map[string]any) func(yield func(string, any) bool) {
	return func(yield func(string, any) bool) {
		for k, v := range m {
			if !yield(k, v) {
				return
			}
		}
	}
}

func int64Or32(n int64) Value {
	if n >= -(1<<31) && n < (1<<31) {
		return Int32(int32(n))
	}
	return Int64(n)
}
