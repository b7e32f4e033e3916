// Package bsonval implements the document value model consumed by the
// parser: a tagged sum over scalar, array and document shapes with
// order-preserving field iteration. The extended-operator-token lookup
// the parser dispatches on lives in package opreg.
package bsonval

import (
	"iter"
	"time"
)

// Type tags the concrete shape carried by a [Value].
type Type uint8

// Value type tags, one per spec.md §2.1 variant.
const (
	TypeDouble Type = iota
	TypeString
	TypeDocument
	TypeArray
	TypeBinary
	TypeObjectID
	TypeBool
	TypeDate
	TypeNull
	TypeRegex
	TypeInt32
	TypeInt64
	TypeTimestamp
	TypeMinKey
	TypeMaxKey
	TypeUndefined
	TypeEOO
)

// String names a Type for diagnostics and $type error messages.
func (t Type) String() string {
	switch t {
	case TypeDouble:
		return "double"
	case TypeString:
		return "string"
	case TypeDocument:
		return "object"
	case TypeArray:
		return "array"
	case TypeBinary:
		return "binData"
	case TypeObjectID:
		return "objectId"
	case TypeBool:
		return "bool"
	case TypeDate:
		return "date"
	case TypeNull:
		return "null"
	case TypeRegex:
		return "regex"
	case TypeInt32:
		return "int"
	case TypeInt64:
		return "long"
	case TypeTimestamp:
		return "timestamp"
	case TypeMinKey:
		return "minKey"
	case TypeMaxKey:
		return "maxKey"
	case TypeUndefined:
		return "undefined"
	default:
		return "missing"
	}
}

// ObjectID is a 12-byte document identifier.
type ObjectID [12]byte

// Timestamp is an internal replication timestamp (seconds, ordinal).
type Timestamp struct {
	Seconds uint32
	Ordinal uint32
}

// Regex carries a regular expression pattern plus its Mongo-style flag
// letters (i, m, s, x, …); flags are kept verbatim, not translated into
// [regexp] syntax, since translation is an evaluator concern.
type Regex struct {
	Pattern string
	Flags   string
}

type minKey struct{}
type maxKey struct{}

// MinKey and MaxKey are the BSON sentinel extremes.
var (
	MinKey = minKey{}
	MaxKey = maxKey{}
)

// Value is one element of the document value model: a type tag plus its
// Go-native payload.
type Value struct {
	typ Type
	raw any
}

// Type reports the value's tag.
func (v Value) Type() Type { return v.typ }

// Raw returns the underlying Go representation: float64, string,
// Document, Array, []byte, ObjectID, bool, time.Time, nil, Regex, int32,
// int64, Timestamp, or nil/struct{}{} for Undefined/EOO/MinKey/MaxKey.
func (v Value) Raw() any { return v.raw }

// IsZero reports whether v is the [EOO] sentinel (absence, as opposed to
// an explicit [Null]). The Go zero Value{} is tagged TypeDouble and is
// not reported as zero.
func (v Value) IsZero() bool { return v.typ == TypeEOO && v.raw == nil }

// Double wraps a float64 as a Value.
func Double(f float64) Value { return Value{typ: TypeDouble, raw: f} }

// String wraps a string as a Value.
func String(s string) Value { return Value{typ: TypeString, raw: s} }

// Bool wraps a bool as a Value.
func Bool(b bool) Value { return Value{typ: TypeBool, raw: b} }

// Int32 wraps an int32 as a Value.
func Int32(n int32) Value { return Value{typ: TypeInt32, raw: n} }

// Int64 wraps an int64 as a Value.
func Int64(n int64) Value { return Value{typ: TypeInt64, raw: n} }

// Null returns the Value representing an explicit JSON/BSON null.
func Null() Value { return Value{typ: TypeNull, raw: nil} }

// Undefined returns the Value representing an absent/undefined field.
func Undefined() Value { return Value{typ: TypeUndefined, raw: nil} }

// EOO returns the end-of-object sentinel Value, used where the parser
// must distinguish "key present with no element" from any real value.
func EOO() Value { return Value{typ: TypeEOO, raw: nil} }

// Date wraps a time.Time as a Value.
func Date(t time.Time) Value { return Value{typ: TypeDate, raw: t} }

// Bin wraps binary data as a Value.
func Bin(b []byte) Value { return Value{typ: TypeBinary, raw: b} }

// OID wraps an ObjectID as a Value.
func OID(id ObjectID) Value { return Value{typ: TypeObjectID, raw: id} }

// RegexValue wraps a Regex as a Value.
func RegexValue(r Regex) Value { return Value{typ: TypeRegex, raw: r} }

// Ts wraps a Timestamp as a Value.
func Ts(t Timestamp) Value { return Value{typ: TypeTimestamp, raw: t} }

// MinKeyValue and MaxKeyValue wrap the BSON sentinel extremes.
func MinKeyValue() Value { return Value{typ: TypeMinKey, raw: MinKey} }
func MaxKeyValue() Value { return Value{typ: TypeMaxKey, raw: MaxKey} }

// DocValue wraps a Document as a Value.
func DocValue(d Document) Value { return Value{typ: TypeDocument, raw: d} }

// ArrValue wraps an Array as a Value.
func ArrValue(a Array) Value { return Value{typ: TypeArray, raw: a} }

// AsDocument returns the wrapped Document, if any.
func (v Value) AsDocument() (Document, bool) {
	d, ok := v.raw.(Document)
	return d, ok
}

// AsArray returns the wrapped Array, if any.
func (v Value) AsArray() (Array, bool) {
	a, ok := v.raw.(Array)
	return a, ok
}

// AsRegex returns the wrapped Regex, if any.
func (v Value) AsRegex() (Regex, bool) {
	r, ok := v.raw.(Regex)
	return r, ok
}

// AsString returns the wrapped string, if any.
func (v Value) AsString() (string, bool) {
	s, ok := v.raw.(string)
	return s, ok
}

// AsBool returns the wrapped bool, if any.
func (v Value) AsBool() (bool, bool) {
	b, ok := v.raw.(bool)
	return b, ok
}

// Document is an ordered field→element mapping. Iter yields pairs in
// stored (insertion) order: repeated parses of the same input must
// produce structurally identical trees, and error messages that quote
// "the offending document's string form" must be deterministic.
type Document interface {
	Iter() iter.Seq2[string, Value]
	Len() int
	Get(field string) (Value, bool)
}

// Array is an ordered list of elements.
type Array interface {
	Iter() iter.Seq[Value]
	Len() int
	At(i int) Value
}

// doc is the default order-preserving [Document] implementation: a
// slice of key/value pairs plus an index for O(1) point lookups.
type doc struct {
	keys  []string
	vals  []Value
	index map[string]int
}

// NewDocument returns an empty, order-preserving [Document] builder.
func NewDocument() MutableDocument {
	return &doc{index: make(map[string]int)}
}

// MutableDocument is a [Document] that can still be appended to; used by
// the JSON reader and native-value adapter while assembling a document.
type MutableDocument interface {
	Document
	Append(field string, v Value) MutableDocument
}

func (d *doc) Append(field string, v Value) MutableDocument {
	if i, ok := d.index[field]; ok {
		d.vals[i] = v
		return d
	}
	d.index[field] = len(d.keys)
	d.keys = append(d.keys, field)
	d.vals = append(d.vals, v)
	return d
}

func (d *doc) Len() int { return len(d.keys) }

func (d *doc) Get(field string) (Value, bool) {
	i, ok := d.index[field]
	if !ok {
		return Value{}, false
	}
	return d.vals[i], true
}

func (d *doc) Iter() iter.Seq2[string, Value] {
	return func(yield func(string, Value) bool) {
		for i, k := range d.keys {
			if !yield(k, d.vals[i]) {
				return
			}
		}
	}
}

// arr is the default [Array] implementation.
type arr struct {
	vals []Value
}

// NewArray wraps a slice of values, in order, as an [Array].
func NewArray(vals ...Value) Array {
	return &arr{vals: vals}
}

func (a *arr) Len() int          { return len(a.vals) }
func (a *arr) At(i int) Value    { return a.vals[i] }
func (a *arr) Iter() iter.Seq[Value] {
	return func(yield func(Value) bool) {
		for _, v := range a.vals {
			if !yield(v) {
				return
			}
		}
	}
}
