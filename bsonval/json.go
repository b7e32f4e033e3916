package bsonval

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"
	"unicode"
	"unicode/utf16"
	"unicode/utf8"

	"github.com/dolmen-go/contextio"
)

// Adapted from the teacher's internal/adapter/data JSON reader, changed
// to build order-preserving [Document]/[Array] values instead of a Go
// map, and to tag numbers as Int32/Int64/Double rather than collapsing
// everything to float64.

var (
	// ErrTrailingData is returned when bytes remain after the JSON value.
	ErrTrailingData = errors.New("trailing data after JSON")
	// ErrInvalidUTF8Char is returned for an incomplete/invalid UTF-8 char.
	ErrInvalidUTF8Char = errors.New("invalid utf8 char")
	// ErrExpectedString is returned when an object key is not a string.
	ErrExpectedString = errors.New("expected string")
	// ErrUnterminatedString is returned for a string missing its closing quote.
	ErrUnterminatedString = errors.New("unterminated string")
	// ErrNoComma is returned when a comma is expected between elements.
	ErrNoComma = errors.New("expected comma")
	// ErrNoColon is returned when a colon is expected after an object key.
	ErrNoColon = errors.New("expected colon")
	// ErrInvalidNumber is returned when a numeric literal cannot be parsed.
	ErrInvalidNumber = errors.New("invalid JSON number")
)

// ErrDuplicateKey is returned when an object repeats a field name; a
// query predicate that did this almost certainly has a typo, so the
// decoder rejects it outright rather than silently keeping the last
// value (spec.md §9 Open Question, resolved: reject).
type ErrDuplicateKey struct{ Key string }

func (e ErrDuplicateKey) Error() string { return fmt.Sprintf("duplicate key %q", e.Key) }

// ErrInvalidLiteral is returned when a `true`/`false`/`null` literal is malformed.
type ErrInvalidLiteral struct{ Value string }

func (e ErrInvalidLiteral) Error() string { return fmt.Sprintf("invalid literal %q", e.Value) }

// ErrUnknownEscapeChar is returned for an unrecognized string escape.
type ErrUnknownEscapeChar struct{ Char byte }

func (e ErrUnknownEscapeChar) Error() string { return fmt.Sprintf("unknown escape char %q", e.Char) }

// ErrInvalidControlChar is returned for a bare control character in a string.
type ErrInvalidControlChar struct{ Char byte }

func (e ErrInvalidControlChar) Error() string {
	return fmt.Sprintf("invalid control char %q", e.Char)
}

// DecodeJSON reads a single JSON value (object, array or scalar) from r
// and converts it into a [Value]. ctx is honored via [contextio.NewReader]
// so a caller can cancel mid-read of a pathologically large or slow
// predicate source (a query loaded from a network socket or an
// oversized file), mirroring the teacher's own use of contextio around
// its datafile writer.
func DecodeJSON(ctx context.Context, r io.Reader) (Value, error) {
	data, err := io.ReadAll(contextio.NewReader(ctx, r))
	if err != nil {
		return Value{}, err
	}
	return ParseJSON(data)
}

// ParseJSON converts a JSON document already held in memory into a Value.
func ParseJSON(data []byte) (Value, error) {
	p := &jsonParser{data: data, n: len(data)}
	p.skip()
	val, err := p.value()
	if err != nil {
		return Value{}, err
	}
	p.skip()
	if p.i != p.n {
		return Value{}, ErrTrailingData
	}
	return val, nil
}

type jsonParser struct {
	data []byte
	i    int
	n    int
}

func (p *jsonParser) skip() {
	for p.i < p.n {
		switch p.data[p.i] {
		case ' ', '\t', '\n', '\r':
			p.i++
		default:
			return
		}
	}
}

func (p *jsonParser) value() (Value, error) {
	if p.i >= p.n {
		return Value{}, io.ErrUnexpectedEOF
	}
	switch p.data[p.i] {
	case '{':
		return p.obj()
	case '[':
		return p.arr()
	case '"':
		s, err := p.str()
		if err != nil {
			return Value{}, err
		}
		return String(s), nil
	case 't':
		return p.expect("true", Bool(true))
	case 'f':
		return p.expect("false", Bool(false))
	case 'n':
		return p.expect("null", Null())
	default:
		return p.num()
	}
}

func (p *jsonParser) obj() (Value, error) {
	p.i++ // skip '{'
	p.skip()
	m := NewDocument()
	if p.i < p.n && p.data[p.i] == '}' {
		p.i++
		return DocValue(m), nil
	}
	for {
		p.skip()
		key, err := p.str()
		if err != nil {
			return Value{}, err
		}
		p.skip()
		if p.i >= p.n || p.data[p.i] != ':' {
			return Value{}, ErrNoColon
		}
		p.i++
		p.skip()
		val, err := p.value()
		if err != nil {
			return Value{}, err
		}
		if _, dup := m.Get(key); dup {
			return Value{}, ErrDuplicateKey{Key: key}
		}
		m.Append(key, val)
		p.skip()
		if p.i >= p.n {
			return Value{}, io.ErrUnexpectedEOF
		}
		if p.data[p.i] == '}' {
			p.i++
			break
		}
		if p.data[p.i] != ',' {
			return Value{}, ErrNoComma
		}
		p.i++
	}
	if m.Len() == 1 {
		if d, ok := m.Get("$$date"); ok {
			if ms, ok := d.Raw().(float64); ok {
				return Date(time.UnixMilli(int64(ms))), nil
			}
		}
	}
	return DocValue(m), nil
}

func (p *jsonParser) arr() (Value, error) {
	p.i++ // skip '['
	p.skip()
	var out []Value
	if p.i < p.n && p.data[p.i] == ']' {
		p.i++
		return ArrValue(NewArray()), nil
	}
	for {
		val, err := p.value()
		if err != nil {
			return Value{}, err
		}
		out = append(out, val)
		p.skip()
		if p.i >= p.n {
			return Value{}, io.ErrUnexpectedEOF
		}
		if p.data[p.i] == ']' {
			p.i++
			break
		}
		if p.data[p.i] != ',' {
			return Value{}, ErrNoComma
		}
		p.i++
		p.skip()
	}
	return ArrValue(NewArray(out...)), nil
}

func (p *jsonParser) str() (string, error) {
	if p.data[p.i] != '"' {
		return "", ErrExpectedString
	}
	for i := p.i + 1; i < p.n; i++ {
		c := p.data[i]
		switch c {
		case '\\':
			i++
		case '"':
			unquoted := p.data[p.i+1 : i]
			s, err := p.decodeString(unquoted)
			if err != nil {
				return "", err
			}
			p.i = i + 1
			return s, nil
		}
	}
	return "", ErrUnterminatedString
}

func (p *jsonParser) decodeString(b []byte) (string, error) {
	out := make([]byte, len(b)+2*utf8.UTFMax)
	i, w := 0, 0

	for i < len(b) {
		if w >= len(out)-2*utf8.UTFMax {
			nb := make([]byte, (len(out)+utf8.UTFMax)*2)
			copy(nb, out[0:w])
			out = nb
		}
		switch c := b[i]; {
		case c == '\\':
			i++
			switch b[i] {
			case '"', '\\', '/', '\'':
				out[w] = b[i]
				i++
				w++
			case 'b':
				out[w] = '\b'
				i++
				w++
			case 'f':
				out[w] = '\f'
				i++
				w++
			case 'n':
				out[w] = '\n'
				i++
				w++
			case 'r':
				out[w] = '\r'
				i++
				w++
			case 't':
				out[w] = '\t'
				i++
				w++
			case 'u':
				i--
				si, sw, err := p.treatSlashU(b[i:], out[w:])
				if err != nil {
					return "", err
				}
				i += si
				w += sw
			default:
				return "", ErrUnknownEscapeChar{Char: b[i]}
			}
		case c < ' ':
			return "", ErrInvalidControlChar{Char: c}
		case c < utf8.RuneSelf:
			out[w] = c
			i++
			w++
		default:
			rr, size := utf8.DecodeRune(b[i:])
			i += size
			w += utf8.EncodeRune(out[w:], rr)
		}
	}
	return string(out[0:w]), nil
}

func (p *jsonParser) treatSlashU(b []byte, out []byte) (int, int, error) {
	rr := p.getUTF(b)
	if rr < 0 {
		return 0, 0, ErrInvalidUTF8Char
	}
	i := 6
	w := 0
	if utf16.IsSurrogate(rr) {
		rr1 := p.getUTF(b[i:])
		if dec := utf16.DecodeRune(rr, rr1); dec != unicode.ReplacementChar {
			i += 6
			w += utf8.EncodeRune(out, dec)
			return i, w, nil
		}
		rr = unicode.ReplacementChar
	}
	w += utf8.EncodeRune(out, rr)
	return i, w, nil
}

func (p *jsonParser) getUTF(b []byte) rune {
	if len(b) < 6 || b[0] != '\\' || b[1] != 'u' {
		return -1
	}
	r, err := strconv.ParseInt(string(b[2:6]), 16, 64)
	if err != nil {
		return -1
	}
	return rune(r)
}

func (p *jsonParser) num() (Value, error) {
	start := p.i
	isFloat := false
	for p.i < p.n {
		c := p.data[p.i]
		if c == '.' || c == 'e' || c == 'E' {
			isFloat = true
		}
		if (c >= '0' && c <= '9') || c == '.' || c == '-' || c == '+' || c == 'e' || c == 'E' {
			p.i++
		} else {
			break
		}
	}
	s := string(p.data[start:p.i])
	if !isFloat {
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			if n >= -(1<<31) && n < (1<<31) {
				return Int32(int32(n)), nil
			}
			return Int64(n), nil
		}
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return Value{}, fmt.Errorf("%w: %w", ErrInvalidNumber, err)
	}
	return Double(f), nil
}

func (p *jsonParser) expect(lit string, val Value) (Value, error) {
	end := p.i + len(lit)
	if end > p.n || string(p.data[p.i:end]) != lit {
		limit := min(p.n, end)
		return Value{}, ErrInvalidLiteral{Value: string(p.data[p.i:limit])}
	}
	p.i = end
	return val, nil
}
