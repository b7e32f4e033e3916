// Package matcherr defines the small, closed set of error types the
// parser returns, mirroring the original's BadValue/TypeMismatch split
// (spec.md §7): both always name the offending field or operator, never
// panic, and are safe to present directly to a client.
package matcherr

import (
	"errors"
	"fmt"
	"strings"

	"github.com/docexpr/matchexpr/opreg"
)

// BadValue reports a malformed operator argument or an unrecognized
// operator key: the caller gave us a document that is structurally
// wrong for the operator in play.
type BadValue struct {
	Field string
	Msg   string
}

func (e *BadValue) Error() string {
	if e.Field == "" {
		return e.Msg
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Msg)
}

// TypeMismatch reports an operator argument of the right shape but the
// wrong BSON type (e.g. $type given a boolean).
type TypeMismatch struct {
	Field string
	Msg   string
}

func (e *TypeMismatch) Error() string {
	if e.Field == "" {
		return e.Msg
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Msg)
}

// NoWhereParseContext is returned for a bare $where when the caller
// never installed a $where callback via plugin.Registry (spec.md §5/§6).
type NoWhereParseContext struct{}

func (e *NoWhereParseContext) Error() string {
	return "no context for $where parsing; $where queries are not supported in this context"
}

// UnknownOperator builds a BadValue for a key the opreg table doesn't
// recognize, enriched with a "did you mean" suggestion when one scores
// close enough under edit distance (spec.md §6, §7).
func UnknownOperator(field, key string) *BadValue {
	return unknownOperator(field, "unknown operator", key)
}

// UnknownTopLevelOperator builds the spec.md §4.1 "unknown top level
// operator: <name>" BadValue, with no suggestion appended.
func UnknownTopLevelOperator(key string) *BadValue {
	return BadValuef("", "unknown top level operator: %s", key)
}

func unknownOperator(field, prefix, key string) *BadValue {
	msg := fmt.Sprintf("%s: %s", prefix, key)
	if sugg := opreg.Suggest(key); len(sugg) > 0 {
		msg = fmt.Sprintf("%s (did you mean %s?)", msg, strings.Join(sugg, ", "))
	}
	return &BadValue{Field: field, Msg: msg}
}

// BadValuef builds a BadValue with a formatted message.
func BadValuef(field, format string, args ...any) *BadValue {
	return &BadValue{Field: field, Msg: fmt.Sprintf(format, args...)}
}

// TypeMismatchf builds a TypeMismatch with a formatted message.
func TypeMismatchf(field, format string, args ...any) *TypeMismatch {
	return &TypeMismatch{Field: field, Msg: fmt.Sprintf(format, args...)}
}

// IsBadValue reports whether err is (or wraps) a *BadValue.
func IsBadValue(err error) bool {
	var bv *BadValue
	return errors.As(err, &bv)
}

// IsTypeMismatch reports whether err is (or wraps) a *TypeMismatch.
func IsTypeMismatch(err error) bool {
	var tm *TypeMismatch
	return errors.As(err, &tm)
}
