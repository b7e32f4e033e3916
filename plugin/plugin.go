// Package plugin holds the pluggable callback registry for the three
// sub-languages the parser itself never implements — $where,
// text search, and geo queries (spec.md §2/§6). A caller that wants
// those operators supported installs real callbacks once, at startup;
// after that the registry is read-only, matching spec.md §5's
// concurrency model for values shared across concurrent Parse calls.
package plugin

import (
	"context"

	"github.com/docexpr/matchexpr/bsonval"
	"github.com/docexpr/matchexpr/internal/onceguard"
	"github.com/docexpr/matchexpr/matcherr"
)

// WhereFn parses a $where argument (a JS-source string or a
// bsonval.Value holding one) into an opaque payload the evaluator later
// understands. The parser itself never executes JavaScript.
type WhereFn func(arg bsonval.Value) (any, error)

// TextFn parses a $text sub-document's arguments ($search, $language,
// $caseSensitive, $diacriticSensitive) into an opaque payload.
type TextFn func(arg bsonval.Value) (any, error)

// GeoFn parses a geo operator's sub-document ($near, $geoWithin,
// $geoIntersects, …) into an opaque payload.
type GeoFn func(op string, arg bsonval.Value) (any, error)

func stubWhere(bsonval.Value) (any, error) {
	return nil, &matcherr.NoWhereParseContext{}
}

func stubText(bsonval.Value) (any, error) {
	return nil, matcherr.BadValuef("$text", "$text is not linked in this parser build")
}

func stubGeo(op string, _ bsonval.Value) (any, error) {
	return nil, matcherr.BadValuef(op, "geo queries are not linked in this parser build")
}

// Registry holds the three callbacks. Its zero value is not usable; New
// returns a Registry whose every slot resolves to an error-returning
// stub until Install installs real implementations.
type Registry struct {
	guard *onceguard.Guard
	where WhereFn
	text  TextFn
	geo   GeoFn
}

// New returns a Registry wired to stub callbacks.
func New() *Registry {
	return &Registry{
		guard: onceguard.New(),
		where: stubWhere,
		text:  stubText,
		geo:   stubGeo,
	}
}

// Option configures a Registry during Install.
type Option func(*Registry)

// WithWhere installs a real $where callback.
func WithWhere(fn WhereFn) Option { return func(r *Registry) { r.where = fn } }

// WithText installs a real $text callback.
func WithText(fn TextFn) Option { return func(r *Registry) { r.text = fn } }

// WithGeo installs a real geo callback.
func WithGeo(fn GeoFn) Option { return func(r *Registry) { r.geo = fn } }

// Install applies opts exactly once. A second call is a no-op success;
// concurrent callers block on the first.
func (r *Registry) Install(ctx context.Context, opts ...Option) error {
	return r.guard.Install(ctx, func() error {
		for _, opt := range opts {
			opt(r)
		}
		return nil
	})
}

// Where invokes the installed (or stub) $where callback.
func (r *Registry) Where(arg bsonval.Value) (any, error) { return r.where(arg) }

// Text invokes the installed (or stub) $text callback.
func (r *Registry) Text(arg bsonval.Value) (any, error) { return r.text(arg) }

// Geo invokes the installed (or stub) geo callback for op.
func (r *Registry) Geo(op string, arg bsonval.Value) (any, error) { return r.geo(op, arg) }
