// Package matchexpr parses a document-shaped query predicate into a
// match expression tree: a typed abstract syntax tree a downstream
// evaluator can apply to candidate documents.
//
// The basic usage starts with building a [bsonval.Document] — either
// directly, via [bsonval.DecodeJSON], or from a native Go value via
// [bsonval.FromNative] — and calling [Parse].
package matchexpr

import (
	"log/slog"

	"github.com/docexpr/matchexpr/astexpr"
	"github.com/docexpr/matchexpr/bsonval"
	"github.com/docexpr/matchexpr/config"
	"github.com/docexpr/matchexpr/matcherr"
	"github.com/docexpr/matchexpr/parser"
	"github.com/docexpr/matchexpr/plugin"
)

// Node is a match expression tree node, re-exported for callers that
// only need to consume a tree without importing astexpr directly.
type Node = astexpr.Node

// Kind identifies a Node's variant.
type Kind = astexpr.Kind

// Document is the order-preserving document value model consumed by
// Parse.
type Document = bsonval.Document

// Value is one element of that document value model.
type Value = bsonval.Value

// Config holds the parser's tunables (depth limit and similar).
type Config = config.Config

// DefaultConfig returns the parser's out-of-the-box settings.
func DefaultConfig() Config { return config.DefaultConfig() }

// LoadConfig decodes m into a Config, overriding DefaultConfig's
// values with whatever m sets.
func LoadConfig(m map[string]any) (Config, error) { return config.Load(m) }

// Registry holds the pluggable $where/$text/geo callbacks.
type Registry = plugin.Registry

// RegistryOption configures a Registry during [Registry.Install]:
// [WithWhere], [WithText], [WithGeo].
type RegistryOption = plugin.Option

// WhereFn parses a $where argument into an opaque payload the
// evaluator later understands. The parser itself never executes
// JavaScript.
type WhereFn = plugin.WhereFn

// TextFn parses a $text sub-document's arguments into an opaque
// payload.
type TextFn = plugin.TextFn

// GeoFn parses a geo operator's sub-document into an opaque payload.
type GeoFn = plugin.GeoFn

// NewRegistry returns a Registry wired to stub callbacks until
// installed with [Registry.Install].
func NewRegistry() *Registry { return plugin.New() }

// WithWhere installs a real $where callback on a Registry.
func WithWhere(fn WhereFn) RegistryOption { return plugin.WithWhere(fn) }

// WithText installs a real $text callback on a Registry.
func WithText(fn TextFn) RegistryOption { return plugin.WithText(fn) }

// WithGeo installs a real geo callback on a Registry.
func WithGeo(fn GeoFn) RegistryOption { return plugin.WithGeo(fn) }

// BadValue reports a malformed operator argument or unrecognized
// operator key.
type BadValue = matcherr.BadValue

// TypeMismatch reports an operator argument of the right shape but the
// wrong BSON type.
type TypeMismatch = matcherr.TypeMismatch

// NoWhereParseContext is returned for a bare $where when no $where
// callback has been installed.
type NoWhereParseContext = matcherr.NoWhereParseContext

// Option configures a [Parser] at construction: [WithConfig],
// [WithRegistry].
type Option = parser.Option

// WithConfig overrides the default Config on a Parser built with New.
func WithConfig(cfg Config) Option { return parser.WithConfig(cfg) }

// WithRegistry attaches a Registry to a Parser built with New.
func WithRegistry(r *Registry) Option { return parser.WithRegistry(r) }

// WithLogger overrides the slog.Logger a Parser built with New reports
// parse failures to.
func WithLogger(l *slog.Logger) Option { return parser.WithLogger(l) }

// Parser translates documents into match expression trees.
type Parser = parser.Parser

// New builds a Parser ready to Parse documents.
func New(opts ...Option) *Parser { return parser.New(opts...) }

// Parse translates doc into a match expression tree using a Parser
// built from DefaultConfig and a stub-only Registry. Build a [Parser]
// via [New] directly when $where/$text/geo support is needed.
func Parse(doc Document) (*Node, error) { return parser.Parse(doc) }
