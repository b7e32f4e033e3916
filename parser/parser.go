// Package parser implements the recursive descent translation of a
// document-shaped query predicate into a match expression tree
// (spec.md §4): three mutually recursive entry points — top-level
// document, per-field sub-document, per-operator element — threading a
// single integer depth argument for recursion-bound enforcement.
package parser

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/docexpr/matchexpr/astexpr"
	"github.com/docexpr/matchexpr/bsonval"
	"github.com/docexpr/matchexpr/config"
	"github.com/docexpr/matchexpr/internal/dedupe"
	"github.com/docexpr/matchexpr/internal/structure"
	"github.com/docexpr/matchexpr/matcherr"
	"github.com/docexpr/matchexpr/opreg"
	"github.com/docexpr/matchexpr/plugin"
)

// Parser holds the configuration and callback registry a Parse call
// runs against. Safe for concurrent use across independent documents
// once its Registry has been installed (spec.md §5).
type Parser struct {
	cfg      config.Config
	registry *plugin.Registry
	log      *slog.Logger
}

// Option configures a Parser at construction.
type Option func(*Parser)

// WithConfig overrides the default Config.
func WithConfig(cfg config.Config) Option { return func(p *Parser) { p.cfg = cfg } }

// WithRegistry attaches a callback registry; if omitted, New installs a
// fresh stub-only registry.
func WithRegistry(r *plugin.Registry) Option { return func(p *Parser) { p.registry = r } }

// WithLogger overrides the default slog.Logger (slog.Default()).
func WithLogger(l *slog.Logger) Option { return func(p *Parser) { p.log = l } }

// New builds a Parser ready to Parse documents.
func New(opts ...Option) *Parser {
	p := &Parser{
		cfg: config.DefaultConfig(),
		log: slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.registry == nil {
		p.registry = plugin.New()
	}
	return p
}

// defaultParser is used by the package-level Parse convenience function.
var defaultParser = New()

// Parse translates doc into a match expression tree using a Parser
// built from DefaultConfig and a stub-only registry. Most callers that
// need $where/$text/geo support should build their own *Parser via New
// with a registry carrying real callbacks.
func Parse(doc bsonval.Document) (*astexpr.Node, error) {
	return defaultParser.Parse(doc)
}

// Parse is the public entry point (spec.md §6): it mints a correlation
// id for logging and begins recursive descent at depth 0.
func (p *Parser) Parse(doc bsonval.Document) (*astexpr.Node, error) {
	parseID := uuid.NewString()
	log := p.log.With(slog.String("parse_id", parseID))

	node, err := p.parseDocument(log, doc, 0)
	if err != nil {
		log.Warn("parse failed", slog.String("error", err.Error()))
		return nil, err
	}
	return node, nil
}

// parseDocument is spec.md §4.1's entry, `parse(document, depth)`.
func (p *Parser) parseDocument(log *slog.Logger, doc bsonval.Document, depth int) (*astexpr.Node, error) {
	if depth > p.cfg.MaxDepth {
		log.Warn("depth limit exceeded", slog.Int("depth", depth))
		return nil, matcherr.BadValuef("", "exceeded depth limit of %d", p.cfg.MaxDepth)
	}

	var children []*astexpr.Node
	for field, elem := range doc.Iter() {
		if opreg.IsReserved(field) {
			child, err := p.parseTopLevelOperator(log, field, elem, depth)
			if err != nil {
				return nil, err
			}
			if child != nil {
				children = append(children, child)
			}
			continue
		}

		if elem.Type() == bsonval.TypeDocument {
			sub, _ := elem.AsDocument()
			if p.isExpressionDocument(sub, false) {
				sc, err := p.parseSub(log, field, sub, depth+1)
				if err != nil {
					return nil, err
				}
				children = append(children, sc...)
				continue
			}
		}

		if elem.Type() == bsonval.TypeRegex {
			r, _ := elem.AsRegex()
			children = append(children, astexpr.NewRegex(field, r))
			continue
		}

		children = append(children, astexpr.NewEQ(field, elem))
	}

	return astexpr.Collapse(&astexpr.Node{Kind: astexpr.AND, Children: children}), nil
}

func (p *Parser) parseTopLevelOperator(log *slog.Logger, field string, elem bsonval.Value, depth int) (*astexpr.Node, error) {
	op := field[1:] // strip leading '$'
	switch op {
	case "or", "and", "nor":
		return p.parseLogicalArray(log, field, op, elem, depth)
	case "atomic", "isolated":
		if depth != 0 {
			return nil, matcherr.BadValuef(field, "$%s is only valid at the top level of a query", op)
		}
		if truthy(elem) {
			return astexpr.NewAtomic(), nil
		}
		return nil, nil
	case "where":
		payload, err := p.registry.Where(elem)
		if err != nil {
			return nil, err
		}
		return astexpr.NewPlugin(astexpr.WHERE, field, payload), nil
	case "text":
		if elem.Type() != bsonval.TypeDocument {
			return nil, matcherr.BadValuef(field, "$text needs a document")
		}
		payload, err := p.registry.Text(elem)
		if err != nil {
			return nil, err
		}
		return astexpr.NewPlugin(astexpr.TEXT, field, payload), nil
	case "comment":
		return nil, nil
	case "ref", "id", "db":
		return astexpr.NewEQ(field, elem), nil
	default:
		return nil, matcherr.UnknownTopLevelOperator(field)
	}
}

func (p *Parser) parseLogicalArray(log *slog.Logger, field, op string, elem bsonval.Value, depth int) (*astexpr.Node, error) {
	if elem.Type() != bsonval.TypeArray {
		return nil, matcherr.BadValuef(field, "$%s needs an array", op)
	}
	arr, _ := elem.AsArray()
	children := make([]*astexpr.Node, 0, arr.Len())
	for item := range arr.Iter() {
		if item.Type() != bsonval.TypeDocument {
			return nil, matcherr.BadValuef(field, "$%s entries need to be full documents", op)
		}
		sub, _ := item.AsDocument()
		child, err := p.parseDocument(log, sub, depth+1)
		if err != nil {
			return nil, err
		}
		children = append(children, child)
	}
	switch op {
	case "or":
		return astexpr.NewLogic(astexpr.OR, children), nil
	case "nor":
		return astexpr.NewLogic(astexpr.NOR, children), nil
	default:
		return astexpr.NewLogic(astexpr.AND, children), nil
	}
}

// isExpressionDocument implements spec.md §4.2.
func (p *Parser) isExpressionDocument(doc bsonval.Document, allowIncompleteDBRef bool) bool {
	if doc == nil || doc.Len() == 0 {
		return false
	}
	var first string
	for k := range doc.Iter() {
		first = k
		break
	}
	if !opreg.IsReserved(first) {
		return false
	}
	return !isDBRef(doc, allowIncompleteDBRef)
}

func isDBRef(doc bsonval.Document, loose bool) bool {
	_, hasRef := doc.Get("$ref")
	_, hasID := doc.Get("$id")
	if loose {
		_, hasDB := doc.Get("$db")
		return hasRef || hasID || hasDB
	}
	return hasRef && hasID
}

// parseSub is spec.md §4.3: the sub-field parser entry for expression
// documents like {field: {$gt: 3, $lt: 10}}.
func (p *Parser) parseSub(log *slog.Logger, name string, sub bsonval.Document, depth int) ([]*astexpr.Node, error) {
	if depth > p.cfg.MaxDepth {
		return nil, matcherr.BadValuef(name, "exceeded depth limit of %d", p.cfg.MaxDepth)
	}

	if geoField, isGeo := firstElementIsGeo(sub); isGeo {
		payload, err := p.registry.Geo(geoField, bsonval.DocValue(sub))
		if err != nil {
			return nil, err
		}
		return []*astexpr.Node{astexpr.NewPlugin(geoKindFor(geoField), name, payload)}, nil
	}

	var out []*astexpr.Node
	for key, elem := range sub.Iter() {
		child, err := p.parseSubField(log, sub, name, key, elem, depth)
		if err != nil {
			return nil, err
		}
		if child != nil {
			out = append(out, child)
		}
	}
	return out, nil
}

// firstElementIsGeo peeks at sub's first (key, value) pair only: a geo
// sub-document like {$near: [0,0], $maxDistance: 1000} cannot be
// decomposed key-by-key since $maxDistance has no standalone meaning,
// so the whole thing is routed to the geo callback as one unit when
// the first key is one of the geo keywords and its value is itself a
// document or array (spec.md §4.3).
func firstElementIsGeo(sub bsonval.Document) (field string, ok bool) {
	for k, v := range sub.Iter() {
		isObjShaped := v.Type() == bsonval.TypeDocument || v.Type() == bsonval.TypeArray
		return k, isObjShaped && opreg.GeoKeys(k)
	}
	return "", false
}

func geoKindFor(op string) astexpr.Kind {
	switch op {
	case "$geoWithin", "$within":
		return astexpr.GEO_WITHIN
	case "$geoIntersects":
		return astexpr.GEO_INTERSECTS
	default:
		return astexpr.GEO_NEAR
	}
}

// parseSubField is spec.md §4.4's dispatcher.
func (p *Parser) parseSubField(log *slog.Logger, sub bsonval.Document, name, key string, elem bsonval.Value, depth int) (*astexpr.Node, error) {
	if !opreg.IsReserved(key) {
		return nil, matcherr.UnknownOperator(name, key)
	}
	code, known := opreg.Lookup(key)
	if !known {
		switch key {
		case "$eq":
			return astexpr.NewEQ(name, elem), nil
		case "$not":
			return p.parseNot(log, name, elem, depth)
		case "$where":
			return nil, matcherr.BadValuef(name, "$where cannot be applied to a field")
		default:
			return nil, matcherr.UnknownOperator(name, key)
		}
	}

	switch code {
	case opreg.EQUALITY:
		return astexpr.NewEQ(name, elem), nil
	case opreg.NOT:
		return p.parseNot(log, name, elem, depth)
	case opreg.LT, opreg.LTE, opreg.GT, opreg.GTE:
		if elem.Type() == bsonval.TypeRegex {
			return nil, matcherr.BadValuef(name, "Can't have RegEx as arg to predicate over field '%s'", name)
		}
		return astexpr.NewComparator(comparatorKind(code), name, elem), nil
	case opreg.NE:
		if elem.Type() == bsonval.TypeRegex {
			return nil, matcherr.BadValuef(name, "Can't have regex as arg to $ne")
		}
		return astexpr.NewNE(name, elem), nil
	case opreg.IN:
		entries, err := p.parseArrayFilterEntries(name, elem)
		if err != nil {
			return nil, err
		}
		return astexpr.NewIn(name, entries, false), nil
	case opreg.NIN:
		entries, err := p.parseArrayFilterEntries(name, elem)
		if err != nil {
			return nil, err
		}
		return astexpr.NewIn(name, entries, true), nil
	case opreg.SIZE:
		return p.parseSize(name, elem)
	case opreg.EXISTS:
		return p.parseExists(name, elem)
	case opreg.TYPE:
		return p.parseType(name, elem)
	case opreg.MOD:
		return p.parseMod(name, elem)
	case opreg.OPTIONS:
		if _, hasRegex := sub.Get("$regex"); !hasRegex {
			return nil, matcherr.BadValuef(name, "$options needs a $regex")
		}
		return nil, nil
	case opreg.REGEX:
		return p.parseRegexDocument(name, sub)
	case opreg.ELEM_MATCH:
		return p.parseElemMatch(log, name, elem, depth)
	case opreg.ALL:
		return p.parseAll(log, name, elem, depth)
	case opreg.WITHIN, opreg.GEO_INTERSECTS:
		payload, err := p.registry.Geo(key, bsonval.DocValue(sub))
		if err != nil {
			return nil, err
		}
		return astexpr.NewPlugin(geoKindFor(key), name, payload), nil
	case opreg.WHERE:
		return nil, matcherr.BadValuef(name, "$where cannot be applied to a field")
	case opreg.AND, opreg.OR, opreg.NOR, opreg.ATOMIC, opreg.ISOLATED, opreg.COMMENT, opreg.TEXT:
		return nil, matcherr.BadValuef(name, "%s is only valid as a top level element", key)
	default:
		return nil, matcherr.UnknownOperator(name, key)
	}
}

func comparatorKind(code opreg.Code) astexpr.Kind {
	switch code {
	case opreg.LT:
		return astexpr.LT
	case opreg.LTE:
		return astexpr.LTE
	case opreg.GT:
		return astexpr.GT
	default:
		return astexpr.GTE
	}
}

func (p *Parser) parseSize(name string, elem bsonval.Value) (*astexpr.Node, error) {
	switch elem.Type() {
	case bsonval.TypeInt32:
		n, _ := elem.Raw().(int32)
		if n < 0 {
			return astexpr.NewSize(name, -1), nil
		}
		return astexpr.NewSize(name, int(n)), nil
	case bsonval.TypeInt64:
		n, _ := elem.Raw().(int64)
		if n < 0 {
			return astexpr.NewSize(name, -1), nil
		}
		return astexpr.NewSize(name, int(n)), nil
	case bsonval.TypeDouble:
		f, _ := elem.Raw().(float64)
		if n, ok := structure.ExactInt32(f); ok && n >= 0 {
			return astexpr.NewSize(name, int(n)), nil
		}
		return astexpr.NewSize(name, -1), nil
	case bsonval.TypeString:
		return astexpr.NewSize(name, 0), nil
	default:
		return nil, matcherr.BadValuef(name, "$size needs a number")
	}
}

func (p *Parser) parseExists(name string, elem bsonval.Value) (*astexpr.Node, error) {
	if elem.Type() == bsonval.TypeEOO {
		return nil, matcherr.BadValuef(name, "$exists needs a value")
	}
	return astexpr.NewExists(name, !truthy(elem)), nil
}

// parseNot is spec.md §4.5.
func (p *Parser) parseNot(log *slog.Logger, name string, elem bsonval.Value, depth int) (*astexpr.Node, error) {
	if elem.Type() == bsonval.TypeRegex {
		r, _ := elem.AsRegex()
		return astexpr.NewNot(astexpr.NewRegex(name, r)), nil
	}
	if elem.Type() != bsonval.TypeDocument {
		return nil, matcherr.BadValuef(name, "$not needs a regex or a document")
	}
	sub, _ := elem.AsDocument()
	if sub.Len() == 0 {
		return nil, matcherr.BadValuef(name, "$not cannot be empty")
	}
	for key := range sub.Iter() {
		switch key {
		case "$and", "$or", "$nor":
			return nil, matcherr.BadValuef(name, "$not cannot have a logical operator")
		}
		break
	}
	children, err := p.parseSub(log, name, sub, depth+1)
	if err != nil {
		return nil, err
	}
	return astexpr.NewNot(astexpr.Collapse(&astexpr.Node{Kind: astexpr.AND, Children: children})), nil
}

// parseMod is spec.md §4.6.
func (p *Parser) parseMod(name string, elem bsonval.Value) (*astexpr.Node, error) {
	if elem.Type() != bsonval.TypeArray {
		return nil, matcherr.BadValuef(name, "$mod needs an array")
	}
	arr, _ := elem.AsArray()
	if arr.Len() < 2 {
		return nil, matcherr.BadValuef(name, "$mod needs at least 2 arguments")
	}
	if arr.Len() > 2 {
		return nil, matcherr.BadValuef(name, "$mod needs only 2 arguments")
	}
	divisor, ok := numberInt32(arr.At(0))
	if !ok {
		return nil, matcherr.BadValuef(name, "$mod requires numeric divisor")
	}
	remainder, ok := numberInt32(arr.At(1))
	if !ok {
		return nil, matcherr.BadValuef(name, "$mod requires numeric remainder")
	}
	return astexpr.NewMod(name, divisor, remainder), nil
}

// parseType is spec.md §4.7.
func (p *Parser) parseType(name string, elem bsonval.Value) (*astexpr.Node, error) {
	switch elem.Type() {
	case bsonval.TypeString:
		s, _ := elem.AsString()
		code, ok := opreg.TypeAlias(s)
		if !ok {
			return nil, matcherr.BadValuef(name, "unknown string alias for $type: %s", s)
		}
		return astexpr.NewType(name, code, true), nil
	case bsonval.TypeInt32:
		n, _ := elem.Raw().(int32)
		return astexpr.NewType(name, bsonval.Type(n), true), nil
	case bsonval.TypeInt64, bsonval.TypeDouble:
		var f float64
		switch n := elem.Raw().(type) {
		case int64:
			f = float64(n)
		case float64:
			f = n
		}
		n, exact := structure.ExactInt32(f)
		if !exact {
			return astexpr.NewType(name, 0, false), nil
		}
		return astexpr.NewType(name, bsonval.Type(n), true), nil
	default:
		return nil, matcherr.TypeMismatchf(name, "$type must be a number or a string")
	}
}

// parseElemMatch is spec.md §4.8.
func (p *Parser) parseElemMatch(log *slog.Logger, name string, elem bsonval.Value, depth int) (*astexpr.Node, error) {
	if elem.Type() != bsonval.TypeDocument {
		return nil, matcherr.BadValuef(name, "$elemMatch needs an Object")
	}
	obj, _ := elem.AsDocument()

	if p.isElemMatchValueForm(obj) {
		children, err := p.parseSub(log, "", obj, depth+1)
		if err != nil {
			return nil, err
		}
		return astexpr.NewElemMatchValue(name, children), nil
	}

	sub, err := p.parseDocument(log, obj, depth+1)
	if err != nil {
		return nil, err
	}
	if sub.ContainsKind(astexpr.WHERE) {
		return nil, matcherr.BadValuef(name, "$elemMatch cannot contain $where expression")
	}
	return astexpr.NewElemMatchObject(name, sub), nil
}

func (p *Parser) isElemMatchValueForm(obj bsonval.Document) bool {
	if !p.isExpressionDocument(obj, true) {
		return false
	}
	for k := range obj.Iter() {
		switch k {
		case "$and", "$nor", "$or", "$where":
			return false
		}
		return true
	}
	return false
}

// parseAll is spec.md §4.9.
func (p *Parser) parseAll(log *slog.Logger, name string, elem bsonval.Value, depth int) (*astexpr.Node, error) {
	if elem.Type() != bsonval.TypeArray {
		return nil, matcherr.BadValuef(name, "$all needs an array")
	}
	arr, _ := elem.AsArray()
	if arr.Len() == 0 {
		return astexpr.NewFalse(), nil
	}

	if isElemMatchForm(arr.At(0)) {
		children := make([]*astexpr.Node, 0, arr.Len())
		for item := range arr.Iter() {
			if !isElemMatchForm(item) {
				return nil, matcherr.BadValuef(name, "$all/$elemMatch has to be consistent")
			}
			doc, _ := item.AsDocument()
			emElem, _ := doc.Get("$elemMatch")
			child, err := p.parseElemMatch(log, name, emElem, depth+1)
			if err != nil {
				return nil, err
			}
			children = append(children, child)
		}
		return astexpr.NewLogic(astexpr.AND, children), nil
	}

	items := make([]bsonval.Value, 0, arr.Len())
	for item := range arr.Iter() {
		if item.Type() == bsonval.TypeDocument {
			doc, _ := item.AsDocument()
			if p.isExpressionDocument(doc, false) {
				return nil, matcherr.BadValuef(name, "no $ expressions in $all")
			}
		}
		items = append(items, item)
	}
	if p.cfg.DedupeAllScalars {
		items = dedupe.Dedupe(items, dedupe.ValueHasher{}, dedupe.ValueComparer{})
	}

	children := make([]*astexpr.Node, 0, len(items))
	for _, item := range items {
		if item.Type() == bsonval.TypeRegex {
			r, _ := item.AsRegex()
			children = append(children, astexpr.NewRegex(name, r))
			continue
		}
		children = append(children, astexpr.NewEQ(name, item))
	}
	return astexpr.NewLogic(astexpr.AND, children), nil
}

func isElemMatchForm(v bsonval.Value) bool {
	if v.Type() != bsonval.TypeDocument {
		return false
	}
	doc, _ := v.AsDocument()
	for k := range doc.Iter() {
		return k == "$elemMatch"
	}
	return false
}

// parseRegexDocument is spec.md §4.10.
func (p *Parser) parseRegexDocument(name string, sub bsonval.Document) (*astexpr.Node, error) {
	var r bsonval.Regex
	for key, elem := range sub.Iter() {
		switch key {
		case "$regex":
			switch elem.Type() {
			case bsonval.TypeString:
				s, _ := elem.AsString()
				r.Pattern = s
			case bsonval.TypeRegex:
				er, _ := elem.AsRegex()
				r = er
			default:
				return nil, matcherr.BadValuef(name, "$regex has to be a string")
			}
		case "$options":
			if elem.Type() != bsonval.TypeString {
				return nil, matcherr.BadValuef(name, "$options has to be a string")
			}
			s, _ := elem.AsString()
			r.Flags = s
		}
	}
	return astexpr.NewRegex(name, r), nil
}

// parseArrayFilterEntries is spec.md §4.11.
func (p *Parser) parseArrayFilterEntries(name string, elem bsonval.Value) ([]astexpr.InEntry, error) {
	if elem.Type() != bsonval.TypeArray {
		return nil, matcherr.BadValuef(name, "$in/$nin needs an array")
	}
	arr, _ := elem.AsArray()
	entries := make([]astexpr.InEntry, 0, arr.Len())
	for item := range arr.Iter() {
		if item.Type() == bsonval.TypeDocument {
			doc, _ := item.AsDocument()
			if p.isExpressionDocument(doc, true) {
				return nil, matcherr.BadValuef(name, "cannot nest $ under $in")
			}
		}
		if item.Type() == bsonval.TypeRegex {
			r, _ := item.AsRegex()
			entries = append(entries, astexpr.InEntry{Regex: r, IsRegex: true})
			continue
		}
		entries = append(entries, astexpr.InEntry{Value: item})
	}
	return entries, nil
}

// truthy implements BSON truthiness: false, 0 (any numeric type),
// null and undefined are falsy; everything else, including empty
// strings/documents/arrays, is truthy.
func truthy(v bsonval.Value) bool {
	switch v.Type() {
	case bsonval.TypeBool:
		b, _ := v.AsBool()
		return b
	case bsonval.TypeNull, bsonval.TypeUndefined, bsonval.TypeEOO:
		return false
	case bsonval.TypeInt32:
		n, _ := v.Raw().(int32)
		return n != 0
	case bsonval.TypeInt64:
		n, _ := v.Raw().(int64)
		return n != 0
	case bsonval.TypeDouble:
		f, _ := v.Raw().(float64)
		return f != 0
	default:
		return true
	}
}

// numberInt32 projects a numeric Value onto int32, truncating toward
// zero, and reports whether v was a number at all ($mod only requires
// its arguments be numeric, spec.md §4.6/§9(b) — it does not require
// the double-exactness $type does).
func numberInt32(v bsonval.Value) (int32, bool) {
	switch v.Type() {
	case bsonval.TypeInt32:
		n, _ := v.Raw().(int32)
		return n, true
	case bsonval.TypeInt64:
		n, _ := v.Raw().(int64)
		return int32(n), true
	case bsonval.TypeDouble:
		f, _ := v.Raw().(float64)
		return int32(f), true
	default:
		return 0, false
	}
}

// ParseContext exists so a caller that already holds a cancellable
// context (e.g. it loaded the predicate via bsonval.DecodeJSON) can
// honor it around a parse; the recursive descent itself never blocks,
// so this only checks ctx once up front, mirroring the teacher's own
// light-touch contextio usage rather than threading ctx through every
// frame.
func (p *Parser) ParseContext(ctx context.Context, doc bsonval.Document) (*astexpr.Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return p.Parse(doc)
}
