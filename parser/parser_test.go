package parser_test

import (
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/docexpr/matchexpr/astexpr"
	"github.com/docexpr/matchexpr/bsonval"
	"github.com/docexpr/matchexpr/config"
	"github.com/docexpr/matchexpr/matcherr"
	"github.com/docexpr/matchexpr/parser"
	"github.com/docexpr/matchexpr/plugin"
)

// doc builds a bsonval.Document from a plain map literal the way a
// caller working in native Go values would. Go map iteration order is
// randomized, so doc is only used where the test doesn't care which
// order sibling keys end up in; order-sensitive tests build their
// document from a JSON literal via jdoc instead, since JSON source
// order is what bsonval.Document actually promises to preserve.
func doc(m map[string]any) bsonval.Document {
	v, err := bsonval.FromNative(m)
	if err != nil {
		panic(err)
	}
	d, _ := v.AsDocument()
	return d
}

// jdoc builds a bsonval.Document from a JSON literal, preserving key
// order exactly as written.
func jdoc(json string) bsonval.Document {
	v, err := bsonval.ParseJSON([]byte(json))
	if err != nil {
		panic(err)
	}
	d, _ := v.AsDocument()
	return d
}

type ParserTestSuite struct {
	suite.Suite
	p *parser.Parser
}

func TestParserTestSuite(t *testing.T) {
	suite.Run(t, new(ParserTestSuite))
}

func (s *ParserTestSuite) SetupTest() {
	s.p = parser.New()
}

func (s *ParserTestSuite) parse(m map[string]any) *astexpr.Node {
	n, err := s.p.Parse(doc(m))
	s.Require().NoError(err)
	return n
}

func (s *ParserTestSuite) parseErr(m map[string]any) error {
	_, err := s.p.Parse(doc(m))
	s.Require().Error(err)
	return err
}

func (s *ParserTestSuite) parseJSON(json string) *astexpr.Node {
	n, err := s.p.Parse(jdoc(json))
	s.Require().NoError(err)
	return n
}

// spec.md §8 worked examples.

func (s *ParserTestSuite) TestSimpleEquality() {
	n := s.parse(map[string]any{"a": 1})
	s.Equal("EQ(a,1)", n.SExpr())
}

func (s *ParserTestSuite) TestComparatorConjunction() {
	n := s.parseJSON(`{"a": {"$gt": 3, "$lt": 10}}`)
	s.Equal("AND(GT(a,3), LT(a,10))", n.SExpr())
}

func (s *ParserTestSuite) TestTopLevelOr() {
	n := s.parse(map[string]any{
		"$or": []any{
			map[string]any{"a": 1},
			map[string]any{"b": 2},
		},
	})
	s.Equal("OR(EQ(a,1), EQ(b,2))", n.SExpr())
}

func (s *ParserTestSuite) TestNeBecomesNotEq() {
	n := s.parse(map[string]any{"a": map[string]any{"$ne": 5}})
	s.Equal("NOT(EQ(a,5))", n.SExpr())
}

func (s *ParserTestSuite) TestDBRefLiteralAsSubFieldIsEquality() {
	n := s.parse(map[string]any{"x": map[string]any{"$ref": "c", "$id": 1}})
	s.Equal(astexpr.EQ, n.Kind)
	s.Equal("x", n.Path)
}

func (s *ParserTestSuite) TestDBRefAtTopLevelIsFieldConjunction() {
	n := s.parse(map[string]any{"$ref": "c", "$id": 1})
	s.Equal(astexpr.AND, n.Kind)
	s.Require().Len(n.Children, 2)
}

func (s *ParserTestSuite) TestAllEmptyArrayIsFalse() {
	n := s.parse(map[string]any{"a": map[string]any{"$all": []any{}}})
	s.Equal(astexpr.FALSE, n.Kind)
}

func (s *ParserTestSuite) TestAllMixedElemMatchAndScalarErrors() {
	err := s.parseErr(map[string]any{
		"a": map[string]any{
			"$all": []any{
				map[string]any{"$elemMatch": map[string]any{"b": 1}},
				5,
			},
		},
	})
	s.True(matcherr.IsBadValue(err))
}

func (s *ParserTestSuite) TestOptionsAtTopLevelErrors() {
	err := s.parseErr(map[string]any{"$options": "i"})
	s.True(matcherr.IsBadValue(err))
}

func (s *ParserTestSuite) TestRegexAndOptionsOrderIndependent() {
	a := s.parse(map[string]any{"a": map[string]any{"$regex": "x", "$options": "i"}})
	b := s.parse(map[string]any{"a": map[string]any{"$options": "i", "$regex": "x"}})
	s.Equal(a.SExpr(), b.SExpr())
	s.Equal(`REGEX(a,"x","i")`, a.SExpr())
}

func (s *ParserTestSuite) TestAtomicAtTopLevel() {
	n := s.parse(map[string]any{"$atomic": true})
	s.True(n.ContainsKind(astexpr.ATOMIC))
}

func (s *ParserTestSuite) TestAtomicNestedUnderFieldErrors() {
	err := s.parseErr(map[string]any{"a": map[string]any{"$atomic": true}})
	s.True(matcherr.IsBadValue(err))
}

// $not golden matrix.

func (s *ParserTestSuite) TestNotEmptyDocumentErrors() {
	err := s.parseErr(map[string]any{"a": map[string]any{"$not": map[string]any{}}})
	s.True(matcherr.IsBadValue(err))
}

func (s *ParserTestSuite) TestNotScalarErrors() {
	err := s.parseErr(map[string]any{"a": map[string]any{"$not": 5}})
	s.True(matcherr.IsBadValue(err))
}

func (s *ParserTestSuite) TestNotLogicalOperatorErrors() {
	err := s.parseErr(map[string]any{
		"a": map[string]any{
			"$not": map[string]any{"$and": []any{map[string]any{"b": 1}}},
		},
	})
	s.True(matcherr.IsBadValue(err))
}

func (s *ParserTestSuite) TestNotWrapsMultipleComparatorsInSingleNot() {
	n := s.parse(map[string]any{
		"a": map[string]any{"$not": map[string]any{"$gt": 1, "$lt": 5}},
	})
	s.Equal(astexpr.NOT, n.Kind)
	s.Require().Len(n.Children, 1)
	s.Equal(astexpr.AND, n.Children[0].Kind)
	s.Require().Len(n.Children[0].Children, 2)
}

func (s *ParserTestSuite) TestNotRegexWrapsRegexDirectly() {
	n := s.parse(map[string]any{
		"a": map[string]any{"$not": bsonval.Regex{Pattern: "x", Flags: "i"}},
	})
	s.Equal(astexpr.NOT, n.Kind)
	s.Require().Len(n.Children, 1)
	s.Equal(astexpr.REGEX, n.Children[0].Kind)
}

// Other operators.

func (s *ParserTestSuite) TestExists() {
	n := s.parse(map[string]any{"a": map[string]any{"$exists": true}})
	s.Equal(astexpr.EXISTS, n.Kind)

	n = s.parse(map[string]any{"a": map[string]any{"$exists": false}})
	s.Equal(astexpr.NOT, n.Kind)
	s.Equal(astexpr.EXISTS, n.Children[0].Kind)
}

func (s *ParserTestSuite) TestSizeNegativeIntIsSentinel() {
	n := s.parse(map[string]any{"a": map[string]any{"$size": -1}})
	s.Equal(-1, n.Size)
}

func (s *ParserTestSuite) TestSizeInexactDoubleIsSentinel() {
	n := s.parse(map[string]any{"a": map[string]any{"$size": 2.5}})
	s.Equal(-1, n.Size)
}

func (s *ParserTestSuite) TestSizeExactDouble() {
	n := s.parse(map[string]any{"a": map[string]any{"$size": 3.0}})
	s.Equal(3, n.Size)
}

func (s *ParserTestSuite) TestModRequiresExactlyTwoArgs() {
	err := s.parseErr(map[string]any{"a": map[string]any{"$mod": []any{4}}})
	s.True(matcherr.IsBadValue(err))

	err = s.parseErr(map[string]any{"a": map[string]any{"$mod": []any{4, 0, 1}}})
	s.True(matcherr.IsBadValue(err))
}

func (s *ParserTestSuite) TestMod() {
	n := s.parse(map[string]any{"a": map[string]any{"$mod": []any{4, 2}}})
	s.Equal(astexpr.MOD, n.Kind)
	s.Equal(int32(4), n.Mod.Divisor)
	s.Equal(int32(2), n.Mod.Remainder)
}

func (s *ParserTestSuite) TestTypeByStringAlias() {
	n := s.parse(map[string]any{"a": map[string]any{"$type": "string"}})
	s.True(n.TypeValid)
	s.Equal(bsonval.TypeString, n.TypeCode)
}

func (s *ParserTestSuite) TestTypeByExactInt32() {
	n := s.parse(map[string]any{"a": map[string]any{"$type": int32(2)}})
	s.True(n.TypeValid)
	s.Equal(bsonval.Type(2), n.TypeCode)
}

func (s *ParserTestSuite) TestTypeByInexactDoubleIsInvalidSentinel() {
	n := s.parse(map[string]any{"a": map[string]any{"$type": 2.5}})
	s.False(n.TypeValid)
}

func (s *ParserTestSuite) TestTypeUnknownAliasErrors() {
	err := s.parseErr(map[string]any{"a": map[string]any{"$type": "not-a-type"}})
	s.True(matcherr.IsBadValue(err))
}

func (s *ParserTestSuite) TestElemMatchValueForm() {
	n := s.parse(map[string]any{
		"a": map[string]any{"$elemMatch": map[string]any{"$gt": 1, "$lt": 5}},
	})
	s.Equal(astexpr.ELEM_MATCH_VALUE, n.Kind)
	s.Len(n.Children, 2)
}

func (s *ParserTestSuite) TestElemMatchObjectForm() {
	n := s.parse(map[string]any{
		"a": map[string]any{"$elemMatch": map[string]any{"b": 1, "c": 2}},
	})
	s.Equal(astexpr.ELEM_MATCH_OBJECT, n.Kind)
}

func (s *ParserTestSuite) TestInAndNin() {
	n := s.parse(map[string]any{"a": map[string]any{"$in": []any{1, 2, 3}}})
	s.Equal(astexpr.IN, n.Kind)
	s.Len(n.In, 3)

	n = s.parse(map[string]any{"a": map[string]any{"$nin": []any{1, 2}}})
	s.Equal(astexpr.NOT, n.Kind)
	s.Equal(astexpr.IN, n.Children[0].Kind)
}

func (s *ParserTestSuite) TestInRejectsNestedExpressionDocument() {
	err := s.parseErr(map[string]any{
		"a": map[string]any{"$in": []any{map[string]any{"$gt": 1}}},
	})
	s.True(matcherr.IsBadValue(err))
}

func (s *ParserTestSuite) TestComparatorRejectsRegexArgument() {
	err := s.parseErr(map[string]any{
		"a": map[string]any{"$gt": bsonval.Regex{Pattern: "x"}},
	})
	s.True(matcherr.IsBadValue(err))
}

func (s *ParserTestSuite) TestUnknownOperatorSuggestsTypo() {
	err := s.parseErr(map[string]any{"a": map[string]any{"$elemMach": map[string]any{}}})
	s.Contains(err.Error(), "did you mean")
}

// Geo short-circuit.

func (s *ParserTestSuite) TestGeoShortCircuitRoutesWholeSubDocument() {
	var gotOp string
	p := parser.New(parser.WithRegistry(func() *plugin.Registry {
		r := plugin.New()
		_ = r.Install(s.T().Context(), plugin.WithGeo(func(op string, arg bsonval.Value) (any, error) {
			gotOp = op
			return "geo-payload", nil
		}))
		return r
	}()))

	n, err := p.Parse(jdoc(`{"a": {"$near": [0, 0], "$maxDistance": 1000}}`))
	s.Require().NoError(err)
	s.Equal("$near", gotOp)
	s.Equal(astexpr.GEO_NEAR, n.Kind)
	s.Equal("geo-payload", n.Plugin)
}

func (s *ParserTestSuite) TestElemMatchIsNotMistakenForGeo() {
	// $elemMatch's value is itself a document, like a geo operator's
	// argument, but the key isn't a geo keyword so it must not be
	// routed to the geo callback.
	n := s.parse(map[string]any{
		"a": map[string]any{"$elemMatch": map[string]any{"b": 1}},
	})
	s.Equal(astexpr.ELEM_MATCH_OBJECT, n.Kind)
}

// $where / $text without an installed callback.

func (s *ParserTestSuite) TestWhereWithoutRegistryErrors() {
	_, err := s.p.Parse(doc(map[string]any{"$where": "function() { return true; }"}))
	s.Error(err)
	var noCtx *matcherr.NoWhereParseContext
	s.ErrorAs(err, &noCtx)
}

func (s *ParserTestSuite) TestWhereOnFieldErrors() {
	err := s.parseErr(map[string]any{"a": map[string]any{"$where": "x"}})
	s.True(matcherr.IsBadValue(err))
}

// Depth limit.

func (s *ParserTestSuite) TestDepthLimitExceeded() {
	p := parser.New(parser.WithConfig(config.Config{MaxDepth: 1}))
	_, err := p.Parse(doc(map[string]any{
		"a": map[string]any{"$not": map[string]any{"$gt": 1}},
	}))
	s.Error(err)
	s.True(matcherr.IsBadValue(err))
}

// Dedupe of scalar $all entries.

func (s *ParserTestSuite) TestAllDedupesScalarEntriesWhenConfigured() {
	cfg := config.DefaultConfig()
	cfg.DedupeAllScalars = true
	p := parser.New(parser.WithConfig(cfg))

	n, err := p.Parse(doc(map[string]any{"a": map[string]any{"$all": []any{1, 2, 1}}}))
	s.Require().NoError(err)
	s.Len(n.Children, 2)
}

func (s *ParserTestSuite) TestAllKeepsDuplicatesByDefault() {
	n := s.parse(map[string]any{"a": map[string]any{"$all": []any{1, 2, 1}}})
	s.Len(n.Children, 3)
}
