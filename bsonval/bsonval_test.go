package bsonval_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/docexpr/matchexpr/bsonval"
)

type BsonvalTestSuite struct {
	suite.Suite
}

func TestBsonvalTestSuite(t *testing.T) {
	suite.Run(t, new(BsonvalTestSuite))
}

func (s *BsonvalTestSuite) TestDocumentPreservesInsertionOrder() {
	d := bsonval.NewDocument()
	d.Append("b", bsonval.Int32(2))
	d.Append("a", bsonval.Int32(1))
	d.Append("c", bsonval.Int32(3))

	var keys []string
	for k := range d.Iter() {
		keys = append(keys, k)
	}
	s.Equal([]string{"b", "a", "c"}, keys)
}

func (s *BsonvalTestSuite) TestDocumentAppendOverwritesSameKey() {
	d := bsonval.NewDocument()
	d.Append("a", bsonval.Int32(1))
	d.Append("a", bsonval.Int32(2))
	s.Equal(1, d.Len())
	v, ok := d.Get("a")
	s.True(ok)
	s.Equal(int32(2), v.Raw())
}

func (s *BsonvalTestSuite) TestDocumentGetMissing() {
	d := bsonval.NewDocument()
	_, ok := d.Get("missing")
	s.False(ok)
}

func (s *BsonvalTestSuite) TestArrayIteration() {
	a := bsonval.NewArray(bsonval.Int32(1), bsonval.Int32(2), bsonval.Int32(3))
	s.Equal(3, a.Len())
	s.Equal(int32(2), a.At(1).Raw())

	var sum int32
	for v := range a.Iter() {
		sum += v.Raw().(int32)
	}
	s.Equal(int32(6), sum)
}

func (s *BsonvalTestSuite) TestIsZero() {
	s.True(bsonval.EOO().IsZero())
	s.False(bsonval.Null().IsZero())
	s.False(bsonval.Int32(0).IsZero())
}

func (s *BsonvalTestSuite) TestTypeStrings() {
	s.Equal("int", bsonval.TypeInt32.String())
	s.Equal("long", bsonval.TypeInt64.String())
	s.Equal("double", bsonval.TypeDouble.String())
	s.Equal("object", bsonval.TypeDocument.String())
	s.Equal("array", bsonval.TypeArray.String())
	s.Equal("missing", bsonval.Type(255).String())
}

func (s *BsonvalTestSuite) TestAsAccessorsFailGracefully() {
	v := bsonval.Int32(1)
	_, ok := v.AsDocument()
	s.False(ok)
	_, ok = v.AsArray()
	s.False(ok)
	_, ok = v.AsString()
	s.False(ok)
}

func (s *BsonvalTestSuite) TestParseJSONScalars() {
	v, err := bsonval.ParseJSON([]byte(`42`))
	s.NoError(err)
	s.Equal(bsonval.TypeInt32, v.Type())
	s.Equal(int32(42), v.Raw())

	v, err = bsonval.ParseJSON([]byte(`3.14`))
	s.NoError(err)
	s.Equal(bsonval.TypeDouble, v.Type())

	v, err = bsonval.ParseJSON([]byte(`9999999999`))
	s.NoError(err)
	s.Equal(bsonval.TypeInt64, v.Type())

	v, err = bsonval.ParseJSON([]byte(`true`))
	s.NoError(err)
	s.Equal(bsonval.TypeBool, v.Type())
	s.Equal(true, v.Raw())

	v, err = bsonval.ParseJSON([]byte(`null`))
	s.NoError(err)
	s.Equal(bsonval.TypeNull, v.Type())

	v, err = bsonval.ParseJSON([]byte(`"hello"`))
	s.NoError(err)
	s.Equal("hello", v.Raw())
}

func (s *BsonvalTestSuite) TestParseJSONObjectAndArray() {
	v, err := bsonval.ParseJSON([]byte(`{"a": 1, "b": [1, 2, {"c": "x"}]}`))
	s.Require().NoError(err)
	doc, ok := v.AsDocument()
	s.Require().True(ok)
	s.Equal(2, doc.Len())

	bv, ok := doc.Get("b")
	s.Require().True(ok)
	arr, ok := bv.AsArray()
	s.Require().True(ok)
	s.Equal(3, arr.Len())
}

func (s *BsonvalTestSuite) TestParseJSONRejectsDuplicateKey() {
	_, err := bsonval.ParseJSON([]byte(`{"a": 1, "a": 2}`))
	s.Error(err)
	var dup bsonval.ErrDuplicateKey
	s.ErrorAs(err, &dup)
	s.Equal("a", dup.Key)
}

func (s *BsonvalTestSuite) TestParseJSONTrailingData() {
	_, err := bsonval.ParseJSON([]byte(`1 2`))
	s.ErrorIs(err, bsonval.ErrTrailingData)
}

func (s *BsonvalTestSuite) TestDecodeJSONHonorsCancellation() {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := bsonval.DecodeJSON(ctx, strings.NewReader(`{"a": 1}`))
	s.Error(err)
}

func (s *BsonvalTestSuite) TestFromNativeScalarsAndMap() {
	v, err := bsonval.FromNative(map[string]any{"a": 1, "b": "x", "c": true, "d": nil})
	s.Require().NoError(err)
	doc, ok := v.AsDocument()
	s.Require().True(ok)
	s.Equal(4, doc.Len())

	av, _ := doc.Get("a")
	s.Equal(bsonval.TypeInt32, av.Type())

	dv, _ := doc.Get("d")
	s.Equal(bsonval.TypeNull, dv.Type())
}

func (s *BsonvalTestSuite) TestFromNativeSlice() {
	v, err := bsonval.FromNative([]any{1, "x", 3.5})
	s.Require().NoError(err)
	arr, ok := v.AsArray()
	s.Require().True(ok)
	s.Equal(3, arr.Len())
}

func (s *BsonvalTestSuite) TestFromNativeStruct() {
	type inner struct {
		Name string `matchexpr:"name"`
		Skip string `matchexpr:"-"`
	}
	v, err := bsonval.FromNative(inner{Name: "x", Skip: "ignored"})
	s.Require().NoError(err)
	doc, ok := v.AsDocument()
	s.Require().True(ok)
	s.Equal(1, doc.Len())
	nv, ok := doc.Get("name")
	s.True(ok)
	s.Equal("x", nv.Raw())
}

func (s *BsonvalTestSuite) TestFromNativeRejectsUnconvertibleValue() {
	ch := make(chan int)
	_, err := bsonval.FromNative(ch)
	s.Error(err)
}

func (s *BsonvalTestSuite) TestFromNativePassesThroughValue() {
	v, err := bsonval.FromNative(bsonval.Int32(7))
	s.NoError(err)
	s.Equal(int32(7), v.Raw())
}
