package ua_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opcuacore/opcuacore/pkg/buffer"
	"github.com/opcuacore/opcuacore/pkg/ua"
)

func TestVariantScalarRoundTrip(t *testing.T) {
	cases := []ua.Variant{
		{TypeID: ua.BuiltInBoolean, Scalar: true},
		{TypeID: ua.BuiltInInt32, Scalar: int32(-5)},
		{TypeID: ua.BuiltInUInt64, Scalar: uint64(123456789)},
		{TypeID: ua.BuiltInString, Scalar: "hello"},
		{TypeID: ua.BuiltInDateTime, Scalar: ua.DateTime(98765)},
		{TypeID: ua.BuiltInStatusCode, Scalar: ua.BadTimeout},
		{TypeID: ua.BuiltInNodeId, Scalar: ua.NodeId{Type: ua.IdentifierNumeric, Numeric: 10}},
		{TypeID: ua.BuiltInQualifiedName, Scalar: ua.QualifiedName{NamespaceIndex: 1, Name: "tag"}},
		{TypeID: ua.BuiltInLocalizedText, Scalar: ua.LocalizedText{Text: "hi", HasText: true}},
	}
	for _, v := range cases {
		buf := buffer.New(256)
		require.NoError(t, ua.EncodeVariant(buf, v))
		buf.Reset()

		got, err := ua.DecodeVariant(buf, 0)
		require.NoError(t, err)
		assert.Equal(t, v.TypeID, got.TypeID)
		assert.Equal(t, v.Scalar, got.Scalar)
		assert.False(t, got.IsArray)
		assert.False(t, got.IsMatrix)
	}
}

func TestVariantArrayRoundTrip(t *testing.T) {
	buf := buffer.New(256)
	v := ua.Variant{TypeID: ua.BuiltInInt32, IsArray: true, Value: []int32{1, 2, 3}}
	require.NoError(t, ua.EncodeVariant(buf, v))
	buf.Reset()

	got, err := ua.DecodeVariant(buf, 0)
	require.NoError(t, err)
	assert.True(t, got.IsArray)
	assert.False(t, got.IsMatrix)
	assert.Equal(t, []int32{1, 2, 3}, got.Value)
}

func TestVariantMatrixRoundTrip(t *testing.T) {
	buf := buffer.New(256)
	v := ua.Variant{
		TypeID:          ua.BuiltInDouble,
		IsMatrix:        true,
		Value:           []float64{1, 2, 3, 4, 5, 6},
		ArrayDimensions: []int32{2, 3},
	}
	require.NoError(t, ua.EncodeVariant(buf, v))
	buf.Reset()

	got, err := ua.DecodeVariant(buf, 0)
	require.NoError(t, err)
	assert.True(t, got.IsMatrix)
	assert.False(t, got.IsArray)
	assert.Equal(t, []float64{1, 2, 3, 4, 5, 6}, got.Value)
	assert.Equal(t, []int32{2, 3}, got.ArrayDimensions)
}

func TestVariantNestedVariantArray(t *testing.T) {
	buf := buffer.New(256)
	inner1 := &ua.Variant{TypeID: ua.BuiltInInt32, Scalar: int32(1)}
	inner2 := &ua.Variant{TypeID: ua.BuiltInInt32, Scalar: int32(2)}
	v := ua.Variant{TypeID: ua.BuiltInVariant, IsArray: true, Value: []*ua.Variant{inner1, inner2}}
	require.NoError(t, ua.EncodeVariant(buf, v))
	buf.Reset()

	got, err := ua.DecodeVariant(buf, 0)
	require.NoError(t, err)
	gotSlice, ok := got.Value.([]*ua.Variant)
	require.True(t, ok)
	require.Len(t, gotSlice, 2)
	assert.Equal(t, int32(1), gotSlice[0].Scalar)
	assert.Equal(t, int32(2), gotSlice[1].Scalar)
}

func TestVariantEncodeRejectsTypeMismatch(t *testing.T) {
	buf := buffer.New(32)
	v := ua.Variant{TypeID: ua.BuiltInInt32, Scalar: "not an int32"}
	err := ua.EncodeVariant(buf, v)
	require.Error(t, err)
}

func TestVariantEncodeRejectsInvalidBuiltInID(t *testing.T) {
	buf := buffer.New(32)
	v := ua.Variant{TypeID: ua.BuiltInID(99), Scalar: 1}
	err := ua.EncodeVariant(buf, v)
	require.Error(t, err)
}

func TestVariantEncodeRejectsScalarVariantOfVariant(t *testing.T) {
	buf := buffer.New(32)
	inner := &ua.Variant{TypeID: ua.BuiltInInt32, Scalar: int32(1)}
	v := ua.Variant{TypeID: ua.BuiltInVariant, Scalar: inner}
	err := ua.EncodeVariant(buf, v)
	require.Error(t, err)
}

func TestVariantDecodeRejectsScalarVariantOfVariant(t *testing.T) {
	buf := buffer.New(32)
	// encoding byte for a scalar Variant (no array flag) with built_in_id
	// BuiltInVariant (24) — never legal on the wire.
	_, err := buf.Write([]byte{byte(ua.BuiltInVariant)})
	require.NoError(t, err)
	buf.Reset()

	_, err = ua.DecodeVariant(buf, 0)
	require.Error(t, err)
}

func TestVariantDecodeMatrixRejectsTruncatedDimensions(t *testing.T) {
	buf := buffer.New(64)
	mask := byte(ua.BuiltInInt32) | 0x80 | 0x40
	// encoding byte + Int32 array-length(0); the Int32 dimension-count that
	// should follow is missing.
	_, err := buf.Write([]byte{mask, 0, 0, 0, 0})
	require.NoError(t, err)
	buf.Reset()

	_, err = ua.DecodeVariant(buf, 0)
	require.Error(t, err)
}
