package db_types

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"heapdb/common"
)

func TestType_Lengths(t *testing.T) {
	assert.Equal(t, 4, IntType.Length())
	assert.Equal(t, 8, Int64Type.Length())
	assert.Equal(t, 8, Float64Type.Length())
	assert.Equal(t, 1, BoolType.Length())
	assert.Equal(t, 132, StringType.Length())
	assert.Equal(t, 0, Type(0).Length())
}

func TestFields_Serialize_Then_Deserialize(t *testing.T) {
	fields := []Field{
		NewIntField(-42),
		NewInt64Field(1 << 40),
		NewFloat64Field(3.25),
		NewBoolField(true),
		NewStringField("this is a char type"),
	}

	for _, f := range fields {
		t.Run(f.Type().String(), func(t *testing.T) {
			dest := make([]byte, f.Type().Length())
			require.NoError(t, f.Serialize(dest))

			read, err := Deserialize(f.Type(), dest)
			require.NoError(t, err)
			assert.True(t, f.Equals(read))
			assert.Equal(t, f.String(), read.String())
		})
	}
}

func TestStringField_Serialize_Zero_Pads(t *testing.T) {
	dest := make([]byte, StringType.Length())
	for i := range dest {
		dest[i] = 0xff
	}

	require.NoError(t, NewStringField("ab").Serialize(dest))
	for i := 6; i < len(dest); i++ {
		require.Zero(t, dest[i], "byte %d", i)
	}
}

func TestStringField_Too_Long_Should_Return_Serialization_Error(t *testing.T) {
	dest := make([]byte, StringType.Length())
	err := NewStringField(strings.Repeat("a", StringLen+1)).Serialize(dest)
	assert.ErrorIs(t, err, common.ErrSerialization)

	_, err = ParseField(StringType, strings.Repeat("a", StringLen+1))
	assert.ErrorIs(t, err, common.ErrSerialization)
}

func TestSerialize_Should_Fail_When_Destination_Is_Short(t *testing.T) {
	assert.ErrorIs(t, NewIntField(1).Serialize(make([]byte, 3)), common.ErrSerialization)

	_, err := Deserialize(Int64Type, make([]byte, 7))
	assert.ErrorIs(t, err, common.ErrSerialization)
}

func TestDeserialize_Invalid_Bool_Byte(t *testing.T) {
	_, err := Deserialize(BoolType, []byte{7})
	assert.ErrorIs(t, err, common.ErrSerialization)
}

func TestParseType(t *testing.T) {
	cases := map[string]Type{
		"int":         IntType,
		"INT_TYPE":    IntType,
		"int64":       Int64Type,
		"double":      Float64Type,
		"bool":        BoolType,
		" string ":    StringType,
		"STRING_TYPE": StringType,
	}
	for name, expected := range cases {
		actual, err := ParseType(name)
		require.NoError(t, err, name)
		assert.Equal(t, expected, actual, name)
	}

	_, err := ParseType("blob")
	assert.ErrorIs(t, err, ErrUnknownType)
}

func TestParseField(t *testing.T) {
	f, err := ParseField(IntType, " 12 ")
	require.NoError(t, err)
	assert.True(t, NewIntField(12).Equals(f))

	f, err = ParseField(BoolType, "false")
	require.NoError(t, err)
	assert.True(t, NewBoolField(false).Equals(f))

	_, err = ParseField(IntType, "twelve")
	assert.ErrorIs(t, err, common.ErrTypeMismatch)

	_, err = ParseField(IntType, "99999999999")
	assert.ErrorIs(t, err, common.ErrTypeMismatch)
}

func TestEquals_Is_Type_Sensitive(t *testing.T) {
	assert.False(t, NewIntField(1).Equals(NewInt64Field(1)))
	assert.False(t, NewStringField("1").Equals(NewIntField(1)))
}
