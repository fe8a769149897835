package db_types

import (
	"strings"

	"github.com/pkg/errors"
)

// Type is the kind of a column. Every type serializes to a fixed number of bytes, which is what allows
// heap pages to be laid out as arrays of equally sized slots.
type Type uint8

const (
	IntType Type = iota + 1
	Int64Type
	Float64Type
	BoolType
	StringType
)

// StringLen is the maximum number of bytes a string field can hold. Serialized strings are prefixed by
// their length as uint32 and zero padded up to StringLen.
const StringLen = 128

var ErrUnknownType = errors.New("unknown type")

func (t Type) Length() int {
	switch t {
	case IntType:
		return 4
	case Int64Type, Float64Type:
		return 8
	case BoolType:
		return 1
	case StringType:
		return 4 + StringLen
	}
	return 0
}

func (t Type) IsValid() bool {
	return t >= IntType && t <= StringType
}

func (t Type) String() string {
	switch t {
	case IntType:
		return "INT_TYPE"
	case Int64Type:
		return "INT64_TYPE"
	case Float64Type:
		return "FLOAT64_TYPE"
	case BoolType:
		return "BOOL_TYPE"
	case StringType:
		return "STRING_TYPE"
	}
	return "UNKNOWN_TYPE"
}

// ParseType accepts both the short names used in schema strings (int, string, ...) and the names
// returned by Type.String.
func ParseType(name string) (Type, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "int", "int32", "int_type":
		return IntType, nil
	case "int64", "bigint", "int64_type":
		return Int64Type, nil
	case "float", "float64", "double", "float64_type":
		return Float64Type, nil
	case "bool", "boolean", "bool_type":
		return BoolType, nil
	case "string", "str", "text", "string_type":
		return StringType, nil
	}
	return 0, errors.Wrapf(ErrUnknownType, "%q", name)
}
