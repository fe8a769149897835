package db_types

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"heapdb/common"
)

// Field is a single typed value of a tuple.
type Field interface {
	Type() Type

	// Serialize writes exactly Type().Length() bytes to dest.
	Serialize(dest []byte) error
	String() string
	Equals(other Field) bool
}

// Deserialize reads a field of type t from the first t.Length() bytes of src.
func Deserialize(t Type, src []byte) (Field, error) {
	if !t.IsValid() {
		return nil, errors.Wrapf(ErrUnknownType, "type id %d", uint8(t))
	}
	if len(src) < t.Length() {
		return nil, errors.Wrapf(common.ErrSerialization, "%v needs %d bytes, got %d", t, t.Length(), len(src))
	}

	switch t {
	case IntType:
		return deserializeInt(src), nil
	case Int64Type:
		return deserializeInt64(src), nil
	case Float64Type:
		return deserializeFloat64(src), nil
	case BoolType:
		return deserializeBool(src)
	default:
		return deserializeString(src)
	}
}

// ParseField parses the display form of a value, which is the inverse of Field.String.
func ParseField(t Type, text string) (Field, error) {
	switch t {
	case IntType:
		v, err := strconv.ParseInt(strings.TrimSpace(text), 10, 32)
		if err != nil {
			return nil, errors.Wrapf(common.ErrTypeMismatch, "%q is not an int: %v", text, err)
		}
		return NewIntField(int32(v)), nil
	case Int64Type:
		v, err := strconv.ParseInt(strings.TrimSpace(text), 10, 64)
		if err != nil {
			return nil, errors.Wrapf(common.ErrTypeMismatch, "%q is not an int64: %v", text, err)
		}
		return NewInt64Field(v), nil
	case Float64Type:
		v, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
		if err != nil {
			return nil, errors.Wrapf(common.ErrTypeMismatch, "%q is not a float: %v", text, err)
		}
		return NewFloat64Field(v), nil
	case BoolType:
		v, err := strconv.ParseBool(strings.TrimSpace(text))
		if err != nil {
			return nil, errors.Wrapf(common.ErrTypeMismatch, "%q is not a bool: %v", text, err)
		}
		return NewBoolField(v), nil
	case StringType:
		if len(text) > StringLen {
			return nil, errors.Wrapf(common.ErrSerialization, "string of %d bytes exceeds %d", len(text), StringLen)
		}
		return NewStringField(text), nil
	}
	return nil, errors.Wrapf(ErrUnknownType, "type id %d", uint8(t))
}

func checkDest(t Type, dest []byte) error {
	if len(dest) < t.Length() {
		return errors.Wrapf(common.ErrSerialization, "%v needs %d bytes, destination has %d", t, t.Length(), len(dest))
	}
	return nil
}
