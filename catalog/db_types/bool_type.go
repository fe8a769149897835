package db_types

import (
	"strconv"

	"github.com/pkg/errors"

	"heapdb/common"
)

type BoolField struct {
	Value bool
}

func NewBoolField(v bool) *BoolField {
	return &BoolField{Value: v}
}

func (f *BoolField) Type() Type {
	return BoolType
}

func (f *BoolField) Serialize(dest []byte) error {
	if err := checkDest(BoolType, dest); err != nil {
		return err
	}
	dest[0] = 0
	if f.Value {
		dest[0] = 1
	}
	return nil
}

func (f *BoolField) String() string {
	return strconv.FormatBool(f.Value)
}

func (f *BoolField) Equals(other Field) bool {
	o, ok := other.(*BoolField)
	return ok && o.Value == f.Value
}

func deserializeBool(src []byte) (*BoolField, error) {
	switch src[0] {
	case 0:
		return NewBoolField(false), nil
	case 1:
		return NewBoolField(true), nil
	}
	return nil, errors.Wrapf(common.ErrSerialization, "invalid bool byte %#x", src[0])
}
