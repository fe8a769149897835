package db_types

import (
	"encoding/binary"
	"strconv"
)

type IntField struct {
	Value int32
}

func NewIntField(v int32) *IntField {
	return &IntField{Value: v}
}

func (f *IntField) Type() Type {
	return IntType
}

func (f *IntField) Serialize(dest []byte) error {
	if err := checkDest(IntType, dest); err != nil {
		return err
	}
	binary.BigEndian.PutUint32(dest, uint32(f.Value))
	return nil
}

func (f *IntField) String() string {
	return strconv.FormatInt(int64(f.Value), 10)
}

func (f *IntField) Equals(other Field) bool {
	o, ok := other.(*IntField)
	return ok && o.Value == f.Value
}

func deserializeInt(src []byte) *IntField {
	return NewIntField(int32(binary.BigEndian.Uint32(src)))
}

type Int64Field struct {
	Value int64
}

func NewInt64Field(v int64) *Int64Field {
	return &Int64Field{Value: v}
}

func (f *Int64Field) Type() Type {
	return Int64Type
}

func (f *Int64Field) Serialize(dest []byte) error {
	if err := checkDest(Int64Type, dest); err != nil {
		return err
	}
	binary.BigEndian.PutUint64(dest, uint64(f.Value))
	return nil
}

func (f *Int64Field) String() string {
	return strconv.FormatInt(f.Value, 10)
}

func (f *Int64Field) Equals(other Field) bool {
	o, ok := other.(*Int64Field)
	return ok && o.Value == f.Value
}

func deserializeInt64(src []byte) *Int64Field {
	return NewInt64Field(int64(binary.BigEndian.Uint64(src)))
}
