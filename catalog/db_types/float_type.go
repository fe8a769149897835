package db_types

import (
	"encoding/binary"
	"math"
	"strconv"
)

type Float64Field struct {
	Value float64
}

func NewFloat64Field(v float64) *Float64Field {
	return &Float64Field{Value: v}
}

func (f *Float64Field) Type() Type {
	return Float64Type
}

func (f *Float64Field) Serialize(dest []byte) error {
	if err := checkDest(Float64Type, dest); err != nil {
		return err
	}
	binary.BigEndian.PutUint64(dest, math.Float64bits(f.Value))
	return nil
}

func (f *Float64Field) String() string {
	return strconv.FormatFloat(f.Value, 'g', -1, 64)
}

func (f *Float64Field) Equals(other Field) bool {
	o, ok := other.(*Float64Field)
	return ok && o.Value == f.Value
}

func deserializeFloat64(src []byte) *Float64Field {
	return NewFloat64Field(math.Float64frombits(binary.BigEndian.Uint64(src)))
}
