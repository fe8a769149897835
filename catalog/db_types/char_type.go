package db_types

import (
	"encoding/binary"

	"github.com/pkg/errors"

	"heapdb/common"
)

// StringField is a string of at most StringLen bytes. On disk it always takes StringType.Length() bytes.
type StringField struct {
	Value string
}

func NewStringField(v string) *StringField {
	return &StringField{Value: v}
}

func (f *StringField) Type() Type {
	return StringType
}

func (f *StringField) Serialize(dest []byte) error {
	if err := checkDest(StringType, dest); err != nil {
		return err
	}
	if len(f.Value) > StringLen {
		return errors.Wrapf(common.ErrSerialization, "string of %d bytes exceeds %d", len(f.Value), StringLen)
	}

	binary.BigEndian.PutUint32(dest, uint32(len(f.Value)))
	n := copy(dest[4:], f.Value)

	// zero the rest so that stale bytes of a previous value do not leak into the page image
	for i := 4 + n; i < StringType.Length(); i++ {
		dest[i] = 0
	}
	return nil
}

func (f *StringField) String() string {
	return f.Value
}

func (f *StringField) Equals(other Field) bool {
	o, ok := other.(*StringField)
	return ok && o.Value == f.Value
}

func deserializeString(src []byte) (*StringField, error) {
	l := binary.BigEndian.Uint32(src)
	if l > StringLen {
		return nil, errors.Wrapf(common.ErrSerialization, "string length %d exceeds %d", l, StringLen)
	}
	return NewStringField(string(src[4 : 4+l])), nil
}
