package catalog

import (
	"strings"

	"github.com/pkg/errors"

	"heapdb/catalog/db_types"
	"heapdb/common"
)

// Tuple is a row bound to a schema. Fields start unset and are filled with SetField. The record id is set
// when the tuple is read from or inserted into a page and it is not part of the tuple's value.
type Tuple struct {
	schema *Schema
	fields []db_types.Field
	rid    *common.RecordID
}

func NewTuple(schema *Schema) (*Tuple, error) {
	if schema == nil || schema.NumFields() == 0 {
		return nil, common.ErrInvalidSchema
	}
	return &Tuple{schema: schema, fields: make([]db_types.Field, schema.NumFields())}, nil
}

// NewTupleWithFields creates a tuple and sets all of its fields in order.
func NewTupleWithFields(schema *Schema, fields ...db_types.Field) (*Tuple, error) {
	t, err := NewTuple(schema)
	if err != nil {
		return nil, err
	}
	if len(fields) != schema.NumFields() {
		return nil, errors.Wrapf(common.ErrIndexOutOfRange, "schema has %d fields, got %d values", schema.NumFields(), len(fields))
	}
	for i, f := range fields {
		if err := t.SetField(i, f); err != nil {
			return nil, err
		}
	}
	return t, nil
}

func (t *Tuple) Schema() *Schema {
	return t.schema
}

// ResetSchema binds the tuple to a new schema. All field values are discarded.
func (t *Tuple) ResetSchema(schema *Schema) error {
	if schema == nil || schema.NumFields() == 0 {
		return common.ErrInvalidSchema
	}
	t.schema = schema
	t.fields = make([]db_types.Field, schema.NumFields())
	return nil
}

func (t *Tuple) SetField(i int, f db_types.Field) error {
	if i < 0 || i >= len(t.fields) {
		return errors.Wrapf(common.ErrIndexOutOfRange, "field %d of %d", i, len(t.fields))
	}
	if f == nil {
		return errors.Wrapf(common.ErrTypeMismatch, "field %d: nil value", i)
	}

	expected := t.schema.columns[i].Type
	if f.Type() != expected {
		return errors.Wrapf(common.ErrTypeMismatch, "field %d: expected %v, got %v", i, expected, f.Type())
	}

	t.fields[i] = f
	return nil
}

// Field returns the value at i or nil if it is not set yet.
func (t *Tuple) Field(i int) (db_types.Field, error) {
	if i < 0 || i >= len(t.fields) {
		return nil, errors.Wrapf(common.ErrIndexOutOfRange, "field %d of %d", i, len(t.fields))
	}
	return t.fields[i], nil
}

func (t *Tuple) Fields() []db_types.Field {
	res := make([]db_types.Field, len(t.fields))
	copy(res, t.fields)
	return res
}

func (t *Tuple) RecordID() *common.RecordID {
	return t.rid
}

func (t *Tuple) SetRecordID(rid *common.RecordID) {
	t.rid = rid
}

// Equals reports whether both tuples have equal schemas and equal values. Record ids are ignored.
func (t *Tuple) Equals(other *Tuple) bool {
	if t == nil || other == nil {
		return t == other
	}
	if !t.schema.Equals(other.schema) {
		return false
	}
	for i, f := range t.fields {
		o := other.fields[i]
		if f == nil || o == nil {
			if f != o {
				return false
			}
			continue
		}
		if !f.Equals(o) {
			return false
		}
	}
	return true
}

func (t *Tuple) Clone() *Tuple {
	c := &Tuple{schema: t.schema, fields: t.Fields()}
	if t.rid != nil {
		rid := *t.rid
		c.rid = &rid
	}
	return c
}

// String renders fields separated by tabs and terminated by a new line. Unset fields are rendered as null.
func (t *Tuple) String() string {
	sb := strings.Builder{}
	for i, f := range t.fields {
		if i > 0 {
			sb.WriteByte('\t')
		}
		if f == nil {
			sb.WriteString("null")
		} else {
			sb.WriteString(f.String())
		}
	}
	sb.WriteByte('\n')
	return sb.String()
}

// Serialize writes the tuple to dest which must be at least Schema().Size() bytes long.
func (t *Tuple) Serialize(dest []byte) error {
	if len(dest) < t.schema.Size() {
		return errors.Wrapf(common.ErrSerialization, "tuple needs %d bytes, destination has %d", t.schema.Size(), len(dest))
	}

	offset := 0
	for i, f := range t.fields {
		if f == nil {
			return errors.Wrapf(common.ErrUnsetField, "field %d", i)
		}
		if err := f.Serialize(dest[offset:]); err != nil {
			return errors.Wrapf(err, "field %d", i)
		}
		offset += f.Type().Length()
	}
	return nil
}

func DeserializeTuple(schema *Schema, src []byte) (*Tuple, error) {
	t, err := NewTuple(schema)
	if err != nil {
		return nil, err
	}
	if len(src) < schema.Size() {
		return nil, errors.Wrapf(common.ErrSerialization, "tuple needs %d bytes, got %d", schema.Size(), len(src))
	}

	offset := 0
	for i, col := range schema.columns {
		f, err := db_types.Deserialize(col.Type, src[offset:])
		if err != nil {
			return nil, errors.Wrapf(err, "field %d", i)
		}
		t.fields[i] = f
		offset += col.Length()
	}
	return t, nil
}
