package catalog

import (
	"strings"

	"github.com/pkg/errors"

	"heapdb/catalog/db_types"
	"heapdb/common"
)

// Schema is the ordered list of columns of a tuple. It is immutable once created.
type Schema struct {
	columns []Column
	size    int
}

func NewSchema(cols []Column) (*Schema, error) {
	if len(cols) == 0 {
		return nil, common.ErrInvalidSchema
	}

	size := 0
	for i, col := range cols {
		if !col.Type.IsValid() {
			return nil, errors.Wrapf(common.ErrInvalidSchema, "column %d has unknown type %d", i, col.Type)
		}
		size += col.Length()
	}

	copied := make([]Column, len(cols))
	copy(copied, cols)
	return &Schema{columns: copied, size: size}, nil
}

// NewSchemaFromTypes creates a schema from parallel type and name slices. names can be nil in which case
// every column is unnamed.
func NewSchemaFromTypes(types []db_types.Type, names []string) (*Schema, error) {
	if names != nil && len(names) != len(types) {
		return nil, errors.Wrapf(common.ErrInvalidSchema, "%d types but %d names", len(types), len(names))
	}

	cols := make([]Column, len(types))
	for i, t := range types {
		cols[i].Type = t
		if names != nil {
			cols[i].Name = names[i]
		}
	}
	return NewSchema(cols)
}

// ParseSchema parses a comma separated list of type:name pairs such as "int:id,string:name". The name part
// is optional.
func ParseSchema(text string) (*Schema, error) {
	if strings.TrimSpace(text) == "" {
		return nil, errors.Wrap(common.ErrInvalidSchema, "empty schema definition")
	}

	parts := strings.Split(text, ",")
	cols := make([]Column, 0, len(parts))
	for _, part := range parts {
		typeName, name, _ := strings.Cut(strings.TrimSpace(part), ":")
		t, err := db_types.ParseType(typeName)
		if err != nil {
			return nil, errors.Wrapf(common.ErrInvalidSchema, "column %q: %v", part, err)
		}
		cols = append(cols, NewColumn(t, strings.TrimSpace(name)))
	}
	return NewSchema(cols)
}

// Merge returns a new schema having columns of a followed by columns of b.
func Merge(a, b *Schema) *Schema {
	cols := make([]Column, 0, len(a.columns)+len(b.columns))
	cols = append(cols, a.columns...)
	cols = append(cols, b.columns...)
	return &Schema{columns: cols, size: a.size + b.size}
}

func (s *Schema) NumFields() int {
	return len(s.columns)
}

func (s *Schema) FieldName(i int) (string, error) {
	if i < 0 || i >= len(s.columns) {
		return "", errors.Wrapf(common.ErrElementNotFound, "field %d of %d", i, len(s.columns))
	}
	return s.columns[i].Name, nil
}

func (s *Schema) FieldType(i int) (db_types.Type, error) {
	if i < 0 || i >= len(s.columns) {
		return 0, errors.Wrapf(common.ErrElementNotFound, "field %d of %d", i, len(s.columns))
	}
	return s.columns[i].Type, nil
}

// IndexOf returns the index of the first column with the given name. Unnamed columns never match.
func (s *Schema) IndexOf(name string) (int, error) {
	if name != "" {
		for i, column := range s.columns {
			if column.Name == name {
				return i, nil
			}
		}
	}

	return 0, errors.Wrapf(common.ErrElementNotFound, "no field named %q", name)
}

// Size is the number of bytes a tuple of this schema takes on disk.
func (s *Schema) Size() int {
	return s.size
}

func (s *Schema) Columns() []Column {
	res := make([]Column, len(s.columns))
	copy(res, s.columns)
	return res
}

// Equals compares types position by position. Column names are not taken into account.
func (s *Schema) Equals(other *Schema) bool {
	if s == nil || other == nil {
		return s == other
	}
	if len(s.columns) != len(other.columns) || s.size != other.size {
		return false
	}
	for i := range s.columns {
		if s.columns[i].Type != other.columns[i].Type {
			return false
		}
	}
	return true
}

func (s *Schema) String() string {
	parts := make([]string, len(s.columns))
	for i, col := range s.columns {
		parts[i] = col.String()
	}
	return strings.Join(parts, ",")
}
