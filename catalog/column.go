package catalog

import (
	"fmt"

	"heapdb/catalog/db_types"
)

// Column describes a single field of a schema. An empty Name means the column is unnamed.
type Column struct {
	Type db_types.Type
	Name string
}

func NewColumn(t db_types.Type, name string) Column {
	return Column{Type: t, Name: name}
}

func (c Column) Length() int {
	return c.Type.Length()
}

func (c Column) String() string {
	name := c.Name
	if name == "" {
		name = "null"
	}
	return fmt.Sprintf("%v(%v)", c.Type, name)
}
