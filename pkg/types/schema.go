package types

import "fmt"

// fixedWidth returns the fixed-region footprint of a column's type. Varchar
// columns store a [heap_offset, length] pair (4 bytes) in the fixed region;
// the actual bytes live in the tuple's variable-length heap region.
func fixedWidth(t DataType) uint16 {
	switch t {
	case Integer, Decimal, Timestamp:
		return 8
	case Boolean:
		return 1
	case Varchar:
		return 4
	default:
		return 0
	}
}

// Column describes one field of a table's schema.
type Column struct {
	Name       string
	Type       DataType
	MaxLength  uint16 // only meaningful for Varchar
	Offset     uint16 // byte offset within the tuple's fixed region
	PrimaryKey bool
	Nullable   bool // PrimaryKey implies Nullable == false
	Unique     bool
	Default    *Value
}

// Schema is the ordered list of a table's columns plus the derived layout
// (fixed-region offsets and total fixed-region size) used by Tuple
// serialization.
type Schema struct {
	Columns     []Column
	FixedLength uint16
	NullBytes   uint16
}

// NewSchema assigns byte offsets to each column (in declaration order) and
// computes the tuple's fixed-region length and null-bitmap size.
func NewSchema(cols []Column) *Schema {
	s := &Schema{Columns: append([]Column(nil), cols...)}
	s.NullBytes = uint16((len(cols) + 7) / 8)
	offset := s.NullBytes
	for i := range s.Columns {
		s.Columns[i].Offset = offset
		offset += fixedWidth(s.Columns[i].Type)
	}
	s.FixedLength = offset
	return s
}

func (s *Schema) IndexOf(name string) (int, bool) {
	for i, c := range s.Columns {
		if c.Name == name {
			return i, true
		}
	}
	return 0, false
}

func (s *Schema) Column(name string) (*Column, bool) {
	if i, ok := s.IndexOf(name); ok {
		return &s.Columns[i], true
	}
	return nil, false
}

func (s *Schema) PrimaryKeyColumn() (*Column, bool) {
	for i := range s.Columns {
		if s.Columns[i].PrimaryKey {
			return &s.Columns[i], true
		}
	}
	return nil, false
}

func (s *Schema) String() string {
	out := "("
	for i, c := range s.Columns {
		if i > 0 {
			out += ", "
		}
		out += fmt.Sprintf("%s %s", c.Name, c.Type)
	}
	return out + ")"
}
