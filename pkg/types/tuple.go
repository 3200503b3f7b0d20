package types

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"
)

// Tuple is a decoded row together with the RID it was read from (zero RID
// for a row that has not been written yet).
type Tuple struct {
	RID    RID
	Values []Value
}

func (t Tuple) Get(schema *Schema, name string) (Value, bool) {
	i, ok := schema.IndexOf(name)
	if !ok || i >= len(t.Values) {
		return Value{}, false
	}
	return t.Values[i], true
}

// nullBit reports/sets bit i of a null bitmap of the given byte length.
func nullBitSet(bitmap []byte, i int) bool {
	return bitmap[i/8]&(1<<uint(i%8)) != 0
}

func setNullBit(bitmap []byte, i int) {
	bitmap[i/8] |= 1 << uint(i%8)
}

// EncodeTuple serializes values against schema into a tuple image:
//
//	[null bitmap][fixed region][variable region]
//
// Fixed-width columns (Integer/Boolean/Decimal/Timestamp) are stored in
// place at their schema offset. Varchar columns store a 4-byte
// [heap_offset uint16][length uint16] pair in the fixed region, with the
// actual bytes appended to the variable region in column order.
func EncodeTuple(schema *Schema, values []Value) ([]byte, error) {
	if len(values) != len(schema.Columns) {
		return nil, fmt.Errorf("types: expected %d values, got %d", len(schema.Columns), len(values))
	}

	fixed := make([]byte, schema.FixedLength)
	var variable []byte

	for i, col := range schema.Columns {
		v := values[i]
		if v.Null {
			if !col.Nullable {
				return nil, fmt.Errorf("types: column %q is not nullable", col.Name)
			}
			setNullBit(fixed[:schema.NullBytes], i)
			continue
		}
		off := col.Offset
		switch col.Type {
		case Integer:
			binary.LittleEndian.PutUint64(fixed[off:], uint64(v.IntVal))
		case Boolean:
			if v.BoolVal {
				fixed[off] = 1
			}
		case Decimal:
			binary.LittleEndian.PutUint64(fixed[off:], math.Float64bits(v.FloatVal))
		case Timestamp:
			binary.LittleEndian.PutUint64(fixed[off:], uint64(v.TimeVal.UnixNano()))
		case Varchar:
			b := []byte(v.StrVal)
			if col.MaxLength != 0 && uint16(len(b)) > col.MaxLength {
				return nil, fmt.Errorf("types: column %q exceeds max length %d", col.Name, col.MaxLength)
			}
			heapOff := uint16(len(variable))
			binary.LittleEndian.PutUint16(fixed[off:], heapOff)
			binary.LittleEndian.PutUint16(fixed[off+2:], uint16(len(b)))
			variable = append(variable, b...)
		}
	}

	out := make([]byte, 0, len(fixed)+len(variable))
	out = append(out, fixed...)
	out = append(out, variable...)
	return out, nil
}

// DecodeTuple reverses EncodeTuple.
func DecodeTuple(schema *Schema, data []byte) ([]Value, error) {
	if len(data) < int(schema.FixedLength) {
		return nil, fmt.Errorf("types: tuple image shorter than fixed region")
	}
	fixed := data[:schema.FixedLength]
	variable := data[schema.FixedLength:]

	values := make([]Value, len(schema.Columns))
	for i, col := range schema.Columns {
		if nullBitSet(fixed[:schema.NullBytes], i) {
			values[i] = NewNull(col.Type)
			continue
		}
		off := col.Offset
		switch col.Type {
		case Integer:
			values[i] = NewInt(int64(binary.LittleEndian.Uint64(fixed[off:])))
		case Boolean:
			values[i] = NewBool(fixed[off] != 0)
		case Decimal:
			values[i] = NewDecimal(math.Float64frombits(binary.LittleEndian.Uint64(fixed[off:])))
		case Timestamp:
			values[i] = NewTimestamp(time.Unix(0, int64(binary.LittleEndian.Uint64(fixed[off:]))).UTC())
		case Varchar:
			heapOff := binary.LittleEndian.Uint16(fixed[off:])
			length := binary.LittleEndian.Uint16(fixed[off+2:])
			if int(heapOff)+int(length) > len(variable) {
				return nil, fmt.Errorf("types: column %q heap slice out of range", col.Name)
			}
			values[i] = NewVarchar(string(variable[heapOff : heapOff+length]))
		default:
			return nil, fmt.Errorf("types: unknown column type %v", col.Type)
		}
	}
	return values, nil
}
