package types

import (
	"fmt"
	"math"
	"time"
)

// DataType is the set of column/value types the engine understands.
type DataType uint8

const (
	Integer DataType = iota
	Boolean
	Decimal
	Timestamp
	Varchar
)

func (d DataType) String() string {
	switch d {
	case Integer:
		return "INTEGER"
	case Boolean:
		return "BOOLEAN"
	case Decimal:
		return "DECIMAL"
	case Timestamp:
		return "TIMESTAMP"
	case Varchar:
		return "VARCHAR"
	default:
		return "UNKNOWN"
	}
}

// decimalTolerance is the comparison slack used for Decimal values, per
// spec.md's predicate-evaluator semantics.
const decimalTolerance = 1e-4

// Value is a single cell. Exactly one of the typed fields is meaningful,
// selected by Type, unless Null is set.
type Value struct {
	Type DataType
	Null bool

	IntVal   int64
	BoolVal  bool
	FloatVal float64
	TimeVal  time.Time
	StrVal   string
}

func NewInt(v int64) Value        { return Value{Type: Integer, IntVal: v} }
func NewBool(v bool) Value        { return Value{Type: Boolean, BoolVal: v} }
func NewDecimal(v float64) Value  { return Value{Type: Decimal, FloatVal: v} }
func NewTimestamp(t time.Time) Value { return Value{Type: Timestamp, TimeVal: t} }
func NewVarchar(s string) Value   { return Value{Type: Varchar, StrVal: s} }
func NewNull(t DataType) Value    { return Value{Type: t, Null: true} }

func (v Value) String() string {
	if v.Null {
		return "NULL"
	}
	switch v.Type {
	case Integer:
		return fmt.Sprintf("%d", v.IntVal)
	case Boolean:
		return fmt.Sprintf("%t", v.BoolVal)
	case Decimal:
		return fmt.Sprintf("%g", v.FloatVal)
	case Timestamp:
		return v.TimeVal.Format(time.RFC3339Nano)
	case Varchar:
		return v.StrVal
	default:
		return "?"
	}
}

// Compare orders two values of the same type. NULLs sort before any
// non-null value (SQL-ish but total, so it can anchor a sort comparator).
func (v Value) Compare(o Value) int {
	if v.Null || o.Null {
		if v.Null && o.Null {
			return 0
		}
		if v.Null {
			return -1
		}
		return 1
	}
	switch v.Type {
	case Integer:
		switch {
		case v.IntVal < o.IntVal:
			return -1
		case v.IntVal > o.IntVal:
			return 1
		default:
			return 0
		}
	case Boolean:
		if v.BoolVal == o.BoolVal {
			return 0
		}
		if !v.BoolVal && o.BoolVal {
			return -1
		}
		return 1
	case Decimal:
		diff := v.FloatVal - o.FloatVal
		if math.Abs(diff) <= decimalTolerance {
			return 0
		}
		if diff < 0 {
			return -1
		}
		return 1
	case Timestamp:
		if v.TimeVal.Before(o.TimeVal) {
			return -1
		}
		if v.TimeVal.After(o.TimeVal) {
			return 1
		}
		return 0
	case Varchar:
		switch {
		case v.StrVal < o.StrVal:
			return -1
		case v.StrVal > o.StrVal:
			return 1
		default:
			return 0
		}
	default:
		return 0
	}
}

// Key converts the value into the Comparable key form used by B+Tree
// indices, per spec.md's "8-byte generic key — integer or double encoded"
// (generalized to the other column types the same way the index key
// family already covers them).
func (v Value) Key() Comparable {
	switch v.Type {
	case Integer:
		return IntKey(v.IntVal)
	case Boolean:
		return BoolKey(v.BoolVal)
	case Decimal:
		return FloatKey(v.FloatVal)
	case Timestamp:
		return DateKey(v.TimeVal)
	case Varchar:
		return VarcharKey(v.StrVal)
	default:
		return IntKey(0)
	}
}
