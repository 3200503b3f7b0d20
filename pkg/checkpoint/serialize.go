package checkpoint

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/francodb/francodb/pkg/types"
)

// Schema encode/decode mirrors pkg/catalog's helper of the same shape
// (itself mirroring pkg/wal's): neither package has a .proto/.pb.go
// counterpart to generate from, so both hand-roll the same protowire
// field-walking pattern rather than each picking a different ad hoc
// format.
const (
	fColName       = 1
	fColType       = 2
	fColMaxLength  = 3
	fColPrimaryKey = 4
	fColNullable   = 5
	fColUnique     = 6
)

func encodeSchema(s *types.Schema) []byte {
	var b []byte
	for _, col := range s.Columns {
		var sub []byte
		sub = protowire.AppendTag(sub, fColName, protowire.BytesType)
		sub = protowire.AppendString(sub, col.Name)
		sub = protowire.AppendTag(sub, fColType, protowire.VarintType)
		sub = protowire.AppendVarint(sub, uint64(col.Type))
		sub = protowire.AppendTag(sub, fColMaxLength, protowire.VarintType)
		sub = protowire.AppendVarint(sub, uint64(col.MaxLength))
		sub = protowire.AppendTag(sub, fColPrimaryKey, protowire.VarintType)
		sub = protowire.AppendVarint(sub, boolVarint(col.PrimaryKey))
		sub = protowire.AppendTag(sub, fColNullable, protowire.VarintType)
		sub = protowire.AppendVarint(sub, boolVarint(col.Nullable))
		sub = protowire.AppendTag(sub, fColUnique, protowire.VarintType)
		sub = protowire.AppendVarint(sub, boolVarint(col.Unique))

		b = protowire.AppendVarint(b, uint64(len(sub)))
		b = append(b, sub...)
	}
	return b
}

func decodeSchema(buf []byte) (*types.Schema, error) {
	var cols []types.Column
	for len(buf) > 0 {
		size, n := protowire.ConsumeVarint(buf)
		if n < 0 || uint64(len(buf[n:])) < size {
			return nil, fmt.Errorf("checkpoint: truncated schema column record")
		}
		buf = buf[n:]
		colBuf := buf[:size]
		buf = buf[size:]

		var col types.Column
		err := walkFields(colBuf, func(num protowire.Number, typ protowire.Type, v []byte) error {
			switch num {
			case fColName:
				col.Name = string(v)
			case fColType:
				col.Type = types.DataType(mustVarint(v))
			case fColMaxLength:
				col.MaxLength = uint16(mustVarint(v))
			case fColPrimaryKey:
				col.PrimaryKey = mustVarint(v) != 0
			case fColNullable:
				col.Nullable = mustVarint(v) != 0
			case fColUnique:
				col.Unique = mustVarint(v) != 0
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
		cols = append(cols, col)
	}
	return types.NewSchema(cols), nil
}

func boolVarint(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}

func mustVarint(raw []byte) uint64 {
	v, _ := protowire.ConsumeVarint(raw)
	return v
}

// walkFields decodes buf as a flat sequence of protowire fields.
func walkFields(buf []byte, fn func(num protowire.Number, typ protowire.Type, value []byte) error) error {
	for len(buf) > 0 {
		num, typ, n := protowire.ConsumeTag(buf)
		if n < 0 {
			return fmt.Errorf("checkpoint: invalid field tag: %v", protowire.ParseError(n))
		}
		buf = buf[n:]

		var value []byte
		switch typ {
		case protowire.VarintType:
			v, m := protowire.ConsumeVarint(buf)
			if m < 0 {
				return fmt.Errorf("checkpoint: invalid varint field: %v", protowire.ParseError(m))
			}
			value = protowire.AppendVarint(nil, v)
			buf = buf[m:]
		case protowire.BytesType:
			v, m := protowire.ConsumeBytes(buf)
			if m < 0 {
				return fmt.Errorf("checkpoint: invalid bytes field: %v", protowire.ParseError(m))
			}
			value = v
			buf = buf[m:]
		default:
			m := protowire.ConsumeFieldValue(num, typ, buf)
			if m < 0 {
				return fmt.Errorf("checkpoint: invalid field value: %v", protowire.ParseError(m))
			}
			value = buf[:m]
			buf = buf[m:]
		}

		if err := fn(num, typ, value); err != nil {
			return err
		}
	}
	return nil
}
