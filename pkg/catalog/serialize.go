package catalog

import (
	"fmt"
	"os"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/francodb/francodb/pkg/errors"
	"github.com/francodb/francodb/pkg/types"
)

// metaMagic tags the catalog metadata file (catalog.meta in a database's
// directory).
const metaMagic = "FRANCO_META"

const metaVersion = 1

// Persist serializes the catalog to path using a write-temp-then-rename so
// a crash mid-write never leaves a half-written metadata file where the
// previous good one used to be.
func Persist(c *Catalog, path string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var b []byte
	b = append(b, metaMagic...)
	b = protowire.AppendVarint(b, metaVersion)
	b = protowire.AppendVarint(b, uint64(c.nextOID))

	b = protowire.AppendVarint(b, uint64(len(c.tablesByName)))
	for _, tm := range c.tablesByName {
		sub := encodeTable(tm)
		b = protowire.AppendVarint(b, uint64(len(sub)))
		b = append(b, sub...)
	}

	b = protowire.AppendVarint(b, uint64(len(c.indexesByName)))
	for _, im := range c.indexesByName {
		sub := encodeIndex(im)
		b = protowire.AppendVarint(b, uint64(len(sub)))
		b = append(b, sub...)
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, b, 0644); err != nil {
		return errors.Wrap(errors.IOError, err, "writing catalog metadata temp file")
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return errors.Wrap(errors.IOError, err, "renaming catalog metadata file into place")
	}
	return nil
}

// Load reconstructs a catalog from a file written by Persist. Index
// B+Trees come back empty (Root is never serialized): the caller rebuilds
// each one by scanning its table's heap after Load returns.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errors.IOError, err, "reading catalog metadata file")
	}

	if len(data) < len(metaMagic) || string(data[:len(metaMagic)]) != metaMagic {
		return nil, &errors.CorruptionError{Location: path, Detail: "bad catalog metadata magic"}
	}
	data = data[len(metaMagic):]

	version, n := protowire.ConsumeVarint(data)
	if n < 0 || version != metaVersion {
		return nil, &errors.CorruptionError{Location: path, Detail: "unsupported catalog metadata version"}
	}
	data = data[n:]

	nextOID, n := protowire.ConsumeVarint(data)
	if n < 0 {
		return nil, &errors.CorruptionError{Location: path, Detail: "truncated catalog metadata"}
	}
	data = data[n:]

	c := New()
	c.nextOID = uint32(nextOID)

	numTables, n := protowire.ConsumeVarint(data)
	if n < 0 {
		return nil, &errors.CorruptionError{Location: path, Detail: "truncated catalog metadata"}
	}
	data = data[n:]

	for i := uint64(0); i < numTables; i++ {
		size, n := protowire.ConsumeVarint(data)
		if n < 0 || uint64(len(data[n:])) < size {
			return nil, &errors.CorruptionError{Location: path, Detail: "truncated table record"}
		}
		data = data[n:]
		tm, err := decodeTable(data[:size])
		if err != nil {
			return nil, err
		}
		data = data[size:]
		c.tablesByName[tm.Name] = tm
		c.tablesByOID[tm.OID] = tm
	}

	numIndexes, n := protowire.ConsumeVarint(data)
	if n < 0 {
		return nil, &errors.CorruptionError{Location: path, Detail: "truncated catalog metadata"}
	}
	data = data[n:]

	for i := uint64(0); i < numIndexes; i++ {
		size, n := protowire.ConsumeVarint(data)
		if n < 0 || uint64(len(data[n:])) < size {
			return nil, &errors.CorruptionError{Location: path, Detail: "truncated index record"}
		}
		data = data[n:]
		im, err := decodeIndex(data[:size])
		if err != nil {
			return nil, err
		}
		data = data[size:]
		c.indexesByName[im.Name] = im
		c.indexesByTable[im.TableName] = append(c.indexesByTable[im.TableName], im)
	}

	return c, nil
}

const (
	fTableOID         = 1
	fTableName        = 2
	fTableSchema      = 3
	fTableHead        = 4
	fTableTail        = 5
	fTableLastCkptLSN = 6
	fTableFK          = 7

	fFKName     = 1
	fFKColumn   = 2
	fFKRefTable = 3
	fFKRefCol   = 4
	fFKOnDelete = 5

	fIdxOID     = 1
	fIdxName    = 2
	fIdxTable   = 3
	fIdxColumn  = 4
	fIdxKeyType = 5
	fIdxUnique  = 6

	fColName       = 1
	fColType       = 2
	fColMaxLength  = 3
	fColPrimaryKey = 4
	fColNullable   = 5
	fColUnique     = 6
)

func encodeTable(tm *TableMetadata) []byte {
	var b []byte
	b = protowire.AppendTag(b, fTableOID, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(tm.OID))
	b = protowire.AppendTag(b, fTableName, protowire.BytesType)
	b = protowire.AppendString(b, tm.Name)
	b = protowire.AppendTag(b, fTableSchema, protowire.BytesType)
	b = protowire.AppendBytes(b, encodeSchema(tm.Schema))
	b = protowire.AppendTag(b, fTableHead, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(uint32(tm.HeadPageID)))
	b = protowire.AppendTag(b, fTableTail, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(uint32(tm.TailPageID)))
	b = protowire.AppendTag(b, fTableLastCkptLSN, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(tm.LastCheckpointLSN))
	for _, fk := range tm.ForeignKeys {
		b = protowire.AppendTag(b, fTableFK, protowire.BytesType)
		b = protowire.AppendBytes(b, encodeForeignKey(fk))
	}
	return b
}

func decodeTable(buf []byte) (*TableMetadata, error) {
	tm := &TableMetadata{}
	err := walkFields(buf, func(num protowire.Number, typ protowire.Type, v []byte) error {
		switch num {
		case fTableOID:
			tm.OID = uint32(mustVarint(v))
		case fTableName:
			tm.Name = string(v)
		case fTableSchema:
			s, err := decodeSchema(v)
			if err != nil {
				return err
			}
			tm.Schema = s
		case fTableHead:
			tm.HeadPageID = types.PageID(int32(mustVarint(v)))
		case fTableTail:
			tm.TailPageID = types.PageID(int32(mustVarint(v)))
		case fTableLastCkptLSN:
			tm.LastCheckpointLSN = types.LSN(mustVarint(v))
		case fTableFK:
			fk, err := decodeForeignKey(v)
			if err != nil {
				return err
			}
			tm.ForeignKeys = append(tm.ForeignKeys, fk)
		}
		return nil
	})
	return tm, err
}

func encodeForeignKey(fk ForeignKey) []byte {
	var b []byte
	b = protowire.AppendTag(b, fFKName, protowire.BytesType)
	b = protowire.AppendString(b, fk.Name)
	b = protowire.AppendTag(b, fFKColumn, protowire.BytesType)
	b = protowire.AppendString(b, fk.Column)
	b = protowire.AppendTag(b, fFKRefTable, protowire.BytesType)
	b = protowire.AppendString(b, fk.RefTable)
	b = protowire.AppendTag(b, fFKRefCol, protowire.BytesType)
	b = protowire.AppendString(b, fk.RefColumn)
	b = protowire.AppendTag(b, fFKOnDelete, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(fk.OnDelete))
	return b
}

func decodeForeignKey(buf []byte) (ForeignKey, error) {
	var fk ForeignKey
	err := walkFields(buf, func(num protowire.Number, typ protowire.Type, v []byte) error {
		switch num {
		case fFKName:
			fk.Name = string(v)
		case fFKColumn:
			fk.Column = string(v)
		case fFKRefTable:
			fk.RefTable = string(v)
		case fFKRefCol:
			fk.RefColumn = string(v)
		case fFKOnDelete:
			fk.OnDelete = OnDeleteAction(mustVarint(v))
		}
		return nil
	})
	return fk, err
}

func encodeIndex(im *IndexMetadata) []byte {
	var b []byte
	b = protowire.AppendTag(b, fIdxOID, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(im.OID))
	b = protowire.AppendTag(b, fIdxName, protowire.BytesType)
	b = protowire.AppendString(b, im.Name)
	b = protowire.AppendTag(b, fIdxTable, protowire.BytesType)
	b = protowire.AppendString(b, im.TableName)
	b = protowire.AppendTag(b, fIdxColumn, protowire.BytesType)
	b = protowire.AppendString(b, im.Column)
	b = protowire.AppendTag(b, fIdxKeyType, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(im.KeyType))
	b = protowire.AppendTag(b, fIdxUnique, protowire.VarintType)
	if im.Unique {
		b = protowire.AppendVarint(b, 1)
	} else {
		b = protowire.AppendVarint(b, 0)
	}
	return b
}

func decodeIndex(buf []byte) (*IndexMetadata, error) {
	im := &IndexMetadata{}
	err := walkFields(buf, func(num protowire.Number, typ protowire.Type, v []byte) error {
		switch num {
		case fIdxOID:
			im.OID = uint32(mustVarint(v))
		case fIdxName:
			im.Name = string(v)
		case fIdxTable:
			im.TableName = string(v)
		case fIdxColumn:
			im.Column = string(v)
		case fIdxKeyType:
			im.KeyType = types.DataType(mustVarint(v))
		case fIdxUnique:
			im.Unique = mustVarint(v) != 0
		}
		return nil
	})
	return im, err
}

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
			return nil, fmt.Errorf("catalog: truncated schema column record")
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

// walkFields decodes buf as a flat sequence of protowire fields. Mirrors
// pkg/wal's helper of the same shape: this package has no .proto/.pb.go
// counterpart to generate from either.
func walkFields(buf []byte, fn func(num protowire.Number, typ protowire.Type, value []byte) error) error {
	for len(buf) > 0 {
		num, typ, n := protowire.ConsumeTag(buf)
		if n < 0 {
			return fmt.Errorf("catalog: invalid field tag: %v", protowire.ParseError(n))
		}
		buf = buf[n:]

		var value []byte
		switch typ {
		case protowire.VarintType:
			v, m := protowire.ConsumeVarint(buf)
			if m < 0 {
				return fmt.Errorf("catalog: invalid varint field: %v", protowire.ParseError(m))
			}
			value = protowire.AppendVarint(nil, v)
			buf = buf[m:]
		case protowire.BytesType:
			v, m := protowire.ConsumeBytes(buf)
			if m < 0 {
				return fmt.Errorf("catalog: invalid bytes field: %v", protowire.ParseError(m))
			}
			value = v
			buf = buf[m:]
		default:
			m := protowire.ConsumeFieldValue(num, typ, buf)
			if m < 0 {
				return fmt.Errorf("catalog: invalid field value: %v", protowire.ParseError(m))
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
