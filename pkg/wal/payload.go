package wal

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/francodb/francodb/pkg/types"
)

// Payload field numbers. Each record type uses a disjoint-enough subset that
// a reader only needs EntryType to know which struct to decode into.
const (
	fieldTableOID     = 1
	fieldRIDPage      = 2
	fieldRIDSlot      = 3
	fieldTupleImage   = 4
	fieldBeforeImage  = 5
	fieldAfterImage   = 6
	fieldUndoNextLSN  = 7
	fieldIndexOID     = 8
	fieldCheckpointAt = 9
	fieldActiveTxns   = 10 // repeated, each itself a length-delimited ActiveTxnEntry
	fieldDirtyPages   = 11 // repeated, each itself a length-delimited DirtyPageEntry
)

// InsertPayload is the body of an INSERT record: the full tuple image
// written to a heap page.
type InsertPayload struct {
	TableOID   uint32
	RID        types.RID
	TupleImage []byte
}

func (p InsertPayload) Encode() []byte {
	var b []byte
	b = protowire.AppendTag(b, fieldTableOID, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(p.TableOID))
	b = appendRID(b, fieldRIDPage, fieldRIDSlot, p.RID)
	b = protowire.AppendTag(b, fieldTupleImage, protowire.BytesType)
	b = protowire.AppendBytes(b, p.TupleImage)
	return b
}

func DecodeInsertPayload(buf []byte) (InsertPayload, error) {
	var p InsertPayload
	err := walkFields(buf, func(num protowire.Number, typ protowire.Type, v []byte, n int64) error {
		switch num {
		case fieldTableOID:
			p.TableOID = uint32(mustVarint(v))
		case fieldRIDPage:
			p.RID.PageID = types.PageID(int32(mustVarint(v)))
		case fieldRIDSlot:
			p.RID.Slot = uint16(mustVarint(v))
		case fieldTupleImage:
			p.TupleImage = append([]byte(nil), v...)
		}
		return nil
	})
	return p, err
}

// UpdatePayload is the body of an UPDATE record: before and after tuple
// images, so undo can restore the before image and redo can reapply the
// after image.
type UpdatePayload struct {
	TableOID     uint32
	RID          types.RID
	BeforeImage  []byte
	AfterImage   []byte
}

func (p UpdatePayload) Encode() []byte {
	var b []byte
	b = protowire.AppendTag(b, fieldTableOID, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(p.TableOID))
	b = appendRID(b, fieldRIDPage, fieldRIDSlot, p.RID)
	b = protowire.AppendTag(b, fieldBeforeImage, protowire.BytesType)
	b = protowire.AppendBytes(b, p.BeforeImage)
	b = protowire.AppendTag(b, fieldAfterImage, protowire.BytesType)
	b = protowire.AppendBytes(b, p.AfterImage)
	return b
}

func DecodeUpdatePayload(buf []byte) (UpdatePayload, error) {
	var p UpdatePayload
	err := walkFields(buf, func(num protowire.Number, typ protowire.Type, v []byte, n int64) error {
		switch num {
		case fieldTableOID:
			p.TableOID = uint32(mustVarint(v))
		case fieldRIDPage:
			p.RID.PageID = types.PageID(int32(mustVarint(v)))
		case fieldRIDSlot:
			p.RID.Slot = uint16(mustVarint(v))
		case fieldBeforeImage:
			p.BeforeImage = append([]byte(nil), v...)
		case fieldAfterImage:
			p.AfterImage = append([]byte(nil), v...)
		}
		return nil
	})
	return p, err
}

// ApplyDeletePayload is the body of an APPLY_DELETE record: the tombstoned
// tuple's last image, needed to undo the delete.
type ApplyDeletePayload struct {
	TableOID   uint32
	RID        types.RID
	TupleImage []byte
}

func (p ApplyDeletePayload) Encode() []byte {
	var b []byte
	b = protowire.AppendTag(b, fieldTableOID, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(p.TableOID))
	b = appendRID(b, fieldRIDPage, fieldRIDSlot, p.RID)
	b = protowire.AppendTag(b, fieldTupleImage, protowire.BytesType)
	b = protowire.AppendBytes(b, p.TupleImage)
	return b
}

func DecodeApplyDeletePayload(buf []byte) (ApplyDeletePayload, error) {
	var p ApplyDeletePayload
	err := walkFields(buf, func(num protowire.Number, typ protowire.Type, v []byte, n int64) error {
		switch num {
		case fieldTableOID:
			p.TableOID = uint32(mustVarint(v))
		case fieldRIDPage:
			p.RID.PageID = types.PageID(int32(mustVarint(v)))
		case fieldRIDSlot:
			p.RID.Slot = uint16(mustVarint(v))
		case fieldTupleImage:
			p.TupleImage = append([]byte(nil), v...)
		}
		return nil
	})
	return p, err
}

// CLRPayload is a compensation log record's body: the undo-next LSN given
// to LogCLR. Recovery does not decode it.
type CLRPayload struct {
	UndoNextLSN uint64
}

func (p CLRPayload) Encode() []byte {
	var b []byte
	b = protowire.AppendTag(b, fieldUndoNextLSN, protowire.VarintType)
	b = protowire.AppendVarint(b, p.UndoNextLSN)
	return b
}

func DecodeCLRPayload(buf []byte) (CLRPayload, error) {
	var p CLRPayload
	err := walkFields(buf, func(num protowire.Number, typ protowire.Type, v []byte, n int64) error {
		if num == fieldUndoNextLSN {
			p.UndoNextLSN = mustVarint(v)
		}
		return nil
	})
	return p, err
}

// ActiveTxnEntry/DirtyPageEntry are the repeated sub-messages embedded in a
// CHECKPOINT_END record, one per transaction active (resp. page dirty) as
// of the checkpoint.
type ActiveTxnEntry struct {
	TxnID    uint64
	LastLSN  uint64
}

type DirtyPageEntry struct {
	PageID      types.PageID
	RecoveryLSN uint64
}

// CheckpointEndPayload snapshots the transaction table and dirty page table
// at CHECKPOINT_END time, so the analysis pass can seed both without
// scanning the whole log.
type CheckpointEndPayload struct {
	ActiveTxns  []ActiveTxnEntry
	DirtyPages  []DirtyPageEntry
}

func (p CheckpointEndPayload) Encode() []byte {
	var b []byte
	for _, t := range p.ActiveTxns {
		var sub []byte
		sub = protowire.AppendTag(sub, 1, protowire.VarintType)
		sub = protowire.AppendVarint(sub, t.TxnID)
		sub = protowire.AppendTag(sub, 2, protowire.VarintType)
		sub = protowire.AppendVarint(sub, t.LastLSN)
		b = protowire.AppendTag(b, fieldActiveTxns, protowire.BytesType)
		b = protowire.AppendBytes(b, sub)
	}
	for _, d := range p.DirtyPages {
		var sub []byte
		sub = protowire.AppendTag(sub, 1, protowire.VarintType)
		sub = protowire.AppendVarint(sub, uint64(uint32(d.PageID)))
		sub = protowire.AppendTag(sub, 2, protowire.VarintType)
		sub = protowire.AppendVarint(sub, d.RecoveryLSN)
		b = protowire.AppendTag(b, fieldDirtyPages, protowire.BytesType)
		b = protowire.AppendBytes(b, sub)
	}
	return b
}

func DecodeCheckpointEndPayload(buf []byte) (CheckpointEndPayload, error) {
	var p CheckpointEndPayload
	err := walkFields(buf, func(num protowire.Number, typ protowire.Type, v []byte, n int64) error {
		switch num {
		case fieldActiveTxns:
			var t ActiveTxnEntry
			if err := walkFields(v, func(n2 protowire.Number, t2 protowire.Type, v2 []byte, _ int64) error {
				switch n2 {
				case 1:
					t.TxnID = mustVarint(v2)
				case 2:
					t.LastLSN = mustVarint(v2)
				}
				return nil
			}); err != nil {
				return err
			}
			p.ActiveTxns = append(p.ActiveTxns, t)
		case fieldDirtyPages:
			var d DirtyPageEntry
			if err := walkFields(v, func(n2 protowire.Number, t2 protowire.Type, v2 []byte, _ int64) error {
				switch n2 {
				case 1:
					d.PageID = types.PageID(int32(mustVarint(v2)))
				case 2:
					d.RecoveryLSN = mustVarint(v2)
				}
				return nil
			}); err != nil {
				return err
			}
			p.DirtyPages = append(p.DirtyPages, d)
		}
		return nil
	})
	return p, err
}

func appendRID(b []byte, pageField, slotField protowire.Number, rid types.RID) []byte {
	b = protowire.AppendTag(b, pageField, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(uint32(rid.PageID)))
	b = protowire.AppendTag(b, slotField, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(rid.Slot))
	return b
}

func mustVarint(raw []byte) uint64 {
	v, _ := protowire.ConsumeVarint(raw)
	return v
}

// walkFields decodes buf as a flat sequence of protowire fields, invoking fn
// with the already-consumed value bytes (varints raw, length-delimited
// fields unwrapped). Used instead of generated message Unmarshal methods,
// since this package has no .proto/.pb.go counterpart to generate from.
func walkFields(buf []byte, fn func(num protowire.Number, typ protowire.Type, value []byte, consumed int64) error) error {
	for len(buf) > 0 {
		num, typ, n := protowire.ConsumeTag(buf)
		if n < 0 {
			return fmt.Errorf("wal: invalid field tag: %v", protowire.ParseError(n))
		}
		buf = buf[n:]

		var value []byte
		switch typ {
		case protowire.VarintType:
			v, m := protowire.ConsumeVarint(buf)
			if m < 0 {
				return fmt.Errorf("wal: invalid varint field: %v", protowire.ParseError(m))
			}
			value = protowire.AppendVarint(nil, v)
			buf = buf[m:]
		case protowire.BytesType:
			v, m := protowire.ConsumeBytes(buf)
			if m < 0 {
				return fmt.Errorf("wal: invalid bytes field: %v", protowire.ParseError(m))
			}
			value = v
			buf = buf[m:]
		default:
			m := protowire.ConsumeFieldValue(num, typ, buf)
			if m < 0 {
				return fmt.Errorf("wal: invalid field value: %v", protowire.ParseError(m))
			}
			value = buf[:m]
			buf = buf[m:]
		}

		if err := fn(num, typ, value, int64(len(value))); err != nil {
			return err
		}
	}
	return nil
}
