package wal

import (
	"testing"

	"github.com/francodb/francodb/pkg/types"
)

func TestInsertPayload_RoundTrip(t *testing.T) {
	p := InsertPayload{
		TableOID:   7,
		RID:        types.RID{PageID: 42, Slot: 3},
		TupleImage: []byte("tuple bytes"),
	}

	decoded, err := DecodeInsertPayload(p.Encode())
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if decoded.TableOID != p.TableOID || decoded.RID != p.RID || string(decoded.TupleImage) != string(p.TupleImage) {
		t.Errorf("round trip mismatch: got %+v, want %+v", decoded, p)
	}
}

func TestUpdatePayload_RoundTrip(t *testing.T) {
	p := UpdatePayload{
		TableOID:    9,
		RID:         types.RID{PageID: 5, Slot: 1},
		BeforeImage: []byte("before"),
		AfterImage:  []byte("after"),
	}

	decoded, err := DecodeUpdatePayload(p.Encode())
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if string(decoded.BeforeImage) != "before" || string(decoded.AfterImage) != "after" {
		t.Errorf("round trip mismatch: got %+v", decoded)
	}
}

func TestApplyDeletePayload_RoundTrip(t *testing.T) {
	p := ApplyDeletePayload{
		TableOID:   3,
		RID:        types.RID{PageID: 1, Slot: 0},
		TupleImage: []byte("gone"),
	}

	decoded, err := DecodeApplyDeletePayload(p.Encode())
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if decoded.RID != p.RID || string(decoded.TupleImage) != "gone" {
		t.Errorf("round trip mismatch: got %+v", decoded)
	}
}

func TestCLRPayload_RoundTrip(t *testing.T) {
	p := CLRPayload{UndoNextLSN: 1234}
	decoded, err := DecodeCLRPayload(p.Encode())
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if decoded.UndoNextLSN != 1234 {
		t.Errorf("expected UndoNextLSN 1234, got %d", decoded.UndoNextLSN)
	}
}

func TestCheckpointEndPayload_RoundTrip(t *testing.T) {
	p := CheckpointEndPayload{
		ActiveTxns: []ActiveTxnEntry{{TxnID: 1, LastLSN: 10}, {TxnID: 2, LastLSN: 20}},
		DirtyPages: []DirtyPageEntry{{PageID: 3, RecoveryLSN: 5}},
	}

	decoded, err := DecodeCheckpointEndPayload(p.Encode())
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if len(decoded.ActiveTxns) != 2 || len(decoded.DirtyPages) != 1 {
		t.Fatalf("round trip mismatch: got %+v", decoded)
	}
	if decoded.ActiveTxns[1].LastLSN != 20 {
		t.Errorf("expected second txn LastLSN 20, got %d", decoded.ActiveTxns[1].LastLSN)
	}
}
