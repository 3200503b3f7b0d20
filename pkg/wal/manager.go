package wal

import "github.com/francodb/francodb/pkg/types"

// Manager is the log manager: the typed front door onto a WALWriter. Callers
// never build a WALEntry by hand; they call the record-shaped methods below,
// which choose the EntryType, encode the payload, and hand back the LSN the
// writer assigned.
type Manager struct {
	writer *Writer
}

// Writer is an alias so pkg/recovery and pkg/txn can depend on wal.Writer
// without reaching past the log manager's API.
type Writer = WALWriter

// NewManager wraps an already-open WALWriter.
func NewManager(w *Writer) *Manager {
	return &Manager{writer: w}
}

func (m *Manager) append(txnID, prevLSN uint64, entryType EntryType, payload []byte) (uint64, error) {
	entry := AcquireEntry()
	defer ReleaseEntry(entry)
	entry.Header.EntryType = entryType
	entry.Header.TxnID = txnID
	entry.Header.PrevLSN = prevLSN
	entry.Payload = append(entry.Payload, payload...)
	return m.writer.Append(entry)
}

func (m *Manager) LogBegin(txnID uint64) (uint64, error) {
	return m.append(txnID, 0, EntryBegin, nil)
}

func (m *Manager) LogCommit(txnID, prevLSN uint64) (uint64, error) {
	return m.append(txnID, prevLSN, EntryCommit, nil)
}

func (m *Manager) LogAbort(txnID, prevLSN uint64) (uint64, error) {
	return m.append(txnID, prevLSN, EntryAbort, nil)
}

func (m *Manager) LogInsert(txnID, prevLSN uint64, tableOID uint32, rid types.RID, tuple []byte) (uint64, error) {
	p := InsertPayload{TableOID: tableOID, RID: rid, TupleImage: tuple}
	return m.append(txnID, prevLSN, EntryInsert, p.Encode())
}

func (m *Manager) LogUpdate(txnID, prevLSN uint64, tableOID uint32, rid types.RID, before, after []byte) (uint64, error) {
	p := UpdatePayload{TableOID: tableOID, RID: rid, BeforeImage: before, AfterImage: after}
	return m.append(txnID, prevLSN, EntryUpdate, p.Encode())
}

func (m *Manager) LogApplyDelete(txnID, prevLSN uint64, tableOID uint32, rid types.RID, tuple []byte) (uint64, error) {
	p := ApplyDeletePayload{TableOID: tableOID, RID: rid, TupleImage: tuple}
	return m.append(txnID, prevLSN, EntryApplyDelete, p.Encode())
}

// LogCLR writes a compensation record during undo, storing undoNextLSN in
// its payload. pkg/recovery does not read undoNextLSN back.
func (m *Manager) LogCLR(txnID, prevLSN, undoNextLSN uint64) (uint64, error) {
	p := CLRPayload{UndoNextLSN: undoNextLSN}
	return m.append(txnID, prevLSN, EntryCLR, p.Encode())
}

func (m *Manager) LogCheckpointBegin() (uint64, error) {
	return m.append(0, 0, EntryCheckpointBegin, nil)
}

func (m *Manager) LogCheckpointEnd(snapshot CheckpointEndPayload) (uint64, error) {
	return m.append(0, 0, EntryCheckpointEnd, snapshot.Encode())
}

// FlushTo guarantees durability up to lsn; see WALWriter.FlushTo.
func (m *Manager) FlushTo(lsn uint64) error { return m.writer.FlushTo(lsn) }

func (m *Manager) Close() error { return m.writer.Close() }
