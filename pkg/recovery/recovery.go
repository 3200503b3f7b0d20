// Package recovery implements ARIES-style crash recovery: an analysis
// pass over the write-ahead log to find transactions that never reached
// COMMIT or ABORT, a redo pass that reapplies every logged physical
// change, and an undo pass that rolls the unfinished ("loser")
// transactions back, logging a compensation record for each step. The undo
// pass does not read a compensation record's undo-next LSN, so after a
// second crash mid-undo it repeats the undo steps already completed.
package recovery

import (
	"io"

	"github.com/francodb/francodb/pkg/errors"
	"github.com/francodb/francodb/pkg/txn"
	"github.com/francodb/francodb/pkg/types"
	"github.com/francodb/francodb/pkg/wal"
)

// Redoer applies the physical effect of one logged operation. Redo
// reapplies every record unconditionally, from the start of the log (this
// system has no checkpoint-truncated redo horizon yet, see DESIGN.md);
// that's correct because these operations are idempotent at the row
// level — inserting the same tuple image into the same RID twice, or
// overwriting a slot with the same after-image twice, leaves the page in
// the same state either way.
type Redoer interface {
	RedoInsert(tableOID uint32, rid types.RID, tuple []byte) error
	RedoUpdate(tableOID uint32, rid types.RID, after []byte) error
	RedoApplyDelete(tableOID uint32, rid types.RID) error
}

type txnStatus int

const (
	statusUnknown txnStatus = iota
	statusActive
	statusCommitted
	statusAborted
)

// loggedOp is one WAL record, flattened out of its header/payload split so
// the undo pass can walk PrevLSN chains without re-reading the file.
type loggedOp struct {
	lsn, prevLSN uint64
	txnID        uint64
	entryType    wal.EntryType
	payload      []byte
}

// Manager runs recovery against a single WAL file, logging CLRs for the
// undo pass through the same Manager the rest of the engine uses.
type Manager struct {
	walPath string
	log     *wal.Manager
}

func NewManager(walPath string, log *wal.Manager) *Manager {
	return &Manager{walPath: walPath, log: log}
}

// Recover runs analysis, redo, and undo in order against the WAL at
// m.walPath. redo and undo are supplied by the engine, which owns the
// heap pages these operations touch.
func (m *Manager) Recover(redo Redoer, undo txn.Undoer) error {
	ops, statuses, err := m.analyze()
	if err != nil {
		return err
	}
	if err := m.redoAll(ops, redo); err != nil {
		return err
	}
	return m.undoLosers(ops, statuses, undo)
}

// analyze scans the log once, building the flattened op list the later
// passes need and classifying every transaction mentioned as active
// (never reached COMMIT/ABORT — a "loser"), committed, or aborted.
func (m *Manager) analyze() ([]loggedOp, map[uint64]txnStatus, error) {
	r, err := wal.NewWALReader(m.walPath)
	if err != nil {
		return nil, nil, err
	}
	defer r.Close()

	var ops []loggedOp
	statuses := make(map[uint64]txnStatus)

	for {
		e, err := r.ReadEntry()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, errors.Wrap(errors.Corruption, err, "reading WAL during recovery analysis")
		}

		op := loggedOp{
			lsn:       e.Header.LSN,
			prevLSN:   e.Header.PrevLSN,
			txnID:     e.Header.TxnID,
			entryType: e.Header.EntryType,
			payload:   append([]byte(nil), e.Payload...),
		}
		wal.ReleaseEntry(e)
		ops = append(ops, op)

		switch op.entryType {
		case wal.EntryBegin:
			statuses[op.txnID] = statusActive
		case wal.EntryCommit:
			statuses[op.txnID] = statusCommitted
		case wal.EntryAbort:
			statuses[op.txnID] = statusAborted
		}
	}
	return ops, statuses, nil
}

// redoAll reapplies every INSERT/UPDATE/APPLY_DELETE record in log order.
// A CLR is itself a record of an undo step already performed before the
// crash (an insert undone, a delete undone, an update's before-image
// restored); its physical effect was already captured in the preceding
// forward record's payload at the time it was written, so CLRs carry no
// payload to redo here and are skipped.
func (m *Manager) redoAll(ops []loggedOp, redo Redoer) error {
	for _, op := range ops {
		switch op.entryType {
		case wal.EntryInsert:
			p, err := wal.DecodeInsertPayload(op.payload)
			if err != nil {
				return errors.Wrap(errors.Corruption, err, "decoding INSERT record during redo")
			}
			if err := redo.RedoInsert(p.TableOID, p.RID, p.TupleImage); err != nil {
				return err
			}
		case wal.EntryUpdate:
			p, err := wal.DecodeUpdatePayload(op.payload)
			if err != nil {
				return errors.Wrap(errors.Corruption, err, "decoding UPDATE record during redo")
			}
			if err := redo.RedoUpdate(p.TableOID, p.RID, p.AfterImage); err != nil {
				return err
			}
		case wal.EntryApplyDelete:
			p, err := wal.DecodeApplyDeletePayload(op.payload)
			if err != nil {
				return errors.Wrap(errors.Corruption, err, "decoding APPLY_DELETE record during redo")
			}
			if err := redo.RedoApplyDelete(p.TableOID, p.RID); err != nil {
				return err
			}
		}
	}
	return nil
}

// undoLosers rolls back every transaction that began but never reached
// COMMIT or ABORT, walking each loser's PrevLSN chain backward (most
// recent operation first) and logging a CLR after each undone step.
func (m *Manager) undoLosers(ops []loggedOp, statuses map[uint64]txnStatus, undo txn.Undoer) error {
	byLSN := make(map[uint64]loggedOp, len(ops))
	lastLSN := make(map[uint64]uint64)
	for _, op := range ops {
		byLSN[op.lsn] = op
		lastLSN[op.txnID] = op.lsn
	}

	for txnID, status := range statuses {
		if status != statusActive {
			continue
		}

		cursor := lastLSN[txnID]
		var last uint64
		for {
			op, ok := byLSN[cursor]
			if !ok {
				break
			}
			last = op.lsn

			switch op.entryType {
			case wal.EntryInsert:
				p, err := wal.DecodeInsertPayload(op.payload)
				if err != nil {
					return errors.Wrap(errors.Corruption, err, "decoding INSERT record during undo")
				}
				if err := undo.UndoInsert(tableName(p.TableOID), p.RID); err != nil {
					return err
				}
			case wal.EntryUpdate:
				p, err := wal.DecodeUpdatePayload(op.payload)
				if err != nil {
					return errors.Wrap(errors.Corruption, err, "decoding UPDATE record during undo")
				}
				if err := undo.UndoUpdate(tableName(p.TableOID), p.RID, p.BeforeImage); err != nil {
					return err
				}
			case wal.EntryApplyDelete:
				p, err := wal.DecodeApplyDeletePayload(op.payload)
				if err != nil {
					return errors.Wrap(errors.Corruption, err, "decoding APPLY_DELETE record during undo")
				}
				if err := undo.UndoDelete(tableName(p.TableOID), p.RID, p.TupleImage); err != nil {
					return err
				}
			}

			if _, err := m.log.LogCLR(txnID, last, op.prevLSN); err != nil {
				return err
			}

			if op.prevLSN == 0 {
				break
			}
			cursor = op.prevLSN
		}

		if _, err := m.log.LogAbort(txnID, last); err != nil {
			return err
		}
	}
	return nil
}

// tableName resolves a WAL record's table OID back to a name for the
// Undoer interface, which pkg/txn already shapes around table names
// rather than OIDs. Recovery runs before the catalog's index rebuild, so
// this indirection is a placeholder the engine wires up once it loads the
// catalog ahead of calling Recover; see DESIGN.md.
func tableName(oid uint32) string {
	return oidTableNames[oid]
}

// oidTableNames is populated by the engine via RegisterTableOID before
// Recover runs.
var oidTableNames = map[uint32]string{}

// RegisterTableOID tells the recovery package how to resolve a table OID
// (as stored in WAL records) back to the table name the Undoer interface
// expects. The engine calls this once per table after loading
// the catalog and before calling Recover.
func RegisterTableOID(oid uint32, name string) {
	oidTableNames[oid] = name
}
