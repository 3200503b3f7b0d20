package txn

import (
	"sync"

	"github.com/francodb/francodb/pkg/errors"
	"github.com/francodb/francodb/pkg/types"
	"github.com/francodb/francodb/pkg/wal"
)

// Undoer applies the physical inverse of a logged operation during Abort
// or crash recovery. The engine implements it against the heap (and keeps
// any affected index in sync); pkg/txn only drives the undo chain.
type Undoer interface {
	UndoInsert(table string, rid types.RID) error
	UndoDelete(table string, rid types.RID, before []byte) error
	UndoUpdate(table string, rid types.RID, before []byte) error
}

// Manager is the transaction manager: it begins/commits/aborts
// transactions, serializes every state change through the log manager, and
// owns the one LockManager every transaction acquires locks through.
type Manager struct {
	mu     sync.Mutex
	log    *wal.Manager
	locks  *LockManager
	active map[uint64]*Transaction
	nextID uint64
}

func NewManager(log *wal.Manager) *Manager {
	return &Manager{
		log:    log,
		locks:  NewLockManager(),
		active: make(map[uint64]*Transaction),
	}
}

// Begin starts a new transaction in the Growing phase and logs its BEGIN
// record.
func (m *Manager) Begin(isolation IsolationLevel) (*Transaction, error) {
	m.mu.Lock()
	m.nextID++
	id := m.nextID
	m.mu.Unlock()

	lsn, err := m.log.LogBegin(id)
	if err != nil {
		return nil, err
	}

	t := newTransaction(id, isolation)
	t.setPrevLSN(types.LSN(lsn))

	m.mu.Lock()
	m.active[id] = t
	m.mu.Unlock()
	return t, nil
}

// Get returns the active transaction with this id, if any.
func (m *Manager) Get(id uint64) (*Transaction, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.active[id]
	return t, ok
}

// LockShared acquires a shared lock on resource for t. It fails fast with
// ConcurrencyAbort if t has already entered Shrinking (strict 2PL forbids
// acquiring after releasing).
func (m *Manager) LockShared(t *Transaction, resource string) error {
	return m.lock(t, resource, Shared)
}

// LockExclusive acquires an exclusive lock on resource for t.
func (m *Manager) LockExclusive(t *Transaction, resource string) error {
	return m.lock(t, resource, Exclusive)
}

func (m *Manager) lock(t *Transaction, resource string, mode LockMode) error {
	if t.state() != Growing {
		return errors.Newf(errors.ConcurrencyAbort, "txn %d: cannot acquire locks outside GROWING phase", t.ID)
	}
	if err := m.locks.Acquire(t.ID, resource, mode); err != nil {
		return err
	}
	t.noteLock(resource, mode)
	return nil
}

// RecordUndo appends one entry to t's undo chain. The engine calls this
// immediately after performing (and WAL-logging) the forward operation, so
// the chain mirrors execution order and Abort can walk it in reverse.
func (m *Manager) RecordUndo(t *Transaction, rec UndoRecord) {
	t.recordUndo(rec)
}

// Commit writes t's COMMIT record, forces the log up to it for durability,
// and releases every lock t held.
func (m *Manager) Commit(t *Transaction) error {
	if t.state() != Growing {
		return errors.Newf(errors.ConcurrencyAbort, "txn %d: cannot commit from state %s", t.ID, t.state())
	}
	t.setState(Shrinking)

	commitLSN, err := m.log.LogCommit(t.ID, uint64(t.prevLSN()))
	if err != nil {
		return err
	}
	if err := m.log.FlushTo(commitLSN); err != nil {
		return err
	}

	t.setPrevLSN(types.LSN(commitLSN))
	t.setState(Committed)
	m.releaseAll(t)
	return nil
}

// Abort undoes every operation t performed, most recent first, emitting a
// CLR for each one, then writes t's ABORT record and releases its locks.
// Recovery does not read the CLRs' undo-next LSN, so after a crash
// mid-rollback it undoes again the steps already undone here.
func (m *Manager) Abort(t *Transaction, undo Undoer) error {
	if t.state() != Growing && t.state() != Shrinking {
		return errors.Newf(errors.ConcurrencyAbort, "txn %d: cannot abort from state %s", t.ID, t.state())
	}
	t.setState(Shrinking)

	records := t.snapshotUndo()
	prevLSN := uint64(t.prevLSN())

	for i := len(records) - 1; i >= 0; i-- {
		rec := records[i]
		var err error
		switch rec.Op {
		case UndoInsert:
			err = undo.UndoInsert(rec.Table, rec.RID)
		case UndoDelete:
			err = undo.UndoDelete(rec.Table, rec.RID, rec.Before)
		case UndoUpdate:
			err = undo.UndoUpdate(rec.Table, rec.RID, rec.Before)
		}
		if err != nil {
			return err
		}

		clrLSN, err := m.log.LogCLR(t.ID, prevLSN, 0)
		if err != nil {
			return err
		}
		prevLSN = clrLSN
	}

	abortLSN, err := m.log.LogAbort(t.ID, prevLSN)
	if err != nil {
		return err
	}
	if err := m.log.FlushTo(abortLSN); err != nil {
		return err
	}

	t.setPrevLSN(types.LSN(abortLSN))
	t.setState(Aborted)
	m.releaseAll(t)
	return nil
}

func (m *Manager) releaseAll(t *Transaction) {
	for _, resource := range t.heldResources() {
		m.locks.Release(t.ID, resource)
	}
	m.mu.Lock()
	delete(m.active, t.ID)
	m.mu.Unlock()
}
