package txn

import (
	"sync"

	"github.com/francodb/francodb/pkg/types"
)

// State is where a transaction sits in the strict two-phase locking
// protocol: it only ever acquires new locks in Growing, only ever
// releases them on the way into Committed or Aborted.
type State int

const (
	Growing State = iota
	Shrinking
	Committed
	Aborted
)

func (s State) String() string {
	switch s {
	case Growing:
		return "GROWING"
	case Shrinking:
		return "SHRINKING"
	case Committed:
		return "COMMITTED"
	case Aborted:
		return "ABORTED"
	default:
		return "UNKNOWN"
	}
}

// IsolationLevel is recorded on each Transaction; no code reads it, and it
// never changes what Commit/Abort do.
type IsolationLevel int

const (
	ReadCommitted IsolationLevel = iota
	RepeatableRead
	Serializable
)

// UndoOp is the inverse action Abort (or recovery's undo pass) must apply
// to roll an operation back.
type UndoOp int

const (
	UndoInsert UndoOp = iota // the row was newly inserted: delete it
	UndoDelete                // the row was deleted: reinsert the before-image
	UndoUpdate                // the row was updated in place: write the before-image back
)

// UndoRecord is one entry of a transaction's undo chain, recorded in the
// same order operations were performed so Abort can walk it backwards.
type UndoRecord struct {
	Table  string
	RID    types.RID
	Op     UndoOp
	Before []byte
}

// Transaction is one unit of work: its locks (tracked so Commit/Abort know
// what to release), its undo chain (so Abort or crash recovery know how to
// reverse it), and the WAL bookkeeping (PrevLSN) every LogX call needs.
type Transaction struct {
	mu sync.Mutex

	ID        uint64
	State     State
	Isolation IsolationLevel

	PrevLSN types.LSN

	undo  []UndoRecord
	locks map[string]LockMode // resource name -> mode held
}

func newTransaction(id uint64, isolation IsolationLevel) *Transaction {
	return &Transaction{
		ID:        id,
		State:     Growing,
		Isolation: isolation,
		locks:     make(map[string]LockMode),
	}
}

func (t *Transaction) recordUndo(rec UndoRecord) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.undo = append(t.undo, rec)
}

func (t *Transaction) snapshotUndo() []UndoRecord {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]UndoRecord(nil), t.undo...)
}

func (t *Transaction) heldResources() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, 0, len(t.locks))
	for r := range t.locks {
		out = append(out, r)
	}
	return out
}

func (t *Transaction) noteLock(resource string, mode LockMode) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if existing, ok := t.locks[resource]; !ok || (existing == Shared && mode == Exclusive) {
		t.locks[resource] = mode
	}
}

func (t *Transaction) state() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.State
}

func (t *Transaction) setState(s State) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.State = s
}

func (t *Transaction) prevLSN() types.LSN {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.PrevLSN
}

func (t *Transaction) setPrevLSN(lsn types.LSN) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.PrevLSN = lsn
}
