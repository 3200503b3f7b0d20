// Package txn implements the lock manager and transaction/recovery
// bookkeeping layered on top of pkg/wal: strict two-phase locking on
// row and table resources, wait-for-graph deadlock detection, and the
// undo-chain state a transaction needs to roll back or to let the
// recovery manager roll it back after a crash.
package txn

import (
	"fmt"
	"sync"

	"github.com/francodb/francodb/pkg/errors"
	"github.com/francodb/francodb/pkg/types"
)

// LockMode is a shared or exclusive lock.
type LockMode int

const (
	Shared LockMode = iota
	Exclusive
)

func (m LockMode) String() string {
	if m == Exclusive {
		return "X"
	}
	return "S"
}

// RowResource names the lockable resource for one row.
func RowResource(table string, rid types.RID) string {
	return fmt.Sprintf("row:%s:%d:%d", table, rid.PageID, rid.Slot)
}

// TableResource names the lockable resource for an entire table. It takes
// the same S/X modes as a row resource; no intent modes exist.
func TableResource(table string) string {
	return "table:" + table
}

type lockHolder struct {
	txnID uint64
	mode  LockMode
}

type waitEntry struct {
	txnID uint64
	mode  LockMode
}

type resourceLocks struct {
	holders []lockHolder
	waiters []waitEntry // FIFO arrival order
}

// LockManager grants S/X locks on named resources under strict two-phase
// locking: a per-resource FIFO queue decides who goes next when a
// conflicting lock is held, and a wait-for graph over the queue catches
// cycles so a deadlocked transaction aborts instead of blocking forever.
type LockManager struct {
	mu        sync.Mutex
	cond      *sync.Cond
	resources map[string]*resourceLocks
	waitFor   map[uint64]map[uint64]bool // txnID -> txnIDs it is blocked behind
	victims   map[uint64]bool            // txnIDs chosen to abort by a deadlock check
}

func NewLockManager() *LockManager {
	lm := &LockManager{
		resources: make(map[string]*resourceLocks),
		waitFor:   make(map[uint64]map[uint64]bool),
		victims:   make(map[uint64]bool),
	}
	lm.cond = sync.NewCond(&lm.mu)
	return lm
}

func (lm *LockManager) resourceLocked(name string) *resourceLocks {
	rl, ok := lm.resources[name]
	if !ok {
		rl = &resourceLocks{}
		lm.resources[name] = rl
	}
	return rl
}

// Acquire blocks until txnID holds mode on resource, or returns a
// *errors.DeadlockError if granting it would complete a wait-for cycle and
// txnID is the youngest (and therefore chosen) participant.
func (lm *LockManager) Acquire(txnID uint64, resource string, mode LockMode) error {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	rl := lm.resourceLocked(resource)
	if !containsWaiter(rl.waiters, txnID) {
		rl.waiters = append(rl.waiters, waitEntry{txnID: txnID, mode: mode})
	}

	for !lm.canGrantLocked(rl, txnID, mode) {
		lm.addWaitEdgesLocked(txnID, rl, mode)

		if cycle := lm.findCycleLocked(txnID); len(cycle) > 0 {
			victim := youngest(cycle)
			lm.victims[victim] = true
			lm.cond.Broadcast()
			if victim == txnID {
				lm.removeWaiterLocked(rl, txnID)
				delete(lm.waitFor, txnID)
				delete(lm.victims, txnID)
				return &errors.DeadlockError{VictimTxnID: txnID}
			}
		}

		lm.cond.Wait()

		if lm.victims[txnID] {
			delete(lm.victims, txnID)
			lm.removeWaiterLocked(rl, txnID)
			delete(lm.waitFor, txnID)
			return &errors.DeadlockError{VictimTxnID: txnID}
		}
	}

	delete(lm.waitFor, txnID)
	lm.removeWaiterLocked(rl, txnID)
	lm.grantLocked(rl, txnID, mode)
	return nil
}

// Release drops txnID's lock on resource, if any, and wakes waiters.
func (lm *LockManager) Release(txnID uint64, resource string) {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	rl, ok := lm.resources[resource]
	if !ok {
		return
	}
	for i, h := range rl.holders {
		if h.txnID == txnID {
			rl.holders = append(rl.holders[:i], rl.holders[i+1:]...)
			break
		}
	}
	lm.cond.Broadcast()
}

func (lm *LockManager) grantLocked(rl *resourceLocks, txnID uint64, mode LockMode) {
	for i, h := range rl.holders {
		if h.txnID == txnID {
			if mode == Exclusive {
				rl.holders[i].mode = Exclusive
			}
			return
		}
	}
	rl.holders = append(rl.holders, lockHolder{txnID: txnID, mode: mode})
}

// canGrantLocked reports whether txnID can be granted mode on rl right now:
// it must be compatible with every other current holder, and no waiter
// queued ahead of txnID must hold a conflicting request (FIFO fairness, so
// a steady stream of shared requests can't starve a queued exclusive one).
func (lm *LockManager) canGrantLocked(rl *resourceLocks, txnID uint64, mode LockMode) bool {
	for _, h := range rl.holders {
		if h.txnID == txnID {
			continue
		}
		if conflicts(h.mode, mode) {
			return false
		}
	}

	for _, w := range rl.waiters {
		if w.txnID == txnID {
			break
		}
		if conflicts(w.mode, mode) {
			return false
		}
	}
	return true
}

func conflicts(a, b LockMode) bool {
	return a == Exclusive || b == Exclusive
}

func containsWaiter(waiters []waitEntry, txnID uint64) bool {
	for _, w := range waiters {
		if w.txnID == txnID {
			return true
		}
	}
	return false
}

func (lm *LockManager) removeWaiterLocked(rl *resourceLocks, txnID uint64) {
	for i, w := range rl.waiters {
		if w.txnID == txnID {
			rl.waiters = append(rl.waiters[:i], rl.waiters[i+1:]...)
			return
		}
	}
}

// addWaitEdgesLocked records that txnID is waiting behind every other
// holder of resource whose mode conflicts with the one it's requesting.
func (lm *LockManager) addWaitEdgesLocked(txnID uint64, rl *resourceLocks, mode LockMode) {
	edges := lm.waitFor[txnID]
	if edges == nil {
		edges = make(map[uint64]bool)
		lm.waitFor[txnID] = edges
	}
	for k := range edges {
		delete(edges, k)
	}
	for _, h := range rl.holders {
		if h.txnID != txnID && conflicts(h.mode, mode) {
			edges[h.txnID] = true
		}
	}
}

// findCycleLocked runs a depth-first search from start over the wait-for
// graph, returning the cycle's members if start can reach itself.
func (lm *LockManager) findCycleLocked(start uint64) []uint64 {
	visited := make(map[uint64]bool)
	var path []uint64

	var visit func(node uint64) []uint64
	visit = func(node uint64) []uint64 {
		if node == start && len(path) > 0 {
			return append(append([]uint64(nil), path...), node)
		}
		if visited[node] {
			return nil
		}
		visited[node] = true
		path = append(path, node)
		for next := range lm.waitFor[node] {
			if cycle := visit(next); cycle != nil {
				return cycle
			}
		}
		path = path[:len(path)-1]
		return nil
	}

	for next := range lm.waitFor[start] {
		if cycle := visit(next); cycle != nil {
			return cycle
		}
	}
	return nil
}

// youngest picks the highest (most recently assigned) txn id, per
// spec.md's "victim = youngest transaction" deadlock-breaking rule.
func youngest(txnIDs []uint64) uint64 {
	max := txnIDs[0]
	for _, id := range txnIDs[1:] {
		if id > max {
			max = id
		}
	}
	return max
}
