// Package btree implements a concurrent B+Tree used for table indexes:
// leaf keys map to a types.RID, internal nodes hold routing separators
// only. Descents use latch crabbing (hold parent, lock child, release
// parent once the child is known safe) for both reads and writes.
package btree

import (
	"fmt"
	"sort"
	"sync"

	"github.com/francodb/francodb/pkg/errors"
	"github.com/francodb/francodb/pkg/types"
)

// BPlusTree is a single index: either a unique index (rejects duplicate
// keys) or a secondary index (allows them, last-write-wins per key in
// this representation).
type BPlusTree struct {
	T         int
	Root      *Node
	UniqueKey bool
	mu        sync.RWMutex // guards Root during structural changes (root split)
}

// NewTree creates an index that allows duplicate keys.
func NewTree(t int) *BPlusTree {
	return &BPlusTree{
		T:    t,
		Root: NewNode(t, true),
	}
}

// NewUniqueTree creates an index that rejects duplicate keys.
func NewUniqueTree(t int) *BPlusTree {
	return &BPlusTree{
		T:         t,
		Root:      NewNode(t, true),
		UniqueKey: true,
	}
}

// Insert adds key -> rid, honoring UniqueKey.
func (b *BPlusTree) Insert(key types.Comparable, rid types.RID) error {
	return b.insertHelper(key, rid, b.UniqueKey)
}

// Replace unconditionally sets key's RID, used when an update relocates a
// row and the index must point at its new location.
func (b *BPlusTree) Replace(key types.Comparable, rid types.RID) error {
	return b.Upsert(key, func(old types.RID, exists bool) (types.RID, error) {
		return rid, nil
	})
}

// Upsert runs fn against the current value for key (if any) while holding
// the leaf's latch, so the read-modify-write is atomic with respect to
// concurrent descents.
func (b *BPlusTree) Upsert(key types.Comparable, fn func(old types.RID, exists bool) (newValue types.RID, err error)) error {
	return b.upsertHelper(key, fn)
}

func (b *BPlusTree) insertHelper(key types.Comparable, rid types.RID, uniqueKey bool) error {
	return b.Upsert(key, func(old types.RID, exists bool) (types.RID, error) {
		if exists && uniqueKey {
			return types.RID{}, &errors.DuplicateKeyError{Key: fmt.Sprintf("%v", key)}
		}
		return rid, nil
	})
}

func (b *BPlusTree) upsertHelper(key types.Comparable, fn func(old types.RID, exists bool) (newValue types.RID, err error)) error {
	b.mu.Lock()
	root := b.Root
	root.Lock()

	if root.IsFull() {
		newRoot := NewNode(b.T, false)
		newRoot.Children = append(newRoot.Children, root)
		newRoot.SplitChild(0)
		b.Root = newRoot
		b.mu.Unlock()

		newRoot.Lock()
		root.Unlock()

		return b.upsertTopDown(newRoot, key, fn)
	}

	b.mu.Unlock()
	return b.upsertTopDown(root, key, fn)
}

// upsertTopDown descends from curr, splitting any full child it meets
// before stepping into it, so the node it finally writes to is never
// full. curr arrives already locked by the caller.
func (b *BPlusTree) upsertTopDown(curr *Node, key types.Comparable, fn func(old types.RID, exists bool) (newValue types.RID, err error)) error {
	defer func() {
		if curr != nil {
			curr.Unlock()
		}
	}()

	for !curr.Leaf {
		i := 0
		for i < curr.N && key.Compare(curr.Keys[i]) >= 0 {
			i++
		}

		child := curr.Children[i]
		child.Lock()

		if child.IsFull() {
			curr.SplitChild(i)

			if key.Compare(curr.Keys[i]) >= 0 {
				child.Unlock()
				child = curr.Children[i+1]
				child.Lock()
			}
		}

		// Latch crabbing: release the parent once the (now safe) child is held.
		curr.Unlock()
		curr = child
	}

	// curr is a leaf, locked, and guaranteed not full by the preventive splits above.
	return curr.UpsertNonFull(key, fn)
}

// Search finds the leaf containing key and returns it with its latch
// already released (kept for callers that need the node, not just the
// value — e.g. range scans).
func (b *BPlusTree) Search(key types.Comparable) (*Node, bool) {
	b.mu.RLock()
	curr := b.Root
	curr.RLock()
	b.mu.RUnlock()

	for !curr.Leaf {
		i := 0
		for i < curr.N && key.Compare(curr.Keys[i]) >= 0 {
			i++
		}
		child := curr.Children[i]
		child.RLock()

		curr.RUnlock()
		curr = child
	}

	defer curr.RUnlock()

	for j := 0; j < curr.N; j++ {
		if key.Compare(curr.Keys[j]) == 0 {
			return curr, true
		}
	}
	return nil, false
}

// Get looks up key's RID.
func (b *BPlusTree) Get(key types.Comparable) (types.RID, bool) {
	if b == nil {
		return types.RID{}, false
	}
	b.mu.RLock()
	curr := b.Root
	if curr == nil {
		b.mu.RUnlock()
		return types.RID{}, false
	}
	curr.RLock()
	b.mu.RUnlock()

	for !curr.Leaf {
		i := 0
		for i < curr.N && key.Compare(curr.Keys[i]) >= 0 {
			i++
		}
		child := curr.Children[i]
		child.RLock()

		curr.RUnlock()
		curr = child
	}

	defer curr.RUnlock()

	for j := 0; j < curr.N; j++ {
		if key.Compare(curr.Keys[j]) == 0 {
			return curr.Values[j], true
		}
	}
	return types.RID{}, false
}

// FindLeafLowerBound locates the leaf and slot index of the first key >=
// the given key (or the first leaf/slot overall, if key is nil), for
// range-scan iteration. Returns the leaf RLock'd; the caller must
// RUnlock it.
func (b *BPlusTree) FindLeafLowerBound(key types.Comparable) (*Node, int) {
	b.mu.RLock()
	curr := b.Root
	curr.RLock()
	b.mu.RUnlock()

	for !curr.Leaf {
		var i int
		if key == nil {
			i = 0
		} else {
			i = sort.Search(curr.N, func(i int) bool {
				return curr.Keys[i].Compare(key) >= 0
			})
		}

		child := curr.Children[i]
		child.RLock()
		curr.RUnlock()
		curr = child
	}

	var idx int
	if key == nil {
		idx = 0
	} else {
		idx = sort.Search(curr.N, func(i int) bool {
			return curr.Keys[i].Compare(key) >= 0
		})
	}

	return curr, idx
}

// findLeafLowerBound is the unlocked-result form used by tests that walk
// the tree structurally without caring about latch discipline.
func (b *BPlusTree) findLeafLowerBound(key types.Comparable) (*Node, int) {
	node, idx := b.FindLeafLowerBound(key)
	if node != nil {
		node.RUnlock()
	}
	return node, idx
}
