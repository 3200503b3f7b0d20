// Package heap implements the table heap: the doubly-linked chain of
// slotted pages (see pkg/storage) that stores a table's rows. Insert always
// appends to (or reuses free space on) the heap's tail page; iteration
// walks the chain forward page by page, slot by slot.
package heap

import (
	"sync"

	"github.com/francodb/francodb/pkg/storage"
	"github.com/francodb/francodb/pkg/types"
)

// Heap is one table's row storage: a chain of slotted pages anchored at
// FirstPageID, with LastPageID cached so inserts don't have to walk the
// whole chain to find room.
type Heap struct {
	mu   sync.Mutex
	pool *storage.BufferPool
	pa   *storage.PageAllocator

	FirstPageID types.PageID
	LastPageID  types.PageID
}

// New creates an empty heap: a single slotted page, allocated fresh.
func New(pool *storage.BufferPool, pa *storage.PageAllocator) (*Heap, error) {
	id, err := pa.AllocatePage()
	if err != nil {
		return nil, err
	}
	frame, err := pool.FetchPage(id)
	if err != nil {
		return nil, err
	}
	frame.Lock()
	storage.InitSlottedPage(frame.Data)
	frame.Unlock()
	if err := pool.UnpinPage(id, true, 0); err != nil {
		return nil, err
	}
	return &Heap{pool: pool, pa: pa, FirstPageID: id, LastPageID: id}, nil
}

// Open reconstructs a Heap handle for a table whose chain already exists on
// disk (loaded from the catalog).
func Open(pool *storage.BufferPool, pa *storage.PageAllocator, first, last types.PageID) *Heap {
	return &Heap{pool: pool, pa: pa, FirstPageID: first, LastPageID: last}
}

// Insert appends tuple to the heap, allocating a new tail page if the
// current tail is full, and returns the RID it landed at.
func (h *Heap) Insert(tuple []byte) (types.RID, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	frame, err := h.pool.FetchPage(h.LastPageID)
	if err != nil {
		return types.InvalidRID, err
	}
	frame.Lock()
	page := storage.WrapSlottedPage(frame.Data)
	if page.CanFit(len(tuple)) {
		slot, err := page.Insert(tuple)
		frame.Unlock()
		if err != nil {
			h.pool.UnpinPage(h.LastPageID, false, 0)
			return types.InvalidRID, err
		}
		rid := types.RID{PageID: h.LastPageID, Slot: slot}
		return rid, h.pool.UnpinPage(h.LastPageID, true, 0)
	}
	frame.Unlock()
	if err := h.pool.UnpinPage(h.LastPageID, false, 0); err != nil {
		return types.InvalidRID, err
	}

	newID, err := h.pa.AllocatePage()
	if err != nil {
		return types.InvalidRID, err
	}
	newFrame, err := h.pool.FetchPage(newID)
	if err != nil {
		return types.InvalidRID, err
	}
	newFrame.Lock()
	newPage := storage.InitSlottedPage(newFrame.Data)
	newPage.SetLinks(h.LastPageID, types.InvalidPageID)
	slot, err := newPage.Insert(tuple)
	newFrame.Unlock()
	if err != nil {
		h.pool.UnpinPage(newID, false, 0)
		return types.InvalidRID, err
	}
	if err := h.pool.UnpinPage(newID, true, 0); err != nil {
		return types.InvalidRID, err
	}

	oldTail, err := h.pool.FetchPage(h.LastPageID)
	if err != nil {
		return types.InvalidRID, err
	}
	oldTail.Lock()
	oldPage := storage.WrapSlottedPage(oldTail.Data)
	oldPage.SetLinks(oldPage.PrevPageID(), newID)
	oldTail.Unlock()
	if err := h.pool.UnpinPage(h.LastPageID, true, 0); err != nil {
		return types.InvalidRID, err
	}

	h.LastPageID = newID
	return types.RID{PageID: newID, Slot: slot}, nil
}

// Get reads the tuple at rid, or (nil, false) if it has been deleted.
func (h *Heap) Get(rid types.RID) ([]byte, bool, error) {
	frame, err := h.pool.FetchPage(rid.PageID)
	if err != nil {
		return nil, false, err
	}
	frame.RLock()
	tuple, ok := storage.WrapSlottedPage(frame.Data).Get(rid.Slot)
	var copied []byte
	if ok {
		copied = append([]byte(nil), tuple...)
	}
	frame.RUnlock()
	return copied, ok, h.pool.UnpinPage(rid.PageID, false, 0)
}

// Delete tombstones the tuple at rid.
func (h *Heap) Delete(rid types.RID) error {
	frame, err := h.pool.FetchPage(rid.PageID)
	if err != nil {
		return err
	}
	frame.Lock()
	err = storage.WrapSlottedPage(frame.Data).Delete(rid.Slot)
	frame.Unlock()
	if err != nil {
		h.pool.UnpinPage(rid.PageID, false, 0)
		return err
	}
	return h.pool.UnpinPage(rid.PageID, true, 0)
}

// Update replaces the tuple at rid in place when it fits, or tombstones the
// old slot and appends the new image elsewhere, returning the new RID.
func (h *Heap) Update(rid types.RID, tuple []byte) (types.RID, error) {
	frame, err := h.pool.FetchPage(rid.PageID)
	if err != nil {
		return types.InvalidRID, err
	}
	frame.Lock()
	relocated, err := storage.WrapSlottedPage(frame.Data).Update(rid.Slot, tuple)
	frame.Unlock()
	if err != nil {
		h.pool.UnpinPage(rid.PageID, false, 0)
		return types.InvalidRID, err
	}
	if err := h.pool.UnpinPage(rid.PageID, true, 0); err != nil {
		return types.InvalidRID, err
	}
	if !relocated {
		return rid, nil
	}
	return h.Insert(tuple)
}

// PutAt writes tuple at rid exactly, bypassing the tail-append allocation
// Insert always does. It exists only for crash recovery redo, which must
// reproduce a committed operation's original RID rather than append a
// fresh one: calling Insert during redo would hand every replayed row a
// new RID, breaking every index entry and foreign key logged against the
// old one. The target page must already exist in the chain (redo only
// ever targets a RID some earlier, already-applied log record produced).
func (h *Heap) PutAt(rid types.RID, tuple []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	frame, err := h.pool.FetchPage(rid.PageID)
	if err != nil {
		return err
	}
	frame.Lock()
	err = storage.WrapSlottedPage(frame.Data).PutAt(rid.Slot, tuple)
	frame.Unlock()
	if err != nil {
		h.pool.UnpinPage(rid.PageID, false, 0)
		return err
	}
	return h.pool.UnpinPage(rid.PageID, true, 0)
}

// Iterator walks a heap forward, page by page, slot by slot, caching the
// current tuple so repeated Tuple() calls don't re-fetch the page.
type Iterator struct {
	heap    *Heap
	current types.PageID
	slot    uint16
	rid     types.RID
	tuple   []byte
	done    bool
}

// NewIterator creates a forward iterator positioned before the first row.
func NewIterator(h *Heap) *Iterator {
	return &Iterator{heap: h, current: h.FirstPageID}
}

// Next advances to the next live row, returning false once the heap is
// exhausted.
func (it *Iterator) Next() (bool, error) {
	for it.current != types.InvalidPageID {
		frame, err := it.heap.pool.FetchPage(it.current)
		if err != nil {
			return false, err
		}
		frame.RLock()
		page := storage.WrapSlottedPage(frame.Data)
		count := page.SlotCount()
		next := page.NextPageID()

		for it.slot < count {
			if tuple, ok := page.Get(it.slot); ok {
				it.rid = types.RID{PageID: it.current, Slot: it.slot}
				it.tuple = append([]byte(nil), tuple...)
				it.slot++
				frame.RUnlock()
				it.heap.pool.UnpinPage(it.current, false, 0)
				return true, nil
			}
			it.slot++
		}
		frame.RUnlock()
		it.heap.pool.UnpinPage(it.current, false, 0)

		it.current = next
		it.slot = 0
	}
	it.done = true
	return false, nil
}

func (it *Iterator) RID() types.RID { return it.rid }
func (it *Iterator) Tuple() []byte  { return it.tuple }
func (it *Iterator) Done() bool     { return it.done }

// Verify re-reads the tuple at the iterator's current RID and reports
// whether it is still live, for a scan holding a cached tuple across a
// yield point where a concurrent writer might have mutated or deleted it.
func (it *Iterator) Verify() (stillLive bool, err error) {
	tuple, ok, err := it.heap.Get(it.rid)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	it.tuple = tuple
	return true, nil
}
