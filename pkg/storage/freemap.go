package storage

import (
	"sync"

	dberrors "github.com/francodb/francodb/pkg/errors"
	"github.com/francodb/francodb/pkg/types"
)

// FreeMap is the allocation bitmap stored at types.FreeMapPageID: one bit
// per page id, set if the page is in use. Bits 0-2 (the reserved pages) are
// permanently set so they can never be handed out by Allocate.
type FreeMap struct {
	mu   sync.Mutex
	pool *BufferPool
}

func NewFreeMap(pool *BufferPool) *FreeMap {
	return &FreeMap{pool: pool}
}

// Init stamps a fresh bitmap page with the reserved bits set. Call once
// when creating a new database file.
func (fm *FreeMap) Init() error {
	frame, err := fm.pool.FetchPage(types.FreeMapPageID)
	if err != nil {
		return err
	}
	frame.Lock()
	for i := range frame.Data {
		frame.Data[i] = 0
	}
	setBit(frame.Data, 0)
	setBit(frame.Data, 1)
	setBit(frame.Data, 2)
	frame.Unlock()
	return fm.pool.UnpinPage(types.FreeMapPageID, true, 0)
}

// Allocate finds the first clear bit (first-fit), sets it, and returns the
// corresponding page id. If every trackable bit is set, the caller should
// fall back to DiskManager.AllocatePage and extend the map's tracked range.
func (fm *FreeMap) Allocate() (types.PageID, bool, error) {
	fm.mu.Lock()
	defer fm.mu.Unlock()

	frame, err := fm.pool.FetchPage(types.FreeMapPageID)
	if err != nil {
		return types.InvalidPageID, false, err
	}
	defer fm.pool.UnpinPage(types.FreeMapPageID, true, 0)

	frame.Lock()
	defer frame.Unlock()

	maxBits := len(frame.Data) * 8
	for bit := 0; bit < maxBits; bit++ {
		if !testBit(frame.Data, bit) {
			setBit(frame.Data, bit)
			return types.PageID(bit), true, nil
		}
	}
	return types.InvalidPageID, false, nil
}

// Deallocate clears the bit for id, making it eligible for reuse. It is an
// error to deallocate a reserved page.
func (fm *FreeMap) Deallocate(id types.PageID) error {
	if id < types.FirstDataPage {
		return dberrors.Newf(dberrors.IOError, "cannot deallocate reserved page %d", id)
	}

	fm.mu.Lock()
	defer fm.mu.Unlock()

	frame, err := fm.pool.FetchPage(types.FreeMapPageID)
	if err != nil {
		return err
	}
	defer fm.pool.UnpinPage(types.FreeMapPageID, true, 0)

	frame.Lock()
	clearBit(frame.Data, int(id))
	frame.Unlock()
	return nil
}

// IsAllocated reports whether id's bit is set.
func (fm *FreeMap) IsAllocated(id types.PageID) (bool, error) {
	fm.mu.Lock()
	defer fm.mu.Unlock()

	frame, err := fm.pool.FetchPage(types.FreeMapPageID)
	if err != nil {
		return false, err
	}
	defer fm.pool.UnpinPage(types.FreeMapPageID, false, 0)

	frame.RLock()
	defer frame.RUnlock()
	return testBit(frame.Data, int(id)), nil
}

func setBit(data []byte, bit int)   { data[bit/8] |= 1 << uint(bit%8) }
func clearBit(data []byte, bit int) { data[bit/8] &^= 1 << uint(bit%8) }
func testBit(data []byte, bit int) bool {
	return data[bit/8]&(1<<uint(bit%8)) != 0
}
