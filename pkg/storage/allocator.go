package storage

import "github.com/francodb/francodb/pkg/types"

// PageAllocator combines the free-page bitmap with the disk manager so
// callers (the table heap, the B+Tree, the catalog) get a single
// AllocatePage/DeallocatePage pair instead of having to reconcile the
// bitmap's logical view with the file's physical size themselves.
type PageAllocator struct {
	disk *DiskManager
	free *FreeMap
}

func NewPageAllocator(disk *DiskManager, free *FreeMap) *PageAllocator {
	return &PageAllocator{disk: disk, free: free}
}

// AllocatePage returns the first reclaimable page id per the bitmap,
// extending the physical file if that id has never been materialized on
// disk before.
func (a *PageAllocator) AllocatePage() (types.PageID, error) {
	id, ok, err := a.free.Allocate()
	if err != nil {
		return types.InvalidPageID, err
	}
	if !ok {
		return a.disk.AllocatePage()
	}

	numPages, err := a.disk.NumPages()
	if err != nil {
		return types.InvalidPageID, err
	}
	for int64(id) >= numPages {
		if _, err := a.disk.AllocatePage(); err != nil {
			return types.InvalidPageID, err
		}
		numPages++
	}
	return id, nil
}

// DeallocatePage marks id reclaimable. The physical page is left in place
// (zeroing happens lazily, on reuse) so a concurrent reader mid-scan never
// reads garbage past a freed page's old boundary.
func (a *PageAllocator) DeallocatePage(id types.PageID) error {
	return a.free.Deallocate(id)
}
