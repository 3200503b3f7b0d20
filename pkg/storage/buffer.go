package storage

import (
	"sync"

	dberrors "github.com/francodb/francodb/pkg/errors"
	"github.com/francodb/francodb/pkg/types"
	"github.com/francodb/francodb/pkg/wal"
)

// Frame is one in-memory slot of the buffer pool: a page's bytes plus the
// bookkeeping needed to know whether it's safe to evict.
type Frame struct {
	mu sync.RWMutex

	PageID  types.PageID
	Data    []byte
	PinCnt  int
	Dirty   bool
	PageLSN uint64 // LSN of the last WAL record that touched this page
}

func (f *Frame) Lock()    { f.mu.Lock() }
func (f *Frame) Unlock()  { f.mu.Unlock() }
func (f *Frame) RLock()   { f.mu.RLock() }
func (f *Frame) RUnlock() { f.mu.RUnlock() }

// BufferPool caches disk pages in fixed frames and enforces the
// WAL-before-write rule: a dirty frame is never flushed to disk until the
// log manager has durably flushed up to that frame's PageLSN.
//
// The pool latch (mu) is only ever held for page-table/free-list/replacer
// bookkeeping, never across disk I/O; callers that need to read or write a
// frame's bytes take the frame's own latch after releasing the pool latch.
type BufferPool struct {
	mu sync.Mutex

	disk     *DiskManager
	log      *wal.Manager
	replacer Replacer

	frames   []*Frame
	pageTbl  map[types.PageID]int // page id -> frame index
	freeList []int

	metrics Metrics
}

// Metrics tracks the counters a partition (or a whole non-partitioned pool)
// reports to Prometheus.
type Metrics struct {
	mu          sync.Mutex
	Hits        uint64
	Misses      uint64
	Evictions   uint64
	DirtyWrites uint64
	Accesses    uint64
}

func (m *Metrics) hit() {
	m.mu.Lock()
	m.Hits++
	m.Accesses++
	m.mu.Unlock()
}

func (m *Metrics) miss() {
	m.mu.Lock()
	m.Misses++
	m.Accesses++
	m.mu.Unlock()
}

func (m *Metrics) eviction() {
	m.mu.Lock()
	m.Evictions++
	m.mu.Unlock()
}

func (m *Metrics) dirtyWrite() {
	m.mu.Lock()
	m.DirtyWrites++
	m.mu.Unlock()
}

// HitRate returns Hits / Accesses, or 1.0 if there have been no accesses
// yet (an empty pool shouldn't look like it's thrashing).
func (m *Metrics) HitRate() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Accesses == 0 {
		return 1.0
	}
	return float64(m.Hits) / float64(m.Accesses)
}

// DirtyRatio is the fraction of writes among tracked accesses. No code in
// the repository reads it, and no pool, partitioned or not, changes its
// frame count after it is built.
func (m *Metrics) DirtyRatio() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Accesses == 0 {
		return 0
	}
	return float64(m.DirtyWrites) / float64(m.Accesses)
}

// MetricsSnapshot is a point-in-time copy of a pool's counters, safe to
// hand to a Prometheus exporter without copying the counters' mutex.
type MetricsSnapshot struct {
	Hits        uint64
	Misses      uint64
	Evictions   uint64
	DirtyWrites uint64
	Accesses    uint64
}

func (m *Metrics) snapshot() MetricsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return MetricsSnapshot{
		Hits:        m.Hits,
		Misses:      m.Misses,
		Evictions:   m.Evictions,
		DirtyWrites: m.DirtyWrites,
		Accesses:    m.Accesses,
	}
}

// NewBufferPool creates a pool of poolSize frames backed by disk, logging
// page mutations through log.
func NewBufferPool(poolSize int, disk *DiskManager, log *wal.Manager, replacer Replacer) *BufferPool {
	if replacer == nil {
		replacer = NewClockReplacer(poolSize)
	}
	bp := &BufferPool{
		disk:     disk,
		log:      log,
		replacer: replacer,
		frames:   make([]*Frame, poolSize),
		pageTbl:  make(map[types.PageID]int, poolSize),
	}
	for i := 0; i < poolSize; i++ {
		bp.frames[i] = &Frame{Data: make([]byte, types.PageSize)}
		bp.freeList = append(bp.freeList, i)
	}
	return bp
}

// FetchPage pins and returns the frame holding id, reading it from disk if
// it isn't already cached.
func (bp *BufferPool) FetchPage(id types.PageID) (*Frame, error) {
	bp.mu.Lock()

	if idx, ok := bp.pageTbl[id]; ok {
		frame := bp.frames[idx]
		frame.PinCnt++
		bp.replacer.Pin(idx)
		bp.mu.Unlock()
		bp.metrics.hit()
		return frame, nil
	}
	bp.metrics.miss()

	idx, err := bp.allocateFrameLocked()
	if err != nil {
		bp.mu.Unlock()
		return nil, err
	}
	frame := bp.frames[idx]
	frame.PinCnt = 1
	bp.pageTbl[id] = idx
	bp.replacer.Pin(idx)
	bp.mu.Unlock()

	// Disk I/O happens with the pool latch released.
	data, err := bp.disk.ReadPage(id)
	frame.Lock()
	if err != nil {
		frame.Unlock()
		bp.mu.Lock()
		delete(bp.pageTbl, id)
		bp.replacer.Unpin(idx)
		frame.PinCnt = 0
		bp.freeList = append(bp.freeList, idx)
		bp.mu.Unlock()
		return nil, err
	}
	frame.PageID = id
	frame.Data = data
	frame.Dirty = false
	frame.Unlock()

	return frame, nil
}

// allocateFrameLocked must be called with bp.mu held. It returns a frame
// index from the free list, or evicts a victim via the replacer, flushing
// it first if dirty.
func (bp *BufferPool) allocateFrameLocked() (int, error) {
	if len(bp.freeList) > 0 {
		idx := bp.freeList[len(bp.freeList)-1]
		bp.freeList = bp.freeList[:len(bp.freeList)-1]
		return idx, nil
	}

	idx, ok := bp.replacer.Victim()
	if !ok {
		return 0, dberrors.New(dberrors.IOError, "buffer pool exhausted: no unpinned frame to evict")
	}
	bp.metrics.eviction()

	victim := bp.frames[idx]
	victim.Lock()
	evictedID := victim.PageID
	if victim.Dirty {
		bp.mu.Unlock()
		if err := bp.flushFrame(evictedID, victim); err != nil {
			victim.Unlock()
			bp.mu.Lock()
			return 0, err
		}
		bp.mu.Lock()
	}
	victim.Unlock()
	delete(bp.pageTbl, evictedID)
	return idx, nil
}

// flushFrame enforces WAL-before-write: it blocks until the log has been
// flushed past the frame's PageLSN, then writes the frame's bytes to disk.
// Called with the pool latch released and the frame latch held.
func (bp *BufferPool) flushFrame(id types.PageID, frame *Frame) error {
	if bp.log != nil {
		if err := bp.log.FlushTo(frame.PageLSN); err != nil {
			return err
		}
	}
	if err := bp.disk.WritePage(id, frame.Data); err != nil {
		return err
	}
	bp.metrics.dirtyWrite()
	frame.Dirty = false
	return nil
}

// UnpinPage releases one pin on id. dirty, if true, marks the page dirty
// (dirty flags only ever turn on here, never off until a flush succeeds).
// pageLSN is the LSN of the record that produced this mutation, used for
// WAL-before-write; pass 0 if the unpin didn't dirty the page.
func (bp *BufferPool) UnpinPage(id types.PageID, dirty bool, pageLSN uint64) error {
	bp.mu.Lock()
	idx, ok := bp.pageTbl[id]
	if !ok {
		bp.mu.Unlock()
		return dberrors.Newf(dberrors.IOError, "unpin: page %d not in buffer pool", id)
	}
	frame := bp.frames[idx]
	bp.mu.Unlock()

	frame.Lock()
	if dirty {
		frame.Dirty = true
		if pageLSN > frame.PageLSN {
			frame.PageLSN = pageLSN
		}
	}
	frame.Unlock()

	bp.mu.Lock()
	frame.PinCnt--
	if frame.PinCnt < 0 {
		frame.PinCnt = 0
	}
	if frame.PinCnt == 0 {
		bp.replacer.Unpin(idx)
	}
	bp.mu.Unlock()
	return nil
}

// FlushPage forces id to disk immediately if dirty, regardless of pin
// count. Used by checkpointing.
func (bp *BufferPool) FlushPage(id types.PageID) error {
	bp.mu.Lock()
	idx, ok := bp.pageTbl[id]
	if !ok {
		bp.mu.Unlock()
		return nil
	}
	frame := bp.frames[idx]
	bp.mu.Unlock()

	frame.Lock()
	defer frame.Unlock()
	if !frame.Dirty {
		return nil
	}
	return bp.flushFrame(id, frame)
}

// FlushAll flushes every dirty frame currently resident.
func (bp *BufferPool) FlushAll() error {
	bp.mu.Lock()
	ids := make([]types.PageID, 0, len(bp.pageTbl))
	for id := range bp.pageTbl {
		ids = append(ids, id)
	}
	bp.mu.Unlock()

	for _, id := range ids {
		if err := bp.FlushPage(id); err != nil {
			return err
		}
	}
	return nil
}

// NewPage allocates a fresh page on disk and pins it in the pool, ready for
// a caller to initialize.
func (bp *BufferPool) NewPage() (*Frame, types.PageID, error) {
	id, err := bp.disk.AllocatePage()
	if err != nil {
		return nil, types.InvalidPageID, err
	}
	frame, err := bp.pinFreshPage(id)
	if err != nil {
		return nil, types.InvalidPageID, err
	}
	return frame, id, nil
}

// pinFreshPage pins and zeroes id in this pool without allocating it on
// disk — the caller already owns the allocation (NewPage allocates and
// pins in one pool; PartitionedPool allocates once against the shared
// disk and then pins in whichever partition id hashes to).
func (bp *BufferPool) pinFreshPage(id types.PageID) (*Frame, error) {
	bp.mu.Lock()
	idx, err := bp.allocateFrameLocked()
	if err != nil {
		bp.mu.Unlock()
		return nil, err
	}
	frame := bp.frames[idx]
	frame.PinCnt = 1
	bp.pageTbl[id] = idx
	bp.replacer.Pin(idx)
	bp.mu.Unlock()
	bp.metrics.miss()

	frame.Lock()
	frame.PageID = id
	for i := range frame.Data {
		frame.Data[i] = 0
	}
	frame.Dirty = false
	frame.Unlock()

	return frame, nil
}

// MetricsSnapshot returns a point-in-time copy of this pool's counters.
func (bp *BufferPool) MetricsSnapshot() MetricsSnapshot { return bp.metrics.snapshot() }
