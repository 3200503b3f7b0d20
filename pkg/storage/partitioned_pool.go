package storage

import (
	"encoding/binary"
	"hash/fnv"

	"github.com/francodb/francodb/pkg/types"
	"github.com/francodb/francodb/pkg/wal"
)

// PartitionedPool spreads pages across N independent BufferPools, hashed
// by page id, so a hot range of pages contends on one partition's latch
// instead of the whole pool's. Each partition keeps its own replacer and
// counters; PartitionSnapshots exports them labeled by partition index.
// Only the package's tests call it; pkg/server does not receive them.
//
// A single partition is a degenerate, always-valid case: NewPartitionedPool
// with partitionCount 1 behaves like a plain BufferPool, just through an
// extra layer of indirection, so a deployment can turn partitioning on
// without a different code path for the single-partition default.
type PartitionedPool struct {
	disk       *DiskManager
	partitions []*BufferPool
}

// NewPartitionedPool builds partitionCount BufferPools of poolSizePerPartition
// frames each, all backed by the same disk and WAL manager.
func NewPartitionedPool(partitionCount, poolSizePerPartition int, disk *DiskManager, log *wal.Manager) *PartitionedPool {
	if partitionCount < 1 {
		partitionCount = 1
	}
	pp := &PartitionedPool{disk: disk, partitions: make([]*BufferPool, partitionCount)}
	for i := range pp.partitions {
		pp.partitions[i] = NewBufferPool(poolSizePerPartition, disk, log, nil)
	}
	return pp
}

// partitionFor routes a page id to its owning partition. The hash only
// needs to be stable for the lifetime of one PartitionedPool — it's never
// persisted, so changing partitionCount across a restart just redistributes
// pages the next time they're fetched.
func (pp *PartitionedPool) partitionFor(id types.PageID) *BufferPool {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(id))
	h := fnv.New32a()
	h.Write(buf[:])
	return pp.partitions[h.Sum32()%uint32(len(pp.partitions))]
}

func (pp *PartitionedPool) FetchPage(id types.PageID) (*Frame, error) {
	return pp.partitionFor(id).FetchPage(id)
}

func (pp *PartitionedPool) UnpinPage(id types.PageID, dirty bool, pageLSN uint64) error {
	return pp.partitionFor(id).UnpinPage(id, dirty, pageLSN)
}

func (pp *PartitionedPool) FlushPage(id types.PageID) error {
	return pp.partitionFor(id).FlushPage(id)
}

// FlushAll flushes every partition in turn.
func (pp *PartitionedPool) FlushAll() error {
	for _, part := range pp.partitions {
		if err := part.FlushAll(); err != nil {
			return err
		}
	}
	return nil
}

// NewPage allocates a fresh page id against the shared disk manager, then
// pins it in whichever partition it hashes to.
func (pp *PartitionedPool) NewPage() (*Frame, types.PageID, error) {
	id, err := pp.disk.AllocatePage()
	if err != nil {
		return nil, types.InvalidPageID, err
	}
	frame, err := pp.partitionFor(id).pinFreshPage(id)
	if err != nil {
		return nil, types.InvalidPageID, err
	}
	return frame, id, nil
}

// PartitionSnapshot pairs a partition's index with its counter snapshot.
type PartitionSnapshot struct {
	Partition int
	MetricsSnapshot
}

// PartitionSnapshots returns one counter snapshot per partition, in
// partition order.
func (pp *PartitionedPool) PartitionSnapshots() []PartitionSnapshot {
	out := make([]PartitionSnapshot, len(pp.partitions))
	for i, part := range pp.partitions {
		out[i] = PartitionSnapshot{Partition: i, MetricsSnapshot: part.MetricsSnapshot()}
	}
	return out
}
