// Package checkpoint implements the checkpoint directory and per-table
// snapshot files that let time-travel queries (`SELECT ... AS OF t`,
// `RECOVER TO t`) start from a recent table snapshot instead of replaying
// the write-ahead log from the beginning.
package checkpoint

import (
	"os"
	"sort"
	"sync"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/francodb/francodb/pkg/errors"
)

const indexMagic = "CPIX"
const indexVersion = 1

// Entry is one completed checkpoint's directory record: the LSN its
// CHECKPOINT_BEGIN was written at (which also names its snapshot
// directory), the wall-clock time it was taken, and a WAL file offset
// that is stored and loaded but not read by any replay.
type Entry struct {
	LSN        uint64
	Timestamp  int64
	FileOffset int64
}

// Index is the sorted, binary-searchable checkpoint directory persisted at
// <db>/checkpoints.idx. A single mutex guards it: checkpoints are rare
// (every T records or M seconds) and FindNearestBefore is cheap, so there
// is no concurrency to win by splitting the lock further.
type Index struct {
	mu      sync.Mutex
	entries []Entry // kept sorted by Timestamp ascending
}

func NewIndex() *Index { return &Index{} }

// Append records a newly completed checkpoint, keeping entries sorted by
// timestamp so FindNearestBefore can binary search.
func (idx *Index) Append(e Entry) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.entries = append(idx.entries, e)
	sort.Slice(idx.entries, func(i, j int) bool {
		return idx.entries[i].Timestamp < idx.entries[j].Timestamp
	})
}

// FindNearestBefore returns the latest checkpoint entry with timestamp <=
// t, the starting point for a time-travel read as of t.
func (idx *Index) FindNearestBefore(t int64) (Entry, bool) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	i := sort.Search(len(idx.entries), func(i int) bool { return idx.entries[i].Timestamp > t })
	if i == 0 {
		return Entry{}, false
	}
	return idx.entries[i-1], true
}

// Entries returns every checkpoint entry, oldest first.
func (idx *Index) Entries() []Entry {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return append([]Entry(nil), idx.entries...)
}

// Persist writes idx to path via write-temp-then-rename.
func Persist(idx *Index, path string) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	var b []byte
	b = append(b, indexMagic...)
	b = protowire.AppendVarint(b, indexVersion)
	b = protowire.AppendVarint(b, uint64(len(idx.entries)))
	for _, e := range idx.entries {
		b = protowire.AppendVarint(b, e.LSN)
		b = protowire.AppendVarint(b, uint64(e.Timestamp))
		b = protowire.AppendVarint(b, uint64(e.FileOffset))
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0644); err != nil {
		return errors.Wrap(errors.IOError, err, "writing checkpoint index temp file")
	}
	if err := os.Rename(tmp, path); err != nil {
		return errors.Wrap(errors.IOError, err, "renaming checkpoint index into place")
	}
	return nil
}

// Load reconstructs an Index from a file written by Persist. Per
// spec.md's time-travel fallback, a caller that gets a *errors.CorruptionError
// here should treat the index as absent and fall back to full-log replay
// rather than failing outright.
func Load(path string) (*Index, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errors.IOError, err, "reading checkpoint index file")
	}

	if len(data) < len(indexMagic) || string(data[:len(indexMagic)]) != indexMagic {
		return nil, &errors.CorruptionError{Location: path, Detail: "bad checkpoint index magic"}
	}
	data = data[len(indexMagic):]

	version, n := protowire.ConsumeVarint(data)
	if n < 0 || version != indexVersion {
		return nil, &errors.CorruptionError{Location: path, Detail: "unsupported checkpoint index version"}
	}
	data = data[n:]

	count, n := protowire.ConsumeVarint(data)
	if n < 0 {
		return nil, &errors.CorruptionError{Location: path, Detail: "truncated checkpoint index"}
	}
	data = data[n:]

	idx := NewIndex()
	for i := uint64(0); i < count; i++ {
		lsn, n := protowire.ConsumeVarint(data)
		if n < 0 {
			return nil, &errors.CorruptionError{Location: path, Detail: "truncated checkpoint index entry"}
		}
		data = data[n:]

		ts, n := protowire.ConsumeVarint(data)
		if n < 0 {
			return nil, &errors.CorruptionError{Location: path, Detail: "truncated checkpoint index entry"}
		}
		data = data[n:]

		off, n := protowire.ConsumeVarint(data)
		if n < 0 {
			return nil, &errors.CorruptionError{Location: path, Detail: "truncated checkpoint index entry"}
		}
		data = data[n:]

		idx.entries = append(idx.entries, Entry{LSN: lsn, Timestamp: int64(ts), FileOffset: int64(off)})
	}
	return idx, nil
}
