// Package storage is the page-oriented persistence layer: the disk manager
// (raw page I/O plus optional encryption), the buffer pool (and its
// adaptive partitioned variant), the free-page bitmap, and the slotted
// table page format the heap and B+Tree build on.
package storage

import (
	"encoding/binary"
	"hash/crc32"
	"os"
	"strconv"
	"sync"

	dberrors "github.com/francodb/francodb/pkg/errors"
	"github.com/francodb/francodb/pkg/types"
)

// metaMagic tags page 0 of a francodb file.
const metaMagic = "FDB1"

// DiskManager owns the single on-disk file backing a database: it knows how
// to read and write fixed PageSize pages, stamping (and verifying) an IEEE
// CRC32 checksum on every page past the three reserved ones, and optionally
// XOR-streaming the page body against a key for at-rest obfuscation.
//
// DiskManager does no caching and no latching beyond what's needed to keep
// concurrent Read/Write calls from tearing each other's I/O; that's the
// buffer pool's job.
type DiskManager struct {
	mu   sync.Mutex
	file *os.File

	encryptionKey []byte // nil disables encryption
}

// pageChecksumOffset is where the CRC32 of the rest of the page is stored,
// for every page id >= types.FirstDataPage.
const pageChecksumOffset = types.PageSize - 4

// NewDiskManager opens (creating if absent) the database file at path. If
// the file is new, it stamps the magic header on page 0.
func NewDiskManager(path string, encryptionKey []byte) (*DiskManager, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, dberrors.Wrapf(dberrors.IOError, err, "opening database file %s", path)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, dberrors.Wrap(dberrors.IOError, err, "statting database file")
	}

	dm := &DiskManager{file: f, encryptionKey: encryptionKey}
	if info.Size() == 0 {
		if err := dm.writeMetaPage(); err != nil {
			f.Close()
			return nil, err
		}
	}
	return dm, nil
}

// writeMetaPage stamps page 0 and reserves pages 1 (catalog) and 2 (free
// map) by extending the file to hold them, zeroed, so the first call to
// AllocatePage hands out types.FirstDataPage rather than colliding with a
// reserved page id.
func (dm *DiskManager) writeMetaPage() error {
	var page [types.PageSize]byte
	copy(page[:4], metaMagic)
	binary.LittleEndian.PutUint32(page[4:8], 1) // format version
	if _, err := dm.file.WriteAt(page[:], 0); err != nil {
		return err
	}

	var blank [types.PageSize]byte
	for id := types.CatalogPageID; id < types.FirstDataPage; id++ {
		if _, err := dm.file.WriteAt(blank[:], int64(id)*types.PageSize); err != nil {
			return err
		}
	}
	return nil
}

// NumPages reports how many PageSize-sized pages the file currently holds.
func (dm *DiskManager) NumPages() (int64, error) {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	info, err := dm.file.Stat()
	if err != nil {
		return 0, dberrors.Wrap(dberrors.IOError, err, "statting database file")
	}
	return info.Size() / types.PageSize, nil
}

// ReadPage reads one PageSize page at id, verifying its checksum (for
// id >= FirstDataPage) and decrypting it if a key is configured.
func (dm *DiskManager) ReadPage(id types.PageID) ([]byte, error) {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	buf := make([]byte, types.PageSize)
	off := int64(id) * types.PageSize
	if _, err := dm.file.ReadAt(buf, off); err != nil {
		return nil, dberrors.Wrapf(dberrors.IOError, err, "reading page %d", id)
	}

	if id >= types.FirstDataPage {
		if dm.encryptionKey != nil {
			xorStream(buf[:pageChecksumOffset], dm.encryptionKey)
		}
		want := binary.LittleEndian.Uint32(buf[pageChecksumOffset:])
		got := crc32.ChecksumIEEE(buf[:pageChecksumOffset])
		if want != got {
			return nil, &dberrors.CorruptionError{Location: pageLocation(id), Detail: "checksum mismatch"}
		}
	}
	return buf, nil
}

// WritePage persists page (which must be exactly PageSize bytes) at id,
// stamping a fresh checksum and re-encrypting as configured.
func (dm *DiskManager) WritePage(id types.PageID, page []byte) error {
	if len(page) != types.PageSize {
		return dberrors.Newf(dberrors.IOError, "page %d: expected %d bytes, got %d", id, types.PageSize, len(page))
	}

	dm.mu.Lock()
	defer dm.mu.Unlock()

	buf := make([]byte, types.PageSize)
	copy(buf, page)

	if id >= types.FirstDataPage {
		sum := crc32.ChecksumIEEE(buf[:pageChecksumOffset])
		binary.LittleEndian.PutUint32(buf[pageChecksumOffset:], sum)
		if dm.encryptionKey != nil {
			xorStream(buf[:pageChecksumOffset], dm.encryptionKey)
		}
	}

	off := int64(id) * types.PageSize
	if _, err := dm.file.WriteAt(buf, off); err != nil {
		return dberrors.Wrapf(dberrors.IOError, err, "writing page %d", id)
	}
	return nil
}

// AllocatePage extends the file by one page and returns its id.
// PageAllocator calls it when the free-page map has no page to offer and
// to grow the file up to an id the map handed out; BufferPool.NewPage and
// PartitionedPool.NewPage call it directly, without consulting the map.
func (dm *DiskManager) AllocatePage() (types.PageID, error) {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	info, err := dm.file.Stat()
	if err != nil {
		return types.InvalidPageID, dberrors.Wrap(dberrors.IOError, err, "statting database file")
	}
	id := types.PageID(info.Size() / types.PageSize)

	var blank [types.PageSize]byte
	if _, err := dm.file.WriteAt(blank[:], int64(id)*types.PageSize); err != nil {
		return types.InvalidPageID, dberrors.Wrapf(dberrors.IOError, err, "extending file for page %d", id)
	}
	return id, nil
}

// Sync fsyncs the underlying file.
func (dm *DiskManager) Sync() error {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	if err := dm.file.Sync(); err != nil {
		return dberrors.Wrap(dberrors.IOError, err, "fsyncing database file")
	}
	return nil
}

// Close closes the underlying file.
func (dm *DiskManager) Close() error {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	return dm.file.Close()
}

// xorStream encrypts/decrypts data in place against key, repeating the key
// as needed. Symmetric: calling it twice with the same key is a no-op. This
// is explicitly a lightweight at-rest obfuscation, not a cryptographic
// guarantee.
func xorStream(data, key []byte) {
	if len(key) == 0 {
		return
	}
	for i := range data {
		data[i] ^= key[i%len(key)]
	}
}

func pageLocation(id types.PageID) string {
	return "page " + strconv.FormatInt(int64(id), 10)
}
