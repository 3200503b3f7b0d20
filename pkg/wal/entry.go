// Package wal implements the write-ahead log: a single append-only file of
// framed, checksummed records whose LSNs are strictly increasing file
// offsets. Every page mutation is logged here before the corresponding
// buffer pool frame is allowed to be written back to the data file
// ("WAL-before-write"), which is what lets the ARIES recovery manager in
// pkg/recovery replay or undo work after a crash.
package wal

import (
	"encoding/binary"
	"io"
)

// HeaderSize is the fixed size, in bytes, of every WALHeader.
const HeaderSize = 40

// WALVersion is the current on-disk format version.
const WALVersion = 1

// WALMagic tags the start of every header for quick validation.
const WALMagic = 0xDEADBEEF

// EntryType is an ARIES log record type.
type EntryType uint8

const (
	EntryInsert EntryType = iota + 1
	EntryUpdate
	EntryApplyDelete
	EntryBegin
	EntryCommit
	EntryAbort
	EntryCLR
	EntryCheckpointBegin
	EntryCheckpointEnd
)

func (t EntryType) String() string {
	switch t {
	case EntryInsert:
		return "INSERT"
	case EntryUpdate:
		return "UPDATE"
	case EntryApplyDelete:
		return "APPLY_DELETE"
	case EntryBegin:
		return "BEGIN"
	case EntryCommit:
		return "COMMIT"
	case EntryAbort:
		return "ABORT"
	case EntryCLR:
		return "CLR"
	case EntryCheckpointBegin:
		return "CHECKPOINT_BEGIN"
	case EntryCheckpointEnd:
		return "CHECKPOINT_END"
	default:
		return "UNKNOWN"
	}
}

// WALHeader is the fixed 40-byte prefix of every log record.
type WALHeader struct {
	Magic      uint32
	Version    uint8
	EntryType  EntryType
	Reserved   uint16
	LSN        uint64 // this record's own LSN (its byte offset in the file)
	PrevLSN    uint64 // the previous record written by the same transaction, 0 if none
	TxnID      uint64
	PayloadLen uint32
	CRC32      uint32 // checksum of Payload only
}

// Encode serializes the header into buf, which must be at least HeaderSize
// bytes.
func (h *WALHeader) Encode(buf []byte) {
	binary.LittleEndian.PutUint32(buf[0:4], h.Magic)
	buf[4] = h.Version
	buf[5] = uint8(h.EntryType)
	binary.LittleEndian.PutUint16(buf[6:8], h.Reserved)
	binary.LittleEndian.PutUint64(buf[8:16], h.LSN)
	binary.LittleEndian.PutUint64(buf[16:24], h.PrevLSN)
	binary.LittleEndian.PutUint64(buf[24:32], h.TxnID)
	binary.LittleEndian.PutUint32(buf[32:36], h.PayloadLen)
	binary.LittleEndian.PutUint32(buf[36:40], h.CRC32)
}

// Decode reverses Encode.
func (h *WALHeader) Decode(buf []byte) {
	h.Magic = binary.LittleEndian.Uint32(buf[0:4])
	h.Version = buf[4]
	h.EntryType = EntryType(buf[5])
	h.Reserved = binary.LittleEndian.Uint16(buf[6:8])
	h.LSN = binary.LittleEndian.Uint64(buf[8:16])
	h.PrevLSN = binary.LittleEndian.Uint64(buf[16:24])
	h.TxnID = binary.LittleEndian.Uint64(buf[24:32])
	h.PayloadLen = binary.LittleEndian.Uint32(buf[32:36])
	h.CRC32 = binary.LittleEndian.Uint32(buf[36:40])
}

// WALEntry is one full log record: header plus the record-type-specific
// payload, encoded with protowire (see payload.go).
type WALEntry struct {
	Header  WALHeader
	Payload []byte
}

// WriteTo writes header then payload to w, returning the number of bytes
// written.
func (e *WALEntry) WriteTo(w io.Writer) (int64, error) {
	var headerBuf [HeaderSize]byte
	e.Header.Encode(headerBuf[:])

	n, err := w.Write(headerBuf[:])
	if err != nil {
		return int64(n), err
	}

	m, err := w.Write(e.Payload)
	return int64(n + m), err
}
