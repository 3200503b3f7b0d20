package wal

import (
	"errors"
	"io"
	"os"

	dberrors "github.com/francodb/francodb/pkg/errors"
)

var (
	ErrInvalidMagic      = errors.New("wal: invalid magic number")
	ErrChecksumMismatch  = errors.New("wal: CRC32 checksum mismatch")
	ErrInvalidPayloadLen = errors.New("wal: invalid or excessive payload length")
)

// WALReader reads records from the log sequentially, starting at the file's
// beginning. Recovery's full-log analysis pass is its only caller outside
// this package.
type WALReader struct {
	file   *os.File
	offset int64
}

// NewWALReader opens an existing log file for sequential reads.
func NewWALReader(path string) (*WALReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, dberrors.Wrapf(dberrors.IOError, err, "opening WAL file %s", path)
	}
	return &WALReader{file: f}, nil
}

// ReadEntry reads the next record. Returns io.EOF once the file is
// exhausted at a record boundary.
func (r *WALReader) ReadEntry() (*WALEntry, error) {
	headerBuf := make([]byte, HeaderSize)
	n, err := io.ReadFull(r.file, headerBuf)
	if err == io.EOF {
		return nil, io.EOF
	}
	if err != nil {
		return nil, dberrors.Wrap(dberrors.IOError, err, "reading WAL header")
	}
	if n != HeaderSize {
		return nil, io.ErrUnexpectedEOF
	}

	var header WALHeader
	header.Decode(headerBuf)

	if header.Magic != WALMagic {
		return nil, ErrInvalidMagic
	}

	if header.PayloadLen == 0 {
		r.offset += int64(HeaderSize)
		return &WALEntry{Header: header}, nil
	}

	if header.PayloadLen > 1024*1024*1024 { // 1GiB safety cap against a corrupt length field
		return nil, ErrInvalidPayloadLen
	}

	entry := AcquireEntry()
	entry.Header = header

	if uint32(cap(entry.Payload)) < header.PayloadLen {
		entry.Payload = make([]byte, header.PayloadLen)
	} else {
		entry.Payload = entry.Payload[:header.PayloadLen]
	}

	n, err = io.ReadFull(r.file, entry.Payload)
	if err != nil {
		ReleaseEntry(entry)
		if err == io.EOF {
			return nil, io.ErrUnexpectedEOF
		}
		return nil, err
	}

	if !ValidateCRC32(entry.Payload, header.CRC32) {
		ReleaseEntry(entry)
		return nil, ErrChecksumMismatch
	}

	r.offset += int64(HeaderSize + int(header.PayloadLen))
	return entry, nil
}

// Seek repositions the reader to an absolute file offset (an LSN).
func (r *WALReader) Seek(lsn uint64) error {
	off, err := r.file.Seek(int64(lsn), io.SeekStart)
	if err != nil {
		return dberrors.Wrap(dberrors.IOError, err, "seeking WAL reader")
	}
	r.offset = off
	return nil
}

// Offset returns the reader's current file position.
func (r *WALReader) Offset() int64 { return r.offset }

// Close closes the underlying file.
func (r *WALReader) Close() error {
	return r.file.Close()
}
