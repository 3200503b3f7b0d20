package wal

import (
	"encoding/binary"
	"io"
	"os"
	"testing"
)

func TestWALReader_ReadSeconds(t *testing.T) {
	tmpFile := "test_wal_read_seconds.log"
	defer os.Remove(tmpFile)

	opts := Options{SyncPolicy: SyncEveryWrite, BufferSize: 1024}
	w, _ := NewWALWriter(tmpFile, opts)

	payload1 := []byte("first entry")
	payload2 := []byte("second entry")

	e1 := AcquireEntry()
	e1.Header.EntryType = EntryInsert
	e1.Payload = append(e1.Payload, payload1...)
	if _, err := w.Append(e1); err != nil {
		t.Fatalf("Append 1 failed: %v", err)
	}
	ReleaseEntry(e1)

	e2 := AcquireEntry()
	e2.Header.EntryType = EntryUpdate
	e2.Payload = append(e2.Payload, payload2...)
	lsn2, err := w.Append(e2)
	if err != nil {
		t.Fatalf("Append 2 failed: %v", err)
	}
	ReleaseEntry(e2)
	w.Close()

	r, err := NewWALReader(tmpFile)
	if err != nil {
		t.Fatalf("Failed to open reader: %v", err)
	}
	defer r.Close()

	read1, err := r.ReadEntry()
	if err != nil {
		t.Fatalf("ReadEntry 1 failed: %v", err)
	}
	if string(read1.Payload) != string(payload1) {
		t.Errorf("Payload mismatch. Got %s, want %s", read1.Payload, payload1)
	}
	ReleaseEntry(read1)

	read2, err := r.ReadEntry()
	if err != nil {
		t.Fatalf("ReadEntry 2 failed: %v", err)
	}
	if read2.Header.LSN != lsn2 {
		t.Errorf("LSN mismatch. Got %d, want %d", read2.Header.LSN, lsn2)
	}
	ReleaseEntry(read2)

	_, err = r.ReadEntry()
	if err != io.EOF {
		t.Errorf("Expected EOF, got %v", err)
	}
}

func TestWALReader_Corruption(t *testing.T) {
	tmpFile := "test_wal_corruption.log"
	defer os.Remove(tmpFile)

	opts := Options{SyncPolicy: SyncEveryWrite, BufferSize: 1024}
	w, _ := NewWALWriter(tmpFile, opts)
	payload := []byte("critical data")
	e := AcquireEntry()
	e.Payload = append(e.Payload, payload...)
	w.Append(e)
	w.Close()

	f, _ := os.OpenFile(tmpFile, os.O_RDWR, 0644)
	f.Seek(int64(HeaderSize+2), 0)
	f.Write([]byte{0xFF})
	f.Close()

	r, _ := NewWALReader(tmpFile)
	defer r.Close()

	_, err := r.ReadEntry()
	if err != ErrChecksumMismatch {
		t.Errorf("Expected ErrChecksumMismatch, got %v", err)
	}
}

func TestWALReader_TruncatedPayload(t *testing.T) {
	tmpFile := "test_wal_truncated.log"
	defer os.Remove(tmpFile)

	opts := Options{SyncPolicy: SyncEveryWrite}
	w, _ := NewWALWriter(tmpFile, opts)
	payload := []byte("loooooong data")
	e := AcquireEntry()
	e.Payload = append(e.Payload, payload...)
	w.Append(e)
	w.Close()

	os.Truncate(tmpFile, int64(HeaderSize+5))

	r, _ := NewWALReader(tmpFile)
	defer r.Close()

	_, err := r.ReadEntry()
	if err != io.ErrUnexpectedEOF {
		t.Errorf("Expected ErrUnexpectedEOF, got %v", err)
	}
}

func TestWALReader_InvalidMagic(t *testing.T) {
	tmpFile := "test_wal_magic.log"
	defer os.Remove(tmpFile)

	f, _ := os.Create(tmpFile)
	invalidHeader := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint32(invalidHeader[0:4], 0xCAFEBABE)
	f.Write(invalidHeader)
	f.Close()

	r, _ := NewWALReader(tmpFile)
	defer r.Close()

	_, err := r.ReadEntry()
	if err != ErrInvalidMagic {
		t.Errorf("Expected ErrInvalidMagic, got %v", err)
	}
}

func TestWALReader_SeekAndOffset(t *testing.T) {
	tmpFile := "test_wal_seek.log"
	defer os.Remove(tmpFile)

	w, _ := NewWALWriter(tmpFile, Options{SyncPolicy: SyncEveryWrite, BufferSize: 1024})
	e1 := AcquireEntry()
	e1.Payload = append(e1.Payload, []byte("one")...)
	w.Append(e1)
	ReleaseEntry(e1)

	e2 := AcquireEntry()
	e2.Payload = append(e2.Payload, []byte("two")...)
	lsn2, _ := w.Append(e2)
	ReleaseEntry(e2)
	w.Close()

	r, _ := NewWALReader(tmpFile)
	defer r.Close()

	if err := r.Seek(lsn2); err != nil {
		t.Fatalf("Seek failed: %v", err)
	}
	entry, err := r.ReadEntry()
	if err != nil {
		t.Fatalf("ReadEntry after seek failed: %v", err)
	}
	if string(entry.Payload) != "two" {
		t.Errorf("expected payload %q after seek, got %q", "two", entry.Payload)
	}
	ReleaseEntry(entry)
}
