package wal

import (
	"bufio"
	"fmt"
	"os"
	"sync"
	"time"

	dberrors "github.com/francodb/francodb/pkg/errors"
)

// WALWriter appends records to a single append-only log file and manages
// when those records are fsynced to disk.
type WALWriter struct {
	mu      sync.Mutex
	file    *os.File
	writer  *bufio.Writer
	options Options

	offset     int64 // next LSN to hand out == current file offset
	flushedLSN uint64
	batchBytes int64

	done   chan struct{}
	ticker *time.Ticker
	closed bool
}

// NewWALWriter opens (creating if absent) the log file at path in append
// mode and starts any background sync routine the options call for.
func NewWALWriter(path string, opts Options) (*WALWriter, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0644)
	if err != nil {
		return nil, dberrors.Wrapf(dberrors.IOError, err, "opening WAL file %s", path)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, dberrors.Wrapf(dberrors.IOError, err, "statting WAL file %s", path)
	}

	w := &WALWriter{
		file:    f,
		writer:  bufio.NewWriterSize(f, opts.BufferSize),
		options: opts,
		offset:  info.Size(),
		done:    make(chan struct{}),
	}

	if opts.SyncPolicy == SyncInterval {
		w.ticker = time.NewTicker(opts.SyncIntervalDuration)
		go w.backgroundSync()
	}

	return w, nil
}

// Append assigns the next LSN to entry, writes it to the buffered writer,
// and applies the configured sync policy. Returns the LSN assigned.
func (w *WALWriter) Append(entry *WALEntry) (uint64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	entry.Header.Magic = WALMagic
	entry.Header.Version = WALVersion
	entry.Header.LSN = uint64(w.offset)
	entry.Header.PayloadLen = uint32(len(entry.Payload))
	entry.Header.CRC32 = CalculateCRC32(entry.Payload)

	n, err := entry.WriteTo(w.writer)
	if err != nil {
		return 0, dberrors.Wrap(dberrors.IOError, err, "appending WAL entry")
	}
	w.offset += n
	w.batchBytes += n

	switch w.options.SyncPolicy {
	case SyncEveryWrite:
		if err := w.syncLocked(); err != nil {
			return entry.Header.LSN, err
		}
	case SyncBatch:
		if w.batchBytes >= w.options.SyncBatchBytes {
			if err := w.syncLocked(); err != nil {
				return entry.Header.LSN, err
			}
		}
	}

	return entry.Header.LSN, nil
}

// FlushTo guarantees every record with LSN <= lsn is durable on disk before
// returning. This is the primitive the buffer pool's WAL-before-write rule
// is built on: a dirty frame may only be written back once FlushTo(page's
// LSN) has returned.
func (w *WALWriter) FlushTo(lsn uint64) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if lsn < w.flushedLSN {
		return nil
	}
	return w.syncLocked()
}

// Sync forces the buffered writer and the file to disk unconditionally.
func (w *WALWriter) Sync() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.syncLocked()
}

func (w *WALWriter) syncLocked() error {
	if err := w.writer.Flush(); err != nil {
		return dberrors.Wrap(dberrors.IOError, err, "flushing WAL buffer")
	}
	if err := w.file.Sync(); err != nil {
		return dberrors.Wrap(dberrors.IOError, err, "fsyncing WAL file")
	}
	w.batchBytes = 0
	w.flushedLSN = uint64(w.offset)
	return nil
}

// Close flushes and closes the underlying file, stopping any background
// sync goroutine first.
func (w *WALWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true

	if w.ticker != nil {
		w.ticker.Stop()
		close(w.done)
	}

	if err := w.syncLocked(); err != nil {
		w.file.Close()
		return err
	}

	if err := w.file.Close(); err != nil {
		return dberrors.Wrap(dberrors.IOError, err, "closing WAL file")
	}
	return nil
}

func (w *WALWriter) backgroundSync() {
	for {
		select {
		case <-w.ticker.C:
			if err := w.Sync(); err != nil {
				fmt.Fprintf(os.Stderr, "wal: background sync failed: %v\n", err)
			}
		case <-w.done:
			return
		}
	}
}
