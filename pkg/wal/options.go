package wal

import "time"

// SyncPolicy selects the durability/throughput tradeoff for WAL writes.
type SyncPolicy int

const (
	// SyncEveryWrite fsyncs after every record. Safest, slowest.
	SyncEveryWrite SyncPolicy = iota

	// SyncInterval fsyncs on a fixed background tick. A balance between
	// the two extremes; bounds exposure to at most one tick of lost
	// writes on crash.
	SyncInterval

	// SyncBatch fsyncs once SyncBatchBytes have accumulated since the
	// last sync. Highest throughput, largest exposure window.
	SyncBatch
)

// Options configures a WALWriter.
type Options struct {
	// DirPath is the directory the log file lives in.
	DirPath string

	// BufferSize is the bufio buffer size between the writer and the OS.
	BufferSize int

	SyncPolicy SyncPolicy

	// SyncIntervalDuration is the tick period for SyncInterval.
	SyncIntervalDuration time.Duration

	// SyncBatchBytes is the accumulated-bytes threshold for SyncBatch.
	SyncBatchBytes int64
}

// DefaultOptions returns a conservative, generally-safe configuration.
func DefaultOptions() Options {
	return Options{
		DirPath:              "./wal_data",
		BufferSize:           64 * 1024, // 64KB bufio buffer
		SyncPolicy:           SyncInterval,
		SyncIntervalDuration: 200 * time.Millisecond,
		SyncBatchBytes:       1 * 1024 * 1024, // 1MB
	}
}
