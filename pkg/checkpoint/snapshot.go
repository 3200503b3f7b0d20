package checkpoint

import (
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/klauspost/compress/zstd"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/francodb/francodb/pkg/errors"
	"github.com/francodb/francodb/pkg/types"
)

// snapMagic/snapVersion tag <table>.snap files. Version 2 stores row
// values with the same binary tuple encoding pkg/types uses on disk
// (types.EncodeTuple), replacing a text round-trip that would lose
// precision on decimal columns; see DESIGN.md.
const snapMagic = "SNAP"
const snapVersion = 2

const (
	fSnapLSN       = 1
	fSnapTimestamp = 2
	fSnapTable     = 3
	fSnapRowCount  = 4
	fSnapSchema    = 5
	fSnapRow       = 6 // repeated, each a types.EncodeTuple image
)

// Header identifies one table snapshot independent of its row payload.
type Header struct {
	CheckpointLSN uint64
	Timestamp     int64
	TableName     string
	RowCount      uint32
}

// WriteSnapshot serializes a table's full row set as of header's checkpoint
// LSN to path, zstd-compressed, via write-temp-then-rename.
func WriteSnapshot(path string, header Header, schema *types.Schema, rows [][]byte) error {
	var body []byte
	body = protowire.AppendTag(body, fSnapLSN, protowire.VarintType)
	body = protowire.AppendVarint(body, header.CheckpointLSN)
	body = protowire.AppendTag(body, fSnapTimestamp, protowire.VarintType)
	body = protowire.AppendVarint(body, uint64(header.Timestamp))
	body = protowire.AppendTag(body, fSnapTable, protowire.BytesType)
	body = protowire.AppendString(body, header.TableName)
	body = protowire.AppendTag(body, fSnapRowCount, protowire.VarintType)
	body = protowire.AppendVarint(body, uint64(len(rows)))
	body = protowire.AppendTag(body, fSnapSchema, protowire.BytesType)
	body = protowire.AppendBytes(body, encodeSchema(schema))
	for _, row := range rows {
		body = protowire.AppendTag(body, fSnapRow, protowire.BytesType)
		body = protowire.AppendBytes(body, row)
	}

	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return errors.Wrap(errors.IOError, err, "creating zstd encoder for table snapshot")
	}
	compressed := enc.EncodeAll(body, nil)
	enc.Close()

	var out []byte
	out = append(out, snapMagic...)
	out = protowire.AppendVarint(out, snapVersion)
	out = append(out, compressed...)

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.Wrap(errors.IOError, err, "creating checkpoint directory")
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, out, 0644); err != nil {
		return errors.Wrap(errors.IOError, err, "writing table snapshot temp file")
	}
	if err := os.Rename(tmp, path); err != nil {
		return errors.Wrap(errors.IOError, err, "renaming table snapshot into place")
	}
	return nil
}

// ReadSnapshot loads a table snapshot written by WriteSnapshot. A
// *errors.CorruptionError here (bad magic, unsupported version, truncated
// body) should be treated by the caller as "no snapshot available", per
// spec.md's fallback to full-log replay — not as a fatal error.
func ReadSnapshot(path string) (Header, *types.Schema, [][]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Header{}, nil, nil, errors.Wrap(errors.IOError, err, "reading table snapshot file")
	}

	if len(data) < len(snapMagic) || string(data[:len(snapMagic)]) != snapMagic {
		return Header{}, nil, nil, &errors.CorruptionError{Location: path, Detail: "bad table snapshot magic"}
	}
	data = data[len(snapMagic):]

	version, n := protowire.ConsumeVarint(data)
	if n < 0 || version != snapVersion {
		return Header{}, nil, nil, &errors.CorruptionError{Location: path, Detail: "unsupported table snapshot version"}
	}
	data = data[n:]

	dec, err := zstd.NewReader(nil)
	if err != nil {
		return Header{}, nil, nil, errors.Wrap(errors.IOError, err, "creating zstd decoder for table snapshot")
	}
	defer dec.Close()
	body, err := dec.DecodeAll(data, nil)
	if err != nil {
		return Header{}, nil, nil, &errors.CorruptionError{Location: path, Detail: "zstd decompression failed"}
	}

	var header Header
	var schema *types.Schema
	var rows [][]byte

	err = walkFields(body, func(num protowire.Number, typ protowire.Type, v []byte) error {
		switch num {
		case fSnapLSN:
			header.CheckpointLSN = mustVarint(v)
		case fSnapTimestamp:
			header.Timestamp = int64(mustVarint(v))
		case fSnapTable:
			header.TableName = string(v)
		case fSnapRowCount:
			header.RowCount = uint32(mustVarint(v))
		case fSnapSchema:
			s, err := decodeSchema(v)
			if err != nil {
				return err
			}
			schema = s
		case fSnapRow:
			rows = append(rows, append([]byte(nil), v...))
		}
		return nil
	})
	if err != nil {
		return Header{}, nil, nil, &errors.CorruptionError{Location: path, Detail: "malformed table snapshot body"}
	}
	return header, schema, rows, nil
}

// SnapshotDir is where one checkpoint's table snapshots live:
// <db>/checkpoints/<lsn>/<table>.snap.
func SnapshotDir(dbDir string, lsn uint64) string {
	return filepath.Join(dbDir, "checkpoints", strconv.FormatUint(lsn, 10))
}

// SnapshotPath is the full path to one table's snapshot file within a
// checkpoint's directory.
func SnapshotPath(dbDir string, lsn uint64, table string) string {
	return filepath.Join(SnapshotDir(dbDir, lsn), table+".snap")
}

// PruneOldCheckpoints removes every checkpoint subdirectory under
// <dbDir>/checkpoints except the keep most recent (by numeric LSN,
// ascending), per spec.md's default retention of 5.
func PruneOldCheckpoints(dbDir string, keep int) error {
	root := filepath.Join(dbDir, "checkpoints")
	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.Wrap(errors.IOError, err, "listing checkpoint directories")
	}

	var lsns []uint64
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if lsn, err := strconv.ParseUint(e.Name(), 10, 64); err == nil {
			lsns = append(lsns, lsn)
		}
	}
	sort.Slice(lsns, func(i, j int) bool { return lsns[i] < lsns[j] })

	if len(lsns) <= keep {
		return nil
	}
	for _, lsn := range lsns[:len(lsns)-keep] {
		dir := SnapshotDir(dbDir, lsn)
		if err := os.RemoveAll(dir); err != nil {
			return errors.Wrapf(errors.IOError, err, "removing stale checkpoint directory %s", dir)
		}
	}
	return nil
}

// DefaultRetention is the number of most-recent checkpoints kept per
// table when no explicit retention policy is configured.
const DefaultRetention = 5
