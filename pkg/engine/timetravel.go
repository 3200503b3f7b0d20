package engine

import (
	"os"

	"github.com/francodb/francodb/pkg/checkpoint"
	dberrors "github.com/francodb/francodb/pkg/errors"
	"github.com/francodb/francodb/pkg/exec"
	"github.com/francodb/francodb/pkg/heap"
	"github.com/francodb/francodb/pkg/recovery"
	"github.com/francodb/francodb/pkg/sql"
	"github.com/francodb/francodb/pkg/types"
)

// execSelectAsOf answers `SELECT ... AS OF <timestamp>` by reading the
// nearest checkpoint snapshot at or before the requested time instead of
// the live heap — see DESIGN.md for why a checkpoint, not an arbitrary
// LSN/timestamp, is this corpus's actual unit of time travel. Joins
// aren't supported against a historical snapshot; AS OF applies to a
// single table's row set.
func (s *Session) execSelectAsOf(stmt *sql.SelectStmt) (*Result, error) {
	if stmt.Join != nil {
		return nil, dberrors.New(dberrors.ExecutionError, "SELECT ... AS OF does not support JOIN")
	}

	s.db.ckptMu.Lock()
	entry, ok := s.db.ckptIdx.FindNearestBefore(stmt.AsOf.Unix())
	s.db.ckptMu.Unlock()

	var schema *types.Schema
	var rows []exec.Row
	if ok {
		path := checkpoint.SnapshotPath(s.db.dir, entry.LSN, stmt.Table)
		if _, statErr := os.Stat(path); statErr == nil {
			_, snapSchema, raw, err := checkpoint.ReadSnapshot(path)
			if err != nil {
				return nil, err
			}
			schema = snapSchema
			for _, tuple := range raw {
				values, err := types.DecodeTuple(schema, tuple)
				if err != nil {
					return nil, err
				}
				rows = append(rows, exec.Row{Values: values})
			}
		}
	}

	if schema == nil {
		// No checkpoint old enough to answer from (or this table didn't
		// exist yet at the nearest one); the closest available truth is
		// the live table.
		tm, err := s.db.cat.GetTable(stmt.Table)
		if err != nil {
			return nil, err
		}
		h, ok := s.db.heapByName(stmt.Table)
		if !ok {
			return nil, dberrors.Newf(dberrors.CatalogError, "no open heap for table %q", stmt.Table)
		}
		schema = tm.Schema
		scan := exec.NewSeqScan(schema, h)
		var err2 error
		rows, err2 = collect(scan)
		if err2 != nil {
			return nil, err2
		}
	}

	iter := exec.Iterator(exec.NewValues(rows))
	if stmt.Where != nil {
		pred, err := buildPredicate(stmt.Where, schema)
		if err != nil {
			return nil, err
		}
		iter = exec.NewFilter(schema, pred, iter)
	}

	cols := make([]int, 0, len(stmt.Columns))
	outCols := make([]types.Column, 0, len(stmt.Columns))
	for _, sc := range stmt.Columns {
		if sc.Column == "*" {
			for i, c := range schema.Columns {
				cols = append(cols, i)
				outCols = append(outCols, c)
			}
			continue
		}
		i, ok := schema.IndexOf(sc.Column)
		if !ok {
			return nil, &dberrors.ColumnNotFoundError{Column: sc.Column}
		}
		col := schema.Columns[i]
		if sc.Alias != "" {
			col.Name = sc.Alias
		}
		cols = append(cols, i)
		outCols = append(outCols, col)
	}
	if len(cols) > 0 {
		iter = exec.NewProject(cols, iter)
		schema = types.NewSchema(outCols)
	}

	if len(stmt.OrderBy) > 0 {
		keys := make([]exec.SortKey, len(stmt.OrderBy))
		for i, o := range stmt.OrderBy {
			keys[i] = exec.SortKey{Column: o.Column, Desc: o.Desc}
		}
		iter = exec.NewSort(schema, keys, iter)
	}
	if stmt.Limit != nil {
		offset := 0
		if stmt.Offset != nil {
			offset = *stmt.Offset
		}
		iter = exec.NewLimit(*stmt.Limit, offset, iter)
	}

	out, err := collect(iter)
	if err != nil {
		return nil, err
	}
	return &Result{Schema: schema, Rows: out}, nil
}

// execRecoverTo restores the database to the nearest checkpoint at or
// before stmt.Timestamp: every table's heap is replaced by that
// checkpoint's snapshot rows, and the WAL from that checkpoint's LSN
// forward is replayed on top, the same redo pass a crash recovery runs,
// just seeded from a snapshot instead of an empty heap.
func (s *Session) execRecoverTo(stmt *sql.RecoverToStmt) (*Result, error) {
	if err := s.requireRoot(); err != nil {
		return nil, err
	}

	s.db.ckptMu.Lock()
	entry, ok := s.db.ckptIdx.FindNearestBefore(stmt.Timestamp.Unix())
	s.db.ckptMu.Unlock()
	if !ok {
		return nil, dberrors.New(dberrors.ExecutionError, "no checkpoint at or before the requested time")
	}

	for _, tm := range s.db.cat.ListTables() {
		path := checkpoint.SnapshotPath(s.db.dir, entry.LSN, tm.Name)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		_, schema, raw, err := checkpoint.ReadSnapshot(path)
		if err != nil {
			return nil, err
		}

		h, err := rebuildHeapFromSnapshot(s.db, raw)
		if err != nil {
			return nil, err
		}
		s.db.setHeap(tm.Name, h)
		if err := s.db.cat.SetHeapTail(tm.Name, h.LastPageID); err != nil {
			return nil, err
		}

		for _, im := range s.db.cat.IndexesOn(tm.Name) {
			im.Root = nil
			if err := rebuildIndex(h, schema, im); err != nil {
				return nil, err
			}
		}
	}

	target := &recoveryTarget{db: s.db}
	recov := recovery.NewManager(s.db.walPath, s.db.wal)
	if err := recov.Recover(target, target); err != nil {
		return nil, dberrors.Wrap(dberrors.Corruption, err, "replaying write-ahead log after RECOVER TO")
	}

	return &Result{Message: "recovered"}, nil
}

// rebuildHeapFromSnapshot writes a fresh heap chain containing exactly
// raw's tuples, in order, at freshly allocated pages — a checkpoint
// snapshot carries no RIDs of its own (see pkg/checkpoint), so restoring
// one can't preserve the exact RIDs rows held before the snapshot was
// taken. Any index is rebuilt against the new RIDs immediately after,
// which is the only place those RIDs are observed from outside the heap.
func rebuildHeapFromSnapshot(db *Database, raw [][]byte) (*heap.Heap, error) {
	h, err := heap.New(db.pool, db.alloc)
	if err != nil {
		return nil, err
	}
	for _, tuple := range raw {
		if _, err := h.Insert(tuple); err != nil {
			return nil, err
		}
	}
	return h, nil
}
