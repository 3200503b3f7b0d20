package exec

import (
	"github.com/francodb/francodb/pkg/btree"
	"github.com/francodb/francodb/pkg/catalog"
	"github.com/francodb/francodb/pkg/heap"
	"github.com/francodb/francodb/pkg/txn"
	"github.com/francodb/francodb/pkg/types"
	"github.com/francodb/francodb/pkg/wal"
)

// indexKey extracts the key an index's btree stores for row, returning
// false if the indexed column is null (null values are never indexed).
func indexKey(schema *types.Schema, idx *catalog.IndexMetadata, row Row) (types.Comparable, bool) {
	i, ok := schema.IndexOf(idx.Column)
	if !ok || i >= len(row.Values) || row.Values[i].Null {
		return nil, false
	}
	return row.Values[i].Key(), true
}

// Insert takes every row its child produces, writes it to the table's
// heap, threads it through every index on the table, logs an INSERT
// record, and records an undo entry so an abort can reverse it. It yields
// each inserted row back out (with its freshly assigned RID) so a caller
// building `INSERT ... RETURNING` or simply counting affected rows can
// still pull from it like any other iterator.
type Insert struct {
	Table   *catalog.TableMetadata
	Indexes []*catalog.IndexMetadata
	Heap    *heap.Heap
	Log     *wal.Manager
	TxnMgr  *txn.Manager
	Txn     *txn.Transaction
	Child   Iterator
}

func (ins *Insert) Open() error { return ins.Child.Open() }

func (ins *Insert) Next() (Row, bool, error) {
	row, ok, err := ins.Child.Next()
	if err != nil || !ok {
		return Row{}, false, err
	}

	tuple, err := types.EncodeTuple(ins.Table.Schema, row.Values)
	if err != nil {
		return Row{}, false, err
	}
	rid, err := ins.Heap.Insert(tuple)
	if err != nil {
		return Row{}, false, err
	}

	for _, idx := range ins.Indexes {
		key, indexable := indexKey(ins.Table.Schema, idx, row)
		if !indexable {
			continue
		}
		if err := idx.Root.Insert(key, rid); err != nil {
			ins.Heap.Delete(rid)
			return Row{}, false, err
		}
	}

	lsn, err := ins.Log.LogInsert(ins.Txn.ID, uint64(ins.Txn.PrevLSN), ins.Table.OID, rid, tuple)
	if err != nil {
		return Row{}, false, err
	}
	ins.Txn.PrevLSN = types.LSN(lsn)
	ins.TxnMgr.RecordUndo(ins.Txn, txn.UndoRecord{Table: ins.Table.Name, RID: rid, Op: txn.UndoInsert})

	row.RID = rid
	return row, true, nil
}

func (ins *Insert) Close() error { return ins.Child.Close() }

// Delete tombstones every row its child produces, removing it from every
// index built on the table, logging an APPLY_DELETE record carrying the
// pre-delete image so undo can restore it (redo after a crash re-applies
// the delete).
type Delete struct {
	Table   *catalog.TableMetadata
	Indexes []*catalog.IndexMetadata
	Heap    *heap.Heap
	Log     *wal.Manager
	TxnMgr  *txn.Manager
	Txn     *txn.Transaction
	Child   Iterator
}

func (d *Delete) Open() error { return d.Child.Open() }

func (d *Delete) Next() (Row, bool, error) {
	row, ok, err := d.Child.Next()
	if err != nil || !ok {
		return Row{}, false, err
	}

	before, err := types.EncodeTuple(d.Table.Schema, row.Values)
	if err != nil {
		return Row{}, false, err
	}
	if err := d.Heap.Delete(row.RID); err != nil {
		return Row{}, false, err
	}

	for _, idx := range d.Indexes {
		key, indexable := indexKey(d.Table.Schema, idx, row)
		if !indexable {
			continue
		}
		deleteFromIndex(idx.Root, key, row.RID)
	}

	lsn, err := d.Log.LogApplyDelete(d.Txn.ID, uint64(d.Txn.PrevLSN), d.Table.OID, row.RID, before)
	if err != nil {
		return Row{}, false, err
	}
	d.Txn.PrevLSN = types.LSN(lsn)
	d.TxnMgr.RecordUndo(d.Txn, txn.UndoRecord{Table: d.Table.Name, RID: row.RID, Op: txn.UndoDelete, Before: before})

	return row, true, nil
}

func (d *Delete) Close() error { return d.Child.Close() }

// deleteFromIndex removes key's entry from idx if it still points at rid;
// a secondary index with duplicate keys shouldn't lose a different row's
// entry sharing the same key.
func deleteFromIndex(tree *btree.BPlusTree, key types.Comparable, rid types.RID) {
	tree.Upsert(key, func(old types.RID, exists bool) (types.RID, error) {
		if !exists || old != rid {
			return old, nil
		}
		return types.InvalidRID, nil
	})
}

// UpdateFn computes a row's new values from its current ones (e.g. a SET
// clause's assignments), returning the full post-image.
type UpdateFn func(schema *types.Schema, current Row) ([]types.Value, error)

// Update rewrites every row its child produces via Fn, relocating the
// heap slot if the new image no longer fits in place, repointing every
// index entry whose column changed, and logging an UPDATE record with
// both before and after images.
type Update struct {
	Table   *catalog.TableMetadata
	Indexes []*catalog.IndexMetadata
	Heap    *heap.Heap
	Log     *wal.Manager
	TxnMgr  *txn.Manager
	Txn     *txn.Transaction
	Child   Iterator
	Fn      UpdateFn
}

func (u *Update) Open() error { return u.Child.Open() }

func (u *Update) Next() (Row, bool, error) {
	row, ok, err := u.Child.Next()
	if err != nil || !ok {
		return Row{}, false, err
	}

	before, err := types.EncodeTuple(u.Table.Schema, row.Values)
	if err != nil {
		return Row{}, false, err
	}

	newValues, err := u.Fn(u.Table.Schema, row)
	if err != nil {
		return Row{}, false, err
	}
	after, err := types.EncodeTuple(u.Table.Schema, newValues)
	if err != nil {
		return Row{}, false, err
	}

	newRID, err := u.Heap.Update(row.RID, after)
	if err != nil {
		return Row{}, false, err
	}

	oldRow := Row{RID: row.RID, Values: row.Values}
	newRow := Row{RID: newRID, Values: newValues}
	for _, idx := range u.Indexes {
		oldKey, oldIndexable := indexKey(u.Table.Schema, idx, oldRow)
		newKey, newIndexable := indexKey(u.Table.Schema, idx, newRow)
		if oldIndexable && (!newIndexable || oldKey.Compare(newKey) != 0 || newRID != row.RID) {
			deleteFromIndex(idx.Root, oldKey, row.RID)
		}
		if newIndexable {
			idx.Root.Replace(newKey, newRID)
		}
	}

	lsn, err := u.Log.LogUpdate(u.Txn.ID, uint64(u.Txn.PrevLSN), u.Table.OID, row.RID, before, after)
	if err != nil {
		return Row{}, false, err
	}
	u.Txn.PrevLSN = types.LSN(lsn)
	u.TxnMgr.RecordUndo(u.Txn, txn.UndoRecord{Table: u.Table.Name, RID: row.RID, Op: txn.UndoUpdate, Before: before})

	return newRow, true, nil
}

func (u *Update) Close() error { return u.Child.Close() }
