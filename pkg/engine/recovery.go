package engine

import (
	"github.com/francodb/francodb/pkg/catalog"
	"github.com/francodb/francodb/pkg/errors"
	"github.com/francodb/francodb/pkg/heap"
	"github.com/francodb/francodb/pkg/types"
)

// recoveryTarget implements both pkg/recovery.Redoer and pkg/txn.Undoer
// against one Database's heaps, and is also the Undoer a live Abort runs
// through. Redo always identifies a table by OID (as WAL records do);
// undo and abort always identify it by name (as pkg/txn's undo chain
// does), so both lookups live side by side rather than forcing one
// through the other.
//
// Index maintenance only happens here when an index's Root has already
// been rebuilt (non-nil): during crash recovery, Recover runs before the
// engine rebuilds any index by scanning the now-repaired heap, so there's
// nothing yet to fix up and the heap alone is authoritative. During a
// live transaction's Abort, every index is already live, and a rolled
// back insert or update must not leave a dangling entry behind.
type recoveryTarget struct {
	db *Database
}

func (r *recoveryTarget) heapByOID(oid uint32) (*heap.Heap, error) {
	tm, ok := r.db.cat.GetTableByOID(oid)
	if !ok {
		return nil, errors.Newf(errors.Corruption, "recovery: unknown table OID %d", oid)
	}
	h, ok := r.db.heapByName(tm.Name)
	if !ok {
		return nil, errors.Newf(errors.Corruption, "recovery: no open heap for table %q", tm.Name)
	}
	return h, nil
}

func (r *recoveryTarget) RedoInsert(tableOID uint32, rid types.RID, tuple []byte) error {
	h, err := r.heapByOID(tableOID)
	if err != nil {
		return err
	}
	return h.PutAt(rid, tuple)
}

func (r *recoveryTarget) RedoUpdate(tableOID uint32, rid types.RID, after []byte) error {
	h, err := r.heapByOID(tableOID)
	if err != nil {
		return err
	}
	return h.PutAt(rid, after)
}

func (r *recoveryTarget) RedoApplyDelete(tableOID uint32, rid types.RID) error {
	h, err := r.heapByOID(tableOID)
	if err != nil {
		return err
	}
	return h.Delete(rid)
}

// rowAt decodes the live tuple at rid against table's schema, for
// computing the index keys an undo step needs to remove.
func rowAt(h *heap.Heap, schema *types.Schema, rid types.RID) ([]types.Value, bool, error) {
	tuple, ok, err := h.Get(rid)
	if err != nil || !ok {
		return nil, ok, err
	}
	values, err := types.DecodeTuple(schema, tuple)
	return values, true, err
}

func removeFromIndexes(indexes []*catalog.IndexMetadata, schema *types.Schema, values []types.Value, rid types.RID) {
	for _, idx := range indexes {
		if idx.Root == nil || values == nil {
			continue
		}
		i, ok := schema.IndexOf(idx.Column)
		if !ok || i >= len(values) || values[i].Null {
			continue
		}
		key := values[i].Key()
		idx.Root.Upsert(key, func(old types.RID, exists bool) (types.RID, error) {
			if !exists || old != rid {
				return old, nil
			}
			return types.InvalidRID, nil
		})
	}
}

func addToIndexes(indexes []*catalog.IndexMetadata, schema *types.Schema, values []types.Value, rid types.RID) error {
	for _, idx := range indexes {
		if idx.Root == nil {
			continue
		}
		i, ok := schema.IndexOf(idx.Column)
		if !ok || i >= len(values) || values[i].Null {
			continue
		}
		if err := idx.Root.Replace(values[i].Key(), rid); err != nil {
			return err
		}
	}
	return nil
}

func (r *recoveryTarget) UndoInsert(table string, rid types.RID) error {
	h, ok := r.db.heapByName(table)
	if !ok {
		return errors.Newf(errors.Corruption, "undo: no open heap for table %q", table)
	}
	tm, err := r.db.cat.GetTable(table)
	if err != nil {
		return err
	}

	values, _, err := rowAt(h, tm.Schema, rid)
	if err != nil {
		return err
	}
	if err := h.Delete(rid); err != nil {
		return err
	}
	removeFromIndexes(r.db.cat.IndexesOn(table), tm.Schema, values, rid)
	return nil
}

func (r *recoveryTarget) UndoDelete(table string, rid types.RID, before []byte) error {
	h, ok := r.db.heapByName(table)
	if !ok {
		return errors.Newf(errors.Corruption, "undo: no open heap for table %q", table)
	}
	tm, err := r.db.cat.GetTable(table)
	if err != nil {
		return err
	}

	if err := h.PutAt(rid, before); err != nil {
		return err
	}
	values, err := types.DecodeTuple(tm.Schema, before)
	if err != nil {
		return err
	}
	return addToIndexes(r.db.cat.IndexesOn(table), tm.Schema, values, rid)
}

func (r *recoveryTarget) UndoUpdate(table string, rid types.RID, before []byte) error {
	h, ok := r.db.heapByName(table)
	if !ok {
		return errors.Newf(errors.Corruption, "undo: no open heap for table %q", table)
	}
	tm, err := r.db.cat.GetTable(table)
	if err != nil {
		return err
	}

	current, _, err := rowAt(h, tm.Schema, rid)
	if err != nil {
		return err
	}
	if err := h.PutAt(rid, before); err != nil {
		return err
	}
	indexes := r.db.cat.IndexesOn(table)
	removeFromIndexes(indexes, tm.Schema, current, rid)

	restored, err := types.DecodeTuple(tm.Schema, before)
	if err != nil {
		return err
	}
	return addToIndexes(indexes, tm.Schema, restored, rid)
}
