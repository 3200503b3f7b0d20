package recovery_test

import (
	"testing"

	"github.com/francodb/francodb/pkg/recovery"
	"github.com/francodb/francodb/pkg/types"
	"github.com/francodb/francodb/pkg/wal"
)

type fakeStore struct {
	redoInserts []types.RID
	redoUpdates map[types.RID][]byte
	redoDeletes []types.RID

	undoInserts []types.RID
	undoUpdates map[types.RID][]byte
	undoDeletes map[types.RID][]byte
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		redoUpdates: make(map[types.RID][]byte),
		undoUpdates: make(map[types.RID][]byte),
		undoDeletes: make(map[types.RID][]byte),
	}
}

func (f *fakeStore) RedoInsert(tableOID uint32, rid types.RID, tuple []byte) error {
	f.redoInserts = append(f.redoInserts, rid)
	return nil
}
func (f *fakeStore) RedoUpdate(tableOID uint32, rid types.RID, after []byte) error {
	f.redoUpdates[rid] = after
	return nil
}
func (f *fakeStore) RedoApplyDelete(tableOID uint32, rid types.RID) error {
	f.redoDeletes = append(f.redoDeletes, rid)
	return nil
}
func (f *fakeStore) UndoInsert(table string, rid types.RID) error {
	f.undoInserts = append(f.undoInserts, rid)
	return nil
}
func (f *fakeStore) UndoDelete(table string, rid types.RID, before []byte) error {
	f.undoDeletes[rid] = before
	return nil
}
func (f *fakeStore) UndoUpdate(table string, rid types.RID, before []byte) error {
	f.undoUpdates[rid] = before
	return nil
}

func writeTestLog(t *testing.T, path string) *wal.Manager {
	t.Helper()
	w, err := wal.NewWALWriter(path, wal.Options{SyncPolicy: wal.SyncEveryWrite, BufferSize: 4096})
	if err != nil {
		t.Fatalf("NewWALWriter failed: %v", err)
	}
	t.Cleanup(func() { w.Close() })
	return wal.NewManager(w)
}

func TestRecover_CommittedTransactionOnlyRedone(t *testing.T) {
	path := t.TempDir() + "/committed.wal"
	m := writeTestLog(t, path)
	recovery.RegisterTableOID(1, "users")

	rid := types.RID{PageID: 3, Slot: 0}
	beginLSN, _ := m.LogBegin(1)
	insertLSN, _ := m.LogInsert(1, beginLSN, 1, rid, []byte("row"))
	m.LogCommit(1, insertLSN)
	m.Close()

	w2, err := wal.NewWALWriter(path, wal.Options{SyncPolicy: wal.SyncEveryWrite, BufferSize: 4096})
	if err != nil {
		t.Fatalf("reopening WAL failed: %v", err)
	}
	defer w2.Close()
	log := wal.NewManager(w2)

	rec := recovery.NewManager(path, log)
	store := newFakeStore()
	if err := rec.Recover(store, store); err != nil {
		t.Fatalf("Recover failed: %v", err)
	}

	if len(store.redoInserts) != 1 || store.redoInserts[0] != rid {
		t.Fatalf("expected the committed insert to be redone, got %v", store.redoInserts)
	}
	if len(store.undoInserts) != 0 {
		t.Fatalf("a committed transaction must not be undone, got %v", store.undoInserts)
	}
}

func TestRecover_ActiveTransactionUndone(t *testing.T) {
	path := t.TempDir() + "/loser.wal"
	m := writeTestLog(t, path)
	recovery.RegisterTableOID(2, "orders")

	rid1 := types.RID{PageID: 3, Slot: 0}
	rid2 := types.RID{PageID: 3, Slot: 1}
	beginLSN, _ := m.LogBegin(2)
	insertLSN, _ := m.LogInsert(2, beginLSN, 2, rid1, []byte("row1"))
	m.LogUpdate(2, insertLSN, 2, rid2, []byte("before"), []byte("after"))
	// crash: no COMMIT or ABORT ever written
	m.Close()

	w2, err := wal.NewWALWriter(path, wal.Options{SyncPolicy: wal.SyncEveryWrite, BufferSize: 4096})
	if err != nil {
		t.Fatalf("reopening WAL failed: %v", err)
	}
	defer w2.Close()
	log := wal.NewManager(w2)

	rec := recovery.NewManager(path, log)
	store := newFakeStore()
	if err := rec.Recover(store, store); err != nil {
		t.Fatalf("Recover failed: %v", err)
	}

	if len(store.redoInserts) != 1 || len(store.redoUpdates) != 1 {
		t.Fatalf("redo should still replay every physical change, got inserts=%v updates=%v", store.redoInserts, store.redoUpdates)
	}
	if len(store.undoInserts) != 1 || store.undoInserts[0] != rid1 {
		t.Fatalf("expected the loser's insert to be undone, got %v", store.undoInserts)
	}
	if before, ok := store.undoUpdates[rid2]; !ok || string(before) != "before" {
		t.Fatalf("expected the loser's update to be undone with its before-image, got %v", store.undoUpdates)
	}
}
