package exec

import (
	"path/filepath"
	"testing"

	"github.com/francodb/francodb/pkg/catalog"
	"github.com/francodb/francodb/pkg/heap"
	"github.com/francodb/francodb/pkg/query"
	"github.com/francodb/francodb/pkg/storage"
	"github.com/francodb/francodb/pkg/txn"
	"github.com/francodb/francodb/pkg/types"
	"github.com/francodb/francodb/pkg/wal"
)

// testFixture wires a heap, a catalog table, a primary-key index, and a
// transaction manager against a scratch file, the same dependency graph
// the engine assembles for a live database.
type testFixture struct {
	heap    *heap.Heap
	table   *catalog.TableMetadata
	index   *catalog.IndexMetadata
	txnMgr  *txn.Manager
	walMgr  *wal.Manager
	current *txn.Transaction
}

func usersSchema() *types.Schema {
	return types.NewSchema([]types.Column{
		{Name: "id", Type: types.Integer, PrimaryKey: true},
		{Name: "name", Type: types.Varchar, MaxLength: 64},
		{Name: "age", Type: types.Integer, Nullable: true},
	})
}

func newFixture(t *testing.T) *testFixture {
	t.Helper()
	dir := t.TempDir()

	dm, err := storage.NewDiskManager(filepath.Join(dir, "test.francodb"), nil)
	if err != nil {
		t.Fatalf("NewDiskManager failed: %v", err)
	}
	t.Cleanup(func() { dm.Close() })

	pool := storage.NewBufferPool(16, dm, nil, storage.NewClockReplacer(16))
	fm := storage.NewFreeMap(pool)
	if err := fm.Init(); err != nil {
		t.Fatalf("FreeMap Init failed: %v", err)
	}
	pa := storage.NewPageAllocator(dm, fm)

	h, err := heap.New(pool, pa)
	if err != nil {
		t.Fatalf("heap.New failed: %v", err)
	}

	cat := catalog.New()
	table, err := cat.CreateTable("users", usersSchema(), h.FirstPageID, h.LastPageID)
	if err != nil {
		t.Fatalf("CreateTable failed: %v", err)
	}
	index, err := cat.CreateIndex("users_pkey", "users", "id", types.Integer, true, 3)
	if err != nil {
		t.Fatalf("CreateIndex failed: %v", err)
	}

	writer, err := wal.NewWALWriter(filepath.Join(dir, "test.wal"), wal.Options{SyncPolicy: wal.SyncEveryWrite, BufferSize: 4096})
	if err != nil {
		t.Fatalf("NewWALWriter failed: %v", err)
	}
	t.Cleanup(func() { writer.Close() })
	walMgr := wal.NewManager(writer)
	txnMgr := txn.NewManager(walMgr)

	txn1, err := txnMgr.Begin(txn.ReadCommitted)
	if err != nil {
		t.Fatalf("Begin failed: %v", err)
	}

	return &testFixture{heap: h, table: table, index: index, txnMgr: txnMgr, walMgr: walMgr, current: txn1}
}

func (f *testFixture) indexes() []*catalog.IndexMetadata {
	return []*catalog.IndexMetadata{f.index}
}

func insertRow(t *testing.T, f *testFixture, id int64, name string, age int64) Row {
	t.Helper()
	values := []Row{{Values: []types.Value{types.NewInt(id), types.NewVarchar(name), types.NewInt(age)}}}
	ins := &Insert{
		Table:   f.table,
		Indexes: f.indexes(),
		Heap:    f.heap,
		Log:     f.walMgr,
		TxnMgr:  f.txnMgr,
		Txn:     f.current,
		Child:   NewValues(values),
	}
	if err := ins.Open(); err != nil {
		t.Fatalf("Insert.Open failed: %v", err)
	}
	row, ok, err := ins.Next()
	if err != nil || !ok {
		t.Fatalf("Insert.Next failed: ok=%v err=%v", ok, err)
	}
	ins.Close()
	return row
}

func TestSeqScan_ReturnsInsertedRows(t *testing.T) {
	f := newFixture(t)
	insertRow(t, f, 1, "alice", 30)
	insertRow(t, f, 2, "bob", 25)

	scan := NewSeqScan(f.table.Schema, f.heap)
	if err := scan.Open(); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer scan.Close()

	var names []string
	for {
		row, ok, err := scan.Next()
		if err != nil {
			t.Fatalf("Next failed: %v", err)
		}
		if !ok {
			break
		}
		names = append(names, row.Values[1].StrVal)
	}
	if len(names) != 2 {
		t.Fatalf("expected 2 rows, got %d: %v", len(names), names)
	}
}

func TestIndexScan_SeeksToEqualityCondition(t *testing.T) {
	f := newFixture(t)
	insertRow(t, f, 1, "alice", 30)
	insertRow(t, f, 2, "bob", 25)
	insertRow(t, f, 3, "carol", 40)

	scan := NewIndexScan(f.table.Schema, f.heap, f.index.Root, query.Equal(types.IntKey(2)))
	if err := scan.Open(); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer scan.Close()

	row, ok, err := scan.Next()
	if err != nil || !ok {
		t.Fatalf("expected one matching row, got ok=%v err=%v", ok, err)
	}
	if row.Values[1].StrVal != "bob" {
		t.Fatalf("expected bob, got %q", row.Values[1].StrVal)
	}

	_, ok, err = scan.Next()
	if err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	if ok {
		t.Fatal("expected exactly one row for an equality condition on a unique index")
	}
}

func TestFilter_PassesOnlyMatchingRows(t *testing.T) {
	f := newFixture(t)
	insertRow(t, f, 1, "alice", 30)
	insertRow(t, f, 2, "bob", 25)
	insertRow(t, f, 3, "carol", 40)

	scan := NewSeqScan(f.table.Schema, f.heap)
	pred := &Compare{Column: "age", Op: query.OpGreaterOrEqual, Literal: types.NewInt(30)}
	filter := NewFilter(f.table.Schema, pred, scan)

	if err := filter.Open(); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer filter.Close()

	var got []string
	for {
		row, ok, err := filter.Next()
		if err != nil {
			t.Fatalf("Next failed: %v", err)
		}
		if !ok {
			break
		}
		got = append(got, row.Values[1].StrVal)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 rows with age >= 30, got %v", got)
	}
}

func TestDelete_RemovesFromHeapAndIndex(t *testing.T) {
	f := newFixture(t)
	row := insertRow(t, f, 1, "alice", 30)

	del := &Delete{
		Table:   f.table,
		Indexes: f.indexes(),
		Heap:    f.heap,
		Log:     f.walMgr,
		TxnMgr:  f.txnMgr,
		Txn:     f.current,
		Child:   NewValues([]Row{row}),
	}
	if err := del.Open(); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if _, ok, err := del.Next(); err != nil || !ok {
		t.Fatalf("Delete.Next failed: ok=%v err=%v", ok, err)
	}
	del.Close()

	if _, ok, err := f.heap.Get(row.RID); err != nil || ok {
		t.Fatalf("expected tombstoned row, got ok=%v err=%v", ok, err)
	}
	if _, found := f.index.Root.Get(types.IntKey(1)); found {
		t.Fatal("expected index entry to be removed")
	}
}

func TestUpdate_RewritesRowAndReindexes(t *testing.T) {
	f := newFixture(t)
	row := insertRow(t, f, 1, "alice", 30)

	upd := &Update{
		Table:   f.table,
		Indexes: f.indexes(),
		Heap:    f.heap,
		Log:     f.walMgr,
		TxnMgr:  f.txnMgr,
		Txn:     f.current,
		Child:   NewValues([]Row{row}),
		Fn: func(schema *types.Schema, current Row) ([]types.Value, error) {
			out := append([]types.Value(nil), current.Values...)
			out[2] = types.NewInt(31)
			return out, nil
		},
	}
	if err := upd.Open(); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	newRow, ok, err := upd.Next()
	if err != nil || !ok {
		t.Fatalf("Update.Next failed: ok=%v err=%v", ok, err)
	}
	upd.Close()

	if newRow.Values[2].IntVal != 31 {
		t.Fatalf("expected age 31, got %d", newRow.Values[2].IntVal)
	}
	tuple, ok, err := f.heap.Get(newRow.RID)
	if err != nil || !ok {
		t.Fatalf("expected updated row readable at new RID: ok=%v err=%v", ok, err)
	}
	values, err := types.DecodeTuple(f.table.Schema, tuple)
	if err != nil {
		t.Fatalf("DecodeTuple failed: %v", err)
	}
	if values[2].IntVal != 31 {
		t.Fatalf("expected persisted age 31, got %d", values[2].IntVal)
	}
}

func TestAggregate_CountAndSumPerGroup(t *testing.T) {
	schema := usersSchema()
	rows := []Row{
		{Values: []types.Value{types.NewInt(1), types.NewVarchar("a"), types.NewInt(10)}},
		{Values: []types.Value{types.NewInt(2), types.NewVarchar("a"), types.NewInt(20)}},
		{Values: []types.Value{types.NewInt(3), types.NewVarchar("b"), types.NewInt(5)}},
	}
	agg := NewAggregate(schema, []string{"name"}, []AggExpr{{Func: Count}, {Func: Sum, Column: "age"}}, NewValues(rows))
	if err := agg.Open(); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer agg.Close()

	totals := map[string][2]float64{}
	for {
		row, ok, err := agg.Next()
		if err != nil {
			t.Fatalf("Next failed: %v", err)
		}
		if !ok {
			break
		}
		name := row.Values[0].StrVal
		totals[name] = [2]float64{float64(row.Values[1].IntVal), row.Values[2].FloatVal}
	}
	if totals["a"][0] != 2 || totals["a"][1] != 30 {
		t.Fatalf("unexpected group 'a' totals: %v", totals["a"])
	}
	if totals["b"][0] != 1 || totals["b"][1] != 5 {
		t.Fatalf("unexpected group 'b' totals: %v", totals["b"])
	}
}

func TestSort_OrdersByKeyDescending(t *testing.T) {
	schema := usersSchema()
	rows := []Row{
		{Values: []types.Value{types.NewInt(1), types.NewVarchar("a"), types.NewInt(10)}},
		{Values: []types.Value{types.NewInt(2), types.NewVarchar("b"), types.NewInt(30)}},
		{Values: []types.Value{types.NewInt(3), types.NewVarchar("c"), types.NewInt(20)}},
	}
	s := NewSort(schema, []SortKey{{Column: "age", Desc: true}}, NewValues(rows))
	if err := s.Open(); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer s.Close()

	var ages []int64
	for {
		row, ok, err := s.Next()
		if err != nil {
			t.Fatalf("Next failed: %v", err)
		}
		if !ok {
			break
		}
		ages = append(ages, row.Values[2].IntVal)
	}
	want := []int64{30, 20, 10}
	for i, w := range want {
		if ages[i] != w {
			t.Fatalf("ages = %v, want %v", ages, want)
		}
	}
}

func TestLimit_SkipsOffsetThenCapsCount(t *testing.T) {
	rows := make([]Row, 5)
	for i := range rows {
		rows[i] = Row{Values: []types.Value{types.NewInt(int64(i)), types.NewVarchar("x"), types.NewInt(0)}}
	}
	lim := NewLimit(2, 1, NewValues(rows))
	if err := lim.Open(); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer lim.Close()

	var ids []int64
	for {
		row, ok, err := lim.Next()
		if err != nil {
			t.Fatalf("Next failed: %v", err)
		}
		if !ok {
			break
		}
		ids = append(ids, row.Values[0].IntVal)
	}
	if len(ids) != 2 || ids[0] != 1 || ids[1] != 2 {
		t.Fatalf("expected [1 2], got %v", ids)
	}
}

func TestDistinct_SuppressesDuplicateRows(t *testing.T) {
	rows := []Row{
		{Values: []types.Value{types.NewInt(1)}},
		{Values: []types.Value{types.NewInt(1)}},
		{Values: []types.Value{types.NewInt(2)}},
	}
	d := NewDistinct(NewValues(rows))
	if err := d.Open(); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer d.Close()

	var count int
	for {
		_, ok, err := d.Next()
		if err != nil {
			t.Fatalf("Next failed: %v", err)
		}
		if !ok {
			break
		}
		count++
	}
	if count != 2 {
		t.Fatalf("expected 2 distinct rows, got %d", count)
	}
}

func TestNestedLoopJoin_InnerMatchesOnEquality(t *testing.T) {
	left := NewValues([]Row{
		{Values: []types.Value{types.NewInt(1), types.NewVarchar("alice")}},
		{Values: []types.Value{types.NewInt(2), types.NewVarchar("bob")}},
	})
	right := NewValues([]Row{
		{Values: []types.Value{types.NewInt(1), types.NewVarchar("order-a")}},
		{Values: []types.Value{types.NewInt(3), types.NewVarchar("order-c")}},
	})
	pred := func(l, r Row) (bool, error) {
		return l.Values[0].Compare(r.Values[0]) == 0, nil
	}
	join := NewNestedLoopJoin(left, right, 2, 2, InnerJoin, pred)
	if err := join.Open(); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer join.Close()

	row, ok, err := join.Next()
	if err != nil || !ok {
		t.Fatalf("expected one matching row, got ok=%v err=%v", ok, err)
	}
	if row.Values[1].StrVal != "alice" || row.Values[3].StrVal != "order-a" {
		t.Fatalf("unexpected joined row: %v", row.Values)
	}

	_, ok, err = join.Next()
	if err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	if ok {
		t.Fatal("expected no further matches for an inner join")
	}
}

func TestNestedLoopJoin_LeftPadsUnmatchedWithNull(t *testing.T) {
	left := NewValues([]Row{
		{Values: []types.Value{types.NewInt(1)}},
		{Values: []types.Value{types.NewInt(2)}},
	})
	right := NewValues([]Row{
		{Values: []types.Value{types.NewInt(1)}},
	})
	pred := func(l, r Row) (bool, error) {
		return l.Values[0].Compare(r.Values[0]) == 0, nil
	}
	join := NewNestedLoopJoin(left, right, 1, 1, LeftJoin, pred)
	if err := join.Open(); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer join.Close()

	var rows []Row
	for {
		row, ok, err := join.Next()
		if err != nil {
			t.Fatalf("Next failed: %v", err)
		}
		if !ok {
			break
		}
		rows = append(rows, row)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows (one matched, one NULL-padded), got %d", len(rows))
	}
	if !rows[1].Values[1].Null {
		t.Fatalf("expected unmatched left row's right side to be NULL, got %v", rows[1].Values[1])
	}
}
