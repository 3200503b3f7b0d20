package engine

import (
	"github.com/francodb/francodb/pkg/catalog"
	dberrors "github.com/francodb/francodb/pkg/errors"
	"github.com/francodb/francodb/pkg/exec"
	"github.com/francodb/francodb/pkg/query"
	"github.com/francodb/francodb/pkg/sql"
	"github.com/francodb/francodb/pkg/txn"
	"github.com/francodb/francodb/pkg/types"
)

// execInsert wraps an exec.Insert over a Values source built from the
// statement's row literals, running it inside the session's current
// transaction (an implicit one if the session isn't inside BEGIN...COMMIT).
func (s *Session) execInsert(stmt *sql.InsertStmt) (*Result, error) {
	if err := s.requireWrite(); err != nil {
		return nil, err
	}
	tm, err := s.db.cat.GetTable(stmt.Table)
	if err != nil {
		return nil, err
	}
	h, ok := s.db.heapByName(stmt.Table)
	if !ok {
		return nil, dberrors.Newf(dberrors.CatalogError, "no open heap for table %q", stmt.Table)
	}

	rows := make([]exec.Row, 0, len(stmt.Rows))
	for _, values := range stmt.Rows {
		full, err := rowFromInsertValues(tm.Schema, stmt.Columns, values)
		if err != nil {
			return nil, err
		}
		if err := checkNotNull(tm.Schema, full); err != nil {
			return nil, err
		}
		rows = append(rows, exec.Row{Values: full})
	}

	t, owned, err := s.beginImplicit()
	if err != nil {
		return nil, err
	}

	for _, row := range rows {
		if err := s.checkForeignKeys(tm, row.Values); err != nil {
			return nil, s.endImplicit(t, owned, err)
		}
	}

	ins := &exec.Insert{
		Table:   tm,
		Indexes: s.db.cat.IndexesOn(stmt.Table),
		Heap:    h,
		Log:     s.db.wal,
		TxnMgr:  s.db.Txns,
		Txn:     t,
		Child:   exec.NewValues(rows),
	}
	affected, err := drain(ins)
	if err := s.endImplicit(t, owned, err); err != nil {
		return nil, err
	}
	return &Result{RowsAffected: affected, Message: "inserted"}, nil
}

// execUpdate plans the WHERE clause into a scan, wraps it in exec.Update
// with an UpdateFn applying every SET assignment, and drains it.
func (s *Session) execUpdate(stmt *sql.UpdateStmt) (*Result, error) {
	if err := s.requireWrite(); err != nil {
		return nil, err
	}
	tm, err := s.db.cat.GetTable(stmt.Table)
	if err != nil {
		return nil, err
	}
	h, ok := s.db.heapByName(stmt.Table)
	if !ok {
		return nil, dberrors.Newf(dberrors.CatalogError, "no open heap for table %q", stmt.Table)
	}

	scanIter, schema, remainder, err := s.buildScan(stmt.Table, stmt.Where)
	if err != nil {
		return nil, err
	}
	if remainder != nil {
		pred, err := buildPredicate(remainder, schema)
		if err != nil {
			return nil, err
		}
		scanIter = exec.NewFilter(schema, pred, scanIter)
	}

	fn := func(schema *types.Schema, current exec.Row) ([]types.Value, error) {
		next := append([]types.Value(nil), current.Values...)
		for _, set := range stmt.Sets {
			i, ok := schema.IndexOf(set.Column)
			if !ok {
				return nil, &dberrors.ColumnNotFoundError{Table: stmt.Table, Column: set.Column}
			}
			next[i] = coerce(schema.Columns[i].Type, set.Value)
		}
		if err := checkNotNull(schema, next); err != nil {
			return nil, err
		}
		return next, nil
	}

	t, owned, err := s.beginImplicit()
	if err != nil {
		return nil, err
	}

	upd := &exec.Update{
		Table:   tm,
		Indexes: s.db.cat.IndexesOn(stmt.Table),
		Heap:    h,
		Log:     s.db.wal,
		TxnMgr:  s.db.Txns,
		Txn:     t,
		Child:   scanIter,
		Fn:      fn,
	}
	affected, err := drain(upd)
	if err := s.endImplicit(t, owned, err); err != nil {
		return nil, err
	}
	return &Result{RowsAffected: affected, Message: "updated"}, nil
}

// execDelete plans the WHERE clause into a scan, enforces every foreign
// key referencing this table (RESTRICT refuses the statement outright,
// CASCADE recursively deletes the child rows first), then wraps the scan
// in exec.Delete and drains it.
func (s *Session) execDelete(stmt *sql.DeleteStmt) (*Result, error) {
	if err := s.requireWrite(); err != nil {
		return nil, err
	}
	tm, err := s.db.cat.GetTable(stmt.Table)
	if err != nil {
		return nil, err
	}
	h, ok := s.db.heapByName(stmt.Table)
	if !ok {
		return nil, dberrors.Newf(dberrors.CatalogError, "no open heap for table %q", stmt.Table)
	}

	scanIter, schema, remainder, err := s.buildScan(stmt.Table, stmt.Where)
	if err != nil {
		return nil, err
	}
	if remainder != nil {
		pred, err := buildPredicate(remainder, schema)
		if err != nil {
			return nil, err
		}
		scanIter = exec.NewFilter(schema, pred, scanIter)
	}

	rows, err := collect(scanIter)
	if err != nil {
		return nil, err
	}

	t, owned, err := s.beginImplicit()
	if err != nil {
		return nil, err
	}

	for _, row := range rows {
		if err := s.enforceReferencingFKs(t, tm, schema, row.Values); err != nil {
			return nil, s.endImplicit(t, owned, err)
		}
	}

	del := &exec.Delete{
		Table:   tm,
		Indexes: s.db.cat.IndexesOn(stmt.Table),
		Heap:    h,
		Log:     s.db.wal,
		TxnMgr:  s.db.Txns,
		Txn:     t,
		Child:   exec.NewValues(rows),
	}
	affected, err := drain(del)
	if err := s.endImplicit(t, owned, err); err != nil {
		return nil, err
	}
	return &Result{RowsAffected: affected, Message: "deleted"}, nil
}

// execSelect plans and fully drains a SELECT into a materialized Result;
// pkg/protocol streams rows to the client, but the engine facade itself
// has no cursor-across-statements concept (AsOf reads a checkpoint
// snapshot instead of the live heap, so they're always one-shot anyway).
func (s *Session) execSelect(stmt *sql.SelectStmt) (*Result, error) {
	if stmt.AsOf != nil {
		return s.execSelectAsOf(stmt)
	}
	iter, schema, err := s.buildSelect(stmt)
	if err != nil {
		return nil, err
	}
	rows, err := collect(iter)
	if err != nil {
		return nil, err
	}
	return &Result{Schema: schema, Rows: rows}, nil
}

func checkNotNull(schema *types.Schema, values []types.Value) error {
	for i, col := range schema.Columns {
		if i < len(values) && values[i].Null && !col.Nullable {
			return dberrors.Newf(dberrors.ExecutionError, "column %q cannot be null", col.Name)
		}
	}
	return nil
}

// checkForeignKeys verifies every foreign key on table is satisfiable by
// row: the referenced table must contain a row whose referenced column
// equals row's value for the constrained column (a null constrained
// column always satisfies the constraint, matching SQL's usual FK null
// handling).
func (s *Session) checkForeignKeys(tm *catalog.TableMetadata, values []types.Value) error {
	for _, fk := range tm.ForeignKeys {
		i, ok := tm.Schema.IndexOf(fk.Column)
		if !ok || i >= len(values) || values[i].Null {
			continue
		}
		refIdx, ok := s.db.cat.IndexOnColumn(fk.RefTable, fk.RefColumn)
		if ok && refIdx.Root != nil {
			if _, found := refIdx.Root.Get(values[i].Key()); found {
				continue
			}
			return &dberrors.ForeignKeyViolationError{Constraint: fk.Name, Detail: "referenced row does not exist"}
		}
		if err := s.refRowExists(fk, values[i]); err != nil {
			return err
		}
	}
	return nil
}

// refRowExists falls back to a full scan of the referenced table when its
// referenced column carries no index to probe directly.
func (s *Session) refRowExists(fk catalog.ForeignKey, key types.Value) error {
	rtm, err := s.db.cat.GetTable(fk.RefTable)
	if err != nil {
		return err
	}
	rh, ok := s.db.heapByName(fk.RefTable)
	if !ok {
		return dberrors.Newf(dberrors.CatalogError, "no open heap for table %q", fk.RefTable)
	}
	col, ok := rtm.Schema.IndexOf(fk.RefColumn)
	if !ok {
		return &dberrors.ColumnNotFoundError{Table: fk.RefTable, Column: fk.RefColumn}
	}
	scan := exec.NewSeqScan(rtm.Schema, rh)
	if err := scan.Open(); err != nil {
		return err
	}
	defer scan.Close()
	for {
		row, ok, err := scan.Next()
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		if col < len(row.Values) && row.Values[col].Compare(key) == 0 {
			return nil
		}
	}
	return &dberrors.ForeignKeyViolationError{Constraint: fk.Name, Detail: "referenced row does not exist"}
}

// enforceReferencingFKs runs before a row is deleted from table: every
// foreign key elsewhere in the catalog pointing at table is either
// RESTRICTed (the delete fails if a child row still references this row)
// or CASCADEd (the child rows are deleted first, within the same
// transaction).
func (s *Session) enforceReferencingFKs(t *txn.Transaction, tm *catalog.TableMetadata, schema *types.Schema, values []types.Value) error {
	refs := s.db.cat.ForeignKeysReferencing(tm.Name)
	for _, ref := range refs {
		col, ok := schema.IndexOf(ref.FK.RefColumn)
		if !ok || col >= len(values) || values[col].Null {
			continue
		}
		children, err := s.findReferencingRows(ref.Table, ref.FK.Column, values[col])
		if err != nil {
			return err
		}
		if len(children) == 0 {
			continue
		}
		if ref.FK.OnDelete != catalog.Cascade {
			return &dberrors.ForeignKeyViolationError{Constraint: ref.FK.Name, Detail: "referenced by rows in " + ref.Table}
		}
		for _, child := range children {
			if err := s.cascadeDelete(t, ref.Table, child); err != nil {
				return err
			}
		}
	}
	return nil
}

// findReferencingRows returns every row of table whose column equals key,
// preferring an index probe over a full scan when one exists.
func (s *Session) findReferencingRows(table, column string, key types.Value) ([]exec.Row, error) {
	tm, err := s.db.cat.GetTable(table)
	if err != nil {
		return nil, err
	}
	h, ok := s.db.heapByName(table)
	if !ok {
		return nil, dberrors.Newf(dberrors.CatalogError, "no open heap for table %q", table)
	}

	if idx, ok := s.db.cat.IndexOnColumn(table, column); ok && idx.Root != nil {
		cond := query.Equal(key.Key())
		return collect(exec.NewIndexScan(tm.Schema, h, idx.Root, cond))
	}

	col, ok := tm.Schema.IndexOf(column)
	if !ok {
		return nil, &dberrors.ColumnNotFoundError{Table: table, Column: column}
	}
	scan := exec.NewSeqScan(tm.Schema, h)
	if err := scan.Open(); err != nil {
		return nil, err
	}
	defer scan.Close()
	var rows []exec.Row
	for {
		row, ok, err := scan.Next()
		if err != nil {
			return rows, err
		}
		if !ok {
			return rows, nil
		}
		if col < len(row.Values) && row.Values[col].Compare(key) == 0 {
			rows = append(rows, row)
		}
	}
}

// cascadeDelete removes one child row as part of an ON DELETE CASCADE,
// recursing into its own referencing foreign keys first.
func (s *Session) cascadeDelete(t *txn.Transaction, table string, row exec.Row) error {
	tm, err := s.db.cat.GetTable(table)
	if err != nil {
		return err
	}
	h, ok := s.db.heapByName(table)
	if !ok {
		return dberrors.Newf(dberrors.CatalogError, "no open heap for table %q", table)
	}
	if err := s.enforceReferencingFKs(t, tm, tm.Schema, row.Values); err != nil {
		return err
	}
	del := &exec.Delete{
		Table:   tm,
		Indexes: s.db.cat.IndexesOn(table),
		Heap:    h,
		Log:     s.db.wal,
		TxnMgr:  s.db.Txns,
		Txn:     t,
		Child:   exec.NewValues([]exec.Row{row}),
	}
	_, err = drain(del)
	return err
}

// drain runs it to completion, returning the number of rows it produced.
func drain(it exec.Iterator) (int, error) {
	if err := it.Open(); err != nil {
		return 0, err
	}
	defer it.Close()
	n := 0
	for {
		_, ok, err := it.Next()
		if err != nil {
			return n, err
		}
		if !ok {
			return n, nil
		}
		n++
	}
}

// collect runs it to completion, returning every row it produced.
func collect(it exec.Iterator) ([]exec.Row, error) {
	if err := it.Open(); err != nil {
		return nil, err
	}
	defer it.Close()
	var rows []exec.Row
	for {
		row, ok, err := it.Next()
		if err != nil {
			return rows, err
		}
		if !ok {
			return rows, nil
		}
		rows = append(rows, row)
	}
}
