package engine

import (
	"github.com/francodb/francodb/pkg/catalog"
	dberrors "github.com/francodb/francodb/pkg/errors"
	"github.com/francodb/francodb/pkg/exec"
	"github.com/francodb/francodb/pkg/heap"
	"github.com/francodb/francodb/pkg/sql"
	"github.com/francodb/francodb/pkg/types"
)

// pkeyIndexName is the name given to the unique index CREATE TABLE builds
// automatically for a PRIMARY KEY column, so a later DROP TABLE can find
// and drop it like any other index without the catalog needing a separate
// "is this the primary key index" flag.
func pkeyIndexName(table string) string { return table + "_pkey" }

// execCreateTable allocates a fresh heap, registers the table and its
// foreign keys, and — if one column is marked PRIMARY KEY — creates a
// unique index on it so the constraint is actually enforced instead of
// being schema metadata only (see DESIGN.md).
func (s *Session) execCreateTable(stmt *sql.CreateTableStmt) (*Result, error) {
	if err := s.requireWrite(); err != nil {
		return nil, err
	}

	cols := make([]types.Column, len(stmt.Columns))
	var pkColumn string
	for i, cd := range stmt.Columns {
		cols[i] = types.Column{
			Name:       cd.Name,
			Type:       cd.Type,
			MaxLength:  cd.MaxLength,
			PrimaryKey: cd.PrimaryKey,
			Nullable:   cd.Nullable && !cd.PrimaryKey,
			Unique:     cd.Unique,
			Default:    cd.Default,
		}
		if cd.PrimaryKey {
			pkColumn = cd.Name
		}
	}
	schema := types.NewSchema(cols)

	h, err := heap.New(s.db.pool, s.db.alloc)
	if err != nil {
		return nil, err
	}

	if _, err := s.db.cat.CreateTable(stmt.Table, schema, h.FirstPageID, h.LastPageID); err != nil {
		return nil, err
	}
	s.db.setHeap(stmt.Table, h)

	for _, fkd := range stmt.ForeignKeys {
		fk := catalog.ForeignKey{
			Name:      fkd.Column + "_fk",
			Column:    fkd.Column,
			RefTable:  fkd.RefTable,
			RefColumn: fkd.RefColumn,
			OnDelete:  catalog.Restrict,
		}
		if err := s.db.cat.AddForeignKey(stmt.Table, fk); err != nil {
			return nil, err
		}
	}

	if pkColumn != "" {
		col, _ := schema.Column(pkColumn)
		if _, err := s.db.cat.CreateIndex(pkeyIndexName(stmt.Table), stmt.Table, pkColumn, col.Type, true, defaultBTreeDegree); err != nil {
			return nil, err
		}
	}

	if err := catalog.Persist(s.db.cat, s.db.catalogPath()); err != nil {
		return nil, err
	}
	return &Result{Message: "table created"}, nil
}

// execDropTable forgets the table and every index on it; the heap's pages
// are simply abandoned rather than returned to the free map (nothing here
// calls PageAllocator.DeallocatePage for them), which matches the
// teacher's own treatment of a dropped table's pages as leaked rather than
// invented reclamation logic (see DESIGN.md).
func (s *Session) execDropTable(stmt *sql.DropTableStmt) (*Result, error) {
	if err := s.requireWrite(); err != nil {
		return nil, err
	}
	if refs := s.db.cat.ForeignKeysReferencing(stmt.Table); len(refs) > 0 {
		return nil, dberrors.Newf(dberrors.CatalogError, "cannot drop table %q: referenced by foreign keys", stmt.Table)
	}
	if _, _, err := s.db.cat.DropTable(stmt.Table); err != nil {
		return nil, err
	}
	s.db.dropHeap(stmt.Table)
	if err := catalog.Persist(s.db.cat, s.db.catalogPath()); err != nil {
		return nil, err
	}
	return &Result{Message: "table dropped"}, nil
}

// execCreateIndex builds a new B+Tree by scanning the table's current
// heap, the same rebuild path a restart uses for every index whose Root
// comes back nil from catalog.Load.
func (s *Session) execCreateIndex(stmt *sql.CreateIndexStmt) (*Result, error) {
	if err := s.requireWrite(); err != nil {
		return nil, err
	}
	tm, err := s.db.cat.GetTable(stmt.Table)
	if err != nil {
		return nil, err
	}
	col, ok := tm.Schema.Column(stmt.Column)
	if !ok {
		return nil, &dberrors.ColumnNotFoundError{Table: stmt.Table, Column: stmt.Column}
	}

	im, err := s.db.cat.CreateIndex(stmt.Name, stmt.Table, stmt.Column, col.Type, stmt.Unique, defaultBTreeDegree)
	if err != nil {
		return nil, err
	}

	h, ok := s.db.heapByName(stmt.Table)
	if !ok {
		return nil, dberrors.Newf(dberrors.CatalogError, "no open heap for table %q", stmt.Table)
	}
	if err := rebuildIndex(h, tm.Schema, im); err != nil {
		return nil, err
	}

	if err := catalog.Persist(s.db.cat, s.db.catalogPath()); err != nil {
		return nil, err
	}
	return &Result{Message: "index created"}, nil
}

func (s *Session) execCreateDatabase(stmt *sql.CreateDatabaseStmt) (*Result, error) {
	if err := s.requireRoot(); err != nil {
		return nil, err
	}
	if err := s.engine.CreateDatabase(stmt.Name); err != nil {
		return nil, err
	}
	return &Result{Message: "database created"}, nil
}

func (s *Session) execUseDatabase(stmt *sql.UseDatabaseStmt) (*Result, error) {
	if err := s.UseDatabase(stmt.Name); err != nil {
		return nil, err
	}
	return &Result{Message: "database changed"}, nil
}

func (s *Session) execDropDatabase(stmt *sql.DropDatabaseStmt) (*Result, error) {
	if err := s.requireRoot(); err != nil {
		return nil, err
	}
	if err := s.engine.DropDatabase(stmt.Name); err != nil {
		return nil, err
	}
	return &Result{Message: "database dropped"}, nil
}

// execShowTables reports every table name as a single-column result set,
// the shape a client's SELECT-like result rendering already understands.
func (s *Session) execShowTables() (*Result, error) {
	tables := s.db.cat.ListTables()
	schema := types.NewSchema([]types.Column{{Name: "table_name", Type: types.Varchar, MaxLength: 255}})
	rows := make([]exec.Row, 0, len(tables))
	for _, tm := range tables {
		rows = append(rows, exec.Row{Values: []types.Value{types.NewVarchar(tm.Name)}})
	}
	return &Result{Schema: schema, Rows: rows}, nil
}
