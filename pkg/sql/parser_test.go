package sql

import (
	"testing"
)

func mustParse(t *testing.T, stmt string) Statement {
	t.Helper()
	s, err := Parse(stmt)
	if err != nil {
		t.Fatalf("Parse(%q) failed: %v", stmt, err)
	}
	return s
}

func TestParse_CreateTableWithPrimaryKeyAndForeignKey(t *testing.T) {
	s := mustParse(t, `CREATE TABLE orders (
		id INT PRIMARY KEY,
		customer_id INT NOT NULL,
		note VARCHAR(32),
		FOREIGN KEY (customer_id) REFERENCES customers(id)
	)`)
	ct, ok := s.(*CreateTableStmt)
	if !ok {
		t.Fatalf("expected *CreateTableStmt, got %T", s)
	}
	if ct.Table != "orders" || len(ct.Columns) != 3 {
		t.Fatalf("unexpected statement: %+v", ct)
	}
	if !ct.Columns[0].PrimaryKey || ct.Columns[0].Nullable {
		t.Fatalf("expected id to be a non-nullable primary key: %+v", ct.Columns[0])
	}
	if ct.Columns[1].Nullable {
		t.Fatalf("expected customer_id to be NOT NULL")
	}
	if ct.Columns[2].MaxLength != 32 {
		t.Fatalf("expected note's VARCHAR(32) to set MaxLength=32, got %d", ct.Columns[2].MaxLength)
	}
	if len(ct.ForeignKeys) != 1 || ct.ForeignKeys[0].RefTable != "customers" {
		t.Fatalf("unexpected foreign keys: %+v", ct.ForeignKeys)
	}
}

func TestParse_InsertMultiRow(t *testing.T) {
	s := mustParse(t, `INSERT INTO users VALUES (1,'Alice',25), (2,'Bob',30)`)
	ins, ok := s.(*InsertStmt)
	if !ok {
		t.Fatalf("expected *InsertStmt, got %T", s)
	}
	if ins.Table != "users" || len(ins.Rows) != 2 {
		t.Fatalf("unexpected statement: %+v", ins)
	}
	if ins.Rows[0][1].StrVal != "Alice" || ins.Rows[1][2].IntVal != 30 {
		t.Fatalf("unexpected row values: %+v", ins.Rows)
	}
}

func TestParse_SelectWithWhereComparison(t *testing.T) {
	s := mustParse(t, `SELECT * FROM users WHERE age > 20`)
	sel, ok := s.(*SelectStmt)
	if !ok {
		t.Fatalf("expected *SelectStmt, got %T", s)
	}
	cmp, ok := sel.Where.(*CompareExpr)
	if !ok {
		t.Fatalf("expected *CompareExpr, got %T", sel.Where)
	}
	if cmp.Column != "age" || cmp.Op != ">" || cmp.Value.IntVal != 20 {
		t.Fatalf("unexpected where clause: %+v", cmp)
	}
}

func TestParse_SelectWithAndOrNot(t *testing.T) {
	s := mustParse(t, `SELECT id FROM users WHERE NOT (age < 18) AND name = 'Alice' OR id = 9`)
	sel := s.(*SelectStmt)
	if _, ok := sel.Where.(*OrExpr); !ok {
		t.Fatalf("expected top-level OR, got %T", sel.Where)
	}
}

func TestParse_SelectWithBetween(t *testing.T) {
	s := mustParse(t, `SELECT * FROM users WHERE age BETWEEN 18 AND 30`)
	sel := s.(*SelectStmt)
	between, ok := sel.Where.(*BetweenExpr)
	if !ok {
		t.Fatalf("expected *BetweenExpr, got %T", sel.Where)
	}
	if between.Low.IntVal != 18 || between.High.IntVal != 30 {
		t.Fatalf("unexpected between bounds: %+v", between)
	}
}

func TestParse_SelectWithJoinGroupOrderLimit(t *testing.T) {
	s := mustParse(t, `SELECT COUNT(*) FROM orders LEFT JOIN customers ON orders.customer_id = customers.id
		WHERE orders.total > 100 GROUP BY customers.id ORDER BY orders.total DESC LIMIT 10 OFFSET 5`)
	sel := s.(*SelectStmt)
	if sel.Join == nil || sel.Join.Kind != "LEFT" || sel.Join.Table != "customers" {
		t.Fatalf("unexpected join: %+v", sel.Join)
	}
	if sel.Join.On.LeftColumn != "orders.customer_id" || sel.Join.On.RightColumn != "customers.id" {
		t.Fatalf("unexpected join condition: %+v", sel.Join.On)
	}
	if sel.Columns[0].Agg != AggCount {
		t.Fatalf("expected COUNT aggregate, got %+v", sel.Columns[0])
	}
	if len(sel.GroupBy) != 1 || sel.GroupBy[0] != "customers.id" {
		t.Fatalf("unexpected group by: %+v", sel.GroupBy)
	}
	if len(sel.OrderBy) != 1 || !sel.OrderBy[0].Desc {
		t.Fatalf("unexpected order by: %+v", sel.OrderBy)
	}
	if sel.Limit == nil || *sel.Limit != 10 || sel.Offset == nil || *sel.Offset != 5 {
		t.Fatalf("unexpected limit/offset: %+v %+v", sel.Limit, sel.Offset)
	}
}

func TestParse_SelectAsOf(t *testing.T) {
	s := mustParse(t, `SELECT * FROM bank AS OF '2026-01-01T00:00:00Z'`)
	sel := s.(*SelectStmt)
	if sel.AsOf == nil {
		t.Fatal("expected AsOf to be set")
	}
	if sel.AsOf.Year() != 2026 {
		t.Fatalf("unexpected AsOf year: %v", sel.AsOf)
	}
}

func TestParse_UpdateWithWhere(t *testing.T) {
	s := mustParse(t, `UPDATE users SET age = 26, name = 'Alice2' WHERE id = 1`)
	upd, ok := s.(*UpdateStmt)
	if !ok {
		t.Fatalf("expected *UpdateStmt, got %T", s)
	}
	if len(upd.Sets) != 2 || upd.Sets[0].Value.IntVal != 26 {
		t.Fatalf("unexpected sets: %+v", upd.Sets)
	}
}

func TestParse_DeleteWithWhere(t *testing.T) {
	s := mustParse(t, `DELETE FROM users WHERE id = 2`)
	del, ok := s.(*DeleteStmt)
	if !ok {
		t.Fatalf("expected *DeleteStmt, got %T", s)
	}
	if del.Table != "users" {
		t.Fatalf("unexpected table: %q", del.Table)
	}
}

func TestParse_TransactionStatements(t *testing.T) {
	for _, stmt := range []string{"BEGIN", "COMMIT", "ROLLBACK", "CHECKPOINT"} {
		if _, err := Parse(stmt); err != nil {
			t.Fatalf("Parse(%q) failed: %v", stmt, err)
		}
	}
}

func TestParse_RecoverTo(t *testing.T) {
	s := mustParse(t, `RECOVER TO '2026-01-01T00:00:00Z'`)
	rec, ok := s.(*RecoverToStmt)
	if !ok {
		t.Fatalf("expected *RecoverToStmt, got %T", s)
	}
	if rec.Timestamp.Year() != 2026 {
		t.Fatalf("unexpected recover timestamp: %v", rec.Timestamp)
	}
}

func TestParse_CreateUserGrantRevoke(t *testing.T) {
	s := mustParse(t, `CREATE USER alice IDENTIFIED BY 'hunter2'`)
	cu, ok := s.(*CreateUserStmt)
	if !ok || cu.Username != "alice" || cu.Password != "hunter2" {
		t.Fatalf("unexpected statement: %+v", s)
	}

	s = mustParse(t, `GRANT readwrite TO alice`)
	gr, ok := s.(*GrantStmt)
	if !ok || gr.Role != "readwrite" || gr.Username != "alice" {
		t.Fatalf("unexpected statement: %+v", s)
	}

	s = mustParse(t, `REVOKE readwrite FROM alice`)
	rv, ok := s.(*RevokeStmt)
	if !ok || rv.Role != "readwrite" || rv.Username != "alice" {
		t.Fatalf("unexpected statement: %+v", s)
	}
}

func TestParse_CreateIndexUnique(t *testing.T) {
	s := mustParse(t, `CREATE UNIQUE INDEX idx_email ON users(email)`)
	ci, ok := s.(*CreateIndexStmt)
	if !ok || !ci.Unique || ci.Table != "users" || ci.Column != "email" {
		t.Fatalf("unexpected statement: %+v", s)
	}
}

func TestParse_DatabaseStatements(t *testing.T) {
	if _, ok := mustParse(t, `CREATE DATABASE shop`).(*CreateDatabaseStmt); !ok {
		t.Fatal("expected *CreateDatabaseStmt")
	}
	if _, ok := mustParse(t, `USE DATABASE shop`).(*UseDatabaseStmt); !ok {
		t.Fatal("expected *UseDatabaseStmt")
	}
	if _, ok := mustParse(t, `DROP DATABASE shop`).(*DropDatabaseStmt); !ok {
		t.Fatal("expected *DropDatabaseStmt")
	}
}

func TestParse_ShowExplainPragma(t *testing.T) {
	if _, ok := mustParse(t, `SHOW TABLES`).(*ShowTablesStmt); !ok {
		t.Fatal("expected *ShowTablesStmt")
	}
	ex, ok := mustParse(t, `EXPLAIN SELECT * FROM users`).(*ExplainStmt)
	if !ok {
		t.Fatal("expected *ExplainStmt")
	}
	if _, ok := ex.Inner.(*SelectStmt); !ok {
		t.Fatalf("expected inner *SelectStmt, got %T", ex.Inner)
	}
	pr, ok := mustParse(t, `PRAGMA autosave_interval = 30`).(*PragmaStmt)
	if !ok || pr.Key != "autosave_interval" || pr.Value != "30" {
		t.Fatalf("unexpected statement: %+v", pr)
	}
}

func TestParse_RejectsTrailingGarbage(t *testing.T) {
	if _, err := Parse(`SELECT * FROM users; DROP TABLE users`); err == nil {
		t.Fatal("expected an error for a second statement after the semicolon")
	}
}

func TestParse_RejectsUnknownStatement(t *testing.T) {
	if _, err := Parse(`FROBNICATE users`); err == nil {
		t.Fatal("expected an error for an unrecognized statement keyword")
	}
}
