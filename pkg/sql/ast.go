package sql

import (
	"time"

	"github.com/francodb/francodb/pkg/types"
)

// Statement is any parsed top-level SQL statement; the engine facade
// type-switches on the concrete variant, the tagged-variant dispatch
// spec.md §9's REDESIGN FLAGS calls for in place of a class hierarchy.
type Statement interface{ isStatement() }

// Expr is a WHERE-clause predicate tree.
type Expr interface{ isExpr() }

// AggKind names a GROUP BY aggregate function.
type AggKind string

const (
	AggCount AggKind = "COUNT"
	AggSum   AggKind = "SUM"
	AggAvg   AggKind = "AVG"
	AggMin   AggKind = "MIN"
	AggMax   AggKind = "MAX"
)

// SelectColumn is one projected output column: either a bare column
// name, "*", or an aggregate over a column (Column == "*" for COUNT(*)).
type SelectColumn struct {
	Column string
	Agg    AggKind // empty for a plain projected column
	Alias  string
}

type OrderTerm struct {
	Column string
	Desc   bool
}

// JoinCond is a join's ON condition: a comparison between a column of
// the left input and a column of the right input. Kept distinct from
// Expr (which compares a column against a literal) since the two sides
// of a join condition are never known until the engine resolves which
// input each qualified name belongs to.
type JoinCond struct {
	LeftColumn  string
	Op          string
	RightColumn string
}

type JoinClause struct {
	Kind  string // "INNER", "LEFT", "RIGHT"
	Table string
	On    JoinCond
}

type SelectStmt struct {
	Columns  []SelectColumn
	Distinct bool
	Table    string
	Join     *JoinClause
	Where    Expr
	GroupBy  []string
	OrderBy  []OrderTerm
	Limit    *int
	Offset   *int
	AsOf     *time.Time
}

func (*SelectStmt) isStatement() {}

type CompareExpr struct {
	Column string
	Op     string // "=", "!=", "<", "<=", ">", ">="
	Value  types.Value
}

func (*CompareExpr) isExpr() {}

type BetweenExpr struct {
	Column   string
	Low, High types.Value
}

func (*BetweenExpr) isExpr() {}

type AndExpr struct{ Left, Right Expr }

func (*AndExpr) isExpr() {}

type OrExpr struct{ Left, Right Expr }

func (*OrExpr) isExpr() {}

type NotExpr struct{ X Expr }

func (*NotExpr) isExpr() {}

type Assignment struct {
	Column string
	Value  types.Value
}

type InsertStmt struct {
	Table   string
	Columns []string // empty means "every column, in schema order"
	Rows    [][]types.Value
}

func (*InsertStmt) isStatement() {}

type UpdateStmt struct {
	Table string
	Sets  []Assignment
	Where Expr
}

func (*UpdateStmt) isStatement() {}

type DeleteStmt struct {
	Table string
	Where Expr
}

func (*DeleteStmt) isStatement() {}

type ColumnDef struct {
	Name       string
	Type       types.DataType
	MaxLength  uint16
	PrimaryKey bool
	Nullable   bool
	Unique     bool
	Default    *types.Value
}

type ForeignKeyDef struct {
	Column      string
	RefTable    string
	RefColumn   string
}

type CreateTableStmt struct {
	Table       string
	Columns     []ColumnDef
	ForeignKeys []ForeignKeyDef
}

func (*CreateTableStmt) isStatement() {}

type CreateIndexStmt struct {
	Name   string
	Table  string
	Column string
	Unique bool
}

func (*CreateIndexStmt) isStatement() {}

type DropTableStmt struct{ Table string }

func (*DropTableStmt) isStatement() {}

type CreateDatabaseStmt struct{ Name string }

func (*CreateDatabaseStmt) isStatement() {}

type UseDatabaseStmt struct{ Name string }

func (*UseDatabaseStmt) isStatement() {}

type DropDatabaseStmt struct{ Name string }

func (*DropDatabaseStmt) isStatement() {}

type BeginStmt struct{}

func (*BeginStmt) isStatement() {}

type CommitStmt struct{}

func (*CommitStmt) isStatement() {}

type RollbackStmt struct{}

func (*RollbackStmt) isStatement() {}

type CheckpointStmt struct{}

func (*CheckpointStmt) isStatement() {}

type RecoverToStmt struct{ Timestamp time.Time }

func (*RecoverToStmt) isStatement() {}

type CreateUserStmt struct {
	Username string
	Password string
}

func (*CreateUserStmt) isStatement() {}

type GrantStmt struct {
	Role     string
	Username string
}

func (*GrantStmt) isStatement() {}

type RevokeStmt struct {
	Role     string
	Username string
}

func (*RevokeStmt) isStatement() {}

type ShowTablesStmt struct{}

func (*ShowTablesStmt) isStatement() {}

type ExplainStmt struct{ Inner Statement }

func (*ExplainStmt) isStatement() {}

type PragmaStmt struct {
	Key   string
	Value string
}

func (*PragmaStmt) isStatement() {}
