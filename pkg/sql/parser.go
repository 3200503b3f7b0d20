package sql

import (
	"strconv"
	"time"

	"github.com/francodb/francodb/pkg/types"
)

type parser struct {
	toks []token
	pos  int
}

// Parse tokenizes and parses one SQL statement, optionally terminated
// by a semicolon. Literal values are parsed at face value (an integer
// literal becomes an Integer Value, a quoted string a Varchar Value);
// coercing a literal to the type of the column it's compared against
// is the engine facade's job once it has the table's schema in hand,
// the same deferred-binding split already used for foreign key
// enforcement living above pkg/exec rather than inside it.
func Parse(input string) (Statement, error) {
	toks, err := tokenize(input)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	stmt, err := p.parseStatement()
	if err != nil {
		return nil, err
	}
	if p.peekSymbol(";") {
		p.advance()
	}
	if !p.atEOF() {
		return nil, newParseError(p.cur().Pos, "unexpected trailing input %q", p.cur().Val)
	}
	return stmt, nil
}

func (p *parser) cur() token { return p.toks[p.pos] }

func (p *parser) atEOF() bool { return p.cur().Typ == tEOF }

func (p *parser) advance() token {
	t := p.toks[p.pos]
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

func (p *parser) peekKeyword(kw string) bool {
	return p.cur().Typ == tKeyword && p.cur().Val == kw
}

func (p *parser) peekSymbol(sym string) bool {
	return p.cur().Typ == tSymbol && p.cur().Val == sym
}

func (p *parser) expectKeyword(kw string) error {
	if !p.peekKeyword(kw) {
		return newParseError(p.cur().Pos, "expected %s, got %q", kw, p.cur().Val)
	}
	p.advance()
	return nil
}

func (p *parser) expectSymbol(sym string) error {
	if !p.peekSymbol(sym) {
		return newParseError(p.cur().Pos, "expected %q, got %q", sym, p.cur().Val)
	}
	p.advance()
	return nil
}

func (p *parser) parseIdent() (string, error) {
	if p.cur().Typ != tIdent {
		return "", newParseError(p.cur().Pos, "expected identifier, got %q", p.cur().Val)
	}
	return p.advance().Val, nil
}

func (p *parser) parseStatement() (Statement, error) {
	switch {
	case p.peekKeyword("SELECT"):
		return p.parseSelect()
	case p.peekKeyword("INSERT"):
		return p.parseInsert()
	case p.peekKeyword("UPDATE"):
		return p.parseUpdate()
	case p.peekKeyword("DELETE"):
		return p.parseDelete()
	case p.peekKeyword("CREATE"):
		return p.parseCreate()
	case p.peekKeyword("DROP"):
		return p.parseDrop()
	case p.peekKeyword("USE"):
		return p.parseUse()
	case p.peekKeyword("BEGIN"):
		p.advance()
		return &BeginStmt{}, nil
	case p.peekKeyword("COMMIT"):
		p.advance()
		return &CommitStmt{}, nil
	case p.peekKeyword("ROLLBACK"):
		p.advance()
		return &RollbackStmt{}, nil
	case p.peekKeyword("CHECKPOINT"):
		p.advance()
		return &CheckpointStmt{}, nil
	case p.peekKeyword("RECOVER"):
		return p.parseRecoverTo()
	case p.peekKeyword("GRANT"):
		return p.parseGrant()
	case p.peekKeyword("REVOKE"):
		return p.parseRevoke()
	case p.peekKeyword("SHOW"):
		return p.parseShow()
	case p.peekKeyword("EXPLAIN"):
		return p.parseExplain()
	case p.peekKeyword("PRAGMA"):
		return p.parsePragma()
	default:
		return nil, newParseError(p.cur().Pos, "unexpected token %q at start of statement", p.cur().Val)
	}
}

// ---- SELECT ----

func (p *parser) parseSelect() (Statement, error) {
	p.advance() // SELECT
	stmt := &SelectStmt{}

	if p.peekKeyword("DISTINCT") {
		p.advance()
		stmt.Distinct = true
	}

	cols, err := p.parseSelectColumns()
	if err != nil {
		return nil, err
	}
	stmt.Columns = cols

	if err := p.expectKeyword("FROM"); err != nil {
		return nil, err
	}
	table, err := p.parseIdent()
	if err != nil {
		return nil, err
	}
	stmt.Table = table

	if p.peekKeyword("AS") {
		p.advance()
		if err := p.expectKeyword("OF"); err != nil {
			return nil, err
		}
		ts, err := p.parseTimestampLiteral()
		if err != nil {
			return nil, err
		}
		stmt.AsOf = &ts
	}

	if p.peekKeyword("JOIN") || p.peekKeyword("LEFT") || p.peekKeyword("RIGHT") || p.peekKeyword("INNER") {
		join, err := p.parseJoin()
		if err != nil {
			return nil, err
		}
		stmt.Join = join
	}

	if p.peekKeyword("WHERE") {
		p.advance()
		where, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		stmt.Where = where
	}

	if p.peekKeyword("GROUP") {
		p.advance()
		if err := p.expectKeyword("BY"); err != nil {
			return nil, err
		}
		cols, err := p.parseIdentList()
		if err != nil {
			return nil, err
		}
		stmt.GroupBy = cols
	}

	if p.peekKeyword("ORDER") {
		p.advance()
		if err := p.expectKeyword("BY"); err != nil {
			return nil, err
		}
		terms, err := p.parseOrderTerms()
		if err != nil {
			return nil, err
		}
		stmt.OrderBy = terms
	}

	if p.peekKeyword("LIMIT") {
		p.advance()
		n, err := p.parseIntLiteral()
		if err != nil {
			return nil, err
		}
		stmt.Limit = &n
		if p.peekKeyword("OFFSET") {
			p.advance()
			m, err := p.parseIntLiteral()
			if err != nil {
				return nil, err
			}
			stmt.Offset = &m
		}
	}

	return stmt, nil
}

func (p *parser) parseSelectColumns() ([]SelectColumn, error) {
	var cols []SelectColumn
	for {
		col, err := p.parseSelectColumn()
		if err != nil {
			return nil, err
		}
		cols = append(cols, col)
		if p.peekSymbol(",") {
			p.advance()
			continue
		}
		break
	}
	return cols, nil
}

func (p *parser) parseSelectColumn() (SelectColumn, error) {
	if agg, ok := aggKeyword(p.cur()); ok {
		p.advance()
		if err := p.expectSymbol("("); err != nil {
			return SelectColumn{}, err
		}
		col := "*"
		if !p.peekSymbol("*") {
			name, err := p.parseIdent()
			if err != nil {
				return SelectColumn{}, err
			}
			col = name
		} else {
			p.advance()
		}
		if err := p.expectSymbol(")"); err != nil {
			return SelectColumn{}, err
		}
		sc := SelectColumn{Column: col, Agg: agg}
		sc.Alias, _ = p.parseOptionalAlias()
		return sc, nil
	}

	if p.peekSymbol("*") {
		p.advance()
		return SelectColumn{Column: "*"}, nil
	}

	name, err := p.parseIdent()
	if err != nil {
		return SelectColumn{}, err
	}
	sc := SelectColumn{Column: name}
	sc.Alias, _ = p.parseOptionalAlias()
	return sc, nil
}

func (p *parser) parseOptionalAlias() (string, bool) {
	if p.peekKeyword("AS") {
		p.advance()
		if p.cur().Typ == tIdent {
			return p.advance().Val, true
		}
	}
	return "", false
}

func aggKeyword(t token) (AggKind, bool) {
	if t.Typ != tKeyword {
		return "", false
	}
	switch t.Val {
	case "COUNT":
		return AggCount, true
	case "SUM":
		return AggSum, true
	case "AVG":
		return AggAvg, true
	case "MIN":
		return AggMin, true
	case "MAX":
		return AggMax, true
	default:
		return "", false
	}
}

func (p *parser) parseJoin() (*JoinClause, error) {
	kind := "INNER"
	switch {
	case p.peekKeyword("LEFT"):
		kind = "LEFT"
		p.advance()
	case p.peekKeyword("RIGHT"):
		kind = "RIGHT"
		p.advance()
	case p.peekKeyword("INNER"):
		p.advance()
	}
	if p.peekKeyword("OUTER") {
		p.advance()
	}
	if err := p.expectKeyword("JOIN"); err != nil {
		return nil, err
	}
	table, err := p.parseIdent()
	if err != nil {
		return nil, err
	}
	if err := p.expectKeyword("ON"); err != nil {
		return nil, err
	}
	on, err := p.parseJoinCond()
	if err != nil {
		return nil, err
	}
	return &JoinClause{Kind: kind, Table: table, On: on}, nil
}

// parseJoinCond parses an equi-join (or other comparison) condition
// between a qualified column on each side, e.g.
// "orders.customer_id = customers.id". Both operands must be column
// references — a join condition against a literal is an ordinary
// WHERE-clause filter instead, not a join predicate.
func (p *parser) parseJoinCond() (JoinCond, error) {
	left, err := p.parseIdent()
	if err != nil {
		return JoinCond{}, err
	}
	op, err := p.parseCompareOp()
	if err != nil {
		return JoinCond{}, err
	}
	right, err := p.parseIdent()
	if err != nil {
		return JoinCond{}, err
	}
	return JoinCond{LeftColumn: left, Op: op, RightColumn: right}, nil
}

func (p *parser) parseIdentList() ([]string, error) {
	var out []string
	for {
		name, err := p.parseIdent()
		if err != nil {
			return nil, err
		}
		out = append(out, name)
		if p.peekSymbol(",") {
			p.advance()
			continue
		}
		break
	}
	return out, nil
}

func (p *parser) parseOrderTerms() ([]OrderTerm, error) {
	var out []OrderTerm
	for {
		name, err := p.parseIdent()
		if err != nil {
			return nil, err
		}
		term := OrderTerm{Column: name}
		if p.peekKeyword("DESC") {
			p.advance()
			term.Desc = true
		} else if p.peekKeyword("ASC") {
			p.advance()
		}
		out = append(out, term)
		if p.peekSymbol(",") {
			p.advance()
			continue
		}
		break
	}
	return out, nil
}

// ---- WHERE expressions ----

func (p *parser) parseExpr() (Expr, error) {
	left, err := p.parseAndExpr()
	if err != nil {
		return nil, err
	}
	for p.peekKeyword("OR") {
		p.advance()
		right, err := p.parseAndExpr()
		if err != nil {
			return nil, err
		}
		left = &OrExpr{Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseAndExpr() (Expr, error) {
	left, err := p.parseUnaryExpr()
	if err != nil {
		return nil, err
	}
	for p.peekKeyword("AND") {
		p.advance()
		right, err := p.parseUnaryExpr()
		if err != nil {
			return nil, err
		}
		left = &AndExpr{Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseUnaryExpr() (Expr, error) {
	if p.peekKeyword("NOT") {
		p.advance()
		x, err := p.parseUnaryExpr()
		if err != nil {
			return nil, err
		}
		return &NotExpr{X: x}, nil
	}
	if p.peekSymbol("(") {
		p.advance()
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if err := p.expectSymbol(")"); err != nil {
			return nil, err
		}
		return e, nil
	}
	return p.parseComparison()
}

func (p *parser) parseComparison() (Expr, error) {
	col, err := p.parseIdent()
	if err != nil {
		return nil, err
	}

	if p.peekKeyword("BETWEEN") {
		p.advance()
		low, err := p.parseLiteral()
		if err != nil {
			return nil, err
		}
		if err := p.expectKeyword("AND"); err != nil {
			return nil, err
		}
		high, err := p.parseLiteral()
		if err != nil {
			return nil, err
		}
		return &BetweenExpr{Column: col, Low: low, High: high}, nil
	}

	op, err := p.parseCompareOp()
	if err != nil {
		return nil, err
	}
	val, err := p.parseLiteral()
	if err != nil {
		return nil, err
	}
	return &CompareExpr{Column: col, Op: op, Value: val}, nil
}

func (p *parser) parseCompareOp() (string, error) {
	if p.cur().Typ != tSymbol {
		return "", newParseError(p.cur().Pos, "expected a comparison operator, got %q", p.cur().Val)
	}
	switch p.cur().Val {
	case "=", "!=", "<", "<=", ">", ">=":
		return p.advance().Val, nil
	default:
		return "", newParseError(p.cur().Pos, "unsupported comparison operator %q", p.cur().Val)
	}
}

// ---- literals ----

func (p *parser) parseLiteral() (types.Value, error) {
	t := p.cur()
	switch {
	case t.Typ == tNumber:
		p.advance()
		return numberValue(t.Val), nil
	case t.Typ == tString:
		p.advance()
		return types.NewVarchar(t.Val), nil
	case t.Typ == tKeyword && t.Val == "TRUE":
		p.advance()
		return types.NewBool(true), nil
	case t.Typ == tKeyword && t.Val == "FALSE":
		p.advance()
		return types.NewBool(false), nil
	case t.Typ == tKeyword && t.Val == "NULL":
		p.advance()
		return types.NewNull(types.Varchar), nil
	case t.Typ == tSymbol && t.Val == "-":
		p.advance()
		if p.cur().Typ != tNumber {
			return types.Value{}, newParseError(p.cur().Pos, "expected a number after '-'")
		}
		val := numberValue(p.advance().Val)
		if val.Type == types.Integer {
			val.IntVal = -val.IntVal
		} else {
			val.FloatVal = -val.FloatVal
		}
		return val, nil
	default:
		return types.Value{}, newParseError(t.Pos, "expected a literal value, got %q", t.Val)
	}
}

func numberValue(lit string) types.Value {
	if containsDot(lit) {
		f, _ := strconv.ParseFloat(lit, 64)
		return types.NewDecimal(f)
	}
	n, _ := strconv.ParseInt(lit, 10, 64)
	return types.NewInt(n)
}

func containsDot(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] == '.' {
			return true
		}
	}
	return false
}

func (p *parser) parseIntLiteral() (int, error) {
	if p.cur().Typ != tNumber {
		return 0, newParseError(p.cur().Pos, "expected an integer, got %q", p.cur().Val)
	}
	n, err := strconv.Atoi(p.advance().Val)
	if err != nil {
		return 0, newParseError(p.cur().Pos, "invalid integer literal")
	}
	return n, nil
}

func (p *parser) parseTimestampLiteral() (time.Time, error) {
	if p.cur().Typ != tString {
		return time.Time{}, newParseError(p.cur().Pos, "expected a quoted timestamp, got %q", p.cur().Val)
	}
	raw := p.advance().Val
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	secs, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, newParseError(p.cur().Pos, "timestamp %q is neither RFC3339 nor a unix second count", raw)
	}
	return time.Unix(secs, 0).UTC(), nil
}

// ---- INSERT / UPDATE / DELETE ----

func (p *parser) parseInsert() (Statement, error) {
	p.advance() // INSERT
	if err := p.expectKeyword("INTO"); err != nil {
		return nil, err
	}
	table, err := p.parseIdent()
	if err != nil {
		return nil, err
	}
	stmt := &InsertStmt{Table: table}

	if p.peekSymbol("(") {
		p.advance()
		cols, err := p.parseIdentList()
		if err != nil {
			return nil, err
		}
		stmt.Columns = cols
		if err := p.expectSymbol(")"); err != nil {
			return nil, err
		}
	}

	if err := p.expectKeyword("VALUES"); err != nil {
		return nil, err
	}
	for {
		row, err := p.parseValueTuple()
		if err != nil {
			return nil, err
		}
		stmt.Rows = append(stmt.Rows, row)
		if p.peekSymbol(",") {
			p.advance()
			continue
		}
		break
	}
	return stmt, nil
}

func (p *parser) parseValueTuple() ([]types.Value, error) {
	if err := p.expectSymbol("("); err != nil {
		return nil, err
	}
	var vals []types.Value
	for {
		v, err := p.parseLiteral()
		if err != nil {
			return nil, err
		}
		vals = append(vals, v)
		if p.peekSymbol(",") {
			p.advance()
			continue
		}
		break
	}
	if err := p.expectSymbol(")"); err != nil {
		return nil, err
	}
	return vals, nil
}

func (p *parser) parseUpdate() (Statement, error) {
	p.advance() // UPDATE
	table, err := p.parseIdent()
	if err != nil {
		return nil, err
	}
	if err := p.expectKeyword("SET"); err != nil {
		return nil, err
	}
	stmt := &UpdateStmt{Table: table}
	for {
		col, err := p.parseIdent()
		if err != nil {
			return nil, err
		}
		if err := p.expectSymbol("="); err != nil {
			return nil, err
		}
		val, err := p.parseLiteral()
		if err != nil {
			return nil, err
		}
		stmt.Sets = append(stmt.Sets, Assignment{Column: col, Value: val})
		if p.peekSymbol(",") {
			p.advance()
			continue
		}
		break
	}
	if p.peekKeyword("WHERE") {
		p.advance()
		where, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		stmt.Where = where
	}
	return stmt, nil
}

func (p *parser) parseDelete() (Statement, error) {
	p.advance() // DELETE
	if err := p.expectKeyword("FROM"); err != nil {
		return nil, err
	}
	table, err := p.parseIdent()
	if err != nil {
		return nil, err
	}
	stmt := &DeleteStmt{Table: table}
	if p.peekKeyword("WHERE") {
		p.advance()
		where, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		stmt.Where = where
	}
	return stmt, nil
}

// ---- CREATE / DROP / USE ----

func (p *parser) parseCreate() (Statement, error) {
	p.advance() // CREATE
	switch {
	case p.peekKeyword("TABLE"):
		return p.parseCreateTable()
	case p.peekKeyword("UNIQUE"), p.peekKeyword("INDEX"):
		return p.parseCreateIndex()
	case p.peekKeyword("DATABASE"):
		p.advance()
		name, err := p.parseIdent()
		if err != nil {
			return nil, err
		}
		return &CreateDatabaseStmt{Name: name}, nil
	case p.peekKeyword("USER"):
		return p.parseCreateUser()
	default:
		return nil, newParseError(p.cur().Pos, "expected TABLE, INDEX, DATABASE, or USER after CREATE, got %q", p.cur().Val)
	}
}

func (p *parser) parseCreateTable() (Statement, error) {
	p.advance() // TABLE
	name, err := p.parseIdent()
	if err != nil {
		return nil, err
	}
	stmt := &CreateTableStmt{Table: name}
	if err := p.expectSymbol("("); err != nil {
		return nil, err
	}
	for {
		if p.peekKeyword("FOREIGN") {
			fk, err := p.parseForeignKeyDef()
			if err != nil {
				return nil, err
			}
			stmt.ForeignKeys = append(stmt.ForeignKeys, fk)
		} else {
			col, err := p.parseColumnDef()
			if err != nil {
				return nil, err
			}
			stmt.Columns = append(stmt.Columns, col)
		}
		if p.peekSymbol(",") {
			p.advance()
			continue
		}
		break
	}
	if err := p.expectSymbol(")"); err != nil {
		return nil, err
	}
	return stmt, nil
}

func (p *parser) parseColumnDef() (ColumnDef, error) {
	name, err := p.parseIdent()
	if err != nil {
		return ColumnDef{}, err
	}
	dt, maxLen, err := p.parseColumnType()
	if err != nil {
		return ColumnDef{}, err
	}
	col := ColumnDef{Name: name, Type: dt, MaxLength: maxLen, Nullable: true}

	for {
		switch {
		case p.peekKeyword("PRIMARY"):
			p.advance()
			if err := p.expectKeyword("KEY"); err != nil {
				return ColumnDef{}, err
			}
			col.PrimaryKey = true
			col.Nullable = false
		case p.peekKeyword("NOT"):
			p.advance()
			if err := p.expectKeyword("NULL"); err != nil {
				return ColumnDef{}, err
			}
			col.Nullable = false
		case p.peekKeyword("UNIQUE"):
			p.advance()
			col.Unique = true
		case p.peekKeyword("DEFAULT"):
			p.advance()
			v, err := p.parseLiteral()
			if err != nil {
				return ColumnDef{}, err
			}
			col.Default = &v
		default:
			return col, nil
		}
	}
}

func (p *parser) parseColumnType() (types.DataType, uint16, error) {
	if p.cur().Typ != tKeyword {
		return 0, 0, newParseError(p.cur().Pos, "expected a column type, got %q", p.cur().Val)
	}
	switch p.advance().Val {
	case "INT", "INTEGER":
		return types.Integer, 0, nil
	case "BOOLEAN", "BOOL":
		return types.Boolean, 0, nil
	case "DECIMAL", "FLOAT":
		return types.Decimal, 0, nil
	case "TIMESTAMP":
		return types.Timestamp, 0, nil
	case "VARCHAR":
		maxLen := uint16(255)
		if p.peekSymbol("(") {
			p.advance()
			n, err := p.parseIntLiteral()
			if err != nil {
				return 0, 0, err
			}
			maxLen = uint16(n)
			if err := p.expectSymbol(")"); err != nil {
				return 0, 0, err
			}
		}
		return types.Varchar, maxLen, nil
	default:
		return 0, 0, newParseError(p.cur().Pos, "unknown column type %q", p.toks[p.pos-1].Val)
	}
}

func (p *parser) parseForeignKeyDef() (ForeignKeyDef, error) {
	p.advance() // FOREIGN
	if err := p.expectKeyword("KEY"); err != nil {
		return ForeignKeyDef{}, err
	}
	if err := p.expectSymbol("("); err != nil {
		return ForeignKeyDef{}, err
	}
	col, err := p.parseIdent()
	if err != nil {
		return ForeignKeyDef{}, err
	}
	if err := p.expectSymbol(")"); err != nil {
		return ForeignKeyDef{}, err
	}
	if err := p.expectKeyword("REFERENCES"); err != nil {
		return ForeignKeyDef{}, err
	}
	refTable, err := p.parseIdent()
	if err != nil {
		return ForeignKeyDef{}, err
	}
	if err := p.expectSymbol("("); err != nil {
		return ForeignKeyDef{}, err
	}
	refCol, err := p.parseIdent()
	if err != nil {
		return ForeignKeyDef{}, err
	}
	if err := p.expectSymbol(")"); err != nil {
		return ForeignKeyDef{}, err
	}
	return ForeignKeyDef{Column: col, RefTable: refTable, RefColumn: refCol}, nil
}

func (p *parser) parseCreateIndex() (Statement, error) {
	unique := false
	if p.peekKeyword("UNIQUE") {
		unique = true
		p.advance()
	}
	if err := p.expectKeyword("INDEX"); err != nil {
		return nil, err
	}
	name, err := p.parseIdent()
	if err != nil {
		return nil, err
	}
	if err := p.expectKeyword("ON"); err != nil {
		return nil, err
	}
	table, err := p.parseIdent()
	if err != nil {
		return nil, err
	}
	if err := p.expectSymbol("("); err != nil {
		return nil, err
	}
	col, err := p.parseIdent()
	if err != nil {
		return nil, err
	}
	if err := p.expectSymbol(")"); err != nil {
		return nil, err
	}
	return &CreateIndexStmt{Name: name, Table: table, Column: col, Unique: unique}, nil
}

func (p *parser) parseCreateUser() (Statement, error) {
	p.advance() // USER
	username, err := p.parseIdent()
	if err != nil {
		return nil, err
	}
	if err := p.expectKeyword("IDENTIFIED"); err != nil {
		return nil, err
	}
	if err := p.expectKeyword("BY"); err != nil {
		return nil, err
	}
	if p.cur().Typ != tString {
		return nil, newParseError(p.cur().Pos, "expected a quoted password, got %q", p.cur().Val)
	}
	password := p.advance().Val
	return &CreateUserStmt{Username: username, Password: password}, nil
}

func (p *parser) parseDrop() (Statement, error) {
	p.advance() // DROP
	switch {
	case p.peekKeyword("TABLE"):
		p.advance()
		name, err := p.parseIdent()
		if err != nil {
			return nil, err
		}
		return &DropTableStmt{Table: name}, nil
	case p.peekKeyword("DATABASE"):
		p.advance()
		name, err := p.parseIdent()
		if err != nil {
			return nil, err
		}
		return &DropDatabaseStmt{Name: name}, nil
	default:
		return nil, newParseError(p.cur().Pos, "expected TABLE or DATABASE after DROP, got %q", p.cur().Val)
	}
}

func (p *parser) parseUse() (Statement, error) {
	p.advance() // USE
	if err := p.expectKeyword("DATABASE"); err != nil {
		return nil, err
	}
	name, err := p.parseIdent()
	if err != nil {
		return nil, err
	}
	return &UseDatabaseStmt{Name: name}, nil
}

func (p *parser) parseRecoverTo() (Statement, error) {
	p.advance() // RECOVER
	if err := p.expectKeyword("TO"); err != nil {
		return nil, err
	}
	ts, err := p.parseTimestampLiteral()
	if err != nil {
		return nil, err
	}
	return &RecoverToStmt{Timestamp: ts}, nil
}

func (p *parser) parseGrant() (Statement, error) {
	p.advance() // GRANT
	role, err := p.parseIdent()
	if err != nil {
		return nil, err
	}
	if err := p.expectKeyword("TO"); err != nil {
		return nil, err
	}
	user, err := p.parseIdent()
	if err != nil {
		return nil, err
	}
	return &GrantStmt{Role: role, Username: user}, nil
}

func (p *parser) parseRevoke() (Statement, error) {
	p.advance() // REVOKE
	role, err := p.parseIdent()
	if err != nil {
		return nil, err
	}
	if err := p.expectKeyword("FROM"); err != nil {
		return nil, err
	}
	user, err := p.parseIdent()
	if err != nil {
		return nil, err
	}
	return &RevokeStmt{Role: role, Username: user}, nil
}

func (p *parser) parseShow() (Statement, error) {
	p.advance() // SHOW
	if err := p.expectKeyword("TABLES"); err != nil {
		return nil, err
	}
	return &ShowTablesStmt{}, nil
}

func (p *parser) parseExplain() (Statement, error) {
	p.advance() // EXPLAIN
	inner, err := p.parseStatement()
	if err != nil {
		return nil, err
	}
	return &ExplainStmt{Inner: inner}, nil
}

func (p *parser) parsePragma() (Statement, error) {
	p.advance() // PRAGMA
	key, err := p.parseIdent()
	if err != nil {
		return nil, err
	}
	stmt := &PragmaStmt{Key: key}
	if p.peekSymbol("=") {
		p.advance()
		if p.cur().Typ == tString {
			stmt.Value = p.advance().Val
		} else if p.cur().Typ == tNumber {
			stmt.Value = p.advance().Val
		} else {
			return nil, newParseError(p.cur().Pos, "expected a pragma value, got %q", p.cur().Val)
		}
	}
	return stmt, nil
}
