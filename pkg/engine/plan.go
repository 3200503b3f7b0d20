package engine

import (
	"github.com/francodb/francodb/pkg/catalog"
	dberrors "github.com/francodb/francodb/pkg/errors"
	"github.com/francodb/francodb/pkg/exec"
	"github.com/francodb/francodb/pkg/query"
	"github.com/francodb/francodb/pkg/sql"
	"github.com/francodb/francodb/pkg/types"
)

// coerce widens a literal to match a column's declared type when the two
// numeric kinds differ (an integer literal compared against a DECIMAL
// column, most commonly), so Value.Compare sees two values of the same
// Type instead of silently comparing across kinds.
func coerce(want types.DataType, v types.Value) types.Value {
	if v.Null || v.Type == want {
		return v
	}
	switch want {
	case types.Decimal:
		if v.Type == types.Integer {
			return types.NewDecimal(float64(v.IntVal))
		}
	case types.Integer:
		if v.Type == types.Decimal {
			return types.NewInt(int64(v.FloatVal))
		}
	}
	return v
}

func compareOp(op string) (query.ScanOperator, error) {
	switch op {
	case "=":
		return query.OpEqual, nil
	case "!=":
		return query.OpNotEqual, nil
	case "<":
		return query.OpLessThan, nil
	case "<=":
		return query.OpLessOrEqual, nil
	case ">":
		return query.OpGreaterThan, nil
	case ">=":
		return query.OpGreaterOrEqual, nil
	default:
		return 0, dberrors.Newf(dberrors.ParseError, "unknown comparison operator %q", op)
	}
}

// buildPredicate turns a WHERE-clause Expr tree into an exec.Predicate
// evaluated against fully decoded rows. schema resolves column names to
// positions, so it must be the schema of whatever iterator this predicate
// will sit on top of (a single table, or a join's combined row).
func buildPredicate(e sql.Expr, schema *types.Schema) (exec.Predicate, error) {
	switch x := e.(type) {
	case nil:
		return nil, nil
	case *sql.CompareExpr:
		op, err := compareOp(x.Op)
		if err != nil {
			return nil, err
		}
		col, ok := schema.Column(x.Column)
		if !ok {
			return nil, &dberrors.ColumnNotFoundError{Column: x.Column}
		}
		return &exec.Compare{Column: x.Column, Op: op, Literal: coerce(col.Type, x.Value)}, nil
	case *sql.BetweenExpr:
		col, ok := schema.Column(x.Column)
		if !ok {
			return nil, &dberrors.ColumnNotFoundError{Column: x.Column}
		}
		low := &exec.Compare{Column: x.Column, Op: query.OpGreaterOrEqual, Literal: coerce(col.Type, x.Low)}
		high := &exec.Compare{Column: x.Column, Op: query.OpLessOrEqual, Literal: coerce(col.Type, x.High)}
		return &exec.And{Left: low, Right: high}, nil
	case *sql.AndExpr:
		left, err := buildPredicate(x.Left, schema)
		if err != nil {
			return nil, err
		}
		right, err := buildPredicate(x.Right, schema)
		if err != nil {
			return nil, err
		}
		return &exec.And{Left: left, Right: right}, nil
	case *sql.OrExpr:
		left, err := buildPredicate(x.Left, schema)
		if err != nil {
			return nil, err
		}
		right, err := buildPredicate(x.Right, schema)
		if err != nil {
			return nil, err
		}
		return &exec.Or{Left: left, Right: right}, nil
	case *sql.NotExpr:
		inner, err := buildPredicate(x.X, schema)
		if err != nil {
			return nil, err
		}
		return &exec.Not{Inner: inner}, nil
	default:
		return nil, dberrors.Newf(dberrors.ParseError, "unsupported WHERE expression %T", e)
	}
}

func scanCondition(op query.ScanOperator, key types.Comparable) (*query.ScanCondition, bool) {
	switch op {
	case query.OpEqual:
		return query.Equal(key), true
	case query.OpNotEqual:
		return query.NotEqual(key), true
	case query.OpGreaterThan:
		return query.GreaterThan(key), true
	case query.OpGreaterOrEqual:
		return query.GreaterOrEqual(key), true
	case query.OpLessThan:
		return query.LessThan(key), true
	case query.OpLessOrEqual:
		return query.LessOrEqual(key), true
	default:
		return nil, false
	}
}

// splitIndexable pulls one indexable comparison out of a WHERE tree so
// the scan can answer it with an IndexScan instead of a full table scan,
// returning whatever's left (nil if the whole tree was just that one
// comparison) to apply as a Filter on top. Only a bare comparison or one
// reached through AND nodes (at any depth) is recognized; a comparison
// under OR or NOT is left to the Filter, since those can't be reduced to
// a single contiguous key range without a real cost-based planner.
func (s *Session) splitIndexable(tm *catalog.TableMetadata, where sql.Expr) (*catalog.IndexMetadata, *query.ScanCondition, sql.Expr, bool) {
	if cmp, ok := where.(*sql.CompareExpr); ok {
		return s.splitCompare(tm, cmp)
	}
	if and, ok := where.(*sql.AndExpr); ok {
		if idx, cond, rem, ok := s.splitIndexable(tm, and.Left); ok {
			if rem == nil {
				return idx, cond, and.Right, true
			}
			return idx, cond, &sql.AndExpr{Left: rem, Right: and.Right}, true
		}
		if idx, cond, rem, ok := s.splitIndexable(tm, and.Right); ok {
			if rem == nil {
				return idx, cond, and.Left, true
			}
			return idx, cond, &sql.AndExpr{Left: and.Left, Right: rem}, true
		}
	}
	return nil, nil, where, false
}

func (s *Session) splitCompare(tm *catalog.TableMetadata, cmp *sql.CompareExpr) (*catalog.IndexMetadata, *query.ScanCondition, sql.Expr, bool) {
	im, ok := s.db.cat.IndexOnColumn(tm.Name, cmp.Column)
	if !ok {
		return nil, nil, nil, false
	}
	col, ok := tm.Schema.Column(cmp.Column)
	if !ok {
		return nil, nil, nil, false
	}
	op, err := compareOp(cmp.Op)
	if err != nil {
		return nil, nil, nil, false
	}
	cond, ok := scanCondition(op, coerce(col.Type, cmp.Value).Key())
	if !ok {
		return nil, nil, nil, false
	}
	return im, cond, nil, true
}

// buildScan picks IndexScan over SeqScan when the WHERE clause has a
// top-level comparison on an indexed column, returning whatever of the
// clause the index probe can't answer for the caller to apply as a
// Filter on top.
func (s *Session) buildScan(table string, where sql.Expr) (exec.Iterator, *types.Schema, sql.Expr, error) {
	tm, err := s.db.cat.GetTable(table)
	if err != nil {
		return nil, nil, nil, err
	}
	h, ok := s.db.heapByName(table)
	if !ok {
		return nil, nil, nil, dberrors.Newf(dberrors.CatalogError, "no open heap for table %q", table)
	}

	if where != nil {
		if idx, cond, remainder, ok := s.splitIndexable(tm, where); ok {
			return exec.NewIndexScan(tm.Schema, h, idx.Root, cond), tm.Schema, remainder, nil
		}
	}
	return exec.NewSeqScan(tm.Schema, h), tm.Schema, where, nil
}

func joinType(kind string) exec.JoinType {
	switch kind {
	case "LEFT":
		return exec.LeftJoin
	case "RIGHT":
		return exec.RightJoin
	case "FULL":
		return exec.FullJoin
	default:
		return exec.InnerJoin
	}
}

// makeJoinPredicate resolves the ON clause's two column names against
// their respective sides' schemas once, up front, so the per-pair
// predicate NestedLoopJoin runs is a cheap index comparison rather than a
// name lookup on every row pair.
func makeJoinPredicate(leftSchema, rightSchema *types.Schema, on sql.JoinCond) (exec.JoinPredicate, error) {
	li, ok := leftSchema.IndexOf(on.LeftColumn)
	if !ok {
		return nil, &dberrors.ColumnNotFoundError{Column: on.LeftColumn}
	}
	ri, ok := rightSchema.IndexOf(on.RightColumn)
	if !ok {
		return nil, &dberrors.ColumnNotFoundError{Column: on.RightColumn}
	}
	op := on.Op
	if op == "" {
		op = "="
	}
	return func(left, right exec.Row) (bool, error) {
		if li >= len(left.Values) || ri >= len(right.Values) {
			return false, nil
		}
		cmp := left.Values[li].Compare(right.Values[ri])
		switch op {
		case "=":
			return cmp == 0, nil
		case "!=":
			return cmp != 0, nil
		case "<":
			return cmp < 0, nil
		case "<=":
			return cmp <= 0, nil
		case ">":
			return cmp > 0, nil
		case ">=":
			return cmp >= 0, nil
		default:
			return false, nil
		}
	}, nil
}

func hasAgg(cols []sql.SelectColumn) bool {
	for _, c := range cols {
		if c.Agg != "" {
			return true
		}
	}
	return false
}

func aggFunc(k sql.AggKind) (exec.AggFunc, error) {
	switch k {
	case sql.AggCount:
		return exec.Count, nil
	case sql.AggSum:
		return exec.Sum, nil
	case sql.AggAvg:
		return exec.Avg, nil
	case sql.AggMin:
		return exec.Min, nil
	case sql.AggMax:
		return exec.Max, nil
	default:
		return 0, dberrors.Newf(dberrors.ParseError, "unknown aggregate %q", k)
	}
}

// buildSelect translates a parsed SELECT into an executor iterator tree
// plus the schema its rows come out in.
func (s *Session) buildSelect(stmt *sql.SelectStmt) (exec.Iterator, *types.Schema, error) {
	iter, schema, remainder, err := s.buildScan(stmt.Table, stmt.Where)
	if err != nil {
		return nil, nil, err
	}

	if stmt.Join != nil {
		rtm, err := s.db.cat.GetTable(stmt.Join.Table)
		if err != nil {
			return nil, nil, err
		}
		rh, ok := s.db.heapByName(stmt.Join.Table)
		if !ok {
			return nil, nil, dberrors.Newf(dberrors.CatalogError, "no open heap for table %q", stmt.Join.Table)
		}
		rightIter := exec.Iterator(exec.NewSeqScan(rtm.Schema, rh))

		pred, err := makeJoinPredicate(schema, rtm.Schema, stmt.Join.On)
		if err != nil {
			return nil, nil, err
		}

		leftWidth := len(schema.Columns)
		rightWidth := len(rtm.Schema.Columns)
		combined := append(append([]types.Column(nil), schema.Columns...), rtm.Schema.Columns...)
		schema = types.NewSchema(combined)

		iter = exec.NewNestedLoopJoin(iter, rightIter, leftWidth, rightWidth, joinType(stmt.Join.Kind), pred)
	}

	if remainder != nil {
		pr, err := buildPredicate(remainder, schema)
		if err != nil {
			return nil, nil, err
		}
		iter = exec.NewFilter(schema, pr, iter)
	}

	if len(stmt.GroupBy) > 0 || hasAgg(stmt.Columns) {
		aggs := make([]exec.AggExpr, 0, len(stmt.Columns))
		outCols := make([]types.Column, 0, len(stmt.GroupBy)+len(stmt.Columns))
		for _, g := range stmt.GroupBy {
			if col, ok := schema.Column(g); ok {
				outCols = append(outCols, *col)
			}
		}
		for _, sc := range stmt.Columns {
			if sc.Agg == "" {
				continue
			}
			fn, err := aggFunc(sc.Agg)
			if err != nil {
				return nil, nil, err
			}
			aggs = append(aggs, exec.AggExpr{Func: fn, Column: sc.Column})
			name := sc.Alias
			if name == "" {
				name = string(sc.Agg)
			}
			outCols = append(outCols, types.Column{Name: name, Type: types.Decimal})
		}
		iter = exec.NewAggregate(schema, stmt.GroupBy, aggs, iter)
		schema = types.NewSchema(outCols)
	} else {
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
				return nil, nil, &dberrors.ColumnNotFoundError{Column: sc.Column}
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
	}

	if len(stmt.OrderBy) > 0 {
		keys := make([]exec.SortKey, len(stmt.OrderBy))
		for i, o := range stmt.OrderBy {
			keys[i] = exec.SortKey{Column: o.Column, Desc: o.Desc}
		}
		iter = exec.NewSort(schema, keys, iter)
	}

	if stmt.Distinct {
		iter = exec.NewDistinct(iter)
	}

	offset := 0
	if stmt.Offset != nil {
		offset = *stmt.Offset
	}
	switch {
	case stmt.Limit != nil:
		iter = exec.NewLimit(*stmt.Limit, offset, iter)
	case offset > 0:
		iter = exec.NewLimit(1<<31-1, offset, iter)
	}

	return iter, schema, nil
}

// rowFromInsertValues resolves an INSERT statement's possibly-partial
// column list (and each column's default) into a full, schema-ordered
// value row.
func rowFromInsertValues(schema *types.Schema, columns []string, row []types.Value) ([]types.Value, error) {
	out := make([]types.Value, len(schema.Columns))
	for i, col := range schema.Columns {
		out[i] = types.NewNull(col.Type)
		if col.Default != nil {
			out[i] = *col.Default
		}
	}

	if len(columns) == 0 {
		if len(row) != len(schema.Columns) {
			return nil, dberrors.Newf(dberrors.ExecutionError, "expected %d values, got %d", len(schema.Columns), len(row))
		}
		for i, col := range schema.Columns {
			out[i] = coerce(col.Type, row[i])
		}
		return out, nil
	}

	if len(columns) != len(row) {
		return nil, dberrors.Newf(dberrors.ExecutionError, "column list has %d entries, values list has %d", len(columns), len(row))
	}
	for i, name := range columns {
		idx, ok := schema.IndexOf(name)
		if !ok {
			return nil, &dberrors.ColumnNotFoundError{Column: name}
		}
		out[idx] = coerce(schema.Columns[idx].Type, row[i])
	}
	return out, nil
}
