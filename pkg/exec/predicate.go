package exec

import (
	"github.com/francodb/francodb/pkg/errors"
	"github.com/francodb/francodb/pkg/query"
	"github.com/francodb/francodb/pkg/types"
)

// Predicate is a boolean condition evaluated against a decoded row. An
// index scan answers query.ScanCondition directly against keys; Predicate
// is the generic fallback a Filter node runs against a fully decoded
// tuple, for everything an index probe can't resolve on its own (multi
// column conditions, AND/OR/NOT). Every comparison is against a literal;
// there is no column-to-column comparison.
type Predicate interface {
	Eval(schema *types.Schema, row Row) (bool, error)
}

// Compare is a single-column comparison against a literal value, reusing
// pkg/query's operator set so a planner can lift a Compare straight into a
// query.ScanCondition when the column happens to be indexed.
type Compare struct {
	Column  string
	Op      query.ScanOperator
	Literal types.Value
}

func (c *Compare) Eval(schema *types.Schema, row Row) (bool, error) {
	i, ok := schema.IndexOf(c.Column)
	if !ok {
		return false, &errors.ColumnNotFoundError{Table: "", Column: c.Column}
	}
	if i >= len(row.Values) {
		return false, &errors.ColumnNotFoundError{Table: "", Column: c.Column}
	}
	v := row.Values[i]
	if v.Null || c.Literal.Null {
		return false, nil
	}
	cmp := v.Compare(c.Literal)
	switch c.Op {
	case query.OpEqual:
		return cmp == 0, nil
	case query.OpNotEqual:
		return cmp != 0, nil
	case query.OpGreaterThan:
		return cmp > 0, nil
	case query.OpGreaterOrEqual:
		return cmp >= 0, nil
	case query.OpLessThan:
		return cmp < 0, nil
	case query.OpLessOrEqual:
		return cmp <= 0, nil
	default:
		return false, nil
	}
}

// And is satisfied when both operands are.
type And struct{ Left, Right Predicate }

func (p *And) Eval(schema *types.Schema, row Row) (bool, error) {
	ok, err := p.Left.Eval(schema, row)
	if err != nil || !ok {
		return false, err
	}
	return p.Right.Eval(schema, row)
}

// Or is satisfied when either operand is.
type Or struct{ Left, Right Predicate }

func (p *Or) Eval(schema *types.Schema, row Row) (bool, error) {
	ok, err := p.Left.Eval(schema, row)
	if err != nil || ok {
		return ok, err
	}
	return p.Right.Eval(schema, row)
}

// Not negates its operand.
type Not struct{ Inner Predicate }

func (p *Not) Eval(schema *types.Schema, row Row) (bool, error) {
	ok, err := p.Inner.Eval(schema, row)
	if err != nil {
		return false, err
	}
	return !ok, nil
}
