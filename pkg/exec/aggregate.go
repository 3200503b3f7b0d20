package exec

import (
	"math"

	"github.com/francodb/francodb/pkg/types"
)

// AggFunc is one aggregate kind computed over a column (Count instead
// counts every row of the group, regardless of column).
type AggFunc int

const (
	Count AggFunc = iota
	Sum
	Avg
	Min
	Max
)

// AggExpr is one aggregate the Aggregate node computes per group.
type AggExpr struct {
	Func   AggFunc
	Column string // ignored by Count
}

// Aggregate groups its child's rows by GroupBy (no columns means one group
// covering every row) and computes Aggs per group, emitting one output row
// per group: the group-by values followed by each aggregate's result, in
// the order they were configured. It must consume its entire child before
// producing any output, since a group's membership isn't known until every
// row has been seen.
type Aggregate struct {
	Schema  *types.Schema
	GroupBy []string
	Aggs    []AggExpr
	Child   Iterator

	groups    []groupState
	groupKeys map[string]int
	emitIdx   int
}

type groupState struct {
	keyValues []types.Value
	state     []aggAccumulator
}

type aggAccumulator struct {
	count int64
	sum   float64
	min   types.Value
	max   types.Value
	set   bool
}

func NewAggregate(schema *types.Schema, groupBy []string, aggs []AggExpr, child Iterator) *Aggregate {
	return &Aggregate{Schema: schema, GroupBy: groupBy, Aggs: aggs, Child: child}
}

func (a *Aggregate) Open() error {
	a.groups = nil
	a.groupKeys = make(map[string]int)
	a.emitIdx = 0
	return a.Child.Open()
}

func groupKey(values []types.Value) string {
	var key string
	for _, v := range values {
		key += v.String() + "\x00"
	}
	return key
}

func (a *Aggregate) materialize() error {
	for {
		row, ok, err := a.Child.Next()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}

		keyValues := make([]types.Value, len(a.GroupBy))
		for i, col := range a.GroupBy {
			idx, found := a.Schema.IndexOf(col)
			if found && idx < len(row.Values) {
				keyValues[i] = row.Values[idx]
			}
		}
		key := groupKey(keyValues)

		gi, exists := a.groupKeys[key]
		if !exists {
			gi = len(a.groups)
			a.groupKeys[key] = gi
			a.groups = append(a.groups, groupState{
				keyValues: keyValues,
				state:     make([]aggAccumulator, len(a.Aggs)),
			})
		}
		g := &a.groups[gi]

		for i, agg := range a.Aggs {
			acc := &g.state[i]
			acc.count++
			if agg.Func == Count {
				continue
			}
			idx, found := a.Schema.IndexOf(agg.Column)
			if !found || idx >= len(row.Values) || row.Values[idx].Null {
				continue
			}
			v := row.Values[idx]
			f := numericOf(v)
			acc.sum += f
			if !acc.set {
				acc.min, acc.max, acc.set = v, v, true
			} else {
				if v.Compare(acc.min) < 0 {
					acc.min = v
				}
				if v.Compare(acc.max) > 0 {
					acc.max = v
				}
			}
		}
	}
}

func numericOf(v types.Value) float64 {
	switch v.Type {
	case types.Integer:
		return float64(v.IntVal)
	case types.Decimal:
		return v.FloatVal
	default:
		return math.NaN()
	}
}

func (a *Aggregate) Next() (Row, bool, error) {
	if a.groupKeys == nil {
		if err := a.materialize(); err != nil {
			return Row{}, false, err
		}
	}
	if a.emitIdx >= len(a.groups) {
		return Row{}, false, nil
	}
	g := a.groups[a.emitIdx]
	a.emitIdx++

	values := append([]types.Value(nil), g.keyValues...)
	for i, agg := range a.Aggs {
		acc := g.state[i]
		switch agg.Func {
		case Count:
			values = append(values, types.NewInt(acc.count))
		case Sum:
			values = append(values, types.NewDecimal(acc.sum))
		case Avg:
			if acc.count == 0 {
				values = append(values, types.NewNull(types.Decimal))
			} else {
				values = append(values, types.NewDecimal(acc.sum/float64(acc.count)))
			}
		case Min:
			if acc.set {
				values = append(values, acc.min)
			} else {
				values = append(values, types.NewNull(types.Decimal))
			}
		case Max:
			if acc.set {
				values = append(values, acc.max)
			} else {
				values = append(values, types.NewNull(types.Decimal))
			}
		}
	}
	return Row{Values: values}, true, nil
}

func (a *Aggregate) Close() error { return a.Child.Close() }
