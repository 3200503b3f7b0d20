package exec

import "github.com/francodb/francodb/pkg/types"

// Project keeps only Columns (by index into the child's row, in output
// order) from each row its child produces — the final shaping step
// between a scan/join/aggregate tree and the result set a SELECT's column
// list actually asked for.
type Project struct {
	Columns []int
	Child   Iterator
}

func NewProject(columns []int, child Iterator) *Project {
	return &Project{Columns: columns, Child: child}
}

func (p *Project) Open() error { return p.Child.Open() }

func (p *Project) Next() (Row, bool, error) {
	row, ok, err := p.Child.Next()
	if err != nil || !ok {
		return Row{}, false, err
	}
	values := make([]types.Value, len(p.Columns))
	for i, col := range p.Columns {
		if col >= 0 && col < len(row.Values) {
			values[i] = row.Values[col]
		}
	}
	return Row{RID: row.RID, Values: values}, true, nil
}

func (p *Project) Close() error { return p.Child.Close() }
