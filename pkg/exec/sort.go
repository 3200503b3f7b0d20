package exec

import (
	"sort"

	"github.com/francodb/francodb/pkg/types"
)

// SortKey is one ORDER BY term.
type SortKey struct {
	Column string
	Desc   bool
}

// Sort buffers its entire child and emits rows ordered by Keys in
// priority order. Like Aggregate, it must drain its child before producing
// any output.
type Sort struct {
	Schema *types.Schema
	Keys   []SortKey
	Child  Iterator

	rows    []Row
	emitIdx int
	sorted  bool
}

func NewSort(schema *types.Schema, keys []SortKey, child Iterator) *Sort {
	return &Sort{Schema: schema, Keys: keys, Child: child}
}

func (s *Sort) Open() error {
	s.rows = nil
	s.emitIdx = 0
	s.sorted = false
	return s.Child.Open()
}

func (s *Sort) Next() (Row, bool, error) {
	if !s.sorted {
		for {
			row, ok, err := s.Child.Next()
			if err != nil {
				return Row{}, false, err
			}
			if !ok {
				break
			}
			s.rows = append(s.rows, row)
		}
		sort.SliceStable(s.rows, func(i, j int) bool { return s.less(s.rows[i], s.rows[j]) })
		s.sorted = true
	}
	if s.emitIdx >= len(s.rows) {
		return Row{}, false, nil
	}
	row := s.rows[s.emitIdx]
	s.emitIdx++
	return row, true, nil
}

func (s *Sort) less(a, b Row) bool {
	for _, key := range s.Keys {
		idx, ok := s.Schema.IndexOf(key.Column)
		if !ok || idx >= len(a.Values) || idx >= len(b.Values) {
			continue
		}
		cmp := a.Values[idx].Compare(b.Values[idx])
		if cmp == 0 {
			continue
		}
		if key.Desc {
			return cmp > 0
		}
		return cmp < 0
	}
	return false
}

func (s *Sort) Close() error { return s.Child.Close() }

// Limit passes through at most Count rows after skipping the first
// Offset, the same pagination split spec.md's LIMIT/OFFSET clause needs.
type Limit struct {
	Count  int
	Offset int
	Child  Iterator

	seen int
}

func NewLimit(count, offset int, child Iterator) *Limit {
	return &Limit{Count: count, Offset: offset, Child: child}
}

func (l *Limit) Open() error {
	l.seen = 0
	return l.Child.Open()
}

func (l *Limit) Next() (Row, bool, error) {
	for l.seen < l.Offset {
		_, ok, err := l.Child.Next()
		if err != nil || !ok {
			return Row{}, false, err
		}
		l.seen++
	}
	if l.seen >= l.Offset+l.Count {
		return Row{}, false, nil
	}
	row, ok, err := l.Child.Next()
	if err != nil || !ok {
		return Row{}, false, err
	}
	l.seen++
	return row, true, nil
}

func (l *Limit) Close() error { return l.Child.Close() }

// Distinct suppresses rows whose full value tuple duplicates one already
// emitted. It keeps a running set rather than requiring a sorted child, so
// it works directly on top of an unsorted scan at the cost of unbounded
// memory proportional to the number of distinct rows.
type Distinct struct {
	Child Iterator
	seen  map[string]bool
}

func NewDistinct(child Iterator) *Distinct {
	return &Distinct{Child: child}
}

func (d *Distinct) Open() error {
	d.seen = make(map[string]bool)
	return d.Child.Open()
}

func (d *Distinct) Next() (Row, bool, error) {
	for {
		row, ok, err := d.Child.Next()
		if err != nil || !ok {
			return Row{}, false, err
		}
		key := groupKey(row.Values)
		if d.seen[key] {
			continue
		}
		d.seen[key] = true
		return row, true, nil
	}
}

func (d *Distinct) Close() error { return d.Child.Close() }
