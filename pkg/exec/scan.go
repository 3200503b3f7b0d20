package exec

import (
	"github.com/francodb/francodb/pkg/btree"
	"github.com/francodb/francodb/pkg/heap"
	"github.com/francodb/francodb/pkg/query"
	"github.com/francodb/francodb/pkg/types"
)

// SeqScan walks a table's heap chain page by page, decoding every live
// tuple it finds. It never consults an index; the planner picks it over
// IndexScan when no condition is indexable or the table has no index.
type SeqScan struct {
	Schema *types.Schema
	Heap   *heap.Heap

	it *heap.Iterator
}

func NewSeqScan(schema *types.Schema, h *heap.Heap) *SeqScan {
	return &SeqScan{Schema: schema, Heap: h}
}

func (s *SeqScan) Open() error {
	s.it = heap.NewIterator(s.Heap)
	return nil
}

func (s *SeqScan) Next() (Row, bool, error) {
	ok, err := s.it.Next()
	if err != nil || !ok {
		return Row{}, false, err
	}
	values, err := types.DecodeTuple(s.Schema, s.it.Tuple())
	if err != nil {
		return Row{}, false, err
	}
	return Row{RID: s.it.RID(), Values: values}, true, nil
}

func (s *SeqScan) Close() error { return nil }

// IndexScan walks a B+Tree index's leaf chain, lock-coupling from one leaf
// to the next the same way pkg/storage's original Cursor did, but keyed
// by types.RID rather than a raw page pointer. A nil condition (or one
// query.ScanCondition.ShouldSeek reports false for) scans every key in the
// index from the beginning; otherwise the scan seeks to GetStartKey and
// stops as soon as ShouldContinue says to.
type IndexScan struct {
	Schema *types.Schema
	Heap   *heap.Heap
	Tree   *btree.BPlusTree
	Cond   *query.ScanCondition

	node  *btree.Node
	index int
	done  bool
}

func NewIndexScan(schema *types.Schema, h *heap.Heap, tree *btree.BPlusTree, cond *query.ScanCondition) *IndexScan {
	return &IndexScan{Schema: schema, Heap: h, Tree: tree, Cond: cond}
}

func (s *IndexScan) Open() error {
	var start types.Comparable
	if s.Cond != nil && s.Cond.ShouldSeek() {
		start = s.Cond.GetStartKey()
	}
	s.node, s.index = s.Tree.FindLeafLowerBound(start)
	s.advancePastEmptyLeaves()
	return nil
}

// advancePastEmptyLeaves lock-couples forward while the current leaf is
// exhausted or was empty to begin with, mirroring the teacher Cursor's
// Seek/Next skip-empty loop.
func (s *IndexScan) advancePastEmptyLeaves() {
	for s.node != nil && s.index >= s.node.N {
		next := s.node.Next
		if next != nil {
			next.RLock()
		}
		s.node.RUnlock()
		s.node = next
		s.index = 0
	}
}

func (s *IndexScan) Next() (Row, bool, error) {
	for {
		if s.done || s.node == nil {
			return Row{}, false, nil
		}

		key := s.node.Keys[s.index]
		if s.Cond != nil && !s.Cond.ShouldContinue(key) {
			s.node.RUnlock()
			s.node = nil
			s.done = true
			return Row{}, false, nil
		}

		rid := s.node.Values[s.index]
		matched := s.Cond == nil || s.Cond.Matches(key)

		s.index++
		s.advancePastEmptyLeaves()

		if !matched {
			continue
		}

		tuple, ok, err := s.Heap.Get(rid)
		if err != nil {
			return Row{}, false, err
		}
		if !ok {
			// Row was deleted after the index entry was written but
			// before this scan reached it; skip it rather than surface a
			// tombstone.
			continue
		}
		values, err := types.DecodeTuple(s.Schema, tuple)
		if err != nil {
			return Row{}, false, err
		}
		return Row{RID: rid, Values: values}, true, nil
	}
}

func (s *IndexScan) Close() error {
	if s.node != nil {
		s.node.RUnlock()
		s.node = nil
	}
	s.done = true
	return nil
}

// Filter wraps a child iterator and passes through only rows satisfying
// Pred, evaluated against Schema.
type Filter struct {
	Schema *types.Schema
	Pred   Predicate
	Child  Iterator
}

func NewFilter(schema *types.Schema, pred Predicate, child Iterator) *Filter {
	return &Filter{Schema: schema, Pred: pred, Child: child}
}

func (f *Filter) Open() error { return f.Child.Open() }

func (f *Filter) Next() (Row, bool, error) {
	for {
		row, ok, err := f.Child.Next()
		if err != nil || !ok {
			return Row{}, false, err
		}
		keep, err := f.Pred.Eval(f.Schema, row)
		if err != nil {
			return Row{}, false, err
		}
		if keep {
			return row, true, nil
		}
	}
}

func (f *Filter) Close() error { return f.Child.Close() }
