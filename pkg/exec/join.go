package exec

import "github.com/francodb/francodb/pkg/types"

// JoinType selects which unmatched rows a NestedLoopJoin still emits, with
// its unmatched side padded out with NULLs.
type JoinType int

const (
	InnerJoin JoinType = iota
	LeftJoin
	RightJoin
	FullJoin
	CrossJoin
)

// JoinPredicate decides whether a left row and a right row match. CrossJoin
// ignores it entirely (every pair matches).
type JoinPredicate func(left, right Row) (bool, error)

// NestedLoopJoin evaluates Pred against every (left, right) pair, the
// simplest join strategy and the only one that needs no sort or hash table
// on either side — the natural fallback when neither input is indexed on
// the join column. It reads the right side once in Open and re-scans that
// buffer for every left row, since Iterator has no Rewind/Reset primitive.
type NestedLoopJoin struct {
	Left       Iterator
	Right      Iterator
	RightWidth int // number of columns Right yields, for NULL-padding
	LeftWidth  int
	Type       JoinType
	Pred       JoinPredicate

	leftRow      Row
	leftOK       bool
	leftMatched  bool
	rightMatched []bool // per right-row match flag, used by RightJoin/FullJoin
	rightRows []Row
	rightIdx  int
}

func NewNestedLoopJoin(left, right Iterator, leftWidth, rightWidth int, jt JoinType, pred JoinPredicate) *NestedLoopJoin {
	return &NestedLoopJoin{Left: left, Right: right, LeftWidth: leftWidth, RightWidth: rightWidth, Type: jt, Pred: pred}
}

func (j *NestedLoopJoin) Open() error {
	if err := j.Left.Open(); err != nil {
		return err
	}
	// Materialize the right side once: NestedLoopJoin re-scans it per left
	// row, and Iterator can't be rewound without re-running its child.
	if err := j.Right.Open(); err != nil {
		return err
	}
	for {
		row, ok, err := j.Right.Next()
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		j.rightRows = append(j.rightRows, row)
	}
	if err := j.Right.Close(); err != nil {
		return err
	}
	j.rightMatched = make([]bool, len(j.rightRows))
	return j.advanceLeft()
}

func (j *NestedLoopJoin) advanceLeft() error {
	row, ok, err := j.Left.Next()
	if err != nil {
		return err
	}
	j.leftRow, j.leftOK, j.leftMatched = row, ok, false
	j.rightIdx = 0
	return nil
}

func nullRow(width int) Row {
	values := make([]types.Value, width)
	for i := range values {
		values[i] = types.NewNull(types.Integer)
	}
	return Row{Values: values}
}

func combine(left, right Row) Row {
	values := make([]types.Value, 0, len(left.Values)+len(right.Values))
	values = append(values, left.Values...)
	values = append(values, right.Values...)
	return Row{RID: left.RID, Values: values}
}

func (j *NestedLoopJoin) Next() (Row, bool, error) {
	for {
		if !j.leftOK {
			return j.nextRightUnmatched()
		}

		for j.rightIdx < len(j.rightRows) {
			right := j.rightRows[j.rightIdx]
			j.rightIdx++

			matched := j.Type == CrossJoin
			if !matched {
				var err error
				matched, err = j.Pred(j.leftRow, right)
				if err != nil {
					return Row{}, false, err
				}
			}
			if !matched {
				continue
			}
			j.leftMatched = true
			j.rightMatched[j.rightIdx-1] = true
			return combine(j.leftRow, right), true, nil
		}

		if !j.leftMatched && (j.Type == LeftJoin || j.Type == FullJoin) {
			out := combine(j.leftRow, nullRow(j.RightWidth))
			if err := j.advanceLeft(); err != nil {
				return Row{}, false, err
			}
			return out, true, nil
		}

		if err := j.advanceLeft(); err != nil {
			return Row{}, false, err
		}
	}
}

// nextRightUnmatched, reached once the left side is exhausted, yields the
// right rows no left row matched for RightJoin/FullJoin.
func (j *NestedLoopJoin) nextRightUnmatched() (Row, bool, error) {
	if j.Type != RightJoin && j.Type != FullJoin {
		return Row{}, false, nil
	}
	for j.rightIdx < len(j.rightRows) {
		idx := j.rightIdx
		j.rightIdx++
		if !j.rightMatched[idx] {
			return combine(nullRow(j.LeftWidth), j.rightRows[idx]), true, nil
		}
	}
	return Row{}, false, nil
}

func (j *NestedLoopJoin) Close() error {
	return j.Left.Close()
}
