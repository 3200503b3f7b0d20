// Package exec implements the Volcano-style iterator tree that runs a
// planned query: every node pulls rows from its children one at a time
// through Next. Sort, Aggregate and the right side of a NestedLoopJoin are
// read in full before the first row comes out; the other nodes stream, so
// a LIMIT 1 over a scan stops pulling after the row it needs.
package exec

import (
	"github.com/francodb/francodb/pkg/types"
)

// Row is one tuple flowing through the executor tree, decoded against
// whatever schema the producing node knows about.
type Row struct {
	RID    types.RID
	Values []types.Value
}

// Iterator is one node of the executor tree. Next returns (Row{}, false,
// nil) once exhausted; callers must stop pulling at that point rather than
// treating it as an error.
type Iterator interface {
	Open() error
	Next() (Row, bool, error)
	Close() error
}
