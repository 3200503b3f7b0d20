// Package catalog tracks every table and index a database knows about: the
// name/OID/schema/heap-chain bookkeeping a table needs, and the name/column
// bookkeeping an index needs to be rebuilt against its table's heap.
//
// Indexes themselves live as in-memory *btree.BPlusTree node graphs (see
// pkg/btree); the catalog only remembers that an index exists and how to
// rebuild it, the same way a table's B+Tree is rebuilt by replaying its
// heap rather than by walking on-disk node pages.
package catalog

import (
	"sync"

	"github.com/francodb/francodb/pkg/btree"
	"github.com/francodb/francodb/pkg/errors"
	"github.com/francodb/francodb/pkg/types"
)

// ForeignKey constrains one column of a table to reference a row of
// another (or the same) table. OnDelete governs what happens when the
// referenced row disappears; RESTRICT is the only mode enforced without an
// explicit opt-in, per the default a reader would expect from a system
// with no ON DELETE clause.
type ForeignKey struct {
	Name       string
	Column     string
	RefTable   string
	RefColumn  string
	OnDelete   OnDeleteAction
}

type OnDeleteAction int

const (
	Restrict OnDeleteAction = iota
	Cascade
)

func (a OnDeleteAction) String() string {
	if a == Cascade {
		return "CASCADE"
	}
	return "RESTRICT"
}

// TableMetadata is everything the catalog remembers about one table.
type TableMetadata struct {
	OID    uint32
	Name   string
	Schema *types.Schema

	HeadPageID types.PageID // first page of the table's heap chain
	TailPageID types.PageID // last page, kept in sync as the heap grows

	ForeignKeys []ForeignKey

	LastCheckpointLSN types.LSN
}

// IndexMetadata is everything the catalog remembers about one index. Root
// is the live in-memory tree; OID/Name/TableName/Column/KeyType/Unique are
// the durable facts a checkpoint or a restart needs to rebuild Root by
// replaying the table's heap.
type IndexMetadata struct {
	OID       uint32
	Name      string
	TableName string
	Column    string
	KeyType   types.DataType
	Unique    bool
	Root      *btree.BPlusTree
}

// Catalog is the single source of truth for table and index existence
// within one open database. A single mutex guards every map: catalog
// operations (CREATE/DROP TABLE, CREATE/DROP INDEX) are rare enough, and
// need to be atomic with each other often enough (e.g. checking a table
// doesn't already exist before creating it), that per-map locks would buy
// concurrency nobody needs at the cost of bugs somebody would hit.
type Catalog struct {
	mu sync.Mutex

	tablesByName map[string]*TableMetadata
	tablesByOID  map[uint32]*TableMetadata

	indexesByName  map[string]*IndexMetadata
	indexesByTable map[string][]*IndexMetadata

	nextOID uint32 // monotonic; an OID is never reused, even after DROP
}

// New creates an empty catalog.
func New() *Catalog {
	return &Catalog{
		tablesByName:   make(map[string]*TableMetadata),
		tablesByOID:    make(map[uint32]*TableMetadata),
		indexesByName:  make(map[string]*IndexMetadata),
		indexesByTable: make(map[string][]*IndexMetadata),
		nextOID:        1,
	}
}

func (c *Catalog) allocOID() uint32 {
	oid := c.nextOID
	c.nextOID++
	return oid
}

// CreateTable registers a new table. schema must have at most one primary
// key column; head/tail anchor the table's (freshly allocated, empty)
// heap chain.
func (c *Catalog) CreateTable(name string, schema *types.Schema, head, tail types.PageID) (*TableMetadata, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.tablesByName[name]; exists {
		return nil, &errors.TableAlreadyExistsError{Name: name}
	}

	pkCount := 0
	for _, col := range schema.Columns {
		if col.PrimaryKey {
			pkCount++
		}
	}
	if pkCount > 1 {
		return nil, &errors.TwoPrimarykeysError{Total: pkCount}
	}

	tm := &TableMetadata{
		OID:        c.allocOID(),
		Name:       name,
		Schema:     schema,
		HeadPageID: head,
		TailPageID: tail,
	}
	c.tablesByName[name] = tm
	c.tablesByOID[tm.OID] = tm
	return tm, nil
}

// DropTable removes a table and every index defined on it. The caller is
// responsible for reclaiming the heap's pages first; the catalog only
// forgets the bookkeeping.
func (c *Catalog) DropTable(name string) (*TableMetadata, []*IndexMetadata, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	tm, ok := c.tablesByName[name]
	if !ok {
		return nil, nil, &errors.TableNotFoundError{Name: name}
	}

	dropped := c.indexesByTable[name]
	for _, idx := range dropped {
		delete(c.indexesByName, idx.Name)
	}
	delete(c.indexesByTable, name)
	delete(c.tablesByName, name)
	delete(c.tablesByOID, tm.OID)

	return tm, dropped, nil
}

func (c *Catalog) GetTable(name string) (*TableMetadata, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	tm, ok := c.tablesByName[name]
	if !ok {
		return nil, &errors.TableNotFoundError{Name: name}
	}
	return tm, nil
}

func (c *Catalog) GetTableByOID(oid uint32) (*TableMetadata, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	tm, ok := c.tablesByOID[oid]
	return tm, ok
}

// ListTables returns every table's metadata, in no particular order.
func (c *Catalog) ListTables() []*TableMetadata {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*TableMetadata, 0, len(c.tablesByName))
	for _, tm := range c.tablesByName {
		out = append(out, tm)
	}
	return out
}

// SetHeapTail updates a table's cached tail page id after an insert grows
// its heap chain.
func (c *Catalog) SetHeapTail(name string, tail types.PageID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	tm, ok := c.tablesByName[name]
	if !ok {
		return &errors.TableNotFoundError{Name: name}
	}
	tm.TailPageID = tail
	return nil
}

// SetLastCheckpointLSN records the LSN a table was last snapshotted at.
func (c *Catalog) SetLastCheckpointLSN(name string, lsn types.LSN) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	tm, ok := c.tablesByName[name]
	if !ok {
		return &errors.TableNotFoundError{Name: name}
	}
	tm.LastCheckpointLSN = lsn
	return nil
}

// AddForeignKey attaches a foreign key constraint to an existing table.
// The referenced table must already exist; the referenced column must
// exist and must be that table's primary key or carry a UNIQUE index,
// otherwise the constraint couldn't possibly be enforced.
func (c *Catalog) AddForeignKey(table string, fk ForeignKey) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	tm, ok := c.tablesByName[table]
	if !ok {
		return &errors.TableNotFoundError{Name: table}
	}
	if _, ok := tm.Schema.Column(fk.Column); !ok {
		return &errors.ColumnNotFoundError{Table: table, Column: fk.Column}
	}

	ref, ok := c.tablesByName[fk.RefTable]
	if !ok {
		return &errors.TableNotFoundError{Name: fk.RefTable}
	}
	refCol, ok := ref.Schema.Column(fk.RefColumn)
	if !ok {
		return &errors.ColumnNotFoundError{Table: fk.RefTable, Column: fk.RefColumn}
	}
	if !refCol.PrimaryKey && !refCol.Unique {
		return &errors.ForeignKeyViolationError{
			Constraint: fk.Name,
			Detail:     "referenced column must be a primary key or carry a unique index",
		}
	}

	tm.ForeignKeys = append(tm.ForeignKeys, fk)
	return nil
}

// ForeignKeysReferencing returns every foreign key (on any table) whose
// RefTable is table, used by DELETE/UPDATE to enforce RESTRICT/CASCADE
// against child rows.
func (c *Catalog) ForeignKeysReferencing(table string) []struct {
	Table string
	FK    ForeignKey
} {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []struct {
		Table string
		FK    ForeignKey
	}
	for _, tm := range c.tablesByName {
		for _, fk := range tm.ForeignKeys {
			if fk.RefTable == table {
				out = append(out, struct {
					Table string
					FK    ForeignKey
				}{Table: tm.Name, FK: fk})
			}
		}
	}
	return out
}

// CreateIndex registers a new index on table.column, backed by a freshly
// created (empty) B+Tree that the caller populates by scanning the heap.
func (c *Catalog) CreateIndex(name, table, column string, keyType types.DataType, unique bool, degree int) (*IndexMetadata, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.indexesByName[name]; exists {
		return nil, errors.Newf(errors.CatalogError, "index %q already exists", name)
	}
	tm, ok := c.tablesByName[table]
	if !ok {
		return nil, &errors.TableNotFoundError{Name: table}
	}
	if _, ok := tm.Schema.Column(column); !ok {
		return nil, &errors.ColumnNotFoundError{Table: table, Column: column}
	}

	var tree *btree.BPlusTree
	if unique {
		tree = btree.NewUniqueTree(degree)
	} else {
		tree = btree.NewTree(degree)
	}

	im := &IndexMetadata{
		OID:       c.allocOID(),
		Name:      name,
		TableName: table,
		Column:    column,
		KeyType:   keyType,
		Unique:    unique,
		Root:      tree,
	}
	c.indexesByName[name] = im
	c.indexesByTable[table] = append(c.indexesByTable[table], im)
	return im, nil
}

func (c *Catalog) DropIndex(name string) (*IndexMetadata, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	im, ok := c.indexesByName[name]
	if !ok {
		return nil, &errors.IndexNotFoundError{Name: name}
	}
	delete(c.indexesByName, name)
	siblings := c.indexesByTable[im.TableName]
	for i, sib := range siblings {
		if sib.Name == name {
			c.indexesByTable[im.TableName] = append(siblings[:i], siblings[i+1:]...)
			break
		}
	}
	return im, nil
}

func (c *Catalog) GetIndex(name string) (*IndexMetadata, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	im, ok := c.indexesByName[name]
	if !ok {
		return nil, &errors.IndexNotFoundError{Name: name}
	}
	return im, nil
}

// IndexesOn returns every index defined on table, in creation order.
func (c *Catalog) IndexesOn(table string) []*IndexMetadata {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*IndexMetadata(nil), c.indexesByTable[table]...)
}

// IndexOnColumn finds the (first) index on table.column, if any, so the
// query planner can prefer an IndexScan over a SeqScan.
func (c *Catalog) IndexOnColumn(table, column string) (*IndexMetadata, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, im := range c.indexesByTable[table] {
		if im.Column == column {
			return im, true
		}
	}
	return nil, false
}
