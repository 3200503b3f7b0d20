// Package engine is the facade tying every other package together into a
// running database server: it owns the on-disk layout of a multi-database
// instance, opens (and crash-recovers) each database on first use, and
// turns a parsed pkg/sql statement into a pkg/exec iterator tree or a
// catalog/session side effect. pkg/server and pkg/protocol sit in front
// of it; this package never imports either.
package engine

import (
	"os"
	"path/filepath"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/francodb/francodb/pkg/config"
	dberrors "github.com/francodb/francodb/pkg/errors"
	"github.com/francodb/francodb/pkg/sysdb"
)

const (
	databasesDirName = "databases"
	sysdbFileName    = "system.sysdb"
	defaultDatabase  = "default"
)

// Engine is one running francodb instance: a registry of opened
// databases plus the shared system database (users and roles) that
// isn't scoped to any one of them.
type Engine struct {
	mu sync.Mutex

	dataDir       string
	encryptionKey []byte
	logger        *zap.Logger

	sysdb     *sysdb.Store
	databases map[string]*Database
}

// New opens (or bootstraps, on first run) the instance rooted at
// cfg.DataDirectory: the user store, and a "default" database so a
// session has somewhere to land before issuing its own USE DATABASE.
func New(cfg config.Config, logger *zap.Logger) (*Engine, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(cfg.DataDirectory, 0755); err != nil {
		return nil, dberrors.Wrapf(dberrors.IOError, err, "creating data directory %s", cfg.DataDirectory)
	}

	store, err := sysdb.Open(filepath.Join(cfg.DataDirectory, sysdbFileName))
	if err != nil {
		return nil, err
	}
	if cfg.RootUsername != "" {
		if err := store.EnsureRoot(cfg.RootUsername, cfg.RootPassword); err != nil {
			store.Close()
			return nil, err
		}
	}

	var key []byte
	if cfg.EncryptionEnabled {
		key = []byte(cfg.EncryptionKey)
	}

	e := &Engine{
		dataDir:       cfg.DataDirectory,
		encryptionKey: key,
		logger:        logger,
		sysdb:         store,
		databases:     make(map[string]*Database),
	}

	if _, err := e.ensureOpen(defaultDatabase); err != nil {
		store.Close()
		return nil, err
	}
	return e, nil
}

func (e *Engine) databaseDir(name string) string {
	return filepath.Join(e.dataDir, databasesDirName, name)
}

// ensureOpen returns the already-open Database for name, opening it from
// disk (running crash recovery as part of the open) if this is the first
// reference to it since startup.
func (e *Engine) ensureOpen(name string) (*Database, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if db, ok := e.databases[name]; ok {
		return db, nil
	}

	db, err := openDatabase(e.databaseDir(name), name, e.encryptionKey, e.logger.Named("db."+name))
	if err != nil {
		return nil, err
	}
	e.databases[name] = db
	return db, nil
}

// Database returns the named, already-open (or lazily opened) database.
// Unlike CreateDatabase it never creates one on disk: USE DATABASE on a
// name nobody created yet is an error, not an implicit CREATE.
func (e *Engine) Database(name string) (*Database, error) {
	if _, err := os.Stat(e.databaseDir(name)); os.IsNotExist(err) {
		e.mu.Lock()
		_, open := e.databases[name]
		e.mu.Unlock()
		if !open {
			return nil, dberrors.Newf(dberrors.CatalogError, "database %q does not exist", name)
		}
	}
	return e.ensureOpen(name)
}

// CreateDatabase creates and opens a new, empty database. It is an error
// if name already exists, on disk or in the open registry.
func (e *Engine) CreateDatabase(name string) error {
	e.mu.Lock()
	if _, ok := e.databases[name]; ok {
		e.mu.Unlock()
		return dberrors.Newf(dberrors.CatalogError, "database %q already exists", name)
	}
	e.mu.Unlock()

	if _, err := os.Stat(e.databaseDir(name)); err == nil {
		return dberrors.Newf(dberrors.CatalogError, "database %q already exists", name)
	}

	_, err := e.ensureOpen(name)
	return err
}

// DropDatabase closes (if open) and permanently deletes name's directory.
// The default database can't be dropped out from under a fresh instance.
func (e *Engine) DropDatabase(name string) error {
	if name == defaultDatabase {
		return dberrors.New(dberrors.CatalogError, "cannot drop the default database")
	}

	e.mu.Lock()
	db, open := e.databases[name]
	delete(e.databases, name)
	e.mu.Unlock()

	if open {
		if err := db.Close(); err != nil {
			return err
		}
	}

	dir := e.databaseDir(name)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return dberrors.Newf(dberrors.CatalogError, "database %q does not exist", name)
	}
	return os.RemoveAll(dir)
}

// ListDatabases returns every database name known on disk, open or not.
func (e *Engine) ListDatabases() ([]string, error) {
	root := filepath.Join(e.dataDir, databasesDirName)
	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, dberrors.Wrap(dberrors.IOError, err, "listing databases")
	}
	names := make([]string, 0, len(entries))
	for _, ent := range entries {
		if ent.IsDir() {
			names = append(names, ent.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// Users returns the shared user/role store every database's CREATE
// USER/GRANT/REVOKE statements operate against.
func (e *Engine) Users() *sysdb.Store { return e.sysdb }

// NewSession opens a session against the engine's default database, for
// a connection that hasn't issued USE DATABASE yet.
func (e *Engine) NewSession() (*Session, error) {
	db, err := e.ensureOpen(defaultDatabase)
	if err != nil {
		return nil, err
	}
	return &Session{engine: e, db: db}, nil
}

// Close flushes and closes every open database and the user store.
func (e *Engine) Close() error {
	e.mu.Lock()
	databases := e.databases
	e.databases = nil
	e.mu.Unlock()

	var first error
	for _, db := range databases {
		if err := db.Close(); err != nil && first == nil {
			first = err
		}
	}
	if err := e.sysdb.Close(); err != nil && first == nil {
		first = err
	}
	return first
}
