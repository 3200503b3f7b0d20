package engine

import (
	dberrors "github.com/francodb/francodb/pkg/errors"
	"github.com/francodb/francodb/pkg/exec"
	"github.com/francodb/francodb/pkg/sysdb"
	"github.com/francodb/francodb/pkg/txn"
	"github.com/francodb/francodb/pkg/types"
)

// Result is what running one statement produces: either a row set (a
// SELECT, or EXPLAIN's plan description), or an affected-row count for a
// mutating statement, or neither for a control statement that only
// changes session/server state.
type Result struct {
	Schema       *types.Schema
	Rows         []exec.Row
	RowsAffected int
	Message      string
}

// Session is one client connection's state: which database it's
// currently USE-ing, who it authenticated as, and the explicit
// transaction it's inside of, if any (nil means every statement runs in
// its own autocommit transaction).
type Session struct {
	engine *Engine
	db     *Database

	Username string
	Roles    []sysdb.Role

	explicitTxn *txn.Transaction
}

// UseDatabase switches the session's current database.
func (s *Session) UseDatabase(name string) error {
	db, err := s.engine.Database(name)
	if err != nil {
		return err
	}
	if s.explicitTxn != nil {
		return dberrors.New(dberrors.ExecutionError, "cannot switch database inside an open transaction")
	}
	s.db = db
	return nil
}

// Authenticate checks username/password against the shared user store
// and, on success, attaches the user's roles to the session.
func (s *Session) Authenticate(username, password string) error {
	ok, err := s.engine.sysdb.Authenticate(username, password)
	if err != nil {
		return err
	}
	if !ok {
		return &dberrors.AuthDeniedError{User: username, Reason: "invalid credentials"}
	}
	rec, _, err := s.engine.sysdb.GetUser(username)
	if err != nil {
		return err
	}
	s.Username = username
	s.Roles = rec.Roles
	return nil
}

func (s *Session) hasRole(role sysdb.Role) bool {
	for _, r := range s.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// requireWrite rejects a mutating statement from a session authenticated
// read-only; an unauthenticated session (Username == "") is allowed
// through, matching a local/embedded use with no sysdb users provisioned.
func (s *Session) requireWrite() error {
	if s.Username == "" || s.hasRole(sysdb.RoleRoot) || s.hasRole(sysdb.RoleReadWrite) {
		return nil
	}
	return &dberrors.AuthDeniedError{User: s.Username, Reason: "read-only role cannot run a mutating statement"}
}

func (s *Session) requireRoot() error {
	if s.Username == "" || s.hasRole(sysdb.RoleRoot) {
		return nil
	}
	return &dberrors.AuthDeniedError{User: s.Username, Reason: "requires the root role"}
}

// beginImplicit starts a fresh autocommit transaction for one statement
// when the session has no explicit one open.
func (s *Session) beginImplicit() (*txn.Transaction, bool, error) {
	if s.explicitTxn != nil {
		return s.explicitTxn, false, nil
	}
	t, err := s.db.Txns.Begin(txn.ReadCommitted)
	if err != nil {
		return nil, false, err
	}
	return t, true, nil
}

func (s *Session) endImplicit(t *txn.Transaction, owned bool, err error) error {
	if !owned {
		return err
	}
	target := &recoveryTarget{db: s.db}
	if err != nil {
		if abortErr := s.db.Txns.Abort(t, target); abortErr != nil {
			return abortErr
		}
		return err
	}
	return s.db.Txns.Commit(t)
}
