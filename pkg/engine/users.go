package engine

import (
	dberrors "github.com/francodb/francodb/pkg/errors"
	"github.com/francodb/francodb/pkg/sql"
	"github.com/francodb/francodb/pkg/sysdb"
)

// execCreateUser provisions a login with no roles; GRANT adds privilege
// afterward, matching how CREATE USER/GRANT read as two separate
// statements in the SQL surface rather than one combined form.
func (s *Session) execCreateUser(stmt *sql.CreateUserStmt) (*Result, error) {
	if err := s.requireRoot(); err != nil {
		return nil, err
	}
	if err := s.engine.sysdb.CreateUser(stmt.Username, stmt.Password, nil); err != nil {
		return nil, err
	}
	return &Result{Message: "user created"}, nil
}

func parseRole(name string) (sysdb.Role, error) {
	switch sysdb.Role(name) {
	case sysdb.RoleRoot, sysdb.RoleReadWrite, sysdb.RoleReadOnly:
		return sysdb.Role(name), nil
	default:
		return "", dberrors.Newf(dberrors.ExecutionError, "unknown role %q", name)
	}
}

func (s *Session) execGrant(stmt *sql.GrantStmt) (*Result, error) {
	if err := s.requireRoot(); err != nil {
		return nil, err
	}
	role, err := parseRole(stmt.Role)
	if err != nil {
		return nil, err
	}
	if err := s.engine.sysdb.Grant(stmt.Username, role); err != nil {
		return nil, err
	}
	return &Result{Message: "role granted"}, nil
}

func (s *Session) execRevoke(stmt *sql.RevokeStmt) (*Result, error) {
	if err := s.requireRoot(); err != nil {
		return nil, err
	}
	role, err := parseRole(stmt.Role)
	if err != nil {
		return nil, err
	}
	if err := s.engine.sysdb.Revoke(stmt.Username, role); err != nil {
		return nil, err
	}
	return &Result{Message: "role revoked"}, nil
}
