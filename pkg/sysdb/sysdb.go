// Package sysdb is the private system database: a Pebble-backed
// username -> credential+role record store, kept entirely outside the
// page-oriented storage engine so authentication never has to round-trip
// through the SQL engine it is there to gate. This closes spec.md's open
// question about where user/role storage lives by giving it Pebble's
// native upsert (Set) semantics instead of modeling it as ordinary table
// rows.
package sysdb

import (
	"time"

	"github.com/cockroachdb/pebble"

	"github.com/francodb/francodb/pkg/errors"
)

// Role is a coarse privilege grant. Roles compose: a user can hold more
// than one.
type Role string

const (
	RoleRoot      Role = "root"      // full DDL/DML, user management
	RoleReadWrite Role = "readwrite" // DML on every database
	RoleReadOnly  Role = "readonly"  // SELECT only
)

// UserRecord is everything the system database remembers about one
// login: its salted password hash and the roles it holds.
type UserRecord struct {
	Username     string
	PasswordHash []byte
	Salt         []byte
	Roles        []Role
	CreatedAt    int64
}

// HasRole reports whether the record carries role.
func (u UserRecord) HasRole(role Role) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Store is the open system database handle.
type Store struct {
	db *pebble.DB
}

// Open opens (creating if absent) the system database at path, typically
// <data_directory>/system.
func Open(path string) (*Store, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, errors.Wrap(errors.IOError, err, "opening system database")
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return errors.Wrap(errors.IOError, err, "closing system database")
	}
	return nil
}

// CreateUser upserts a user record with a freshly salted password hash,
// per spec.md's §9 resolution: user storage uses Set (upsert), not a
// conditional insert that would fail on a pre-existing row.
func (s *Store) CreateUser(username, password string, roles []Role) error {
	salt, err := newSalt()
	if err != nil {
		return errors.Wrap(errors.IOError, err, "generating password salt")
	}
	rec := UserRecord{
		Username:     username,
		PasswordHash: hashPassword(password, salt),
		Salt:         salt,
		Roles:        roles,
		CreatedAt:    time.Now().Unix(),
	}
	return s.put(rec)
}

func (s *Store) put(rec UserRecord) error {
	if err := s.db.Set([]byte(rec.Username), encodeUser(rec), pebble.Sync); err != nil {
		return errors.Wrap(errors.IOError, err, "writing user record")
	}
	return nil
}

// GetUser looks up a user by name.
func (s *Store) GetUser(username string) (UserRecord, bool, error) {
	value, closer, err := s.db.Get([]byte(username))
	if err == pebble.ErrNotFound {
		return UserRecord{}, false, nil
	}
	if err != nil {
		return UserRecord{}, false, errors.Wrap(errors.IOError, err, "reading user record")
	}
	defer closer.Close()

	rec, err := decodeUser(value)
	if err != nil {
		return UserRecord{}, false, &errors.CorruptionError{Location: username, Detail: "malformed user record"}
	}
	return rec, true, nil
}

// Authenticate reports whether password matches username's stored hash.
// A missing user and a wrong password are indistinguishable to the
// caller, matching spec.md §7's AUTH_DENIED reporting at the role-check
// boundary rather than leaking which half of the credential was wrong.
func (s *Store) Authenticate(username, password string) (bool, error) {
	rec, ok, err := s.GetUser(username)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	return verifyPassword(password, rec.Salt, rec.PasswordHash), nil
}

// Grant adds role to username's record if not already held.
func (s *Store) Grant(username string, role Role) error {
	rec, ok, err := s.GetUser(username)
	if err != nil {
		return err
	}
	if !ok {
		return &errors.AuthDeniedError{User: username, Reason: "no such user"}
	}
	if rec.HasRole(role) {
		return nil
	}
	rec.Roles = append(rec.Roles, role)
	return s.put(rec)
}

// Revoke removes role from username's record, if held.
func (s *Store) Revoke(username string, role Role) error {
	rec, ok, err := s.GetUser(username)
	if err != nil {
		return err
	}
	if !ok {
		return &errors.AuthDeniedError{User: username, Reason: "no such user"}
	}
	kept := rec.Roles[:0]
	for _, r := range rec.Roles {
		if r != role {
			kept = append(kept, r)
		}
	}
	rec.Roles = kept
	return s.put(rec)
}

// DeleteUser removes a user's record entirely.
func (s *Store) DeleteUser(username string) error {
	if err := s.db.Delete([]byte(username), pebble.Sync); err != nil {
		return errors.Wrap(errors.IOError, err, "deleting user record")
	}
	return nil
}

// ListUsers returns every user record, ordered by username (Pebble keys
// are already byte-sorted).
func (s *Store) ListUsers() ([]UserRecord, error) {
	iter, err := s.db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return nil, errors.Wrap(errors.IOError, err, "opening system database iterator")
	}
	defer iter.Close()

	var out []UserRecord
	for iter.First(); iter.Valid(); iter.Next() {
		rec, err := decodeUser(iter.Value())
		if err != nil {
			return nil, &errors.CorruptionError{Location: string(iter.Key()), Detail: "malformed user record"}
		}
		out = append(out, rec)
	}
	if err := iter.Error(); err != nil {
		return nil, errors.Wrap(errors.IOError, err, "iterating system database")
	}
	return out, nil
}

// EnsureRoot idempotently provisions the configured root account: if it
// already exists its credentials are left untouched (an operator
// changing root_password in the config file re-provisions by deleting
// the record first), otherwise it is created with RoleRoot.
func (s *Store) EnsureRoot(username, password string) error {
	_, ok, err := s.GetUser(username)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}
	return s.CreateUser(username, password, []Role{RoleRoot})
}
