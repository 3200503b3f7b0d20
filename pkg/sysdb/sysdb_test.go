package sysdb

import (
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "system"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestCreateUser_AuthenticateRoundTrip(t *testing.T) {
	s := newTestStore(t)

	if err := s.CreateUser("alice", "hunter2", []Role{RoleReadWrite}); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	ok, err := s.Authenticate("alice", "hunter2")
	if err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}
	if !ok {
		t.Fatal("expected correct password to authenticate")
	}

	ok, err = s.Authenticate("alice", "wrong")
	if err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}
	if ok {
		t.Fatal("expected wrong password to be rejected")
	}
}

func TestAuthenticate_UnknownUser(t *testing.T) {
	s := newTestStore(t)
	ok, err := s.Authenticate("nobody", "anything")
	if err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}
	if ok {
		t.Fatal("expected an unknown user to fail authentication")
	}
}

func TestGrantRevoke_UpdatesRoles(t *testing.T) {
	s := newTestStore(t)
	if err := s.CreateUser("bob", "pw", []Role{RoleReadOnly}); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	if err := s.Grant("bob", RoleReadWrite); err != nil {
		t.Fatalf("Grant failed: %v", err)
	}
	rec, ok, err := s.GetUser("bob")
	if err != nil || !ok {
		t.Fatalf("GetUser failed: ok=%v err=%v", ok, err)
	}
	if !rec.HasRole(RoleReadOnly) || !rec.HasRole(RoleReadWrite) {
		t.Fatalf("expected both roles held, got %v", rec.Roles)
	}

	if err := s.Revoke("bob", RoleReadOnly); err != nil {
		t.Fatalf("Revoke failed: %v", err)
	}
	rec, _, _ = s.GetUser("bob")
	if rec.HasRole(RoleReadOnly) {
		t.Fatal("expected RoleReadOnly to be revoked")
	}
	if !rec.HasRole(RoleReadWrite) {
		t.Fatal("expected RoleReadWrite to survive the revoke")
	}
}

func TestGrant_UnknownUserIsAuthDenied(t *testing.T) {
	s := newTestStore(t)
	err := s.Grant("ghost", RoleRoot)
	if err == nil {
		t.Fatal("expected an error granting a role to a nonexistent user")
	}
}

func TestEnsureRoot_IsIdempotent(t *testing.T) {
	s := newTestStore(t)
	if err := s.EnsureRoot("root", "initial"); err != nil {
		t.Fatalf("EnsureRoot failed: %v", err)
	}
	if err := s.EnsureRoot("root", "ignored"); err != nil {
		t.Fatalf("second EnsureRoot failed: %v", err)
	}

	ok, err := s.Authenticate("root", "initial")
	if err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}
	if !ok {
		t.Fatal("expected the first EnsureRoot's password to stick")
	}
}

func TestListUsers_ReturnsEveryRecord(t *testing.T) {
	s := newTestStore(t)
	s.CreateUser("alice", "pw1", []Role{RoleReadOnly})
	s.CreateUser("bob", "pw2", []Role{RoleReadWrite})

	users, err := s.ListUsers()
	if err != nil {
		t.Fatalf("ListUsers failed: %v", err)
	}
	if len(users) != 2 {
		t.Fatalf("expected 2 users, got %d", len(users))
	}
}

func TestDeleteUser_RemovesRecord(t *testing.T) {
	s := newTestStore(t)
	s.CreateUser("alice", "pw", nil)
	if err := s.DeleteUser("alice"); err != nil {
		t.Fatalf("DeleteUser failed: %v", err)
	}
	_, ok, err := s.GetUser("alice")
	if err != nil {
		t.Fatalf("GetUser failed: %v", err)
	}
	if ok {
		t.Fatal("expected deleted user to be absent")
	}
}
