// Package errors wraps github.com/cockroachdb/errors so every error that
// crosses a component boundary carries a Kind the caller can switch on,
// without losing the stack trace cockroachdb/errors attaches at the point
// of creation.
package errors

import (
	"fmt"

	cockroachdberrors "github.com/cockroachdb/errors"
)

// Kind tags an error with the category a client or log line cares about.
type Kind string

const (
	ParseError        Kind = "PARSE_ERROR"
	CatalogError      Kind = "CATALOG_ERROR"
	ExecutionError    Kind = "EXECUTION_ERROR"
	ConcurrencyAbort  Kind = "CONCURRENCY_ABORT"
	IOError           Kind = "IO_ERROR"
	Corruption        Kind = "CORRUPTION"
	AuthDenied        Kind = "AUTH_DENIED"
	OutOfRange        Kind = "OUT_OF_RANGE"
)

// kindError pairs a Kind with an underlying cause. Use Wrap/New to build
// one; use KindOf to recover the tag at a boundary (RPC handler, CLI exit
// code, HTTP status).
type kindError struct {
	kind  Kind
	cause error
}

func (e *kindError) Error() string { return e.cause.Error() }
func (e *kindError) Unwrap() error { return e.cause }
func (e *kindError) Cause() error  { return e.cause }

// New creates a Kind-tagged error with a stack trace attached.
func New(kind Kind, msg string) error {
	return &kindError{kind: kind, cause: cockroachdberrors.NewWithDepth(1, msg)}
}

// Newf is New with fmt.Sprintf-style formatting.
func Newf(kind Kind, format string, args ...interface{}) error {
	return &kindError{kind: kind, cause: cockroachdberrors.NewWithDepthf(1, format, args...)}
}

// Wrap tags err with kind, adding msg as context. Returns nil if err is nil.
func Wrap(kind Kind, err error, msg string) error {
	if err == nil {
		return nil
	}
	return &kindError{kind: kind, cause: cockroachdberrors.WrapWithDepth(1, err, msg)}
}

// Wrapf is Wrap with fmt.Sprintf-style formatting.
func Wrapf(kind Kind, err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return &kindError{kind: kind, cause: cockroachdberrors.WrapWithDepthf(1, err, format, args...)}
}

// KindOf walks the error chain looking for a Kind tag. Returns ("", false)
// if none of err's wrapped causes were produced through this package.
func KindOf(err error) (Kind, bool) {
	var ke *kindError
	if cockroachdberrors.As(err, &ke) {
		return ke.kind, true
	}
	return "", false
}

// Is, As and Unwrap delegate straight to cockroachdb/errors so callers can
// keep using the standard library error-matching idioms across Kind
// boundaries.
func Is(err, target error) bool { return cockroachdberrors.Is(err, target) }
func As(err error, target interface{}) bool { return cockroachdberrors.As(err, target) }

type TableAlreadyExistsError struct {
	Name string
}

func (e *TableAlreadyExistsError) Error() string {
	return fmt.Sprintf("table %q already exists", e.Name)
}

type TableNotFoundError struct {
	Name string
}

func (e *TableNotFoundError) Error() string {
	return fmt.Sprintf("table %q not found", e.Name)
}

type TwoPrimarykeysError struct {
	Total int
}

func (e *TwoPrimarykeysError) Error() string {
	return fmt.Sprintf("table defines %d primary keys, only one is allowed", e.Total)
}

type PrimarykeyNotDefinedError struct {
	TableName string
}

func (e *PrimarykeyNotDefinedError) Error() string {
	return fmt.Sprintf("primary key not defined for table %q", e.TableName)
}

type DuplicateKeyError struct {
	Key string
}

func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("duplicate key violation: key %q already exists in unique index", e.Key)
}

type IndexNotFoundError struct {
	Name string
}

func (e *IndexNotFoundError) Error() string {
	return fmt.Sprintf("index %q not found", e.Name)
}

type InvalidKeyTypeError struct {
	Name     string
	TypeName string
}

func (e *InvalidKeyTypeError) Error() string {
	return fmt.Sprintf("invalid key type for index %q: %s", e.Name, e.TypeName)
}

// ColumnNotFoundError reports a reference to a column absent from a table's
// schema.
type ColumnNotFoundError struct {
	Table, Column string
}

func (e *ColumnNotFoundError) Error() string {
	return fmt.Sprintf("column %q not found in table %q", e.Column, e.Table)
}

// ForeignKeyViolationError reports an insert/update/delete that would break
// referential integrity.
type ForeignKeyViolationError struct {
	Constraint string
	Detail     string
}

func (e *ForeignKeyViolationError) Error() string {
	return fmt.Sprintf("foreign key violation on constraint %q: %s", e.Constraint, e.Detail)
}

// DeadlockError reports that the lock manager's wait-for graph found a
// cycle and aborted the youngest participant.
type DeadlockError struct {
	VictimTxnID uint64
}

func (e *DeadlockError) Error() string {
	return fmt.Sprintf("transaction %d aborted: deadlock detected", e.VictimTxnID)
}

// AuthDeniedError reports a failed login or an authorization check against
// a role that lacks the required privilege.
type AuthDeniedError struct {
	User   string
	Reason string
}

func (e *AuthDeniedError) Error() string {
	return fmt.Sprintf("auth denied for user %q: %s", e.User, e.Reason)
}

// CorruptionError reports a checksum mismatch or a structurally invalid
// page/record encountered while reading persisted state.
type CorruptionError struct {
	Location string
	Detail   string
}

func (e *CorruptionError) Error() string {
	return fmt.Sprintf("corruption at %s: %s", e.Location, e.Detail)
}
