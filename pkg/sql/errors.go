package sql

import (
	"fmt"

	"github.com/francodb/francodb/pkg/errors"
)

// newParseError reports a syntax error at a token position; pos is a
// byte offset into the original statement text, surfaced so a client
// can point at the offending character.
func newParseError(pos int, format string, args ...interface{}) error {
	msg := fmt.Sprintf("sql: position %d: %s", pos, fmt.Sprintf(format, args...))
	return errors.New(errors.ParseError, msg)
}
