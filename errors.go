package litedoc

import (
	"errors"
	"strings"

	"modernc.org/sqlite"
)

var (
	// ErrMissingRowID is returned by Update when a row carries no rowid.
	ErrMissingRowID = errors.New("row has no rowid")

	// ErrTransactionState is returned when a transaction scope is ended
	// more times than it was begun, or reused after it finished.
	ErrTransactionState = errors.New("invalid transaction state")

	// ErrClosed is returned by operations on a closed database.
	ErrClosed = errors.New("database is closed")

	// ErrReadOnly is returned by write operations on a read-only database.
	ErrReadOnly = errors.New("database is read-only")
)

// IsUniqueViolation reports whether err is a UNIQUE constraint failure from
// the engine, as raised by inserts under ConflictError or by unique indexes.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var se *sqlite.Error
	if errors.As(err, &se) {
		// SQLITE_CONSTRAINT is the low byte; extended codes carry the
		// specific constraint kind above it.
		return se.Code()&0xff == 19
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
