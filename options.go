package litedoc

import (
	"github.com/kartikbazzad/litedoc/internal/logger"
	"github.com/kartikbazzad/litedoc/query"
)

// ConflictPolicy selects what happens when an insert or update collides with
// a unique index.
type ConflictPolicy int

const (
	// ConflictError surfaces the constraint failure to the caller.
	ConflictError ConflictPolicy = iota

	// ConflictReplace replaces the conflicting row.
	ConflictReplace

	// ConflictIgnore drops the conflicting document silently.
	ConflictIgnore
)

// clause returns the conflict resolution fragment spliced after the verb,
// including its leading space.
func (p ConflictPolicy) clause() string {
	switch p {
	case ConflictReplace:
		return " OR REPLACE"
	case ConflictIgnore:
		return " OR IGNORE"
	default:
		return ""
	}
}

// ParseConflictPolicy maps the CLI spelling of a policy. Unknown values fall
// back to ConflictError.
func ParseConflictPolicy(s string) ConflictPolicy {
	switch s {
	case "replace":
		return ConflictReplace
	case "ignore":
		return ConflictIgnore
	default:
		return ConflictError
	}
}

// Options configures an opened database. The zero value is usable: default
// table, WAL on, discarded logs.
type Options struct {
	// Table is the document table name, sanitized before use.
	Table string

	// DisableWAL skips the journal_mode=wal pragma.
	DisableWAL bool

	// Logger receives lifecycle and statement trace output. Nil discards.
	Logger *logger.Logger

	// StmtCacheSize bounds the prepared statement cache.
	StmtCacheSize int64
}

func (o *Options) withDefaults() Options {
	out := Options{}
	if o != nil {
		out = *o
	}
	out.Table = query.SanitizeTable(out.Table)
	if out.Logger == nil {
		out.Logger = logger.Nop()
	}
	if out.StmtCacheSize <= 0 {
		out.StmtCacheSize = 64
	}
	return out
}

// QueryOptions tunes result shaping for QueryWith.
type QueryOptions struct {
	// Limit caps the number of rows returned; zero means no limit.
	Limit int

	// Offset skips rows before the first returned one. Only applied when
	// Limit is set, per SQLite's LIMIT/OFFSET grammar.
	Offset int

	// Order lists sort terms applied in order.
	Order []query.Order
}
