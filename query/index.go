package query

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// IndexDescriptor names an index over one or more canonical paths. The name
// is a pure function of the canonical path list and the unique flag: the
// same descriptor always yields the same name, and reordering paths yields a
// different index (multi-column order matters to the engine).
type IndexDescriptor struct {
	Paths  []Path
	Unique bool
	Name   string
}

// IndexFor builds the descriptor, including its deterministic name, for an
// index over the given paths.
func (c *Compiler) IndexFor(unique bool, paths ...Path) IndexDescriptor {
	return IndexDescriptor{
		Paths:  paths,
		Unique: unique,
		Name:   c.IndexName(unique, paths...),
	}
}

// IndexName derives the index identifier: ix_<table>_<hash8>, suffixed
// _UNIQUE for unique indexes. hash8 is the first 8 hex digits of the xxhash
// of the canonical paths joined with "=". Content-derived only: no clock,
// process or insertion state.
func (c *Compiler) IndexName(unique bool, paths ...Path) string {
	rendered := make([]string, 0, len(paths))
	for _, p := range paths {
		rendered = append(rendered, p.JSONPath())
	}
	sum := xxhash.Sum64String(strings.Join(rendered, "="))
	name := fmt.Sprintf("ix_%s_%s", c.table, fmt.Sprintf("%016x", sum)[:8])
	if unique {
		name += "_UNIQUE"
	}
	return name
}

// CreateIndexSQL renders the CREATE INDEX statement for the descriptor.
// SQLite prohibits parameters in index expressions, so paths are spliced as
// quoted literals; the exact literal text is what later queries must
// reproduce for the index to be used.
func (c *Compiler) CreateIndexSQL(d IndexDescriptor) string {
	cols := make([]string, 0, len(d.Paths))
	for _, p := range d.Paths {
		cols = append(cols, fmt.Sprintf("JSON_EXTRACT(data, %s)", QuoteLiteral(p.JSONPath())))
	}
	uniq := ""
	if d.Unique {
		uniq = "UNIQUE "
	}
	return fmt.Sprintf(
		"CREATE %sINDEX IF NOT EXISTS %s ON %s(%s)",
		uniq, d.Name, c.table, strings.Join(cols, ", "),
	)
}

// DropIndexSQL renders the DROP INDEX statement for a named index.
func (c *Compiler) DropIndexSQL(name string) string {
	return fmt.Sprintf("DROP INDEX IF EXISTS %s", QuoteLiteral(name))
}

var indexColumnRe = regexp.MustCompile(`JSON_EXTRACT\(data,\s?'(.*?)'\s?\)`)

// ParseIndexColumns recovers the canonical path list from a stored CREATE
// INDEX statement (sqlite_schema.sql). Returns nil for indexes that are not
// JSON path indexes.
func ParseIndexColumns(sql string) []string {
	matches := indexColumnRe.FindAllStringSubmatch(sql, -1)
	if len(matches) == 0 {
		return nil
	}
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, m[1])
	}
	return out
}
