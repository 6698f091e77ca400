package litedoc

import (
	"database/sql"
	"fmt"

	"github.com/ohler55/ojg/oj"
)

// Row is one stored document: the decoded JSON value plus the engine rowid it
// lives under. The rowid is a side channel, never part of the document.
type Row struct {
	ID    int64
	Value any
}

// Map returns the document as an object, or false when the stored value is
// not a JSON object.
func (r Row) Map() (map[string]any, bool) {
	m, ok := r.Value.(map[string]any)
	return m, ok
}

// Rows iterates a result set of documents. Close must be called unless the
// iterator is drained.
type Rows struct {
	rows *sql.Rows
	cur  Row
	err  error
}

// Next advances to the next document, decoding it. It returns false at the
// end of the set or on the first error; check Err afterwards.
func (r *Rows) Next() bool {
	if r.err != nil || r.rows == nil {
		return false
	}
	if !r.rows.Next() {
		r.err = r.rows.Err()
		return false
	}
	var (
		id   int64
		data string
	)
	if err := r.rows.Scan(&id, &data); err != nil {
		r.err = err
		return false
	}
	value, err := oj.ParseString(data)
	if err != nil {
		r.err = fmt.Errorf("decode document %d: %w", id, err)
		return false
	}
	r.cur = Row{ID: id, Value: value}
	return true
}

// Row returns the current document. Only valid after Next returned true.
func (r *Rows) Row() Row { return r.cur }

// Err returns the first error hit during iteration.
func (r *Rows) Err() error { return r.err }

// Close releases the underlying cursor.
func (r *Rows) Close() error {
	if r.rows == nil {
		return nil
	}
	return r.rows.Close()
}

// All drains the iterator and closes it.
func (r *Rows) All() ([]Row, error) {
	defer r.Close()
	var out []Row
	for r.Next() {
		out = append(out, r.Row())
	}
	return out, r.Err()
}
