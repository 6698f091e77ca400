package litedoc

import "fmt"

// Scope is one level of a reference-counted transaction. Scopes nest freely:
// only the outermost Begin issues BEGIN and only the outermost End issues
// COMMIT, so batch helpers can call the single-document APIs without paying
// for a transaction per document. Any scope ending with an error aborts the
// whole stack; the outermost End then rolls back.
type Scope struct {
	db   *DB
	done bool
}

// Begin opens a transaction scope. Every Begin must be paired with exactly
// one End.
func (d *DB) Begin() (*Scope, error) {
	d.txMu.Lock()
	defer d.txMu.Unlock()
	if d.closed {
		return nil, ErrClosed
	}
	if d.txDepth == 0 {
		d.log.SQL("BEGIN")
		if _, err := d.conn.Exec("BEGIN"); err != nil {
			return nil, fmt.Errorf("begin transaction: %w", err)
		}
		d.txAborted = false
	}
	d.txDepth++
	return &Scope{db: d}, nil
}

// End closes the scope, passing through the operation's error. At the
// outermost level it commits, or rolls back when this or any nested scope
// ended with an error.
func (s *Scope) End(err error) error {
	if s.done {
		return ErrTransactionState
	}
	s.done = true

	d := s.db
	d.txMu.Lock()
	defer d.txMu.Unlock()
	if d.txDepth == 0 {
		return ErrTransactionState
	}
	if err != nil {
		d.txAborted = true
	}
	d.txDepth--
	if d.txDepth > 0 {
		return err
	}

	if d.txAborted {
		d.log.SQL("ROLLBACK")
		if _, rbErr := d.conn.Exec("ROLLBACK"); rbErr != nil && err == nil {
			return fmt.Errorf("rollback: %w", rbErr)
		}
		return err
	}
	d.log.SQL("COMMIT")
	if _, cErr := d.conn.Exec("COMMIT"); cErr != nil {
		d.conn.Exec("ROLLBACK")
		return fmt.Errorf("commit: %w", cErr)
	}
	return nil
}

// Batch runs fn inside a transaction scope. A panic inside fn rolls back and
// re-panics.
func (d *DB) Batch(fn func() error) error {
	s, err := d.Begin()
	if err != nil {
		return err
	}
	defer func() {
		if p := recover(); p != nil {
			s.End(fmt.Errorf("panic: %v", p))
			panic(p)
		}
	}()
	return s.End(fn())
}
