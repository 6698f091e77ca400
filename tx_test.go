package litedoc

import (
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	stmts []string
}

func (f *fakeConn) Exec(query string, args ...any) (sql.Result, error) {
	f.stmts = append(f.stmts, query)
	return nil, nil
}

func (f *fakeConn) Query(query string, args ...any) (*sql.Rows, error) {
	return nil, errors.New("not supported")
}

func (f *fakeConn) QueryRow(query string, args ...any) *sql.Row { return nil }

func (f *fakeConn) Prepare(query string) (*sql.Stmt, error) {
	return nil, errors.New("not supported")
}

func (f *fakeConn) Close() error { return nil }

func newFakeDB() (*DB, *fakeConn) {
	conn := &fakeConn{}
	return newDB(conn, (&Options{}).withDefaults()), conn
}

func TestNestedScopesShareOneTransaction(t *testing.T) {
	d, conn := newFakeDB()

	outer, err := d.Begin()
	require.NoError(t, err)
	inner, err := d.Begin()
	require.NoError(t, err)

	require.NoError(t, inner.End(nil))
	require.NoError(t, outer.End(nil))

	require.Equal(t, []string{"BEGIN", "COMMIT"}, conn.stmts)
}

func TestInnerErrorRollsBackOuterScope(t *testing.T) {
	d, conn := newFakeDB()
	boom := errors.New("boom")

	outer, err := d.Begin()
	require.NoError(t, err)
	inner, err := d.Begin()
	require.NoError(t, err)

	require.ErrorIs(t, inner.End(boom), boom)
	// The outer scope itself succeeded, but the stack is aborted.
	require.NoError(t, outer.End(nil))

	require.Equal(t, []string{"BEGIN", "ROLLBACK"}, conn.stmts)
}

func TestScopeEndTwice(t *testing.T) {
	d, _ := newFakeDB()

	s, err := d.Begin()
	require.NoError(t, err)
	require.NoError(t, s.End(nil))
	require.ErrorIs(t, s.End(nil), ErrTransactionState)
}

func TestBatchCommitsOnce(t *testing.T) {
	d, conn := newFakeDB()

	err := d.Batch(func() error {
		return d.Batch(func() error { return nil })
	})
	require.NoError(t, err)
	require.Equal(t, []string{"BEGIN", "COMMIT"}, conn.stmts)
}

func TestBatchRollsBackOnError(t *testing.T) {
	d, conn := newFakeDB()
	boom := errors.New("boom")

	err := d.Batch(func() error { return boom })
	require.ErrorIs(t, err, boom)
	require.Equal(t, []string{"BEGIN", "ROLLBACK"}, conn.stmts)
}

func TestBeginAfterClose(t *testing.T) {
	d, _ := newFakeDB()
	require.NoError(t, d.Close())

	_, err := d.Begin()
	require.ErrorIs(t, err, ErrClosed)
}
