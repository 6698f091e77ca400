// Package litedoc is a schemaless JSON document store on top of SQLite.
// Documents live as JSON text in a single two-column table; queries compile
// to JSON_EXTRACT predicates through the query package, so any expression
// index built over the same canonical path text is usable by the engine.
package litedoc

import (
	"database/sql"
	"database/sql/driver"
	"fmt"
	"io"
	"regexp"
	"sort"
	"sync"
	"time"

	"github.com/karlseguin/ccache/v2"
	"github.com/ohler55/ojg/oj"
	"modernc.org/sqlite"

	"github.com/kartikbazzad/litedoc/internal/logger"
	"github.com/kartikbazzad/litedoc/query"
)

// Version is stored in the metadata table when a database is created.
const Version = "0.3.0"

// sqlConn is the slice of database/sql the store uses. *sql.DB satisfies it.
type sqlConn interface {
	Exec(query string, args ...any) (sql.Result, error)
	Query(query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
	Prepare(query string) (*sql.Stmt, error)
	Close() error
}

// DB is a handle on one document table inside one SQLite database.
type DB struct {
	conn     sqlConn
	comp     *query.Compiler
	log      *logger.Logger
	stmts    *ccache.Cache
	readOnly bool

	txMu      sync.Mutex
	txDepth   int
	txAborted bool
	closed    bool
}

var regexpOnce sync.Once

// registerRegexp installs REGEXP as a deterministic two-argument scalar so
// the dialect's "value REGEXP pattern" predicates work. SQLite rewrites
// X REGEXP Y to regexp(Y, X), so the pattern arrives first.
func registerRegexp() {
	regexpOnce.Do(func() {
		var cache sync.Map
		sqlite.MustRegisterDeterministicScalarFunction("regexp", 2,
			func(ctx *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
				pattern, ok := asString(args[0])
				if !ok {
					return nil, fmt.Errorf("regexp: pattern is not text")
				}
				s, ok := asString(args[1])
				if !ok {
					// Matching a non-text value is false, not an error.
					return int64(0), nil
				}
				var re *regexp.Regexp
				if cached, hit := cache.Load(pattern); hit {
					re = cached.(*regexp.Regexp)
				} else {
					compiled, err := regexp.Compile(pattern)
					if err != nil {
						return nil, fmt.Errorf("regexp: %w", err)
					}
					cache.Store(pattern, compiled)
					re = compiled
				}
				if re.MatchString(s) {
					return int64(1), nil
				}
				return int64(0), nil
			})
	})
}

func asString(v driver.Value) (string, bool) {
	switch s := v.(type) {
	case string:
		return s, true
	case []byte:
		return string(s), true
	default:
		return "", false
	}
}

// Open opens (creating if needed) the database file and ensures the document
// and metadata tables exist.
func Open(path string, opts *Options) (*DB, error) {
	return open(path, opts, false)
}

// Memory opens a throwaway in-memory database.
func Memory(opts *Options) (*DB, error) {
	return open(":memory:", opts, false)
}

// ReadOnly opens an existing database file without write access. Schema
// setup is skipped; write operations return ErrReadOnly.
func ReadOnly(path string, opts *Options) (*DB, error) {
	return open("file:"+path+"?mode=ro", opts, true)
}

func open(dsn string, opts *Options, readOnly bool) (*DB, error) {
	registerRegexp()
	o := opts.withDefaults()

	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dsn, err)
	}
	// All statements, including the explicit BEGIN/COMMIT pair of the
	// transaction scope, must land on one connection.
	conn.SetMaxOpenConns(1)

	d := newDB(conn, o)
	d.readOnly = readOnly
	if !readOnly {
		if err := d.initSchema(o.DisableWAL); err != nil {
			conn.Close()
			return nil, err
		}
	}
	d.log.Info("opened %s (table %s)", dsn, d.comp.Table())
	return d, nil
}

func newDB(conn sqlConn, o Options) *DB {
	d := &DB{
		conn: conn,
		comp: query.NewCompiler(o.Table),
		log:  o.Logger,
	}
	d.stmts = ccache.New(ccache.Configure().
		MaxSize(o.StmtCacheSize).
		OnDelete(func(item *ccache.Item) {
			item.Value().(*sql.Stmt).Close()
		}))
	return d
}

func (d *DB) initSchema(disableWAL bool) error {
	t := d.comp.Table()
	stmts := []string{
		fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s(rowid INTEGER PRIMARY KEY AUTOINCREMENT, data TEXT)", t),
		fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s_kv(key TEXT PRIMARY KEY, val TEXT)", t),
	}
	for _, s := range stmts {
		if _, err := d.exec(s); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	seed := fmt.Sprintf("INSERT OR IGNORE INTO %s_kv (key, val) VALUES (?, ?)", t)
	if _, err := d.exec(seed, "created", time.Now().UTC().Format(time.RFC3339)); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	if _, err := d.exec(seed, "version", Version); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	if !disableWAL {
		if _, err := d.exec("PRAGMA journal_mode = wal"); err != nil {
			return fmt.Errorf("enable wal: %w", err)
		}
	}
	return nil
}

// Close releases the prepared statement cache and the connection.
func (d *DB) Close() error {
	d.txMu.Lock()
	if d.closed {
		d.txMu.Unlock()
		return nil
	}
	d.closed = true
	d.txMu.Unlock()

	d.stmts.Clear()
	d.stmts.Stop()
	d.log.Info("closed (table %s)", d.comp.Table())
	return d.conn.Close()
}

// Table returns the sanitized document table name.
func (d *DB) Table() string { return d.comp.Table() }

// Compiler returns the SQL compiler bound to this table, for callers that
// want the generated text without executing it.
func (d *DB) Compiler() *query.Compiler { return d.comp }

func (d *DB) exec(stmt string, args ...any) (sql.Result, error) {
	d.log.SQL(stmt)
	return d.conn.Exec(stmt, args...)
}

func (d *DB) queryRows(stmt string, args ...any) (*sql.Rows, error) {
	d.log.SQL(stmt)
	return d.conn.Query(stmt, args...)
}

// prepare returns a cached prepared statement for stmt, preparing and
// caching it on miss. Eviction closes the statement.
func (d *DB) prepare(stmt string) (*sql.Stmt, error) {
	if item := d.stmts.Get(stmt); item != nil && !item.Expired() {
		return item.Value().(*sql.Stmt), nil
	}
	prepared, err := d.conn.Prepare(stmt)
	if err != nil {
		return nil, fmt.Errorf("prepare: %w", err)
	}
	d.stmts.Set(stmt, prepared, 12*time.Hour)
	return prepared, nil
}

func (d *DB) checkWritable() error {
	if d.readOnly {
		return ErrReadOnly
	}
	return nil
}

// Insert stores one document and returns its rowid. Unique index collisions
// surface as errors; test with IsUniqueViolation.
func (d *DB) Insert(doc any) (int64, error) {
	if err := d.checkWritable(); err != nil {
		return 0, err
	}
	encoded, err := oj.Marshal(doc)
	if err != nil {
		return 0, fmt.Errorf("encode document: %w", err)
	}
	stmt := fmt.Sprintf("INSERT INTO %s (data) VALUES (JSON(?))", d.comp.Table())
	d.log.SQL(stmt)
	prepared, err := d.prepare(stmt)
	if err != nil {
		return 0, err
	}
	res, err := prepared.Exec(string(encoded))
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// InsertMany stores documents in one transaction under the given conflict
// policy. Nothing is kept if any document fails.
func (d *DB) InsertMany(policy ConflictPolicy, docs ...any) error {
	if err := d.checkWritable(); err != nil {
		return err
	}
	lines := make([]string, 0, len(docs))
	for _, doc := range docs {
		encoded, err := oj.Marshal(doc)
		if err != nil {
			return fmt.Errorf("encode document: %w", err)
		}
		lines = append(lines, string(encoded))
	}
	return d.InsertManyRaw(policy, lines...)
}

// InsertManyRaw stores pre-encoded JSON documents in one transaction. The
// engine's JSON() conversion rejects lines that are not valid JSON.
func (d *DB) InsertManyRaw(policy ConflictPolicy, lines ...string) error {
	if err := d.checkWritable(); err != nil {
		return err
	}
	stmt := fmt.Sprintf("INSERT%s INTO %s (data) VALUES (JSON(?))", policy.clause(), d.comp.Table())
	return d.Batch(func() error {
		d.log.SQL(stmt)
		prepared, err := d.prepare(stmt)
		if err != nil {
			return err
		}
		for _, line := range lines {
			if _, err := prepared.Exec(line); err != nil {
				return err
			}
		}
		return nil
	})
}

// Query returns the documents matching all expressions, in rowid order.
func (d *DB) Query(exprs ...query.Expr) (*Rows, error) {
	return d.QueryWith(QueryOptions{}, exprs...)
}

// QueryWith is Query with ordering and limits applied.
func (d *DB) QueryWith(opts QueryOptions, exprs ...query.Expr) (*Rows, error) {
	t := d.comp.Table()
	where, args := d.comp.Where(exprs...)
	stmt := fmt.Sprintf("SELECT %s.rowid, %s.data FROM %s WHERE %s", t, t, t, where)
	if order := d.comp.OrderBy(opts.Order...); order != "" {
		stmt += " " + order
	}
	if opts.Limit > 0 {
		stmt += fmt.Sprintf(" LIMIT %d", opts.Limit)
		if opts.Offset > 0 {
			stmt += fmt.Sprintf(" OFFSET %d", opts.Offset)
		}
	}
	rows, err := d.queryRows(stmt, args...)
	if err != nil {
		return nil, err
	}
	return &Rows{rows: rows}, nil
}

// QueryOne returns the first matching document, or nil when none match.
func (d *DB) QueryOne(exprs ...query.Expr) (*Row, error) {
	rows, err := d.QueryWith(QueryOptions{Limit: 1}, exprs...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	if !rows.Next() {
		return nil, rows.Err()
	}
	row := rows.Row()
	return &row, nil
}

// Count returns the number of documents matching all expressions.
func (d *DB) Count(exprs ...query.Expr) (int64, error) {
	where, args := d.comp.Where(exprs...)
	stmt := fmt.Sprintf("SELECT COUNT(rowid) FROM %s WHERE %s", d.comp.Table(), where)
	d.log.SQL(stmt)
	var n int64
	if err := d.conn.QueryRow(stmt, args...).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// QueryByPathExists returns documents where the path's parent contains the
// leaf key, via a JSON_EACH scan. Unlike the Exists expression this does not
// use JSON_TYPE, so it cannot be served by an expression index, but it works
// for keys under paths that may themselves be absent.
func (d *DB) QueryByPathExists(p query.Path) (*Rows, error) {
	parent, leaf, err := p.Split()
	if err != nil {
		return nil, err
	}
	t := d.comp.Table()
	stmt := fmt.Sprintf(
		"SELECT DISTINCT %s.rowid, %s.data FROM %s, JSON_EACH(%s.data, ?) AS each WHERE each.key = ?",
		t, t, t, t,
	)
	rows, err := d.queryRows(stmt, parent.JSONPath(), leaf)
	if err != nil {
		return nil, err
	}
	return &Rows{rows: rows}, nil
}

// GetByRowID returns the document stored under the rowid, or nil when the
// rowid is vacant.
func (d *DB) GetByRowID(id int64) (*Row, error) {
	t := d.comp.Table()
	stmt := fmt.Sprintf("SELECT %s.rowid, %s.data FROM %s WHERE %s.rowid = ?", t, t, t, t)
	rows, err := d.queryRows(stmt, id)
	if err != nil {
		return nil, err
	}
	it := &Rows{rows: rows}
	defer it.Close()
	if !it.Next() {
		return nil, it.Err()
	}
	row := it.Row()
	return &row, nil
}

// Items iterates every document in rowid order.
func (d *DB) Items() (*Rows, error) {
	return d.Query()
}

// Aggregate applies an allow-listed aggregate (AVG, COUNT, MAX, MIN, SUM,
// TOTAL) over the path's value across the whole table. The result is
// whatever the engine computes, including nil over an empty table.
func (d *DB) Aggregate(fn string, p query.Path) (any, error) {
	stmt, err := d.comp.Aggregate(fn, p)
	if err != nil {
		return nil, err
	}
	d.log.SQL(stmt)
	var val any
	if err := d.conn.QueryRow(stmt).Scan(&val); err != nil {
		return nil, err
	}
	if b, ok := val.([]byte); ok {
		return string(b), nil
	}
	return val, nil
}

func (d *DB) Avg(p query.Path) (any, error)      { return d.Aggregate("AVG", p) }
func (d *DB) Max(p query.Path) (any, error)      { return d.Aggregate("MAX", p) }
func (d *DB) Min(p query.Path) (any, error)      { return d.Aggregate("MIN", p) }
func (d *DB) Sum(p query.Path) (any, error)      { return d.Aggregate("SUM", p) }
func (d *DB) Total(p query.Path) (any, error)    { return d.Aggregate("TOTAL", p) }
func (d *DB) CountAll(p query.Path) (any, error) { return d.Aggregate("COUNT", p) }

// Update rewrites whole documents by their rowid, all in one transaction.
// Rows with a zero ID fail with ErrMissingRowID before anything is written.
func (d *DB) Update(policy ConflictPolicy, rows ...Row) error {
	if err := d.checkWritable(); err != nil {
		return err
	}
	for _, r := range rows {
		if r.ID == 0 {
			return ErrMissingRowID
		}
	}
	stmt := fmt.Sprintf("UPDATE%s %s SET data = JSON(?) WHERE rowid = ?", policy.clause(), d.comp.Table())
	return d.Batch(func() error {
		d.log.SQL(stmt)
		prepared, err := d.prepare(stmt)
		if err != nil {
			return err
		}
		for _, r := range rows {
			encoded, err := oj.Marshal(r.Value)
			if err != nil {
				return fmt.Errorf("encode document %d: %w", r.ID, err)
			}
			if _, err := prepared.Exec(string(encoded), r.ID); err != nil {
				return err
			}
		}
		return nil
	})
}

// Patch merge-patches every matching document (RFC 7396 semantics via
// JSON_PATCH: null values delete keys, objects merge recursively). With no
// expressions every document is patched. Returns the number of rows touched.
func (d *DB) Patch(patch any, exprs ...query.Expr) (int64, error) {
	if err := d.checkWritable(); err != nil {
		return 0, err
	}
	encoded, err := oj.Marshal(patch)
	if err != nil {
		return 0, fmt.Errorf("encode patch: %w", err)
	}
	where, args := d.comp.Where(exprs...)
	stmt := fmt.Sprintf("UPDATE %s SET data = JSON_PATCH(data, JSON(?)) WHERE %s", d.comp.Table(), where)
	res, err := d.exec(stmt, append([]any{string(encoded)}, args...)...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Remove deletes matching documents and returns how many were deleted. At
// least one non-empty expression is required; deleting everything is spelled
// Purge.
func (d *DB) Remove(exprs ...query.Expr) (int64, error) {
	if err := d.checkWritable(); err != nil {
		return 0, err
	}
	if query.All(exprs...).IsEmpty() {
		return 0, query.ErrMissingComparison
	}
	where, args := d.comp.Where(exprs...)
	stmt := fmt.Sprintf("DELETE FROM %s WHERE %s", d.comp.Table(), where)
	res, err := d.exec(stmt, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// RemoveByRowID deletes documents by rowid in one transaction. Vacant rowids
// are not an error.
func (d *DB) RemoveByRowID(ids ...int64) error {
	if err := d.checkWritable(); err != nil {
		return err
	}
	stmt := fmt.Sprintf("DELETE FROM %s WHERE rowid = ?", d.comp.Table())
	return d.Batch(func() error {
		d.log.SQL(stmt)
		prepared, err := d.prepare(stmt)
		if err != nil {
			return err
		}
		for _, id := range ids {
			if _, err := prepared.Exec(id); err != nil {
				return err
			}
		}
		return nil
	})
}

// Purge deletes every document. The metadata table and indexes survive.
func (d *DB) Purge() error {
	if err := d.checkWritable(); err != nil {
		return err
	}
	_, err := d.exec(fmt.Sprintf("DELETE FROM %s", d.comp.Table()))
	return err
}

// PathCounts returns how many documents contain each top-level key, most
// common first by count. An optional start path counts keys under that path
// instead of the root.
func (d *DB) PathCounts(start ...query.Path) (map[string]int64, error) {
	t := d.comp.Table()
	from := fmt.Sprintf("JSON_EACH(%s.data)", t)
	var args []any
	if len(start) > 0 {
		from = fmt.Sprintf("JSON_EACH(%s.data, ?)", t)
		args = append(args, start[0].JSONPath())
	}
	stmt := fmt.Sprintf(
		"SELECT each.key, COUNT(each.key) AS n FROM %s, %s AS each GROUP BY each.key",
		t, from,
	)
	rows, err := d.queryRows(stmt, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[string]int64)
	for rows.Next() {
		var (
			key string
			n   int64
		)
		if err := rows.Scan(&key, &n); err != nil {
			return nil, err
		}
		out[key] = n
	}
	return out, rows.Err()
}

// Keys returns the sorted set of keys seen across all documents.
func (d *DB) Keys(start ...query.Path) ([]string, error) {
	counts, err := d.PathCounts(start...)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

// CreateIndex builds an expression index over the canonical paths and
// returns its content-derived name. Queries use the index only when their
// compiled path text matches the indexed text exactly.
func (d *DB) CreateIndex(unique bool, paths ...query.Path) (string, error) {
	if err := d.checkWritable(); err != nil {
		return "", err
	}
	desc := d.comp.IndexFor(unique, paths...)
	if _, err := d.exec(d.comp.CreateIndexSQL(desc)); err != nil {
		return "", err
	}
	return desc.Name, nil
}

// DropIndex removes the index previously created over the same paths with
// the same uniqueness. Dropping a missing index is not an error.
func (d *DB) DropIndex(unique bool, paths ...query.Path) error {
	return d.DropIndexByName(d.comp.IndexName(unique, paths...))
}

// DropIndexByName removes an index by its exact name.
func (d *DB) DropIndexByName(name string) error {
	if err := d.checkWritable(); err != nil {
		return err
	}
	_, err := d.exec(d.comp.DropIndexSQL(name))
	return err
}

// Indexes lists the JSON path indexes on the document table: index name to
// the canonical path text of its columns, recovered from the stored schema.
func (d *DB) Indexes() (map[string][]string, error) {
	stmt := "SELECT name, sql FROM sqlite_schema WHERE type = 'index' AND tbl_name = ? AND sql IS NOT NULL"
	rows, err := d.queryRows(stmt, d.comp.Table())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[string][]string)
	for rows.Next() {
		var name, createSQL string
		if err := rows.Scan(&name, &createSQL); err != nil {
			return nil, err
		}
		if cols := query.ParseIndexColumns(createSQL); cols != nil {
			out[name] = cols
		}
	}
	return out, rows.Err()
}

// About returns the metadata kv table: at least "created" and "version" as
// seeded when the database was first built.
func (d *DB) About() (map[string]string, error) {
	stmt := fmt.Sprintf("SELECT key, val FROM %s_kv", d.comp.Table())
	rows, err := d.queryRows(stmt)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, rows.Err()
}

// WALCheckpoint asks the engine to checkpoint the write-ahead log.
func (d *DB) WALCheckpoint() error {
	_, err := d.exec("PRAGMA wal_checkpoint")
	return err
}

// Execute runs a raw statement against the underlying connection. The
// escape hatch for anything the surface above does not cover.
func (d *DB) Execute(stmt string, args ...any) (sql.Result, error) {
	return d.exec(stmt, args...)
}

// ExecuteMany runs a raw statement once per argument set, inside one
// transaction.
func (d *DB) ExecuteMany(stmt string, argSets ...[]any) error {
	return d.Batch(func() error {
		d.log.SQL(stmt)
		prepared, err := d.prepare(stmt)
		if err != nil {
			return err
		}
		for _, args := range argSets {
			if _, err := prepared.Exec(args...); err != nil {
				return err
			}
		}
		return nil
	})
}

// DumpJSONL writes every document as one line of JSON, in rowid order. The
// stored text is written verbatim.
func (d *DB) DumpJSONL(w io.Writer) error {
	t := d.comp.Table()
	stmt := fmt.Sprintf("SELECT %s.data FROM %s", t, t)
	rows, err := d.queryRows(stmt)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return err
		}
		if _, err := io.WriteString(w, data+"\n"); err != nil {
			return err
		}
	}
	return rows.Err()
}
