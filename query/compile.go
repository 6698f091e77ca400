package query

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnsupportedFunction is returned for aggregate names outside the
	// allow-list. Function names cannot be parameterized in SQL, so this is
	// a hard boundary, never a retry.
	ErrUnsupportedFunction = errors.New("unsupported aggregate function")
)

// DefaultTable is the document table used when none is configured.
const DefaultTable = "items"

// aggregates is the fixed allow-list of function names the compiler will
// ever splice into SQL text.
var aggregates = map[string]struct{}{
	"AVG":   {},
	"COUNT": {},
	"MAX":   {},
	"MIN":   {},
	"SUM":   {},
	"TOTAL": {},
}

// Compiler renders paths, predicates and index definitions into SQLite text.
// Values are always bound as parameters; the only strings ever spliced into
// text are the sanitized table name, allow-listed function names, and
// literal-quoted canonical paths.
type Compiler struct {
	table string
}

// NewCompiler returns a compiler for the given document table. The name is
// reduced to letters, digits and underscores; an empty result falls back to
// DefaultTable.
func NewCompiler(table string) *Compiler {
	return &Compiler{table: SanitizeTable(table)}
}

// SanitizeTable strips everything but letters, digits and underscores from a
// table name.
func SanitizeTable(table string) string {
	var sb strings.Builder
	for _, r := range table {
		if r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			sb.WriteRune(r)
		}
	}
	if sb.Len() == 0 {
		return DefaultTable
	}
	return sb.String()
}

// Table returns the sanitized table name.
func (c *Compiler) Table() string { return c.table }

// QuoteLiteral returns s as a single-quoted SQL string literal with embedded
// quotes doubled. Needed for JSON paths: SQLite refuses parameters inside
// index expressions, and a parameterized JSON_EXTRACT would not match an
// index built from the literal form.
func QuoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// Where renders the expressions into a WHERE body plus the bound parameter
// list in tree order. Multiple expressions are folded left to right with
// AND. No expressions, or only Empty ones, compile to the tautology "1 = 1".
func (c *Compiler) Where(exprs ...Expr) (string, []any) {
	e := All(exprs...)
	if e.node == nil {
		return "1 = 1", nil
	}
	var sb strings.Builder
	var args []any
	c.render(e.node, &sb, &args)
	return sb.String(), args
}

func (c *Compiler) render(n node, sb *strings.Builder, args *[]any) {
	switch v := n.(type) {
	case compareNode:
		path := QuoteLiteral(v.path.JSONPath())
		if v.value == nil && (v.op == OpEq || v.op == OpNe) {
			// SQLite: "= NULL" never matches; use IS [NOT] NULL instead.
			test := "IS NULL"
			if v.op == OpNe {
				test = "IS NOT NULL"
			}
			fmt.Fprintf(sb, "( JSON_EXTRACT(data, %s) %s )", path, test)
			return
		}
		fmt.Fprintf(sb, "( JSON_EXTRACT(data, %s) %s ? )", path, v.op)
		*args = append(*args, v.value)
	case existsNode:
		// JSON_TYPE is NULL only when the path is absent; a stored null
		// yields the text 'null'.
		fmt.Fprintf(sb, "( JSON_TYPE(data, %s) IS NOT NULL )", QuoteLiteral(v.path.JSONPath()))
	case andNode:
		sb.WriteString("( ")
		c.render(v.left, sb, args)
		sb.WriteString(" AND ")
		c.render(v.right, sb, args)
		sb.WriteString(" )")
	case orNode:
		sb.WriteString("( ")
		c.render(v.left, sb, args)
		sb.WriteString(" OR ")
		c.render(v.right, sb, args)
		sb.WriteString(" )")
	case notNode:
		sb.WriteString("( NOT ")
		if v.inner == nil {
			sb.WriteString("1 = 1")
		} else {
			c.render(v.inner, sb, args)
		}
		sb.WriteString(" )")
	}
}

// OrderBy renders sort terms into an ORDER BY clause, or "" for none.
func (c *Compiler) OrderBy(orders ...Order) string {
	if len(orders) == 0 {
		return ""
	}
	terms := make([]string, 0, len(orders))
	for _, o := range orders {
		dir := "ASC"
		if o.desc {
			dir = "DESC"
		}
		terms = append(terms, fmt.Sprintf(
			"JSON_EXTRACT(%s.data, %s) %s", c.table, QuoteLiteral(o.path.JSONPath()), dir,
		))
	}
	return "ORDER BY " + strings.Join(terms, ", ")
}

// Aggregate renders a whole-table aggregate over a path. The function name
// is case-folded and must be on the allow-list.
func (c *Compiler) Aggregate(fn string, p Path) (string, error) {
	fn = strings.ToUpper(fn)
	if _, ok := aggregates[fn]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFunction, fn)
	}
	return fmt.Sprintf(
		"SELECT %s(JSON_EXTRACT(%s.data, %s)) AS val FROM %s",
		fn, c.table, QuoteLiteral(p.JSONPath()), c.table,
	), nil
}
