package query

import (
	"errors"
	"sort"
)

var (
	// ErrMissingComparison is returned when an operation needs a predicate
	// but the expression never compared anything.
	ErrMissingComparison = errors.New("expression has no comparison")
)

// Op is a comparison operator token as rendered in SQL.
type Op string

const (
	OpEq     Op = "="
	OpNe     Op = "!="
	OpLt     Op = "<"
	OpLe     Op = "<="
	OpGt     Op = ">"
	OpGe     Op = ">="
	OpLike   Op = "LIKE"
	OpGlob   Op = "GLOB"
	OpRegexp Op = "REGEXP"
)

// node is the closed predicate sum. Only types in this package implement it.
type node interface {
	isNode()
}

type compareNode struct {
	path  Path
	op    Op
	value any
}

type existsNode struct {
	path Path
}

type andNode struct {
	left, right node
}

type orNode struct {
	left, right node
}

type notNode struct {
	inner node
}

func (compareNode) isNode() {}
func (existsNode) isNode()  {}
func (andNode) isNode()     {}
func (orNode) isNode()      {}
func (notNode) isNode()     {}

// Expr is an immutable predicate tree. The zero value is Empty: the identity
// predicate that matches everything and compiles to an always-true tautology.
//
// All combinators return a new Expr and never mutate an operand.
type Expr struct {
	node node
}

// Empty returns the identity predicate.
func Empty() Expr { return Expr{} }

// IsEmpty reports whether the expression is the identity predicate.
func (e Expr) IsEmpty() bool { return e.node == nil }

// Compare builds a single comparison predicate over a path.
func Compare(p Path, op Op, value any) Expr {
	return Expr{node: compareNode{path: p, op: op, value: value}}
}

func (p Path) compare(op Op, v any) Expr { return Compare(p, op, v) }

// Eq compares the path's value for equality. A nil value compiles to an
// IS NULL test.
func (p Path) Eq(v any) Expr { return p.compare(OpEq, v) }

// Ne compares the path's value for inequality. A nil value compiles to an
// IS NOT NULL test.
func (p Path) Ne(v any) Expr { return p.compare(OpNe, v) }

func (p Path) Lt(v any) Expr { return p.compare(OpLt, v) }
func (p Path) Le(v any) Expr { return p.compare(OpLe, v) }
func (p Path) Gt(v any) Expr { return p.compare(OpGt, v) }
func (p Path) Ge(v any) Expr { return p.compare(OpGe, v) }

// Like matches against an SQL LIKE pattern.
func (p Path) Like(pattern string) Expr { return p.compare(OpLike, pattern) }

// Glob matches against a shell glob pattern.
func (p Path) Glob(pattern string) Expr { return p.compare(OpGlob, pattern) }

// Regexp matches against a regular expression, evaluated by the REGEXP
// function registered on the connection.
func (p Path) Regexp(pattern string) Expr { return p.compare(OpRegexp, pattern) }

// Exists is true when the path is present in the document. This is distinct
// from "value is not null": a key explicitly set to null still exists.
func (p Path) Exists() Expr {
	return Expr{node: existsNode{path: p}}
}

// And combines two predicates. Empty is the identity: Empty().And(x) is x.
// Operands are never simplified, reordered or flattened, so the compiled
// text mirrors the construction order exactly.
func (e Expr) And(other Expr) Expr {
	if e.node == nil {
		return other
	}
	if other.node == nil {
		return e
	}
	return Expr{node: andNode{left: e.node, right: other.node}}
}

// Or combines two predicates. Empty is the identity: Empty().Or(x) is x.
func (e Expr) Or(other Expr) Expr {
	if e.node == nil {
		return other
	}
	if other.node == nil {
		return e
	}
	return Expr{node: orNode{left: e.node, right: other.node}}
}

// Not negates the predicate. Double negation is kept as written so the
// compiled text stays a faithful mirror of the tree.
func (e Expr) Not() Expr {
	return Expr{node: notNode{inner: e.node}}
}

// All folds expressions left to right with And.
func All(exprs ...Expr) Expr {
	out := Empty()
	for _, e := range exprs {
		out = out.And(e)
	}
	return out
}

// Any folds expressions left to right with Or.
func Any(exprs ...Expr) Expr {
	out := Empty()
	for _, e := range exprs {
		out = out.Or(e)
	}
	return out
}

// MatchFields builds an AND of equality predicates from a key/value map.
// Keys starting with "$" are engine-native paths; anything else is a single
// quoted key. Keys are visited in sorted order so the compiled text is
// deterministic.
func MatchFields(fields map[string]any) (Expr, error) {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := Empty()
	for _, k := range keys {
		p, err := Parse(k)
		if err != nil {
			return Empty(), err
		}
		out = out.And(p.Eq(fields[k]))
	}
	return out, nil
}

// Order is a sort term: a path tagged ascending or descending. Asc and Desc
// return new values; an Order is never mutated.
type Order struct {
	path Path
	desc bool
}

// Asc tags the path for ascending order.
func (p Path) Asc() Order { return Order{path: p} }

// Desc tags the path for descending order.
func (p Path) Desc() Order { return Order{path: p, desc: true} }

// Path returns the ordered path.
func (o Order) Path() Path { return o.path }

// Descending reports whether the term sorts descending.
func (o Order) Descending() bool { return o.desc }

// ParseOrder interprets a caller-supplied sort spec: an optional leading "-"
// (descending) or "+" (ascending) followed by a path string as accepted by
// Parse.
func ParseOrder(s string) (Order, error) {
	desc := false
	switch {
	case len(s) > 0 && s[0] == '-':
		desc = true
		s = s[1:]
	case len(s) > 0 && s[0] == '+':
		s = s[1:]
	}
	p, err := Parse(s)
	if err != nil {
		return Order{}, err
	}
	if desc {
		return p.Desc(), nil
	}
	return p.Asc(), nil
}
