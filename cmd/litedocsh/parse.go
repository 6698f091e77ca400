package main

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ohler55/ojg/oj"

	"github.com/kartikbazzad/litedoc/query"
)

// condRe splits a condition into path, operator and value text. Longer
// operators come first so ">=" is not read as ">" followed by "=value".
var condRe = regexp.MustCompile(`^(.+?)(>=|<=|!=|=|<|>|~)(.*)$`)

// parseCondition turns a shell condition like name=George, age>=30 or
// name~^Geo into an expression. A bare path with a trailing "?" is an
// existence test. Values go through the JSON parser, so 30 is a number and
// "30" is a string; unparseable values are taken as raw strings.
func parseCondition(s string) (query.Expr, error) {
	if strings.HasSuffix(s, "?") {
		p, err := query.Parse(strings.TrimSuffix(s, "?"))
		if err != nil {
			return query.Empty(), err
		}
		return p.Exists(), nil
	}

	m := condRe.FindStringSubmatch(s)
	if m == nil {
		return query.Empty(), fmt.Errorf("cannot parse condition %q", s)
	}
	p, err := query.Parse(m[1])
	if err != nil {
		return query.Empty(), err
	}
	value := parseValue(m[3])

	switch m[2] {
	case "=":
		return p.Eq(value), nil
	case "!=":
		return p.Ne(value), nil
	case "<":
		return p.Lt(value), nil
	case "<=":
		return p.Le(value), nil
	case ">":
		return p.Gt(value), nil
	case ">=":
		return p.Ge(value), nil
	case "~":
		return p.Regexp(fmt.Sprint(value)), nil
	}
	return query.Empty(), fmt.Errorf("unknown operator %q", m[2])
}

func parseValue(s string) any {
	if v, err := oj.ParseString(s); err == nil {
		return v
	}
	return s
}

// parseConditions folds a token list into one AND-ed expression.
func parseConditions(tokens []string) (query.Expr, error) {
	out := query.Empty()
	for _, tok := range tokens {
		e, err := parseCondition(tok)
		if err != nil {
			return query.Empty(), err
		}
		out = out.And(e)
	}
	return out, nil
}
