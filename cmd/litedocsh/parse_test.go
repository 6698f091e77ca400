package main

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kartikbazzad/litedoc/query"
)

func compile(t *testing.T, e query.Expr) (string, []any) {
	t.Helper()
	return query.NewCompiler("items").Where(e)
}

func TestParseConditionOperators(t *testing.T) {
	cases := map[string]string{
		"name=George": `( JSON_EXTRACT(data, '$."name"') = ? )`,
		"age>=30":     `( JSON_EXTRACT(data, '$."age"') >= ? )`,
		"age<30":      `( JSON_EXTRACT(data, '$."age"') < ? )`,
		"name!=Bob":   `( JSON_EXTRACT(data, '$."name"') != ? )`,
		"name~^Geo":   `( JSON_EXTRACT(data, '$."name"') REGEXP ? )`,
		"$.a.b=1":     `( JSON_EXTRACT(data, '$.a.b') = ? )`,
	}
	for in, want := range cases {
		e, err := parseCondition(in)
		require.NoError(t, err, "input %q", in)
		got, _ := compile(t, e)
		require.Equal(t, want, got, "input %q", in)
	}
}

func TestParseConditionValueTypes(t *testing.T) {
	e, err := parseCondition("age=30")
	require.NoError(t, err)
	_, args := compile(t, e)
	require.Equal(t, []any{int64(30)}, args)

	e, err = parseCondition(`name="30"`)
	require.NoError(t, err)
	_, args = compile(t, e)
	require.Equal(t, []any{"30"}, args)

	e, err = parseCondition("deleted=null")
	require.NoError(t, err)
	got, args := compile(t, e)
	require.Equal(t, `( JSON_EXTRACT(data, '$."deleted"') IS NULL )`, got)
	require.Empty(t, args)
}

func TestParseConditionExists(t *testing.T) {
	e, err := parseCondition("addr?")
	require.NoError(t, err)
	got, _ := compile(t, e)
	require.Equal(t, `( JSON_TYPE(data, '$."addr"') IS NOT NULL )`, got)
}

func TestParseConditionsFoldWithAnd(t *testing.T) {
	e, err := parseConditions([]string{"a=1", "b=2"})
	require.NoError(t, err)
	got, args := compile(t, e)
	require.Equal(t,
		`( ( JSON_EXTRACT(data, '$."a"') = ? ) AND ( JSON_EXTRACT(data, '$."b"') = ? ) )`,
		got,
	)
	require.Equal(t, []any{int64(1), int64(2)}, args)
}

func TestParseConditionErrors(t *testing.T) {
	_, err := parseCondition("justakey")
	require.Error(t, err)

	_, err = parseCondition("$[=1")
	require.ErrorIs(t, err, query.ErrPathSegment)
}
