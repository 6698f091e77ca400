package query

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func compileText(t *testing.T, e Expr) (string, []any) {
	t.Helper()
	return NewCompiler(DefaultTable).Where(e)
}

func TestEmptyIsIdentity(t *testing.T) {
	e := Field("a").Eq(1)
	want, wantArgs := compileText(t, e)

	got, gotArgs := compileText(t, Empty().And(e))
	require.Equal(t, want, got)
	require.Equal(t, wantArgs, gotArgs)

	got, gotArgs = compileText(t, Empty().Or(e))
	require.Equal(t, want, got)
	require.Equal(t, wantArgs, gotArgs)

	got, gotArgs = compileText(t, e.And(Empty()))
	require.Equal(t, want, got)
	require.Equal(t, wantArgs, gotArgs)
}

func TestCombinatorsDoNotMutate(t *testing.T) {
	a := Field("a").Eq(1)
	b := Field("b").Eq(2)

	beforeA, beforeAArgs := compileText(t, a)
	beforeB, beforeBArgs := compileText(t, b)

	_ = a.And(b)
	_ = a.Or(b)
	_ = a.Not()
	_ = b.Not().And(a)

	afterA, afterAArgs := compileText(t, a)
	afterB, afterBArgs := compileText(t, b)

	require.Equal(t, beforeA, afterA)
	require.Equal(t, beforeAArgs, afterAArgs)
	require.Equal(t, beforeB, afterB)
	require.Equal(t, beforeBArgs, afterBArgs)
}

func TestDoubleNegationIsKept(t *testing.T) {
	e := Field("a").Eq(1).Not().Not()
	got, _ := compileText(t, e)
	require.Equal(t,
		`( NOT ( NOT ( JSON_EXTRACT(data, '$."a"') = ? ) ) )`,
		got,
	)
}

func TestAllFoldsLeftToRight(t *testing.T) {
	a := Field("a").Eq(1)
	b := Field("b").Eq(2)
	c := Field("c").Eq(3)

	folded, args := compileText(t, All(a, b, c))
	explicit, _ := compileText(t, a.And(b).And(c))
	require.Equal(t, explicit, folded)
	require.Equal(t, []any{1, 2, 3}, args)
}

func TestMatchFieldsDeterministicOrder(t *testing.T) {
	e, err := MatchFields(map[string]any{"b": 2, "a": 1})
	require.NoError(t, err)

	got, args := compileText(t, e)
	require.Equal(t,
		`( ( JSON_EXTRACT(data, '$."a"') = ? ) AND ( JSON_EXTRACT(data, '$."b"') = ? ) )`,
		got,
	)
	require.Equal(t, []any{1, 2}, args)
}

func TestMatchFieldsRawKey(t *testing.T) {
	e, err := MatchFields(map[string]any{"$.a.b": 1})
	require.NoError(t, err)
	got, _ := compileText(t, e)
	require.Equal(t, `( JSON_EXTRACT(data, '$.a.b') = ? )`, got)
}

func TestOrderTagsAreNonMutating(t *testing.T) {
	p := Field("a")
	asc := p.Asc()
	desc := p.Desc()

	require.False(t, asc.Descending())
	require.True(t, desc.Descending())
	require.Equal(t, `$."a"`, p.JSONPath())
	require.Equal(t, asc.Path().JSONPath(), desc.Path().JSONPath())
}

func TestParseOrder(t *testing.T) {
	o, err := ParseOrder("-key")
	require.NoError(t, err)
	require.True(t, o.Descending())
	require.Equal(t, `$."key"`, o.Path().JSONPath())

	o, err = ParseOrder("+$.a.b")
	require.NoError(t, err)
	require.False(t, o.Descending())
	require.Equal(t, "$.a.b", o.Path().JSONPath())
}
