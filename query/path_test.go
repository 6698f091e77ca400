package query

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPathRendering(t *testing.T) {
	require.Equal(t, "$", Root().JSONPath())
	require.Equal(t, `$."a"`, Field("a").JSONPath())
	require.Equal(t, `$."a"."b"`, Field("a").Field("b").JSONPath())
	require.Equal(t, `$."a"[3]."b"`, Field("a").Index(3).Field("b").JSONPath())
	require.Equal(t, `$[0]."a"`, Elem(0).Field("a").JSONPath())

	// Keys keep quoting-significant characters verbatim inside the quotes.
	require.Equal(t, `$."a.b"`, Field("a.b").JSONPath())
	require.Equal(t, `$."key with space"`, Field("key with space").JSONPath())
}

func TestPathRenderingDeterministic(t *testing.T) {
	p := Field("a").Index(2).Field("b")
	require.Equal(t, p.JSONPath(), p.JSONPath())

	same := Field("a").Index(2).Field("b")
	require.True(t, p.Equal(same))
}

func TestPathCopyOnBranch(t *testing.T) {
	base := Field("a")
	left := base.Field("b")
	right := base.Field("c")

	require.Equal(t, `$."a"`, base.JSONPath())
	require.Equal(t, `$."a"."b"`, left.JSONPath())
	require.Equal(t, `$."a"."c"`, right.JSONPath())
}

func TestParseRawPathKeepsSpelling(t *testing.T) {
	p, err := Parse("$.key")
	require.NoError(t, err)
	require.Equal(t, "$.key", p.JSONPath())

	nested, err := Parse(`$."a b".c[3]`)
	require.NoError(t, err)
	require.Equal(t, `$."a b".c[3]`, nested.JSONPath())
}

func TestParsePlainKeyIsQuoted(t *testing.T) {
	p, err := Parse("key")
	require.NoError(t, err)
	require.Equal(t, `$."key"`, p.JSONPath())
}

func TestRawAndBuiltPathsAreDistinctIdentities(t *testing.T) {
	// Deliberate non-unification: SQLite matches indexes on literal path
	// text, so the raw and quoted spellings must stay distinct.
	raw, err := Parse("$.key")
	require.NoError(t, err)
	built := Field("key")

	require.NotEqual(t, raw.JSONPath(), built.JSONPath())
	require.False(t, raw.Equal(built))
}

func TestParseInvalid(t *testing.T) {
	for _, in := range []string{"$[", "$[x]", "$[-1]", `$."unterminated`, "$.."} {
		_, err := Parse(in)
		require.ErrorIs(t, err, ErrPathSegment, "input %q", in)
	}
}

func TestAt(t *testing.T) {
	p, err := Root().At("a", 3, "b")
	require.NoError(t, err)
	require.Equal(t, `$."a"[3]."b"`, p.JSONPath())

	_, err = Root().At("a", 1.5)
	require.ErrorIs(t, err, ErrPathSegment)

	_, err = Root().At(-1)
	require.ErrorIs(t, err, ErrPathSegment)
}

func TestEmptyPathIsWholeDocument(t *testing.T) {
	require.True(t, Root().IsRoot())
	require.Equal(t, "$", Root().JSONPath())

	dollar, err := Parse("$")
	require.NoError(t, err)
	require.True(t, dollar.IsRoot())
}

func TestSplit(t *testing.T) {
	parent, leaf, err := Field("a").Field("b").Split()
	require.NoError(t, err)
	require.Equal(t, `$."a"`, parent.JSONPath())
	require.Equal(t, "b", leaf)

	parent, leaf, err = Field("a").Index(3).Split()
	require.NoError(t, err)
	require.Equal(t, `$."a"`, parent.JSONPath())
	require.Equal(t, 3, leaf)

	parent, leaf, err = Field("a").Split()
	require.NoError(t, err)
	require.True(t, parent.IsRoot())
	require.Equal(t, "a", leaf)

	// Raw paths are split on their parsed segments and the parent is
	// re-rendered in quoted form.
	raw, err := Parse("$.a.b")
	require.NoError(t, err)
	parent, leaf, err = raw.Split()
	require.NoError(t, err)
	require.Equal(t, `$."a"`, parent.JSONPath())
	require.Equal(t, "b", leaf)
}
