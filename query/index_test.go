package query

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIndexNameDeterministic(t *testing.T) {
	c := NewCompiler("items")

	a := c.IndexName(false, Field("a"), Field("b"))
	b := c.IndexName(false, Field("a"), Field("b"))
	require.Equal(t, a, b)
	require.True(t, strings.HasPrefix(a, "ix_items_"))

	// Reordering the paths is a different index.
	reordered := c.IndexName(false, Field("b"), Field("a"))
	require.NotEqual(t, a, reordered)

	// Uniqueness changes the name.
	unique := c.IndexName(true, Field("a"), Field("b"))
	require.NotEqual(t, a, unique)
	require.True(t, strings.HasSuffix(unique, "_UNIQUE"))
}

func TestIndexNameSpellingSensitive(t *testing.T) {
	c := NewCompiler("items")

	built := c.IndexName(false, Field("key"))
	raw := c.IndexName(false, mustParse(t, "$.key"))
	require.NotEqual(t, built, raw)
}

func TestCreateIndexSQL(t *testing.T) {
	c := NewCompiler("items")
	d := c.IndexFor(false, Field("first"), Field("last"))

	sql := c.CreateIndexSQL(d)
	require.Equal(t,
		"CREATE INDEX IF NOT EXISTS "+d.Name+
			` ON items(JSON_EXTRACT(data, '$."first"'), JSON_EXTRACT(data, '$."last"'))`,
		sql,
	)

	du := c.IndexFor(true, Field("first"))
	require.Contains(t, c.CreateIndexSQL(du), "CREATE UNIQUE INDEX IF NOT EXISTS")
}

func TestParseIndexColumns(t *testing.T) {
	c := NewCompiler("items")
	d := c.IndexFor(false, Field("first"), Field("last"))

	cols := ParseIndexColumns(c.CreateIndexSQL(d))
	require.Equal(t, []string{`$."first"`, `$."last"`}, cols)

	require.Nil(t, ParseIndexColumns("CREATE INDEX ix ON items(other)"))
}
