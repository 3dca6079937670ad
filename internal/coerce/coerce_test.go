package coerce

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/malbeclabs/strata/internal/frame"
	"github.com/malbeclabs/strata/internal/types"
)

func TestEnforceSchema_MissingColumnBecomesNull(t *testing.T) {
	t.Parallel()
	src := &frame.Frame{Columns: []*frame.Column{
		func() *frame.Column {
			c := frame.NewColumn("a", frame.KindStr, 1)
			c.Valid[0], c.Str[0] = true, "1"
			return c
		}(),
	}}
	schema := types.Schema{Fields: []types.Field{
		{Name: "a", Type: types.FieldI64},
		{Name: "b", Type: types.FieldI64},
	}}

	out, err := EnforceSchema(src, schema)
	require.NoError(t, err)
	require.Equal(t, 2, len(out.Columns))

	b, ok := out.Column("b")
	require.True(t, ok)
	require.False(t, b.Valid[0])
}

func TestEnforceSchema_EmptyStringBecomesNullForNonStringTarget(t *testing.T) {
	t.Parallel()
	src := &frame.Frame{Columns: []*frame.Column{
		func() *frame.Column {
			c := frame.NewColumn("n", frame.KindStr, 2)
			c.Valid[0], c.Str[0] = true, ""
			c.Valid[1], c.Str[1] = true, "42"
			return c
		}(),
	}}
	schema := types.Schema{Fields: []types.Field{{Name: "n", Type: types.FieldI64}}}

	out, err := EnforceSchema(src, schema)
	require.NoError(t, err)
	n, ok := out.Column("n")
	require.True(t, ok)
	require.False(t, n.Valid[0])
	require.True(t, n.Valid[1])
	require.Equal(t, int64(42), n.I64[1])
}

func TestEnforceSchema_EmptyStringKeptForStringTarget(t *testing.T) {
	t.Parallel()
	src := &frame.Frame{Columns: []*frame.Column{
		func() *frame.Column {
			c := frame.NewColumn("s", frame.KindStr, 1)
			c.Valid[0], c.Str[0] = true, ""
			return c
		}(),
	}}
	schema := types.Schema{Fields: []types.Field{{Name: "s", Type: types.FieldStr}}}

	out, err := EnforceSchema(src, schema)
	require.NoError(t, err)
	s, ok := out.Column("s")
	require.True(t, ok)
	require.True(t, s.Valid[0])
	require.Equal(t, "", s.Str[0])
}

func TestEnforceSchema_InvalidCastBecomesNull(t *testing.T) {
	t.Parallel()
	src := &frame.Frame{Columns: []*frame.Column{
		func() *frame.Column {
			c := frame.NewColumn("d", frame.KindStr, 1)
			c.Valid[0], c.Str[0] = true, "not-a-date"
			return c
		}(),
	}}
	schema := types.Schema{Fields: []types.Field{{Name: "d", Type: types.FieldDate}}}

	out, err := EnforceSchema(src, schema)
	require.NoError(t, err)
	d, ok := out.Column("d")
	require.True(t, ok)
	require.False(t, d.Valid[0])
}

func TestEnforceSchema_ValidDateParses(t *testing.T) {
	t.Parallel()
	src := &frame.Frame{Columns: []*frame.Column{
		func() *frame.Column {
			c := frame.NewColumn("d", frame.KindStr, 1)
			c.Valid[0], c.Str[0] = true, "2024-03-15"
			return c
		}(),
	}}
	schema := types.Schema{Fields: []types.Field{{Name: "d", Type: types.FieldDate}}}

	out, err := EnforceSchema(src, schema)
	require.NoError(t, err)
	d, ok := out.Column("d")
	require.True(t, ok)
	require.True(t, d.Valid[0])
}
