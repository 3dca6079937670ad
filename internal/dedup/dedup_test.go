package dedup

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/malbeclabs/strata/internal/frame"
)

func strCol(name string, vals []string, valid []bool) *frame.Column {
	c := frame.NewColumn(name, frame.KindStr, len(vals))
	if valid == nil {
		valid = make([]bool, len(vals))
		for i := range valid {
			valid[i] = true
		}
	}
	c.Valid = valid
	c.Str = vals
	return c
}

func TestComputePkHash_NullSafeAndLengthPrefixed(t *testing.T) {
	t.Parallel()
	f := &frame.Frame{Columns: []*frame.Column{
		strCol("a", []string{"ab", "x"}, nil),
		strCol("b", []string{"cd", ""}, []bool{true, false}),
	}}

	col, err := ComputePkHash(f, []string{"a", "b"})
	require.NoError(t, err)
	require.Equal(t, "2:ab|2:cd|", col.Str[0])
	require.Equal(t, "1:x|6:<NULL>|", col.Str[1])
}

func TestComputePkHash_DistinguishesConcatenationAmbiguity(t *testing.T) {
	t.Parallel()
	// Without length prefixing, ("ab","c") and ("a","bc") would collide.
	f1 := &frame.Frame{Columns: []*frame.Column{
		strCol("a", []string{"ab"}, nil),
		strCol("b", []string{"c"}, nil),
	}}
	f2 := &frame.Frame{Columns: []*frame.Column{
		strCol("a", []string{"a"}, nil),
		strCol("b", []string{"bc"}, nil),
	}}
	h1, err := ComputePkHash(f1, []string{"a", "b"})
	require.NoError(t, err)
	h2, err := ComputePkHash(f2, []string{"a", "b"})
	require.NoError(t, err)
	require.NotEqual(t, h1.Str[0], h2.Str[0])
}

func TestDropNullPK(t *testing.T) {
	t.Parallel()
	f := &frame.Frame{Columns: []*frame.Column{
		strCol("id", []string{"1", "2", "3"}, []bool{true, false, true}),
	}}
	out, err := DropNullPK(f, []string{"id"})
	require.NoError(t, err)
	require.Equal(t, 2, out.NRows())
	idCol, _ := out.Column("id")
	require.Equal(t, []string{"1", "3"}, idCol.Str)
}

func TestUniqueStable_KeepsFirstOccurrence(t *testing.T) {
	t.Parallel()
	f := &frame.Frame{Columns: []*frame.Column{
		strCol("id", []string{"a", "b", "a", "c", "b"}, nil),
		strCol("v", []string{"1", "2", "3", "4", "5"}, nil),
	}}
	out, err := UniqueStable(f, []string{"id"})
	require.NoError(t, err)
	require.Equal(t, 3, out.NRows())
	idCol, _ := out.Column("id")
	vCol, _ := out.Column("v")
	require.Equal(t, []string{"a", "b", "c"}, idCol.Str)
	require.Equal(t, []string{"1", "2", "4"}, vCol.Str) // keeps first "a" (v=1), not "3"
}

func TestDedupKeyColumn(t *testing.T) {
	t.Parallel()
	require.Equal(t, "id", DedupKeyColumn([]string{"id"}))
	require.Equal(t, PkHashColumn, DedupKeyColumn([]string{"a", "b"}))
}

func TestAntiJoin_DropsRowsPresentInExisting(t *testing.T) {
	t.Parallel()
	candidate := &frame.Frame{Columns: []*frame.Column{
		strCol("id", []string{"1", "2", "3"}, nil),
	}}
	existing := &frame.Frame{Columns: []*frame.Column{
		strCol("id", []string{"2"}, nil),
	}}
	out, err := AntiJoin(candidate, "id", existing)
	require.NoError(t, err)
	idCol, _ := out.Column("id")
	require.Equal(t, []string{"1", "3"}, idCol.Str)
}

func TestAntiJoin_NilExistingKeepsEverything(t *testing.T) {
	t.Parallel()
	candidate := &frame.Frame{Columns: []*frame.Column{
		strCol("id", []string{"1", "2"}, nil),
	}}
	out, err := AntiJoin(candidate, "id", nil)
	require.NoError(t, err)
	require.Equal(t, 2, out.NRows())
}
