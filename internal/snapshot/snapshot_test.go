package snapshot

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/malbeclabs/strata/internal/frame"
	"github.com/malbeclabs/strata/internal/types"
)

var snapshotIDPattern = regexp.MustCompile(`^\d{8}T\d{9}Z$`)

func strColumn(name string, vals []string) *frame.Column {
	c := frame.NewColumn(name, frame.KindStr, len(vals))
	for i, v := range vals {
		c.Valid[i] = true
		c.Str[i] = v
	}
	return c
}

func TestWrite_RoundTripsThroughParquet(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	w := NewWriter()
	f := &frame.Frame{Columns: []*frame.Column{strColumn("id", []string{"1", "2"})}}

	path, snapID, err := w.Write(context.Background(), f, root)
	require.NoError(t, err)
	require.NotEmpty(t, snapID)
	_, err = os.Stat(path)
	require.NoError(t, err)
	require.False(t, filepath.Ext(path) == ".tmp")

	got, err := Scan(context.Background(), root)
	require.NoError(t, err)
	idCol, ok := got.Column("id")
	require.True(t, ok)
	require.Equal(t, []string{"1", "2"}, idCol.Str)
}

func TestWrite_TimestampIdsAreMonotonicWithClock(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	clock := clockwork.NewFakeClock()
	w := &Writer{Clock: clock, Mem: NewWriter().Mem}
	f := &frame.Frame{Columns: []*frame.Column{strColumn("id", []string{"1"})}}

	_, id1, err := w.Write(context.Background(), f, root)
	require.NoError(t, err)

	clock.Advance(time.Second)
	_, id2, err := w.Write(context.Background(), f, root)
	require.NoError(t, err)

	require.True(t, id1 < id2, "snapshot ids must sort in write order: %q vs %q", id1, id2)
	require.Regexp(t, snapshotIDPattern, id1, "snapshot id must be the no-separator YYYYMMDDTHHMMSSmmmZ form")
	require.Regexp(t, snapshotIDPattern, id2)
}

func TestScanOrEmpty_ReturnsTypedEmptyFrameWhenNoSnapshotExists(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	schema := types.Schema{Fields: []types.Field{{Name: "id", Type: types.FieldI64}}}

	got, err := ScanOrEmpty(context.Background(), root, schema)
	require.NoError(t, err)
	require.Equal(t, 0, got.NRows())
	_, ok := got.Column("id")
	require.True(t, ok)
}

func TestScan_ErrorsWhenTableHasNoData(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	_, err := Scan(context.Background(), root)
	require.Error(t, err)
}

func TestLocalPathFromURI_StripsFileScheme(t *testing.T) {
	t.Parallel()
	got, err := LocalPathFromURI("file:///tmp/warehouse")
	require.NoError(t, err)
	require.Equal(t, "/tmp/warehouse", got)

	got2, err := LocalPathFromURI("/tmp/warehouse")
	require.NoError(t, err)
	require.Equal(t, "/tmp/warehouse", got2)
}

func TestTableRoot_JoinsWarehouseNamespaceAndName(t *testing.T) {
	t.Parallel()
	got, err := TableRoot("file:///data/lake", "ns", "tbl")
	require.NoError(t, err)
	require.Equal(t, filepath.Join("/data/lake", "ns", "tbl"), got)
}
