package realestate

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/malbeclabs/strata/internal/frame"
)

func silverFrameFixture(t *testing.T) *frame.Frame {
	t.Helper()
	bronze := bronzeFrame(t, []map[string]string{
		baseRow(),
		func() map[string]string {
			r := baseRow()
			r["id_mutation"] = "2024-2"
			r["code_departement"] = "69"
			r["date_mutation"] = "2023-01-01"
			return r
		}(),
	})
	silver, _, _, err := Validate(context.Background(), bronze, "2024-06-01", DefaultBoundingBox)
	require.NoError(t, err)
	return silver
}

func TestCurate_PartitionsByYearAndDepartment(t *testing.T) {
	t.Parallel()

	silver := silverFrameFixture(t)
	root := t.TempDir()
	cfg := CurateConfig{
		Slug:          "dvf",
		SnapshotDate:  "2024-06-01",
		GoldRoot:      filepath.Join(root, "gold"),
		ManifestsRoot: filepath.Join(root, "manifests"),
	}
	c := NewCurator()

	stats, err := c.Curate(context.Background(), silver, cfg)
	require.NoError(t, err)
	require.Equal(t, 2, stats.PartitionCount)

	commitBytes, err := os.ReadFile(filepath.Join(root, "manifests", "dvf", "snapshot_date=2024-06-01", "commit.json"))
	require.NoError(t, err)
	var commit commitJSON
	require.NoError(t, json.Unmarshal(commitBytes, &commit))
	require.Equal(t, "dvf", commit.Dataset)
	require.Equal(t, "2024-06-01", commit.SnapshotDate)
	require.Len(t, commit.Files, 2)

	for _, f := range commit.Files {
		_, err := os.Stat(f.Path)
		require.NoError(t, err, "partition parquet file must exist on disk: %s", f.Path)
		require.True(t, filepath.Base(f.Path) == "part-000000.parquet", "partition filename must be static: %s", f.Path)
	}

	gotLatest, err := ReadLatest(cfg.ManifestsRoot, cfg.Slug)
	require.NoError(t, err)
	require.Equal(t, "2024-06-01", gotLatest)
}

func TestCurate_SecondSnapshotGetsOwnCommitAndRepointsLatest(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	cfg := CurateConfig{
		Slug:          "dvf",
		SnapshotDate:  "2024-06-01",
		GoldRoot:      filepath.Join(root, "gold"),
		ManifestsRoot: filepath.Join(root, "manifests"),
	}
	c := NewCurator()

	first := silverFrameFixture(t)
	_, err := c.Curate(context.Background(), first, cfg)
	require.NoError(t, err)

	cfg.SnapshotDate = "2024-06-02"
	second := silverFrameFixture(t)
	stats, err := c.Curate(context.Background(), second, cfg)
	require.NoError(t, err)
	require.Equal(t, 2, stats.PartitionCount)

	// Each snapshot date gets its own commit.json; the first is untouched.
	_, err = os.Stat(filepath.Join(root, "manifests", "dvf", "snapshot_date=2024-06-01", "commit.json"))
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(root, "manifests", "dvf", "snapshot_date=2024-06-02", "commit.json"))
	require.NoError(t, err)

	gotLatest, err := ReadLatest(cfg.ManifestsRoot, cfg.Slug)
	require.NoError(t, err)
	require.Equal(t, "2024-06-02", gotLatest, "latest.json must repoint to the most recent snapshot date")
}

func TestCurate_RequiresSlugAndSnapshotDate(t *testing.T) {
	t.Parallel()
	silver := silverFrameFixture(t)
	root := t.TempDir()
	c := NewCurator()

	_, err := c.Curate(context.Background(), silver, CurateConfig{SnapshotDate: "2024-06-01", GoldRoot: root, ManifestsRoot: root})
	require.Error(t, err)

	_, err = c.Curate(context.Background(), silver, CurateConfig{Slug: "dvf", GoldRoot: root, ManifestsRoot: root})
	require.Error(t, err)
}
