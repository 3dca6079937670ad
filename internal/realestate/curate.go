package realestate

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/malbeclabs/strata/internal/frame"
	"github.com/malbeclabs/strata/internal/snapshot"
	"github.com/malbeclabs/strata/internal/strataerr"
)

// CurateStats reports partition counts for a single Curate call.
type CurateStats struct {
	RowsIn         int64
	PartitionCount int
}

// CurateConfig names the dataset slug and dates that drive Gold's
// partition layout and manifest paths, grounded on
// rust_local_pipeline/crates/curate/src/lib.rs's CurateConfig.
type CurateConfig struct {
	Slug          string
	SnapshotDate  string // YYYY-MM-DD
	GoldRoot      string
	ManifestsRoot string
}

// commitFile is one partition file recorded in a snapshot's commit.json.
type commitFile struct {
	Path string `json:"path"`
	Rows int    `json:"rows"`
}

// commitJSON is the immutable, per-snapshot commit record written to
// {manifestsRoot}/{slug}/snapshot_date={d}/commit.json.
type commitJSON struct {
	Dataset      string       `json:"dataset"`
	SnapshotDate string       `json:"snapshot_date"`
	Files        []commitFile `json:"files"`
}

// latestJSON is the pointer record written to
// {manifestsRoot}/{slug}/latest.json, atomically rewritten on every
// Curate call to name the most recently committed snapshot date.
type latestJSON struct {
	SnapshotDate string `json:"snapshot_date"`
}

// Curator writes partitioned Gold Parquet under a slug's Gold directory
// and maintains its two-file manifest scheme. Grounded on
// rust_local_pipeline/crates/curate/src/lib.rs's write_gold_snapshot,
// reusing C3's snapshot.Writer for the actual Parquet encoding.
type Curator struct {
	Writer *snapshot.Writer
}

// NewCurator builds a Curator using the real clock.
func NewCurator() *Curator {
	return &Curator{Writer: snapshot.NewWriter()}
}

// Curate partitions a Silver frame by (year_mutation, code_departement)
// and writes one static-named Parquet file per partition under
// {cfg.GoldRoot}/{cfg.Slug}/snapshot_date={cfg.SnapshotDate}/year={y}/dept={d}/part-000000.parquet,
// then publishes the snapshot's commit.json and atomically repoints
// latest.json at it.
func (c *Curator) Curate(ctx context.Context, silver *frame.Frame, cfg CurateConfig) (CurateStats, error) {
	stats := CurateStats{RowsIn: int64(silver.NRows())}

	if cfg.Slug == "" {
		return stats, strataerr.New(strataerr.InvalidRequest, "realestate: curate: slug is required")
	}
	if cfg.SnapshotDate == "" {
		return stats, strataerr.New(strataerr.InvalidRequest, "realestate: curate: snapshot date is required")
	}

	yearCol, ok := silver.Column("year_mutation")
	if !ok {
		return stats, strataerr.New(strataerr.InvalidRequest, "realestate: curate: silver frame missing year_mutation")
	}
	deptCol, ok := silver.Column("code_departement")
	if !ok {
		return stats, strataerr.New(strataerr.InvalidRequest, "realestate: curate: silver frame missing code_departement")
	}

	groups := map[string][]int{}
	for i := 0; i < silver.NRows(); i++ {
		year := int32(0)
		if yearCol.Valid[i] {
			year = yearCol.I32[i]
		}
		dept := "UNK"
		if deptCol.Valid[i] && strings.TrimSpace(deptCol.Str[i]) != "" {
			dept = strings.TrimSpace(deptCol.Str[i])
		}
		key := fmt.Sprintf("%d|%s", year, dept)
		groups[key] = append(groups[key], i)
	}

	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	snapshotDir := filepath.Join(cfg.GoldRoot, cfg.Slug, fmt.Sprintf("snapshot_date=%s", cfg.SnapshotDate))
	commit := commitJSON{Dataset: cfg.Slug, SnapshotDate: cfg.SnapshotDate}

	for _, key := range keys {
		idx := groups[key]
		part := silver.TakeIndices(idx)

		yearStr, dept, _ := strings.Cut(key, "|")
		y64, _ := strconv.ParseInt(yearStr, 10, 32)
		year := int32(y64)

		path := filepath.Join(snapshotDir, fmt.Sprintf("year=%d", year), fmt.Sprintf("dept=%s", dept), "part-000000.parquet")
		if err := c.Writer.WriteAt(ctx, part, path); err != nil {
			return stats, err
		}
		commit.Files = append(commit.Files, commitFile{Path: path, Rows: len(idx)})
		stats.PartitionCount++
	}

	if err := writeCommit(cfg.ManifestsRoot, cfg.Slug, cfg.SnapshotDate, commit); err != nil {
		return stats, err
	}
	if err := writeLatest(cfg.ManifestsRoot, cfg.Slug, cfg.SnapshotDate); err != nil {
		return stats, err
	}
	return stats, nil
}

func commitPath(manifestsRoot, slug, snapshotDate string) string {
	return filepath.Join(manifestsRoot, slug, fmt.Sprintf("snapshot_date=%s", snapshotDate), "commit.json")
}

func latestPath(manifestsRoot, slug string) string {
	return filepath.Join(manifestsRoot, slug, "latest.json")
}

// writeCommit publishes the immutable per-snapshot commit record. Unlike
// latest.json it names its own snapshot date in its path, so it is never
// rewritten by a later Curate call.
func writeCommit(manifestsRoot, slug, snapshotDate string, commit commitJSON) error {
	path := commitPath(manifestsRoot, slug, snapshotDate)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return strataerr.Wrapf(strataerr.IoError, err, "realestate: creating %s", filepath.Dir(path))
	}
	b, err := json.MarshalIndent(commit, "", "  ")
	if err != nil {
		return strataerr.Wrapf(strataerr.IoError, err, "realestate: marshaling commit")
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return strataerr.Wrapf(strataerr.IoError, err, "realestate: writing %s", path)
	}
	return nil
}

// writeLatest atomically repoints {manifestsRoot}/{slug}/latest.json at
// snapshotDate via temp-then-rename, matching C3's publish discipline so
// readers never observe a latest.json pointing at a half-written commit.
func writeLatest(manifestsRoot, slug, snapshotDate string) error {
	dir := filepath.Join(manifestsRoot, slug)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return strataerr.Wrapf(strataerr.IoError, err, "realestate: creating %s", dir)
	}
	b, err := json.Marshal(latestJSON{SnapshotDate: snapshotDate})
	if err != nil {
		return strataerr.Wrapf(strataerr.IoError, err, "realestate: marshaling latest pointer")
	}
	path := latestPath(manifestsRoot, slug)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return strataerr.Wrapf(strataerr.IoError, err, "realestate: writing %s", tmp)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return strataerr.Wrapf(strataerr.IoError, err, "realestate: publishing %s", path)
	}
	return nil
}

// ReadLatest returns the snapshot date a slug's latest.json currently
// points at, or "" if the slug has never been curated.
func ReadLatest(manifestsRoot, slug string) (string, error) {
	b, err := os.ReadFile(latestPath(manifestsRoot, slug))
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", strataerr.Wrapf(strataerr.IoError, err, "realestate: reading latest pointer")
	}
	var l latestJSON
	if err := json.Unmarshal(b, &l); err != nil {
		return "", strataerr.Wrapf(strataerr.IoError, err, "realestate: parsing latest pointer")
	}
	return l.SnapshotDate, nil
}
