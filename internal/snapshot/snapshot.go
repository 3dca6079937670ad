// Package snapshot is the sink (C3): writing a frame as a timestamped
// immutable Parquet file under a table root, and reading a table root's
// committed snapshots back as a frame. Grounded on the original's
// sink.rs (write_parquet_snapshot, scan_parquet_table_or_empty).
package snapshot

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/compress"
	"github.com/apache/arrow-go/v18/parquet/file"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"github.com/malbeclabs/strata/internal/frame"
	"github.com/malbeclabs/strata/internal/strataerr"
	"github.com/malbeclabs/strata/internal/types"
)

// TimestampLayout formats the UTC snapshot id YYYYMMDDTHHMMSSmmmZ. Go
// layouts only read fractional seconds after a '.', so Write drops the dot
// from the formatted value.
const TimestampLayout = "20060102T150405.000Z"

// LocalPathFromURI strips an optional file:// prefix and percent-decodes
// the remainder, matching the original's local_path_from_file_uri.
func LocalPathFromURI(uri string) (string, error) {
	trimmed := strings.TrimPrefix(uri, "file://")
	decoded, err := url.PathUnescape(trimmed)
	if err != nil {
		return "", strataerr.Wrapf(strataerr.InvalidRequest, err, "snapshot: decoding URI %q", uri)
	}
	return decoded, nil
}

// TableRoot resolves {warehouse}/{namespace}/{name}.
func TableRoot(warehouseURI, namespace, name string) (string, error) {
	base, err := LocalPathFromURI(warehouseURI)
	if err != nil {
		return "", err
	}
	return filepath.Join(base, namespace, name), nil
}

// EnsureDataDir returns {tableRoot}/data, creating it if absent.
func EnsureDataDir(tableRoot string) (string, error) {
	dir := filepath.Join(tableRoot, "data")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", strataerr.Wrapf(strataerr.IoError, err, "snapshot: creating %s", dir)
	}
	return dir, nil
}

// Writer writes snapshot files under table roots using an injectable
// clock, so P10 (monotonic timestamp ids) is deterministically testable.
type Writer struct {
	Clock clockwork.Clock
	Mem   memory.Allocator
}

// NewWriter builds a Writer with the real clock and the default
// allocator.
func NewWriter() *Writer {
	return &Writer{Clock: clockwork.NewRealClock(), Mem: memory.DefaultAllocator}
}

// Write serializes f as a new Parquet snapshot under tableRoot/data,
// using zstd level 3 compression with min/max/null-count page statistics
// and no distinct-count. It writes to a ".tmp" path and renames into
// place so a reader never observes a partially-written file.
func (w *Writer) Write(ctx context.Context, f *frame.Frame, tableRoot string) (path, snapshotID string, err error) {
	dataDir, err := EnsureDataDir(tableRoot)
	if err != nil {
		return "", "", err
	}
	snapshotID = strings.Replace(w.Clock.Now().UTC().Format(TimestampLayout), ".", "", 1)
	final := filepath.Join(dataDir, fmt.Sprintf("part-%s.parquet", snapshotID))
	tmp := filepath.Join(dataDir, fmt.Sprintf("part-%s-%s.parquet.tmp", snapshotID, uuid.NewString()))

	out, err := os.Create(tmp)
	if err != nil {
		return "", "", strataerr.Wrapf(strataerr.IoError, err, "snapshot: creating %s", tmp)
	}

	props := parquet.NewWriterProperties(
		parquet.WithCompression(compress.Codecs.Zstd),
		parquet.WithCompressionLevel(3),
		parquet.WithStats(true),
		parquet.WithDictionaryDefault(true),
	)
	rec := f.ToArrowRecord(w.Mem)
	defer rec.Release()

	fw, err := pqarrow.NewFileWriter(f.ArrowSchema(), out, props, pqarrow.DefaultWriterProps())
	if err != nil {
		out.Close()
		os.Remove(tmp)
		return "", "", strataerr.Wrapf(strataerr.IoError, err, "snapshot: opening parquet writer")
	}
	if err := fw.Write(rec); err != nil {
		fw.Close()
		out.Close()
		os.Remove(tmp)
		return "", "", strataerr.Wrapf(strataerr.IoError, err, "snapshot: writing parquet record")
	}
	if err := fw.Close(); err != nil {
		out.Close()
		os.Remove(tmp)
		return "", "", strataerr.Wrapf(strataerr.IoError, err, "snapshot: closing parquet writer")
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return "", "", strataerr.Wrapf(strataerr.IoError, err, "snapshot: closing file")
	}
	if err := os.Rename(tmp, final); err != nil {
		os.Remove(tmp)
		return "", "", strataerr.Wrapf(strataerr.IoError, err, "snapshot: publishing %s", final)
	}
	return final, snapshotID, nil
}

// WriteAt serializes f as a Parquet file at the exact path given, using the
// same compression/stats settings and temp-then-rename publish discipline
// as Write, but without deriving the filename from a snapshot id. Used by
// callers that need a caller-chosen, static partition filename (C7's Gold
// partitions) rather than C3's timestamped table layout.
func (w *Writer) WriteAt(ctx context.Context, f *frame.Frame, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return strataerr.Wrapf(strataerr.IoError, err, "snapshot: creating %s", filepath.Dir(path))
	}
	tmp := path + "." + uuid.NewString() + ".tmp"

	out, err := os.Create(tmp)
	if err != nil {
		return strataerr.Wrapf(strataerr.IoError, err, "snapshot: creating %s", tmp)
	}

	props := parquet.NewWriterProperties(
		parquet.WithCompression(compress.Codecs.Zstd),
		parquet.WithCompressionLevel(3),
		parquet.WithStats(true),
		parquet.WithDictionaryDefault(true),
	)
	rec := f.ToArrowRecord(w.Mem)
	defer rec.Release()

	fw, err := pqarrow.NewFileWriter(f.ArrowSchema(), out, props, pqarrow.DefaultWriterProps())
	if err != nil {
		out.Close()
		os.Remove(tmp)
		return strataerr.Wrapf(strataerr.IoError, err, "snapshot: opening parquet writer")
	}
	if err := fw.Write(rec); err != nil {
		fw.Close()
		out.Close()
		os.Remove(tmp)
		return strataerr.Wrapf(strataerr.IoError, err, "snapshot: writing parquet record")
	}
	if err := fw.Close(); err != nil {
		out.Close()
		os.Remove(tmp)
		return strataerr.Wrapf(strataerr.IoError, err, "snapshot: closing parquet writer")
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return strataerr.Wrapf(strataerr.IoError, err, "snapshot: closing file")
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return strataerr.Wrapf(strataerr.IoError, err, "snapshot: publishing %s", path)
	}
	return nil
}

// HasAnyParquet reports whether dir contains at least one *.parquet file.
func HasAnyParquet(dir string) (bool, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, strataerr.Wrapf(strataerr.IoError, err, "snapshot: reading %s", dir)
	}
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".parquet") {
			return true, nil
		}
	}
	return false, nil
}

// Scan reads every *.parquet file under tableRoot/data and concatenates
// them, erroring if the directory is missing or empty. Files are read
// concurrently (at most GOMAXPROCS at a time, via errgroup's SetLimit)
// since this is the one place the concurrency model
// (§5) permits fan-in before the single-threaded plan boundary.
func Scan(ctx context.Context, tableRoot string) (*frame.Frame, error) {
	dataDir := filepath.Join(tableRoot, "data")
	ok, err := HasAnyParquet(dataDir)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, strataerr.Newf(strataerr.IoError, "snapshot: table has no data: %s", dataDir)
	}
	return scanDir(ctx, dataDir)
}

// ScanOrEmpty behaves like Scan but returns a typed zero-row frame
// matching schema when no snapshot file exists yet.
func ScanOrEmpty(ctx context.Context, tableRoot string, schema types.Schema) (*frame.Frame, error) {
	dataDir := filepath.Join(tableRoot, "data")
	ok, err := HasAnyParquet(dataDir)
	if err != nil {
		return nil, err
	}
	if !ok {
		return frame.NewEmpty(schema)
	}
	return scanDir(ctx, dataDir)
}

func scanDir(ctx context.Context, dataDir string) (*frame.Frame, error) {
	entries, err := os.ReadDir(dataDir)
	if err != nil {
		return nil, strataerr.Wrapf(strataerr.IoError, err, "snapshot: reading %s", dataDir)
	}
	var paths []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".parquet") {
			paths = append(paths, filepath.Join(dataDir, e.Name()))
		}
	}
	sort.Strings(paths)

	frames := make([]*frame.Frame, len(paths))
	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, p := range paths {
		i, p := i, p
		g.Go(func() error {
			f, err := readParquetFile(p)
			if err != nil {
				return err
			}
			frames[i] = f
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return frame.Concat(frames...)
}

func readParquetFile(path string) (*frame.Frame, error) {
	rdr, err := file.OpenParquetFile(path, false)
	if err != nil {
		return nil, strataerr.Wrapf(strataerr.IoError, err, "snapshot: opening %s", path)
	}
	defer rdr.Close()

	fr, err := pqarrow.NewFileReader(rdr, pqarrow.ArrowReadProperties{}, memory.DefaultAllocator)
	if err != nil {
		return nil, strataerr.Wrapf(strataerr.IoError, err, "snapshot: opening arrow reader for %s", path)
	}
	tbl, err := fr.ReadTable(context.Background())
	if err != nil {
		return nil, strataerr.Wrapf(strataerr.IoError, err, "snapshot: reading table from %s", path)
	}
	defer tbl.Release()

	tr := array.NewTableReader(tbl, tbl.NumRows())
	defer tr.Release()

	var frames []*frame.Frame
	for tr.Next() {
		rec := tr.Record()
		f, err := frame.FromArrowRecord(rec)
		if err != nil {
			return nil, err
		}
		frames = append(frames, f)
	}
	if len(frames) == 0 {
		return &frame.Frame{}, nil
	}
	return frame.Concat(frames...)
}
