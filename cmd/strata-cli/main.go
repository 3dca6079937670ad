package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	flag "github.com/spf13/pflag"

	"github.com/malbeclabs/strata/internal/catalog"
	"github.com/malbeclabs/strata/internal/realestate"
	"github.com/malbeclabs/strata/utils/pkg/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	verboseFlag := flag.Bool("verbose", false, "enable verbose (debug) logging")

	ingestFlag := flag.Bool("ingest", false, "run the C7 ingest stage (DVF csv -> bronze)")
	validateFlag := flag.Bool("validate", false, "run the C7 validate stage (bronze -> silver + rejects)")
	curateFlag := flag.Bool("curate", false, "run the C7 curate stage (silver -> partitioned gold)")
	duckdbRefreshFlag := flag.Bool("duckdb-refresh", false, "register (or refresh) a duckdb catalog view over a gold table")

	storageRootFlag := flag.String("storage-root", "./data", "root directory all layer/manifest dirs are resolved under")
	bronzeDirFlag := flag.String("bronze-dir", "bronze", "bronze layer directory name, under --storage-root")
	silverDirFlag := flag.String("silver-dir", "silver", "silver layer directory name, under --storage-root")
	rejectsDirFlag := flag.String("rejects-dir", "rejects", "rejects layer directory name, under --storage-root")
	goldDirFlag := flag.String("gold-dir", "gold", "gold layer directory name, under --storage-root")
	manifestsDirFlag := flag.String("manifests-dir", "manifests", "manifests directory name, under --storage-root")

	slugFlag := flag.String("slug", "dvf", "dataset slug, used to namespace every layer and manifest path")
	ingestDateFlag := flag.String("ingest-date", "", "ingest date (YYYY-MM-DD); defaults to today UTC")
	snapshotDateFlag := flag.String("snapshot-date", "", "gold snapshot date (YYYY-MM-DD, curate); defaults to --ingest-date")

	csvPathFlag := flag.String("csv", "", "input DVF csv path (ingest)")
	sourceFileFlag := flag.String("source-file", "", "source file label recorded in bronze lineage (ingest, default: --csv)")

	namespaceFlag := flag.String("namespace", "", "catalog namespace (duckdb-refresh)")
	tableNameFlag := flag.String("table", "", "catalog table/view name (duckdb-refresh)")
	tableRootFlag := flag.String("table-root", "", "gold table root to register (duckdb-refresh)")

	flag.Parse()

	log := logger.New(*verboseFlag)
	ctx := context.Background()

	layout := pathLayout{
		storageRoot:  *storageRootFlag,
		bronzeDir:    *bronzeDirFlag,
		silverDir:    *silverDirFlag,
		rejectsDir:   *rejectsDirFlag,
		goldDir:      *goldDirFlag,
		manifestsDir: *manifestsDirFlag,
		slug:         *slugFlag,
		ingestDate:   *ingestDateFlag,
		snapshotDate: *snapshotDateFlag,
	}
	if layout.ingestDate == "" {
		layout.ingestDate = today()
	}
	if layout.snapshotDate == "" {
		layout.snapshotDate = layout.ingestDate
	}

	switch {
	case *ingestFlag:
		return runIngest(ctx, layout, *csvPathFlag, *sourceFileFlag, log)
	case *validateFlag:
		return runValidate(ctx, layout, log)
	case *curateFlag:
		return runCurate(ctx, layout, log)
	case *duckdbRefreshFlag:
		if *namespaceFlag == "" || *tableNameFlag == "" || *tableRootFlag == "" {
			return fmt.Errorf("--namespace, --table and --table-root are required for --duckdb-refresh")
		}
		cat := catalog.NewClient()
		if !cat.Enabled() {
			return fmt.Errorf("DUCKDB_BASE_DIR is not set; catalog registration is disabled")
		}
		return cat.RegisterGoldView(ctx, *namespaceFlag, *tableNameFlag, *tableRootFlag)
	default:
		flag.Usage()
		return fmt.Errorf("one of --ingest, --validate, --curate or --duckdb-refresh is required")
	}
}

// pathLayout resolves every C7 layer/manifest path from a storage root,
// dataset slug and ingest/snapshot dates, matching
// rust_local_pipeline/crates/{ingest,validate,curate}/src/lib.rs's
// IngestConfig/ValidateConfig/CurateConfig path construction.
type pathLayout struct {
	storageRoot  string
	bronzeDir    string
	silverDir    string
	rejectsDir   string
	goldDir      string
	manifestsDir string
	slug         string
	ingestDate   string
	snapshotDate string
}

func (l pathLayout) bronzePath() string {
	return filepath.Join(l.storageRoot, l.bronzeDir, l.slug, fmt.Sprintf("ingest_date=%s", l.ingestDate), "part-000000.arrow")
}

func (l pathLayout) silverPath() string {
	return filepath.Join(l.storageRoot, l.silverDir, l.slug, fmt.Sprintf("ingest_date=%s", l.ingestDate), "part-000000.arrow")
}

func (l pathLayout) rejectsPath() string {
	return filepath.Join(l.storageRoot, l.rejectsDir, l.slug, fmt.Sprintf("ingest_date=%s", l.ingestDate), "part-000000.arrow")
}

func (l pathLayout) goldRoot() string {
	return filepath.Join(l.storageRoot, l.goldDir)
}

func (l pathLayout) manifestsRoot() string {
	return filepath.Join(l.storageRoot, l.manifestsDir)
}

func runIngest(ctx context.Context, l pathLayout, csvPath, sourceFile string, log *slog.Logger) error {
	if csvPath == "" {
		return fmt.Errorf("--csv is required for --ingest")
	}
	if sourceFile == "" {
		sourceFile = csvPath
	}
	bronze, stats, err := realestate.Ingest(ctx, csvPath, l.ingestDate, sourceFile)
	if err != nil {
		return err
	}
	log.Info("ingest complete", "rows_read", stats.RowsRead, "columns_read", stats.ColumnsRead)
	out := l.bronzePath()
	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return err
	}
	return writeArrowIPC(bronze, out)
}

func runValidate(ctx context.Context, l pathLayout, log *slog.Logger) error {
	bronzePath := l.bronzePath()
	bronze, err := readArrowIPC(bronzePath)
	if err != nil {
		return fmt.Errorf("reading bronze at %s: %w", bronzePath, err)
	}
	silver, rejects, stats, err := realestate.Validate(ctx, bronze, l.ingestDate, realestate.DefaultBoundingBox)
	if err != nil {
		return err
	}
	log.Info("validate complete", "rows_in", stats.RowsIn, "rows_valid", stats.RowsValid, "rows_dropped", stats.RowsDropped)

	silverOut, rejectsOut := l.silverPath(), l.rejectsPath()
	if err := os.MkdirAll(filepath.Dir(silverOut), 0o755); err != nil {
		return err
	}
	if err := writeArrowIPC(silver, silverOut); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(rejectsOut), 0o755); err != nil {
		return err
	}
	return writeArrowIPC(rejects, rejectsOut)
}

func runCurate(ctx context.Context, l pathLayout, log *slog.Logger) error {
	silverPath := l.silverPath()
	silver, err := readArrowIPC(silverPath)
	if err != nil {
		return fmt.Errorf("reading silver at %s: %w", silverPath, err)
	}
	cfg := realestate.CurateConfig{
		Slug:          l.slug,
		SnapshotDate:  l.snapshotDate,
		GoldRoot:      l.goldRoot(),
		ManifestsRoot: l.manifestsRoot(),
	}
	stats, err := realestate.NewCurator().Curate(ctx, silver, cfg)
	if err != nil {
		return err
	}
	log.Info("curate complete", "rows_in", stats.RowsIn, "partition_count", stats.PartitionCount)
	return nil
}

func today() string {
	if override := os.Getenv("STRATA_TODAY_OVERRIDE"); override != "" {
		return override
	}
	return time.Now().UTC().Format("2006-01-02")
}
