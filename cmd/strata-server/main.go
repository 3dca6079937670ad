package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	flag "github.com/spf13/pflag"

	"github.com/malbeclabs/strata/internal/catalog"
	"github.com/malbeclabs/strata/internal/config"
	"github.com/malbeclabs/strata/internal/httpapi"
	"github.com/malbeclabs/strata/internal/metrics"
	"github.com/malbeclabs/strata/internal/pipeline"
	"github.com/malbeclabs/strata/utils/pkg/logger"
)

var (
	// Set by LDFLAGS.
	version = "dev"
	commit  = "none"
	date    = "unknown"
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
	bindAddrFlag := flag.String("bind-addr", "", "HTTP listen address (or set BIND_ADDR env var)")
	duckdbBinFlag := flag.String("duckdb-bin", "", "duckdb binary used for catalog registration (or set DUCKDB_BIN env var)")
	duckdbBaseDirFlag := flag.String("duckdb-base-dir", "", "base dir for the duckdb catalog database; empty disables catalog registration (or set DUCKDB_BASE_DIR env var)")
	flag.Parse()

	log := logger.New(*verboseFlag)
	metrics.BuildInfo.WithLabelValues(version, commit, date).Set(1)

	cfg := config.Load()
	if *bindAddrFlag != "" {
		cfg.BindAddr = *bindAddrFlag
	}
	if *duckdbBinFlag != "" {
		cfg.DuckDBBin = *duckdbBinFlag
	}
	if *duckdbBaseDirFlag != "" {
		cfg.DuckDBBaseDir = *duckdbBaseDirFlag
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	cat := &catalog.Client{Bin: cfg.DuckDBBin, BaseDir: cfg.DuckDBBaseDir}
	orch := pipeline.New(log, cat)
	srv := httpapi.NewServer(cfg.BindAddr, orch, log)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case <-sigCh:
		log.Info("shutdown signal received")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
