// Package catalog is the DuckDB-CLI collaborator: pure SQL string
// templating around an external analytical engine binary, registering a
// view over a Gold table's Parquet files. Grounded 1:1 on the original's
// duck.rs (sanitize_ident, run_duckdb_sql, register_parquet_view).
package catalog

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/malbeclabs/strata/internal/strataerr"
	"github.com/malbeclabs/strata/utils/pkg/retry"
)

// Client shells out to the duckdb CLI binary to materialize catalog
// views. It holds no connection — every call is a fresh process.
type Client struct {
	// Bin is the duckdb binary, from DUCKDB_BIN (default "duckdb").
	Bin string
	// BaseDir is where per-namespace .duckdb database files live, from
	// DUCKDB_BASE_DIR.
	BaseDir string
}

// NewClient builds a Client from the process environment, matching
// §6's DUCKDB_BIN/DUCKDB_BASE_DIR env vars.
func NewClient() *Client {
	bin := os.Getenv("DUCKDB_BIN")
	if bin == "" {
		bin = "duckdb"
	}
	return &Client{Bin: bin, BaseDir: os.Getenv("DUCKDB_BASE_DIR")}
}

// Enabled reports whether catalog registration is configured (§4.6's
// "optional side effect" gate).
func (c *Client) Enabled() bool { return c != nil && c.BaseDir != "" }

// sanitizeIdent keeps only alphanumerics and underscores, matching the
// original's sanitize_ident (used for schema/view names interpolated into
// SQL since DuckDB's CLI has no parameterized-identifier support).
func sanitizeIdent(s string) string {
	var b strings.Builder
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func escapeSingleQuotes(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

// RunSQL executes sql against the database at dbPath via the duckdb CLI,
// returning captured stdout. A non-zero exit surfaces the captured
// stdout/stderr as an ExternalToolError. The duckdb database file is
// single-writer (one process at a time); a second process touching the
// same file surfaces a "database is locked"-shaped error, which is the one
// condition worth retrying here.
func (c *Client) RunSQL(ctx context.Context, dbPath, sql string) (string, error) {
	if c == nil {
		return "", strataerr.New(strataerr.InvalidRequest, "catalog: client not configured")
	}
	var stdout bytes.Buffer
	err := retry.Do(ctx, lockRetryConfig, func() error {
		stdout.Reset()
		var stderr bytes.Buffer
		cmd := exec.CommandContext(ctx, c.Bin, dbPath, "-c", sql)
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr
		if runErr := cmd.Run(); runErr != nil {
			return strataerr.Wrapf(strataerr.ExternalToolError, runErr,
				"catalog: duckdb exited non-zero: stdout=%q stderr=%q", stdout.String(), stderr.String())
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return stdout.String(), nil
}

// lockRetryConfig retries a database-is-locked conflict against a
// concurrent duckdb process a few times before giving up.
var lockRetryConfig = retry.Config{MaxAttempts: 3, BaseBackoff: 100 * time.Millisecond, MaxBackoff: 1 * time.Second}

// RegisterGoldView creates (or replaces) a view over
// {tableRoot}/data/*.parquet inside a namespace-scoped DuckDB database
// file under BaseDir, matching the original's register_parquet_view.
func (c *Client) RegisterGoldView(ctx context.Context, namespace, name, tableRoot string) error {
	if !c.Enabled() {
		return nil
	}
	if err := os.MkdirAll(c.BaseDir, 0o755); err != nil {
		return strataerr.Wrapf(strataerr.IoError, err, "catalog: creating %s", c.BaseDir)
	}
	schema := sanitizeIdent(namespace)
	view := sanitizeIdent(name)
	dbPath := filepath.Join(c.BaseDir, schema+".duckdb")
	glob := filepath.Join(tableRoot, "data", "*.parquet")

	sql := fmt.Sprintf(
		"CREATE SCHEMA IF NOT EXISTS %q; CREATE OR REPLACE VIEW %q.%q AS SELECT * FROM read_parquet('%s');",
		schema, schema, view, escapeSingleQuotes(glob),
	)
	_, err := c.RunSQL(ctx, dbPath, sql)
	return err
}
