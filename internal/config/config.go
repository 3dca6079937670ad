// Package config centralizes the server's process-wide environment reads.
// Per §9's "Global state" design note, environment variables are the only
// process-wide state; strata-server reads them once at startup into this
// struct. catalog.NewClient (used by strata-cli), strata-cli's
// STRATA_TODAY_OVERRIDE and the test logger's DEBUG are read directly
// with os.Getenv instead. Grounded on
// malbeclabs-lake's indexer/pkg/dz/revdist ViewConfig{..}.Validate()
// pattern.
package config

import (
	"fmt"
	"os"
)

// Config holds every environment-derived setting strata's collaborators
// need.
//
// Concurrent writers to the same table root are not coordinated by this
// process (§5's accepted open question): strata assumes a single writer
// per table root at a time and documents, rather than enforces, that
// constraint here.
type Config struct {
	// DuckDBBin is the external analytical engine binary (§6).
	DuckDBBin string
	// DuckDBBaseDir enables catalog registration for Gold writes when set.
	DuckDBBaseDir string
	// BindAddr is the HTTP listen address.
	BindAddr string
}

// Load reads Config from the process environment, applying the defaults
// named in §6.
func Load() Config {
	cfg := Config{
		DuckDBBin:     os.Getenv("DUCKDB_BIN"),
		DuckDBBaseDir: os.Getenv("DUCKDB_BASE_DIR"),
		BindAddr:      os.Getenv("BIND_ADDR"),
	}
	if cfg.DuckDBBin == "" {
		cfg.DuckDBBin = "duckdb"
	}
	if cfg.BindAddr == "" {
		cfg.BindAddr = "0.0.0.0:8080"
	}
	return cfg
}

// Validate checks the config is internally consistent. Currently every
// field has a safe default, so this always succeeds; it exists so callers
// follow the same Config-struct-with-Validate() convention used
// throughout the rest of strata's collaborators.
func (c Config) Validate() error {
	if c.BindAddr == "" {
		return fmt.Errorf("config: BIND_ADDR must not be empty")
	}
	if c.DuckDBBin == "" {
		return fmt.Errorf("config: DUCKDB_BIN must not be empty")
	}
	return nil
}
