package config

import (
	"os"
	"strings"
)

const (
	// Store backends.
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

type Config struct {
	// StoreBackend selects the persistence substrate: "sqlite" (default)
	// or "memory" for an ephemeral run.
	StoreBackend string
	// DBPath is the SQLite file location.
	DBPath string
}

// Load reads configuration from the environment, falling back to defaults
// suited for a local run.
func Load() *Config {
	cfg := &Config{
		StoreBackend: BackendSQLite,
		DBPath:       "atm.db",
	}

	if backend := strings.TrimSpace(os.Getenv("ATM_STORE")); backend != "" {
		cfg.StoreBackend = strings.ToLower(backend)
	}

	if path := strings.TrimSpace(os.Getenv("ATM_DB_PATH")); path != "" {
		cfg.DBPath = path
	}

	return cfg
}
