package storage

import (
	"fmt"
	"os"
	"path/filepath"
)

// Drivers.
const (
	DriverFile   = "file"
	DriverSQLite = "sqlite"
	DriverMemory = "memory"
)

// Open builds the Provider for driver. For the file driver path is the
// data directory (created when missing); for sqlite it is the database file.
func Open(driver, path, key string) (Provider, error) {
	switch driver {
	case DriverFile, "":
		if err := os.MkdirAll(path, 0o755); err != nil {
			return nil, fmt.Errorf("storage: create data dir: %w", err)
		}
		return NewFS(path, key)
	case DriverSQLite:
		if dir := filepath.Dir(path); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("storage: create db dir: %w", err)
			}
		}
		return OpenSQLite(path, key)
	case DriverMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("storage: unknown driver %q", driver)
	}
}
