package backend

import (
	"errors"
	"fmt"

	"scuola/internal/config"
)

var allTypes = []BackendType{MemoryBackend, SheetsBackend, SQLiteBackend, PostgresBackend}

// FromAppConfig picks the backend settings out of the process configuration.
func FromAppConfig(cfg *config.Config) (Config, error) {
	if cfg == nil {
		return Config{}, errors.New("backend: nil app config")
	}
	c := Config{
		Type:                     BackendType(cfg.DataBackend),
		DataDirectory:            cfg.DataDir,
		SQLiteDBPath:             cfg.SQLiteDBPath,
		PostgresURL:              cfg.PostgresURL,
		GoogleSpreadsheetID:      cfg.GoogleSpreadsheetID,
		GoogleServiceAccountJSON: cfg.GoogleServiceAccountJSON,
		GoogleServiceAccountFile: cfg.GoogleServiceAccountFile,
		SheetsMetadataTTL:        cfg.SheetsMetadataTTL,
	}
	if !c.Type.IsValid() {
		return Config{}, fmt.Errorf("backend: unknown type %q (want one of %v)", cfg.DataBackend, TypeNames())
	}
	return c, nil
}

// Validate checks the one setting each backend cannot start without.
func (c Config) Validate() error {
	var missing string
	switch c.Type {
	case MemoryBackend:
		return nil
	case SQLiteBackend:
		if c.SQLiteDBPath == "" {
			missing = "SQLite database path"
		}
	case PostgresBackend:
		if c.PostgresURL == "" {
			missing = "Postgres URL"
		}
	case SheetsBackend:
		if c.GoogleSpreadsheetID == "" {
			missing = "Google Spreadsheet ID"
		}
	default:
		return fmt.Errorf("invalid backend type: %s", c.Type)
	}
	if missing != "" {
		return fmt.Errorf("%s is required for %s backend", missing, c.Type)
	}
	return nil
}

// TypeNames lists the accepted DATA_BACKEND values.
func TypeNames() []string {
	out := make([]string, len(allTypes))
	for i, t := range allTypes {
		out[i] = t.String()
	}
	return out
}
