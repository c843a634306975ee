package backend

import (
	"errors"
	"fmt"
	"strings"

	"finanzas/internal/config"
)

// Backends lists the primary stores a ledger can run on.
var Backends = []BackendType{SQLiteBackend, SheetsBackend, MemoryBackend}

// FromAppConfig picks the backend section of the application config and
// checks it.
func FromAppConfig(cfg *config.Config) (Config, error) {
	if cfg == nil {
		return Config{}, errors.New("app config is nil")
	}
	bc := Config{
		Type:                BackendType(strings.ToLower(strings.TrimSpace(cfg.DataBackend))),
		SQLiteDBPath:        cfg.SQLiteDBPath,
		GoogleSpreadsheetID: cfg.GoogleSpreadsheetID,
		GoogleAuth:          GoogleAuth(cfg),
		DataDirectory:       cfg.DataDir,
	}
	if err := bc.Validate(); err != nil {
		return Config{}, err
	}
	return bc, nil
}

// Validate reports the settings missing for the selected backend.
func (c Config) Validate() error {
	switch c.Type {
	case SQLiteBackend:
		if c.SQLiteDBPath == "" {
			return errors.New("sqlite backend needs SQLITE_DB_PATH")
		}
	case SheetsBackend:
		if c.GoogleSpreadsheetID == "" {
			return errors.New("sheets backend needs GOOGLE_SPREADSHEET_ID")
		}
	case MemoryBackend:
		// An empty DataDirectory starts with blank sheets.
	default:
		return fmt.Errorf("invalid backend type %q (want one of %s)", c.Type, backendNames())
	}
	return nil
}

func backendNames() string {
	names := make([]string, len(Backends))
	for i, b := range Backends {
		names[i] = b.String()
	}
	return strings.Join(names, ", ")
}
