package backend

import (
	"context"

	"finanzas/internal/sheets"
	gsheet "finanzas/internal/sheets/google"
)

// CleanupFunc releases what a backend opened.
type CleanupFunc func() error

// BackendResult is an opened primary table.
type BackendResult struct {
	Table   sheets.Table
	Cleanup CleanupFunc
}

// Close runs the cleanup, if any.
func (r *BackendResult) Close() error {
	if r == nil || r.Cleanup == nil {
		return nil
	}
	return r.Cleanup()
}

// Pinger is implemented by tables that can report their health.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Factory interface {
	// CreateBackend opens the primary table and seeds it for schemas when
	// the backend supports seeding.
	CreateBackend(ctx context.Context, config Config, schemas []sheets.Schema) (*BackendResult, error)
}

// Config selects and locates the primary table.
type Config struct {
	Type BackendType

	SQLiteDBPath string

	GoogleSpreadsheetID string
	GoogleAuth          gsheet.Auth

	// DataDirectory holds "<sheet>.csv" seeds for the memory backend.
	DataDirectory string
}

// BackendType names a primary store, as set in DATA_BACKEND.
type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	SheetsBackend BackendType = "sheets"
	MemoryBackend BackendType = "memory"
)

func (bt BackendType) String() string {
	return string(bt)
}
