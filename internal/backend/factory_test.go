package backend

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"finanzas/internal/config"
	"finanzas/internal/services"
	"finanzas/internal/sheets"
	gsheet "finanzas/internal/sheets/google"
	"finanzas/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func schemas() []sheets.Schema {
	return services.DefaultSheetNames().Schemas()
}

func TestFromAppConfig(t *testing.T) {
	_, err := FromAppConfig(nil)
	assert.Error(t, err)

	_, err = FromAppConfig(&config.Config{DataBackend: "postgres"})
	assert.ErrorContains(t, err, "invalid backend type")

	_, err = FromAppConfig(&config.Config{DataBackend: "sheets"})
	assert.ErrorContains(t, err, "GOOGLE_SPREADSHEET_ID")

	cfg, err := FromAppConfig(&config.Config{DataBackend: " SQLite ", SQLiteDBPath: "x.db", DataDir: "seed"})
	require.NoError(t, err)
	assert.Equal(t, SQLiteBackend, cfg.Type)
	assert.Equal(t, "x.db", cfg.SQLiteDBPath)
	assert.Equal(t, "seed", cfg.DataDirectory)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"memory", Config{Type: MemoryBackend}, false},
		{"sqlite without path", Config{Type: SQLiteBackend}, true},
		{"sqlite", Config{Type: SQLiteBackend, SQLiteDBPath: "a.db"}, false},
		{"sheets without id", Config{Type: SheetsBackend}, true},
		{"unknown", Config{Type: "csv"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			assert.Equal(t, tt.wantErr, err != nil, "err = %v", err)
		})
	}
	assert.Equal(t, "sqlite, sheets, memory", backendNames())
}

func TestCreateMemoryBackendSeedsFromDataDir(t *testing.T) {
	dir := t.TempDir()
	seed := "fecha,importe,descripcion\n2024-03-01,250,bono\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Ahorros.csv"), []byte(seed), 0o644))

	res, err := NewFactory(nil).CreateBackend(context.Background(), Config{Type: MemoryBackend, DataDirectory: dir}, schemas())
	require.NoError(t, err)
	defer res.Close()

	ledger := services.NewLedger(res.Table, services.DefaultSheetNames(), nil, nil)
	snap, err := ledger.Savings.LoadAll(context.Background())
	require.NoError(t, err)
	require.Len(t, snap.Records, 1)
	assert.Equal(t, int64(250), snap.Records[0].Amount)
}

func TestCreateSQLiteBackend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "finanzas.db")
	res, err := NewFactory(nil).CreateBackend(context.Background(), Config{Type: SQLiteBackend, SQLiteDBPath: path}, schemas())
	require.NoError(t, err)

	_, ok := res.Table.(*storage.Table)
	assert.True(t, ok)
	p, ok := res.Table.(Pinger)
	require.True(t, ok)
	assert.NoError(t, p.Ping(context.Background()))
	assert.NoError(t, res.Close())
}

func TestCreateSheetsBackendWithoutCredentials(t *testing.T) {
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")
	_, err := NewFactory(nil).CreateBackend(context.Background(),
		Config{Type: SheetsBackend, GoogleSpreadsheetID: "abc", GoogleAuth: gsheet.Auth{ServiceAccountFile: "/missing/sa.json"}}, schemas())
	assert.Error(t, err)
}

func TestNewPublisherDisabledWithoutURL(t *testing.T) {
	pub, cleanup := NewPublisher(&config.Config{}, nil)
	assert.Nil(t, pub)
	assert.Nil(t, cleanup)
}
