package backend

import (
	"context"
	"fmt"

	"finanzas/internal/amqp"
	"finanzas/internal/config"
	"finanzas/internal/log"
	"finanzas/internal/services"
	"finanzas/internal/sheets"
	gsheet "finanzas/internal/sheets/google"
	"finanzas/internal/sheets/memory"
	"finanzas/internal/storage"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *log.Logger) *DefaultFactory {
	if logger == nil {
		logger = log.Discard()
	}
	return &DefaultFactory{logger: logger.WithComponent(log.ComponentBackend)}
}

var _ Factory = (*DefaultFactory)(nil)

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, cfg Config, schemas []sheets.Schema) (*BackendResult, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch cfg.Type {
	case SQLiteBackend:
		return f.createSQLiteBackend(ctx, cfg)
	case SheetsBackend:
		return f.createSheetsBackend(ctx, cfg)
	case MemoryBackend:
		return f.createMemoryBackend(ctx, cfg, schemas)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", cfg.Type)
	}
}

func (f *DefaultFactory) createSQLiteBackend(ctx context.Context, cfg Config) (*BackendResult, error) {
	table, err := storage.Open(cfg.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite table: %w", err)
	}
	f.logger.InfoContext(ctx, "Initialized SQLite backend",
		log.FieldBackend, SQLiteBackend,
		"db_path", cfg.SQLiteDBPath)
	return &BackendResult{Table: table, Cleanup: table.Close}, nil
}

func (f *DefaultFactory) createSheetsBackend(ctx context.Context, cfg Config) (*BackendResult, error) {
	cli, err := NewSheetsClient(ctx, cfg.GoogleSpreadsheetID, cfg.GoogleAuth)
	if err != nil {
		return nil, err
	}
	f.logger.InfoContext(ctx, "Initialized Google Sheets backend", log.FieldBackend, SheetsBackend)
	return &BackendResult{Table: cli}, nil
}

func (f *DefaultFactory) createMemoryBackend(ctx context.Context, cfg Config, schemas []sheets.Schema) (*BackendResult, error) {
	dataDir := cfg.DataDirectory
	if dataDir == "" {
		dataDir = "data"
	}
	store, err := memory.NewFromFiles(dataDir, schemas...)
	if err != nil {
		return nil, fmt.Errorf("failed to seed memory backend: %w", err)
	}
	f.logger.InfoContext(ctx, "Initialized memory backend",
		log.FieldBackend, MemoryBackend,
		"data_directory", dataDir)
	return &BackendResult{Table: store}, nil
}

// GoogleAuth collects the Google credential settings of cfg.
func GoogleAuth(cfg *config.Config) gsheet.Auth {
	return gsheet.Auth{
		ServiceAccountJSON: cfg.GoogleServiceAccountJSON,
		ServiceAccountFile: cfg.GoogleServiceAccountFile,
		OAuthClientJSON:    cfg.GoogleOAuthClientJSON,
		OAuthClientFile:    cfg.GoogleOAuthClientFile,
		OAuthTokenJSON:     cfg.GoogleOAuthTokenJSON,
		OAuthTokenFile:     cfg.GoogleOAuthTokenFile,
	}
}

// NewSheetsClient resolves credentials and opens a Google Sheets client
// for spreadsheetID.
func NewSheetsClient(ctx context.Context, spreadsheetID string, auth gsheet.Auth) (*gsheet.Client, error) {
	creds, err := auth.ClientOption(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load Google credentials: %w", err)
	}
	cli, err := gsheet.New(ctx, spreadsheetID, creds)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
	}
	return cli, nil
}

// NewPublisher connects to the broker when AMQP is configured. Without a
// URL, or when the broker is unreachable, it returns a nil publisher and
// the ledger runs without change events.
func NewPublisher(cfg *config.Config, logger *log.Logger) (services.EventPublisher, CleanupFunc) {
	if logger == nil {
		logger = log.Discard()
	}
	logger = logger.WithComponent(log.ComponentBackend)
	if cfg.AMQPURL == "" {
		logger.Info("AMQP not configured, change events disabled")
		return nil, nil
	}
	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
	if err != nil {
		logger.Warn("Failed to initialize AMQP client, continuing without change events", log.FieldError, err)
		return nil, nil
	}
	logger.Info("Initialized AMQP client",
		"exchange", cfg.AMQPExchange,
		"queue", cfg.AMQPQueue)
	return client, client.Close
}
