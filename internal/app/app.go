// Package app wires configuration, logging and storage into a ready-to-use
// update store: it opens the configured database, applies migrations, and
// exposes the ingest pipeline plus the periodic maintenance entry points.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/dmakov/tg-update-store/internal/config"
	"github.com/dmakov/tg-update-store/internal/ingest"
	"github.com/dmakov/tg-update-store/internal/observability"
	"github.com/dmakov/tg-update-store/internal/repo"
	"github.com/dmakov/tg-update-store/internal/sysutil"
)

// Version is reported as the service version on emitted traces.
const Version = "0.1.0"

// App bundles the running components of the update store.
type App struct {
	Cfg    config.Config
	Log    zerolog.Logger
	DB     *gorm.DB
	Ingest *ingest.Service

	stopTracing func(context.Context) error
}

// New loads configuration from the environment and assembles the store.
func New() (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return NewWithConfig(cfg)
}

// NewWithConfig assembles the store from an explicit configuration.
func NewWithConfig(cfg config.Config) (*App, error) {
	sysutil.SetLogLevel(cfg.LogLevel)
	log := sysutil.NewLogger(cfg.LogPretty)

	stopTracing, err := observability.Setup(context.Background(), cfg.OTEL, Version)
	if err != nil {
		return nil, fmt.Errorf("tracing setup: %w", err)
	}

	var db *gorm.DB
	switch cfg.DBDriver {
	case config.DriverPostgres:
		db, err = repo.OpenPostgres(cfg.DBDSN)
	default:
		db, err = repo.OpenSQLite(cfg.DBPath)
	}
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if cfg.OTEL.Enabled {
		if err := observability.TraceDB(db); err != nil {
			return nil, fmt.Errorf("trace database: %w", err)
		}
	}
	if err := repo.Migrate(db); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Info().Str("driver", cfg.DBDriver).Msg("update store ready")
	return &App{
		Cfg:         cfg,
		Log:         log,
		DB:          db,
		Ingest:      ingest.New(db, log),
		stopTracing: stopTracing,
	}, nil
}

// PruneRequestLog drops request-log rows older than the configured retention
// and returns how many were removed.
func (a *App) PruneRequestLog(ctx context.Context) (int64, error) {
	cutoff := time.Now().Add(-a.Cfg.LimiterRetention)
	return repo.PruneRequestsBefore(ctx, a.DB, cutoff)
}

// Close flushes tracing and releases the database pool.
func (a *App) Close() error {
	if a.stopTracing != nil {
		_ = a.stopTracing(context.Background())
	}
	sqlDB, err := a.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
