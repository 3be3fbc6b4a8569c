package cmd

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/logging"
	"github.com/kozaktomas/face-attendance/internal/match"
	"github.com/kozaktomas/face-attendance/internal/store/postgres"
)

// backend bundles the pieces every database-backed command needs.
type backend struct {
	cfg     *config.Config
	pool    *postgres.Pool
	store   *postgres.Store
	service *attendance.Service
	logger  *zap.Logger
}

// openBackend loads configuration, connects to PostgreSQL, runs pending
// migrations and builds the attendance service with a freshly loaded
// recognition index.
func openBackend(ctx context.Context) (*backend, error) {
	cfg := config.Load()

	if cfg.Database.URL == "" {
		return nil, errors.New("DATABASE_URL environment variable is required")
	}

	logger, err := logging.New()
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}

	pool, err := postgres.Open(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize PostgreSQL: %w", err)
	}

	st := postgres.NewStore(pool)
	engine := match.NewEngine(match.NewIndex(), logger)
	service := attendance.NewService(cfg, st, engine, logger)

	if err := service.RebuildIndex(ctx); err != nil {
		_ = pool.Close()
		return nil, fmt.Errorf("building recognition index: %w", err)
	}

	return &backend{
		cfg:     cfg,
		pool:    pool,
		store:   st,
		service: service,
		logger:  logger,
	}, nil
}

// Close releases the database pool and flushes buffered log entries.
func (b *backend) Close() {
	_ = b.logger.Sync()
	_ = b.pool.Close()
}
