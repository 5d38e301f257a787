package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/portalclube/payment-reconciler/internal/config"
)

// PostgresAdapter provides database access using a pgx connection pool.
// One adapter is constructed at process start and shared by every component
// that needs the durable store.
type PostgresAdapter struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewPostgresAdapter creates a new PostgreSQL adapter with connection pooling
func NewPostgresAdapter(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (*PostgresAdapter, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}

	poolConfig.MaxConns = cfg.MaxConns
	poolConfig.MinConns = cfg.MinConns

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	logger.Info("PostgreSQL adapter initialized",
		zap.String("database", cfg.Database),
		zap.String("host", cfg.Host),
		zap.Int32("max_conns", cfg.MaxConns),
		zap.Int32("min_conns", cfg.MinConns),
	)

	return &PostgresAdapter{
		pool:   pool,
		logger: logger,
	}, nil
}

// GetDB returns the underlying connection pool
func (a *PostgresAdapter) GetDB() *pgxpool.Pool {
	return a.pool
}

// Ping verifies connectivity to the database
func (a *PostgresAdapter) Ping(ctx context.Context) error {
	return a.pool.Ping(ctx)
}

// Close closes the database connection pool
func (a *PostgresAdapter) Close() {
	a.logger.Info("Closing PostgreSQL connection pool")
	a.pool.Close()
}

// WithTransaction executes fn within a database transaction. The transaction
// is rolled back if fn returns an error and committed otherwise.
func (a *PostgresAdapter) WithTransaction(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error {
	tx, err := a.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
	}()

	if err := fn(ctx, tx); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			a.logger.Error("Failed to rollback transaction",
				zap.Error(rbErr),
				zap.NamedError("original_error", err),
			)
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}
