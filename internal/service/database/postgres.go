package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/kapu/blockext-go/internal/util"
	"github.com/lib/pq"
	"go.uber.org/zap"
)

const connectTimeout = 5 * time.Second

type PostgresConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
}

func (c PostgresConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		c.Host, c.Port, c.User, c.Password, c.Database)
}

// migrations run in order on every start; each must be idempotent.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS classifier_examples (
		project_id TEXT        NOT NULL,
		label      TEXT        NOT NULL,
		kind       TEXT        NOT NULL,
		position   INTEGER     NOT NULL,
		text       TEXT        NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (project_id, kind, label, position)
	)`,
	`CREATE INDEX IF NOT EXISTS classifier_examples_project_idx
		ON classifier_examples (project_id, kind)`,
}

// PostgresService owns the connection pool for the example repository.
type PostgresService struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewPostgresService(cfg PostgresConfig, logger *zap.Logger) (*PostgresService, error) {
	logger = util.OrNop(logger)

	connector, err := pq.NewConnector(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("invalid postgres config: %w", err)
	}
	db := sql.OpenDB(connector)
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}
	if err := migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	logger.Info("PostgreSQL connected",
		zap.String("host", cfg.Host),
		zap.Int("port", cfg.Port),
		zap.String("database", cfg.Database),
	)
	return &PostgresService{db: db, logger: logger}, nil
}

func migrate(ctx context.Context, db *sql.DB) error {
	for i, stmt := range migrations {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}
	return nil
}

func (ps *PostgresService) DB() *sql.DB {
	return ps.db
}

func (ps *PostgresService) Close() error {
	return ps.db.Close()
}
