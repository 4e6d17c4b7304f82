package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"pm-intelligence/internal/common/config"
)

const (
	defaultAuditConns = 4
	auditConnLifetime = 30 * time.Minute
	auditPingTimeout  = 3 * time.Second
)

// PostgresClient holds the audit trail connection pool.
type PostgresClient struct {
	DB *sql.DB
}

func NewPostgres(cfg config.PostgresConfig) (*PostgresClient, error) {
	if cfg.Host == "" || cfg.Database == "" {
		return nil, errors.New("postgres audit store needs host and database")
	}
	if cfg.SSLMode == "" {
		cfg.SSLMode = "disable"
	}

	db, err := sql.Open("postgres", cfg.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("open audit database %s: %w", cfg.Database, err)
	}

	open, idle := cfg.MaxConnections, cfg.MaxIdle
	if open <= 0 {
		open = defaultAuditConns
	}
	if idle <= 0 || idle > open {
		idle = open / 2
	}
	db.SetMaxOpenConns(open)
	db.SetMaxIdleConns(idle)
	db.SetConnMaxLifetime(auditConnLifetime)

	return &PostgresClient{DB: db}, nil
}

// Ping bounds the round trip so a hung server cannot stall /ready.
func (c *PostgresClient) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, auditPingTimeout)
	defer cancel()
	if err := c.DB.PingContext(ctx); err != nil {
		return fmt.Errorf("audit database unreachable: %w", err)
	}
	return nil
}

func (c *PostgresClient) Close() error {
	if c == nil || c.DB == nil {
		return nil
	}
	return c.DB.Close()
}
