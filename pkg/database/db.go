package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/kikokaraba/srei-sub004/pkg/metrics"
)

// DB is the subset of sqlx.DB the repositories depend on. Keeping it as an
// interface lets tests swap in a fake store without a running Postgres.
type DB interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	GetContext(ctx context.Context, dest any, query string, args ...any) error
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
	QueryxContext(ctx context.Context, query string, args ...any) (*sqlx.Rows, error)
	NamedExecContext(ctx context.Context, query string, arg any) (sql.Result, error)
	PingContext(ctx context.Context) error
	Close() error
}

type DatabaseInstance struct {
	*sqlx.DB
	logger ectologger.Logger
}

func NewDatabaseInstance(db *sqlx.DB, logger ectologger.Logger) DB {
	return &DatabaseInstance{
		DB:     db,
		logger: logger,
	}
}

// Durations are observed per operation kind rather than per query to keep
// the metric cardinality flat.

func (d *DatabaseInstance) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	start := time.Now()
	res, err := d.DB.ExecContext(ctx, query, args...)
	metrics.RecordDatabaseQuery("exec", time.Since(start).Seconds())
	return res, err
}

func (d *DatabaseInstance) GetContext(ctx context.Context, dest any, query string, args ...any) error {
	start := time.Now()
	err := d.DB.GetContext(ctx, dest, query, args...)
	metrics.RecordDatabaseQuery("get", time.Since(start).Seconds())
	return err
}

func (d *DatabaseInstance) SelectContext(ctx context.Context, dest any, query string, args ...any) error {
	start := time.Now()
	err := d.DB.SelectContext(ctx, dest, query, args...)
	metrics.RecordDatabaseQuery("select", time.Since(start).Seconds())
	return err
}

func (d *DatabaseInstance) QueryxContext(ctx context.Context, query string, args ...any) (*sqlx.Rows, error) {
	start := time.Now()
	rows, err := d.DB.QueryxContext(ctx, query, args...)
	metrics.RecordDatabaseQuery("queryx", time.Since(start).Seconds())
	return rows, err
}

func (d *DatabaseInstance) NamedExecContext(ctx context.Context, query string, arg any) (sql.Result, error) {
	start := time.Now()
	res, err := d.DB.NamedExecContext(ctx, query, arg)
	metrics.RecordDatabaseQuery("named_exec", time.Since(start).Seconds())
	return res, err
}

// ConnectionConfig holds the Postgres connection settings
type ConnectionConfig struct {
	Driver          string
	Host            string
	Port            string
	UserName        string
	Password        string
	Name            string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	MaxPingAttempts int
}

// Connect opens the Postgres connection pool and verifies it with a ping
func Connect(ctx context.Context, cfg ConnectionConfig, logger ectologger.Logger) (DB, error) {
	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.UserName, cfg.Password, cfg.Name, cfg.SSLMode)

	db, err := sqlx.Open(cfg.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	attempts := cfg.MaxPingAttempts
	if attempts < 1 {
		attempts = 1
	}

	// Fibonacci backoff sequence
	a, b := 1, 1
	var pingErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		pingErr = db.PingContext(ctx)
		if pingErr == nil {
			break
		}
		if attempt == attempts {
			break
		}
		logger.WithError(pingErr).Infof("Database ping failed, retrying in %d seconds (attempt %d/%d)", a, attempt, attempts)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Duration(a) * time.Second):
		}
		a, b = b, a+b
	}
	if pingErr != nil {
		return nil, fmt.Errorf("failed to ping database: %w", pingErr)
	}

	logger.WithFields(map[string]any{"host": cfg.Host, "database": cfg.Name}).Info("Connected to database")
	return NewDatabaseInstance(db, logger), nil
}
