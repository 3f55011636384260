// Package store opens and owns connections to the relational backends taking
// part in a migration.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"records-migrate/internal/dialect"

	"go.uber.org/zap"
)

// Endpoint names used in logs and errors.
const (
	Source      = "source"
	Destination = "destination"
)

// Executor is implemented by both *sql.DB and *sql.Tx.
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// ConnectionError reports that an endpoint could not be opened.
type ConnectionError struct {
	Endpoint string
	Driver   string
	Err      error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connect to %s (%s): %v", e.Endpoint, e.Driver, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// Store is an open connection to one endpoint.
type Store struct {
	Name    string
	Dialect dialect.Dialect
	DB      *sql.DB

	log       *zap.Logger
	closeOnce sync.Once
}

// Open connects to the endpoint described by cfg and verifies the connection
// with a ping bounded by the configured connect timeout.
func Open(ctx context.Context, name string, cfg dialect.ConnConfig, log *zap.Logger) (*Store, error) {
	if log == nil {
		log = zap.NewNop()
	}

	log.Debug("Opening", zap.String("endpoint", name), zap.Any("config", cfg.Redacted()))
	d, err := dialect.GetDialect(cfg.Driver)
	if err != nil {
		return nil, &ConnectionError{Endpoint: name, Driver: cfg.Driver, Err: err}
	}

	dsn := cfg.DSN
	if dsn == "" {
		dsn = d.DSN(cfg)
	}

	db, err := sql.Open(d.DriverName(), dsn)
	if err != nil {
		return nil, &ConnectionError{Endpoint: name, Driver: cfg.Driver, Err: fmt.Errorf("failed to open db: %w", err)}
	}

	pingCtx, cancel := context.WithTimeout(ctx, time.Duration(cfg.Timeout())*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, &ConnectionError{Endpoint: name, Driver: cfg.Driver, Err: fmt.Errorf("failed to connect to db: %w", err)}
	}

	log.Info("Connected", zap.String("endpoint", name), zap.String("driver", d.DriverName()), zap.String("database", cfg.Database))
	return &Store{Name: name, Dialect: d, DB: db, log: log}, nil
}

// Close releases the connection pool. It is safe to call more than once and
// on a nil Store; close failures are logged only.
func (s *Store) Close() {
	if s == nil {
		return
	}
	s.closeOnce.Do(func() {
		if err := s.DB.Close(); err != nil {
			s.log.Warn("Close failed", zap.String("endpoint", s.Name), zap.Error(err))
			return
		}
		s.log.Info("Connection closed", zap.String("endpoint", s.Name))
	})
}

// Count returns SELECT COUNT(*) for table.
func (s *Store) Count(ctx context.Context, exec Executor, table string) (int64, error) {
	if exec == nil {
		exec = s.DB
	}
	var n int64
	if err := exec.QueryRowContext(ctx, s.Dialect.CountQuery(table)).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s on %s: %w", table, s.Name, err)
	}
	return n, nil
}

// Columns returns the column names of table as reported by the driver.
func (s *Store) Columns(ctx context.Context, table string) ([]string, error) {
	rows, err := s.DB.QueryContext(ctx, s.Dialect.ProbeColumnsQuery(table))
	if err != nil {
		return nil, fmt.Errorf("probe columns of %s on %s: %w", table, s.Name, err)
	}
	defer rows.Close()
	return rows.Columns()
}
