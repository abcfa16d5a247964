package driver

import (
	"context"
	"database/sql"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// PoolConfig is the bounded, FIFO-acquisition connection pool policy of
// spec §5, realized on top of Go's own database/sql pool (SetMaxOpenConns
// already gives bounded-size + FIFO-blocking acquisition semantics; this
// type exists to make the policy caller-visible and to drive the retry
// wrapper below).
type PoolConfig struct {
	MaxOpen         int
	MaxIdle         int
	ConnMaxLifetime time.Duration
	AcquireTimeout  time.Duration
}

// DefaultPoolConfig mirrors a conservative single-task-per-connection
// policy: a task holds one connection for the duration of its outermost
// transaction (spec §5 "Connection ownership").
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		MaxOpen:         16,
		MaxIdle:         4,
		ConnMaxLifetime: 30 * time.Minute,
		AcquireTimeout:  5 * time.Second,
	}
}

// Apply configures db's pool per cfg.
func (cfg PoolConfig) Apply(db *sql.DB) {
	db.SetMaxOpenConns(cfg.MaxOpen)
	db.SetMaxIdleConns(cfg.MaxIdle)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
}

// AcquireConn blocks (within ctx/AcquireTimeout) until a connection can be
// checked out, retrying transient pool-exhaustion errors with bounded
// backoff (spec §5: "Pool policy is bounded-size with FIFO acquisition;
// exhaustion blocks the acquiring task").
func AcquireConn(ctx context.Context, db *sql.DB, cfg PoolConfig) (*sql.Conn, error) {
	ctx, cancel := context.WithTimeout(ctx, cfg.AcquireTimeout)
	defer cancel()

	var conn *sql.Conn
	op := func() error {
		c, err := db.Conn(ctx)
		if err != nil {
			return err
		}
		conn = c
		return nil
	}
	bo := backoff.WithContext(backoff.NewExponentialBackOff(), ctx)
	if err := backoff.Retry(op, bo); err != nil {
		return nil, err
	}
	return conn, nil
}
