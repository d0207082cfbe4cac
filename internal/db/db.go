package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tasktimer/internal/config"
	"tasktimer/internal/store"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const runningTimerConstraint = "uniq_tasks_running_timer"

// DB is the PostgreSQL implementation of store.Store.
type DB struct {
	*pgxpool.Pool
	txTimeout   time.Duration
	lockTimeout time.Duration
}

var _ store.Store = (*DB)(nil)

func New(ctx context.Context, cfg config.DatabaseConfig) (*DB, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.URL())
	if err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}

	// Configure connection pool and statement cache
	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	poolCfg.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol

	connectCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(connectCtx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("error creating connection pool: %w", err)
	}
	if err := pool.Ping(connectCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("error pinging database: %w", err)
	}

	return &DB{Pool: pool, txTimeout: cfg.TxTimeout, lockTimeout: cfg.LockTimeout}, nil
}

// InTx runs fn inside a transaction bounded by the configured timeouts.
func (db *DB) InTx(ctx context.Context, fn func(tx store.Tx) error) error {
	if db.txTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, db.txTimeout)
		defer cancel()
	}

	pgTx, err := db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = pgTx.Rollback(ctx) }()

	if db.lockTimeout > 0 {
		// SET does not take bind parameters.
		q := fmt.Sprintf("SET LOCAL lock_timeout = %d", db.lockTimeout.Milliseconds())
		if _, err := pgTx.Exec(ctx, q); err != nil {
			return fmt.Errorf("set lock timeout: %w", err)
		}
	}

	if err := fn(&Tx{tx: pgTx}); err != nil {
		return err
	}

	if err := pgTx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", mapErr(err))
	}
	return nil
}

// Tx is a store.Tx over one pgx transaction.
type Tx struct {
	tx pgx.Tx
}

var _ store.Tx = (*Tx)(nil)

// mapErr translates driver errors into store errors.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return store.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code == pgerrcode.UniqueViolation && pgErr.ConstraintName == runningTimerConstraint {
			return fmt.Errorf("%w: %s", store.ErrTimerTaken, pgErr.Message)
		}
	}
	return err
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type scanner interface {
	Scan(dest ...any) error
}

type rowsScanner interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close()
}

func now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}
