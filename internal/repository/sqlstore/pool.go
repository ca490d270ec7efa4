package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jmoiron/sqlx"
)

// PoolObserver receives pool telemetry. The metrics package implements it.
type PoolObserver interface {
	ObserveAcquire(wait time.Duration)
	SetInUse(n int)
}

type nopObserver struct{}

func (nopObserver) ObserveAcquire(time.Duration) {}
func (nopObserver) SetInUse(int)                 {}

// Pool hands out at most size connections at a time.
//
// The slots channel is the bound: a send claims a slot, a receive frees it.
// When every slot is taken Acquire blocks until one frees up or the caller's
// context ends, which is the service's only backpressure. database/sql is
// capped at the same size so a claimed slot always maps to a real connection.
type Pool struct {
	db       *sqlx.DB
	slots    chan struct{}
	logger   *slog.Logger
	observer PoolObserver
	inUse    atomic.Int64
}

// PoolStats is a point-in-time view of the pool.
type PoolStats struct {
	Size  int
	InUse int
}

func NewPool(db *sqlx.DB, size int, logger *slog.Logger, observer PoolObserver) *Pool {
	if size < 1 {
		size = 1
	}
	if observer == nil {
		observer = nopObserver{}
	}
	db.SetMaxOpenConns(size)
	db.SetMaxIdleConns(size)

	return &Pool{
		db:       db,
		slots:    make(chan struct{}, size),
		logger:   logger,
		observer: observer,
	}
}

// Acquire blocks for a free slot and returns a dedicated connection. The
// release func is idempotent and must be called on every path.
func (p *Pool) Acquire(ctx context.Context) (*sqlx.Conn, func(), error) {
	start := time.Now()

	select {
	case p.slots <- struct{}{}:
	case <-ctx.Done():
		p.logger.Warn("gave up waiting for a database connection",
			slog.Duration("waited", time.Since(start)),
			slog.String("error", ctx.Err().Error()),
		)
		return nil, nil, fmt.Errorf("sqlstore: acquiring connection: %w", ctx.Err())
	}
	p.observer.ObserveAcquire(time.Since(start))
	p.observer.SetInUse(int(p.inUse.Add(1)))

	conn, err := p.db.Connx(ctx)
	if err != nil {
		p.free()
		return nil, nil, fmt.Errorf("sqlstore: opening connection: %w", err)
	}

	var once sync.Once
	release := func() {
		once.Do(func() {
			if err := conn.Close(); err != nil {
				p.logger.Warn("closing pooled connection", slog.String("error", err.Error()))
			}
			p.free()
		})
	}
	return conn, release, nil
}

func (p *Pool) free() {
	p.observer.SetInUse(int(p.inUse.Add(-1)))
	<-p.slots
}

// WithConn runs fn on a pooled connection and releases it afterwards, even
// if fn panics.
func (p *Pool) WithConn(ctx context.Context, fn func(*sqlx.Conn) error) error {
	conn, release, err := p.Acquire(ctx)
	if err != nil {
		return err
	}
	defer release()

	return fn(conn)
}

// WithTx runs fn inside one transaction on one pooled connection. fn's
// error (or panic) rolls the transaction back; nil commits it.
func (p *Pool) WithTx(ctx context.Context, fn func(*sqlx.Tx) error) (err error) {
	conn, release, err := p.Acquire(ctx)
	if err != nil {
		return err
	}
	defer release()

	tx, err := conn.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlstore: beginning transaction: %w", err)
	}

	defer func() {
		if r := recover(); r != nil {
			_ = tx.Rollback()
			panic(r)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			p.logger.Error("rolling back transaction",
				slog.String("error", rbErr.Error()),
				slog.String("cause", err.Error()),
			)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlstore: committing transaction: %w", err)
	}
	return nil
}

// Stats reports the bound and how many slots are claimed.
func (p *Pool) Stats() PoolStats {
	return PoolStats{Size: cap(p.slots), InUse: int(p.inUse.Load())}
}

// DB exposes the underlying handle for Rebind and driver checks.
func (p *Pool) DB() *sqlx.DB {
	return p.db
}
