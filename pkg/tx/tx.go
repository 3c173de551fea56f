// Package tx wraps a borrowed connection in BEGIN/COMMIT/ROLLBACK with
// nested savepoints and a wall-clock timeout.
//
// The timeout is cooperative: when it fires, the transaction flips into
// a terminal cancelled state, is rolled back, and its connection goes
// back to the pool, in that order. The caller's function is never
// interrupted forcefully; any call it makes after cancellation is
// rejected at the Execute entry point instead.
package tx

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/leapstack-labs/dbkit/pkg/conn"
	"github.com/leapstack-labs/dbkit/pkg/core"
	"github.com/leapstack-labs/dbkit/pkg/dberr"
	"github.com/leapstack-labs/dbkit/pkg/dialect"
	"github.com/leapstack-labs/dbkit/pkg/sqlbuild"
)

// Transaction phases. Exactly one terminal transition wins: either the
// timeout expires the transaction or the normal path completes it.
const (
	phaseRunning int32 = iota
	phaseExpired
	phaseCompleted
)

// Options configures one transaction.
type Options struct {
	// Timeout is the wall-clock budget for the whole transaction body.
	// Zero means no timeout.
	Timeout time.Duration
	// Logger receives rollback failures and timeout notices. Nil means
	// discard.
	Logger *slog.Logger
}

// Tx is a handle bound to one borrowed connection for the lifetime of a
// transaction. It must not be used after commit or rollback.
type Tx struct {
	vendor core.Vendor
	d      *dialect.Dialect
	sqlTx  *sql.Tx
	logger *slog.Logger

	timeout time.Duration
	phase   atomic.Int32

	mu    sync.Mutex
	spSeq int

	release func()
}

// WithTransaction borrows one connection from the manager, issues BEGIN,
// invokes fn, and commits on normal return. An error from fn rolls the
// transaction back and propagates unchanged; a rollback failure is
// logged, never returned in place of the original error. When the
// timeout elapses first, the returned error is a dberr.TimeoutError
// carrying the configured duration.
func WithTransaction(ctx context.Context, mgr *conn.Manager, opts Options, fn func(ctx context.Context, t *Tx) error) error {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	c, err := mgr.Acquire(ctx)
	if err != nil {
		return err
	}

	sqlTx, err := c.BeginTx(ctx, nil)
	if err != nil {
		_ = c.Close()
		return dberr.Classify(mgr.Vendor(), err)
	}

	var releaseOnce sync.Once
	t := &Tx{
		vendor:  mgr.Vendor(),
		d:       mgr.Dialect(),
		sqlTx:   sqlTx,
		logger:  logger,
		timeout: opts.Timeout,
		release: func() {
			releaseOnce.Do(func() { _ = c.Close() })
		},
	}

	var timer *time.Timer
	if opts.Timeout > 0 {
		timer = time.AfterFunc(opts.Timeout, t.expire)
	}

	fnErr := fn(ctx, t)

	if timer != nil {
		timer.Stop()
	}

	if fnErr != nil {
		if t.phase.CompareAndSwap(phaseRunning, phaseCompleted) {
			if rbErr := sqlTx.Rollback(); rbErr != nil {
				logger.Error("rollback failed", slog.Any("error", rbErr))
			}
			t.release()
		}
		if t.expired() {
			return t.timeoutError()
		}
		return fnErr
	}

	if !t.phase.CompareAndSwap(phaseRunning, phaseCompleted) {
		// The timeout won the race; expire already rolled back and
		// released the connection.
		return t.timeoutError()
	}
	if err := sqlTx.Commit(); err != nil {
		t.release()
		return dberr.Classify(t.vendor, err)
	}
	t.release()
	return nil
}

// expire is the timeout continuation. Order matters: new Execute calls
// are refused first, then the transaction is rolled back, then the
// connection returns to the pool.
func (t *Tx) expire() {
	if !t.phase.CompareAndSwap(phaseRunning, phaseExpired) {
		return
	}
	t.logger.Warn("transaction timed out, rolling back", slog.Duration("timeout", t.timeout))
	if err := t.sqlTx.Rollback(); err != nil {
		t.logger.Error("rollback after timeout failed", slog.Any("error", err))
	}
	t.release()
}

func (t *Tx) expired() bool {
	return t.phase.Load() == phaseExpired
}

func (t *Tx) timeoutError() error {
	return &dberr.TimeoutError{Op: "transaction", Timeout: t.timeout}
}

// guard refuses execution once the transaction is cancelled or
// completed; every execute entry point checks it first so a late call
// can never touch a released connection.
func (t *Tx) guard() error {
	switch t.phase.Load() {
	case phaseExpired:
		return t.timeoutError()
	case phaseCompleted:
		return dberr.Validationf("transaction", "transaction is already completed")
	}
	return nil
}

// Execute runs a built statement inside the transaction.
func (t *Tx) Execute(ctx context.Context, q *core.BuiltQuery) (*core.QueryResult, error) {
	if err := t.guard(); err != nil {
		return nil, err
	}
	if q.Vendor != t.vendor {
		return nil, dberr.Validationf("vendor",
			"query is built for %s but the transaction is %s", q.Vendor, t.vendor)
	}
	return conn.Run(ctx, t.sqlTx, t.vendor, q)
}

// ExecuteInput sanitizes and runs a raw QueryInput inside the
// transaction.
func (t *Tx) ExecuteInput(ctx context.Context, in core.QueryInput) (*core.QueryResult, error) {
	if err := t.guard(); err != nil {
		return nil, err
	}
	built, err := sqlbuild.Sanitize(in)
	if err != nil {
		return nil, err
	}
	return t.Execute(ctx, built)
}

// CreateSavepoint pushes a named savepoint. The name must satisfy the
// identifier grammar; names with spaces or special characters are
// rejected before any SQL is issued.
func (t *Tx) CreateSavepoint(ctx context.Context, name string) error {
	return t.savepointStmt(ctx, "SAVEPOINT ", name)
}

// RollbackToSavepoint rolls back to a named savepoint without ending the
// transaction.
func (t *Tx) RollbackToSavepoint(ctx context.Context, name string) error {
	return t.savepointStmt(ctx, "ROLLBACK TO SAVEPOINT ", name)
}

// ReleaseSavepoint discards a named savepoint, keeping its effects.
func (t *Tx) ReleaseSavepoint(ctx context.Context, name string) error {
	return t.savepointStmt(ctx, "RELEASE SAVEPOINT ", name)
}

func (t *Tx) savepointStmt(ctx context.Context, prefix, name string) error {
	if err := t.guard(); err != nil {
		return err
	}
	if err := dialect.ValidateIdentifier(name, "savepoint"); err != nil {
		return err
	}
	if _, err := t.sqlTx.ExecContext(ctx, prefix+t.d.QuoteIdentifier(name)); err != nil {
		return dberr.Classify(t.vendor, err)
	}
	return nil
}

// WithSavepoint runs fn under an automatically named savepoint. If fn
// fails, only work since the savepoint is rolled back and the inner
// error re-raises to the enclosing scope; the outer transaction stays
// usable.
func (t *Tx) WithSavepoint(ctx context.Context, fn func(ctx context.Context) error) error {
	t.mu.Lock()
	t.spSeq++
	name := fmt.Sprintf("sp_%d", t.spSeq)
	t.mu.Unlock()

	if err := t.CreateSavepoint(ctx, name); err != nil {
		return err
	}

	if err := fn(ctx); err != nil {
		if rbErr := t.RollbackToSavepoint(ctx, name); rbErr != nil {
			t.logger.Error("rollback to savepoint failed",
				slog.String("savepoint", name), slog.Any("error", rbErr))
		} else if relErr := t.ReleaseSavepoint(ctx, name); relErr != nil {
			t.logger.Error("release savepoint failed",
				slog.String("savepoint", name), slog.Any("error", relErr))
		}
		return err
	}

	return t.ReleaseSavepoint(ctx, name)
}
