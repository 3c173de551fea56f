// Package conn owns the pooled driver handle for one vendor and exposes
// the connection lifecycle, health checks, and the execute entry point.
//
// A Manager is explicitly constructed and caller-owned; there is no
// process-wide default connection. The transaction and stream layers
// borrow raw connections from it and must return them.
package conn

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	// Drivers for the three supported vendors.
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/leapstack-labs/dbkit/pkg/core"
	"github.com/leapstack-labs/dbkit/pkg/dberr"
	"github.com/leapstack-labs/dbkit/pkg/dialect"
	"github.com/leapstack-labs/dbkit/pkg/sqlbuild"
)

// State is the connection lifecycle state.
type State string

// Manager states.
const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateError        State = "error"
)

// PoolMetrics reports connection pool counters. For SQLite the pool is
// degenerate (at most one open connection).
type PoolMetrics struct {
	Total        int
	Idle         int
	Active       int
	WaitCount    int64
	WaitDuration time.Duration
}

// Manager owns one pooled database handle.
type Manager struct {
	id     string
	cfg    Config
	d      *dialect.Dialect
	logger *slog.Logger
	bus    *eventBus

	mu    sync.Mutex
	state State
	db    *sql.DB
}

// New validates the configuration and constructs a disconnected Manager.
// If logger is nil, a discard logger is used.
func New(cfg Config, logger *slog.Logger) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid connection config: %w", err)
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Manager{
		id:     uuid.New().String(),
		cfg:    cfg,
		d:      dialect.MustForVendor(cfg.Vendor),
		logger: logger,
		bus:    newEventBus(),
		state:  StateDisconnected,
	}, nil
}

// FromDB wraps an already-open pool in a connected Manager. The caller
// keeps ownership of lifecycle configuration (pool limits, DSN); the
// manager only borrows the handle. Dispose still closes it.
func FromDB(db *sql.DB, vendor core.Vendor, logger *slog.Logger) (*Manager, error) {
	if db == nil {
		return nil, fmt.Errorf("db must not be nil")
	}
	d, ok := dialect.ForVendor(vendor)
	if !ok {
		return nil, fmt.Errorf("unsupported vendor %q", vendor)
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Manager{
		id:     uuid.New().String(),
		cfg:    Config{Vendor: vendor},
		d:      d,
		logger: logger,
		bus:    newEventBus(),
		state:  StateConnected,
		db:     db,
	}, nil
}

// ID returns the manager's unique identity, usable as a schema cache key.
func (m *Manager) ID() string { return m.id }

// Vendor returns the configured vendor.
func (m *Manager) Vendor() core.Vendor { return m.cfg.Vendor }

// Dialect returns the dialect for the configured vendor.
func (m *Manager) Dialect() *dialect.Dialect { return m.d }

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// IsConnected reports whether the pool is established.
func (m *Manager) IsConnected() bool {
	return m.State() == StateConnected
}

// Subscribe registers a lifecycle event listener. Callers must
// Unsubscribe the returned channel when done.
func (m *Manager) Subscribe() chan Event {
	return m.bus.subscribe()
}

// Unsubscribe removes and closes a listener channel.
func (m *Manager) Unsubscribe(ch chan Event) {
	m.bus.unsubscribe(ch)
}

// Connect establishes the pool. It is idempotent: calling it while
// already connected is a no-op. On failure the manager transitions to
// the error state and the error is returned; there are no internal
// retries, but Connect may be called again (error -> connecting is a
// legal transition).
func (m *Manager) Connect(ctx context.Context) error {
	m.mu.Lock()
	if m.state == StateConnected {
		m.mu.Unlock()
		return nil
	}
	m.state = StateConnecting
	m.mu.Unlock()

	dsn, err := m.cfg.dsn()
	if err != nil {
		return m.failConnect(err)
	}

	m.logger.Debug("connecting", slog.String("vendor", m.cfg.Vendor.String()))

	db, err := sql.Open(m.d.DriverName, dsn)
	if err != nil {
		return m.failConnect(err)
	}
	m.applyPoolConfig(db)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return m.failConnect(err)
	}

	m.mu.Lock()
	if m.state == StateConnected && m.db != nil {
		// A concurrent Connect finished first; keep its pool.
		m.mu.Unlock()
		_ = db.Close()
		return nil
	}
	m.db = db
	m.state = StateConnected
	m.mu.Unlock()

	m.logger.Info("connected", slog.String("vendor", m.cfg.Vendor.String()))
	m.bus.publish(Event{Type: EventConnected, Vendor: m.cfg.Vendor, Time: time.Now()})
	return nil
}

func (m *Manager) failConnect(cause error) error {
	m.mu.Lock()
	m.state = StateError
	m.db = nil
	m.mu.Unlock()

	m.logger.Error("connect failed", slog.String("vendor", m.cfg.Vendor.String()), slog.Any("error", cause))
	err := dberr.NewConnectionError(cause)
	m.bus.publish(Event{Type: EventError, Vendor: m.cfg.Vendor, Err: err, Time: time.Now()})
	return err
}

func (m *Manager) applyPoolConfig(db *sql.DB) {
	pool := m.cfg.Pool
	maxOpen := pool.MaxOpenConns
	if m.d.MaxPoolSize > 0 && (maxOpen == 0 || maxOpen > m.d.MaxPoolSize) {
		maxOpen = m.d.MaxPoolSize
	}
	if maxOpen > 0 {
		db.SetMaxOpenConns(maxOpen)
	}
	if pool.MaxIdleConns > 0 {
		db.SetMaxIdleConns(pool.MaxIdleConns)
	}
	if pool.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(pool.ConnMaxLifetime)
	}
	if pool.ConnMaxIdleTime > 0 {
		db.SetConnMaxIdleTime(pool.ConnMaxIdleTime)
	}
}

// Disconnect drains and closes the pool. The manager returns to the
// disconnected state and may connect again later.
func (m *Manager) Disconnect() error {
	m.mu.Lock()
	db := m.db
	m.db = nil
	m.state = StateDisconnected
	m.mu.Unlock()

	if db == nil {
		return nil
	}
	err := db.Close()
	m.logger.Info("disconnected", slog.String("vendor", m.cfg.Vendor.String()))
	m.bus.publish(Event{Type: EventDisconnected, Vendor: m.cfg.Vendor, Time: time.Now()})
	if err != nil {
		return fmt.Errorf("failed to close pool: %w", err)
	}
	return nil
}

// Dispose disconnects and releases every other held resource, including
// event subscriptions. The manager must not be used afterwards.
func (m *Manager) Dispose() error {
	err := m.Disconnect()
	m.bus.close()
	return err
}

// Healthy issues a trivial round-trip query and reports the result. It
// never returns an error: any failure, including not being connected,
// reads as unhealthy.
func (m *Manager) Healthy(ctx context.Context) bool {
	db, err := m.handle()
	if err != nil {
		return false
	}
	var one int
	if err := db.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		m.logger.Debug("health check failed", slog.Any("error", err))
		return false
	}
	return one == 1
}

// PoolMetrics reports current pool counters.
func (m *Manager) PoolMetrics() PoolMetrics {
	db, err := m.handle()
	if err != nil {
		return PoolMetrics{}
	}
	stats := db.Stats()
	return PoolMetrics{
		Total:        stats.OpenConnections,
		Idle:         stats.Idle,
		Active:       stats.InUse,
		WaitCount:    stats.WaitCount,
		WaitDuration: stats.WaitDuration,
	}
}

// handle returns the live pool or a connection error.
func (m *Manager) handle() (*sql.DB, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateConnected || m.db == nil {
		return nil, dberr.NewConnectionError(fmt.Errorf("manager is %s", m.state))
	}
	return m.db, nil
}

// DB exposes the underlying pool for collaborators that need the raw
// handle (migrations). Application code should prefer Execute.
func (m *Manager) DB() (*sql.DB, error) {
	return m.handle()
}

// Acquire borrows one raw connection from the pool. The caller owns it
// until Close and must return it even on error; the transaction manager
// is the intended consumer.
func (m *Manager) Acquire(ctx context.Context) (*sql.Conn, error) {
	db, err := m.handle()
	if err != nil {
		return nil, err
	}
	c, err := db.Conn(ctx)
	if err != nil {
		return nil, dberr.Classify(m.cfg.Vendor, err)
	}
	return c, nil
}

// Execute runs a built statement against the pool and returns the
// uniform result shape. The vendor tag on the query must match the
// manager's vendor.
func (m *Manager) Execute(ctx context.Context, q *core.BuiltQuery) (*core.QueryResult, error) {
	if q == nil {
		return nil, dberr.Validationf("query", "query must not be nil")
	}
	if q.Vendor != m.cfg.Vendor {
		return nil, dberr.Validationf("vendor",
			"query is built for %s but the manager is %s", q.Vendor, m.cfg.Vendor)
	}
	db, err := m.handle()
	if err != nil {
		return nil, err
	}
	return Run(ctx, db, m.cfg.Vendor, q)
}

// ExecuteInput sanitizes a raw QueryInput (single statement, no DDL,
// named-parameter expansion) and executes it.
func (m *Manager) ExecuteInput(ctx context.Context, in core.QueryInput) (*core.QueryResult, error) {
	built, err := sqlbuild.Sanitize(in)
	if err != nil {
		return nil, err
	}
	return m.Execute(ctx, built)
}

// ExecuteInsert builds and runs an INSERT. On vendors with RETURNING the
// requested columns come back as rows; on MySQL, when IDColumn is set,
// the inserted row is re-fetched by the id the INSERT itself generated
// so callers get a uniform result either way.
func (m *Manager) ExecuteInsert(ctx context.Context, in sqlbuild.InsertInput) (*core.QueryResult, error) {
	if in.Vendor == "" {
		in.Vendor = m.cfg.Vendor
	}
	built, err := sqlbuild.BuildInsert(in)
	if err != nil {
		return nil, err
	}

	res, err := m.Execute(ctx, built)
	if err != nil {
		return nil, err
	}
	if m.cfg.Vendor != core.MySQL || in.IDColumn == "" || len(in.Rows) != 1 {
		return res, nil
	}
	return m.refetchByInsertID(ctx, in, res)
}

// refetchByInsertID selects the inserted row by IDColumn, using the
// generated id captured from the INSERT's own driver result. Querying
// LAST_INSERT_ID() separately would be wrong here: the function is
// per-connection in MySQL and a pooled re-query can land elsewhere.
func (m *Manager) refetchByInsertID(ctx context.Context, in sqlbuild.InsertInput, insertRes *core.QueryResult) (*core.QueryResult, error) {
	id := insertRes.LastInsertID
	if id == 0 {
		// No auto-increment value was generated; the bare insert result
		// is the best available answer.
		return insertRes, nil
	}

	sel, err := sqlbuild.BuildSelect(sqlbuild.SelectInput{
		Vendor: m.cfg.Vendor,
		Table:  in.Table,
		Where: []core.WhereCondition{
			{Column: in.IDColumn, Operator: core.OpEq, Value: id},
		},
	})
	if err != nil {
		return nil, err
	}
	fetched, err := m.Execute(ctx, sel)
	if err != nil {
		return nil, err
	}
	fetched.ExecutionTime += insertRes.ExecutionTime
	fetched.LastInsertID = id
	return fetched, nil
}
