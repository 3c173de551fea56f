// Package schema produces normalized, vendor-independent snapshots of
// tables, columns, primary keys, foreign keys, and indexes.
//
// An inspection issues a small fixed set of catalog queries per vendor
// and assembles the result client-side by joining on (schema, table).
// Snapshots are cached under an explicit key with a TTL; concurrent
// callers sharing a key collapse to one inspection.
package schema

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/leapstack-labs/dbkit/pkg/conn"
	"github.com/leapstack-labs/dbkit/pkg/core"
	"github.com/leapstack-labs/dbkit/pkg/dberr"
	"github.com/leapstack-labs/dbkit/pkg/dialect"
)

// DefaultTTL is the cache lifetime used when none is configured.
const DefaultTTL = 5 * time.Minute

// InspectOptions narrows an inspection. Tables accepts bare names or
// schema.table qualified names; every filter must pass identifier
// validation. CacheKey overrides the default key derived from the
// manager identity and the filter set.
type InspectOptions struct {
	Tables   []string
	CacheKey string
}

// Inspector runs catalog queries through a connection manager and caches
// the assembled snapshots.
type Inspector struct {
	mgr    *conn.Manager
	logger *slog.Logger
	ttl    time.Duration

	cache *snapshotCache
	group singleflight.Group
}

// New creates an Inspector. A non-positive ttl falls back to DefaultTTL;
// a nil logger discards.
func New(mgr *conn.Manager, ttl time.Duration, logger *slog.Logger) *Inspector {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Inspector{
		mgr:    mgr,
		logger: logger,
		ttl:    ttl,
		cache:  newSnapshotCache(),
	}
}

// Inspect returns a schema snapshot, served from cache when a fresh
// entry exists for the cache key. Filter validation happens before any
// query is issued.
func (i *Inspector) Inspect(ctx context.Context, opts InspectOptions) (*core.SchemaSnapshot, error) {
	for _, filter := range opts.Tables {
		if err := dialect.ValidateQualifiedIdentifier(filter, "table filter"); err != nil {
			return nil, dberr.Validationf("tables", "invalid table filter %q", filter)
		}
	}

	key := opts.CacheKey
	if key == "" {
		key = i.defaultCacheKey(opts.Tables)
	}

	if snap, ok := i.cache.get(key); ok {
		i.logger.Debug("schema cache hit", slog.String("key", key))
		return snap, nil
	}

	// Collapse concurrent misses on the same key to a single inspection;
	// latecomers share the winner's snapshot.
	v, err, _ := i.group.Do(key, func() (any, error) {
		if snap, ok := i.cache.get(key); ok {
			return snap, nil
		}
		snap, err := i.inspect(ctx, opts.Tables)
		if err != nil {
			return nil, err
		}
		i.cache.put(key, snap, i.ttl)
		return snap, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*core.SchemaSnapshot), nil
}

// InvalidateCache drops one cache entry, forcing a fresh inspection on
// the next call with that key.
func (i *Inspector) InvalidateCache(key string) {
	if key == "" {
		key = i.defaultCacheKey(nil)
	}
	i.cache.invalidate(key)
}

// ClearCache drops every cache entry.
func (i *Inspector) ClearCache() {
	i.cache.clear()
}

func (i *Inspector) defaultCacheKey(filters []string) string {
	if len(filters) == 0 {
		return i.mgr.ID()
	}
	sorted := append([]string(nil), filters...)
	sort.Strings(sorted)
	return i.mgr.ID() + ":" + strings.Join(sorted, ",")
}

// inspect runs the vendor catalog queries and assembles the snapshot.
func (i *Inspector) inspect(ctx context.Context, filters []string) (*core.SchemaSnapshot, error) {
	var (
		raw *catalogData
		err error
	)
	switch i.mgr.Vendor() {
	case core.PostgreSQL:
		raw, err = i.loadPostgres(ctx)
	case core.MySQL:
		raw, err = i.loadMySQL(ctx)
	case core.SQLite:
		raw, err = i.loadSQLite(ctx)
	default:
		return nil, fmt.Errorf("unsupported vendor %q", i.mgr.Vendor())
	}
	if err != nil {
		return nil, err
	}

	return assemble(i.mgr.Vendor(), i.mgr.Dialect().DefaultSchema, raw, filters), nil
}

// catalogData is the intermediate shape shared by all vendors: flat rows
// from each catalog query, keyed later by (schema, table).
type catalogData struct {
	tables  []tableRef
	columns map[tableKey][]core.SchemaColumn
	pks     map[tableKey]*core.PrimaryKey
	fks     map[tableKey][]core.ForeignKey
	indexes map[tableKey][]core.Index
}

type tableRef struct {
	schema string
	name   string
}

type tableKey struct {
	schema string
	name   string
}

func newCatalogData() *catalogData {
	return &catalogData{
		columns: make(map[tableKey][]core.SchemaColumn),
		pks:     make(map[tableKey]*core.PrimaryKey),
		fks:     make(map[tableKey][]core.ForeignKey),
		indexes: make(map[tableKey][]core.Index),
	}
}

// assemble joins the catalog data client-side and applies table filters.
// A bare filter name matches any schema; schema.table matches exactly.
func assemble(vendor core.Vendor, defaultSchema string, raw *catalogData, filters []string) *core.SchemaSnapshot {
	wanted := func(schema, name string) bool {
		if len(filters) == 0 {
			return true
		}
		for _, f := range filters {
			if s, t, ok := strings.Cut(f, "."); ok {
				if s == schema && t == name {
					return true
				}
				continue
			}
			if f == name {
				return true
			}
		}
		return false
	}

	snap := &core.SchemaSnapshot{Vendor: vendor, Tables: []core.SchemaTable{}}
	for _, ref := range raw.tables {
		if !wanted(ref.schema, ref.name) {
			continue
		}
		key := tableKey{schema: ref.schema, name: ref.name}
		table := core.SchemaTable{
			Schema:      ref.schema,
			Name:        ref.name,
			Columns:     raw.columns[key],
			PrimaryKey:  raw.pks[key],
			ForeignKeys: raw.fks[key],
			Indexes:     raw.indexes[key],
		}
		if table.Schema == defaultSchema && vendor == core.SQLite {
			table.Schema = ""
		}
		if table.Columns == nil {
			table.Columns = []core.SchemaColumn{}
		}
		snap.Tables = append(snap.Tables, table)
	}
	return snap
}

// str pulls a string column from a scanned row, tolerating NULLs.
func str(row core.Row, col string) string {
	v, ok := row[col]
	if !ok || v == nil {
		return ""
	}
	switch s := v.(type) {
	case string:
		return s
	case []byte:
		return string(s)
	default:
		return fmt.Sprintf("%v", s)
	}
}

// num pulls an integer column from a scanned row.
func num(row core.Row, col string) int64 {
	switch n := row[col].(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	case string:
		var out int64
		_, _ = fmt.Sscanf(n, "%d", &out)
		return out
	default:
		return 0
	}
}
