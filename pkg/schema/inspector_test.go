package schema

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/dbkit/pkg/conn"
	"github.com/leapstack-labs/dbkit/pkg/core"
	"github.com/leapstack-labs/dbkit/pkg/dberr"
)

func newMockInspector(t *testing.T, ttl time.Duration) (*Inspector, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	mgr, err := conn.FromDB(db, core.PostgreSQL, nil)
	require.NoError(t, err)
	return New(mgr, ttl, nil), mock
}

// expectPostgresCatalog arms the five catalog queries with a small fixed
// schema: users (id PK, email unique-indexed) and orders (FK to users).
func expectPostgresCatalog(mock sqlmock.Sqlmock) {
	expectPostgresCatalogDelay(mock, 0)
}

// expectPostgresCatalogDelay is expectPostgresCatalog with the first
// query held open for firstDelay, so overlapping callers can be caught
// mid-load.
func expectPostgresCatalogDelay(mock sqlmock.Sqlmock, firstDelay time.Duration) {
	mock.ExpectQuery("information_schema.tables").
		WillDelayFor(firstDelay).
		WillReturnRows(sqlmock.NewRows([]string{"table_schema", "table_name"}).
			AddRow("public", "orders").
			AddRow("public", "users"))

	mock.ExpectQuery("information_schema.columns").
		WillReturnRows(sqlmock.NewRows([]string{
			"table_schema", "table_name", "column_name", "data_type",
			"is_nullable", "column_default", "ordinal_position",
		}).
			AddRow("public", "orders", "id", "bigint", "NO", "nextval('orders_id_seq')", 1).
			AddRow("public", "orders", "user_id", "bigint", "NO", nil, 2).
			AddRow("public", "users", "id", "bigint", "NO", "nextval('users_id_seq')", 1).
			AddRow("public", "users", "email", "text", "YES", nil, 2))

	mock.ExpectQuery("PRIMARY KEY").
		WillReturnRows(sqlmock.NewRows([]string{
			"table_schema", "table_name", "constraint_name", "column_name", "ordinal_position",
		}).
			AddRow("public", "orders", "orders_pkey", "id", 1).
			AddRow("public", "users", "users_pkey", "id", 1))

	mock.ExpectQuery("FOREIGN KEY").
		WillReturnRows(sqlmock.NewRows([]string{
			"table_schema", "table_name", "constraint_name", "column_name",
			"referenced_schema", "referenced_table", "referenced_column",
			"delete_rule", "update_rule", "ordinal_position",
		}).
			AddRow("public", "orders", "orders_user_id_fkey", "user_id",
				"public", "users", "id", "CASCADE", "NO ACTION", 1))

	mock.ExpectQuery("pg_index").
		WillReturnRows(sqlmock.NewRows([]string{
			"table_schema", "table_name", "index_name", "is_unique", "column_name",
		}).
			AddRow("public", "users", "users_email_idx", true, "email"))
}

func TestInspectAssemblesSnapshot(t *testing.T) {
	insp, mock := newMockInspector(t, time.Minute)
	expectPostgresCatalog(mock)

	snap, err := insp.Inspect(context.Background(), InspectOptions{})
	require.NoError(t, err)

	assert.Equal(t, core.PostgreSQL, snap.Vendor)
	require.Len(t, snap.Tables, 2)

	orders := snap.Tables[0]
	assert.Equal(t, "orders", orders.Name)
	assert.Equal(t, "public", orders.Schema)
	require.Len(t, orders.Columns, 2)
	assert.Equal(t, "id", orders.Columns[0].Name)
	assert.False(t, orders.Columns[0].Nullable)
	require.NotNil(t, orders.PrimaryKey)
	assert.Equal(t, []string{"id"}, orders.PrimaryKey.Columns)
	require.Len(t, orders.ForeignKeys, 1)
	fk := orders.ForeignKeys[0]
	assert.Equal(t, "orders_user_id_fkey", fk.Name)
	assert.Equal(t, []string{"user_id"}, fk.Columns)
	assert.Equal(t, "users", fk.ReferencedTable)
	assert.Equal(t, []string{"id"}, fk.ReferencedColumns)
	assert.Equal(t, "CASCADE", fk.OnDelete)

	users := snap.Tables[1]
	assert.Equal(t, "users", users.Name)
	assert.True(t, users.Columns[1].Nullable)
	require.Len(t, users.Indexes, 1)
	assert.Equal(t, "users_email_idx", users.Indexes[0].Name)
	assert.True(t, users.Indexes[0].Unique)
	assert.Equal(t, []string{"email"}, users.Indexes[0].Columns)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInspectServesFromCache(t *testing.T) {
	insp, mock := newMockInspector(t, time.Minute)
	expectPostgresCatalog(mock)

	first, err := insp.Inspect(context.Background(), InspectOptions{})
	require.NoError(t, err)

	// No further expectations armed: a second query would fail.
	second, err := insp.Inspect(context.Background(), InspectOptions{})
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// Concurrent inspections of the same key collapse into one catalog
// load: only one set of catalog queries is armed, the first held open
// long enough for the callers to overlap, and every caller gets the
// same snapshot.
func TestInspectConcurrentCallsCollapse(t *testing.T) {
	insp, mock := newMockInspector(t, time.Minute)
	expectPostgresCatalogDelay(mock, 50*time.Millisecond)

	const callers = 8
	var (
		wg    sync.WaitGroup
		snaps [callers]*core.SchemaSnapshot
		errs  [callers]error
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			snaps[i], errs[i] = insp.Inspect(context.Background(), InspectOptions{})
		}(i)
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Same(t, snaps[0], snaps[i])
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInvalidateCacheForcesRefresh(t *testing.T) {
	insp, mock := newMockInspector(t, time.Minute)

	expectPostgresCatalog(mock)
	_, err := insp.Inspect(context.Background(), InspectOptions{})
	require.NoError(t, err)

	insp.InvalidateCache("")

	expectPostgresCatalog(mock)
	_, err = insp.Inspect(context.Background(), InspectOptions{})
	require.NoError(t, err)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClearCacheForcesRefresh(t *testing.T) {
	insp, mock := newMockInspector(t, time.Minute)

	expectPostgresCatalog(mock)
	_, err := insp.Inspect(context.Background(), InspectOptions{})
	require.NoError(t, err)

	insp.ClearCache()

	expectPostgresCatalog(mock)
	_, err = insp.Inspect(context.Background(), InspectOptions{})
	require.NoError(t, err)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExpiredEntryRefreshes(t *testing.T) {
	insp, mock := newMockInspector(t, 10*time.Millisecond)

	expectPostgresCatalog(mock)
	_, err := insp.Inspect(context.Background(), InspectOptions{})
	require.NoError(t, err)

	time.Sleep(30 * time.Millisecond)

	expectPostgresCatalog(mock)
	_, err = insp.Inspect(context.Background(), InspectOptions{})
	require.NoError(t, err)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInspectFilterByTable(t *testing.T) {
	insp, mock := newMockInspector(t, time.Minute)
	expectPostgresCatalog(mock)

	snap, err := insp.Inspect(context.Background(), InspectOptions{Tables: []string{"users"}})
	require.NoError(t, err)

	require.Len(t, snap.Tables, 1)
	assert.Equal(t, "users", snap.Tables[0].Name)
}

func TestInspectFilterBySchemaQualifiedTable(t *testing.T) {
	insp, mock := newMockInspector(t, time.Minute)
	expectPostgresCatalog(mock)

	snap, err := insp.Inspect(context.Background(), InspectOptions{Tables: []string{"public.orders"}})
	require.NoError(t, err)

	require.Len(t, snap.Tables, 1)
	assert.Equal(t, "orders", snap.Tables[0].Name)
}

func TestInspectRejectsBadFilter(t *testing.T) {
	insp, _ := newMockInspector(t, time.Minute)

	_, err := insp.Inspect(context.Background(), InspectOptions{
		Tables: []string{"users; DROP TABLE users"},
	})
	var verr *dberr.ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestFilteredAndUnfilteredCacheSeparately(t *testing.T) {
	insp, mock := newMockInspector(t, time.Minute)

	expectPostgresCatalog(mock)
	full, err := insp.Inspect(context.Background(), InspectOptions{})
	require.NoError(t, err)
	assert.Len(t, full.Tables, 2)

	expectPostgresCatalog(mock)
	filtered, err := insp.Inspect(context.Background(), InspectOptions{Tables: []string{"users"}})
	require.NoError(t, err)
	assert.Len(t, filtered.Tables, 1)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExplicitCacheKey(t *testing.T) {
	insp, mock := newMockInspector(t, time.Minute)

	expectPostgresCatalog(mock)
	_, err := insp.Inspect(context.Background(), InspectOptions{CacheKey: "shared"})
	require.NoError(t, err)

	// Same explicit key, different filters: still a cache hit.
	_, err = insp.Inspect(context.Background(), InspectOptions{CacheKey: "shared", Tables: []string{"users"}})
	require.NoError(t, err)

	assert.NoError(t, mock.ExpectationsWereMet())
}
