package tx

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/dbkit/pkg/conn"
	"github.com/leapstack-labs/dbkit/pkg/core"
	"github.com/leapstack-labs/dbkit/pkg/dberr"
	"github.com/leapstack-labs/dbkit/pkg/sqlbuild"
)

func newMockManager(t *testing.T, vendor core.Vendor) (*conn.Manager, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	mgr, err := conn.FromDB(db, vendor, nil)
	require.NoError(t, err)
	return mgr, mock
}

func TestWithTransactionCommits(t *testing.T) {
	mgr, mock := newMockManager(t, core.PostgreSQL)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "users" SET "name" = $1 WHERE "id" = $2`).
		WithArgs("ada", 1).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := WithTransaction(context.Background(), mgr, Options{}, func(ctx context.Context, t *Tx) error {
		built, err := sqlbuild.BuildUpdate(sqlbuild.UpdateInput{
			Vendor: core.PostgreSQL,
			Table:  "users",
			Data:   core.Row{"name": "ada"},
			Where: []core.WhereCondition{
				{Column: "id", Operator: core.OpEq, Value: 1},
			},
		})
		if err != nil {
			return err
		}
		res, err := t.Execute(ctx, built)
		if err != nil {
			return err
		}
		if res.RowCount != 1 {
			return errors.New("expected one affected row")
		}
		return nil
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTransactionRollsBackOnError(t *testing.T) {
	mgr, mock := newMockManager(t, core.PostgreSQL)

	mock.ExpectBegin()
	mock.ExpectRollback()

	boom := errors.New("business rule failed")
	err := WithTransaction(context.Background(), mgr, Options{}, func(ctx context.Context, t *Tx) error {
		return boom
	})
	require.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTransactionTimeout(t *testing.T) {
	mgr, mock := newMockManager(t, core.PostgreSQL)

	mock.ExpectBegin()
	mock.ExpectRollback()

	released := make(chan struct{})
	err := WithTransaction(context.Background(), mgr, Options{Timeout: 30 * time.Millisecond},
		func(ctx context.Context, tx *Tx) error {
			// Outlive the budget, then observe that execution is refused.
			time.Sleep(150 * time.Millisecond)
			_, execErr := tx.Execute(ctx, sqlbuild.Raw(core.PostgreSQL, "SELECT 1"))
			var te *dberr.TimeoutError
			assert.ErrorAs(t, execErr, &te)
			close(released)
			return nil
		})

	<-released
	var te *dberr.TimeoutError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "transaction", te.Op)
	assert.Equal(t, 30*time.Millisecond, te.Timeout)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTransactionTimeoutOverridesFnError(t *testing.T) {
	mgr, mock := newMockManager(t, core.PostgreSQL)

	mock.ExpectBegin()
	mock.ExpectRollback()

	err := WithTransaction(context.Background(), mgr, Options{Timeout: 20 * time.Millisecond},
		func(ctx context.Context, tx *Tx) error {
			time.Sleep(120 * time.Millisecond)
			return errors.New("late failure")
		})

	var te *dberr.TimeoutError
	require.ErrorAs(t, err, &te)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTransactionFastBodyBeatsTimeout(t *testing.T) {
	mgr, mock := newMockManager(t, core.PostgreSQL)

	mock.ExpectBegin()
	mock.ExpectCommit()

	err := WithTransaction(context.Background(), mgr, Options{Timeout: 5 * time.Second},
		func(ctx context.Context, tx *Tx) error {
			return nil
		})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTxRefusedAfterCompletion(t *testing.T) {
	mgr, mock := newMockManager(t, core.PostgreSQL)

	mock.ExpectBegin()
	mock.ExpectCommit()

	var leaked *Tx
	err := WithTransaction(context.Background(), mgr, Options{}, func(ctx context.Context, t *Tx) error {
		leaked = t
		return nil
	})
	require.NoError(t, err)

	_, err = leaked.Execute(context.Background(), sqlbuild.Raw(core.PostgreSQL, "SELECT 1"))
	var verr *dberr.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, err.Error(), "already completed")
}

func TestTxExecuteRejectsVendorMismatch(t *testing.T) {
	mgr, mock := newMockManager(t, core.PostgreSQL)

	mock.ExpectBegin()
	mock.ExpectCommit()

	err := WithTransaction(context.Background(), mgr, Options{}, func(ctx context.Context, tx *Tx) error {
		_, execErr := tx.Execute(ctx, sqlbuild.Raw(core.SQLite, "SELECT 1"))
		var verr *dberr.ValidationError
		assert.ErrorAs(t, execErr, &verr)
		return nil
	})
	require.NoError(t, err)
}

func TestSavepoints(t *testing.T) {
	mgr, mock := newMockManager(t, core.PostgreSQL)

	mock.ExpectBegin()
	mock.ExpectExec(`SAVEPOINT "before_risky"`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`ROLLBACK TO SAVEPOINT "before_risky"`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`RELEASE SAVEPOINT "before_risky"`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	err := WithTransaction(context.Background(), mgr, Options{}, func(ctx context.Context, t *Tx) error {
		if err := t.CreateSavepoint(ctx, "before_risky"); err != nil {
			return err
		}
		if err := t.RollbackToSavepoint(ctx, "before_risky"); err != nil {
			return err
		}
		return t.ReleaseSavepoint(ctx, "before_risky")
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSavepointNameValidated(t *testing.T) {
	mgr, mock := newMockManager(t, core.PostgreSQL)

	mock.ExpectBegin()
	mock.ExpectRollback()

	err := WithTransaction(context.Background(), mgr, Options{}, func(ctx context.Context, t *Tx) error {
		return t.CreateSavepoint(ctx, "bad name; DROP TABLE users")
	})
	var verr *dberr.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithSavepointReleasesOnSuccess(t *testing.T) {
	mgr, mock := newMockManager(t, core.PostgreSQL)

	mock.ExpectBegin()
	mock.ExpectExec(`SAVEPOINT "sp_1"`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`RELEASE SAVEPOINT "sp_1"`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	err := WithTransaction(context.Background(), mgr, Options{}, func(ctx context.Context, t *Tx) error {
		return t.WithSavepoint(ctx, func(ctx context.Context) error {
			return nil
		})
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithSavepointRollsBackInnerFailure(t *testing.T) {
	mgr, mock := newMockManager(t, core.PostgreSQL)

	mock.ExpectBegin()
	mock.ExpectExec(`SAVEPOINT "sp_1"`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`ROLLBACK TO SAVEPOINT "sp_1"`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`RELEASE SAVEPOINT "sp_1"`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`SAVEPOINT "sp_2"`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`RELEASE SAVEPOINT "sp_2"`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	inner := errors.New("partial failure")
	err := WithTransaction(context.Background(), mgr, Options{}, func(ctx context.Context, t *Tx) error {
		if err := t.WithSavepoint(ctx, func(ctx context.Context) error {
			return inner
		}); !errors.Is(err, inner) {
			return errors.New("inner error should re-raise")
		}
		// The outer transaction stays usable after a savepoint rollback.
		return t.WithSavepoint(ctx, func(ctx context.Context) error {
			return nil
		})
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
