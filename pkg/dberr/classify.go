package dberr

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"modernc.org/sqlite"

	"github.com/leapstack-labs/dbkit/pkg/core"
)

// SQLite extended result codes for constraint failures.
const (
	sqliteConstraintUnique     = 2067
	sqliteConstraintPrimaryKey = 1555
	sqliteConstraintForeignKey = 787
	sqliteConstraintNotNull    = 1299
	sqliteConstraintCheck      = 275
)

// Classify maps a raw driver error into the taxonomy. Vendor error codes
// are consulted first (SQLSTATE for PostgreSQL, error numbers for MySQL,
// extended result codes for SQLite); message substrings are only a
// fallback for drivers that wrap or rewrite the real cause. The walk uses
// errors.As, so wrapped causes are found at any depth.
//
// A nil input returns nil. Errors already belonging to the taxonomy pass
// through unchanged.
func Classify(vendor core.Vendor, err error) error {
	if err == nil {
		return nil
	}
	if alreadyClassified(err) {
		return err
	}

	switch vendor {
	case core.PostgreSQL:
		if c := classifyPostgres(err); c != nil {
			return c
		}
	case core.MySQL:
		if c := classifyMySQL(err); c != nil {
			return c
		}
	case core.SQLite:
		if c := classifySQLite(err); c != nil {
			return c
		}
	}

	if c := classifyByMessage(err); c != nil {
		return c
	}
	return &DatabaseError{cause: err}
}

func alreadyClassified(err error) bool {
	var (
		ve *ValidationError
		cv *ConstraintViolationError
		te *TimeoutError
		ce *ConnectionError
		de *DatabaseError
	)
	return errors.As(err, &ve) || errors.As(err, &cv) || errors.As(err, &te) ||
		errors.As(err, &ce) || errors.As(err, &de) || errors.Is(err, ErrStreamCancelled)
}

func classifyPostgres(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return nil
	}
	switch pgErr.Code {
	case "23505":
		return &ConstraintViolationError{Kind: ConstraintUnique, Constraint: pgErr.ConstraintName, cause: err}
	case "23503":
		return &ConstraintViolationError{
			Kind:        ConstraintForeignKey,
			Constraint:  pgErr.ConstraintName,
			CascadeHint: strings.Contains(pgErr.Detail, "still referenced"),
			cause:       err,
		}
	case "23502":
		return &ConstraintViolationError{Kind: ConstraintNotNull, Constraint: pgErr.ColumnName, cause: err}
	case "23514":
		return &ConstraintViolationError{Kind: ConstraintCheck, Constraint: pgErr.ConstraintName, cause: err}
	}
	// Class 08: connection exceptions.
	if strings.HasPrefix(pgErr.Code, "08") {
		return &ConnectionError{cause: err}
	}
	return nil
}

func classifyMySQL(err error) error {
	var myErr *mysql.MySQLError
	if !errors.As(err, &myErr) {
		return nil
	}
	switch myErr.Number {
	case 1062, 1169:
		return &ConstraintViolationError{Kind: ConstraintUnique, cause: err}
	case 1451:
		// Cannot delete or update a parent row.
		return &ConstraintViolationError{Kind: ConstraintForeignKey, CascadeHint: true, cause: err}
	case 1452:
		return &ConstraintViolationError{Kind: ConstraintForeignKey, cause: err}
	case 1048, 1364:
		return &ConstraintViolationError{Kind: ConstraintNotNull, cause: err}
	case 3819:
		return &ConstraintViolationError{Kind: ConstraintCheck, cause: err}
	case 1040, 1045, 2002, 2003, 2005:
		return &ConnectionError{cause: err}
	}
	return nil
}

func classifySQLite(err error) error {
	var sqErr *sqlite.Error
	if !errors.As(err, &sqErr) {
		return nil
	}
	switch sqErr.Code() {
	case sqliteConstraintUnique, sqliteConstraintPrimaryKey:
		return &ConstraintViolationError{Kind: ConstraintUnique, cause: err}
	case sqliteConstraintForeignKey:
		return &ConstraintViolationError{Kind: ConstraintForeignKey, cause: err}
	case sqliteConstraintNotNull:
		return &ConstraintViolationError{Kind: ConstraintNotNull, cause: err}
	case sqliteConstraintCheck:
		return &ConstraintViolationError{Kind: ConstraintCheck, cause: err}
	}
	return nil
}

// classifyByMessage is the stopgap for drivers that surface constraint
// failures only as text. It inspects the whole unwrap chain.
func classifyByMessage(err error) error {
	for e := err; e != nil; e = errors.Unwrap(e) {
		msg := strings.ToLower(e.Error())
		switch {
		case strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate entry") ||
			strings.Contains(msg, "duplicate key"):
			return &ConstraintViolationError{Kind: ConstraintUnique, cause: err}
		case strings.Contains(msg, "foreign key constraint"):
			return &ConstraintViolationError{
				Kind:        ConstraintForeignKey,
				CascadeHint: strings.Contains(msg, "delete"),
				cause:       err,
			}
		case strings.Contains(msg, "not-null constraint") || strings.Contains(msg, "cannot be null") ||
			strings.Contains(msg, "not null constraint"):
			return &ConstraintViolationError{Kind: ConstraintNotNull, cause: err}
		case strings.Contains(msg, "connection refused") || strings.Contains(msg, "connection reset"):
			return &ConnectionError{cause: err}
		}
	}
	return nil
}
