package conn

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/leapstack-labs/dbkit/pkg/core"
	"github.com/leapstack-labs/dbkit/pkg/dberr"
)

// Querier is the minimal execution surface shared by *sql.DB, *sql.Conn,
// and *sql.Tx. The transaction layer runs built queries through it
// without caring which handle is underneath.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Run executes a built statement on any Querier, measuring wall-clock
// time around the call and classifying driver errors into the taxonomy.
// Statements that produce rows are detected by their leading keyword (or
// a RETURNING clause) and scanned into the uniform row shape.
func Run(ctx context.Context, q Querier, vendor core.Vendor, built *core.BuiltQuery) (*core.QueryResult, error) {
	start := time.Now()

	if returnsRows(built.SQL) {
		rows, err := q.QueryContext(ctx, built.SQL, built.Args...)
		if err != nil {
			return nil, dberr.Classify(vendor, err)
		}
		defer func() { _ = rows.Close() }()

		scanned, err := ScanRows(rows)
		if err != nil {
			return nil, dberr.Classify(vendor, err)
		}
		return &core.QueryResult{
			Rows:          scanned,
			RowCount:      int64(len(scanned)),
			ExecutionTime: time.Since(start),
		}, nil
	}

	res, err := q.ExecContext(ctx, built.SQL, built.Args...)
	if err != nil {
		return nil, dberr.Classify(vendor, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		// Some drivers cannot report an affected count; that is not a
		// failed statement.
		affected = 0
	}
	// LastInsertId is only meaningful on the connection that ran the
	// statement, so it must be read here and not re-queried later.
	lastID, err := res.LastInsertId()
	if err != nil {
		lastID = 0
	}
	return &core.QueryResult{
		Rows:          []core.Row{},
		RowCount:      affected,
		ExecutionTime: time.Since(start),
		LastInsertID:  lastID,
	}, nil
}

// ScanRows materializes sql.Rows into name-keyed rows, converting []byte
// values to strings for readability.
func ScanRows(rows *sql.Rows) ([]core.Row, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	results := make([]core.Row, 0, 16)
	for rows.Next() {
		values := make([]any, len(cols))
		valuePtrs := make([]any, len(cols))
		for i := range values {
			valuePtrs[i] = &values[i]
		}
		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, err
		}

		row := make(core.Row, len(cols))
		for i, col := range cols {
			val := values[i]
			if b, ok := val.([]byte); ok {
				val = string(b)
			}
			row[col] = val
		}
		results = append(results, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

var rowKeywords = map[string]struct{}{
	"SELECT":  {},
	"WITH":    {},
	"VALUES":  {},
	"SHOW":    {},
	"PRAGMA":  {},
	"EXPLAIN": {},
}

// returnsRows reports whether a statement should be run through
// QueryContext rather than ExecContext.
func returnsRows(sqlText string) bool {
	trimmed := strings.TrimSpace(sqlText)
	end := 0
	for end < len(trimmed) {
		ch := trimmed[end]
		if !(ch >= 'a' && ch <= 'z') && !(ch >= 'A' && ch <= 'Z') {
			break
		}
		end++
	}
	if _, ok := rowKeywords[strings.ToUpper(trimmed[:end])]; ok {
		return true
	}
	return strings.Contains(strings.ToUpper(sqlText), " RETURNING ")
}
