package sqlbuild

import (
	"fmt"
	"sort"
	"strings"

	"github.com/leapstack-labs/dbkit/pkg/core"
	"github.com/leapstack-labs/dbkit/pkg/dberr"
	"github.com/leapstack-labs/dbkit/pkg/dialect"
)

// InsertInput describes an INSERT of one or more rows. Column order is
// taken from the sorted keys of the first row; every row in a batch must
// carry exactly that column set.
//
// Returning requests a RETURNING clause and is rejected for MySQL, which
// has no generic RETURNING; set IDColumn instead and re-fetch by the
// generated id (see conn.Manager.ExecuteInsert).
type InsertInput struct {
	Vendor    core.Vendor
	Table     string
	Rows      []core.Row
	Returning []string
	IDColumn  string
}

// BuildInsert builds a parameterized single-row or batch INSERT.
func BuildInsert(in InsertInput) (*core.BuiltQuery, error) {
	d, err := resolveDialect(in.Vendor)
	if err != nil {
		return nil, err
	}
	if err := dialect.ValidateQualifiedIdentifier(in.Table, "table"); err != nil {
		return nil, err
	}
	if len(in.Rows) == 0 {
		return nil, dberr.Validationf("rows", "insert requires at least one row")
	}

	columns := sortedColumns(in.Rows[0])
	if len(columns) == 0 {
		// A single all-defaults row has well-defined semantics; a batch of
		// them does not (drivers disagree on the reported row count).
		if len(in.Rows) > 1 {
			return nil, dberr.Validationf("rows", "batch insert of default-values-only rows is not supported")
		}
		return buildDefaultValuesInsert(d, in)
	}
	for _, col := range columns {
		if err := dialect.ValidateIdentifier(col, "column"); err != nil {
			return nil, err
		}
	}
	if in.IDColumn != "" {
		if err := dialect.ValidateIdentifier(in.IDColumn, "idColumn"); err != nil {
			return nil, err
		}
	}
	if err := validateReturning(d, in.Returning); err != nil {
		return nil, err
	}

	quoted := make([]string, len(columns))
	for i, col := range columns {
		quoted[i] = d.QuoteIdentifier(col)
	}

	var (
		args   []any
		tuples = make([]string, 0, len(in.Rows))
		idx    = 1
	)
	for rowNum, row := range in.Rows {
		if len(row) != len(columns) {
			return nil, dberr.Validationf("rows", "row %d does not match the batch column set", rowNum)
		}
		holders := make([]string, len(columns))
		for i, col := range columns {
			val, ok := row[col]
			if !ok {
				return nil, dberr.Validationf("rows", "row %d is missing column %q", rowNum, col)
			}
			holders[i] = d.FormatPlaceholder(idx)
			idx++
			args = append(args, val)
		}
		tuples = append(tuples, "("+strings.Join(holders, ", ")+")")
	}

	sql := fmt.Sprintf("INSERT INTO %s (%s) VALUES %s",
		d.QuoteQualified(in.Table), strings.Join(quoted, ", "), strings.Join(tuples, ", "))
	if len(in.Returning) > 0 {
		sql += renderReturning(d, in.Returning)
	}

	return &core.BuiltQuery{SQL: sql, Args: args, Vendor: in.Vendor}, nil
}

func buildDefaultValuesInsert(d *dialect.Dialect, in InsertInput) (*core.BuiltQuery, error) {
	if err := validateReturning(d, in.Returning); err != nil {
		return nil, err
	}
	var sql string
	if in.Vendor == core.MySQL {
		sql = fmt.Sprintf("INSERT INTO %s () VALUES ()", d.QuoteQualified(in.Table))
	} else {
		sql = fmt.Sprintf("INSERT INTO %s DEFAULT VALUES", d.QuoteQualified(in.Table))
	}
	if len(in.Returning) > 0 {
		sql += renderReturning(d, in.Returning)
	}
	return &core.BuiltQuery{SQL: sql, Vendor: in.Vendor}, nil
}

func sortedColumns(row core.Row) []string {
	cols := make([]string, 0, len(row))
	for col := range row {
		cols = append(cols, col)
	}
	sort.Strings(cols)
	return cols
}
