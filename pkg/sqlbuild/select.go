package sqlbuild

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/dbkit/pkg/core"
	"github.com/leapstack-labs/dbkit/pkg/dberr"
	"github.com/leapstack-labs/dbkit/pkg/dialect"
)

// SelectInput describes a SELECT statement. A nil Columns list selects *.
// Limit and Offset are ignored when negative or zero (Offset may be zero
// with a positive Limit, which is the common first page).
type SelectInput struct {
	Vendor  core.Vendor
	Table   string
	Columns []string
	Where   []core.WhereCondition
	OrderBy []OrderBy
	Limit   int
	Offset  int
}

// BuildSelect builds a parameterized SELECT from structured input. Every
// WHERE condition is validated against its value-shape invariant before
// any SQL is emitted.
func BuildSelect(in SelectInput) (*core.BuiltQuery, error) {
	d, err := resolveDialect(in.Vendor)
	if err != nil {
		return nil, err
	}
	if err := dialect.ValidateQualifiedIdentifier(in.Table, "table"); err != nil {
		return nil, err
	}

	cols := "*"
	if len(in.Columns) > 0 {
		quoted := make([]string, len(in.Columns))
		for i, c := range in.Columns {
			if err := dialect.ValidateIdentifier(c, "column"); err != nil {
				return nil, err
			}
			quoted[i] = d.QuoteIdentifier(c)
		}
		cols = strings.Join(quoted, ", ")
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "SELECT %s FROM %s", cols, d.QuoteQualified(in.Table))

	where, args, nextIdx, err := buildWhere(d, in.Where, 1)
	if err != nil {
		return nil, err
	}
	if where != "" {
		sb.WriteString(" WHERE " + where)
	}

	if len(in.OrderBy) > 0 {
		orderBy, err := buildOrderBy(d, in.OrderBy)
		if err != nil {
			return nil, err
		}
		sb.WriteString(" ORDER BY " + orderBy)
	}

	if in.Limit < 0 || in.Offset < 0 {
		return nil, dberr.Validationf("limit", "limit and offset must not be negative")
	}
	if in.Limit > 0 {
		sb.WriteString(" LIMIT " + d.FormatPlaceholder(nextIdx))
		nextIdx++
		args = append(args, in.Limit)
	}
	if in.Offset > 0 {
		if in.Limit == 0 && d.UnboundedLimit != "" {
			// MySQL and SQLite reject OFFSET without a LIMIT clause.
			sb.WriteString(" " + d.UnboundedLimit)
		}
		sb.WriteString(" OFFSET " + d.FormatPlaceholder(nextIdx))
		args = append(args, in.Offset)
	}

	return &core.BuiltQuery{SQL: sb.String(), Args: args, Vendor: in.Vendor}, nil
}
