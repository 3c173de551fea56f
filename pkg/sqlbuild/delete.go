package sqlbuild

import (
	"fmt"

	"github.com/leapstack-labs/dbkit/pkg/core"
	"github.com/leapstack-labs/dbkit/pkg/dberr"
	"github.com/leapstack-labs/dbkit/pkg/dialect"
)

// SoftDelete rewrites a DELETE into an UPDATE that sets a marker column
// (deleted_at, is_deleted, ...) instead of removing rows.
type SoftDelete struct {
	Column string
	Value  any
}

// DeleteInput describes a DELETE. A DELETE with no conditions is rejected
// unless AllowFullTableDelete is explicitly true; this guards against
// accidental full-table deletes.
type DeleteInput struct {
	Vendor               core.Vendor
	Table                string
	Where                []core.WhereCondition
	AllowFullTableDelete bool
	SoftDelete           *SoftDelete
	Returning            []string
}

// BuildDelete builds a parameterized DELETE, or an UPDATE when SoftDelete
// is set.
func BuildDelete(in DeleteInput) (*core.BuiltQuery, error) {
	d, err := resolveDialect(in.Vendor)
	if err != nil {
		return nil, err
	}
	if err := dialect.ValidateQualifiedIdentifier(in.Table, "table"); err != nil {
		return nil, err
	}
	if len(in.Where) == 0 && !in.AllowFullTableDelete {
		return nil, dberr.Validationf("where",
			"delete without conditions is rejected; set AllowFullTableDelete to delete every row")
	}
	if err := validateReturning(d, in.Returning); err != nil {
		return nil, err
	}

	if sd := in.SoftDelete; sd != nil {
		if err := dialect.ValidateIdentifier(sd.Column, "softDelete.column"); err != nil {
			return nil, err
		}
		return buildSoftDelete(d, in, sd)
	}

	where, args, _, err := buildWhere(d, in.Where, 1)
	if err != nil {
		return nil, err
	}

	sql := "DELETE FROM " + d.QuoteQualified(in.Table)
	if where != "" {
		sql += " WHERE " + where
	}
	if len(in.Returning) > 0 {
		sql += renderReturning(d, in.Returning)
	}

	return &core.BuiltQuery{SQL: sql, Args: args, Vendor: in.Vendor}, nil
}

func buildSoftDelete(d *dialect.Dialect, in DeleteInput, sd *SoftDelete) (*core.BuiltQuery, error) {
	args := []any{sd.Value}
	where, whereArgs, _, err := buildWhere(d, in.Where, 2)
	if err != nil {
		return nil, err
	}
	args = append(args, whereArgs...)

	sql := fmt.Sprintf("UPDATE %s SET %s = %s",
		d.QuoteQualified(in.Table), d.QuoteIdentifier(sd.Column), d.FormatPlaceholder(1))
	if where != "" {
		sql += " WHERE " + where
	}
	if len(in.Returning) > 0 {
		sql += renderReturning(d, in.Returning)
	}

	return &core.BuiltQuery{SQL: sql, Args: args, Vendor: in.Vendor}, nil
}
