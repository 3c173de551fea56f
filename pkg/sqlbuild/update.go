package sqlbuild

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/dbkit/pkg/core"
	"github.com/leapstack-labs/dbkit/pkg/dberr"
	"github.com/leapstack-labs/dbkit/pkg/dialect"
)

// OptimisticLock adds a version-column equality predicate to an UPDATE.
// Callers treat RowCount == 0 on the result as a lost-update signal.
type OptimisticLock struct {
	Column  string
	Version any
}

// UpdateInput describes an UPDATE. Where is mandatory: an unconditional
// UPDATE is almost always a bug, and a deliberate full-table rewrite can
// use a tautological condition explicitly.
type UpdateInput struct {
	Vendor         core.Vendor
	Table          string
	Data           core.Row
	Where          []core.WhereCondition
	OptimisticLock *OptimisticLock
	Returning      []string
}

// BuildUpdate builds a parameterized UPDATE with SET terms in sorted
// column order.
func BuildUpdate(in UpdateInput) (*core.BuiltQuery, error) {
	d, err := resolveDialect(in.Vendor)
	if err != nil {
		return nil, err
	}
	if err := dialect.ValidateQualifiedIdentifier(in.Table, "table"); err != nil {
		return nil, err
	}
	if len(in.Data) == 0 {
		return nil, dberr.Validationf("data", "update requires at least one column to set")
	}
	if len(in.Where) == 0 {
		return nil, dberr.Validationf("where", "update requires at least one condition")
	}
	if err := validateReturning(d, in.Returning); err != nil {
		return nil, err
	}

	var (
		args []any
		idx  = 1
		sets = make([]string, 0, len(in.Data))
	)
	for _, col := range sortedColumns(in.Data) {
		if err := dialect.ValidateIdentifier(col, "column"); err != nil {
			return nil, err
		}
		sets = append(sets, fmt.Sprintf("%s = %s", d.QuoteIdentifier(col), d.FormatPlaceholder(idx)))
		idx++
		args = append(args, in.Data[col])
	}

	conds := in.Where
	if lock := in.OptimisticLock; lock != nil {
		if err := dialect.ValidateIdentifier(lock.Column, "optimisticLock.column"); err != nil {
			return nil, err
		}
		conds = append(append([]core.WhereCondition{}, conds...), core.WhereCondition{
			Column:   lock.Column,
			Operator: core.OpEq,
			Value:    lock.Version,
		})
	}

	where, whereArgs, _, err := buildWhere(d, conds, idx)
	if err != nil {
		return nil, err
	}
	args = append(args, whereArgs...)

	sql := fmt.Sprintf("UPDATE %s SET %s WHERE %s",
		d.QuoteQualified(in.Table), strings.Join(sets, ", "), where)
	if len(in.Returning) > 0 {
		sql += renderReturning(d, in.Returning)
	}

	return &core.BuiltQuery{SQL: sql, Args: args, Vendor: in.Vendor}, nil
}
