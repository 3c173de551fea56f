// Package sqlbuild turns structured input into parameterized SQL for the
// supported vendors. Builders are pure: they validate their input, emit a
// core.BuiltQuery, and never touch a connection, so every statement shape
// is testable without a database.
//
// All identifiers pass through pkg/dialect validation before they are
// quoted; no function in this package interpolates a raw identifier.
package sqlbuild

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/dbkit/pkg/core"
	"github.com/leapstack-labs/dbkit/pkg/dberr"
	"github.com/leapstack-labs/dbkit/pkg/dialect"
)

// OrderBy is one ORDER BY term.
type OrderBy struct {
	Column string
	Desc   bool
}

// resolveDialect validates the vendor tag common to every builder input.
func resolveDialect(v core.Vendor) (*dialect.Dialect, error) {
	d, ok := dialect.ForVendor(v)
	if !ok {
		return nil, dberr.Validationf("vendor", "unknown vendor %q", string(v))
	}
	return d, nil
}

// validateCondition enforces the value-shape invariant for one WHERE
// condition. Array-valued operators must carry a non-empty slice, between
// exactly two elements, null checks no value at all, and everything else
// a single scalar.
func validateCondition(c core.WhereCondition) error {
	if err := dialect.ValidateIdentifier(c.Column, "where.column"); err != nil {
		return err
	}
	switch c.Operator {
	case core.OpIsNull, core.OpIsNotNull:
		if c.Value != nil {
			return dberr.Validationf(c.Column, "operator %s must not carry a value", c.Operator)
		}
	case core.OpIn, core.OpNotIn:
		vals, ok := toSlice(c.Value)
		if !ok || len(vals) == 0 {
			return dberr.Validationf(c.Column, "operator %s requires a non-empty array value", c.Operator)
		}
	case core.OpBetween:
		vals, ok := toSlice(c.Value)
		if !ok || len(vals) != 2 {
			return dberr.Validationf(c.Column, "operator %s requires exactly two values", c.Operator)
		}
	case core.OpEq, core.OpNe, core.OpGt, core.OpGte, core.OpLt, core.OpLte, core.OpLike, core.OpNotLike:
		if c.Value == nil {
			return dberr.Validationf(c.Column, "operator %s requires a value", c.Operator)
		}
		if _, isSlice := toSlice(c.Value); isSlice {
			return dberr.Validationf(c.Column, "operator %s requires a scalar value", c.Operator)
		}
	default:
		return dberr.Validationf(c.Column, "unknown operator %q", string(c.Operator))
	}
	return nil
}

// toSlice normalizes the operand of an array-accepting operator.
func toSlice(v any) ([]any, bool) {
	switch s := v.(type) {
	case []any:
		return s, true
	case []string:
		out := make([]any, len(s))
		for i, e := range s {
			out[i] = e
		}
		return out, true
	case []int:
		out := make([]any, len(s))
		for i, e := range s {
			out[i] = e
		}
		return out, true
	case []int64:
		out := make([]any, len(s))
		for i, e := range s {
			out[i] = e
		}
		return out, true
	case []float64:
		out := make([]any, len(s))
		for i, e := range s {
			out[i] = e
		}
		return out, true
	default:
		return nil, false
	}
}

var sqlOperators = map[core.Operator]string{
	core.OpEq:      "=",
	core.OpNe:      "<>",
	core.OpGt:      ">",
	core.OpGte:     ">=",
	core.OpLt:      "<",
	core.OpLte:     "<=",
	core.OpLike:    "LIKE",
	core.OpNotLike: "NOT LIKE",
}

// buildWhere renders a conjunction of conditions. nextIdx is the 1-based
// index of the next placeholder, threaded through so builders can emit
// SET clauses before the WHERE. The returned clause has no leading
// "WHERE" keyword and is empty for an empty condition list.
func buildWhere(d *dialect.Dialect, conds []core.WhereCondition, nextIdx int) (clause string, args []any, lastIdx int, err error) {
	if len(conds) == 0 {
		return "", nil, nextIdx, nil
	}

	parts := make([]string, 0, len(conds))
	for _, c := range conds {
		if err := validateCondition(c); err != nil {
			return "", nil, 0, err
		}
		col := d.QuoteIdentifier(c.Column)

		switch c.Operator {
		case core.OpIsNull:
			parts = append(parts, col+" IS NULL")
		case core.OpIsNotNull:
			parts = append(parts, col+" IS NOT NULL")
		case core.OpIn, core.OpNotIn:
			vals, _ := toSlice(c.Value)
			holders := make([]string, len(vals))
			for i, v := range vals {
				holders[i] = d.FormatPlaceholder(nextIdx)
				nextIdx++
				args = append(args, v)
			}
			kw := "IN"
			if c.Operator == core.OpNotIn {
				kw = "NOT IN"
			}
			parts = append(parts, fmt.Sprintf("%s %s (%s)", col, kw, strings.Join(holders, ", ")))
		case core.OpBetween:
			vals, _ := toSlice(c.Value)
			lo := d.FormatPlaceholder(nextIdx)
			hi := d.FormatPlaceholder(nextIdx + 1)
			nextIdx += 2
			args = append(args, vals[0], vals[1])
			parts = append(parts, fmt.Sprintf("%s BETWEEN %s AND %s", col, lo, hi))
		default:
			parts = append(parts, fmt.Sprintf("%s %s %s", col, sqlOperators[c.Operator], d.FormatPlaceholder(nextIdx)))
			nextIdx++
			args = append(args, c.Value)
		}
	}

	return strings.Join(parts, " AND "), args, nextIdx, nil
}

// buildOrderBy renders an ORDER BY clause body, validating each column.
func buildOrderBy(d *dialect.Dialect, terms []OrderBy) (string, error) {
	parts := make([]string, 0, len(terms))
	for _, t := range terms {
		if err := dialect.ValidateIdentifier(t.Column, "orderBy.column"); err != nil {
			return "", err
		}
		dir := "ASC"
		if t.Desc {
			dir = "DESC"
		}
		parts = append(parts, d.QuoteIdentifier(t.Column)+" "+dir)
	}
	return strings.Join(parts, ", "), nil
}

// validateReturning checks a RETURNING column list against the dialect.
func validateReturning(d *dialect.Dialect, returning []string) error {
	if len(returning) == 0 {
		return nil
	}
	if !d.SupportsReturning {
		return dberr.Validationf("returning",
			"%s does not support RETURNING; set IDColumn and re-fetch by generated id", d.Vendor)
	}
	for _, col := range returning {
		if col == "*" {
			continue
		}
		if err := dialect.ValidateIdentifier(col, "returning.column"); err != nil {
			return err
		}
	}
	return nil
}

// renderReturning renders a validated RETURNING list.
func renderReturning(d *dialect.Dialect, returning []string) string {
	cols := make([]string, len(returning))
	for i, col := range returning {
		if col == "*" {
			cols[i] = "*"
			continue
		}
		cols[i] = d.QuoteIdentifier(col)
	}
	return " RETURNING " + strings.Join(cols, ", ")
}
