// Package dialect models the closed set of supported SQL dialects and is
// the single choke point for identifier validation and quoting.
//
// Vendor variation (quote characters, placeholder style, RETURNING
// support, default schema) is dispatched through tagged Dialect values,
// never through subclassing or duck-typing of a generic driver object.
package dialect

import (
	"strconv"
	"strings"

	"github.com/leapstack-labs/dbkit/pkg/core"
)

// PlaceholderStyle defines how query parameters are formatted.
type PlaceholderStyle int

const (
	// PlaceholderQuestion uses ? for all parameters (MySQL, SQLite).
	PlaceholderQuestion PlaceholderStyle = iota
	// PlaceholderDollar uses $1, $2, etc. (PostgreSQL).
	PlaceholderDollar
)

// Dialect holds the static configuration for one vendor.
type Dialect struct {
	Vendor        core.Vendor
	DriverName    string // database/sql driver name
	DefaultSchema string
	Placeholder   PlaceholderStyle

	quoteStart string
	quoteEnd   string

	// SupportsReturning is true when the vendor accepts a RETURNING
	// clause on INSERT/UPDATE/DELETE.
	SupportsReturning bool
	// MaxPoolSize caps the connection pool; 0 means driver default.
	// SQLite runs a degenerate pool of one connection.
	MaxPoolSize int
	// UnboundedLimit is the LIMIT clause the vendor requires before an
	// OFFSET when no row cap is wanted; empty when a bare OFFSET is
	// accepted.
	UnboundedLimit string
}

var dialects = map[core.Vendor]*Dialect{
	core.PostgreSQL: {
		Vendor:            core.PostgreSQL,
		DriverName:        "pgx",
		DefaultSchema:     "public",
		Placeholder:       PlaceholderDollar,
		quoteStart:        `"`,
		quoteEnd:          `"`,
		SupportsReturning: true,
	},
	core.MySQL: {
		Vendor:         core.MySQL,
		DriverName:     "mysql",
		DefaultSchema:  "",
		Placeholder:    PlaceholderQuestion,
		quoteStart:     "`",
		quoteEnd:       "`",
		UnboundedLimit: "LIMIT 18446744073709551615",
	},
	core.SQLite: {
		Vendor:            core.SQLite,
		DriverName:        "sqlite",
		DefaultSchema:     "main",
		Placeholder:       PlaceholderQuestion,
		quoteStart:        `"`,
		quoteEnd:          `"`,
		SupportsReturning: true,
		MaxPoolSize:       1,
		UnboundedLimit:    "LIMIT -1",
	},
}

// ForVendor returns the dialect for a vendor. The bool is false for
// vendors outside the supported set.
func ForVendor(v core.Vendor) (*Dialect, bool) {
	d, ok := dialects[v]
	return d, ok
}

// MustForVendor returns the dialect for a vendor known to be valid.
// It panics on an unknown vendor; callers validate vendors at the
// construction boundary, so a panic here is a programming error.
func MustForVendor(v core.Vendor) *Dialect {
	d, ok := dialects[v]
	if !ok {
		panic("dialect: unknown vendor " + string(v))
	}
	return d
}

// FormatPlaceholder returns the placeholder for the given 1-based
// parameter index.
func (d *Dialect) FormatPlaceholder(index int) string {
	if d.Placeholder == PlaceholderDollar {
		return "$" + strconv.Itoa(index)
	}
	return "?"
}

// QuoteIdentifier wraps a validated identifier in the dialect's quote
// characters. Callers must validate first; quoting alone is not an
// injection defense for arbitrary input.
func (d *Dialect) QuoteIdentifier(name string) string {
	escaped := strings.ReplaceAll(name, d.quoteEnd, d.quoteEnd+d.quoteEnd)
	return d.quoteStart + escaped + d.quoteEnd
}

// QuoteQualified quotes each dot-separated segment of a qualified name
// (schema.table style) individually.
func (d *Dialect) QuoteQualified(name string) string {
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = d.QuoteIdentifier(p)
	}
	return strings.Join(parts, ".")
}
