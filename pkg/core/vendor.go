package core

import (
	"fmt"
	"strings"
)

// Vendor identifies one of the supported SQL dialects. It determines
// identifier quoting, placeholder style, and the catalog-query set used
// for schema inspection. A Vendor is fixed when a connection manager is
// constructed and never changes afterwards.
type Vendor string

// Supported vendors.
const (
	PostgreSQL Vendor = "postgresql"
	MySQL      Vendor = "mysql"
	SQLite     Vendor = "sqlite"
)

// ParseVendor converts a string into a Vendor, accepting the common
// aliases used by driver names ("postgres", "pgx", "sqlite3").
func ParseVendor(s string) (Vendor, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "postgresql", "postgres", "pgx", "pg":
		return PostgreSQL, nil
	case "mysql":
		return MySQL, nil
	case "sqlite", "sqlite3":
		return SQLite, nil
	default:
		return "", fmt.Errorf("unknown vendor %q (supported: postgresql, mysql, sqlite)", s)
	}
}

// String returns the canonical vendor name.
func (v Vendor) String() string {
	return string(v)
}

// Valid reports whether v is one of the three supported vendors.
func (v Vendor) Valid() bool {
	switch v {
	case PostgreSQL, MySQL, SQLite:
		return true
	}
	return false
}
