// Package core defines the shared language of the dbkit system.
//
// This package contains:
//   - The Vendor enum identifying the supported SQL dialects
//   - Query types (QueryInput, BuiltQuery, QueryResult)
//   - WHERE condition shapes consumed by the query builder
//   - Schema snapshot types produced by the inspector
//
// The Golden Rule: pkg/core imports ONLY the stdlib.
// All other packages depend on core, not the reverse.
package core
