package core

import "time"

// QueryInput is a raw, caller-supplied statement. Params may be positional
// (Args) or named (NamedArgs); at most one of the two may be set. The
// sanitizer in pkg/sqlbuild rejects multi-statement payloads and DDL on
// the generic execute path before the input reaches a driver.
type QueryInput struct {
	SQL       string
	Args      []any
	NamedArgs map[string]any
	Vendor    Vendor
}

// BuiltQuery is an already-parameterized statement produced by the query
// builder (or by sanitizing a QueryInput). Call sites never assemble one
// by string concatenation.
type BuiltQuery struct {
	SQL    string
	Args   []any
	Vendor Vendor
}

// Row is a single result row keyed by column name.
type Row map[string]any

// QueryResult is the uniform execution result shape across vendors.
// RowCount is best-effort: the number of returned rows for SELECT-like
// statements, the affected-row count otherwise. ExecutionTime is measured
// wall-clock around the whole execute call.
type QueryResult struct {
	Rows          []Row         `json:"rows"`
	RowCount      int64         `json:"rowCount"`
	ExecutionTime time.Duration `json:"executionTime"`

	// LastInsertID is the auto-generated id the driver reported for an
	// INSERT, zero when the statement generated none or the driver does
	// not support it. It is read from the statement's own result, so it
	// is tied to the connection that ran the INSERT.
	LastInsertID int64 `json:"lastInsertId,omitempty"`
}
