// Package stream executes SELECT statements and yields rows in bounded
// chunks instead of materializing the full result set.
//
// A Stream holds one borrowed connection and an open cursor; at any
// point at most one chunk of rows is resident in memory. Streams are
// finite, lazy, and non-restartable.
package stream

import (
	"context"
	"database/sql"
	"sync"
	"sync/atomic"

	"github.com/leapstack-labs/dbkit/pkg/conn"
	"github.com/leapstack-labs/dbkit/pkg/core"
	"github.com/leapstack-labs/dbkit/pkg/dberr"
)

// DefaultChunkSize is used when the caller passes a non-positive size.
const DefaultChunkSize = 500

// Stream is an open, chunked cursor over a SELECT result.
type Stream struct {
	vendor    core.Vendor
	rows      *sql.Rows
	columns   []string
	chunkSize int

	cancelled atomic.Bool
	exhausted bool

	closeOnce sync.Once
	release   func()
}

// Select runs a built SELECT on a connection borrowed from the manager
// and returns a Stream over its rows. The connection stays borrowed
// until the stream is exhausted, closed, or cancelled.
func Select(ctx context.Context, mgr *conn.Manager, built *core.BuiltQuery, chunkSize int) (*Stream, error) {
	if built == nil {
		return nil, dberr.Validationf("query", "query must not be nil")
	}
	if built.Vendor != mgr.Vendor() {
		return nil, dberr.Validationf("vendor",
			"query is built for %s but the manager is %s", built.Vendor, mgr.Vendor())
	}
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}

	c, err := mgr.Acquire(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := c.QueryContext(ctx, built.SQL, built.Args...)
	if err != nil {
		_ = c.Close()
		return nil, dberr.Classify(mgr.Vendor(), err)
	}

	columns, err := rows.Columns()
	if err != nil {
		_ = rows.Close()
		_ = c.Close()
		return nil, dberr.Classify(mgr.Vendor(), err)
	}

	s := &Stream{
		vendor:    mgr.Vendor(),
		rows:      rows,
		columns:   columns,
		chunkSize: chunkSize,
	}
	s.release = func() {
		s.closeOnce.Do(func() {
			_ = rows.Close()
			_ = c.Close()
		})
	}
	return s, nil
}

// Columns returns the result column names in select order.
func (s *Stream) Columns() []string {
	out := make([]string, len(s.columns))
	copy(out, s.columns)
	return out
}

// Next returns the next chunk of up to chunkSize rows. A nil chunk with
// a nil error signals exhaustion; the stream has already released its
// connection by then. After Cancel, Next returns
// dberr.ErrStreamCancelled.
func (s *Stream) Next() ([]core.Row, error) {
	if s.cancelled.Load() {
		return nil, dberr.ErrStreamCancelled
	}
	if s.exhausted {
		return nil, nil
	}

	chunk := make([]core.Row, 0, s.chunkSize)
	for len(chunk) < s.chunkSize {
		if s.cancelled.Load() {
			return nil, dberr.ErrStreamCancelled
		}
		if !s.rows.Next() {
			s.exhausted = true
			err := s.rows.Err()
			s.release()
			if err != nil {
				return nil, dberr.Classify(s.vendor, err)
			}
			break
		}

		row, err := s.scanRow()
		if err != nil {
			s.exhausted = true
			s.release()
			return nil, dberr.Classify(s.vendor, err)
		}
		chunk = append(chunk, row)
	}

	if len(chunk) == 0 {
		return nil, nil
	}
	return chunk, nil
}

func (s *Stream) scanRow() (core.Row, error) {
	values := make([]any, len(s.columns))
	valuePtrs := make([]any, len(s.columns))
	for i := range values {
		valuePtrs[i] = &values[i]
	}
	if err := s.rows.Scan(valuePtrs...); err != nil {
		return nil, err
	}

	row := make(core.Row, len(s.columns))
	for i, col := range s.columns {
		val := values[i]
		if b, ok := val.([]byte); ok {
			val = string(b)
		}
		row[col] = val
	}
	return row, nil
}

// Cancel terminates the stream early. The cursor and its connection are
// released promptly, and every subsequent Next returns
// dberr.ErrStreamCancelled.
func (s *Stream) Cancel() {
	if s.cancelled.CompareAndSwap(false, true) {
		s.release()
	}
}

// Close releases the stream's resources without marking it cancelled.
// Safe to call multiple times and after exhaustion.
func (s *Stream) Close() error {
	s.release()
	return nil
}
