package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/dbkit/pkg/conn"
	"github.com/leapstack-labs/dbkit/pkg/core"
	"github.com/leapstack-labs/dbkit/pkg/stream"
)

func runStreamed(cmd *cobra.Command, mgr *conn.Manager, built *core.BuiltQuery, chunkSize int, format string, w io.Writer) error {
	s, err := stream.Select(cmd.Context(), mgr, built, chunkSize)
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	cols := s.Columns()
	total := 0
	first := true
	for {
		chunk, err := s.Next()
		if err != nil {
			return err
		}
		if chunk == nil {
			break
		}
		if err := renderChunk(w, format, cols, chunk, first); err != nil {
			return err
		}
		first = false
		total += len(chunk)
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "%d row(s) streamed\n", total)
	return nil
}

// renderChunk writes one chunk. Table output renders each chunk as its
// own table; csv repeats no header after the first chunk; json emits
// one array per chunk.
func renderChunk(w io.Writer, format string, cols []string, rows []core.Row, first bool) error {
	switch format {
	case "json":
		return renderJSON(w, rows)
	case "csv":
		return renderCSV(w, cols, rows, first)
	default:
		return renderTable(w, cols, rows)
	}
}

func renderRows(w io.Writer, format string, rows []core.Row) error {
	cols := columnsOf(rows)
	switch format {
	case "json":
		return renderJSON(w, rows)
	case "csv":
		return renderCSV(w, cols, rows, true)
	default:
		return renderTable(w, cols, rows)
	}
}

// columnsOf derives a stable column order from result rows. Rows are
// maps, so the original select order is gone; sorted names keep the
// output deterministic.
func columnsOf(rows []core.Row) []string {
	if len(rows) == 0 {
		return nil
	}
	cols := make([]string, 0, len(rows[0]))
	for col := range rows[0] {
		cols = append(cols, col)
	}
	sort.Strings(cols)
	return cols
}

func renderTable(w io.Writer, cols []string, rows []core.Row) error {
	if len(rows) == 0 {
		_, _ = fmt.Fprintln(w, "(0 rows)")
		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)

	headerRow := make(table.Row, len(cols))
	for i, col := range cols {
		headerRow[i] = col
	}
	t.AppendHeader(headerRow)

	for _, r := range rows {
		row := make(table.Row, len(cols))
		for i, col := range cols {
			row[i] = formatValue(r[col])
		}
		t.AppendRow(row)
	}

	t.Render()
	return nil
}

func renderJSON(w io.Writer, rows []core.Row) error {
	if rows == nil {
		rows = []core.Row{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(rows)
}

func renderCSV(w io.Writer, cols []string, rows []core.Row, header bool) error {
	if header {
		_, _ = fmt.Fprintln(w, strings.Join(cols, ","))
	}
	for _, r := range rows {
		values := make([]string, len(cols))
		for i, col := range cols {
			values[i] = escapeCSV(formatValue(r[col]))
		}
		_, _ = fmt.Fprintln(w, strings.Join(values, ","))
	}
	return nil
}

func formatValue(v any) string {
	if v == nil {
		return "NULL"
	}
	return fmt.Sprintf("%v", v)
}

func escapeCSV(s string) string {
	if strings.ContainsAny(s, ",\"\n") {
		return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
	}
	return s
}
