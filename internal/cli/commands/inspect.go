package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/dbkit/pkg/core"
	"github.com/leapstack-labs/dbkit/pkg/schema"
)

// NewInspectCmd builds the inspect command. With no arguments it
// describes every table; arguments narrow the set ("users" or
// "public.users").
func NewInspectCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "inspect [table...]",
		Short: "Describe tables, columns, keys, and indexes",
		RunE: func(cmd *cobra.Command, args []string) error {
			cc := NewCommandContext(cmd)
			if format != "table" && format != "json" {
				return fmt.Errorf("unknown output format %q (want table or json)", format)
			}

			profile, _ := cmd.Flags().GetString("conn")
			mgr, err := cc.OpenManager(cmd.Context(), profile)
			if err != nil {
				return err
			}
			defer mgr.Dispose()

			insp := schema.New(mgr, cc.Cfg.SchemaCacheTTL, cc.Logger)
			snapshot, err := insp.Inspect(cmd.Context(), schema.InspectOptions{Tables: args})
			if err != nil {
				return err
			}

			if format == "json" {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(snapshot)
			}
			return renderSnapshot(cmd.OutOrStdout(), snapshot)
		},
	}

	cmd.Flags().StringVarP(&format, "format", "o", "table", "output format: table, json")

	return cmd
}

func renderSnapshot(w io.Writer, snapshot *core.SchemaSnapshot) error {
	if len(snapshot.Tables) == 0 {
		_, _ = fmt.Fprintln(w, "(no tables)")
		return nil
	}

	for i, tbl := range snapshot.Tables {
		if i > 0 {
			_, _ = fmt.Fprintln(w)
		}
		renderTableSchema(w, tbl)
	}
	return nil
}

func renderTableSchema(w io.Writer, tbl core.SchemaTable) {
	name := tbl.Name
	if tbl.Schema != "" {
		name = tbl.Schema + "." + tbl.Name
	}
	_, _ = fmt.Fprintf(w, "Table: %s\n", name)

	pkCols := map[string]bool{}
	if tbl.PrimaryKey != nil {
		for _, col := range tbl.PrimaryKey.Columns {
			pkCols[col] = true
		}
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Column", "Type", "Nullable", "Default", "Key"})
	for _, col := range tbl.Columns {
		nullable := "YES"
		if !col.Nullable {
			nullable = "NO"
		}
		key := ""
		if pkCols[col.Name] {
			key = "PK"
		}
		t.AppendRow(table.Row{col.Name, col.Type, nullable, col.Default, key})
	}
	t.Render()

	for _, fk := range tbl.ForeignKeys {
		_, _ = fmt.Fprintf(w, "  FK %s: (%s) -> %s (%s)\n",
			fk.Name, strings.Join(fk.Columns, ", "),
			fk.ReferencedTable, strings.Join(fk.ReferencedColumns, ", "))
	}
	for _, idx := range tbl.Indexes {
		kind := "index"
		if idx.Unique {
			kind = "unique index"
		}
		_, _ = fmt.Fprintf(w, "  %s %s (%s)\n", kind, idx.Name, strings.Join(idx.Columns, ", "))
	}
}
