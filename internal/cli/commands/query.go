package commands

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/dbkit/pkg/core"
	"github.com/leapstack-labs/dbkit/pkg/sqlbuild"
	"github.com/leapstack-labs/dbkit/pkg/stream"
)

// NewQueryCmd builds the query command. SQL comes from the first
// argument, --file, or stdin.
func NewQueryCmd() *cobra.Command {
	var (
		file      string
		format    string
		chunkSize int
		streamed  bool
	)

	cmd := &cobra.Command{
		Use:   "query [sql]",
		Short: "Run a SQL statement against a connection profile",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc := NewCommandContext(cmd)

			sqlText, err := readQuerySource(args, file, cmd.InOrStdin())
			if err != nil {
				return err
			}
			if err := validateFormat(format); err != nil {
				return err
			}

			profile, _ := cmd.Flags().GetString("conn")
			mgr, err := cc.OpenManager(cmd.Context(), profile)
			if err != nil {
				return err
			}
			defer mgr.Dispose()

			built, err := sqlbuild.Sanitize(core.QueryInput{
				SQL:    sqlText,
				Vendor: mgr.Vendor(),
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if streamed {
				return runStreamed(cmd, mgr, built, chunkSize, format, out)
			}

			result, err := mgr.Execute(cmd.Context(), built)
			if err != nil {
				return err
			}
			if err := renderRows(out, format, result.Rows); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "%d row(s) in %s\n", result.RowCount, result.ExecutionTime)
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "read SQL from file instead of argument")
	cmd.Flags().StringVarP(&format, "format", "o", "table", "output format: table, json, csv")
	cmd.Flags().BoolVar(&streamed, "stream", false, "stream rows in chunks instead of buffering the result")
	cmd.Flags().IntVar(&chunkSize, "chunk-size", stream.DefaultChunkSize, "rows per chunk when streaming")

	return cmd
}

func readQuerySource(args []string, file string, stdin io.Reader) (string, error) {
	switch {
	case len(args) == 1 && file != "":
		return "", fmt.Errorf("pass SQL as an argument or via --file, not both")
	case len(args) == 1:
		return args[0], nil
	case file != "":
		data, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("reading query file: %w", err)
		}
		return string(data), nil
	default:
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("reading query from stdin: %w", err)
		}
		if strings.TrimSpace(string(data)) == "" {
			return "", fmt.Errorf("no SQL given: pass an argument, --file, or pipe to stdin")
		}
		return string(data), nil
	}
}

func validateFormat(format string) error {
	switch format {
	case "table", "json", "csv":
		return nil
	default:
		return fmt.Errorf("unknown output format %q (want table, json, or csv)", format)
	}
}
