package commands

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/dbkit/internal/config"
)

// NewRootCmd builds the dbkit root command with all subcommands
// attached.
func NewRootCmd() *cobra.Command {
	var (
		configPath string
		verbose    bool
	)

	root := &cobra.Command{
		Use:   "dbkit",
		Short: "Vendor-agnostic database toolkit",
		Long: `dbkit runs queries, inspects schemas, and manages migrations
against PostgreSQL, MySQL, and SQLite databases through a single
connection profile configuration.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath, cmd.Flags())
			if err != nil {
				return err
			}

			level := slog.LevelWarn
			if verbose || cfg.Verbose {
				level = slog.LevelDebug
			}
			logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

			cmd.SetContext(WithConfig(cmd.Context(), cfg, logger))
			return nil
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "path to config file (default: dbkit.yaml in cwd)")
	root.PersistentFlags().String("conn", "", "connection profile name from config")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(
		NewQueryCmd(),
		NewInspectCmd(),
		NewHealthCmd(),
		NewMigrateCmd(),
		NewVersionCmd(),
	)

	return root
}
