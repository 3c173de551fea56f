package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewHealthCmd builds the health command: connect, ping, report pool
// stats. Exit code is non-zero when the database is unreachable.
func NewHealthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check database connectivity and report pool metrics",
		RunE: func(cmd *cobra.Command, args []string) error {
			cc := NewCommandContext(cmd)

			profile, _ := cmd.Flags().GetString("conn")
			mgr, err := cc.OpenManager(cmd.Context(), profile)
			if err != nil {
				return err
			}
			defer mgr.Dispose()

			out := cmd.OutOrStdout()
			if !mgr.Healthy(cmd.Context()) {
				return fmt.Errorf("%s connection is unhealthy", mgr.Vendor())
			}

			m := mgr.PoolMetrics()
			fmt.Fprintf(out, "vendor:      %s\n", mgr.Vendor())
			fmt.Fprintf(out, "state:       %s\n", mgr.State())
			fmt.Fprintf(out, "connections: %d total, %d idle, %d active\n", m.Total, m.Idle, m.Active)
			fmt.Fprintf(out, "waits:       %d (%s total)\n", m.WaitCount, m.WaitDuration)
			return nil
		},
	}
}
