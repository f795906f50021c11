package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Remove expired sessions and entries once, then exit",
	Long: `sweep runs a single expiry pass against the configured storage. It is
intended for cron-style deployments where the server's background sweeper
is not running.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := newLogger(storageCfg)
		v, repo, err := openVault(cmd.Context(), logger)
		if err != nil {
			return err
		}
		defer repo.Close()

		res := v.NewSweeper(0).SweepOnce(cmd.Context())
		fmt.Fprintf(cmd.OutOrStdout(), "removed %d sessions, %d entries\n", res.Sessions, res.Entries)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sweepCmd)
}
