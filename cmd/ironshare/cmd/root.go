package cmd

import (
	"github.com/spf13/cobra"
)

// Version is set at build time with -ldflags "-X .../cmd.Version=...".
var Version = "dev"

var rootCmd = &cobra.Command{
	Use:   "ironshare",
	Short: "ironshare shares secrets behind a master password for a limited time",
	Long: `ironshare stores key/value entries encrypted under a single master secret
and lets a session holder share them for a bounded window before they are
destroyed. Complete documentation is available at https://github.com/jmcleod/ironshare`,
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	bindStorageFlags(rootCmd)
}
