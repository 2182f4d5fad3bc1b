package main

import (
	"github.com/spf13/cobra"
)

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "zedcli",
		Short: "Terminal client for the Zed voice assistant",
		Long: `zedcli runs the Zed voice session engine without the desktop window.

Configuration is read from ~/.config/zedvoice/config.yaml (or $ZED_CONFIG),
.env and ZED_* environment variables.`,
		SilenceUsage: true,
	}
	cmd.AddCommand(runCmd(), configCmd())
	return cmd
}
