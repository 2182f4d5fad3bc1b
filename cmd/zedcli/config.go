package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"zedvoice/internal/config"
)

func configCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as YAML",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			out, err := cfg.YAML()
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if cfg.File != "" {
				fmt.Fprintf(w, "# loaded from %s\n", cfg.File)
			}
			_, err = w.Write(out)
			return err
		},
	}
}
