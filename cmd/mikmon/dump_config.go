package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/huannv-sys/mik-moni-demo/internal/config"
)

var dumpConfigCmd = &cobra.Command{
	Use:   "dump-config",
	Short: "Print an example configuration with every default filled in",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return config.DumpExampleConfig(os.Stdout)
	},
}

func init() {
	rootCmd.AddCommand(dumpConfigCmd)
}
