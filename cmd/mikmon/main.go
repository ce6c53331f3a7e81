package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version info set via ldflags at build time
var version = "dev"

var configPath string

var rootCmd = &cobra.Command{
	Use:   "mikmon",
	Short: "Poll MikroTik RouterOS devices and serve their live state",
	Long: `mikmon keeps API sessions to a fleet of RouterOS devices, collects system,
interface, addressing, firewall, wireless and log data on a schedule, derives
interface speeds, raises threshold alerts and serves everything over HTTP and
a websocket feed.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	Version:       version,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "path to the YAML configuration file")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
