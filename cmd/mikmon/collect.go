package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/huannv-sys/mik-moni-demo/internal/config"
)

var collectCmd = &cobra.Command{
	Use:   "collect <device-id>",
	Short: "Run one collection cycle for a device and print the result",
	Long: `Connect to a single configured device, run every collector once and print
the per-family outcome as JSON. Useful for checking credentials and firmware
support before adding a device to the schedule.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return collect(cmd.Context(), args[0])
	},
}

func init() {
	rootCmd.AddCommand(collectCmd)
}

func collect(ctx context.Context, deviceID string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	// stdout carries the report
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.close()

	device, ok := a.roster.Device(deviceID)
	if !ok {
		return fmt.Errorf("device %q is not configured", deviceID)
	}
	a.store.UpsertDevice(device)

	report := a.collector.CollectAll(ctx, deviceID)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return err
	}
	if report.Error != "" {
		return fmt.Errorf("collect %s: %s", deviceID, report.Error)
	}
	return nil
}
