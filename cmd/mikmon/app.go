package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/huannv-sys/mik-moni-demo/internal/alerts"
	"github.com/huannv-sys/mik-moni-demo/internal/channels"
	"github.com/huannv-sys/mik-moni-demo/internal/collector"
	"github.com/huannv-sys/mik-moni-demo/internal/config"
	"github.com/huannv-sys/mik-moni-demo/internal/connection"
	"github.com/huannv-sys/mik-moni-demo/internal/oui"
	"github.com/huannv-sys/mik-moni-demo/internal/poller"
	"github.com/huannv-sys/mik-moni-demo/internal/rate"
	"github.com/huannv-sys/mik-moni-demo/internal/routeros"
	"github.com/huannv-sys/mik-moni-demo/internal/store"
)

// app holds the collection core shared by serve and collect
type app struct {
	cfg       *config.Config
	logger    *slog.Logger
	roster    *config.Roster
	store     *store.Store
	events    *channels.EventChannels
	conns     *connection.Manager
	alerts    *alerts.Engine
	collector *collector.Collector
	scheduler *poller.Scheduler
}

func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	vendors, err := loadVendors(cfg.Vendors, logger)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:    cfg,
		logger: logger,
		roster: config.NewRoster(cfg),
		store:  store.New(cfg.History.SystemPoints, cfg.History.InterfacePoints),
		events: channels.NewEventChannels(ctx, channels.DefaultConfig()),
	}

	a.conns = connection.NewManager(routeros.APIDialer{}, a.store, cfg.Connection, logger)
	a.alerts = alerts.NewEngine(a.store, a.store, cfg.Thresholds, cfg.Alerts.Retention(), a.events, logger)
	a.collector = collector.New(collector.Options{
		Sessions: a.conns,
		Store:    a.store,
		Rates:    rate.NewEngine(logger),
		Alerts:   a.alerts,
		Vendors:  vendors,
		LogLimit: cfg.Collector.LogLimit,
		Logger:   logger,
	})
	a.scheduler = poller.NewScheduler(poller.Deps{
		Roster: a.roster,
		Store:  a.store,
		Runner: a.collector,
		Conns:  a.conns,
		Alerts: a.alerts,
		Events: a.events,
		Logger: logger,
	}, cfg.Scheduler)
	a.roster.OnChange(a.scheduler.RequestRebuild)

	return a, nil
}

func loadVendors(cfg config.VendorsConfig, logger *slog.Logger) (oui.Lookup, error) {
	if cfg.File == "" {
		return oui.Builtin(), nil
	}
	table, err := oui.LoadFile(cfg.File)
	if err != nil {
		return nil, fmt.Errorf("load vendor table: %w", err)
	}
	logger.Info("vendor table loaded", "path", cfg.File, "entries", table.Len())
	return table, nil
}

// close releases every device session and stops event consumers
func (a *app) close() {
	a.conns.DisconnectAll()
	a.events.Close()
}
