package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/huannv-sys/mik-moni-demo/internal/api"
	"github.com/huannv-sys/mik-moni-demo/internal/api/common"
	"github.com/huannv-sys/mik-moni-demo/internal/channels"
	"github.com/huannv-sys/mik-moni-demo/internal/config"
	"github.com/huannv-sys/mik-moni-demo/internal/feed"
)

const shutdownTimeout = 30 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the scheduler, HTTP API and websocket feed",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func serve(parent context.Context) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger := config.InitLogger(cfg.Logging)
	logger.Info("Starting mikmon",
		"version", version,
		"addr", cfg.Server.Addr(),
		"devices", len(cfg.Devices),
	)

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.close()

	channels.StartCycleLogger(ctx, a.events, logger)

	hub := feed.NewHub(a.store, logger)
	broadcaster := feed.NewBroadcaster(a.store, hub, cfg.Feed, logger)
	hub.OnHighPrecision(broadcaster.SetHighPrecision)

	router := api.NewRouter(&common.Dependencies{
		Store:          a.store,
		Refresher:      a.scheduler,
		Alerts:         a.alerts,
		Feed:           hub.ServeWs,
		RefreshTimeout: cfg.Server.WriteTimeout(),
		Logger:         logger,
	})
	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout(),
		WriteTimeout: cfg.Server.WriteTimeout(),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return ignoreCanceled(a.scheduler.Run(gctx)) })
	g.Go(func() error { return ignoreCanceled(hub.Run(gctx)) })
	g.Go(func() error { return ignoreCanceled(broadcaster.Run(gctx)) })
	g.Go(func() error {
		hub.ForwardEvents(gctx, a.events)
		return nil
	})
	g.Go(func() error {
		watchReload(gctx, a)
		return nil
	})
	g.Go(func() error {
		logger.Info("HTTP server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server forced to shutdown", "error", err)
		}
		return nil
	})

	err = g.Wait()
	logger.Info("Server stopped gracefully")
	return err
}

// watchReload re-reads the configuration file on SIGHUP and swaps the roster.
// An invalid file leaves the running roster untouched.
func watchReload(ctx context.Context, a *app) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			cfg, err := config.Load(configPath)
			if err != nil {
				a.logger.Error("config reload failed", "path", configPath, "error", err)
				continue
			}
			a.roster.Replace(cfg)
			a.logger.Info("config reloaded", "path", configPath, "devices", len(cfg.Devices))
		}
	}
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
