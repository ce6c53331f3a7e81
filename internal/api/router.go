package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/huannv-sys/mik-moni-demo/internal/api/common"
	"github.com/huannv-sys/mik-moni-demo/internal/api/handlers"
	"github.com/huannv-sys/mik-moni-demo/internal/middleware"
)

// NewRouter creates and configures the API router
func NewRouter(deps *common.Dependencies) http.Handler {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	logger := deps.Logger
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Logger(logger))

	// Initialize handlers
	healthHandler := NewHealthHandler(deps.Refresher, deps.Store)
	deviceHandler := handlers.NewDeviceHandler(deps)
	snapshotHandler := handlers.NewSnapshotHandler(deps)
	alertHandler := handlers.NewAlertHandler(deps)
	refreshHandler := handlers.NewRefreshHandler(deps)

	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)

	if deps.Feed != nil {
		r.Get("/ws", deps.Feed)
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/devices", deviceHandler.List)
		r.Get("/sites/{id}/devices", deviceHandler.BySite)

		r.Get("/system/{id}", snapshotHandler.System)
		r.Get("/system/history/{id}", snapshotHandler.SystemHistory)
		r.Get("/interfaces/{id}", snapshotHandler.Interfaces)
		r.Get("/interfaces/history/{id}/{name}", snapshotHandler.InterfaceHistory)
		r.Get("/ip/{id}", snapshotHandler.IPAddresses)
		r.Get("/arp/{id}", snapshotHandler.ARP)
		r.Get("/dhcp/{id}", snapshotHandler.DHCPLeases)
		r.Get("/firewall/{id}", snapshotHandler.FirewallRules)
		r.Get("/wireless/{id}", snapshotHandler.WirelessClients)
		r.Get("/capsman/{id}", snapshotHandler.CapsmanRegistrations)
		r.Get("/logs/{id}", snapshotHandler.Logs)

		r.Route("/alerts", func(r chi.Router) {
			r.Get("/", alertHandler.List)
			r.Post("/{id}/resolve", alertHandler.Resolve)
		})

		r.Post("/refresh/{id}", refreshHandler.Refresh)
	})

	return r
}
