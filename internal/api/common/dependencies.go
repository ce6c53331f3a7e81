package common

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/huannv-sys/mik-moni-demo/internal/collector"
	"github.com/huannv-sys/mik-moni-demo/internal/model"
	"github.com/huannv-sys/mik-moni-demo/internal/store"
)

// Refresher runs an on-demand collection cycle
type Refresher interface {
	Refresh(ctx context.Context, deviceID string) (collector.Report, error)
	IsRunning() bool
}

// AlertResolver marks alerts as handled
type AlertResolver interface {
	Resolve(id uuid.UUID) (model.Alert, error)
}

// Dependencies holds common dependencies for API handlers
type Dependencies struct {
	Store     *store.Store
	Refresher Refresher
	Alerts    AlertResolver
	// Feed serves the websocket endpoint; nil disables it
	Feed           http.HandlerFunc
	RefreshTimeout time.Duration
	Logger         *slog.Logger
}
