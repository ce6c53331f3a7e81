package api

import (
	"net/http"
	"time"

	"github.com/huannv-sys/mik-moni-demo/internal/api/common"
)

// HealthHandler handles health check endpoints
type HealthHandler struct {
	scheduler common.Refresher
	store     deviceCounter
}

type deviceCounter interface {
	DeviceIDs() []string
}

func NewHealthHandler(scheduler common.Refresher, store deviceCounter) *HealthHandler {
	return &HealthHandler{scheduler: scheduler, store: store}
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// ReadinessResponse represents the readiness check response
type ReadinessResponse struct {
	Status    string    `json:"status"`
	Scheduler bool      `json:"scheduler_running"`
	Devices   int       `json:"devices"`
	Timestamp time.Time `json:"timestamp"`
}

// Health handles GET /health (liveness probe)
//
//goland:noinspection GoUnusedParameter
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	common.SendJSON(w, http.StatusOK, HealthResponse{
		Status:    "ok",
		Timestamp: time.Now(),
	})
}

// Ready handles GET /ready. It reports 503 until the scheduler loop runs.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	resp := ReadinessResponse{
		Status:    "ready",
		Scheduler: h.scheduler != nil && h.scheduler.IsRunning(),
		Devices:   len(h.store.DeviceIDs()),
		Timestamp: time.Now(),
	}
	status := http.StatusOK
	if !resp.Scheduler {
		resp.Status = "not_ready"
		status = http.StatusServiceUnavailable
	}
	common.SendJSON(w, status, resp)
}
