package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/huannv-sys/mik-moni-demo/internal/api/common"
)

// DeviceHandler serves the device roster as seen by the store
type DeviceHandler struct {
	Deps *common.Dependencies
}

func NewDeviceHandler(deps *common.Dependencies) *DeviceHandler {
	return &DeviceHandler{Deps: deps}
}

// List handles GET /api/devices
func (h *DeviceHandler) List(w http.ResponseWriter, r *http.Request) {
	devices := h.Deps.Store.Devices()
	common.SendListResponse(w, "devices", devices, len(devices))
}

// BySite handles GET /api/sites/{id}/devices
func (h *DeviceHandler) BySite(w http.ResponseWriter, r *http.Request) {
	devices := h.Deps.Store.DevicesBySite(chi.URLParam(r, "id"))
	common.SendListResponse(w, "devices", devices, len(devices))
}
