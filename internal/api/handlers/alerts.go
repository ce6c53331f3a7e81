package handlers

import (
	"errors"
	"net/http"

	"github.com/huannv-sys/mik-moni-demo/internal/api/common"
	"github.com/huannv-sys/mik-moni-demo/internal/store"
)

type AlertHandler struct {
	Deps *common.Dependencies
}

func NewAlertHandler(deps *common.Dependencies) *AlertHandler {
	return &AlertHandler{Deps: deps}
}

// List handles GET /api/alerts?device_id=&active=true
func (h *AlertHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	alerts := h.Deps.Store.Alerts(store.AlertFilter{
		DeviceID:   q.Get("device_id"),
		ActiveOnly: q.Get("active") == "true",
	})
	common.SendListResponse(w, "alerts", alerts, len(alerts))
}

// Resolve handles POST /api/alerts/{id}/resolve
func (h *AlertHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	id, ok := common.ParseUUIDParam(w, r, "id")
	if !ok {
		return
	}

	alert, err := h.Deps.Alerts.Resolve(id)
	if errors.Is(err, store.ErrAlertNotFound) {
		common.SendNotFound(w, r, "Alert not found")
		return
	}
	if err != nil {
		common.SendError(w, r, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error(), nil)
		return
	}
	common.SendJSON(w, http.StatusOK, map[string]any{"success": true, "alert": alert})
}
