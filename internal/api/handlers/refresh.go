package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/huannv-sys/mik-moni-demo/internal/api/common"
	"github.com/huannv-sys/mik-moni-demo/internal/poller"
)

type RefreshHandler struct {
	Deps *common.Dependencies
}

func NewRefreshHandler(deps *common.Dependencies) *RefreshHandler {
	return &RefreshHandler{Deps: deps}
}

// RefreshResponse mirrors the outcome of a collection cycle
type RefreshResponse struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Results map[string]bool `json:"results,omitempty"`
}

// Refresh handles POST /api/refresh/{id}. It blocks until the cycle ends.
func (h *RefreshHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	ctx := r.Context()
	if h.Deps.RefreshTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.Deps.RefreshTimeout)
		defer cancel()
	}

	report, err := h.Deps.Refresher.Refresh(ctx, id)
	switch {
	case errors.Is(err, poller.ErrUnknownDevice):
		common.SendNotFound(w, r, "Device not found")
		return
	case err != nil:
		h.Deps.Logger.Error("refresh failed", "device_id", id, "error", err)
		common.SendError(w, r, http.StatusServiceUnavailable, "REFRESH_FAILED", err.Error(), nil)
		return
	}

	resp := RefreshResponse{Success: report.Success, Error: report.Error}
	if len(report.Results) > 0 {
		resp.Results = report.Families()
	}
	common.SendJSON(w, http.StatusOK, resp)
}
