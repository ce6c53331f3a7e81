package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/huannv-sys/mik-moni-demo/internal/api/common"
)

// SnapshotHandler serves the latest collected state and history of a device.
// A collection that was never stored yields 404; an empty one yields [].
type SnapshotHandler struct {
	Deps *common.Dependencies
}

func NewSnapshotHandler(deps *common.Dependencies) *SnapshotHandler {
	return &SnapshotHandler{Deps: deps}
}

func sendCollection[T any](w http.ResponseWriter, r *http.Request, key string, v []T, ok bool, missing string) {
	if !ok {
		common.SendNotFound(w, r, missing)
		return
	}
	common.SendListResponse(w, key, v, len(v))
}

func deviceID(r *http.Request) string {
	return chi.URLParam(r, "id")
}

// System handles GET /api/system/{id}
func (h *SnapshotHandler) System(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.Deps.Store.System(deviceID(r))
	if !ok {
		common.SendNotFound(w, r, "System resources not available for this device")
		return
	}
	common.SendJSON(w, http.StatusOK, map[string]any{"resources": snap})
}

// SystemHistory handles GET /api/system/history/{id}
func (h *SnapshotHandler) SystemHistory(w http.ResponseWriter, r *http.Request) {
	points := h.Deps.Store.SystemPoints(deviceID(r))
	sendCollection(w, r, "history", points, len(points) > 0, "System history not available for this device")
}

// Interfaces handles GET /api/interfaces/{id}
func (h *SnapshotHandler) Interfaces(w http.ResponseWriter, r *http.Request) {
	v, ok := h.Deps.Store.Interfaces(deviceID(r))
	sendCollection(w, r, "interfaces", v, ok, "Interfaces not available for this device")
}

// InterfaceHistory handles GET /api/interfaces/history/{id}/{name}
func (h *SnapshotHandler) InterfaceHistory(w http.ResponseWriter, r *http.Request) {
	points := h.Deps.Store.InterfacePoints(deviceID(r), chi.URLParam(r, "name"))
	sendCollection(w, r, "history", points, len(points) > 0, "Interface history not available")
}

func (h *SnapshotHandler) IPAddresses(w http.ResponseWriter, r *http.Request) {
	v, ok := h.Deps.Store.IPAddresses(deviceID(r))
	sendCollection(w, r, "ip_addresses", v, ok, "IP addresses not available for this device")
}

func (h *SnapshotHandler) ARP(w http.ResponseWriter, r *http.Request) {
	v, ok := h.Deps.Store.ARP(deviceID(r))
	sendCollection(w, r, "arp_entries", v, ok, "ARP entries not available for this device")
}

func (h *SnapshotHandler) DHCPLeases(w http.ResponseWriter, r *http.Request) {
	v, ok := h.Deps.Store.DHCPLeases(deviceID(r))
	sendCollection(w, r, "dhcp_leases", v, ok, "DHCP leases not available for this device")
}

func (h *SnapshotHandler) FirewallRules(w http.ResponseWriter, r *http.Request) {
	v, ok := h.Deps.Store.FirewallRules(deviceID(r))
	sendCollection(w, r, "firewall_rules", v, ok, "Firewall rules not available for this device")
}

func (h *SnapshotHandler) WirelessClients(w http.ResponseWriter, r *http.Request) {
	v, ok := h.Deps.Store.WirelessClients(deviceID(r))
	sendCollection(w, r, "wireless_clients", v, ok, "Wireless clients not available for this device")
}

func (h *SnapshotHandler) CapsmanRegistrations(w http.ResponseWriter, r *http.Request) {
	v, ok := h.Deps.Store.CapsmanRegistrations(deviceID(r))
	sendCollection(w, r, "registrations", v, ok, "CAPsMAN registrations not available for this device")
}

func (h *SnapshotHandler) Logs(w http.ResponseWriter, r *http.Request) {
	v, ok := h.Deps.Store.Logs(deviceID(r))
	sendCollection(w, r, "logs", v, ok, "Logs not available for this device")
}
