// Package store holds the shared, in-memory state of every monitored device:
// the device registry, the latest snapshot of each metric family, the derived
// history series and the alert list.
//
// Per-device snapshot state is guarded by a per-device lock so collection for
// one device never serialises behind another. The alert list is guarded by a
// single coarse lock, which makes the duplicate check and the append atomic.
package store

import (
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/huannv-sys/mik-moni-demo/internal/history"
	"github.com/huannv-sys/mik-moni-demo/internal/model"
)

var (
	ErrDeviceNotFound = errors.New("device not found")
	ErrAlertNotFound  = errors.New("alert not found")
)

// SystemSeries is the history series name used for system rows
const SystemSeries = "system"

// InterfaceSeries returns the history series name for one interface
func InterfaceSeries(name string) string {
	return "interface:" + name
}

type deviceState struct {
	mu         sync.RWMutex
	system     *model.SystemSnapshot
	interfaces []model.InterfaceSnapshot
	addresses  []model.IPAddress
	arp        []model.ArpEntry
	leases     []model.DHCPLease
	firewall   []model.FirewallRule
	wireless   []model.WirelessClient
	capsman    []model.CapsmanRegistration
	logs       []model.LogEntry
}

// Store is the process-wide device state
type Store struct {
	devMu   sync.RWMutex
	devices map[string]*model.Device

	statesMu sync.Mutex
	states   map[string]*deviceState

	alertMu sync.Mutex
	alerts  []*model.Alert

	SystemHistory    *history.Store[model.SystemPoint]
	InterfaceHistory *history.Store[model.InterfacePoint]
}

// New creates an empty store with the given history capacities
func New(systemPoints, interfacePoints int) *Store {
	return &Store{
		devices:          make(map[string]*model.Device),
		states:           make(map[string]*deviceState),
		SystemHistory:    history.NewStore[model.SystemPoint](systemPoints),
		InterfaceHistory: history.NewStore[model.InterfacePoint](interfacePoints),
	}
}

// -------------------------------------------------------------------------
// Devices
// -------------------------------------------------------------------------

// UpsertDevice stores a device record. Status fields of an existing record are kept.
func (s *Store) UpsertDevice(d model.Device) {
	s.devMu.Lock()
	defer s.devMu.Unlock()

	if existing, ok := s.devices[d.ID]; ok {
		d.LastConnected = existing.LastConnected
		d.ErrorMessage = existing.ErrorMessage
	}
	s.devices[d.ID] = &d
}

// Device returns a copy of the device record
func (s *Store) Device(id string) (model.Device, bool) {
	s.devMu.RLock()
	defer s.devMu.RUnlock()

	d, ok := s.devices[id]
	if !ok {
		return model.Device{}, false
	}
	return *d, true
}

// Devices returns copies of all device records ordered by ID
func (s *Store) Devices() []model.Device {
	s.devMu.RLock()
	out := make([]model.Device, 0, len(s.devices))
	for _, d := range s.devices {
		out = append(out, *d)
	}
	s.devMu.RUnlock()

	slices.SortFunc(out, func(a, b model.Device) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
	return out
}

// DevicesBySite returns the devices assigned to siteID
func (s *Store) DevicesBySite(siteID string) []model.Device {
	var out []model.Device
	for _, d := range s.Devices() {
		if d.SiteID == siteID {
			out = append(out, d)
		}
	}
	return out
}

// DeviceIDs returns the IDs of all known devices
func (s *Store) DeviceIDs() []string {
	s.devMu.RLock()
	defer s.devMu.RUnlock()

	ids := make([]string, 0, len(s.devices))
	for id := range s.devices {
		ids = append(ids, id)
	}
	return ids
}

// MarkConnected records a successful session establishment
func (s *Store) MarkConnected(id string, at time.Time) {
	s.updateDevice(id, func(d *model.Device) {
		d.LastConnected = &at
		d.ErrorMessage = ""
	})
}

// MarkFailed records the last connect or collection failure
func (s *Store) MarkFailed(id, message string) {
	s.updateDevice(id, func(d *model.Device) {
		d.ErrorMessage = message
	})
}

// MarkUnreachable records a failure after every connect attempt was used up.
// The device no longer counts as ever connected.
func (s *Store) MarkUnreachable(id, message string) {
	s.updateDevice(id, func(d *model.Device) {
		d.LastConnected = nil
		d.ErrorMessage = message
	})
}

// MarkDisconnected records an explicit disconnect
func (s *Store) MarkDisconnected(id string) {
	s.updateDevice(id, func(d *model.Device) {
		d.ErrorMessage = model.StatusDisconnected
	})
}

func (s *Store) updateDevice(id string, fn func(*model.Device)) {
	s.devMu.Lock()
	defer s.devMu.Unlock()
	if d, ok := s.devices[id]; ok {
		fn(d)
	}
}

// RemoveDevice deletes the device record and purges everything keyed by it:
// every snapshot family, every history series and every alert.
func (s *Store) RemoveDevice(id string) {
	s.devMu.Lock()
	delete(s.devices, id)
	s.devMu.Unlock()

	s.statesMu.Lock()
	delete(s.states, id)
	s.statesMu.Unlock()

	s.SystemHistory.PurgeDevice(id)
	s.InterfaceHistory.PurgeDevice(id)

	s.alertMu.Lock()
	s.alerts = slices.DeleteFunc(s.alerts, func(a *model.Alert) bool {
		return a.DeviceID == id
	})
	s.alertMu.Unlock()
}

// HasState reports whether any snapshot state is held for the device
func (s *Store) HasState(id string) bool {
	s.statesMu.Lock()
	defer s.statesMu.Unlock()
	_, ok := s.states[id]
	return ok
}

// -------------------------------------------------------------------------
// Snapshots
// -------------------------------------------------------------------------

func (s *Store) state(id string) *deviceState {
	s.statesMu.Lock()
	defer s.statesMu.Unlock()

	st, ok := s.states[id]
	if !ok {
		st = &deviceState{}
		s.states[id] = st
	}
	return st
}

func (s *Store) lookup(id string) (*deviceState, bool) {
	s.statesMu.Lock()
	defer s.statesMu.Unlock()
	st, ok := s.states[id]
	return st, ok
}

// replace swaps one collection of the device wholesale
func replace[T any](s *Store, id string, field func(*deviceState) *[]T, v []T) {
	st := s.state(id)
	st.mu.Lock()
	*field(st) = slices.Clone(v)
	st.mu.Unlock()
}

// read returns a copy of one collection. ok is false when it was never set.
func read[T any](s *Store, id string, field func(*deviceState) *[]T) ([]T, bool) {
	st, ok := s.lookup(id)
	if !ok {
		return nil, false
	}
	st.mu.RLock()
	defer st.mu.RUnlock()

	v := *field(st)
	if v == nil {
		return nil, false
	}
	return slices.Clone(v), true
}

func (s *Store) SetSystem(id string, snap model.SystemSnapshot) {
	st := s.state(id)
	st.mu.Lock()
	st.system = &snap
	st.mu.Unlock()
}

func (s *Store) System(id string) (model.SystemSnapshot, bool) {
	st, ok := s.lookup(id)
	if !ok {
		return model.SystemSnapshot{}, false
	}
	st.mu.RLock()
	defer st.mu.RUnlock()
	if st.system == nil {
		return model.SystemSnapshot{}, false
	}
	return *st.system, true
}

func interfacesOf(st *deviceState) *[]model.InterfaceSnapshot { return &st.interfaces }
func addressesOf(st *deviceState) *[]model.IPAddress { return &st.addresses }
func arpOf(st *deviceState) *[]model.ArpEntry { return &st.arp }
func leasesOf(st *deviceState) *[]model.DHCPLease { return &st.leases }
func firewallOf(st *deviceState) *[]model.FirewallRule { return &st.firewall }
func wirelessOf(st *deviceState) *[]model.WirelessClient { return &st.wireless }
func capsmanOf(st *deviceState) *[]model.CapsmanRegistration { return &st.capsman }
func logsOf(st *deviceState) *[]model.LogEntry { return &st.logs }

func (s *Store) SetInterfaces(id string, v []model.InterfaceSnapshot) {
	replace(s, id, interfacesOf, nonNil(v))
}

func (s *Store) Interfaces(id string) ([]model.InterfaceSnapshot, bool) {
	return read(s, id, interfacesOf)
}

func (s *Store) SetIPAddresses(id string, v []model.IPAddress) {
	replace(s, id, addressesOf, nonNil(v))
}

func (s *Store) IPAddresses(id string) ([]model.IPAddress, bool) {
	return read(s, id, addressesOf)
}

func (s *Store) SetARP(id string, v []model.ArpEntry) {
	replace(s, id, arpOf, nonNil(v))
}

func (s *Store) ARP(id string) ([]model.ArpEntry, bool) {
	return read(s, id, arpOf)
}

func (s *Store) SetDHCPLeases(id string, v []model.DHCPLease) {
	replace(s, id, leasesOf, nonNil(v))
}

func (s *Store) DHCPLeases(id string) ([]model.DHCPLease, bool) {
	return read(s, id, leasesOf)
}

func (s *Store) SetFirewallRules(id string, v []model.FirewallRule) {
	replace(s, id, firewallOf, nonNil(v))
}

func (s *Store) FirewallRules(id string) ([]model.FirewallRule, bool) {
	return read(s, id, firewallOf)
}

func (s *Store) SetWirelessClients(id string, v []model.WirelessClient) {
	replace(s, id, wirelessOf, nonNil(v))
}

func (s *Store) WirelessClients(id string) ([]model.WirelessClient, bool) {
	return read(s, id, wirelessOf)
}

func (s *Store) SetCapsmanRegistrations(id string, v []model.CapsmanRegistration) {
	replace(s, id, capsmanOf, nonNil(v))
}

func (s *Store) CapsmanRegistrations(id string) ([]model.CapsmanRegistration, bool) {
	return read(s, id, capsmanOf)
}

func (s *Store) SetLogs(id string, v []model.LogEntry) {
	replace(s, id, logsOf, nonNil(v))
}

func (s *Store) Logs(id string) ([]model.LogEntry, bool) {
	return read(s, id, logsOf)
}

// nonNil distinguishes "collected, empty" from "never collected"
func nonNil[T any](v []T) []T {
	if v == nil {
		return []T{}
	}
	return v
}

// -------------------------------------------------------------------------
// History
// -------------------------------------------------------------------------

func (s *Store) AppendSystemPoint(id string, p model.SystemPoint) {
	s.SystemHistory.Append(history.Key{DeviceID: id, Series: SystemSeries}, p)
}

func (s *Store) SystemPoints(id string) []model.SystemPoint {
	return s.SystemHistory.Get(history.Key{DeviceID: id, Series: SystemSeries})
}

func (s *Store) AppendInterfacePoint(id, iface string, p model.InterfacePoint) {
	s.InterfaceHistory.Append(history.Key{DeviceID: id, Series: InterfaceSeries(iface)}, p)
}

func (s *Store) InterfacePoints(id, iface string) []model.InterfacePoint {
	return s.InterfaceHistory.Get(history.Key{DeviceID: id, Series: InterfaceSeries(iface)})
}

// -------------------------------------------------------------------------
// Alerts
// -------------------------------------------------------------------------

// AddAlert appends a unless an active, unresolved alert of the same device
// and type exists. It reports whether the alert was stored.
func (s *Store) AddAlert(a model.Alert) bool {
	s.alertMu.Lock()
	defer s.alertMu.Unlock()

	for _, existing := range s.alerts {
		if existing.Active && !existing.Resolved &&
			existing.DeviceID == a.DeviceID &&
			existing.Type == a.Type {
			return false
		}
	}
	s.alerts = append(s.alerts, &a)
	return true
}

// ResolveAlert marks an alert inactive and resolved
func (s *Store) ResolveAlert(id uuid.UUID, at time.Time) (model.Alert, error) {
	s.alertMu.Lock()
	defer s.alertMu.Unlock()

	for _, a := range s.alerts {
		if a.ID != id {
			continue
		}
		if a.Active {
			a.Active = false
			a.Resolved = true
			a.ResolvedAt = &at
		}
		return *a, nil
	}
	return model.Alert{}, ErrAlertNotFound
}

// AlertFilter narrows Alerts. Zero values match everything.
type AlertFilter struct {
	DeviceID   string
	ActiveOnly bool
}

// Alerts returns copies of alerts matching the filter in creation order
func (s *Store) Alerts(f AlertFilter) []model.Alert {
	s.alertMu.Lock()
	defer s.alertMu.Unlock()

	out := make([]model.Alert, 0, len(s.alerts))
	for _, a := range s.alerts {
		if f.DeviceID != "" && a.DeviceID != f.DeviceID {
			continue
		}
		if f.ActiveOnly && !a.Active {
			continue
		}
		out = append(out, *a)
	}
	return out
}

// SweepAlerts drops resolved alerts whose resolution time is not after cutoff.
// Active alerts are always kept. It returns the number removed.
func (s *Store) SweepAlerts(cutoff time.Time) int {
	s.alertMu.Lock()
	defer s.alertMu.Unlock()

	before := len(s.alerts)
	s.alerts = slices.DeleteFunc(s.alerts, func(a *model.Alert) bool {
		if a.Active || !a.Resolved {
			return false
		}
		return a.ResolvedAt == nil || !a.ResolvedAt.After(cutoff)
	})
	return before - len(s.alerts)
}
