package config

import (
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/huannv-sys/mik-moni-demo/internal/model"
)

// Roster is the authoritative, in-memory list of configured devices and sites.
// Every mutation notifies the registered change hooks.
type Roster struct {
	mu      sync.RWMutex
	devices map[string]model.Device
	sites   map[string]model.Site
	hooks   []func()
}

// NewRoster seeds a roster from a loaded configuration
func NewRoster(cfg *Config) *Roster {
	r := &Roster{
		devices: make(map[string]model.Device),
		sites:   make(map[string]model.Site),
	}
	if cfg == nil {
		return r
	}
	for _, s := range cfg.Sites {
		r.sites[s.ID] = s
	}
	for _, d := range cfg.Devices {
		r.devices[d.ID] = d
	}
	return r
}

// OnChange registers fn to run after every roster mutation
func (r *Roster) OnChange(fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hooks = append(r.hooks, fn)
}

// Devices returns all configured devices ordered by ID
func (r *Roster) Devices() []model.Device {
	r.mu.RLock()
	out := make([]model.Device, 0, len(r.devices))
	for _, d := range r.devices {
		out = append(out, d)
	}
	r.mu.RUnlock()

	slices.SortFunc(out, func(a, b model.Device) int { return strings.Compare(a.ID, b.ID) })
	return out
}

// Device returns the configured record for id
func (r *Roster) Device(id string) (model.Device, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.devices[id]
	return d, ok
}

// Sites returns all configured sites ordered by ID
func (r *Roster) Sites() []model.Site {
	r.mu.RLock()
	out := make([]model.Site, 0, len(r.sites))
	for _, s := range r.sites {
		out = append(out, s)
	}
	r.mu.RUnlock()

	slices.SortFunc(out, func(a, b model.Site) int { return strings.Compare(a.ID, b.ID) })
	return out
}

func (r *Roster) Site(id string) (model.Site, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sites[id]
	return s, ok
}

// Put validates and adds or replaces a device
func (r *Roster) Put(d model.Device) error {
	if err := ValidateDevice(d); err != nil {
		return err
	}

	r.mu.Lock()
	if d.SiteID != "" {
		if _, ok := r.sites[d.SiteID]; !ok {
			r.mu.Unlock()
			return fmt.Errorf("device %q references unknown site %q", d.ID, d.SiteID)
		}
	}
	r.devices[d.ID] = d
	hooks := slices.Clone(r.hooks)
	r.mu.Unlock()

	notify(hooks)
	return nil
}

// Remove deletes a device. It reports whether the device existed.
func (r *Roster) Remove(id string) bool {
	r.mu.Lock()
	_, ok := r.devices[id]
	delete(r.devices, id)
	hooks := slices.Clone(r.hooks)
	r.mu.Unlock()

	if ok {
		notify(hooks)
	}
	return ok
}

// PutSite adds or replaces a site
func (r *Roster) PutSite(s model.Site) error {
	if err := validateStruct(s); err != nil {
		return err
	}
	r.mu.Lock()
	r.sites[s.ID] = s
	r.mu.Unlock()
	return nil
}

// Replace swaps the whole roster for the contents of a freshly loaded
// configuration and notifies once. cfg must already be validated.
func (r *Roster) Replace(cfg *Config) {
	devices := make(map[string]model.Device, len(cfg.Devices))
	for _, d := range cfg.Devices {
		devices[d.ID] = d
	}
	sites := make(map[string]model.Site, len(cfg.Sites))
	for _, s := range cfg.Sites {
		sites[s.ID] = s
	}

	r.mu.Lock()
	r.devices = devices
	r.sites = sites
	hooks := slices.Clone(r.hooks)
	r.mu.Unlock()

	notify(hooks)
}

func notify(hooks []func()) {
	for _, fn := range hooks {
		fn()
	}
}
