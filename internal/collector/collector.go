// Package collector fetches each metric family from a RouterOS device,
// normalises the reply into model records and replaces the device's state.
package collector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/huannv-sys/mik-moni-demo/internal/model"
	"github.com/huannv-sys/mik-moni-demo/internal/oui"
	"github.com/huannv-sys/mik-moni-demo/internal/rate"
	"github.com/huannv-sys/mik-moni-demo/internal/routeros"
	"github.com/huannv-sys/mik-moni-demo/internal/store"
)

var (
	ErrDeviceUnavailable = errors.New("device not found or disabled")
	errEmptyReply        = errors.New("empty reply")
)

// Family names one metric family
type Family string

const (
	FamilySystem      Family = "system"
	FamilyInterfaces  Family = "interfaces"
	FamilyIPAddresses Family = "ip_addresses"
	FamilyARP         Family = "arp"
	FamilyDHCP        Family = "dhcp"
	FamilyFirewall    Family = "firewall"
	FamilyWireless    Family = "wireless"
	FamilyCapsman     Family = "capsman"
	FamilyLogs        Family = "logs"
)

// Families lists every family in collection order
var Families = []Family{
	FamilySystem,
	FamilyInterfaces,
	FamilyIPAddresses,
	FamilyARP,
	FamilyDHCP,
	FamilyFirewall,
	FamilyWireless,
	FamilyCapsman,
	FamilyLogs,
}

// Status is the outcome of collecting one family
type Status string

const (
	StatusOK          Status = "ok"
	StatusEmpty       Status = "empty"
	StatusUnavailable Status = "unavailable"
	StatusError       Status = "error"
)

// Result describes one family collection
type Result struct {
	Family Family `json:"family"`
	Status Status `json:"status"`
	Count  int    `json:"count"`
	Err    error  `json:"-"`
}

// OK reports whether the family counts as collected
func (r Result) OK() bool {
	return r.Status == StatusOK || r.Status == StatusEmpty
}

// Report is the outcome of CollectAll
type Report struct {
	DeviceID string            `json:"device_id"`
	Success  bool              `json:"success"`
	Error    string            `json:"error,omitempty"`
	Results  map[Family]Result `json:"results,omitempty"`
	Duration time.Duration     `json:"duration"`
}

// Families returns the per-family success map
func (r Report) Families() map[string]bool {
	out := make(map[string]bool, len(r.Results))
	for f, res := range r.Results {
		out[string(f)] = res.OK()
	}
	return out
}

// Sessions is the slice of the connection manager the collectors need
type Sessions interface {
	Session(deviceID string) (routeros.Session, bool)
	IsConnected(deviceID string) bool
	Connect(ctx context.Context, device model.Device) error
	Drop(deviceID string, cause error)
}

// AlertChecker evaluates freshly collected state
type AlertChecker interface {
	CheckThresholds(deviceID string, snap model.SystemSnapshot)
	CheckInterfaces(deviceID string, ifaces []model.InterfaceSnapshot)
}

// Collector runs the family collectors for a device
type Collector struct {
	sessions Sessions
	store    *store.Store
	rates    *rate.Engine
	alerts   AlertChecker
	vendors  oui.Lookup
	logLimit int
	logger   *slog.Logger
	now      func() time.Time
}

// Options configures a Collector
type Options struct {
	Sessions Sessions
	Store    *store.Store
	Rates    *rate.Engine
	Alerts   AlertChecker
	Vendors  oui.Lookup
	LogLimit int
	Logger   *slog.Logger
}

func New(opts Options) *Collector {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	rates := opts.Rates
	if rates == nil {
		rates = rate.NewEngine(logger)
	}
	limit := opts.LogLimit
	if limit <= 0 {
		limit = 100
	}
	return &Collector{
		sessions: opts.Sessions,
		store:    opts.Store,
		rates:    rates,
		alerts:   opts.Alerts,
		vendors:  opts.Vendors,
		logLimit: limit,
		logger:   logger.With("component", "collector"),
		now:      time.Now,
	}
}

// CollectAll connects if needed and runs every family collector. A failure in
// one family never prevents the others from running.
func (c *Collector) CollectAll(ctx context.Context, deviceID string) Report {
	start := c.now()
	report := Report{DeviceID: deviceID}

	device, ok := c.store.Device(deviceID)
	if !ok || !device.Enabled {
		report.Error = "Device not found or disabled"
		return report
	}

	if !c.sessions.IsConnected(deviceID) {
		if err := c.sessions.Connect(ctx, device); err != nil {
			report.Error = fmt.Sprintf("Failed to connect: %v", err)
			report.Duration = c.now().Sub(start)
			return report
		}
	}

	report.Results = make(map[Family]Result, len(Families))
	var transportErr error
	for _, family := range Families {
		res := c.Collect(ctx, deviceID, family)
		report.Results[family] = res

		if res.Err != nil && routeros.IsTransport(res.Err) && !errors.Is(res.Err, routeros.ErrNotConnected) {
			transportErr = res.Err
		}
		if !res.OK() {
			c.logger.Warn("family collection failed",
				"device_id", deviceID,
				"family", family,
				"status", res.Status,
				"error", res.Err,
			)
		}
	}

	report.Success = true
	for _, res := range report.Results {
		if !res.OK() {
			report.Success = false
			break
		}
	}

	if transportErr != nil {
		c.sessions.Drop(deviceID, transportErr)
	}

	report.Duration = c.now().Sub(start)
	return report
}

// Collect runs a single family collector
func (c *Collector) Collect(ctx context.Context, deviceID string, family Family) Result {
	switch family {
	case FamilySystem:
		return c.CollectSystem(ctx, deviceID)
	case FamilyInterfaces:
		return c.CollectInterfaces(ctx, deviceID)
	case FamilyIPAddresses:
		return c.CollectIPAddresses(ctx, deviceID)
	case FamilyARP:
		return c.CollectARP(ctx, deviceID)
	case FamilyDHCP:
		return c.CollectDHCP(ctx, deviceID)
	case FamilyFirewall:
		return c.CollectFirewall(ctx, deviceID)
	case FamilyWireless:
		return c.CollectWireless(ctx, deviceID)
	case FamilyCapsman:
		return c.CollectCapsman(ctx, deviceID)
	case FamilyLogs:
		return c.CollectLogs(ctx, deviceID)
	default:
		return Result{Family: family, Status: StatusError, Err: fmt.Errorf("unknown family %q", family)}
	}
}

func (c *Collector) session(deviceID string) (routeros.Session, bool) {
	if c.sessions == nil {
		return nil, false
	}
	return c.sessions.Session(deviceID)
}

// fetch returns the rows for command, or the Result to report when the
// collector should stop
func (c *Collector) fetch(ctx context.Context, deviceID string, family Family, command string, args ...string) ([]routeros.Row, *Result) {
	sess, ok := c.session(deviceID)
	if !ok {
		return nil, &Result{Family: family, Status: StatusUnavailable, Err: routeros.ErrNotConnected}
	}
	rows, err := sess.Fetch(ctx, command, args...)
	if err != nil {
		status := StatusError
		if errors.Is(err, routeros.ErrNoSuchCommand) {
			status = StatusUnavailable
		}
		return nil, &Result{Family: family, Status: status, Err: err}
	}
	return rows, nil
}

func done(family Family, count int) Result {
	if count == 0 {
		return Result{Family: family, Status: StatusEmpty}
	}
	return Result{Family: family, Status: StatusOK, Count: count}
}

// lookupVendor never fails the collector; unknown MACs simply stay blank
func (c *Collector) lookupVendor(mac string) oui.Info {
	if c.vendors == nil || mac == "" {
		return oui.Info{}
	}
	info, err := c.vendors.Lookup(mac)
	if err != nil {
		return oui.Info{}
	}
	return info
}
