// Package alerts evaluates collected snapshots against thresholds and raises
// deduplicated alerts.
package alerts

import (
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/huannv-sys/mik-moni-demo/internal/channels"
	"github.com/huannv-sys/mik-moni-demo/internal/config"
	"github.com/huannv-sys/mik-moni-demo/internal/model"
)

// Sink stores alerts. AddAlert must make the duplicate check and the append atomic.
type Sink interface {
	AddAlert(a model.Alert) bool
	ResolveAlert(id uuid.UUID, at time.Time) (model.Alert, error)
	SweepAlerts(cutoff time.Time) int
}

// Devices resolves display names for alert messages
type Devices interface {
	Device(id string) (model.Device, bool)
}

type Engine struct {
	sink       Sink
	devices    Devices
	thresholds config.ThresholdsConfig
	retention  time.Duration
	events     *channels.EventChannels
	logger     *slog.Logger
	now        func() time.Time
}

// NewEngine creates an alert engine. events may be nil.
func NewEngine(sink Sink, devices Devices, cfg config.ThresholdsConfig, retention time.Duration, events *channels.EventChannels, logger *slog.Logger) *Engine {
	if retention <= 0 {
		retention = 24 * time.Hour
	}
	return &Engine{
		sink:       sink,
		devices:    devices,
		thresholds: cfg,
		retention:  retention,
		events:     events,
		logger:     logger.With("component", "alert_engine"),
		now:        time.Now,
	}
}

// CheckThresholds raises CPU, memory and disk alerts for a system snapshot.
// Percentages with an unknown total are skipped.
func (e *Engine) CheckThresholds(deviceID string, snap model.SystemSnapshot) {
	device, ok := e.devices.Device(deviceID)
	if !ok {
		return
	}
	name := device.Name

	if snap.CPULoad > e.thresholds.CPULoad {
		e.Raise(deviceID, model.AlertCPULoad,
			fmt.Sprintf("High CPU load on %s: %s%%", name, strconv.FormatFloat(snap.CPULoad, 'f', -1, 64)),
			model.SeverityWarning)
	}

	if pct, ok := snap.MemoryUsage(); ok && pct > e.thresholds.MemoryUsage {
		e.Raise(deviceID, model.AlertMemoryUsage,
			fmt.Sprintf("High memory usage on %s: %.2f%%", name, pct),
			model.SeverityWarning)
	}

	if pct, ok := snap.DiskUsage(); ok && pct > e.thresholds.DiskUsage {
		e.Raise(deviceID, model.AlertDiskUsage,
			fmt.Sprintf("High disk usage on %s: %.2f%%", name, pct),
			model.SeverityWarning)
	}
}

// CheckInterfaces raises link-down, error and drop alerts. Disabled and
// bridge interfaces are never reported as down.
func (e *Engine) CheckInterfaces(deviceID string, ifaces []model.InterfaceSnapshot) {
	device, ok := e.devices.Device(deviceID)
	if !ok {
		return
	}
	name := device.Name

	for _, iface := range ifaces {
		if !iface.Running && !iface.Disabled && iface.Type != "bridge" {
			e.Raise(deviceID, model.AlertInterfaceDown,
				fmt.Sprintf("Interface %s on %s is down", iface.Name, name),
				model.SeverityError)
		}

		if iface.RxError > 0 || iface.TxError > 0 {
			e.Raise(deviceID, model.AlertInterfaceError,
				fmt.Sprintf("Interface %s on %s has errors (RX: %d, TX: %d)", iface.Name, name, iface.RxError, iface.TxError),
				model.SeverityWarning)
		}

		if iface.RxDrop > 0 || iface.TxDrop > 0 {
			e.Raise(deviceID, model.AlertInterfaceDrop,
				fmt.Sprintf("Interface %s on %s has packet drops (RX: %d, TX: %d)", iface.Name, name, iface.RxDrop, iface.TxDrop),
				model.SeverityInfo)
		}
	}
}

// Raise stores a new active alert unless one of the same device and type is still open.
// It reports whether a new alert was created.
func (e *Engine) Raise(deviceID string, typ model.AlertType, message string, severity model.Severity) bool {
	a := model.Alert{
		ID:       uuid.New(),
		DeviceID: deviceID,
		Type:     typ,
		Message:  message,
		Severity: severity,
		Created:  e.now(),
		Active:   true,
	}
	if !e.sink.AddAlert(a) {
		return false
	}

	e.logger.Warn("alert raised",
		"device_id", deviceID,
		"alert_id", a.ID,
		"type", typ,
		"severity", severity,
		"message", message,
	)
	e.publish(a)
	return true
}

// Resolve marks an alert resolved by its stable ID
func (e *Engine) Resolve(id uuid.UUID) (model.Alert, error) {
	a, err := e.sink.ResolveAlert(id, e.now())
	if err != nil {
		return model.Alert{}, err
	}
	e.logger.Info("alert resolved", "alert_id", id, "device_id", a.DeviceID)
	return a, nil
}

// Sweep drops resolved alerts older than the retention window
func (e *Engine) Sweep() int {
	removed := e.sink.SweepAlerts(e.now().Add(-e.retention))
	if removed > 0 {
		e.logger.Info("resolved alerts swept", "count", removed)
	}
	return removed
}

func (e *Engine) publish(a model.Alert) {
	if e.events == nil {
		return
	}
	if !channels.Send(e.events, e.events.AlertRaised, channels.AlertRaisedEvent{Alert: a}) {
		e.logger.Warn("alert event dropped", "alert_id", a.ID)
	}
}
