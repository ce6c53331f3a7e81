package collector

import (
	"context"
	"fmt"
	"strings"

	"github.com/huannv-sys/mik-moni-demo/internal/model"
	"github.com/huannv-sys/mik-moni-demo/internal/routeros"
)

const logTimeLayout = "Jan/02/2006 15:04:05"

// logStrategy is one way of reading log entries. None of them change
// device configuration.
type logStrategy struct {
	name  string
	probe string
	cmd   string
	conv  func(deviceID string, r routeros.Row) model.LogEntry
}

var logStrategies = []logStrategy{
	{name: "print", cmd: "/log/print", conv: logRow},
	{name: "getall", cmd: "/log/getall", conv: logRow},
	{name: "system history", cmd: "/system/history/print", conv: historyRow},
	{name: "probe and retry", probe: "/system/identity/print", cmd: "/log/print", conv: logRow},
}

// CollectLogs tries each read strategy until one yields entries and keeps the
// newest logLimit of them. When nothing can be read a single explanatory
// entry is stored so the log view is never blank.
func (c *Collector) CollectLogs(ctx context.Context, deviceID string) Result {
	sess, ok := c.session(deviceID)
	if !ok {
		c.storeSyntheticLog(deviceID, "Unable to read logs: device is not connected")
		return Result{Family: FamilyLogs, Status: StatusUnavailable, Err: routeros.ErrNotConnected}
	}

	var (
		lastErr   error
		succeeded bool
	)
	for _, s := range logStrategies {
		if s.probe != "" {
			if _, err := sess.Fetch(ctx, s.probe); err != nil {
				lastErr = err
				break
			}
		}

		rows, err := sess.Fetch(ctx, s.cmd)
		if err != nil {
			lastErr = err
			c.logger.Debug("log strategy failed",
				"device_id", deviceID,
				"strategy", s.name,
				"error", err,
			)
			if ctx.Err() != nil || routeros.IsTransport(err) {
				break
			}
			continue
		}
		succeeded = true
		if len(rows) == 0 {
			continue
		}

		if len(rows) > c.logLimit {
			rows = rows[len(rows)-c.logLimit:]
		}
		entries := make([]model.LogEntry, 0, len(rows))
		for _, r := range rows {
			entries = append(entries, s.conv(deviceID, r))
		}
		c.store.SetLogs(deviceID, entries)
		return done(FamilyLogs, len(entries))
	}

	if succeeded {
		c.storeSyntheticLog(deviceID, "No log entries available on device")
		return Result{Family: FamilyLogs, Status: StatusEmpty}
	}

	c.storeSyntheticLog(deviceID, fmt.Sprintf("Unable to read logs: %v", lastErr))
	return Result{Family: FamilyLogs, Status: StatusUnavailable, Err: lastErr}
}

func (c *Collector) storeSyntheticLog(deviceID, message string) {
	c.store.SetLogs(deviceID, []model.LogEntry{{
		DeviceID: deviceID,
		Time:     c.now().Format(logTimeLayout),
		Topics:   "system,info",
		Message:  message,
	}})
}

func logRow(deviceID string, r routeros.Row) model.LogEntry {
	return model.LogEntry{
		DeviceID: deviceID,
		Time:     r["time"],
		Topics:   r["topics"],
		Message:  r["message"],
	}
}

// historyRow maps a configuration history record onto a log entry
func historyRow(deviceID string, r routeros.Row) model.LogEntry {
	msg := r["action"]
	if by := r["by"]; by != "" {
		msg += " by " + by
	}
	topics := "system,history"
	if p := strings.TrimSpace(r["policy"]); p != "" {
		topics += "," + p
	}
	return model.LogEntry{
		DeviceID: deviceID,
		Time:     r["time"],
		Topics:   topics,
		Message:  msg,
	}
}
