package collector

import (
	"context"
	"errors"
	"strings"

	"github.com/huannv-sys/mik-moni-demo/internal/model"
	"github.com/huannv-sys/mik-moni-demo/internal/rate"
	"github.com/huannv-sys/mik-moni-demo/internal/routeros"
)

// CollectSystem reads system resources and identity, appends a system
// history row and evaluates resource thresholds
func (c *Collector) CollectSystem(ctx context.Context, deviceID string) Result {
	rows, res := c.fetch(ctx, deviceID, FamilySystem, "/system/resource/print")
	if res != nil {
		return *res
	}
	if len(rows) == 0 {
		return Result{Family: FamilySystem, Status: StatusError, Err: errEmptyReply}
	}
	r := rows[0]

	snap := model.SystemSnapshot{
		DeviceID:         deviceID,
		Timestamp:        c.now(),
		Uptime:           r["uptime"],
		Version:          r["version"],
		CPULoad:          parseFloat(r["cpu-load"]),
		FreeMemory:       parseUint(r["free-memory"]),
		TotalMemory:      parseUint(r["total-memory"]),
		FreeHDDSpace:     parseUint(r["free-hdd-space"]),
		TotalHDDSpace:    parseUint(r["total-hdd-space"]),
		ArchitectureName: r["architecture-name"],
		BoardName:        r["board-name"],
		Platform:         r["platform"],
	}

	if ident, res := c.fetch(ctx, deviceID, FamilySystem, "/system/identity/print"); res == nil && len(ident) > 0 {
		snap.Identity = ident[0]["name"]
	} else if res != nil {
		c.logger.Debug("identity unavailable", "device_id", deviceID, "error", res.Err)
	}

	c.store.SetSystem(deviceID, snap)

	memPct, _ := snap.MemoryUsage()
	c.store.AppendSystemPoint(deviceID, model.SystemPoint{
		Timestamp:   snap.Timestamp,
		CPULoad:     snap.CPULoad,
		MemoryUsage: memPct,
		FreeMemory:  snap.FreeMemory,
		TotalMemory: snap.TotalMemory,
	})

	if c.alerts != nil {
		c.alerts.CheckThresholds(deviceID, snap)
	}
	return done(FamilySystem, 1)
}

// CollectInterfaces reads interface counters, derives speeds against the
// outgoing set, appends interface history and evaluates link alerts
func (c *Collector) CollectInterfaces(ctx context.Context, deviceID string) Result {
	rows, res := c.fetch(ctx, deviceID, FamilyInterfaces, "/interface/print")
	if res != nil {
		return *res
	}

	now := c.now()
	current := make([]model.InterfaceSnapshot, 0, len(rows))
	for _, r := range rows {
		current = append(current, model.InterfaceSnapshot{
			DeviceID:         deviceID,
			Name:             r["name"],
			Type:             r["type"],
			Running:          parseBool(r["running"]),
			Disabled:         parseBool(r["disabled"]),
			Comment:          r["comment"],
			MACAddress:       r["mac-address"],
			MTU:              parseInt(firstOf(r, "actual-mtu", "mtu")),
			RxByte:           parseUint(r["rx-byte"]),
			TxByte:           parseUint(r["tx-byte"]),
			RxPacket:         parseUint(r["rx-packet"]),
			TxPacket:         parseUint(r["tx-packet"]),
			RxError:          parseUint(r["rx-error"]),
			TxError:          parseUint(r["tx-error"]),
			RxDrop:           parseUint(r["rx-drop"]),
			TxDrop:           parseUint(r["tx-drop"]),
			LastLinkDownTime: r["last-link-down-time"],
			LastLinkUpTime:   r["last-link-up-time"],
			Timestamp:        now,
		})
	}

	previous, _ := c.store.Interfaces(deviceID)
	var live rate.InstantSource
	if sess, ok := c.session(deviceID); ok {
		live = &trafficMonitor{session: sess}
	}
	c.rates.Derive(ctx, deviceID, current, previous, live)

	for _, iface := range current {
		c.store.AppendInterfacePoint(deviceID, iface.Name, model.InterfacePoint{
			Timestamp: iface.Timestamp,
			RxByte:    iface.RxByte,
			TxByte:    iface.TxByte,
			RxSpeed:   iface.RxSpeed,
			TxSpeed:   iface.TxSpeed,
		})
	}
	c.store.SetInterfaces(deviceID, current)

	if c.alerts != nil {
		c.alerts.CheckInterfaces(deviceID, current)
	}
	return done(FamilyInterfaces, len(current))
}

func (c *Collector) CollectIPAddresses(ctx context.Context, deviceID string) Result {
	rows, res := c.fetch(ctx, deviceID, FamilyIPAddresses, "/ip/address/print")
	if res != nil {
		return *res
	}

	out := make([]model.IPAddress, 0, len(rows))
	for _, r := range rows {
		out = append(out, model.IPAddress{
			DeviceID:  deviceID,
			Address:   r["address"],
			Network:   r["network"],
			Interface: r["interface"],
			Dynamic:   parseBool(r["dynamic"]),
			Disabled:  parseBool(r["disabled"]),
			Comment:   r["comment"],
		})
	}
	c.store.SetIPAddresses(deviceID, out)
	return done(FamilyIPAddresses, len(out))
}

func (c *Collector) CollectARP(ctx context.Context, deviceID string) Result {
	rows, res := c.fetch(ctx, deviceID, FamilyARP, "/ip/arp/print")
	if res != nil {
		return *res
	}

	out := make([]model.ArpEntry, 0, len(rows))
	for _, r := range rows {
		mac := r["mac-address"]
		vendor := c.lookupVendor(mac)
		out = append(out, model.ArpEntry{
			DeviceID:   deviceID,
			Address:    r["address"],
			MACAddress: mac,
			Interface:  r["interface"],
			Dynamic:    parseBool(r["dynamic"]),
			Complete:   parseBool(r["complete"]),
			Vendor:     vendor.Vendor,
			DeviceType: vendor.DeviceType,
		})
	}
	c.store.SetARP(deviceID, out)
	return done(FamilyARP, len(out))
}

func (c *Collector) CollectDHCP(ctx context.Context, deviceID string) Result {
	rows, res := c.fetch(ctx, deviceID, FamilyDHCP, "/ip/dhcp-server/lease/print")
	if res != nil {
		return *res
	}

	out := make([]model.DHCPLease, 0, len(rows))
	for _, r := range rows {
		mac := r["mac-address"]
		vendor := c.lookupVendor(mac)
		out = append(out, model.DHCPLease{
			DeviceID:     deviceID,
			Address:      r["address"],
			MACAddress:   mac,
			ClientID:     r["client-id"],
			Hostname:     r["host-name"],
			Status:       r["status"],
			ExpiresAfter: r["expires-after"],
			Vendor:       vendor.Vendor,
			DeviceType:   vendor.DeviceType,
		})
	}
	c.store.SetDHCPLeases(deviceID, out)
	return done(FamilyDHCP, len(out))
}

func (c *Collector) CollectFirewall(ctx context.Context, deviceID string) Result {
	rows, res := c.fetch(ctx, deviceID, FamilyFirewall, "/ip/firewall/filter/print")
	if res != nil {
		return *res
	}

	out := make([]model.FirewallRule, 0, len(rows))
	for _, r := range rows {
		out = append(out, model.FirewallRule{
			DeviceID: deviceID,
			Chain:    r["chain"],
			Action:   r["action"],
			Disabled: parseBool(r["disabled"]),
			Comment:  r["comment"],
			Bytes:    parseUint(r["bytes"]),
			Packets:  parseUint(r["packets"]),
		})
	}
	c.store.SetFirewallRules(deviceID, out)
	return done(FamilyFirewall, len(out))
}

func (c *Collector) CollectWireless(ctx context.Context, deviceID string) Result {
	rows, res := c.fetch(ctx, deviceID, FamilyWireless, "/interface/wireless/registration-table/print")
	if res != nil {
		return *res
	}

	out := make([]model.WirelessClient, 0, len(rows))
	for _, r := range rows {
		mac := r["mac-address"]
		vendor := c.lookupVendor(mac)
		txBytes, rxBytes := pairCounter(r["bytes"])
		out = append(out, model.WirelessClient{
			DeviceID:       deviceID,
			Interface:      r["interface"],
			MACAddress:     mac,
			SignalStrength: parseInt(r["signal-strength"]),
			TxRate:         r["tx-rate"],
			RxRate:         r["rx-rate"],
			TxBytes:        orUint(r["tx-bytes"], txBytes),
			RxBytes:        orUint(r["rx-bytes"], rxBytes),
			Uptime:         r["uptime"],
			Vendor:         vendor.Vendor,
			DeviceType:     vendor.DeviceType,
		})
	}
	c.store.SetWirelessClients(deviceID, out)
	return done(FamilyWireless, len(out))
}

// CollectCapsman reads the central AP manager registration table. Devices
// without the feature report an unknown command, which counts as empty.
func (c *Collector) CollectCapsman(ctx context.Context, deviceID string) Result {
	rows, res := c.fetch(ctx, deviceID, FamilyCapsman, "/caps-man/registration-table/print")
	if res != nil {
		if errors.Is(res.Err, routeros.ErrNoSuchCommand) {
			c.store.SetCapsmanRegistrations(deviceID, nil)
			return Result{Family: FamilyCapsman, Status: StatusEmpty}
		}
		return *res
	}

	out := make([]model.CapsmanRegistration, 0, len(rows))
	for _, r := range rows {
		mac := r["mac-address"]
		vendor := c.lookupVendor(mac)
		txBytes, rxBytes := pairCounter(r["bytes"])
		out = append(out, model.CapsmanRegistration{
			DeviceID:       deviceID,
			Interface:      r["interface"],
			RadioName:      r["radio-name"],
			MACAddress:     mac,
			RemoteAPMAC:    r["remote-cap-mac"],
			SignalStrength: parseInt(firstOf(r, "signal-strength", "rx-signal")),
			TxRate:         r["tx-rate"],
			RxRate:         r["rx-rate"],
			TxBytes:        orUint(r["tx-bytes"], txBytes),
			RxBytes:        orUint(r["rx-bytes"], rxBytes),
			Uptime:         r["uptime"],
			SSID:           r["ssid"],
			Channel:        r["channel"],
			Comment:        r["comment"],
			Status:         r["status"],
			Vendor:         vendor.Vendor,
			DeviceType:     vendor.DeviceType,
		})
	}
	c.store.SetCapsmanRegistrations(deviceID, out)
	return done(FamilyCapsman, len(out))
}

// firstOf returns the first non-empty attribute among keys
func firstOf(r routeros.Row, keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(r[k]); v != "" {
			return v
		}
	}
	return ""
}
