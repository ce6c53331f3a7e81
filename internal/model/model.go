package model

import (
	"time"

	"github.com/google/uuid"
)

const (
	DefaultAPIPort  = 8728
	DefaultTLSPort  = 8729
	DefaultUsername = "admin"

	// StatusDisconnected is the status message of an explicitly disconnected device
	StatusDisconnected = "Disconnected"
)

// Device is a monitored RouterOS endpoint
type Device struct {
	ID       string `json:"id" yaml:"id" validate:"required"`
	Name     string `json:"name" yaml:"name" validate:"required"`
	Host     string `json:"host" yaml:"host" validate:"required,hostname_rfc1123|ip"`
	Port     int    `json:"port" yaml:"port" validate:"omitempty,min=1,max=65535"`
	Username string `json:"username" yaml:"username"`
	Password string `json:"-" yaml:"password"`
	// UseTLS overrides the global transport-security default when set
	UseTLS  *bool  `json:"use_tls,omitempty" yaml:"use_tls,omitempty"`
	Enabled bool   `json:"enabled" yaml:"enabled"`
	SiteID  string `json:"site_id,omitempty" yaml:"site_id,omitempty"`
	Comment string `json:"comment,omitempty" yaml:"comment,omitempty"`

	Location string `json:"location,omitempty" yaml:"location,omitempty"`

	// Status fields, owned by the connection manager
	LastConnected *time.Time `json:"last_connected,omitempty" yaml:"-"`
	ErrorMessage  string     `json:"error_message,omitempty" yaml:"-"`
}

// EffectiveTLS resolves the per-device override against the global default
func (d *Device) EffectiveTLS(global bool) bool {
	if d.UseTLS != nil {
		return *d.UseTLS
	}
	return global
}

// EffectivePort returns the configured port or the API default for the transport
func (d *Device) EffectivePort(useTLS bool) int {
	if d.Port > 0 {
		return d.Port
	}
	if useTLS {
		return DefaultTLSPort
	}
	return DefaultAPIPort
}

// EffectiveUsername falls back to the RouterOS factory account
func (d *Device) EffectiveUsername() string {
	if d.Username == "" {
		return DefaultUsername
	}
	return d.Username
}

// Site groups devices by physical location
type Site struct {
	ID          string `json:"id" yaml:"id" validate:"required"`
	Name        string `json:"name" yaml:"name" validate:"required"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Location    string `json:"location,omitempty" yaml:"location,omitempty"`
	Contact     string `json:"contact,omitempty" yaml:"contact,omitempty"`
	Enabled     bool   `json:"enabled" yaml:"enabled"`
}

// SystemSnapshot is the latest system resource reading of a device
type SystemSnapshot struct {
	DeviceID         string    `json:"device_id"`
	Timestamp        time.Time `json:"timestamp"`
	Identity         string    `json:"identity,omitempty"`
	Uptime           string    `json:"uptime"`
	Version          string    `json:"version"`
	CPULoad          float64   `json:"cpu_load"`
	FreeMemory       uint64    `json:"free_memory"`
	TotalMemory      uint64    `json:"total_memory"`
	FreeHDDSpace     uint64    `json:"free_hdd_space"`
	TotalHDDSpace    uint64    `json:"total_hdd_space"`
	ArchitectureName string    `json:"architecture_name,omitempty"`
	BoardName        string    `json:"board_name,omitempty"`
	Platform         string    `json:"platform,omitempty"`
}

// MemoryUsage reports used memory in percent. ok is false when the total is unknown.
func (s *SystemSnapshot) MemoryUsage() (pct float64, ok bool) {
	return usagePercent(s.FreeMemory, s.TotalMemory)
}

// DiskUsage reports used storage in percent. ok is false when the total is unknown.
func (s *SystemSnapshot) DiskUsage() (pct float64, ok bool) {
	return usagePercent(s.FreeHDDSpace, s.TotalHDDSpace)
}

func usagePercent(free, total uint64) (float64, bool) {
	if total == 0 {
		return 0, false
	}
	if free > total {
		free = total
	}
	return 100 * float64(total-free) / float64(total), true
}

// InterfaceSnapshot carries the absolute counters of one interface plus derived speeds
type InterfaceSnapshot struct {
	DeviceID         string    `json:"device_id"`
	Name             string    `json:"name"`
	Type             string    `json:"type"`
	Running          bool      `json:"running"`
	Disabled         bool      `json:"disabled"`
	Comment          string    `json:"comment,omitempty"`
	MACAddress       string    `json:"mac_address,omitempty"`
	MTU              int       `json:"mtu,omitempty"`
	RxByte           uint64    `json:"rx_byte"`
	TxByte           uint64    `json:"tx_byte"`
	RxPacket         uint64    `json:"rx_packet"`
	TxPacket         uint64    `json:"tx_packet"`
	RxError          uint64    `json:"rx_error"`
	TxError          uint64    `json:"tx_error"`
	RxDrop           uint64    `json:"rx_drop"`
	TxDrop           uint64    `json:"tx_drop"`
	LastLinkDownTime string    `json:"last_link_down_time,omitempty"`
	LastLinkUpTime   string    `json:"last_link_up_time,omitempty"`
	Timestamp        time.Time `json:"timestamp"`

	// Derived, bytes per second
	RxSpeed    float64 `json:"rx_speed"`
	TxSpeed    float64 `json:"tx_speed"`
	PrevRxByte *uint64 `json:"prev_rx_byte,omitempty"`
	PrevTxByte *uint64 `json:"prev_tx_byte,omitempty"`
}

type IPAddress struct {
	DeviceID  string `json:"device_id"`
	Address   string `json:"address"`
	Network   string `json:"network"`
	Interface string `json:"interface"`
	Dynamic   bool   `json:"dynamic"`
	Disabled  bool   `json:"disabled"`
	Comment   string `json:"comment,omitempty"`
}

type ArpEntry struct {
	DeviceID   string `json:"device_id"`
	Address    string `json:"address"`
	MACAddress string `json:"mac_address"`
	Interface  string `json:"interface"`
	Dynamic    bool   `json:"dynamic"`
	Complete   bool   `json:"complete"`
	Vendor     string `json:"vendor,omitempty"`
	DeviceType string `json:"device_type,omitempty"`
}

type DHCPLease struct {
	DeviceID     string `json:"device_id"`
	Address      string `json:"address"`
	MACAddress   string `json:"mac_address"`
	ClientID     string `json:"client_id,omitempty"`
	Hostname     string `json:"hostname,omitempty"`
	Status       string `json:"status"`
	ExpiresAfter string `json:"expires_after,omitempty"`
	Vendor       string `json:"vendor,omitempty"`
	DeviceType   string `json:"device_type,omitempty"`
}

type FirewallRule struct {
	DeviceID string `json:"device_id"`
	Chain    string `json:"chain"`
	Action   string `json:"action"`
	Disabled bool   `json:"disabled"`
	Comment  string `json:"comment,omitempty"`
	Bytes    uint64 `json:"bytes"`
	Packets  uint64 `json:"packets"`
}

// WirelessClient is one row of the local wireless registration table
type WirelessClient struct {
	DeviceID       string `json:"device_id"`
	Interface      string `json:"interface"`
	MACAddress     string `json:"mac_address"`
	SignalStrength int    `json:"signal_strength"`
	TxRate         string `json:"tx_rate"`
	RxRate         string `json:"rx_rate"`
	TxBytes        uint64 `json:"tx_bytes"`
	RxBytes        uint64 `json:"rx_bytes"`
	Uptime         string `json:"uptime"`
	Vendor         string `json:"vendor,omitempty"`
	DeviceType     string `json:"device_type,omitempty"`
}

// CapsmanRegistration is a client associated through a centrally managed access point
type CapsmanRegistration struct {
	DeviceID       string `json:"device_id"`
	Interface      string `json:"interface"`
	RadioName      string `json:"radio_name,omitempty"`
	MACAddress     string `json:"mac_address"`
	RemoteAPMAC    string `json:"remote_ap_mac,omitempty"`
	SignalStrength int    `json:"signal_strength"`
	TxRate         string `json:"tx_rate"`
	RxRate         string `json:"rx_rate"`
	TxBytes        uint64 `json:"tx_bytes"`
	RxBytes        uint64 `json:"rx_bytes"`
	Uptime         string `json:"uptime"`
	SSID           string `json:"ssid,omitempty"`
	Channel        string `json:"channel,omitempty"`
	Comment        string `json:"comment,omitempty"`
	Status         string `json:"status,omitempty"`
	Vendor         string `json:"vendor,omitempty"`
	DeviceType     string `json:"device_type,omitempty"`
}

type LogEntry struct {
	DeviceID string `json:"device_id"`
	Time     string `json:"time"`
	Topics   string `json:"topics"`
	Message  string `json:"message"`
}

// AlertType is the closed set of conditions the alert engine can raise
type AlertType string

const (
	AlertCPULoad        AlertType = "cpu_load"
	AlertMemoryUsage    AlertType = "memory_usage"
	AlertDiskUsage      AlertType = "disk_usage"
	AlertInterfaceDown  AlertType = "interface_down"
	AlertInterfaceError AlertType = "interface_errors"
	AlertInterfaceDrop  AlertType = "interface_drops"
	AlertInterfaceUsage AlertType = "interface_usage"
)

type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

// Alert is a raised condition. At most one active, unresolved alert exists per (DeviceID, Type).
type Alert struct {
	ID         uuid.UUID  `json:"id"`
	DeviceID   string     `json:"device_id"`
	Type       AlertType  `json:"type"`
	Message    string     `json:"message"`
	Severity   Severity   `json:"severity"`
	Created    time.Time  `json:"timestamp"`
	Active     bool       `json:"active"`
	Resolved   bool       `json:"resolved"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
}

// SystemPoint is one row of a device's system history
type SystemPoint struct {
	Timestamp   time.Time `json:"timestamp"`
	CPULoad     float64   `json:"cpu_load"`
	MemoryUsage float64   `json:"memory_usage"`
	FreeMemory  uint64    `json:"free_memory"`
	TotalMemory uint64    `json:"total_memory"`
}

// InterfacePoint is one row of an interface's traffic history
type InterfacePoint struct {
	Timestamp time.Time `json:"timestamp"`
	RxByte    uint64    `json:"rx_byte"`
	TxByte    uint64    `json:"tx_byte"`
	RxSpeed   float64   `json:"rx_speed"`
	TxSpeed   float64   `json:"tx_speed"`
}
