// Package feed pushes live interface speeds, alerts and device state to
// websocket clients.
package feed

import "time"

// Outbound message types
const (
	TypeNetworkSpeeds        = "network_speeds"
	TypeDeviceError          = "device_error"
	TypeDeviceStatus         = "device_status"
	TypeAlert                = "alert"
	TypeHighPrecisionChanged = "high_precision_changed"
)

// Inbound message types
const (
	TypeSetHighPrecision = "set_high_precision"
	TypeJoinDevice       = "join_device"
)

// WsMessage is the envelope for every outbound websocket event
type WsMessage struct {
	Type      string    `json:"type"`
	DeviceID  string    `json:"device_id,omitempty"`
	Payload   any       `json:"payload"`
	Timestamp time.Time `json:"timestamp"`
}

// ClientMessage is what clients send to the hub
type ClientMessage struct {
	Type     string `json:"type"`
	DeviceID string `json:"device_id,omitempty"`
	Enabled  bool   `json:"enabled,omitempty"`
}

// InterfaceSpeed is one interface entry of a SpeedFrame
type InterfaceSpeed struct {
	Name      string    `json:"name"`
	Type      string    `json:"type"`
	RxSpeed   float64   `json:"rx_speed"`
	TxSpeed   float64   `json:"tx_speed"`
	RxByte    uint64    `json:"rx_byte"`
	TxByte    uint64    `json:"tx_byte"`
	Running   bool      `json:"running"`
	Disabled  bool      `json:"disabled"`
	Timestamp time.Time `json:"timestamp"`
}

// SpeedFrame carries the latest derived speeds of one device
type SpeedFrame struct {
	DeviceID      string           `json:"device_id"`
	DeviceName    string           `json:"device_name"`
	Interfaces    []InterfaceSpeed `json:"interfaces"`
	HighPrecision bool             `json:"high_precision"`
}

type deviceErrorPayload struct {
	DeviceID string `json:"device_id"`
	Message  string `json:"message"`
}

type deviceStatusPayload struct {
	DeviceID string `json:"device_id"`
	State    string `json:"state"`
	Error    string `json:"error,omitempty"`
}

type precisionPayload struct {
	Enabled bool `json:"enabled"`
}
