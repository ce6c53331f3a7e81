// Package oui resolves MAC addresses to vendor names using the IEEE
// organisationally unique identifier prefix.
package oui

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

var ErrUnknown = errors.New("unknown vendor")

// Info describes the manufacturer behind a MAC address
type Info struct {
	Vendor     string `yaml:"vendor" json:"vendor"`
	DeviceType string `yaml:"device_type" json:"device_type,omitempty"`
}

// Lookup resolves a MAC address
type Lookup interface {
	Lookup(mac string) (Info, error)
}

// Table is an in-memory prefix table keyed by the first three octets
type Table struct {
	entries map[string]Info
}

// NewTable builds a table from prefix -> info pairs. Prefixes may use any
// of the common separators.
func NewTable(entries map[string]Info) *Table {
	t := &Table{entries: make(map[string]Info, len(entries))}
	for prefix, info := range entries {
		if key, ok := prefixKey(prefix); ok {
			t.entries[key] = info
		}
	}
	return t
}

// Builtin returns a small table of vendors common on RouterOS networks
func Builtin() *Table {
	return NewTable(builtin)
}

// LoadFile reads a YAML mapping of prefix to {vendor, device_type} and layers
// it over the builtin table
func LoadFile(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read vendor file: %w", err)
	}
	var entries map[string]Info
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse vendor file: %w", err)
	}

	t := Builtin()
	for prefix, info := range entries {
		key, ok := prefixKey(prefix)
		if !ok {
			return nil, fmt.Errorf("invalid OUI prefix %q", prefix)
		}
		t.entries[key] = info
	}
	return t, nil
}

// Len returns the number of prefixes known
func (t *Table) Len() int {
	return len(t.entries)
}

func (t *Table) Lookup(mac string) (Info, error) {
	key, ok := prefixKey(mac)
	if !ok {
		return Info{}, fmt.Errorf("invalid MAC address %q", mac)
	}
	if info, ok := t.entries[key]; ok {
		return info, nil
	}
	if isLocallyAdministered(key) {
		return Info{Vendor: "Private", DeviceType: "randomized"}, nil
	}
	return Info{}, ErrUnknown
}

// prefixKey normalises the first 24 bits to "AABBCC"
func prefixKey(s string) (string, bool) {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9', r >= 'A' && r <= 'F':
			b.WriteRune(r)
		case r >= 'a' && r <= 'f':
			b.WriteRune(r - 'a' + 'A')
		case r == ':' || r == '-' || r == '.':
		default:
			return "", false
		}
		if b.Len() == 6 {
			return b.String(), true
		}
	}
	return "", false
}

// the second-least-significant bit of the first octet marks locally assigned
// addresses, used by phones for MAC randomisation
func isLocallyAdministered(key string) bool {
	const hex = "0123456789ABCDEF"
	nibble := strings.IndexByte(hex, key[1])
	return nibble >= 0 && nibble&0x2 != 0
}

var builtin = map[string]Info{
	"4C:5E:0C": {Vendor: "MikroTik", DeviceType: "router"},
	"64:D1:54": {Vendor: "MikroTik", DeviceType: "router"},
	"6C:3B:6B": {Vendor: "MikroTik", DeviceType: "router"},
	"B8:69:F4": {Vendor: "MikroTik", DeviceType: "router"},
	"CC:2D:E0": {Vendor: "MikroTik", DeviceType: "router"},
	"D4:CA:6D": {Vendor: "MikroTik", DeviceType: "router"},
	"E4:8D:8C": {Vendor: "MikroTik", DeviceType: "router"},
	"18:E8:29": {Vendor: "Ubiquiti", DeviceType: "access_point"},
	"24:5A:4C": {Vendor: "Ubiquiti", DeviceType: "access_point"},
	"78:8A:20": {Vendor: "Ubiquiti", DeviceType: "access_point"},
	"00:1B:63": {Vendor: "Apple", DeviceType: "computer"},
	"3C:22:FB": {Vendor: "Apple", DeviceType: "mobile"},
	"F0:18:98": {Vendor: "Apple", DeviceType: "mobile"},
	"00:16:32": {Vendor: "Samsung", DeviceType: "mobile"},
	"8C:77:12": {Vendor: "Samsung", DeviceType: "mobile"},
	"00:0C:29": {Vendor: "VMware", DeviceType: "virtual"},
	"52:54:00": {Vendor: "QEMU", DeviceType: "virtual"},
	"B8:27:EB": {Vendor: "Raspberry Pi", DeviceType: "computer"},
	"DC:A6:32": {Vendor: "Raspberry Pi", DeviceType: "computer"},
	"00:50:56": {Vendor: "VMware", DeviceType: "virtual"},
	"F4:F2:6D": {Vendor: "TP-Link", DeviceType: "access_point"},
	"50:C7:BF": {Vendor: "TP-Link", DeviceType: "access_point"},
	"00:1A:11": {Vendor: "Google", DeviceType: "mobile"},
	"00:15:5D": {Vendor: "Microsoft", DeviceType: "virtual"},
}
