// Package routeros is the RPC boundary to RouterOS devices. A Session runs
// one API command and returns its reply rows as string maps; the Dialer
// establishes sessions.
package routeros

//go:generate mockgen -source=session.go -destination=mock_session.go -package=routeros

import (
	"context"
	"crypto/tls"
	"errors"
	"net"
	"os"
	"strings"
	"syscall"
	"time"
)

var (
	// ErrNoSuchCommand is returned when the device does not know the command,
	// usually because the feature package is not installed.
	ErrNoSuchCommand = errors.New("no such command")
	ErrNotConnected  = errors.New("not connected")
)

// Row is one reply record, keyed by RouterOS attribute name
type Row map[string]string

// Session is an authenticated API session to one device
type Session interface {
	// Fetch runs command (for example "/interface/print") with optional
	// attribute words ("=interface=ether1") or queries ("?name=ether1").
	Fetch(ctx context.Context, command string, args ...string) ([]Row, error)
	Close() error
}

// Target describes how to reach a device
type Target struct {
	Address   string
	Username  string
	Password  string
	UseTLS    bool
	TLSConfig *tls.Config
	Timeout   time.Duration
}

// Dialer opens sessions
type Dialer interface {
	Dial(ctx context.Context, target Target) (Session, error)
}

// DeviceError is a !trap or !fatal reply from the device
type DeviceError struct {
	Command string
	Message string
}

func (e *DeviceError) Error() string {
	return "routeros: " + e.Command + ": " + e.Message
}

// Is lets errors.Is(err, ErrNoSuchCommand) match unknown-command traps
func (e *DeviceError) Is(target error) bool {
	return target == ErrNoSuchCommand && isNoSuchCommand(e.Message)
}

func isNoSuchCommand(msg string) bool {
	msg = strings.ToLower(msg)
	return strings.Contains(msg, "no such command") ||
		strings.Contains(msg, "unknown command")
}

// IsTimeout reports whether err is a deadline or socket timeout
func IsTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// IsRefused reports whether the device actively rejected the connection
// or answered with a protocol-level error
func IsRefused(err error) bool {
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) {
		return true
	}
	var devErr *DeviceError
	return errors.As(err, &devErr)
}

// IsTransport reports whether err left the session unusable. Device traps do not.
func IsTransport(err error) bool {
	if err == nil {
		return false
	}
	var devErr *DeviceError
	if errors.As(err, &devErr) {
		return false
	}
	return !errors.Is(err, context.Canceled)
}
