// Package connection owns the RouterOS API sessions, one per device at most,
// and the retry policy used to establish them.
package connection

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"
	"golang.org/x/sync/singleflight"

	"github.com/huannv-sys/mik-moni-demo/internal/config"
	"github.com/huannv-sys/mik-moni-demo/internal/model"
	"github.com/huannv-sys/mik-moni-demo/internal/routeros"
)

// FailureKind classifies why a connect attempt failed
type FailureKind string

const (
	FailureRefused    FailureKind = "refused"
	FailureTimeout    FailureKind = "timeout"
	FailureUnexpected FailureKind = "unexpected"
)

// ConnectError is returned once every attempt has failed
type ConnectError struct {
	DeviceID string
	Kind     FailureKind
	Attempts int
	Err      error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("connect %s failed after %d attempt(s) (%s): %v", e.DeviceID, e.Attempts, e.Kind, e.Err)
}

func (e *ConnectError) Unwrap() error {
	return e.Err
}

// Classify maps a dial or login error onto a FailureKind
func Classify(err error) FailureKind {
	switch {
	case routeros.IsTimeout(err):
		return FailureTimeout
	case routeros.IsRefused(err):
		return FailureRefused
	default:
		return FailureUnexpected
	}
}

// StatusRecorder receives device status transitions
type StatusRecorder interface {
	MarkConnected(id string, at time.Time)
	MarkFailed(id, message string)
	MarkUnreachable(id, message string)
	MarkDisconnected(id string)
}

// Manager keeps at most one live session per device
type Manager struct {
	dialer routeros.Dialer
	status StatusRecorder
	cfg    config.ConnectionConfig
	logger *slog.Logger
	now    func() time.Time

	mu       sync.RWMutex
	sessions map[string]routeros.Session

	connects singleflight.Group
}

// NewManager creates a connection manager
func NewManager(dialer routeros.Dialer, status StatusRecorder, cfg config.ConnectionConfig, logger *slog.Logger) *Manager {
	return &Manager{
		dialer:   dialer,
		status:   status,
		cfg:      cfg,
		logger:   logger.With("component", "connection_manager"),
		now:      time.Now,
		sessions: make(map[string]routeros.Session),
	}
}

// Connect establishes a session for device. It succeeds without dialing when
// a session is already held. Otherwise it makes 1 + retries attempts with a
// constant delay between them.
// Concurrent calls for the same device share one attempt sequence.
func (m *Manager) Connect(ctx context.Context, device model.Device) error {
	_, err, _ := m.connects.Do(device.ID, func() (any, error) {
		return nil, m.connect(ctx, device)
	})
	return err
}

func (m *Manager) connect(ctx context.Context, device model.Device) error {
	if m.IsConnected(device.ID) {
		return nil
	}
	logger := m.logger.With("device_id", device.ID)

	useTLS := device.EffectiveTLS(m.cfg.UseTLS)
	target := routeros.Target{
		Address:  net.JoinHostPort(device.Host, strconv.Itoa(device.EffectivePort(useTLS))),
		Username: device.EffectiveUsername(),
		Password: device.Password,
		UseTLS:   useTLS,
		Timeout:  m.cfg.Timeout(),
	}
	if useTLS {
		target.TLSConfig = &tls.Config{
			ServerName:         device.Host,
			InsecureSkipVerify: m.cfg.TLSSkipVerify, // RouterOS ships self-signed api-ssl certificates
		}
	}

	retries := m.cfg.Retries
	if retries < 0 {
		retries = 0
	}
	backoff := retry.WithMaxRetries(uint64(retries), retry.NewConstant(max(m.cfg.RetryDelay(), time.Millisecond)))

	attempts := 0
	var lastErr error
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempts++
		session, err := m.dialer.Dial(ctx, target)
		if err != nil {
			lastErr = err
			logger.Info("connect attempt failed",
				"attempt", attempts,
				"max_attempts", retries+1,
				"address", target.Address,
				"kind", Classify(err),
				"error", err,
			)
			return retry.RetryableError(err)
		}

		m.mu.Lock()
		m.sessions[device.ID] = session
		m.mu.Unlock()
		return nil
	})
	if err == nil {
		m.status.MarkConnected(device.ID, m.now())
		logger.Info("connected", "address", target.Address, "attempts", attempts, "tls", useTLS)
		return nil
	}

	if lastErr == nil {
		// cancelled before the first attempt finished
		lastErr = err
	}
	connErr := &ConnectError{
		DeviceID: device.ID,
		Kind:     Classify(lastErr),
		Attempts: attempts,
		Err:      lastErr,
	}
	m.status.MarkUnreachable(device.ID, connErr.Error())
	logger.Error("connect failed",
		"address", target.Address,
		"attempts", attempts,
		"kind", connErr.Kind,
		"error", lastErr,
	)
	return connErr
}

// Disconnect closes the device's session, if any, and marks it disconnected
// either way. Close errors are logged and otherwise ignored.
func (m *Manager) Disconnect(deviceID string) {
	m.closeSession(deviceID)
	m.status.MarkDisconnected(deviceID)
}

// Drop discards a session left unusable by a transport error without
// clearing the device's error state
func (m *Manager) Drop(deviceID string, cause error) {
	if m.closeSession(deviceID) {
		m.status.MarkFailed(deviceID, cause.Error())
		m.logger.Warn("session dropped", "device_id", deviceID, "error", cause)
	}
}

// DisconnectAll closes every session
func (m *Manager) DisconnectAll() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]routeros.Session)
	m.mu.Unlock()

	for id, s := range sessions {
		if err := s.Close(); err != nil {
			m.logger.Warn("close session failed", "device_id", id, "error", err)
		}
		m.status.MarkDisconnected(id)
	}
}

// IsConnected reports whether a session is held for the device
func (m *Manager) IsConnected(deviceID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.sessions[deviceID]
	return ok
}

// Session returns the device's live session
func (m *Manager) Session(deviceID string) (routeros.Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[deviceID]
	return s, ok
}

// Connected returns the IDs of devices holding a session
func (m *Manager) Connected() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	return ids
}

func (m *Manager) closeSession(deviceID string) bool {
	m.mu.Lock()
	s, ok := m.sessions[deviceID]
	delete(m.sessions, deviceID)
	m.mu.Unlock()

	if !ok {
		return false
	}
	if err := s.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		m.logger.Warn("close session failed", "device_id", deviceID, "error", err)
	}
	return true
}
