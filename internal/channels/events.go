package channels

import (
	"context"
	"sync"
	"time"

	"github.com/huannv-sys/mik-moni-demo/internal/model"
)

// AlertRaisedEvent is published when a new alert is stored
type AlertRaisedEvent struct {
	Alert model.Alert
}

// DeviceState values
const (
	DeviceUp     = "up"
	DeviceDown   = "down"
	DevicePurged = "purged"
)

// DeviceStateEvent is published after each collection cycle and on purge
type DeviceStateEvent struct {
	DeviceID  string
	State     string
	Error     string // only set when State == DeviceDown
	Timestamp time.Time
}

// CycleCompletedEvent summarises one collectAll run
type CycleCompletedEvent struct {
	DeviceID  string
	Success   bool
	Families  map[string]bool
	Duration  time.Duration
	Timestamp time.Time
}

// EventChannels provides typed channels for all system events
type EventChannels struct {
	AlertRaised    chan AlertRaisedEvent
	DeviceState    chan DeviceStateEvent
	CycleCompleted chan CycleCompletedEvent

	// Graceful shutdown
	done      chan struct{}
	closeOnce sync.Once
}

// NewEventChannels creates a new EventChannels hub with configured buffer sizes.
// Cancelling ctx has the same effect as Close.
func NewEventChannels(ctx context.Context, cfg EventChannelsConfig) *EventChannels {
	ec := &EventChannels{
		AlertRaised:    make(chan AlertRaisedEvent, cfg.AlertBufferSize),
		DeviceState:    make(chan DeviceStateEvent, cfg.DeviceStateBufferSize),
		CycleCompleted: make(chan CycleCompletedEvent, cfg.CycleBufferSize),
		done:           make(chan struct{}),
	}
	go func() {
		select {
		case <-ctx.Done():
			ec.Close()
		case <-ec.done:
		}
	}()
	return ec
}

// Close signals shutdown to all consumers. It is safe to call more than once.
func (ec *EventChannels) Close() error {
	ec.closeOnce.Do(func() { close(ec.done) })
	return nil
}

// Done returns a channel that's closed when the EventChannels is shutting down
func (ec *EventChannels) Done() <-chan struct{} {
	return ec.done
}

// Send delivers evt on ch without blocking. It reports false when the channel
// is full or the hub is shutting down.
func Send[T any](ec *EventChannels, ch chan T, evt T) bool {
	select {
	case <-ec.done:
		return false
	default:
	}
	select {
	case ch <- evt:
		return true
	default:
		return false
	}
}
