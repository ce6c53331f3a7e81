package poller

import (
	"context"
	"sync"
)

type slot struct {
	ch     chan struct{}
	forget bool
}

// DeviceSlots guarantees at most one collection cycle per device at a time
type DeviceSlots struct {
	mu    sync.Mutex
	slots map[string]*slot
}

func NewDeviceSlots() *DeviceSlots {
	return &DeviceSlots{slots: make(map[string]*slot)}
}

func (d *DeviceSlots) lookup(deviceID string) *slot {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lookupLocked(deviceID)
}

func (d *DeviceSlots) lookupLocked(deviceID string) *slot {
	s, ok := d.slots[deviceID]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		d.slots[deviceID] = s
	}
	return s
}

func (d *DeviceSlots) releaser(deviceID string, s *slot) func() {
	return func() {
		<-s.ch
		d.mu.Lock()
		defer d.mu.Unlock()
		if s.forget && len(s.ch) == 0 && d.slots[deviceID] == s {
			delete(d.slots, deviceID)
		}
	}
}

// TryAcquire takes the device's slot without waiting. The returned release
// func must be called exactly once when ok is true.
func (d *DeviceSlots) TryAcquire(deviceID string) (release func(), ok bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	s := d.lookupLocked(deviceID)
	select {
	case s.ch <- struct{}{}:
		s.forget = false
		return d.releaser(deviceID, s), true
	default:
		return nil, false
	}
}

// Acquire waits for the device's slot or for ctx to end
func (d *DeviceSlots) Acquire(ctx context.Context, deviceID string) (release func(), err error) {
	for {
		s := d.lookup(deviceID)
		select {
		case s.ch <- struct{}{}:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		// the slot may have been forgotten while we waited on it
		if d.claim(deviceID, s) {
			return d.releaser(deviceID, s), nil
		}
		<-s.ch
	}
}

func (d *DeviceSlots) claim(deviceID string, s *slot) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.slots[deviceID] != s {
		return false
	}
	s.forget = false
	return true
}

// Forget drops the device's slot. A held slot is dropped by its release.
func (d *DeviceSlots) Forget(deviceID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	s, ok := d.slots[deviceID]
	if !ok {
		return
	}
	if len(s.ch) == 0 {
		delete(d.slots, deviceID)
		return
	}
	s.forget = true
}

// Busy reports whether a cycle currently holds the device's slot
func (d *DeviceSlots) Busy(deviceID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	s, ok := d.slots[deviceID]
	return ok && len(s.ch) > 0
}

// Len returns the number of tracked devices
func (d *DeviceSlots) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.slots)
}
