package feed

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/huannv-sys/mik-moni-demo/internal/config"
	"github.com/huannv-sys/mik-moni-demo/internal/model"
)

// Source is the read side of the state store the broadcaster samples
type Source interface {
	Devices() []model.Device
	Interfaces(deviceID string) ([]model.InterfaceSnapshot, bool)
}

// Publisher delivers a message to every connected client. It must not block.
type Publisher interface {
	Broadcast(msgType, deviceID string, payload any)
}

// Broadcaster periodically publishes a SpeedFrame per enabled device
type Broadcaster struct {
	src    Source
	pub    Publisher
	logger *slog.Logger

	interval      time.Duration
	hpInterval    time.Duration
	highPrecision atomic.Bool
	wake          chan struct{}
}

func NewBroadcaster(src Source, pub Publisher, cfg config.FeedConfig, logger *slog.Logger) *Broadcaster {
	interval := cfg.Interval()
	if interval <= 0 {
		interval = 5 * time.Second
	}
	hp := cfg.HighPrecisionInterval()
	if hp <= 0 {
		hp = time.Second
	}
	return &Broadcaster{
		src:        src,
		pub:        pub,
		logger:     logger.With("component", "feed_broadcaster"),
		interval:   interval,
		hpInterval: hp,
		wake:       make(chan struct{}, 1),
	}
}

// SetHighPrecision switches the emit period. The change applies immediately.
func (b *Broadcaster) SetHighPrecision(on bool) {
	if b.highPrecision.Swap(on) == on {
		return
	}
	b.logger.Info("high precision mode changed", "enabled", on)
	select {
	case b.wake <- struct{}{}:
	default:
	}
}

func (b *Broadcaster) HighPrecision() bool {
	return b.highPrecision.Load()
}

// Interval returns the current emit period
func (b *Broadcaster) Interval() time.Duration {
	if b.highPrecision.Load() {
		return b.hpInterval
	}
	return b.interval
}

// Frames builds one frame per enabled device that has interface data
func (b *Broadcaster) Frames() []SpeedFrame {
	hp := b.highPrecision.Load()
	var frames []SpeedFrame
	for _, d := range b.src.Devices() {
		if !d.Enabled {
			continue
		}
		ifaces, ok := b.src.Interfaces(d.ID)
		if !ok || len(ifaces) == 0 {
			continue
		}
		frame := SpeedFrame{
			DeviceID:      d.ID,
			DeviceName:    d.Name,
			Interfaces:    make([]InterfaceSpeed, 0, len(ifaces)),
			HighPrecision: hp,
		}
		for _, i := range ifaces {
			frame.Interfaces = append(frame.Interfaces, InterfaceSpeed{
				Name:      i.Name,
				Type:      i.Type,
				RxSpeed:   i.RxSpeed,
				TxSpeed:   i.TxSpeed,
				RxByte:    i.RxByte,
				TxByte:    i.TxByte,
				Running:   i.Running,
				Disabled:  i.Disabled,
				Timestamp: i.Timestamp,
			})
		}
		frames = append(frames, frame)
	}
	return frames
}

// Run emits frames until ctx is cancelled
func (b *Broadcaster) Run(ctx context.Context) error {
	b.logger.Info("starting feed broadcaster", "interval", b.interval, "high_precision_interval", b.hpInterval)
	for {
		frames := b.Frames()
		for _, f := range frames {
			b.pub.Broadcast(TypeNetworkSpeeds, f.DeviceID, f)
		}
		if len(frames) > 0 {
			b.logger.Debug("published speed frames", "count", len(frames))
		}

		timer := time.NewTimer(b.Interval())
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-b.wake:
			timer.Stop()
		case <-timer.C:
		}
	}
}
