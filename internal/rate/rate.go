// Package rate turns successive absolute interface counters into
// bytes-per-second speeds.
package rate

import (
	"context"
	"log/slog"
	"math"

	"github.com/huannv-sys/mik-moni-demo/internal/model"
)

const (
	// Precision is the number of decimals kept for derived speeds
	Precision = 2
	// Epsilon is reported instead of zero when bytes moved but the rate rounds away
	Epsilon = 0.01
)

// Instant is a device-reported rate in bytes per second
type Instant struct {
	Rx float64
	Tx float64
}

// InstantSource asks the device for its own current rates, keyed by interface name.
// Interfaces missing from the result fall back to counter deltas.
type InstantSource interface {
	InstantRates(ctx context.Context, names []string) (map[string]Instant, error)
}

// Engine derives speeds for a freshly collected interface set
type Engine struct {
	logger *slog.Logger
}

func NewEngine(logger *slog.Logger) *Engine {
	return &Engine{logger: logger.With("component", "rate_engine")}
}

// Derive fills RxSpeed/TxSpeed and the previous counters of current, using the
// outgoing set as the previous observation. current is modified in place.
// live may be nil.
func (e *Engine) Derive(ctx context.Context, deviceID string, current, previous []model.InterfaceSnapshot, live InstantSource) {
	prevByName := make(map[string]model.InterfaceSnapshot, len(previous))
	for _, p := range previous {
		prevByName[p.Name] = p
	}

	// only interfaces with a usable previous observation are eligible
	var eligible []string
	for i := range current {
		cur := &current[i]
		cur.RxSpeed, cur.TxSpeed = 0, 0
		prev, ok := prevByName[cur.Name]
		if !ok {
			continue
		}
		rx, tx := prev.RxByte, prev.TxByte
		cur.PrevRxByte, cur.PrevTxByte = &rx, &tx
		if cur.Timestamp.Sub(prev.Timestamp) > 0 {
			eligible = append(eligible, cur.Name)
		}
	}
	if len(eligible) == 0 {
		return
	}

	var instant map[string]Instant
	if live != nil {
		var err error
		instant, err = live.InstantRates(ctx, eligible)
		if err != nil {
			e.logger.Debug("instant rates unavailable, using counter deltas",
				"device_id", deviceID,
				"error", err,
			)
			instant = nil
		}
	}

	for i := range current {
		cur := &current[i]
		prev, ok := prevByName[cur.Name]
		if !ok {
			continue
		}
		elapsed := cur.Timestamp.Sub(prev.Timestamp).Seconds()
		if elapsed <= 0 {
			continue
		}

		if r, ok := instant[cur.Name]; ok {
			cur.RxSpeed, cur.TxSpeed = r.Rx, r.Tx
			continue
		}

		cur.RxSpeed = Speed(CounterDelta(prev.RxByte, cur.RxByte), elapsed)
		cur.TxSpeed = Speed(CounterDelta(prev.TxByte, cur.TxByte), elapsed)
	}
}

// CounterDelta is the number of bytes moved between two absolute readings.
// A decrease means the counter was reset, so the current value is the delta.
func CounterDelta(prev, cur uint64) uint64 {
	if cur < prev {
		return cur
	}
	return cur - prev
}

// Speed divides delta by elapsed seconds and rounds to Precision. A positive
// delta never yields zero; it is clamped up to Epsilon.
func Speed(delta uint64, elapsedSeconds float64) float64 {
	if delta == 0 || elapsedSeconds <= 0 {
		return 0
	}
	v := Round(float64(delta) / elapsedSeconds)
	if v <= 0 {
		return Epsilon
	}
	return v
}

// Round rounds v to Precision decimals
func Round(v float64) float64 {
	p := math.Pow10(Precision)
	return math.Round(v*p) / p
}
