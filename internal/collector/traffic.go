package collector

import (
	"context"
	"strings"

	"github.com/huannv-sys/mik-moni-demo/internal/rate"
	"github.com/huannv-sys/mik-moni-demo/internal/routeros"
)

// trafficMonitor asks the device for its own per-interface rates with a
// single one-shot monitor-traffic query
type trafficMonitor struct {
	session routeros.Session
}

func (t *trafficMonitor) InstantRates(ctx context.Context, names []string) (map[string]rate.Instant, error) {
	rows, err := t.session.Fetch(ctx, "/interface/monitor-traffic",
		"=interface="+strings.Join(names, ","),
		"=once=",
	)
	if err != nil {
		return nil, err
	}

	out := make(map[string]rate.Instant, len(rows))
	for _, r := range rows {
		name := r["name"]
		if name == "" && len(names) == 1 {
			name = names[0]
		}
		rx, hasRx := r["rx-bits-per-second"]
		tx, hasTx := r["tx-bits-per-second"]
		if name == "" || !hasRx || !hasTx {
			continue
		}
		out[name] = rate.Instant{
			Rx: rate.Round(parseFloat(rx) / 8),
			Tx: rate.Round(parseFloat(tx) / 8),
		}
	}
	return out, nil
}
