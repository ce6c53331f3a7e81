package channels

import (
	"context"
	"log/slog"
)

// StartCycleLogger starts a goroutine that logs completed collection cycles
func StartCycleLogger(ctx context.Context, events *EventChannels, logger *slog.Logger) {
	go func() {
		for {
			select {
			case event := <-events.CycleCompleted:
				failed := make([]string, 0)
				for family, ok := range event.Families {
					if !ok {
						failed = append(failed, family)
					}
				}
				logger.DebugContext(ctx, "Collection cycle completed",
					slog.String("device_id", event.DeviceID),
					slog.Bool("success", event.Success),
					slog.Any("failed_families", failed),
					slog.String("duration", event.Duration.String()),
				)
			case <-ctx.Done():
				return
			case <-events.Done():
				return
			}
		}
	}()
}
