// Package channels provides the typed event channels that connect the
// collection core to its consumers.
//
// Producers never block: a send on a full channel is dropped and logged.
// Consumers select on Done to learn about shutdown. Close only closes Done,
// so a late producer can never panic on a closed channel.
//
//	events := NewEventChannels(ctx, cfg)
//	defer events.Close()
//
//	select {
//	case evt := <-events.AlertRaised:
//	    // handle evt.Alert
//	case <-events.Done():
//	    return
//	}
package channels
