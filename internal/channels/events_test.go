package channels

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSend_NonBlocking(t *testing.T) {
	ec := NewEventChannels(context.Background(), EventChannelsConfig{DeviceStateBufferSize: 1})
	defer ec.Close()

	assert.True(t, Send(ec, ec.DeviceState, DeviceStateEvent{DeviceID: "a"}))
	assert.False(t, Send(ec, ec.DeviceState, DeviceStateEvent{DeviceID: "b"}), "full channel drops")

	evt := <-ec.DeviceState
	assert.Equal(t, "a", evt.DeviceID)
}

func TestClose_StopsDelivery(t *testing.T) {
	ec := NewEventChannels(context.Background(), DefaultConfig())
	assert.NoError(t, ec.Close())
	assert.NoError(t, ec.Close())

	assert.False(t, Send(ec, ec.CycleCompleted, CycleCompletedEvent{DeviceID: "a"}))
	select {
	case <-ec.Done():
	default:
		t.Fatal("Done not closed")
	}
}

func TestContextCancelCloses(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	ec := NewEventChannels(ctx, DefaultConfig())
	cancel()

	select {
	case <-ec.Done():
	case <-time.After(time.Second):
		t.Fatal("Done not closed after context cancel")
	}
}
