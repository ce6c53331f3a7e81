package feed

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/huannv-sys/mik-moni-demo/internal/channels"
	"github.com/huannv-sys/mik-moni-demo/internal/config"
	"github.com/huannv-sys/mik-moni-demo/internal/model"
	"github.com/huannv-sys/mik-moni-demo/internal/store"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type published struct {
	msgType  string
	deviceID string
	payload  any
}

type recordingPublisher struct {
	mu   sync.Mutex
	msgs []published
}

func (p *recordingPublisher) Broadcast(msgType, deviceID string, payload any) {
	p.mu.Lock()
	p.msgs = append(p.msgs, published{msgType, deviceID, payload})
	p.mu.Unlock()
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.msgs)
}

func seededStore() *store.Store {
	st := store.New(10, 10)
	st.UpsertDevice(model.Device{ID: "r1", Name: "core", Host: "192.0.2.1", Enabled: true})
	st.UpsertDevice(model.Device{ID: "r2", Name: "edge", Host: "192.0.2.2", Enabled: true})
	st.UpsertDevice(model.Device{ID: "r3", Name: "off", Host: "192.0.2.3"})
	st.SetInterfaces("r1", []model.InterfaceSnapshot{
		{DeviceID: "r1", Name: "ether1", Type: "ether", Running: true, RxByte: 1000, TxByte: 500, RxSpeed: 12.5, TxSpeed: 3},
	})
	st.SetInterfaces("r3", []model.InterfaceSnapshot{{DeviceID: "r3", Name: "ether1"}})
	return st
}

func TestBroadcaster_Frames(t *testing.T) {
	b := NewBroadcaster(seededStore(), &recordingPublisher{}, config.FeedConfig{}, testLogger())

	frames := b.Frames()
	require.Len(t, frames, 1, "disabled devices and devices without interfaces are skipped")
	assert.Equal(t, "r1", frames[0].DeviceID)
	assert.Equal(t, "core", frames[0].DeviceName)
	assert.False(t, frames[0].HighPrecision)
	require.Len(t, frames[0].Interfaces, 1)
	assert.Equal(t, 12.5, frames[0].Interfaces[0].RxSpeed)
	assert.Equal(t, uint64(1000), frames[0].Interfaces[0].RxByte)
}

func TestBroadcaster_Interval(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.FeedConfig
		hp   bool
		want time.Duration
	}{
		{"defaults", config.FeedConfig{}, false, 5 * time.Second},
		{"defaults high precision", config.FeedConfig{}, true, time.Second},
		{"configured", config.FeedConfig{IntervalMS: 2000, HighPrecisionIntervalMS: 250}, false, 2 * time.Second},
		{"configured high precision", config.FeedConfig{IntervalMS: 2000, HighPrecisionIntervalMS: 250}, true, 250 * time.Millisecond},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewBroadcaster(seededStore(), &recordingPublisher{}, tt.cfg, testLogger())
			b.SetHighPrecision(tt.hp)
			assert.Equal(t, tt.hp, b.HighPrecision())
			assert.Equal(t, tt.want, b.Interval())
		})
	}
}

func TestBroadcaster_RunSwitchesToHighPrecision(t *testing.T) {
	pub := &recordingPublisher{}
	// the normal period is long enough that only high precision can produce a second frame
	b := NewBroadcaster(seededStore(), pub, config.FeedConfig{IntervalMS: 60000, HighPrecisionIntervalMS: 10}, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errCh := make(chan error, 1)
	go func() { errCh <- b.Run(ctx) }()

	require.Eventually(t, func() bool { return pub.count() == 1 }, time.Second, 5*time.Millisecond)
	b.SetHighPrecision(true)
	require.Eventually(t, func() bool { return pub.count() >= 3 }, time.Second, 5*time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-errCh, context.Canceled)

	pub.mu.Lock()
	defer pub.mu.Unlock()
	assert.Equal(t, TypeNetworkSpeeds, pub.msgs[0].msgType)
	last := pub.msgs[len(pub.msgs)-1].payload.(SpeedFrame)
	assert.True(t, last.HighPrecision)
}

// startHub runs a hub behind an httptest server and returns a ws URL
func startHub(t *testing.T, devices Devices, opts ...func(*Hub)) (*Hub, string) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub(devices, testLogger())
	for _, opt := range opts {
		opt(hub)
	}
	go hub.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWs))
	t.Cleanup(func() {
		cancel()
		srv.Close()
	})
	return hub, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, hub *Hub, url string, want int) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.Eventually(t, func() bool { return hub.ClientCount() == want }, time.Second, 5*time.Millisecond)
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) WsMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)
	var msg WsMessage
	require.NoError(t, json.Unmarshal(raw, &msg))
	return msg
}

func TestHub_BroadcastReachesEveryClient(t *testing.T) {
	hub, url := startHub(t, seededStore())
	a := dial(t, hub, url, 1)
	b := dial(t, hub, url, 2)

	hub.Broadcast(TypeNetworkSpeeds, "r1", SpeedFrame{DeviceID: "r1", DeviceName: "core"})

	for _, conn := range []*websocket.Conn{a, b} {
		msg := readMessage(t, conn)
		assert.Equal(t, TypeNetworkSpeeds, msg.Type)
		assert.Equal(t, "r1", msg.DeviceID)
		payload := msg.Payload.(map[string]any)
		assert.Equal(t, "core", payload["device_name"])
	}
}

func TestHub_JoinDeviceRepliesWithStoredError(t *testing.T) {
	st := seededStore()
	st.MarkFailed("r2", "Failed to connect: connection refused")
	hub, url := startHub(t, st)
	conn := dial(t, hub, url, 1)

	require.NoError(t, conn.WriteJSON(ClientMessage{Type: TypeJoinDevice, DeviceID: "r1"}))
	require.NoError(t, conn.WriteJSON(ClientMessage{Type: TypeJoinDevice, DeviceID: "missing"}))
	require.NoError(t, conn.WriteJSON(ClientMessage{Type: TypeJoinDevice, DeviceID: "r2"}))

	// r1 is healthy and "missing" is unknown, so the only reply concerns r2
	msg := readMessage(t, conn)
	assert.Equal(t, TypeDeviceError, msg.Type)
	payload := msg.Payload.(map[string]any)
	assert.Equal(t, "r2", payload["device_id"])
	assert.Equal(t, "Failed to connect: connection refused", payload["message"])
}

func TestHub_SetHighPrecision(t *testing.T) {
	got := make(chan bool, 1)
	hub, url := startHub(t, seededStore(), func(h *Hub) {
		h.OnHighPrecision(func(on bool) { got <- on })
	})
	conn := dial(t, hub, url, 1)

	require.NoError(t, conn.WriteJSON(ClientMessage{Type: TypeSetHighPrecision, Enabled: true}))

	select {
	case on := <-got:
		assert.True(t, on)
	case <-time.After(2 * time.Second):
		t.Fatal("precision handler not called")
	}
	msg := readMessage(t, conn)
	assert.Equal(t, TypeHighPrecisionChanged, msg.Type)
	assert.Equal(t, true, msg.Payload.(map[string]any)["enabled"])
}

func TestHub_ForwardEvents(t *testing.T) {
	hub, url := startHub(t, seededStore())
	conn := dial(t, hub, url, 1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events := channels.NewEventChannels(ctx, channels.DefaultConfig())
	go hub.ForwardEvents(ctx, events)

	events.AlertRaised <- channels.AlertRaisedEvent{Alert: model.Alert{DeviceID: "r1", Type: model.AlertCPULoad, Message: "High CPU load"}}
	msg := readMessage(t, conn)
	assert.Equal(t, TypeAlert, msg.Type)
	assert.Equal(t, "High CPU load", msg.Payload.(map[string]any)["message"])

	events.DeviceState <- channels.DeviceStateEvent{DeviceID: "r1", State: channels.DeviceDown, Error: "timeout"}
	msg = readMessage(t, conn)
	assert.Equal(t, TypeDeviceStatus, msg.Type)
	assert.Equal(t, "down", msg.Payload.(map[string]any)["state"])
}

func TestHub_BroadcastNeverBlocks(t *testing.T) {
	// no Run loop: the queue fills and further messages are dropped
	hub := NewHub(seededStore(), testLogger())
	done := make(chan struct{})
	go func() {
		for i := 0; i < 2*sendBuffer; i++ {
			hub.Broadcast(TypeNetworkSpeeds, "r1", nil)
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Broadcast blocked")
	}
	assert.Len(t, hub.broadcast, sendBuffer)
}
