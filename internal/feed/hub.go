package feed

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/huannv-sys/mik-moni-demo/internal/channels"
	"github.com/huannv-sys/mik-moni-demo/internal/model"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 4096
	sendBuffer     = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Dashboards are served from other origins
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Devices resolves device records for join requests
type Devices interface {
	Device(id string) (model.Device, bool)
}

// Client is a middleman between the websocket connection and the hub.
type Client struct {
	hub *Hub
	// The websocket connection.
	conn *websocket.Conn
	// Buffered channel of outbound messages.
	send chan []byte
}

// Hub maintains the set of active clients and broadcasts messages to them.
type Hub struct {
	// Registered clients.
	clients map[*Client]bool

	// Outbound messages for every client.
	broadcast chan []byte

	// Register requests from the clients.
	register chan *Client

	// Unregister requests from clients.
	unregister chan *Client

	mu sync.RWMutex

	// closed when Run returns
	done chan struct{}

	devices     Devices
	onPrecision func(bool)
	logger      *slog.Logger
	now         func() time.Time
}

func NewHub(devices Devices, logger *slog.Logger) *Hub {
	return &Hub{
		broadcast:  make(chan []byte, sendBuffer),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
		done:       make(chan struct{}),
		devices:    devices,
		logger:     logger.With("component", "feed_hub"),
		now:        time.Now,
	}
}

// OnHighPrecision registers the handler for set_high_precision requests.
// Must be called before Run.
func (h *Hub) OnHighPrecision(fn func(bool)) {
	h.onPrecision = fn
}

// Run serves registrations and fan-out until ctx is cancelled
func (h *Hub) Run(ctx context.Context) error {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			return ctx.Err()
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			h.logger.Debug("websocket client connected", "remote_addr", client.conn.RemoteAddr().String())
		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					// slow consumer
					close(client.send)
					delete(h.clients, client)
					h.logger.Warn("dropped slow websocket client")
				}
			}
			h.mu.Unlock()
		}
	}
}

// ClientCount returns the number of registered clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast queues a message for every client. It drops the message when the
// queue is full instead of blocking the caller.
func (h *Hub) Broadcast(msgType, deviceID string, payload any) {
	bytes, err := h.encode(msgType, deviceID, payload)
	if err != nil {
		return
	}
	select {
	case h.broadcast <- bytes:
	default:
		h.logger.Warn("feed queue full, dropping message", "type", msgType, "device_id", deviceID)
	}
}

// ForwardEvents relays alert and device state events to clients until ctx
// is cancelled or the event hub shuts down.
func (h *Hub) ForwardEvents(ctx context.Context, events *channels.EventChannels) {
	for {
		select {
		case evt := <-events.AlertRaised:
			h.Broadcast(TypeAlert, evt.Alert.DeviceID, evt.Alert)
		case evt := <-events.DeviceState:
			h.Broadcast(TypeDeviceStatus, evt.DeviceID, deviceStatusPayload{
				DeviceID: evt.DeviceID,
				State:    evt.State,
				Error:    evt.Error,
			})
		case <-ctx.Done():
			return
		case <-events.Done():
			return
		}
	}
}

func (h *Hub) encode(msgType, deviceID string, payload any) ([]byte, error) {
	msg := WsMessage{
		Type:      msgType,
		DeviceID:  deviceID,
		Payload:   payload,
		Timestamp: h.now(),
	}
	bytes, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("failed to marshal websocket message", "type", msgType, "error", err)
	}
	return bytes, err
}

// sendTo queues a message for one client if it is still registered
func (h *Hub) sendTo(c *Client, msgType, deviceID string, payload any) {
	bytes, err := h.encode(msgType, deviceID, payload)
	if err != nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	if !h.clients[c] {
		return
	}
	select {
	case c.send <- bytes:
	default:
	}
}

// handle processes one inbound client message
func (h *Hub) handle(c *Client, raw []byte) {
	var msg ClientMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		h.logger.Debug("ignoring malformed client message", "error", err)
		return
	}

	switch msg.Type {
	case TypeSetHighPrecision:
		if h.onPrecision != nil {
			h.onPrecision(msg.Enabled)
		}
		h.Broadcast(TypeHighPrecisionChanged, "", precisionPayload{Enabled: msg.Enabled})
	case TypeJoinDevice:
		device, ok := h.devices.Device(msg.DeviceID)
		if !ok {
			h.logger.Warn("client joined unknown device", "device_id", msg.DeviceID)
			return
		}
		h.logger.Info("client listening for device", "device_id", device.ID, "device_name", device.Name)
		if device.ErrorMessage != "" {
			h.sendTo(c, TypeDeviceError, device.ID, deviceErrorPayload{
				DeviceID: device.ID,
				Message:  device.ErrorMessage,
			})
		}
	default:
		h.logger.Debug("ignoring unknown client message", "type", msg.Type)
	}
}

// ServeWs handles websocket requests from the peer.
func (h *Hub) ServeWs(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("failed to upgrade websocket", "error", err)
		return
	}

	client := &Client{hub: h, conn: conn, send: make(chan []byte, sendBuffer)}
	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

// readPump pumps messages from the websocket connection to the hub.
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Warn("websocket client closed unexpectedly", "error", err)
			}
			break
		}
		c.hub.handle(c, message)
	}
}

// writePump pumps messages from the hub to the websocket connection.
func (c *Client) writePump() {
	defer c.conn.Close()
	for message := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			return
		}
	}
	// The hub closed the channel.
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}
