package realtime

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBuffer     = 16
)

// ChannelFor names the channel a receiver's clients subscribe to
func ChannelFor(receiverID string) string {
	return "notification_" + receiverID
}

type subscriber struct {
	send chan []byte
}

// Hub fans published payloads out to the subscribers of a channel. Publishing never
// blocks: a subscriber whose buffer is full misses the message.
type Hub struct {
	mu   sync.RWMutex
	subs map[string]map[*subscriber]struct{}
	log  zerolog.Logger
}

func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		subs: map[string]map[*subscriber]struct{}{},
		log:  log.With().Str("component", "realtime").Logger(),
	}
}

// Publish sends payload as JSON to every subscriber of channel
func (h *Hub) Publish(channel string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		h.log.Error().Err(err).Str("channel", channel).Msg("failed to encode realtime payload")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for s := range h.subs[channel] {
		select {
		case s.send <- data:
		default:
			h.log.Debug().Str("channel", channel).Msg("subscriber buffer full, dropping message")
		}
	}
}

// Subscribe registers a listener on channel. The returned cancel func must be called
// exactly once; it closes the message channel.
func (h *Hub) Subscribe(channel string) (<-chan []byte, func()) {
	s := &subscriber{send: make(chan []byte, sendBuffer)}

	h.mu.Lock()
	if h.subs[channel] == nil {
		h.subs[channel] = map[*subscriber]struct{}{}
	}
	h.subs[channel][s] = struct{}{}
	h.mu.Unlock()

	return s.send, func() {
		h.mu.Lock()
		delete(h.subs[channel], s)
		if len(h.subs[channel]) == 0 {
			delete(h.subs, channel)
		}
		h.mu.Unlock()
		close(s.send)
	}
}

// Subscribers returns the number of listeners on channel
func (h *Hub) Subscribers(channel string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[channel])
}

// Serve pumps channel messages to conn until the client goes away
func (h *Hub) Serve(conn *websocket.Conn, channel string) {
	msgs, cancel := h.Subscribe(channel)
	log := h.log.With().Str("channel", channel).Logger()
	log.Debug().Msg("client connected")

	done := make(chan struct{})
	go func() {
		defer close(done)
		h.readPump(conn)
	}()

	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		cancel()
		conn.Close()
		log.Debug().Msg("client disconnected")
	}()

	for {
		select {
		case <-done:
			return
		case data := <-msgs:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump discards client frames and keeps the read deadline fresh on pongs
func (h *Hub) readPump(conn *websocket.Conn) {
	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
