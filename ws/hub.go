// Package ws pushes session cues to connected browsers.
package ws

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"classroom-rollcall-go/session"
)

const writeWait = time.Second

// Message is the envelope sent to clients.
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// Hub tracks open connections and broadcasts to all of them. Session cues
// are queued and written by the hub's own goroutine, so a slow client never
// holds up the roll.
type Hub struct {
	mu    sync.Mutex
	conns map[*websocket.Conn]bool
	log   zerolog.Logger

	queue chan Message
	stop  chan struct{}
	done  chan struct{}
	once  sync.Once
}

func NewHub(log zerolog.Logger) *Hub {
	h := &Hub{
		conns: make(map[*websocket.Conn]bool),
		log:   log.With().Str("component", "ws").Logger(),
		queue: make(chan Message, 64),
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}
	go h.run()
	return h
}

func (h *Hub) run() {
	defer close(h.done)
	for {
		select {
		case msg := <-h.queue:
			h.Broadcast(msg)
		case <-h.stop:
			return
		}
	}
}

func (h *Hub) Add(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[conn] = true
	h.log.Debug().Int("clients", len(h.conns)).Msg("client connected")
}

func (h *Hub) Remove(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.conns[conn]; ok {
		delete(h.conns, conn)
		conn.Close()
		h.log.Debug().Int("clients", len(h.conns)).Msg("client disconnected")
	}
}

// Len returns the number of connected clients.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

// Broadcast sends msg to every client. Clients that fail to receive it are
// dropped.
func (h *Hub) Broadcast(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.log.Error().Err(err).Msg("marshal message")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.conns {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			h.log.Warn().Err(err).Msg("write failed, dropping client")
			conn.Close()
			delete(h.conns, conn)
		}
	}
}

// Notify implements session.Notifier. It never blocks; cues are dropped when
// the queue is full.
func (h *Hub) Notify(ev session.Event) {
	select {
	case h.queue <- Message{Type: string(ev.Kind), Data: ev}:
	default:
		h.log.Warn().Str("kind", string(ev.Kind)).Msg("cue queue full, dropping session event")
	}
}

// Close stops the broadcaster and disconnects every client.
func (h *Hub) Close() {
	h.once.Do(func() { close(h.stop) })
	<-h.done

	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.conns {
		conn.Close()
		delete(h.conns, conn)
	}
}
