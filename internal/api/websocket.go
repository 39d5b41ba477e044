package api

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/ernie/arena/internal/domain"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// EventStatus is the snapshot sent to a spectator when it connects
const EventStatus = "status"

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxMessageSize = 512
	sendBuffer     = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// getClientIP prefers proxy headers over the socket address
func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

type frame struct {
	kind string
	data []byte
}

// spectator is one websocket connection. A nil topic set receives every
// event type.
type spectator struct {
	hub    *SpectatorHub
	conn   *websocket.Conn
	send   chan []byte
	remote string
	topics map[string]bool
}

func (s *spectator) wants(kind string) bool {
	return s.topics == nil || s.topics[kind]
}

// parseTopics reads ?events=a,b into a topic set
func parseTopics(req *http.Request) map[string]bool {
	raw := req.URL.Query().Get("events")
	if raw == "" {
		return nil
	}
	topics := make(map[string]bool)
	for _, t := range strings.Split(raw, ",") {
		if t = strings.TrimSpace(t); t != "" {
			topics[t] = true
		}
	}
	return topics
}

// SpectatorHub fans match events out to websocket spectators
type SpectatorHub struct {
	mu         sync.RWMutex
	spectators map[*spectator]struct{}
	frames     chan frame
	join       chan *spectator
	leave      chan *spectator
	done       chan struct{}
	log        zerolog.Logger
}

// NewSpectatorHub creates a hub; call Run to start it
func NewSpectatorHub(logger zerolog.Logger) *SpectatorHub {
	return &SpectatorHub{
		spectators: make(map[*spectator]struct{}),
		frames:     make(chan frame, sendBuffer),
		join:       make(chan *spectator),
		leave:      make(chan *spectator),
		done:       make(chan struct{}),
		log:        logger,
	}
}

// Run serves joins, leaves and frames until ctx is cancelled
func (h *SpectatorHub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for s := range h.spectators {
				h.drop(s)
			}
			h.mu.Unlock()
			return

		case s := <-h.join:
			h.mu.Lock()
			h.spectators[s] = struct{}{}
			n := len(h.spectators)
			h.mu.Unlock()
			h.log.Debug().Str("remote", s.remote).Int("spectators", n).Msg("Spectator connected")

		case s := <-h.leave:
			h.mu.Lock()
			h.drop(s)
			n := len(h.spectators)
			h.mu.Unlock()
			h.log.Debug().Str("remote", s.remote).Int("spectators", n).Msg("Spectator left")

		case f := <-h.frames:
			h.mu.Lock()
			for s := range h.spectators {
				if !s.wants(f.kind) {
					continue
				}
				select {
				case s.send <- f.data:
				default:
					h.log.Debug().Str("remote", s.remote).Msg("Dropping slow spectator")
					h.drop(s)
				}
			}
			h.mu.Unlock()
		}
	}
}

// drop removes s; callers hold mu
func (h *SpectatorHub) drop(s *spectator) {
	if _, ok := h.spectators[s]; ok {
		delete(h.spectators, s)
		close(s.send)
	}
}

// Emit queues an event for every interested spectator. Events are dropped
// when the hub is backed up.
func (h *SpectatorHub) Emit(event domain.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		h.log.Error().Err(err).Str("event", event.Type).Msg("Failed to marshal event")
		return
	}
	select {
	case h.frames <- frame{kind: event.Type, data: data}:
	default:
		h.log.Warn().Str("event", event.Type).Msg("Spectator queue full, dropping event")
	}
}

// Count returns the number of connected spectators
func (h *SpectatorHub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.spectators)
}

// handleWebSocket upgrades the request and queues a status snapshot ahead
// of live events
func (r *Router) handleWebSocket(w http.ResponseWriter, req *http.Request) {
	st, statusErr := r.status(req)

	conn, err := upgrader.Upgrade(w, req, nil)
	if err != nil {
		r.log.Debug().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	s := &spectator{
		hub:    r.spectators,
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
		remote: getClientIP(req),
		topics: parseTopics(req),
	}
	if statusErr == nil {
		snapshot := domain.Event{Type: EventStatus, ServerID: r.serverID, Timestamp: time.Now().UTC(), Data: st}
		if data, err := json.Marshal(snapshot); err == nil {
			s.send <- data
		}
	}

	select {
	case r.spectators.join <- s:
	case <-r.spectators.done:
		conn.Close()
		return
	}

	go s.writeLoop()
	go s.readLoop()
}

// readLoop discards inbound messages; it exists to notice disconnects and
// answer pongs
func (s *spectator) readLoop() {
	defer func() {
		select {
		case s.hub.leave <- s:
		case <-s.hub.done:
		}
		s.conn.Close()
	}()

	s.conn.SetReadLimit(maxMessageSize)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, _, err := s.conn.ReadMessage()
		if err == nil {
			continue
		}
		if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNoStatusReceived) {
			s.hub.log.Debug().Err(err).Str("remote", s.remote).Msg("Spectator read error")
		}
		return
	}
}

func (s *spectator) writeLoop() {
	ping := time.NewTicker(pingPeriod)
	defer func() {
		ping.Stop()
		s.conn.Close()
	}()

	for {
		var err error
		select {
		case data, ok := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			err = s.conn.WriteMessage(websocket.TextMessage, data)
		case <-ping.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			err = s.conn.WriteMessage(websocket.PingMessage, nil)
		}
		if err != nil {
			return
		}
	}
}
