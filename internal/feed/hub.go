// Package feed streams unit state to WebSocket clients as JSON.
//
// A Hub attached to a session publishes one Event per unit change. Clients
// connect to the hub's HTTP handler and first receive a snapshot of every
// known unit.
package feed

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/muurk/airtouch/internal/session"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 512

	// Events buffered per client before it is dropped as too slow
	sendBuffer = 64
)

// Event is one unit snapshot.
type Event struct {
	Kind session.UnitKind `json:"kind"`
	ID   uint8            `json:"id"`
	Time time.Time        `json:"time"`
	Unit any              `json:"unit"`
}

// ACEvent wraps an AC snapshot.
func ACEvent(s session.ACState) Event {
	return Event{Kind: session.UnitAC, ID: s.ID, Time: time.Now(), Unit: s}
}

// GroupEvent wraps a group snapshot.
func GroupEvent(s session.GroupState) Event {
	return Event{Kind: session.UnitGroup, ID: s.ID, Time: time.Now(), Unit: s}
}

// Hub fans events out to connected WebSocket clients.
type Hub struct {
	log      *zap.Logger
	upgrader websocket.Upgrader
	snapshot func() []Event

	mu      sync.Mutex
	clients map[*client]struct{}
	closed  bool
}

type client struct {
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

func (c *client) close() {
	c.once.Do(func() { close(c.send) })
}

// NewHub returns a hub with no clients.
func NewHub(log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{
		log:     log.With(zap.String("component", "feed")),
		clients: make(map[*client]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// The feed is read-only and meant for dashboards on the LAN.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Source is the part of a session the hub follows.
type Source interface {
	ACs() []session.ACState
	Groups() []session.GroupState
	SubscribeAC(id uint8, fn func(session.ACState)) (session.Handle, error)
	SubscribeGroup(id uint8, fn func(session.GroupState)) (session.Handle, error)
	SubscribeNewUnits(fn func(session.NewUnit)) session.Handle
	Unsubscribe(h session.Handle) bool
}

// Attach publishes every change of every unit of src, including units
// discovered later. New clients get the current state of src first. The
// returned function detaches the hub.
func (h *Hub) Attach(src Source) (detach func()) {
	var (
		mu       sync.Mutex
		handles  []session.Handle
		followed = make(map[session.NewUnit]bool)
	)
	keep := func(handle session.Handle, err error) {
		if err != nil {
			h.log.Debug("Subscription failed", zap.Error(err))
			return
		}
		mu.Lock()
		handles = append(handles, handle)
		mu.Unlock()
	}
	follow := func(u session.NewUnit) {
		mu.Lock()
		seen := followed[u]
		followed[u] = true
		mu.Unlock()
		if seen {
			return
		}
		switch u.Kind {
		case session.UnitAC:
			keep(src.SubscribeAC(u.ID, func(s session.ACState) { h.Publish(ACEvent(s)) }))
		case session.UnitGroup:
			keep(src.SubscribeGroup(u.ID, func(s session.GroupState) { h.Publish(GroupEvent(s)) }))
		}
	}

	keep(src.SubscribeNewUnits(follow), nil)
	for _, ac := range src.ACs() {
		follow(session.NewUnit{Kind: session.UnitAC, ID: ac.ID})
	}
	for _, g := range src.Groups() {
		follow(session.NewUnit{Kind: session.UnitGroup, ID: g.ID})
	}

	h.mu.Lock()
	h.snapshot = func() []Event {
		var events []Event
		for _, ac := range src.ACs() {
			events = append(events, ACEvent(ac))
		}
		for _, g := range src.Groups() {
			events = append(events, GroupEvent(g))
		}
		return events
	}
	h.mu.Unlock()

	return func() {
		mu.Lock()
		defer mu.Unlock()
		for _, handle := range handles {
			src.Unsubscribe(handle)
		}
		handles = nil
	}
}

// Publish sends e to every client. A client whose buffer is full is
// disconnected.
func (h *Hub) Publish(e Event) {
	data, err := json.Marshal(e)
	if err != nil {
		h.log.Error("Failed to marshal event", zap.Error(err))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			h.log.Warn("Dropping slow feed client", zap.String("remote_addr", c.conn.RemoteAddr().String()))
			delete(h.clients, c)
			c.close()
		}
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// ServeHTTP upgrades the request to a WebSocket and streams events to it.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Debug("WebSocket upgrade failed", zap.String("remote_addr", r.RemoteAddr), zap.Error(err))
		return
	}
	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = conn.Close()
		return
	}
	snapshot := h.snapshot
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	if snapshot != nil {
		for _, e := range snapshot() {
			data, err := json.Marshal(e)
			if err != nil {
				continue
			}
			select {
			case c.send <- data:
			default:
			}
		}
	}

	h.log.Info("Feed client connected", zap.String("remote_addr", conn.RemoteAddr().String()), zap.Int("clients", h.Clients()))
	go h.writePump(c)
	h.readPump(c)
}

// readPump discards client messages and handles pongs until the client
// goes away.
func (h *Hub) readPump(c *client) {
	defer func() {
		h.remove(c)
		_ = c.conn.Close()
		h.log.Info("Feed client disconnected", zap.String("remote_addr", c.conn.RemoteAddr().String()))
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writePump is the only writer of c.conn.
func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				h.log.Debug("Feed write failed", zap.Error(err))
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		c.close()
	}
}

// Close disconnects every client and refuses new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		delete(h.clients, c)
		c.close()
	}
}
