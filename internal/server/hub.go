package server

import (
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	sendBuffer = 32
)

// Hub fans pushes out to every open socket of a user.
type Hub struct {
	log *slog.Logger

	mu     sync.Mutex
	conns  map[string]map[*hubConn]struct{}
	closed bool
}

type hubConn struct {
	ws   *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once
}

func (c *hubConn) stop() { c.once.Do(func() { close(c.done) }) }

func NewHub(log *slog.Logger) *Hub {
	return &Hub{log: log, conns: map[string]map[*hubConn]struct{}{}}
}

// Serve registers ws for userID and blocks until the socket ends. Incoming
// messages are read and discarded.
func (h *Hub) Serve(userID string, ws *websocket.Conn) {
	c := &hubConn{ws: ws, send: make(chan []byte, sendBuffer), done: make(chan struct{})}
	if !h.add(userID, c) {
		_ = ws.Close()
		return
	}
	wrote := make(chan struct{})
	go func() {
		defer close(wrote)
		h.writeLoop(c)
	}()

	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			break
		}
	}
	h.remove(userID, c)
	c.stop()
	<-wrote
}

func (h *Hub) writeLoop(c *hubConn) {
	defer c.ws.Close()
	for {
		select {
		case msg := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				h.log.Debug("hub: write", "err", err)
				return
			}
		case <-c.done:
			_ = c.ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, ""), time.Now().Add(writeWait))
			return
		}
	}
}

func (h *Hub) add(userID string, c *hubConn) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	set := h.conns[userID]
	if set == nil {
		set = map[*hubConn]struct{}{}
		h.conns[userID] = set
	}
	set[c] = struct{}{}
	return true
}

func (h *Hub) remove(userID string, c *hubConn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set := h.conns[userID]
	delete(set, c)
	if len(set) == 0 {
		delete(h.conns, userID)
	}
}

// Publish queues msg for every socket of each user. A socket whose buffer
// is full is dropped.
func (h *Hub) Publish(userIDs []string, msg []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, id := range userIDs {
		for c := range h.conns[id] {
			select {
			case c.send <- msg:
			default:
				h.log.Warn("hub: slow client dropped", "user", id)
				c.stop()
			}
		}
	}
}

// Count returns the number of open sockets of userID.
func (h *Hub) Count(userID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns[userID])
}

// Close ends every socket and refuses new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for _, set := range h.conns {
		for c := range set {
			c.stop()
		}
	}
}
