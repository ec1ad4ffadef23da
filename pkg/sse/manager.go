package sse

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
)

// Event is one server-sent event addressed to a single user
type Event struct {
	UserID  string
	Kind    string
	Payload interface{}
}

type client struct {
	userID string
	send   chan Event
}

// Manager fans events out to connected clients per user. Delivery is
// fire-and-forget: a slow or absent client never blocks the sender.
type Manager struct {
	mu         sync.RWMutex
	clients    map[*client]struct{}
	register   chan *client
	unregister chan *client
	events     chan Event
}

// NewManager creates a new SSE manager
func NewManager() *Manager {
	return &Manager{
		clients:    make(map[*client]struct{}),
		register:   make(chan *client),
		unregister: make(chan *client),
		events:     make(chan Event, 256),
	}
}

// Run drives the manager loop; call it in its own goroutine
func (m *Manager) Run() {
	for {
		select {
		case c := <-m.register:
			m.mu.Lock()
			m.clients[c] = struct{}{}
			m.mu.Unlock()
		case c := <-m.unregister:
			m.mu.Lock()
			if _, ok := m.clients[c]; ok {
				delete(m.clients, c)
				close(c.send)
			}
			m.mu.Unlock()
		case ev := <-m.events:
			m.mu.RLock()
			for c := range m.clients {
				if c.userID != ev.UserID {
					continue
				}
				select {
				case c.send <- ev:
				default:
					// Client buffer full, drop the event
				}
			}
			m.mu.RUnlock()
		}
	}
}

// SendToUser queues an event for all of the user's connected clients.
// Never blocks; events are dropped when the manager queue is full.
func (m *Manager) SendToUser(userID, kind string, payload interface{}) {
	select {
	case m.events <- Event{UserID: userID, Kind: kind, Payload: payload}:
	default:
		log.Printf("[SSE] Event queue full, dropping %s event for user %s", kind, userID)
	}
}

// ServeHTTP upgrades the request to an SSE stream for the given user
func (m *Manager) ServeHTTP(c *gin.Context, userID string) {
	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "streaming unsupported"})
		return
	}

	cl := &client{
		userID: userID,
		send:   make(chan Event, 32),
	}
	m.register <- cl
	defer func() { m.unregister <- cl }()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	for {
		select {
		case ev, ok := <-cl.send:
			if !ok {
				return
			}
			data, err := json.Marshal(ev.Payload)
			if err != nil {
				continue
			}
			fmt.Fprintf(c.Writer, "event: %s\ndata: %s\n\n", ev.Kind, data)
			flusher.Flush()
		case <-c.Request.Context().Done():
			return
		}
	}
}
