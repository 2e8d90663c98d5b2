package ws

import (
	"encoding/json"
	"sync"
)

// Client is a single realtime connection with user context. One user can
// hold several (multiple tabs); each gets its own session id and badge state.
type Client struct {
	SessionID     string
	UserID        uint
	InstitutionID uint
	Role          string
	Send          chan []byte
	hub           *Hub

	mu     sync.Mutex
	closed bool
}

func (c *Client) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.Send)
	c.mu.Unlock()
	if c.hub != nil {
		c.hub.unregister(c)
	}
}

// TrySend queues the message without blocking. It is safe against a
// concurrent Close; a full queue drops the message rather than stall the
// sender.
func (c *Client) TrySend(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.Send <- data:
		return true
	default:
		return false
	}
}

// Hub is the registry of live realtime connections, indexed by user and by
// institution for targeted broadcast.
type Hub struct {
	mu            sync.RWMutex
	clients       map[*Client]struct{}
	byUser        map[uint]map[*Client]struct{}
	byInstitution map[uint]map[*Client]struct{}
}

func NewHub() *Hub {
	return &Hub{
		clients:       make(map[*Client]struct{}),
		byUser:        make(map[uint]map[*Client]struct{}),
		byInstitution: make(map[uint]map[*Client]struct{}),
	}
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c.hub = h
	h.clients[c] = struct{}{}
	if h.byUser[c.UserID] == nil {
		h.byUser[c.UserID] = make(map[*Client]struct{})
	}
	h.byUser[c.UserID][c] = struct{}{}
	if h.byInstitution[c.InstitutionID] == nil {
		h.byInstitution[c.InstitutionID] = make(map[*Client]struct{})
	}
	h.byInstitution[c.InstitutionID][c] = struct{}{}
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, c)
	if m := h.byUser[c.UserID]; m != nil {
		delete(m, c)
		if len(m) == 0 {
			delete(h.byUser, c.UserID)
		}
	}
	if m := h.byInstitution[c.InstitutionID]; m != nil {
		delete(m, c)
		if len(m) == 0 {
			delete(h.byInstitution, c.InstitutionID)
		}
	}
}

func (h *Hub) snapshot(m map[*Client]struct{}) []*Client {
	clients := make([]*Client, 0, len(m))
	for c := range m {
		clients = append(clients, c)
	}
	return clients
}

// BroadcastToUser sends the payload to every connection the user holds.
// Slow connections are skipped, never waited on.
func (h *Hub) BroadcastToUser(userID uint, payload interface{}) {
	data, _ := json.Marshal(payload)
	h.mu.RLock()
	clients := h.snapshot(h.byUser[userID])
	h.mu.RUnlock()
	for _, c := range clients {
		c.TrySend(data)
	}
}

// BroadcastToInstitution sends the payload to every connected member.
func (h *Hub) BroadcastToInstitution(institutionID uint, payload interface{}) {
	data, _ := json.Marshal(payload)
	h.mu.RLock()
	clients := h.snapshot(h.byInstitution[institutionID])
	h.mu.RUnlock()
	for _, c := range clients {
		c.TrySend(data)
	}
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
