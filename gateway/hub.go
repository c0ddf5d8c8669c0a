package gateway

import (
	"sync"

	"go.uber.org/zap"
)

// Hub tracks every live socket, indexed by case room and by user id. It is
// the in-process half of chat fan-out; when a relay is attached, events are
// also published to Redis so peer instances can deliver to their own sockets.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[*Client]bool
	users map[string]map[*Client]bool

	relay *Relay
}

func NewHub() *Hub {
	return &Hub{
		rooms: make(map[string]map[*Client]bool),
		users: make(map[string]map[*Client]bool),
	}
}

// SetRelay attaches a Redis relay. Call before any clients connect.
func (h *Hub) SetRelay(r *Relay) {
	h.relay = r
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, room := range c.rooms {
		if h.rooms[room] == nil {
			h.rooms[room] = make(map[*Client]bool)
		}
		h.rooms[room][c] = true
	}
	if h.users[c.userID] == nil {
		h.users[c.userID] = make(map[*Client]bool)
	}
	h.users[c.userID][c] = true
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, room := range c.rooms {
		if clients, ok := h.rooms[room]; ok {
			if _, ok := clients[c]; ok {
				delete(clients, c)
				if len(clients) == 0 {
					delete(h.rooms, room)
				}
			}
		}
	}
	if clients, ok := h.users[c.userID]; ok {
		if _, ok := clients[c]; ok {
			delete(clients, c)
			close(c.send)
			if len(clients) == 0 {
				delete(h.users, c.userID)
			}
		}
	}
}

// ToRoom delivers an event to every socket joined to room, locally and via
// the relay when one is attached.
func (h *Hub) ToRoom(room, event string, data interface{}) {
	frame := ServerEvent{Event: event, Data: data}.encode()
	h.deliverRoom(room, frame)
	if h.relay != nil {
		h.relay.publishRoom(room, frame)
	}
}

// ToUser delivers an event to every socket the user has open.
func (h *Hub) ToUser(userID, event string, data interface{}) {
	frame := ServerEvent{Event: event, Data: data}.encode()
	h.deliverUser(userID, frame)
	if h.relay != nil {
		h.relay.publishUser(userID, frame)
	}
}

func (h *Hub) deliverRoom(room string, frame []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.rooms[room] {
		c.enqueue(frame)
	}
}

func (h *Hub) deliverUser(userID string, frame []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.users[userID] {
		c.enqueue(frame)
	}
}

// RoomSize reports the number of sockets joined to room.
func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// enqueue hands a frame to the client's write pump without blocking. A full
// buffer means the consumer stopped draining; the pump's connection close
// will trigger unregister.
func (c *Client) enqueue(frame []byte) {
	select {
	case c.send <- frame:
	default:
		zap.S().Warnw("dropping slow websocket consumer", "userId", c.userID)
		c.conn.Close()
	}
}
