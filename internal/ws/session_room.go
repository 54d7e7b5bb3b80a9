package ws

import (
	"encoding/json"
	"sync"
)

// Event types flowing through a session room.
const (
	EventMessage  = "message"
	EventTyping   = "typing"
	EventPresence = "presence"
	EventRead     = "read"
	EventSystem   = "system"
)

// SessionRoom holds the live connections of one consultation. Broadcast is
// serialized by the room mutex so members observe events in persist order.
type SessionRoom struct {
	ConsultationID uint
	PatientID      uint
	ProviderID     uint
	mu             sync.Mutex
	clients        map[*Client]struct{}
}

func NewSessionRoom(consultationID, patientID, providerID uint) *SessionRoom {
	return &SessionRoom{
		ConsultationID: consultationID,
		PatientID:      patientID,
		ProviderID:     providerID,
		clients:        make(map[*Client]struct{}),
	}
}

func (r *SessionRoom) Join(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c.room = r
	r.clients[c] = struct{}{}
}

func (r *SessionRoom) Leave(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.clients, c)
}

func (r *SessionRoom) MemberCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.clients)
}

// UserPresent reports whether the given user has at least one live
// connection in the room.
func (r *SessionRoom) UserPresent(userID uint) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for c := range r.clients {
		if c.UserID == userID {
			return true
		}
	}
	return false
}

// Broadcast delivers the payload to every member. Holding the lock across
// the channel sends keeps delivery order identical for all members.
func (r *SessionRoom) Broadcast(payload interface{}) {
	data, _ := json.Marshal(payload)
	r.mu.Lock()
	defer r.mu.Unlock()
	for c := range r.clients {
		select {
		case c.Send <- data:
		default:
		}
	}
}

// BroadcastExcept delivers to every member except the originating client,
// used for typing indicators.
func (r *SessionRoom) BroadcastExcept(from *Client, payload interface{}) {
	data, _ := json.Marshal(payload)
	r.mu.Lock()
	defer r.mu.Unlock()
	for c := range r.clients {
		if c == from {
			continue
		}
		select {
		case c.Send <- data:
		default:
		}
	}
}

// SessionHub holds all session rooms by consultation ID.
type SessionHub struct {
	mu    sync.RWMutex
	rooms map[uint]*SessionRoom
}

func NewSessionHub() *SessionHub {
	return &SessionHub{rooms: make(map[uint]*SessionRoom)}
}

func (h *SessionHub) GetOrCreateRoom(consultationID, patientID, providerID uint) *SessionRoom {
	h.mu.Lock()
	defer h.mu.Unlock()
	if r, ok := h.rooms[consultationID]; ok {
		return r
	}
	r := NewSessionRoom(consultationID, patientID, providerID)
	h.rooms[consultationID] = r
	return r
}

func (h *SessionHub) GetRoom(consultationID uint) *SessionRoom {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.rooms[consultationID]
}

func (h *SessionHub) RemoveRoom(consultationID uint) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.rooms, consultationID)
}
