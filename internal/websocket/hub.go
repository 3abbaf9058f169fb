package websocket

import "sync"

// Hub owns the room map. Client maps inside each room are only touched
// by the Run goroutine; the room map itself is shared with the handler
// and guarded by mu.
type Hub struct {
	mu         sync.RWMutex
	rooms      map[string]*Room
	Register   chan *WSClient
	Unregister chan *WSClient
	Broadcast  chan *WSMessage
}

func NewHub() *Hub {
	return &Hub{
		rooms:      make(map[string]*Room),
		Register:   make(chan *WSClient),
		Unregister: make(chan *WSClient),
		Broadcast:  make(chan *WSMessage),
	}
}

// CreateRoom registers a room for a chat uuid if it does not exist yet.
func (h *Hub) CreateRoom(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, exists := h.rooms[id]; exists {
		return
	}

	h.rooms[id] = &Room{
		Id:      id,
		Clients: make(map[string]*WSClient),
	}
	setRooms(len(h.rooms))
}

func (h *Hub) HasRoom(id string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, exists := h.rooms[id]
	return exists
}

func (h *Hub) RoomIDs() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	ids := make([]string, 0, len(h.rooms))
	for id := range h.rooms {
		ids = append(ids, id)
	}
	return ids
}

func (h *Hub) room(id string) (*Room, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	room, ok := h.rooms[id]
	return room, ok
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.Register:
			room, ok := h.room(client.RoomID)
			if !ok {
				// Rooms are created by the handler before clients join.
				continue
			}
			room.Clients[client.ID] = client
			incConnections()

		case client := <-h.Unregister:
			room, ok := h.room(client.RoomID)
			if !ok {
				continue
			}
			if _, ok := room.Clients[client.ID]; ok {
				delete(room.Clients, client.ID)
				close(client.Message)
				decConnections()
			}

		case message := <-h.Broadcast:
			room, ok := h.room(message.RoomID)
			if !ok {
				continue
			}
			delivered := 0
			for _, client := range room.Clients {
				select {
				case client.Message <- message:
					delivered++
				default:
					close(client.Message)
					delete(room.Clients, client.ID)
					decConnections()
				}
			}
			if delivered > 0 {
				addDelivered(delivered)
			}
		}
	}
}
