package websocket

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/websocket"

	"chat-service-backend/internal/bus"
	"chat-service-backend/internal/events"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Handler bridges the chat event channel to websocket rooms. One
// subscription consumes every chat event; each event is routed to the
// room named after its chat uuid, and only the clean projection ever
// reaches a socket.
type Handler struct {
	hub         *Hub
	redisClient *redis.Client
}

func NewHandler(h *Hub, client *redis.Client) *Handler {
	return &Handler{
		hub:         h,
		redisClient: client,
	}
}

// cleanTarget pulls the chat uuid out of a clean payload regardless of
// which event shape it is.
type cleanTarget struct {
	UUID     string `json:"uuid"`
	ChatUUID string `json:"chatUuid"`
	ChatID   string `json:"chatId"`
}

func roomForEvent(envelope events.Envelope, clean json.RawMessage) string {
	var target cleanTarget
	if err := json.Unmarshal(clean, &target); err != nil {
		return ""
	}
	switch envelope.Event {
	case events.TypeChatCreated, events.TypeChatUpdated:
		return target.UUID
	case events.TypeMessageCreated, events.TypeMessageComposed:
		return target.ChatUUID
	case events.TypeParticipantJoined:
		return target.ChatID
	}
	return ""
}

// ConsumeChatEvents subscribes to the shared chat channel and fans every
// event into its room. It blocks until ctx is cancelled.
func (h *Handler) ConsumeChatEvents(ctx context.Context) {
	channel := bus.ChatChannel()
	subscriber := h.redisClient.Subscribe(ctx, channel)
	defer subscriber.Close()
	log.Printf("Subscribed to chat channel %s", channel)

	ch := subscriber.Channel()
	for {
		select {
		case <-ctx.Done():
			log.Printf("Chat channel subscription stopped")
			return
		case msg, ok := <-ch:
			if !ok {
				log.Printf("Chat channel closed")
				return
			}
			h.routeEvent([]byte(msg.Payload))
		}
	}
}

func (h *Handler) routeEvent(payload []byte) {
	var wire struct {
		Event events.Type `json:"event"`
		TS    time.Time   `json:"ts"`
		Meta  struct {
			Clean json.RawMessage `json:"clean"`
		} `json:"meta"`
	}
	if err := json.Unmarshal(payload, &wire); err != nil {
		log.Printf("Malformed event dropped: %v", err)
		return
	}

	roomID := roomForEvent(events.Envelope{Event: wire.Event}, wire.Meta.Clean)
	if roomID == "" {
		return
	}

	if !h.hub.HasRoom(roomID) {
		return
	}

	frame, err := json.Marshal(map[string]interface{}{
		"event": wire.Event,
		"ts":    wire.TS,
		"clean": wire.Meta.Clean,
	})
	if err != nil {
		log.Printf("Event frame marshal failed: %v", err)
		return
	}

	h.hub.Broadcast <- &WSMessage{
		Content:   string(frame),
		RoomID:    roomID,
		Timestamp: wire.TS.Unix(),
	}
}

// JoinRoom upgrades the request and attaches the connection to the chat's
// room.
func (h *Handler) JoinRoom(w http.ResponseWriter, r *http.Request, roomID, clientID string) {
	h.hub.CreateRoom(roomID)

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	cl := &WSClient{
		Conn:     conn,
		Message:  make(chan *WSMessage, 10),
		ID:       clientID,
		RoomID:   roomID,
		done:     make(chan struct{}),
		isClosed: false,
	}

	h.hub.Register <- cl

	go cl.keepAlive()
	go cl.writeMessage()
	go cl.readMessage(h.hub)
}

func (h *Handler) GetRooms(w http.ResponseWriter, r *http.Request) {
	ids := h.hub.RoomIDs()
	rooms := make([]RoomRes, 0, len(ids))
	for _, id := range ids {
		rooms = append(rooms, RoomRes{ID: id})
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(rooms)
}
