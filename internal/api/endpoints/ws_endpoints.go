package endpoints

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"chat-service-backend/internal/identity"
	internaljwt "chat-service-backend/internal/jwt"
	"chat-service-backend/internal/model"
	chatservice "chat-service-backend/internal/service/chat"
	"chat-service-backend/internal/websocket"
)

type WSEndpoints interface {
	ChatSocket(http.ResponseWriter, *http.Request) error
	Rooms(http.ResponseWriter, *http.Request) error
}

type wsEndpoints struct {
	service *chatservice.Service
	handler *websocket.Handler
	prefix  string
}

func NewWSEndpoints(service *chatservice.Service, handler *websocket.Handler, prefix string) WSEndpoints {
	return &wsEndpoints{
		service: service,
		handler: handler,
		prefix:  strings.TrimRight(prefix, "/") + "/chats/",
	}
}

// socketActor authenticates a websocket request. Browsers cannot set
// headers on upgrade requests, so the token may arrive as a query
// parameter instead.
func socketActor(r *http.Request) (identity.Actor, error) {
	tokenString := ExtractTokenFromHeaders(r)
	if tokenString == "" {
		tokenString = r.URL.Query().Get("token")
	}
	if tokenString == "" {
		return nil, fmt.Errorf("no token on upgrade request")
	}

	for _, role := range []model.ParticipantType{model.ParticipantTypeUser, model.ParticipantTypeClient} {
		claims, err := internaljwt.ParseToken(tokenString, role)
		if err != nil {
			continue
		}
		expires, ok := claims["exp"].(float64)
		if !ok || time.Now().Unix() > int64(expires) {
			return nil, fmt.Errorf("token expired")
		}
		actor, err := identity.FromClaims(claims)
		if err != nil || actor.Role() != role {
			continue
		}
		return actor, nil
	}
	return nil, fmt.Errorf("token did not verify for any role")
}

// ChatSocket upgrades GET /chats/{uuid}/ws into a live event stream for
// that chat. The caller must be able to see the chat through the regular
// API before any frame is delivered.
func (h *wsEndpoints) ChatSocket(w http.ResponseWriter, r *http.Request) error {
	rest := strings.TrimPrefix(r.URL.Path, h.prefix)
	chatID := strings.TrimSuffix(strings.TrimRight(rest, "/"), "/ws")
	chatID = strings.Split(chatID, "/")[0]
	if chatID == "" {
		return notFoundError(fmt.Errorf("empty chat id"))
	}

	actor, err := socketActor(r)
	if err != nil {
		return &HTTPError{
			StatusCode: http.StatusUnauthorized,
			Message:    "Unauthorized",
			ErrorLog:   err,
		}
	}

	if _, err := h.service.GetChat(r.Context(), actor, chatID); err != nil {
		return translateServiceError(err)
	}

	h.handler.JoinRoom(w, r, chatID, actor.ExternalUUID())
	return nil
}

func (h *wsEndpoints) Rooms(w http.ResponseWriter, r *http.Request) error {
	h.handler.GetRooms(w, r)
	return nil
}
