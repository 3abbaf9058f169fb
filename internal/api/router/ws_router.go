package router

import (
	"log/slog"
	"net/http"
	"strings"

	"chat-service-backend/internal/api"
	"chat-service-backend/internal/api/endpoints"
	chatservice "chat-service-backend/internal/service/chat"
	"chat-service-backend/internal/websocket"
)

// WebsocketRoutes mounts the live event stream. The handler is built in
// main so it can share the redis client with the bus consumer.
func WebsocketRoutes(prefix string, handler *websocket.Handler, logger *slog.Logger) api.RouteRegistrar {
	return func(mux *http.ServeMux, s *api.APIServer) {
		service := chatservice.New(s.Database(), s.Emitter(), logger)
		base := strings.TrimRight(prefix, "/")
		wsEndpoints := endpoints.NewWSEndpoints(service, handler, base)

		mux.HandleFunc(base+"/chats/", s.MakeHTTPHandleFunc(wsEndpoints.ChatSocket))
		mux.HandleFunc(base+"/rooms", s.MakeHTTPHandleFunc(wsEndpoints.Rooms))
	}
}
