package router

import (
	"net/http"
	"strings"

	"chat-service-backend/internal/api"
	"chat-service-backend/internal/api/endpoints"
	"chat-service-backend/internal/api/middleware"
	chatservice "chat-service-backend/internal/service/chat"

	"log/slog"
)

// ChatRoutes mounts the chat session API. Both roles authenticate here;
// what each may see and do is decided inside the service, not by the
// route table.
func ChatRoutes(prefix string, logger *slog.Logger) api.RouteRegistrar {
	return func(mux *http.ServeMux, s *api.APIServer) {
		service := chatservice.New(s.Database(), s.Emitter(), logger)
		base := strings.TrimRight(prefix, "/")
		chatEndpoints := endpoints.NewChatEndpoints(service, base)

		limiter := middleware.RateLimit(middleware.RateLimitConfig{
			RequestsPerSecond: 20,
			Burst:             40,
		})

		mux.HandleFunc(base+"/chats", s.MakeHTTPHandleFunc(chatEndpoints.Chats, limiter, middleware.ValidateAnyJWT))
		mux.HandleFunc(base+"/chats/", s.MakeHTTPHandleFunc(chatEndpoints.ChatByID, limiter, middleware.ValidateAnyJWT))
	}
}
