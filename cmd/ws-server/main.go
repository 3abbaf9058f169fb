package main

import (
	"context"
	"log"
	"log/slog"
	"os"

	"chat-service-backend/internal/api"
	"chat-service-backend/internal/api/router"
	"chat-service-backend/internal/bus"
	"chat-service-backend/internal/database"
	"chat-service-backend/internal/env"
	"chat-service-backend/internal/events"
	"chat-service-backend/internal/queue"
	"chat-service-backend/internal/websocket"
)

func main() {
	env.Load()
	if err := env.Require(env.AWSRegion, env.UserSecretKey, env.ClientSecretKey, env.ChatRedisURL); err != nil {
		log.Fatalf("env check failed: %v", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	ctx := context.Background()

	queueManager := queue.NewRequestQueueManager(10, 10)
	db, err := database.NewDatabase()
	if err != nil {
		log.Fatalf("db init failed: %v", err)
	}

	redisClient, err := bus.NewClient(ctx)
	if err != nil {
		log.Fatalf("redis init failed: %v", err)
	}
	emitter := events.NewEmitter(bus.NewRedisPublisher(redisClient), logger)

	hub := websocket.NewHub()
	go hub.Run()
	handler := websocket.NewHandler(hub, redisClient)
	go handler.ConsumeChatEvents(ctx)

	server := api.NewAPIServer(
		":83",
		queueManager,
		db,
		emitter,
		router.UtilsRoutes("/api/ws/v1"),
		router.WebsocketRoutes("/api/ws/v1", handler, logger),
	)

	server.Run()
}
