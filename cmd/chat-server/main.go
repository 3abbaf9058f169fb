package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"chat-service-backend/internal/api"
	"chat-service-backend/internal/api/router"
	"chat-service-backend/internal/bus"
	"chat-service-backend/internal/database"
	"chat-service-backend/internal/events"
	"chat-service-backend/internal/gateway"
	"chat-service-backend/internal/queue"
	"chat-service-backend/internal/service/chat"
	"chat-service-backend/internal/service/directory"

	"chat-service-backend/internal/env"
)

func main() {
	env.Load()
	if err := env.Require(env.AWSRegion, env.UserSecretKey, env.ClientSecretKey, env.ChatRedisURL); err != nil {
		log.Fatalf("env check failed: %v", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

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

	registry := bus.NewRegistry(redisClient, logger)
	gw := gateway.New(chat.NewDynamoRepository(db), directory.New(db), emitter, logger)
	gw.Register(registry)
	registry.Start(ctx)

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		cancel()
		registry.Stop()
		queueManager.Shutdown()
		os.Exit(0)
	}()

	server := api.NewAPIServer(
		":81",
		queueManager,
		db,
		emitter,
		router.UtilsRoutes("/api/v1"),
		router.ChatRoutes("/api/v1", logger),
	)

	server.Run()
}
