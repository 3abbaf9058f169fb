package bus

import (
	"chat-service-backend/internal/env"
)

// Channel names are prefixed with the deployment environment so that
// staging and production traffic never cross on a shared redis.
const (
	chatSuffix    = "chat"
	clientsSuffix = "clients"
)

func envName() string {
	return env.GetOrDefault(env.Environment, "development")
}

// ChatChannel is the fan-out channel every chat event is published to.
func ChatChannel() string {
	return envName() + "." + chatSuffix
}

// ClientsChannel carries identity broadcasts from the client service.
func ClientsChannel() string {
	return envName() + "." + clientsSuffix
}

func rpcQueue(method string) string {
	return "rpc:" + envName() + ":" + method
}
