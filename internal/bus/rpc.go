package bus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// RPC requests travel as JSON on per-method redis lists. A caller pushes
// a request carrying a one-shot reply list name, the responder pops it,
// runs the handler and pushes the reply back. Reply lists expire so a
// crashed caller never leaks keys.

const (
	rpcPopTimeout   = 5 * time.Second
	rpcCallTimeout  = 10 * time.Second
	rpcReplyExpiry  = 30 * time.Second
	rpcReplyPrefix  = "rpc-reply:"
	rpcErrorPayload = "error"
)

type rpcRequest struct {
	ReplyTo string          `json:"replyTo"`
	Meta    json.RawMessage `json:"meta"`
}

type rpcError struct {
	Type   string `json:"type"`
	Reason string `json:"reason"`
}

// RPCError is a failure reported by the remote handler.
type RPCError struct {
	Reason string
}

func (e *RPCError) Error() string {
	return "bus rpc: remote error: " + e.Reason
}

// Call invokes method on whichever service is listening, blocking until
// the reply arrives or the timeout passes. The reply is unmarshalled
// into out when out is non-nil.
func Call(ctx context.Context, client *redis.Client, method string, meta interface{}, out interface{}) error {
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("bus rpc: marshal meta: %w", err)
	}

	replyTo := rpcReplyPrefix + uuid.NewString()
	request, err := json.Marshal(rpcRequest{ReplyTo: replyTo, Meta: metaJSON})
	if err != nil {
		return fmt.Errorf("bus rpc: marshal request: %w", err)
	}

	if err := client.RPush(ctx, rpcQueue(method), string(request)).Err(); err != nil {
		return fmt.Errorf("bus rpc: push request: %w", err)
	}
	client.Expire(ctx, rpcQueue(method), rpcReplyExpiry)

	result, err := client.BLPop(ctx, rpcCallTimeout, replyTo).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return fmt.Errorf("bus rpc: %s timed out", method)
		}
		return fmt.Errorf("bus rpc: pop reply: %w", err)
	}
	payload := []byte(result[1])

	var remoteErr rpcError
	if json.Unmarshal(payload, &remoteErr) == nil && remoteErr.Type == rpcErrorPayload {
		return &RPCError{Reason: remoteErr.Reason}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("bus rpc: unmarshal reply: %w", err)
	}
	return nil
}

func replyTo(ctx context.Context, client *redis.Client, list string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("bus rpc: marshal reply: %w", err)
	}
	if err := client.RPush(ctx, list, string(body)).Err(); err != nil {
		return fmt.Errorf("bus rpc: push reply: %w", err)
	}
	client.Expire(ctx, list, rpcReplyExpiry)
	return nil
}
