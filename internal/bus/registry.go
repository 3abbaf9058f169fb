package bus

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"

	"github.com/go-redis/redis/v8"
)

// RPCHandler answers a single RPC method. The returned value is
// marshalled as the reply; a non-nil error is reported to the caller as
// an error payload instead.
type RPCHandler func(ctx context.Context, meta json.RawMessage) (interface{}, error)

// SubscribeHandler consumes one broadcast payload. Errors are logged,
// never retried.
type SubscribeHandler func(ctx context.Context, payload []byte) error

// Registry owns the service's inbound bus surface: RPC responders and
// channel subscriptions registered before Start, torn down by Stop.
type Registry struct {
	client *redis.Client
	logger *slog.Logger

	rpc  map[string]RPCHandler
	subs map[string]SubscribeHandler

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewRegistry(client *redis.Client, logger *slog.Logger) *Registry {
	return &Registry{
		client: client,
		logger: logger,
		rpc:    make(map[string]RPCHandler),
		subs:   make(map[string]SubscribeHandler),
	}
}

// HandleRPC registers the responder for method. Must be called before
// Start.
func (r *Registry) HandleRPC(method string, handler RPCHandler) {
	r.rpc[method] = handler
}

// Subscribe registers a consumer for the named pub/sub channel. Must be
// called before Start.
func (r *Registry) Subscribe(channel string, handler SubscribeHandler) {
	r.subs[channel] = handler
}

// Start launches one goroutine per registered responder and
// subscription. It returns immediately.
func (r *Registry) Start(ctx context.Context) {
	ctx, r.cancel = context.WithCancel(ctx)

	for method, handler := range r.rpc {
		r.wg.Add(1)
		go r.serveRPC(ctx, method, handler)
	}
	for channel, handler := range r.subs {
		r.wg.Add(1)
		go r.serveSubscription(ctx, channel, handler)
	}
}

// Stop cancels every worker and waits for them to drain.
func (r *Registry) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
	r.wg.Wait()
}

func (r *Registry) serveRPC(ctx context.Context, method string, handler RPCHandler) {
	defer r.wg.Done()
	queue := rpcQueue(method)
	r.logger.Info("rpc responder started", "method", method)

	for {
		result, err := r.client.BLPop(ctx, rpcPopTimeout, queue).Result()
		if err != nil {
			if ctx.Err() != nil {
				r.logger.Info("rpc responder stopped", "method", method)
				return
			}
			if errors.Is(err, redis.Nil) {
				continue
			}
			r.logger.Error("rpc pop failed", "method", method, "error", err)
			continue
		}

		var request rpcRequest
		if err := json.Unmarshal([]byte(result[1]), &request); err != nil {
			r.logger.Error("rpc request malformed", "method", method, "error", err)
			continue
		}
		if request.ReplyTo == "" {
			r.logger.Error("rpc request missing replyTo", "method", method)
			continue
		}

		response, err := handler(ctx, request.Meta)
		if err != nil {
			response = rpcError{Type: rpcErrorPayload, Reason: err.Error()}
		}
		if err := replyTo(ctx, r.client, request.ReplyTo, response); err != nil {
			r.logger.Error("rpc reply failed", "method", method, "error", err)
		}
	}
}

func (r *Registry) serveSubscription(ctx context.Context, channel string, handler SubscribeHandler) {
	defer r.wg.Done()
	subscriber := r.client.Subscribe(ctx, channel)
	defer subscriber.Close()
	r.logger.Info("subscription started", "channel", channel)

	ch := subscriber.Channel()
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("subscription stopped", "channel", channel)
			return
		case msg, ok := <-ch:
			if !ok {
				r.logger.Info("subscription closed", "channel", channel)
				return
			}
			if err := handler(ctx, []byte(msg.Payload)); err != nil {
				r.logger.Error("subscription handler failed", "channel", channel, "error", err)
			}
		}
	}
}
