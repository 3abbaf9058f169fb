package events

import (
	"context"
	"log/slog"
	"time"
)

// Type identifies one event on the shared fan-out channel. The values
// match what the other services in the platform already consume.
type Type string

const (
	TypeChatCreated        Type = "CHAT_CREATED"
	TypeChatUpdated        Type = "CHAT_UPDATED"
	TypeMessageCreated     Type = "MESSAGE_CREATED"
	TypeMessageComposed    Type = "MESSAGE_COMPOSED"
	TypeParticipantJoined  Type = "PARTICIPANT_JOINED"
	TypeParticipantUpdated Type = "PARTICIPANT_UPDATED"

	// Inbound broadcast types consumed from the clients channel.
	TypeClientUpdated Type = "CLIENT_UPDATED"
	TypeUserUpdated   Type = "USER_UPDATED"
)

// Envelope is the wire shape of every published event. Raw carries
// internal identifiers and fully joined state for in-platform consumers;
// Clean carries only the whitelisted, uuid-keyed projection that may leave
// the platform.
type Envelope struct {
	Event Type      `json:"event"`
	TS    time.Time `json:"ts"`
	Meta  Meta      `json:"meta"`
}

type Meta struct {
	Raw   interface{} `json:"raw"`
	Clean interface{} `json:"clean"`
}

// Publisher pushes one envelope onto the bus.
type Publisher interface {
	Publish(ctx context.Context, evt Envelope) error
}

// Emitter wraps a Publisher with the post-commit delivery contract: it is
// only ever called after the triggering write has committed, and a bus
// failure is logged and counted but never surfaced to the command's
// caller and never retried.
type Emitter struct {
	pub    Publisher
	logger *slog.Logger
	now    func() time.Time
}

func NewEmitter(pub Publisher, logger *slog.Logger) *Emitter {
	return NewEmitterWithClock(pub, logger, time.Now)
}

func NewEmitterWithClock(pub Publisher, logger *slog.Logger, now func() time.Time) *Emitter {
	return &Emitter{
		pub:    pub,
		logger: logger.With("component", "event_emitter"),
		now:    now,
	}
}

// Emit publishes fire-and-forget. Within one command, successive Emit
// calls keep program order; nothing is guaranteed across commands.
func (e *Emitter) Emit(ctx context.Context, eventType Type, raw, clean interface{}) {
	evt := Envelope{
		Event: eventType,
		TS:    e.now().UTC(),
		Meta: Meta{
			Raw:   raw,
			Clean: clean,
		},
	}

	if err := e.pub.Publish(ctx, evt); err != nil {
		incPublished(eventType, "error")
		e.logger.Error("event publish failed", "event", string(eventType), "error", err)
		return
	}
	incPublished(eventType, "ok")
}
