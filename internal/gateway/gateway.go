package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"chat-service-backend/internal/bus"
	"chat-service-backend/internal/events"
	"chat-service-backend/internal/model"
	"chat-service-backend/internal/service/chat"
	"chat-service-backend/internal/service/directory"
)

// GetChatMethod is the RPC method other services call to read one chat
// synchronously.
const GetChatMethod = "getChat"

// ErrNotFound is returned to RPC callers as the bare reason "notFound",
// which is what the consuming services already match on.
var ErrNotFound = errors.New("notFound")

// Gateway is the service's bus-facing surface: it answers the getChat
// RPC and folds identity broadcasts from the other services into the
// participant directory.
type Gateway struct {
	chats     chat.Repository
	directory *directory.Service
	emitter   *events.Emitter
	logger    *slog.Logger
}

func New(chats chat.Repository, dir *directory.Service, emitter *events.Emitter, logger *slog.Logger) *Gateway {
	return &Gateway{
		chats:     chats,
		directory: dir,
		emitter:   emitter,
		logger:    logger.With("component", "gateway"),
	}
}

// Register wires the gateway's handlers into the bus registry.
func (g *Gateway) Register(registry *bus.Registry) {
	registry.HandleRPC(GetChatMethod, g.HandleGetChat)
	registry.Subscribe(bus.ClientsChannel(), g.HandleIdentityBroadcast)
}

type getChatMeta struct {
	ChatUUID  string `json:"chatUuid"`
	AccountID string `json:"accountId"`
}

// HandleGetChat serves the synchronous chat read. The response is the
// clean chat shape with participants widened by realId and accountId,
// which in-platform callers need to route follow-up work.
func (g *Gateway) HandleGetChat(ctx context.Context, meta json.RawMessage) (interface{}, error) {
	var params getChatMeta
	if err := json.Unmarshal(meta, &params); err != nil {
		return nil, fmt.Errorf("malformed meta: %w", err)
	}
	if params.ChatUUID == "" || params.AccountID == "" {
		return nil, ErrNotFound
	}

	chatItem, err := g.chats.GetChat(ctx, params.AccountID, params.ChatUUID)
	if err != nil {
		if errors.Is(err, chat.ErrNotFound) {
			return nil, ErrNotFound
		}
		g.logger.Error("getChat load failed", "chatUuid", params.ChatUUID, "error", err)
		return nil, err
	}
	if chatItem.TenantID != params.AccountID {
		return nil, ErrNotFound
	}

	memberships, err := g.chats.ListMemberships(ctx, chatItem.TenantID, chatItem.ChatID)
	if err != nil {
		g.logger.Error("getChat memberships failed", "chatUuid", params.ChatUUID, "error", err)
		return nil, err
	}

	ids := make([]string, 0, len(memberships))
	for _, membership := range memberships {
		ids = append(ids, membership.ParticipantID)
	}
	byID, err := g.directory.ParticipantsByIDs(ctx, ids)
	if err != nil {
		g.logger.Error("getChat participants failed", "chatUuid", params.ChatUUID, "error", err)
		return nil, err
	}

	response := events.CleanChatView(chatItem, nil)
	for _, membership := range memberships {
		participant, ok := byID[membership.ParticipantID]
		if !ok {
			continue
		}
		response.Participants = append(response.Participants, events.CleanParticipantInternalView(participant))
	}
	return response, nil
}

// flexibleID tolerates the upstream services sending ids as either JSON
// strings or numbers.
type flexibleID string

func (f *flexibleID) UnmarshalJSON(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexibleID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexibleID(n.String())
	return nil
}

type identityPayload struct {
	ID        flexibleID `json:"id"`
	UUID      *string    `json:"uuid"`
	Name      *string    `json:"name"`
	Email     *string    `json:"email"`
	AccountID flexibleID `json:"accountId"`
}

type identityEnvelope struct {
	Event events.Type `json:"event"`
	Meta  struct {
		Raw   identityPayload `json:"raw"`
		Clean identityPayload `json:"clean"`
	} `json:"meta"`
}

// HandleIdentityBroadcast consumes CLIENT_UPDATED and USER_UPDATED
// broadcasts. A matching directory record is updated and re-announced as
// PARTICIPANT_UPDATED; broadcasts for identities this service has never
// seen are dropped.
func (g *Gateway) HandleIdentityBroadcast(ctx context.Context, payload []byte) error {
	var envelope identityEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return fmt.Errorf("malformed identity broadcast: %w", err)
	}

	var role model.ParticipantType
	switch envelope.Event {
	case events.TypeClientUpdated:
		role = model.ParticipantTypeClient
	case events.TypeUserUpdated:
		role = model.ParticipantTypeUser
	default:
		// Other traffic on the channel is not for us.
		return nil
	}

	identity := mergeIdentity(envelope.Meta.Raw, envelope.Meta.Clean)
	if identity.AccountID == "" {
		// Without a tenant the identity key cannot be built, and guessing
		// across tenants is worse than dropping the update.
		g.logger.Warn("identity broadcast without accountId dropped",
			"event", string(envelope.Event), "id", string(identity.ID))
		return nil
	}
	if identity.ID == "" {
		g.logger.Warn("identity broadcast without id dropped", "event", string(envelope.Event))
		return nil
	}

	updated, ok, err := g.directory.ApplyIdentityUpdate(ctx, directory.IdentityUpdateParams{
		TenantID: string(identity.AccountID),
		RealType: role,
		RealID:   string(identity.ID),
		RealUUID: identity.UUID,
		Name:     identity.Name,
		Email:    identity.Email,
	})
	if err != nil {
		return fmt.Errorf("apply identity update: %w", err)
	}
	if !ok {
		return nil
	}

	g.emitter.Emit(ctx, events.TypeParticipantUpdated,
		events.RawParticipant{ParticipantItem: updated},
		events.CleanParticipantView(updated),
	)
	return nil
}

// mergeIdentity prefers raw fields, falling back to clean, since the raw
// side of upstream envelopes carries the fuller record.
func mergeIdentity(raw, clean identityPayload) identityPayload {
	merged := raw
	if merged.ID == "" {
		merged.ID = clean.ID
	}
	if merged.AccountID == "" {
		merged.AccountID = clean.AccountID
	}
	if merged.UUID == nil {
		merged.UUID = clean.UUID
	}
	if merged.Name == nil {
		merged.Name = clean.Name
	}
	if merged.Email == nil {
		merged.Email = clean.Email
	}
	return merged
}
