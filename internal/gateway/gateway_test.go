package gateway

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"chat-service-backend/internal/events"
	"chat-service-backend/internal/model"
	"chat-service-backend/internal/service/chat"
	"chat-service-backend/internal/service/directory"
)

type fakeChatRepository struct {
	chats       map[string]model.ChatItem
	memberships []model.MembershipItem
}

func (f *fakeChatRepository) GetChat(ctx context.Context, tenantID, chatID string) (model.ChatItem, error) {
	item, ok := f.chats[model.ChatPK(tenantID, chatID)]
	if !ok {
		return model.ChatItem{}, chat.ErrNotFound
	}
	return item, nil
}

func (f *fakeChatRepository) ListMemberships(ctx context.Context, tenantID, chatID string) ([]model.MembershipItem, error) {
	pk := model.ChatPK(tenantID, chatID)
	var out []model.MembershipItem
	for _, membership := range f.memberships {
		if membership.PK == pk {
			out = append(out, membership)
		}
	}
	return out, nil
}

func (f *fakeChatRepository) CreateChatWithMembership(ctx context.Context, c model.ChatItem, m model.MembershipItem) error {
	return nil
}
func (f *fakeChatRepository) ListChatsByTenant(ctx context.Context, tenantID string) ([]model.ChatItem, error) {
	return nil, nil
}
func (f *fakeChatRepository) BatchGetChats(ctx context.Context, tenantID string, chatIDs []string) ([]model.ChatItem, error) {
	return nil, nil
}
func (f *fakeChatRepository) CreateMembership(ctx context.Context, m model.MembershipItem) error {
	return nil
}
func (f *fakeChatRepository) ListMembershipsByParticipant(ctx context.Context, participantID string) ([]model.MembershipItem, error) {
	return nil, nil
}
func (f *fakeChatRepository) ActivateChat(ctx context.Context, tenantID, chatID, updatedAt string) (model.ChatItem, error) {
	return model.ChatItem{}, chat.ErrConflict
}
func (f *fakeChatRepository) CloseChat(ctx context.Context, tenantID, chatID, updatedAt string) (model.ChatItem, error) {
	return model.ChatItem{}, chat.ErrConflict
}

type fakeDirectoryRepository struct {
	mu           sync.Mutex
	participants map[string]model.ParticipantItem
}

func (f *fakeDirectoryRepository) GetParticipant(ctx context.Context, tenantID string, realType model.ParticipantType, realID string) (model.ParticipantItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	participant, ok := f.participants[model.ParticipantPK(tenantID, realType, realID)]
	if !ok {
		return model.ParticipantItem{}, directory.ErrNotFound
	}
	return participant, nil
}

func (f *fakeDirectoryRepository) CreateParticipant(ctx context.Context, participant model.ParticipantItem) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.participants[participant.PK] = participant
	return nil
}

func (f *fakeDirectoryRepository) UpdateParticipantIdentity(ctx context.Context, pk string, update directory.IdentityUpdate) (model.ParticipantItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	participant, ok := f.participants[pk]
	if !ok {
		return model.ParticipantItem{}, directory.ErrNotFound
	}
	if update.Name != nil {
		participant.Name = *update.Name
	}
	if update.Email != nil {
		participant.Email = *update.Email
	}
	if update.RealUUID != nil {
		participant.RealUUID = *update.RealUUID
	}
	participant.UpdatedAt = update.UpdatedAt
	f.participants[pk] = participant
	return participant, nil
}

func (f *fakeDirectoryRepository) ListParticipantsByIDs(ctx context.Context, participantIDs []string) ([]model.ParticipantItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	wanted := make(map[string]bool, len(participantIDs))
	for _, id := range participantIDs {
		wanted[id] = true
	}
	var out []model.ParticipantItem
	for _, participant := range f.participants {
		if wanted[participant.ParticipantID] {
			out = append(out, participant)
		}
	}
	return out, nil
}

type capturePublisher struct {
	mu        sync.Mutex
	envelopes []events.Envelope
}

func (p *capturePublisher) Publish(ctx context.Context, evt events.Envelope) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.envelopes = append(p.envelopes, evt)
	return nil
}

func testGateway(t *testing.T) (*Gateway, *fakeChatRepository, *fakeDirectoryRepository, *capturePublisher) {
	t.Helper()
	chats := &fakeChatRepository{chats: make(map[string]model.ChatItem)}
	dirRepo := &fakeDirectoryRepository{participants: make(map[string]model.ParticipantItem)}
	pub := &capturePublisher{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	now := func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }
	g := New(
		chats,
		directory.NewWithRepository(dirRepo, now),
		events.NewEmitterWithClock(pub, logger, now),
		logger,
	)
	return g, chats, dirRepo, pub
}

func seedParticipant(repo *fakeDirectoryRepository, tenantID string, role model.ParticipantType, realID, name string) model.ParticipantItem {
	participant := model.ParticipantItem{
		PK:            model.ParticipantPK(tenantID, role, realID),
		ParticipantID: "internal-" + realID,
		UUID:          "public-" + realID,
		TenantID:      tenantID,
		RealType:      role,
		RealID:        realID,
		Name:          name,
		CreatedAt:     "2024-05-01T11:00:00Z",
		UpdatedAt:     "2024-05-01T11:00:00Z",
	}
	repo.participants[participant.PK] = participant
	return participant
}

func TestHandleGetChatReturnsInternalParticipantViews(t *testing.T) {
	g, chats, dirRepo, _ := testGateway(t)

	participant := seedParticipant(dirRepo, "acct-1", model.ParticipantTypeClient, "42", "Alice")
	chatItem := model.ChatItem{
		PK:            model.ChatPK("acct-1", "chat-1"),
		ChatID:        "chat-1",
		TenantID:      "acct-1",
		ParticipantID: participant.UUID,
		Status:        model.ChatStatusOpen,
		CreatedAt:     "2024-05-01T11:30:00Z",
		UpdatedAt:     "2024-05-01T11:30:00Z",
	}
	chats.chats[chatItem.PK] = chatItem
	chats.memberships = []model.MembershipItem{{
		PK:            chatItem.PK,
		ParticipantID: participant.ParticipantID,
		TenantID:      "acct-1",
		ChatID:        "chat-1",
	}}

	meta, _ := json.Marshal(map[string]string{"chatUuid": "chat-1", "accountId": "acct-1"})
	response, err := g.HandleGetChat(context.Background(), meta)
	require.NoError(t, err)

	clean, ok := response.(events.CleanChat)
	require.True(t, ok)
	require.Equal(t, "chat-1", clean.UUID)
	require.Len(t, clean.Participants, 1)
	require.Equal(t, participant.UUID, clean.Participants[0].UUID)
	require.Equal(t, "42", clean.Participants[0].RealID, "internal callers get the upstream id")
	require.Equal(t, "acct-1", clean.Participants[0].AccountID)
}

func TestHandleGetChatUnknownOrForeignChatReadsAsNotFound(t *testing.T) {
	g, chats, _, _ := testGateway(t)

	chatItem := model.ChatItem{
		PK:       model.ChatPK("acct-1", "chat-1"),
		ChatID:   "chat-1",
		TenantID: "acct-1",
		Status:   model.ChatStatusOpen,
	}
	chats.chats[chatItem.PK] = chatItem

	meta, _ := json.Marshal(map[string]string{"chatUuid": "missing", "accountId": "acct-1"})
	_, err := g.HandleGetChat(context.Background(), meta)
	require.ErrorIs(t, err, ErrNotFound)

	meta, _ = json.Marshal(map[string]string{"chatUuid": "chat-1", "accountId": "acct-2"})
	_, err = g.HandleGetChat(context.Background(), meta)
	require.ErrorIs(t, err, ErrNotFound)

	meta, _ = json.Marshal(map[string]string{"chatUuid": "chat-1"})
	_, err = g.HandleGetChat(context.Background(), meta)
	require.ErrorIs(t, err, ErrNotFound)
}

func broadcast(event events.Type, clean map[string]interface{}) []byte {
	payload, _ := json.Marshal(map[string]interface{}{
		"event": string(event),
		"ts":    "2024-05-01T12:00:00Z",
		"meta":  map[string]interface{}{"raw": clean, "clean": clean},
	})
	return payload
}

func TestIdentityBroadcastUpdatesDirectoryAndRepublishes(t *testing.T) {
	g, _, dirRepo, pub := testGateway(t)
	seedParticipant(dirRepo, "acct-1", model.ParticipantTypeClient, "42", "Old Name")

	err := g.HandleIdentityBroadcast(context.Background(), broadcast(events.TypeClientUpdated, map[string]interface{}{
		"id":        42,
		"accountId": "acct-1",
		"name":      "New Name",
		"email":     "new@example.com",
	}))
	require.NoError(t, err)

	updated, err := dirRepo.GetParticipant(context.Background(), "acct-1", model.ParticipantTypeClient, "42")
	require.NoError(t, err)
	require.Equal(t, "New Name", updated.Name)
	require.Equal(t, "new@example.com", updated.Email)

	require.Len(t, pub.envelopes, 1)
	require.Equal(t, events.TypeParticipantUpdated, pub.envelopes[0].Event)
	clean, ok := pub.envelopes[0].Meta.Clean.(events.CleanParticipant)
	require.True(t, ok)
	require.Equal(t, "New Name", clean.Name)
}

func TestIdentityBroadcastWithoutTenantIsDropped(t *testing.T) {
	g, _, dirRepo, pub := testGateway(t)
	seedParticipant(dirRepo, "acct-1", model.ParticipantTypeClient, "42", "Old Name")

	err := g.HandleIdentityBroadcast(context.Background(), broadcast(events.TypeClientUpdated, map[string]interface{}{
		"id":   42,
		"name": "New Name",
	}))
	require.NoError(t, err)

	unchanged, err := dirRepo.GetParticipant(context.Background(), "acct-1", model.ParticipantTypeClient, "42")
	require.NoError(t, err)
	require.Equal(t, "Old Name", unchanged.Name)
	require.Empty(t, pub.envelopes)
}

func TestIdentityBroadcastForUnknownParticipantIsNoOp(t *testing.T) {
	g, _, _, pub := testGateway(t)

	err := g.HandleIdentityBroadcast(context.Background(), broadcast(events.TypeUserUpdated, map[string]interface{}{
		"id":        "7",
		"accountId": "acct-1",
		"name":      "Ghost",
	}))
	require.NoError(t, err)
	require.Empty(t, pub.envelopes)
}

func TestIdentityBroadcastIgnoresOtherEvents(t *testing.T) {
	g, _, dirRepo, pub := testGateway(t)
	seedParticipant(dirRepo, "acct-1", model.ParticipantTypeClient, "42", "Old Name")

	err := g.HandleIdentityBroadcast(context.Background(), broadcast("CLIENT_DELETED", map[string]interface{}{
		"id":        42,
		"accountId": "acct-1",
	}))
	require.NoError(t, err)
	require.Empty(t, pub.envelopes)
}
