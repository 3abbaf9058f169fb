package chat

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"chat-service-backend/internal/events"
	"chat-service-backend/internal/identity"
	"chat-service-backend/internal/model"
	"chat-service-backend/internal/service/directory"
	"chat-service-backend/internal/service/ledger"
)

type memoryChatRepository struct {
	mu          sync.Mutex
	chats       map[string]model.ChatItem
	memberships map[string]model.MembershipItem
	failCreate  bool
}

func newMemoryChatRepository() *memoryChatRepository {
	return &memoryChatRepository{
		chats:       make(map[string]model.ChatItem),
		memberships: make(map[string]model.MembershipItem),
	}
}

func membershipKey(pk, participantID string) string {
	return pk + "|" + participantID
}

func (m *memoryChatRepository) GetChat(ctx context.Context, tenantID, chatID string) (model.ChatItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	chat, ok := m.chats[model.ChatPK(tenantID, chatID)]
	if !ok || chat.Deleted() {
		return model.ChatItem{}, ErrNotFound
	}
	return chat, nil
}

func (m *memoryChatRepository) CreateChatWithMembership(ctx context.Context, chat model.ChatItem, membership model.MembershipItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failCreate {
		return errors.New("storage unavailable")
	}
	if _, ok := m.chats[chat.PK]; ok {
		return ErrConflict
	}
	m.chats[chat.PK] = chat
	m.memberships[membershipKey(membership.PK, membership.ParticipantID)] = membership
	return nil
}

func (m *memoryChatRepository) ListChatsByTenant(ctx context.Context, tenantID string) ([]model.ChatItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.ChatItem
	for _, chat := range m.chats {
		if chat.TenantID == tenantID && !chat.Deleted() {
			out = append(out, chat)
		}
	}
	return out, nil
}

func (m *memoryChatRepository) BatchGetChats(ctx context.Context, tenantID string, chatIDs []string) ([]model.ChatItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.ChatItem
	for _, chatID := range chatIDs {
		if chat, ok := m.chats[model.ChatPK(tenantID, chatID)]; ok && !chat.Deleted() {
			out = append(out, chat)
		}
	}
	return out, nil
}

func (m *memoryChatRepository) CreateMembership(ctx context.Context, membership model.MembershipItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := membershipKey(membership.PK, membership.ParticipantID)
	if _, ok := m.memberships[key]; ok {
		return ErrConflict
	}
	m.memberships[key] = membership
	return nil
}

func (m *memoryChatRepository) ListMemberships(ctx context.Context, tenantID, chatID string) ([]model.MembershipItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	pk := model.ChatPK(tenantID, chatID)
	var out []model.MembershipItem
	for _, membership := range m.memberships {
		if membership.PK == pk && !membership.Deleted() {
			out = append(out, membership)
		}
	}
	return out, nil
}

func (m *memoryChatRepository) ListMembershipsByParticipant(ctx context.Context, participantID string) ([]model.MembershipItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.MembershipItem
	for _, membership := range m.memberships {
		if membership.ParticipantID == participantID && !membership.Deleted() {
			out = append(out, membership)
		}
	}
	return out, nil
}

func (m *memoryChatRepository) ActivateChat(ctx context.Context, tenantID, chatID, updatedAt string) (model.ChatItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	pk := model.ChatPK(tenantID, chatID)
	chat, ok := m.chats[pk]
	if !ok || chat.Status != model.ChatStatusOpen {
		return model.ChatItem{}, ErrConflict
	}
	chat.Status = model.ChatStatusActive
	chat.UpdatedAt = updatedAt
	m.chats[pk] = chat
	return chat, nil
}

func (m *memoryChatRepository) CloseChat(ctx context.Context, tenantID, chatID, updatedAt string) (model.ChatItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	pk := model.ChatPK(tenantID, chatID)
	chat, ok := m.chats[pk]
	if !ok || chat.Status == model.ChatStatusClosed {
		return model.ChatItem{}, ErrConflict
	}
	chat.Status = model.ChatStatusClosed
	chat.UpdatedAt = updatedAt
	m.chats[pk] = chat
	return chat, nil
}

type memoryDirectoryRepository struct {
	mu           sync.Mutex
	participants map[string]model.ParticipantItem
}

func newMemoryDirectoryRepository() *memoryDirectoryRepository {
	return &memoryDirectoryRepository{participants: make(map[string]model.ParticipantItem)}
}

func (m *memoryDirectoryRepository) GetParticipant(ctx context.Context, tenantID string, realType model.ParticipantType, realID string) (model.ParticipantItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	participant, ok := m.participants[model.ParticipantPK(tenantID, realType, realID)]
	if !ok || participant.Deleted() {
		return model.ParticipantItem{}, directory.ErrNotFound
	}
	return participant, nil
}

func (m *memoryDirectoryRepository) CreateParticipant(ctx context.Context, participant model.ParticipantItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.participants[participant.PK]; ok {
		return directory.ErrConflict
	}
	m.participants[participant.PK] = participant
	return nil
}

func (m *memoryDirectoryRepository) UpdateParticipantIdentity(ctx context.Context, pk string, update directory.IdentityUpdate) (model.ParticipantItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	participant, ok := m.participants[pk]
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
	m.participants[pk] = participant
	return participant, nil
}

func (m *memoryDirectoryRepository) ListParticipantsByIDs(ctx context.Context, participantIDs []string) ([]model.ParticipantItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	wanted := make(map[string]bool, len(participantIDs))
	for _, id := range participantIDs {
		wanted[id] = true
	}
	var out []model.ParticipantItem
	for _, participant := range m.participants {
		if wanted[participant.ParticipantID] && !participant.Deleted() {
			out = append(out, participant)
		}
	}
	return out, nil
}

type memoryLedgerRepository struct {
	mu       sync.Mutex
	messages map[string][]model.MessageItem
}

func newMemoryLedgerRepository() *memoryLedgerRepository {
	return &memoryLedgerRepository{messages: make(map[string][]model.MessageItem)}
}

func (m *memoryLedgerRepository) AppendMessage(ctx context.Context, message model.MessageItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages[message.PK] = append(m.messages[message.PK], message)
	return nil
}

func (m *memoryLedgerRepository) PageMessages(ctx context.Context, tenantID, chatID, beforeSK string, limit int32) ([]model.MessageItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.MessageItem
	stored := m.messages[model.ChatPK(tenantID, chatID)]
	for i := len(stored) - 1; i >= 0; i-- {
		if stored[i].SK < beforeSK && stored[i].DeletedAt == "" {
			out = append(out, stored[i])
		}
		if int32(len(out)) == limit {
			break
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

func (p *capturePublisher) types() []events.Type {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]events.Type, len(p.envelopes))
	for i, evt := range p.envelopes {
		out[i] = evt.Event
	}
	return out
}

func (p *capturePublisher) reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.envelopes = nil
}

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Millisecond)
	return c.t
}

type fixture struct {
	svc  *Service
	repo *memoryChatRepository
	pub  *capturePublisher
}

func newFixture() *fixture {
	clock := &testClock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	pub := &capturePublisher{}
	repo := newMemoryChatRepository()
	svc := NewWithDependencies(
		repo,
		directory.NewWithRepository(newMemoryDirectoryRepository(), clock.now),
		ledger.NewWithRepository(newMemoryLedgerRepository(), clock.now),
		events.NewEmitterWithClock(pub, logger, clock.now),
		logger,
		clock.now,
	)
	return &fixture{svc: svc, repo: repo, pub: pub}
}

func clientActor(tenant, id string) identity.Actor {
	return identity.Client{Tenant: tenant, ClientID: id, UUID: "client-uuid-" + id}
}

func userActor(tenant, id, name string) identity.Actor {
	return identity.User{Tenant: tenant, UserID: id, UUID: "user-uuid-" + id, Name: name, Email: name + "@example.com"}
}

func TestCreateChatOpensSessionWithCreatorMembership(t *testing.T) {
	f := newFixture()

	result, err := f.svc.CreateChat(context.Background(), clientActor("acct-1", "42"))
	require.NoError(t, err)
	require.Equal(t, model.ChatStatusOpen, result.Chat.Status)
	require.Len(t, result.Participants, 1)
	require.Equal(t, result.Participants[0].UUID, result.Chat.ParticipantID)

	require.Equal(t, []events.Type{events.TypeChatCreated}, f.pub.types())

	clean, ok := f.pub.envelopes[0].Meta.Clean.(events.CleanChat)
	require.True(t, ok)
	require.Equal(t, result.Chat.ChatID, clean.UUID)
	require.Equal(t, "acct-1", clean.AccountID)
}

func TestCreateChatFailedCommitPublishesNothing(t *testing.T) {
	f := newFixture()
	f.repo.failCreate = true

	_, err := f.svc.CreateChat(context.Background(), clientActor("acct-1", "42"))
	var svcErr *Error
	require.ErrorAs(t, err, &svcErr)
	require.Equal(t, ErrorCodeInternal, svcErr.Code)
	require.Empty(t, f.pub.types())
}

func TestJoinChatActivatesAndFansOutInOrder(t *testing.T) {
	f := newFixture()
	created, err := f.svc.CreateChat(context.Background(), clientActor("acct-1", "42"))
	require.NoError(t, err)
	f.pub.reset()

	result, err := f.svc.JoinChat(context.Background(), userActor("acct-1", "7", "Agent Dana"), created.Chat.ChatID)
	require.NoError(t, err)
	require.Equal(t, model.ChatStatusActive, result.Chat.Status)
	require.Len(t, result.Participants, 2)

	require.Equal(t, []events.Type{
		events.TypeChatUpdated,
		events.TypeParticipantJoined,
		events.TypeMessageCreated,
	}, f.pub.types())

	joined, ok := f.pub.envelopes[1].Meta.Clean.(events.CleanParticipant)
	require.True(t, ok)
	require.Equal(t, created.Chat.ChatID, joined.ChatID)
	require.Equal(t, "Agent Dana", joined.Name)

	system, ok := f.pub.envelopes[2].Meta.Clean.(events.CleanMessage)
	require.True(t, ok)
	require.Equal(t, "Agent Dana has joined the room", system.Text)
	require.Equal(t, model.SystemParticipantID, system.ParticipantID)
	require.Equal(t, "system", system.ParticipantType)
}

func TestJoinChatIsIdempotent(t *testing.T) {
	f := newFixture()
	created, err := f.svc.CreateChat(context.Background(), clientActor("acct-1", "42"))
	require.NoError(t, err)
	agent := userActor("acct-1", "7", "Agent Dana")

	_, err = f.svc.JoinChat(context.Background(), agent, created.Chat.ChatID)
	require.NoError(t, err)
	f.pub.reset()

	again, err := f.svc.JoinChat(context.Background(), agent, created.Chat.ChatID)
	require.NoError(t, err)
	require.Len(t, again.Participants, 2)
	require.Empty(t, f.pub.types(), "repeat join must not fan out")
}

func TestJoinChatEmitsOneStatusEventAcrossJoins(t *testing.T) {
	f := newFixture()
	created, err := f.svc.CreateChat(context.Background(), clientActor("acct-1", "42"))
	require.NoError(t, err)
	f.pub.reset()

	_, err = f.svc.JoinChat(context.Background(), userActor("acct-1", "7", "First"), created.Chat.ChatID)
	require.NoError(t, err)
	_, err = f.svc.JoinChat(context.Background(), userActor("acct-1", "8", "Second"), created.Chat.ChatID)
	require.NoError(t, err)

	var statusEvents int
	for _, evtType := range f.pub.types() {
		if evtType == events.TypeChatUpdated {
			statusEvents++
		}
	}
	require.Equal(t, 1, statusEvents, "only the first join changes status")
}

func TestJoinChatRejections(t *testing.T) {
	f := newFixture()
	created, err := f.svc.CreateChat(context.Background(), clientActor("acct-1", "42"))
	require.NoError(t, err)

	var svcErr *Error

	// Clients never join through this path.
	_, err = f.svc.JoinChat(context.Background(), clientActor("acct-1", "99"), created.Chat.ChatID)
	require.ErrorAs(t, err, &svcErr)
	require.Equal(t, ErrorCodeNotFound, svcErr.Code)

	// Another tenant's agent sees nothing.
	_, err = f.svc.JoinChat(context.Background(), userActor("acct-2", "7", "Other"), created.Chat.ChatID)
	require.ErrorAs(t, err, &svcErr)
	require.Equal(t, ErrorCodeNotFound, svcErr.Code)

	// A closed chat is gone for joiners.
	_, err = f.svc.JoinChat(context.Background(), userActor("acct-1", "7", "Agent"), created.Chat.ChatID)
	require.NoError(t, err)
	_, err = f.svc.CloseChat(context.Background(), userActor("acct-1", "7", "Agent"), created.Chat.ChatID)
	require.NoError(t, err)
	_, err = f.svc.JoinChat(context.Background(), userActor("acct-1", "8", "Late"), created.Chat.ChatID)
	require.ErrorAs(t, err, &svcErr)
	require.Equal(t, ErrorCodeNotFound, svcErr.Code)
}

func TestCloseChatFansOutAndIsFinal(t *testing.T) {
	f := newFixture()
	created, err := f.svc.CreateChat(context.Background(), clientActor("acct-1", "42"))
	require.NoError(t, err)
	agent := userActor("acct-1", "7", "Agent Dana")
	_, err = f.svc.JoinChat(context.Background(), agent, created.Chat.ChatID)
	require.NoError(t, err)
	f.pub.reset()

	result, err := f.svc.CloseChat(context.Background(), agent, created.Chat.ChatID)
	require.NoError(t, err)
	require.Equal(t, model.ChatStatusClosed, result.Chat.Status)

	require.Equal(t, []events.Type{
		events.TypeChatUpdated,
		events.TypeMessageCreated,
	}, f.pub.types())

	raw, ok := f.pub.envelopes[0].Meta.Raw.(events.RawChat)
	require.True(t, ok)
	require.Len(t, raw.Memberships, 2, "close event carries the full roster")

	system, ok := f.pub.envelopes[1].Meta.Clean.(events.CleanMessage)
	require.True(t, ok)
	require.Equal(t, "Agent Dana ended the chat", system.Text)

	var svcErr *Error
	_, err = f.svc.CloseChat(context.Background(), agent, created.Chat.ChatID)
	require.ErrorAs(t, err, &svcErr)
	require.Equal(t, ErrorCodeConflict, svcErr.Code)
}

func TestCloseChatByClientMutatesNothing(t *testing.T) {
	f := newFixture()
	creator := clientActor("acct-1", "42")
	created, err := f.svc.CreateChat(context.Background(), creator)
	require.NoError(t, err)
	f.pub.reset()

	var svcErr *Error
	_, err = f.svc.CloseChat(context.Background(), creator, created.Chat.ChatID)
	require.ErrorAs(t, err, &svcErr)
	require.Equal(t, ErrorCodeNotFound, svcErr.Code)
	require.Empty(t, f.pub.types())

	reloaded, err := f.svc.GetChat(context.Background(), creator, created.Chat.ChatID)
	require.NoError(t, err)
	require.Equal(t, model.ChatStatusOpen, reloaded.Chat.Status)
}

func TestPostMessageFansOutCleanAuthor(t *testing.T) {
	f := newFixture()
	creator := clientActor("acct-1", "42")
	created, err := f.svc.CreateChat(context.Background(), creator)
	require.NoError(t, err)
	f.pub.reset()

	result, err := f.svc.PostMessage(context.Background(), creator, created.Chat.ChatID, "hello there")
	require.NoError(t, err)
	require.Equal(t, "hello there", result.Message.Text)

	require.Equal(t, []events.Type{events.TypeMessageCreated}, f.pub.types())
	clean, ok := f.pub.envelopes[0].Meta.Clean.(events.CleanMessage)
	require.True(t, ok)
	require.Equal(t, result.Author.UUID, clean.ParticipantID, "clean view carries the public uuid")
	require.NotEqual(t, result.Message.ParticipantID, clean.ParticipantID)
	require.Equal(t, "client", clean.ParticipantType)
}

func TestPostMessageRejections(t *testing.T) {
	f := newFixture()
	creator := clientActor("acct-1", "42")
	created, err := f.svc.CreateChat(context.Background(), creator)
	require.NoError(t, err)

	var svcErr *Error

	// A non-member client cannot learn the chat exists.
	_, err = f.svc.PostMessage(context.Background(), clientActor("acct-1", "99"), created.Chat.ChatID, "hi")
	require.ErrorAs(t, err, &svcErr)
	require.Equal(t, ErrorCodeNotFound, svcErr.Code)

	// An agent who never joined gets the same answer as a stranger.
	_, err = f.svc.PostMessage(context.Background(), userActor("acct-1", "7", "Agent"), created.Chat.ChatID, "hi")
	require.ErrorAs(t, err, &svcErr)
	require.Equal(t, ErrorCodeNotFound, svcErr.Code)

	// Blank text never reaches the ledger.
	_, err = f.svc.PostMessage(context.Background(), creator, created.Chat.ChatID, "   ")
	require.ErrorAs(t, err, &svcErr)
	require.Equal(t, ErrorCodeValidation, svcErr.Code)

	// Closed chats take no more messages.
	agent := userActor("acct-1", "7", "Agent")
	_, err = f.svc.JoinChat(context.Background(), agent, created.Chat.ChatID)
	require.NoError(t, err)
	_, err = f.svc.CloseChat(context.Background(), agent, created.Chat.ChatID)
	require.NoError(t, err)
	_, err = f.svc.PostMessage(context.Background(), creator, created.Chat.ChatID, "too late")
	require.ErrorAs(t, err, &svcErr)
	require.Equal(t, ErrorCodeConflict, svcErr.Code)
}

func TestListMessagesProjectsAuthorsAndSystemEntries(t *testing.T) {
	f := newFixture()
	creator := clientActor("acct-1", "42")
	created, err := f.svc.CreateChat(context.Background(), creator)
	require.NoError(t, err)
	agent := userActor("acct-1", "7", "Agent Dana")
	_, err = f.svc.JoinChat(context.Background(), agent, created.Chat.ChatID)
	require.NoError(t, err)
	posted, err := f.svc.PostMessage(context.Background(), creator, created.Chat.ChatID, "hello")
	require.NoError(t, err)

	page, err := f.svc.ListMessages(context.Background(), agent, created.Chat.ChatID, ListMessagesParams{})
	require.NoError(t, err)
	require.False(t, page.HasMore)
	require.Len(t, page.Messages, 2)

	require.Equal(t, "Agent Dana has joined the room", page.Messages[0].Text)
	require.Equal(t, "system", page.Messages[0].ParticipantType)
	require.Equal(t, "hello", page.Messages[1].Text)
	require.Equal(t, posted.Author.UUID, page.Messages[1].ParticipantID)
}

func TestListMessagesVisibility(t *testing.T) {
	f := newFixture()
	creator := clientActor("acct-1", "42")
	created, err := f.svc.CreateChat(context.Background(), creator)
	require.NoError(t, err)

	var svcErr *Error

	// A non-member client sees nothing.
	_, err = f.svc.ListMessages(context.Background(), clientActor("acct-1", "99"), created.Chat.ChatID, ListMessagesParams{})
	require.ErrorAs(t, err, &svcErr)
	require.Equal(t, ErrorCodeNotFound, svcErr.Code)

	// Another tenant's agent sees nothing either.
	_, err = f.svc.ListMessages(context.Background(), userActor("acct-2", "7", "Other"), created.Chat.ChatID, ListMessagesParams{})
	require.ErrorAs(t, err, &svcErr)
	require.Equal(t, ErrorCodeNotFound, svcErr.Code)

	// Any agent of the owning tenant may read without joining.
	_, err = f.svc.ListMessages(context.Background(), userActor("acct-1", "7", "Agent"), created.Chat.ChatID, ListMessagesParams{})
	require.NoError(t, err)
}

func TestListChatsByRole(t *testing.T) {
	f := newFixture()
	creator := clientActor("acct-1", "42")
	mine, err := f.svc.CreateChat(context.Background(), creator)
	require.NoError(t, err)
	_, err = f.svc.CreateChat(context.Background(), clientActor("acct-1", "99"))
	require.NoError(t, err)
	_, err = f.svc.CreateChat(context.Background(), clientActor("acct-2", "42"))
	require.NoError(t, err)

	agentChats, err := f.svc.ListChats(context.Background(), userActor("acct-1", "7", "Agent"))
	require.NoError(t, err)
	require.Len(t, agentChats, 2, "agents see every chat in their tenant")

	clientChats, err := f.svc.ListChats(context.Background(), creator)
	require.NoError(t, err)
	require.Len(t, clientChats, 1, "clients see only their memberships")
	require.Equal(t, mine.Chat.ChatID, clientChats[0].Chat.ChatID)
}

func TestListChatsAttachesLatestMessage(t *testing.T) {
	f := newFixture()
	creator := clientActor("acct-1", "42")
	created, err := f.svc.CreateChat(context.Background(), creator)
	require.NoError(t, err)

	_, err = f.svc.PostMessage(context.Background(), creator, created.Chat.ChatID, "first")
	require.NoError(t, err)
	posted, err := f.svc.PostMessage(context.Background(), creator, created.Chat.ChatID, "second")
	require.NoError(t, err)

	summaries, err := f.svc.ListChats(context.Background(), creator)
	require.NoError(t, err)
	require.Len(t, summaries, 1)

	summary := summaries[0]
	require.Len(t, summary.Participants, 1, "roster rides along with the list")
	require.NotNil(t, summary.LatestMessage)
	require.Equal(t, "second", summary.LatestMessage.Text)
	require.Equal(t, posted.Message.MessageID, summary.LatestMessage.MessageID)
	require.NotNil(t, summary.LatestAuthor)
	require.Equal(t, posted.Author.UUID, summary.LatestAuthor.UUID)

	// An agent closing the chat leaves a system entry on top.
	agent := userActor("acct-1", "7", "Agent")
	_, err = f.svc.JoinChat(context.Background(), agent, created.Chat.ChatID)
	require.NoError(t, err)
	_, err = f.svc.CloseChat(context.Background(), agent, created.Chat.ChatID)
	require.NoError(t, err)

	summaries, err = f.svc.ListChats(context.Background(), agent)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	require.NotNil(t, summaries[0].LatestMessage)
	require.Equal(t, model.SystemParticipantID, summaries[0].LatestMessage.ParticipantID)
	require.Nil(t, summaries[0].LatestAuthor, "system entries have no roster author")
}

func TestComposeSignalIsPureFanOut(t *testing.T) {
	f := newFixture()
	creator := clientActor("acct-1", "42")
	created, err := f.svc.CreateChat(context.Background(), creator)
	require.NoError(t, err)
	f.pub.reset()

	err = f.svc.ComposeSignal(context.Background(), creator, created.Chat.ChatID, "typing…")
	require.NoError(t, err)

	require.Equal(t, []events.Type{events.TypeMessageComposed}, f.pub.types())
	clean, ok := f.pub.envelopes[0].Meta.Clean.(events.CleanCompose)
	require.True(t, ok)
	require.Equal(t, created.Chat.ChatID, clean.ChatUUID)
	require.Equal(t, "typing…", clean.Text)

	raw, ok := f.pub.envelopes[0].Meta.Raw.(events.RawCompose)
	require.True(t, ok)
	require.Equal(t, "42", raw.RealID)
	require.Equal(t, "acct-1", raw.AccountID)

	page, err := f.svc.ListMessages(context.Background(), creator, created.Chat.ChatID, ListMessagesParams{})
	require.NoError(t, err)
	require.Empty(t, page.Messages, "compose signals are never stored")
}
