package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"chat-service-backend/internal/database"
	"chat-service-backend/internal/events"
	"chat-service-backend/internal/identity"
	"chat-service-backend/internal/model"
	"chat-service-backend/internal/service/directory"
	"chat-service-backend/internal/service/ledger"

	"github.com/google/uuid"
)

type ChatResult struct {
	Chat         model.ChatItem
	Participants []model.ParticipantItem
}

// ChatSummary is one list entry: the chat, its roster and its newest
// ledger entry with the author resolved when still on the roster.
type ChatSummary struct {
	Chat          model.ChatItem
	Participants  []model.ParticipantItem
	LatestMessage *model.MessageItem
	LatestAuthor  *model.ParticipantItem
}

type MessageResult struct {
	Chat    model.ChatItem
	Message model.MessageItem
	Author  *model.ParticipantItem
}

// MessagePage is one page of a chat's history projected to the clean
// shape, oldest entry first.
type MessagePage struct {
	Messages   []events.CleanMessage
	HasMore    bool
	NextBefore time.Time
}

type ListMessagesParams struct {
	Before   time.Time
	PageSize int
}

// Service drives the chat session lifecycle: open on creation, active
// once an agent joins, closed forever after. Every state change commits
// to storage first and fans out on the bus after; a failed commit
// publishes nothing.
type Service struct {
	repo      Repository
	directory *directory.Service
	ledger    *ledger.Service
	emitter   *events.Emitter
	logger    *slog.Logger
	now       func() time.Time
}

func New(db *database.Database, emitter *events.Emitter, logger *slog.Logger) *Service {
	return NewWithDependencies(
		NewDynamoRepository(db),
		directory.New(db),
		ledger.New(db),
		emitter,
		logger,
		time.Now,
	)
}

func NewWithDependencies(
	repo Repository,
	dir *directory.Service,
	led *ledger.Service,
	emitter *events.Emitter,
	logger *slog.Logger,
	now func() time.Time,
) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{
		repo:      repo,
		directory: dir,
		ledger:    led,
		emitter:   emitter,
		logger:    logger.With("component", "chat_service"),
		now:       now,
	}
}

// CreateChat opens a new session with the caller as its first member. The
// chat row and the creator's membership commit in one transaction.
func (s *Service) CreateChat(ctx context.Context, actor identity.Actor) (ChatResult, error) {
	participant, err := s.resolveActor(ctx, actor)
	if err != nil {
		return ChatResult{}, err
	}

	now := s.now().UTC().Format(time.RFC3339)
	chat := model.ChatItem{
		ChatID:        uuid.NewString(),
		TenantID:      actor.TenantID(),
		ParticipantID: participant.UUID,
		Status:        model.ChatStatusOpen,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	chat.PK = model.ChatPK(chat.TenantID, chat.ChatID)

	membership := model.MembershipItem{
		PK:            chat.PK,
		ParticipantID: participant.ParticipantID,
		LinkID:        uuid.NewString(),
		TenantID:      chat.TenantID,
		ChatID:        chat.ChatID,
		CreatedAt:     now,
	}

	if err := s.repo.CreateChatWithMembership(ctx, chat, membership); err != nil {
		if errors.Is(err, ErrConflict) {
			return ChatResult{}, newError(ErrorCodeConflict, "chat already exists", err)
		}
		return ChatResult{}, newError(ErrorCodeInternal, "failed to create chat", err)
	}

	participants := []model.ParticipantItem{participant}
	s.emitter.Emit(ctx, events.TypeChatCreated,
		events.RawChatView(chat, []model.MembershipItem{membership}, participants),
		events.CleanChatView(chat, participants),
	)

	return ChatResult{Chat: chat, Participants: participants}, nil
}

// GetChat loads one session with its member roster. Users see every chat
// in their tenant; clients only the chats they belong to. Anything else
// reads as not found.
func (s *Service) GetChat(ctx context.Context, actor identity.Actor, chatID string) (ChatResult, error) {
	chat, memberships, err := s.visibleChat(ctx, actor, chatID)
	if err != nil {
		return ChatResult{}, err
	}

	participants, err := s.memberParticipants(ctx, memberships)
	if err != nil {
		return ChatResult{}, err
	}
	return ChatResult{Chat: chat, Participants: participants}, nil
}

// ListChats returns the sessions visible to the caller, newest first,
// each with its roster and latest message attached.
func (s *Service) ListChats(ctx context.Context, actor identity.Actor) ([]ChatSummary, error) {
	var chats []model.ChatItem

	switch actor.Role() {
	case model.ParticipantTypeUser:
		all, err := s.repo.ListChatsByTenant(ctx, actor.TenantID())
		if err != nil {
			return nil, newError(ErrorCodeInternal, "failed to list chats", err)
		}
		chats = all
	case model.ParticipantTypeClient:
		participant, err := s.resolveActor(ctx, actor)
		if err != nil {
			return nil, err
		}
		memberships, err := s.repo.ListMembershipsByParticipant(ctx, participant.ParticipantID)
		if err != nil {
			return nil, newError(ErrorCodeInternal, "failed to list memberships", err)
		}
		chatIDs := make([]string, 0, len(memberships))
		for _, membership := range memberships {
			if membership.TenantID != actor.TenantID() {
				continue
			}
			chatIDs = append(chatIDs, membership.ChatID)
		}
		if len(chatIDs) == 0 {
			return []ChatSummary{}, nil
		}
		chats, err = s.repo.BatchGetChats(ctx, actor.TenantID(), chatIDs)
		if err != nil {
			return nil, newError(ErrorCodeInternal, "failed to load chats", err)
		}
	default:
		return nil, newError(ErrorCodeValidation, "unknown participant type", nil)
	}

	sort.Slice(chats, func(i, j int) bool {
		return chats[i].CreatedAt > chats[j].CreatedAt
	})

	summaries := make([]ChatSummary, 0, len(chats))
	for _, chat := range chats {
		memberships, err := s.repo.ListMemberships(ctx, chat.TenantID, chat.ChatID)
		if err != nil {
			return nil, newError(ErrorCodeInternal, "failed to list memberships", err)
		}
		participants, err := s.memberParticipants(ctx, memberships)
		if err != nil {
			return nil, err
		}
		latest, err := s.ledger.Latest(ctx, chat.TenantID, chat.ChatID)
		if err != nil {
			return nil, translateLedgerError(err)
		}

		summary := ChatSummary{Chat: chat, Participants: participants, LatestMessage: latest}
		if latest != nil {
			for i := range participants {
				if participants[i].ParticipantID == latest.ParticipantID {
					summary.LatestAuthor = &participants[i]
					break
				}
			}
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}

// JoinChat adds an agent to an open or active session. The first join
// moves the chat to active; joining again is a no-op. Clients cannot
// join chats they were not part of from creation, and to them the chat
// simply does not exist.
func (s *Service) JoinChat(ctx context.Context, actor identity.Actor, chatID string) (ChatResult, error) {
	if actor.Role() != model.ParticipantTypeUser {
		return ChatResult{}, newError(ErrorCodeNotFound, "chat not found", nil)
	}

	chat, err := s.repo.GetChat(ctx, actor.TenantID(), chatID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ChatResult{}, newError(ErrorCodeNotFound, "chat not found", err)
		}
		return ChatResult{}, newError(ErrorCodeInternal, "failed to load chat", err)
	}
	if chat.Status == model.ChatStatusClosed {
		return ChatResult{}, newError(ErrorCodeNotFound, "chat not found", nil)
	}

	participant, err := s.resolveActor(ctx, actor)
	if err != nil {
		return ChatResult{}, err
	}

	now := s.now().UTC().Format(time.RFC3339)
	membership := model.MembershipItem{
		PK:            chat.PK,
		ParticipantID: participant.ParticipantID,
		LinkID:        uuid.NewString(),
		TenantID:      chat.TenantID,
		ChatID:        chat.ChatID,
		CreatedAt:     now,
	}

	err = s.repo.CreateMembership(ctx, membership)
	if errors.Is(err, ErrConflict) {
		// Already a member; nothing changed, nothing fans out.
		return s.GetChat(ctx, actor, chatID)
	}
	if err != nil {
		return ChatResult{}, newError(ErrorCodeInternal, "failed to join chat", err)
	}

	transitioned := false
	activated, err := s.repo.ActivateChat(ctx, chat.TenantID, chat.ChatID, now)
	switch {
	case err == nil:
		chat = activated
		transitioned = true
	case errors.Is(err, ErrConflict):
		// Someone else activated first. The membership still counts; the
		// status event belongs to the winner.
		chat, err = s.repo.GetChat(ctx, chat.TenantID, chat.ChatID)
		if err != nil {
			return ChatResult{}, newError(ErrorCodeInternal, "failed to load chat", err)
		}
	default:
		return ChatResult{}, newError(ErrorCodeInternal, "failed to activate chat", err)
	}

	memberships, err := s.repo.ListMemberships(ctx, chat.TenantID, chat.ChatID)
	if err != nil {
		return ChatResult{}, newError(ErrorCodeInternal, "failed to list memberships", err)
	}
	participants, err := s.memberParticipants(ctx, memberships)
	if err != nil {
		return ChatResult{}, err
	}

	rawChat := events.RawChatView(chat, memberships, participants)
	if transitioned {
		s.emitter.Emit(ctx, events.TypeChatUpdated, rawChat, events.CleanChatView(chat, participants))
	}

	joined := events.CleanParticipantView(participant)
	joined.ChatID = chat.ChatID
	s.emitter.Emit(ctx, events.TypeParticipantJoined,
		events.RawParticipant{ParticipantItem: participant, Chat: &rawChat},
		joined,
	)

	s.appendSystemMessage(ctx, chat, rawChat, fmt.Sprintf("%s has joined the room", identity.DisplayName(actor)))

	return ChatResult{Chat: chat, Participants: participants}, nil
}

// CloseChat ends a session. Only agents close chats; a client calling
// this learns nothing about the chat's existence. Closing is final.
func (s *Service) CloseChat(ctx context.Context, actor identity.Actor, chatID string) (ChatResult, error) {
	if actor.Role() != model.ParticipantTypeUser {
		return ChatResult{}, newError(ErrorCodeNotFound, "chat not found", nil)
	}

	chat, err := s.repo.GetChat(ctx, actor.TenantID(), chatID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ChatResult{}, newError(ErrorCodeNotFound, "chat not found", err)
		}
		return ChatResult{}, newError(ErrorCodeInternal, "failed to load chat", err)
	}
	if !model.CanTransition(chat.Status, model.ChatStatusClosed) {
		return ChatResult{}, newError(ErrorCodeConflict, "chat is already closed", nil)
	}

	now := s.now().UTC().Format(time.RFC3339)
	closed, err := s.repo.CloseChat(ctx, chat.TenantID, chat.ChatID, now)
	if err != nil {
		if errors.Is(err, ErrConflict) {
			return ChatResult{}, newError(ErrorCodeConflict, "chat is already closed", err)
		}
		return ChatResult{}, newError(ErrorCodeInternal, "failed to close chat", err)
	}

	memberships, err := s.repo.ListMemberships(ctx, closed.TenantID, closed.ChatID)
	if err != nil {
		return ChatResult{}, newError(ErrorCodeInternal, "failed to list memberships", err)
	}
	participants, err := s.memberParticipants(ctx, memberships)
	if err != nil {
		return ChatResult{}, err
	}

	rawChat := events.RawChatView(closed, memberships, participants)
	s.emitter.Emit(ctx, events.TypeChatUpdated, rawChat, events.CleanChatView(closed, participants))

	s.appendSystemMessage(ctx, closed, rawChat, fmt.Sprintf("%s ended the chat", identity.DisplayName(actor)))

	return ChatResult{Chat: closed, Participants: participants}, nil
}

// PostMessage appends one entry authored by the caller. The caller must
// be a member and the chat must not be closed.
func (s *Service) PostMessage(ctx context.Context, actor identity.Actor, chatID, text string) (MessageResult, error) {
	chat, err := s.repo.GetChat(ctx, actor.TenantID(), chatID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return MessageResult{}, newError(ErrorCodeNotFound, "chat not found", err)
		}
		return MessageResult{}, newError(ErrorCodeInternal, "failed to load chat", err)
	}
	if chat.Status == model.ChatStatusClosed {
		return MessageResult{}, newError(ErrorCodeConflict, "chat is closed", nil)
	}

	participant, err := s.resolveActor(ctx, actor)
	if err != nil {
		return MessageResult{}, err
	}

	memberships, err := s.repo.ListMemberships(ctx, chat.TenantID, chat.ChatID)
	if err != nil {
		return MessageResult{}, newError(ErrorCodeInternal, "failed to list memberships", err)
	}
	if !isMember(memberships, participant.ParticipantID) {
		// a chat the caller has no seat in reads as absent, whatever the role
		return MessageResult{}, newError(ErrorCodeNotFound, "chat not found", nil)
	}

	message, err := s.ledger.Append(ctx, ledger.AppendParams{
		TenantID:      chat.TenantID,
		ChatID:        chat.ChatID,
		ParticipantID: participant.ParticipantID,
		Text:          text,
	})
	if err != nil {
		return MessageResult{}, translateLedgerError(err)
	}

	participants, err := s.memberParticipants(ctx, memberships)
	if err != nil {
		return MessageResult{}, err
	}
	rawChat := events.RawChatView(chat, memberships, participants)
	s.emitter.Emit(ctx, events.TypeMessageCreated,
		events.RawMessage{MessageItem: message, Chat: &rawChat},
		events.CleanMessageView(message, &participant, chat.ChatID),
	)

	return MessageResult{Chat: chat, Message: message, Author: &participant}, nil
}

// ListMessages pages through a chat's history, oldest first within the
// page. Authors are projected to their public identities; an entry whose
// author cannot be resolved is returned without one.
func (s *Service) ListMessages(ctx context.Context, actor identity.Actor, chatID string, params ListMessagesParams) (MessagePage, error) {
	chat, _, err := s.visibleChat(ctx, actor, chatID)
	if err != nil {
		return MessagePage{}, err
	}

	page, err := s.ledger.Page(ctx, ledger.PageParams{
		TenantID: chat.TenantID,
		ChatID:   chat.ChatID,
		Before:   params.Before,
		PageSize: params.PageSize,
	})
	if err != nil {
		return MessagePage{}, translateLedgerError(err)
	}

	authorIDs := make([]string, 0, len(page.Messages))
	for _, message := range page.Messages {
		if !message.System() {
			authorIDs = append(authorIDs, message.ParticipantID)
		}
	}
	authors, err := s.directory.ParticipantsByIDs(ctx, authorIDs)
	if err != nil {
		return MessagePage{}, newError(ErrorCodeInternal, "failed to load authors", err)
	}

	result := MessagePage{
		HasMore:    page.HasMore,
		NextBefore: page.NextBefore,
		Messages:   make([]events.CleanMessage, 0, len(page.Messages)),
	}
	for _, message := range page.Messages {
		var author *model.ParticipantItem
		if !message.System() {
			if a, ok := authors[message.ParticipantID]; ok {
				author = &a
			} else {
				s.logger.Warn("message author not in directory",
					"chatId", chat.ChatID, "messageId", message.MessageID)
			}
		}
		result.Messages = append(result.Messages, events.CleanMessageView(message, author, chat.ChatID))
	}
	return result, nil
}

// ComposeSignal fans out a typing notification. Nothing is stored; the
// event is the whole effect.
func (s *Service) ComposeSignal(ctx context.Context, actor identity.Actor, chatID, text string) error {
	chat, _, err := s.visibleChat(ctx, actor, chatID)
	if err != nil {
		return err
	}
	if chat.Status == model.ChatStatusClosed {
		return newError(ErrorCodeConflict, "chat is closed", nil)
	}

	s.emitter.Emit(ctx, events.TypeMessageComposed,
		events.RawCompose{
			AccountID: actor.TenantID(),
			ChatUUID:  chat.ChatID,
			RealType:  actor.Role(),
			RealID:    actor.ExternalID(),
		},
		events.CleanCompose{ChatUUID: chat.ChatID, Text: text},
	)
	return nil
}

func (s *Service) resolveActor(ctx context.Context, actor identity.Actor) (model.ParticipantItem, error) {
	params := directory.ResolveParams{
		TenantID: actor.TenantID(),
		RealType: actor.Role(),
		RealID:   actor.ExternalID(),
		RealUUID: actor.ExternalUUID(),
	}
	if user, ok := actor.(identity.User); ok {
		params.Name = user.Name
		params.Email = user.Email
	}

	participant, err := s.directory.Resolve(ctx, params)
	if err != nil {
		var dirErr *directory.Error
		if errors.As(err, &dirErr) && dirErr.Code == directory.ErrorCodeValidation {
			return model.ParticipantItem{}, newError(ErrorCodeValidation, dirErr.Message, err)
		}
		return model.ParticipantItem{}, newError(ErrorCodeInternal, "failed to resolve participant", err)
	}
	return participant, nil
}

// visibleChat loads a chat and enforces the caller's view of it. A chat
// in another tenant, or one a client is not a member of, reads as not
// found rather than forbidden.
func (s *Service) visibleChat(ctx context.Context, actor identity.Actor, chatID string) (model.ChatItem, []model.MembershipItem, error) {
	chat, err := s.repo.GetChat(ctx, actor.TenantID(), chatID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return model.ChatItem{}, nil, newError(ErrorCodeNotFound, "chat not found", err)
		}
		return model.ChatItem{}, nil, newError(ErrorCodeInternal, "failed to load chat", err)
	}
	if chat.TenantID != actor.TenantID() {
		return model.ChatItem{}, nil, newError(ErrorCodeTenantMismatch, "chat not found", nil)
	}

	memberships, err := s.repo.ListMemberships(ctx, chat.TenantID, chat.ChatID)
	if err != nil {
		return model.ChatItem{}, nil, newError(ErrorCodeInternal, "failed to list memberships", err)
	}

	if actor.Role() == model.ParticipantTypeClient {
		participant, err := s.resolveActor(ctx, actor)
		if err != nil {
			return model.ChatItem{}, nil, err
		}
		if !isMember(memberships, participant.ParticipantID) {
			return model.ChatItem{}, nil, newError(ErrorCodeNotFound, "chat not found", nil)
		}
	}
	return chat, memberships, nil
}

// memberParticipants hydrates membership rows into directory records,
// preserving join order.
func (s *Service) memberParticipants(ctx context.Context, memberships []model.MembershipItem) ([]model.ParticipantItem, error) {
	ids := make([]string, 0, len(memberships))
	for _, membership := range memberships {
		ids = append(ids, membership.ParticipantID)
	}

	byID, err := s.directory.ParticipantsByIDs(ctx, ids)
	if err != nil {
		return nil, newError(ErrorCodeInternal, "failed to load participants", err)
	}

	ordered := make([]model.MembershipItem, len(memberships))
	copy(ordered, memberships)
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].CreatedAt < ordered[j].CreatedAt
	})

	participants := make([]model.ParticipantItem, 0, len(ordered))
	for _, membership := range ordered {
		if participant, ok := byID[membership.ParticipantID]; ok {
			participants = append(participants, participant)
		}
	}
	return participants, nil
}

// appendSystemMessage writes a system ledger entry and fans it out. A
// ledger failure here is logged, not surfaced: the state change that
// triggered the entry already committed.
func (s *Service) appendSystemMessage(ctx context.Context, chat model.ChatItem, rawChat events.RawChat, text string) {
	message, err := s.ledger.AppendSystem(ctx, chat.TenantID, chat.ChatID, text)
	if err != nil {
		s.logger.Error("system message append failed", "chatId", chat.ChatID, "error", err)
		return
	}
	s.emitter.Emit(ctx, events.TypeMessageCreated,
		events.RawMessage{MessageItem: message, Chat: &rawChat},
		events.CleanMessageView(message, nil, chat.ChatID),
	)
}

func isMember(memberships []model.MembershipItem, participantID string) bool {
	for _, membership := range memberships {
		if membership.ParticipantID == participantID {
			return true
		}
	}
	return false
}

func translateLedgerError(err error) error {
	var ledgerErr *ledger.Error
	if errors.As(err, &ledgerErr) && ledgerErr.Code == ledger.ErrorCodeValidation {
		return newError(ErrorCodeValidation, ledgerErr.Message, err)
	}
	return newError(ErrorCodeInternal, "ledger operation failed", err)
}
