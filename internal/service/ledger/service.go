package ledger

import (
	"context"
	"strings"
	"time"

	"chat-service-backend/internal/database"
	"chat-service-backend/internal/model"

	"github.com/google/uuid"
)

// DefaultPageSize is how many ledger entries a page carries when the
// caller does not ask for a size.
const DefaultPageSize = 20

// defaultCursorSkew pushes the default cursor slightly past now so an
// entry written in the same instant as the request is still on the first
// page.
const defaultCursorSkew = time.Second

type ErrorCode string

const (
	ErrorCodeValidation ErrorCode = "validation_error"
	ErrorCodeInternal   ErrorCode = "internal_error"
)

type Error struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(code ErrorCode, message string, err error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

type AppendParams struct {
	TenantID      string
	ChatID        string
	ParticipantID string
	Text          string
}

type PageParams struct {
	TenantID string
	ChatID   string
	// Before is the exclusive cursor; zero means "from now".
	Before   time.Time
	PageSize int
}

// PageResult is one page of the ledger, oldest entry first. NextBefore is
// the cursor for the following (older) page when HasMore is set.
type PageResult struct {
	Messages   []model.MessageItem
	HasMore    bool
	NextBefore time.Time
}

// Service is the append-only message ledger. Entries are never mutated;
// the only ordering is the (creationTimestamp, id) sort key assigned at
// append time.
type Service struct {
	repo Repository
	now  func() time.Time
}

func New(db *database.Database) *Service {
	return &Service{
		repo: NewDynamoRepository(db),
		now:  time.Now,
	}
}

func NewWithRepository(repo Repository, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{
		repo: repo,
		now:  now,
	}
}

// Append writes one entry. Authorship and chat state are the caller's
// concern; the ledger only guards the entry's own shape.
func (s *Service) Append(ctx context.Context, params AppendParams) (model.MessageItem, error) {
	text := strings.TrimSpace(params.Text)
	if text == "" {
		return model.MessageItem{}, newError(ErrorCodeValidation, "message text is required", nil)
	}
	if params.TenantID == "" || params.ChatID == "" {
		return model.MessageItem{}, newError(ErrorCodeValidation, "tenant id and chat id are required", nil)
	}
	if params.ParticipantID == "" {
		return model.MessageItem{}, newError(ErrorCodeValidation, "participant id is required", nil)
	}

	now := s.now().UTC()
	message := model.MessageItem{
		PK:            model.ChatPK(params.TenantID, params.ChatID),
		MessageID:     uuid.NewString(),
		TenantID:      params.TenantID,
		ChatID:        params.ChatID,
		ParticipantID: params.ParticipantID,
		Text:          text,
		CreatedAt:     now.Format(time.RFC3339Nano),
	}
	message.SK = model.MessageSK(now, message.MessageID)

	if err := s.repo.AppendMessage(ctx, message); err != nil {
		return model.MessageItem{}, newError(ErrorCodeInternal, "failed to append message", err)
	}
	return message, nil
}

// AppendSystem writes a system-authored entry carrying the sentinel
// author id.
func (s *Service) AppendSystem(ctx context.Context, tenantID, chatID, text string) (model.MessageItem, error) {
	return s.Append(ctx, AppendParams{
		TenantID:      tenantID,
		ChatID:        chatID,
		ParticipantID: model.SystemParticipantID,
		Text:          text,
	})
}

// Latest returns the newest surviving entry in a chat's ledger, or nil
// when the chat has none.
func (s *Service) Latest(ctx context.Context, tenantID, chatID string) (*model.MessageItem, error) {
	if tenantID == "" || chatID == "" {
		return nil, newError(ErrorCodeValidation, "tenant id and chat id are required", nil)
	}

	messages, err := s.repo.PageMessages(
		ctx,
		tenantID,
		chatID,
		model.MessageCursor(s.now().Add(defaultCursorSkew)),
		1,
	)
	if err != nil {
		return nil, newError(ErrorCodeInternal, "failed to load messages", err)
	}
	if len(messages) == 0 {
		return nil, nil
	}
	return &messages[0], nil
}

// Page walks the ledger backwards from the cursor. It fetches one row
// past the page size to learn whether an older page exists.
func (s *Service) Page(ctx context.Context, params PageParams) (PageResult, error) {
	if params.TenantID == "" || params.ChatID == "" {
		return PageResult{}, newError(ErrorCodeValidation, "tenant id and chat id are required", nil)
	}

	pageSize := params.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	before := params.Before
	if before.IsZero() {
		before = s.now().Add(defaultCursorSkew)
	}

	messages, err := s.repo.PageMessages(
		ctx,
		params.TenantID,
		params.ChatID,
		model.MessageCursor(before),
		int32(pageSize+1),
	)
	if err != nil {
		return PageResult{}, newError(ErrorCodeInternal, "failed to load messages", err)
	}

	result := PageResult{}
	if len(messages) > pageSize {
		result.HasMore = true
		messages = messages[:pageSize]
	}
	if result.HasMore && len(messages) > 0 {
		oldest := messages[len(messages)-1]
		cursor, err := time.Parse(time.RFC3339Nano, oldest.CreatedAt)
		if err != nil {
			return PageResult{}, newError(ErrorCodeInternal, "failed to parse message timestamp", err)
		}
		result.NextBefore = cursor
	}

	// Storage hands back newest first; pages read oldest first.
	result.Messages = make([]model.MessageItem, len(messages))
	for i, message := range messages {
		result.Messages[len(messages)-1-i] = message
	}
	return result, nil
}
