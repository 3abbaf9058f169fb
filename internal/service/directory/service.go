package directory

import (
	"context"
	"errors"
	"strings"
	"time"

	"chat-service-backend/internal/database"
	"chat-service-backend/internal/model"

	"github.com/google/uuid"
)

type ErrorCode string

const (
	ErrorCodeValidation ErrorCode = "validation_error"
	ErrorCodeNotFound   ErrorCode = "not_found"
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

// ResolveParams identify a participant by its external coordinates.
// Profile attributes are applied only when the participant is created.
type ResolveParams struct {
	TenantID string
	RealType model.ParticipantType
	RealID   string
	RealUUID string
	Name     string
	Email    string
}

// IdentityUpdateParams carry an inbound identity broadcast. Nil attribute
// pointers mean "not included in the broadcast".
type IdentityUpdateParams struct {
	TenantID string
	RealType model.ParticipantType
	RealID   string
	RealUUID *string
	Name     *string
	Email    *string
}

// Service is the participant directory: the single place external
// identities become internal participant records.
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

// Resolve returns the participant for an external identity, creating it
// on first sight. Concurrent resolves of the same identity converge on
// one record: the losing insert re-reads the winner.
func (s *Service) Resolve(ctx context.Context, params ResolveParams) (model.ParticipantItem, error) {
	tenantID := strings.TrimSpace(params.TenantID)
	realID := strings.TrimSpace(params.RealID)

	if tenantID == "" {
		return model.ParticipantItem{}, newError(ErrorCodeValidation, "tenant id is required", nil)
	}
	if realID == "" {
		return model.ParticipantItem{}, newError(ErrorCodeValidation, "participant id is required", nil)
	}
	if params.RealType != model.ParticipantTypeClient && params.RealType != model.ParticipantTypeUser {
		return model.ParticipantItem{}, newError(ErrorCodeValidation, "unknown participant type", nil)
	}

	existing, err := s.repo.GetParticipant(ctx, tenantID, params.RealType, realID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return model.ParticipantItem{}, newError(ErrorCodeInternal, "failed to load participant", err)
	}

	now := s.now().UTC().Format(time.RFC3339)
	participant := model.ParticipantItem{
		PK:            model.ParticipantPK(tenantID, params.RealType, realID),
		ParticipantID: uuid.NewString(),
		UUID:          uuid.NewString(),
		TenantID:      tenantID,
		RealType:      params.RealType,
		RealID:        realID,
		RealUUID:      strings.TrimSpace(params.RealUUID),
		Name:          strings.TrimSpace(params.Name),
		Email:         strings.TrimSpace(params.Email),
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	err = s.repo.CreateParticipant(ctx, participant)
	if err == nil {
		return participant, nil
	}
	if !errors.Is(err, ErrConflict) {
		return model.ParticipantItem{}, newError(ErrorCodeInternal, "failed to create participant", err)
	}

	// Lost the insert race; the winner's row is authoritative.
	winner, err := s.repo.GetParticipant(ctx, tenantID, params.RealType, realID)
	if err != nil {
		return model.ParticipantItem{}, newError(ErrorCodeInternal, "failed to load participant", err)
	}
	return winner, nil
}

// ApplyIdentityUpdate folds an identity broadcast into the directory. It
// returns the updated record and true when a matching participant exists;
// a broadcast for an unknown identity is a no-op, not an error.
func (s *Service) ApplyIdentityUpdate(ctx context.Context, params IdentityUpdateParams) (model.ParticipantItem, bool, error) {
	tenantID := strings.TrimSpace(params.TenantID)
	realID := strings.TrimSpace(params.RealID)

	if tenantID == "" {
		return model.ParticipantItem{}, false, newError(ErrorCodeValidation, "tenant id is required", nil)
	}
	if realID == "" {
		return model.ParticipantItem{}, false, newError(ErrorCodeValidation, "participant id is required", nil)
	}

	pk := model.ParticipantPK(tenantID, params.RealType, realID)
	update := IdentityUpdate{
		Name:      trimmed(params.Name),
		Email:     trimmed(params.Email),
		RealUUID:  trimmed(params.RealUUID),
		UpdatedAt: s.now().UTC().Format(time.RFC3339),
	}

	updated, err := s.repo.UpdateParticipantIdentity(ctx, pk, update)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return model.ParticipantItem{}, false, nil
		}
		return model.ParticipantItem{}, false, newError(ErrorCodeInternal, "failed to update participant", err)
	}
	return updated, true, nil
}

// ParticipantsByIDs loads directory records for a set of internal ids,
// keyed by id. Unknown ids are simply absent from the result.
func (s *Service) ParticipantsByIDs(ctx context.Context, participantIDs []string) (map[string]model.ParticipantItem, error) {
	if len(participantIDs) == 0 {
		return map[string]model.ParticipantItem{}, nil
	}

	participants, err := s.repo.ListParticipantsByIDs(ctx, participantIDs)
	if err != nil {
		return nil, newError(ErrorCodeInternal, "failed to load participants", err)
	}

	byID := make(map[string]model.ParticipantItem, len(participants))
	for _, participant := range participants {
		byID[participant.ParticipantID] = participant
	}
	return byID, nil
}

func trimmed(value *string) *string {
	if value == nil {
		return nil
	}
	t := strings.TrimSpace(*value)
	return &t
}
