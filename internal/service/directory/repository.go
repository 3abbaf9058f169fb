package directory

import (
	"context"
	"errors"

	"chat-service-backend/internal/database"
	"chat-service-backend/internal/model"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

var (
	ErrNotFound = errors.New("directory repository: not found")

	// ErrConflict means another writer claimed the identity key first.
	// Resolve treats it as "created elsewhere" and re-reads.
	ErrConflict = errors.New("directory repository: already exists")
)

type Repository interface {
	GetParticipant(ctx context.Context, tenantID string, realType model.ParticipantType, realID string) (model.ParticipantItem, error)
	CreateParticipant(ctx context.Context, participant model.ParticipantItem) error
	UpdateParticipantIdentity(ctx context.Context, pk string, update IdentityUpdate) (model.ParticipantItem, error)
	ListParticipantsByIDs(ctx context.Context, participantIDs []string) ([]model.ParticipantItem, error)
}

// IdentityUpdate carries the mutable identity attributes. Nil fields are
// left untouched.
type IdentityUpdate struct {
	Name      *string
	Email     *string
	RealUUID  *string
	UpdatedAt string
}

type DynamoRepository struct {
	db *database.Database
}

func NewDynamoRepository(db *database.Database) Repository {
	return &DynamoRepository{db: db}
}

func (r *DynamoRepository) GetParticipant(ctx context.Context, tenantID string, realType model.ParticipantType, realID string) (model.ParticipantItem, error) {
	var participant model.ParticipantItem
	err := r.db.Client.GetItem(
		ctx,
		model.ParticipantsTable,
		map[string]types.AttributeValue{
			"pk": &types.AttributeValueMemberS{Value: model.ParticipantPK(tenantID, realType, realID)},
		},
		&participant,
	)
	if err != nil {
		if errors.Is(err, database.ErrItemNotFound) {
			return model.ParticipantItem{}, ErrNotFound
		}
		return model.ParticipantItem{}, err
	}
	if participant.Deleted() {
		return model.ParticipantItem{}, ErrNotFound
	}
	return participant, nil
}

func (r *DynamoRepository) CreateParticipant(ctx context.Context, participant model.ParticipantItem) error {
	// A soft-deleted row does not hold the identity slot; the fresh
	// record overwrites it.
	err := r.db.Client.PutItemConditional(
		ctx,
		model.ParticipantsTable,
		participant,
		"attribute_not_exists(pk) OR attribute_exists(deletedAt)",
	)
	if err != nil {
		if errors.Is(err, database.ErrConditionFailed) {
			return ErrConflict
		}
		return err
	}
	return nil
}

func (r *DynamoRepository) UpdateParticipantIdentity(ctx context.Context, pk string, update IdentityUpdate) (model.ParticipantItem, error) {
	updateExpr := "SET updatedAt = :updatedAt"
	values := map[string]types.AttributeValue{
		":updatedAt": &types.AttributeValueMemberS{Value: update.UpdatedAt},
	}
	names := map[string]string{}

	if update.Name != nil {
		updateExpr += ", #name = :name"
		values[":name"] = &types.AttributeValueMemberS{Value: *update.Name}
		names["#name"] = "name"
	}
	if update.Email != nil {
		updateExpr += ", email = :email"
		values[":email"] = &types.AttributeValueMemberS{Value: *update.Email}
	}
	if update.RealUUID != nil {
		updateExpr += ", realUuid = :realUuid"
		values[":realUuid"] = &types.AttributeValueMemberS{Value: *update.RealUUID}
	}
	if len(names) == 0 {
		names = nil
	}

	var updated model.ParticipantItem
	err := r.db.Client.UpdateItemConditional(
		ctx,
		model.ParticipantsTable,
		map[string]types.AttributeValue{
			"pk": &types.AttributeValueMemberS{Value: pk},
		},
		updateExpr,
		"attribute_exists(pk) AND attribute_not_exists(deletedAt)",
		values,
		names,
		&updated,
	)
	if err != nil {
		if errors.Is(err, database.ErrConditionFailed) {
			return model.ParticipantItem{}, ErrNotFound
		}
		return model.ParticipantItem{}, err
	}
	return updated, nil
}

func (r *DynamoRepository) ListParticipantsByIDs(ctx context.Context, participantIDs []string) ([]model.ParticipantItem, error) {
	index := model.ParticipantIDIndex
	items, err := r.db.Client.BatchGetByKeys(
		ctx,
		model.ParticipantsTable,
		participantIDs,
		"participantId",
		100,
		&index,
	)
	if err != nil {
		return nil, err
	}

	participants := make([]model.ParticipantItem, 0, len(items))
	for _, item := range items {
		var participant model.ParticipantItem
		if err := attributevalue.UnmarshalMap(item, &participant); err != nil {
			return nil, err
		}
		if participant.Deleted() {
			continue
		}
		participants = append(participants, participant)
	}
	return participants, nil
}
