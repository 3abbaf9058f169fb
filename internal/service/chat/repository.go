package chat

import (
	"context"
	"errors"

	"chat-service-backend/internal/database"
	"chat-service-backend/internal/model"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

var (
	ErrNotFound = errors.New("chat repository: not found")

	// ErrConflict reports a lost conditional write: the chat key is taken,
	// the membership already exists, or the status guard did not hold.
	ErrConflict = errors.New("chat repository: conflict")
)

type Repository interface {
	GetChat(ctx context.Context, tenantID, chatID string) (model.ChatItem, error)
	CreateChatWithMembership(ctx context.Context, chat model.ChatItem, membership model.MembershipItem) error
	ListChatsByTenant(ctx context.Context, tenantID string) ([]model.ChatItem, error)
	BatchGetChats(ctx context.Context, tenantID string, chatIDs []string) ([]model.ChatItem, error)
	CreateMembership(ctx context.Context, membership model.MembershipItem) error
	ListMemberships(ctx context.Context, tenantID, chatID string) ([]model.MembershipItem, error)
	ListMembershipsByParticipant(ctx context.Context, participantID string) ([]model.MembershipItem, error)
	// ActivateChat moves an open chat to active. ErrConflict means the chat
	// was not open anymore; exactly one concurrent caller wins.
	ActivateChat(ctx context.Context, tenantID, chatID, updatedAt string) (model.ChatItem, error)
	// CloseChat moves a chat to closed unless it already is.
	CloseChat(ctx context.Context, tenantID, chatID, updatedAt string) (model.ChatItem, error)
}

type DynamoRepository struct {
	db *database.Database
}

func NewDynamoRepository(db *database.Database) Repository {
	return &DynamoRepository{db: db}
}

func (r *DynamoRepository) GetChat(ctx context.Context, tenantID, chatID string) (model.ChatItem, error) {
	var chat model.ChatItem
	err := r.db.Client.GetItem(
		ctx,
		model.ChatsTable,
		map[string]types.AttributeValue{
			"pk": &types.AttributeValueMemberS{Value: model.ChatPK(tenantID, chatID)},
		},
		&chat,
	)
	if err != nil {
		if errors.Is(err, database.ErrItemNotFound) {
			return model.ChatItem{}, ErrNotFound
		}
		return model.ChatItem{}, err
	}
	if chat.Deleted() {
		return model.ChatItem{}, ErrNotFound
	}
	return chat, nil
}

func (r *DynamoRepository) CreateChatWithMembership(ctx context.Context, chat model.ChatItem, membership model.MembershipItem) error {
	err := r.db.Client.TransactPutItems(ctx,
		database.TransactPut{TableName: model.ChatsTable, Item: chat, KeyAttr: "pk"},
		database.TransactPut{TableName: model.MembershipsTable, Item: membership, KeyAttr: "pk"},
	)
	if err != nil {
		if errors.Is(err, database.ErrConditionFailed) {
			return ErrConflict
		}
		return err
	}
	return nil
}

func (r *DynamoRepository) ListChatsByTenant(ctx context.Context, tenantID string) ([]model.ChatItem, error) {
	items, err := r.db.Client.QueryItems(
		ctx,
		model.ChatsTable,
		aws.String(model.AccountIDIndex),
		"accountId = :accountId",
		map[string]types.AttributeValue{
			":accountId": &types.AttributeValueMemberS{Value: tenantID},
		},
		nil,
		nil,
	)
	if err != nil {
		return nil, err
	}
	return unmarshalChats(items)
}

func (r *DynamoRepository) BatchGetChats(ctx context.Context, tenantID string, chatIDs []string) ([]model.ChatItem, error) {
	keys := make([]string, 0, len(chatIDs))
	for _, chatID := range chatIDs {
		keys = append(keys, model.ChatPK(tenantID, chatID))
	}
	items, err := r.db.Client.BatchGetByKeys(ctx, model.ChatsTable, keys, "pk", 100, nil)
	if err != nil {
		return nil, err
	}
	return unmarshalChats(items)
}

func (r *DynamoRepository) CreateMembership(ctx context.Context, membership model.MembershipItem) error {
	err := r.db.Client.PutItemIfAbsent(ctx, model.MembershipsTable, membership, "pk")
	if err != nil {
		if errors.Is(err, database.ErrConditionFailed) {
			return ErrConflict
		}
		return err
	}
	return nil
}

func (r *DynamoRepository) ListMemberships(ctx context.Context, tenantID, chatID string) ([]model.MembershipItem, error) {
	items, err := r.db.Client.QueryItems(
		ctx,
		model.MembershipsTable,
		nil,
		"pk = :pk",
		map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: model.ChatPK(tenantID, chatID)},
		},
		nil,
		nil,
	)
	if err != nil {
		return nil, err
	}
	return unmarshalMemberships(items)
}

func (r *DynamoRepository) ListMembershipsByParticipant(ctx context.Context, participantID string) ([]model.MembershipItem, error) {
	items, err := r.db.Client.QueryItems(
		ctx,
		model.MembershipsTable,
		aws.String(model.MembershipParticipantIndex),
		"participantId = :participantId",
		map[string]types.AttributeValue{
			":participantId": &types.AttributeValueMemberS{Value: participantID},
		},
		nil,
		nil,
	)
	if err != nil {
		return nil, err
	}
	return unmarshalMemberships(items)
}

func (r *DynamoRepository) ActivateChat(ctx context.Context, tenantID, chatID, updatedAt string) (model.ChatItem, error) {
	return r.transitionStatus(ctx, tenantID, chatID, updatedAt,
		model.ChatStatusActive, "#status = :open",
		map[string]types.AttributeValue{
			":open": &types.AttributeValueMemberS{Value: string(model.ChatStatusOpen)},
		},
	)
}

func (r *DynamoRepository) CloseChat(ctx context.Context, tenantID, chatID, updatedAt string) (model.ChatItem, error) {
	return r.transitionStatus(ctx, tenantID, chatID, updatedAt,
		model.ChatStatusClosed, "attribute_exists(pk) AND #status <> :closed",
		map[string]types.AttributeValue{
			":closed": &types.AttributeValueMemberS{Value: string(model.ChatStatusClosed)},
		},
	)
}

func (r *DynamoRepository) transitionStatus(
	ctx context.Context,
	tenantID, chatID, updatedAt string,
	to model.ChatStatus,
	condExpr string,
	condValues map[string]types.AttributeValue,
) (model.ChatItem, error) {
	values := map[string]types.AttributeValue{
		":status":    &types.AttributeValueMemberS{Value: string(to)},
		":updatedAt": &types.AttributeValueMemberS{Value: updatedAt},
	}
	for name, value := range condValues {
		values[name] = value
	}

	var updated model.ChatItem
	err := r.db.Client.UpdateItemConditional(
		ctx,
		model.ChatsTable,
		map[string]types.AttributeValue{
			"pk": &types.AttributeValueMemberS{Value: model.ChatPK(tenantID, chatID)},
		},
		"SET #status = :status, updatedAt = :updatedAt",
		condExpr,
		values,
		map[string]string{"#status": "status"},
		&updated,
	)
	if err != nil {
		if errors.Is(err, database.ErrConditionFailed) {
			return model.ChatItem{}, ErrConflict
		}
		return model.ChatItem{}, err
	}
	return updated, nil
}

func unmarshalChats(items []map[string]types.AttributeValue) ([]model.ChatItem, error) {
	chats := make([]model.ChatItem, 0, len(items))
	for _, item := range items {
		var chat model.ChatItem
		if err := attributevalue.UnmarshalMap(item, &chat); err != nil {
			return nil, err
		}
		if chat.Deleted() {
			continue
		}
		chats = append(chats, chat)
	}
	return chats, nil
}

func unmarshalMemberships(items []map[string]types.AttributeValue) ([]model.MembershipItem, error) {
	memberships := make([]model.MembershipItem, 0, len(items))
	for _, item := range items {
		var membership model.MembershipItem
		if err := attributevalue.UnmarshalMap(item, &membership); err != nil {
			return nil, err
		}
		if membership.Deleted() {
			continue
		}
		memberships = append(memberships, membership)
	}
	return memberships, nil
}
