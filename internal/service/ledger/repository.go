package ledger

import (
	"context"

	"chat-service-backend/internal/database"
	"chat-service-backend/internal/model"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

type Repository interface {
	AppendMessage(ctx context.Context, message model.MessageItem) error
	PageMessages(ctx context.Context, tenantID, chatID, beforeSK string, limit int32) ([]model.MessageItem, error)
}

type DynamoRepository struct {
	db *database.Database
}

func NewDynamoRepository(db *database.Database) Repository {
	return &DynamoRepository{db: db}
}

func (r *DynamoRepository) AppendMessage(ctx context.Context, message model.MessageItem) error {
	return r.db.Client.PutItem(ctx, model.MessagesTable, message)
}

// PageMessages returns up to limit entries strictly older than beforeSK,
// newest first. Soft-deleted entries are filtered out after the query so
// the sort-key walk stays a plain key condition.
func (r *DynamoRepository) PageMessages(ctx context.Context, tenantID, chatID, beforeSK string, limit int32) ([]model.MessageItem, error) {
	items, err := r.db.Client.QueryPage(
		ctx,
		model.MessagesTable,
		"pk = :pk AND sk < :before",
		map[string]types.AttributeValue{
			":pk":     &types.AttributeValueMemberS{Value: model.ChatPK(tenantID, chatID)},
			":before": &types.AttributeValueMemberS{Value: beforeSK},
		},
		true,
		limit,
	)
	if err != nil {
		return nil, err
	}

	messages := make([]model.MessageItem, 0, len(items))
	for _, item := range items {
		var message model.MessageItem
		if err := attributevalue.UnmarshalMap(item, &message); err != nil {
			return nil, err
		}
		if message.DeletedAt != "" {
			continue
		}
		messages = append(messages, message)
	}
	return messages, nil
}
