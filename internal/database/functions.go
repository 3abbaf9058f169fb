package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

var (
	ErrItemNotFound = errors.New("item not found")

	// ErrConditionFailed is returned when a conditional write loses to an
	// existing row. Find-or-create paths treat it as "already present" and
	// re-read instead of inserting twice.
	ErrConditionFailed = errors.New("conditional check failed")
)

func attrString(value string) types.AttributeValue {
	return &types.AttributeValueMemberS{Value: value}
}

func (c *DynamoDBClient) PutItem(
	ctx context.Context,
	tableName string,
	item interface{},
) error {
	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("marshal item: %w", err)
	}

	input := &dynamodb.PutItemInput{
		TableName: aws.String(tableName),
		Item:      av,
	}

	_, err = c.svc.PutItem(ctx, input)
	if err != nil {
		return fmt.Errorf("put item %s: %w", tableName, err)
	}
	return nil
}

// PutItemIfAbsent writes the item only when no row with the same key
// exists. Returns ErrConditionFailed when the slot is already taken; the
// caller re-reads the winner. This is the insert-attempt-then-read
// serialization point for participant and membership uniqueness.
func (c *DynamoDBClient) PutItemIfAbsent(
	ctx context.Context,
	tableName string,
	item interface{},
	keyAttr string,
) error {
	return c.PutItemConditional(ctx, tableName, item, fmt.Sprintf("attribute_not_exists(%s)", keyAttr))
}

// PutItemConditional writes the item guarded by an arbitrary condition
// expression, mapping a failed condition to ErrConditionFailed.
func (c *DynamoDBClient) PutItemConditional(
	ctx context.Context,
	tableName string,
	item interface{},
	condition string,
) error {
	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("marshal item: %w", err)
	}

	input := &dynamodb.PutItemInput{
		TableName:           aws.String(tableName),
		Item:                av,
		ConditionExpression: aws.String(condition),
	}

	_, err = c.svc.PutItem(ctx, input)
	if err != nil {
		if isConditionalCheckFailed(err) {
			return fmt.Errorf("put item %s: %w", tableName, ErrConditionFailed)
		}
		return fmt.Errorf("put item %s: %w", tableName, err)
	}
	return nil
}

func (c *DynamoDBClient) GetItem(
	ctx context.Context,
	tableName string,
	key map[string]types.AttributeValue,
	out interface{},
) error {
	input := &dynamodb.GetItemInput{
		TableName: aws.String(tableName),
		Key:       key,
	}

	res, err := c.svc.GetItem(ctx, input)
	if err != nil {
		return fmt.Errorf("get item %s: %w", tableName, err)
	}
	if res.Item == nil {
		return fmt.Errorf("get item %s: %w", tableName, ErrItemNotFound)
	}

	if err := attributevalue.UnmarshalMap(res.Item, out); err != nil {
		return fmt.Errorf("unmarshal item: %w", err)
	}
	return nil
}

// UpdateItemConditional applies an update guarded by a condition
// expression and unmarshals the post-update attributes into out. A losing
// condition surfaces as ErrConditionFailed so callers can distinguish "row
// changed under us" from a storage failure.
func (c *DynamoDBClient) UpdateItemConditional(
	ctx context.Context,
	tableName string,
	key map[string]types.AttributeValue,
	updateExpr string,
	condExpr string,
	exprAttrValues map[string]types.AttributeValue,
	exprAttrNames map[string]string,
	out interface{},
) error {
	input := &dynamodb.UpdateItemInput{
		TableName:                 aws.String(tableName),
		Key:                       key,
		UpdateExpression:          aws.String(updateExpr),
		ExpressionAttributeValues: exprAttrValues,
		ReturnValues:              types.ReturnValueAllNew,
	}
	if condExpr != "" {
		input.ConditionExpression = aws.String(condExpr)
	}
	if exprAttrNames != nil {
		input.ExpressionAttributeNames = exprAttrNames
	}

	res, err := c.svc.UpdateItem(ctx, input)
	if err != nil {
		if isConditionalCheckFailed(err) {
			return fmt.Errorf("update item %s: %w", tableName, ErrConditionFailed)
		}
		return fmt.Errorf("update item %s: %w", tableName, err)
	}

	if out != nil {
		if err := attributevalue.UnmarshalMap(res.Attributes, out); err != nil {
			return fmt.Errorf("unmarshal updated item: %w", err)
		}
	}
	return nil
}

// TransactPut is one put inside a TransactPutItems call. When KeyAttr is
// set the put is conditional on that attribute not existing yet.
type TransactPut struct {
	TableName string
	Item      interface{}
	KeyAttr   string
}

// TransactPutItems writes every item or none of them. A failed transaction
// leaves the store untouched; callers must not publish anything for it.
func (c *DynamoDBClient) TransactPutItems(
	ctx context.Context,
	puts ...TransactPut,
) error {
	items := make([]types.TransactWriteItem, 0, len(puts))
	for _, p := range puts {
		av, err := attributevalue.MarshalMap(p.Item)
		if err != nil {
			return fmt.Errorf("marshal transact item: %w", err)
		}
		put := &types.Put{
			TableName: aws.String(p.TableName),
			Item:      av,
		}
		if p.KeyAttr != "" {
			put.ConditionExpression = aws.String(fmt.Sprintf("attribute_not_exists(%s)", p.KeyAttr))
		}
		items = append(items, types.TransactWriteItem{Put: put})
	}

	_, err := c.svc.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: items,
	})
	if err != nil {
		if isTransactionCanceled(err) {
			return fmt.Errorf("transact write: %w", ErrConditionFailed)
		}
		return fmt.Errorf("transact write: %w", err)
	}
	return nil
}

func (c *DynamoDBClient) QueryItems(
	ctx context.Context,
	tableName string,
	indexName *string,
	keyCondExpr string,
	exprAttrValues map[string]types.AttributeValue,
	exprAttrNames map[string]string,
	scanIndexForward *bool,
) ([]map[string]types.AttributeValue, error) {
	return c.queryItems(ctx, tableName, indexName, keyCondExpr, exprAttrValues, exprAttrNames, scanIndexForward, nil)
}

// QueryPage is QueryItems with a row limit, used by cursor pagination to
// fetch pageSize+1 rows in one round trip.
func (c *DynamoDBClient) QueryPage(
	ctx context.Context,
	tableName string,
	keyCondExpr string,
	exprAttrValues map[string]types.AttributeValue,
	descending bool,
	limit int32,
) ([]map[string]types.AttributeValue, error) {
	forward := !descending
	return c.queryItems(ctx, tableName, nil, keyCondExpr, exprAttrValues, nil, &forward, &limit)
}

func (c *DynamoDBClient) queryItems(
	ctx context.Context,
	tableName string,
	indexName *string,
	keyCondExpr string,
	exprAttrValues map[string]types.AttributeValue,
	exprAttrNames map[string]string,
	scanIndexForward *bool,
	limit *int32,
) ([]map[string]types.AttributeValue, error) {
	input := &dynamodb.QueryInput{
		TableName:                 aws.String(tableName),
		KeyConditionExpression:    aws.String(keyCondExpr),
		ExpressionAttributeValues: exprAttrValues,
	}
	if indexName != nil {
		input.IndexName = indexName
	}
	if exprAttrNames != nil {
		input.ExpressionAttributeNames = exprAttrNames
	}
	if scanIndexForward != nil {
		input.ScanIndexForward = aws.Bool(*scanIndexForward)
	}
	if limit != nil {
		input.Limit = aws.Int32(*limit)
	}

	out, err := c.svc.Query(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("query %s[%s]: %w", tableName, aws.ToString(indexName), err)
	}

	return out.Items, nil
}

// BatchGetByKeys loads rows for a set of key values, chunked to the
// DynamoDB batch limit. With an index name it falls back to per-key GSI
// queries, since BatchGetItem cannot target an index.
func (c *DynamoDBClient) BatchGetByKeys(
	ctx context.Context,
	tableName string,
	keyValues []string,
	keyField string,
	batchSize int,
	indexName *string,
) ([]map[string]types.AttributeValue, error) {
	if len(keyValues) == 0 {
		return []map[string]types.AttributeValue{}, nil
	}

	if batchSize <= 0 || batchSize > 100 {
		batchSize = 100
	}

	var allItems []map[string]types.AttributeValue

	for i := 0; i < len(keyValues); i += batchSize {
		end := i + batchSize
		if end > len(keyValues) {
			end = len(keyValues)
		}

		batchValues := keyValues[i:end]

		var items []map[string]types.AttributeValue
		var err error

		if indexName != nil {
			items, err = c.batchQueryGSIChunk(ctx, tableName, *indexName, batchValues, keyField)
		} else {
			items, err = c.batchGetChunk(ctx, tableName, batchValues, keyField)
		}

		if err != nil {
			return nil, err
		}

		allItems = append(allItems, items...)
	}

	return allItems, nil
}

func (c *DynamoDBClient) batchQueryGSIChunk(
	ctx context.Context,
	tableName string,
	indexName string,
	keyValues []string,
	keyField string,
) ([]map[string]types.AttributeValue, error) {
	var allItems []map[string]types.AttributeValue

	for _, keyValue := range keyValues {
		keyCondExpr := fmt.Sprintf("%s = :keyval", keyField)
		exprAttrValues := map[string]types.AttributeValue{
			":keyval": attrString(keyValue),
		}

		items, err := c.QueryItems(ctx, tableName, &indexName, keyCondExpr, exprAttrValues, nil, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to query GSI %s for key %s: %w", indexName, keyValue, err)
		}

		allItems = append(allItems, items...)
	}

	return allItems, nil
}

func (c *DynamoDBClient) batchGetChunk(
	ctx context.Context,
	tableName string,
	keyValues []string,
	keyField string,
) ([]map[string]types.AttributeValue, error) {
	keys := make([]map[string]types.AttributeValue, len(keyValues))
	for i, value := range keyValues {
		keys[i] = map[string]types.AttributeValue{
			keyField: attrString(value),
		}
	}

	input := &dynamodb.BatchGetItemInput{
		RequestItems: map[string]types.KeysAndAttributes{
			tableName: {Keys: keys},
		},
	}

	res, err := c.svc.BatchGetItem(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("batch get %s: %w", tableName, err)
	}
	return res.Responses[tableName], nil
}

func isConditionalCheckFailed(err error) bool {
	var ccf *types.ConditionalCheckFailedException
	return errors.As(err, &ccf)
}

func isTransactionCanceled(err error) bool {
	var tc *types.TransactionCanceledException
	if !errors.As(err, &tc) {
		return false
	}
	for _, reason := range tc.CancellationReasons {
		if aws.ToString(reason.Code) == "ConditionalCheckFailed" {
			return true
		}
	}
	return false
}
