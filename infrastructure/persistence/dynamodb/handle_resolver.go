package dynamodb

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"

	"pulse-backend/pkg/errors"
)

// handleItem is the lookup row mapping a handle to its owner.
type handleItem struct {
	PK     string `dynamodbav:"PK"`
	SK     string `dynamodbav:"SK"`
	UserID string `dynamodbav:"UserID"`
	Handle string `dynamodbav:"Handle"`
}

// HandleStore resolves @handles to user IDs via handle lookup items.
type HandleStore struct {
	client    DynamoAPI
	tableName string
	logger    *zap.Logger
}

// NewHandleStore creates a handle store backed by the given table.
func NewHandleStore(client DynamoAPI, tableName string, logger *zap.Logger) *HandleStore {
	return &HandleStore{
		client:    client,
		tableName: tableName,
		logger:    logger,
	}
}

// ResolveHandle returns the user ID owning the handle, or an empty string
// when no such user exists.
func (s *HandleStore) ResolveHandle(ctx context.Context, handle string) (string, error) {
	if handle == "" {
		return "", nil
	}

	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: handlePK(handle)},
			"SK": &types.AttributeValueMemberS{Value: profileSK},
		},
	})
	if err != nil {
		return "", errors.NewStorageError("resolve handle", err)
	}
	if result.Item == nil {
		return "", nil
	}

	var item handleItem
	if err := attributevalue.UnmarshalMap(result.Item, &item); err != nil {
		return "", errors.NewStorageError("unmarshal handle item", err)
	}
	return item.UserID, nil
}
