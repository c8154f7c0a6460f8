package dynamodb

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"

	"pulse-backend/domain/feed"
	"pulse-backend/domain/like"
	"pulse-backend/pkg/errors"
)

const (
	likeEntityType = "LIKE"
	// DynamoDB caps BatchGetItem at 100 keys; each post needs two.
	likeBatchChunkSize = 50
)

// likeItem is the DynamoDB shape of one like. (PK, SK) is the uniqueness
// point; GSI1 carries the user-keyed projection for "posts I liked".
type likeItem struct {
	PK          string `dynamodbav:"PK"`
	SK          string `dynamodbav:"SK"`
	GSI1PK      string `dynamodbav:"GSI1PK"`
	GSI1SK      string `dynamodbav:"GSI1SK"`
	EntityType  string `dynamodbav:"EntityType"`
	UserID      string `dynamodbav:"UserID"`
	PostID      string `dynamodbav:"PostID"`
	PostOwnerID string `dynamodbav:"PostOwnerID"`
	CreatedAt   string `dynamodbav:"CreatedAt"`
}

// postMetaItem is the slice of a post's metadata item the like store
// reads and mutates.
type postMetaItem struct {
	PK         string `dynamodbav:"PK"`
	SK         string `dynamodbav:"SK"`
	OwnerID    string `dynamodbav:"OwnerID"`
	LikesCount int    `dynamodbav:"LikesCount"`
}

// LikeStore maintains like relations and the owning post's like counter.
// The like item's existence is the single source of truth for the
// counter delta; both mutations are guarded by store-level conditions so
// the operations stay idempotent without locks.
type LikeStore struct {
	client    DynamoAPI
	tableName string
	logger    *zap.Logger
}

// NewLikeStore creates a like store backed by the given table.
func NewLikeStore(client DynamoAPI, tableName string, logger *zap.Logger) *LikeStore {
	return &LikeStore{
		client:    client,
		tableName: tableName,
		logger:    logger,
	}
}

// LikePost records userID liking postID. The creation precondition
// absorbs duplicate likes: a second call returns the current count with
// no second increment.
func (s *LikeStore) LikePost(ctx context.Context, userID, postID string) (*like.Status, error) {
	if !feed.ValidIdentifier(userID) {
		return nil, errors.NewValidationError("malformed userId")
	}
	if !feed.ValidIdentifier(postID) {
		return nil, errors.NewValidationError("malformed postId")
	}

	meta, err := s.getPostMeta(ctx, postID)
	if err != nil {
		return nil, err
	}

	item := likeItem{
		PK:          postPK(postID),
		SK:          likeSK(userID),
		GSI1PK:      userPK(userID),
		GSI1SK:      "LIKE#POST#" + postID,
		EntityType:  likeEntityType,
		UserID:      userID,
		PostID:      postID,
		PostOwnerID: meta.OwnerID,
		CreatedAt:   time.Now().UTC().Format(time.RFC3339Nano),
	}
	marshaled, err := attributevalue.MarshalMap(item)
	if err != nil {
		return nil, errors.NewStorageError("likePost", err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.tableName),
		Item:                marshaled,
		ConditionExpression: aws.String("attribute_not_exists(PK)"),
	})
	if err != nil {
		var conditionFailed *types.ConditionalCheckFailedException
		if stderrors.As(err, &conditionFailed) {
			// Already liked; report the current state without a second
			// increment.
			return &like.Status{PostID: postID, IsLiked: true, LikesCount: meta.LikesCount}, nil
		}
		return nil, errors.NewStorageError("likePost", err)
	}

	out, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: postPK(postID)},
			"SK": &types.AttributeValueMemberS{Value: postMetaSK},
		},
		UpdateExpression: aws.String("SET LikesCount = if_not_exists(LikesCount, :zero) + :one"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":zero": &types.AttributeValueMemberN{Value: "0"},
			":one":  &types.AttributeValueMemberN{Value: "1"},
		},
		ReturnValues: types.ReturnValueAllNew,
	})
	if err != nil {
		return nil, errors.NewStorageError("likePost", err)
	}

	return &like.Status{PostID: postID, IsLiked: true, LikesCount: countFromAttributes(out.Attributes)}, nil
}

// UnlikePost removes userID's like of postID. A delete of a like that
// never existed succeeds with no counter mutation; the counter never
// goes negative.
func (s *LikeStore) UnlikePost(ctx context.Context, userID, postID string) (*like.Status, error) {
	if !feed.ValidIdentifier(userID) {
		return nil, errors.NewValidationError("malformed userId")
	}
	if !feed.ValidIdentifier(postID) {
		return nil, errors.NewValidationError("malformed postId")
	}

	out, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: postPK(postID)},
			"SK": &types.AttributeValueMemberS{Value: likeSK(userID)},
		},
		ReturnValues: types.ReturnValueAllOld,
	})
	if err != nil {
		return nil, errors.NewStorageError("unlikePost", err)
	}
	if len(out.Attributes) == 0 {
		// Nothing to remove; idempotent unlike.
		return &like.Status{PostID: postID, IsLiked: false}, nil
	}

	updateOut, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: postPK(postID)},
			"SK": &types.AttributeValueMemberS{Value: postMetaSK},
		},
		UpdateExpression:    aws.String("SET LikesCount = LikesCount - :one"),
		ConditionExpression: aws.String("LikesCount >= :one"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":one": &types.AttributeValueMemberN{Value: "1"},
		},
		ReturnValues: types.ReturnValueAllNew,
	})
	if err != nil {
		var conditionFailed *types.ConditionalCheckFailedException
		if stderrors.As(err, &conditionFailed) {
			// Counter already at zero; leave it there.
			return &like.Status{PostID: postID, IsLiked: false}, nil
		}
		return nil, errors.NewStorageError("unlikePost", err)
	}

	return &like.Status{PostID: postID, IsLiked: false, LikesCount: countFromAttributes(updateOut.Attributes)}, nil
}

// GetPostLikeStatus reports whether userID has liked postID and the
// post's current like count.
func (s *LikeStore) GetPostLikeStatus(ctx context.Context, userID, postID string) (*like.Status, error) {
	out, err := s.client.BatchGetItem(ctx, &dynamodb.BatchGetItemInput{
		RequestItems: map[string]types.KeysAndAttributes{
			s.tableName: {
				Keys: []map[string]types.AttributeValue{
					{
						"PK": &types.AttributeValueMemberS{Value: postPK(postID)},
						"SK": &types.AttributeValueMemberS{Value: likeSK(userID)},
					},
					{
						"PK": &types.AttributeValueMemberS{Value: postPK(postID)},
						"SK": &types.AttributeValueMemberS{Value: postMetaSK},
					},
				},
				ProjectionExpression: aws.String("PK, SK, LikesCount"),
			},
		},
	})
	if err != nil {
		return nil, errors.NewStorageError("getPostLikeStatus", err)
	}

	status := &like.Status{PostID: postID}
	for _, raw := range out.Responses[s.tableName] {
		sk, ok := raw["SK"].(*types.AttributeValueMemberS)
		if !ok {
			continue
		}
		if sk.Value == postMetaSK {
			status.LikesCount = countFromAttributes(raw)
		} else {
			status.IsLiked = true
		}
	}
	return status, nil
}

// GetLikeStatusesByPostIDs batch-checks which of the given posts userID
// has liked and each post's count. Lookups are chunked to the
// per-request key limit; keys left unprocessed by the store are logged
// and reported as not liked rather than retried inline.
func (s *LikeStore) GetLikeStatusesByPostIDs(ctx context.Context, userID string, postIDs []string) (map[string]*like.Status, error) {
	statuses := make(map[string]*like.Status, len(postIDs))
	for _, postID := range postIDs {
		statuses[postID] = &like.Status{PostID: postID}
	}

	for start := 0; start < len(postIDs); start += likeBatchChunkSize {
		end := start + likeBatchChunkSize
		if end > len(postIDs) {
			end = len(postIDs)
		}

		keys := make([]map[string]types.AttributeValue, 0, 2*(end-start))
		for _, postID := range postIDs[start:end] {
			keys = append(keys,
				map[string]types.AttributeValue{
					"PK": &types.AttributeValueMemberS{Value: postPK(postID)},
					"SK": &types.AttributeValueMemberS{Value: likeSK(userID)},
				},
				map[string]types.AttributeValue{
					"PK": &types.AttributeValueMemberS{Value: postPK(postID)},
					"SK": &types.AttributeValueMemberS{Value: postMetaSK},
				},
			)
		}

		out, err := s.client.BatchGetItem(ctx, &dynamodb.BatchGetItemInput{
			RequestItems: map[string]types.KeysAndAttributes{
				s.tableName: {
					Keys:                 keys,
					ProjectionExpression: aws.String("PK, SK, LikesCount"),
				},
			},
		})
		if err != nil {
			return nil, errors.NewStorageError("getLikeStatusesByPostIds", err)
		}

		for _, raw := range out.Responses[s.tableName] {
			pk, okPK := raw["PK"].(*types.AttributeValueMemberS)
			sk, okSK := raw["SK"].(*types.AttributeValueMemberS)
			if !okPK || !okSK {
				continue
			}
			status, ok := statuses[pk.Value[len(postKeyPrefix):]]
			if !ok {
				continue
			}
			if sk.Value == postMetaSK {
				status.LikesCount = countFromAttributes(raw)
			} else {
				status.IsLiked = true
			}
		}
		if unprocessed, ok := out.UnprocessedKeys[s.tableName]; ok && len(unprocessed.Keys) > 0 {
			s.logger.Warn("Like status batch left keys unprocessed",
				zap.String("userID", userID),
				zap.Int("unprocessed", len(unprocessed.Keys)),
			)
		}
	}
	return statuses, nil
}

// getPostMeta loads the post metadata item, failing with NotFound when
// the post does not exist.
func (s *LikeStore) getPostMeta(ctx context.Context, postID string) (*postMetaItem, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: postPK(postID)},
			"SK": &types.AttributeValueMemberS{Value: postMetaSK},
		},
		ProjectionExpression: aws.String("PK, SK, OwnerID, LikesCount"),
	})
	if err != nil {
		return nil, errors.NewStorageError("getPostMeta", err)
	}
	if len(out.Item) == 0 {
		return nil, errors.NewNotFoundError("post")
	}

	var meta postMetaItem
	if err := attributevalue.UnmarshalMap(out.Item, &meta); err != nil {
		return nil, errors.NewStorageError("getPostMeta", err)
	}
	return &meta, nil
}

// countFromAttributes extracts LikesCount from raw attributes, defaulting
// to zero when absent.
func countFromAttributes(attrs map[string]types.AttributeValue) int {
	raw, ok := attrs["LikesCount"]
	if !ok {
		return 0
	}
	var count int
	if err := attributevalue.Unmarshal(raw, &count); err != nil {
		return 0
	}
	return count
}
