package dynamodb

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"

	"pulse-backend/domain/feed"
	"pulse-backend/pkg/errors"
)

const (
	feedEntityType       = "FEED_ITEM"
	feedSchemaVersion    = 1
	feedDefaultPageSize  = 20
	feedMaxPageSize      = 100
	markReadScanPageSize = 100
	deleteScanPageSize   = 500
)

// feedItem is the DynamoDB shape of a materialized feed entry. IsRead is
// absent until the item is marked read so the unread filter can rely on
// attribute existence.
type feedItem struct {
	PK                string `dynamodbav:"PK"`
	SK                string `dynamodbav:"SK"`
	EntityType        string `dynamodbav:"EntityType"`
	PostID            string `dynamodbav:"PostID"`
	AuthorID          string `dynamodbav:"AuthorID"`
	AuthorHandle      string `dynamodbav:"AuthorHandle"`
	AuthorDisplayName string `dynamodbav:"AuthorDisplayName,omitempty"`
	AuthorAvatarURL   string `dynamodbav:"AuthorAvatarURL,omitempty"`
	Caption           string `dynamodbav:"Caption,omitempty"`
	ImageURL          string `dynamodbav:"ImageURL,omitempty"`
	ThumbnailURL      string `dynamodbav:"ThumbnailURL,omitempty"`
	LikesCount        int    `dynamodbav:"LikesCount"`
	CommentsCount     int    `dynamodbav:"CommentsCount"`
	IsLiked           bool   `dynamodbav:"IsLiked"`
	CreatedAt         string `dynamodbav:"CreatedAt"`
	FeedItemCreatedAt string `dynamodbav:"FeedItemCreatedAt"`
	IsRead            bool   `dynamodbav:"IsRead,omitempty"`
	ReadAt            string `dynamodbav:"ReadAt,omitempty"`
	TTL               int64  `dynamodbav:"TTL"`
	SchemaVersion     int    `dynamodbav:"SchemaVersion"`
}

func (i *feedItem) toDomain() feed.Item {
	createdAt, _ := time.Parse(time.RFC3339Nano, i.CreatedAt)
	fanoutAt, _ := time.Parse(time.RFC3339Nano, i.FeedItemCreatedAt)
	item := feed.Item{
		PostID:            i.PostID,
		AuthorID:          i.AuthorID,
		AuthorHandle:      i.AuthorHandle,
		AuthorDisplayName: i.AuthorDisplayName,
		AuthorAvatarURL:   i.AuthorAvatarURL,
		Caption:           i.Caption,
		ImageURL:          i.ImageURL,
		ThumbnailURL:      i.ThumbnailURL,
		LikesCount:        i.LikesCount,
		CommentsCount:     i.CommentsCount,
		IsLiked:           i.IsLiked,
		CreatedAt:         createdAt,
		FeedItemCreatedAt: fanoutAt,
		IsRead:            i.IsRead,
	}
	if len(i.PK) > len(userKeyPrefix) {
		item.UserID = i.PK[len(userKeyPrefix):]
	}
	if i.ReadAt != "" {
		if readAt, err := time.Parse(time.RFC3339Nano, i.ReadAt); err == nil {
			item.ReadAt = &readAt
		}
	}
	return item
}

// FeedStore persists materialized feed entries.
type FeedStore struct {
	client    DynamoAPI
	tableName string
	batch     *BatchWriter
	logger    *zap.Logger
}

// NewFeedStore creates a feed store backed by the given table.
func NewFeedStore(client DynamoAPI, tableName string, batch *BatchWriter, logger *zap.Logger) *FeedStore {
	return &FeedStore{
		client:    client,
		tableName: tableName,
		batch:     batch,
		logger:    logger,
	}
}

func newFeedItem(params feed.WriteParams, now time.Time) feedItem {
	return feedItem{
		PK:                userPK(params.UserID),
		SK:                feedSK(params.CreatedAt, params.PostID),
		EntityType:        feedEntityType,
		PostID:            params.PostID,
		AuthorID:          params.AuthorID,
		AuthorHandle:      params.AuthorHandle,
		AuthorDisplayName: params.AuthorDisplayName,
		AuthorAvatarURL:   params.AuthorAvatarURL,
		Caption:           params.Caption,
		ImageURL:          params.ImageURL,
		ThumbnailURL:      params.ThumbnailURL,
		LikesCount:        params.LikesCount,
		CommentsCount:     params.CommentsCount,
		IsLiked:           params.IsLiked,
		CreatedAt:         params.CreatedAt.UTC().Format(time.RFC3339Nano),
		FeedItemCreatedAt: now.UTC().Format(time.RFC3339Nano),
		TTL:               now.Add(feed.TTLDuration).Unix(),
		SchemaVersion:     feedSchemaVersion,
	}
}

// WriteFeedItem materializes one feed entry. The put is conditioned on
// the existing item (if any) not having been read: an item the user has
// already consumed is never resurrected by fanout re-population, which
// keeps the read-once invariant across cache loss. A rejected write is
// reported as success.
func (s *FeedStore) WriteFeedItem(ctx context.Context, params feed.WriteParams) error {
	if err := params.Validate(); err != nil {
		return err
	}

	item := newFeedItem(params, time.Now())
	marshaled, err := attributevalue.MarshalMap(item)
	if err != nil {
		return errors.NewStorageError("writeFeedItem", err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.tableName),
		Item:                marshaled,
		ConditionExpression: aws.String("attribute_not_exists(PK) OR attribute_not_exists(IsRead)"),
	})
	if err != nil {
		var conditionFailed *types.ConditionalCheckFailedException
		if stderrors.As(err, &conditionFailed) {
			s.logger.Debug("Skipped re-write of consumed feed item",
				zap.String("userID", params.UserID),
				zap.String("postID", params.PostID),
			)
			return nil
		}
		return errors.NewStorageError("writeFeedItem", err)
	}
	return nil
}

// WriteFeedItemsBatch validates all items up front (failing fast on the
// first invalid one, reporting its index) and writes them in chunks via
// the batch writer. Partial failure lands in the result, not an error.
func (s *FeedStore) WriteFeedItemsBatch(ctx context.Context, items []feed.WriteParams) (*feed.BatchResult, error) {
	for i, params := range items {
		if err := params.Validate(); err != nil {
			return nil, errors.Wrapf(err, "item %d", i)
		}
	}

	now := time.Now()
	marshaled := make([]map[string]types.AttributeValue, 0, len(items))
	for i, params := range items {
		av, err := attributevalue.MarshalMap(newFeedItem(params, now))
		if err != nil {
			return nil, errors.NewStorageError(fmt.Sprintf("writeFeedItemsBatch item %d", i), err)
		}
		marshaled = append(marshaled, av)
	}

	written, failed := s.batch.PutItems(ctx, marshaled)

	result := &feed.BatchResult{SuccessCount: written}
	for _, item := range failed {
		var failedItem feedItem
		if err := attributevalue.UnmarshalMap(item, &failedItem); err != nil {
			continue
		}
		result.FailedItems = append(result.FailedItems, feed.FailedItem{
			UserID: failedItem.PK[len(userKeyPrefix):],
			PostID: failedItem.PostID,
		})
	}
	return result, nil
}

// GetMaterializedFeedItems returns one page of the user's feed, newest
// first, excluding anything already read. The cursor round-trips the
// store's resume position as an opaque token.
func (s *FeedStore) GetMaterializedFeedItems(ctx context.Context, query feed.Query) (*feed.Page, error) {
	if !feed.ValidIdentifier(query.UserID) {
		return nil, errors.NewValidationError("malformed userId")
	}
	limit := query.Limit
	if limit == 0 {
		limit = feedDefaultPageSize
	}
	if limit < 0 || limit > feedMaxPageSize {
		return nil, errors.NewValidationError("limit must be between 1 and 100")
	}

	startKey, err := decodeCursor(query.Cursor)
	if err != nil {
		return nil, err
	}

	// Items marked read are filtered server-side; IsRead only ever
	// exists once set true.
	expr, err := expression.NewBuilder().
		WithKeyCondition(expression.Key("PK").Equal(expression.Value(userPK(query.UserID))).
			And(expression.Key("SK").BeginsWith(feedKeyPrefix))).
		WithFilter(expression.AttributeNotExists(expression.Name("IsRead"))).
		Build()
	if err != nil {
		return nil, errors.NewStorageError("getMaterializedFeedItems", err)
	}

	page := &feed.Page{Items: make([]feed.Item, 0, limit)}
	morePages := true

	for len(page.Items) < limit {
		out, err := s.client.Query(ctx, &dynamodb.QueryInput{
			TableName:                 aws.String(s.tableName),
			KeyConditionExpression:    expr.KeyCondition(),
			FilterExpression:          expr.Filter(),
			ExpressionAttributeNames:  expr.Names(),
			ExpressionAttributeValues: expr.Values(),
			ScanIndexForward:          aws.Bool(false),
			Limit:                     aws.Int32(int32(limit)),
			ExclusiveStartKey:         startKey,
		})
		if err != nil {
			return nil, errors.NewStorageError("getMaterializedFeedItems", err)
		}

		for _, raw := range out.Items {
			if len(page.Items) >= limit {
				break
			}
			var item feedItem
			if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
				s.logger.Warn("Skipping unreadable feed item", zap.Error(err))
				continue
			}
			page.Items = append(page.Items, item.toDomain())
		}

		if out.LastEvaluatedKey == nil {
			morePages = false
			break
		}
		startKey = out.LastEvaluatedKey
	}

	if morePages && len(page.Items) == limit {
		// Resume after the last returned item, not wherever the final
		// query page happened to stop.
		last := page.Items[len(page.Items)-1]
		cursor, err := encodeCursor(map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: userPK(last.UserID)},
			"SK": &types.AttributeValueMemberS{Value: feedSK(last.CreatedAt, last.PostID)},
		})
		if err != nil {
			return nil, err
		}
		page.NextCursor = cursor
	}
	return page, nil
}

// MarkFeedItemsAsRead resolves each post ID to its feed item by walking
// the user's partition, stopping early once every requested post has
// been found, and flips each found item to read. Posts with no feed item
// are silently skipped; the returned count may be less than requested.
func (s *FeedStore) MarkFeedItemsAsRead(ctx context.Context, userID string, postIDs []string) (int, error) {
	if !feed.ValidIdentifier(userID) {
		return 0, errors.NewValidationError("malformed userId")
	}
	if len(postIDs) == 0 {
		return 0, nil
	}

	wanted := make(map[string]struct{}, len(postIDs))
	for _, postID := range postIDs {
		wanted[postID] = struct{}{}
	}

	readAt := time.Now().UTC().Format(time.RFC3339Nano)
	updated := 0
	var startKey map[string]types.AttributeValue

	for len(wanted) > 0 {
		out, err := s.client.Query(ctx, &dynamodb.QueryInput{
			TableName:              aws.String(s.tableName),
			KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :prefix)"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":pk":     &types.AttributeValueMemberS{Value: userPK(userID)},
				":prefix": &types.AttributeValueMemberS{Value: feedKeyPrefix},
			},
			ProjectionExpression: aws.String("PK, SK"),
			Limit:                aws.Int32(markReadScanPageSize),
			ExclusiveStartKey:    startKey,
		})
		if err != nil {
			return updated, errors.NewStorageError("markFeedItemsAsRead", err)
		}

		for _, raw := range out.Items {
			sk, ok := raw["SK"].(*types.AttributeValueMemberS)
			if !ok {
				continue
			}
			postID := postIDFromFeedSK(sk.Value)
			if _, found := wanted[postID]; !found {
				continue
			}

			_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
				TableName: aws.String(s.tableName),
				Key: map[string]types.AttributeValue{
					"PK": raw["PK"],
					"SK": raw["SK"],
				},
				UpdateExpression: aws.String("SET IsRead = :read, ReadAt = :readAt"),
				ExpressionAttributeValues: map[string]types.AttributeValue{
					":read":   &types.AttributeValueMemberBOOL{Value: true},
					":readAt": &types.AttributeValueMemberS{Value: readAt},
				},
			})
			if err != nil {
				return updated, errors.NewStorageError("markFeedItemsAsRead", err)
			}
			updated++
			delete(wanted, postID)
		}

		if out.LastEvaluatedKey == nil {
			break
		}
		startKey = out.LastEvaluatedKey
	}
	return updated, nil
}

// DeleteFeedItemsByPost removes every materialized copy of a post across
// all user feeds. There is no post-keyed index over feed items, so this
// is a full table scan, the most expensive operation in the system,
// reserved for post deletion.
func (s *FeedStore) DeleteFeedItemsByPost(ctx context.Context, postID string) (int, error) {
	if !feed.ValidIdentifier(postID) {
		return 0, errors.NewValidationError("malformed postId")
	}

	expr, err := expression.NewBuilder().
		WithFilter(expression.Name("EntityType").Equal(expression.Value(feedEntityType)).
			And(expression.Name("PostID").Equal(expression.Value(postID)))).
		WithProjection(expression.NamesList(expression.Name("PK"), expression.Name("SK"))).
		Build()
	if err != nil {
		return 0, errors.NewStorageError("deleteFeedItemsByPost", err)
	}

	keys, err := s.collectKeys(ctx, func(startKey map[string]types.AttributeValue) (*dynamodb.ScanOutput, error) {
		return s.client.Scan(ctx, &dynamodb.ScanInput{
			TableName:                 aws.String(s.tableName),
			FilterExpression:          expr.Filter(),
			ProjectionExpression:      expr.Projection(),
			ExpressionAttributeNames:  expr.Names(),
			ExpressionAttributeValues: expr.Values(),
			Limit:                     aws.Int32(deleteScanPageSize),
			ExclusiveStartKey:         startKey,
		})
	})
	if err != nil {
		return 0, errors.NewStorageError("deleteFeedItemsByPost", err)
	}

	deleted := s.batch.DeleteKeys(ctx, keys)
	s.logger.Info("Deleted feed items for post",
		zap.String("postID", postID),
		zap.Int("matched", len(keys)),
		zap.Int("deleted", deleted),
	)
	return deleted, nil
}

// DeleteFeedItemsForUser removes one author's posts from one user's
// feed, e.g. after an unfollow. Scoped to a single partition, so far
// cheaper than the post-based deletion.
func (s *FeedStore) DeleteFeedItemsForUser(ctx context.Context, userID, authorID string) (int, error) {
	if !feed.ValidIdentifier(userID) {
		return 0, errors.NewValidationError("malformed userId")
	}
	if !feed.ValidIdentifier(authorID) {
		return 0, errors.NewValidationError("malformed authorId")
	}

	var keys []itemKey
	var startKey map[string]types.AttributeValue

	for {
		out, err := s.client.Query(ctx, &dynamodb.QueryInput{
			TableName:              aws.String(s.tableName),
			KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :prefix)"),
			FilterExpression:       aws.String("AuthorID = :author"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":pk":     &types.AttributeValueMemberS{Value: userPK(userID)},
				":prefix": &types.AttributeValueMemberS{Value: feedKeyPrefix},
				":author": &types.AttributeValueMemberS{Value: authorID},
			},
			ProjectionExpression: aws.String("PK, SK"),
			ExclusiveStartKey:    startKey,
		})
		if err != nil {
			return 0, errors.NewStorageError("deleteFeedItemsForUser", err)
		}

		for _, raw := range out.Items {
			if key, ok := rawKey(raw); ok {
				keys = append(keys, key)
			}
		}
		if out.LastEvaluatedKey == nil {
			break
		}
		startKey = out.LastEvaluatedKey
	}

	deleted := s.batch.DeleteKeys(ctx, keys)
	s.logger.Info("Deleted feed items for author",
		zap.String("userID", userID),
		zap.String("authorID", authorID),
		zap.Int("deleted", deleted),
	)
	return deleted, nil
}

// collectKeys drains a paginated scan into a key list.
func (s *FeedStore) collectKeys(ctx context.Context, scan func(map[string]types.AttributeValue) (*dynamodb.ScanOutput, error)) ([]itemKey, error) {
	var keys []itemKey
	var startKey map[string]types.AttributeValue

	for {
		out, err := scan(startKey)
		if err != nil {
			return nil, err
		}
		for _, raw := range out.Items {
			if key, ok := rawKey(raw); ok {
				keys = append(keys, key)
			}
		}
		if out.LastEvaluatedKey == nil {
			return keys, nil
		}
		startKey = out.LastEvaluatedKey
	}
}

// rawKey extracts the composite key from a projected item.
func rawKey(raw map[string]types.AttributeValue) (itemKey, bool) {
	pk, okPK := raw["PK"].(*types.AttributeValueMemberS)
	sk, okSK := raw["SK"].(*types.AttributeValueMemberS)
	if !okPK || !okSK {
		return itemKey{}, false
	}
	return itemKey{pk: pk.Value, sk: sk.Value}, true
}
