package dynamodb

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"pulse-backend/domain/notification"
	"pulse-backend/pkg/errors"
)

const (
	notificationEntityType = "NOTIFICATION"
	notifDefaultPageSize   = 20
	notifMaxPageSize       = 100
	unreadIndexPageSize    = 100
)

// notificationItem is the DynamoDB shape of an inbox entry. GSI1 maps
// the notification ID back to its owner; the GSI2 attributes form the
// sparse unread projection and exist if and only if Status is unread.
type notificationItem struct {
	PK               string               `dynamodbav:"PK"`
	SK               string               `dynamodbav:"SK"`
	GSI1PK           string               `dynamodbav:"GSI1PK"`
	GSI1SK           string               `dynamodbav:"GSI1SK"`
	GSI2PK           string               `dynamodbav:"GSI2PK,omitempty"`
	GSI2SK           string               `dynamodbav:"GSI2SK,omitempty"`
	EntityType       string               `dynamodbav:"EntityType"`
	NotificationID   string               `dynamodbav:"NotificationID"`
	UserID           string               `dynamodbav:"UserID"`
	Type             string               `dynamodbav:"Type"`
	Status           string               `dynamodbav:"Status"`
	Title            string               `dynamodbav:"Title"`
	Message          string               `dynamodbav:"Message"`
	Priority         string               `dynamodbav:"Priority"`
	Actor            *notification.Actor  `dynamodbav:"Actor,omitempty"`
	Target           *notification.Target `dynamodbav:"Target,omitempty"`
	Metadata         map[string]string    `dynamodbav:"Metadata,omitempty"`
	DeliveryChannels []string             `dynamodbav:"DeliveryChannels"`
	Sound            bool                 `dynamodbav:"Sound"`
	Vibration        bool                 `dynamodbav:"Vibration"`
	GroupID          string               `dynamodbav:"GroupID,omitempty"`
	ExpiresAt        string               `dynamodbav:"ExpiresAt,omitempty"`
	CreatedAt        string               `dynamodbav:"CreatedAt"`
	UpdatedAt        string               `dynamodbav:"UpdatedAt"`
	ReadAt           string               `dynamodbav:"ReadAt,omitempty"`
	TTL              int64                `dynamodbav:"TTL"`
}

func (i *notificationItem) toDomain() notification.Notification {
	createdAt, _ := time.Parse(time.RFC3339Nano, i.CreatedAt)
	updatedAt, _ := time.Parse(time.RFC3339Nano, i.UpdatedAt)
	n := notification.Notification{
		ID:               i.NotificationID,
		UserID:           i.UserID,
		Type:             notification.Type(i.Type),
		Status:           notification.Status(i.Status),
		Title:            i.Title,
		Message:          i.Message,
		Priority:         notification.Priority(i.Priority),
		Actor:            i.Actor,
		Target:           i.Target,
		Metadata:         i.Metadata,
		DeliveryChannels: i.DeliveryChannels,
		Sound:            i.Sound,
		Vibration:        i.Vibration,
		GroupID:          i.GroupID,
		CreatedAt:        createdAt,
		UpdatedAt:        updatedAt,
	}
	if i.ExpiresAt != "" {
		if expiresAt, err := time.Parse(time.RFC3339Nano, i.ExpiresAt); err == nil {
			n.ExpiresAt = &expiresAt
		}
	}
	if i.ReadAt != "" {
		if readAt, err := time.Parse(time.RFC3339Nano, i.ReadAt); err == nil {
			n.ReadAt = &readAt
		}
	}
	return n
}

// NotificationStore persists inbox entries and their sparse unread
// projection.
type NotificationStore struct {
	client    DynamoAPI
	tableName string
	logger    *zap.Logger
}

// NewNotificationStore creates a notification store backed by the given
// table.
func NewNotificationStore(client DynamoAPI, tableName string, logger *zap.Logger) *NotificationStore {
	return &NotificationStore{
		client:    client,
		tableName: tableName,
		logger:    logger,
	}
}

// CreateNotification validates and writes a new inbox entry. The primary
// item, the ID lookup projection, and the sparse unread projection all
// land in one put, so the unread index can never disagree with status.
func (s *NotificationStore) CreateNotification(ctx context.Context, params notification.CreateParams) (*notification.Notification, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	params.ApplyDefaults()

	now := time.Now()
	id := uuid.NewString()

	item := notificationItem{
		PK:               userPK(params.UserID),
		SK:               notificationSK(now, id),
		GSI1PK:           notificationIDKey(id),
		GSI1SK:           userPK(params.UserID),
		GSI2PK:           unreadPK(params.UserID),
		GSI2SK:           notificationSK(now, id),
		EntityType:       notificationEntityType,
		NotificationID:   id,
		UserID:           params.UserID,
		Type:             string(params.Type),
		Status:           string(notification.StatusUnread),
		Title:            params.Title,
		Message:          params.Message,
		Priority:         string(params.Priority),
		Actor:            params.Actor,
		Target:           params.Target,
		Metadata:         params.Metadata,
		DeliveryChannels: params.DeliveryChannels,
		Sound:            *params.Sound,
		Vibration:        *params.Vibration,
		GroupID:          params.GroupID,
		CreatedAt:        now.UTC().Format(time.RFC3339Nano),
		UpdatedAt:        now.UTC().Format(time.RFC3339Nano),
		TTL:              now.Add(notification.TTLDuration).Unix(),
	}
	if params.ExpiresAt != nil {
		item.ExpiresAt = params.ExpiresAt.UTC().Format(time.RFC3339Nano)
	}

	marshaled, err := attributevalue.MarshalMap(item)
	if err != nil {
		return nil, errors.NewStorageError("createNotification", err)
	}
	if _, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      marshaled,
	}); err != nil {
		return nil, errors.NewStorageError("createNotification", err)
	}

	s.logger.Debug("Created notification",
		zap.String("notificationID", id),
		zap.String("userID", params.UserID),
		zap.String("type", string(params.Type)),
	)
	created := item.toDomain()
	return &created, nil
}

// GetNotifications returns one filtered page of the user's inbox, newest
// first. The unread count always comes from the sparse index, never from
// the page contents.
func (s *NotificationStore) GetNotifications(ctx context.Context, query notification.Query) (*notification.Page, error) {
	if query.UserID == "" {
		return nil, errors.NewValidationError("userId is required")
	}
	limit := query.Limit
	if limit == 0 {
		limit = notifDefaultPageSize
	}
	if limit < 1 || limit > notifMaxPageSize {
		return nil, errors.NewValidationError("limit must be between 1 and 100")
	}

	startKey, err := decodeCursor(query.Cursor)
	if err != nil {
		return nil, err
	}

	builder := expression.NewBuilder().
		WithKeyCondition(expression.Key("PK").Equal(expression.Value(userPK(query.UserID))).
			And(expression.Key("SK").BeginsWith(notifKeyPrefix)))

	var filters []expression.ConditionBuilder
	if query.Status != "" {
		filters = append(filters, expression.Name("Status").Equal(expression.Value(string(query.Status))))
	}
	if query.Type != "" {
		filters = append(filters, expression.Name("Type").Equal(expression.Value(string(query.Type))))
	}
	if query.Priority != "" {
		filters = append(filters, expression.Name("Priority").Equal(expression.Value(string(query.Priority))))
	}
	if len(filters) > 0 {
		combined := filters[0]
		for _, f := range filters[1:] {
			combined = combined.And(f)
		}
		builder = builder.WithFilter(combined)
	}

	expr, err := builder.Build()
	if err != nil {
		return nil, errors.NewStorageError("getNotifications", err)
	}

	page := &notification.Page{Items: make([]notification.Notification, 0, limit)}
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
			return nil, errors.NewStorageError("getNotifications", err)
		}

		for _, raw := range out.Items {
			if len(page.Items) >= limit {
				break
			}
			var item notificationItem
			if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
				s.logger.Warn("Skipping unreadable notification", zap.Error(err))
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
		last := page.Items[len(page.Items)-1]
		cursor, err := encodeCursor(map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: userPK(last.UserID)},
			"SK": &types.AttributeValueMemberS{Value: notificationSK(last.CreatedAt, last.ID)},
		})
		if err != nil {
			return nil, err
		}
		page.NextCursor = cursor
	}

	unread, err := s.GetUnreadCount(ctx, query.UserID)
	if err != nil {
		return nil, err
	}
	page.UnreadCount = unread
	return page, nil
}

// GetUnreadCount counts the user's unread notifications via the sparse
// index. Cost is proportional to the unread volume; read items are never
// touched.
func (s *NotificationStore) GetUnreadCount(ctx context.Context, userID string) (int, error) {
	if userID == "" {
		return 0, errors.NewValidationError("userId is required")
	}

	count := 0
	var startKey map[string]types.AttributeValue

	for {
		out, err := s.client.Query(ctx, &dynamodb.QueryInput{
			TableName:              aws.String(s.tableName),
			IndexName:              aws.String(IndexUnread),
			KeyConditionExpression: aws.String("GSI2PK = :pk"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":pk": &types.AttributeValueMemberS{Value: unreadPK(userID)},
			},
			Select:            types.SelectCount,
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return 0, errors.NewStorageError("getUnreadCount", err)
		}
		count += int(out.Count)
		if out.LastEvaluatedKey == nil {
			return count, nil
		}
		startKey = out.LastEvaluatedKey
	}
}

// getByID resolves a notification through the ID lookup projection.
// Returns NotFound when no such notification exists.
func (s *NotificationStore) getByID(ctx context.Context, notificationID string) (*notificationItem, error) {
	out, err := s.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.tableName),
		IndexName:              aws.String(IndexByNotificationID),
		KeyConditionExpression: aws.String("GSI1PK = :pk"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: notificationIDKey(notificationID)},
		},
		Limit: aws.Int32(1),
	})
	if err != nil {
		return nil, errors.NewStorageError("getNotificationByID", err)
	}
	if len(out.Items) == 0 {
		return nil, errors.NewNotFoundError("notification")
	}

	var item notificationItem
	if err := attributevalue.UnmarshalMap(out.Items[0], &item); err != nil {
		return nil, errors.NewStorageError("getNotificationByID", err)
	}
	return &item, nil
}

// transition flips one notification's status and, in the same update,
// removes the sparse unread projection. Splitting these into two calls
// would reintroduce the race the sparse-index invariant exists to
// prevent.
func (s *NotificationStore) transition(ctx context.Context, item *notificationItem, status notification.Status, readAt *time.Time) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	update := "SET #status = :status, UpdatedAt = :updatedAt REMOVE GSI2PK, GSI2SK"
	values := map[string]types.AttributeValue{
		":status":    &types.AttributeValueMemberS{Value: string(status)},
		":updatedAt": &types.AttributeValueMemberS{Value: now},
	}
	if readAt != nil {
		update = "SET #status = :status, UpdatedAt = :updatedAt, ReadAt = :readAt REMOVE GSI2PK, GSI2SK"
		values[":readAt"] = &types.AttributeValueMemberS{Value: readAt.UTC().Format(time.RFC3339Nano)}
	}

	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: item.PK},
			"SK": &types.AttributeValueMemberS{Value: item.SK},
		},
		UpdateExpression:          aws.String(update),
		ExpressionAttributeNames:  map[string]string{"#status": "Status"},
		ExpressionAttributeValues: values,
		ConditionExpression:       aws.String("attribute_exists(PK)"),
	})
	if err != nil {
		return errors.NewStorageError("notificationTransition", err)
	}
	return nil
}

// MarkAsRead marks one notification read on behalf of userID. Marking an
// already-read notification returns its current state unchanged.
func (s *NotificationStore) MarkAsRead(ctx context.Context, userID, notificationID string) (*notification.Notification, error) {
	item, err := s.getByID(ctx, notificationID)
	if err != nil {
		return nil, err
	}
	if item.UserID != userID {
		return nil, errors.NewUnauthorizedError("notification belongs to another user")
	}
	if notification.Status(item.Status) != notification.StatusUnread {
		current := item.toDomain()
		return &current, nil
	}

	readAt := time.Now()
	if err := s.transition(ctx, item, notification.StatusRead, &readAt); err != nil {
		return nil, err
	}

	item.Status = string(notification.StatusRead)
	item.ReadAt = readAt.UTC().Format(time.RFC3339Nano)
	item.UpdatedAt = item.ReadAt
	item.GSI2PK = ""
	item.GSI2SK = ""
	updated := item.toDomain()
	return &updated, nil
}

// MarkAsReadBatch applies MarkAsRead per ID, collecting per-ID failures
// instead of aborting. Already-read notifications count as processed.
func (s *NotificationStore) MarkAsReadBatch(ctx context.Context, userID string, notificationIDs []string) (*notification.BatchResult, error) {
	result := &notification.BatchResult{}
	for _, id := range notificationIDs {
		item, err := s.getByID(ctx, id)
		if err != nil {
			result.FailedCount++
			result.Failures = append(result.Failures, notification.BatchFailure{ID: id, Error: err.Error()})
			continue
		}
		if item.UserID != userID {
			result.FailedCount++
			result.Failures = append(result.Failures, notification.BatchFailure{ID: id, Error: "notification belongs to another user"})
			continue
		}
		if notification.Status(item.Status) == notification.StatusUnread {
			readAt := time.Now()
			if err := s.transition(ctx, item, notification.StatusRead, &readAt); err != nil {
				s.logger.Warn("Failed to mark notification read in batch",
					zap.String("notificationID", id),
					zap.Error(err),
				)
				result.FailedCount++
				result.Failures = append(result.Failures, notification.BatchFailure{ID: id, Error: err.Error()})
				continue
			}
		}
		result.ProcessedCount++
	}
	return result, nil
}

// MarkAllAsRead walks the user's sparse unread index to completion and
// applies the read transition to every match. Calling it again
// immediately returns zero.
func (s *NotificationStore) MarkAllAsRead(ctx context.Context, userID string, filter notification.MarkAllFilter) (int, error) {
	if userID == "" {
		return 0, errors.NewValidationError("userId is required")
	}

	updated := 0
	var startKey map[string]types.AttributeValue

	for {
		out, err := s.client.Query(ctx, &dynamodb.QueryInput{
			TableName:              aws.String(s.tableName),
			IndexName:              aws.String(IndexUnread),
			KeyConditionExpression: aws.String("GSI2PK = :pk"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":pk": &types.AttributeValueMemberS{Value: unreadPK(userID)},
			},
			Limit:             aws.Int32(unreadIndexPageSize),
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return updated, errors.NewStorageError("markAllAsRead", err)
		}

		for _, raw := range out.Items {
			var item notificationItem
			if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
				s.logger.Warn("Skipping unreadable unread projection", zap.Error(err))
				continue
			}
			if filter.Type != "" && notification.Type(item.Type) != filter.Type {
				continue
			}
			if filter.BeforeDate != nil {
				createdAt, err := time.Parse(time.RFC3339Nano, item.CreatedAt)
				if err != nil || !createdAt.Before(*filter.BeforeDate) {
					continue
				}
			}

			readAt := time.Now()
			if err := s.transition(ctx, &item, notification.StatusRead, &readAt); err != nil {
				s.logger.Warn("Failed to mark notification read",
					zap.String("notificationID", item.NotificationID),
					zap.Error(err),
				)
				continue
			}
			updated++
		}

		if out.LastEvaluatedKey == nil {
			return updated, nil
		}
		startKey = out.LastEvaluatedKey
	}
}

// DeleteNotification deletes one notification on behalf of userID.
// Deleting a notification that no longer exists succeeds silently.
func (s *NotificationStore) DeleteNotification(ctx context.Context, userID, notificationID string) error {
	item, err := s.getByID(ctx, notificationID)
	if err != nil {
		if errors.IsNotFound(err) {
			return nil
		}
		return err
	}
	if item.UserID != userID {
		return errors.NewUnauthorizedError("notification belongs to another user")
	}

	if _, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: item.PK},
			"SK": &types.AttributeValueMemberS{Value: item.SK},
		},
	}); err != nil {
		return errors.NewStorageError("deleteNotification", err)
	}
	return nil
}

// DeleteNotificationsBatch deletes per ID, collecting unauthorized,
// missing, and failed IDs instead of aborting the batch.
func (s *NotificationStore) DeleteNotificationsBatch(ctx context.Context, userID string, notificationIDs []string) (*notification.BatchResult, error) {
	result := &notification.BatchResult{}
	for _, id := range notificationIDs {
		item, err := s.getByID(ctx, id)
		if err != nil {
			result.FailedCount++
			result.Failures = append(result.Failures, notification.BatchFailure{ID: id, Error: err.Error()})
			continue
		}
		if item.UserID != userID {
			result.FailedCount++
			result.Failures = append(result.Failures, notification.BatchFailure{ID: id, Error: "notification belongs to another user"})
			continue
		}
		if _, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
			TableName: aws.String(s.tableName),
			Key: map[string]types.AttributeValue{
				"PK": &types.AttributeValueMemberS{Value: item.PK},
				"SK": &types.AttributeValueMemberS{Value: item.SK},
			},
		}); err != nil {
			s.logger.Warn("Failed to delete notification in batch",
				zap.String("notificationID", id),
				zap.Error(err),
			)
			result.FailedCount++
			result.Failures = append(result.Failures, notification.BatchFailure{ID: id, Error: err.Error()})
			continue
		}
		result.ProcessedCount++
	}
	return result, nil
}

// BatchOperation applies one operation to each listed notification,
// recording per-ID failures and never aborting the rest of the batch.
func (s *NotificationStore) BatchOperation(ctx context.Context, userID string, op notification.BatchOp, notificationIDs []string) (*notification.BatchResult, error) {
	if len(notificationIDs) == 0 {
		return nil, errors.NewValidationError("notificationIds must not be empty")
	}
	if !op.IsValid() {
		return nil, errors.NewValidationError("unrecognized batch operation")
	}

	result := &notification.BatchResult{}
	for _, id := range notificationIDs {
		if err := s.applyOperation(ctx, userID, op, id); err != nil {
			result.FailedCount++
			result.Failures = append(result.Failures, notification.BatchFailure{ID: id, Error: err.Error()})
			continue
		}
		result.ProcessedCount++
	}
	return result, nil
}

func (s *NotificationStore) applyOperation(ctx context.Context, userID string, op notification.BatchOp, notificationID string) error {
	item, err := s.getByID(ctx, notificationID)
	if err != nil {
		return err
	}
	if item.UserID != userID {
		return errors.NewUnauthorizedError("notification belongs to another user")
	}

	switch op {
	case notification.BatchOpMarkRead:
		if notification.Status(item.Status) != notification.StatusUnread {
			return nil
		}
		readAt := time.Now()
		return s.transition(ctx, item, notification.StatusRead, &readAt)
	case notification.BatchOpArchive:
		return s.transition(ctx, item, notification.StatusArchived, nil)
	case notification.BatchOpDelete:
		if _, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
			TableName: aws.String(s.tableName),
			Key: map[string]types.AttributeValue{
				"PK": &types.AttributeValueMemberS{Value: item.PK},
				"SK": &types.AttributeValueMemberS{Value: item.SK},
			},
		}); err != nil {
			return errors.NewStorageError("deleteNotification", err)
		}
		return nil
	}
	return errors.NewValidationError("unrecognized batch operation")
}
