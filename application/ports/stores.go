package ports

import (
	"context"

	"pulse-backend/domain/feed"
	"pulse-backend/domain/like"
	"pulse-backend/domain/notification"
)

// FeedStore defines the interface for materialized feed persistence.
// This is a port in hexagonal architecture - the application layer doesn't
// know about the DynamoDB implementation behind it.
type FeedStore interface {
	// WriteFeedItem materializes a single post into a follower's feed
	// partition. Items already consumed by the reader are never rewritten.
	WriteFeedItem(ctx context.Context, params feed.WriteParams) error

	// WriteFeedItemsBatch fans a post out to many follower partitions and
	// reports per-item failures instead of aborting the batch.
	WriteFeedItemsBatch(ctx context.Context, items []feed.WriteParams) (*feed.BatchResult, error)

	// GetMaterializedFeedItems returns one page of unread feed items in
	// reverse chronological order.
	GetMaterializedFeedItems(ctx context.Context, query feed.Query) (*feed.Page, error)

	// MarkFeedItemsAsRead flags the given posts as consumed for a user and
	// returns how many items were actually flipped. Posts with no feed
	// item are skipped, so the count may be less than requested.
	MarkFeedItemsAsRead(ctx context.Context, userID string, postIDs []string) (int, error)

	// DeleteFeedItemsByPost removes every materialized copy of a post.
	DeleteFeedItemsByPost(ctx context.Context, postID string) (int, error)

	// DeleteFeedItemsForUser removes one author's posts from one reader's feed.
	DeleteFeedItemsForUser(ctx context.Context, userID, authorID string) (int, error)
}

// NotificationStore defines the interface for inbox persistence.
type NotificationStore interface {
	// CreateNotification validates and writes a new inbox entry.
	CreateNotification(ctx context.Context, params notification.CreateParams) (*notification.Notification, error)

	// GetNotifications returns one page of notifications plus the unread count.
	GetNotifications(ctx context.Context, query notification.Query) (*notification.Page, error)

	// GetUnreadCount counts unread notifications without scanning read ones.
	GetUnreadCount(ctx context.Context, userID string) (int, error)

	// MarkAsRead transitions a notification to read and drops it from the
	// unread index in the same write.
	MarkAsRead(ctx context.Context, userID, notificationID string) (*notification.Notification, error)

	// MarkAsReadBatch marks several notifications read, collecting failures.
	MarkAsReadBatch(ctx context.Context, userID string, notificationIDs []string) (*notification.BatchResult, error)

	// MarkAllAsRead marks every unread notification matching the filter.
	MarkAllAsRead(ctx context.Context, userID string, filter notification.MarkAllFilter) (int, error)

	// DeleteNotification removes a notification owned by the user.
	DeleteNotification(ctx context.Context, userID, notificationID string) error

	// DeleteNotificationsBatch removes several notifications, collecting failures.
	DeleteNotificationsBatch(ctx context.Context, userID string, notificationIDs []string) (*notification.BatchResult, error)

	// BatchOperation applies a mark-read, delete, or archive operation to a
	// set of notifications and reports partial failures in the result.
	BatchOperation(ctx context.Context, userID string, op notification.BatchOp, notificationIDs []string) (*notification.BatchResult, error)
}

// LikeStore defines the interface for like persistence and counters.
type LikeStore interface {
	// LikePost records a like exactly once and returns the updated status.
	LikePost(ctx context.Context, userID, postID string) (*like.Status, error)

	// UnlikePost removes a like if present and returns the updated status.
	UnlikePost(ctx context.Context, userID, postID string) (*like.Status, error)

	// GetPostLikeStatus reports whether the user liked the post and the count.
	GetPostLikeStatus(ctx context.Context, userID, postID string) (*like.Status, error)

	// GetLikeStatusesByPostIDs resolves like status for many posts at once.
	GetLikeStatusesByPostIDs(ctx context.Context, userID string, postIDs []string) (map[string]*like.Status, error)
}

// HandleResolver maps @handles mentioned in comment text to user IDs.
type HandleResolver interface {
	// ResolveHandle returns the user ID owning the handle, or an empty
	// string when no such user exists.
	ResolveHandle(ctx context.Context, handle string) (string, error)
}

// Cache is a small read-through cache used to soften hot read paths such
// as unread counts.
type Cache interface {
	Get(ctx context.Context, key string) (interface{}, bool)
	Set(ctx context.Context, key string, value interface{}, ttlSeconds int) error
	Delete(ctx context.Context, key string) error
}

// NotificationPublisher pushes notification events beyond the table, for
// example onto an event bus or a websocket connection.
type NotificationPublisher interface {
	// PublishNotificationCreated announces a freshly created notification.
	PublishNotificationCreated(ctx context.Context, n *notification.Notification) error
}
