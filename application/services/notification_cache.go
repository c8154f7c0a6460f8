package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"pulse-backend/application/ports"
	"pulse-backend/domain/notification"
)

// unreadCountTTLSeconds bounds how stale a cached unread count can get.
const unreadCountTTLSeconds = 30

// CachedNotificationStore wraps a notification store with a short-lived
// unread count cache. Every write that can change the count invalidates
// the cached entry, so badge counts converge quickly after activity.
type CachedNotificationStore struct {
	store  ports.NotificationStore
	cache  ports.Cache
	logger *zap.Logger
}

// NewCachedNotificationStore creates a caching decorator around a store.
func NewCachedNotificationStore(store ports.NotificationStore, cache ports.Cache, logger *zap.Logger) *CachedNotificationStore {
	return &CachedNotificationStore{
		store:  store,
		cache:  cache,
		logger: logger,
	}
}

func unreadCountKey(userID string) string {
	return fmt.Sprintf("unread-count:%s", userID)
}

// CreateNotification writes through and invalidates the owner's count.
func (s *CachedNotificationStore) CreateNotification(ctx context.Context, params notification.CreateParams) (*notification.Notification, error) {
	created, err := s.store.CreateNotification(ctx, params)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, created.UserID)
	return created, nil
}

// GetNotifications delegates to the underlying store.
func (s *CachedNotificationStore) GetNotifications(ctx context.Context, query notification.Query) (*notification.Page, error) {
	return s.store.GetNotifications(ctx, query)
}

// GetUnreadCount serves the cached count when fresh.
func (s *CachedNotificationStore) GetUnreadCount(ctx context.Context, userID string) (int, error) {
	if cached, ok := s.cache.Get(ctx, unreadCountKey(userID)); ok {
		if count, ok := cached.(int); ok {
			return count, nil
		}
	}

	count, err := s.store.GetUnreadCount(ctx, userID)
	if err != nil {
		return 0, err
	}
	if err := s.cache.Set(ctx, unreadCountKey(userID), count, unreadCountTTLSeconds); err != nil {
		s.logger.Debug("unread count cache set failed", zap.Error(err))
	}
	return count, nil
}

// MarkAsRead delegates and invalidates the count.
func (s *CachedNotificationStore) MarkAsRead(ctx context.Context, userID, notificationID string) (*notification.Notification, error) {
	updated, err := s.store.MarkAsRead(ctx, userID, notificationID)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, userID)
	return updated, nil
}

// MarkAsReadBatch delegates and invalidates the count.
func (s *CachedNotificationStore) MarkAsReadBatch(ctx context.Context, userID string, notificationIDs []string) (*notification.BatchResult, error) {
	result, err := s.store.MarkAsReadBatch(ctx, userID, notificationIDs)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, userID)
	return result, nil
}

// MarkAllAsRead delegates and invalidates the count.
func (s *CachedNotificationStore) MarkAllAsRead(ctx context.Context, userID string, filter notification.MarkAllFilter) (int, error) {
	marked, err := s.store.MarkAllAsRead(ctx, userID, filter)
	if err != nil {
		return 0, err
	}
	s.invalidate(ctx, userID)
	return marked, nil
}

// DeleteNotification delegates and invalidates the count. Deleting an
// unread notification shrinks the unread set.
func (s *CachedNotificationStore) DeleteNotification(ctx context.Context, userID, notificationID string) error {
	if err := s.store.DeleteNotification(ctx, userID, notificationID); err != nil {
		return err
	}
	s.invalidate(ctx, userID)
	return nil
}

// DeleteNotificationsBatch delegates and invalidates the count.
func (s *CachedNotificationStore) DeleteNotificationsBatch(ctx context.Context, userID string, notificationIDs []string) (*notification.BatchResult, error) {
	result, err := s.store.DeleteNotificationsBatch(ctx, userID, notificationIDs)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, userID)
	return result, nil
}

// BatchOperation delegates and invalidates the count.
func (s *CachedNotificationStore) BatchOperation(ctx context.Context, userID string, op notification.BatchOp, notificationIDs []string) (*notification.BatchResult, error) {
	result, err := s.store.BatchOperation(ctx, userID, op, notificationIDs)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, userID)
	return result, nil
}

func (s *CachedNotificationStore) invalidate(ctx context.Context, userID string) {
	if err := s.cache.Delete(ctx, unreadCountKey(userID)); err != nil {
		s.logger.Debug("unread count cache invalidation failed",
			zap.String("userID", userID),
			zap.Error(err))
	}
}
