package eventbridge

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	"go.uber.org/zap"

	"pulse-backend/application/ports"
	"pulse-backend/domain/notification"
)

const (
	eventSource            = "pulse.notifications"
	detailTypeNotifCreated = "NotificationCreated"
)

// notificationCreatedDetail is the EventBridge payload for a freshly
// created notification. Downstream rules route it to push delivery and
// analytics targets.
type notificationCreatedDetail struct {
	NotificationID string                `json:"notificationId"`
	UserID         string                `json:"userId"`
	Type           notification.Type     `json:"type"`
	Priority       notification.Priority `json:"priority"`
	Title          string                `json:"title"`
	CreatedAt      time.Time             `json:"createdAt"`
}

// Publisher implements the NotificationPublisher port using AWS EventBridge.
type Publisher struct {
	client       *eventbridge.Client
	eventBusName string
	logger       *zap.Logger
}

// NewPublisher creates an EventBridge-backed notification publisher.
func NewPublisher(client *eventbridge.Client, eventBusName string, logger *zap.Logger) ports.NotificationPublisher {
	return &Publisher{
		client:       client,
		eventBusName: eventBusName,
		logger:       logger,
	}
}

// PublishNotificationCreated sends a NotificationCreated event to the bus.
func (p *Publisher) PublishNotificationCreated(ctx context.Context, n *notification.Notification) error {
	detail, err := json.Marshal(notificationCreatedDetail{
		NotificationID: n.ID,
		UserID:         n.UserID,
		Type:           n.Type,
		Priority:       n.Priority,
		Title:          n.Title,
		CreatedAt:      n.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal notification event: %w", err)
	}

	input := &eventbridge.PutEventsInput{
		Entries: []types.PutEventsRequestEntry{
			{
				EventBusName: aws.String(p.eventBusName),
				Source:       aws.String(eventSource),
				DetailType:   aws.String(detailTypeNotifCreated),
				Detail:       aws.String(string(detail)),
				Time:         aws.Time(n.CreatedAt),
			},
		},
	}

	result, err := p.client.PutEvents(ctx, input)
	if err != nil {
		return fmt.Errorf("failed to publish to EventBridge: %w", err)
	}
	if result.FailedEntryCount > 0 {
		entry := result.Entries[0]
		p.logger.Error("EventBridge rejected notification event",
			zap.String("notificationId", n.ID),
			zap.String("errorCode", aws.ToString(entry.ErrorCode)),
			zap.String("errorMessage", aws.ToString(entry.ErrorMessage)),
		)
		return fmt.Errorf("event rejected: %s", aws.ToString(entry.ErrorCode))
	}

	p.logger.Debug("Notification event published",
		zap.String("notificationId", n.ID),
		zap.String("eventBus", p.eventBusName),
	)
	return nil
}
