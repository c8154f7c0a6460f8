package fanout

import (
	"context"
	"fmt"
	"sync"

	"github.com/aws/aws-lambda-go/events"
	"go.uber.org/zap"

	"pulse-backend/application/ports"
	"pulse-backend/domain/notification"
)

const eventNameInsert = "INSERT"

// RecordOutcome reports what happened to one stream record. A record is
// either skipped, processed with some number of notifications created, or
// failed with Err set. Partial delivery inside one record shows up as a
// non-zero Created alongside Err.
type RecordOutcome struct {
	EventID string
	Skipped bool
	Created int
	Err     error
}

// BatchSummary aggregates per-record outcomes for logging and metrics.
type BatchSummary struct {
	Records int
	Created int
	Failed  int
	Skipped int
}

// Summarize folds a batch's outcomes into one summary. Failed records
// stay failed here only for reporting; they are not re-driven, since a
// partially delivered record would duplicate its successful
// notifications on redelivery.
func Summarize(outcomes []RecordOutcome) BatchSummary {
	summary := BatchSummary{Records: len(outcomes)}
	for _, outcome := range outcomes {
		summary.Created += outcome.Created
		switch {
		case outcome.Err != nil:
			summary.Failed++
		case outcome.Skipped:
			summary.Skipped++
		}
	}
	return summary
}

// Processor turns table interactions arriving on the stream into inbox
// notifications. It only reacts to INSERT records so that updates and
// deletes of interaction rows never re-notify.
type Processor struct {
	notifications ports.NotificationStore
	handles       ports.HandleResolver
	publisher     ports.NotificationPublisher
	logger        *zap.Logger
}

// NewProcessor wires a processor. The publisher may be nil when no push
// channel is configured.
func NewProcessor(notifications ports.NotificationStore, handles ports.HandleResolver, publisher ports.NotificationPublisher, logger *zap.Logger) *Processor {
	return &Processor{
		notifications: notifications,
		handles:       handles,
		publisher:     publisher,
		logger:        logger,
	}
}

// ProcessBatch handles every record in the stream event concurrently and
// returns one outcome per record, in the input order. It never returns an
// error itself; failures are settled into the outcomes so a single bad
// record cannot block the rest of the batch.
func (p *Processor) ProcessBatch(ctx context.Context, event events.DynamoDBEvent) []RecordOutcome {
	outcomes := make([]RecordOutcome, len(event.Records))

	var wg sync.WaitGroup
	for i, record := range event.Records {
		wg.Add(1)
		go func(i int, record events.DynamoDBEventRecord) {
			defer wg.Done()
			outcomes[i] = p.processRecord(ctx, record)
		}(i, record)
	}
	wg.Wait()

	return outcomes
}

func (p *Processor) processRecord(ctx context.Context, record events.DynamoDBEventRecord) RecordOutcome {
	outcome := RecordOutcome{EventID: record.EventID}

	if record.EventName != eventNameInsert {
		outcome.Skipped = true
		return outcome
	}

	interaction, err := ParseInteraction(record)
	if err != nil {
		outcome.Err = err
		return outcome
	}
	if interaction == nil {
		outcome.Skipped = true
		return outcome
	}

	var errs []error
	switch interaction.EntityType {
	case EntityTypeLike:
		errs = p.handleLike(ctx, interaction, &outcome)
	case EntityTypeComment:
		errs = p.handleComment(ctx, interaction, &outcome)
	case EntityTypeFollow:
		errs = p.handleFollow(ctx, interaction, &outcome)
	}

	if len(errs) > 0 {
		outcome.Err = errs[0]
		for _, e := range errs {
			p.logger.Error("notification delivery failed",
				zap.String("eventId", record.EventID),
				zap.String("entityType", interaction.EntityType),
				zap.Error(e))
		}
	}
	return outcome
}

func (p *Processor) handleLike(ctx context.Context, in *InteractionEvent, outcome *RecordOutcome) []error {
	if in.PostOwnerID == in.Actor.UserID {
		return nil
	}

	err := p.deliver(ctx, notification.CreateParams{
		UserID:  in.PostOwnerID,
		Type:    notification.TypeLike,
		Title:   "New like",
		Message: fmt.Sprintf("%s liked your post", actorName(in.Actor)),
		Actor:   actorRef(in.Actor),
		Target: &notification.Target{
			Type:    "post",
			ID:      in.PostID,
			Preview: in.ThumbnailURL,
		},
		GroupID: "like:" + in.PostID,
	})
	if err != nil {
		return []error{err}
	}
	outcome.Created++
	return nil
}

func (p *Processor) handleComment(ctx context.Context, in *InteractionEvent, outcome *RecordOutcome) []error {
	var errs []error
	preview := commentPreview(in.Content)
	notified := map[string]struct{}{in.Actor.UserID: {}}

	if _, done := notified[in.PostOwnerID]; !done {
		notified[in.PostOwnerID] = struct{}{}
		err := p.deliver(ctx, notification.CreateParams{
			UserID:  in.PostOwnerID,
			Type:    notification.TypeComment,
			Title:   "New comment",
			Message: fmt.Sprintf("%s commented: %s", actorName(in.Actor), preview),
			Actor:   actorRef(in.Actor),
			Target: &notification.Target{
				Type:    "post",
				ID:      in.PostID,
				Preview: preview,
			},
			GroupID: "comment:" + in.PostID,
		})
		if err != nil {
			errs = append(errs, err)
		} else {
			outcome.Created++
		}
	}

	for _, mentionedID := range p.resolveMentionTargets(ctx, in) {
		if _, done := notified[mentionedID]; done {
			continue
		}
		notified[mentionedID] = struct{}{}
		err := p.deliver(ctx, notification.CreateParams{
			UserID:   mentionedID,
			Type:     notification.TypeMention,
			Title:    "You were mentioned",
			Message:  fmt.Sprintf("%s mentioned you: %s", actorName(in.Actor), preview),
			Priority: notification.PriorityHigh,
			Actor:    actorRef(in.Actor),
			Target: &notification.Target{
				Type:    "post",
				ID:      in.PostID,
				Preview: preview,
			},
		})
		if err != nil {
			errs = append(errs, err)
		} else {
			outcome.Created++
		}
	}

	return errs
}

// resolveMentionTargets returns the users to mention-notify. The
// pre-resolved ID list on the record is authoritative when present;
// handles are parsed out of the comment text only as a fallback, so an
// upstream that filtered the list keeps its exclusions. Handles that
// resolve to no user are dropped silently.
func (p *Processor) resolveMentionTargets(ctx context.Context, in *InteractionEvent) []string {
	seen := make(map[string]struct{})
	var targets []string

	for _, id := range in.MentionedUserIDs {
		if _, ok := seen[id]; ok || id == "" {
			continue
		}
		seen[id] = struct{}{}
		targets = append(targets, id)
	}
	if len(in.MentionedUserIDs) > 0 {
		return targets
	}

	if p.handles == nil {
		return targets
	}
	for _, handle := range ExtractMentions(in.Content) {
		id, err := p.handles.ResolveHandle(ctx, handle)
		if err != nil {
			p.logger.Warn("handle resolution failed",
				zap.String("handle", handle),
				zap.Error(err))
			continue
		}
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		targets = append(targets, id)
	}

	return targets
}

func (p *Processor) handleFollow(ctx context.Context, in *InteractionEvent, outcome *RecordOutcome) []error {
	if in.FolloweeID == in.Actor.UserID {
		return nil
	}

	err := p.deliver(ctx, notification.CreateParams{
		UserID:  in.FolloweeID,
		Type:    notification.TypeFollow,
		Title:   "New follower",
		Message: fmt.Sprintf("%s started following you", actorName(in.Actor)),
		Actor:   actorRef(in.Actor),
		Target: &notification.Target{
			Type: "user",
			ID:   in.Actor.UserID,
		},
	})
	if err != nil {
		return []error{err}
	}
	outcome.Created++
	return nil
}

func (p *Processor) deliver(ctx context.Context, params notification.CreateParams) error {
	created, err := p.notifications.CreateNotification(ctx, params)
	if err != nil {
		return err
	}
	if p.publisher != nil {
		if err := p.publisher.PublishNotificationCreated(ctx, created); err != nil {
			// Push delivery is best effort; the inbox entry already exists.
			p.logger.Warn("notification publish failed",
				zap.String("notificationId", created.ID),
				zap.Error(err))
		}
	}
	return nil
}

func actorName(a Actor) string {
	if a.DisplayName != "" {
		return a.DisplayName
	}
	if a.Handle != "" {
		return "@" + a.Handle
	}
	return "Someone"
}

func actorRef(a Actor) *notification.Actor {
	return &notification.Actor{
		UserID:      a.UserID,
		Handle:      a.Handle,
		DisplayName: a.DisplayName,
		AvatarURL:   a.AvatarURL,
	}
}
