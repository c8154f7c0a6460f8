package fanout

import (
	"context"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"pulse-backend/domain/notification"
	"pulse-backend/pkg/errors"
)

type mockNotificationStore struct {
	mock.Mock
}

func (m *mockNotificationStore) CreateNotification(ctx context.Context, params notification.CreateParams) (*notification.Notification, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*notification.Notification), args.Error(1)
}

func (m *mockNotificationStore) GetNotifications(ctx context.Context, query notification.Query) (*notification.Page, error) {
	args := m.Called(ctx, query)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*notification.Page), args.Error(1)
}

func (m *mockNotificationStore) GetUnreadCount(ctx context.Context, userID string) (int, error) {
	args := m.Called(ctx, userID)
	return args.Int(0), args.Error(1)
}

func (m *mockNotificationStore) MarkAsRead(ctx context.Context, userID, notificationID string) (*notification.Notification, error) {
	args := m.Called(ctx, userID, notificationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*notification.Notification), args.Error(1)
}

func (m *mockNotificationStore) MarkAsReadBatch(ctx context.Context, userID string, notificationIDs []string) (*notification.BatchResult, error) {
	args := m.Called(ctx, userID, notificationIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*notification.BatchResult), args.Error(1)
}

func (m *mockNotificationStore) MarkAllAsRead(ctx context.Context, userID string, filter notification.MarkAllFilter) (int, error) {
	args := m.Called(ctx, userID, filter)
	return args.Int(0), args.Error(1)
}

func (m *mockNotificationStore) DeleteNotification(ctx context.Context, userID, notificationID string) error {
	args := m.Called(ctx, userID, notificationID)
	return args.Error(0)
}

func (m *mockNotificationStore) DeleteNotificationsBatch(ctx context.Context, userID string, notificationIDs []string) (*notification.BatchResult, error) {
	args := m.Called(ctx, userID, notificationIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*notification.BatchResult), args.Error(1)
}

func (m *mockNotificationStore) BatchOperation(ctx context.Context, userID string, op notification.BatchOp, notificationIDs []string) (*notification.BatchResult, error) {
	args := m.Called(ctx, userID, op, notificationIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*notification.BatchResult), args.Error(1)
}

type mockHandleResolver struct {
	mock.Mock
}

func (m *mockHandleResolver) ResolveHandle(ctx context.Context, handle string) (string, error) {
	args := m.Called(ctx, handle)
	return args.String(0), args.Error(1)
}

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) PublishNotificationCreated(ctx context.Context, n *notification.Notification) error {
	args := m.Called(ctx, n)
	return args.Error(0)
}

func createdNotification(id, userID string) *notification.Notification {
	return &notification.Notification{ID: id, UserID: userID, Status: notification.StatusUnread}
}

func likeRecord(eventID, actorID, actorHandle, postID, postOwnerID string) events.DynamoDBEventRecord {
	return events.DynamoDBEventRecord{
		EventID:   eventID,
		EventName: "INSERT",
		Change: events.DynamoDBStreamRecord{
			NewImage: map[string]events.DynamoDBAttributeValue{
				"EntityType":  events.NewStringAttribute(EntityTypeLike),
				"UserID":      events.NewStringAttribute(actorID),
				"UserHandle":  events.NewStringAttribute(actorHandle),
				"PostID":      events.NewStringAttribute(postID),
				"PostOwnerID": events.NewStringAttribute(postOwnerID),
			},
		},
	}
}

func commentRecord(eventID, actorID, postID, postOwnerID, content string, mentionedIDs []string) events.DynamoDBEventRecord {
	image := map[string]events.DynamoDBAttributeValue{
		"EntityType":  events.NewStringAttribute(EntityTypeComment),
		"UserID":      events.NewStringAttribute(actorID),
		"UserHandle":  events.NewStringAttribute("commenter"),
		"PostID":      events.NewStringAttribute(postID),
		"PostOwnerID": events.NewStringAttribute(postOwnerID),
		"Content":     events.NewStringAttribute(content),
	}
	if len(mentionedIDs) > 0 {
		elements := make([]events.DynamoDBAttributeValue, len(mentionedIDs))
		for i, id := range mentionedIDs {
			elements[i] = events.NewStringAttribute(id)
		}
		image["MentionedUserIDs"] = events.NewListAttribute(elements)
	}
	return events.DynamoDBEventRecord{
		EventID:   eventID,
		EventName: "INSERT",
		Change:    events.DynamoDBStreamRecord{NewImage: image},
	}
}

func followRecord(eventID, actorID, followeeID string) events.DynamoDBEventRecord {
	return events.DynamoDBEventRecord{
		EventID:   eventID,
		EventName: "INSERT",
		Change: events.DynamoDBStreamRecord{
			NewImage: map[string]events.DynamoDBAttributeValue{
				"EntityType": events.NewStringAttribute(EntityTypeFollow),
				"UserID":     events.NewStringAttribute(actorID),
				"UserHandle": events.NewStringAttribute("follower"),
				"FolloweeID": events.NewStringAttribute(followeeID),
			},
		},
	}
}

func TestProcessor_ProcessBatch_LikeCreatesNotification(t *testing.T) {
	// Arrange
	ctx := context.Background()
	store := new(mockNotificationStore)
	store.On("CreateNotification", ctx, mock.MatchedBy(func(p notification.CreateParams) bool {
		return p.UserID == "owner-1" &&
			p.Type == notification.TypeLike &&
			p.GroupID == "like:post-1" &&
			p.Actor != nil && p.Actor.UserID == "actor-1"
	})).Return(createdNotification("n1", "owner-1"), nil).Once()

	processor := NewProcessor(store, nil, nil, zap.NewNop())
	event := events.DynamoDBEvent{Records: []events.DynamoDBEventRecord{
		likeRecord("evt-1", "actor-1", "alice", "post-1", "owner-1"),
	}}

	// Act
	outcomes := processor.ProcessBatch(ctx, event)

	// Assert
	require.Len(t, outcomes, 1)
	assert.NoError(t, outcomes[0].Err)
	assert.False(t, outcomes[0].Skipped)
	assert.Equal(t, 1, outcomes[0].Created)
	store.AssertExpectations(t)
}

func TestProcessor_ProcessBatch_SelfLikeSuppressed(t *testing.T) {
	// Arrange
	ctx := context.Background()
	store := new(mockNotificationStore)
	processor := NewProcessor(store, nil, nil, zap.NewNop())
	event := events.DynamoDBEvent{Records: []events.DynamoDBEventRecord{
		likeRecord("evt-1", "actor-1", "alice", "post-1", "actor-1"),
	}}

	// Act
	outcomes := processor.ProcessBatch(ctx, event)

	// Assert: liking your own post notifies nobody.
	require.Len(t, outcomes, 1)
	assert.NoError(t, outcomes[0].Err)
	assert.Equal(t, 0, outcomes[0].Created)
	store.AssertNotCalled(t, "CreateNotification")
}

func TestProcessor_ProcessBatch_SelfFollowSuppressed(t *testing.T) {
	// Arrange
	ctx := context.Background()
	store := new(mockNotificationStore)
	processor := NewProcessor(store, nil, nil, zap.NewNop())
	event := events.DynamoDBEvent{Records: []events.DynamoDBEventRecord{
		followRecord("evt-1", "actor-1", "actor-1"),
	}}

	// Act
	outcomes := processor.ProcessBatch(ctx, event)

	// Assert
	require.Len(t, outcomes, 1)
	assert.Equal(t, 0, outcomes[0].Created)
	store.AssertNotCalled(t, "CreateNotification")
}

func TestProcessor_ProcessBatch_FollowNotifiesFollowee(t *testing.T) {
	// Arrange
	ctx := context.Background()
	store := new(mockNotificationStore)
	store.On("CreateNotification", ctx, mock.MatchedBy(func(p notification.CreateParams) bool {
		return p.UserID == "followee-1" && p.Type == notification.TypeFollow
	})).Return(createdNotification("n1", "followee-1"), nil).Once()

	processor := NewProcessor(store, nil, nil, zap.NewNop())
	event := events.DynamoDBEvent{Records: []events.DynamoDBEventRecord{
		followRecord("evt-1", "actor-1", "followee-1"),
	}}

	// Act
	outcomes := processor.ProcessBatch(ctx, event)

	// Assert
	require.Len(t, outcomes, 1)
	assert.Equal(t, 1, outcomes[0].Created)
	store.AssertExpectations(t)
}

func TestProcessor_ProcessBatch_NonInsertSkipped(t *testing.T) {
	// Arrange
	ctx := context.Background()
	store := new(mockNotificationStore)
	processor := NewProcessor(store, nil, nil, zap.NewNop())

	record := likeRecord("evt-1", "actor-1", "alice", "post-1", "owner-1")
	record.EventName = "MODIFY"
	event := events.DynamoDBEvent{Records: []events.DynamoDBEventRecord{record}}

	// Act
	outcomes := processor.ProcessBatch(ctx, event)

	// Assert: updates of interaction rows never re-notify.
	require.Len(t, outcomes, 1)
	assert.True(t, outcomes[0].Skipped)
	store.AssertNotCalled(t, "CreateNotification")
}

func TestProcessor_ProcessBatch_NonInteractionEntitySkipped(t *testing.T) {
	// Arrange
	ctx := context.Background()
	store := new(mockNotificationStore)
	processor := NewProcessor(store, nil, nil, zap.NewNop())

	event := events.DynamoDBEvent{Records: []events.DynamoDBEventRecord{{
		EventID:   "evt-1",
		EventName: "INSERT",
		Change: events.DynamoDBStreamRecord{
			NewImage: map[string]events.DynamoDBAttributeValue{
				"EntityType": events.NewStringAttribute("FEED_ITEM"),
			},
		},
	}}}

	// Act
	outcomes := processor.ProcessBatch(ctx, event)

	// Assert
	require.Len(t, outcomes, 1)
	assert.True(t, outcomes[0].Skipped)
	assert.NoError(t, outcomes[0].Err)
	store.AssertNotCalled(t, "CreateNotification")
}

func TestProcessor_ProcessBatch_MalformedRecordFails(t *testing.T) {
	// Arrange: a like record with no PostOwnerID cannot be routed.
	ctx := context.Background()
	store := new(mockNotificationStore)
	processor := NewProcessor(store, nil, nil, zap.NewNop())

	event := events.DynamoDBEvent{Records: []events.DynamoDBEventRecord{{
		EventID:   "evt-1",
		EventName: "INSERT",
		Change: events.DynamoDBStreamRecord{
			NewImage: map[string]events.DynamoDBAttributeValue{
				"EntityType": events.NewStringAttribute(EntityTypeLike),
				"UserID":     events.NewStringAttribute("actor-1"),
				"PostID":     events.NewStringAttribute("post-1"),
			},
		},
	}}}

	// Act
	outcomes := processor.ProcessBatch(ctx, event)

	// Assert
	require.Len(t, outcomes, 1)
	require.Error(t, outcomes[0].Err)
	assert.True(t, errors.IsValidation(outcomes[0].Err))
	assert.False(t, outcomes[0].Skipped)
}

func TestProcessor_ProcessBatch_CommentNotifiesOwnerAndMentions(t *testing.T) {
	// Arrange: carol comments on owner-1's post mentioning @alice, who
	// resolves to user alice-id.
	ctx := context.Background()
	store := new(mockNotificationStore)
	store.On("CreateNotification", ctx, mock.MatchedBy(func(p notification.CreateParams) bool {
		return p.UserID == "owner-1" && p.Type == notification.TypeComment
	})).Return(createdNotification("n1", "owner-1"), nil).Once()
	store.On("CreateNotification", ctx, mock.MatchedBy(func(p notification.CreateParams) bool {
		return p.UserID == "alice-id" &&
			p.Type == notification.TypeMention &&
			p.Priority == notification.PriorityHigh
	})).Return(createdNotification("n2", "alice-id"), nil).Once()

	handles := new(mockHandleResolver)
	handles.On("ResolveHandle", ctx, "alice").Return("alice-id", nil).Once()

	processor := NewProcessor(store, handles, nil, zap.NewNop())
	event := events.DynamoDBEvent{Records: []events.DynamoDBEventRecord{
		commentRecord("evt-1", "carol-id", "post-1", "owner-1", "nice @alice", nil),
	}}

	// Act
	outcomes := processor.ProcessBatch(ctx, event)

	// Assert
	require.Len(t, outcomes, 1)
	assert.NoError(t, outcomes[0].Err)
	assert.Equal(t, 2, outcomes[0].Created)
	store.AssertExpectations(t)
	handles.AssertExpectations(t)
}

func TestProcessor_ProcessBatch_MentionedOwnerNotifiedOnce(t *testing.T) {
	// Arrange: the comment mentions the post owner, who already gets the
	// comment notification. One notification only.
	ctx := context.Background()
	store := new(mockNotificationStore)
	store.On("CreateNotification", ctx, mock.MatchedBy(func(p notification.CreateParams) bool {
		return p.UserID == "owner-1" && p.Type == notification.TypeComment
	})).Return(createdNotification("n1", "owner-1"), nil).Once()

	handles := new(mockHandleResolver)
	handles.On("ResolveHandle", ctx, "owner").Return("owner-1", nil).Once()

	processor := NewProcessor(store, handles, nil, zap.NewNop())
	event := events.DynamoDBEvent{Records: []events.DynamoDBEventRecord{
		commentRecord("evt-1", "carol-id", "post-1", "owner-1", "hey @owner", nil),
	}}

	// Act
	outcomes := processor.ProcessBatch(ctx, event)

	// Assert
	require.Len(t, outcomes, 1)
	assert.Equal(t, 1, outcomes[0].Created)
	store.AssertExpectations(t)
}

func TestProcessor_ProcessBatch_SelfMentionSuppressed(t *testing.T) {
	// Arrange: the commenter mentions themselves; only the owner is
	// notified.
	ctx := context.Background()
	store := new(mockNotificationStore)
	store.On("CreateNotification", ctx, mock.MatchedBy(func(p notification.CreateParams) bool {
		return p.UserID == "owner-1" && p.Type == notification.TypeComment
	})).Return(createdNotification("n1", "owner-1"), nil).Once()

	handles := new(mockHandleResolver)
	handles.On("ResolveHandle", ctx, "carol").Return("carol-id", nil).Once()

	processor := NewProcessor(store, handles, nil, zap.NewNop())
	event := events.DynamoDBEvent{Records: []events.DynamoDBEventRecord{
		commentRecord("evt-1", "carol-id", "post-1", "owner-1", "I did it @carol", nil),
	}}

	// Act
	outcomes := processor.ProcessBatch(ctx, event)

	// Assert
	require.Len(t, outcomes, 1)
	assert.Equal(t, 1, outcomes[0].Created)
	store.AssertExpectations(t)
}

func TestProcessor_ProcessBatch_UnresolvableHandleDropped(t *testing.T) {
	// Arrange
	ctx := context.Background()
	store := new(mockNotificationStore)
	store.On("CreateNotification", ctx, mock.MatchedBy(func(p notification.CreateParams) bool {
		return p.UserID == "owner-1" && p.Type == notification.TypeComment
	})).Return(createdNotification("n1", "owner-1"), nil).Once()

	handles := new(mockHandleResolver)
	handles.On("ResolveHandle", ctx, "ghost").Return("", nil).Once()

	processor := NewProcessor(store, handles, nil, zap.NewNop())
	event := events.DynamoDBEvent{Records: []events.DynamoDBEventRecord{
		commentRecord("evt-1", "carol-id", "post-1", "owner-1", "where is @ghost", nil),
	}}

	// Act
	outcomes := processor.ProcessBatch(ctx, event)

	// Assert: the unknown handle is silently dropped, not failed.
	require.Len(t, outcomes, 1)
	assert.NoError(t, outcomes[0].Err)
	assert.Equal(t, 1, outcomes[0].Created)
	store.AssertExpectations(t)
	handles.AssertExpectations(t)
}

func TestProcessor_ProcessBatch_ExplicitMentionIDsSkipHandleParsing(t *testing.T) {
	// Arrange: the record carries a pre-resolved mention list, so the
	// @handles in the text must not be parsed. @bob appears in the text
	// but was excluded upstream and must stay excluded.
	ctx := context.Background()
	store := new(mockNotificationStore)
	store.On("CreateNotification", ctx, mock.MatchedBy(func(p notification.CreateParams) bool {
		return p.UserID == "owner-1" && p.Type == notification.TypeComment
	})).Return(createdNotification("n1", "owner-1"), nil).Once()
	store.On("CreateNotification", ctx, mock.MatchedBy(func(p notification.CreateParams) bool {
		return p.UserID == "alice-id" && p.Type == notification.TypeMention
	})).Return(createdNotification("n2", "alice-id"), nil).Once()

	handles := new(mockHandleResolver)

	processor := NewProcessor(store, handles, nil, zap.NewNop())
	event := events.DynamoDBEvent{Records: []events.DynamoDBEventRecord{
		commentRecord("evt-1", "carol-id", "post-1", "owner-1", "@alice @bob look", []string{"alice-id"}),
	}}

	// Act
	outcomes := processor.ProcessBatch(ctx, event)

	// Assert: only the listed user is mentioned; no handle lookups run.
	require.Len(t, outcomes, 1)
	assert.Equal(t, 2, outcomes[0].Created)
	store.AssertExpectations(t)
	handles.AssertNotCalled(t, "ResolveHandle", mock.Anything, mock.Anything)
}

func TestProcessor_ProcessBatch_SettleAll(t *testing.T) {
	// Arrange: three records, the middle one failing at the store. The
	// other two must still settle with their own outcomes.
	ctx := context.Background()
	store := new(mockNotificationStore)
	store.On("CreateNotification", ctx, mock.MatchedBy(func(p notification.CreateParams) bool {
		return p.UserID == "owner-1"
	})).Return(createdNotification("n1", "owner-1"), nil).Once()
	store.On("CreateNotification", ctx, mock.MatchedBy(func(p notification.CreateParams) bool {
		return p.UserID == "owner-2"
	})).Return(nil, errors.NewStorageError("createNotification", assert.AnError)).Once()
	store.On("CreateNotification", ctx, mock.MatchedBy(func(p notification.CreateParams) bool {
		return p.UserID == "owner-3"
	})).Return(createdNotification("n3", "owner-3"), nil).Once()

	processor := NewProcessor(store, nil, nil, zap.NewNop())
	event := events.DynamoDBEvent{Records: []events.DynamoDBEventRecord{
		likeRecord("evt-1", "actor-1", "alice", "post-1", "owner-1"),
		likeRecord("evt-2", "actor-1", "alice", "post-2", "owner-2"),
		likeRecord("evt-3", "actor-1", "alice", "post-3", "owner-3"),
	}}

	// Act
	outcomes := processor.ProcessBatch(ctx, event)

	// Assert: outcomes keep input order, only the failed record carries
	// an error.
	require.Len(t, outcomes, 3)
	assert.Equal(t, "evt-1", outcomes[0].EventID)
	assert.NoError(t, outcomes[0].Err)
	assert.Equal(t, 1, outcomes[0].Created)

	assert.Equal(t, "evt-2", outcomes[1].EventID)
	assert.Error(t, outcomes[1].Err)
	assert.Equal(t, 0, outcomes[1].Created)

	assert.Equal(t, "evt-3", outcomes[2].EventID)
	assert.NoError(t, outcomes[2].Err)
	assert.Equal(t, 1, outcomes[2].Created)
	store.AssertExpectations(t)
}

func TestProcessor_ProcessBatch_PublishFailureIsBestEffort(t *testing.T) {
	// Arrange
	ctx := context.Background()
	store := new(mockNotificationStore)
	store.On("CreateNotification", ctx, mock.Anything).
		Return(createdNotification("n1", "owner-1"), nil).Once()

	publisher := new(mockPublisher)
	publisher.On("PublishNotificationCreated", ctx, mock.Anything).
		Return(assert.AnError).Once()

	processor := NewProcessor(store, nil, publisher, zap.NewNop())
	event := events.DynamoDBEvent{Records: []events.DynamoDBEventRecord{
		likeRecord("evt-1", "actor-1", "alice", "post-1", "owner-1"),
	}}

	// Act
	outcomes := processor.ProcessBatch(ctx, event)

	// Assert: the inbox entry exists, so a failed push does not fail the
	// record.
	require.Len(t, outcomes, 1)
	assert.NoError(t, outcomes[0].Err)
	assert.Equal(t, 1, outcomes[0].Created)
	publisher.AssertExpectations(t)
}

func TestParseInteraction_NonInteractionReturnsNil(t *testing.T) {
	record := events.DynamoDBEventRecord{
		EventName: "INSERT",
		Change: events.DynamoDBStreamRecord{
			NewImage: map[string]events.DynamoDBAttributeValue{
				"EntityType": events.NewStringAttribute("NOTIFICATION"),
			},
		},
	}

	interaction, err := ParseInteraction(record)

	assert.NoError(t, err)
	assert.Nil(t, interaction)
}

func TestParseInteraction_MissingImageReturnsNil(t *testing.T) {
	interaction, err := ParseInteraction(events.DynamoDBEventRecord{EventName: "INSERT"})

	assert.NoError(t, err)
	assert.Nil(t, interaction)
}

func TestParseInteraction_CommentFields(t *testing.T) {
	record := commentRecord("evt-1", "carol-id", "post-1", "owner-1", "hi @alice", []string{"bob-id"})

	interaction, err := ParseInteraction(record)

	require.NoError(t, err)
	require.NotNil(t, interaction)
	assert.Equal(t, EntityTypeComment, interaction.EntityType)
	assert.Equal(t, "carol-id", interaction.Actor.UserID)
	assert.Equal(t, "post-1", interaction.PostID)
	assert.Equal(t, "owner-1", interaction.PostOwnerID)
	assert.Equal(t, "hi @alice", interaction.Content)
	assert.Equal(t, []string{"bob-id"}, interaction.MentionedUserIDs)
}

func TestSummarize(t *testing.T) {
	// Arrange: one delivered record, one partially delivered failure,
	// one skip.
	outcomes := []RecordOutcome{
		{EventID: "evt-1", Created: 2},
		{EventID: "evt-2", Created: 1, Err: assert.AnError},
		{EventID: "evt-3", Skipped: true},
	}

	// Act
	summary := Summarize(outcomes)

	// Assert: created counts include partial deliveries on failed records.
	assert.Equal(t, 3, summary.Records)
	assert.Equal(t, 3, summary.Created)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 1, summary.Skipped)
}

func TestSummarize_Empty(t *testing.T) {
	assert.Equal(t, BatchSummary{}, Summarize(nil))
}
