package dynamodb

import (
	"context"
	"fmt"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"pulse-backend/pkg/errors"
)

func rawPostMeta(postID, ownerID string, likesCount int) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK":         &types.AttributeValueMemberS{Value: postPK(postID)},
		"SK":         &types.AttributeValueMemberS{Value: postMetaSK},
		"OwnerID":    &types.AttributeValueMemberS{Value: ownerID},
		"LikesCount": &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", likesCount)},
	}
}

func rawLikeProjection(postID, userID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: postPK(postID)},
		"SK": &types.AttributeValueMemberS{Value: likeSK(userID)},
	}
}

func TestLikeStore_LikePost_FirstLikeIncrements(t *testing.T) {
	// Arrange
	ctx := context.Background()
	mockClient := new(mockDynamoAPI)
	mockClient.On("GetItem", ctx, mock.Anything).Return(&dynamodb.GetItemOutput{
		Item: rawPostMeta("post-1", "author-1", 0),
	}, nil).Once()
	mockClient.On("PutItem", ctx, mock.MatchedBy(func(in *dynamodb.PutItemInput) bool {
		owner, ok := in.Item["PostOwnerID"].(*types.AttributeValueMemberS)
		return aws.ToString(in.ConditionExpression) == "attribute_not_exists(PK)" &&
			ok && owner.Value == "author-1"
	})).Return(&dynamodb.PutItemOutput{}, nil).Once()
	mockClient.On("UpdateItem", ctx, mock.MatchedBy(func(in *dynamodb.UpdateItemInput) bool {
		return aws.ToString(in.UpdateExpression) == "SET LikesCount = if_not_exists(LikesCount, :zero) + :one"
	})).Return(&dynamodb.UpdateItemOutput{
		Attributes: map[string]types.AttributeValue{
			"LikesCount": &types.AttributeValueMemberN{Value: "1"},
		},
	}, nil).Once()

	store := NewLikeStore(mockClient, "pulse", zap.NewNop())

	// Act
	status, err := store.LikePost(ctx, "user-1", "post-1")

	// Assert
	require.NoError(t, err)
	assert.True(t, status.IsLiked)
	assert.Equal(t, 1, status.LikesCount)
	mockClient.AssertExpectations(t)
}

func TestLikeStore_LikePost_DuplicateDoesNotIncrementTwice(t *testing.T) {
	// Arrange
	ctx := context.Background()
	mockClient := new(mockDynamoAPI)
	mockClient.On("GetItem", ctx, mock.Anything).Return(&dynamodb.GetItemOutput{
		Item: rawPostMeta("post-1", "author-1", 5),
	}, nil).Once()
	mockClient.On("PutItem", ctx, mock.Anything).
		Return(nil, &types.ConditionalCheckFailedException{}).Once()

	store := NewLikeStore(mockClient, "pulse", zap.NewNop())

	// Act
	status, err := store.LikePost(ctx, "user-1", "post-1")

	// Assert: the duplicate reports current state without touching the
	// counter.
	require.NoError(t, err)
	assert.True(t, status.IsLiked)
	assert.Equal(t, 5, status.LikesCount)
	mockClient.AssertNotCalled(t, "UpdateItem")
	mockClient.AssertExpectations(t)
}

func TestLikeStore_LikePost_MissingPost(t *testing.T) {
	// Arrange
	ctx := context.Background()
	mockClient := new(mockDynamoAPI)
	mockClient.On("GetItem", ctx, mock.Anything).
		Return(&dynamodb.GetItemOutput{}, nil).Once()

	store := NewLikeStore(mockClient, "pulse", zap.NewNop())

	// Act
	_, err := store.LikePost(ctx, "user-1", "ghost-post")

	// Assert
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
	mockClient.AssertNotCalled(t, "PutItem")
}

func TestLikeStore_LikePost_MalformedIdentifiers(t *testing.T) {
	mockClient := new(mockDynamoAPI)
	store := NewLikeStore(mockClient, "pulse", zap.NewNop())

	_, err := store.LikePost(context.Background(), "no spaces", "post-1")
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))

	_, err = store.LikePost(context.Background(), "user-1", "post/1")
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))
	mockClient.AssertNotCalled(t, "GetItem")
}

func TestLikeStore_UnlikePost_MalformedIdentifiers(t *testing.T) {
	mockClient := new(mockDynamoAPI)
	store := NewLikeStore(mockClient, "pulse", zap.NewNop())

	_, err := store.UnlikePost(context.Background(), "no spaces", "post-1")
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))

	_, err = store.UnlikePost(context.Background(), "user-1", "post/1")
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))
	mockClient.AssertNotCalled(t, "DeleteItem")
}

func TestLikeStore_UnlikePost_DecrementsExistingLike(t *testing.T) {
	// Arrange
	ctx := context.Background()
	mockClient := new(mockDynamoAPI)
	mockClient.On("DeleteItem", ctx, mock.Anything).Return(&dynamodb.DeleteItemOutput{
		Attributes: rawLikeProjection("post-1", "user-1"),
	}, nil).Once()
	mockClient.On("UpdateItem", ctx, mock.MatchedBy(func(in *dynamodb.UpdateItemInput) bool {
		return aws.ToString(in.ConditionExpression) == "LikesCount >= :one"
	})).Return(&dynamodb.UpdateItemOutput{
		Attributes: map[string]types.AttributeValue{
			"LikesCount": &types.AttributeValueMemberN{Value: "4"},
		},
	}, nil).Once()

	store := NewLikeStore(mockClient, "pulse", zap.NewNop())

	// Act
	status, err := store.UnlikePost(ctx, "user-1", "post-1")

	// Assert
	require.NoError(t, err)
	assert.False(t, status.IsLiked)
	assert.Equal(t, 4, status.LikesCount)
	mockClient.AssertExpectations(t)
}

func TestLikeStore_UnlikePost_NonexistentLikeIsNoop(t *testing.T) {
	// Arrange
	ctx := context.Background()
	mockClient := new(mockDynamoAPI)
	mockClient.On("DeleteItem", ctx, mock.Anything).
		Return(&dynamodb.DeleteItemOutput{}, nil).Once()

	store := NewLikeStore(mockClient, "pulse", zap.NewNop())

	// Act
	status, err := store.UnlikePost(ctx, "user-1", "post-1")

	// Assert: no like removed, no counter mutation.
	require.NoError(t, err)
	assert.False(t, status.IsLiked)
	assert.Equal(t, 0, status.LikesCount)
	mockClient.AssertNotCalled(t, "UpdateItem")
	mockClient.AssertExpectations(t)
}

func TestLikeStore_UnlikePost_CounterNeverGoesNegative(t *testing.T) {
	// Arrange: the like item existed but the counter is already zero, so
	// the guarded decrement is rejected.
	ctx := context.Background()
	mockClient := new(mockDynamoAPI)
	mockClient.On("DeleteItem", ctx, mock.Anything).Return(&dynamodb.DeleteItemOutput{
		Attributes: rawLikeProjection("post-1", "user-1"),
	}, nil).Once()
	mockClient.On("UpdateItem", ctx, mock.Anything).
		Return(nil, &types.ConditionalCheckFailedException{}).Once()

	store := NewLikeStore(mockClient, "pulse", zap.NewNop())

	// Act
	status, err := store.UnlikePost(ctx, "user-1", "post-1")

	// Assert
	require.NoError(t, err)
	assert.False(t, status.IsLiked)
	assert.Equal(t, 0, status.LikesCount)
	mockClient.AssertExpectations(t)
}

func TestLikeStore_GetPostLikeStatus(t *testing.T) {
	// Arrange
	ctx := context.Background()
	mockClient := new(mockDynamoAPI)
	mockClient.On("BatchGetItem", ctx, mock.Anything).Return(&dynamodb.BatchGetItemOutput{
		Responses: map[string][]map[string]types.AttributeValue{
			"pulse": {
				rawLikeProjection("post-1", "user-1"),
				rawPostMeta("post-1", "author-1", 12),
			},
		},
	}, nil).Once()

	store := NewLikeStore(mockClient, "pulse", zap.NewNop())

	// Act
	status, err := store.GetPostLikeStatus(ctx, "user-1", "post-1")

	// Assert
	require.NoError(t, err)
	assert.True(t, status.IsLiked)
	assert.Equal(t, 12, status.LikesCount)
	mockClient.AssertExpectations(t)
}

func TestLikeStore_GetPostLikeStatus_NotLiked(t *testing.T) {
	// Arrange
	ctx := context.Background()
	mockClient := new(mockDynamoAPI)
	mockClient.On("BatchGetItem", ctx, mock.Anything).Return(&dynamodb.BatchGetItemOutput{
		Responses: map[string][]map[string]types.AttributeValue{
			"pulse": {
				rawPostMeta("post-1", "author-1", 3),
			},
		},
	}, nil).Once()

	store := NewLikeStore(mockClient, "pulse", zap.NewNop())

	// Act
	status, err := store.GetPostLikeStatus(ctx, "user-1", "post-1")

	// Assert
	require.NoError(t, err)
	assert.False(t, status.IsLiked)
	assert.Equal(t, 3, status.LikesCount)
}

func TestLikeStore_GetLikeStatusesByPostIDs(t *testing.T) {
	// Arrange
	ctx := context.Background()
	mockClient := new(mockDynamoAPI)
	mockClient.On("BatchGetItem", ctx, mock.MatchedBy(func(in *dynamodb.BatchGetItemInput) bool {
		// Two keys per post: the like projection and the metadata item.
		return len(in.RequestItems["pulse"].Keys) == 6
	})).Return(&dynamodb.BatchGetItemOutput{
		Responses: map[string][]map[string]types.AttributeValue{
			"pulse": {
				rawLikeProjection("post-1", "user-1"),
				rawPostMeta("post-1", "author-1", 10),
				rawPostMeta("post-2", "author-1", 2),
				rawLikeProjection("post-3", "user-1"),
				rawPostMeta("post-3", "author-2", 1),
			},
		},
	}, nil).Once()

	store := NewLikeStore(mockClient, "pulse", zap.NewNop())

	// Act
	statuses, err := store.GetLikeStatusesByPostIDs(ctx, "user-1", []string{"post-1", "post-2", "post-3"})

	// Assert: every requested post appears, absent likes report false.
	require.NoError(t, err)
	require.Len(t, statuses, 3)
	assert.True(t, statuses["post-1"].IsLiked)
	assert.Equal(t, 10, statuses["post-1"].LikesCount)
	assert.False(t, statuses["post-2"].IsLiked)
	assert.Equal(t, 2, statuses["post-2"].LikesCount)
	assert.True(t, statuses["post-3"].IsLiked)
	assert.Equal(t, 1, statuses["post-3"].LikesCount)
	mockClient.AssertExpectations(t)
}

func TestLikeStore_GetLikeStatusesByPostIDs_ChunksAt50Posts(t *testing.T) {
	// Arrange
	ctx := context.Background()
	postIDs := make([]string, 75)
	for i := range postIDs {
		postIDs[i] = fmt.Sprintf("post-%d", i)
	}

	mockClient := new(mockDynamoAPI)
	mockClient.On("BatchGetItem", ctx, mock.MatchedBy(func(in *dynamodb.BatchGetItemInput) bool {
		return len(in.RequestItems["pulse"].Keys) == 100
	})).Return(&dynamodb.BatchGetItemOutput{}, nil).Once()
	mockClient.On("BatchGetItem", ctx, mock.MatchedBy(func(in *dynamodb.BatchGetItemInput) bool {
		return len(in.RequestItems["pulse"].Keys) == 50
	})).Return(&dynamodb.BatchGetItemOutput{}, nil).Once()

	store := NewLikeStore(mockClient, "pulse", zap.NewNop())

	// Act
	statuses, err := store.GetLikeStatusesByPostIDs(ctx, "user-1", postIDs)

	// Assert
	require.NoError(t, err)
	assert.Len(t, statuses, 75)
	mockClient.AssertExpectations(t)
}
