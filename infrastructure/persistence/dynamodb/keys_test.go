package dynamodb

import (
	"fmt"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pulse-backend/pkg/errors"
)

func TestFeedSK_Format(t *testing.T) {
	// Arrange
	createdAt := time.UnixMilli(1700000000000)

	// Act
	sk := feedSK(createdAt, "post-1")

	// Assert
	assert.Equal(t, "FEED#1700000000000#post-1", sk)
}

func TestFeedSK_ZeroPadsTimestamp(t *testing.T) {
	// Arrange
	createdAt := time.UnixMilli(42)

	// Act
	sk := feedSK(createdAt, "post-1")

	// Assert
	assert.Equal(t, "FEED#0000000000042#post-1", sk)
}

func TestFeedSK_LexicographicOrderMatchesTime(t *testing.T) {
	// Arrange
	earlier := time.UnixMilli(999999999999)
	later := time.UnixMilli(1000000000000)

	// Act
	skEarlier := feedSK(earlier, "a")
	skLater := feedSK(later, "a")

	// Assert
	assert.Less(t, skEarlier, skLater)
}

func TestPostIDFromFeedSK(t *testing.T) {
	tests := []struct {
		name string
		sk   string
		want string
	}{
		{"well formed", "FEED#1700000000000#post-1", "post-1"},
		{"post id containing separator", "FEED#1700000000000#post#1", "post#1"},
		{"missing separator", "FEED#1700000000000", ""},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, postIDFromFeedSK(tt.sk))
		})
	}
}

func TestNotificationSK_Format(t *testing.T) {
	// Arrange
	createdAt := time.UnixMilli(1700000000000)

	// Act
	sk := notificationSK(createdAt, "notif-1")

	// Assert
	assert.Equal(t, "NOTIF#1700000000000#notif-1", sk)
}

func TestKeyBuilders(t *testing.T) {
	assert.Equal(t, "USER#u1", userPK("u1"))
	assert.Equal(t, "POST#p1", postPK("p1"))
	assert.Equal(t, "LIKE#USER#u1", likeSK("u1"))
	assert.Equal(t, "NOTIFID#n1", notificationIDKey("n1"))
	assert.Equal(t, "UNREAD#USER#u1", unreadPK("u1"))
}

func TestHandlePK_Lowercases(t *testing.T) {
	assert.Equal(t, "HANDLE#alice", handlePK("Alice"))
	assert.Equal(t, "HANDLE#alice", handlePK("alice"))
}

func TestEncodeDecodeCursor_RoundTrip(t *testing.T) {
	// Arrange
	key := map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: "USER#u1"},
		"SK": &types.AttributeValueMemberS{Value: "FEED#1700000000000#post-1"},
	}

	// Act
	cursor, err := encodeCursor(key)
	require.NoError(t, err)
	decoded, err := decodeCursor(cursor)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, key, decoded)
}

func TestEncodeCursor_EmptyKey(t *testing.T) {
	cursor, err := encodeCursor(nil)

	require.NoError(t, err)
	assert.Empty(t, cursor)
}

func TestEncodeCursor_NonStringAttribute(t *testing.T) {
	// Arrange
	key := map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberN{Value: "1"},
	}

	// Act
	_, err := encodeCursor(key)

	// Assert
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeInternal))
}

func TestDecodeCursor_Empty(t *testing.T) {
	decoded, err := decodeCursor("")

	require.NoError(t, err)
	assert.Nil(t, decoded)
}

func TestDecodeCursor_Malformed(t *testing.T) {
	tests := []struct {
		name   string
		cursor string
	}{
		{"not base64", "!!!not-base64!!!"},
		{"not json", "bm90LWpzb24"},
		{"empty object", "e30"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := decodeCursor(tt.cursor)

			require.Error(t, err)
			assert.True(t, errors.IsValidation(err), fmt.Sprintf("expected validation error, got %v", err))
		})
	}
}
