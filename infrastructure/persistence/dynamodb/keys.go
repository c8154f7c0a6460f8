package dynamodb

import (
	"fmt"
	"strings"
	"time"
)

// Key prefixes for the single-table layout. Every item lives under a
// composite (PK, SK) pair; GSI1 maps notification IDs back to their
// owner, GSI2 is the sparse unread index.
const (
	userKeyPrefix   = "USER#"
	postKeyPrefix   = "POST#"
	feedKeyPrefix   = "FEED#"
	notifKeyPrefix  = "NOTIF#"
	likeKeyPrefix   = "LIKE#USER#"
	notifIDPrefix   = "NOTIFID#"
	unreadKeyPrefix = "UNREAD#USER#"
	handleKeyPrefix = "HANDLE#"
)

// profileSK is the sort key for handle lookup items.
const profileSK = "PROFILE"

// postMetaSK is the sort key for a post's metadata item, which carries
// the owner and the like counter.
const postMetaSK = "METADATA"

// userPK builds the partition key for a user's feed and inbox items.
func userPK(userID string) string {
	return userKeyPrefix + userID
}

// postPK builds the partition key for a post's like items.
func postPK(postID string) string {
	return postKeyPrefix + postID
}

// feedSK builds the sort key for a feed item. The zero-padded millisecond
// timestamp keeps the partition insertion-ordered; the post ID suffix
// keeps same-timestamp posts unique.
func feedSK(createdAt time.Time, postID string) string {
	return fmt.Sprintf("%s%013d#%s", feedKeyPrefix, createdAt.UnixMilli(), postID)
}

// postIDFromFeedSK recovers the post ID from a feed sort key.
func postIDFromFeedSK(sk string) string {
	rest := strings.TrimPrefix(sk, feedKeyPrefix)
	if i := strings.IndexByte(rest, '#'); i >= 0 {
		return rest[i+1:]
	}
	return ""
}

// notificationSK builds the sort key for a notification.
func notificationSK(createdAt time.Time, notificationID string) string {
	return fmt.Sprintf("%s%013d#%s", notifKeyPrefix, createdAt.UnixMilli(), notificationID)
}

// notificationIDKey builds the GSI1 partition key for direct lookup of a
// notification by its ID.
func notificationIDKey(notificationID string) string {
	return notifIDPrefix + notificationID
}

// unreadPK builds the GSI2 partition key for a user's sparse unread
// index. The projection exists only while the notification is unread.
func unreadPK(userID string) string {
	return unreadKeyPrefix + userID
}

// likeSK builds the sort key for a like item; (post PK, like SK) is the
// uniqueness point for one user liking one post.
func likeSK(userID string) string {
	return likeKeyPrefix + userID
}

// handlePK builds the partition key for a handle lookup item. Handles are
// case-insensitive, so the key is always lowercased.
func handlePK(handle string) string {
	return handleKeyPrefix + strings.ToLower(handle)
}
