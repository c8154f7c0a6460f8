// Package feed defines the materialized feed item entity.
package feed

import (
	"regexp"
	"time"

	"pulse-backend/pkg/errors"
)

// identifierPattern matches the user/post identifiers accepted by the API.
var identifierPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// Feed items expire 7 days after fanout via the table TTL.
const TTLDuration = 7 * 24 * time.Hour

// Item represents "post P appears in user U's feed".
type Item struct {
	UserID            string     `json:"userId"`
	PostID            string     `json:"postId"`
	AuthorID          string     `json:"authorId"`
	AuthorHandle      string     `json:"authorHandle"`
	AuthorDisplayName string     `json:"authorDisplayName,omitempty"`
	AuthorAvatarURL   string     `json:"authorAvatarUrl,omitempty"`
	Caption           string     `json:"caption,omitempty"`
	ImageURL          string     `json:"imageUrl,omitempty"`
	ThumbnailURL      string     `json:"thumbnailUrl,omitempty"`
	LikesCount        int        `json:"likesCount"`
	CommentsCount     int        `json:"commentsCount"`
	IsLiked           bool       `json:"isLiked"`
	CreatedAt         time.Time  `json:"createdAt"`
	FeedItemCreatedAt time.Time  `json:"feedItemCreatedAt"`
	IsRead            bool       `json:"isRead,omitempty"`
	ReadAt            *time.Time `json:"readAt,omitempty"`
}

// WriteParams carries the fields needed to materialize one feed item.
type WriteParams struct {
	UserID            string
	PostID            string
	AuthorID          string
	AuthorHandle      string
	AuthorDisplayName string
	AuthorAvatarURL   string
	Caption           string
	ImageURL          string
	ThumbnailURL      string
	LikesCount        int
	CommentsCount     int
	IsLiked           bool
	CreatedAt         time.Time
}

// Validate checks that the identifiers are well formed and the author
// handle is present.
func (p *WriteParams) Validate() error {
	if !ValidIdentifier(p.UserID) {
		return errors.NewValidationError("malformed userId")
	}
	if !ValidIdentifier(p.PostID) {
		return errors.NewValidationError("malformed postId")
	}
	if !ValidIdentifier(p.AuthorID) {
		return errors.NewValidationError("malformed authorId")
	}
	if p.AuthorHandle == "" {
		return errors.NewValidationError("authorHandle is required")
	}
	return nil
}

// ValidIdentifier reports whether s is an acceptable user/post identifier.
func ValidIdentifier(s string) bool {
	return identifierPattern.MatchString(s)
}
