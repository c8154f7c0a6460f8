// Package like defines the like relationship between a user and a post.
package like

import "time"

// Like represents "user U liked post P". At most one exists per
// (user, post) pair; uniqueness is enforced by the store's creation
// precondition, not application logic.
type Like struct {
	UserID      string    `json:"userId"`
	PostID      string    `json:"postId"`
	PostOwnerID string    `json:"postOwnerId"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Status is the result of a like/unlike mutation or an existence check.
type Status struct {
	PostID     string `json:"postId"`
	IsLiked    bool   `json:"isLiked"`
	LikesCount int    `json:"likesCount"`
}
