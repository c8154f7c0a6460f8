package feed

// Query selects a page of a user's materialized feed.
type Query struct {
	UserID string
	Limit  int
	Cursor string
}

// Page is one page of unread feed items, newest first.
type Page struct {
	Items      []Item `json:"items"`
	NextCursor string `json:"nextCursor,omitempty"`
}

// FailedItem identifies a feed item a batch write could not apply.
type FailedItem struct {
	UserID string `json:"userId"`
	PostID string `json:"postId"`
}

// BatchResult reports the outcome of a batch feed write. Partial failure
// is represented here, never raised.
type BatchResult struct {
	SuccessCount int          `json:"successCount"`
	FailedItems  []FailedItem `json:"failedItems,omitempty"`
}
