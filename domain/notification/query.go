package notification

import "time"

// Query selects a filtered page of a user's inbox.
type Query struct {
	UserID   string
	Status   Status
	Type     Type
	Priority Priority
	Limit    int
	Cursor   string
}

// Page is one page of notifications, newest first, plus the user's
// total unread count.
type Page struct {
	Items       []Notification `json:"items"`
	NextCursor  string         `json:"nextCursor,omitempty"`
	UnreadCount int            `json:"unreadCount"`
}

// MarkAllFilter narrows MarkAllAsRead to a type and/or creation cutoff.
type MarkAllFilter struct {
	Type       Type
	BeforeDate *time.Time
}

// BatchOp is a bulk operation over notification IDs.
type BatchOp string

const (
	BatchOpMarkRead BatchOp = "mark-read"
	BatchOpDelete   BatchOp = "delete"
	BatchOpArchive  BatchOp = "archive"
)

// IsValid reports whether op is a recognized batch operation.
func (op BatchOp) IsValid() bool {
	switch op {
	case BatchOpMarkRead, BatchOpDelete, BatchOpArchive:
		return true
	}
	return false
}

// BatchFailure records one notification a batch operation could not
// process.
type BatchFailure struct {
	ID    string `json:"id"`
	Error string `json:"error"`
}

// BatchResult reports a batch operation's outcome. Per-item failure is
// represented here, never raised.
type BatchResult struct {
	ProcessedCount int            `json:"processedCount"`
	FailedCount    int            `json:"failedCount"`
	Failures       []BatchFailure `json:"failures,omitempty"`
}
