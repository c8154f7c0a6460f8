// Package notification defines the notification inbox entities and their
// validation rules.
package notification

import (
	"time"
	"unicode/utf8"

	"pulse-backend/pkg/errors"
)

// Type enumerates the kinds of notifications the system can deliver.
type Type string

const (
	TypeLike         Type = "like"
	TypeComment      Type = "comment"
	TypeFollow       Type = "follow"
	TypeMention      Type = "mention"
	TypeReply        Type = "reply"
	TypeRepost       Type = "repost"
	TypeQuote        Type = "quote"
	TypeSystem       Type = "system"
	TypeAnnouncement Type = "announcement"
	TypeAchievement  Type = "achievement"
)

// IsValid reports whether t is a recognized notification type.
func (t Type) IsValid() bool {
	switch t {
	case TypeLike, TypeComment, TypeFollow, TypeMention, TypeReply,
		TypeRepost, TypeQuote, TypeSystem, TypeAnnouncement, TypeAchievement:
		return true
	}
	return false
}

// Status tracks the lifecycle of an inbox entry.
type Status string

const (
	StatusUnread   Status = "unread"
	StatusRead     Status = "read"
	StatusArchived Status = "archived"
)

// Priority influences client-side presentation and delivery urgency.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// IsValid reports whether p is a recognized priority.
func (p Priority) IsValid() bool {
	switch p {
	case PriorityLow, PriorityNormal, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// Delivery channels.
const (
	ChannelInApp = "in-app"
	ChannelPush  = "push"
	ChannelEmail = "email"
)

const (
	titleMaxLen   = 100
	messageMaxLen = 500

	// Notifications expire 30 days after creation via the table TTL.
	TTLDuration = 30 * 24 * time.Hour
)

// Actor identifies the user whose action produced the notification.
type Actor struct {
	UserID      string `json:"userId" dynamodbav:"UserID"`
	Handle      string `json:"handle" dynamodbav:"Handle"`
	DisplayName string `json:"displayName,omitempty" dynamodbav:"DisplayName,omitempty"`
	AvatarURL   string `json:"avatarUrl,omitempty" dynamodbav:"AvatarURL,omitempty"`
}

// Target points at the entity the notification refers to.
type Target struct {
	Type    string `json:"type" dynamodbav:"Type"`
	ID      string `json:"id" dynamodbav:"ID"`
	URL     string `json:"url,omitempty" dynamodbav:"URL,omitempty"`
	Preview string `json:"preview,omitempty" dynamodbav:"Preview,omitempty"`
}

// Notification is one inbox entry for one user.
type Notification struct {
	ID               string            `json:"id"`
	UserID           string            `json:"userId"`
	Type             Type              `json:"type"`
	Status           Status            `json:"status"`
	Title            string            `json:"title"`
	Message          string            `json:"message"`
	Priority         Priority          `json:"priority"`
	Actor            *Actor            `json:"actor,omitempty"`
	Target           *Target           `json:"target,omitempty"`
	Metadata         map[string]string `json:"metadata,omitempty"`
	DeliveryChannels []string          `json:"deliveryChannels"`
	Sound            bool              `json:"sound"`
	Vibration        bool              `json:"vibration"`
	GroupID          string            `json:"groupId,omitempty"`
	ExpiresAt        *time.Time        `json:"expiresAt,omitempty"`
	CreatedAt        time.Time         `json:"createdAt"`
	UpdatedAt        time.Time         `json:"updatedAt"`
	ReadAt           *time.Time        `json:"readAt,omitempty"`
}

// CreateParams carries the caller-supplied fields for a new notification.
// Zero-valued optional fields receive defaults in ApplyDefaults.
type CreateParams struct {
	UserID           string
	Type             Type
	Title            string
	Message          string
	Priority         Priority
	Actor            *Actor
	Target           *Target
	Metadata         map[string]string
	DeliveryChannels []string
	Sound            *bool
	Vibration        *bool
	GroupID          string
	ExpiresAt        *time.Time
}

// Validate checks length and enum constraints on the creation parameters.
func (p *CreateParams) Validate() error {
	if p.UserID == "" {
		return errors.NewValidationError("userId is required")
	}
	if !p.Type.IsValid() {
		return errors.NewValidationError("unrecognized notification type")
	}
	if n := utf8.RuneCountInString(p.Title); n < 1 || n > titleMaxLen {
		return errors.NewValidationError("title must be between 1 and 100 characters")
	}
	if n := utf8.RuneCountInString(p.Message); n < 1 || n > messageMaxLen {
		return errors.NewValidationError("message must be between 1 and 500 characters")
	}
	if p.Priority != "" && !p.Priority.IsValid() {
		return errors.NewValidationError("unrecognized priority")
	}
	return nil
}

// ApplyDefaults fills in the documented defaults: priority normal,
// in-app delivery, sound and vibration enabled.
func (p *CreateParams) ApplyDefaults() {
	if p.Priority == "" {
		p.Priority = PriorityNormal
	}
	if len(p.DeliveryChannels) == 0 {
		p.DeliveryChannels = []string{ChannelInApp}
	}
	if p.Sound == nil {
		enabled := true
		p.Sound = &enabled
	}
	if p.Vibration == nil {
		enabled := true
		p.Vibration = &enabled
	}
}
