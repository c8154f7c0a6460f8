package fanout

import (
	"github.com/aws/aws-lambda-go/events"

	"pulse-backend/pkg/errors"
)

// Interaction kinds carried on the stream. Only these entity types fan out
// into notifications; everything else on the table is ignored.
const (
	EntityTypeLike    = "LIKE"
	EntityTypeComment = "COMMENT"
	EntityTypeFollow  = "FOLLOW"
)

// Actor identifies who performed the interaction.
type Actor struct {
	UserID      string
	Handle      string
	DisplayName string
	AvatarURL   string
}

// InteractionEvent is a stream record decoded into the fields the fanout
// pipeline needs. Fields beyond EntityType and the actor are populated per
// kind: likes and comments carry post fields, follows carry the followee.
type InteractionEvent struct {
	EntityType string
	Actor      Actor

	// Like and comment fields.
	PostID       string
	PostOwnerID  string
	ThumbnailURL string

	// Comment fields.
	Content          string
	MentionedUserIDs []string

	// Follow fields.
	FolloweeID string
}

// ParseInteraction decodes a stream record's new image into an
// InteractionEvent. Records whose entity type is not a known interaction
// return (nil, nil) so callers can skip them without treating the record
// as failed.
func ParseInteraction(record events.DynamoDBEventRecord) (*InteractionEvent, error) {
	image := record.Change.NewImage
	if image == nil {
		return nil, nil
	}

	entityType := stringAttr(image, "EntityType")
	if entityType != EntityTypeLike && entityType != EntityTypeComment && entityType != EntityTypeFollow {
		return nil, nil
	}

	event := &InteractionEvent{
		EntityType: entityType,
		Actor: Actor{
			UserID:      stringAttr(image, "UserID"),
			Handle:      stringAttr(image, "UserHandle"),
			DisplayName: stringAttr(image, "UserDisplayName"),
			AvatarURL:   stringAttr(image, "UserAvatarURL"),
		},
	}
	if event.Actor.UserID == "" {
		return nil, errors.NewValidationError("stream record is missing UserID")
	}

	switch entityType {
	case EntityTypeLike, EntityTypeComment:
		event.PostID = stringAttr(image, "PostID")
		event.PostOwnerID = stringAttr(image, "PostOwnerID")
		event.ThumbnailURL = stringAttr(image, "ThumbnailURL")
		if event.PostID == "" || event.PostOwnerID == "" {
			return nil, errors.NewValidationError("stream record is missing PostID or PostOwnerID")
		}
		if entityType == EntityTypeComment {
			event.Content = stringAttr(image, "Content")
			event.MentionedUserIDs = stringListAttr(image, "MentionedUserIDs")
		}
	case EntityTypeFollow:
		event.FolloweeID = stringAttr(image, "FolloweeID")
		if event.FolloweeID == "" {
			return nil, errors.NewValidationError("stream record is missing FolloweeID")
		}
	}

	return event, nil
}

func stringAttr(image map[string]events.DynamoDBAttributeValue, name string) string {
	attr, ok := image[name]
	if !ok || attr.DataType() != events.DataTypeString {
		return ""
	}
	return attr.String()
}

func stringListAttr(image map[string]events.DynamoDBAttributeValue, name string) []string {
	attr, ok := image[name]
	if !ok || attr.DataType() != events.DataTypeList {
		return nil
	}
	var values []string
	for _, element := range attr.List() {
		if element.DataType() == events.DataTypeString {
			values = append(values, element.String())
		}
	}
	return values
}
