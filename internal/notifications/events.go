package notifications

import (
	"encoding/json"
	"fmt"
)

// Realtime event types delivered over /api/ws.
const (
	EventListingCreated           = "listing_created"
	EventListingEngagementUpdated = "listing_engagement_updated"
	EventCommentCreated           = "comment_created"
	EventMessageCreated           = "message_created"
	EventMessagesDropped          = "messages_dropped"
)

// Event is the envelope every realtime payload is wrapped in.
type Event struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// EngagementPayload carries the refreshed counts of a listing.
type EngagementPayload struct {
	ListingID     uint  `json:"listing_id"`
	LikesCount    int64 `json:"likes_count"`
	CommentsCount int64 `json:"comments_count"`
}

// Encode wraps payload in an Event envelope and returns it as a string ready to publish.
func Encode(eventType string, payload any) (string, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	out, err := json.Marshal(Event{Type: eventType, Payload: raw})
	if err != nil {
		return "", fmt.Errorf("marshal %s event: %w", eventType, err)
	}
	return string(out), nil
}

// Decode parses an Event envelope.
func Decode(data []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return Event{}, err
	}
	if ev.Type == "" {
		return Event{}, fmt.Errorf("event without type")
	}
	return ev, nil
}
