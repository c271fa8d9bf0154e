package server

import (
	"context"
	"log/slog"

	"homehive/internal/middleware"
	"homehive/internal/models"
	"homehive/internal/notifications"
)

// publishBroadcastEvent sends an event to every connected user. With Redis the
// subscriber delivers it on every instance, this one included; without it the
// local hub delivers directly.
func (s *Server) publishBroadcastEvent(ctx context.Context, eventType string, payload any) {
	s.publish(ctx, notifications.BroadcastChannel(), eventType, payload, func(msg string) error {
		return s.notifier.PublishBroadcast(ctx, msg)
	})
}

// publishConversationEvent sends an event to both participants of a direct conversation.
func (s *Server) publishConversationEvent(ctx context.Context, userA, userB uint, eventType string, payload any) {
	s.publish(ctx, notifications.ConversationChannel(userA, userB), eventType, payload, func(msg string) error {
		return s.notifier.PublishConversation(ctx, userA, userB, msg)
	})
}

func (s *Server) publish(ctx context.Context, channel, eventType string, payload any, viaRedis func(msg string) error) {
	msg, err := notifications.Encode(eventType, payload)
	if err != nil {
		middleware.Logger.ErrorContext(ctx, "failed to encode realtime event",
			slog.String("event", eventType),
			slog.String("error", err.Error()),
		)
		return
	}

	if s.notifier != nil {
		// Events are fire-and-forget; the request has already succeeded.
		if err := viaRedis(msg); err != nil {
			middleware.Logger.WarnContext(ctx, "failed to publish realtime event",
				slog.String("event", eventType),
				slog.String("channel", channel),
				slog.String("error", err.Error()),
			)
		}
		return
	}
	if s.hub != nil {
		s.hub.Deliver(channel, msg)
	}
}

// publishEngagementUpdate broadcasts the current like and comment totals of a listing.
func (s *Server) publishEngagementUpdate(ctx context.Context, listingID uint) {
	likes, comments, err := s.engagementService.Counts(ctx, listingID)
	if err != nil {
		middleware.Logger.WarnContext(ctx, "failed to load engagement counts",
			slog.Uint64("listing_id", uint64(listingID)),
			slog.String("error", err.Error()),
		)
		return
	}
	s.publishBroadcastEvent(ctx, notifications.EventListingEngagementUpdated, notifications.EngagementPayload{
		ListingID:     listingID,
		LikesCount:    likes,
		CommentsCount: comments,
	})
}

func (s *Server) publishListingCreated(ctx context.Context, listing *models.Listing) {
	s.publishBroadcastEvent(ctx, notifications.EventListingCreated, listing)
}

func (s *Server) publishCommentCreated(ctx context.Context, comment *models.Comment) {
	s.publishBroadcastEvent(ctx, notifications.EventCommentCreated, comment)
}

func (s *Server) publishMessageCreated(ctx context.Context, msg *models.Message) {
	s.publishConversationEvent(ctx, msg.SenderID, msg.ReceiverID, notifications.EventMessageCreated, msg)
}
