package service

import (
	"context"
	"errors"

	"homehive/internal/models"
	"homehive/internal/observability"
	"homehive/internal/repository"
	"homehive/internal/validation"

	"go.opentelemetry.io/otel/attribute"
)

type MessagingService struct {
	messageRepo repository.MessageRepository
	userRepo    repository.UserRepository
	media       *MediaService
}

type SendMessageInput struct {
	SenderID   uint
	ReceiverID uint
	Text       string
	Media      *MediaFile
}

func NewMessagingService(
	messageRepo repository.MessageRepository,
	userRepo repository.UserRepository,
	media *MediaService,
) *MessagingService {
	return &MessagingService{
		messageRepo: messageRepo,
		userRepo:    userRepo,
		media:       media,
	}
}

// LoadConversation returns the full history between two users, oldest first.
func (s *MessagingService) LoadConversation(ctx context.Context, userID, peerID uint) ([]*models.Message, error) {
	if userID == 0 {
		return nil, models.NewUnauthorizedError("Sign in to read messages")
	}
	if peerID == 0 {
		return nil, models.NewValidationError("A conversation partner is required")
	}
	return s.messageRepo.Conversation(ctx, userID, peerID)
}

// SendMessage persists a message with optional media. The media is uploaded first;
// an upload failure leaves no row behind.
func (s *MessagingService) SendMessage(ctx context.Context, in SendMessageInput) (msg *models.Message, err error) {
	ctx, span := observability.StartSpan(ctx, "messaging", "send_message",
		attribute.Bool("message.has_media", in.Media != nil),
	)
	defer func() { observability.EndSpan(span, err) }()

	if in.SenderID == 0 {
		return nil, models.NewUnauthorizedError("Sign in to send messages")
	}
	text, err := validation.ValidateText(in.Text)
	if err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if text == "" && in.Media == nil {
		return nil, models.NewValidationError("Message must contain text or media")
	}
	if in.ReceiverID == 0 || in.ReceiverID == in.SenderID {
		return nil, models.NewValidationError("Choose someone else to message")
	}
	if _, err := s.userRepo.GetByID(ctx, in.ReceiverID); err != nil {
		return nil, err
	}

	var mediaURL string
	if in.Media != nil {
		mediaURL, err = s.media.UploadChatMedia(ctx, *in.Media)
		if err != nil {
			var appErr *models.AppError
			if errors.As(err, &appErr) {
				return nil, err
			}
			return nil, models.NewInternalError(err)
		}
	}

	msg = &models.Message{
		SenderID:   in.SenderID,
		ReceiverID: in.ReceiverID,
		Text:       text,
		MediaURL:   mediaURL,
	}
	if err := s.messageRepo.Create(ctx, msg); err != nil {
		if mediaURL != "" {
			s.media.Discard(ctx, mediaURL)
		}
		return nil, err
	}
	observability.RecordMessageSent(mediaURL != "")

	saved, err := s.messageRepo.GetByID(ctx, msg.ID)
	if err != nil {
		return msg, nil
	}
	return saved, nil
}

// Inbox returns one entry per peer with the latest message, newest first.
func (s *MessagingService) Inbox(ctx context.Context, userID uint) ([]models.ConversationSummary, error) {
	if userID == 0 {
		return nil, models.NewUnauthorizedError("Sign in to read messages")
	}
	recent, err := s.messageRepo.LatestPerPeer(ctx, userID)
	if err != nil {
		return nil, err
	}

	seen := make(map[uint]struct{})
	out := make([]models.ConversationSummary, 0)
	for _, m := range recent {
		peerID := m.PeerOf(userID)
		if _, ok := seen[peerID]; ok {
			continue
		}
		seen[peerID] = struct{}{}
		peer := m.Receiver
		if peerID == m.SenderID {
			peer = m.Sender
		}
		out = append(out, models.ConversationSummary{Peer: peer, LastMessage: m})
	}
	return out, nil
}
