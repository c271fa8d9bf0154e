package repository

import (
	"context"

	"homehive/internal/models"
	"homehive/internal/observability"

	"gorm.io/gorm"
)

// MessageRepository defines persistence operations for direct messages.
type MessageRepository interface {
	Create(ctx context.Context, msg *models.Message) error
	GetByID(ctx context.Context, id uint) (*models.Message, error)
	Conversation(ctx context.Context, userA, userB uint) ([]*models.Message, error)
	LatestPerPeer(ctx context.Context, userID uint) ([]*models.Message, error)
}

type messageRepository struct {
	db     *gorm.DB
	logger *observability.RepoLogger
}

// NewMessageRepository creates a new MessageRepository.
func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &messageRepository{db: db, logger: observability.NewRepoLogger("messages")}
}

func (r *messageRepository) Create(ctx context.Context, msg *models.Message) error {
	defer observability.TrackQuery("create", "messages")()
	if err := r.db.WithContext(ctx).Omit("Sender", "Receiver").Create(msg).Error; err != nil {
		r.logger.LogError(ctx, err, "create")
		return models.NewInternalError(err)
	}
	r.logger.LogCreate(ctx, map[string]interface{}{"message_id": msg.ID, "sender_id": msg.SenderID, "receiver_id": msg.ReceiverID})
	return nil
}

func (r *messageRepository) GetByID(ctx context.Context, id uint) (*models.Message, error) {
	var msg models.Message
	if err := r.db.WithContext(ctx).Preload("Sender").Preload("Receiver").First(&msg, id).Error; err != nil {
		return nil, notFoundOr(err, "Message", id)
	}
	fillParticipants([]*models.Message{&msg})
	return &msg, nil
}

// Conversation returns every message exchanged between the two users in send order.
func (r *messageRepository) Conversation(ctx context.Context, userA, userB uint) ([]*models.Message, error) {
	defer observability.TrackQuery("conversation", "messages")()
	var msgs []*models.Message
	if err := r.db.WithContext(ctx).
		Preload("Sender").
		Preload("Receiver").
		Where("(sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)", userA, userB, userB, userA).
		Order("created_at ASC").
		Order("id ASC").
		Find(&msgs).Error; err != nil {
		r.logger.LogError(ctx, err, "conversation")
		return nil, models.NewInternalError(err)
	}
	fillParticipants(msgs)
	return msgs, nil
}

// LatestPerPeer returns the newest message of every conversation the user is part
// of, newest conversation first.
func (r *messageRepository) LatestPerPeer(ctx context.Context, userID uint) ([]*models.Message, error) {
	defer observability.TrackQuery("latest_per_peer", "messages")()
	db := readDB(r.db).WithContext(ctx)
	latest := db.Model(&models.Message{}).
		Select("MAX(id)").
		Where("sender_id = ? OR receiver_id = ?", userID, userID).
		// With one side fixed to userID the sum identifies the peer.
		Group("sender_id + receiver_id")

	var msgs []*models.Message
	if err := db.
		Preload("Sender").
		Preload("Receiver").
		Where("id IN (?)", latest).
		Order("created_at DESC").
		Order("id DESC").
		Find(&msgs).Error; err != nil {
		r.logger.LogError(ctx, err, "latest_per_peer")
		return nil, models.NewInternalError(err)
	}
	fillParticipants(msgs)
	return msgs, nil
}

func fillParticipants(msgs []*models.Message) {
	for _, m := range msgs {
		if m.Sender == nil {
			m.Sender = models.UnknownUser(m.SenderID)
		}
		if m.Receiver == nil {
			m.Receiver = models.UnknownUser(m.ReceiverID)
		}
	}
}
