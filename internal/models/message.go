package models

import "time"

// Message is a direct message between two users.
type Message struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	SenderID   uint      `gorm:"not null;index:idx_messages_pair" json:"sender_id"`
	ReceiverID uint      `gorm:"not null;index:idx_messages_pair" json:"receiver_id"`
	Sender     *User     `gorm:"foreignKey:SenderID" json:"sender,omitempty"`
	Receiver   *User     `gorm:"foreignKey:ReceiverID" json:"receiver,omitempty"`
	Text       string    `gorm:"type:text" json:"text"`
	MediaURL   string    `json:"media_url,omitempty"`
	CreatedAt  time.Time `gorm:"index" json:"created_at"`
}

// PeerOf returns the other participant of the message relative to userID.
func (m *Message) PeerOf(userID uint) uint {
	if m.SenderID == userID {
		return m.ReceiverID
	}
	return m.SenderID
}

// Involves reports whether the message belongs to the conversation between a and b.
func (m *Message) Involves(a, b uint) bool {
	return (m.SenderID == a && m.ReceiverID == b) || (m.SenderID == b && m.ReceiverID == a)
}

// ConversationSummary is one inbox entry: the peer and the newest message exchanged.
type ConversationSummary struct {
	Peer        *User    `json:"peer"`
	LastMessage *Message `json:"last_message"`
}
