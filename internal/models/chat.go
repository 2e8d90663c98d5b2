package models

import "time"

// Conversation is a 1:1 thread. The pair is stored normalized (low id first)
// under a composite unique index, so two concurrent first-contacts for the
// same pair cannot both insert; the loser re-reads the winner's row.
type Conversation struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	UserLowID  uint      `gorm:"not null;uniqueIndex:idx_conversations_pair;index" json:"user_low_id"`
	UserHighID uint      `gorm:"not null;uniqueIndex:idx_conversations_pair;index" json:"user_high_id"`
	CreatedAt  time.Time `json:"created_at"`
}

func (Conversation) TableName() string {
	return "conversations"
}

// NormalizePair orders a user pair for conversation lookup and insert.
func NormalizePair(a, b uint) (low, high uint) {
	if a < b {
		return a, b
	}
	return b, a
}

// Other returns the conversation member that is not userID.
func (c *Conversation) Other(userID uint) uint {
	if c.UserLowID == userID {
		return c.UserHighID
	}
	return c.UserLowID
}

// Has reports whether userID is a member of the conversation.
func (c *Conversation) Has(userID uint) bool {
	return c.UserLowID == userID || c.UserHighID == userID
}

type Message struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	ConversationID uint      `gorm:"not null;index" json:"conversation_id"`
	SenderID       uint      `gorm:"not null;index" json:"sender_id"`
	Content        string    `gorm:"type:text" json:"content"`
	Meta           string    `gorm:"type:text" json:"meta,omitempty"` // JSON payload for special client rendering
	CreatedAt      time.Time `gorm:"index" json:"created_at"`
}

func (Message) TableName() string {
	return "messages"
}

// MessageRead is a per-user read watermark for a conversation. Unread = the
// messages sent by someone else after LastReadAt.
type MessageRead struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	ConversationID uint      `gorm:"not null;uniqueIndex:idx_message_reads_conv_user" json:"conversation_id"`
	UserID         uint      `gorm:"not null;uniqueIndex:idx_message_reads_conv_user" json:"user_id"`
	LastReadAt     time.Time `json:"last_read_at"`
}

func (MessageRead) TableName() string {
	return "message_reads"
}
