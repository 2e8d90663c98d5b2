package repository

import (
	"errors"
	"time"

	"convive/internal/domain"
	"convive/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ChatRepository struct {
	db *gorm.DB
}

func NewChatRepository(db *gorm.DB) *ChatRepository {
	return &ChatRepository{db: db}
}

func (r *ChatRepository) GetConversationByPair(a, b uint) (*models.Conversation, error) {
	low, high := models.NormalizePair(a, b)
	var c models.Conversation
	err := r.db.Where("user_low_id = ? AND user_high_id = ?", low, high).First(&c).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// CreateConversation inserts the normalized pair. A concurrent first-contact
// for the same pair loses on the unique index with domain.ErrConflict and
// re-reads the winner.
func (r *ChatRepository) CreateConversation(a, b uint) (*models.Conversation, error) {
	low, high := models.NormalizePair(a, b)
	c := &models.Conversation{UserLowID: low, UserHighID: high}
	if err := r.db.Create(c).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, domain.ErrConflict
		}
		return nil, err
	}
	return c, nil
}

func (r *ChatRepository) GetConversation(id uint) (*models.Conversation, error) {
	var c models.Conversation
	if err := r.db.First(&c, id).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *ChatRepository) ListConversationsForUser(userID uint) ([]models.Conversation, error) {
	var list []models.Conversation
	err := r.db.Where("user_low_id = ? OR user_high_id = ?", userID, userID).
		Order("created_at DESC").Find(&list).Error
	return list, err
}

func (r *ChatRepository) CreateMessage(m *models.Message) error {
	return r.db.Create(m).Error
}

func (r *ChatRepository) ListMessages(conversationID uint, limit, offset int) ([]models.Message, error) {
	if limit <= 0 {
		limit = 50
	}
	var list []models.Message
	err := r.db.Where("conversation_id = ?", conversationID).
		Order("created_at ASC").Limit(limit).Offset(offset).Find(&list).Error
	return list, err
}

// UpsertRead moves the user's read watermark for the conversation.
func (r *ChatRepository) UpsertRead(conversationID, userID uint, at time.Time) error {
	row := models.MessageRead{ConversationID: conversationID, UserID: userID, LastReadAt: at}
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "conversation_id"}, {Name: "user_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{"last_read_at": at}),
	}).Create(&row).Error
}

func (r *ChatRepository) GetLastRead(conversationID, userID uint) (time.Time, error) {
	var mr models.MessageRead
	err := r.db.Where("conversation_id = ? AND user_id = ?", conversationID, userID).First(&mr).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return time.Unix(0, 0), nil
		}
		return time.Time{}, err
	}
	return mr.LastReadAt, nil
}

// UnreadCount counts messages in the conversation sent by someone else
// strictly after the user's watermark (epoch when no watermark row exists).
func (r *ChatRepository) UnreadCount(conversationID, userID uint) (int64, error) {
	last, err := r.GetLastRead(conversationID, userID)
	if err != nil {
		return 0, err
	}
	var c int64
	err = r.db.Model(&models.Message{}).
		Where("conversation_id = ? AND sender_id != ? AND created_at > ?", conversationID, userID, last).
		Count(&c).Error
	return c, err
}

// UnreadCounts returns the per-conversation unread map for every conversation
// the user belongs to. Conversations with nothing unread are absent.
func (r *ChatRepository) UnreadCounts(userID uint) (map[uint]int64, error) {
	var rows []struct {
		ConversationID uint
		Cnt            int64
	}
	err := r.db.Table("messages m").
		Select("m.conversation_id, COUNT(*) as cnt").
		Joins("INNER JOIN conversations c ON c.id = m.conversation_id AND (c.user_low_id = ? OR c.user_high_id = ?)", userID, userID).
		Joins("LEFT JOIN message_reads mr ON mr.conversation_id = m.conversation_id AND mr.user_id = ?", userID).
		Where("m.sender_id != ? AND m.created_at > COALESCE(mr.last_read_at, '1970-01-01 00:00:00')", userID).
		Group("m.conversation_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[uint]int64, len(rows))
	for _, row := range rows {
		out[row.ConversationID] = row.Cnt
	}
	return out, nil
}
