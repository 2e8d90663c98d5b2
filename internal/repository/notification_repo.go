package repository

import (
	"strings"
	"time"

	"convive/internal/models"

	"gorm.io/gorm"
)

type NotificationRepository struct {
	db *gorm.DB
}

func NewNotificationRepository(db *gorm.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// CreateMany inserts the rows in one batch. An empty slice performs zero
// writes.
func (r *NotificationRepository) CreateMany(rows []models.Notification) error {
	if len(rows) == 0 {
		return nil
	}
	return r.db.CreateInBatches(rows, 100).Error
}

func (r *NotificationRepository) ListByRecipient(userID uint, limit int) ([]models.Notification, error) {
	if limit <= 0 {
		limit = 30
	}
	var list []models.Notification
	err := r.db.Where("recipient_id = ?", userID).
		Order("created_at DESC").Limit(limit).Find(&list).Error
	return list, err
}

func (r *NotificationRepository) UnreadCount(userID uint) (int64, error) {
	var c int64
	err := r.db.Model(&models.Notification{}).
		Where("recipient_id = ? AND `read` = ?", userID, false).Count(&c).Error
	return c, err
}

// unread scopes every mark-read mode to the caller's own still-unread rows,
// which makes all of them idempotent.
func (r *NotificationRepository) unread(userID uint) *gorm.DB {
	return r.db.Model(&models.Notification{}).
		Where("recipient_id = ? AND `read` = ?", userID, false)
}

func markRead(q *gorm.DB) (int64, error) {
	res := q.Updates(map[string]interface{}{"read": true, "read_at": time.Now()})
	return res.RowsAffected, res.Error
}

func (r *NotificationRepository) MarkAllRead(userID uint) (int64, error) {
	return markRead(r.unread(userID))
}

func (r *NotificationRepository) MarkReadByTypes(userID uint, types []string) (int64, error) {
	return markRead(r.unread(userID).Where("type IN ?", types))
}

// MarkReadByURLPrefix marks unread rows whose related URL starts with prefix.
// LIKE wildcards in the prefix are escaped so they match literally.
func (r *NotificationRepository) MarkReadByURLPrefix(userID uint, prefix string) (int64, error) {
	esc := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(prefix)
	return markRead(r.unread(userID).Where(`related_url LIKE ? ESCAPE '\'`, esc+"%"))
}

func (r *NotificationRepository) MarkReadByIDs(userID uint, ids []uint) (int64, error) {
	return markRead(r.unread(userID).Where("id IN ?", ids))
}
