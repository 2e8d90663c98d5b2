package models

import "time"

type Notification struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	InstitutionID uint       `gorm:"not null;index" json:"institution_id"`
	RecipientID   uint       `gorm:"not null;index:idx_notifications_recipient_read" json:"recipient_id"`
	Type          string     `gorm:"size:50;not null;index" json:"type"`
	Title         string     `gorm:"size:255" json:"title"`
	Message       string     `gorm:"type:text" json:"message"`
	RelatedID     *uint      `json:"related_id,omitempty"`
	RelatedURL    string     `gorm:"size:512" json:"related_url,omitempty"`
	Read          bool       `gorm:"default:false;index:idx_notifications_recipient_read" json:"read"`
	ReadAt        *time.Time `json:"read_at,omitempty"`
	CreatedAt     time.Time  `gorm:"index" json:"created_at"`
}

func (Notification) TableName() string {
	return "notifications"
}
