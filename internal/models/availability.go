package models

import "time"

// AvailabilityStatus is the durable, user-set tier of presence: one row per
// user, upserted. The ephemeral online/offline roster never touches storage.
type AvailabilityStatus struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"uniqueIndex;not null" json:"user_id"`
	Status    string    `gorm:"size:20;not null" json:"status"` // disponible | en_clase | en_reunion | ausente
	UpdatedAt time.Time `json:"updated_at"`
}

func (AvailabilityStatus) TableName() string {
	return "availability_status"
}
