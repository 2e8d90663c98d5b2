package models

import "time"

// IncidentRecipient is one user's acknowledgment slot for a DEC case. Seen
// only ever transitions false to true; the row is never reverted or removed
// by this service.
type IncidentRecipient struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	IncidentID  uint       `gorm:"not null;uniqueIndex:idx_incident_recipient" json:"incident_id"`
	RecipientID uint       `gorm:"not null;uniqueIndex:idx_incident_recipient;index:idx_incident_recipients_seen" json:"recipient_id"`
	Role        string     `gorm:"size:20" json:"role"`
	Seen        bool       `gorm:"default:false;index:idx_incident_recipients_seen" json:"seen"`
	SeenAt      *time.Time `json:"seen_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

func (IncidentRecipient) TableName() string {
	return "incident_recipients"
}
