package models

import "time"

// Alert is an at-risk flag for a student. The composite unique index over
// (student_id, type, active) enforces at most one unresolved alert per
// (student, type): Active is true while the alert is open and NULL once
// resolved, and NULLs never collide inside a unique index, so resolved
// history accumulates freely while a second open row is rejected by the
// store itself.
type Alert struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	InstitutionID uint       `gorm:"not null;index" json:"institution_id"`
	StudentID     uint       `gorm:"not null;uniqueIndex:idx_alerts_student_type_active" json:"student_id"`
	Type          string     `gorm:"size:50;not null;uniqueIndex:idx_alerts_student_type_active" json:"type"`
	Description   string     `gorm:"type:text" json:"description"`
	TriggeredBy   string     `gorm:"size:64;default:'system'" json:"triggered_by"`
	Active        *bool      `gorm:"uniqueIndex:idx_alerts_student_type_active" json:"-"`
	Resolved      bool       `gorm:"default:false;index" json:"resolved"`
	ResolvedAt    *time.Time `json:"resolved_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

func (Alert) TableName() string {
	return "alerts"
}
