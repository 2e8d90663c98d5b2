package models

import (
	"time"

	"convive/internal/domain"

	"gorm.io/gorm"
)

type User struct {
	ID            uint           `gorm:"primaryKey" json:"id"`
	InstitutionID uint           `gorm:"not null;index" json:"institution_id"`
	Name          string         `gorm:"size:128;not null" json:"name"`
	Email         string         `gorm:"uniqueIndex;size:255;not null" json:"email"`
	PasswordHash  string         `gorm:"size:255" json:"-"`
	Role          string         `gorm:"size:20;not null;index" json:"role"` // admin | directivo | dupla | docente | estudiante | servicio
	CourseID      *uint          `gorm:"index" json:"course_id,omitempty"`   // set for estudiante accounts
	Active        bool           `gorm:"default:true;index" json:"active"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"-"`
}

func (u *User) IsStudent() bool { return u.Role == domain.RoleEstudiante }
