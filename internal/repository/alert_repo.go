package repository

import (
	"errors"
	"time"

	"convive/internal/domain"
	"convive/internal/models"

	"gorm.io/gorm"
)

type AlertRepository struct {
	db *gorm.DB
}

func NewAlertRepository(db *gorm.DB) *AlertRepository {
	return &AlertRepository{db: db}
}

// Create inserts an open alert. The unique index over (student_id, type,
// active) rejects a second open row for the same pair; that surfaces as
// domain.ErrConflict and the service treats it as "already flagged".
func (r *AlertRepository) Create(a *models.Alert) error {
	active := true
	a.Active = &active
	a.Resolved = false
	if err := r.db.Create(a).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return domain.ErrConflict
		}
		return err
	}
	return nil
}

func (r *AlertRepository) GetActive(studentID uint, alertType string) (*models.Alert, error) {
	var a models.Alert
	err := r.db.Where("student_id = ? AND type = ? AND resolved = ?", studentID, alertType, false).
		First(&a).Error
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *AlertRepository) ListActiveByInstitution(institutionID uint) ([]models.Alert, error) {
	var list []models.Alert
	err := r.db.Where("institution_id = ? AND resolved = ?", institutionID, false).
		Order("created_at DESC").Find(&list).Error
	return list, err
}

// Resolve closes an alert: clears the Active marker so the unique index frees
// the (student, type) slot for a future alert. Resolution itself belongs to
// the CRUD flows; this exists for them and for tests.
func (r *AlertRepository) Resolve(alertID uint) error {
	now := time.Now()
	return r.db.Model(&models.Alert{}).Where("id = ?", alertID).
		Updates(map[string]interface{}{"active": nil, "resolved": true, "resolved_at": now}).Error
}
