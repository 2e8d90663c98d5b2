package repository

import (
	"time"

	"convive/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type AvailabilityRepository struct {
	db *gorm.DB
}

func NewAvailabilityRepository(db *gorm.DB) *AvailabilityRepository {
	return &AvailabilityRepository{db: db}
}

// Upsert sets the user's durable availability status, one row per user.
func (r *AvailabilityRepository) Upsert(userID uint, status string) error {
	row := models.AvailabilityStatus{UserID: userID, Status: status, UpdatedAt: time.Now()}
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{"status": status, "updated_at": row.UpdatedAt}),
	}).Create(&row).Error
}

func (r *AvailabilityRepository) Get(userID uint) (*models.AvailabilityStatus, error) {
	var s models.AvailabilityStatus
	if err := r.db.Where("user_id = ?", userID).First(&s).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

// MapByInstitution returns the {userID: status} map for the institution's
// active members. Users who never set a status are absent.
func (r *AvailabilityRepository) MapByInstitution(institutionID uint) (map[uint]string, error) {
	var rows []struct {
		UserID uint
		Status string
	}
	err := r.db.Table("availability_status a").
		Select("a.user_id, a.status").
		Joins("INNER JOIN users u ON u.id = a.user_id AND u.institution_id = ? AND u.active = ? AND u.deleted_at IS NULL", institutionID, true).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[uint]string, len(rows))
	for _, row := range rows {
		out[row.UserID] = row.Status
	}
	return out, nil
}
