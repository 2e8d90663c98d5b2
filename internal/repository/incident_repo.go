package repository

import (
	"time"

	"convive/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type IncidentRepository struct {
	db *gorm.DB
}

func NewIncidentRepository(db *gorm.DB) *IncidentRepository {
	return &IncidentRepository{db: db}
}

// AddRecipients creates one unseen acknowledgment slot per recipient. A slot
// that already exists for (incident, recipient) is left untouched and not
// reported back, so callers announce only rows this call inserted.
func (r *IncidentRepository) AddRecipients(incidentID uint, recipientIDs []uint, role string) ([]models.IncidentRecipient, error) {
	created := make([]models.IncidentRecipient, 0, len(recipientIDs))
	for _, id := range recipientIDs {
		row := models.IncidentRecipient{
			IncidentID:  incidentID,
			RecipientID: id,
			Role:        role,
		}
		res := r.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&row)
		if res.Error != nil {
			return created, res.Error
		}
		if res.RowsAffected > 0 {
			created = append(created, row)
		}
	}
	return created, nil
}

func (r *IncidentRepository) UnseenCount(userID uint) (int64, error) {
	var c int64
	err := r.db.Model(&models.IncidentRecipient{}).
		Where("recipient_id = ? AND seen = ?", userID, false).Count(&c).Error
	return c, err
}

// MarkSeen acknowledges the caller's unseen slots, all of them or a single
// incident's. Seen never reverts, so re-running is a no-op.
func (r *IncidentRepository) MarkSeen(userID uint, incidentID *uint) (int64, error) {
	q := r.db.Model(&models.IncidentRecipient{}).
		Where("recipient_id = ? AND seen = ?", userID, false)
	if incidentID != nil {
		q = q.Where("incident_id = ?", *incidentID)
	}
	res := q.Updates(map[string]interface{}{"seen": true, "seen_at": time.Now()})
	return res.RowsAffected, res.Error
}

func (r *IncidentRepository) ListForUser(userID uint, onlyUnseen bool) ([]models.IncidentRecipient, error) {
	q := r.db.Where("recipient_id = ?", userID)
	if onlyUnseen {
		q = q.Where("seen = ?", false)
	}
	var list []models.IncidentRecipient
	err := q.Order("created_at DESC").Find(&list).Error
	return list, err
}
