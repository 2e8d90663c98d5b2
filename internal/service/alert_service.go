package service

import (
	"errors"
	"fmt"

	"convive/internal/domain"
	"convive/internal/models"
	"convive/internal/repository"

	"gorm.io/gorm"
)

// AlertService is the convergence primitive for at-risk flags: at most one
// active concern of a kind per student. Repeated triggers for an
// already-flagged condition are free.
type AlertService struct {
	repo *repository.AlertRepository
}

func NewAlertService(repo *repository.AlertRepository) *AlertService {
	return &AlertService{repo: repo}
}

// CreateIfAbsent opens an alert for (student, type) unless one is already
// open. The dedup is the store's unique index, not a read-then-write: the
// insert goes first and a duplicate-key conflict means a concurrent or
// earlier trigger already won, in which case the surviving row is returned
// untouched (the first writer's description stands). created reports whether
// this call inserted the row.
func (s *AlertService) CreateIfAbsent(institutionID, studentID uint, alertType, description, triggeredBy string) (alert *models.Alert, created bool, err error) {
	if triggeredBy == "" {
		triggeredBy = "system"
	}
	a := &models.Alert{
		InstitutionID: institutionID,
		StudentID:     studentID,
		Type:          alertType,
		Description:   description,
		TriggeredBy:   triggeredBy,
	}
	err = s.repo.Create(a)
	if err == nil {
		return a, true, nil
	}
	if !errors.Is(err, domain.ErrConflict) {
		return nil, false, fmt.Errorf("%w: create alert: %v", domain.ErrStoreUnavailable, err)
	}
	existing, err := s.repo.GetActive(studentID, alertType)
	if err != nil {
		// The winner resolved between our conflict and the re-read; the
		// invariant held at insert time, report it as already present.
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("%w: read alert: %v", domain.ErrStoreUnavailable, err)
	}
	return existing, false, nil
}
