package service

import (
	"fmt"

	"convive/internal/changefeed"
	"convive/internal/domain"
	"convive/internal/models"
	"convive/internal/repository"
)

type AvailabilityService struct {
	repo *repository.AvailabilityRepository
	feed *changefeed.Feed
}

func NewAvailabilityService(repo *repository.AvailabilityRepository, feed *changefeed.Feed) *AvailabilityService {
	return &AvailabilityService{repo: repo, feed: feed}
}

// SetStatus upserts the user's durable availability and announces the change
// to the institution. The four states have no transition restrictions.
func (s *AvailabilityService) SetStatus(institutionID, userID uint, status string) error {
	if !domain.ValidEstados[status] {
		return domain.ErrValidation
	}
	if err := s.repo.Upsert(userID, status); err != nil {
		return fmt.Errorf("%w: set availability: %v", domain.ErrStoreUnavailable, err)
	}
	s.feed.Publish(changefeed.StreamAvailability, changefeed.OpUpdate, institutionID,
		changefeed.AvailabilityChanged{InstitutionID: institutionID, UserID: userID, Status: status})
	return nil
}

func (s *AvailabilityService) Get(userID uint) (*models.AvailabilityStatus, error) {
	return s.repo.Get(userID)
}

func (s *AvailabilityService) MapByInstitution(institutionID uint) (map[uint]string, error) {
	return s.repo.MapByInstitution(institutionID)
}
