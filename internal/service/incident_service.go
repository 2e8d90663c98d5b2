package service

import (
	"fmt"

	"convive/internal/changefeed"
	"convive/internal/domain"
	"convive/internal/models"
	"convive/internal/repository"
)

type IncidentService struct {
	repo *repository.IncidentRepository
	feed *changefeed.Feed
}

func NewIncidentService(repo *repository.IncidentRepository, feed *changefeed.Feed) *IncidentService {
	return &IncidentService{repo: repo, feed: feed}
}

// AddRecipients creates unseen acknowledgment slots for a DEC case. Existing
// (incident, recipient) slots are skipped by the store, never duplicated, and
// only the slots this call created are announced on the feed.
func (s *IncidentService) AddRecipients(incidentID uint, recipientIDs []uint, role string) error {
	rows, err := s.repo.AddRecipients(incidentID, recipientIDs, role)
	if err != nil {
		return fmt.Errorf("%w: add incident recipients: %v", domain.ErrStoreUnavailable, err)
	}
	for _, row := range rows {
		s.feed.Publish(changefeed.StreamIncidents, changefeed.OpInsert, row.RecipientID,
			changefeed.IncidentAssigned{RecipientID: row.RecipientID, IncidentID: incidentID})
	}
	return nil
}

// MarkSeen acknowledges the caller's slots (one incident, or all when
// incidentID is nil) and reports how many flipped.
func (s *IncidentService) MarkSeen(userID uint, incidentID *uint) (int64, error) {
	n, err := s.repo.MarkSeen(userID, incidentID)
	if err != nil {
		return 0, fmt.Errorf("%w: mark seen: %v", domain.ErrStoreUnavailable, err)
	}
	if n > 0 {
		s.feed.Publish(changefeed.StreamIncidents, changefeed.OpUpdate, userID,
			changefeed.IncidentsSeen{RecipientID: userID, Count: n})
	}
	return n, nil
}

func (s *IncidentService) UnseenCount(userID uint) (int64, error) {
	return s.repo.UnseenCount(userID)
}

func (s *IncidentService) ListForUser(userID uint, onlyUnseen bool) ([]models.IncidentRecipient, error) {
	return s.repo.ListForUser(userID, onlyUnseen)
}
