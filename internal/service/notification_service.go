package service

import (
	"fmt"
	"log"

	"convive/internal/changefeed"
	"convive/internal/domain"
	"convive/internal/models"
	"convive/internal/repository"
)

// ReadSelector picks which of the caller's unread notifications to mark.
// Exactly one mode applies; when several are present the highest-precedence
// one wins: All > Types > URLPrefix > IDs. An empty selector is a no-op.
type ReadSelector struct {
	All       bool     `json:"all"`
	Types     []string `json:"types"`
	URLPrefix string   `json:"url_prefix"`
	IDs       []uint   `json:"ids"`
}

func (s ReadSelector) empty() bool {
	return !s.All && len(s.Types) == 0 && s.URLPrefix == "" && len(s.IDs) == 0
}

type NotificationService struct {
	repo     *repository.NotificationRepository
	userRepo *repository.UserRepository
	feed     *changefeed.Feed
}

func NewNotificationService(repo *repository.NotificationRepository, userRepo *repository.UserRepository, feed *changefeed.Feed) *NotificationService {
	return &NotificationService{repo: repo, userRepo: userRepo, feed: feed}
}

// CreateMany fans a notification out to the recipient set. Delivery is
// best-effort: a failed fan-out is logged and swallowed so it can never fail
// the business transaction that triggered it. An empty recipient set performs
// zero writes.
func (s *NotificationService) CreateMany(institutionID uint, recipientIDs []uint, notifType, title, message string, relatedID *uint, relatedURL string) {
	if len(recipientIDs) == 0 {
		return
	}
	rows := make([]models.Notification, 0, len(recipientIDs))
	for _, id := range recipientIDs {
		rows = append(rows, models.Notification{
			InstitutionID: institutionID,
			RecipientID:   id,
			Type:          notifType,
			Title:         title,
			Message:       message,
			RelatedID:     relatedID,
			RelatedURL:    relatedURL,
		})
	}
	if err := s.repo.CreateMany(rows); err != nil {
		log.Printf("notification fan-out failed (type=%s recipients=%d): %v", notifType, len(recipientIDs), err)
		return
	}
	for _, row := range rows {
		s.feed.Publish(changefeed.StreamNotifications, changefeed.OpInsert, row.RecipientID,
			changefeed.NotificationInserted{RecipientID: row.RecipientID, NotificationID: row.ID, Type: row.Type})
	}
}

// NotifyRoles resolves the role filter and fans out to the result.
// Resolution failures surface: the trigger should know its side effect never
// fired.
func (s *NotificationService) NotifyRoles(institutionID uint, roles []string, excludeID uint, notifType, title, message string, relatedID *uint, relatedURL string) error {
	ids, err := s.userRepo.ResolveByRoles(institutionID, roles, excludeID)
	if err != nil {
		return fmt.Errorf("%w: resolve recipients: %v", domain.ErrStoreUnavailable, err)
	}
	s.CreateMany(institutionID, ids, notifType, title, message, relatedID, relatedURL)
	return nil
}

// NotifyCourses fans out to the active students of the given courses.
func (s *NotificationService) NotifyCourses(institutionID uint, courseIDs []uint, notifType, title, message string, relatedID *uint, relatedURL string) error {
	ids, err := s.userRepo.ResolveByCourses(institutionID, courseIDs)
	if err != nil {
		return fmt.Errorf("%w: resolve recipients: %v", domain.ErrStoreUnavailable, err)
	}
	s.CreateMany(institutionID, ids, notifType, title, message, relatedID, relatedURL)
	return nil
}

// NotifyAll fans out to every active institution member except excludeID.
func (s *NotificationService) NotifyAll(institutionID uint, excludeID uint, notifType, title, message string, relatedID *uint, relatedURL string) error {
	ids, err := s.userRepo.ResolveAll(institutionID, excludeID)
	if err != nil {
		return fmt.Errorf("%w: resolve recipients: %v", domain.ErrStoreUnavailable, err)
	}
	s.CreateMany(institutionID, ids, notifType, title, message, relatedID, relatedURL)
	return nil
}

func (s *NotificationService) List(userID uint, limit int) ([]models.Notification, error) {
	return s.repo.ListByRecipient(userID, limit)
}

func (s *NotificationService) UnreadCount(userID uint) (int64, error) {
	return s.repo.UnreadCount(userID)
}

// MarkRead applies the highest-precedence selector mode present and returns
// the number of rows it flipped. Already-read rows are never touched, so a
// repeated call changes nothing. An empty or unrecognized selector is a
// no-op, not an error.
func (s *NotificationService) MarkRead(userID uint, sel ReadSelector) (int64, error) {
	if sel.empty() {
		return 0, nil
	}
	var (
		n   int64
		err error
	)
	switch {
	case sel.All:
		n, err = s.repo.MarkAllRead(userID)
	case len(sel.Types) > 0:
		n, err = s.repo.MarkReadByTypes(userID, sel.Types)
	case sel.URLPrefix != "":
		n, err = s.repo.MarkReadByURLPrefix(userID, sel.URLPrefix)
	default:
		n, err = s.repo.MarkReadByIDs(userID, sel.IDs)
	}
	if err != nil {
		return 0, fmt.Errorf("%w: mark read: %v", domain.ErrStoreUnavailable, err)
	}
	if n > 0 {
		s.feed.Publish(changefeed.StreamNotifications, changefeed.OpUpdate, userID,
			changefeed.NotificationsRead{RecipientID: userID, Count: n})
	}
	return n, nil
}
