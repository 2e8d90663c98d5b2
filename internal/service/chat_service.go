package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"convive/internal/changefeed"
	"convive/internal/domain"
	"convive/internal/models"
	"convive/internal/repository"

	"gorm.io/gorm"
)

type ChatService struct {
	repo *repository.ChatRepository
	feed *changefeed.Feed
}

func NewChatService(repo *repository.ChatRepository, feed *changefeed.Feed) *ChatService {
	return &ChatService{repo: repo, feed: feed}
}

// Delivery identifies the message a bridged notification landed as.
type Delivery struct {
	ConversationID uint `json:"conversation_id"`
	MessageID      uint `json:"message_id"`
}

// getOrCreateConversation resolves the unordered pair's conversation,
// creating it on first contact. A concurrent creator for the same pair loses
// on the unique index and re-reads the winner's row, so both callers resolve
// to the same id.
func (s *ChatService) getOrCreateConversation(a, b uint) (*models.Conversation, error) {
	conv, err := s.repo.GetConversationByPair(a, b)
	if err == nil {
		return conv, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	conv, err = s.repo.CreateConversation(a, b)
	if err == nil {
		return conv, nil
	}
	if errors.Is(err, domain.ErrConflict) {
		return s.repo.GetConversationByPair(a, b)
	}
	return nil, err
}

// DeliverAsMessage bridges a notification into the 1:1 conversation between
// sender and recipient. The content is a plain rendering of the title; the
// meta payload carries the full notification for special client rendering.
// Failures are logged and not retried; the caller gets a nil Delivery.
func (s *ChatService) DeliverAsMessage(senderID, recipientID uint, n *models.Notification) *Delivery {
	conv, err := s.getOrCreateConversation(senderID, recipientID)
	if err != nil {
		log.Printf("chat bridge: conversation for pair (%d,%d): %v", senderID, recipientID, err)
		return nil
	}
	meta, _ := json.Marshal(map[string]interface{}{"kind": "notification", "notification": n})
	m := &models.Message{
		ConversationID: conv.ID,
		SenderID:       senderID,
		Content:        "🔔 " + n.Title,
		Meta:           string(meta),
	}
	if err := s.repo.CreateMessage(m); err != nil {
		log.Printf("chat bridge: append message (conversation=%d): %v", conv.ID, err)
		return nil
	}
	s.publishMessage(conv, m)
	return &Delivery{ConversationID: conv.ID, MessageID: m.ID}
}

// SendMessage appends a plain message; the sender must be a member.
func (s *ChatService) SendMessage(conversationID, senderID uint, content string) (*models.Message, error) {
	conv, err := s.repo.GetConversation(conversationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrValidation
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	if !conv.Has(senderID) {
		return nil, domain.ErrForbidden
	}
	m := &models.Message{ConversationID: conversationID, SenderID: senderID, Content: content}
	if err := s.repo.CreateMessage(m); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	s.publishMessage(conv, m)
	return m, nil
}

func (s *ChatService) publishMessage(conv *models.Conversation, m *models.Message) {
	recipient := conv.Other(m.SenderID)
	s.feed.Publish(changefeed.StreamMessages, changefeed.OpInsert, recipient,
		changefeed.MessageInserted{
			ConversationID: conv.ID,
			MessageID:      m.ID,
			SenderID:       m.SenderID,
			RecipientID:    recipient,
		})
}

// MarkConversationRead moves the caller's watermark to now and announces it
// on the messages stream, in commit order with the inserts it covers.
func (s *ChatService) MarkConversationRead(conversationID, userID uint) error {
	conv, err := s.repo.GetConversation(conversationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.ErrValidation
		}
		return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	if !conv.Has(userID) {
		return domain.ErrForbidden
	}
	if err := s.repo.UpsertRead(conversationID, userID, time.Now()); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	s.feed.Publish(changefeed.StreamMessages, changefeed.OpUpdate, userID,
		changefeed.ConversationRead{ConversationID: conversationID, UserID: userID})
	return nil
}

func (s *ChatService) ListConversations(userID uint) ([]models.Conversation, error) {
	return s.repo.ListConversationsForUser(userID)
}

// Messages lists a conversation's messages for a member, oldest first.
func (s *ChatService) Messages(conversationID, userID uint, limit, offset int) ([]models.Message, error) {
	conv, err := s.repo.GetConversation(conversationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrValidation
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	if !conv.Has(userID) {
		return nil, domain.ErrForbidden
	}
	return s.repo.ListMessages(conversationID, limit, offset)
}

func (s *ChatService) UnreadCounts(userID uint) (map[uint]int64, error) {
	return s.repo.UnreadCounts(userID)
}

func (s *ChatService) UnreadCount(conversationID, userID uint) (int64, error) {
	return s.repo.UnreadCount(conversationID, userID)
}
