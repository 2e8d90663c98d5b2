package handler

import (
	"net/http"
	"strconv"

	"convive/internal/middleware"
	"convive/internal/models"
	"convive/internal/repository"
	"convive/internal/service"

	"github.com/gin-gonic/gin"
)

// TriggerHandler is the surface the CRUD application's domain logic calls
// when it decides a notification or alert should fire. It does not decide
// what triggers; it only produces the side effects.
type TriggerHandler struct {
	notifications *service.NotificationService
	alerts        *service.AlertService
	incidents     *service.IncidentService
	chat          *service.ChatService
	userRepo      *repository.UserRepository
}

func NewTriggerHandler(notifications *service.NotificationService, alerts *service.AlertService, incidents *service.IncidentService, chat *service.ChatService, userRepo *repository.UserRepository) *TriggerHandler {
	return &TriggerHandler{
		notifications: notifications,
		alerts:        alerts,
		incidents:     incidents,
		chat:          chat,
		userRepo:      userRepo,
	}
}

// recipientFilter is the shared recipient selection for triggers: explicit
// ids, a role filter, a course filter, or the whole institution.
type recipientFilter struct {
	RecipientIDs []uint   `json:"recipient_ids"`
	Roles        []string `json:"roles"`
	CourseIDs    []uint   `json:"course_ids"`
	All          bool     `json:"all"`
	ExcludeID    uint     `json:"exclude_id"`
}

func (h *TriggerHandler) resolve(institutionID uint, f recipientFilter) ([]uint, error) {
	switch {
	case len(f.RecipientIDs) > 0:
		return f.RecipientIDs, nil
	case len(f.Roles) > 0:
		return h.userRepo.ResolveByRoles(institutionID, f.Roles, f.ExcludeID)
	case len(f.CourseIDs) > 0:
		return h.userRepo.ResolveByCourses(institutionID, f.CourseIDs)
	case f.All:
		return h.userRepo.ResolveAll(institutionID, f.ExcludeID)
	}
	return nil, nil
}

// CreateNotifications fans out to the resolved recipient set. Resolution
// failures surface; the fan-out itself is best-effort and never fails the
// caller.
func (h *TriggerHandler) CreateNotifications(c *gin.Context) {
	institutionID := middleware.GetInstitutionID(c)
	var req struct {
		recipientFilter
		Type       string `json:"type" binding:"required"`
		Title      string `json:"title" binding:"required"`
		Message    string `json:"message"`
		RelatedID  *uint  `json:"related_id"`
		RelatedURL string `json:"related_url"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ids, err := h.resolve(institutionID, req.recipientFilter)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "recipient resolution failed"})
		return
	}
	h.notifications.CreateMany(institutionID, ids, req.Type, req.Title, req.Message, req.RelatedID, req.RelatedURL)
	c.JSON(http.StatusAccepted, gin.H{"recipients": len(ids)})
}

// CreateAlert opens an at-risk alert unless one is already active for the
// (student, type) pair. A duplicate is success, not an error.
func (h *TriggerHandler) CreateAlert(c *gin.Context) {
	institutionID := middleware.GetInstitutionID(c)
	var req struct {
		StudentID   uint   `json:"student_id" binding:"required"`
		Type        string `json:"type" binding:"required"`
		Description string `json:"description"`
		TriggeredBy string `json:"triggered_by"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	alert, created, err := h.alerts.CreateIfAbsent(institutionID, req.StudentID, req.Type, req.Description, req.TriggeredBy)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "alert creation failed"})
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, gin.H{"alert": alert, "created": created})
}

// ResolveRecipients exposes the recipient resolver to triggers that fan out
// themselves.
func (h *TriggerHandler) ResolveRecipients(c *gin.Context) {
	institutionID := middleware.GetInstitutionID(c)
	var req recipientFilter
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ids, err := h.resolve(institutionID, req)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "recipient resolution failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ids": ids})
}

// AddIncidentRecipients creates the acknowledgment slots for a DEC case.
func (h *TriggerHandler) AddIncidentRecipients(c *gin.Context) {
	incidentID, _ := strconv.ParseUint(c.Param("id"), 10, 64)
	if incidentID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid incident id"})
		return
	}
	var req struct {
		RecipientIDs []uint `json:"recipient_ids" binding:"required"`
		Role         string `json:"role"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.incidents.AddRecipients(uint(incidentID), req.RecipientIDs, req.Role); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "assignment failed"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"recipients": len(req.RecipientIDs)})
}

// DeliverMessage bridges a notification into the sender/recipient 1:1
// conversation. A failed write yields delivered=false, not an error: the
// bridge is best-effort and never retried.
func (h *TriggerHandler) DeliverMessage(c *gin.Context) {
	institutionID := middleware.GetInstitutionID(c)
	callerID := middleware.GetUserID(c)
	var req struct {
		SenderID     uint `json:"sender_id"`
		RecipientID  uint `json:"recipient_id" binding:"required"`
		Notification struct {
			Type       string `json:"type" binding:"required"`
			Title      string `json:"title" binding:"required"`
			Message    string `json:"message"`
			RelatedID  *uint  `json:"related_id"`
			RelatedURL string `json:"related_url"`
		} `json:"notification" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	senderID := req.SenderID
	if senderID == 0 {
		senderID = callerID
	}
	n := &models.Notification{
		InstitutionID: institutionID,
		RecipientID:   req.RecipientID,
		Type:          req.Notification.Type,
		Title:         req.Notification.Title,
		Message:       req.Notification.Message,
		RelatedID:     req.Notification.RelatedID,
		RelatedURL:    req.Notification.RelatedURL,
	}
	delivery := h.chat.DeliverAsMessage(senderID, req.RecipientID, n)
	if delivery == nil {
		c.JSON(http.StatusOK, gin.H{"delivered": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"delivered": true, "conversation_id": delivery.ConversationID, "message_id": delivery.MessageID})
}
