package handler

import (
	"net/http"
	"strconv"

	"convive/internal/middleware"
	"convive/internal/service"

	"github.com/gin-gonic/gin"
)

type NotificationHandler struct {
	svc *service.NotificationService
}

func NewNotificationHandler(svc *service.NotificationService) *NotificationHandler {
	return &NotificationHandler{svc: svc}
}

func (h *NotificationHandler) List(c *gin.Context) {
	userID := middleware.GetUserID(c)
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "30"))
	list, err := h.svc.List(userID, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"notifications": list})
}

// MarkRead applies one read-selector mode. An empty or unrecognized body is a
// no-op 200, not an error.
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	userID := middleware.GetUserID(c)
	var sel service.ReadSelector
	if err := c.ShouldBindJSON(&sel); err != nil {
		// Unrecognized payload: treat as the empty selector.
		sel = service.ReadSelector{}
	}
	n, err := h.svc.MarkRead(userID, sel)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "mark read failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"marked": n})
}
