package handler

import (
	"net/http"

	"convive/internal/middleware"
	"convive/internal/service"

	"github.com/gin-gonic/gin"
)

// BadgeHandler serves the authoritative badge snapshot over plain HTTP. The
// live variant of the same numbers flows through the realtime websocket.
type BadgeHandler struct {
	notifications *service.NotificationService
	incidents     *service.IncidentService
	chat          *service.ChatService
}

func NewBadgeHandler(notifications *service.NotificationService, incidents *service.IncidentService, chat *service.ChatService) *BadgeHandler {
	return &BadgeHandler{notifications: notifications, incidents: incidents, chat: chat}
}

func (h *BadgeHandler) Get(c *gin.Context) {
	userID := middleware.GetUserID(c)
	notifs, err := h.notifications.UnreadCount(userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "badge fetch failed"})
		return
	}
	cases, err := h.incidents.UnseenCount(userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "badge fetch failed"})
		return
	}
	chat, err := h.chat.UnreadCounts(userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "badge fetch failed"})
		return
	}
	c.JSON(http.StatusOK, service.BadgeCounters{Notifications: notifs, Cases: cases, Chat: chat})
}
