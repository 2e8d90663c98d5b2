package handler

import (
	"errors"
	"net/http"

	"convive/internal/domain"
	"convive/internal/middleware"
	"convive/internal/service"
	"convive/internal/ws"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type PresenceHandler struct {
	availability *service.AvailabilityService
	presence     *ws.PresenceHub
}

func NewPresenceHandler(availability *service.AvailabilityService, presence *ws.PresenceHub) *PresenceHandler {
	return &PresenceHandler{availability: availability, presence: presence}
}

// SetAvailability upserts the caller's durable status.
func (h *PresenceHandler) SetAvailability(c *gin.Context) {
	userID := middleware.GetUserID(c)
	institutionID := middleware.GetInstitutionID(c)
	var req struct {
		Status string `json:"status" binding:"required,oneof=disponible en_clase en_reunion ausente"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.availability.SetStatus(institutionID, userID, req.Status); err != nil {
		if errors.Is(err, domain.ErrValidation) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status"})
			return
		}
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "update failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": req.Status})
}

func (h *PresenceHandler) GetMyAvailability(c *gin.Context) {
	userID := middleware.GetUserID(c)
	s, err := h.availability.Get(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusOK, gin.H{"status": domain.EstadoDisponible})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "fetch failed"})
		return
	}
	c.JSON(http.StatusOK, s)
}

// AvailabilityMap returns the institution's {userID: status} map.
func (h *PresenceHandler) AvailabilityMap(c *gin.Context) {
	institutionID := middleware.GetInstitutionID(c)
	m, err := h.availability.MapByInstitution(institutionID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "fetch failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"availability": m})
}

// Online returns the ephemeral roster: who holds a live connection right now.
func (h *PresenceHandler) Online(c *gin.Context) {
	institutionID := middleware.GetInstitutionID(c)
	c.JSON(http.StatusOK, gin.H{"online": h.presence.Online(institutionID)})
}
