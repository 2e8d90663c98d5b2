package handler

import (
	"net/http"

	"convive/internal/middleware"
	"convive/internal/service"

	"github.com/gin-gonic/gin"
)

type IncidentHandler struct {
	svc *service.IncidentService
}

func NewIncidentHandler(svc *service.IncidentService) *IncidentHandler {
	return &IncidentHandler{svc: svc}
}

func (h *IncidentHandler) ListMine(c *gin.Context) {
	userID := middleware.GetUserID(c)
	onlyUnseen := c.Query("unseen") == "true"
	list, err := h.svc.ListForUser(userID, onlyUnseen)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"cases": list})
}

// MarkSeen acknowledges the caller's DEC cases: one incident when the body
// names it, every unseen case otherwise.
func (h *IncidentHandler) MarkSeen(c *gin.Context) {
	userID := middleware.GetUserID(c)
	var req struct {
		IncidentID *uint `json:"incident_id"`
	}
	// An empty body means "all".
	_ = c.ShouldBindJSON(&req)
	n, err := h.svc.MarkSeen(userID, req.IncidentID)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "mark seen failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"marked": n})
}
