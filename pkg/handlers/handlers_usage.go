package handlers

import (
	"net/http"
	"strconv"

	"github.com/arnavshah/dispatch-api-go/pkg/apperr"
	"github.com/arnavshah/dispatch-api-go/pkg/database"
	"github.com/gin-gonic/gin"
)

// ResourceStatistics returns the resource dashboard projection
func (h *Handler) ResourceStatistics(c *gin.Context) {
	c.JSON(http.StatusOK, h.Svc.ResourceStatistics())
}

// VolunteerStatistics returns the volunteer dashboard projection
func (h *Handler) VolunteerStatistics(c *gin.Context) {
	c.JSON(http.StatusOK, h.Svc.VolunteerStatistics())
}

// GetActivity returns per-day dispatch counters since ?since=YYYY-MM-DD
func (h *Handler) GetActivity(c *gin.Context) {
	activity, err := h.Svc.Activity(c.Request.Context(), c.Query("since"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not fetch activity"})
		return
	}

	// Calculate totals per event kind
	events := make(map[string]int)
	units := make(map[string]int)
	for _, a := range activity {
		events[a.Kind] += a.Events
		units[a.Kind] += a.Units
	}

	c.JSON(http.StatusOK, gin.H{
		"activity_history": activity,
		"totals": gin.H{
			"events": events,
			"units":  units,
		},
	})
}

// ListEvents returns ledger journal entries, newest first
func (h *Handler) ListEvents(c *gin.Context) {
	f := database.EventFilter{
		RequestID: c.Query("request_id"),
		EntityID:  c.Query("entity_id"),
		Kind:      c.Query("kind"),
	}
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			h.respondError(c, apperr.Validation("limit", "must be a non-negative integer"))
			return
		}
		f.Limit = n
	}
	events, err := h.Svc.Events(c.Request.Context(), f)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not fetch events"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events, "count": len(events)})
}
