package handlers

import (
	"net/http"

	"github.com/arnavshah/dispatch-api-go/pkg/ledger"
	"github.com/arnavshah/dispatch-api-go/pkg/models"
	"github.com/gin-gonic/gin"
)

// GetRecommendations ranks candidates for a request. With ?async=1 it
// schedules a background refresh and answers with the latest published
// recommendation instead.
func (h *Handler) GetRecommendations(c *gin.Context) {
	id := c.Param("id")
	if async := c.Query("async"); async == "1" || async == "true" {
		latest, ok, err := h.Svc.RefreshRecommendations(id)
		if err != nil {
			h.respondError(c, err)
			return
		}
		body := gin.H{"request_id": id, "status": "refreshing"}
		if ok {
			body["latest"] = latest
		}
		c.JSON(http.StatusAccepted, body)
		return
	}

	rec, err := h.Svc.GetRecommendations(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

// RefreshAll recomputes recommendations for every open request
func (h *Handler) RefreshAll(c *gin.Context) {
	n, err := h.Svc.RefreshAll(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"refreshed": n})
}

// GetSignals returns the current route and weather conditions
func (h *Handler) GetSignals(c *gin.Context) {
	c.JSON(http.StatusOK, h.Svc.ExternalSignals())
}

// SetSignals replaces the route and weather conditions
func (h *Handler) SetSignals(c *gin.Context) {
	var in models.ExternalSignals
	if !h.bindJSON(c, &in) {
		return
	}
	n, err := h.Svc.SetExternalSignals(c.Request.Context(), in)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"signals": in, "refreshed": n})
}

// CommitAllocation commits resource units to a request
func (h *Handler) CommitAllocation(c *gin.Context) {
	var in ledger.ResourceCommit
	if !h.bindJSON(c, &in) {
		return
	}
	in.Actor = actorOf(c)
	out, err := h.Svc.CommitResourceAllocation(c.Request.Context(), in)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, out)
}

// ListAllocations filters allocations by request, resource and status
func (h *Handler) ListAllocations(c *gin.Context) {
	out := h.Svc.ListAllocations(ledger.AllocationFilter{
		RequestID:  c.Query("request_id"),
		ResourceID: c.Query("resource_id"),
		Status:     models.AllocationStatus(c.Query("status")),
	})
	c.JSON(http.StatusOK, gin.H{"allocations": out, "count": len(out)})
}

// GetAllocation returns one allocation
func (h *Handler) GetAllocation(c *gin.Context) {
	out, err := h.Svc.Allocation(c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// ReturnAllocation returns an allocation's units to the pool
func (h *Handler) ReturnAllocation(c *gin.Context) {
	out, err := h.Svc.ReturnAllocation(c.Request.Context(), c.Param("id"), actorOf(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// MarkAllocationLost writes off an allocation's units
func (h *Handler) MarkAllocationLost(c *gin.Context) {
	out, err := h.Svc.MarkAllocationLost(c.Request.Context(), c.Param("id"), actorOf(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// CommitAssignment commits a volunteer to a request
func (h *Handler) CommitAssignment(c *gin.Context) {
	var in ledger.VolunteerCommit
	if !h.bindJSON(c, &in) {
		return
	}
	in.Actor = actorOf(c)
	out, err := h.Svc.CommitVolunteerAssignment(c.Request.Context(), in)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, out)
}

// ListAssignments filters assignments by request, volunteer and status
func (h *Handler) ListAssignments(c *gin.Context) {
	out := h.Svc.ListAssignments(ledger.AssignmentFilter{
		RequestID:   c.Query("request_id"),
		VolunteerID: c.Query("volunteer_id"),
		Status:      models.AssignmentStatus(c.Query("status")),
	})
	c.JSON(http.StatusOK, gin.H{"assignments": out, "count": len(out)})
}

// GetAssignment returns one assignment
func (h *Handler) GetAssignment(c *gin.Context) {
	out, err := h.Svc.Assignment(c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// CheckIn records a volunteer's position on an active assignment
func (h *Handler) CheckIn(c *gin.Context) {
	var req struct {
		Location models.Location `json:"location"`
		Note     string          `json:"note"`
	}
	if !h.bindJSON(c, &req) {
		return
	}
	out, err := h.Svc.CheckIn(c.Request.Context(), c.Param("id"), req.Location, req.Note)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// CompleteAssignment finishes an assignment with an optional 0-5 rating
func (h *Handler) CompleteAssignment(c *gin.Context) {
	var req struct {
		Rating *float64 `json:"rating"`
	}
	// an empty body means no rating
	if c.Request.ContentLength != 0 && !h.bindJSON(c, &req) {
		return
	}
	out, err := h.Svc.CompleteAssignment(c.Request.Context(), c.Param("id"), req.Rating, actorOf(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// CancelAssignment releases the volunteer and reopens the slot
func (h *Handler) CancelAssignment(c *gin.Context) {
	out, err := h.Svc.CancelAssignment(c.Request.Context(), c.Param("id"), actorOf(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}
