package handlers

import (
	"net/http"

	"github.com/arnavshah/dispatch-api-go/pkg/apperr"
	"github.com/arnavshah/dispatch-api-go/pkg/models"
	"github.com/gin-gonic/gin"
)

// SubmitResourceRequest files a resource request
func (h *Handler) SubmitResourceRequest(c *gin.Context) {
	var in models.ResourceRequest
	if !h.bindJSON(c, &in) {
		return
	}
	out, err := h.Svc.SubmitResourceRequest(c.Request.Context(), in)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, out)
}

// SubmitVolunteerRequest files a volunteer request
func (h *Handler) SubmitVolunteerRequest(c *gin.Context) {
	var in models.VolunteerRequest
	if !h.bindJSON(c, &in) {
		return
	}
	out, err := h.Svc.SubmitVolunteerRequest(c.Request.Context(), in)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, out)
}

// SubmitSOSReport files an emergency report as a resource request
func (h *Handler) SubmitSOSReport(c *gin.Context) {
	var in models.SOSReport
	if !h.bindJSON(c, &in) {
		return
	}
	out, err := h.Svc.SubmitSOSReport(c.Request.Context(), in)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, out)
}

// ListResourceRequests lists resource and SOS requests, optionally by status
func (h *Handler) ListResourceRequests(c *gin.Context) {
	reqs := h.Svc.ListResourceRequests(models.RequestStatus(c.Query("status")))
	c.JSON(http.StatusOK, gin.H{"requests": reqs, "count": len(reqs)})
}

// ListVolunteerRequests lists volunteer requests, optionally by status
func (h *Handler) ListVolunteerRequests(c *gin.Context) {
	reqs := h.Svc.ListVolunteerRequests(models.VolunteerRequestStatus(c.Query("status")))
	c.JSON(http.StatusOK, gin.H{"requests": reqs, "count": len(reqs)})
}

// GetRequest returns a request of either kind
func (h *Handler) GetRequest(c *gin.Context) {
	id := c.Param("id")
	if out, err := h.Svc.ResourceRequest(id); err == nil {
		c.JSON(http.StatusOK, out)
		return
	}
	out, err := h.Svc.VolunteerRequest(id)
	if err != nil {
		h.respondError(c, apperr.NotFound("request", id))
		return
	}
	c.JSON(http.StatusOK, out)
}

// ApproveRequest approves a pending resource request
func (h *Handler) ApproveRequest(c *gin.Context) {
	out, err := h.Svc.ApproveRequest(c.Request.Context(), c.Param("id"), actorOf(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// RejectRequest rejects a resource request; a reason is required
func (h *Handler) RejectRequest(c *gin.Context) {
	var req struct {
		Reason string `json:"reason"`
	}
	if !h.bindJSON(c, &req) {
		return
	}
	out, err := h.Svc.RejectRequest(c.Request.Context(), c.Param("id"), req.Reason, actorOf(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// CancelRequest cancels a request of either kind
func (h *Handler) CancelRequest(c *gin.Context) {
	out, err := h.Svc.CancelRequest(c.Request.Context(), c.Param("id"), actorOf(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}
