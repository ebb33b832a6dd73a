package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/arnavshah/dispatch-api-go/pkg/apperr"
	"github.com/arnavshah/dispatch-api-go/pkg/intake"
	"github.com/arnavshah/dispatch-api-go/pkg/models"
	"github.com/gin-gonic/gin"
)

// ValidateInput is a dry run: exactly one of the request kinds is
// normalized without being stored
type ValidateInput struct {
	Resource  *models.ResourceRequest  `json:"resource_request,omitempty"`
	Volunteer *models.VolunteerRequest `json:"volunteer_request,omitempty"`
	SOS       *models.SOSReport        `json:"sos_report,omitempty"`
}

// ValidateRequest reports whether a request would be accepted and shows the
// demand it normalizes to
func (h *Handler) ValidateRequest(c *gin.Context) {
	var input ValidateInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"valid": false,
			"error": err.Error(),
		})
		return
	}

	var (
		demand models.Demand
		err    error
		n      int
	)
	if input.Resource != nil {
		n++
		demand, err = intake.FromResourceRequest(input.Resource)
	}
	if input.Volunteer != nil {
		n++
		demand, err = intake.FromVolunteerRequest(input.Volunteer)
	}
	if input.SOS != nil {
		n++
		var req *models.ResourceRequest
		if req, err = intake.SOSRequest("", input.SOS, time.Now()); err == nil {
			demand, err = intake.FromResourceRequest(req)
		}
	}

	if n != 1 {
		c.JSON(http.StatusOK, gin.H{
			"valid": false,
			"error": "Exactly one of resource_request, volunteer_request or sos_report is required",
		})
		return
	}
	if err != nil {
		body := gin.H{"valid": false, "error": err.Error(), "kind": apperr.KindOf(err)}
		var v *apperr.ValidationError
		if errors.As(err, &v) {
			body["field"] = v.Field
		}
		c.JSON(http.StatusOK, body)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"valid":  true,
		"demand": demand,
	})
}
