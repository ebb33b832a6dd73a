package handlers

import (
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/arnavshah/dispatch-api-go/pkg/apperr"
	"github.com/arnavshah/dispatch-api-go/pkg/models"
	"github.com/arnavshah/dispatch-api-go/pkg/registry"
	"github.com/gin-gonic/gin"
)

// ListResources returns resources filtered by category, type, status and location
func (h *Handler) ListResources(c *gin.Context) {
	resources := h.Svc.ListResources(registry.ResourceFilter{
		Category: models.Category(c.Query("category")),
		Type:     c.Query("type"),
		Status:   models.ResourceStatus(c.Query("status")),
		Location: c.Query("location"),
	})
	c.JSON(http.StatusOK, gin.H{"resources": resources, "count": len(resources)})
}

// RegisterResource adds a resource pool
func (h *Handler) RegisterResource(c *gin.Context) {
	var in models.Resource
	if !h.bindJSON(c, &in) {
		return
	}
	out, err := h.Svc.RegisterResource(c.Request.Context(), in)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, out)
}

// GetResource returns one resource
func (h *Handler) GetResource(c *gin.Context) {
	out, err := h.Svc.GetResource(c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// UpdateResourceStatus applies an administrative status change
func (h *Handler) UpdateResourceStatus(c *gin.Context) {
	var req struct {
		Status models.ResourceStatus `json:"status" form:"status"`
	}
	// Try JSON first, then Form/Query
	if err := c.ShouldBindJSON(&req); err != nil {
		if err := c.ShouldBindQuery(&req); err != nil {
			h.respondError(c, apperr.Validation("status", "required"))
			return
		}
	}
	out, err := h.Svc.UpdateResourceStatus(c.Request.Context(), c.Param("id"), req.Status, actorOf(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// ImportResourcesCSV registers every row of an uploaded resources file.
// Rows that fail are reported and skipped.
func (h *Handler) ImportResourcesCSV(c *gin.Context) {
	file, _ := c.FormFile("resources_file")
	if file == nil {
		h.respondError(c, apperr.Validation("resources_file", "required"))
		return
	}
	f, err := file.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to open resources file"})
		return
	}
	defer f.Close()

	reader := csv.NewReader(f)
	header, err := reader.Read()
	if err != nil {
		h.respondError(c, apperr.Validation("resources_file", "failed to read header"))
		return
	}
	cols := make(map[string]int)
	for i, name := range header {
		cols[strings.TrimSpace(strings.ToLower(name))] = i
	}
	for _, required := range []string{"name", "category", "quantity"} {
		if _, ok := cols[required]; !ok {
			h.respondError(c, apperr.Validation("resources_file", "missing column "+required))
			return
		}
	}
	field := func(record []string, name string) string {
		if i, ok := cols[name]; ok && i < len(record) {
			return strings.TrimSpace(record[i])
		}
		return ""
	}

	registered := []models.Resource{}
	rowErrors := []gin.H{}
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			rowErrors = append(rowErrors, gin.H{"line": line, "error": err.Error()})
			continue
		}
		r, err := resourceFromRecord(func(name string) string { return field(record, name) })
		if err == nil {
			r, err = h.Svc.RegisterResource(c.Request.Context(), r)
		}
		if err != nil {
			rowErrors = append(rowErrors, gin.H{"line": line, "error": err.Error(), "kind": apperr.KindOf(err)})
			continue
		}
		registered = append(registered, r)
	}

	c.JSON(http.StatusOK, gin.H{
		"registered": registered,
		"errors":     rowErrors,
	})
}

func resourceFromRecord(get func(string) string) (models.Resource, error) {
	qty, err := strconv.Atoi(get("quantity"))
	if err != nil {
		return models.Resource{}, apperr.Validation("quantity", fmt.Sprintf("not a number: %q", get("quantity")))
	}
	r := models.Resource{
		ID:                get("id"),
		Name:              get("name"),
		Category:          models.Category(strings.ToLower(get("category"))),
		Type:              get("type"),
		Quantity:          qty,
		AvailableQuantity: qty,
		Condition:         get("condition"),
		Priority:          get("priority"),
		Location:          models.Location{Name: get("location")},
	}
	if v := get("available_quantity"); v != "" {
		if r.AvailableQuantity, err = strconv.Atoi(v); err != nil {
			return models.Resource{}, apperr.Validation("available_quantity", fmt.Sprintf("not a number: %q", v))
		}
	}
	if v := get("lat"); v != "" {
		if r.Location.Lat, err = strconv.ParseFloat(v, 64); err != nil {
			return models.Resource{}, apperr.Validation("lat", fmt.Sprintf("not a number: %q", v))
		}
	}
	if v := get("lon"); v != "" {
		if r.Location.Lon, err = strconv.ParseFloat(v, 64); err != nil {
			return models.Resource{}, apperr.Validation("lon", fmt.Sprintf("not a number: %q", v))
		}
	}
	return r, nil
}

// ListVolunteers returns volunteers filtered by specialty, skill and status
func (h *Handler) ListVolunteers(c *gin.Context) {
	volunteers := h.Svc.ListVolunteers(registry.VolunteerFilter{
		Specialty: c.Query("specialty"),
		Skill:     c.Query("skill"),
		Status:    models.VolunteerStatus(c.Query("status")),
	})
	c.JSON(http.StatusOK, gin.H{"volunteers": volunteers, "count": len(volunteers)})
}

// RegisterVolunteer adds a volunteer
func (h *Handler) RegisterVolunteer(c *gin.Context) {
	var in models.Volunteer
	if !h.bindJSON(c, &in) {
		return
	}
	out, err := h.Svc.RegisterVolunteer(c.Request.Context(), in)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, out)
}

// GetVolunteer returns one volunteer
func (h *Handler) GetVolunteer(c *gin.Context) {
	out, err := h.Svc.GetVolunteer(c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// SetVolunteerAvailability toggles a volunteer between available and unavailable
func (h *Handler) SetVolunteerAvailability(c *gin.Context) {
	var req struct {
		Status models.VolunteerStatus `json:"status" form:"status"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		if err := c.ShouldBindQuery(&req); err != nil {
			h.respondError(c, apperr.Validation("status", "required"))
			return
		}
	}
	out, err := h.Svc.SetVolunteerAvailability(c.Request.Context(), c.Param("id"), req.Status, actorOf(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}
