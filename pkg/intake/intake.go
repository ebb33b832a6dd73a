// Package intake normalizes resource requests, volunteer requests and SOS
// reports into a single Demand shape for the matching engine.
package intake

import (
	"fmt"
	"strings"
	"time"

	"github.com/arnavshah/dispatch-api-go/pkg/apperr"
	"github.com/arnavshah/dispatch-api-go/pkg/models"
)

var urgencyScale = map[string]models.Urgency{
	// resource request vocabulary
	"immediate": models.UrgencyCritical,
	"urgent":    models.UrgencyHigh,
	"standard":  models.UrgencyMedium,
	"normal":    models.UrgencyMedium,
	// SOS severity vocabulary
	"critical": models.UrgencyCritical,
	"high":     models.UrgencyHigh,
	"medium":   models.UrgencyMedium,
	"low":      models.UrgencyLow,
}

var deadlines = map[models.Urgency]time.Duration{
	models.UrgencyCritical: 15 * time.Minute,
	models.UrgencyHigh:     time.Hour,
	models.UrgencyMedium:   4 * time.Hour,
	models.UrgencyLow:      24 * time.Hour,
}

// emergencyCapabilities maps SOS emergency types to the resource category
// dispatched for them when the report does not name one.
var emergencyCapabilities = map[string]models.Category{
	"medical":    models.CategoryMedical,
	"accident":   models.CategoryMedical,
	"fire":       models.CategoryVehicles,
	"flood":      models.CategoryEquipment,
	"earthquake": models.CategoryPersonnel,
	"shortage":   models.CategorySupplies,
	"shelter":    models.CategoryFacilities,
}

// ParseUrgency maps any supported urgency label onto the ordinal scale
func ParseUrgency(label string) (models.Urgency, error) {
	u, ok := urgencyScale[strings.ToLower(strings.TrimSpace(label))]
	if !ok {
		return 0, apperr.Validation("urgency", fmt.Sprintf("unknown urgency %q", label))
	}
	return u, nil
}

// DeadlineHint returns the response window associated with an urgency tier
func DeadlineHint(u models.Urgency) time.Duration {
	return deadlines[u]
}

// FromResourceRequest normalizes a resource request
func FromResourceRequest(req *models.ResourceRequest) (models.Demand, error) {
	if req.Quantity <= 0 {
		return models.Demand{}, apperr.Validation("quantity", "must be greater than zero")
	}
	if req.Category == "" {
		return models.Demand{}, apperr.Validation("category", "required")
	}
	if !req.Category.Valid() {
		return models.Demand{}, apperr.Validation("category", fmt.Sprintf("unknown category %q", req.Category))
	}
	u, err := ParseUrgency(req.Urgency)
	if err != nil {
		return models.Demand{}, err
	}
	source := req.Source
	if source == "" {
		source = models.SourceResource
	}
	return models.Demand{
		RequestID:          req.ID,
		RequiredCapability: string(req.Category),
		Specialty:          req.Type,
		Quantity:           req.Quantity,
		Urgency:            u,
		UrgencyLabel:       req.Urgency,
		Location:           req.Location,
		DeadlineHint:       DeadlineHint(u),
		SourceKind:         source,
	}, nil
}

// FromVolunteerRequest normalizes a volunteer request. The first required
// skill is the capability; the full list drives specialization scoring.
func FromVolunteerRequest(req *models.VolunteerRequest) (models.Demand, error) {
	if req.NumberOfVolunteers <= 0 {
		return models.Demand{}, apperr.Validation("number_of_volunteers", "must be greater than zero")
	}
	skills := make([]string, 0, len(req.RequiredSkills))
	for _, s := range req.RequiredSkills {
		if s = strings.TrimSpace(s); s != "" {
			skills = append(skills, s)
		}
	}
	if len(skills) == 0 {
		return models.Demand{}, apperr.Validation("required_skills", "at least one skill is required")
	}
	u, err := ParseUrgency(req.Urgency)
	if err != nil {
		return models.Demand{}, err
	}
	return models.Demand{
		RequestID:          req.ID,
		RequiredCapability: skills[0],
		RequiredSkills:     skills,
		Quantity:           req.NumberOfVolunteers,
		Urgency:            u,
		UrgencyLabel:       req.Urgency,
		Location:           req.Location,
		DeadlineHint:       DeadlineHint(u),
		SourceKind:         models.SourceVolunteer,
	}, nil
}

// SOSRequest turns an SOS report into the resource request stored for it
func SOSRequest(id string, report *models.SOSReport, now time.Time) (*models.ResourceRequest, error) {
	capability := models.Category(strings.ToLower(strings.TrimSpace(report.RequiredCapability)))
	if capability == "" {
		capability = emergencyCapabilities[strings.ToLower(strings.TrimSpace(report.EmergencyType))]
	}
	if capability == "" {
		return nil, apperr.Validation("required_capability", fmt.Sprintf("cannot infer capability for emergency type %q", report.EmergencyType))
	}
	units := report.UnitsNeeded
	if units == 0 {
		units = 1
	}
	req := &models.ResourceRequest{
		ID:          id,
		Source:      models.SourceSOS,
		Category:    capability,
		Quantity:    units,
		Urgency:     report.Severity,
		Location:    report.Location,
		Status:      models.RequestPending,
		Description: report.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if _, err := FromResourceRequest(req); err != nil {
		return nil, err
	}
	return req, nil
}
