package intake

import (
	"errors"
	"testing"
	"time"

	"github.com/arnavshah/dispatch-api-go/pkg/apperr"
	"github.com/arnavshah/dispatch-api-go/pkg/models"
)

func TestParseUrgencyVocabularies(t *testing.T) {
	tests := []struct {
		label string
		want  models.Urgency
	}{
		{"immediate", models.UrgencyCritical},
		{"urgent", models.UrgencyHigh},
		{"standard", models.UrgencyMedium},
		{"normal", models.UrgencyMedium},
		{"Critical", models.UrgencyCritical},
		{"high", models.UrgencyHigh},
		{"medium", models.UrgencyMedium},
		{" low ", models.UrgencyLow},
	}
	for _, tt := range tests {
		got, err := ParseUrgency(tt.label)
		if err != nil {
			t.Errorf("ParseUrgency(%q): %v", tt.label, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseUrgency(%q) = %s, want %s", tt.label, got, tt.want)
		}
	}
}

func TestFromResourceRequestValidation(t *testing.T) {
	tests := []struct {
		name  string
		req   models.ResourceRequest
		field string
	}{
		{"zero quantity", models.ResourceRequest{Category: models.CategoryMedical, Urgency: "urgent"}, "quantity"},
		{"missing category", models.ResourceRequest{Quantity: 2, Urgency: "urgent"}, "category"},
		{"unknown category", models.ResourceRequest{Category: "boats", Quantity: 2, Urgency: "urgent"}, "category"},
		{"bad urgency", models.ResourceRequest{Category: models.CategoryMedical, Quantity: 2, Urgency: "whenever"}, "urgency"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromResourceRequest(&tt.req)
			var ve *apperr.ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("Expected validation error, got %v", err)
			}
			if ve.Field != tt.field {
				t.Errorf("Expected field %q, got %q", tt.field, ve.Field)
			}
		})
	}
}

func TestFromResourceRequestKeepsLabel(t *testing.T) {
	d, err := FromResourceRequest(&models.ResourceRequest{
		ID:       "req-1",
		Category: models.CategoryEquipment,
		Type:     "water_pump",
		Quantity: 4,
		Urgency:  "immediate",
	})
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if d.Urgency != models.UrgencyCritical || d.UrgencyLabel != "immediate" {
		t.Errorf("Expected critical tier with label immediate, got %s/%s", d.Urgency, d.UrgencyLabel)
	}
	if d.Quantity != 4 || d.Specialty != "water_pump" || d.SourceKind != models.SourceResource {
		t.Errorf("Unexpected demand %+v", d)
	}
	if d.DeadlineHint != 15*time.Minute {
		t.Errorf("Expected 15m deadline, got %s", d.DeadlineHint)
	}
}

func TestFromVolunteerRequest(t *testing.T) {
	d, err := FromVolunteerRequest(&models.VolunteerRequest{
		ID:                 "vr-1",
		RequiredSkills:     []string{"search_rescue", " ", "first_aid"},
		NumberOfVolunteers: 5,
		Urgency:            "high",
	})
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if d.RequiredCapability != "search_rescue" || len(d.RequiredSkills) != 2 {
		t.Errorf("Unexpected skills %v / %s", d.RequiredSkills, d.RequiredCapability)
	}
	if d.Quantity != 5 || d.SourceKind != models.SourceVolunteer {
		t.Errorf("Expected one demand carrying quantity 5, got %+v", d)
	}

	_, err = FromVolunteerRequest(&models.VolunteerRequest{NumberOfVolunteers: 1, Urgency: "high"})
	var ve *apperr.ValidationError
	if !errors.As(err, &ve) || ve.Field != "required_skills" {
		t.Errorf("Expected required_skills validation error, got %v", err)
	}
}

func TestSOSRequestInfersCapability(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	req, err := SOSRequest("sos-1", &models.SOSReport{
		EmergencyType: "Fire",
		Severity:      "critical",
		Location:      models.Location{Name: "Downtown"},
	}, now)
	if err != nil {
		t.Fatalf("sos: %v", err)
	}
	if req.Category != models.CategoryVehicles || req.Quantity != 1 || req.Source != models.SourceSOS {
		t.Errorf("Unexpected request %+v", req)
	}

	req, err = SOSRequest("sos-2", &models.SOSReport{EmergencyType: "fire", Severity: "low", RequiredCapability: "medical", UnitsNeeded: 3}, now)
	if err != nil {
		t.Fatalf("sos: %v", err)
	}
	if req.Category != models.CategoryMedical || req.Quantity != 3 {
		t.Errorf("Expected explicit capability to win, got %+v", req)
	}

	if _, err := SOSRequest("sos-3", &models.SOSReport{EmergencyType: "alien", Severity: "low"}, now); apperr.KindOf(err) != apperr.KindValidation {
		t.Errorf("Expected validation error for unknown type, got %v", err)
	}
}
