package stats

import (
	"reflect"
	"testing"

	"github.com/arnavshah/dispatch-api-go/pkg/models"
)

type staticSource struct {
	resources   []models.Resource
	volunteers  []models.Volunteer
	allocations []models.ResourceAllocation
	assignments []models.VolunteerAssignment
}

func (s staticSource) Resources() []models.Resource              { return s.resources }
func (s staticSource) Volunteers() []models.Volunteer            { return s.volunteers }
func (s staticSource) Allocations() []models.ResourceAllocation  { return s.allocations }
func (s staticSource) Assignments() []models.VolunteerAssignment { return s.assignments }

func rating(v float64) *float64 { return &v }

func fixtureSource() staticSource {
	return staticSource{
		resources: []models.Resource{
			{ID: "res-pumps", Category: models.CategoryEquipment, Quantity: 15, AvailableQuantity: 7, AllocatedQuantity: 4, Status: models.ResourceDeployed},
			{ID: "res-kits", Category: models.CategoryMedical, Quantity: 50, AvailableQuantity: 10, Status: models.ResourceAvailable},
			{ID: "res-water", Category: models.CategorySupplies, Quantity: 200, AvailableQuantity: 150, Status: models.ResourceAvailable},
			{ID: "res-truck", Category: models.CategoryVehicles, Quantity: 2, AvailableQuantity: 0, Status: models.ResourceMaintenance},
		},
		volunteers: []models.Volunteer{
			{ID: "vol-001", Specialty: "medical", Status: models.VolunteerAvailable, PerformanceRating: rating(4.5), TotalHours: 120, AssignedHours: 10},
			{ID: "vol-002", Specialty: "search_rescue", Status: models.VolunteerDeployed, PerformanceRating: rating(3.5), TotalHours: 80, AssignedHours: 10},
			{ID: "vol-003", Specialty: "medical", Status: models.VolunteerOffDuty, TotalHours: 0},
		},
		allocations: []models.ResourceAllocation{
			{ID: "alloc-1", ResourceID: "res-pumps", Quantity: 4, Status: models.AllocationActive},
			{ID: "alloc-2", ResourceID: "res-kits", Quantity: 5, Status: models.AllocationReturned},
		},
		assignments: []models.VolunteerAssignment{
			{ID: "asg-1", VolunteerID: "vol-002", Status: models.AssignmentActive},
			{ID: "asg-2", VolunteerID: "vol-001", Status: models.AssignmentCompleted},
		},
	}
}

func TestResourceStatistics(t *testing.T) {
	s := New(fixtureSource()).ResourceStatistics()

	if s.TotalResources != 4 || s.AvailableResources != 2 || s.DeployedResources != 1 || s.MaintenanceResources != 1 {
		t.Errorf("Expected 4 total, 2 available, 1 deployed, 1 maintenance; got %+v", s)
	}
	if s.ResourcesByCategory[models.CategoryMedical] != 1 || len(s.ResourcesByCategory) != 4 {
		t.Errorf("Expected one resource per category, got %v", s.ResourcesByCategory)
	}
	// res-truck is empty but in maintenance, so only res-kits counts
	if !reflect.DeepEqual(s.CriticalResourcesLow, []string{"res-kits"}) {
		t.Errorf("Expected [res-kits] critically low, got %v", s.CriticalResourcesLow)
	}
	if s.AllocationRate != 0.25 {
		t.Errorf("Expected allocation rate 0.25, got %f", s.AllocationRate)
	}
	if s.TotalAllocations != 2 || s.ActiveAllocations != 1 {
		t.Errorf("Expected 2 allocations with 1 active, got %d/%d", s.TotalAllocations, s.ActiveAllocations)
	}
}

func TestResourceStatisticsEmpty(t *testing.T) {
	s := Resources(nil, nil)
	if s.AllocationRate != 0 || s.TotalResources != 0 {
		t.Errorf("Expected zero statistics, got %+v", s)
	}
	if s.CriticalResourcesLow == nil {
		t.Error("Expected empty, non-nil low-stock list")
	}
}

func TestVolunteerStatistics(t *testing.T) {
	s := New(fixtureSource()).VolunteerStatistics()

	if s.TotalVolunteers != 3 {
		t.Errorf("Expected 3 volunteers, got %d", s.TotalVolunteers)
	}
	if s.AverageRating != 4.0 {
		t.Errorf("Expected average rating 4.0 skipping unrated, got %f", s.AverageRating)
	}
	if s.TotalActiveHours != 200 {
		t.Errorf("Expected 200 total hours, got %f", s.TotalActiveHours)
	}
	if s.VolunteersBySpecialty["medical"] != 2 || s.VolunteersBySpecialty["search_rescue"] != 1 {
		t.Errorf("Unexpected specialty counts %v", s.VolunteersBySpecialty)
	}
	if s.VolunteersByStatus[models.VolunteerDeployed] != 1 || s.ActiveAssignments != 1 {
		t.Errorf("Expected 1 deployed volunteer and 1 active assignment, got %v/%d", s.VolunteersByStatus, s.ActiveAssignments)
	}
}

func TestStatisticsAreIdempotent(t *testing.T) {
	agg := New(fixtureSource())
	if a, b := agg.ResourceStatistics(), agg.ResourceStatistics(); !reflect.DeepEqual(a, b) {
		t.Errorf("Expected identical resource statistics, got %+v and %+v", a, b)
	}
	if a, b := agg.VolunteerStatistics(), agg.VolunteerStatistics(); !reflect.DeepEqual(a, b) {
		t.Errorf("Expected identical volunteer statistics, got %+v and %+v", a, b)
	}
}

func TestFairnessScore(t *testing.T) {
	tests := []struct {
		name  string
		hours []float64
		want  float64
	}{
		{"no volunteers", nil, 100},
		{"nobody worked", []float64{0, 0}, 100},
		{"even load", []float64{8, 8, 8}, 100},
		{"uneven load", []float64{10, 0}, 0},
		{"mild spread", []float64{6, 10}, 75},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vols := make([]models.Volunteer, len(tt.hours))
			for i, h := range tt.hours {
				vols[i] = models.Volunteer{AssignedHours: h}
			}
			if got := FairnessScore(vols); got != tt.want {
				t.Errorf("Expected fairness %.2f, got %.2f", tt.want, got)
			}
		})
	}
}
