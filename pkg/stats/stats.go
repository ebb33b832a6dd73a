// Package stats projects registry and ledger state into dashboard
// statistics. Every call recomputes from a fresh snapshot.
package stats

import "github.com/arnavshah/dispatch-api-go/pkg/models"

// LowStockRatio is the share of total quantity at or below which an
// available resource is reported as critically low
const LowStockRatio = 0.2

// Source supplies the snapshots statistics are computed from
type Source interface {
	Resources() []models.Resource
	Volunteers() []models.Volunteer
	Allocations() []models.ResourceAllocation
	Assignments() []models.VolunteerAssignment
}

// Aggregator computes statistics on demand
type Aggregator struct {
	src Source
}

// New creates an aggregator over src
func New(src Source) *Aggregator {
	return &Aggregator{src: src}
}

// ResourceStatistics summarizes resources and allocations
func (a *Aggregator) ResourceStatistics() models.ResourceStatistics {
	return Resources(a.src.Resources(), a.src.Allocations())
}

// VolunteerStatistics summarizes volunteers and assignments
func (a *Aggregator) VolunteerStatistics() models.VolunteerStatistics {
	return Volunteers(a.src.Volunteers(), a.src.Assignments())
}

// Resources computes resource statistics from explicit snapshots
func Resources(resources []models.Resource, allocations []models.ResourceAllocation) models.ResourceStatistics {
	s := models.ResourceStatistics{
		TotalResources:       len(resources),
		ResourcesByCategory:  make(map[models.Category]int),
		CriticalResourcesLow: []string{},
		TotalAllocations:     len(allocations),
	}
	for _, r := range resources {
		s.ResourcesByCategory[r.Category]++
		switch r.Status {
		case models.ResourceAvailable:
			s.AvailableResources++
			if float64(r.AvailableQuantity) <= LowStockRatio*float64(r.Quantity) {
				s.CriticalResourcesLow = append(s.CriticalResourcesLow, r.ID)
			}
		case models.ResourceDeployed:
			s.DeployedResources++
		case models.ResourceMaintenance:
			s.MaintenanceResources++
		case models.ResourceReserved:
			s.ReservedResources++
		}
	}
	for _, a := range allocations {
		if a.Status == models.AllocationActive {
			s.ActiveAllocations++
		}
	}
	if s.TotalResources > 0 {
		s.AllocationRate = float64(s.DeployedResources) / float64(s.TotalResources)
	}
	return s
}

// Volunteers computes volunteer statistics from explicit snapshots
func Volunteers(volunteers []models.Volunteer, assignments []models.VolunteerAssignment) models.VolunteerStatistics {
	s := models.VolunteerStatistics{
		TotalVolunteers:       len(volunteers),
		VolunteersByStatus:    make(map[models.VolunteerStatus]int),
		VolunteersBySpecialty: make(map[string]int),
		FairnessScore:         FairnessScore(volunteers),
	}
	var ratingSum float64
	rated := 0
	for _, v := range volunteers {
		s.VolunteersByStatus[v.Status]++
		if v.Specialty != "" {
			s.VolunteersBySpecialty[v.Specialty]++
		}
		if v.PerformanceRating != nil {
			ratingSum += *v.PerformanceRating
			rated++
		}
		s.TotalActiveHours += v.TotalHours
	}
	if rated > 0 {
		s.AverageRating = ratingSum / float64(rated)
	}
	for _, a := range assignments {
		if a.Status == models.AssignmentActive {
			s.ActiveAssignments++
		}
	}
	return s
}
