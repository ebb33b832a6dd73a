package service

import (
	"context"

	"github.com/arnavshah/dispatch-api-go/pkg/ledger"
	"github.com/arnavshah/dispatch-api-go/pkg/models"
)

// CommitResourceAllocation commits a chosen resource to a request
func (s *Service) CommitResourceAllocation(ctx context.Context, in ledger.ResourceCommit) (models.ResourceAllocation, error) {
	a, err := s.ledger.CommitResourceAllocation(ctx, in)
	if err != nil {
		s.logger.Info("allocation commit refused",
			"request_id", in.RequestID, "resource_id", in.ResourceID, "quantity", in.Quantity, "error", err)
		// a quarantine may have changed the resource
		s.saveResource(ctx, in.ResourceID)
		return models.ResourceAllocation{}, err
	}
	s.saveAllocation(ctx, a)
	s.saveResourceRequest(ctx, a.AllocatedTo)
	if req, err := s.ledger.ResourceRequest(a.AllocatedTo); err == nil && req.Status == models.RequestFulfilled {
		s.coord.Forget(req.ID)
	}
	return a, nil
}

// ReturnAllocation returns an active allocation's units
func (s *Service) ReturnAllocation(ctx context.Context, id, actor string) (models.ResourceAllocation, error) {
	a, err := s.ledger.ReturnAllocation(ctx, id, actor)
	if err != nil {
		return models.ResourceAllocation{}, err
	}
	s.saveAllocation(ctx, a)
	return a, nil
}

// MarkAllocationLost writes off an active allocation
func (s *Service) MarkAllocationLost(ctx context.Context, id, actor string) (models.ResourceAllocation, error) {
	a, err := s.ledger.MarkAllocationLost(ctx, id, actor)
	if err != nil {
		return models.ResourceAllocation{}, err
	}
	s.saveAllocation(ctx, a)
	return a, nil
}

// Allocation returns one allocation
func (s *Service) Allocation(id string) (models.ResourceAllocation, error) {
	return s.ledger.Allocation(id)
}

// ListAllocations lists allocations matching the filter
func (s *Service) ListAllocations(f ledger.AllocationFilter) []models.ResourceAllocation {
	return s.ledger.Allocations(f)
}

// CommitVolunteerAssignment commits a chosen volunteer to a request
func (s *Service) CommitVolunteerAssignment(ctx context.Context, in ledger.VolunteerCommit) (models.VolunteerAssignment, error) {
	a, err := s.ledger.CommitVolunteerAssignment(ctx, in)
	if err != nil {
		s.logger.Info("assignment commit refused",
			"request_id", in.RequestID, "volunteer_id", in.VolunteerID, "error", err)
		s.saveVolunteer(ctx, in.VolunteerID)
		return models.VolunteerAssignment{}, err
	}
	s.saveAssignment(ctx, a)
	s.saveVolunteerRequest(ctx, a.TaskID)
	if req, err := s.ledger.VolunteerRequest(a.TaskID); err == nil && req.Status == models.VolunteerRequestFilled {
		s.coord.Forget(req.ID)
	}
	return a, nil
}

// CheckIn records a volunteer's arrival on site
func (s *Service) CheckIn(ctx context.Context, id string, loc models.Location, note string) (models.VolunteerAssignment, error) {
	a, err := s.ledger.CheckIn(ctx, id, loc, note)
	if err != nil {
		return models.VolunteerAssignment{}, err
	}
	s.saveAssignment(ctx, a)
	return a, nil
}

// CompleteAssignment finishes an assignment with an optional rating
func (s *Service) CompleteAssignment(ctx context.Context, id string, rating *float64, actor string) (models.VolunteerAssignment, error) {
	a, err := s.ledger.CompleteAssignment(ctx, id, rating, actor)
	if err != nil {
		return models.VolunteerAssignment{}, err
	}
	s.saveAssignment(ctx, a)
	return a, nil
}

// CancelAssignment releases the volunteer and reopens the request slot
func (s *Service) CancelAssignment(ctx context.Context, id, actor string) (models.VolunteerAssignment, error) {
	a, err := s.ledger.CancelAssignment(ctx, id, actor)
	if err != nil {
		return models.VolunteerAssignment{}, err
	}
	s.saveAssignment(ctx, a)
	s.saveVolunteerRequest(ctx, a.TaskID)
	return a, nil
}

// Assignment returns one assignment
func (s *Service) Assignment(id string) (models.VolunteerAssignment, error) {
	return s.ledger.Assignment(id)
}

// ListAssignments lists assignments matching the filter
func (s *Service) ListAssignments(f ledger.AssignmentFilter) []models.VolunteerAssignment {
	return s.ledger.Assignments(f)
}
