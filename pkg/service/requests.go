package service

import (
	"context"

	"github.com/arnavshah/dispatch-api-go/pkg/ledger"
	"github.com/arnavshah/dispatch-api-go/pkg/models"
)

// SubmitResourceRequest validates and stores a resource request
func (s *Service) SubmitResourceRequest(ctx context.Context, req models.ResourceRequest) (models.ResourceRequest, error) {
	out, err := s.ledger.SubmitResourceRequest(ctx, req)
	if err != nil {
		return models.ResourceRequest{}, err
	}
	s.saveResourceRequest(ctx, out.ID)
	return out, nil
}

// SubmitVolunteerRequest validates and stores a volunteer request
func (s *Service) SubmitVolunteerRequest(ctx context.Context, req models.VolunteerRequest) (models.VolunteerRequest, error) {
	out, err := s.ledger.SubmitVolunteerRequest(ctx, req)
	if err != nil {
		return models.VolunteerRequest{}, err
	}
	s.saveVolunteerRequest(ctx, out.ID)
	return out, nil
}

// SubmitSOSReport turns an SOS report into an emergency resource request
func (s *Service) SubmitSOSReport(ctx context.Context, report models.SOSReport) (models.ResourceRequest, error) {
	out, err := s.ledger.SubmitSOSReport(ctx, report)
	if err != nil {
		return models.ResourceRequest{}, err
	}
	s.saveResourceRequest(ctx, out.ID)
	s.logger.Warn("sos report received",
		"request_id", out.ID,
		"emergency_type", report.EmergencyType,
		"severity", report.Severity,
		"location", report.Location.Name,
		"people_affected", report.PeopleAffected,
	)
	return out, nil
}

// ResourceRequest returns a resource or SOS request
func (s *Service) ResourceRequest(id string) (models.ResourceRequest, error) {
	return s.ledger.ResourceRequest(id)
}

// VolunteerRequest returns a volunteer request
func (s *Service) VolunteerRequest(id string) (models.VolunteerRequest, error) {
	return s.ledger.VolunteerRequest(id)
}

// ListResourceRequests lists resource and SOS requests by status
func (s *Service) ListResourceRequests(status models.RequestStatus) []models.ResourceRequest {
	return s.ledger.ResourceRequests(status)
}

// ListVolunteerRequests lists volunteer requests by status
func (s *Service) ListVolunteerRequests(status models.VolunteerRequestStatus) []models.VolunteerRequest {
	return s.ledger.VolunteerRequests(status)
}

// ApproveRequest approves a pending resource request
func (s *Service) ApproveRequest(ctx context.Context, id, actor string) (models.ResourceRequest, error) {
	out, err := s.ledger.ApproveRequest(ctx, id, actor)
	if err != nil {
		return models.ResourceRequest{}, err
	}
	s.saveResourceRequest(ctx, id)
	return out, nil
}

// RejectRequest rejects a resource request with a reason
func (s *Service) RejectRequest(ctx context.Context, id, reason, actor string) (models.ResourceRequest, error) {
	out, err := s.ledger.RejectRequest(ctx, id, reason, actor)
	if err != nil {
		return models.ResourceRequest{}, err
	}
	s.coord.Forget(id)
	s.saveResourceRequest(ctx, id)
	return out, nil
}

// CancelRequest cancels a resource or volunteer request, undoing only the
// allocations or assignments made for it
func (s *Service) CancelRequest(ctx context.Context, id, actor string) (any, error) {
	if _, err := s.ledger.ResourceRequest(id); err == nil {
		out, err := s.ledger.CancelResourceRequest(ctx, id, actor)
		if err != nil {
			return nil, err
		}
		s.coord.Forget(id)
		s.saveResourceRequest(ctx, id)
		for _, a := range s.ledger.Allocations(ledger.AllocationFilter{RequestID: id}) {
			s.saveAllocation(ctx, a)
		}
		return out, nil
	}
	out, err := s.ledger.CancelVolunteerRequest(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	s.coord.Forget(id)
	s.saveVolunteerRequest(ctx, id)
	for _, a := range s.ledger.Assignments(ledger.AssignmentFilter{RequestID: id}) {
		s.saveAssignment(ctx, a)
	}
	return out, nil
}
