package ledger

import (
	"context"
	"strings"

	"github.com/arnavshah/dispatch-api-go/pkg/apperr"
	"github.com/arnavshah/dispatch-api-go/pkg/intake"
	"github.com/arnavshah/dispatch-api-go/pkg/models"
	"github.com/google/uuid"
)

// SubmitResourceRequest validates and stores a resource request
func (l *Ledger) SubmitResourceRequest(ctx context.Context, req models.ResourceRequest) (models.ResourceRequest, error) {
	if req.ID == "" {
		req.ID = "req-" + uuid.NewString()
	}
	req.Source = models.SourceResource
	if _, err := intake.FromResourceRequest(&req); err != nil {
		return models.ResourceRequest{}, err
	}
	return l.storeResourceRequest(ctx, req)
}

// SubmitSOSReport stores an SOS report as an emergency resource request
func (l *Ledger) SubmitSOSReport(ctx context.Context, report models.SOSReport) (models.ResourceRequest, error) {
	req, err := intake.SOSRequest("sos-"+uuid.NewString(), &report, l.now())
	if err != nil {
		return models.ResourceRequest{}, err
	}
	return l.storeResourceRequest(ctx, *req)
}

func (l *Ledger) storeResourceRequest(ctx context.Context, req models.ResourceRequest) (models.ResourceRequest, error) {
	now := l.now()
	req.Status = models.RequestPending
	req.FulfilledQuantity = 0
	req.FulfillmentDetails = nil
	req.Version = 0
	req.CreatedAt = now
	if err := l.resourceRequests.Insert(req.ID, req); err != nil {
		return models.ResourceRequest{}, err
	}
	l.record(ctx, Event{Kind: EventRequestSubmitted, EntityID: req.ID, RequestID: req.ID, Quantity: req.Quantity, Detail: string(req.Source)})
	return l.resourceRequests.Get(req.ID)
}

// SubmitVolunteerRequest validates and stores a volunteer request
func (l *Ledger) SubmitVolunteerRequest(ctx context.Context, req models.VolunteerRequest) (models.VolunteerRequest, error) {
	if req.ID == "" {
		req.ID = "vreq-" + uuid.NewString()
	}
	d, err := intake.FromVolunteerRequest(&req)
	if err != nil {
		return models.VolunteerRequest{}, err
	}
	req.RequiredSkills = d.RequiredSkills
	req.AssignedVolunteers = []string{}
	req.Status = models.VolunteerRequestOpen
	req.Version = 0
	req.CreatedAt = l.now()
	if err := l.volunteerRequests.Insert(req.ID, req); err != nil {
		return models.VolunteerRequest{}, err
	}
	l.record(ctx, Event{Kind: EventRequestSubmitted, EntityID: req.ID, RequestID: req.ID, Quantity: req.NumberOfVolunteers, Detail: string(models.SourceVolunteer)})
	return l.volunteerRequests.Get(req.ID)
}

// ResourceRequest returns a resource or SOS request
func (l *Ledger) ResourceRequest(id string) (models.ResourceRequest, error) {
	return l.resourceRequests.Get(id)
}

// VolunteerRequest returns a volunteer request
func (l *Ledger) VolunteerRequest(id string) (models.VolunteerRequest, error) {
	return l.volunteerRequests.Get(id)
}

// ResourceRequests lists resource and SOS requests, optionally by status
func (l *Ledger) ResourceRequests(status models.RequestStatus) []models.ResourceRequest {
	all := l.resourceRequests.Snapshot()
	out := all[:0]
	for _, r := range all {
		if status == "" || r.Status == status {
			out = append(out, r)
		}
	}
	return out
}

// VolunteerRequests lists volunteer requests, optionally by status
func (l *Ledger) VolunteerRequests(status models.VolunteerRequestStatus) []models.VolunteerRequest {
	all := l.volunteerRequests.Snapshot()
	out := all[:0]
	for _, r := range all {
		if status == "" || r.Status == status {
			out = append(out, r)
		}
	}
	return out
}

// Demand normalizes the stored request with the given id
func (l *Ledger) Demand(id string) (models.Demand, error) {
	if req, err := l.resourceRequests.Get(id); err == nil {
		return intake.FromResourceRequest(&req)
	}
	if req, err := l.volunteerRequests.Get(id); err == nil {
		return intake.FromVolunteerRequest(&req)
	}
	return models.Demand{}, apperr.NotFound("request", id)
}

// ApproveRequest moves a pending resource request to approved
func (l *Ledger) ApproveRequest(ctx context.Context, id, actor string) (models.ResourceRequest, error) {
	req, err := l.resourceRequests.Mutate(ctx, id, func(r *models.ResourceRequest) error {
		if r.Status != models.RequestPending {
			return apperr.Transition(id, r.Status, models.RequestApproved)
		}
		r.Status = models.RequestApproved
		return nil
	})
	if err != nil {
		return models.ResourceRequest{}, err
	}
	l.record(ctx, Event{Kind: EventRequestApproved, EntityID: id, RequestID: id, Actor: actor})
	return req, nil
}

// RejectRequest rejects a resource request that has no allocations yet
func (l *Ledger) RejectRequest(ctx context.Context, id, reason, actor string) (models.ResourceRequest, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return models.ResourceRequest{}, apperr.Validation("reason", "required")
	}
	req, err := l.resourceRequests.Mutate(ctx, id, func(r *models.ResourceRequest) error {
		if r.Status != models.RequestPending && r.Status != models.RequestApproved {
			return apperr.Transition(id, r.Status, models.RequestRejected)
		}
		if len(r.FulfillmentDetails) > 0 {
			return apperr.Transition(id, "partially_allocated", models.RequestRejected)
		}
		r.Status = models.RequestRejected
		r.RejectionReason = reason
		return nil
	})
	if err != nil {
		return models.ResourceRequest{}, err
	}
	l.record(ctx, Event{Kind: EventRequestRejected, EntityID: id, RequestID: id, Actor: actor, Detail: reason})
	return req, nil
}

// CancelResourceRequest cancels an open request, returning only the active
// allocations made for it
func (l *Ledger) CancelResourceRequest(ctx context.Context, id, actor string) (models.ResourceRequest, error) {
	req, err := l.resourceRequests.Mutate(ctx, id, func(r *models.ResourceRequest) error {
		if r.Status != models.RequestPending && r.Status != models.RequestApproved {
			return apperr.Transition(id, r.Status, models.RequestCancelled)
		}
		for _, allocID := range r.FulfillmentDetails {
			a, err := l.allocations.Get(allocID)
			if err != nil {
				return err
			}
			if a.Status != models.AllocationActive {
				continue
			}
			if _, err := l.returnAllocation(ctx, allocID, actor); err != nil {
				return err
			}
		}
		r.Status = models.RequestCancelled
		return nil
	})
	if err != nil {
		return models.ResourceRequest{}, err
	}
	l.record(ctx, Event{Kind: EventRequestCancelled, EntityID: id, RequestID: id, Actor: actor})
	return req, nil
}

// CancelVolunteerRequest cancels a volunteer request and every active
// assignment made for it
func (l *Ledger) CancelVolunteerRequest(ctx context.Context, id, actor string) (models.VolunteerRequest, error) {
	req, err := l.volunteerRequests.Mutate(ctx, id, func(r *models.VolunteerRequest) error {
		if r.Status == models.VolunteerRequestCancelled {
			return apperr.Transition(id, r.Status, models.VolunteerRequestCancelled)
		}
		for _, a := range l.Assignments(AssignmentFilter{RequestID: id, Status: models.AssignmentActive}) {
			if _, err := l.cancelAssignment(ctx, a.ID, actor); err != nil {
				return err
			}
			r.AssignedVolunteers = without(r.AssignedVolunteers, a.VolunteerID)
		}
		r.Status = models.VolunteerRequestCancelled
		return nil
	})
	if err != nil {
		return models.VolunteerRequest{}, err
	}
	l.record(ctx, Event{Kind: EventRequestCancelled, EntityID: id, RequestID: id, Actor: actor})
	return req, nil
}

// RestoreResourceRequest re-inserts a persisted request
func (l *Ledger) RestoreResourceRequest(req models.ResourceRequest) error {
	return l.resourceRequests.Insert(req.ID, req)
}

// RestoreVolunteerRequest re-inserts a persisted request
func (l *Ledger) RestoreVolunteerRequest(req models.VolunteerRequest) error {
	return l.volunteerRequests.Insert(req.ID, req)
}

func without(ids []string, id string) []string {
	out := make([]string, 0, len(ids))
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
