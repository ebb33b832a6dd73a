package ledger

import (
	"context"
	"fmt"

	"github.com/arnavshah/dispatch-api-go/pkg/apperr"
	"github.com/arnavshah/dispatch-api-go/pkg/models"
	"github.com/google/uuid"
)

// ResourceCommit is a caller's choice of resource for a request
type ResourceCommit struct {
	ResourceID string `json:"resource_id"`
	RequestID  string `json:"request_id"`
	Quantity   int    `json:"quantity"`
	// ExpectedVersion is the resource version from the recommendation
	// snapshot. Zero skips the staleness check.
	ExpectedVersion int64  `json:"expected_version,omitempty"`
	Actor           string `json:"-"`
}

// AllocationFilter narrows Allocations. Zero fields match everything.
type AllocationFilter struct {
	RequestID  string
	ResourceID string
	Status     models.AllocationStatus
}

// CommitResourceAllocation reserves units of a resource for a request and
// records the allocation. Either every effect is published or none is.
func (l *Ledger) CommitResourceAllocation(ctx context.Context, in ResourceCommit) (models.ResourceAllocation, error) {
	if in.Quantity <= 0 {
		return models.ResourceAllocation{}, apperr.Validation("quantity", "must be positive")
	}
	if in.ResourceID == "" {
		return models.ResourceAllocation{}, apperr.Validation("resource_id", "required")
	}
	var alloc models.ResourceAllocation
	_, err := l.resourceRequests.Mutate(ctx, in.RequestID, func(req *models.ResourceRequest) error {
		if err := l.commitable(req); err != nil {
			return err
		}
		if in.Quantity > req.Outstanding() {
			return apperr.Validation("quantity", fmt.Sprintf("exceeds outstanding quantity %d", req.Outstanding()))
		}
		res, err := l.resources.Get(in.ResourceID)
		if err != nil {
			return err
		}
		if res.Category != req.Category {
			return apperr.Validation("resource_id", fmt.Sprintf("resource category %q does not match request category %q", res.Category, req.Category))
		}

		alloc = models.ResourceAllocation{
			ID:          "alloc-" + uuid.NewString(),
			ResourceID:  in.ResourceID,
			AllocatedTo: req.ID,
			Quantity:    in.Quantity,
			Status:      models.AllocationActive,
			Actor:       in.Actor,
			AllocatedAt: l.now(),
		}
		_, err = l.resources.ReserveWith(ctx, in.ResourceID, in.Quantity, in.ExpectedVersion, func(r models.Resource) error {
			l.mu.Lock()
			defer l.mu.Unlock()
			held := l.activeUnits[r.ID] + in.Quantity
			if r.AllocatedQuantity != held {
				return &apperr.InvariantViolation{
					ID:     r.ID,
					Detail: fmt.Sprintf("allocated=%d but active allocations hold %d", r.AllocatedQuantity, held),
				}
			}
			if err := l.allocations.Insert(alloc.ID, alloc); err != nil {
				return err
			}
			l.activeUnits[r.ID] = held
			return nil
		})
		if err != nil {
			l.logInvariant("commit_resource_allocation", err)
			return err
		}

		req.FulfilledQuantity += in.Quantity
		req.FulfillmentDetails = append(append([]string(nil), req.FulfillmentDetails...), alloc.ID)
		if req.Outstanding() == 0 {
			req.Status = models.RequestFulfilled
		}
		return nil
	})
	if err != nil {
		return models.ResourceAllocation{}, err
	}
	l.record(ctx, Event{
		Kind:      EventAllocationCommitted,
		EntityID:  alloc.ID,
		RequestID: alloc.AllocatedTo,
		SubjectID: alloc.ResourceID,
		Quantity:  alloc.Quantity,
		Actor:     in.Actor,
	})
	return alloc, nil
}

func (l *Ledger) commitable(req *models.ResourceRequest) error {
	switch req.Status {
	case models.RequestApproved:
		return nil
	case models.RequestPending:
		if !l.requireApproval {
			return nil
		}
		return apperr.Transition(req.ID, req.Status, "allocated (approval required)")
	default:
		return apperr.Transition(req.ID, req.Status, "allocated")
	}
}

// ReturnAllocation puts an active allocation's units back into the pool
func (l *Ledger) ReturnAllocation(ctx context.Context, id, actor string) (models.ResourceAllocation, error) {
	return l.returnAllocation(ctx, id, actor)
}

func (l *Ledger) returnAllocation(ctx context.Context, id, actor string) (models.ResourceAllocation, error) {
	a, err := l.allocations.Mutate(ctx, id, func(a *models.ResourceAllocation) error {
		if a.Status != models.AllocationActive {
			return apperr.Transition(id, a.Status, models.AllocationReturned)
		}
		_, err := l.resources.ReleaseWith(ctx, a.ResourceID, a.Quantity, l.dropUnits(a.Quantity))
		if err != nil {
			l.logInvariant("return_allocation", err)
			return err
		}
		now := l.now()
		a.Status = models.AllocationReturned
		a.ReturnedAt = &now
		return nil
	})
	if err != nil {
		return models.ResourceAllocation{}, err
	}
	l.record(ctx, Event{
		Kind:      EventAllocationReturned,
		EntityID:  a.ID,
		RequestID: a.AllocatedTo,
		SubjectID: a.ResourceID,
		Quantity:  a.Quantity,
		Actor:     actor,
	})
	return a, nil
}

// MarkAllocationLost writes off an active allocation's units from the
// resource's total quantity
func (l *Ledger) MarkAllocationLost(ctx context.Context, id, actor string) (models.ResourceAllocation, error) {
	a, err := l.allocations.Mutate(ctx, id, func(a *models.ResourceAllocation) error {
		if a.Status != models.AllocationActive {
			return apperr.Transition(id, a.Status, models.AllocationLost)
		}
		_, err := l.resources.WriteOffWith(ctx, a.ResourceID, a.Quantity, l.dropUnits(a.Quantity))
		if err != nil {
			l.logInvariant("mark_allocation_lost", err)
			return err
		}
		now := l.now()
		a.Status = models.AllocationLost
		a.LostAt = &now
		return nil
	})
	if err != nil {
		return models.ResourceAllocation{}, err
	}
	l.record(ctx, Event{
		Kind:      EventAllocationLost,
		EntityID:  a.ID,
		RequestID: a.AllocatedTo,
		SubjectID: a.ResourceID,
		Quantity:  a.Quantity,
		Actor:     actor,
	})
	return a, nil
}

// dropUnits checks that the resource still agrees with the active
// allocations once qty units leave them
func (l *Ledger) dropUnits(qty int) func(models.Resource) error {
	return func(r models.Resource) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		held := l.activeUnits[r.ID] - qty
		if held < 0 || r.AllocatedQuantity != held {
			return &apperr.InvariantViolation{
				ID:     r.ID,
				Detail: fmt.Sprintf("allocated=%d but active allocations hold %d", r.AllocatedQuantity, held),
			}
		}
		if held == 0 {
			delete(l.activeUnits, r.ID)
		} else {
			l.activeUnits[r.ID] = held
		}
		return nil
	}
}

// Allocation returns one allocation
func (l *Ledger) Allocation(id string) (models.ResourceAllocation, error) {
	return l.allocations.Get(id)
}

// Allocations lists allocations matching the filter, ordered by id
func (l *Ledger) Allocations(f AllocationFilter) []models.ResourceAllocation {
	all := l.allocations.Snapshot()
	out := all[:0]
	for _, a := range all {
		if f.RequestID != "" && a.AllocatedTo != f.RequestID {
			continue
		}
		if f.ResourceID != "" && a.ResourceID != f.ResourceID {
			continue
		}
		if f.Status != "" && a.Status != f.Status {
			continue
		}
		out = append(out, a)
	}
	return out
}

// RestoreAllocation re-inserts a persisted allocation. Resources must be
// restored first.
func (l *Ledger) RestoreAllocation(a models.ResourceAllocation) error {
	if err := l.allocations.Insert(a.ID, a); err != nil {
		return err
	}
	if a.Status == models.AllocationActive {
		l.mu.Lock()
		l.activeUnits[a.ResourceID] += a.Quantity
		l.mu.Unlock()
	}
	return nil
}
