package registry

import (
	"context"
	"fmt"
	"time"

	"github.com/arnavshah/dispatch-api-go/pkg/apperr"
	"github.com/arnavshah/dispatch-api-go/pkg/arena"
	"github.com/arnavshah/dispatch-api-go/pkg/models"
	"github.com/google/uuid"
)

// ResourceFilter narrows List results. Zero fields match everything.
type ResourceFilter struct {
	Category models.Category
	Type     string
	Status   models.ResourceStatus
	Location string
}

func (f ResourceFilter) matches(r *models.Resource) bool {
	if f.Category != "" && r.Category != f.Category {
		return false
	}
	if f.Type != "" && r.Type != f.Type {
		return false
	}
	if f.Status != "" && r.Status != f.Status {
		return false
	}
	if f.Location != "" && r.Location.Name != f.Location {
		return false
	}
	return true
}

// Resources owns Resource records and their quantity invariants
type Resources struct {
	t *arena.Table[models.Resource]
}

// NewResources creates an empty resource registry
func NewResources(opts Options) *Resources {
	return &Resources{
		t: arena.New("resource", opts, arena.Hooks[models.Resource]{
			Touch: func(r *models.Resource, now time.Time) {
				r.Version++
				r.LastUpdated = now
			},
			Quarantine: func(r *models.Resource) {
				r.Status = models.ResourceMaintenance
			},
		}),
	}
}

// Options configures a registry
type Options = arena.Options

// Hook runs while the entity lock is still held, against the state about
// to be published. An error discards the mutation.
type Hook[T any] func(T) error

func then[T any](v *T, hook Hook[T]) error {
	if hook == nil {
		return nil
	}
	return hook(*v)
}

// Register adds a resource. An empty ID is replaced with a generated one.
func (rs *Resources) Register(r models.Resource) (models.Resource, error) {
	if r.ID == "" {
		r.ID = "res-" + uuid.NewString()
	}
	if !r.Category.Valid() {
		return models.Resource{}, apperr.Validation("category", fmt.Sprintf("unknown category %q", r.Category))
	}
	if r.Quantity < 0 {
		return models.Resource{}, apperr.Validation("quantity", "must not be negative")
	}
	if r.AvailableQuantity < 0 || r.AvailableQuantity > r.Quantity {
		return models.Resource{}, apperr.Validation("available_quantity", "must be between 0 and quantity")
	}
	switch r.Status {
	case "":
		r.Status = models.ResourceAvailable
	case models.ResourceAvailable, models.ResourceMaintenance, models.ResourceReserved:
	case models.ResourceDeployed:
		return models.Resource{}, apperr.Validation("status", "deployed is derived from active allocations")
	default:
		return models.Resource{}, apperr.Validation("status", fmt.Sprintf("unknown status %q", r.Status))
	}
	r.AllocatedQuantity = 0
	r.Version = 0
	if err := rs.t.Insert(r.ID, r); err != nil {
		return models.Resource{}, err
	}
	return rs.t.Get(r.ID)
}

// Restore re-inserts a persisted resource as-is, keeping its allocated
// quantity and version.
func (rs *Resources) Restore(r models.Resource) error {
	if err := checkResource(&r); err != nil {
		return err
	}
	return rs.t.Insert(r.ID, r)
}

// Get returns a copy of the resource
func (rs *Resources) Get(id string) (models.Resource, error) {
	return rs.t.Get(id)
}

// List returns resources matching the filter, ordered by id
func (rs *Resources) List(f ResourceFilter) []models.Resource {
	all := rs.t.Snapshot()
	out := all[:0]
	for i := range all {
		if f.matches(&all[i]) {
			out = append(out, all[i])
		}
	}
	return out
}

// Snapshot returns every resource without taking entity locks
func (rs *Resources) Snapshot() []models.Resource {
	return rs.t.Snapshot()
}

// UpdateStatus applies an administrative status change. deployed cannot be
// requested; available is recomputed from active allocations.
func (rs *Resources) UpdateStatus(ctx context.Context, id string, status models.ResourceStatus) (models.Resource, error) {
	return rs.t.Mutate(ctx, id, func(r *models.Resource) error {
		switch status {
		case models.ResourceAvailable:
			r.Status = models.ResourceAvailable
		case models.ResourceMaintenance, models.ResourceReserved:
			if r.Status == status {
				return nil
			}
			if r.Status != models.ResourceAvailable || r.AllocatedQuantity > 0 {
				return apperr.Transition(id, r.Status, status)
			}
			r.Status = status
		case models.ResourceDeployed:
			return apperr.Transition(id, r.Status, status)
		default:
			return apperr.Validation("status", fmt.Sprintf("unknown status %q", status))
		}
		return settle(r)
	})
}

// Reserve moves qty units from available to allocated. A non-zero
// expectedVersion turns a shortfall on a changed resource into a
// ConflictError.
func (rs *Resources) Reserve(ctx context.Context, id string, qty int, expectedVersion int64) (models.Resource, error) {
	return rs.ReserveWith(ctx, id, qty, expectedVersion, nil)
}

// ReserveWith is Reserve with a hook run under the resource lock
func (rs *Resources) ReserveWith(ctx context.Context, id string, qty int, expectedVersion int64, hook Hook[models.Resource]) (models.Resource, error) {
	if qty <= 0 {
		return models.Resource{}, apperr.Validation("quantity", "must be positive")
	}
	return rs.t.Mutate(ctx, id, func(r *models.Resource) error {
		if r.Status == models.ResourceMaintenance || r.Status == models.ResourceReserved {
			return apperr.Transition(id, r.Status, models.ResourceDeployed)
		}
		if qty > r.AvailableQuantity {
			if expectedVersion != 0 && expectedVersion != r.Version {
				return apperr.Conflict(id, fmt.Sprintf("snapshot version %d is stale (current %d)", expectedVersion, r.Version))
			}
			return &apperr.InsufficientAvailabilityError{ID: id, Requested: qty, Available: r.AvailableQuantity}
		}
		r.AvailableQuantity -= qty
		r.AllocatedQuantity += qty
		if err := settle(r); err != nil {
			return err
		}
		return then(r, hook)
	})
}

// Release returns qty units to available, capped at quantity
func (rs *Resources) Release(ctx context.Context, id string, qty int) (models.Resource, error) {
	return rs.ReleaseWith(ctx, id, qty, nil)
}

// ReleaseWith is Release with a hook run under the resource lock
func (rs *Resources) ReleaseWith(ctx context.Context, id string, qty int, hook Hook[models.Resource]) (models.Resource, error) {
	if qty <= 0 {
		return models.Resource{}, apperr.Validation("quantity", "must be positive")
	}
	return rs.t.Mutate(ctx, id, func(r *models.Resource) error {
		r.AllocatedQuantity -= qty
		if r.AllocatedQuantity < 0 {
			r.AllocatedQuantity = 0
		}
		r.AvailableQuantity += qty
		if limit := r.Quantity - r.AllocatedQuantity; r.AvailableQuantity > limit {
			r.AvailableQuantity = limit
		}
		if err := settle(r); err != nil {
			return err
		}
		return then(r, hook)
	})
}

// WriteOffWith removes qty allocated units from the pool entirely, running
// hook under the resource lock
func (rs *Resources) WriteOffWith(ctx context.Context, id string, qty int, hook Hook[models.Resource]) (models.Resource, error) {
	if qty <= 0 {
		return models.Resource{}, apperr.Validation("quantity", "must be positive")
	}
	return rs.t.Mutate(ctx, id, func(r *models.Resource) error {
		r.AllocatedQuantity -= qty
		r.Quantity -= qty
		if err := settle(r); err != nil {
			return err
		}
		return then(r, hook)
	})
}

// Quarantine forces the resource into maintenance pending reconciliation
func (rs *Resources) Quarantine(ctx context.Context, id, detail string) error {
	_, err := rs.t.Mutate(ctx, id, func(*models.Resource) error {
		return &apperr.InvariantViolation{ID: id, Detail: detail}
	})
	return err
}

// settle derives the allocation-driven status and checks quantity bounds
func settle(r *models.Resource) error {
	if r.Status == models.ResourceAvailable || r.Status == models.ResourceDeployed {
		if r.AllocatedQuantity > 0 {
			r.Status = models.ResourceDeployed
		} else {
			r.Status = models.ResourceAvailable
		}
	}
	return checkResource(r)
}

func checkResource(r *models.Resource) error {
	if r.AvailableQuantity < 0 || r.AllocatedQuantity < 0 || r.AvailableQuantity+r.AllocatedQuantity > r.Quantity {
		return &apperr.InvariantViolation{
			ID: r.ID,
			Detail: fmt.Sprintf("available=%d allocated=%d quantity=%d",
				r.AvailableQuantity, r.AllocatedQuantity, r.Quantity),
		}
	}
	return nil
}
