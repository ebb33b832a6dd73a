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

// VolunteerFilter narrows List results. Zero fields match everything.
type VolunteerFilter struct {
	Specialty string
	Skill     string
	Status    models.VolunteerStatus
}

func (f VolunteerFilter) matches(v *models.Volunteer) bool {
	if f.Specialty != "" && v.Specialty != f.Specialty {
		return false
	}
	if f.Skill != "" && !v.HasSkill(f.Skill) {
		return false
	}
	if f.Status != "" && v.Status != f.Status {
		return false
	}
	return true
}

// Volunteers owns Volunteer records and their availability state
type Volunteers struct {
	t *arena.Table[models.Volunteer]
}

// NewVolunteers creates an empty volunteer registry
func NewVolunteers(opts Options) *Volunteers {
	return &Volunteers{
		t: arena.New("volunteer", opts, arena.Hooks[models.Volunteer]{
			Touch: func(v *models.Volunteer, now time.Time) {
				v.Version++
				v.LastUpdated = now
			},
			Quarantine: func(v *models.Volunteer) {
				v.Status = models.VolunteerUnavailable
				v.HoldUnavailable = false
			},
		}),
	}
}

// Register adds a volunteer. An empty ID is replaced with a generated one.
func (vs *Volunteers) Register(v models.Volunteer) (models.Volunteer, error) {
	if v.ID == "" {
		v.ID = "vol-" + uuid.NewString()
	}
	if v.Specialty == "" && len(v.Skills) == 0 {
		return models.Volunteer{}, apperr.Validation("specialty", "a specialty or at least one skill is required")
	}
	switch v.Status {
	case "":
		v.Status = models.VolunteerAvailable
	case models.VolunteerAvailable, models.VolunteerUnavailable, models.VolunteerOffDuty:
	case models.VolunteerDeployed:
		return models.Volunteer{}, apperr.Validation("status", "deployed is set by assignments only")
	default:
		return models.Volunteer{}, apperr.Validation("status", fmt.Sprintf("unknown status %q", v.Status))
	}
	if err := checkRating(v.PerformanceRating); err != nil {
		return models.Volunteer{}, err
	}
	if v.MaxHours < 0 || v.TotalHours < 0 || v.AssignedHours < 0 {
		return models.Volunteer{}, apperr.Validation("hours", "must not be negative")
	}
	v.Skills = append([]string(nil), v.Skills...)
	v.HoldUnavailable = false
	v.Version = 0
	if err := vs.t.Insert(v.ID, v); err != nil {
		return models.Volunteer{}, err
	}
	return vs.t.Get(v.ID)
}

// Restore re-inserts a persisted volunteer as-is
func (vs *Volunteers) Restore(v models.Volunteer) error {
	return vs.t.Insert(v.ID, v)
}

// Get returns a copy of the volunteer
func (vs *Volunteers) Get(id string) (models.Volunteer, error) {
	return vs.t.Get(id)
}

// List returns volunteers matching the filter, ordered by id
func (vs *Volunteers) List(f VolunteerFilter) []models.Volunteer {
	all := vs.t.Snapshot()
	out := all[:0]
	for i := range all {
		if f.matches(&all[i]) {
			out = append(out, all[i])
		}
	}
	return out
}

// Snapshot returns every volunteer without taking entity locks
func (vs *Volunteers) Snapshot() []models.Volunteer {
	return vs.t.Snapshot()
}

// SetAvailability applies a manual availability toggle. A deployed
// volunteer marked unavailable stays deployed until released.
func (vs *Volunteers) SetAvailability(ctx context.Context, id string, status models.VolunteerStatus) (models.Volunteer, error) {
	return vs.t.Mutate(ctx, id, func(v *models.Volunteer) error {
		switch status {
		case models.VolunteerAvailable, models.VolunteerUnavailable, models.VolunteerOffDuty:
		case models.VolunteerDeployed:
			return apperr.Transition(id, v.Status, status)
		default:
			return apperr.Validation("status", fmt.Sprintf("unknown status %q", status))
		}
		if v.Status != models.VolunteerDeployed {
			v.Status = status
			return nil
		}
		switch status {
		case models.VolunteerUnavailable:
			v.HoldUnavailable = true
		case models.VolunteerAvailable:
			v.HoldUnavailable = false
		default:
			return apperr.Transition(id, v.Status, status)
		}
		return nil
	})
}

// Deploy moves an available volunteer to deployed
func (vs *Volunteers) Deploy(ctx context.Context, id string, expectedVersion int64) (models.Volunteer, error) {
	return vs.DeployWith(ctx, id, expectedVersion, nil)
}

// DeployWith is Deploy with a hook run under the volunteer lock
func (vs *Volunteers) DeployWith(ctx context.Context, id string, expectedVersion int64, hook Hook[models.Volunteer]) (models.Volunteer, error) {
	return vs.t.Mutate(ctx, id, func(v *models.Volunteer) error {
		if v.Status != models.VolunteerAvailable {
			if expectedVersion != 0 && expectedVersion != v.Version {
				return apperr.Conflict(id, fmt.Sprintf("snapshot version %d is stale (current %d)", expectedVersion, v.Version))
			}
			return apperr.Transition(id, v.Status, models.VolunteerDeployed)
		}
		v.Status = models.VolunteerDeployed
		return then(v, hook)
	})
}

// Release ends a deployment, crediting worked hours and an optional rating.
// The volunteer returns to available unless marked unavailable meanwhile.
func (vs *Volunteers) Release(ctx context.Context, id string, hours float64, rating *float64) (models.Volunteer, error) {
	return vs.ReleaseWith(ctx, id, hours, rating, nil)
}

// ReleaseWith is Release with a hook run under the volunteer lock. With a
// hook, an unavailable (quarantined) volunteer may also be released and
// keeps its status.
func (vs *Volunteers) ReleaseWith(ctx context.Context, id string, hours float64, rating *float64, hook Hook[models.Volunteer]) (models.Volunteer, error) {
	if err := checkRating(rating); err != nil {
		return models.Volunteer{}, err
	}
	return vs.t.Mutate(ctx, id, func(v *models.Volunteer) error {
		switch {
		case v.Status == models.VolunteerDeployed && v.HoldUnavailable:
			v.Status = models.VolunteerUnavailable
		case v.Status == models.VolunteerDeployed:
			v.Status = models.VolunteerAvailable
		case v.Status == models.VolunteerUnavailable && hook != nil:
			// quarantined while deployed; the hook must confirm the holder
			// and the volunteer stays unavailable until reconciled
		default:
			return apperr.Transition(id, v.Status, models.VolunteerAvailable)
		}
		v.HoldUnavailable = false
		if hours > 0 {
			v.TotalHours += hours
			v.AssignedHours += hours
		}
		if rating != nil {
			prev, count := 0.0, v.RatingCount
			if v.PerformanceRating != nil {
				prev = *v.PerformanceRating
				if count == 0 {
					count = 1
				}
			}
			avg := (prev*float64(count) + *rating) / float64(count+1)
			v.PerformanceRating = &avg
			v.RatingCount = count + 1
		}
		return then(v, hook)
	})
}

// Quarantine forces the volunteer to unavailable pending reconciliation
func (vs *Volunteers) Quarantine(ctx context.Context, id, detail string) error {
	_, err := vs.t.Mutate(ctx, id, func(*models.Volunteer) error {
		return &apperr.InvariantViolation{ID: id, Detail: detail}
	})
	return err
}

func checkRating(r *float64) error {
	if r != nil && (*r < 0 || *r > 5) {
		return apperr.Validation("rating", "must be between 0 and 5")
	}
	return nil
}
