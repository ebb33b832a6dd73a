package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/arnavshah/dispatch-api-go/pkg/apperr"
	"github.com/arnavshah/dispatch-api-go/pkg/models"
	"github.com/google/uuid"
)

// VolunteerCommit is a caller's choice of volunteer for a request
type VolunteerCommit struct {
	VolunteerID     string `json:"volunteer_id"`
	RequestID       string `json:"request_id"`
	Role            string `json:"role,omitempty"`
	ExpectedVersion int64  `json:"expected_version,omitempty"`
	Actor           string `json:"-"`
}

// AssignmentFilter narrows Assignments. Zero fields match everything.
type AssignmentFilter struct {
	RequestID   string
	VolunteerID string
	Status      models.AssignmentStatus
}

// CommitVolunteerAssignment deploys a volunteer to a request and records
// the assignment
func (l *Ledger) CommitVolunteerAssignment(ctx context.Context, in VolunteerCommit) (models.VolunteerAssignment, error) {
	if in.VolunteerID == "" {
		return models.VolunteerAssignment{}, apperr.Validation("volunteer_id", "required")
	}
	var asg models.VolunteerAssignment
	_, err := l.volunteerRequests.Mutate(ctx, in.RequestID, func(req *models.VolunteerRequest) error {
		if req.Status == models.VolunteerRequestCancelled || req.Status == models.VolunteerRequestFilled {
			return apperr.Transition(req.ID, req.Status, "assigned")
		}
		for _, id := range req.AssignedVolunteers {
			if id == in.VolunteerID {
				return apperr.Conflict(in.VolunteerID, "volunteer already assigned to "+req.ID)
			}
		}
		vol, err := l.volunteers.Get(in.VolunteerID)
		if err != nil {
			return err
		}
		if !coversAny(&vol, req.RequiredSkills) {
			return apperr.Validation("volunteer_id", "volunteer has none of the required skills")
		}

		role := in.Role
		if role == "" {
			role = req.Role
		}
		asg = models.VolunteerAssignment{
			ID:          "asg-" + uuid.NewString(),
			VolunteerID: in.VolunteerID,
			TaskID:      req.ID,
			Role:        role,
			Status:      models.AssignmentActive,
			Actor:       in.Actor,
			AssignedAt:  l.now(),
		}
		_, err = l.volunteers.DeployWith(ctx, in.VolunteerID, in.ExpectedVersion, func(v models.Volunteer) error {
			l.mu.Lock()
			defer l.mu.Unlock()
			if existing, ok := l.activeAssignment[v.ID]; ok {
				return &apperr.InvariantViolation{
					ID:     v.ID,
					Detail: fmt.Sprintf("volunteer was available while holding assignment %s", existing),
				}
			}
			if err := l.assignments.Insert(asg.ID, asg); err != nil {
				return err
			}
			l.activeAssignment[v.ID] = asg.ID
			return nil
		})
		if err != nil {
			l.logInvariant("commit_volunteer_assignment", err)
			return err
		}

		req.AssignedVolunteers = append(append([]string(nil), req.AssignedVolunteers...), in.VolunteerID)
		req.Status = req.FillStatus()
		return nil
	})
	if err != nil {
		return models.VolunteerAssignment{}, err
	}
	l.record(ctx, Event{
		Kind:      EventAssignmentCommitted,
		EntityID:  asg.ID,
		RequestID: asg.TaskID,
		SubjectID: asg.VolunteerID,
		Quantity:  1,
		Actor:     in.Actor,
	})
	return asg, nil
}

func coversAny(v *models.Volunteer, skills []string) bool {
	for _, s := range skills {
		if v.HasSkill(s) {
			return true
		}
	}
	return false
}

// CheckIn records the volunteer's arrival on an active assignment
func (l *Ledger) CheckIn(ctx context.Context, id string, loc models.Location, note string) (models.VolunteerAssignment, error) {
	return l.assignments.Mutate(ctx, id, func(a *models.VolunteerAssignment) error {
		if a.Status != models.AssignmentActive {
			return apperr.Transition(id, a.Status, "checked_in")
		}
		a.CheckIn = &models.CheckIn{At: l.now(), Location: loc, Note: note}
		return nil
	})
}

// CompleteAssignment finishes an active assignment, crediting the hours
// since it started and folding rating into the volunteer's average
func (l *Ledger) CompleteAssignment(ctx context.Context, id string, rating *float64, actor string) (models.VolunteerAssignment, error) {
	if rating != nil && (*rating < 0 || *rating > 5) {
		return models.VolunteerAssignment{}, apperr.Validation("rating", "must be between 0 and 5")
	}
	var hours float64
	a, err := l.assignments.Mutate(ctx, id, func(a *models.VolunteerAssignment) error {
		if a.Status != models.AssignmentActive {
			return apperr.Transition(id, a.Status, models.AssignmentCompleted)
		}
		now := l.now()
		hours = workedHours(a.AssignedAt, now)
		if _, err := l.volunteers.ReleaseWith(ctx, a.VolunteerID, hours, rating, l.dropAssignment(a.ID)); err != nil {
			l.logInvariant("complete_assignment", err)
			return err
		}
		a.Status = models.AssignmentCompleted
		a.CompletedAt = &now
		a.Rating = rating
		return nil
	})
	if err != nil {
		return models.VolunteerAssignment{}, err
	}
	l.record(ctx, Event{
		Kind:      EventAssignmentCompleted,
		EntityID:  a.ID,
		RequestID: a.TaskID,
		SubjectID: a.VolunteerID,
		Quantity:  1,
		Actor:     actor,
		Detail:    fmt.Sprintf("%.2fh", hours),
	})
	return a, nil
}

// CancelAssignment releases the volunteer without crediting hours and
// reopens the slot on the request
func (l *Ledger) CancelAssignment(ctx context.Context, id, actor string) (models.VolunteerAssignment, error) {
	current, err := l.assignments.Get(id)
	if err != nil {
		return models.VolunteerAssignment{}, err
	}
	var out models.VolunteerAssignment
	_, err = l.volunteerRequests.Mutate(ctx, current.TaskID, func(req *models.VolunteerRequest) error {
		a, err := l.cancelAssignment(ctx, id, actor)
		if err != nil {
			return err
		}
		out = a
		req.AssignedVolunteers = without(req.AssignedVolunteers, a.VolunteerID)
		req.Status = req.FillStatus()
		return nil
	})
	if err != nil {
		return models.VolunteerAssignment{}, err
	}
	return out, nil
}

// cancelAssignment expects the caller to hold the request lock
func (l *Ledger) cancelAssignment(ctx context.Context, id, actor string) (models.VolunteerAssignment, error) {
	a, err := l.assignments.Mutate(ctx, id, func(a *models.VolunteerAssignment) error {
		if a.Status != models.AssignmentActive {
			return apperr.Transition(id, a.Status, models.AssignmentCancelled)
		}
		if _, err := l.volunteers.ReleaseWith(ctx, a.VolunteerID, 0, nil, l.dropAssignment(a.ID)); err != nil {
			l.logInvariant("cancel_assignment", err)
			return err
		}
		now := l.now()
		a.Status = models.AssignmentCancelled
		a.CancelledAt = &now
		return nil
	})
	if err != nil {
		return models.VolunteerAssignment{}, err
	}
	l.record(ctx, Event{
		Kind:      EventAssignmentCancelled,
		EntityID:  a.ID,
		RequestID: a.TaskID,
		SubjectID: a.VolunteerID,
		Quantity:  1,
		Actor:     actor,
	})
	return a, nil
}

// dropAssignment checks that the volunteer being released is held by
// assignment id
func (l *Ledger) dropAssignment(id string) func(models.Volunteer) error {
	return func(v models.Volunteer) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		if held := l.activeAssignment[v.ID]; held != id {
			return &apperr.InvariantViolation{
				ID:     v.ID,
				Detail: fmt.Sprintf("released by %s but active assignment is %q", id, held),
			}
		}
		delete(l.activeAssignment, v.ID)
		return nil
	}
}

func workedHours(from, to time.Time) float64 {
	if to.Before(from) {
		return 0
	}
	return to.Sub(from).Hours()
}

// Assignment returns one assignment
func (l *Ledger) Assignment(id string) (models.VolunteerAssignment, error) {
	return l.assignments.Get(id)
}

// Assignments lists assignments matching the filter, ordered by id
func (l *Ledger) Assignments(f AssignmentFilter) []models.VolunteerAssignment {
	all := l.assignments.Snapshot()
	out := all[:0]
	for _, a := range all {
		if f.RequestID != "" && a.TaskID != f.RequestID {
			continue
		}
		if f.VolunteerID != "" && a.VolunteerID != f.VolunteerID {
			continue
		}
		if f.Status != "" && a.Status != f.Status {
			continue
		}
		out = append(out, a)
	}
	return out
}

// RestoreAssignment re-inserts a persisted assignment. Volunteers must be
// restored first.
func (l *Ledger) RestoreAssignment(a models.VolunteerAssignment) error {
	if err := l.assignments.Insert(a.ID, a); err != nil {
		return err
	}
	if a.Status == models.AssignmentActive {
		l.mu.Lock()
		l.activeAssignment[a.VolunteerID] = a.ID
		l.mu.Unlock()
	}
	return nil
}
