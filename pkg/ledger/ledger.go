// Package ledger commits allocations and assignments against the
// registries. It owns ResourceAllocation and VolunteerAssignment records
// and the requests they fulfil; registries own the entities themselves.
//
// Locks are always taken in the order request → allocation/assignment →
// resource/volunteer, and ledger bookkeeping that must agree with registry
// state is updated inside registry hooks while the entity lock is held.
package ledger

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/arnavshah/dispatch-api-go/pkg/apperr"
	"github.com/arnavshah/dispatch-api-go/pkg/arena"
	"github.com/arnavshah/dispatch-api-go/pkg/models"
	"github.com/arnavshah/dispatch-api-go/pkg/registry"
)

// Event kinds forwarded to the Recorder
const (
	EventRequestSubmitted    = "request.submitted"
	EventRequestApproved     = "request.approved"
	EventRequestRejected     = "request.rejected"
	EventRequestCancelled    = "request.cancelled"
	EventAllocationCommitted = "allocation.committed"
	EventAllocationReturned  = "allocation.returned"
	EventAllocationLost      = "allocation.lost"
	EventAssignmentCommitted = "assignment.committed"
	EventAssignmentCompleted = "assignment.completed"
	EventAssignmentCancelled = "assignment.cancelled"
)

// Event describes one committed ledger change
type Event struct {
	Kind      string
	EntityID  string
	RequestID string
	SubjectID string
	Quantity  int
	Actor     string
	Detail    string
	At        time.Time
}

// Recorder receives ledger events after they are committed. Errors are
// logged; they never roll back the ledger.
type Recorder interface {
	Record(ctx context.Context, ev Event) error
}

// Options configures a Ledger
type Options struct {
	LockTimeout     time.Duration
	Clock           func() time.Time
	Logger          *slog.Logger
	RequireApproval bool
	Recorder        Recorder
}

// Ledger is the allocation ledger
type Ledger struct {
	resources  *registry.Resources
	volunteers *registry.Volunteers

	resourceRequests  *arena.Table[models.ResourceRequest]
	volunteerRequests *arena.Table[models.VolunteerRequest]
	allocations       *arena.Table[models.ResourceAllocation]
	assignments       *arena.Table[models.VolunteerAssignment]

	mu               sync.Mutex
	activeUnits      map[string]int    // resource id -> units held by active allocations
	activeAssignment map[string]string // volunteer id -> active assignment id

	requireApproval bool
	recorder        Recorder
	logger          *slog.Logger
	now             func() time.Time
}

// New creates a ledger over the given registries
func New(resources *registry.Resources, volunteers *registry.Volunteers, opts Options) *Ledger {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Clock
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	tableOpts := arena.Options{LockTimeout: opts.LockTimeout, Clock: now, Logger: logger}
	return &Ledger{
		resources:  resources,
		volunteers: volunteers,
		resourceRequests: arena.New("resource request", tableOpts, arena.Hooks[models.ResourceRequest]{
			Touch: func(r *models.ResourceRequest, at time.Time) {
				r.Version++
				r.UpdatedAt = at
			},
		}),
		volunteerRequests: arena.New("volunteer request", tableOpts, arena.Hooks[models.VolunteerRequest]{
			Touch: func(r *models.VolunteerRequest, at time.Time) {
				r.Version++
				r.UpdatedAt = at
			},
		}),
		allocations:      arena.New("allocation", tableOpts, arena.Hooks[models.ResourceAllocation]{}),
		assignments:      arena.New("assignment", tableOpts, arena.Hooks[models.VolunteerAssignment]{}),
		activeUnits:      make(map[string]int),
		activeAssignment: make(map[string]string),
		requireApproval:  opts.RequireApproval,
		recorder:         opts.Recorder,
		logger:           logger,
		now:              now,
	}
}

func (l *Ledger) record(ctx context.Context, ev Event) {
	if ev.At.IsZero() {
		ev.At = l.now()
	}
	l.logger.Info("ledger event",
		"kind", ev.Kind,
		"entity_id", ev.EntityID,
		"request_id", ev.RequestID,
		"subject_id", ev.SubjectID,
		"quantity", ev.Quantity,
		"actor", ev.Actor,
	)
	if l.recorder == nil {
		return
	}
	if err := l.recorder.Record(ctx, ev); err != nil {
		l.logger.Warn("failed to record ledger event", "kind", ev.Kind, "entity_id", ev.EntityID, "error", err)
	}
}

// logInvariant reports a quarantine triggered by a ledger operation
func (l *Ledger) logInvariant(op string, err error) {
	if apperr.KindOf(err) == apperr.KindInvariant {
		l.logger.Error("ledger invariant violation", "op", op, "error", err)
	}
}
