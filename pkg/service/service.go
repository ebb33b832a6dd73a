// Package service is the dispatch service boundary. It composes the
// registries, intake, matching engine, ledger and statistics, and writes
// every committed change through to the configured store.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/arnavshah/dispatch-api-go/pkg/database"
	"github.com/arnavshah/dispatch-api-go/pkg/ledger"
	"github.com/arnavshah/dispatch-api-go/pkg/matching"
	"github.com/arnavshah/dispatch-api-go/pkg/models"
	"github.com/arnavshah/dispatch-api-go/pkg/registry"
	"github.com/arnavshah/dispatch-api-go/pkg/stats"
)

// Store persists entity state. database.Store implements it.
type Store interface {
	SaveResource(ctx context.Context, r models.Resource) error
	SaveVolunteer(ctx context.Context, v models.Volunteer) error
	SaveResourceRequest(ctx context.Context, r models.ResourceRequest) error
	SaveVolunteerRequest(ctx context.Context, r models.VolunteerRequest) error
	SaveAllocation(ctx context.Context, a models.ResourceAllocation) error
	SaveAssignment(ctx context.Context, a models.VolunteerAssignment) error
	Load(ctx context.Context) (database.Snapshot, error)
}

// Journal exposes the ledger event history. database.Store implements it.
type Journal interface {
	Events(ctx context.Context, f database.EventFilter) ([]database.LedgerEvent, error)
	Activity(ctx context.Context, since string) ([]database.DispatchActivity, error)
}

// Options configures a Service. Store, Journal and Recorder may be nil.
type Options struct {
	Logger          *slog.Logger
	Clock           func() time.Time
	LockTimeout     time.Duration
	RequireApproval bool
	Matching        matching.Options
	Store           Store
	Journal         Journal
	Recorder        ledger.Recorder
	// RefreshConcurrency bounds RefreshAll fan-out. Default 4.
	RefreshConcurrency int
}

// Service implements every dispatch operation
type Service struct {
	resources  *registry.Resources
	volunteers *registry.Volunteers
	ledger     *ledger.Ledger
	engine     *matching.Engine
	coord      *matching.Coordinator
	stats      *stats.Aggregator

	store   Store
	journal Journal
	signals atomic.Pointer[models.ExternalSignals]
	logger  *slog.Logger

	refreshConcurrency int
}

// New builds a service with empty registries
func New(opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	regOpts := registry.Options{LockTimeout: opts.LockTimeout, Clock: opts.Clock, Logger: logger}
	resources := registry.NewResources(regOpts)
	volunteers := registry.NewVolunteers(regOpts)

	mopts := opts.Matching
	if mopts.Clock == nil {
		mopts.Clock = opts.Clock
	}
	s := &Service{
		resources:  resources,
		volunteers: volunteers,
		ledger: ledger.New(resources, volunteers, ledger.Options{
			LockTimeout:     opts.LockTimeout,
			Clock:           opts.Clock,
			Logger:          logger,
			RequireApproval: opts.RequireApproval,
			Recorder:        opts.Recorder,
		}),
		engine:             matching.NewEngine(mopts),
		coord:              matching.NewCoordinator(),
		store:              opts.Store,
		journal:            opts.Journal,
		logger:             logger,
		refreshConcurrency: opts.RefreshConcurrency,
	}
	if s.refreshConcurrency <= 0 {
		s.refreshConcurrency = 4
	}
	s.stats = stats.New(s)
	return s
}

// Restore loads persisted state into the empty registries and ledger.
// Resources whose allocated quantity disagrees with their active
// allocations are quarantined, as are volunteers whose status disagrees
// with their active assignments.
func (s *Service) Restore(ctx context.Context) error {
	if s.store == nil {
		return nil
	}
	snap, err := s.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}
	for _, r := range snap.Resources {
		if err := s.resources.Restore(r); err != nil {
			return fmt.Errorf("restore resource %s: %w", r.ID, err)
		}
	}
	for _, v := range snap.Volunteers {
		if err := s.volunteers.Restore(v); err != nil {
			return fmt.Errorf("restore volunteer %s: %w", v.ID, err)
		}
	}
	for _, r := range snap.ResourceRequests {
		if err := s.ledger.RestoreResourceRequest(r); err != nil {
			return fmt.Errorf("restore request %s: %w", r.ID, err)
		}
	}
	for _, r := range snap.VolunteerRequests {
		if err := s.ledger.RestoreVolunteerRequest(r); err != nil {
			return fmt.Errorf("restore request %s: %w", r.ID, err)
		}
	}
	held := make(map[string]int)
	for _, a := range snap.Allocations {
		if err := s.ledger.RestoreAllocation(a); err != nil {
			return fmt.Errorf("restore allocation %s: %w", a.ID, err)
		}
		if a.Status == models.AllocationActive {
			held[a.ResourceID] += a.Quantity
		}
	}
	holding := make(map[string]int)
	for _, a := range snap.Assignments {
		if err := s.ledger.RestoreAssignment(a); err != nil {
			return fmt.Errorf("restore assignment %s: %w", a.ID, err)
		}
		if a.Status == models.AssignmentActive {
			holding[a.VolunteerID]++
		}
	}

	for _, r := range s.resources.Snapshot() {
		if r.AllocatedQuantity == held[r.ID] {
			continue
		}
		detail := fmt.Sprintf("restored allocated=%d but active allocations hold %d", r.AllocatedQuantity, held[r.ID])
		_ = s.resources.Quarantine(ctx, r.ID, detail)
		s.saveResource(ctx, r.ID)
	}
	for _, v := range s.volunteers.Snapshot() {
		n := holding[v.ID]
		var detail string
		switch {
		case n > 1:
			detail = fmt.Sprintf("restored with %d active assignments", n)
		case n == 1 && v.Status == models.VolunteerAvailable:
			detail = "restored available while holding an active assignment"
		case n == 0 && v.Status == models.VolunteerDeployed:
			detail = "restored deployed without an active assignment"
		default:
			continue
		}
		_ = s.volunteers.Quarantine(ctx, v.ID, detail)
		s.saveVolunteer(ctx, v.ID)
	}
	s.logger.Info("state restored",
		"resources", len(snap.Resources),
		"volunteers", len(snap.Volunteers),
		"requests", len(snap.ResourceRequests)+len(snap.VolunteerRequests),
		"allocations", len(snap.Allocations),
		"assignments", len(snap.Assignments),
	)
	return nil
}

// Resources implements stats.Source
func (s *Service) Resources() []models.Resource { return s.resources.Snapshot() }

// Volunteers implements stats.Source
func (s *Service) Volunteers() []models.Volunteer { return s.volunteers.Snapshot() }

// Allocations implements stats.Source
func (s *Service) Allocations() []models.ResourceAllocation {
	return s.ledger.Allocations(ledger.AllocationFilter{})
}

// Assignments implements stats.Source
func (s *Service) Assignments() []models.VolunteerAssignment {
	return s.ledger.Assignments(ledger.AssignmentFilter{})
}

// ResourceStatistics is recomputed on every call
func (s *Service) ResourceStatistics() models.ResourceStatistics {
	return s.stats.ResourceStatistics()
}

// VolunteerStatistics is recomputed on every call
func (s *Service) VolunteerStatistics() models.VolunteerStatistics {
	return s.stats.VolunteerStatistics()
}

// Events returns journal entries; empty without a journal
func (s *Service) Events(ctx context.Context, f database.EventFilter) ([]database.LedgerEvent, error) {
	if s.journal == nil {
		return []database.LedgerEvent{}, nil
	}
	return s.journal.Events(ctx, f)
}

// Activity returns per-day dispatch counters; empty without a journal
func (s *Service) Activity(ctx context.Context, since string) ([]database.DispatchActivity, error) {
	if s.journal == nil {
		return []database.DispatchActivity{}, nil
	}
	return s.journal.Activity(ctx, since)
}

// persistence helpers: the in-memory state is authoritative, so write
// failures are logged rather than returned

func (s *Service) persistFailed(kind, id string, err error) {
	if err != nil {
		s.logger.Error("failed to persist", "kind", kind, "id", id, "error", err)
	}
}

func (s *Service) saveResource(ctx context.Context, id string) {
	if s.store == nil {
		return
	}
	if r, err := s.resources.Get(id); err == nil {
		s.persistFailed("resource", id, s.store.SaveResource(ctx, r))
	}
}

func (s *Service) saveVolunteer(ctx context.Context, id string) {
	if s.store == nil {
		return
	}
	if v, err := s.volunteers.Get(id); err == nil {
		s.persistFailed("volunteer", id, s.store.SaveVolunteer(ctx, v))
	}
}

func (s *Service) saveResourceRequest(ctx context.Context, id string) {
	if s.store == nil {
		return
	}
	if r, err := s.ledger.ResourceRequest(id); err == nil {
		s.persistFailed("resource request", id, s.store.SaveResourceRequest(ctx, r))
	}
}

func (s *Service) saveVolunteerRequest(ctx context.Context, id string) {
	if s.store == nil {
		return
	}
	if r, err := s.ledger.VolunteerRequest(id); err == nil {
		s.persistFailed("volunteer request", id, s.store.SaveVolunteerRequest(ctx, r))
	}
}

func (s *Service) saveAllocation(ctx context.Context, a models.ResourceAllocation) {
	if s.store == nil {
		return
	}
	s.persistFailed("allocation", a.ID, s.store.SaveAllocation(ctx, a))
	s.saveResource(ctx, a.ResourceID)
}

func (s *Service) saveAssignment(ctx context.Context, a models.VolunteerAssignment) {
	if s.store == nil {
		return
	}
	s.persistFailed("assignment", a.ID, s.store.SaveAssignment(ctx, a))
	s.saveVolunteer(ctx, a.VolunteerID)
}
