package database

import (
	"context"
	"fmt"

	"github.com/arnavshah/dispatch-api-go/pkg/ledger"
	"github.com/arnavshah/dispatch-api-go/pkg/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store persists inventory and ledger state. It implements ledger.Recorder.
type Store struct {
	DB *gorm.DB
}

// NewStore wraps an opened database
func NewStore(db *gorm.DB) *Store {
	return &Store{DB: db}
}

// Record appends ev to the journal and bumps the day's activity counters
func (s *Store) Record(ctx context.Context, ev ledger.Event) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row := LedgerEvent{
			Kind:      ev.Kind,
			EntityID:  ev.EntityID,
			RequestID: ev.RequestID,
			SubjectID: ev.SubjectID,
			Quantity:  ev.Quantity,
			Actor:     ev.Actor,
			Detail:    ev.Detail,
			At:        ev.At,
		}
		if err := tx.Create(&row).Error; err != nil {
			return fmt.Errorf("append ledger event: %w", err)
		}

		// Single-query upsert, supported by both Postgres and SQLite
		err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "date"}, {Name: "kind"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"events": gorm.Expr("dispatch_activity.events + ?", 1),
				"units":  gorm.Expr("dispatch_activity.units + ?", ev.Quantity),
			}),
		}).Create(&DispatchActivity{
			Date:   ev.At.Format("2006-01-02"),
			Kind:   ev.Kind,
			Events: 1,
			Units:  ev.Quantity,
		}).Error
		if err != nil {
			return fmt.Errorf("update dispatch activity: %w", err)
		}
		return nil
	})
}

// Write-through saves can race each other; a stale copy must never
// overwrite a newer row. Versioned entities compare versions. Allocations
// and assignments only move from active to a terminal status, so a row
// that already left active is final.
var (
	newerVersion = clause.Expr{
		SQL:  "excluded.version >= ?",
		Vars: []interface{}{clause.Column{Table: clause.CurrentTable, Name: "version"}},
	}
	stillActive = clause.Expr{
		SQL:  "? = ?",
		Vars: []interface{}{clause.Column{Table: clause.CurrentTable, Name: "status"}, "active"},
	}
)

func upsert[T any](ctx context.Context, db *gorm.DB, v *T, guard clause.Expression) error {
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
		Where:     clause.Where{Exprs: []clause.Expression{guard}},
	}).Create(v).Error
}

// SaveResource writes the current state of a resource
func (s *Store) SaveResource(ctx context.Context, r models.Resource) error {
	return upsert(ctx, s.DB, &r, newerVersion)
}

// SaveVolunteer writes the current state of a volunteer
func (s *Store) SaveVolunteer(ctx context.Context, v models.Volunteer) error {
	return upsert(ctx, s.DB, &v, newerVersion)
}

// SaveResourceRequest writes the current state of a resource request
func (s *Store) SaveResourceRequest(ctx context.Context, r models.ResourceRequest) error {
	return upsert(ctx, s.DB, &r, newerVersion)
}

// SaveVolunteerRequest writes the current state of a volunteer request
func (s *Store) SaveVolunteerRequest(ctx context.Context, r models.VolunteerRequest) error {
	return upsert(ctx, s.DB, &r, newerVersion)
}

// SaveAllocation writes the current state of an allocation
func (s *Store) SaveAllocation(ctx context.Context, a models.ResourceAllocation) error {
	return upsert(ctx, s.DB, &a, stillActive)
}

// SaveAssignment writes the current state of an assignment
func (s *Store) SaveAssignment(ctx context.Context, a models.VolunteerAssignment) error {
	return upsert(ctx, s.DB, &a, stillActive)
}

// Snapshot is everything needed to rebuild the in-memory state
type Snapshot struct {
	Resources         []models.Resource
	Volunteers        []models.Volunteer
	ResourceRequests  []models.ResourceRequest
	VolunteerRequests []models.VolunteerRequest
	Allocations       []models.ResourceAllocation
	Assignments       []models.VolunteerAssignment
}

// Load reads every persisted entity, ordered by id
func (s *Store) Load(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	steps := []struct {
		name string
		dst  interface{}
	}{
		{"resources", &snap.Resources},
		{"volunteers", &snap.Volunteers},
		{"resource requests", &snap.ResourceRequests},
		{"volunteer requests", &snap.VolunteerRequests},
		{"allocations", &snap.Allocations},
		{"assignments", &snap.Assignments},
	}
	for _, step := range steps {
		if err := s.DB.WithContext(ctx).Order("id").Find(step.dst).Error; err != nil {
			return Snapshot{}, fmt.Errorf("load %s: %w", step.name, err)
		}
	}
	return snap, nil
}

// EventFilter narrows Events. Zero fields match everything.
type EventFilter struct {
	RequestID string
	EntityID  string
	Kind      string
	Limit     int
}

// Events returns journal entries, newest first
func (s *Store) Events(ctx context.Context, f EventFilter) ([]LedgerEvent, error) {
	q := s.DB.WithContext(ctx).Model(&LedgerEvent{})
	if f.RequestID != "" {
		q = q.Where("request_id = ?", f.RequestID)
	}
	if f.EntityID != "" {
		q = q.Where("entity_id = ?", f.EntityID)
	}
	if f.Kind != "" {
		q = q.Where("kind = ?", f.Kind)
	}
	limit := f.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var events []LedgerEvent
	if err := q.Order("id desc").Limit(limit).Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}

// Activity returns the per-day counters from since (YYYY-MM-DD) onwards
func (s *Store) Activity(ctx context.Context, since string) ([]DispatchActivity, error) {
	var rows []DispatchActivity
	q := s.DB.WithContext(ctx).Order("date desc, kind")
	if since != "" {
		q = q.Where("date >= ?", since)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
