package database

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/arnavshah/dispatch-api-go/pkg/config"
	"github.com/arnavshah/dispatch-api-go/pkg/ledger"
	"github.com/arnavshah/dispatch-api-go/pkg/models"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	db, err := InitDB(config.DatabaseConfig{Path: filepath.Join(t.TempDir(), "dispatch_test.db")})
	if err != nil {
		t.Fatalf("init db: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return NewStore(db)
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	now := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	rating := 4.5

	res := models.Resource{
		ID: "res-pumps", Name: "Water Pumps", Category: models.CategoryEquipment, Type: "water_pump",
		Quantity: 15, AvailableQuantity: 7, AllocatedQuantity: 4, Status: models.ResourceDeployed,
		Location: models.Location{Name: "Depot", Lat: 10, Lon: 10}, Version: 3, LastUpdated: now,
	}
	vol := models.Volunteer{
		ID: "vol-002", Name: "Dana", Specialty: "search_rescue", Skills: []string{"first_aid", "rope"},
		Status: models.VolunteerDeployed, PerformanceRating: &rating, RatingCount: 2, MaxHours: 40,
	}
	req := models.ResourceRequest{
		ID: "req-1", Source: models.SourceResource, Category: models.CategoryEquipment, Quantity: 4,
		Urgency: "urgent", Status: models.RequestFulfilled, FulfilledQuantity: 4,
		FulfillmentDetails: []string{"alloc-1"}, CreatedAt: now, UpdatedAt: now,
	}
	vreq := models.VolunteerRequest{
		ID: "vreq-1", RequiredSkills: []string{"search_rescue"}, NumberOfVolunteers: 5, Urgency: "high",
		Status: models.VolunteerRequestPartiallyFilled, AssignedVolunteers: []string{"vol-002"}, CreatedAt: now, UpdatedAt: now,
	}
	alloc := models.ResourceAllocation{ID: "alloc-1", ResourceID: "res-pumps", AllocatedTo: "req-1", Quantity: 4, Status: models.AllocationActive, AllocatedAt: now}
	asg := models.VolunteerAssignment{
		ID: "asg-1", VolunteerID: "vol-002", TaskID: "vreq-1", Status: models.AssignmentActive, AssignedAt: now,
		CheckIn: &models.CheckIn{At: now, Location: models.Location{Name: "Riverside"}},
	}

	for name, save := range map[string]func() error{
		"resource":          func() error { return s.SaveResource(ctx, res) },
		"volunteer":         func() error { return s.SaveVolunteer(ctx, vol) },
		"resource request":  func() error { return s.SaveResourceRequest(ctx, req) },
		"volunteer request": func() error { return s.SaveVolunteerRequest(ctx, vreq) },
		"allocation":        func() error { return s.SaveAllocation(ctx, alloc) },
		"assignment":        func() error { return s.SaveAssignment(ctx, asg) },
	} {
		if err := save(); err != nil {
			t.Fatalf("save %s: %v", name, err)
		}
	}

	// a second save must update in place
	res.AvailableQuantity = 11
	res.AllocatedQuantity = 0
	res.Status = models.ResourceAvailable
	if err := s.SaveResource(ctx, res); err != nil {
		t.Fatalf("resave resource: %v", err)
	}

	snap, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(snap.Resources) != 1 || snap.Resources[0].AvailableQuantity != 11 || snap.Resources[0].Status != models.ResourceAvailable {
		t.Errorf("Expected one updated resource, got %+v", snap.Resources)
	}
	if snap.Resources[0].Location.Name != "Depot" || snap.Resources[0].Location.Lat != 10 {
		t.Errorf("Expected embedded location to round-trip, got %+v", snap.Resources[0].Location)
	}
	if len(snap.Volunteers) != 1 || len(snap.Volunteers[0].Skills) != 2 || snap.Volunteers[0].PerformanceRating == nil {
		t.Errorf("Expected volunteer skills and rating to round-trip, got %+v", snap.Volunteers)
	}
	if len(snap.ResourceRequests) != 1 || snap.ResourceRequests[0].FulfillmentDetails[0] != "alloc-1" {
		t.Errorf("Expected fulfillment details to round-trip, got %+v", snap.ResourceRequests)
	}
	if len(snap.VolunteerRequests) != 1 || snap.VolunteerRequests[0].AssignedVolunteers[0] != "vol-002" {
		t.Errorf("Expected assigned volunteers to round-trip, got %+v", snap.VolunteerRequests)
	}
	if len(snap.Allocations) != 1 || len(snap.Assignments) != 1 {
		t.Errorf("Expected 1 allocation and 1 assignment, got %d/%d", len(snap.Allocations), len(snap.Assignments))
	}
	if snap.Assignments[0].CheckIn == nil || snap.Assignments[0].CheckIn.Location.Name != "Riverside" {
		t.Errorf("Expected check-in to round-trip, got %+v", snap.Assignments[0].CheckIn)
	}
}

func TestStaleSaveDoesNotOverwrite(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	now := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)

	newer := models.Resource{
		ID: "res-pumps", Name: "Water Pumps", Category: models.CategoryEquipment,
		Quantity: 15, AvailableQuantity: 7, AllocatedQuantity: 4, Status: models.ResourceDeployed, Version: 5, LastUpdated: now,
	}
	older := newer
	older.AvailableQuantity, older.AllocatedQuantity, older.Status, older.Version = 11, 0, models.ResourceAvailable, 4
	if err := s.SaveResource(ctx, newer); err != nil {
		t.Fatalf("save newer: %v", err)
	}
	if err := s.SaveResource(ctx, older); err != nil {
		t.Fatalf("save older: %v", err)
	}

	done := models.ResourceAllocation{ID: "alloc-1", ResourceID: "res-pumps", AllocatedTo: "req-1", Quantity: 4, Status: models.AllocationReturned, AllocatedAt: now}
	active := done
	active.Status = models.AllocationActive
	if err := s.SaveAllocation(ctx, done); err != nil {
		t.Fatalf("save returned allocation: %v", err)
	}
	if err := s.SaveAllocation(ctx, active); err != nil {
		t.Fatalf("save active allocation: %v", err)
	}

	snap, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := snap.Resources[0]; got.Version != 5 || got.AvailableQuantity != 7 {
		t.Errorf("Expected version 5 with 7 available to survive, got version %d with %d", got.Version, got.AvailableQuantity)
	}
	if got := snap.Allocations[0]; got.Status != models.AllocationReturned {
		t.Errorf("Expected returned allocation to stay returned, got %s", got.Status)
	}
}

func TestRecordJournalsAndCountsActivity(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	day := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)

	events := []ledger.Event{
		{Kind: ledger.EventAllocationCommitted, EntityID: "alloc-1", RequestID: "req-1", SubjectID: "res-pumps", Quantity: 4, At: day},
		{Kind: ledger.EventAllocationCommitted, EntityID: "alloc-2", RequestID: "req-2", SubjectID: "res-pumps", Quantity: 2, At: day.Add(time.Hour)},
		{Kind: ledger.EventAllocationReturned, EntityID: "alloc-1", RequestID: "req-1", SubjectID: "res-pumps", Quantity: 4, At: day.Add(2 * time.Hour)},
		{Kind: ledger.EventAllocationCommitted, EntityID: "alloc-3", RequestID: "req-3", SubjectID: "res-pumps", Quantity: 1, At: day.Add(24 * time.Hour)},
	}
	for _, ev := range events {
		if err := s.Record(ctx, ev); err != nil {
			t.Fatalf("record %s: %v", ev.Kind, err)
		}
	}

	got, err := s.Events(ctx, EventFilter{RequestID: "req-1"})
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	if len(got) != 2 || got[0].Kind != ledger.EventAllocationReturned {
		t.Errorf("Expected 2 events for req-1, newest first; got %+v", got)
	}

	activity, err := s.Activity(ctx, "2024-03-01")
	if err != nil {
		t.Fatalf("activity: %v", err)
	}
	counts := map[string]DispatchActivity{}
	for _, a := range activity {
		counts[a.Date+"/"+a.Kind] = a
	}
	first := counts["2024-03-01/"+ledger.EventAllocationCommitted]
	if first.Events != 2 || first.Units != 6 {
		t.Errorf("Expected 2 commits totalling 6 units on day one, got %+v", first)
	}
	if counts["2024-03-02/"+ledger.EventAllocationCommitted].Events != 1 {
		t.Errorf("Expected 1 commit on day two, got %+v", counts)
	}

	later, _ := s.Activity(ctx, "2024-03-02")
	if len(later) != 1 {
		t.Errorf("Expected only day-two activity after since filter, got %d rows", len(later))
	}
}
