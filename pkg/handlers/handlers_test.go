package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/arnavshah/dispatch-api-go/pkg/auth"
	"github.com/arnavshah/dispatch-api-go/pkg/ledger"
	"github.com/arnavshah/dispatch-api-go/pkg/models"
	"github.com/arnavshah/dispatch-api-go/pkg/service"
	"github.com/gin-gonic/gin"
)

type eventLog struct {
	mu     sync.Mutex
	events []ledger.Event
}

func (e *eventLog) Record(_ context.Context, ev ledger.Event) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, ev)
	return nil
}

func (e *eventLog) actorFor(kind string) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, ev := range e.events {
		if ev.Kind == kind {
			return ev.Actor
		}
	}
	return ""
}

type testServer struct {
	router *gin.Engine
	events *eventLog
	tokens *auth.Tokens
}

func newTestServer(t *testing.T, requireToken bool) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	events := &eventLog{}
	svc := service.New(service.Options{
		Logger:      logger,
		LockTimeout: time.Second,
		Recorder:    events,
	})
	tokens := auth.NewTokens("test-secret")
	h := &Handler{Svc: svc, Tokens: tokens, Logger: logger, RequireToken: requireToken}
	return &testServer{router: NewRouter(h), events: events, tokens: tokens}
}

func (s *testServer) do(t *testing.T, method, path string, body any, headers map[string]string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	out := map[string]any{}
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	return w, out
}

func seedPumps(t *testing.T, s *testServer) {
	t.Helper()
	w, _ := s.do(t, http.MethodPost, "/api/resources", models.Resource{
		ID: "res-pumps", Name: "Water Pumps", Category: models.CategoryEquipment, Type: "water_pump",
		Quantity: 15, AvailableQuantity: 11, Location: models.Location{Name: "North Depot", Lat: 10, Lon: 10},
	}, nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected 201 registering resource, got %d: %s", w.Code, w.Body.String())
	}
}

func TestDispatchFlowOverHTTP(t *testing.T) {
	s := newTestServer(t, false)
	seedPumps(t, s)

	w, req := s.do(t, http.MethodPost, "/api/requests/resources", gin.H{
		"category": "equipment", "type": "water_pump", "quantity": 4, "urgency": "immediate",
		"location": gin.H{"name": "Riverside", "lat": 10.01, "lon": 10.01},
	}, nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected 201 submitting request, got %d: %s", w.Code, w.Body.String())
	}
	reqID := req["id"].(string)
	if req["status"] != "pending" {
		t.Errorf("Expected pending, got %v", req["status"])
	}

	w, rec := s.do(t, http.MethodGet, "/api/requests/"+reqID+"/recommendations", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200 recommending, got %d: %s", w.Code, w.Body.String())
	}
	cands := rec["recommendations"].([]any)
	if len(cands) == 0 {
		t.Fatal("Expected at least one candidate")
	}
	top := cands[0].(map[string]any)

	w, alloc := s.do(t, http.MethodPost, "/api/allocations", gin.H{
		"resource_id":      top["candidate_id"],
		"request_id":       reqID,
		"quantity":         4,
		"expected_version": top["snapshot_version"],
	}, map[string]string{"X-Actor": "dispatcher-7"})
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected 201 committing, got %d: %s", w.Code, w.Body.String())
	}
	if alloc["status"] != "active" {
		t.Errorf("Expected active allocation, got %v", alloc["status"])
	}
	if got := s.events.actorFor(ledger.EventAllocationCommitted); got != "dispatcher-7" {
		t.Errorf("Expected actor dispatcher-7 on commit event, got %q", got)
	}

	_, res := s.do(t, http.MethodGet, "/api/resources/res-pumps", nil, nil)
	if res["available_quantity"] != float64(7) || res["status"] != "deployed" {
		t.Errorf("Expected 7 available deployed, got %v %v", res["available_quantity"], res["status"])
	}

	_, stats := s.do(t, http.MethodGet, "/api/statistics/resources", nil, nil)
	if stats["allocation_rate"] != float64(1) {
		t.Errorf("Expected allocation rate 1, got %v", stats["allocation_rate"])
	}

	w, _ = s.do(t, http.MethodPost, "/api/allocations/"+alloc["id"].(string)+"/return", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200 returning, got %d: %s", w.Code, w.Body.String())
	}
	w, body := s.do(t, http.MethodPost, "/api/allocations/"+alloc["id"].(string)+"/return", nil, nil)
	if w.Code != http.StatusConflict || body["kind"] != "state_transition" {
		t.Errorf("Expected 409 state_transition on double return, got %d %v", w.Code, body["kind"])
	}
}

func TestErrorMapping(t *testing.T) {
	s := newTestServer(t, false)
	seedPumps(t, s)
	_, req := s.do(t, http.MethodPost, "/api/requests/resources", gin.H{"category": "equipment", "quantity": 20, "urgency": "urgent"}, nil)
	reqID := req["id"].(string)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		status int
		kind   string
		field  string
	}{
		{"unknown resource", http.MethodGet, "/api/resources/res-none", nil, http.StatusNotFound, "not_found", ""},
		{"unknown request", http.MethodGet, "/api/requests/req-none", nil, http.StatusNotFound, "not_found", ""},
		{"bad quantity", http.MethodPost, "/api/requests/resources", gin.H{"category": "equipment", "quantity": 0, "urgency": "urgent"}, http.StatusBadRequest, "validation", "quantity"},
		{"insufficient", http.MethodPost, "/api/allocations", gin.H{"resource_id": "res-pumps", "request_id": reqID, "quantity": 12}, http.StatusUnprocessableEntity, "insufficient_availability", ""},
		{"reject without reason", http.MethodPost, "/api/requests/" + reqID + "/reject", gin.H{}, http.StatusBadRequest, "validation", "reason"},
		{"malformed body", http.MethodPost, "/api/volunteers", "not an object", http.StatusBadRequest, "validation", "body"},
		{"negative eta factor", http.MethodPut, "/api/signals", gin.H{"eta_factor": -2}, http.StatusBadRequest, "validation", "eta_factor"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, body := s.do(t, tt.method, tt.path, tt.body, nil)
			if w.Code != tt.status {
				t.Fatalf("Expected %d, got %d: %s", tt.status, w.Code, w.Body.String())
			}
			if body["kind"] != tt.kind {
				t.Errorf("Expected kind %q, got %v", tt.kind, body["kind"])
			}
			if tt.field != "" && body["field"] != tt.field {
				t.Errorf("Expected field %q, got %v", tt.field, body["field"])
			}
		})
	}
}

func TestActorMiddleware(t *testing.T) {
	s := newTestServer(t, true)

	// reads never need a token
	if w, _ := s.do(t, http.MethodGet, "/api/resources", nil, nil); w.Code != http.StatusOK {
		t.Errorf("Expected 200 on read without token, got %d", w.Code)
	}

	res := models.Resource{Name: "Kits", Category: models.CategoryMedical, Quantity: 5, AvailableQuantity: 5}
	if w, _ := s.do(t, http.MethodPost, "/api/resources", res, map[string]string{"X-Actor": "someone"}); w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 without token, got %d", w.Code)
	}
	if w, _ := s.do(t, http.MethodPost, "/api/resources", res, map[string]string{"Authorization": "Bearer garbage"}); w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 with invalid token, got %d", w.Code)
	}

	token, err := s.tokens.CreateToken("ops-lead", "north", time.Hour)
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	withToken := map[string]string{"Authorization": "Bearer " + token}
	w, created := s.do(t, http.MethodPost, "/api/resources", res, withToken)
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected 201 with token, got %d: %s", w.Code, w.Body.String())
	}

	_, req := s.do(t, http.MethodPost, "/api/requests/resources", gin.H{"category": "medical", "quantity": 1, "urgency": "urgent"}, withToken)
	w, _ = s.do(t, http.MethodPost, "/api/allocations", gin.H{"resource_id": created["id"], "request_id": req["id"], "quantity": 1}, withToken)
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected 201 committing, got %d: %s", w.Code, w.Body.String())
	}
	if got := s.events.actorFor(ledger.EventAllocationCommitted); got != "ops-lead" {
		t.Errorf("Expected token actor ops-lead, got %q", got)
	}
}

func TestVolunteerRoutes(t *testing.T) {
	s := newTestServer(t, false)
	w, _ := s.do(t, http.MethodPost, "/api/volunteers", models.Volunteer{ID: "vol-002", Name: "Dana", Specialty: "search_rescue", MaxHours: 40}, nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected 201 registering volunteer, got %d: %s", w.Code, w.Body.String())
	}
	_, vreq := s.do(t, http.MethodPost, "/api/requests/volunteers", gin.H{"required_skills": []string{"search_rescue"}, "number_of_volunteers": 2, "urgency": "high"}, nil)
	vreqID := vreq["id"].(string)

	w, asg := s.do(t, http.MethodPost, "/api/assignments", gin.H{"volunteer_id": "vol-002", "request_id": vreqID}, nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected 201 assigning, got %d: %s", w.Code, w.Body.String())
	}
	asgID := asg["id"].(string)

	if w, _ := s.do(t, http.MethodPost, "/api/assignments/"+asgID+"/checkin", gin.H{"location": gin.H{"name": "Sector 4"}, "note": "on site"}, nil); w.Code != http.StatusOK {
		t.Errorf("Expected 200 on check-in, got %d: %s", w.Code, w.Body.String())
	}
	w, done := s.do(t, http.MethodPost, "/api/assignments/"+asgID+"/complete", gin.H{"rating": 5}, nil)
	if w.Code != http.StatusOK || done["status"] != "completed" {
		t.Fatalf("Expected completed, got %d %v", w.Code, done["status"])
	}

	_, vol := s.do(t, http.MethodGet, "/api/volunteers/vol-002", nil, nil)
	if vol["status"] != "available" || vol["performance_rating"] != float64(5) {
		t.Errorf("Expected available volunteer rated 5, got %v %v", vol["status"], vol["performance_rating"])
	}

	w, _ = s.do(t, http.MethodPut, "/api/volunteers/vol-002/availability", gin.H{"status": "unavailable"}, nil)
	if w.Code != http.StatusOK {
		t.Errorf("Expected 200 toggling availability, got %d: %s", w.Code, w.Body.String())
	}
	_, list := s.do(t, http.MethodGet, "/api/volunteers?status=available", nil, nil)
	if list["count"] != float64(0) {
		t.Errorf("Expected no available volunteers, got %v", list["count"])
	}
}

func TestImportResourcesCSV(t *testing.T) {
	s := newTestServer(t, false)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, _ := mw.CreateFormFile("resources_file", "resources.csv")
	_, _ = fw.Write([]byte("id,name,category,type,quantity,available_quantity,location,lat,lon\n" +
		"res-boats,Rescue Boats,vehicles,boat,6,6,Harbor,10.5,-3.25\n" +
		"res-bad,Broken,unknown,,3,3,Nowhere,,\n" +
		"res-kits,First Aid Kits,medical,kit,notanumber,,Depot,,\n" +
		"res-tents,Tents,facilities,tent,8,8,Camp,north,12\n"))
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/resources/csv", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var out struct {
		Registered []models.Resource `json:"registered"`
		Errors     []map[string]any  `json:"errors"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out.Registered) != 1 || out.Registered[0].ID != "res-boats" {
		t.Fatalf("Expected only res-boats registered, got %+v", out.Registered)
	}
	if loc := out.Registered[0].Location; loc.Lat != 10.5 || loc.Lon != -3.25 {
		t.Errorf("Expected coordinates 10.5,-3.25, got %v,%v", loc.Lat, loc.Lon)
	}
	if len(out.Errors) != 3 {
		t.Fatalf("Expected 3 row errors, got %v", out.Errors)
	}
	if last := out.Errors[2]; last["kind"] != "validation" || !strings.Contains(last["error"].(string), "lat") {
		t.Errorf("Expected validation error naming lat, got %v", last)
	}
}

func TestValidateRequest(t *testing.T) {
	s := newTestServer(t, false)

	_, ok := s.do(t, http.MethodPost, "/api/requests/validate", gin.H{
		"sos_report": gin.H{"emergency_type": "flood", "severity": "critical", "people_affected": 12},
	}, nil)
	if ok["valid"] != true {
		t.Fatalf("Expected valid SOS report, got %v", ok)
	}
	demand := ok["demand"].(map[string]any)
	if demand["required_capability"] != "equipment" || demand["source_kind"] != "sos" {
		t.Errorf("Expected equipment sos demand, got %v", demand)
	}

	_, bad := s.do(t, http.MethodPost, "/api/requests/validate", gin.H{
		"volunteer_request": gin.H{"number_of_volunteers": 2, "urgency": "high"},
	}, nil)
	if bad["valid"] != false || bad["field"] != "required_skills" {
		t.Errorf("Expected invalid required_skills, got %v", bad)
	}

	_, none := s.do(t, http.MethodPost, "/api/requests/validate", gin.H{}, nil)
	if none["valid"] != false {
		t.Errorf("Expected invalid empty input, got %v", none)
	}

	// nothing is stored by a dry run
	_, list := s.do(t, http.MethodGet, "/api/requests/resources", nil, nil)
	if list["count"] != float64(0) {
		t.Errorf("Expected no stored requests, got %v", list["count"])
	}
}
