package app

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/arnavshah/dispatch-api-go/pkg/config"
	"github.com/arnavshah/dispatch-api-go/pkg/database"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func post(t *testing.T, a *App, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	a.Router.ServeHTTP(w, req)
	return w
}

func TestStateSurvivesRestart(t *testing.T) {
	cfg := config.Default()
	cfg.Server.GinMode = "test"
	cfg.Database.Path = filepath.Join(t.TempDir(), "dispatch.db")
	ctx := context.Background()

	first, err := New(ctx, cfg, quietLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	w := post(t, first, "/api/resources", `{"id":"res-boats","name":"Rescue Boats","category":"vehicles","quantity":6,"available_quantity":6}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", w.Code, w.Body.String())
	}
	w = post(t, first, "/api/requests/resources", `{"category":"vehicles","quantity":2,"urgency":"urgent"}`)
	var req map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &req)
	w = post(t, first, "/api/allocations", `{"resource_id":"res-boats","request_id":"`+req["id"].(string)+`","quantity":2}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected 201 committing, got %d: %s", w.Code, w.Body.String())
	}
	if err := first.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	second, err := New(ctx, cfg, quietLogger())
	if err != nil {
		t.Fatalf("New after restart: %v", err)
	}
	defer second.Close()

	boats, err := second.Service.GetResource("res-boats")
	if err != nil {
		t.Fatalf("Expected restored resource: %v", err)
	}
	if boats.AvailableQuantity != 4 || boats.AllocatedQuantity != 2 {
		t.Errorf("Expected 4 available and 2 allocated, got %d/%d", boats.AvailableQuantity, boats.AllocatedQuantity)
	}

	events, err := second.Service.Events(ctx, database.EventFilter{RequestID: req["id"].(string)})
	if err != nil {
		t.Fatalf("Events: %v", err)
	}
	if len(events) != 2 {
		t.Errorf("Expected submit and commit events for the request, got %d", len(events))
	}
}

func TestInMemory(t *testing.T) {
	cfg := config.Default()
	cfg.Server.GinMode = "test"
	cfg.Database.Disabled = true

	a, err := New(context.Background(), cfg, quietLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Close()

	w := httptest.NewRecorder()
	a.Router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/events", nil))
	if w.Code != http.StatusOK {
		t.Errorf("Expected 200 listing events without a journal, got %d", w.Code)
	}
}

func TestRequireTokenNeedsSecret(t *testing.T) {
	cfg := config.Default()
	cfg.Server.GinMode = "test"
	cfg.Database.Disabled = true
	cfg.Auth.RequireToken = true

	if _, err := New(context.Background(), cfg, quietLogger()); err == nil {
		t.Error("Expected error when tokens are required without a secret")
	}
}
