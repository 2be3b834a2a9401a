package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"chainarb/internal/models"

	"github.com/gorilla/mux"
)

func runRouter(handler *RunHandler) *mux.Router {
	router := mux.NewRouter()
	router.HandleFunc("/api/v1/runs", handler.GetRuns).Methods("GET")
	router.HandleFunc("/api/v1/runs/{id}", handler.GetRun).Methods("GET")
	router.HandleFunc("/api/v1/runs/{id}/events", handler.GetRunEvents).Methods("GET")
	router.HandleFunc("/api/v1/events", handler.GetEvents).Methods("GET")
	return router
}

func TestRunHandler_GetRuns(t *testing.T) {
	mockSvc := NewMockRunService()
	mockSvc.runs[1] = &models.Run{ID: 1, Status: models.RunStatusExecuted}
	mockSvc.runs[2] = &models.Run{ID: 2, Status: models.RunStatusFailed}
	router := runRouter(NewRunHandler(mockSvc))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/runs?status=EXECUTED", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var runs []*models.Run
	if err := json.NewDecoder(w.Body).Decode(&runs); err != nil {
		t.Fatalf("decode runs: %v", err)
	}
	if len(runs) != 1 || runs[0].ID != 1 {
		t.Errorf("status filter broken: %v", runs)
	}
}

func TestRunHandler_GetRun(t *testing.T) {
	mockSvc := NewMockRunService()
	mockSvc.runs[7] = &models.Run{ID: 7, Status: models.RunStatusSimulated}
	router := runRouter(NewRunHandler(mockSvc))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/runs/7", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/runs/99", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestRunHandler_GetRunEvents(t *testing.T) {
	mockSvc := NewMockRunService()
	runID := 7
	mockSvc.runs[7] = &models.Run{ID: 7, Status: models.RunStatusExecuted}
	mockSvc.events = []*models.ArbitrageEvent{
		{ID: 1, RunID: &runID, Kind: models.EventKindLegacySwap},
	}
	router := runRouter(NewRunHandler(mockSvc))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/runs/7/events", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var events []*models.ArbitrageEvent
	if err := json.NewDecoder(w.Body).Decode(&events); err != nil {
		t.Fatalf("decode events: %v", err)
	}
	if len(events) != 1 {
		t.Errorf("got %d events, want 1", len(events))
	}

	// События несуществующего прогона - 404
	req = httptest.NewRequest(http.MethodGet, "/api/v1/runs/42/events", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}
