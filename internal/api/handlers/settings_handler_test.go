package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"chainarb/internal/models"
)

func TestSettingsHandler_GetSettings(t *testing.T) {
	t.Run("returns settings", func(t *testing.T) {
		mockSvc := NewMockSettingsService()
		handler := NewSettingsHandler(mockSvc)

		req := httptest.NewRequest(http.MethodGet, "/api/v1/settings", nil)
		w := httptest.NewRecorder()
		handler.GetSettings(w, req)

		if w.Code != http.StatusOK {
			t.Errorf("status = %d, want 200", w.Code)
		}
		var settings models.SystemSettings
		if err := json.NewDecoder(w.Body).Decode(&settings); err != nil {
			t.Fatalf("decode settings: %v", err)
		}
		if settings.Version != 1 {
			t.Errorf("version = %d, want 1", settings.Version)
		}
	})

	t.Run("returns 500 on service error", func(t *testing.T) {
		mockSvc := NewMockSettingsService()
		mockSvc.getErr = ErrMockDatabase
		handler := NewSettingsHandler(mockSvc)

		req := httptest.NewRequest(http.MethodGet, "/api/v1/settings", nil)
		w := httptest.NewRecorder()
		handler.GetSettings(w, req)

		if w.Code != http.StatusInternalServerError {
			t.Errorf("status = %d, want 500", w.Code)
		}
	})
}

func TestSettingsHandler_UpdateSettings(t *testing.T) {
	t.Run("updates mainnet mode", func(t *testing.T) {
		mockSvc := NewMockSettingsService()
		handler := NewSettingsHandler(mockSvc)

		body, _ := json.Marshal(map[string]interface{}{
			"mainnet_mode": true,
			"version":      1,
		})
		req := httptest.NewRequest(http.MethodPatch, "/api/v1/settings", bytes.NewReader(body))
		w := httptest.NewRecorder()
		handler.UpdateSettings(w, req)

		if w.Code != http.StatusOK {
			t.Errorf("status = %d, want 200", w.Code)
		}
		if !mockSvc.settings.MainnetMode {
			t.Error("mainnet_mode not updated")
		}
	})

	t.Run("stale version returns 409", func(t *testing.T) {
		mockSvc := NewMockSettingsService()
		mockSvc.settings.Version = 5
		handler := NewSettingsHandler(mockSvc)

		body, _ := json.Marshal(map[string]interface{}{
			"mainnet_mode": true,
			"version":      3,
		})
		req := httptest.NewRequest(http.MethodPatch, "/api/v1/settings", bytes.NewReader(body))
		w := httptest.NewRecorder()
		handler.UpdateSettings(w, req)

		if w.Code != http.StatusConflict {
			t.Errorf("status = %d, want 409", w.Code)
		}
	})
}

func TestSettingsHandler_Lock(t *testing.T) {
	t.Run("locks with reason", func(t *testing.T) {
		mockSvc := NewMockSettingsService()
		handler := NewSettingsHandler(mockSvc)

		body, _ := json.Marshal(map[string]interface{}{
			"reason":  "suspicious fills",
			"version": 1,
		})
		req := httptest.NewRequest(http.MethodPost, "/api/v1/settings/lock", bytes.NewReader(body))
		w := httptest.NewRecorder()
		handler.Lock(w, req)

		if w.Code != http.StatusOK {
			t.Errorf("status = %d, want 200", w.Code)
		}
		if !mockSvc.settings.ExecutionLocked {
			t.Error("execution not locked")
		}
	})

	t.Run("empty reason returns 400", func(t *testing.T) {
		handler := NewSettingsHandler(NewMockSettingsService())

		body, _ := json.Marshal(map[string]interface{}{"version": 1})
		req := httptest.NewRequest(http.MethodPost, "/api/v1/settings/lock", bytes.NewReader(body))
		w := httptest.NewRecorder()
		handler.Lock(w, req)

		if w.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", w.Code)
		}
	})
}

func TestSettingsHandler_Unlock(t *testing.T) {
	t.Run("unlocks", func(t *testing.T) {
		mockSvc := NewMockSettingsService()
		reason := "maintenance"
		mockSvc.settings.ExecutionLocked = true
		mockSvc.settings.LockReason = &reason
		handler := NewSettingsHandler(mockSvc)

		body, _ := json.Marshal(map[string]interface{}{"version": 1})
		req := httptest.NewRequest(http.MethodDelete, "/api/v1/settings/lock", bytes.NewReader(body))
		w := httptest.NewRecorder()
		handler.Unlock(w, req)

		if w.Code != http.StatusOK {
			t.Errorf("status = %d, want 200", w.Code)
		}
		if mockSvc.settings.ExecutionLocked {
			t.Error("execution still locked")
		}
	})

	t.Run("stale version returns 409", func(t *testing.T) {
		mockSvc := NewMockSettingsService()
		mockSvc.settings.ExecutionLocked = true
		mockSvc.settings.Version = 4
		handler := NewSettingsHandler(mockSvc)

		body, _ := json.Marshal(map[string]interface{}{"version": 2})
		req := httptest.NewRequest(http.MethodDelete, "/api/v1/settings/lock", bytes.NewReader(body))
		w := httptest.NewRecorder()
		handler.Unlock(w, req)

		if w.Code != http.StatusConflict {
			t.Errorf("status = %d, want 409", w.Code)
		}
		if !mockSvc.settings.ExecutionLocked {
			t.Error("stale unlock must not drop the lock")
		}
	})
}
