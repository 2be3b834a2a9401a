package handlers

import (
	"encoding/json"
	"net/http"

	"chainarb/internal/service"
)

// SettingsHandler - глобальные настройки и блокировка исполнения
//
// Блокировка вынесена в отдельные эндпоинты с обязательной причиной
// и версией: установка и снятие - аудируемые действия оператора,
// а не очередное поле PATCH.
type SettingsHandler struct {
	settings service.SettingsServiceInterface
}

// NewSettingsHandler создает новый SettingsHandler
func NewSettingsHandler(settings service.SettingsServiceInterface) *SettingsHandler {
	return &SettingsHandler{settings: settings}
}

// GetSettings возвращает текущие настройки
// GET /api/v1/settings
func (h *SettingsHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.settings.GetSettings()
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

// UpdateSettings частично обновляет настройки
// PATCH /api/v1/settings
//
// Тело обязано нести version, которую видел клиент: устаревшая
// версия отклоняется 409 вместо молчаливой перезаписи.
func (h *SettingsHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req service.UpdateSettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	settings, err := h.settings.UpdateSettings(&req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

type lockRequest struct {
	Reason  string `json:"reason"`
	Version int    `json:"version"`
}

// Lock блокирует исполнение
// POST /api/v1/settings/lock
func (h *SettingsHandler) Lock(w http.ResponseWriter, r *http.Request) {
	var req lockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	settings, err := h.settings.Lock(req.Reason, req.Version)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

type unlockRequest struct {
	Version int `json:"version"`
}

// Unlock снимает блокировку исполнения
// DELETE /api/v1/settings/lock
func (h *SettingsHandler) Unlock(w http.ResponseWriter, r *http.Request) {
	var req unlockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	settings, err := h.settings.Unlock(req.Version)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}
