package handlers

import (
	"net/http"

	"chainarb/internal/service"
)

// RunHandler - чтение леджера прогонов и событий исполнения
type RunHandler struct {
	runs service.RunServiceInterface
}

// NewRunHandler создает новый RunHandler
func NewRunHandler(runs service.RunServiceInterface) *RunHandler {
	return &RunHandler{runs: runs}
}

// GetRuns возвращает прогоны с фильтрами
// GET /api/v1/runs?strategy_id=&status=&limit=&offset=
func (h *RunHandler) GetRuns(w http.ResponseWriter, r *http.Request) {
	strategyID := queryInt(r, "strategy_id", 0)
	status := r.URL.Query().Get("status")
	limit := queryInt(r, "limit", 0)
	offset := queryInt(r, "offset", 0)

	runs, err := h.runs.GetRuns(strategyID, status, limit, offset)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

// GetRun возвращает прогон по ID
// GET /api/v1/runs/{id}
func (h *RunHandler) GetRun(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid run id")
		return
	}

	run, err := h.runs.GetRun(id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// GetRunEvents возвращает события исполнения прогона
// GET /api/v1/runs/{id}/events
func (h *RunHandler) GetRunEvents(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid run id")
		return
	}

	events, err := h.runs.GetRunEvents(id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

// GetEvents возвращает ленту событий исполнения
// GET /api/v1/events?kind=&limit=&offset=
func (h *RunHandler) GetEvents(w http.ResponseWriter, r *http.Request) {
	kind := r.URL.Query().Get("kind")
	limit := queryInt(r, "limit", 0)
	offset := queryInt(r, "offset", 0)

	events, err := h.runs.GetEvents(kind, limit, offset)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}
