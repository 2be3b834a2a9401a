package handlers

import (
	"net/http"

	"chainarb/internal/service"
)

// AlertHandler - лента алертов аномалий и их подтверждение
type AlertHandler struct {
	alerts service.AlertServiceInterface
}

// NewAlertHandler создает новый AlertHandler
func NewAlertHandler(alerts service.AlertServiceInterface) *AlertHandler {
	return &AlertHandler{alerts: alerts}
}

// GetAlerts возвращает алерты
// GET /api/v1/alerts?unacknowledged=&limit=&offset=
func (h *AlertHandler) GetAlerts(w http.ResponseWriter, r *http.Request) {
	onlyUnack := r.URL.Query().Get("unacknowledged") == "true"
	limit := queryInt(r, "limit", 0)
	offset := queryInt(r, "offset", 0)

	alerts, err := h.alerts.GetAlerts(onlyUnack, limit, offset)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, alerts)
}

// Acknowledge подтверждает алерт
// POST /api/v1/alerts/{id}/ack
//
// Идемпотентен: повторное подтверждение возвращает 200.
func (h *AlertHandler) Acknowledge(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid alert id")
		return
	}

	if err := h.alerts.Acknowledge(id); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "acknowledged"})
}
