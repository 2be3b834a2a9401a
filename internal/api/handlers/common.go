package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"chainarb/internal/engine"
	"chainarb/internal/repository"
	"chainarb/internal/service"

	"github.com/gorilla/mux"
)

// ErrorResponse - стандартный формат ответа об ошибке
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

// writeJSON пишет успешный JSON-ответ
func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		json.NewEncoder(w).Encode(payload)
	}
}

// writeError пишет JSON-ответ об ошибке
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}

// writeServiceError переводит ошибку сервисного слоя в HTTP-ответ
//
// Таксономия фиксированная:
// - AuthorizationError       -> 403 (401 ставит middleware до обработчика)
// - ExecutionLockedError     -> 423, причина блокировки дословно
// - BelowThresholdError      -> 400, прогон при этом записан как SIMULATED
// - QuoteUnavailableError    -> 502
// - PartialExecutionError    -> 500, хэш первой ноги в ответе
// - ConfigurationError       -> 500
// - версионный конфликт      -> 409
// - not found                -> 404
// - ошибки валидации         -> 400
//
// Текст внутренних ошибок наружу не уходит, stack trace только в логе.
func writeServiceError(w http.ResponseWriter, err error) {
	var authErr *engine.AuthorizationError
	if errors.As(err, &authErr) {
		writeJSON(w, http.StatusForbidden, ErrorResponse{Error: authErr.Reason, Code: "forbidden"})
		return
	}

	var lockErr *engine.ExecutionLockedError
	if errors.As(err, &lockErr) {
		// Причина блокировки возвращается клиенту дословно
		writeJSON(w, http.StatusLocked, ErrorResponse{Error: lockErr.Reason, Code: "execution_locked"})
		return
	}

	var thresholdErr *engine.BelowThresholdError
	if errors.As(err, &thresholdErr) {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   thresholdErr.Error(),
			Code:    "below_threshold",
			Details: "run recorded as SIMULATED",
		})
		return
	}

	var quoteErr *engine.QuoteUnavailableError
	if errors.As(err, &quoteErr) {
		writeJSON(w, http.StatusBadGateway, ErrorResponse{
			Error: quoteErr.Error(),
			Code:  "quote_unavailable",
		})
		return
	}

	var partialErr *engine.PartialExecutionError
	if errors.As(err, &partialErr) {
		// Хэш первой ноги обязан дойти до оператора для ручной разборки
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{
			Error:   partialErr.Error(),
			Code:    "partial_execution",
			Details: "leg1_tx=" + partialErr.Leg1Tx,
		})
		return
	}

	var cfgErr *engine.ConfigurationError
	if errors.As(err, &cfgErr) {
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: cfgErr.Reason, Code: "configuration"})
		return
	}

	switch {
	case errors.Is(err, repository.ErrVersionConflict):
		writeJSON(w, http.StatusConflict, ErrorResponse{
			Error: "settings changed concurrently, re-read and retry",
			Code:  "version_conflict",
		})
	case errors.Is(err, repository.ErrStrategyNotFound),
		errors.Is(err, repository.ErrRunNotFound),
		errors.Is(err, repository.ErrAlertNotFound),
		errors.Is(err, repository.ErrEventNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrInvalidStrategyID),
		errors.Is(err, service.ErrInvalidRunID),
		errors.Is(err, service.ErrInvalidAlertID),
		errors.Is(err, service.ErrInvalidMaxTradesPerDay),
		errors.Is(err, service.ErrInvalidMaxDailyLoss),
		errors.Is(err, service.ErrLockReasonEmpty),
		errors.Is(err, service.ErrVersionRequired):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// pathID извлекает числовой {id} из пути
func pathID(r *http.Request, name string) (int, error) {
	raw := mux.Vars(r)[name]
	return strconv.Atoi(raw)
}

// queryInt читает числовой query-параметр с дефолтом
func queryInt(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}
