package handlers

import (
	"encoding/json"
	"net/http"

	"chainarb/internal/api/middleware"
	"chainarb/internal/engine"
	"chainarb/internal/service"
)

// ArbitrageHandler - триггеры скана и исполнения
//
// Оба эндпоинта требуют операторского токена: флаг IsAdmin берется
// из middleware, а не из тела запроса, и проверяется гейтами еще раз
// до какого-либо обращения к сети или кошелькам.
type ArbitrageHandler struct {
	arbitrage service.ArbitrageServiceInterface
}

// NewArbitrageHandler создает новый ArbitrageHandler
func NewArbitrageHandler(arbitrage service.ArbitrageServiceInterface) *ArbitrageHandler {
	return &ArbitrageHandler{arbitrage: arbitrage}
}

// Scan запускает скан матрицы источников
// POST /api/v1/scan
func (h *ArbitrageHandler) Scan(w http.ResponseWriter, r *http.Request) {
	var req engine.ScanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	report, err := h.arbitrage.Scan(r.Context(), req)
	if err != nil {
		// Скан не возвращает типизированных ошибок исполнения:
		// любая ошибка здесь - ошибка параметров запроса
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, report)
}

type executeRequest struct {
	StrategyID int `json:"strategy_id"`
}

// Execute запускает исполнение стратегии
// POST /api/v1/execute
func (h *ArbitrageHandler) Execute(w http.ResponseWriter, r *http.Request) {
	var req executeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	run, err := h.arbitrage.Execute(r.Context(), engine.ExecuteRequest{
		StrategyID: req.StrategyID,
		IsAdmin:    middleware.IsAdmin(r),
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// GetStrategies возвращает все стратегии
// GET /api/v1/strategies
func (h *ArbitrageHandler) GetStrategies(w http.ResponseWriter, r *http.Request) {
	strategies, err := h.arbitrage.GetStrategies()
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, strategies)
}

// GetStrategy возвращает стратегию по ID
// GET /api/v1/strategies/{id}
func (h *ArbitrageHandler) GetStrategy(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid strategy id")
		return
	}

	strategy, err := h.arbitrage.GetStrategy(id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, strategy)
}

type toggleStrategyRequest struct {
	Enabled     bool `json:"enabled"`
	AutoEnabled bool `json:"auto_enabled"`
}

// ToggleStrategy включает или выключает стратегию
// PATCH /api/v1/strategies/{id}/enabled
func (h *ArbitrageHandler) ToggleStrategy(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid strategy id")
		return
	}

	var req toggleStrategyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	strategy, err := h.arbitrage.SetStrategyEnabled(id, req.Enabled, req.AutoEnabled)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, strategy)
}
