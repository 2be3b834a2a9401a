package api

import (
	"net/http"

	"chainarb/internal/api/handlers"
	"chainarb/internal/api/middleware"
	"chainarb/internal/config"
	"chainarb/internal/service"
	"chainarb/internal/websocket"
	"chainarb/pkg/utils"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Dependencies содержит все зависимости для API handlers
type Dependencies struct {
	ArbitrageService service.ArbitrageServiceInterface
	SettingsService  service.SettingsServiceInterface
	AlertService     service.AlertServiceInterface
	RunService       service.RunServiceInterface

	Security config.SecurityConfig
	Logger   *utils.Logger
	Hub      *websocket.Hub
}

// SetupRoutes настраивает все HTTP маршруты приложения
//
// Структура маршрутов:
//
// /api/v1/
//
//	├── POST /auth/login - вход оператора (без токена)
//	├── POST /scan - скан матрицы источников
//	├── POST /execute - исполнение стратегии
//	├── /strategies
//	│   ├── GET / - список стратегий
//	│   ├── GET /{id} - стратегия
//	│   └── PATCH /{id}/enabled - включить/выключить
//	├── /runs
//	│   ├── GET / - леджер прогонов
//	│   ├── GET /{id} - прогон
//	│   └── GET /{id}/events - события прогона
//	├── GET /events - лента событий исполнения
//	├── /alerts
//	│   ├── GET / - алерты аномалий
//	│   └── POST /{id}/ack - подтвердить алерт
//	└── /settings
//	    ├── GET / - настройки
//	    ├── PATCH / - обновить настройки
//	    ├── POST /lock - заблокировать исполнение
//	    └── DELETE /lock - снять блокировку
//
// /ws/stream - поток прогонов/алертов/блокировок
// /metrics   - Prometheus
// /health    - проверка живости
//
// Middleware в порядке применения: Recovery, Logging, CORS; JWT
// только на защищенном /api/v1 (кроме /auth/login).
func SetupRoutes(deps *Dependencies) *mux.Router {
	router := mux.NewRouter()

	router.Use(middleware.Recovery(deps.Logger))
	router.Use(middleware.Logging(deps.Logger))
	router.Use(middleware.CORS)

	authHandler := handlers.NewAuthHandler(deps.Security, deps.Logger)
	router.HandleFunc("/api/v1/auth/login", authHandler.Login).Methods("POST")

	// Защищенный API: любой запрос без валидного операторского
	// токена отклоняется до обработчика
	api := router.PathPrefix("/api/v1").Subrouter()
	api.Use(middleware.JWTAuth(deps.Security.JWTSecret))

	if deps.ArbitrageService != nil {
		arbitrageHandler := handlers.NewArbitrageHandler(deps.ArbitrageService)
		api.HandleFunc("/scan", arbitrageHandler.Scan).Methods("POST")
		api.HandleFunc("/execute", arbitrageHandler.Execute).Methods("POST")
		api.HandleFunc("/strategies", arbitrageHandler.GetStrategies).Methods("GET")
		api.HandleFunc("/strategies/{id}", arbitrageHandler.GetStrategy).Methods("GET")
		api.HandleFunc("/strategies/{id}/enabled", arbitrageHandler.ToggleStrategy).Methods("PATCH")
	}

	if deps.RunService != nil {
		runHandler := handlers.NewRunHandler(deps.RunService)
		api.HandleFunc("/runs", runHandler.GetRuns).Methods("GET")
		api.HandleFunc("/runs/{id}", runHandler.GetRun).Methods("GET")
		api.HandleFunc("/runs/{id}/events", runHandler.GetRunEvents).Methods("GET")
		api.HandleFunc("/events", runHandler.GetEvents).Methods("GET")
	}

	if deps.AlertService != nil {
		alertHandler := handlers.NewAlertHandler(deps.AlertService)
		api.HandleFunc("/alerts", alertHandler.GetAlerts).Methods("GET")
		api.HandleFunc("/alerts/{id}/ack", alertHandler.Acknowledge).Methods("POST")
	}

	if deps.SettingsService != nil {
		settingsHandler := handlers.NewSettingsHandler(deps.SettingsService)
		api.HandleFunc("/settings", settingsHandler.GetSettings).Methods("GET")
		api.HandleFunc("/settings", settingsHandler.UpdateSettings).Methods("PATCH")
		api.HandleFunc("/settings/lock", settingsHandler.Lock).Methods("POST")
		api.HandleFunc("/settings/lock", settingsHandler.Unlock).Methods("DELETE")
	}

	if deps.Hub != nil {
		router.HandleFunc("/ws/stream", func(w http.ResponseWriter, r *http.Request) {
			websocket.ServeWS(deps.Hub, w, r)
		})
	}

	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods("GET")

	return router
}
