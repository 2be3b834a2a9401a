package service

import (
	"context"
	"time"

	"chainarb/internal/engine"
	"chainarb/internal/models"
	"chainarb/internal/repository"
	"chainarb/internal/websocket"
)

// StrategyRepositoryInterface определяет интерфейс репозитория стратегий
type StrategyRepositoryInterface interface {
	Create(s *models.Strategy) error
	GetByID(id int) (*models.Strategy, error)
	GetAll() ([]*models.Strategy, error)
	GetEnabled() ([]*models.Strategy, error)
	Update(s *models.Strategy) error
}

// RunRepositoryInterface определяет интерфейс репозитория прогонов
type RunRepositoryInterface interface {
	GetByID(id int) (*models.Run, error)
	List(strategyID int, status string, limit, offset int) ([]*models.Run, error)
	CountExecutedToday(strategyID int, dayStart time.Time) (int, error)
}

// EventRepositoryInterface определяет интерфейс репозитория событий исполнения
type EventRepositoryInterface interface {
	List(kind string, limit, offset int) ([]*models.ArbitrageEvent, error)
	GetByRunID(runID int) ([]*models.ArbitrageEvent, error)
}

// AlertRepositoryInterface определяет интерфейс репозитория алертов
type AlertRepositoryInterface interface {
	List(onlyUnacknowledged bool, limit, offset int) ([]*models.Alert, error)
	Acknowledge(id int) error
}

// SettingsRepositoryInterface определяет интерфейс репозитория настроек
type SettingsRepositoryInterface interface {
	Get() (*models.SystemSettings, error)
	Update(settings *models.SystemSettings) error
	SetExecutionLock(locked bool, reason string, version int) error
}

// Проверяем, что реальные репозитории реализуют интерфейсы
var _ StrategyRepositoryInterface = (*repository.StrategyRepository)(nil)
var _ RunRepositoryInterface = (*repository.RunRepository)(nil)
var _ EventRepositoryInterface = (*repository.EventRepository)(nil)
var _ AlertRepositoryInterface = (*repository.AlertRepository)(nil)
var _ SettingsRepositoryInterface = (*repository.SettingsRepository)(nil)

// ============ Интерфейсы ядра исполнения ============

// ScannerInterface определяет интерфейс движка сканирования
type ScannerInterface interface {
	Scan(ctx context.Context, req engine.ScanRequest) (*engine.ScanReport, error)
}

// ExecutorInterface определяет интерфейс оркестратора исполнения
type ExecutorInterface interface {
	Execute(ctx context.Context, req engine.ExecuteRequest) (*models.Run, error)
}

var _ ScannerInterface = (*engine.ScanEngine)(nil)
var _ ExecutorInterface = (*engine.Executor)(nil)

// Broadcaster рассылает события пайплайна подписчикам WebSocket.
// Реализуется хабом; сервисы работают и без него (nil - no-op).
type Broadcaster interface {
	BroadcastRunUpdate(run *models.Run)
	BroadcastLockUpdate(settings *models.SystemSettings)
	BroadcastScanReport(report interface{})
}

var _ Broadcaster = (*websocket.Hub)(nil)

// ============ Интерфейсы сервисов для Dependency Injection ============

// ArbitrageServiceInterface определяет интерфейс сервиса арбитража
type ArbitrageServiceInterface interface {
	Scan(ctx context.Context, req engine.ScanRequest) (*engine.ScanReport, error)
	Execute(ctx context.Context, req engine.ExecuteRequest) (*models.Run, error)
	GetStrategies() ([]*models.Strategy, error)
	GetStrategy(id int) (*models.Strategy, error)
	SetStrategyEnabled(id int, enabled, autoEnabled bool) (*models.Strategy, error)
}

// SettingsServiceInterface определяет интерфейс сервиса настроек
type SettingsServiceInterface interface {
	GetSettings() (*models.SystemSettings, error)
	UpdateSettings(req *UpdateSettingsRequest) (*models.SystemSettings, error)
	Lock(reason string, version int) (*models.SystemSettings, error)
	Unlock(version int) (*models.SystemSettings, error)
}

// AlertServiceInterface определяет интерфейс сервиса алертов
type AlertServiceInterface interface {
	GetAlerts(onlyUnacknowledged bool, limit, offset int) ([]*models.Alert, error)
	Acknowledge(id int) error
}

// RunServiceInterface определяет интерфейс сервиса прогонов
type RunServiceInterface interface {
	GetRuns(strategyID int, status string, limit, offset int) ([]*models.Run, error)
	GetRun(id int) (*models.Run, error)
	GetRunEvents(runID int) ([]*models.ArbitrageEvent, error)
	GetEvents(kind string, limit, offset int) ([]*models.ArbitrageEvent, error)
}
