package service

import (
	"errors"

	"chainarb/internal/models"
	"chainarb/pkg/utils"
)

// Ошибки сервиса прогонов
var (
	ErrInvalidRunID = errors.New("run id must be >= 1")
)

// RunService предоставляет бизнес-логику чтения леджера прогонов.
//
// Отвечает за:
// - Выдачу списка прогонов с фильтрами по стратегии и статусу
// - Выдачу прогона по ID
// - Выдачу детальных событий исполнения (по прогону или лентой)
//
// Леджер append-only: прогоны создаются и финализируются только
// оркестратором исполнения, сервис их не мутирует.
type RunService struct {
	runRepo   RunRepositoryInterface
	eventRepo EventRepositoryInterface
	logger    *utils.Logger
}

// NewRunService создает новый экземпляр RunService.
func NewRunService(runRepo RunRepositoryInterface, eventRepo EventRepositoryInterface, logger *utils.Logger) *RunService {
	return &RunService{
		runRepo:   runRepo,
		eventRepo: eventRepo,
		logger:    logger.WithComponent("service.runs"),
	}
}

// GetRuns возвращает прогоны, новые первыми.
//
// Параметры:
// - strategyID: 0 - все стратегии
// - status: "" - все статусы
// - limit, offset: пагинация (limit нормализуется в [1, 500])
func (s *RunService) GetRuns(strategyID int, status string, limit, offset int) ([]*models.Run, error) {
	limit, offset = normalizePage(limit, offset)

	runs, err := s.runRepo.List(strategyID, status, limit, offset)
	if err != nil {
		return nil, err
	}
	if runs == nil {
		runs = []*models.Run{}
	}
	return runs, nil
}

// GetRun возвращает прогон по ID.
func (s *RunService) GetRun(id int) (*models.Run, error) {
	if id < 1 {
		return nil, ErrInvalidRunID
	}
	return s.runRepo.GetByID(id)
}

// GetRunEvents возвращает события исполнения конкретного прогона.
//
// Прогон сначала проверяется на существование: события без прогона
// не отдаются, чтобы 404 и пустой список не путались.
func (s *RunService) GetRunEvents(runID int) ([]*models.ArbitrageEvent, error) {
	if runID < 1 {
		return nil, ErrInvalidRunID
	}
	if _, err := s.runRepo.GetByID(runID); err != nil {
		return nil, err
	}

	events, err := s.eventRepo.GetByRunID(runID)
	if err != nil {
		return nil, err
	}
	if events == nil {
		events = []*models.ArbitrageEvent{}
	}
	return events, nil
}

// GetEvents возвращает ленту событий исполнения.
//
// Параметры:
// - kind: "" - все виды (flash_arbitrage, legacy_swap, ops_refill)
// - limit, offset: пагинация
func (s *RunService) GetEvents(kind string, limit, offset int) ([]*models.ArbitrageEvent, error) {
	limit, offset = normalizePage(limit, offset)

	events, err := s.eventRepo.List(kind, limit, offset)
	if err != nil {
		return nil, err
	}
	if events == nil {
		events = []*models.ArbitrageEvent{}
	}
	return events, nil
}
