package service

import (
	"context"
	"errors"

	"chainarb/internal/engine"
	"chainarb/internal/models"
	"chainarb/pkg/utils"
)

// Ошибки сервиса арбитража
var (
	ErrInvalidStrategyID = errors.New("strategy id must be >= 1")
)

// ArbitrageService предоставляет бизнес-логику арбитражного пайплайна.
//
// Отвечает за:
// - Запуск сканирования комбинаций через движок сканирования
// - Запуск исполнения стратегии через оркестратор
// - Чтение и включение/выключение стратегий
//
// Сервис - тонкая обертка: вся механика гейтов, котировок и машины
// состояний живет в ядре, сюда вынесена только валидация входа и
// нормализация ответов для HTTP-слоя.
type ArbitrageService struct {
	scanner      ScannerInterface
	executor     ExecutorInterface
	strategyRepo StrategyRepositoryInterface
	broadcaster  Broadcaster
	logger       *utils.Logger
}

// NewArbitrageService создает новый экземпляр ArbitrageService.
func NewArbitrageService(
	scanner ScannerInterface,
	executor ExecutorInterface,
	strategyRepo StrategyRepositoryInterface,
	logger *utils.Logger,
) *ArbitrageService {
	return &ArbitrageService{
		scanner:      scanner,
		executor:     executor,
		strategyRepo: strategyRepo,
		logger:       logger.WithComponent("service.arbitrage"),
	}
}

// SetBroadcaster подключает рассылку событий в WebSocket поток.
// Без подключенного broadcaster сервис работает молча.
func (s *ArbitrageService) SetBroadcaster(b Broadcaster) {
	s.broadcaster = b
}

// Scan запускает сканирование комбинаций.
//
// Параметры:
// - req: сеть, источники, токены, номинал и настройки скорости
//
// Возвращает:
// - Отчет с классифицированными комбинациями (возможно частичный,
//   если скан прерван по rate limit)
func (s *ArbitrageService) Scan(ctx context.Context, req engine.ScanRequest) (*engine.ScanReport, error) {
	report, err := s.scanner.Scan(ctx, req)
	if err != nil {
		return nil, err
	}
	if report.Results == nil {
		report.Results = []*engine.ScanResult{}
	}
	if s.broadcaster != nil {
		s.broadcaster.BroadcastScanReport(report)
	}
	return report, nil
}

// Execute запускает исполнение стратегии.
//
// Возвращает финализированный прогон. Типизированные ошибки ядра
// (блокировка, порог, частичное исполнение) пробрасываются как есть -
// их различает HTTP-слой.
func (s *ArbitrageService) Execute(ctx context.Context, req engine.ExecuteRequest) (*models.Run, error) {
	if req.StrategyID < 1 {
		return nil, ErrInvalidStrategyID
	}
	run, err := s.executor.Execute(ctx, req)
	if err != nil {
		return nil, err
	}
	if s.broadcaster != nil {
		s.broadcaster.BroadcastRunUpdate(run)
	}
	return run, nil
}

// GetStrategies возвращает все стратегии.
func (s *ArbitrageService) GetStrategies() ([]*models.Strategy, error) {
	strategies, err := s.strategyRepo.GetAll()
	if err != nil {
		return nil, err
	}
	if strategies == nil {
		strategies = []*models.Strategy{}
	}
	return strategies, nil
}

// GetStrategy возвращает стратегию по ID.
func (s *ArbitrageService) GetStrategy(id int) (*models.Strategy, error) {
	if id < 1 {
		return nil, ErrInvalidStrategyID
	}
	return s.strategyRepo.GetByID(id)
}

// SetStrategyEnabled включает или выключает стратегию.
//
// Автоисполнение (autoEnabled) дополнительно требует глобального флага
// auto_arbitrage_enabled в настройках - он здесь не проверяется,
// решение принимает гейт при исполнении.
func (s *ArbitrageService) SetStrategyEnabled(id int, enabled, autoEnabled bool) (*models.Strategy, error) {
	if id < 1 {
		return nil, ErrInvalidStrategyID
	}
	strategy, err := s.strategyRepo.GetByID(id)
	if err != nil {
		return nil, err
	}

	strategy.IsEnabled = enabled
	strategy.IsAutoEnabled = autoEnabled
	if err := s.strategyRepo.Update(strategy); err != nil {
		return nil, err
	}

	s.logger.Info("стратегия переключена",
		utils.Int("strategy_id", id),
		utils.Bool("enabled", enabled),
		utils.Bool("auto_enabled", autoEnabled))
	return strategy, nil
}
