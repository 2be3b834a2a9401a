package engine

import (
	"fmt"
	"math/big"
	"time"

	"chainarb/internal/config"
	"chainarb/internal/models"
	"chainarb/internal/repository"
	"chainarb/pkg/utils"
)

// Источники данных для гейтов. Узкие интерфейсы вместо конкретных
// репозиториев, чтобы гейты тестировались без БД.

type settingsSource interface {
	Get() (*models.SystemSettings, error)
}

type riskSource interface {
	Get(strategyID *int, date string) (*models.DailyRiskLimit, error)
}

type tradeCounter interface {
	CountExecutedToday(strategyID int, dayStart time.Time) (int, error)
}

// GateRequest - вход проверки риск-гейтов одной попытки исполнения
type GateRequest struct {
	// IsAdmin выставляется на границе API из JWT; ядро не доверяет
	// вызывающему коду по умолчанию
	IsAdmin bool

	Strategy *models.Strategy

	Now time.Time
}

// RiskGates - упорядоченная цепочка проверок перед исполнением
//
// Порядок фиксирован и short-circuit: авторизация, рубильник
// окружения, глобальная блокировка, пороги, дневные лимиты, баланс.
// Каждая проверка дешевле следующей; ни одна котировка и ни один
// RPC вызов не делаются до прохождения всех гейтов.
type RiskGates struct {
	cfg      config.ArbitrageConfig
	settings settingsSource
	risk     riskSource
	runs     tradeCounter
	logger   *utils.Logger
}

// NewRiskGates создает цепочку гейтов
func NewRiskGates(cfg config.ArbitrageConfig, settings settingsSource, risk riskSource, runs tradeCounter, logger *utils.Logger) *RiskGates {
	return &RiskGates{
		cfg:      cfg,
		settings: settings,
		risk:     risk,
		runs:     runs,
		logger:   logger.WithComponent("engine.gates"),
	}
}

// Check прогоняет запрос через все гейты
//
// Возвращает актуальные настройки, чтобы вызывающий код переиспользовал
// их (mainnet-режим, version для автоблокировки) без повторного чтения.
func (g *RiskGates) Check(req GateRequest) (*models.SystemSettings, error) {
	if !req.IsAdmin {
		RecordGateRejection("auth")
		return nil, &AuthorizationError{Reason: "admin role required for execution"}
	}

	if !g.cfg.ExecutionEnabled {
		RecordGateRejection("env")
		return nil, &ConfigurationError{Reason: "execution disabled by environment (ARB_EXECUTION_ENABLED)"}
	}

	settings, err := g.settings.Get()
	if err != nil {
		return nil, fmt.Errorf("failed to load system settings: %w", err)
	}

	if settings.ExecutionLocked {
		RecordGateRejection("lock")
		reason := "execution is locked"
		if settings.LockReason != nil && *settings.LockReason != "" {
			reason = *settings.LockReason
		}
		g.logger.Warn("исполнение отклонено глобальной блокировкой",
			utils.String("reason", reason))
		return nil, &ExecutionLockedError{Reason: reason}
	}

	if req.Strategy == nil {
		return nil, &ConfigurationError{Reason: "no strategy bound to execution request"}
	}
	if !req.Strategy.IsEnabled {
		RecordGateRejection("thresholds")
		return nil, &ConfigurationError{Reason: fmt.Sprintf("strategy %d is disabled", req.Strategy.ID)}
	}

	// Пороги прибыльности обязаны быть заданы явно: отсутствие
	// порога - запрет, а не нулевой дефолт
	if !req.Strategy.HasThresholds() {
		RecordGateRejection("thresholds")
		return nil, &ConfigurationError{
			Reason: fmt.Sprintf("strategy %d has no profitability thresholds configured", req.Strategy.ID),
		}
	}

	// Верхний предел номинала: стратегия с номиналом выше max_trade_value
	// не исполняется, сколько бы она ни обещала
	if req.Strategy.MaxTradeValue != nil && req.Strategy.MaxTradeValue.Int != nil &&
		req.Strategy.NotionalIn.Int != nil &&
		req.Strategy.NotionalIn.Int.Cmp(req.Strategy.MaxTradeValue.Int) > 0 {
		RecordGateRejection("notional")
		return nil, &ConfigurationError{
			Reason: fmt.Sprintf("strategy %d notional %s exceeds max trade value %s",
				req.Strategy.ID, req.Strategy.NotionalIn.Int, req.Strategy.MaxTradeValue.Int),
		}
	}

	if err := g.checkDailyCaps(req, settings); err != nil {
		RecordGateRejection("daily_caps")
		return nil, err
	}

	return settings, nil
}

// checkDailyCaps проверяет дневные лимиты сделок и убытка,
// сначала по стратегии, затем глобальные
func (g *RiskGates) checkDailyCaps(req GateRequest, settings *models.SystemSettings) error {
	date := repository.CurrentDateUTC(req.Now)
	dayStart := utils.GetDayStartFrom(req.Now)

	if req.Strategy.MaxTradesPerDay != nil {
		count, err := g.runs.CountExecutedToday(req.Strategy.ID, dayStart)
		if err != nil {
			return fmt.Errorf("failed to count today's trades: %w", err)
		}
		if count >= *req.Strategy.MaxTradesPerDay {
			return &ExecutionLockedError{
				Reason: fmt.Sprintf("daily trade cap reached for strategy %d (%d/%d)",
					req.Strategy.ID, count, *req.Strategy.MaxTradesPerDay),
			}
		}
	}

	if req.Strategy.MaxDailyLoss != nil && req.Strategy.MaxDailyLoss.Int != nil {
		agg, err := g.risk.Get(&req.Strategy.ID, date)
		if err != nil {
			return fmt.Errorf("failed to load daily risk aggregate: %w", err)
		}
		if agg.TotalLoss.Int != nil && agg.TotalLoss.Int.Cmp(req.Strategy.MaxDailyLoss.Int) >= 0 {
			return &ExecutionLockedError{
				Reason: fmt.Sprintf("daily loss cap reached for strategy %d", req.Strategy.ID),
			}
		}
	}

	// Глобальные лимиты: strategy_id = NULL хранит агрегат за день
	if settings.MaxTradesPerDay != nil {
		count, err := g.runs.CountExecutedToday(0, dayStart)
		if err != nil {
			return fmt.Errorf("failed to count today's trades: %w", err)
		}
		if count >= *settings.MaxTradesPerDay {
			return &ExecutionLockedError{Reason: "global daily trade cap reached"}
		}
	}

	if settings.MaxDailyLoss != nil && settings.MaxDailyLoss.Int != nil {
		agg, err := g.risk.Get(nil, date)
		if err != nil {
			return fmt.Errorf("failed to load global risk aggregate: %w", err)
		}
		if agg.TotalLoss.Int != nil && agg.TotalLoss.Int.Cmp(settings.MaxDailyLoss.Int) >= 0 {
			return &ExecutionLockedError{Reason: "global daily loss cap reached"}
		}
	}

	return nil
}

// CheckBalance проверяет, что подписывающий кошелек покрывает номинал
// плюс буфер газа
//
// Вынесен из Check: баланс требует обращения к RPC, а ни один вызов
// в цепочку не делается до прохождения блокировки и лимитов. nil
// баланс означает "не удалось получить" и проваливает проверку.
func (g *RiskGates) CheckBalance(strategy *models.Strategy, balance *big.Int) error {
	if balance == nil {
		RecordGateRejection("balance")
		return &ConfigurationError{Reason: "signing wallet balance unavailable"}
	}

	required := new(big.Int).Set(strategy.NotionalIn.Int)
	required.Add(required, big.NewInt(g.cfg.GasBufferWei))

	// Flash loan покрывает номинал заемными средствами: кошельку
	// нужен только буфер газа
	if strategy.FlashLoanEnabled {
		required = big.NewInt(g.cfg.GasBufferWei)
	}

	if balance.Cmp(required) < 0 {
		RecordGateRejection("balance")
		return &ConfigurationError{
			Reason: fmt.Sprintf("insufficient wallet balance: have %s, need %s",
				balance, required),
		}
	}

	return nil
}
