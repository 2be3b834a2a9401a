package models

import "time"

// DailyRiskLimit представляет дневной агрегат по стратегии
// (таблица daily_risk_limits, уникальность по strategy_id + date)
//
// Создается/инкрементируется при каждом исполнении; "сброс" происходит
// неявно при смене даты - новая дата означает новую строку.
// strategy_id = NULL хранит глобальный агрегат за день.
type DailyRiskLimit struct {
	ID         int    `json:"id" db:"id"`
	StrategyID *int   `json:"strategy_id" db:"strategy_id"`
	Date       string `json:"date" db:"date"` // YYYY-MM-DD, UTC

	TradesCount int    `json:"trades_count" db:"trades_count"`
	TotalPnl    BigInt `json:"total_pnl" db:"total_pnl"`
	TotalLoss   BigInt `json:"total_loss" db:"total_loss"` // сумма абсолютных значений убытков

	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
