package models

import "time"

// Strategy представляет сконфигурированный арбитражный маршрут
//
// Создается и редактируется оператором через админ-панель;
// ядро читает стратегии и ссылается на них из каждого прогона (Run).
// Единственные поля, которые ядро пишет само - счетчики статистики.
//
// ВАЖНО: is_enabled и is_auto_enabled - независимые флаги.
// Автоисполнение требует оба флага плюс глобальный auto_arbitrage_enabled
// в system_settings.
type Strategy struct {
	ID       int    `json:"id" db:"id"`
	Name     string `json:"name" db:"name"`
	Network  string `json:"network" db:"network"`     // SOLANA, POLYGON, BASE
	SourceA  string `json:"source_a" db:"source_a"`   // источник ликвидности ноги 1
	SourceB  string `json:"source_b" db:"source_b"`   // источник ликвидности ноги 2
	TokenIn  string `json:"token_in" db:"token_in"`   // адрес входного токена
	TokenOut string `json:"token_out" db:"token_out"` // адрес промежуточного токена

	// Номинал первой ноги в базовых единицах входного токена
	NotionalIn BigInt `json:"notional_in" db:"notional_in"`

	// Пороги прибыльности. Отсутствие порога (NULL) - отказ закрытым
	// образом: исполнение запрещено, дефолт в ноль не подставляется.
	MinNetProfit  *BigInt `json:"min_net_profit" db:"min_net_profit"`   // в базовых единицах token_in
	MinProfitBps  *int64  `json:"min_profit_bps" db:"min_profit_bps"`   // базисные пункты
	MaxTradeValue *BigInt `json:"max_trade_value" db:"max_trade_value"` // верхний предел номинала

	// Дневные лимиты (проверяются по daily_risk_limits)
	MaxTradesPerDay *int    `json:"max_trades_per_day" db:"max_trades_per_day"`
	MaxDailyLoss    *BigInt `json:"max_daily_loss" db:"max_daily_loss"`

	// Flash loan параметры (опционально)
	FlashLoanEnabled  bool    `json:"flash_loan_enabled" db:"flash_loan_enabled"`
	FlashLoanProvider string  `json:"flash_loan_provider,omitempty" db:"flash_loan_provider"`
	FlashLoanAmount   *BigInt `json:"flash_loan_amount,omitempty" db:"flash_loan_amount"`
	ReceiverContract  string  `json:"receiver_contract,omitempty" db:"receiver_contract"` // адрес атомарного исполнителя

	IsEnabled     bool `json:"is_enabled" db:"is_enabled"`
	IsAutoEnabled bool `json:"is_auto_enabled" db:"is_auto_enabled"`

	// Локальная статистика
	RunsCount int `json:"runs_count" db:"runs_count"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// HasThresholds возвращает true если оба порога прибыльности заданы
//
// Исполнение стратегии без порогов запрещено (fail closed).
func (s *Strategy) HasThresholds() bool {
	return s.MinNetProfit != nil && s.MinNetProfit.Int != nil && s.MinProfitBps != nil
}

// AutoExecutable возвращает true если стратегия допущена к автоисполнению
// (глобальный флаг проверяется отдельно в risk gate)
func (s *Strategy) AutoExecutable() bool {
	return s.IsEnabled && s.IsAutoEnabled
}
