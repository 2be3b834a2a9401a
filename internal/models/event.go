package models

import "time"

// ArbitrageEvent представляет детальную запись исполнения
// (таблица ops_arbitrage_events)
//
// Более мелкозернистая, чем Run: фиксирует газ по ногам и расхождение
// ожидаемой/фактической прибыли. Один Run может соответствовать одному
// Event, когда оба пишутся одним вариантом пайплайна.
type ArbitrageEvent struct {
	ID    int  `json:"id" db:"id"`
	RunID *int `json:"run_id" db:"run_id"`

	Network string `json:"network" db:"network"`
	Kind    string `json:"kind" db:"kind"` // flash_arbitrage, ops_refill, legacy_swap

	ExpectedProfit BigInt  `json:"expected_profit" db:"expected_profit"`
	RealizedProfit *BigInt `json:"realized_profit" db:"realized_profit"`

	Leg1Gas *BigInt `json:"leg1_gas" db:"leg1_gas"`
	Leg2Gas *BigInt `json:"leg2_gas" db:"leg2_gas"`

	Leg1TxHash *string `json:"leg1_tx_hash" db:"leg1_tx_hash"`
	Leg2TxHash *string `json:"leg2_tx_hash" db:"leg2_tx_hash"`

	ErrorMessage *string `json:"error_message" db:"error_message"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Виды событий
const (
	EventKindFlashArbitrage = "flash_arbitrage"
	EventKindOpsRefill      = "ops_refill"
	EventKindLegacySwap     = "legacy_swap"
)
