package models

import "time"

// SystemSettings представляет глобальные настройки системы
// (таблица system_settings, всегда одна запись с id=1)
//
// Это единственное авторитетное состояние гейтов исполнения.
// Координация между конкурентными вызовами - через БД, распределенной
// блокировки нет: две одновременные попытки исполнения могут обе пройти
// проверку блокировки до того, как одна из них запишет Run. Это принятое
// ограничение дизайна, страхуемое реактивной блокировкой монитора
// аномалий, а не строгим взаимным исключением.
//
// Поле Version - токен оптимистической конкуренции: обновление с
// устаревшей версией отклоняется, чтобы ручное снятие блокировки
// админом и автоблокировка монитора не затирали друг друга молча.
type SystemSettings struct {
	ID int `json:"id" db:"id"`

	// Глобальная блокировка исполнения
	ExecutionLocked   bool       `json:"execution_locked" db:"execution_locked"`
	LockReason        *string    `json:"lock_reason" db:"lock_reason"`
	LockedAt          *time.Time `json:"locked_at" db:"locked_at"`

	// Режимы
	MainnetMode          bool `json:"mainnet_mode" db:"mainnet_mode"`
	AutoArbitrageEnabled bool `json:"auto_arbitrage_enabled" db:"auto_arbitrage_enabled"`
	AutoFlashLoanEnabled bool `json:"auto_flash_loan_enabled" db:"auto_flash_loan_enabled"`

	// Глобальные дневные лимиты (NULL = без ограничения)
	MaxDailyLoss    *BigInt `json:"max_daily_loss" db:"max_daily_loss"`
	MaxTradesPerDay *int    `json:"max_trades_per_day" db:"max_trades_per_day"`

	// Минимальный баланс fee payer и сумма пополнения по сетям (JSON в БД)
	MinFeePayerBalances map[string]string `json:"min_fee_payer_balances" db:"min_fee_payer_balances"`
	TopUpAmounts        map[string]string `json:"top_up_amounts" db:"top_up_amounts"`

	// Токен оптимистической конкуренции
	Version int `json:"version" db:"version"`

	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
