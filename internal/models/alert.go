package models

import "time"

// Alert представляет запись об аномалии, созданную монитором
//
// Алерты никогда не удаляются, только подтверждаются (acknowledged).
// Счетчик неподтвержденных warning/critical алертов в скользящем окне -
// триггер автоматической блокировки исполнения.
type Alert struct {
	ID       int    `json:"id" db:"id"`
	RunID    *int   `json:"run_id" db:"run_id"`
	Type     string `json:"type" db:"type"`
	Severity string `json:"severity" db:"severity"`
	Message  string `json:"message" db:"message"`

	Acknowledged   bool       `json:"acknowledged" db:"acknowledged"`
	AcknowledgedAt *time.Time `json:"acknowledged_at" db:"acknowledged_at"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Типы алертов
const (
	AlertTypeNegativeRealizedProfit = "NEGATIVE_REALIZED_PROFIT"
	AlertTypePnlRatioLow            = "PNL_RATIO_LOW"
	AlertTypeGasCostOverrun         = "GAS_COST_OVERRUN"
	AlertTypeAutoLockEngaged        = "AUTO_LOCK_ENGAGED"
)

// Уровни серьезности
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)
