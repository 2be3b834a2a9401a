package repository

import (
	"database/sql"
	"errors"
	"math/big"
	"time"

	"chainarb/internal/models"
	"chainarb/pkg/utils"
)

// RiskLimitRepository - работа с таблицей daily_risk_limits
//
// Строка на пару (strategy_id, date); смена даты UTC означает новую
// строку, явного "сброса" счетчиков нет. strategy_id = NULL хранит
// глобальный дневной агрегат.
type RiskLimitRepository struct {
	db *sql.DB
}

// NewRiskLimitRepository создает новый экземпляр репозитория
func NewRiskLimitRepository(db *sql.DB) *RiskLimitRepository {
	return &RiskLimitRepository{db: db}
}

// Get возвращает дневной агрегат стратегии за дату (YYYY-MM-DD, UTC)
//
// Отсутствие строки - не ошибка: возвращается нулевой агрегат,
// день просто еще не начинался.
func (r *RiskLimitRepository) Get(strategyID *int, date string) (*models.DailyRiskLimit, error) {
	query := `
		SELECT id, strategy_id, date, trades_count, total_pnl, total_loss, updated_at
		FROM daily_risk_limits
		WHERE strategy_id IS NOT DISTINCT FROM $1 AND date = $2`

	limit := &models.DailyRiskLimit{}
	err := r.db.QueryRow(query, strategyID, date).Scan(
		&limit.ID, &limit.StrategyID, &limit.Date,
		&limit.TradesCount, &limit.TotalPnl, &limit.TotalLoss,
		&limit.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &models.DailyRiskLimit{
				StrategyID: strategyID,
				Date:       date,
				TotalPnl:   models.NewBigInt(0),
				TotalLoss:  models.NewBigInt(0),
			}, nil
		}
		return nil, err
	}
	return limit, nil
}

// RecordTrade инкрементирует дневной агрегат после исполнения
//
// pnl - фактическая прибыль (может быть отрицательной); в total_loss
// добавляется абсолютное значение убытка, прибыльные сделки его
// не уменьшают.
func (r *RiskLimitRepository) RecordTrade(strategyID *int, date string, pnl *big.Int) error {
	loss := big.NewInt(0)
	if pnl.Sign() < 0 {
		loss = new(big.Int).Neg(pnl)
	}

	query := `
		INSERT INTO daily_risk_limits (strategy_id, date, trades_count, total_pnl, total_loss, updated_at)
		VALUES ($1, $2, 1, $3, $4, $5)
		ON CONFLICT (strategy_id, date) DO UPDATE
		SET trades_count = daily_risk_limits.trades_count + 1,
			total_pnl = daily_risk_limits.total_pnl + EXCLUDED.total_pnl,
			total_loss = daily_risk_limits.total_loss + EXCLUDED.total_loss,
			updated_at = EXCLUDED.updated_at`

	_, err := r.db.Exec(query, strategyID, date,
		models.BigInt{Int: pnl}, models.BigInt{Int: loss}, time.Now())
	return err
}

// CurrentDateUTC возвращает ключ текущих суток в формате YYYY-MM-DD (UTC)
func CurrentDateUTC(now time.Time) string {
	return utils.DayKey(now)
}
