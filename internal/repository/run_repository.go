package repository

import (
	"database/sql"
	"errors"
	"time"

	"chainarb/internal/models"
)

// Ошибки репозитория прогонов
var (
	ErrRunNotFound = errors.New("run not found")
	// ErrRunFinished - попытка изменить завершенный прогон:
	// история неизменяема, повторная попытка - это новый Run
	ErrRunFinished = errors.New("run already finished")
)

// RunRepository - работа с таблицей arbitrage_runs (леджер попыток)
type RunRepository struct {
	db *sql.DB
}

// NewRunRepository создает новый экземпляр репозитория
func NewRunRepository(db *sql.DB) *RunRepository {
	return &RunRepository{db: db}
}

const runColumns = `id, strategy_id, status, network, token_in, token_out, notional_in,
		estimated_profit, estimated_gas_cost, profit_bps, actual_profit, actual_gas_spent,
		leg1_tx_ref, leg2_tx_ref, flash_loan_used, flash_loan_provider, flash_loan_amount,
		flash_loan_fee, approved_for_auto_execution, error_message, started_at, finished_at`

// Create создает новую запись прогона
//
// Запись создается ДО того, как результат уходит наружу: даже при
// падении процесса сразу после исполнения попытка остается в леджере.
func (r *RunRepository) Create(run *models.Run) error {
	query := `
		INSERT INTO arbitrage_runs (strategy_id, status, network, token_in, token_out, notional_in,
			estimated_profit, estimated_gas_cost, profit_bps, actual_profit, actual_gas_spent,
			leg1_tx_ref, leg2_tx_ref, flash_loan_used, flash_loan_provider, flash_loan_amount,
			flash_loan_fee, approved_for_auto_execution, error_message, started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)
		RETURNING id`

	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}

	return r.db.QueryRow(query,
		run.StrategyID, run.Status, run.Network, run.TokenIn, run.TokenOut, run.NotionalIn,
		run.EstimatedProfit, run.EstimatedGasCost, run.ProfitBps, run.ActualProfit, run.ActualGasSpent,
		run.Leg1TxRef, run.Leg2TxRef, run.FlashLoanUsed, run.FlashLoanProvider, run.FlashLoanAmount,
		run.FlashLoanFee, run.ApprovedForAutoExecution, run.ErrorMessage, run.StartedAt, run.FinishedAt,
	).Scan(&run.ID)
}

// GetByID возвращает прогон по ID
func (r *RunRepository) GetByID(id int) (*models.Run, error) {
	query := `
		SELECT ` + runColumns + `
		FROM arbitrage_runs
		WHERE id = $1`

	run := &models.Run{}
	err := r.db.QueryRow(query, id).Scan(
		&run.ID, &run.StrategyID, &run.Status, &run.Network, &run.TokenIn, &run.TokenOut, &run.NotionalIn,
		&run.EstimatedProfit, &run.EstimatedGasCost, &run.ProfitBps, &run.ActualProfit, &run.ActualGasSpent,
		&run.Leg1TxRef, &run.Leg2TxRef, &run.FlashLoanUsed, &run.FlashLoanProvider, &run.FlashLoanAmount,
		&run.FlashLoanFee, &run.ApprovedForAutoExecution, &run.ErrorMessage, &run.StartedAt, &run.FinishedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRunNotFound
		}
		return nil, err
	}
	return run, nil
}

// Finish записывает результат исполнения и закрывает прогон
//
// Обновляются только незавершенные записи (finished_at IS NULL):
// завершенный прогон мутировать нельзя.
func (r *RunRepository) Finish(run *models.Run) error {
	query := `
		UPDATE arbitrage_runs
		SET status = $1, actual_profit = $2, actual_gas_spent = $3,
			leg1_tx_ref = $4, leg2_tx_ref = $5, flash_loan_fee = $6,
			error_message = $7, finished_at = $8
		WHERE id = $9 AND finished_at IS NULL`

	now := time.Now()
	run.FinishedAt = &now

	result, err := r.db.Exec(query,
		run.Status, run.ActualProfit, run.ActualGasSpent,
		run.Leg1TxRef, run.Leg2TxRef, run.FlashLoanFee,
		run.ErrorMessage, run.FinishedAt,
		run.ID,
	)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		// Либо прогона нет, либо он уже закрыт
		existing, getErr := r.GetByID(run.ID)
		if getErr != nil {
			return getErr
		}
		if existing.IsFinished() {
			return ErrRunFinished
		}
		return ErrRunNotFound
	}
	return nil
}

// List возвращает прогоны с фильтрацией и пагинацией
//
// strategyID = 0 и status = "" означают отсутствие фильтра.
func (r *RunRepository) List(strategyID int, status string, limit, offset int) ([]*models.Run, error) {
	query := `
		SELECT ` + runColumns + `
		FROM arbitrage_runs
		WHERE ($1 = 0 OR strategy_id = $1)
		  AND ($2 = '' OR status = $2)
		ORDER BY started_at DESC
		LIMIT $3 OFFSET $4`

	rows, err := r.db.Query(query, strategyID, status, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*models.Run
	for rows.Next() {
		run := &models.Run{}
		err := rows.Scan(
			&run.ID, &run.StrategyID, &run.Status, &run.Network, &run.TokenIn, &run.TokenOut, &run.NotionalIn,
			&run.EstimatedProfit, &run.EstimatedGasCost, &run.ProfitBps, &run.ActualProfit, &run.ActualGasSpent,
			&run.Leg1TxRef, &run.Leg2TxRef, &run.FlashLoanUsed, &run.FlashLoanProvider, &run.FlashLoanAmount,
			&run.FlashLoanFee, &run.ApprovedForAutoExecution, &run.ErrorMessage, &run.StartedAt, &run.FinishedAt,
		)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// CountExecutedToday возвращает число исполненных прогонов за текущие
// сутки UTC (для дневного лимита сделок)
//
// strategyID = 0 считает прогоны всех стратегий: этим пользуется
// глобальный дневной лимит.
func (r *RunRepository) CountExecutedToday(strategyID int, dayStart time.Time) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM arbitrage_runs
		WHERE ($1 = 0 OR strategy_id = $1)
		  AND status IN ($2, $3)
		  AND started_at >= $4`

	var count int
	err := r.db.QueryRow(query, strategyID, models.RunStatusExecuted, models.RunStatusFailed, dayStart).Scan(&count)
	return count, err
}
