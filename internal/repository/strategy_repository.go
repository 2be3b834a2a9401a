package repository

import (
	"database/sql"
	"errors"
	"time"

	"chainarb/internal/models"
)

// ErrStrategyNotFound возвращается когда стратегия не найдена
var ErrStrategyNotFound = errors.New("strategy not found")

// StrategyRepository - работа с таблицей arbitrage_strategies
type StrategyRepository struct {
	db *sql.DB
}

// NewStrategyRepository создает новый экземпляр репозитория
func NewStrategyRepository(db *sql.DB) *StrategyRepository {
	return &StrategyRepository{db: db}
}

const strategyColumns = `id, name, network, source_a, source_b, token_in, token_out,
		notional_in, min_net_profit, min_profit_bps, max_trade_value, max_trades_per_day,
		max_daily_loss, flash_loan_enabled, flash_loan_provider, flash_loan_amount,
		receiver_contract, is_enabled, is_auto_enabled, runs_count, created_at, updated_at`

// Create создает новую стратегию
func (r *StrategyRepository) Create(s *models.Strategy) error {
	query := `
		INSERT INTO arbitrage_strategies (name, network, source_a, source_b, token_in, token_out,
			notional_in, min_net_profit, min_profit_bps, max_trade_value, max_trades_per_day,
			max_daily_loss, flash_loan_enabled, flash_loan_provider, flash_loan_amount,
			receiver_contract, is_enabled, is_auto_enabled, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
		RETURNING id`

	now := time.Now()
	s.CreatedAt = now
	s.UpdatedAt = now

	return r.db.QueryRow(query,
		s.Name, s.Network, s.SourceA, s.SourceB, s.TokenIn, s.TokenOut,
		s.NotionalIn, s.MinNetProfit, s.MinProfitBps, s.MaxTradeValue, s.MaxTradesPerDay,
		s.MaxDailyLoss, s.FlashLoanEnabled, s.FlashLoanProvider, s.FlashLoanAmount,
		s.ReceiverContract, s.IsEnabled, s.IsAutoEnabled,
		s.CreatedAt, s.UpdatedAt,
	).Scan(&s.ID)
}

// GetByID возвращает стратегию по ID
func (r *StrategyRepository) GetByID(id int) (*models.Strategy, error) {
	query := `
		SELECT ` + strategyColumns + `
		FROM arbitrage_strategies
		WHERE id = $1`

	return scanStrategy(r.db.QueryRow(query, id))
}

// FindMatching ищет существующую стратегию по сигнатуре скана
//
// Сигнатура: сеть + пара источников + пара токенов. По ней движок
// скана решает, создавать ли новую запись или переиспользовать
// существующую. Автосозданные стратегии никогда не включаются сами.
func (r *StrategyRepository) FindMatching(network, sourceA, sourceB, tokenIn, tokenOut string) (*models.Strategy, error) {
	query := `
		SELECT ` + strategyColumns + `
		FROM arbitrage_strategies
		WHERE network = $1 AND source_a = $2 AND source_b = $3 AND token_in = $4 AND token_out = $5
		LIMIT 1`

	return scanStrategy(r.db.QueryRow(query, network, sourceA, sourceB, tokenIn, tokenOut))
}

// GetAll возвращает все стратегии
func (r *StrategyRepository) GetAll() ([]*models.Strategy, error) {
	query := `
		SELECT ` + strategyColumns + `
		FROM arbitrage_strategies
		ORDER BY created_at DESC`

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanStrategies(rows)
}

// GetEnabled возвращает только включенные стратегии
func (r *StrategyRepository) GetEnabled() ([]*models.Strategy, error) {
	query := `
		SELECT ` + strategyColumns + `
		FROM arbitrage_strategies
		WHERE is_enabled = true
		ORDER BY created_at DESC`

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanStrategies(rows)
}

// Update обновляет стратегию
func (r *StrategyRepository) Update(s *models.Strategy) error {
	query := `
		UPDATE arbitrage_strategies
		SET name = $1, notional_in = $2, min_net_profit = $3, min_profit_bps = $4,
			max_trade_value = $5, max_trades_per_day = $6, max_daily_loss = $7,
			flash_loan_enabled = $8, flash_loan_provider = $9, flash_loan_amount = $10,
			receiver_contract = $11, is_enabled = $12, is_auto_enabled = $13, updated_at = $14
		WHERE id = $15`

	s.UpdatedAt = time.Now()

	result, err := r.db.Exec(query,
		s.Name, s.NotionalIn, s.MinNetProfit, s.MinProfitBps,
		s.MaxTradeValue, s.MaxTradesPerDay, s.MaxDailyLoss,
		s.FlashLoanEnabled, s.FlashLoanProvider, s.FlashLoanAmount,
		s.ReceiverContract, s.IsEnabled, s.IsAutoEnabled, s.UpdatedAt,
		s.ID,
	)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrStrategyNotFound
	}
	return nil
}

// IncrementRunsCount увеличивает счетчик прогонов стратегии
func (r *StrategyRepository) IncrementRunsCount(id int) error {
	query := `
		UPDATE arbitrage_strategies
		SET runs_count = runs_count + 1, updated_at = $1
		WHERE id = $2`

	_, err := r.db.Exec(query, time.Now(), id)
	return err
}

// scanStrategy читает одну стратегию из строки результата
func scanStrategy(row *sql.Row) (*models.Strategy, error) {
	s := &models.Strategy{}
	err := row.Scan(
		&s.ID, &s.Name, &s.Network, &s.SourceA, &s.SourceB, &s.TokenIn, &s.TokenOut,
		&s.NotionalIn, &s.MinNetProfit, &s.MinProfitBps, &s.MaxTradeValue, &s.MaxTradesPerDay,
		&s.MaxDailyLoss, &s.FlashLoanEnabled, &s.FlashLoanProvider, &s.FlashLoanAmount,
		&s.ReceiverContract, &s.IsEnabled, &s.IsAutoEnabled, &s.RunsCount,
		&s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrStrategyNotFound
		}
		return nil, err
	}
	return s, nil
}

// scanStrategies читает стратегии из результата запроса
func scanStrategies(rows *sql.Rows) ([]*models.Strategy, error) {
	var strategies []*models.Strategy
	for rows.Next() {
		s := &models.Strategy{}
		err := rows.Scan(
			&s.ID, &s.Name, &s.Network, &s.SourceA, &s.SourceB, &s.TokenIn, &s.TokenOut,
			&s.NotionalIn, &s.MinNetProfit, &s.MinProfitBps, &s.MaxTradeValue, &s.MaxTradesPerDay,
			&s.MaxDailyLoss, &s.FlashLoanEnabled, &s.FlashLoanProvider, &s.FlashLoanAmount,
			&s.ReceiverContract, &s.IsEnabled, &s.IsAutoEnabled, &s.RunsCount,
			&s.CreatedAt, &s.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		strategies = append(strategies, s)
	}
	return strategies, rows.Err()
}
