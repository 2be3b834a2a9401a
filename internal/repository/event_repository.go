package repository

import (
	"database/sql"
	"errors"
	"time"

	"chainarb/internal/models"
)

// ErrEventNotFound возвращается когда событие не найдено
var ErrEventNotFound = errors.New("arbitrage event not found")

// EventRepository - работа с таблицей ops_arbitrage_events
type EventRepository struct {
	db *sql.DB
}

// NewEventRepository создает новый экземпляр репозитория
func NewEventRepository(db *sql.DB) *EventRepository {
	return &EventRepository{db: db}
}

const eventColumns = `id, run_id, network, kind, expected_profit, realized_profit,
		leg1_gas, leg2_gas, leg1_tx_hash, leg2_tx_hash, error_message, created_at`

// Create создает новое событие исполнения
func (r *EventRepository) Create(e *models.ArbitrageEvent) error {
	query := `
		INSERT INTO ops_arbitrage_events (run_id, network, kind, expected_profit, realized_profit,
			leg1_gas, leg2_gas, leg1_tx_hash, leg2_tx_hash, error_message, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id`

	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}

	return r.db.QueryRow(query,
		e.RunID, e.Network, e.Kind, e.ExpectedProfit, e.RealizedProfit,
		e.Leg1Gas, e.Leg2Gas, e.Leg1TxHash, e.Leg2TxHash, e.ErrorMessage, e.CreatedAt,
	).Scan(&e.ID)
}

// List возвращает события с фильтрацией по виду и пагинацией
//
// kind = "" означает отсутствие фильтра.
func (r *EventRepository) List(kind string, limit, offset int) ([]*models.ArbitrageEvent, error) {
	query := `
		SELECT ` + eventColumns + `
		FROM ops_arbitrage_events
		WHERE ($1 = '' OR kind = $1)
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`

	rows, err := r.db.Query(query, kind, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*models.ArbitrageEvent
	for rows.Next() {
		e := &models.ArbitrageEvent{}
		err := rows.Scan(
			&e.ID, &e.RunID, &e.Network, &e.Kind, &e.ExpectedProfit, &e.RealizedProfit,
			&e.Leg1Gas, &e.Leg2Gas, &e.Leg1TxHash, &e.Leg2TxHash, &e.ErrorMessage, &e.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// GetByRunID возвращает события конкретного прогона
func (r *EventRepository) GetByRunID(runID int) ([]*models.ArbitrageEvent, error) {
	query := `
		SELECT ` + eventColumns + `
		FROM ops_arbitrage_events
		WHERE run_id = $1
		ORDER BY created_at ASC`

	rows, err := r.db.Query(query, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*models.ArbitrageEvent
	for rows.Next() {
		e := &models.ArbitrageEvent{}
		err := rows.Scan(
			&e.ID, &e.RunID, &e.Network, &e.Kind, &e.ExpectedProfit, &e.RealizedProfit,
			&e.Leg1Gas, &e.Leg2Gas, &e.Leg1TxHash, &e.Leg2TxHash, &e.ErrorMessage, &e.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
