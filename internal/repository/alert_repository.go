package repository

import (
	"database/sql"
	"errors"
	"time"

	"chainarb/internal/models"
)

// ErrAlertNotFound возвращается когда алерт не найден
var ErrAlertNotFound = errors.New("alert not found")

// AlertRepository - работа с таблицей anomaly_alerts
type AlertRepository struct {
	db *sql.DB
}

// NewAlertRepository создает новый экземпляр репозитория
func NewAlertRepository(db *sql.DB) *AlertRepository {
	return &AlertRepository{db: db}
}

const alertColumns = `id, run_id, type, severity, message, acknowledged, acknowledged_at, created_at`

// Create создает новый алерт
func (r *AlertRepository) Create(a *models.Alert) error {
	query := `
		INSERT INTO anomaly_alerts (run_id, type, severity, message, acknowledged, created_at)
		VALUES ($1, $2, $3, $4, false, $5)
		RETURNING id`

	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}

	return r.db.QueryRow(query, a.RunID, a.Type, a.Severity, a.Message, a.CreatedAt).Scan(&a.ID)
}

// ExistsForRun проверяет, есть ли уже алерт данного типа по прогону
//
// Идемпотентность монитора: повторный анализ того же прогона не
// должен плодить дубликаты.
func (r *AlertRepository) ExistsForRun(runID int, alertType string) (bool, error) {
	query := `
		SELECT EXISTS(
			SELECT 1 FROM anomaly_alerts WHERE run_id = $1 AND type = $2
		)`

	var exists bool
	err := r.db.QueryRow(query, runID, alertType).Scan(&exists)
	return exists, err
}

// List возвращает алерты с фильтрацией и пагинацией
//
// onlyUnacknowledged = true отдает только неподтвержденные.
func (r *AlertRepository) List(onlyUnacknowledged bool, limit, offset int) ([]*models.Alert, error) {
	query := `
		SELECT ` + alertColumns + `
		FROM anomaly_alerts
		WHERE ($1 = false OR acknowledged = false)
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`

	rows, err := r.db.Query(query, onlyUnacknowledged, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var alerts []*models.Alert
	for rows.Next() {
		a := &models.Alert{}
		err := rows.Scan(
			&a.ID, &a.RunID, &a.Type, &a.Severity, &a.Message,
			&a.Acknowledged, &a.AcknowledgedAt, &a.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}

// Acknowledge подтверждает алерт
//
// Операция идемпотентна: повторное подтверждение не меняет
// acknowledged_at и не считается ошибкой.
func (r *AlertRepository) Acknowledge(id int) error {
	query := `
		UPDATE anomaly_alerts
		SET acknowledged = true, acknowledged_at = $1
		WHERE id = $2 AND acknowledged = false`

	result, err := r.db.Exec(query, time.Now(), id)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		// Либо алерта нет, либо он уже подтвержден
		var exists bool
		if err := r.db.QueryRow(`SELECT EXISTS(SELECT 1 FROM anomaly_alerts WHERE id = $1)`, id).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return ErrAlertNotFound
		}
	}
	return nil
}

// CountUnacknowledgedSince считает неподтвержденные warning/critical
// алерты, созданные после указанного момента
//
// Это вход триггера автоблокировки. Алерты уровня info и алерты о
// самой автоблокировке в счет не идут.
func (r *AlertRepository) CountUnacknowledgedSince(since time.Time) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM anomaly_alerts
		WHERE acknowledged = false
		  AND severity IN ($1, $2)
		  AND type != $3
		  AND created_at >= $4`

	var count int
	err := r.db.QueryRow(query,
		models.SeverityWarning, models.SeverityCritical,
		models.AlertTypeAutoLockEngaged, since,
	).Scan(&count)
	return count, err
}
