package repository

import (
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"chainarb/internal/models"
)

// Ошибки репозитория настроек
var (
	ErrSettingsNotFound = errors.New("system settings not found")
	// ErrVersionConflict - запись была изменена конкурентным вызовом:
	// чтение-модификация-запись нужно повторить с новой версией
	ErrVersionConflict = errors.New("system settings version conflict")
)

// SettingsRepository - работа с таблицей system_settings
//
// Таблица - синглтон (всегда одна запись с id=1) и единственное
// авторитетное состояние гейтов исполнения. Все мутации проходят
// через оптимистическую проверку версии, чтобы ручное снятие
// блокировки и автоблокировка монитора не затирали друг друга.
type SettingsRepository struct {
	db *sql.DB
}

// NewSettingsRepository создает новый экземпляр репозитория
func NewSettingsRepository(db *sql.DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

const settingsColumns = `id, execution_locked, lock_reason, locked_at, mainnet_mode,
		auto_arbitrage_enabled, auto_flash_loan_enabled, max_daily_loss, max_trades_per_day,
		min_fee_payer_balances, top_up_amounts, version, updated_at`

// Get возвращает глобальные настройки (всегда id=1, одна запись)
func (r *SettingsRepository) Get() (*models.SystemSettings, error) {
	query := `
		SELECT ` + settingsColumns + `
		FROM system_settings
		WHERE id = 1`

	settings := &models.SystemSettings{}
	var minBalancesJSON, topUpJSON []byte
	err := r.db.QueryRow(query).Scan(
		&settings.ID,
		&settings.ExecutionLocked,
		&settings.LockReason,
		&settings.LockedAt,
		&settings.MainnetMode,
		&settings.AutoArbitrageEnabled,
		&settings.AutoFlashLoanEnabled,
		&settings.MaxDailyLoss,
		&settings.MaxTradesPerDay,
		&minBalancesJSON,
		&topUpJSON,
		&settings.Version,
		&settings.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Если записи нет, создаем ее с дефолтными значениями
			return r.createDefault()
		}
		return nil, err
	}

	if len(minBalancesJSON) > 0 {
		if err := json.Unmarshal(minBalancesJSON, &settings.MinFeePayerBalances); err != nil {
			return nil, err
		}
	}
	if len(topUpJSON) > 0 {
		if err := json.Unmarshal(topUpJSON, &settings.TopUpAmounts); err != nil {
			return nil, err
		}
	}

	return settings, nil
}

// Update обновляет настройки с проверкой версии
//
// Возвращает ErrVersionConflict если settings.Version устарела.
// При успехе инкрементирует Version в переданной структуре.
func (r *SettingsRepository) Update(settings *models.SystemSettings) error {
	minBalancesJSON, err := json.Marshal(settings.MinFeePayerBalances)
	if err != nil {
		return err
	}
	topUpJSON, err := json.Marshal(settings.TopUpAmounts)
	if err != nil {
		return err
	}

	query := `
		UPDATE system_settings
		SET execution_locked = $1, lock_reason = $2, locked_at = $3, mainnet_mode = $4,
			auto_arbitrage_enabled = $5, auto_flash_loan_enabled = $6,
			max_daily_loss = $7, max_trades_per_day = $8,
			min_fee_payer_balances = $9, top_up_amounts = $10,
			version = version + 1, updated_at = $11
		WHERE id = 1 AND version = $12`

	settings.UpdatedAt = time.Now()

	result, err := r.db.Exec(query,
		settings.ExecutionLocked,
		settings.LockReason,
		settings.LockedAt,
		settings.MainnetMode,
		settings.AutoArbitrageEnabled,
		settings.AutoFlashLoanEnabled,
		settings.MaxDailyLoss,
		settings.MaxTradesPerDay,
		minBalancesJSON,
		topUpJSON,
		settings.UpdatedAt,
		settings.Version,
	)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrVersionConflict
	}

	settings.Version++
	return nil
}

// SetExecutionLock включает или снимает глобальную блокировку исполнения
//
// Версионная запись: при конфликте вызывающий код должен перечитать
// настройки и решить, актуальна ли еще его мутация.
func (r *SettingsRepository) SetExecutionLock(locked bool, reason string, version int) error {
	query := `
		UPDATE system_settings
		SET execution_locked = $1, lock_reason = $2, locked_at = $3,
			version = version + 1, updated_at = $4
		WHERE id = 1 AND version = $5`

	var lockReason *string
	var lockedAt *time.Time
	if locked {
		lockReason = &reason
		now := time.Now()
		lockedAt = &now
	}

	result, err := r.db.Exec(query, locked, lockReason, lockedAt, time.Now(), version)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrVersionConflict
	}

	return nil
}

// createDefault создает запись настроек с дефолтными значениями
//
// Дефолты консервативные: mainnet выключен, автоарбитраж выключен,
// блокировка снята.
func (r *SettingsRepository) createDefault() (*models.SystemSettings, error) {
	settings := &models.SystemSettings{
		ID:                   1,
		ExecutionLocked:      false,
		MainnetMode:          false,
		AutoArbitrageEnabled: false,
		AutoFlashLoanEnabled: false,
		MinFeePayerBalances:  map[string]string{},
		TopUpAmounts:         map[string]string{},
		Version:              1,
		UpdatedAt:            time.Now(),
	}

	minBalancesJSON, err := json.Marshal(settings.MinFeePayerBalances)
	if err != nil {
		return nil, err
	}
	topUpJSON, err := json.Marshal(settings.TopUpAmounts)
	if err != nil {
		return nil, err
	}

	query := `
		INSERT INTO system_settings (id, execution_locked, mainnet_mode,
			auto_arbitrage_enabled, auto_flash_loan_enabled,
			min_fee_payer_balances, top_up_amounts, version, updated_at)
		VALUES (1, $1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO NOTHING`

	_, err = r.db.Exec(query,
		settings.ExecutionLocked,
		settings.MainnetMode,
		settings.AutoArbitrageEnabled,
		settings.AutoFlashLoanEnabled,
		minBalancesJSON,
		topUpJSON,
		settings.Version,
		settings.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	return settings, nil
}
