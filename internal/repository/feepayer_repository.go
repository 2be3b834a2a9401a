package repository

import (
	"database/sql"
	"errors"
	"time"

	"chainarb/internal/models"
)

// ErrNoActiveFeePayer возвращается когда нет ни одного активного
// fee payer - подписывать Solana-транзакции нечем
var ErrNoActiveFeePayer = errors.New("no active fee payer available")

// FeePayerRepository - работа с таблицей fee_payers (подписанты Solana)
type FeePayerRepository struct {
	db *sql.DB
}

// NewFeePayerRepository создает новый экземпляр репозитория
func NewFeePayerRepository(db *sql.DB) *FeePayerRepository {
	return &FeePayerRepository{db: db}
}

const feePayerColumns = `id, public_key, encrypted_secret, is_active, usage_count,
		cached_balance, last_used_at, created_at`

// Create регистрирует новый fee payer (секрет уже зашифрован)
func (r *FeePayerRepository) Create(fp *models.FeePayer) error {
	query := `
		INSERT INTO fee_payers (public_key, encrypted_secret, is_active, usage_count, created_at)
		VALUES ($1, $2, $3, 0, $4)
		RETURNING id`

	if fp.CreatedAt.IsZero() {
		fp.CreatedAt = time.Now()
	}

	return r.db.QueryRow(query, fp.PublicKey, fp.EncryptedSecret, fp.IsActive, fp.CreatedAt).Scan(&fp.ID)
}

// GetLeastUsed возвращает активный fee payer с наименьшим usage_count
//
// Детерминированный порядок при равных счетчиках: старейший last_used_at
// первым (NULL, то есть никогда не использованный, в самом начале).
func (r *FeePayerRepository) GetLeastUsed() (*models.FeePayer, error) {
	query := `
		SELECT ` + feePayerColumns + `
		FROM fee_payers
		WHERE is_active = true
		ORDER BY usage_count ASC, last_used_at ASC NULLS FIRST
		LIMIT 1`

	fp := &models.FeePayer{}
	err := r.db.QueryRow(query).Scan(
		&fp.ID, &fp.PublicKey, &fp.EncryptedSecret, &fp.IsActive, &fp.UsageCount,
		&fp.CachedBalance, &fp.LastUsedAt, &fp.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNoActiveFeePayer
		}
		return nil, err
	}
	return fp, nil
}

// MarkUsed инкрементирует счетчик использований и отметку времени
func (r *FeePayerRepository) MarkUsed(id int) error {
	query := `
		UPDATE fee_payers
		SET usage_count = usage_count + 1, last_used_at = $1
		WHERE id = $2`

	_, err := r.db.Exec(query, time.Now(), id)
	return err
}

// UpdateCachedBalance обновляет кэшированный нативный баланс (lamports)
func (r *FeePayerRepository) UpdateCachedBalance(id int, balance *models.BigInt) error {
	query := `
		UPDATE fee_payers
		SET cached_balance = $1
		WHERE id = $2`

	_, err := r.db.Exec(query, balance, id)
	return err
}

// GetAll возвращает все fee payers (для админ-панели, секреты
// в JSON не попадают - поле исключено тегом)
func (r *FeePayerRepository) GetAll() ([]*models.FeePayer, error) {
	query := `
		SELECT ` + feePayerColumns + `
		FROM fee_payers
		ORDER BY id ASC`

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payers []*models.FeePayer
	for rows.Next() {
		fp := &models.FeePayer{}
		err := rows.Scan(
			&fp.ID, &fp.PublicKey, &fp.EncryptedSecret, &fp.IsActive, &fp.UsageCount,
			&fp.CachedBalance, &fp.LastUsedAt, &fp.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		payers = append(payers, fp)
	}
	return payers, rows.Err()
}

// SetActive включает или выключает fee payer
func (r *FeePayerRepository) SetActive(id int, active bool) error {
	result, err := r.db.Exec(`UPDATE fee_payers SET is_active = $1 WHERE id = $2`, active, id)
	if err != nil {
		return err
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrNoActiveFeePayer
	}
	return nil
}
