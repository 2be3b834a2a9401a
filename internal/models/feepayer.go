package models

import "time"

// FeePayer представляет подписывающий ключ для Solana
//
// Секретный ключ хранится зашифрованным (AES-256-GCM, base64) и
// расшифровывается только внутри границы подписи. Ни один вызывающий
// код за ее пределами не должен получать или логировать секрет.
//
// Ротация: выбирается активная запись с наименьшим usage_count
// ("наименее использованный"), счетчик и last_used_at обновляются
// при выборе. Для EVM сетей fee payer не используется - там один
// статический операционный кошелек на сеть.
type FeePayer struct {
	ID              int    `json:"id" db:"id"`
	PublicKey       string `json:"public_key" db:"public_key"`
	EncryptedSecret string `json:"-" db:"encrypted_secret"` // никогда не сериализуется в API
	IsActive        bool   `json:"is_active" db:"is_active"`
	UsageCount      int64  `json:"usage_count" db:"usage_count"`

	// Кэш нативного баланса (lamports), обновляется при выборе
	CachedBalance *BigInt `json:"cached_balance" db:"cached_balance"`

	LastUsedAt *time.Time `json:"last_used_at" db:"last_used_at"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
}
