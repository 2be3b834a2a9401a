package models

import (
	"database/sql/driver"
	"fmt"
	"math/big"
)

// BigInt - обертка над big.Int для хранения сумм в базовых единицах токена
// (lamports, wei) в колонках NUMERIC(78,0).
//
// Все суммы токенов в системе - целые big-integer значения.
// Плавающая точка допускается только для отображения (см. FormatUnits).
type BigInt struct {
	*big.Int
}

// NewBigInt создает BigInt из int64
func NewBigInt(v int64) BigInt {
	return BigInt{big.NewInt(v)}
}

// NewBigIntFromString создает BigInt из десятичной строки
func NewBigIntFromString(s string) (BigInt, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return BigInt{}, fmt.Errorf("invalid big integer: %q", s)
	}
	return BigInt{v}, nil
}

// Scan реализует sql.Scanner
//
// Postgres возвращает NUMERIC как []byte или string.
// NULL сканируется в нулевое значение (Int == nil).
func (b *BigInt) Scan(value interface{}) error {
	if value == nil {
		b.Int = nil
		return nil
	}

	var s string
	switch v := value.(type) {
	case []byte:
		s = string(v)
	case string:
		s = v
	case int64:
		b.Int = big.NewInt(v)
		return nil
	default:
		return fmt.Errorf("cannot scan %T into BigInt", value)
	}

	parsed, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return fmt.Errorf("cannot parse %q as big integer", s)
	}
	b.Int = parsed
	return nil
}

// Value реализует driver.Valuer
func (b BigInt) Value() (driver.Value, error) {
	if b.Int == nil {
		return nil, nil
	}
	return b.Int.String(), nil
}

// MarshalJSON сериализует сумму как десятичную строку
// Строка вместо числа - JS number теряет точность после 2^53
func (b BigInt) MarshalJSON() ([]byte, error) {
	if b.Int == nil {
		return []byte("null"), nil
	}
	return []byte(`"` + b.Int.String() + `"`), nil
}

// UnmarshalJSON принимает как строку, так и число
func (b *BigInt) UnmarshalJSON(data []byte) error {
	s := string(data)
	if s == "null" {
		b.Int = nil
		return nil
	}
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	parsed, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return fmt.Errorf("cannot parse %q as big integer", s)
	}
	b.Int = parsed
	return nil
}

// IsZero возвращает true если значение не установлено или равно нулю
func (b BigInt) IsZero() bool {
	return b.Int == nil || b.Int.Sign() == 0
}
