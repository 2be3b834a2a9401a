// Package quote предоставляет унифицированный интерфейс для работы
// с котировочными агрегаторами (0x-совместимые API на EVM, Jupiter на Solana).
package quote

import (
	"context"
	"errors"
	"math/big"
)

// Ошибки провайдеров котировок
//
// Различие принципиально для движка скана: ErrRateLimited считается
// в счетчик прерывания всего скана, ErrUnavailable - нет.
var (
	// ErrRateLimited - провайдер ответил 429, мы превысили его лимит
	ErrRateLimited = errors.New("quote provider rate limited")
	// ErrUnavailable - провайдер недоступен или вернул невалидный ответ
	ErrUnavailable = errors.New("quote provider unavailable")
)

// PriceRequest - запрос индикативной цены (без calldata, дешевый)
type PriceRequest struct {
	Network    string
	SellToken  string
	BuyToken   string
	SellAmount *big.Int
}

// QuoteRequest - запрос исполняемой котировки
type QuoteRequest struct {
	Network     string
	SellToken   string
	BuyToken    string
	SellAmount  *big.Int
	SlippageBps int64
	// Taker - адрес исполняющего кошелька (EVM) или публичный ключ
	// fee payer (Solana); часть провайдеров требует его для calldata
	Taker string
}

// Quote - исполняемая котировка
//
// Для EVM заполнены To/Data/Value/AllowanceTarget; для Solana -
// SwapTransaction (base64-сериализованная транзакция).
type Quote struct {
	Source     string
	SellToken  string
	BuyToken   string
	SellAmount *big.Int
	BuyAmount  *big.Int

	// Оценка газа на момент котировки
	GasEstimate *big.Int
	GasPrice    *big.Int

	// EVM поля
	To              string
	Data            string
	Value           *big.Int
	AllowanceTarget string

	// Solana: готовая транзакция свопа
	SwapTransaction string
}

// GasCost возвращает полную оценку стоимости газа (estimate * price)
// в нативных базовых единицах; nil-компоненты дают ноль
func (q *Quote) GasCost() *big.Int {
	if q.GasEstimate == nil || q.GasPrice == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Mul(q.GasEstimate, q.GasPrice)
}

// Provider - унифицированный интерфейс источника котировок
//
// GetPrice - индикативная цена для фазы сканирования,
// GetQuote - исполняемая котировка для фазы исполнения.
// Обе обязаны транслировать 429 в ErrRateLimited, а прочие
// не-2xx ответы - в ErrUnavailable.
type Provider interface {
	Name() string
	GetPrice(ctx context.Context, req PriceRequest) (*big.Int, error)
	GetQuote(ctx context.Context, req QuoteRequest) (*Quote, error)
}
