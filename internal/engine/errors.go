// Package engine содержит арбитражное ядро: расчет прибыли, риск-гейты,
// сканер комбинаций, оркестратор исполнения и монитор аномалий.
package engine

import (
	"fmt"
	"math/big"
)

// Таксономия ошибок ядра
//
// Каждый тип соответствует одному классу отказа и однозначно
// транслируется в HTTP статус на уровне handlers. Обычные ошибки
// (RPC, БД) не оборачиваются в эти типы и уходят как 500.

// AuthorizationError - вызывающий не имеет прав на операцию
type AuthorizationError struct {
	Reason string
}

func (e *AuthorizationError) Error() string {
	return "authorization failed: " + e.Reason
}

// ConfigurationError - исполнение невозможно из-за конфигурации:
// выключен рубильник окружения, не заданы пороги прибыльности,
// отсутствует ключ кошелька, не хватает баланса
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return "configuration error: " + e.Reason
}

// ExecutionLockedError - исполнение заблокировано глобальной
// блокировкой или исчерпанным дневным лимитом
//
// Reason возвращается клиенту дословно: оператор должен видеть,
// почему заблокировано, без раскопок в логах.
type ExecutionLockedError struct {
	Reason string
}

func (e *ExecutionLockedError) Error() string {
	return "execution locked: " + e.Reason
}

// BelowThresholdError - возможность котируется, но не проходит
// пороги прибыльности. Прогон фиксируется как SIMULATED.
type BelowThresholdError struct {
	NetProfit *big.Int
	ProfitBps int64
}

func (e *BelowThresholdError) Error() string {
	return fmt.Sprintf("opportunity below profitability thresholds: net=%s bps=%d",
		e.NetProfit, e.ProfitBps)
}

// QuoteUnavailableError - источник котировок не ответил пригодной
// котировкой. Внутри скана это приговор одной комбинации, на пути
// исполнения - всей попытке.
type QuoteUnavailableError struct {
	Source string
	Err    error
}

func (e *QuoteUnavailableError) Error() string {
	return fmt.Sprintf("quote unavailable from %s: %v", e.Source, e.Err)
}

func (e *QuoteUnavailableError) Unwrap() error {
	return e.Err
}

// PartialExecutionError - нога 1 прошла, нога 2 нет
//
// Позиция осталась открытой в промежуточном токене. Автоматических
// повторов нет: закрытие - ручная операция, и хэш первой ноги обязан
// дойти до оператора.
type PartialExecutionError struct {
	Leg1Tx string
	Err    error
}

func (e *PartialExecutionError) Error() string {
	return fmt.Sprintf("partial execution: leg 1 confirmed (%s), leg 2 failed: %v",
		e.Leg1Tx, e.Err)
}

func (e *PartialExecutionError) Unwrap() error {
	return e.Err
}
