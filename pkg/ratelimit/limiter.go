// Package ratelimit реализует token bucket для ограничения частоты
// запросов к API котировочных агрегаторов.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// RateLimiter - ведро токенов: пополняется со скоростью rate токенов
// в секунду до ёмкости burst, каждый запрос забирает один токен.
//
// Ведро допускает короткие залпы (пакетная котировка обеих ног
// маршрута), но удерживает среднюю частоту - это то, что реально
// снижает количество 429 от агрегатора.
type RateLimiter struct {
	mu         sync.Mutex
	rate       float64 // токенов в секунду
	burst      float64 // ёмкость ведра
	tokens     float64
	lastRefill time.Time
}

// NewRateLimiter создает лимитер
//
// Ориентиры: публичный Jupiter держит ~10 req/sec, 0x-совместимые
// API - 5-10 req/sec в зависимости от ключа. Явно заданный
// положительный burst уважается как есть, даже когда он меньше rate;
// дефолт 2x rate подставляется только при burst <= 0.
func NewRateLimiter(rate, burst float64) *RateLimiter {
	if rate <= 0 {
		rate = 10
	}
	if burst <= 0 {
		burst = rate * 2
	}
	return &RateLimiter{
		rate:       rate,
		burst:      burst,
		tokens:     burst, // старт с полным ведром: первый залп проходит
		lastRefill: time.Now(),
	}
}

// refill доливает токены за прошедшее время. Вызывается под mu.
func (rl *RateLimiter) refill() {
	now := time.Now()
	rl.tokens += now.Sub(rl.lastRefill).Seconds() * rl.rate
	if rl.tokens > rl.burst {
		rl.tokens = rl.burst
	}
	rl.lastRefill = now
}

// take забирает токен, если он есть, иначе возвращает время до его
// появления
func (rl *RateLimiter) take() (bool, time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.refill()
	if rl.tokens >= 1 {
		rl.tokens--
		return true, 0
	}
	wait := time.Duration((1 - rl.tokens) / rl.rate * float64(time.Second))
	return false, wait
}

// Wait блокируется до появления токена или отмены контекста
func (rl *RateLimiter) Wait(ctx context.Context) error {
	for {
		ok, wait := rl.take()
		if ok {
			return nil
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// Allow забирает токен без ожидания
func (rl *RateLimiter) Allow() bool {
	ok, _ := rl.take()
	return ok
}

// Tokens возвращает текущее количество токенов
func (rl *RateLimiter) Tokens() float64 {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.refill()
	return rl.tokens
}

// Rate возвращает скорость пополнения
func (rl *RateLimiter) Rate() float64 {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return rl.rate
}

// SetRate меняет скорость пополнения на лету (реакция на 429:
// агрегатор просит снизить темп). Ёмкость ведра не трогается.
func (rl *RateLimiter) SetRate(rate float64) {
	if rate <= 0 {
		return
	}
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.refill()
	rl.rate = rate
}
