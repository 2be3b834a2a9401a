package utils

import (
	"time"
)

// Утилиты границ суток
//
// Дневные лимиты риска считаются по суткам UTC: ключом агрегата
// служит дата YYYY-MM-DD, смена даты неявно "сбрасывает" счетчики.
// Монитор аномалий оперирует скользящим окном "последние N часов".

// GetDayStart возвращает начало текущих суток (00:00:00 UTC)
func GetDayStart() time.Time {
	return GetDayStartFrom(time.Now())
}

// GetDayStartFrom возвращает начало суток для указанного момента
func GetDayStartFrom(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// DayKey возвращает ключ суток YYYY-MM-DD (UTC) для дневных агрегатов
func DayKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// SlidingWindowStart возвращает начало скользящего окна, заканчивающегося
// сейчас
func SlidingWindowStart(window time.Duration) time.Time {
	if window <= 0 {
		window = time.Hour
	}
	return time.Now().UTC().Add(-window)
}
