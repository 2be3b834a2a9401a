package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ============================================================
// Prometheus метрики арбитражного ядра
// ============================================================
//
// Использование:
// - Grafana дашборды для визуализации
// - Alertmanager для уведомлений о проблемах
// - Анализ latency сканов и исполнений в production

// ============ Метрики скана ============

// ScanDuration - длительность полного скана комбинаций
var ScanDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "chainarb",
		Subsystem: "scan",
		Name:      "duration_seconds",
		Help:      "Duration of a full combination scan in seconds",
		Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
	},
	[]string{"network", "speed"},
)

// QuotesFetched - количество запрошенных котировок по источникам
var QuotesFetched = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "chainarb",
		Subsystem: "scan",
		Name:      "quotes_fetched_total",
		Help:      "Total number of quotes fetched from aggregators",
	},
	[]string{"source", "result"}, // result: ok, rate_limited, unavailable
)

// ScanAborts - сканы, прерванные по rate limit
var ScanAborts = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "chainarb",
		Subsystem: "scan",
		Name:      "aborts_total",
		Help:      "Number of scans aborted due to rate limiting",
	},
	[]string{"network"},
)

// CombinationsClassified - результаты комбинаций по классам
var CombinationsClassified = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "chainarb",
		Subsystem: "scan",
		Name:      "combinations_total",
		Help:      "Scanned combinations by classification",
	},
	[]string{"network", "status"}, // PROFITABLE, NOT_PROFITABLE, FAILED
)

// ============ Метрики исполнения ============

// ExecutionsTotal - попытки исполнения по результату
var ExecutionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "chainarb",
		Subsystem: "execution",
		Name:      "runs_total",
		Help:      "Execution attempts by final status",
	},
	[]string{"network", "status"}, // EXECUTED, FAILED, SIMULATED, REJECTED
)

// ExecutionDuration - длительность исполнения от гейтов до финализации
var ExecutionDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "chainarb",
		Subsystem: "execution",
		Name:      "duration_seconds",
		Help:      "End-to-end execution duration in seconds",
		Buckets:   []float64{1, 2.5, 5, 10, 30, 60, 120, 300},
	},
	[]string{"network"},
)

// RealizedPnl - суммарная фактическая прибыль в базовых единицах
// входного токена (может уходить в минус)
var RealizedPnl = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: "chainarb",
		Subsystem: "execution",
		Name:      "realized_pnl_base_units",
		Help:      "Cumulative realized PnL in input token base units",
	},
	[]string{"network"},
)

// PartialExecutions - исполнения, остановившиеся после первой ноги
var PartialExecutions = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "chainarb",
		Subsystem: "execution",
		Name:      "partial_total",
		Help:      "Executions where leg 1 confirmed but leg 2 failed",
	},
	[]string{"network"},
)

// ============ Метрики риска ============

// GateRejections - отказы риск-гейтов по причинам
var GateRejections = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "chainarb",
		Subsystem: "risk",
		Name:      "gate_rejections_total",
		Help:      "Risk gate rejections by reason",
	},
	[]string{"gate"}, // auth, env, lock, thresholds, daily_caps, balance
)

// AnomalyAlerts - алерты монитора аномалий
var AnomalyAlerts = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "chainarb",
		Subsystem: "risk",
		Name:      "anomaly_alerts_total",
		Help:      "Anomaly alerts raised by type and severity",
	},
	[]string{"type", "severity"},
)

// ExecutionLockState - состояние глобальной блокировки (1=заблокировано)
var ExecutionLockState = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "chainarb",
		Subsystem: "risk",
		Name:      "execution_locked",
		Help:      "Global execution lock state (1=locked, 0=unlocked)",
	},
)

// ============ Вспомогательные функции ============

// RecordQuoteResult записывает результат запроса котировки
func RecordQuoteResult(source, result string) {
	QuotesFetched.WithLabelValues(source, result).Inc()
}

// RecordExecution записывает завершенную попытку исполнения
func RecordExecution(network, status string, durationSeconds float64) {
	ExecutionsTotal.WithLabelValues(network, status).Inc()
	ExecutionDuration.WithLabelValues(network).Observe(durationSeconds)
}

// RecordGateRejection записывает отказ гейта
func RecordGateRejection(gate string) {
	GateRejections.WithLabelValues(gate).Inc()
}

// RecordAnomalyAlert записывает поднятый алерт
func RecordAnomalyAlert(alertType, severity string) {
	AnomalyAlerts.WithLabelValues(alertType, severity).Inc()
}

// SetExecutionLockState обновляет gauge блокировки
func SetExecutionLockState(locked bool) {
	if locked {
		ExecutionLockState.Set(1)
	} else {
		ExecutionLockState.Set(0)
	}
}
