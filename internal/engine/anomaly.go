package engine

import (
	"errors"
	"fmt"
	"math/big"
	"time"

	"chainarb/internal/config"
	"chainarb/internal/models"
	"chainarb/internal/repository"
	"chainarb/pkg/utils"
)

// alertStore - доступ к журналу алертов
type alertStore interface {
	Create(a *models.Alert) error
	ExistsForRun(runID int, alertType string) (bool, error)
	CountUnacknowledgedSince(since time.Time) (int, error)
}

// settingsLocker - чтение настроек и включение глобальной блокировки
type settingsLocker interface {
	Get() (*models.SystemSettings, error)
	SetExecutionLock(locked bool, reason string, version int) error
}

// alertNotifier - push-рассылка алертов подписчикам (WebSocket hub)
type alertNotifier interface {
	BroadcastAlert(a *models.Alert)
}

// AnomalyMonitor сверяет фактический результат прогона с ожиданием
// и реагирует на деградацию
//
// Монитор реактивный: он не предотвращает плохое исполнение, он
// останавливает серию плохих исполнений. Накопление неподтвержденных
// warning/critical алертов в скользящем окне включает глобальную
// блокировку.
type AnomalyMonitor struct {
	cfg      config.AnomalyConfig
	alerts   alertStore
	settings settingsLocker
	notifier alertNotifier
	logger   *utils.Logger

	now func() time.Time
}

// NewAnomalyMonitor создает монитор
func NewAnomalyMonitor(cfg config.AnomalyConfig, alerts alertStore, settings settingsLocker, logger *utils.Logger) *AnomalyMonitor {
	return &AnomalyMonitor{
		cfg:      cfg,
		alerts:   alerts,
		settings: settings,
		logger:   logger.WithComponent("engine.anomaly"),
		now:      time.Now,
	}
}

// SetNotifier подключает push-рассылку созданных алертов.
// Без нотификатора монитор пишет только в журнал.
func (m *AnomalyMonitor) SetNotifier(n alertNotifier) {
	m.notifier = n
}

// Inspect проверяет завершенный прогон на аномалии
//
// Для каждого типа аномалии на прогон создается не больше одного
// алерта: повторный Inspect того же прогона - no-op. Ошибка монитора
// никогда не отменяет сам прогон, она только логируется вызывающим.
func (m *AnomalyMonitor) Inspect(run *models.Run) error {
	if run.Status != models.RunStatusExecuted || run.ActualProfit == nil || run.ActualProfit.Int == nil {
		return nil
	}

	realized := run.ActualProfit.Int
	expected := run.EstimatedProfit.Int

	if realized.Sign() < 0 {
		if err := m.raise(run, models.AlertTypeNegativeRealizedProfit, models.SeverityCritical,
			fmt.Sprintf("run %d realized negative profit: %s (expected %s)",
				run.ID, realized, expected)); err != nil {
			return err
		}
	}

	pnlRatio := ratioOf(realized, expected)
	if realized.Sign() >= 0 && pnlRatio < m.cfg.MinPnlRatio {
		severity := models.SeverityWarning
		if pnlRatio < m.cfg.MinPnlRatio/2 {
			severity = models.SeverityCritical
		}
		if err := m.raise(run, models.AlertTypePnlRatioLow, severity,
			fmt.Sprintf("run %d pnl ratio %.3f below %.3f: realized %s of expected %s",
				run.ID, pnlRatio, m.cfg.MinPnlRatio, realized, expected)); err != nil {
			return err
		}
	}

	if run.ActualGasSpent != nil && run.ActualGasSpent.Int != nil {
		gasRatio := ratioOf(run.ActualGasSpent.Int, run.EstimatedGasCost.Int)
		if gasRatio > m.cfg.MaxGasRatio {
			severity := models.SeverityWarning
			if gasRatio > m.cfg.MaxGasRatio*2 {
				severity = models.SeverityCritical
			}
			if err := m.raise(run, models.AlertTypeGasCostOverrun, severity,
				fmt.Sprintf("run %d gas overrun x%.2f: spent %s of estimated %s",
					run.ID, gasRatio, run.ActualGasSpent, run.EstimatedGasCost)); err != nil {
				return err
			}
		}
	}

	return m.maybeEngageAutoLock()
}

// raise создает алерт, если для этого прогона и типа его еще нет
func (m *AnomalyMonitor) raise(run *models.Run, alertType, severity, message string) error {
	exists, err := m.alerts.ExistsForRun(run.ID, alertType)
	if err != nil {
		return fmt.Errorf("failed to check alert existence: %w", err)
	}
	if exists {
		return nil
	}

	runID := run.ID
	alert := &models.Alert{
		RunID:    &runID,
		Type:     alertType,
		Severity: severity,
		Message:  message,
	}
	if err := m.alerts.Create(alert); err != nil {
		return fmt.Errorf("failed to create alert: %w", err)
	}

	RecordAnomalyAlert(alertType, severity)
	if m.notifier != nil {
		m.notifier.BroadcastAlert(alert)
	}
	m.logger.Warn("обнаружена аномалия исполнения",
		utils.RunID(run.ID),
		utils.AlertType(alertType),
		utils.String("severity", severity),
		utils.String("message", message))

	return nil
}

// maybeEngageAutoLock включает глобальную блокировку при накоплении
// неподтвержденных алертов в скользящем окне
//
// Снятие блокировки - только ручное, через админ-панель. Конфликт
// версий настроек здесь не фатален: значит, блокировку уже кто-то
// поставил или настройки меняются прямо сейчас.
func (m *AnomalyMonitor) maybeEngageAutoLock() error {
	since := m.now().Add(-m.cfg.AutoLockWindow)
	count, err := m.alerts.CountUnacknowledgedSince(since)
	if err != nil {
		return fmt.Errorf("failed to count unacknowledged alerts: %w", err)
	}
	if count < m.cfg.AutoLockThreshold {
		return nil
	}

	settings, err := m.settings.Get()
	if err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}
	if settings.ExecutionLocked {
		return nil
	}

	reason := fmt.Sprintf("auto-lock: %d unacknowledged anomaly alerts within %s",
		count, m.cfg.AutoLockWindow)

	if err := m.settings.SetExecutionLock(true, reason, settings.Version); err != nil {
		if errors.Is(err, repository.ErrVersionConflict) {
			m.logger.Warn("автоблокировка пропущена из-за конфликта версий настроек")
			return nil
		}
		return fmt.Errorf("failed to engage auto-lock: %w", err)
	}

	SetExecutionLockState(true)
	m.logger.Error("включена автоматическая блокировка исполнения",
		utils.String("reason", reason),
		utils.Int("unacknowledged", count))

	alert := &models.Alert{
		Type:     models.AlertTypeAutoLockEngaged,
		Severity: models.SeverityCritical,
		Message:  reason,
	}
	if err := m.alerts.Create(alert); err != nil {
		return fmt.Errorf("failed to record auto-lock alert: %w", err)
	}
	RecordAnomalyAlert(models.AlertTypeAutoLockEngaged, models.SeverityCritical)
	if m.notifier != nil {
		m.notifier.BroadcastAlert(alert)
	}

	return nil
}

// ratioOf считает actual/expected с нижней границей знаменателя в 1,
// чтобы нулевое ожидание не делило на ноль
func ratioOf(actual, expected *big.Int) float64 {
	if actual == nil {
		return 0
	}
	denom := big.NewInt(1)
	if expected != nil && expected.Cmp(denom) > 0 {
		denom = expected
	}

	ratio, _ := new(big.Float).Quo(
		new(big.Float).SetInt(actual),
		new(big.Float).SetInt(denom),
	).Float64()
	return ratio
}
