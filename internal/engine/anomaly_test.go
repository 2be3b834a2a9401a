package engine

import (
	"testing"
	"time"

	"chainarb/internal/config"
	"chainarb/internal/models"
)

type fakeAlerts struct {
	created    []*models.Alert
	unackCount int
}

func (f *fakeAlerts) Create(a *models.Alert) error {
	a.ID = len(f.created) + 1
	f.created = append(f.created, a)
	return nil
}

func (f *fakeAlerts) ExistsForRun(runID int, alertType string) (bool, error) {
	for _, a := range f.created {
		if a.RunID != nil && *a.RunID == runID && a.Type == alertType {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeAlerts) CountUnacknowledgedSince(since time.Time) (int, error) {
	return f.unackCount, nil
}

func testAnomalyConfig() config.AnomalyConfig {
	return config.AnomalyConfig{
		MinPnlRatio:       0.5,
		MaxGasRatio:       2.0,
		AutoLockThreshold: 3,
		AutoLockWindow:    time.Hour,
	}
}

func newTestMonitor(alerts *fakeAlerts, settings *fakeSettings) *AnomalyMonitor {
	return NewAnomalyMonitor(testAnomalyConfig(), alerts, settings, testLogger())
}

func executedRun(expected, realized int64) *models.Run {
	actualProfit := models.NewBigInt(realized)
	return &models.Run{
		ID:               42,
		Status:           models.RunStatusExecuted,
		Network:          "SOLANA",
		EstimatedProfit:  models.NewBigInt(expected),
		EstimatedGasCost: models.NewBigInt(10_000),
		ActualProfit:     &actualProfit,
	}
}

func TestAnomalyNegativeRealizedProfit(t *testing.T) {
	alerts := &fakeAlerts{}
	monitor := newTestMonitor(alerts, &fakeSettings{settings: defaultSettings()})

	if err := monitor.Inspect(executedRun(100_000, -50_000)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(alerts.created) != 1 {
		t.Fatalf("created %d alerts, want 1", len(alerts.created))
	}
	alert := alerts.created[0]
	if alert.Type != models.AlertTypeNegativeRealizedProfit {
		t.Errorf("type = %s, want NEGATIVE_REALIZED_PROFIT", alert.Type)
	}
	if alert.Severity != models.SeverityCritical {
		t.Errorf("severity = %s, want critical", alert.Severity)
	}
}

func TestAnomalyPnlRatio(t *testing.T) {
	tests := []struct {
		name         string
		expected     int64
		realized     int64
		wantAlerts   int
		wantSeverity string
	}{
		{"healthy ratio", 100_000, 90_000, 0, ""},
		{"ratio at boundary", 100_000, 50_000, 0, ""},
		{"low ratio warning", 100_000, 40_000, 1, models.SeverityWarning},
		{"very low ratio critical", 100_000, 20_000, 1, models.SeverityCritical},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			alerts := &fakeAlerts{}
			monitor := newTestMonitor(alerts, &fakeSettings{settings: defaultSettings()})

			if err := monitor.Inspect(executedRun(tt.expected, tt.realized)); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(alerts.created) != tt.wantAlerts {
				t.Fatalf("created %d alerts, want %d", len(alerts.created), tt.wantAlerts)
			}
			if tt.wantAlerts > 0 {
				if alerts.created[0].Type != models.AlertTypePnlRatioLow {
					t.Errorf("type = %s, want PNL_RATIO_LOW", alerts.created[0].Type)
				}
				if alerts.created[0].Severity != tt.wantSeverity {
					t.Errorf("severity = %s, want %s", alerts.created[0].Severity, tt.wantSeverity)
				}
			}
		})
	}
}

func TestAnomalyGasOverrun(t *testing.T) {
	alerts := &fakeAlerts{}
	monitor := newTestMonitor(alerts, &fakeSettings{settings: defaultSettings()})

	run := executedRun(100_000, 95_000)
	spent := models.NewBigInt(25_000) // x2.5 от оценки 10000
	run.ActualGasSpent = &spent

	if err := monitor.Inspect(run); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(alerts.created) != 1 {
		t.Fatalf("created %d alerts, want 1", len(alerts.created))
	}
	if alerts.created[0].Type != models.AlertTypeGasCostOverrun {
		t.Errorf("type = %s, want GAS_COST_OVERRUN", alerts.created[0].Type)
	}
	if alerts.created[0].Severity != models.SeverityWarning {
		t.Errorf("severity = %s, want warning", alerts.created[0].Severity)
	}

	// x5 перерасход - critical
	alerts2 := &fakeAlerts{}
	monitor2 := newTestMonitor(alerts2, &fakeSettings{settings: defaultSettings()})
	run2 := executedRun(100_000, 95_000)
	spent2 := models.NewBigInt(50_000)
	run2.ActualGasSpent = &spent2

	if err := monitor2.Inspect(run2); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(alerts2.created) != 1 || alerts2.created[0].Severity != models.SeverityCritical {
		t.Error("expected single critical gas overrun alert")
	}
}

func TestAnomalyIdempotentPerRun(t *testing.T) {
	alerts := &fakeAlerts{}
	monitor := newTestMonitor(alerts, &fakeSettings{settings: defaultSettings()})

	run := executedRun(100_000, -50_000)
	for i := 0; i < 3; i++ {
		if err := monitor.Inspect(run); err != nil {
			t.Fatalf("inspect %d: %v", i, err)
		}
	}

	// Повторный осмотр того же прогона не плодит дубликаты
	if len(alerts.created) != 1 {
		t.Errorf("created %d alerts after repeated inspections, want 1", len(alerts.created))
	}
}

func TestAnomalySkipsNonExecuted(t *testing.T) {
	alerts := &fakeAlerts{}
	monitor := newTestMonitor(alerts, &fakeSettings{settings: defaultSettings()})

	run := executedRun(100_000, -50_000)
	run.Status = models.RunStatusFailed

	if err := monitor.Inspect(run); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(alerts.created) != 0 {
		t.Errorf("alerts for FAILED run: %d", len(alerts.created))
	}
}

// ============================================================
// Автоблокировка
// ============================================================

func TestAnomalyAutoLock(t *testing.T) {
	alerts := &fakeAlerts{unackCount: 3}
	settings := &fakeSettings{settings: defaultSettings()}
	monitor := newTestMonitor(alerts, settings)

	if err := monitor.Inspect(executedRun(100_000, -50_000)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(settings.lockCalls) != 1 || !settings.lockLocked {
		t.Fatalf("expected one lock call, got %d", len(settings.lockCalls))
	}

	// Второй алерт - AUTO_LOCK_ENGAGED
	var lockAlert *models.Alert
	for _, a := range alerts.created {
		if a.Type == models.AlertTypeAutoLockEngaged {
			lockAlert = a
		}
	}
	if lockAlert == nil {
		t.Fatal("AUTO_LOCK_ENGAGED alert not created")
	}
	if lockAlert.Severity != models.SeverityCritical {
		t.Errorf("severity = %s, want critical", lockAlert.Severity)
	}
}

func TestAnomalyAutoLockBelowThreshold(t *testing.T) {
	alerts := &fakeAlerts{unackCount: 2}
	settings := &fakeSettings{settings: defaultSettings()}
	monitor := newTestMonitor(alerts, settings)

	if err := monitor.Inspect(executedRun(100_000, -50_000)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(settings.lockCalls) != 0 {
		t.Errorf("lock engaged below threshold: %d calls", len(settings.lockCalls))
	}
}

func TestAnomalyAutoLockAlreadyLocked(t *testing.T) {
	locked := defaultSettings()
	locked.ExecutionLocked = true

	alerts := &fakeAlerts{unackCount: 5}
	settings := &fakeSettings{settings: locked}
	monitor := newTestMonitor(alerts, settings)

	if err := monitor.Inspect(executedRun(100_000, -50_000)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(settings.lockCalls) != 0 {
		t.Error("must not re-engage an already engaged lock")
	}
}
