package handlers

import (
	"context"
	"errors"

	"chainarb/internal/engine"
	"chainarb/internal/models"
	"chainarb/internal/repository"
	"chainarb/internal/service"
)

// ErrMockDatabase - имитация инфраструктурной ошибки
var ErrMockDatabase = errors.New("mock database error")

// ============ Mock ArbitrageService ============

type MockArbitrageService struct {
	scanReport *engine.ScanReport
	scanErr    error

	executeRun *models.Run
	executeErr error
	lastExec   engine.ExecuteRequest

	strategies map[int]*models.Strategy
}

func NewMockArbitrageService() *MockArbitrageService {
	return &MockArbitrageService{strategies: make(map[int]*models.Strategy)}
}

func (m *MockArbitrageService) Scan(ctx context.Context, req engine.ScanRequest) (*engine.ScanReport, error) {
	if m.scanErr != nil {
		return nil, m.scanErr
	}
	return m.scanReport, nil
}

func (m *MockArbitrageService) Execute(ctx context.Context, req engine.ExecuteRequest) (*models.Run, error) {
	m.lastExec = req
	if m.executeErr != nil {
		return nil, m.executeErr
	}
	return m.executeRun, nil
}

func (m *MockArbitrageService) GetStrategies() ([]*models.Strategy, error) {
	result := []*models.Strategy{}
	for _, s := range m.strategies {
		result = append(result, s)
	}
	return result, nil
}

func (m *MockArbitrageService) GetStrategy(id int) (*models.Strategy, error) {
	if s, ok := m.strategies[id]; ok {
		return s, nil
	}
	return nil, repository.ErrStrategyNotFound
}

func (m *MockArbitrageService) SetStrategyEnabled(id int, enabled, autoEnabled bool) (*models.Strategy, error) {
	s, ok := m.strategies[id]
	if !ok {
		return nil, repository.ErrStrategyNotFound
	}
	s.IsEnabled = enabled
	s.IsAutoEnabled = autoEnabled
	return s, nil
}

// ============ Mock SettingsService ============

type MockSettingsService struct {
	settings  *models.SystemSettings
	getErr    error
	updateErr error
	lockErr   error
}

func NewMockSettingsService() *MockSettingsService {
	return &MockSettingsService{
		settings: &models.SystemSettings{ID: 1, Version: 1},
	}
}

func (m *MockSettingsService) GetSettings() (*models.SystemSettings, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	return m.settings, nil
}

func (m *MockSettingsService) UpdateSettings(req *service.UpdateSettingsRequest) (*models.SystemSettings, error) {
	if m.updateErr != nil {
		return nil, m.updateErr
	}
	if req.Version != m.settings.Version {
		return nil, repository.ErrVersionConflict
	}
	if req.MainnetMode != nil {
		m.settings.MainnetMode = *req.MainnetMode
	}
	m.settings.Version++
	return m.settings, nil
}

func (m *MockSettingsService) Lock(reason string, version int) (*models.SystemSettings, error) {
	if reason == "" {
		return nil, service.ErrLockReasonEmpty
	}
	if m.lockErr != nil {
		return nil, m.lockErr
	}
	if version != m.settings.Version {
		return nil, repository.ErrVersionConflict
	}
	m.settings.ExecutionLocked = true
	m.settings.LockReason = &reason
	m.settings.Version++
	return m.settings, nil
}

func (m *MockSettingsService) Unlock(version int) (*models.SystemSettings, error) {
	if m.lockErr != nil {
		return nil, m.lockErr
	}
	if version != m.settings.Version {
		return nil, repository.ErrVersionConflict
	}
	m.settings.ExecutionLocked = false
	m.settings.LockReason = nil
	m.settings.Version++
	return m.settings, nil
}

// ============ Mock AlertService ============

type MockAlertService struct {
	alerts  []*models.Alert
	listErr error
	ackErr  error
	acked   []int
}

func (m *MockAlertService) GetAlerts(onlyUnacknowledged bool, limit, offset int) ([]*models.Alert, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	result := []*models.Alert{}
	for _, a := range m.alerts {
		if onlyUnacknowledged && a.Acknowledged {
			continue
		}
		result = append(result, a)
	}
	return result, nil
}

func (m *MockAlertService) Acknowledge(id int) error {
	if m.ackErr != nil {
		return m.ackErr
	}
	for _, a := range m.alerts {
		if a.ID == id {
			a.Acknowledged = true
			m.acked = append(m.acked, id)
			return nil
		}
	}
	return repository.ErrAlertNotFound
}

// ============ Mock RunService ============

type MockRunService struct {
	runs   map[int]*models.Run
	events []*models.ArbitrageEvent
	err    error
}

func NewMockRunService() *MockRunService {
	return &MockRunService{runs: make(map[int]*models.Run)}
}

func (m *MockRunService) GetRuns(strategyID int, status string, limit, offset int) ([]*models.Run, error) {
	if m.err != nil {
		return nil, m.err
	}
	result := []*models.Run{}
	for _, r := range m.runs {
		if status != "" && r.Status != status {
			continue
		}
		result = append(result, r)
	}
	return result, nil
}

func (m *MockRunService) GetRun(id int) (*models.Run, error) {
	if m.err != nil {
		return nil, m.err
	}
	if r, ok := m.runs[id]; ok {
		return r, nil
	}
	return nil, repository.ErrRunNotFound
}

func (m *MockRunService) GetRunEvents(runID int) ([]*models.ArbitrageEvent, error) {
	if _, ok := m.runs[runID]; !ok {
		return nil, repository.ErrRunNotFound
	}
	result := []*models.ArbitrageEvent{}
	for _, e := range m.events {
		if e.RunID != nil && *e.RunID == runID {
			result = append(result, e)
		}
	}
	return result, nil
}

func (m *MockRunService) GetEvents(kind string, limit, offset int) ([]*models.ArbitrageEvent, error) {
	result := []*models.ArbitrageEvent{}
	for _, e := range m.events {
		if kind != "" && e.Kind != kind {
			continue
		}
		result = append(result, e)
	}
	return result, nil
}
