package service

import (
	"context"
	"time"

	"chainarb/internal/engine"
	"chainarb/internal/models"
	"chainarb/internal/repository"
)

// ============ Mock StrategyRepository ============

type MockStrategyRepository struct {
	strategies map[int]*models.Strategy
	getErr     error
	updateErr  error
	nextID     int
	updated    []*models.Strategy
}

func NewMockStrategyRepository() *MockStrategyRepository {
	return &MockStrategyRepository{
		strategies: make(map[int]*models.Strategy),
		nextID:     1,
	}
}

func (m *MockStrategyRepository) Create(s *models.Strategy) error {
	s.ID = m.nextID
	m.nextID++
	s.CreatedAt = time.Now()
	m.strategies[s.ID] = s
	return nil
}

func (m *MockStrategyRepository) GetByID(id int) (*models.Strategy, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	if s, ok := m.strategies[id]; ok {
		return s, nil
	}
	return nil, repository.ErrStrategyNotFound
}

func (m *MockStrategyRepository) GetAll() ([]*models.Strategy, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	var result []*models.Strategy
	for _, s := range m.strategies {
		result = append(result, s)
	}
	return result, nil
}

func (m *MockStrategyRepository) GetEnabled() ([]*models.Strategy, error) {
	var result []*models.Strategy
	for _, s := range m.strategies {
		if s.IsEnabled {
			result = append(result, s)
		}
	}
	return result, nil
}

func (m *MockStrategyRepository) Update(s *models.Strategy) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	if _, ok := m.strategies[s.ID]; !ok {
		return repository.ErrStrategyNotFound
	}
	m.strategies[s.ID] = s
	m.updated = append(m.updated, s)
	return nil
}

// ============ Mock RunRepository ============

type MockRunRepository struct {
	runs   map[int]*models.Run
	getErr error
}

func NewMockRunRepository() *MockRunRepository {
	return &MockRunRepository{runs: make(map[int]*models.Run)}
}

func (m *MockRunRepository) GetByID(id int) (*models.Run, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	if r, ok := m.runs[id]; ok {
		return r, nil
	}
	return nil, repository.ErrRunNotFound
}

func (m *MockRunRepository) List(strategyID int, status string, limit, offset int) ([]*models.Run, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	var result []*models.Run
	for _, r := range m.runs {
		if strategyID != 0 && (r.StrategyID == nil || *r.StrategyID != strategyID) {
			continue
		}
		if status != "" && r.Status != status {
			continue
		}
		result = append(result, r)
	}
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (m *MockRunRepository) CountExecutedToday(strategyID int, dayStart time.Time) (int, error) {
	count := 0
	for _, r := range m.runs {
		if r.Status == models.RunStatusExecuted {
			count++
		}
	}
	return count, nil
}

// ============ Mock EventRepository ============

type MockEventRepository struct {
	events []*models.ArbitrageEvent
	getErr error
}

func (m *MockEventRepository) List(kind string, limit, offset int) ([]*models.ArbitrageEvent, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	var result []*models.ArbitrageEvent
	for _, e := range m.events {
		if kind != "" && e.Kind != kind {
			continue
		}
		result = append(result, e)
	}
	return result, nil
}

func (m *MockEventRepository) GetByRunID(runID int) ([]*models.ArbitrageEvent, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	var result []*models.ArbitrageEvent
	for _, e := range m.events {
		if e.RunID != nil && *e.RunID == runID {
			result = append(result, e)
		}
	}
	return result, nil
}

// ============ Mock AlertRepository ============

type MockAlertRepository struct {
	alerts   map[int]*models.Alert
	listErr  error
	ackErr   error
	ackCalls []int
}

func NewMockAlertRepository() *MockAlertRepository {
	return &MockAlertRepository{alerts: make(map[int]*models.Alert)}
}

func (m *MockAlertRepository) List(onlyUnacknowledged bool, limit, offset int) ([]*models.Alert, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	var result []*models.Alert
	for _, a := range m.alerts {
		if onlyUnacknowledged && a.Acknowledged {
			continue
		}
		result = append(result, a)
	}
	return result, nil
}

func (m *MockAlertRepository) Acknowledge(id int) error {
	m.ackCalls = append(m.ackCalls, id)
	if m.ackErr != nil {
		return m.ackErr
	}
	a, ok := m.alerts[id]
	if !ok {
		return repository.ErrAlertNotFound
	}
	if !a.Acknowledged {
		a.Acknowledged = true
		now := time.Now()
		a.AcknowledgedAt = &now
	}
	return nil
}

// ============ Mock SettingsRepository ============

type MockSettingsRepository struct {
	settings  *models.SystemSettings
	getErr    error
	updateErr error
	lockErr   error
	lockCalls int
}

func NewMockSettingsRepository() *MockSettingsRepository {
	return &MockSettingsRepository{
		settings: &models.SystemSettings{ID: 1, Version: 1},
	}
}

func (m *MockSettingsRepository) Get() (*models.SystemSettings, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	copied := *m.settings
	return &copied, nil
}

func (m *MockSettingsRepository) Update(settings *models.SystemSettings) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	if settings.Version != m.settings.Version {
		return repository.ErrVersionConflict
	}
	copied := *settings
	copied.Version++
	m.settings = &copied
	settings.Version++
	return nil
}

func (m *MockSettingsRepository) SetExecutionLock(locked bool, reason string, version int) error {
	m.lockCalls++
	if m.lockErr != nil {
		return m.lockErr
	}
	if version != m.settings.Version {
		return repository.ErrVersionConflict
	}
	m.settings.ExecutionLocked = locked
	if locked {
		m.settings.LockReason = &reason
		now := time.Now()
		m.settings.LockedAt = &now
	} else {
		m.settings.LockReason = nil
		m.settings.LockedAt = nil
	}
	m.settings.Version++
	return nil
}

// ============ Mock движка ============

type MockScanner struct {
	report   *engine.ScanReport
	err      error
	lastReq  engine.ScanRequest
	scanCall int
}

func (m *MockScanner) Scan(ctx context.Context, req engine.ScanRequest) (*engine.ScanReport, error) {
	m.scanCall++
	m.lastReq = req
	if m.err != nil {
		return nil, m.err
	}
	return m.report, nil
}

type MockExecutor struct {
	run     *models.Run
	err     error
	lastReq engine.ExecuteRequest
	calls   int
}

func (m *MockExecutor) Execute(ctx context.Context, req engine.ExecuteRequest) (*models.Run, error) {
	m.calls++
	m.lastReq = req
	if m.err != nil {
		return m.run, m.err
	}
	return m.run, nil
}

// ============ Mock broadcaster ============

// MockBroadcaster записывает разосланные события
type MockBroadcaster struct {
	runUpdates  []*models.Run
	lockUpdates []*models.SystemSettings
	scanReports []interface{}
}

func (b *MockBroadcaster) BroadcastRunUpdate(run *models.Run) {
	b.runUpdates = append(b.runUpdates, run)
}

func (b *MockBroadcaster) BroadcastLockUpdate(settings *models.SystemSettings) {
	b.lockUpdates = append(b.lockUpdates, settings)
}

func (b *MockBroadcaster) BroadcastScanReport(report interface{}) {
	b.scanReports = append(b.scanReports, report)
}
