package service

import (
	"errors"

	"chainarb/internal/models"
	"chainarb/pkg/utils"
)

// Ошибки сервиса настроек
var (
	ErrInvalidMaxTradesPerDay = errors.New("max_trades_per_day must be >= 1 or null")
	ErrInvalidMaxDailyLoss    = errors.New("max_daily_loss must be positive or null")
	ErrLockReasonEmpty        = errors.New("lock reason is required")
	ErrVersionRequired        = errors.New("settings version is required")
)

// SettingsService предоставляет бизнес-логику управления глобальными
// настройками и блокировкой исполнения.
//
// Отвечает за:
// - Чтение и частичное обновление system_settings
// - Ручную установку и снятие блокировки исполнения
// - Валидацию глобальных дневных лимитов
//
// Все записи идут через токен оптимистической конкуренции (version):
// устаревшая версия отклоняется репозиторием как ErrVersionConflict,
// чтобы ручные действия оператора и автоблокировка монитора аномалий
// не затирали друг друга молча.
type SettingsService struct {
	settingsRepo SettingsRepositoryInterface
	broadcaster  Broadcaster
	logger       *utils.Logger
}

// NewSettingsService создает новый экземпляр SettingsService.
func NewSettingsService(settingsRepo SettingsRepositoryInterface, logger *utils.Logger) *SettingsService {
	return &SettingsService{
		settingsRepo: settingsRepo,
		logger:       logger.WithComponent("service.settings"),
	}
}

// SetBroadcaster подключает рассылку изменений блокировки в WebSocket
// поток. Без подключенного broadcaster сервис работает молча.
func (s *SettingsService) SetBroadcaster(b Broadcaster) {
	s.broadcaster = b
}

// GetSettings возвращает текущие глобальные настройки.
//
// Если записи в БД нет, репозиторий создает запись с дефолтными
// значениями (исполнение разблокировано, лимиты не заданы).
func (s *SettingsService) GetSettings() (*models.SystemSettings, error) {
	return s.settingsRepo.Get()
}

// UpdateSettingsRequest представляет запрос на обновление настроек.
// Все поля опциональны - обновляются только переданные.
type UpdateSettingsRequest struct {
	MainnetMode          *bool `json:"mainnet_mode,omitempty"`
	AutoArbitrageEnabled *bool `json:"auto_arbitrage_enabled,omitempty"`
	AutoFlashLoanEnabled *bool `json:"auto_flash_loan_enabled,omitempty"`

	MaxTradesPerDay *int           `json:"max_trades_per_day,omitempty"`
	MaxDailyLoss    *models.BigInt `json:"max_daily_loss,omitempty"`

	// Флаги явного сброса лимитов в null (без ограничений)
	ClearMaxTradesPerDay bool `json:"clear_max_trades_per_day,omitempty"`
	ClearMaxDailyLoss    bool `json:"clear_max_daily_loss,omitempty"`

	// Версия, которую видел клиент. Обязательна: запись с устаревшей
	// версией отклоняется конфликтом, а не перезаписывает чужую.
	Version int `json:"version"`
}

// UpdateSettings обновляет глобальные настройки.
//
// Принимает только те поля, которые нужно обновить.
//
// Правила валидации:
// - max_trades_per_day: >= 1 или null (без ограничений)
// - max_daily_loss: положительное число или null
// - version: обязательна, должна совпадать с текущей
//
// Блокировка исполнения через этот метод не меняется -
// для нее есть Lock и Unlock с отдельным аудитом причины.
func (s *SettingsService) UpdateSettings(req *UpdateSettingsRequest) (*models.SystemSettings, error) {
	if req.Version < 1 {
		return nil, ErrVersionRequired
	}

	settings, err := s.settingsRepo.Get()
	if err != nil {
		return nil, err
	}

	// Обновляем только переданные поля
	if req.MainnetMode != nil {
		settings.MainnetMode = *req.MainnetMode
	}
	if req.AutoArbitrageEnabled != nil {
		settings.AutoArbitrageEnabled = *req.AutoArbitrageEnabled
	}
	if req.AutoFlashLoanEnabled != nil {
		settings.AutoFlashLoanEnabled = *req.AutoFlashLoanEnabled
	}

	if req.ClearMaxTradesPerDay {
		settings.MaxTradesPerDay = nil
	} else if req.MaxTradesPerDay != nil {
		if *req.MaxTradesPerDay < 1 {
			return nil, ErrInvalidMaxTradesPerDay
		}
		settings.MaxTradesPerDay = req.MaxTradesPerDay
	}

	if req.ClearMaxDailyLoss {
		settings.MaxDailyLoss = nil
	} else if req.MaxDailyLoss != nil {
		if req.MaxDailyLoss.Int == nil || req.MaxDailyLoss.Int.Sign() <= 0 {
			return nil, ErrInvalidMaxDailyLoss
		}
		settings.MaxDailyLoss = req.MaxDailyLoss
	}

	// Запись идет с версией клиента, а не со свежепрочитанной:
	// иначе конфликт между чтением клиента и этим вызовом потерялся бы
	settings.Version = req.Version

	if err := s.settingsRepo.Update(settings); err != nil {
		return nil, err
	}
	return s.settingsRepo.Get()
}

// Lock вручную блокирует исполнение с указанием причины.
//
// Причина сохраняется дословно и возвращается каждому отклоненному
// вызову исполнения до снятия блокировки.
func (s *SettingsService) Lock(reason string, version int) (*models.SystemSettings, error) {
	if reason == "" {
		return nil, ErrLockReasonEmpty
	}
	if version < 1 {
		return nil, ErrVersionRequired
	}

	if err := s.settingsRepo.SetExecutionLock(true, reason, version); err != nil {
		return nil, err
	}
	s.logger.Warn("исполнение заблокировано оператором", utils.String("reason", reason))
	return s.lockStateChanged()
}

// Unlock вручную снимает блокировку исполнения.
//
// Если блокировку успела поставить автоматика (другая версия),
// снятие отклоняется конфликтом: оператор обязан перечитать
// настройки и увидеть новую причину.
func (s *SettingsService) Unlock(version int) (*models.SystemSettings, error) {
	if version < 1 {
		return nil, ErrVersionRequired
	}

	if err := s.settingsRepo.SetExecutionLock(false, "", version); err != nil {
		return nil, err
	}
	s.logger.Info("блокировка исполнения снята оператором")
	return s.lockStateChanged()
}

// lockStateChanged перечитывает настройки и рассылает новое состояние
// блокировки подписчикам WebSocket
func (s *SettingsService) lockStateChanged() (*models.SystemSettings, error) {
	settings, err := s.settingsRepo.Get()
	if err != nil {
		return nil, err
	}
	if s.broadcaster != nil {
		s.broadcaster.BroadcastLockUpdate(settings)
	}
	return settings, nil
}
