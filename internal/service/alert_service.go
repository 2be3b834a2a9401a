package service

import (
	"errors"

	"chainarb/internal/models"
	"chainarb/pkg/utils"
)

// Ошибки сервиса алертов
var (
	ErrInvalidAlertID = errors.New("alert id must be >= 1")
)

// Дефолтный и максимальный размер страницы для списков
const (
	defaultPageLimit = 50
	maxPageLimit     = 500
)

// AlertService предоставляет бизнес-логику работы с алертами аномалий.
//
// Отвечает за:
// - Выдачу ленты алертов (все или только неподтвержденные)
// - Подтверждение алертов оператором
//
// Алерты создает только монитор аномалий; через сервис они
// только читаются и подтверждаются, удаления нет.
type AlertService struct {
	alertRepo AlertRepositoryInterface
	logger    *utils.Logger
}

// NewAlertService создает новый экземпляр AlertService.
func NewAlertService(alertRepo AlertRepositoryInterface, logger *utils.Logger) *AlertService {
	return &AlertService{
		alertRepo: alertRepo,
		logger:    logger.WithComponent("service.alerts"),
	}
}

// GetAlerts возвращает алерты, новые первыми.
//
// Параметры:
// - onlyUnacknowledged: true - только неподтвержденные
// - limit, offset: пагинация (limit нормализуется в [1, 500])
func (s *AlertService) GetAlerts(onlyUnacknowledged bool, limit, offset int) ([]*models.Alert, error) {
	limit, offset = normalizePage(limit, offset)

	alerts, err := s.alertRepo.List(onlyUnacknowledged, limit, offset)
	if err != nil {
		return nil, err
	}
	if alerts == nil {
		alerts = []*models.Alert{}
	}
	return alerts, nil
}

// Acknowledge подтверждает алерт.
//
// Операция идемпотентна: повторное подтверждение уже подтвержденного
// алерта успешно и ничего не меняет. Подтверждение выводит алерт из
// счетчика триггера автоблокировки.
func (s *AlertService) Acknowledge(id int) error {
	if id < 1 {
		return ErrInvalidAlertID
	}
	if err := s.alertRepo.Acknowledge(id); err != nil {
		return err
	}
	s.logger.Info("алерт подтвержден", utils.Int("alert_id", id))
	return nil
}

// normalizePage приводит параметры пагинации к допустимым значениям
func normalizePage(limit, offset int) (int, int) {
	if limit < 1 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
