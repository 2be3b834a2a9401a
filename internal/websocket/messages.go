package websocket

import (
	"chainarb/internal/models"
)

// MessageType - тип сообщения потока админ-панели
type MessageType string

const (
	// MessageTypeRunUpdate - создан или финализирован прогон
	MessageTypeRunUpdate MessageType = "run_update"

	// MessageTypeAlert - монитор аномалий создал алерт
	MessageTypeAlert MessageType = "alert"

	// MessageTypeLockUpdate - изменилось состояние блокировки исполнения
	MessageTypeLockUpdate MessageType = "lock_update"

	// MessageTypeScanReport - завершился скан матрицы источников
	MessageTypeScanReport MessageType = "scan_report"
)

// RunUpdateMessage - сообщение о прогоне
type RunUpdateMessage struct {
	Type MessageType `json:"type"`
	Data *models.Run `json:"data"`
}

// NewRunUpdateMessage создает сообщение о прогоне
func NewRunUpdateMessage(run *models.Run) *RunUpdateMessage {
	return &RunUpdateMessage{Type: MessageTypeRunUpdate, Data: run}
}

// AlertMessage - сообщение об алерте аномалии
type AlertMessage struct {
	Type MessageType   `json:"type"`
	Data *models.Alert `json:"data"`
}

// NewAlertMessage создает сообщение об алерте
func NewAlertMessage(alert *models.Alert) *AlertMessage {
	return &AlertMessage{Type: MessageTypeAlert, Data: alert}
}

// LockUpdateMessage - сообщение о блокировке исполнения
type LockUpdateMessage struct {
	Type    MessageType `json:"type"`
	Locked  bool        `json:"locked"`
	Reason  *string     `json:"reason,omitempty"`
	Version int         `json:"version"`
}

// NewLockUpdateMessage создает сообщение о блокировке из настроек
func NewLockUpdateMessage(settings *models.SystemSettings) *LockUpdateMessage {
	return &LockUpdateMessage{
		Type:    MessageTypeLockUpdate,
		Locked:  settings.ExecutionLocked,
		Reason:  settings.LockReason,
		Version: settings.Version,
	}
}

// ScanReportMessage - сообщение о завершенном скане
type ScanReportMessage struct {
	Type MessageType `json:"type"`
	Data interface{} `json:"data"`
}

// NewScanReportMessage создает сообщение со сводкой скана
func NewScanReportMessage(report interface{}) *ScanReportMessage {
	return &ScanReportMessage{Type: MessageTypeScanReport, Data: report}
}
