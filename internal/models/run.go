package models

import "time"

// Run представляет одну попытку арбитража (симулированную или исполненную)
//
// Жизненный цикл:
// - создается при скане со статусом SIMULATED
// - переходит в EXECUTED или FAILED только при попытке исполнения
// - после установки finished_at запись неизменяема: повторная попытка -
//   это новый Run, история никогда не мутируется
type Run struct {
	ID         int  `json:"id" db:"id"`
	StrategyID *int `json:"strategy_id" db:"strategy_id"` // NULL для ad-hoc сканов

	Status string `json:"status" db:"status"` // SIMULATED, EXECUTED, FAILED

	Network  string `json:"network" db:"network"`
	TokenIn  string `json:"token_in" db:"token_in"`
	TokenOut string `json:"token_out" db:"token_out"`

	NotionalIn BigInt `json:"notional_in" db:"notional_in"`

	// Оценка на момент котировки
	EstimatedProfit BigInt `json:"estimated_profit" db:"estimated_profit"`
	EstimatedGasCost BigInt `json:"estimated_gas_cost" db:"estimated_gas_cost"`
	ProfitBps        int64  `json:"profit_bps" db:"profit_bps"`

	// Фактический результат по пред/пост балансам.
	// В леджере фактическая прибыль авторитетнее оценки.
	ActualProfit *BigInt `json:"actual_profit" db:"actual_profit"`
	ActualGasSpent *BigInt `json:"actual_gas_spent" db:"actual_gas_spent"`

	// Ссылки на транзакции по ногам. При частичном исполнении
	// (нога 1 прошла, нога 2 нет) хэш первой ноги обязан сохраниться
	// для ручной разборки оператором.
	Leg1TxRef *string `json:"leg1_tx_ref" db:"leg1_tx_ref"`
	Leg2TxRef *string `json:"leg2_tx_ref" db:"leg2_tx_ref"`

	// Flash loan
	FlashLoanUsed     bool    `json:"flash_loan_used" db:"flash_loan_used"`
	FlashLoanProvider *string `json:"flash_loan_provider" db:"flash_loan_provider"`
	FlashLoanAmount   *BigInt `json:"flash_loan_amount" db:"flash_loan_amount"`
	FlashLoanFee      *BigInt `json:"flash_loan_fee" db:"flash_loan_fee"`

	ApprovedForAutoExecution bool `json:"approved_for_auto_execution" db:"approved_for_auto_execution"`

	ErrorMessage *string `json:"error_message" db:"error_message"`

	StartedAt  time.Time  `json:"started_at" db:"started_at"`
	FinishedAt *time.Time `json:"finished_at" db:"finished_at"`
}

// Статусы прогона
const (
	RunStatusSimulated = "SIMULATED"
	RunStatusExecuted  = "EXECUTED"
	RunStatusFailed    = "FAILED"
)

// IsFinished возвращает true если прогон завершен и неизменяем
func (r *Run) IsFinished() bool {
	return r.FinishedAt != nil
}

// Состояния машины исполнения внутри одной попытки
//
// PENDING_GATES -> (отказ гейтов: терминально) или -> QUOTED
// QUOTED -> PROFIT_CHECKED
// PROFIT_CHECKED -> (ниже порога: терминально SIMULATED) или -> EXECUTING
// EXECUTING -> EXECUTED | FAILED
const (
	ExecStatePendingGates  = "PENDING_GATES"
	ExecStateQuoted        = "QUOTED"
	ExecStateProfitChecked = "PROFIT_CHECKED"
	ExecStateExecuting     = "EXECUTING"
	ExecStateExecuted      = "EXECUTED"
	ExecStateFailed        = "FAILED"
)
