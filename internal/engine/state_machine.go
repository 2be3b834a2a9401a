package engine

import (
	"fmt"

	"chainarb/internal/models"
)

// ValidTransitions - машина состояний одной попытки исполнения
//
// PENDING_GATES -> QUOTED (гейты пройдены) либо терминальный отказ
// QUOTED -> PROFIT_CHECKED
// PROFIT_CHECKED -> EXECUTING (порог пройден) либо терминальный SIMULATED
// EXECUTING -> EXECUTED | FAILED
//
// Терминальные состояния не имеют исходящих переходов: повторная
// попытка - это всегда новый прогон.
var ValidTransitions = map[string][]string{
	models.ExecStatePendingGates:  {models.ExecStateQuoted, models.ExecStateFailed},
	models.ExecStateQuoted:        {models.ExecStateProfitChecked, models.ExecStateFailed},
	models.ExecStateProfitChecked: {models.ExecStateExecuting, models.ExecStateFailed},
	models.ExecStateExecuting:     {models.ExecStateExecuted, models.ExecStateFailed},
	models.ExecStateExecuted:      {},
	models.ExecStateFailed:        {},
}

// CanTransition проверяет допустимость перехода
func CanTransition(from, to string) bool {
	for _, next := range ValidTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// execState отслеживает состояние попытки и запрещает невалидные переходы
type execState struct {
	current string
}

func newExecState() *execState {
	return &execState{current: models.ExecStatePendingGates}
}

// advance переводит попытку в следующее состояние
//
// Невалидный переход - ошибка программиста, не рантайма: оркестратор
// обязан двигаться строго по машине состояний.
func (s *execState) advance(to string) error {
	if !CanTransition(s.current, to) {
		return fmt.Errorf("invalid state transition %s -> %s", s.current, to)
	}
	s.current = to
	return nil
}

func (s *execState) String() string {
	return s.current
}
