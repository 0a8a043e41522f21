package researcher

import "deep-research-be/internal/pkg/logger"

// Verdict is the supervisor's decision after one attempt.
type Verdict int

const (
	VerdictSucceeded Verdict = iota
	VerdictRetry
	VerdictExhausted
)

// Leader supervises one unit's retry loop. Every failed attempt consumes the
// same retry budget regardless of cause (short content, transport error,
// policy block).
type Leader struct {
	log logger.ILogger
}

func NewLeader(log logger.ILogger) *Leader {
	return &Leader{log: log}
}

// Evaluate advances the unit's state machine after an attempt and returns
// the verdict. Accepted content terminates the unit successfully; a failure
// either burns a retry or exhausts the unit.
func (l *Leader) Evaluate(unit *Unit, accepted bool) Verdict {
	if accepted {
		unit.State = StateSucceeded
		l.log.Info("leader", "unit succeeded", map[string]interface{}{
			"task_index": unit.TaskIndex,
			"task":       unit.Task,
			"retries":    unit.RetryCount,
		})
		return VerdictSucceeded
	}

	if unit.RetryCount >= MaxRetries {
		unit.State = StateExhausted
		l.log.Error("leader", "retry budget exhausted, giving up", map[string]interface{}{
			"task_index": unit.TaskIndex,
			"task":       unit.Task,
			"attempts":   unit.RetryCount + 1,
		})
		return VerdictExhausted
	}

	unit.RetryCount++
	l.log.Warn("leader", "attempt failed, sending unit back for retry", map[string]interface{}{
		"task_index": unit.TaskIndex,
		"retry":      unit.RetryCount,
	})
	return VerdictRetry
}
