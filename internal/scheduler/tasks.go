package scheduler

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const TaskEffectRetry = "effects.retry"

// EffectRetryPayload identifies one parked outbox record to re-run.
type EffectRetryPayload struct {
	OutboxID     string `json:"outboxId"`
	EngagementID string `json:"engagementId"`
}

func NewEffectRetryTask(payload EffectRetryPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskEffectRetry, data), nil
}

func ParseEffectRetryPayload(task *asynq.Task) (EffectRetryPayload, error) {
	var payload EffectRetryPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return EffectRetryPayload{}, err
	}
	return payload, nil
}
