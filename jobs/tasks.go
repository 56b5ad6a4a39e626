package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskAuthzWarmup pre-populates permission caches for active roles.
	TaskAuthzWarmup = "authz:warmup"
)

// AuthzWarmupPayload selects which role scopes to warm. Empty means every
// role with at least one grant row.
type AuthzWarmupPayload struct {
	Roles []string `json:"roles,omitempty"`
}

// NewAuthzWarmupTask constructs an Asynq task.
func NewAuthzWarmupTask(payload AuthzWarmupPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAuthzWarmup, data), nil
}
