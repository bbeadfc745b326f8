package scheduler

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

const TaskDueReminder = "pipeline.due_reminder"

// DueReminderPayload identifies a stage entity whose due date is reached.
type DueReminderPayload struct {
	PipelineID string    `json:"pipelineId"`
	Stage      string    `json:"stage"`
	EntityID   string    `json:"entityId"`
	DueAt      time.Time `json:"dueAt"`
}

// taskID is stable per entity and due date so rescheduling the same
// reminder is a no-op.
func (p DueReminderPayload) taskID() string {
	return fmt.Sprintf("due:%s:%s:%d", p.Stage, p.EntityID, p.DueAt.Unix())
}

func NewDueReminderTask(payload DueReminderPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskDueReminder, data), nil
}

func ParseDueReminderPayload(task *asynq.Task) (DueReminderPayload, error) {
	var payload DueReminderPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return DueReminderPayload{}, err
	}
	return payload, nil
}
