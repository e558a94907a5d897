package jobs

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/rangoon-shop/rangoon-admin/internal/audit"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// QueueAudit carries audit re-deliveries; it is weighted above the default queue.
	QueueAudit = "audit"
	// TaskAuditFlush re-appends an audit entry whose inline append failed.
	TaskAuditFlush = "audit:flush"
)

// AuditFlushPayload is the entry to deliver, already attributed to its actor.
type AuditFlushPayload struct {
	Entry audit.Entry `json:"entry"`
}

// NewAuditFlushTask constructs the task for e. The task id is the entry id, so
// enqueueing the same entry twice yields one task.
func NewAuditFlushTask(e audit.Entry) (*asynq.Task, error) {
	if e.ID == "" || e.ActorID == "" {
		return nil, fmt.Errorf("jobs: audit entry requires id and actor")
	}
	body, err := json.Marshal(AuditFlushPayload{Entry: e})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAuditFlush, body,
		asynq.Queue(QueueAudit),
		asynq.TaskID(e.ID),
		asynq.MaxRetry(25),
	), nil
}
