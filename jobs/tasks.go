package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskLedgerReconcile is the task type for the balance cache reconciliation.
	TaskLedgerReconcile = "ledger:reconcile"
)

// ReconcilePayload configures one reconciliation run.
type ReconcilePayload struct {
	Repair    bool   `json:"repair"`
	RequestID string `json:"request_id"`
}

// NewReconcileTask constructs an Asynq task. Cron registrations reuse one
// task, so the request id is left empty unless a caller supplies it.
func NewReconcileTask(payload ReconcilePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLedgerReconcile, data, asynq.Queue(QueueDefault)), nil
}
