package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskLedgerIntegrityScan verifies stored balances against transaction checkpoints.
	TaskLedgerIntegrityScan = "ledger:integrity_scan"
	// TaskLedgerActivityScan flags accounts with unusual daily outflow.
	TaskLedgerActivityScan = "ledger:activity_scan"
	// TaskSessionPurge removes expired login session records.
	TaskSessionPurge = "sessions:purge"
)

// IntegrityScanPayload tunes the ledger integrity scan.
type IntegrityScanPayload struct {
	// Concurrency bounds the number of accounts checked in parallel.
	Concurrency int `json:"concurrency,omitempty"`
}

// ActivityScanPayload tunes the account activity scan.
type ActivityScanPayload struct {
	WindowDays int     `json:"window_days,omitempty"`
	Z          float64 `json:"z,omitempty"`
}

// NewLedgerIntegrityScanTask constructs an integrity scan task.
func NewLedgerIntegrityScanTask(payload IntegrityScanPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLedgerIntegrityScan, data), nil
}

// NewLedgerActivityScanTask constructs an activity scan task.
func NewLedgerActivityScanTask(payload ActivityScanPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLedgerActivityScan, data), nil
}

// NewSessionPurgeTask constructs a session purge task.
func NewSessionPurgeTask() *asynq.Task {
	return asynq.NewTask(TaskSessionPurge, nil)
}
