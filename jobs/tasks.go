package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskInvoiceDispatch delivers a committed invoice to the customer
	// (PDF, email, WhatsApp). Enqueued only after the invoice transaction
	// commits.
	TaskInvoiceDispatch = "billing:invoice_dispatch"
	// TaskCreditOverdueScan flags long-outstanding customer credits.
	TaskCreditOverdueScan = "billing:credit_overdue_scan"
	// TaskIdempotencyCleanup prunes expired idempotency keys.
	TaskIdempotencyCleanup = "maintenance:idempotency_cleanup"
)

// InvoiceDispatchPayload identifies the invoice to deliver.
type InvoiceDispatchPayload struct {
	CompanyID int64 `json:"company_id"`
	InvoiceID int64 `json:"invoice_id"`
}

// NewInvoiceDispatchTask constructs an Asynq task.
func NewInvoiceDispatchTask(payload InvoiceDispatchPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskInvoiceDispatch, data), nil
}

// CreditOverdueScanPayload configures the overdue scan window.
type CreditOverdueScanPayload struct {
	GraceDays int `json:"grace_days"`
}

// NewCreditOverdueScanTask constructs an Asynq task.
func NewCreditOverdueScanTask(graceDays int) (*asynq.Task, error) {
	data, err := json.Marshal(CreditOverdueScanPayload{GraceDays: graceDays})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskCreditOverdueScan, data), nil
}

// IdempotencyCleanupPayload configures key retention.
type IdempotencyCleanupPayload struct {
	OlderThanHours int `json:"older_than_hours"`
}

// NewIdempotencyCleanupTask constructs an Asynq task.
func NewIdempotencyCleanupTask(olderThanHours int) (*asynq.Task, error) {
	data, err := json.Marshal(IdempotencyCleanupPayload{OlderThanHours: olderThanHours})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskIdempotencyCleanup, data), nil
}
