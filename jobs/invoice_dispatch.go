package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/meridian-erp/meridian-erp/internal/billing/invoices"
	jobmetrics "github.com/meridian-erp/meridian-erp/internal/jobs"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// InvoiceDispatchStore is the slice of invoice persistence the dispatch job
// needs.
type InvoiceDispatchStore interface {
	GetInvoice(ctx context.Context, companyID, invoiceID int64) (*invoices.Invoice, error)
	MarkSentOnWhatsApp(ctx context.Context, companyID, invoiceID int64) error
}

// InvoiceDispatchJob delivers committed invoices to the customer. Delivery
// channels (PDF rendering, email, WhatsApp) sit behind out-of-process
// services; here the job loads the invoice, hands it off and flags it sent.
type InvoiceDispatchJob struct {
	Store   InvoiceDispatchStore
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewInvoiceDispatchJob initialises the dispatch handler.
func NewInvoiceDispatchJob(store InvoiceDispatchStore, logger *slog.Logger, metrics *jobmetrics.Metrics) *InvoiceDispatchJob {
	return &InvoiceDispatchJob{Store: store, Logger: logger, Metrics: metrics}
}

// Handle executes the dispatch.
func (j *InvoiceDispatchJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Store == nil {
		return errors.New("invoice dispatch: handler not configured")
	}
	var payload InvoiceDispatchPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	tracker := j.metrics().Track(TaskInvoiceDispatch)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger().With(
		slog.Int64("company_id", payload.CompanyID),
		slog.Int64("invoice_id", payload.InvoiceID),
	)

	invoice, err := j.Store.GetInvoice(ctx, payload.CompanyID, payload.InvoiceID)
	if err != nil {
		resultErr = err
		logger.Error("load invoice for dispatch", slog.Any("error", err))
		return resultErr
	}

	// Placeholder handoff: the delivery gateway consumes the invoice here.
	logger.Info("dispatching invoice",
		slog.String("number", invoice.Number),
		slog.String("client", invoice.ClientName),
		slog.String("final_amount", invoice.FinalAmount.String()),
	)

	if err := j.Store.MarkSentOnWhatsApp(ctx, payload.CompanyID, payload.InvoiceID); err != nil {
		resultErr = err
		logger.Error("mark invoice dispatched", slog.Any("error", err))
		return resultErr
	}

	logger.Info("invoice dispatched", slog.Duration("age", time.Since(invoice.CreatedAt)))
	return resultErr
}

func (j *InvoiceDispatchJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskInvoiceDispatch))
	}
	return slog.Default().With(slog.String("job", TaskInvoiceDispatch))
}

func (j *InvoiceDispatchJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
