package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	jobmetrics "github.com/meridian-erp/meridian-erp/internal/jobs"
)

// CreditOverdueScanJob flags customer credits that have stayed outstanding
// past the grace window, so collections can follow up.
type CreditOverdueScanJob struct {
	Pool    *pgxpool.Pool
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewCreditOverdueScanJob initialises the overdue scan handler.
func NewCreditOverdueScanJob(pool *pgxpool.Pool, logger *slog.Logger, metrics *jobmetrics.Metrics) *CreditOverdueScanJob {
	return &CreditOverdueScanJob{
		Pool:    pool,
		Logger:  logger,
		Metrics: metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

type overdueCredit struct {
	CompanyID   int64
	CustomerID  int64
	CreditID    int64
	Outstanding string
	AgeDays     int
}

// Handle executes the overdue scan logic.
func (j *CreditOverdueScanJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil {
		return errors.New("credit overdue scan: handler not configured")
	}
	var payload CreditOverdueScanPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.GraceDays <= 0 {
		payload.GraceDays = 30
	}

	tracker := j.metrics().Track(TaskCreditOverdueScan)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger().With(slog.Int("grace_days", payload.GraceDays))
	logger.Info("starting overdue credit scan")

	overdue, err := j.scan(ctx, payload.GraceDays)
	if err != nil {
		resultErr = err
		logger.Error("scan failed", slog.Any("error", err))
		return resultErr
	}

	byCompany := make(map[int64]int)
	for _, c := range overdue {
		logger.Warn("overdue customer credit",
			slog.Int64("company_id", c.CompanyID),
			slog.Int64("customer_id", c.CustomerID),
			slog.Int64("credit_id", c.CreditID),
			slog.String("outstanding", c.Outstanding),
			slog.Int("age_days", c.AgeDays),
		)
		byCompany[c.CompanyID]++
	}
	for companyID, count := range byCompany {
		j.metrics().AddOverdueCredits(companyID, count)
	}

	logger.Info("completed overdue credit scan", slog.Int("overdue", len(overdue)))
	return resultErr
}

func (j *CreditOverdueScanJob) scan(ctx context.Context, graceDays int) ([]overdueCredit, error) {
	if j.Pool == nil {
		return nil, errors.New("credit overdue scan: pool not configured")
	}
	cutoff := j.now().AddDate(0, 0, -graceDays)
	rows, err := j.Pool.Query(ctx, `SELECT company_id, customer_id, id, outstanding::text, created_at
FROM customer_credits WHERE status <> 'paid' AND created_at < $1 ORDER BY company_id, customer_id, id`, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	now := j.now()
	var overdue []overdueCredit
	for rows.Next() {
		var (
			c         overdueCredit
			createdAt time.Time
		)
		if err := rows.Scan(&c.CompanyID, &c.CustomerID, &c.CreditID, &c.Outstanding, &createdAt); err != nil {
			return nil, err
		}
		c.AgeDays = int(now.Sub(createdAt).Hours() / 24)
		overdue = append(overdue, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return overdue, nil
}

func (j *CreditOverdueScanJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskCreditOverdueScan))
	}
	return slog.Default().With(slog.String("job", TaskCreditOverdueScan))
}

func (j *CreditOverdueScanJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *CreditOverdueScanJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
