package credits

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/meridian-erp/meridian-erp/internal/billing/customers"
	"github.com/meridian-erp/meridian-erp/internal/observability"
	"github.com/meridian-erp/meridian-erp/internal/platform/db"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// allocationAttempts bounds retries when concurrent payments race on the
// same customer's rows and the losing transaction aborts.
const allocationAttempts = 3

// RepositoryPort defines data access methods for the credit ledger.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetCredit(ctx context.Context, companyID, creditID int64) (*CustomerCredit, error)
	ListOutstanding(ctx context.Context, companyID, customerID int64) ([]CreditWithInvoice, error)
}

// CustomerDirectory resolves customers so ledger calls against unknown
// customers fail with not-found instead of an empty statement. A nil
// directory skips the check.
type CustomerDirectory interface {
	Get(ctx context.Context, companyID, customerID int64) (*customers.Customer, error)
	GetByNumber(ctx context.Context, companyID int64, number string) (*customers.Customer, error)
}

// ApplyPaymentRequest identifies the target ledger and the incoming amount.
// The customer may be addressed directly or through one of its credits.
type ApplyPaymentRequest struct {
	CompanyID  int64
	CustomerID *int64
	CreditID   *int64
	Amount     decimal.Decimal
	ActorID    int64
}

// Statement is the customer's outstanding ledger view. An empty Credits
// list means the customer is fully cleared.
type Statement struct {
	CompanyID        int64               `json:"company_id"`
	CustomerID       int64               `json:"customer_id"`
	Credits          []CreditWithInvoice `json:"credits"`
	TotalOutstanding decimal.Decimal     `json:"total_outstanding"`
	NoDueCredits     bool                `json:"no_due_credits"`
}

// Service handles credit ledger business logic.
type Service struct {
	repo      RepositoryPort
	customers CustomerDirectory
	audit     *shared.AuditLogger
	metrics   *observability.Metrics
	logger    *slog.Logger
	printer   *message.Printer
}

// NewService builds a Service instance.
func NewService(repo RepositoryPort, customers CustomerDirectory, audit *shared.AuditLogger, metrics *observability.Metrics, logger *slog.Logger) *Service {
	return &Service{
		repo:      repo,
		customers: customers,
		audit:     audit,
		metrics:   metrics,
		logger:    logger,
		printer:   message.NewPrinter(language.English),
	}
}

// ApplyPayment allocates an incoming payment across the customer's non-paid
// credits, oldest first, in one transaction. The payment is rejected up
// front when non-positive or larger than the total outstanding; nothing is
// mutated in that case.
func (s *Service) ApplyPayment(ctx context.Context, req ApplyPaymentRequest) (*Statement, error) {
	if !req.Amount.GreaterThan(decimal.Zero) {
		return nil, shared.NewValidationError(shared.Violationf("amount", "must be greater than zero"))
	}

	customerID, err := s.resolveCustomer(ctx, req)
	if err != nil {
		return nil, err
	}

	for attempt := 1; ; attempt++ {
		err = s.repo.WithTx(ctx, func(ctx context.Context, repo TxRepository) error {
			return s.allocate(ctx, repo, req.CompanyID, customerID, req.Amount)
		})
		if err == nil {
			break
		}
		if !db.IsSerializationFailure(err) {
			return nil, err
		}
		if attempt >= allocationAttempts {
			return nil, fmt.Errorf("%w: payment contention for customer %d", shared.ErrConflict, customerID)
		}
		if s.logger != nil {
			s.logger.Debug("payment allocation conflicted, retrying",
				slog.Int64("customer_id", customerID), slog.Int("attempt", attempt))
		}
	}

	if s.metrics != nil {
		s.metrics.PaymentApplied()
	}
	if s.audit != nil {
		if auditErr := s.audit.Record(ctx, shared.AuditLog{
			CompanyID: req.CompanyID,
			ActorID:   req.ActorID,
			Action:    "credit.payment.applied",
			Entity:    "customer",
			EntityID:  fmt.Sprintf("%d", customerID),
			Meta:      map[string]any{"amount": req.Amount.String()},
		}); auditErr != nil && s.logger != nil {
			s.logger.Warn("audit credit payment", slog.Any("error", auditErr))
		}
	}

	return s.Query(ctx, req.CompanyID, customerID)
}

// allocate walks the customer's non-paid credits oldest first inside the
// caller's transaction, spending the payment until it runs out.
func (s *Service) allocate(ctx context.Context, repo TxRepository, companyID, customerID int64, amount decimal.Decimal) error {
	credits, err := repo.ListOutstandingForUpdate(ctx, companyID, customerID)
	if err != nil {
		return err
	}

	total := decimal.Zero
	for _, credit := range credits {
		total = total.Add(credit.Outstanding)
	}
	if amount.GreaterThan(total) {
		return shared.NewValidationError(shared.Violationf("amount",
			"payment of %s exceeds total outstanding of %s",
			s.formatAmount(amount), s.formatAmount(total)))
	}

	remaining := amount
	for i := range credits {
		if !remaining.GreaterThan(decimal.Zero) {
			break
		}
		payable := decimal.Min(credits[i].Outstanding, remaining)
		if err := credits[i].Allocate(payable); err != nil {
			return err
		}
		if err := credits[i].CheckInvariant(); err != nil {
			return err
		}
		if err := repo.UpdateAllocation(ctx, credits[i]); err != nil {
			return err
		}
		remaining = remaining.Sub(payable)
	}
	if remaining.GreaterThan(decimal.Zero) {
		return fmt.Errorf("%w: %s left unallocated after walking all credits", shared.ErrConsistency, remaining)
	}
	return nil
}

// Query returns the customer's non-paid credits with invoice snapshots.
// A customer with nothing outstanding yields an explicit empty statement,
// not an error.
func (s *Service) Query(ctx context.Context, companyID, customerID int64) (*Statement, error) {
	credits, err := s.repo.ListOutstanding(ctx, companyID, customerID)
	if err != nil {
		return nil, err
	}
	total := decimal.Zero
	for _, credit := range credits {
		total = total.Add(credit.Outstanding)
	}
	if len(credits) == 0 && s.customers != nil {
		// Distinguish a cleared customer from one that does not exist.
		if _, err := s.customers.Get(ctx, companyID, customerID); err != nil {
			return nil, err
		}
	}
	if credits == nil {
		credits = []CreditWithInvoice{}
	}
	return &Statement{
		CompanyID:        companyID,
		CustomerID:       customerID,
		Credits:          credits,
		TotalOutstanding: total,
		NoDueCredits:     len(credits) == 0,
	}, nil
}

// QueryByNumber resolves the customer through its unique number within the
// company and returns the same statement as Query.
func (s *Service) QueryByNumber(ctx context.Context, companyID int64, number string) (*Statement, error) {
	if s.customers == nil {
		return nil, fmt.Errorf("%w: customer lookup by number unavailable", shared.ErrValidation)
	}
	customer, err := s.customers.GetByNumber(ctx, companyID, number)
	if err != nil {
		return nil, err
	}
	return s.Query(ctx, companyID, customer.ID)
}

func (s *Service) resolveCustomer(ctx context.Context, req ApplyPaymentRequest) (int64, error) {
	if req.CustomerID != nil {
		if s.customers != nil {
			if _, err := s.customers.Get(ctx, req.CompanyID, *req.CustomerID); err != nil {
				return 0, err
			}
		}
		return *req.CustomerID, nil
	}
	if req.CreditID == nil {
		return 0, shared.NewValidationError(shared.Violationf("customer_id", "customer_id or credit_id required"))
	}
	credit, err := s.repo.GetCredit(ctx, req.CompanyID, *req.CreditID)
	if err != nil {
		return 0, err
	}
	return credit.CustomerID, nil
}

func (s *Service) formatAmount(d decimal.Decimal) string {
	f, _ := d.Round(2).Float64()
	return s.printer.Sprintf("%.2f", f)
}
