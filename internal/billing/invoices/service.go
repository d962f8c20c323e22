package invoices

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/billing/credits"
	"github.com/meridian-erp/meridian-erp/internal/billing/customers"
	"github.com/meridian-erp/meridian-erp/internal/billing/pricing"
	"github.com/meridian-erp/meridian-erp/internal/masterdata/companies"
	"github.com/meridian-erp/meridian-erp/internal/masterdata/items"
	"github.com/meridian-erp/meridian-erp/internal/observability"
	"github.com/meridian-erp/meridian-erp/internal/platform/db"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// sequencerAttempts bounds retries when two concurrent creations race for
// the same invoice number.
const sequencerAttempts = 3

// RepositoryPort defines data access methods for invoices.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetInvoice(ctx context.Context, companyID, invoiceID int64) (*Invoice, error)
	ListInvoices(ctx context.Context, req ListInvoicesRequest) ([]Invoice, error)
}

// PricingResolver resolves an item or variant to its unit price and
// effective tax percentage.
type PricingResolver interface {
	Resolve(ctx context.Context, companyID, itemID int64, variantID *int64) (*items.ResolvedPricing, error)
}

// CompanyDirectory resolves the tenant and its subscription package.
type CompanyDirectory interface {
	GetCompany(ctx context.Context, companyID int64) (*companies.Company, error)
	GetPackage(ctx context.Context, packageID int64) (*companies.Package, error)
}

// Dispatcher publishes the invoice-created event after commit. Dispatch
// failures are logged, never propagated; the invoice is already committed.
type Dispatcher interface {
	InvoiceCreated(ctx context.Context, companyID, invoiceID int64) error
}

// Service orchestrates invoice creation: pricing, quota, sequencing and the
// atomic write.
type Service struct {
	repo       RepositoryPort
	pricing    PricingResolver
	companies  CompanyDirectory
	dispatcher Dispatcher
	audit      *shared.AuditLogger
	metrics    *observability.Metrics
	logger     *slog.Logger
	now        func() time.Time
}

// NewService builds a Service instance. dispatcher, audit and metrics may
// be nil.
func NewService(repo RepositoryPort, pricing PricingResolver, directory CompanyDirectory, dispatcher Dispatcher, audit *shared.AuditLogger, metrics *observability.Metrics, logger *slog.Logger) *Service {
	return &Service{
		repo:       repo,
		pricing:    pricing,
		companies:  directory,
		dispatcher: dispatcher,
		audit:      audit,
		metrics:    metrics,
		logger:     logger,
		now:        time.Now,
	}
}

// Create prices the order, enforces the package quota and writes the
// invoice header, items, customer snapshot and opening credit in one
// transaction. Nothing is persisted on any failure.
func (s *Service) Create(ctx context.Context, req CreateInvoiceRequest) (*Invoice, error) {
	if err := s.validate(req); err != nil {
		return nil, err
	}
	invoiceDate, err := req.parsedDate()
	if err != nil {
		return nil, shared.NewValidationError(shared.Violationf("invoice_date", "must be a valid date: %v", err))
	}

	company, err := s.companies.GetCompany(ctx, req.CompanyID)
	if err != nil {
		return nil, err
	}
	pkg, err := s.companies.GetPackage(ctx, company.PackageID)
	if err != nil {
		return nil, err
	}
	limit, err := pkg.InvoiceLimitFor(company.Subscription)
	if err != nil {
		return nil, err
	}
	periodStart, periodEnd, err := shared.SubscriptionPeriod(company.Subscription, s.now())
	if err != nil {
		return nil, err
	}

	lines, lineNames, err := s.resolveLines(ctx, req)
	if err != nil {
		return nil, err
	}
	deliveryCharge := decimal.Zero
	if req.DeliveryCharge != nil {
		deliveryCharge = *req.DeliveryCharge
	}
	breakdown := pricing.Calculate(lines, req.ServiceCharge.toCharge(), req.Discount.toCharge(), deliveryCharge)

	var invoiceID int64
	for attempt := 1; ; attempt++ {
		invoiceID, err = s.writeOnce(ctx, req, company, breakdown, lineNames, invoiceDate, limit, periodStart, periodEnd)
		if err == nil {
			break
		}
		if !db.IsUniqueViolation(err, "") && !db.IsSerializationFailure(err) {
			return nil, err
		}
		if s.metrics != nil {
			s.metrics.SequencerRetried()
		}
		if attempt >= sequencerAttempts {
			return nil, fmt.Errorf("%w: invoice write contention for company %d on %s",
				shared.ErrConflict, company.ID, invoiceDate.Format("2006-01-02"))
		}
		if s.logger != nil {
			s.logger.Debug("invoice write conflicted, retrying",
				slog.Int64("company_id", company.ID), slog.Int("attempt", attempt))
		}
	}

	if s.metrics != nil {
		s.metrics.InvoiceCreated()
	}
	if s.audit != nil {
		if auditErr := s.audit.Record(ctx, shared.AuditLog{
			CompanyID: company.ID,
			ActorID:   req.IssuedBy,
			Action:    "invoice.created",
			Entity:    "invoice",
			EntityID:  fmt.Sprintf("%d", invoiceID),
			Meta:      map[string]any{"final_amount": breakdown.FinalAmount.String(), "payment_method": req.PaymentMethod},
		}); auditErr != nil && s.logger != nil {
			s.logger.Warn("audit invoice creation", slog.Any("error", auditErr))
		}
	}
	if s.dispatcher != nil {
		if dispatchErr := s.dispatcher.InvoiceCreated(ctx, company.ID, invoiceID); dispatchErr != nil && s.logger != nil {
			s.logger.Warn("enqueue invoice dispatch",
				slog.Int64("invoice_id", invoiceID), slog.Any("error", dispatchErr))
		}
	}

	return s.repo.GetInvoice(ctx, company.ID, invoiceID)
}

// writeOnce runs one transactional attempt. A unique violation on the
// invoice number surfaces to the caller's retry loop.
func (s *Service) writeOnce(ctx context.Context, req CreateInvoiceRequest, company *companies.Company,
	breakdown pricing.Breakdown, lineNames []string, invoiceDate time.Time,
	limit int64, periodStart, periodEnd time.Time) (int64, error) {

	var invoiceID int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, repo TxRepository) error {
		count, err := repo.CountInPeriod(ctx, company.ID, periodStart, periodEnd)
		if err != nil {
			return err
		}
		if count >= limit {
			return fmt.Errorf("%w: %d of %d invoices used this %s period",
				shared.ErrQuotaExceeded, count, limit, company.Subscription)
		}

		customer, err := repo.UpsertCustomer(ctx, customers.UpsertInput{
			CompanyID: company.ID,
			Number:    req.Number,
			Name:      req.ClientName,
			Email:     req.Email,
			Address:   req.Address,
			Pincode:   req.Pincode,
		})
		if err != nil {
			return err
		}

		seq, err := repo.NextSequence(ctx, company.ID, invoiceDate)
		if err != nil {
			return err
		}

		invoiceID, err = repo.InsertInvoice(ctx, Invoice{
			CompanyID:            company.ID,
			CustomerID:           customer.ID,
			Number:               FormatNumber(company.Code, invoiceDate, seq),
			Sequence:             seq,
			InvoiceDate:          invoiceDate,
			ClientName:           req.ClientName,
			ClientNumber:         req.Number,
			ClientEmail:          req.Email,
			SubTotal:             breakdown.Subtotal,
			ServiceChargeAmount:  breakdown.ServiceChargeAmount,
			ServiceChargePercent: breakdown.ServiceChargePercent,
			ServiceChargeGST:     breakdown.ServiceChargeGST,
			ServiceChargeFinal:   breakdown.ServiceChargeFinal,
			DiscountAmount:       breakdown.DiscountAmount,
			DiscountPercentage:   breakdown.DiscountPercentage,
			DeliveryCharge:       breakdown.DeliveryCharge,
			FinalAmount:          breakdown.FinalAmount,
			PaymentMethod:        PaymentMethod(req.PaymentMethod),
			BankAccountID:        req.BankAccountID,
			IssuedBy:             req.IssuedBy,
		})
		if err != nil {
			return err
		}

		invoiceItems := make([]InvoiceItem, len(breakdown.Lines))
		for i, line := range breakdown.Lines {
			invoiceItems[i] = InvoiceItem{
				InvoiceID:     invoiceID,
				ItemID:        line.ItemID,
				VariantID:     line.VariantID,
				BatchID:       line.BatchID,
				ItemName:      lineNames[i],
				SaleBy:        req.Items[i].SaleBy,
				Quantity:      line.Quantity,
				UnitPrice:     line.UnitPrice,
				TaxPercentage: line.TaxPercent,
				TaxAmount:     line.TaxAmount,
				Total:         line.LineTotal,
			}
		}
		if err := repo.InsertItems(ctx, invoiceID, invoiceItems); err != nil {
			return err
		}

		if err := repo.InsertCustomerHistory(ctx, CustomerHistory{
			CompanyID:  company.ID,
			CustomerID: customer.ID,
			InvoiceID:  invoiceID,
			Amount:     breakdown.FinalAmount,
			Note:       "invoice " + FormatNumber(company.Code, invoiceDate, seq),
		}); err != nil {
			return err
		}

		if PaymentMethod(req.PaymentMethod) == PaymentCredit {
			credit, err := s.openingCredit(company.ID, customer.ID, invoiceID, breakdown.FinalAmount, req)
			if err != nil {
				return err
			}
			if _, err := repo.OpenCredit(ctx, credit); err != nil {
				return err
			}
		}
		return nil
	})
	return invoiceID, err
}

// openingCredit builds the initial credit for a credit-financed invoice.
// Absent creditPaymentType means full deferral.
func (s *Service) openingCredit(companyID, customerID, invoiceID int64, totalDue decimal.Decimal, req CreateInvoiceRequest) (credits.CustomerCredit, error) {
	paymentType := credits.CreditPaymentFull
	if req.CreditPaymentType != nil {
		paymentType = credits.CreditPaymentType(*req.CreditPaymentType)
	}
	partial := decimal.Zero
	if req.PartialAmount != nil {
		partial = *req.PartialAmount
	}
	return credits.Open(companyID, customerID, invoiceID, totalDue, paymentType, partial)
}

// Get loads an invoice with its items.
func (s *Service) Get(ctx context.Context, companyID, invoiceID int64) (*Invoice, error) {
	return s.repo.GetInvoice(ctx, companyID, invoiceID)
}

// List returns the company's newest invoices matching the filters.
func (s *Service) List(ctx context.Context, req ListInvoicesRequest) ([]Invoice, error) {
	return s.repo.ListInvoices(ctx, req)
}

func (s *Service) validate(req CreateInvoiceRequest) error {
	violations := req.checkAmounts()
	if !PaymentMethod(req.PaymentMethod).Valid() {
		violations = append(violations, shared.Violationf("payment_method", "must be one of cash, online, card, credit, self"))
	}
	if len(req.Items) == 0 {
		violations = append(violations, shared.Violationf("items", "at least one line required"))
	}
	if len(violations) > 0 {
		return shared.NewValidationError(violations...)
	}
	return nil
}

// resolveLines turns line requests into priced lines, keeping the client's
// submission order. A request-supplied unit price overrides the resolved
// reference price.
func (s *Service) resolveLines(ctx context.Context, req CreateInvoiceRequest) ([]pricing.Line, []string, error) {
	lines := make([]pricing.Line, len(req.Items))
	names := make([]string, len(req.Items))
	for i, lr := range req.Items {
		resolved, err := s.pricing.Resolve(ctx, req.CompanyID, lr.ItemID, lr.VariantID)
		if err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				return nil, nil, fmt.Errorf("line %d: %w", i, err)
			}
			return nil, nil, err
		}
		unitPrice := resolved.UnitPrice
		if lr.UnitPrice != nil {
			unitPrice = *lr.UnitPrice
		}
		lines[i] = pricing.Line{
			ItemID:     lr.ItemID,
			VariantID:  lr.VariantID,
			BatchID:    lr.BatchID,
			Quantity:   lr.Quantity,
			UnitPrice:  unitPrice,
			TaxPercent: resolved.TaxPercent,
		}
		names[i] = resolved.ItemName
	}
	return lines, names, nil
}
