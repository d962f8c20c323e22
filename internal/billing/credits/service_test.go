package credits

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/meridian-erp/meridian-erp/internal/billing/customers"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

type memoryLedgerRepo struct {
	credits  map[int64]*CustomerCredit
	invoices map[int64]struct {
		number string
		date   time.Time
		amount decimal.Decimal
	}
	nextID int64

	// txAborts makes that many transactions fail with a serialization
	// error before one is allowed through.
	txAborts int
}

func newMemoryLedgerRepo() *memoryLedgerRepo {
	return &memoryLedgerRepo{
		credits: make(map[int64]*CustomerCredit),
		invoices: make(map[int64]struct {
			number string
			date   time.Time
			amount decimal.Decimal
		}),
	}
}

func (r *memoryLedgerRepo) open(t *testing.T, companyID, customerID int64, totalDue, paid string) *CustomerCredit {
	t.Helper()
	r.nextID++
	invoiceID := r.nextID + 1000
	r.invoices[invoiceID] = struct {
		number string
		date   time.Time
		amount decimal.Decimal
	}{
		number: fmt.Sprintf("ACME2506%03d", r.nextID),
		date:   time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		amount: decimal.RequireFromString(totalDue),
	}
	amountPaid := decimal.RequireFromString(paid)
	outstanding := decimal.RequireFromString(totalDue).Sub(amountPaid)
	credit := &CustomerCredit{
		ID:          r.nextID,
		CompanyID:   companyID,
		CustomerID:  customerID,
		InvoiceID:   invoiceID,
		TotalDue:    decimal.RequireFromString(totalDue),
		AmountPaid:  amountPaid,
		Outstanding: outstanding,
		Status:      DeriveStatus(amountPaid, outstanding),
	}
	r.credits[credit.ID] = credit
	return credit
}

func (r *memoryLedgerRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r.txAborts > 0 {
		r.txAborts--
		return &pgconn.PgError{Code: "40001"}
	}
	// Snapshot so a failing callback leaves the ledger untouched, matching
	// transactional rollback.
	snapshot := make(map[int64]*CustomerCredit, len(r.credits))
	for id, credit := range r.credits {
		copied := *credit
		snapshot[id] = &copied
	}
	if err := fn(ctx, (*memoryTxRepo)(r)); err != nil {
		r.credits = snapshot
		return err
	}
	return nil
}

func (r *memoryLedgerRepo) GetCredit(ctx context.Context, companyID, creditID int64) (*CustomerCredit, error) {
	credit, ok := r.credits[creditID]
	if !ok || credit.CompanyID != companyID {
		return nil, fmt.Errorf("credit %d: %w", creditID, shared.ErrNotFound)
	}
	copied := *credit
	return &copied, nil
}

func (r *memoryLedgerRepo) ListOutstanding(ctx context.Context, companyID, customerID int64) ([]CreditWithInvoice, error) {
	var out []CreditWithInvoice
	for _, credit := range r.sorted(companyID, customerID) {
		inv := r.invoices[credit.InvoiceID]
		out = append(out, CreditWithInvoice{
			CustomerCredit:     *credit,
			InvoiceNumber:      inv.number,
			InvoiceDate:        inv.date,
			InvoiceFinalAmount: inv.amount,
		})
	}
	return out, nil
}

func (r *memoryLedgerRepo) sorted(companyID, customerID int64) []*CustomerCredit {
	var credits []*CustomerCredit
	for _, credit := range r.credits {
		if credit.CompanyID == companyID && credit.CustomerID == customerID && credit.Status != StatusPaid {
			credits = append(credits, credit)
		}
	}
	sort.Slice(credits, func(i, j int) bool { return credits[i].ID < credits[j].ID })
	return credits
}

type memoryTxRepo memoryLedgerRepo

func (r *memoryTxRepo) ListOutstandingForUpdate(ctx context.Context, companyID, customerID int64) ([]CustomerCredit, error) {
	var out []CustomerCredit
	for _, credit := range (*memoryLedgerRepo)(r).sorted(companyID, customerID) {
		out = append(out, *credit)
	}
	return out, nil
}

func (r *memoryTxRepo) UpdateAllocation(ctx context.Context, credit CustomerCredit) error {
	stored, ok := r.credits[credit.ID]
	if !ok {
		return fmt.Errorf("credit %d: %w", credit.ID, shared.ErrNotFound)
	}
	*stored = credit
	return nil
}

// fakeCustomerDirectory knows the customers listed in it and nobody else.
type fakeCustomerDirectory map[int64]string

func (d fakeCustomerDirectory) Get(ctx context.Context, companyID, customerID int64) (*customers.Customer, error) {
	number, ok := d[customerID]
	if !ok {
		return nil, fmt.Errorf("customer %d: %w", customerID, shared.ErrNotFound)
	}
	return &customers.Customer{ID: customerID, CompanyID: companyID, Number: number}, nil
}

func (d fakeCustomerDirectory) GetByNumber(ctx context.Context, companyID int64, number string) (*customers.Customer, error) {
	for id, n := range d {
		if n == number {
			return &customers.Customer{ID: id, CompanyID: companyID, Number: number}, nil
		}
	}
	return nil, fmt.Errorf("customer %s: %w", number, shared.ErrNotFound)
}

func newLedgerService(repo RepositoryPort) *Service {
	return NewService(repo, nil, nil, nil, nil)
}

func TestApplyPaymentFIFO(t *testing.T) {
	repo := newMemoryLedgerRepo()
	c1 := repo.open(t, 1, 7, "100", "0")
	c2 := repo.open(t, 1, 7, "50", "0")
	svc := newLedgerService(repo)

	customerID := int64(7)
	statement, err := svc.ApplyPayment(context.Background(), ApplyPaymentRequest{
		CompanyID:  1,
		CustomerID: &customerID,
		Amount:     dec("120"),
	})
	require.NoError(t, err)

	require.Equal(t, StatusPaid, repo.credits[c1.ID].Status)
	require.True(t, repo.credits[c1.ID].Outstanding.IsZero())
	require.Equal(t, StatusPartial, repo.credits[c2.ID].Status)
	require.True(t, repo.credits[c2.ID].Outstanding.Equal(dec("30")), "got %s", repo.credits[c2.ID].Outstanding)

	require.Len(t, statement.Credits, 1)
	require.Equal(t, c2.ID, statement.Credits[0].ID)
	require.True(t, statement.TotalOutstanding.Equal(dec("30")))
}

func TestApplyPaymentExactClear(t *testing.T) {
	repo := newMemoryLedgerRepo()
	repo.open(t, 1, 7, "100", "0")
	repo.open(t, 1, 7, "50", "0")
	svc := newLedgerService(repo)

	customerID := int64(7)
	statement, err := svc.ApplyPayment(context.Background(), ApplyPaymentRequest{
		CompanyID:  1,
		CustomerID: &customerID,
		Amount:     dec("150"),
	})
	require.NoError(t, err)
	require.Empty(t, statement.Credits)
	require.True(t, statement.NoDueCredits)
	require.True(t, statement.TotalOutstanding.IsZero())
}

func TestApplyPaymentOverpaymentRejected(t *testing.T) {
	repo := newMemoryLedgerRepo()
	c1 := repo.open(t, 1, 7, "100", "0")
	c2 := repo.open(t, 1, 7, "50", "20")
	svc := newLedgerService(repo)

	customerID := int64(7)
	_, err := svc.ApplyPayment(context.Background(), ApplyPaymentRequest{
		CompanyID:  1,
		CustomerID: &customerID,
		Amount:     dec("200"),
	})
	require.ErrorIs(t, err, shared.ErrValidation)
	require.True(t, strings.Contains(err.Error(), "130.00"), "message must carry the limit: %s", err.Error())

	// Nothing mutated.
	require.True(t, repo.credits[c1.ID].Outstanding.Equal(dec("100")))
	require.True(t, repo.credits[c2.ID].Outstanding.Equal(dec("30")))
	require.Equal(t, StatusDue, repo.credits[c1.ID].Status)
	require.Equal(t, StatusPartial, repo.credits[c2.ID].Status)
}

func TestApplyPaymentNonPositiveAmount(t *testing.T) {
	repo := newMemoryLedgerRepo()
	repo.open(t, 1, 7, "100", "0")
	svc := newLedgerService(repo)

	customerID := int64(7)
	for _, amount := range []string{"0", "-5"} {
		_, err := svc.ApplyPayment(context.Background(), ApplyPaymentRequest{
			CompanyID:  1,
			CustomerID: &customerID,
			Amount:     dec(amount),
		})
		require.ErrorIs(t, err, shared.ErrValidation, "amount %s", amount)
	}
}

func TestApplyPaymentNoDueCredits(t *testing.T) {
	repo := newMemoryLedgerRepo()
	svc := newLedgerService(repo)

	customerID := int64(7)
	_, err := svc.ApplyPayment(context.Background(), ApplyPaymentRequest{
		CompanyID:  1,
		CustomerID: &customerID,
		Amount:     dec("10"),
	})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestApplyPaymentResolvesCustomerFromCredit(t *testing.T) {
	repo := newMemoryLedgerRepo()
	credit := repo.open(t, 1, 7, "100", "0")
	svc := newLedgerService(repo)

	statement, err := svc.ApplyPayment(context.Background(), ApplyPaymentRequest{
		CompanyID: 1,
		CreditID:  &credit.ID,
		Amount:    dec("100"),
	})
	require.NoError(t, err)
	require.Equal(t, int64(7), statement.CustomerID)
	require.True(t, statement.NoDueCredits)
}

func TestApplyPaymentRequiresTarget(t *testing.T) {
	svc := newLedgerService(newMemoryLedgerRepo())

	_, err := svc.ApplyPayment(context.Background(), ApplyPaymentRequest{CompanyID: 1, Amount: dec("10")})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestApplyPaymentInvariantAcrossWalk(t *testing.T) {
	repo := newMemoryLedgerRepo()
	repo.open(t, 1, 7, "33.33", "0")
	repo.open(t, 1, 7, "66.67", "0")
	repo.open(t, 1, 7, "10.01", "0")
	svc := newLedgerService(repo)

	customerID := int64(7)
	_, err := svc.ApplyPayment(context.Background(), ApplyPaymentRequest{
		CompanyID:  1,
		CustomerID: &customerID,
		Amount:     dec("100.00"),
	})
	require.NoError(t, err)

	for _, credit := range repo.credits {
		require.NoError(t, credit.CheckInvariant())
	}
}

func TestQueryIdempotent(t *testing.T) {
	repo := newMemoryLedgerRepo()
	repo.open(t, 1, 7, "100", "25")
	svc := newLedgerService(repo)

	first, err := svc.Query(context.Background(), 1, 7)
	require.NoError(t, err)
	second, err := svc.Query(context.Background(), 1, 7)
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.True(t, first.TotalOutstanding.Equal(dec("75")))
}

func TestQueryEmptyStatement(t *testing.T) {
	svc := newLedgerService(newMemoryLedgerRepo())

	statement, err := svc.Query(context.Background(), 1, 7)
	require.NoError(t, err)
	require.NotNil(t, statement.Credits)
	require.Empty(t, statement.Credits)
	require.True(t, statement.NoDueCredits)
}

func TestApplyPaymentRetriesAbortedTx(t *testing.T) {
	repo := newMemoryLedgerRepo()
	credit := repo.open(t, 1, 7, "100", "0")
	repo.txAborts = 2
	svc := newLedgerService(repo)

	customerID := int64(7)
	statement, err := svc.ApplyPayment(context.Background(), ApplyPaymentRequest{
		CompanyID:  1,
		CustomerID: &customerID,
		Amount:     dec("100"),
	})
	require.NoError(t, err)
	require.True(t, statement.NoDueCredits)
	require.Equal(t, StatusPaid, repo.credits[credit.ID].Status)
}

func TestApplyPaymentAbortedTxExhaustsRetries(t *testing.T) {
	repo := newMemoryLedgerRepo()
	credit := repo.open(t, 1, 7, "100", "0")
	repo.txAborts = 3
	svc := newLedgerService(repo)

	customerID := int64(7)
	_, err := svc.ApplyPayment(context.Background(), ApplyPaymentRequest{
		CompanyID:  1,
		CustomerID: &customerID,
		Amount:     dec("100"),
	})
	require.ErrorIs(t, err, shared.ErrConflict)
	require.True(t, repo.credits[credit.ID].Outstanding.Equal(dec("100")))
}

func TestApplyPaymentUnknownCustomer(t *testing.T) {
	repo := newMemoryLedgerRepo()
	repo.open(t, 1, 7, "100", "0")
	svc := NewService(repo, fakeCustomerDirectory{7: "C-007"}, nil, nil, nil)

	customerID := int64(99)
	_, err := svc.ApplyPayment(context.Background(), ApplyPaymentRequest{
		CompanyID:  1,
		CustomerID: &customerID,
		Amount:     dec("10"),
	})
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestQueryUnknownCustomer(t *testing.T) {
	svc := NewService(newMemoryLedgerRepo(), fakeCustomerDirectory{7: "C-007"}, nil, nil, nil)

	_, err := svc.Query(context.Background(), 1, 99)
	require.ErrorIs(t, err, shared.ErrNotFound)

	statement, err := svc.Query(context.Background(), 1, 7)
	require.NoError(t, err)
	require.True(t, statement.NoDueCredits)
}

func TestQueryByNumber(t *testing.T) {
	repo := newMemoryLedgerRepo()
	repo.open(t, 1, 7, "100", "25")
	svc := NewService(repo, fakeCustomerDirectory{7: "C-007"}, nil, nil, nil)

	statement, err := svc.QueryByNumber(context.Background(), 1, "C-007")
	require.NoError(t, err)
	require.Equal(t, int64(7), statement.CustomerID)
	require.True(t, statement.TotalOutstanding.Equal(dec("75")))

	_, err = svc.QueryByNumber(context.Background(), 1, "missing")
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestTenantScopedCredits(t *testing.T) {
	repo := newMemoryLedgerRepo()
	repo.open(t, 1, 7, "100", "0")
	repo.open(t, 2, 7, "40", "0")
	svc := newLedgerService(repo)

	statement, err := svc.Query(context.Background(), 1, 7)
	require.NoError(t, err)
	require.Len(t, statement.Credits, 1)
	require.True(t, statement.TotalOutstanding.Equal(dec("100")))
}
