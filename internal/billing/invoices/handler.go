package invoices

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/meridian-erp/meridian-erp/internal/platform/httpx"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// Handler wires HTTP endpoints for invoices.
type Handler struct {
	logger      *slog.Logger
	service     *Service
	idempotency *shared.IdempotencyStore
	validator   *validator.Validate
}

// NewHandler constructs a Handler instance. idempotency may be nil, which
// disables Idempotency-Key handling.
func NewHandler(logger *slog.Logger, service *Service, idempotency *shared.IdempotencyStore) *Handler {
	return &Handler{
		logger:      logger,
		service:     service,
		idempotency: idempotency,
		validator:   validator.New(),
	}
}

// MountRoutes registers invoice routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/invoices", h.createInvoice)
	r.Get("/invoices", h.listInvoices)
	r.Get("/invoices/{id}", h.getInvoice)
}

func (h *Handler) createInvoice(w http.ResponseWriter, r *http.Request) {
	var req CreateInvoiceRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, validationProblem(err))
		return
	}

	idempotencyKey := r.Header.Get("Idempotency-Key")
	if h.idempotency != nil && idempotencyKey != "" {
		if err := h.idempotency.CheckAndInsert(r.Context(), idempotencyKey, "billing.invoices"); err != nil {
			httpx.RespondError(w, err)
			return
		}
	}

	invoice, err := h.service.Create(r.Context(), req)
	if err != nil {
		// Release the key so the client can retry after fixing the
		// request; replays of committed invoices stay blocked.
		if h.idempotency != nil && idempotencyKey != "" {
			if delErr := h.idempotency.Delete(r.Context(), idempotencyKey); delErr != nil {
				h.logger.Warn("release idempotency key", slog.Any("error", delErr))
			}
		}
		h.logger.Error("create invoice", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}

	httpx.JSON(w, http.StatusCreated, invoice)
}

func (h *Handler) getInvoice(w http.ResponseWriter, r *http.Request) {
	companyID, err := queryInt64(r, "company_id")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid query", "company_id must be an integer")
		return
	}
	invoiceID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid path", "invoice id must be an integer")
		return
	}

	invoice, err := h.service.Get(r.Context(), companyID, invoiceID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, invoice)
}

func (h *Handler) listInvoices(w http.ResponseWriter, r *http.Request) {
	companyID, err := queryInt64(r, "company_id")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid query", "company_id must be an integer")
		return
	}
	req := ListInvoicesRequest{CompanyID: companyID}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.ParseInt(raw, 10, 32)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Invalid query", "limit must be an integer")
			return
		}
		req.Limit = int32(limit)
	}
	if raw := r.URL.Query().Get("customer_id"); raw != "" {
		req.CustomerID, err = strconv.ParseInt(raw, 10, 64)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Invalid query", "customer_id must be an integer")
			return
		}
	}
	for _, q := range []struct {
		name string
		dst  **time.Time
	}{{"date_from", &req.DateFrom}, {"date_to", &req.DateTo}} {
		raw := r.URL.Query().Get(q.name)
		if raw == "" {
			continue
		}
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Invalid query", q.name+" must be a YYYY-MM-DD date")
			return
		}
		*q.dst = &parsed
	}

	invoices, err := h.service.List(r.Context(), req)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if invoices == nil {
		invoices = []Invoice{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"invoices": invoices})
}

func queryInt64(r *http.Request, name string) (int64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, errors.New(name + " required")
	}
	return strconv.ParseInt(raw, 10, 64)
}

// validationProblem flattens validator.ValidationErrors into field
// violations.
func validationProblem(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return shared.NewValidationError(shared.Violationf("request", "%v", err))
	}
	violations := make([]shared.FieldViolation, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		violations = append(violations, shared.Violationf(fe.Field(), "failed %s validation", fe.Tag()))
	}
	return shared.NewValidationError(violations...)
}
