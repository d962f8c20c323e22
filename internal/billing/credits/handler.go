package credits

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/platform/httpx"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// Handler manages credit ledger endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers credit routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/credits", h.query)
	r.Post("/credits/payments", h.applyPayment)
}

type applyPaymentRequest struct {
	CompanyID  int64           `json:"company_id"`
	CustomerID *int64          `json:"customer_id,omitempty"`
	CreditID   *int64          `json:"credit_id,omitempty"`
	Amount     decimal.Decimal `json:"amount"`
	ActorID    int64           `json:"actor_id"`
}

func (h *Handler) applyPayment(w http.ResponseWriter, r *http.Request) {
	var req applyPaymentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, shared.NewValidationError(shared.Violationf("body", "invalid JSON: %v", err)))
		return
	}
	if req.CompanyID <= 0 {
		httpx.RespondError(w, shared.NewValidationError(shared.Violationf("company_id", "required")))
		return
	}

	statement, err := h.service.ApplyPayment(r.Context(), ApplyPaymentRequest{
		CompanyID:  req.CompanyID,
		CustomerID: req.CustomerID,
		CreditID:   req.CreditID,
		Amount:     req.Amount,
		ActorID:    req.ActorID,
	})
	if err != nil {
		h.logger.Error("apply credit payment", slog.Int64("company_id", req.CompanyID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, statement)
}

func (h *Handler) query(w http.ResponseWriter, r *http.Request) {
	companyID, err := strconv.ParseInt(r.URL.Query().Get("company_id"), 10, 64)
	if err != nil || companyID <= 0 {
		httpx.RespondError(w, shared.NewValidationError(shared.Violationf("company_id", "required")))
		return
	}
	var statement *Statement
	if number := r.URL.Query().Get("customer_number"); number != "" {
		statement, err = h.service.QueryByNumber(r.Context(), companyID, number)
	} else {
		var customerID int64
		customerID, err = strconv.ParseInt(r.URL.Query().Get("customer_id"), 10, 64)
		if err != nil || customerID <= 0 {
			httpx.RespondError(w, shared.NewValidationError(shared.Violationf("customer_id", "customer_id or customer_number required")))
			return
		}
		statement, err = h.service.Query(r.Context(), companyID, customerID)
	}
	if err != nil {
		h.logger.Error("query credits", slog.Int64("company_id", companyID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, statement)
}
