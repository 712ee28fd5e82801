package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kislikjeka/walletcore/internal/shared/apierror"
	"github.com/kislikjeka/walletcore/internal/wallet"
	"github.com/kislikjeka/walletcore/pkg/money"
)

// AdminService defines the privileged operations the handler needs.
type AdminService interface {
	RecordSystemCredit(ctx context.Context, in wallet.SystemCreditInput) (*wallet.Transaction, error)
	VerifyAccountBalance(ctx context.Context, accountID uuid.UUID) (decimal.Decimal, error)
}

// AdminHandler handles privileged HTTP requests. Its routes are mounted
// behind the service-token middleware.
type AdminHandler struct {
	service AdminService
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(service AdminService) *AdminHandler {
	return &AdminHandler{service: service}
}

// SystemCreditRequest represents a system credit request
type SystemCreditRequest struct {
	AccountID   string          `json:"accountId"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	Description *string         `json:"description,omitempty"`
}

// VerificationResponse reports a balance recomputed two independent ways
type VerificationResponse struct {
	AccountID string `json:"accountId"`
	Balance   string `json:"balance"`
	Verified  bool   `json:"verified"`
}

// CreateSystemCredit handles POST /admin/credits
func (h *AdminHandler) CreateSystemCredit(w http.ResponseWriter, r *http.Request) {
	var req SystemCreditRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondEnvelope(w, apierror.BadRequest("invalid request body", r.URL.Path))
		return
	}

	fieldErrors := make(map[string]string)
	accountID, err := uuid.Parse(req.AccountID)
	if err != nil {
		fieldErrors["accountId"] = "must be a valid account id"
	}
	currency, err := money.ParseCurrency(req.Currency)
	if err != nil {
		fieldErrors["currency"] = "must be one of EUR, USD, CHF, GBP"
	}
	if !money.IsPositive(req.Amount) {
		fieldErrors["amount"] = "must be a positive amount"
	}
	if len(fieldErrors) > 0 {
		respondEnvelope(w, apierror.Validation(r.URL.Path, fieldErrors))
		return
	}

	tx, err := h.service.RecordSystemCredit(r.Context(), wallet.SystemCreditInput{
		AccountID:   accountID,
		Amount:      req.Amount,
		Currency:    currency,
		Description: req.Description,
	})
	if err != nil {
		respondDomainError(w, r, err)
		return
	}

	respondJSON(w, toTransactionResponse(tx), http.StatusCreated)
}

// VerifyAccountBalance handles GET /admin/accounts/{id}/verify
func (h *AdminHandler) VerifyAccountBalance(w http.ResponseWriter, r *http.Request) {
	accountID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondEnvelope(w, apierror.BadRequest("invalid account id", r.URL.Path))
		return
	}

	balance, err := h.service.VerifyAccountBalance(r.Context(), accountID)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}

	respondJSON(w, VerificationResponse{
		AccountID: accountID.String(),
		Balance:   money.FormatAmount(balance),
		Verified:  true,
	}, http.StatusOK)
}
